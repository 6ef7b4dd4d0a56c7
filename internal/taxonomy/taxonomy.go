// Package taxonomy provides the species tree that genomes are anchored to.
//
// A Tree is parsed once from a Newick string and is read-only afterwards.
// Leaves are extant species, internal nodes are ancestral lineage points.
package taxonomy

import (
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of node pairs kept in the common ancestor cache.
const DefaultCacheSize = 4096

var (
	// ErrNodeNotFound is returned when no node carries the requested name.
	ErrNodeNotFound = errors.New("taxonomy: node not found")
	// ErrNotUnique is returned when more than one node carries the requested name.
	ErrNotUnique = errors.New("taxonomy: name is not unique")
)

// ConfigError reports a species tree that cannot be used as a taxonomy.
type ConfigError struct {
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	return "taxonomy: " + e.Message
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Node is a taxon of the species tree.
type Node struct {
	Name     string
	Parent   *Node
	Children []*Node
	Depth    int // root is 0

	index int // pre-order position, used as cache key
}

// IsLeaf returns true if the node is an extant species.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// IsRoot returns true if the node has no parent.
func (n *Node) IsRoot() bool { return n.Parent == nil }

// Leaves returns the leaves below n in pre-order. A leaf returns itself.
func (n *Node) Leaves() []*Node {
	if n.IsLeaf() {
		return []*Node{n}
	}
	var out []*Node
	for _, c := range n.Children {
		out = append(out, c.Leaves()...)
	}
	return out
}

func (n *Node) String() string { return n.Name }

// Options controls how internal node names are assigned.
type Options struct {
	// UseInternalNames keeps the internal labels found in the Newick string.
	// When false, or when a label is missing, an internal node is named by
	// joining its leaf names with "/".
	UseInternalNames bool

	// CacheSize bounds the common ancestor cache; zero means DefaultCacheSize.
	CacheSize int
}

// Tree is a rooted species tree with unique node names.
type Tree struct {
	root   *Node
	nodes  []*Node // pre-order
	byName map[string][]*Node
	lca    *lru.Cache[[2]int, *Node]
}

// Parse builds a Tree from a Newick string.
func Parse(newick string, opts Options) (*Tree, error) {
	root, err := parseNewick(strings.TrimSpace(newick))
	if err != nil {
		return nil, err
	}

	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[[2]int, *Node](size)
	if err != nil {
		return nil, fmt.Errorf("create ancestor cache: %w", err)
	}

	t := &Tree{
		root:   root,
		byName: make(map[string][]*Node),
		lca:    cache,
	}
	t.index(root, 0)

	for _, n := range t.nodes {
		if n.IsLeaf() {
			if n.Name == "" {
				return nil, &ConfigError{Message: "leaf without a name"}
			}
			continue
		}
		if !opts.UseInternalNames || n.Name == "" {
			n.Name = joinedLeafNames(n)
		}
	}

	if err := t.checkNames(); err != nil {
		return nil, err
	}
	for _, n := range t.nodes {
		t.byName[n.Name] = append(t.byName[n.Name], n)
	}
	return t, nil
}

func (t *Tree) index(n *Node, depth int) {
	n.Depth = depth
	n.index = len(t.nodes)
	t.nodes = append(t.nodes, n)
	for _, c := range n.Children {
		t.index(c, depth+1)
	}
}

func joinedLeafNames(n *Node) string {
	leaves := n.Leaves()
	names := make([]string, len(leaves))
	for i, l := range leaves {
		names[i] = l.Name
	}
	return strings.Join(names, "/")
}

func (t *Tree) checkNames() error {
	leaves := make(map[string]bool)
	internal := make(map[string]bool)
	for _, n := range t.nodes {
		seen := internal
		kind := "internal node"
		if n.IsLeaf() {
			seen = leaves
			kind = "leaf"
		}
		if seen[n.Name] {
			return &ConfigError{
				Message: fmt.Sprintf("%s name %q is not unique", kind, n.Name),
				Err:     ErrNotUnique,
			}
		}
		seen[n.Name] = true
	}
	return nil
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Nodes returns every node in pre-order.
func (t *Tree) Nodes() []*Node { return t.nodes }

// Leaves returns every leaf in pre-order.
func (t *Tree) Leaves() []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if n.IsLeaf() {
			out = append(out, n)
		}
	}
	return out
}

// Internal returns every internal node in pre-order.
func (t *Tree) Internal() []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if !n.IsLeaf() {
			out = append(out, n)
		}
	}
	return out
}

// Find returns all nodes carrying name.
func (t *Tree) Find(name string) []*Node {
	return t.byName[name]
}

// Node returns the single node carrying name.
func (t *Tree) Node(name string) (*Node, error) {
	found := t.byName[name]
	switch len(found) {
	case 0:
		return nil, &ConfigError{Message: fmt.Sprintf("no node named %q", name), Err: ErrNodeNotFound}
	case 1:
		return found[0], nil
	default:
		return nil, &ConfigError{
			Message: fmt.Sprintf("%d nodes named %q", len(found), name),
			Err:     ErrNotUnique,
		}
	}
}

// CommonAncestor returns the most recent common ancestor of nodes.
// A single node is its own common ancestor.
func (t *Tree) CommonAncestor(nodes ...*Node) (*Node, error) {
	if len(nodes) == 0 {
		return nil, errors.New("taxonomy: common ancestor of an empty node set")
	}
	mrca := nodes[0]
	for _, n := range nodes[1:] {
		if n == nil {
			return nil, errors.New("taxonomy: common ancestor of a nil node")
		}
		mrca = t.pairAncestor(mrca, n)
	}
	return mrca, nil
}

func (t *Tree) pairAncestor(a, b *Node) *Node {
	if a == b {
		return a
	}
	key := [2]int{a.index, b.index}
	if key[0] > key[1] {
		key[0], key[1] = key[1], key[0]
	}
	if n, ok := t.lca.Get(key); ok {
		return n
	}

	x, y := a, b
	for x.Depth > y.Depth {
		x = x.Parent
	}
	for y.Depth > x.Depth {
		y = y.Parent
	}
	for x != y {
		x, y = x.Parent, y.Parent
	}
	t.lca.Add(key, x)
	return x
}

// IsAncestor returns true if a is a strict ancestor of d.
func (t *Tree) IsAncestor(a, d *Node) bool {
	for n := d.Parent; n != nil; n = n.Parent {
		if n == a {
			return true
		}
	}
	return false
}

// PathUp returns the nodes strictly between child and ancestor, nearest to
// child first. If ancestor is not above child the whole chain up to the root
// is returned, so callers must validate the geometry.
func (t *Tree) PathUp(child, ancestor *Node) []*Node {
	var path []*Node
	for n := child.Parent; n != nil && n != ancestor; n = n.Parent {
		path = append(path, n)
	}
	return path
}

// Newick returns the subtree rooted at n with every node named.
func (t *Tree) Newick(n *Node) string {
	var sb strings.Builder
	writeNewick(&sb, n)
	sb.WriteByte(';')
	return sb.String()
}

// ASCII renders the tree, one node per line.
func (t *Tree) ASCII() string {
	var sb strings.Builder
	sb.WriteString(t.root.Name)
	sb.WriteByte('\n')
	writeASCII(&sb, t.root, "")
	return sb.String()
}

func writeASCII(sb *strings.Builder, n *Node, prefix string) {
	for i, c := range n.Children {
		branch, next := "|-- ", "|   "
		if i == len(n.Children)-1 {
			branch, next = "`-- ", "    "
		}
		sb.WriteString(prefix + branch + c.Name + "\n")
		writeASCII(sb, c, prefix+next)
	}
}
