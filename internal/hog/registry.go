package hog

import (
	"fmt"

	"github.com/inodb/vibe-ham/internal/taxonomy"
)

// Registry anchors genomes onto a species tree. Every taxonomy node has at most
// one genome, created the first time the node is addressed.
type Registry struct {
	tree      *taxonomy.Tree
	extant    map[*taxonomy.Node]*ExtantGenome
	ancestral map[*taxonomy.Node]*AncestralGenome
}

// NewRegistry creates an empty registry over tree.
func NewRegistry(tree *taxonomy.Tree) *Registry {
	return &Registry{
		tree:      tree,
		extant:    make(map[*taxonomy.Node]*ExtantGenome),
		ancestral: make(map[*taxonomy.Node]*AncestralGenome),
	}
}

// Tree returns the species tree.
func (r *Registry) Tree() *taxonomy.Tree { return r.tree }

// ExtantGenome resolves the leaf called name and returns its genome,
// creating it on first use.
func (r *Registry) ExtantGenome(name, taxID string) (*ExtantGenome, error) {
	n, err := r.tree.Node(name)
	if err != nil {
		return nil, err
	}
	if !n.IsLeaf() {
		return nil, &taxonomy.ConfigError{Message: fmt.Sprintf("species %q is not a leaf of the species tree", name)}
	}
	if g, ok := r.extant[n]; ok {
		return g, nil
	}
	g := NewExtantGenome(name, taxID)
	if err := g.SetTaxon(n); err != nil {
		return nil, err
	}
	r.extant[n] = g
	return g, nil
}

// AncestralGenome returns the genome of the internal node n, creating it on first use.
func (r *Registry) AncestralGenome(n *taxonomy.Node) (*AncestralGenome, error) {
	if n == nil {
		return nil, fmt.Errorf("ancestral genome: %w", ErrInvalidChild)
	}
	if n.IsLeaf() {
		return nil, &EvolutionaryConceptError{
			Message: fmt.Sprintf("%s is an extant species, not an ancestral level", n.Name),
		}
	}
	if g, ok := r.ancestral[n]; ok {
		return g, nil
	}
	g := NewAncestralGenome()
	if err := g.SetTaxon(n); err != nil {
		return nil, err
	}
	r.ancestral[n] = g
	return g, nil
}

// Lookup returns the existing genome of n, or nil.
func (r *Registry) Lookup(n *taxonomy.Node) Genome {
	if g, ok := r.extant[n]; ok {
		return g
	}
	if g, ok := r.ancestral[n]; ok {
		return g
	}
	return nil
}

// CommonAncestor returns the taxonomy node that is the most recent common
// ancestor of the given genomes.
func (r *Registry) CommonAncestor(genomes ...Genome) (*taxonomy.Node, error) {
	nodes := make([]*taxonomy.Node, 0, len(genomes))
	for _, g := range genomes {
		if g == nil || g.Taxon() == nil {
			return nil, fmt.Errorf("common ancestor: genome without taxon: %w", ErrInvalidChild)
		}
		nodes = append(nodes, g.Taxon())
	}
	return r.tree.CommonAncestor(nodes...)
}

// PathBetween returns the nodes strictly between child and ancestor, nearest first.
func (r *Registry) PathBetween(child, ancestor *taxonomy.Node) []*taxonomy.Node {
	return r.tree.PathUp(child, ancestor)
}

// Depth returns the depth of n in the species tree.
func (r *Registry) Depth(n *taxonomy.Node) int { return n.Depth }

// OrderLineage returns (ancestor, descendant) for two genomes on one lineage.
// It fails with ErrNotSameLineage when neither genome is an ancestor of the other.
func (r *Registry) OrderLineage(a, b Genome) (Genome, Genome, error) {
	mrca, err := r.CommonAncestor(a, b)
	if err != nil {
		return nil, nil, err
	}
	switch mrca {
	case a.Taxon():
		return a, b, nil
	case b.Taxon():
		return b, a, nil
	}
	return nil, nil, fmt.Errorf("%s and %s: %w", a.Name(), b.Name(), ErrNotSameLineage)
}

// ExtantGenomes returns the created extant genomes in species tree order.
func (r *Registry) ExtantGenomes() []*ExtantGenome {
	var out []*ExtantGenome
	for _, n := range r.tree.Nodes() {
		if g, ok := r.extant[n]; ok {
			out = append(out, g)
		}
	}
	return out
}

// AncestralGenomes returns the created ancestral genomes in species tree order.
func (r *Registry) AncestralGenomes() []*AncestralGenome {
	var out []*AncestralGenome
	for _, n := range r.tree.Nodes() {
		if g, ok := r.ancestral[n]; ok {
			out = append(out, g)
		}
	}
	return out
}
