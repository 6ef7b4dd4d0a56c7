package hog

import (
	"fmt"
	"strconv"
	"strings"
)

// Visitor holds the optional callbacks of Visit.
type Visitor struct {
	Leaf func(*Gene) // called for every gene
	Pre  func(*HOG)  // called before a HOG's children
	Post func(*HOG)  // called after a HOG's children
}

// Visit walks the subtree rooted at g depth-first.
func Visit(g AbstractGene, v Visitor) {
	switch x := g.(type) {
	case *Gene:
		if v.Leaf != nil {
			v.Leaf(x)
		}
	case *HOG:
		if v.Pre != nil {
			v.Pre(x)
		}
		for _, c := range x.children {
			Visit(c, v)
		}
		if v.Post != nil {
			v.Post(x)
		}
	}
}

// DescendantGenes returns the extant genes below h in traversal order.
func (h *HOG) DescendantGenes() []*Gene {
	var genes []*Gene
	Visit(h, Visitor{Leaf: func(g *Gene) { genes = append(genes, g) }})
	return genes
}

// DescendantGenesBySpecies groups the extant genes below h by genome.
func (h *HOG) DescendantGenesBySpecies() map[*ExtantGenome][]*Gene {
	out := make(map[*ExtantGenome][]*Gene)
	for _, g := range h.DescendantGenes() {
		out[g.genome] = append(out[g.genome], g)
	}
	return out
}

// DescendantHOGs returns h and every HOG below it in pre-order.
func (h *HOG) DescendantHOGs() []*HOG {
	var hogs []*HOG
	Visit(h, Visitor{Pre: func(x *HOG) { hogs = append(hogs, x) }})
	return hogs
}

// DescendantLevels returns the distinct ancestral genomes of h and the HOGs
// below it, in pre-order of first appearance.
func (h *HOG) DescendantLevels() []*AncestralGenome {
	seen := make(map[*AncestralGenome]bool)
	var levels []*AncestralGenome
	for _, x := range h.DescendantHOGs() {
		if x.genome != nil && !seen[x.genome] {
			seen[x.genome] = true
			levels = append(levels, x.genome)
		}
	}
	return levels
}

// TopLevel returns the outermost HOG above g, or g itself if it has no parent.
func TopLevel(g AbstractGene) AbstractGene {
	for g.Parent() != nil {
		g = g.Parent()
	}
	return g
}

// AtLevel returns the HOG above g (or g itself) whose genome is genome.
func AtLevel(g AbstractGene, genome Genome) (*HOG, error) {
	for cur := AbstractGene(g); cur != nil; {
		if h, ok := cur.(*HOG); ok && h.genome != nil && Genome(h.genome) == genome {
			return h, nil
		}
		p := cur.Parent()
		if p == nil {
			break
		}
		cur = p
	}
	return nil, fmt.Errorf("no ancestor of %v at level %s: %w", g, genome.Name(), ErrNotFound)
}

// SearchAncestor walks up from g to the HOG owned by genome. The returned flag
// reports whether any gene on the way, g included and the found HOG excluded,
// arose by duplication. A nil HOG means g has no ancestor in genome.
func SearchAncestor(g AbstractGene, genome Genome) (*HOG, bool) {
	duplicated := false
	for cur := g; cur != nil; {
		if h, ok := cur.(*HOG); ok && Genome(h.genome) == genome {
			return h, duplicated
		}
		if cur.AroseByDuplication() != nil {
			duplicated = true
		}
		p := cur.Parent()
		if p == nil {
			return nil, duplicated
		}
		cur = p
	}
	return nil, duplicated
}

// Label returns a display name for g. Genes and HOGs with an id use it; a
// HOG without one is named after its nearest labeled ancestor and the child
// positions leading down to it, e.g. "3/1.0". Nested ids may repeat, so
// labels are not unique.
func Label(g AbstractGene) string {
	switch x := g.(type) {
	case *Gene:
		return x.ID
	case *HOG:
		if x.ID != "" {
			return x.ID
		}
		var path []string
		cur := x
		for cur.parent != nil && cur.ID == "" {
			path = append(path, strconv.Itoa(indexOf(cur.parent.children, cur)))
			cur = cur.parent
		}
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
		return cur.ID + "/" + strings.Join(path, ".")
	}
	return ""
}

func indexOf(children []AbstractGene, c AbstractGene) int {
	for i, x := range children {
		if x == c {
			return i
		}
	}
	return -1
}
