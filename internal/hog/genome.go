package hog

import (
	"fmt"

	"github.com/inodb/vibe-ham/internal/taxonomy"
)

// Genome is either an *ExtantGenome or an *AncestralGenome.
type Genome interface {
	// Name returns the name of the taxonomy node the genome is anchored to.
	Name() string
	// Taxon returns the taxonomy node, or nil if not anchored yet.
	Taxon() *taxonomy.Node
	// Genes returns the owned genes (extant) or HOGs (ancestral) in insertion order.
	Genes() []AbstractGene

	isGenome()
}

type anchor struct {
	taxon *taxonomy.Node
}

func (a *anchor) Taxon() *taxonomy.Node { return a.taxon }

// SetTaxon anchors the genome once. Re-anchoring to the same node is a no-op.
func (a *anchor) SetTaxon(n *taxonomy.Node) error {
	if n == nil {
		return fmt.Errorf("set taxon: %w", ErrInvalidChild)
	}
	if a.taxon == n {
		return nil
	}
	if a.taxon != nil {
		return &EvolutionaryConceptError{
			Message: fmt.Sprintf("genome already anchored to %s", a.taxon.Name),
		}
	}
	a.taxon = n
	return nil
}

// ExtantGenome is the genome of a living species.
type ExtantGenome struct {
	anchor
	name  string
	TaxID string // External taxonomy identifier, e.g. NCBI taxon id

	genes []*Gene
}

// NewExtantGenome creates an unanchored genome.
func NewExtantGenome(name, taxID string) *ExtantGenome {
	return &ExtantGenome{name: name, TaxID: taxID}
}

func (g *ExtantGenome) isGenome() {}

// Name returns the species name.
func (g *ExtantGenome) Name() string { return g.name }

// Genes returns every gene of the genome, singletons included.
func (g *ExtantGenome) Genes() []AbstractGene {
	out := make([]AbstractGene, len(g.genes))
	for i, x := range g.genes {
		out[i] = x
	}
	return out
}

// ExtantGenes returns the genes with their concrete type.
func (g *ExtantGenome) ExtantGenes() []*Gene { return g.genes }

// NumberOfGenes counts the genes, optionally including singletons.
func (g *ExtantGenome) NumberOfGenes(singletons bool) int {
	if singletons {
		return len(g.genes)
	}
	n := 0
	for _, x := range g.genes {
		if !x.IsSingleton() {
			n++
		}
	}
	return n
}

func (g *ExtantGenome) addGene(x *Gene) { g.genes = append(g.genes, x) }

func (g *ExtantGenome) String() string { return "ExtantGenome(" + g.name + ")" }

// AncestralGenome is the genome of an ancestral lineage point.
type AncestralGenome struct {
	anchor

	hogs       []*HOG
	clustering map[*HOG][]*Gene
}

// NewAncestralGenome creates an unanchored genome.
func NewAncestralGenome() *AncestralGenome {
	return &AncestralGenome{}
}

func (g *AncestralGenome) isGenome() {}

// Name returns the name of the anchoring taxon.
func (g *AncestralGenome) Name() string {
	if g.taxon == nil {
		return ""
	}
	return g.taxon.Name
}

// Genes returns the HOGs of the genome.
func (g *AncestralGenome) Genes() []AbstractGene {
	out := make([]AbstractGene, len(g.hogs))
	for i, h := range g.hogs {
		out[i] = h
	}
	return out
}

// HOGs returns the HOGs with their concrete type.
func (g *AncestralGenome) HOGs() []*HOG { return g.hogs }

// Clustering maps every HOG of the genome to its descendant extant genes.
// It is computed on first use and must not be called while the hierarchy
// is still being built.
func (g *AncestralGenome) Clustering() map[*HOG][]*Gene {
	if g.clustering == nil {
		g.clustering = make(map[*HOG][]*Gene, len(g.hogs))
		for _, h := range g.hogs {
			g.clustering[h] = h.DescendantGenes()
		}
	}
	return g.clustering
}

func (g *AncestralGenome) addHOG(h *HOG) {
	g.hogs = append(g.hogs, h)
	g.clustering = nil
}

func (g *AncestralGenome) String() string { return "AncestralGenome(" + g.Name() + ")" }
