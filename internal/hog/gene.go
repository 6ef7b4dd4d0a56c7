// Package hog implements the gene hierarchy: extant genes, hierarchical
// orthologous groups (HOGs), duplication events and the genomes that own them.
package hog

import (
	"fmt"
	"slices"
	"sort"
)

// AbstractGene is either a *Gene or a *HOG.
type AbstractGene interface {
	// Parent returns the enclosing HOG, or nil for top-level HOGs and singletons.
	Parent() *HOG
	// Genome returns the owning genome, or nil if not assigned yet.
	Genome() Genome
	// AroseByDuplication returns the duplication event this gene is a product of.
	AroseByDuplication() *DuplicationNode

	setParent(*HOG)
	setDuplication(*DuplicationNode)
}

// Gene is an extant gene owned by an ExtantGenome.
type Gene struct {
	ID           string            // Unique id within the record stream
	GeneID       string            // Optional gene cross-reference
	ProtID       string            // Optional protein cross-reference
	TranscriptID string            // Optional transcript cross-reference
	Extra        map[string]string // Other attributes found on the gene record

	parent  *HOG
	genome  *ExtantGenome
	aroseBy *DuplicationNode
}

// NewGene creates a gene with the given unique id.
func NewGene(id string) *Gene {
	return &Gene{ID: id}
}

func (g *Gene) Parent() *HOG { return g.parent }
func (g *Gene) AroseByDuplication() *DuplicationNode { return g.aroseBy }
func (g *Gene) setParent(h *HOG) { g.parent = h }
func (g *Gene) setDuplication(d *DuplicationNode) { g.aroseBy = d }

// Genome returns the owning extant genome.
func (g *Gene) Genome() Genome {
	if g.genome == nil {
		return nil
	}
	return g.genome
}

// ExtantGenome returns the owning genome with its concrete type.
func (g *Gene) ExtantGenome() *ExtantGenome { return g.genome }

// SetGenome assigns the owning genome and registers the gene with it.
// Assigning the same genome again is a no-op.
func (g *Gene) SetGenome(genome *ExtantGenome) error {
	if genome == nil {
		return fmt.Errorf("set genome of gene %s: %w", g.ID, ErrInvalidChild)
	}
	if g.genome == genome {
		return nil
	}
	if g.genome != nil {
		return &EvolutionaryConceptError{
			Message: fmt.Sprintf("gene %s already belongs to genome %s", g.ID, g.genome.Name()),
		}
	}
	g.genome = genome
	genome.addGene(g)
	return nil
}

// IsSingleton returns true if the gene is not part of any HOG.
func (g *Gene) IsSingleton() bool { return g.parent == nil }

// ExternalIDs returns the distinct non-empty cross-reference ids.
func (g *Gene) ExternalIDs() []string {
	var ids []string
	for _, id := range []string{g.GeneID, g.ProtID, g.TranscriptID} {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// XRefs returns every known identifier of the gene keyed by attribute name.
func (g *Gene) XRefs() map[string]string {
	refs := map[string]string{"id": g.ID}
	if g.GeneID != "" {
		refs["geneId"] = g.GeneID
	}
	if g.ProtID != "" {
		refs["protId"] = g.ProtID
	}
	if g.TranscriptID != "" {
		refs["transcriptId"] = g.TranscriptID
	}
	for k, v := range g.Extra {
		refs[k] = v
	}
	return refs
}

func (g *Gene) String() string { return "Gene(" + g.ID + ")" }

// HOG is an ancestral gene: a group of genes descending from one gene of an
// ancestral genome.
type HOG struct {
	ID string // Family id from the record stream; empty for nested or synthetic groups

	parent       *HOG
	children     []AbstractGene
	genome       *AncestralGenome
	aroseBy      *DuplicationNode
	duplications []*DuplicationNode
	scores       map[string]float64
	properties   map[string]string
}

// TaxRangeProperty is the property carrying the declared taxonomic range of a group.
const TaxRangeProperty = "TaxRange"

// NewHOG creates an empty HOG.
func NewHOG(id string) *HOG {
	return &HOG{ID: id}
}

func (h *HOG) Parent() *HOG { return h.parent }
func (h *HOG) AroseByDuplication() *DuplicationNode { return h.aroseBy }
func (h *HOG) setParent(p *HOG) { h.parent = p }
func (h *HOG) setDuplication(d *DuplicationNode) { h.aroseBy = d }

// Genome returns the owning ancestral genome.
func (h *HOG) Genome() Genome {
	if h.genome == nil {
		return nil
	}
	return h.genome
}

// AncestralGenome returns the owning genome with its concrete type.
func (h *HOG) AncestralGenome() *AncestralGenome { return h.genome }

// SetGenome assigns the owning genome and registers the HOG with it.
// Assigning the same genome again is a no-op.
func (h *HOG) SetGenome(genome *AncestralGenome) error {
	if genome == nil {
		return fmt.Errorf("set genome of %s: %w", h, ErrInvalidChild)
	}
	if h.genome == genome {
		return nil
	}
	if h.genome != nil {
		return &EvolutionaryConceptError{
			Message: fmt.Sprintf("%s already belongs to genome %s", h, h.genome.Name()),
		}
	}
	h.genome = genome
	genome.addHOG(h)
	return nil
}

// Children returns the direct children in insertion order.
func (h *HOG) Children() []AbstractGene { return h.children }

// AddChild appends c, detaching it from any previous parent.
func (h *HOG) AddChild(c AbstractGene) error {
	if isNil(c) {
		return fmt.Errorf("add child to %s: %w", h, ErrInvalidChild)
	}
	if ch, ok := c.(*HOG); ok && ch == h {
		return &EvolutionaryConceptError{Message: fmt.Sprintf("%s cannot be its own child", h)}
	}
	if old := c.Parent(); old != nil {
		if old == h {
			return nil
		}
		old.RemoveChild(c)
	}
	h.children = append(h.children, c)
	c.setParent(h)
	return nil
}

// RemoveChild detaches c and clears its parent. It reports whether c was a child.
func (h *HOG) RemoveChild(c AbstractGene) bool {
	for i, x := range h.children {
		if x == c {
			h.children = append(h.children[:i], h.children[i+1:]...)
			c.setParent(nil)
			return true
		}
	}
	return false
}

// Duplications returns the duplication events rooted directly under h.
func (h *HOG) Duplications() []*DuplicationNode { return h.duplications }

// IsTopLevel returns true if h has no parent.
func (h *HOG) IsTopLevel() bool { return h.parent == nil }

// Score returns the named score.
func (h *HOG) Score(name string) (float64, bool) {
	v, ok := h.scores[name]
	return v, ok
}

// SetScore sets the named score.
func (h *HOG) SetScore(name string, value float64) {
	if h.scores == nil {
		h.scores = make(map[string]float64)
	}
	h.scores[name] = value
}

// ScoreNames returns the names of all scores in sorted order.
func (h *HOG) ScoreNames() []string {
	names := make([]string, 0, len(h.scores))
	for k := range h.scores {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Property returns the named property.
func (h *HOG) Property(name string) (string, bool) {
	v, ok := h.properties[name]
	return v, ok
}

// SetProperty sets the named property.
func (h *HOG) SetProperty(name, value string) {
	if h.properties == nil {
		h.properties = make(map[string]string)
	}
	h.properties[name] = value
}

// TaxRange returns the declared taxonomic range, or "".
func (h *HOG) TaxRange() string {
	return h.properties[TaxRangeProperty]
}

func (h *HOG) String() string {
	level := "?"
	if h.genome != nil {
		level = h.genome.Name()
	}
	if h.ID == "" {
		return "HOG(" + level + ")"
	}
	return "HOG(" + h.ID + "," + level + ")"
}

func isNil(c AbstractGene) bool {
	switch v := c.(type) {
	case nil:
		return true
	case *Gene:
		return v == nil
	case *HOG:
		return v == nil
	}
	return false
}
