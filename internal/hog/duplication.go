package hog

import "fmt"

// DuplicationNode is one duplication event. Its children are the paralogous
// copies produced by the event and its parent is the HOG the event happened in.
type DuplicationNode struct {
	parent   *HOG
	children []AbstractGene
	mrca     *AncestralGenome
}

// NewDuplicationNode creates an event without parent or children.
func NewDuplicationNode() *DuplicationNode {
	return &DuplicationNode{}
}

// Parent returns the HOG the duplication is rooted under.
func (d *DuplicationNode) Parent() *HOG { return d.parent }

// SetParent sets the parent HOG once and records d among its duplications.
func (d *DuplicationNode) SetParent(h *HOG) error {
	if h == nil {
		return fmt.Errorf("set duplication parent: %w", ErrInvalidChild)
	}
	if d.parent == h {
		return nil
	}
	if d.parent != nil {
		return &EvolutionaryConceptError{
			Message: fmt.Sprintf("duplication already rooted under %s", d.parent),
		}
	}
	d.parent = h
	h.duplications = append(h.duplications, d)
	return nil
}

// MRCA returns the genome the duplication happened in.
func (d *DuplicationNode) MRCA() *AncestralGenome { return d.mrca }

// SetMRCA records the genome the duplication happened in.
func (d *DuplicationNode) SetMRCA(g *AncestralGenome) { d.mrca = g }

// Children returns the products of the duplication.
func (d *DuplicationNode) Children() []AbstractGene { return d.children }

// AddChild marks c as a product of d, leaving any previous event.
func (d *DuplicationNode) AddChild(c AbstractGene) error {
	if isNil(c) {
		return fmt.Errorf("add duplication child: %w", ErrInvalidChild)
	}
	if old := c.AroseByDuplication(); old != nil {
		if old == d {
			return nil
		}
		old.RemoveChild(c)
	}
	d.children = append(d.children, c)
	c.setDuplication(d)
	return nil
}

// RemoveChild drops c from the event and clears its marker.
func (d *DuplicationNode) RemoveChild(c AbstractGene) bool {
	for i, x := range d.children {
		if x == c {
			d.children = append(d.children[:i], d.children[i+1:]...)
			c.setDuplication(nil)
			return true
		}
	}
	return false
}
