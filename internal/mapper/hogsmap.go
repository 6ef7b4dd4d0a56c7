// Package mapper classifies the genes of two genomes on one lineage into
// lost, gained, retained and duplicated.
package mapper

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/vibe-ham/internal/hog"
)

// Event is the evolutionary fate of an ancestral gene along a lineage.
type Event string

// Event values, as written in tabular output.
const (
	Loss      Event = "LOSS"
	Gain      Event = "GAIN"
	Retained  Event = "RETAINED"
	Duplicate Event = "DUPLICATE"
)

// Link is the result of walking up from a descendant gene.
type Link struct {
	Ancestor   *hog.HOG // nil if the gene has no ancestor in the ancestral genome
	Duplicated bool     // a duplication was crossed on the way up
}

// LineageOrderer orders two genomes as ancestor and descendant.
type LineageOrderer interface {
	OrderLineage(a, b hog.Genome) (hog.Genome, hog.Genome, error)
}

// HOGsMap is the classification of one descendant genome against one of its
// ancestral genomes.
type HOGsMap struct {
	Ancestor   hog.Genome
	Descendant hog.Genome

	UpMap     map[hog.AbstractGene]Link
	Loss      []*hog.HOG                      // ancestral genes without descendant
	Gain      []hog.AbstractGene              // descendant genes without ancestor
	Retained  map[*hog.HOG]hog.AbstractGene   // ancestral gene -> its single copy
	Duplicate map[*hog.HOG][]hog.AbstractGene // ancestral gene -> its copies

	// Consistent reports whether both genomes are fully partitioned by the events.
	Consistent bool
}

// NewHOGsMap maps genomes g1 and g2, in either order, onto each other.
func NewHOGsMap(lineage LineageOrderer, g1, g2 hog.Genome, logger *zap.Logger) (*HOGsMap, error) {
	if g1 == nil || g2 == nil {
		return nil, errors.New("map genomes: nil genome")
	}
	if g1 == g2 {
		return nil, fmt.Errorf("map genomes: %s is mapped onto itself", g1.Name())
	}
	anc, desc, err := lineage.OrderLineage(g1, g2)
	if err != nil {
		return nil, fmt.Errorf("map genomes: %w", err)
	}
	if _, ok := anc.(*hog.AncestralGenome); !ok {
		return nil, fmt.Errorf("map genomes: %s is not an ancestral genome: %w", anc.Name(), hog.ErrNotSameLineage)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &HOGsMap{
		Ancestor:   anc,
		Descendant: desc,
		UpMap:      make(map[hog.AbstractGene]Link),
		Retained:   make(map[*hog.HOG]hog.AbstractGene),
		Duplicate:  make(map[*hog.HOG][]hog.AbstractGene),
	}
	m.buildUpMap()
	m.cluster()
	m.Consistent = m.check(logger)
	return m, nil
}

func (m *HOGsMap) buildUpMap() {
	for _, g := range m.Descendant.Genes() {
		h, dup := hog.SearchAncestor(g, m.Ancestor)
		m.UpMap[g] = Link{Ancestor: h, Duplicated: dup}
	}
}

func (m *HOGsMap) cluster() {
	for _, g := range m.Descendant.Genes() {
		link := m.UpMap[g]
		switch {
		case link.Ancestor == nil:
			m.Gain = append(m.Gain, g)
		case link.Duplicated:
			m.Duplicate[link.Ancestor] = append(m.Duplicate[link.Ancestor], g)
		default:
			m.Retained[link.Ancestor] = g
		}
	}
	for _, g := range m.Ancestor.Genes() {
		h := g.(*hog.HOG)
		_, retained := m.Retained[h]
		_, duplicated := m.Duplicate[h]
		if !retained && !duplicated {
			m.Loss = append(m.Loss, h)
		}
	}
}

func (m *HOGsMap) check(logger *zap.Logger) bool {
	nDesc := len(m.Descendant.Genes())
	nAnc := len(m.Ancestor.Genes())

	copies := 0
	for _, genes := range m.Duplicate {
		copies += len(genes)
	}
	descSum := len(m.Gain) + len(m.Retained) + copies
	ancSum := len(m.Loss) + len(m.Retained) + len(m.Duplicate)

	if descSum == nDesc && ancSum == nAnc {
		return true
	}
	logger.Error("inconsistent genome mapping",
		zap.String("ancestor", m.Ancestor.Name()),
		zap.String("descendant", m.Descendant.Name()),
		zap.Int("ancestor_genes", nAnc),
		zap.Int("ancestor_events", ancSum),
		zap.Int("descendant_genes", nDesc),
		zap.Int("descendant_events", descSum))
	return false
}

// NumberOfDuplications counts the extra copies created by duplications.
func (m *HOGsMap) NumberOfDuplications() int {
	n := 0
	for _, genes := range m.Duplicate {
		n += len(genes) - 1
	}
	return n
}

// RetainedHOGs returns the keys of Retained in ancestral genome order.
func (m *HOGsMap) RetainedHOGs() []*hog.HOG {
	return m.ordered(func(h *hog.HOG) bool { _, ok := m.Retained[h]; return ok })
}

// DuplicatedHOGs returns the keys of Duplicate in ancestral genome order.
func (m *HOGsMap) DuplicatedHOGs() []*hog.HOG {
	return m.ordered(func(h *hog.HOG) bool { _, ok := m.Duplicate[h]; return ok })
}

func (m *HOGsMap) ordered(keep func(*hog.HOG) bool) []*hog.HOG {
	var out []*hog.HOG
	for _, g := range m.Ancestor.Genes() {
		if h := g.(*hog.HOG); keep(h) {
			out = append(out, h)
		}
	}
	return out
}

// Record is one event of a HOGsMap. Ancestral is nil for gains; Descendants
// is empty for losses and holds every copy for duplications.
type Record struct {
	Event       Event
	Ancestral   *hog.HOG
	Descendants []hog.AbstractGene
}

// Records lists the events of m: retained, duplicated and lost ancestral
// genes in ancestral genome order, then gains in descendant genome order.
func (m *HOGsMap) Records() []Record {
	var out []Record
	for _, h := range m.RetainedHOGs() {
		out = append(out, Record{Event: Retained, Ancestral: h, Descendants: []hog.AbstractGene{m.Retained[h]}})
	}
	for _, h := range m.DuplicatedHOGs() {
		out = append(out, Record{Event: Duplicate, Ancestral: h, Descendants: m.Duplicate[h]})
	}
	for _, h := range m.Loss {
		out = append(out, Record{Event: Loss, Ancestral: h})
	}
	for _, g := range m.Gain {
		out = append(out, Record{Event: Gain, Descendants: []hog.AbstractGene{g}})
	}
	return out
}
