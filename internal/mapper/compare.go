package mapper

import (
	"errors"

	"github.com/inodb/vibe-ham/internal/hog"
)

// MapVertical compares one descendant genome with one of its ancestors.
type MapVertical struct {
	m *HOGsMap
}

// NewMapVertical wraps a single HOGsMap.
func NewMapVertical(m *HOGsMap) *MapVertical {
	return &MapVertical{m: m}
}

func (v *MapVertical) Ancestor() hog.Genome { return v.m.Ancestor }
func (v *MapVertical) Descendant() hog.Genome { return v.m.Descendant }

// Map returns the underlying HOGsMap.
func (v *MapVertical) Map() *HOGsMap { return v.m }

// Retained maps each retained ancestral gene to its descendant copy.
func (v *MapVertical) Retained() map[*hog.HOG]hog.AbstractGene { return v.m.Retained }

// Duplicated maps each duplicated ancestral gene to its descendant copies.
func (v *MapVertical) Duplicated() map[*hog.HOG][]hog.AbstractGene { return v.m.Duplicate }

// Gained returns the descendant genes without ancestor.
func (v *MapVertical) Gained() []hog.AbstractGene { return v.m.Gain }

// Lost returns the ancestral genes without descendant.
func (v *MapVertical) Lost() []*hog.HOG { return v.m.Loss }

// MapLateral compares several descendant genomes against their common ancestor.
// The per-genome results are re-indexed by ancestral gene on first use.
type MapLateral struct {
	ancestor    hog.Genome
	descendants []hog.Genome
	maps        map[hog.Genome]*HOGsMap

	indexed    bool
	retained   map[*hog.HOG]map[hog.Genome]hog.AbstractGene
	duplicated map[*hog.HOG]map[hog.Genome][]hog.AbstractGene
	lost       map[*hog.HOG][]hog.Genome
	gained     map[hog.Genome][]hog.AbstractGene
}

// NewMapLateral combines maps that all share the same ancestor.
func NewMapLateral(maps ...*HOGsMap) (*MapLateral, error) {
	if len(maps) == 0 {
		return nil, errors.New("lateral map: no genome maps")
	}
	l := &MapLateral{
		ancestor: maps[0].Ancestor,
		maps:     make(map[hog.Genome]*HOGsMap, len(maps)),
	}
	for _, m := range maps {
		if m.Ancestor != l.ancestor {
			return nil, errors.New("lateral map: maps do not share one ancestor")
		}
		if _, ok := l.maps[m.Descendant]; ok {
			continue
		}
		l.maps[m.Descendant] = m
		l.descendants = append(l.descendants, m.Descendant)
	}
	return l, nil
}

// Ancestor returns the common ancestral genome.
func (l *MapLateral) Ancestor() hog.Genome { return l.ancestor }

// Descendants returns the compared genomes in insertion order.
func (l *MapLateral) Descendants() []hog.Genome { return l.descendants }

// Map returns the HOGsMap of one descendant, or nil.
func (l *MapLateral) Map(g hog.Genome) *HOGsMap { return l.maps[g] }

func (l *MapLateral) index() {
	if l.indexed {
		return
	}
	l.retained = make(map[*hog.HOG]map[hog.Genome]hog.AbstractGene)
	l.duplicated = make(map[*hog.HOG]map[hog.Genome][]hog.AbstractGene)
	l.lost = make(map[*hog.HOG][]hog.Genome)
	l.gained = make(map[hog.Genome][]hog.AbstractGene)

	for _, g := range l.descendants {
		m := l.maps[g]
		for h, c := range m.Retained {
			if l.retained[h] == nil {
				l.retained[h] = make(map[hog.Genome]hog.AbstractGene)
			}
			l.retained[h][g] = c
		}
		for h, cs := range m.Duplicate {
			if l.duplicated[h] == nil {
				l.duplicated[h] = make(map[hog.Genome][]hog.AbstractGene)
			}
			l.duplicated[h][g] = cs
		}
		for _, h := range m.Loss {
			l.lost[h] = append(l.lost[h], g)
		}
		if len(m.Gain) > 0 {
			l.gained[g] = m.Gain
		}
	}
	l.indexed = true
}

// Retained maps ancestral genes to their single copy in each genome.
func (l *MapLateral) Retained() map[*hog.HOG]map[hog.Genome]hog.AbstractGene {
	l.index()
	return l.retained
}

// Duplicated maps ancestral genes to their copies in each genome.
func (l *MapLateral) Duplicated() map[*hog.HOG]map[hog.Genome][]hog.AbstractGene {
	l.index()
	return l.duplicated
}

// Lost maps ancestral genes to the genomes that lost them.
func (l *MapLateral) Lost() map[*hog.HOG][]hog.Genome {
	l.index()
	return l.lost
}

// Gained maps each genome to its genes without ancestor.
func (l *MapLateral) Gained() map[hog.Genome][]hog.AbstractGene {
	l.index()
	return l.gained
}
