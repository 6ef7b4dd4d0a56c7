// Package profile summarizes a gene hierarchy per taxonomy level: how many
// genes each level holds and how many were retained, duplicated, lost or
// gained on the branch leading to it.
package profile

import (
	"fmt"

	"github.com/inodb/vibe-ham/internal/hog"
	"github.com/inodb/vibe-ham/internal/mapper"
	"github.com/inodb/vibe-ham/internal/taxonomy"
)

// MapSource provides the mapping between a genome and its parent genome.
type MapSource interface {
	HOGsMap(g1, g2 hog.Genome) (*mapper.HOGsMap, error)
}

// Row holds the counts of one taxonomy level.
type Row struct {
	Taxon      *taxonomy.Node
	Genes      int
	Retained   int
	Duplicated int
	Lost       int
	Gained     int

	HasEvents bool // false for the profile root and for levels without genome
	HasGain   bool // gains are only known for whole-hierarchy profiles
}

// Profile is a per-level summary in species tree pre-order.
type Profile struct {
	Root *taxonomy.Node
	HOG  *hog.HOG // nil for a whole-hierarchy profile
	Rows []*Row

	byTaxon map[*taxonomy.Node]*Row
}

// Row returns the counts of taxon n, or nil if n is outside the profile.
func (p *Profile) Row(n *taxonomy.Node) *Row { return p.byTaxon[n] }

func newProfile(root *taxonomy.Node, h *hog.HOG) *Profile {
	return &Profile{Root: root, HOG: h, byTaxon: make(map[*taxonomy.Node]*Row)}
}

func (p *Profile) add(r *Row) {
	p.Rows = append(p.Rows, r)
	p.byTaxon[r.Taxon] = r
}

// Whole profiles every level of the species tree. Events on the branch into
// a level come from mapping the level's genome against its parent's genome.
func Whole(reg *hog.Registry, maps MapSource) (*Profile, error) {
	tree := reg.Tree()
	p := newProfile(tree.Root(), nil)

	for _, n := range tree.Nodes() {
		r := &Row{Taxon: n}
		g := reg.Lookup(n)
		if g != nil {
			r.Genes = len(g.Genes())
		}
		if !n.IsRoot() && g != nil {
			if pg := reg.Lookup(n.Parent); pg != nil {
				m, err := maps.HOGsMap(pg, g)
				if err != nil {
					return nil, fmt.Errorf("profile %s: %w", n.Name, err)
				}
				r.HasEvents, r.HasGain = true, true
				r.Retained = len(m.Retained)
				for _, copies := range m.Duplicate {
					r.Duplicated += len(copies)
				}
				r.Lost = len(m.Loss)
				r.Gained = len(m.Gain)
			}
		}
		p.add(r)
	}
	return p, nil
}

// OfHOG profiles the levels below one HOG. Counts only include the HOG's
// descendants; gains are not defined inside a single family.
func OfHOG(reg *hog.Registry, h *hog.HOG) (*Profile, error) {
	if h == nil || h.AncestralGenome() == nil {
		return nil, fmt.Errorf("profile hog: %w", hog.ErrInvalidChild)
	}
	root := h.AncestralGenome().Taxon()
	p := newProfile(root, h)

	members := make(map[*taxonomy.Node][]hog.AbstractGene)
	hog.Visit(h, hog.Visitor{
		Leaf: func(g *hog.Gene) {
			t := g.Genome().Taxon()
			members[t] = append(members[t], g)
		},
		Pre: func(x *hog.HOG) {
			t := x.Genome().Taxon()
			members[t] = append(members[t], x)
		},
	})

	var walk func(n *taxonomy.Node)
	walk = func(n *taxonomy.Node) {
		r := &Row{Taxon: n, Genes: len(members[n])}
		if n != root {
			r.HasEvents = true
			for _, m := range members[n] {
				if m.AroseByDuplication() != nil {
					r.Duplicated++
				}
			}
			r.Retained = r.Genes - r.Duplicated
			for _, pm := range members[n.Parent] {
				if ph, ok := pm.(*hog.HOG); ok && !hasChildAt(ph, n) {
					r.Lost++
				}
			}
		}
		p.add(r)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return p, nil
}

func hasChildAt(h *hog.HOG, n *taxonomy.Node) bool {
	for _, c := range h.Children() {
		if c.Genome().Taxon() == n {
			return true
		}
	}
	return false
}
