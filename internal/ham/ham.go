// Package ham builds a gene hierarchy from a species tree and an OrthoXML
// record stream and answers evolutionary queries on it.
package ham

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/inodb/vibe-ham/internal/hog"
	"github.com/inodb/vibe-ham/internal/mapper"
	"github.com/inodb/vibe-ham/internal/orthoxml"
	"github.com/inodb/vibe-ham/internal/profile"
	"github.com/inodb/vibe-ham/internal/taxonomy"
)

// Options configures a build.
type Options struct {
	// UseInternalNames keeps internal node labels of the species tree (Load only).
	UseInternalNames bool
	// Query restricts Load to the families it selects; nil or empty builds everything.
	Query *Filter
	// Retain restricts Build to records kept by a previous filter prepass.
	Retain *FilterResult
	// Logger receives build progress; nil disables logging.
	Logger *zap.Logger
}

type genomePair [2]*taxonomy.Node

// Ham is one analysis session over a built hierarchy. It is not safe for
// concurrent use.
type Ham struct {
	tree   *taxonomy.Tree
	reg    *hog.Registry
	logger *zap.Logger

	topLevel []*hog.HOG
	hogs     map[string]*hog.HOG
	genes    map[string]*hog.Gene
	xrefs    map[string][]*hog.Gene

	maps map[genomePair]*mapper.HOGsMap
}

// Build consumes src and returns the session over the resulting hierarchy.
func Build(tree *taxonomy.Tree, src orthoxml.EventSource, opts Options) (*Ham, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := hog.NewRegistry(tree)
	b := NewBuilder(reg, opts.Retain)
	b.SetLogger(logger)
	if err := b.Run(src); err != nil {
		return nil, err
	}

	top := append([]*hog.HOG(nil), b.TopLevel()...)
	sort.SliceStable(top, func(i, j int) bool { return lessID(top[i].ID, top[j].ID) })

	return &Ham{
		tree:     tree,
		reg:      reg,
		logger:   logger,
		topLevel: top,
		hogs:     b.HOGs(),
		genes:    b.Genes(),
		xrefs:    b.XRefs(),
		maps:     make(map[genomePair]*mapper.HOGsMap),
	}, nil
}

// lessID orders numeric ids numerically and everything else lexically.
func lessID(a, b string) bool {
	if len(a) != len(b) && isDigits(a) && isDigits(b) {
		return len(a) < len(b)
	}
	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Tree returns the species tree.
func (h *Ham) Tree() *taxonomy.Tree { return h.tree }

// Registry returns the genome registry.
func (h *Ham) Registry() *hog.Registry { return h.reg }

// HOGByID returns the HOG carrying id.
func (h *Ham) HOGByID(id string) (*hog.HOG, error) {
	x, ok := h.hogs[id]
	if !ok {
		return nil, fmt.Errorf("hog %s: %w", id, hog.ErrNotFound)
	}
	return x, nil
}

// GeneByID returns the gene with the given unique id.
func (h *Ham) GeneByID(id string) (*hog.Gene, error) {
	g, ok := h.genes[id]
	if !ok {
		return nil, fmt.Errorf("gene %s: %w", id, hog.ErrNotFound)
	}
	return g, nil
}

// GenesByExternalID returns every gene carrying the external id.
func (h *Ham) GenesByExternalID(id string) ([]*hog.Gene, error) {
	genes, ok := h.xrefs[id]
	if !ok {
		return nil, fmt.Errorf("external id %s: %w", id, hog.ErrNotFound)
	}
	return genes, nil
}

// HOGByGene returns the family of g: its top-level HOG, or g itself for singletons.
func (h *Ham) HOGByGene(g *hog.Gene) hog.AbstractGene {
	return hog.TopLevel(g)
}

// TopLevelHOGs returns the families sorted by id.
func (h *Ham) TopLevelHOGs() []*hog.HOG { return h.topLevel }

// ExtantGenes returns every gene, grouped by genome in species tree order.
func (h *Ham) ExtantGenes() []*hog.Gene {
	var out []*hog.Gene
	for _, g := range h.reg.ExtantGenomes() {
		out = append(out, g.ExtantGenes()...)
	}
	return out
}

// ExtantGenomes returns the genomes of species with at least one gene.
func (h *Ham) ExtantGenomes() []*hog.ExtantGenome { return h.reg.ExtantGenomes() }

// AncestralGenomes returns the genomes of ancestral levels holding HOGs.
func (h *Ham) AncestralGenomes() []*hog.AncestralGenome {
	var out []*hog.AncestralGenome
	for _, g := range h.reg.AncestralGenomes() {
		if len(g.HOGs()) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// TaxonByName returns the species tree node called name.
func (h *Ham) TaxonByName(name string) (*taxonomy.Node, error) {
	return h.tree.Node(name)
}

// ExtantGenomeByName returns the genome of the species called name.
func (h *Ham) ExtantGenomeByName(name string) (*hog.ExtantGenome, error) {
	n, err := h.tree.Node(name)
	if err != nil {
		return nil, err
	}
	if g, ok := h.reg.Lookup(n).(*hog.ExtantGenome); ok {
		return g, nil
	}
	return nil, fmt.Errorf("extant genome %s: %w", name, hog.ErrNotFound)
}

// AncestralGenomeByName returns the genome of the ancestral level called name.
func (h *Ham) AncestralGenomeByName(name string) (*hog.AncestralGenome, error) {
	n, err := h.tree.Node(name)
	if err != nil {
		return nil, err
	}
	return h.AncestralGenomeByTaxon(n)
}

// AncestralGenomeByTaxon returns the genome of an internal node.
func (h *Ham) AncestralGenomeByTaxon(n *taxonomy.Node) (*hog.AncestralGenome, error) {
	if g, ok := h.reg.Lookup(n).(*hog.AncestralGenome); ok {
		return g, nil
	}
	return nil, fmt.Errorf("ancestral genome %s: %w", n.Name, hog.ErrNotFound)
}

// GenomeByName returns the extant or ancestral genome called name.
func (h *Ham) GenomeByName(name string) (hog.Genome, error) {
	n, err := h.tree.Node(name)
	if err != nil {
		return nil, err
	}
	if g := h.reg.Lookup(n); g != nil {
		return g, nil
	}
	return nil, fmt.Errorf("genome %s: %w", name, hog.ErrNotFound)
}

// MRCAGenome returns the ancestral genome at the most recent common ancestor
// of at least two genomes. The genome is created if no HOG lives there.
func (h *Ham) MRCAGenome(genomes ...hog.Genome) (*hog.AncestralGenome, error) {
	if len(genomes) < 2 {
		return nil, errors.New("mrca genome: at least two genomes are needed")
	}
	n, err := h.reg.CommonAncestor(genomes...)
	if err != nil {
		return nil, fmt.Errorf("mrca genome: %w", err)
	}
	g, err := h.reg.AncestralGenome(n)
	if err != nil {
		return nil, fmt.Errorf("mrca genome: %w", err)
	}
	return g, nil
}

// HOGsMap returns the mapping of two genomes on one lineage. Results are
// cached per unordered pair.
func (h *Ham) HOGsMap(g1, g2 hog.Genome) (*mapper.HOGsMap, error) {
	if g1 == nil || g2 == nil {
		return nil, errors.New("hogs map: nil genome")
	}
	if m, ok := h.maps[genomePair{g1.Taxon(), g2.Taxon()}]; ok {
		return m, nil
	}
	m, err := mapper.NewHOGsMap(h.reg, g1, g2, h.logger)
	if err != nil {
		return nil, err
	}
	// both orders point at the same result
	h.maps[genomePair{g1.Taxon(), g2.Taxon()}] = m
	h.maps[genomePair{g2.Taxon(), g1.Taxon()}] = m
	return m, nil
}

// CompareVertical maps a descendant genome against one of its ancestors.
func (h *Ham) CompareVertical(g1, g2 hog.Genome) (*mapper.MapVertical, error) {
	m, err := h.HOGsMap(g1, g2)
	if err != nil {
		return nil, fmt.Errorf("compare vertical: %w", err)
	}
	return mapper.NewMapVertical(m), nil
}

// CompareLateral maps several genomes against their most recent common
// ancestor. A genome that is itself the ancestor is not compared.
func (h *Ham) CompareLateral(genomes ...hog.Genome) (*mapper.MapLateral, error) {
	anc, err := h.MRCAGenome(genomes...)
	if err != nil {
		return nil, fmt.Errorf("compare lateral: %w", err)
	}
	var maps []*mapper.HOGsMap
	for _, g := range genomes {
		if g == hog.Genome(anc) {
			continue
		}
		m, err := h.HOGsMap(anc, g)
		if err != nil {
			return nil, fmt.Errorf("compare lateral: %w", err)
		}
		maps = append(maps, m)
	}
	if len(maps) == 0 {
		return nil, errors.New("compare lateral: no genome below the common ancestor")
	}
	return mapper.NewMapLateral(maps...)
}

// TreeProfile counts genes and evolutionary events per taxonomy level, over
// the whole hierarchy or, when root is not nil, below one HOG.
func (h *Ham) TreeProfile(root *hog.HOG) (*profile.Profile, error) {
	if root == nil {
		return profile.Whole(h.reg, h)
	}
	return profile.OfHOG(h.reg, root)
}

// ASCIITaxonomy renders the species tree.
func (h *Ham) ASCIITaxonomy() string { return h.tree.ASCII() }
