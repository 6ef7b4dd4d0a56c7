package ham

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/vibe-ham/internal/orthoxml"
)

// Filter selects the families of interest before a build. Queries name
// top-level HOG ids, internal gene ids or external gene ids; a family is kept
// when any of its genes or its own id is queried.
type Filter struct {
	hogIDs  map[string]bool
	geneIDs map[string]bool
	xrefs   map[string]bool
	logger  *zap.Logger
}

// FilterResult holds the ids a Builder keeps.
type FilterResult struct {
	HOGs  map[string]bool // retained top-level HOG ids
	Genes map[string]bool // retained internal gene ids

	families map[int]bool // retained top-level groups by stream position
}

// RetainsHOG reports whether the top-level HOG id is kept.
func (r *FilterResult) RetainsHOG(id string) bool { return r.HOGs[id] }

// RetainsFamily reports whether the n-th top-level group of the stream, with
// the given id, is kept. Results built by hand only know ids.
func (r *FilterResult) RetainsFamily(n int, id string) bool {
	if r.families != nil {
		return r.families[n]
	}
	return r.HOGs[id]
}

// RetainsGene reports whether the internal gene id is kept.
func (r *FilterResult) RetainsGene(id string) bool { return r.Genes[id] }

// NewFilter creates a filter with no queries.
func NewFilter() *Filter {
	return &Filter{
		hogIDs:  make(map[string]bool),
		geneIDs: make(map[string]bool),
		xrefs:   make(map[string]bool),
		logger:  zap.NewNop(),
	}
}

// SetLogger sets the logger for the prepass.
func (f *Filter) SetLogger(logger *zap.Logger) {
	f.logger = logger
}

// AddHOGs queries top-level HOGs by id.
func (f *Filter) AddHOGs(ids ...string) {
	for _, id := range ids {
		f.hogIDs[id] = true
	}
}

// AddGenes queries genes by internal id.
func (f *Filter) AddGenes(ids ...string) {
	for _, id := range ids {
		f.geneIDs[id] = true
	}
}

// AddXRefs queries genes by external id.
func (f *Filter) AddXRefs(ids ...string) {
	for _, id := range ids {
		f.xrefs[id] = true
	}
}

// Empty reports whether no query was added.
func (f *Filter) Empty() bool {
	return len(f.hogIDs) == 0 && len(f.geneIDs) == 0 && len(f.xrefs) == 0
}

// Build scans src once and returns the ids to keep.
func (f *Filter) Build(src orthoxml.EventSource) (*FilterResult, error) {
	res := &FilterResult{
		HOGs:     make(map[string]bool),
		Genes:    make(map[string]bool),
		families: make(map[int]bool),
	}

	queried := make(map[string]bool, len(f.geneIDs))
	for id := range f.geneIDs {
		queried[id] = true
	}

	var (
		depth    int
		families int
		family   string
		matched  bool
		members  []string
	)
	for {
		ev, err := src.Next()
		if err != nil {
			return nil, fmt.Errorf("filter record stream: %w", err)
		}
		if ev == nil {
			break
		}

		switch ev.Kind {
		case orthoxml.GeneRecord:
			if queried[ev.ID] {
				continue
			}
			for _, x := range []string{ev.GeneID, ev.ProtID, ev.TranscriptID} {
				if x != "" && f.xrefs[x] {
					queried[ev.ID] = true
				}
			}
		case orthoxml.GroupStart:
			if depth == 0 {
				family, matched, members = ev.ID, f.hogIDs[ev.ID], members[:0]
				families++
			}
			depth++
		case orthoxml.GeneRef:
			if depth == 0 {
				continue
			}
			members = append(members, ev.ID)
			if queried[ev.ID] {
				matched = true
			}
		case orthoxml.GroupEnd:
			depth--
			if depth != 0 || !matched {
				continue
			}
			res.families[families-1] = true
			if family != "" {
				res.HOGs[family] = true
			}
			for _, id := range members {
				res.Genes[id] = true
			}
		}
	}

	// queried genes are kept even when they belong to no family
	for id := range queried {
		res.Genes[id] = true
	}
	f.logger.Info("filter prepass done",
		zap.Int("families", len(res.HOGs)),
		zap.Int("genes", len(res.Genes)))
	return res, nil
}
