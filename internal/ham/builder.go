package ham

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/inodb/vibe-ham/internal/hog"
	"github.com/inodb/vibe-ham/internal/orthoxml"
	"github.com/inodb/vibe-ham/internal/taxonomy"
)

// familyReportInterval is how often the number of parsed families is logged.
const familyReportInterval = 500

// BuildError reports a record stream that cannot be turned into a hierarchy.
type BuildError struct {
	Event   string // Event being processed
	Line    int    // Line of the event in the input, 0 if unknown
	Message string
}

func (e *BuildError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("build error at line %d (%s): %s", e.Line, e.Event, e.Message)
	}
	return fmt.Sprintf("build error (%s): %s", e.Event, e.Message)
}

// frame is an open group on the builder stack.
type frame struct {
	hog     *hog.HOG
	pending []*paralogMarker // closed paralog groups waiting for the group's genome
}

// paralogMarker is an open or pending paralog group.
type paralogMarker struct {
	depth int // stack size when the paralog group opened
	dup   *hog.DuplicationNode
	outer *hog.DuplicationNode // enclosing paralog group opened at the same depth
}

type species struct {
	name   string
	taxID  string
	genome *hog.ExtantGenome
	genes  int
}

// Builder turns a stream of structural events into a gene hierarchy anchored
// on the genomes of a Registry. A Builder runs once.
type Builder struct {
	reg    *hog.Registry
	retain *FilterResult
	logger *zap.Logger

	ev       *orthoxml.Event
	species  *species
	stack    []*frame
	paralogs []*paralogMarker
	skip     int // depth inside a top-level group excluded by the filter
	families int // top-level groups seen, kept or not

	genes    map[string]*hog.Gene
	xrefs    map[string][]*hog.Gene
	hogs     map[string]*hog.HOG
	topLevel []*hog.HOG
}

// NewBuilder creates a builder. A nil retain builds every record.
func NewBuilder(reg *hog.Registry, retain *FilterResult) *Builder {
	return &Builder{
		reg:    reg,
		retain: retain,
		logger: zap.NewNop(),
		genes:  make(map[string]*hog.Gene),
		xrefs:  make(map[string][]*hog.Gene),
		hogs:   make(map[string]*hog.HOG),
	}
}

// SetLogger sets the logger for build progress.
func (b *Builder) SetLogger(logger *zap.Logger) {
	b.logger = logger
}

// Genes returns the created genes keyed by unique id.
func (b *Builder) Genes() map[string]*hog.Gene { return b.genes }

// XRefs returns the created genes keyed by external id.
func (b *Builder) XRefs() map[string][]*hog.Gene { return b.xrefs }

// HOGs returns the HOGs that carry an id, keyed by id.
func (b *Builder) HOGs() map[string]*hog.HOG { return b.hogs }

// TopLevel returns the completed families in stream order.
func (b *Builder) TopLevel() []*hog.HOG { return b.topLevel }

// Run consumes src to the end. The first error aborts the pass.
func (b *Builder) Run(src orthoxml.EventSource) error {
	for {
		ev, err := src.Next()
		if err != nil {
			return fmt.Errorf("read record stream: %w", err)
		}
		if ev == nil {
			break
		}
		b.ev = ev
		if err := b.handle(ev); err != nil {
			return err
		}
	}
	b.ev = nil

	switch {
	case b.species != nil:
		return b.errorf("species %s is never closed", b.species.name)
	case len(b.paralogs) > 0:
		return b.errorf("%d paralog groups are never closed", len(b.paralogs))
	case len(b.stack) > 0:
		return b.errorf("%d groups are never closed", len(b.stack))
	}
	b.logger.Info("hierarchy built",
		zap.Int("families", len(b.topLevel)),
		zap.Int("genes", len(b.genes)))
	return nil
}

func (b *Builder) errorf(format string, args ...any) error {
	e := &BuildError{Event: "end of stream", Message: fmt.Sprintf(format, args...)}
	if b.ev != nil {
		e.Event = b.ev.String()
		e.Line = b.ev.Line
	}
	return e
}

func (b *Builder) handle(ev *orthoxml.Event) error {
	if b.skip > 0 {
		switch ev.Kind {
		case orthoxml.GroupStart:
			b.skip++
		case orthoxml.GroupEnd:
			b.skip--
		}
		return nil
	}

	switch ev.Kind {
	case orthoxml.SpeciesStart:
		return b.startSpecies(ev)
	case orthoxml.SpeciesEnd:
		return b.endSpecies()
	case orthoxml.GeneRecord:
		return b.geneRecord(ev)
	case orthoxml.GeneRef:
		return b.geneRef(ev)
	case orthoxml.GroupStart:
		return b.startGroup(ev)
	case orthoxml.GroupEnd:
		return b.endGroup()
	case orthoxml.ParalogStart:
		return b.startParalog()
	case orthoxml.ParalogEnd:
		return b.endParalog()
	case orthoxml.Property:
		if h := b.annotated(); h != nil {
			h.SetProperty(ev.Name, ev.Value)
		}
	case orthoxml.Score:
		if h := b.annotated(); h != nil {
			h.SetScore(ev.ID, ev.ScoreValue)
		}
	}
	return nil
}

func (b *Builder) startSpecies(ev *orthoxml.Event) error {
	if b.species != nil {
		return b.errorf("species %s opened inside species %s", ev.Name, b.species.name)
	}
	if _, err := b.reg.Tree().Node(ev.Name); err != nil {
		return fmt.Errorf("resolve species %s: %w", ev.Name, err)
	}
	b.species = &species{name: ev.Name, taxID: ev.TaxID}
	return nil
}

func (b *Builder) endSpecies() error {
	if b.species == nil {
		return b.errorf("species closed but never opened")
	}
	b.logger.Info("species created",
		zap.String("species", b.species.name),
		zap.Int("genes", b.species.genes))
	b.species = nil
	return nil
}

func (b *Builder) geneRecord(ev *orthoxml.Event) error {
	if b.species == nil {
		return b.errorf("gene %s outside of a species block", ev.ID)
	}
	if b.retain != nil && !b.retain.RetainsGene(ev.ID) {
		return nil
	}
	if _, ok := b.genes[ev.ID]; ok {
		return b.errorf("gene id %s is not unique", ev.ID)
	}

	sp := b.species
	if sp.genome == nil {
		g, err := b.reg.ExtantGenome(sp.name, sp.taxID)
		if err != nil {
			return fmt.Errorf("create genome %s: %w", sp.name, err)
		}
		sp.genome = g
	}

	g := &hog.Gene{
		ID:           ev.ID,
		GeneID:       ev.GeneID,
		ProtID:       ev.ProtID,
		TranscriptID: ev.TranscriptID,
		Extra:        ev.Extra,
	}
	if err := g.SetGenome(sp.genome); err != nil {
		return err
	}
	b.genes[g.ID] = g
	for _, id := range g.ExternalIDs() {
		b.xrefs[id] = append(b.xrefs[id], g)
	}
	sp.genes++
	return nil
}

func (b *Builder) geneRef(ev *orthoxml.Event) error {
	top := b.top()
	if top == nil {
		return b.errorf("gene reference %s outside of a group", ev.ID)
	}
	g, ok := b.genes[ev.ID]
	if !ok {
		if b.retain != nil {
			return nil
		}
		return b.errorf("unknown gene %s", ev.ID)
	}
	if g.Parent() != nil {
		return b.errorf("gene %s is referenced by two groups", ev.ID)
	}
	if err := top.hog.AddChild(g); err != nil {
		return err
	}
	return b.joinParalog(g)
}

func (b *Builder) startGroup(ev *orthoxml.Event) error {
	top := b.top()
	if top == nil {
		b.families++
		if b.retain != nil && !b.retain.RetainsFamily(b.families-1, ev.ID) {
			b.skip = 1
			return nil
		}
	}

	h := hog.NewHOG(ev.ID)
	if top != nil {
		if err := top.hog.AddChild(h); err != nil {
			return err
		}
		if err := b.joinParalog(h); err != nil {
			return err
		}
	}
	if ev.ID != "" {
		_, seen := b.hogs[ev.ID]
		switch {
		case !seen:
			b.hogs[ev.ID] = h
		case top == nil:
			return b.errorf("family id %s is not unique", ev.ID)
		}
	}
	b.stack = append(b.stack, &frame{hog: h})
	return nil
}

func (b *Builder) endGroup() error {
	f := b.top()
	if f == nil {
		return b.errorf("group closed but never opened")
	}
	if b.openParalog() != nil {
		return b.errorf("group closed inside an open paralog group")
	}
	b.stack = b.stack[:len(b.stack)-1]
	parent := b.top()

	if err := b.closeGroup(f, parent); err != nil {
		return err
	}
	if parent == nil {
		b.topLevel = append(b.topLevel, f.hog)
		if n := len(b.topLevel); n%familyReportInterval == 0 {
			b.logger.Info("families parsed", zap.Int("families", n))
		}
	}
	return nil
}

func (b *Builder) startParalog() error {
	if b.top() == nil {
		return b.errorf("paralog group outside of a group")
	}
	m := &paralogMarker{depth: len(b.stack), dup: hog.NewDuplicationNode()}
	if outer := b.openParalog(); outer != nil {
		m.outer = outer.dup
	}
	b.paralogs = append(b.paralogs, m)
	return nil
}

func (b *Builder) endParalog() error {
	if len(b.paralogs) == 0 {
		return b.errorf("paralog group closed but never opened")
	}
	m := b.paralogs[len(b.paralogs)-1]
	if m.depth != len(b.stack) {
		return b.errorf("paralog group closed at the wrong nesting depth")
	}
	b.paralogs = b.paralogs[:len(b.paralogs)-1]
	top := b.top()
	top.pending = append(top.pending, m)
	return nil
}

func (b *Builder) top() *frame {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

// openParalog returns the innermost paralog group if it is opened directly
// inside the current group.
func (b *Builder) openParalog() *paralogMarker {
	if len(b.paralogs) == 0 {
		return nil
	}
	m := b.paralogs[len(b.paralogs)-1]
	if m.depth != len(b.stack) {
		return nil
	}
	return m
}

// annotated returns the HOG a property or score applies to: the innermost
// group, unless a paralog group was opened inside it.
func (b *Builder) annotated() *hog.HOG {
	top := b.top()
	if top == nil || b.openParalog() != nil {
		return nil
	}
	return top.hog
}

func (b *Builder) joinParalog(c hog.AbstractGene) error {
	if m := b.openParalog(); m != nil {
		return m.dup.AddChild(c)
	}
	return nil
}

// closeGroup resolves the genome of a closed group. parent is nil for families.
func (b *Builder) closeGroup(f *frame, parent *frame) error {
	h := f.hog
	children := h.Children()
	if len(children) == 0 {
		return b.errorf("group %s has no children", h)
	}

	genomes := make([]hog.Genome, len(children))
	for i, c := range children {
		genomes[i] = c.Genome()
	}
	mrca, err := b.reg.CommonAncestor(genomes...)
	if err != nil {
		return fmt.Errorf("resolve genome of %s: %w", h, err)
	}

	if childAtLevel(children, mrca) {
		if parent != nil && h.AroseByDuplication() == nil &&
			(h.TaxRange() == "" || h.TaxRange() == mrca.Name) {
			b.collapse(f, parent)
			return nil
		}
		if mrca.IsRoot() {
			return b.errorf("group %s cannot be placed above the root %s", h, mrca.Name)
		}
		b.logger.Debug("group lifted above its children",
			zap.String("hog", h.ID),
			zap.String("children_level", mrca.Name),
			zap.String("level", mrca.Parent.Name))
		mrca = mrca.Parent
	}

	genome, err := b.reg.AncestralGenome(mrca)
	if err != nil {
		return fmt.Errorf("resolve genome of %s: %w", h, err)
	}
	if err := h.SetGenome(genome); err != nil {
		return err
	}

	for _, m := range f.pending {
		if err := b.finalizeDuplication(h, m); err != nil {
			return err
		}
	}
	return b.fillMissingLevels(h)
}

func childAtLevel(children []hog.AbstractGene, n *taxonomy.Node) bool {
	for _, c := range children {
		if c.Genome().Taxon() == n {
			return true
		}
	}
	return false
}

// collapse hands the children of a redundant group to the enclosing group.
func (b *Builder) collapse(f *frame, parent *frame) {
	h := f.hog
	kids := append([]hog.AbstractGene(nil), h.Children()...)
	for _, c := range kids {
		// AddChild only fails on nil or self children, neither possible here.
		_ = parent.hog.AddChild(c)
	}
	parent.hog.RemoveChild(h)
	parent.pending = append(parent.pending, f.pending...)
	b.logger.Debug("group collapsed into enclosing group",
		zap.String("hog", h.ID),
		zap.Int("children", len(kids)))
	if h.ID != "" && b.hogs[h.ID] == h {
		b.hogs[h.ID] = parent.hog
		b.logger.Debug("collapsed group id now resolves to the enclosing group",
			zap.String("hog", h.ID),
			zap.String("resolves_to", hog.Label(parent.hog)))
	}
}

// finalizeDuplication roots a closed paralog group under h, or under a new
// HOG between h and the paralogs when the duplication happened below h.
func (b *Builder) finalizeDuplication(h *hog.HOG, m *paralogMarker) error {
	d := m.dup
	kids := append([]hog.AbstractGene(nil), d.Children()...)
	if len(kids) == 0 {
		return nil
	}

	genomes := make([]hog.Genome, len(kids))
	for i, c := range kids {
		genomes[i] = c.Genome()
	}
	common, err := b.reg.CommonAncestor(genomes...)
	if err != nil {
		return fmt.Errorf("resolve duplication of %s: %w", h, err)
	}

	level := h.AncestralGenome()
	if common == level.Taxon() || common.Parent == level.Taxon() {
		d.SetMRCA(level)
		return d.SetParent(h)
	}
	if !b.reg.Tree().IsAncestor(level.Taxon(), common.Parent) {
		return b.errorf("duplication below %s resolves to unrelated level %s", h, common.Parent.Name)
	}

	genome, err := b.reg.AncestralGenome(common.Parent)
	if err != nil {
		return fmt.Errorf("resolve duplication of %s: %w", h, err)
	}
	x := hog.NewHOG("")
	if err := x.SetGenome(genome); err != nil {
		return err
	}
	for _, c := range kids {
		if err := x.AddChild(c); err != nil {
			return err
		}
	}
	if err := h.AddChild(x); err != nil {
		return err
	}
	d.SetMRCA(genome)
	if err := d.SetParent(x); err != nil {
		return err
	}
	if m.outer != nil {
		if err := m.outer.AddChild(x); err != nil {
			return err
		}
	}
	b.logger.Debug("duplication level synthesized",
		zap.String("hog", h.ID),
		zap.String("level", genome.Name()),
		zap.Int("paralogs", len(kids)))
	return b.fillMissingLevels(x)
}

// fillMissingLevels inserts one synthetic HOG per taxonomy level skipped
// between h and each of its children.
func (b *Builder) fillMissingLevels(h *hog.HOG) error {
	level := h.AncestralGenome().Taxon()
	kids := append([]hog.AbstractGene(nil), h.Children()...)
	for _, c := range kids {
		taxon := c.Genome().Taxon()
		if taxon.Parent == level {
			continue
		}
		if !b.reg.Tree().IsAncestor(level, taxon) {
			return b.errorf("%s at %s cannot hold a child at %s", h, level.Name, taxon.Name)
		}

		dup := c.AroseByDuplication()
		h.RemoveChild(c)
		head := c
		for _, n := range b.reg.PathBetween(taxon, level) {
			if head.Genome().Taxon().Parent != n {
				return b.errorf("level %s is not the parent of %s", n.Name, head.Genome().Name())
			}
			genome, err := b.reg.AncestralGenome(n)
			if err != nil {
				return err
			}
			s := hog.NewHOG("")
			if err := s.SetGenome(genome); err != nil {
				return err
			}
			if err := s.AddChild(head); err != nil {
				return err
			}
			head = s
		}
		if head.Genome().Taxon().Parent != level {
			return b.errorf("missing levels between %s and %s do not resolve to one edge", level.Name, taxon.Name)
		}
		if err := h.AddChild(head); err != nil {
			return err
		}
		if dup != nil {
			dup.RemoveChild(c)
			if err := dup.AddChild(head); err != nil {
				return err
			}
		}
		b.logger.Debug("missing levels synthesized",
			zap.String("hog", h.ID),
			zap.String("from", level.Name),
			zap.String("to", taxon.Name))
	}
	return nil
}
