package ham

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/inodb/vibe-ham/internal/hog"
	"github.com/inodb/vibe-ham/internal/orthoxml"
	"github.com/inodb/vibe-ham/internal/taxonomy"
)

const simpleTree = "(XENTR, (((HUMAN, PANTR)Primates, (MOUSE, RATNO)Rodents)Euarchontoglires, CANFA)Mammalia)Vertebrata;"

func findTestFile(t *testing.T, name string) string {
	t.Helper()

	paths := []string{
		filepath.Join("testdata", name),
		filepath.Join("..", "..", "testdata", name),
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	t.Fatalf("test file not found: %s", name)
	return ""
}

func loadFixture(t *testing.T, opts Options) *Ham {
	t.Helper()
	opts.UseInternalNames = true
	h, err := Load(findTestFile(t, "simpleEx.nwk"), findTestFile(t, "simpleEx.orthoxml"), opts)
	require.NoError(t, err)
	return h
}

func buildDoc(t *testing.T, doc string) (*Ham, error) {
	t.Helper()
	tree, err := taxonomy.Parse(simpleTree, taxonomy.Options{UseInternalNames: true})
	require.NoError(t, err)
	return Build(tree, orthoxml.NewReaderFromReader(strings.NewReader(doc)), Options{})
}

func buildDocWith(t *testing.T, doc string, opts Options) (*Ham, error) {
	t.Helper()
	tree, err := taxonomy.Parse(simpleTree, taxonomy.Options{UseInternalNames: true})
	require.NoError(t, err)
	return Build(tree, orthoxml.NewReaderFromReader(strings.NewReader(doc)), opts)
}

// species wraps gene records into an OrthoXML document header.
const speciesBlock = `
  <species name="HUMAN" NCBITaxId="9606"><database name="d"><genes>
    <gene id="1" protId="H1"/><gene id="2" protId="H2"/>
  </genes></database></species>
  <species name="PANTR" NCBITaxId="9598"><database name="d"><genes>
    <gene id="11"/><gene id="12"/>
  </genes></database></species>
  <species name="CANFA" NCBITaxId="9615"><database name="d"><genes>
    <gene id="21"/>
  </genes></database></species>
  <species name="XENTR" NCBITaxId="8364"><database name="d"><genes>
    <gene id="51"/>
  </genes></database></species>`

func doc(groups string) string {
	return `<orthoXML xmlns="http://orthoXML.org/2011/">` + speciesBlock +
		"<groups>" + groups + "</groups></orthoXML>"
}

func geneIDs(genes []*hog.Gene) []string {
	ids := make([]string, len(genes))
	for i, g := range genes {
		ids[i] = g.ID
	}
	sort.Strings(ids)
	return ids
}

func abstractIDs(genes []hog.AbstractGene) []string {
	var ids []string
	for _, g := range genes {
		ids = append(ids, g.(*hog.Gene).ID)
	}
	sort.Strings(ids)
	return ids
}

func genome(t *testing.T, h *Ham, name string) hog.Genome {
	t.Helper()
	g, err := h.GenomeByName(name)
	require.NoError(t, err)
	return g
}

// checkEdgeDistance asserts that every HOG sits exactly one taxonomic edge
// above each of its children.
func checkEdgeDistance(t *testing.T, h *Ham) {
	t.Helper()
	for _, top := range h.TopLevelHOGs() {
		hog.Visit(top, hog.Visitor{Pre: func(x *hog.HOG) {
			level := x.Genome().Taxon()
			for _, c := range x.Children() {
				ct := c.Genome().Taxon()
				assert.Same(t, level, ct.Parent, "%s -> %v", x, c)
				assert.Equal(t, level.Depth+1, ct.Depth)
			}
		}})
	}
}

func TestLoad_Counts(t *testing.T) {
	h := loadFixture(t, Options{})

	top := h.TopLevelHOGs()
	require.Len(t, top, 3)
	assert.Equal(t, "1", top[0].ID)
	assert.Equal(t, "2", top[1].ID)
	assert.Equal(t, "3", top[2].ID)

	assert.Len(t, h.ExtantGenes(), 19)
	assert.Len(t, h.ExtantGenomes(), 6)

	var levels []string
	for _, g := range h.AncestralGenomes() {
		levels = append(levels, g.Name())
	}
	assert.Equal(t, []string{"Vertebrata", "Mammalia", "Euarchontoglires", "Primates", "Rodents"}, levels)

	counts := map[string]int{}
	for _, g := range h.AncestralGenomes() {
		counts[g.Name()] = len(g.HOGs())
	}
	assert.Equal(t, map[string]int{
		"Vertebrata": 2, "Mammalia": 3, "Euarchontoglires": 4, "Primates": 4, "Rodents": 4,
	}, counts)

	checkEdgeDistance(t, h)
}

func TestLoad_RoundTripMembership(t *testing.T) {
	h := loadFixture(t, Options{})

	want := map[string][]string{
		"1": {"1", "11", "21", "31", "41", "51"},
		"2": {"12", "2", "22", "32"},
		"3": {"13", "14", "23", "3", "33", "34", "53"},
	}
	seen := map[string]string{}
	for _, top := range h.TopLevelHOGs() {
		got := geneIDs(top.DescendantGenes())
		assert.Equal(t, want[top.ID], got, "family %s", top.ID)
		for _, id := range got {
			prev, dup := seen[id]
			assert.False(t, dup, "gene %s in families %s and %s", id, prev, top.ID)
			seen[id] = top.ID

			g, err := h.GeneByID(id)
			require.NoError(t, err)
			assert.Same(t, top, h.HOGByGene(g))
		}
	}

	for _, id := range []string{"5", "43"} {
		g, err := h.GeneByID(id)
		require.NoError(t, err)
		assert.True(t, g.IsSingleton())
		assert.Same(t, g, h.HOGByGene(g))
	}
}

func TestLoad_Lookups(t *testing.T) {
	h := loadFixture(t, Options{})

	top, err := h.HOGByID("1")
	require.NoError(t, err)
	assert.Equal(t, "Vertebrata", top.Genome().Name())
	assert.Equal(t, "Vertebrata", top.TaxRange())
	score, ok := top.Score("CompletenessScore")
	assert.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-9)

	_, err = h.HOGByID("99")
	assert.ErrorIs(t, err, hog.ErrNotFound)

	g, err := h.GeneByID("31")
	require.NoError(t, err)
	assert.Equal(t, "MOUSE", g.Genome().Name())
	assert.Equal(t, "MOUSE1", g.ProtID)

	_, err = h.GeneByID("nope")
	assert.ErrorIs(t, err, hog.ErrNotFound)

	genes, err := h.GenesByExternalID("HUMANg2")
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, geneIDs(genes))

	_, err = h.GenesByExternalID("nope")
	assert.ErrorIs(t, err, hog.ErrNotFound)

	human, err := h.ExtantGenomeByName("HUMAN")
	require.NoError(t, err)
	assert.Equal(t, "9606", human.TaxID)
	assert.Equal(t, 4, human.NumberOfGenes(true))
	assert.Equal(t, 3, human.NumberOfGenes(false))

	_, err = h.ExtantGenomeByName("Primates")
	assert.ErrorIs(t, err, hog.ErrNotFound)
	_, err = h.AncestralGenomeByName("HUMAN")
	assert.ErrorIs(t, err, hog.ErrNotFound)
	_, err = h.AncestralGenomeByName("Plants")
	assert.ErrorIs(t, err, taxonomy.ErrNodeNotFound)

	rodents, err := h.TaxonByName("Rodents")
	require.NoError(t, err)
	anc, err := h.AncestralGenomeByTaxon(rodents)
	require.NoError(t, err)
	assert.Len(t, anc.HOGs(), 4)

	assert.Contains(t, h.ASCIITaxonomy(), "Euarchontoglires")
}

// sharedXRefDoc has external id "G" on two HUMAN genes and one PANTR gene,
// spread over two families.
const sharedXRefDoc = `<orthoXML xmlns="http://orthoXML.org/2011/">
  <species name="HUMAN" NCBITaxId="9606"><database name="d"><genes>
    <gene id="1" geneId="G"/><gene id="2" geneId="G" protId="G"/><gene id="3" protId="H3"/>
  </genes></database></species>
  <species name="PANTR" NCBITaxId="9598"><database name="d"><genes>
    <gene id="11" protId="G"/><gene id="12"/><gene id="13"/>
  </genes></database></species>
  <species name="CANFA" NCBITaxId="9615"><database name="d"><genes>
    <gene id="21"/>
  </genes></database></species>
  <groups>
    <orthologGroup id="A"><geneRef id="1"/><geneRef id="12"/></orthologGroup>
    <orthologGroup id="B"><geneRef id="2"/><geneRef id="11"/></orthologGroup>
    <orthologGroup id="C"><geneRef id="3"/><geneRef id="13"/><geneRef id="21"/></orthologGroup>
  </groups>
</orthoXML>`

func TestLookup_SharedExternalID(t *testing.T) {
	h, err := buildDoc(t, sharedXRefDoc)
	require.NoError(t, err)

	genes, err := h.GenesByExternalID("G")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2", "11"}, geneIDs(genes))

	species := map[string]bool{}
	for _, g := range genes {
		species[g.Genome().Name()] = true
	}
	assert.Equal(t, map[string]bool{"HUMAN": true, "PANTR": true}, species)
}

func TestFilter_SharedExternalID(t *testing.T) {
	f := NewFilter()
	f.AddXRefs("G")

	res, err := f.Build(orthoxml.NewReaderFromReader(strings.NewReader(sharedXRefDoc)))
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"A": true, "B": true}, res.HOGs)

	h, err := buildDocWith(t, sharedXRefDoc, Options{Retain: res})
	require.NoError(t, err)
	require.Len(t, h.TopLevelHOGs(), 2)
	assert.Equal(t, "A", h.TopLevelHOGs()[0].ID)
	assert.Equal(t, "B", h.TopLevelHOGs()[1].ID)
	assert.ElementsMatch(t, []string{"1", "12", "2", "11"}, geneIDs(h.ExtantGenes()))

	_, err = h.HOGByID("C")
	assert.ErrorIs(t, err, hog.ErrNotFound)
}

func TestLoad_DuplicationStructure(t *testing.T) {
	h := loadFixture(t, Options{})

	g33, err := h.GeneByID("33")
	require.NoError(t, err)
	m3, err := hog.AtLevel(g33, genome(t, h, "Mammalia"))
	require.NoError(t, err)

	// the redundant Euarchontoglires wrapper around the paralog group is
	// collapsed, so the duplication is rooted at the Mammalia HOG
	require.Len(t, m3.Duplications(), 1)
	d := m3.Duplications()[0]
	assert.Same(t, m3, d.Parent())
	assert.Equal(t, "Mammalia", d.MRCA().Name())
	require.Len(t, d.Children(), 2)
	for _, c := range d.Children() {
		assert.Equal(t, "Euarchontoglires", c.Genome().Name())
		assert.Same(t, m3, c.Parent())
	}
	assert.Len(t, m3.Children(), 3)

	g14, err := h.GeneByID("14")
	require.NoError(t, err)
	synth := g14.Parent()
	require.NotNil(t, synth)
	assert.Equal(t, "", synth.ID)
	assert.Equal(t, "Primates", synth.Genome().Name())
	assert.Same(t, d, synth.Parent().AroseByDuplication())

	g32, err := h.GeneByID("32")
	require.NoError(t, err)
	assert.Equal(t, "Rodents", g32.Parent().Genome().Name())
	assert.Nil(t, g32.Parent().AroseByDuplication())
}

func TestCompareVertical_MouseVertebrata(t *testing.T) {
	h := loadFixture(t, Options{})

	v, err := h.CompareVertical(genome(t, h, "MOUSE"), genome(t, h, "Vertebrata"))
	require.NoError(t, err)
	m := v.Map()
	assert.True(t, m.Consistent)

	fam1, err := h.HOGByID("1")
	require.NoError(t, err)
	fam3, err := h.HOGByID("3")
	require.NoError(t, err)

	assert.Empty(t, v.Lost())
	assert.Equal(t, []string{"32"}, abstractIDs(v.Gained()))
	require.Len(t, v.Retained(), 1)
	assert.Equal(t, "31", v.Retained()[fam1].(*hog.Gene).ID)
	require.Len(t, v.Duplicated(), 1)
	assert.Equal(t, []string{"33", "34"}, abstractIDs(v.Duplicated()[fam3]))
	assert.Equal(t, 1, m.NumberOfDuplications())
}

func TestCompareVertical_HumanVertebrata(t *testing.T) {
	h := loadFixture(t, Options{})

	v, err := h.CompareVertical(genome(t, h, "Vertebrata"), genome(t, h, "HUMAN"))
	require.NoError(t, err)
	assert.True(t, v.Map().Consistent)

	fam1, err := h.HOGByID("1")
	require.NoError(t, err)
	fam3, err := h.HOGByID("3")
	require.NoError(t, err)

	assert.Equal(t, "1", v.Retained()[fam1].(*hog.Gene).ID)
	assert.Equal(t, []string{"2", "5"}, abstractIDs(v.Gained()))
	assert.Equal(t, []string{"3"}, abstractIDs(v.Duplicated()[fam3]))
	assert.Empty(t, v.Lost())
}

func TestCompareVertical_AllPairsConsistent(t *testing.T) {
	h := loadFixture(t, Options{})

	var genomes []hog.Genome
	for _, g := range h.ExtantGenomes() {
		genomes = append(genomes, g)
	}
	for _, g := range h.AncestralGenomes() {
		genomes = append(genomes, g)
	}
	for _, a := range h.AncestralGenomes() {
		for _, d := range genomes {
			if !h.Tree().IsAncestor(a.Taxon(), d.Taxon()) {
				continue
			}
			m, err := h.HOGsMap(a, d)
			require.NoError(t, err)
			assert.True(t, m.Consistent, "%s vs %s", a.Name(), d.Name())
		}
	}
}

func TestHOGsMap_Memoized(t *testing.T) {
	h := loadFixture(t, Options{})
	mouse, vert := genome(t, h, "MOUSE"), genome(t, h, "Vertebrata")

	m1, err := h.HOGsMap(mouse, vert)
	require.NoError(t, err)
	m2, err := h.HOGsMap(vert, mouse)
	require.NoError(t, err)
	assert.Same(t, m1, m2)

	v, err := h.CompareVertical(mouse, vert)
	require.NoError(t, err)
	assert.Same(t, m1, v.Map())
}

func TestCompare_Errors(t *testing.T) {
	h := loadFixture(t, Options{})

	_, err := h.CompareVertical(genome(t, h, "HUMAN"), genome(t, h, "MOUSE"))
	assert.ErrorIs(t, err, hog.ErrNotSameLineage)

	_, err = h.CompareVertical(genome(t, h, "HUMAN"), genome(t, h, "HUMAN"))
	assert.Error(t, err)

	_, err = h.CompareVertical(genome(t, h, "Primates"), genome(t, h, "RATNO"))
	assert.ErrorIs(t, err, hog.ErrNotSameLineage)

	_, err = h.MRCAGenome(genome(t, h, "HUMAN"))
	assert.Error(t, err)
}

func TestCompareLateral(t *testing.T) {
	h := loadFixture(t, Options{})
	human, mouse, rodents := genome(t, h, "HUMAN"), genome(t, h, "MOUSE"), genome(t, h, "Rodents")

	mrca, err := h.MRCAGenome(human, mouse)
	require.NoError(t, err)
	assert.Equal(t, "Euarchontoglires", mrca.Name())

	l, err := h.CompareLateral(human, mouse)
	require.NoError(t, err)
	assert.Equal(t, "Euarchontoglires", l.Ancestor().Name())
	assert.Equal(t, []hog.Genome{human, mouse}, l.Descendants())

	// gene 14 has no HUMAN copy: its Euarchontoglires HOG is lost in HUMAN only
	g14, err := h.GeneByID("14")
	require.NoError(t, err)
	e2 := g14.Parent().Parent()
	assert.Equal(t, []hog.Genome{human}, l.Lost()[e2])
	assert.Equal(t, "34", l.Retained()[e2][mouse].(*hog.Gene).ID)
	assert.Equal(t, []string{"5"}, abstractIDs(l.Gained()[human]))

	// the per-pair maps are shared with vertical comparisons
	m, err := h.HOGsMap(mrca, mouse)
	require.NoError(t, err)
	assert.Same(t, m, l.Map(mouse))

	// an ancestor among the genomes is the reference, not a descendant
	l, err = h.CompareLateral(rodents, mouse, genome(t, h, "RATNO"))
	require.NoError(t, err)
	assert.Equal(t, "Rodents", l.Ancestor().Name())
	assert.Len(t, l.Descendants(), 2)
}

func TestFilter_ByHOG(t *testing.T) {
	f := NewFilter()
	f.AddHOGs("2")

	r, err := orthoxml.NewReader(findTestFile(t, "simpleEx.orthoxml"))
	require.NoError(t, err)
	defer r.Close()

	res, err := f.Build(r)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"2": true}, res.HOGs)
	assert.Equal(t, map[string]bool{"22": true, "2": true, "12": true, "32": true}, res.Genes)

	h := loadFixture(t, Options{Query: f})
	require.Len(t, h.TopLevelHOGs(), 1)
	assert.Equal(t, "2", h.TopLevelHOGs()[0].ID)
	assert.Equal(t, []string{"12", "2", "22", "32"}, geneIDs(h.ExtantGenes()))
	_, err = h.GeneByID("1")
	assert.ErrorIs(t, err, hog.ErrNotFound)
	checkEdgeDistance(t, h)
}

func TestFilter_ByGeneAndXRef(t *testing.T) {
	f := NewFilter()
	assert.True(t, f.Empty())
	f.AddGenes("33")
	f.AddXRefs("RATNO3")
	assert.False(t, f.Empty())

	h := loadFixture(t, Options{Query: f})
	require.Len(t, h.TopLevelHOGs(), 1)
	assert.Equal(t, "3", h.TopLevelHOGs()[0].ID)

	// the queried singleton is kept on its own
	g, err := h.GeneByID("43")
	require.NoError(t, err)
	assert.True(t, g.IsSingleton())
	assert.Len(t, h.ExtantGenes(), 8)
}

func TestFilter_NoMatch(t *testing.T) {
	f := NewFilter()
	f.AddHOGs("42")

	h := loadFixture(t, Options{Query: f})
	assert.Empty(t, h.TopLevelHOGs())
	assert.Empty(t, h.ExtantGenes())
}

func TestFilter_Stdin(t *testing.T) {
	f := NewFilter()
	f.AddHOGs("1")

	_, err := Load(findTestFile(t, "simpleEx.nwk"), "-", Options{Query: f})
	assert.ErrorContains(t, err, "standard input")
}

func TestBuild_SynthesizedDuplicationLevel(t *testing.T) {
	h, err := buildDoc(t, doc(`
    <orthologGroup id="10">
      <geneRef id="21"/>
      <paralogGroup>
        <orthologGroup><geneRef id="1"/><geneRef id="11"/></orthologGroup>
        <orthologGroup><geneRef id="2"/><geneRef id="12"/></orthologGroup>
      </paralogGroup>
    </orthologGroup>`))
	require.NoError(t, err)
	checkEdgeDistance(t, h)

	top, err := h.HOGByID("10")
	require.NoError(t, err)
	assert.Equal(t, "Mammalia", top.Genome().Name())
	assert.Empty(t, top.Duplications())
	require.Len(t, top.Children(), 2)

	x := top.Children()[1].(*hog.HOG)
	assert.Equal(t, "Euarchontoglires", x.Genome().Name())
	require.Len(t, x.Duplications(), 1)
	d := x.Duplications()[0]
	assert.Equal(t, "Euarchontoglires", d.MRCA().Name())
	assert.Len(t, d.Children(), 2)

	v, err := h.CompareVertical(genome(t, h, "HUMAN"), genome(t, h, "Euarchontoglires"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, abstractIDs(v.Duplicated()[x]))

	v, err = h.CompareVertical(genome(t, h, "Primates"), genome(t, h, "Euarchontoglires"))
	require.NoError(t, err)
	assert.Len(t, v.Duplicated()[x], 2)
}

func TestBuild_InParalogsSynthesizeLevel(t *testing.T) {
	h, err := buildDoc(t, doc(`
    <orthologGroup id="11">
      <property name="TaxRange" value="Primates"/>
      <geneRef id="11"/>
      <paralogGroup><geneRef id="1"/><geneRef id="2"/></paralogGroup>
    </orthologGroup>`))
	require.NoError(t, err)
	checkEdgeDistance(t, h)

	top, err := h.HOGByID("11")
	require.NoError(t, err)
	assert.Equal(t, "Primates", top.Genome().Name())
	require.Len(t, top.Duplications(), 1)
	assert.Equal(t, "Primates", top.Duplications()[0].MRCA().Name())

	g1, err := h.GeneByID("1")
	require.NoError(t, err)
	assert.Same(t, top.Duplications()[0], g1.AroseByDuplication())
}

func TestBuild_LiftsSingleSpeciesGroup(t *testing.T) {
	h, err := buildDoc(t, doc(`
    <orthologGroup id="20"><geneRef id="1"/><geneRef id="2"/></orthologGroup>`))
	require.NoError(t, err)

	top, err := h.HOGByID("20")
	require.NoError(t, err)
	assert.Equal(t, "Primates", top.Genome().Name())
	assert.Len(t, top.Children(), 2)
}

func TestBuild_CollapsesRedundantGroup(t *testing.T) {
	h, err := buildDoc(t, doc(`
    <orthologGroup id="30">
      <geneRef id="21"/>
      <orthologGroup>
        <property name="TaxRange" value="Primates"/>
        <orthologGroup><geneRef id="1"/><geneRef id="11"/></orthologGroup>
      </orthologGroup>
    </orthologGroup>`))
	require.NoError(t, err)
	checkEdgeDistance(t, h)

	top, err := h.HOGByID("30")
	require.NoError(t, err)
	require.Len(t, top.Children(), 2)
	euarch := top.Children()[1].(*hog.HOG)
	assert.Equal(t, "Euarchontoglires", euarch.Genome().Name())
	require.Len(t, euarch.Children(), 1)
	assert.Equal(t, "Primates", euarch.Children()[0].Genome().Name())

	prim, err := h.AncestralGenomeByName("Primates")
	require.NoError(t, err)
	assert.Len(t, prim.HOGs(), 1, "the collapsed wrapper never gets a genome")
}

func TestBuild_CollapsedGroupID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h, err := buildDocWith(t, doc(`
    <orthologGroup id="30">
      <geneRef id="21"/>
      <orthologGroup id="30a">
        <property name="TaxRange" value="Primates"/>
        <orthologGroup><geneRef id="1"/><geneRef id="11"/></orthologGroup>
      </orthologGroup>
    </orthologGroup>`), Options{Logger: zap.New(core)})
	require.NoError(t, err)

	top, err := h.HOGByID("30")
	require.NoError(t, err)
	x, err := h.HOGByID("30a")
	require.NoError(t, err)
	assert.Same(t, top, x)

	entries := logs.FilterMessage("collapsed group id now resolves to the enclosing group").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "30a", entries[0].ContextMap()["hog"])
	assert.Equal(t, "30", entries[0].ContextMap()["resolves_to"])
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		groups string
	}{
		{"empty group", `<orthologGroup id="1"></orthologGroup>`},
		{"unknown gene", `<orthologGroup id="1"><geneRef id="999"/></orthologGroup>`},
		{"gene referenced twice", `<orthologGroup id="1"><geneRef id="1"/><geneRef id="1"/></orthologGroup>`},
		{"paralog outside group", `<paralogGroup><geneRef id="1"/></paralogGroup>`},
		{"gene ref outside group", `<geneRef id="1"/>`},
		{"above the root", `<orthologGroup id="1"><orthologGroup><geneRef id="51"/><geneRef id="21"/></orthologGroup></orthologGroup>`},
		{"duplicate family id", `<orthologGroup id="1"><geneRef id="1"/><geneRef id="11"/></orthologGroup>
			<orthologGroup id="1"><geneRef id="2"/><geneRef id="12"/></orthologGroup>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildDoc(t, doc(tt.groups))
			var be *BuildError
			require.Error(t, err)
			assert.True(t, errors.As(err, &be), "expected BuildError, got %v", err)
		})
	}
}

func TestBuild_UnknownSpecies(t *testing.T) {
	_, err := buildDoc(t, `<orthoXML><species name="YEAST"></species></orthoXML>`)
	assert.ErrorIs(t, err, taxonomy.ErrNodeNotFound)

	_, err = buildDoc(t, `<orthoXML><species name="Primates"><gene id="1"/></species></orthoXML>`)
	var cfg *taxonomy.ConfigError
	assert.True(t, errors.As(err, &cfg))
}

type sliceSource struct {
	events []*orthoxml.Event
}

func (s *sliceSource) Next() (*orthoxml.Event, error) {
	if len(s.events) == 0 {
		return nil, nil
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func TestBuilder_MalformedNesting(t *testing.T) {
	tree, err := taxonomy.Parse(simpleTree, taxonomy.Options{UseInternalNames: true})
	require.NoError(t, err)

	tests := []struct {
		name   string
		events []*orthoxml.Event
	}{
		{"unmatched group close", []*orthoxml.Event{{Kind: orthoxml.GroupEnd}}},
		{"unmatched paralog close", []*orthoxml.Event{{Kind: orthoxml.GroupStart, ID: "1"}, {Kind: orthoxml.ParalogEnd}}},
		{"unmatched species close", []*orthoxml.Event{{Kind: orthoxml.SpeciesEnd}}},
		{"gene outside species", []*orthoxml.Event{{Kind: orthoxml.GeneRecord, ID: "1"}}},
		{"nested species", []*orthoxml.Event{
			{Kind: orthoxml.SpeciesStart, Name: "HUMAN"},
			{Kind: orthoxml.SpeciesStart, Name: "MOUSE"},
		}},
		{"unterminated group", []*orthoxml.Event{{Kind: orthoxml.GroupStart, ID: "1"}}},
		{"unterminated species", []*orthoxml.Event{{Kind: orthoxml.SpeciesStart, Name: "HUMAN"}}},
		{"group closed in open paralog", []*orthoxml.Event{
			{Kind: orthoxml.SpeciesStart, Name: "HUMAN"},
			{Kind: orthoxml.GeneRecord, ID: "1"},
			{Kind: orthoxml.SpeciesEnd},
			{Kind: orthoxml.GroupStart, ID: "1"},
			{Kind: orthoxml.ParalogStart},
			{Kind: orthoxml.GeneRef, ID: "1"},
			{Kind: orthoxml.GroupEnd},
		}},
		{"duplicate gene id", []*orthoxml.Event{
			{Kind: orthoxml.SpeciesStart, Name: "HUMAN"},
			{Kind: orthoxml.GeneRecord, ID: "1"},
			{Kind: orthoxml.GeneRecord, ID: "1"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(hog.NewRegistry(tree), nil)
			err := b.Run(&sliceSource{events: tt.events})
			var be *BuildError
			require.Error(t, err)
			assert.True(t, errors.As(err, &be), "expected BuildError, got %v", err)
		})
	}
}

func TestBuilder_RetainByHand(t *testing.T) {
	tree, err := taxonomy.Parse(simpleTree, taxonomy.Options{UseInternalNames: true})
	require.NoError(t, err)
	r := orthoxml.NewReaderFromReader(strings.NewReader(doc(`
    <orthologGroup id="1"><geneRef id="1"/><geneRef id="11"/></orthologGroup>
    <orthologGroup id="2"><geneRef id="2"/><geneRef id="12"/></orthologGroup>`)))

	h, err := Build(tree, r, Options{Retain: &FilterResult{
		HOGs:  map[string]bool{"2": true},
		Genes: map[string]bool{"2": true, "12": true},
	}})
	require.NoError(t, err)
	require.Len(t, h.TopLevelHOGs(), 1)
	assert.Equal(t, "2", h.TopLevelHOGs()[0].ID)
	assert.Len(t, h.ExtantGenomes(), 2)
}

func TestBuild_Logging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := loadFixture(t, Options{Logger: zap.New(core)})
	require.NotNil(t, h)

	assert.Equal(t, 6, logs.FilterMessage("species created").Len())
	built := logs.FilterMessage("hierarchy built").All()
	require.Len(t, built, 1)
	assert.EqualValues(t, 3, built[0].ContextMap()["families"])
}

func TestTreeProfile(t *testing.T) {
	h := loadFixture(t, Options{})

	p, err := h.TreeProfile(nil)
	require.NoError(t, err)
	assert.Len(t, p.Rows, 11)

	ratno, err := h.TaxonByName("RATNO")
	require.NoError(t, err)
	row := p.Row(ratno)
	assert.Equal(t, 2, row.Genes)
	assert.Equal(t, 1, row.Retained)
	assert.Equal(t, 3, row.Lost)
	assert.Equal(t, 1, row.Gained)

	fam3, err := h.HOGByID("3")
	require.NoError(t, err)
	p, err = h.TreeProfile(fam3)
	require.NoError(t, err)
	euarch, err := h.TaxonByName("Euarchontoglires")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Row(euarch).Duplicated)
}
