package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"slices"
	"strconv"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-ham/internal/hog"
	"github.com/inodb/vibe-ham/internal/mapper"
)

// Hierarchy is the part of a built session that is exported.
type Hierarchy interface {
	TopLevelHOGs() []*hog.HOG
	ExtantGenes() []*hog.Gene
}

// EventRow is one stored comparison event. Duplications are stored as one
// row per descendant copy.
type EventRow struct {
	RunID          string
	Ancestor       string
	Descendant     string
	Event          string
	AncestralHOG   string
	DescendantGene string
}

// withAppender runs fn with an appender on table and flushes it.
func (s *Store) withAppender(table string, fn func(a *goduckdb.Appender) error) error {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	if err := fn(appender); err != nil {
		return err
	}
	return appender.Flush()
}

// keys assigns every HOG of a hierarchy a key unique within one run. A family
// is keyed by its id, or "#n" for the n-th family without one; a nested HOG
// by its family key and the child positions leading down to it, e.g. "3/1.0".
// Nested ids are kept in the hog_id column only since they may repeat.
type keys struct {
	family map[*hog.HOG]string
}

func newKeys(tops []*hog.HOG) *keys {
	k := &keys{family: make(map[*hog.HOG]string, len(tops))}
	for i, top := range tops {
		if top.ID != "" {
			k.family[top] = top.ID
		} else {
			k.family[top] = "#" + strconv.Itoa(i+1)
		}
	}
	return k
}

// key returns the key of g; genes are keyed by their unique id.
func (k *keys) key(g hog.AbstractGene) string {
	x, ok := g.(*hog.HOG)
	if !ok {
		return g.(*hog.Gene).ID
	}
	var path []string
	for x.Parent() != nil {
		path = append(path, strconv.Itoa(slices.Index(x.Parent().Children(), hog.AbstractGene(x))))
		x = x.Parent()
	}
	if len(path) == 0 {
		return k.family[x]
	}
	slices.Reverse(path)
	return k.family[x] + "/" + strings.Join(path, ".")
}

func (k *keys) parent(g hog.AbstractGene) string {
	if p := g.Parent(); p != nil {
		return k.key(p)
	}
	return ""
}

// WriteHierarchy batch-inserts every HOG and every gene of h under runID.
func (s *Store) WriteHierarchy(runID string, h Hierarchy) error {
	k := newKeys(h.TopLevelHOGs())
	err := s.withAppender("hogs", func(a *goduckdb.Appender) error {
		for _, top := range h.TopLevelHOGs() {
			family := k.key(top)
			for _, x := range top.DescendantHOGs() {
				if err := a.AppendRow(
					runID, k.key(x), x.ID, x.Genome().Name(),
					k.parent(x), family, duplicationLevel(x),
					int64(len(x.DescendantGenes())),
				); err != nil {
					return fmt.Errorf("append hog: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.withAppender("genes", func(a *goduckdb.Appender) error {
		for _, g := range h.ExtantGenes() {
			genome := g.ExtantGenome()
			family := ""
			if !g.IsSingleton() {
				family = k.key(hog.TopLevel(g))
			}
			if err := a.AppendRow(
				runID, g.ID, genome.Name(), genome.TaxID,
				g.ProtID, g.GeneID, g.TranscriptID,
				k.parent(g), family, duplicationLevel(g),
			); err != nil {
				return fmt.Errorf("append gene: %w", err)
			}
		}
		return nil
	})
}

func duplicationLevel(g hog.AbstractGene) string {
	if d := g.AroseByDuplication(); d != nil && d.MRCA() != nil {
		return d.MRCA().Name()
	}
	return ""
}

// WriteEvents batch-inserts the events of one genome comparison of h under
// runID and records the comparison in run_comparisons. HOGs are keyed as in
// WriteHierarchy.
func (s *Store) WriteEvents(runID string, h Hierarchy, m *mapper.HOGsMap) error {
	k := newKeys(h.TopLevelHOGs())
	anc, desc := m.Ancestor.Name(), m.Descendant.Name()
	err := s.withAppender("comparison_events", func(a *goduckdb.Appender) error {
		for _, r := range m.Records() {
			ancestral := ""
			if r.Ancestral != nil {
				ancestral = k.key(r.Ancestral)
			}
			descendants := r.Descendants
			if len(descendants) == 0 {
				descendants = []hog.AbstractGene{nil}
			}
			for _, d := range descendants {
				gene := ""
				if d != nil {
					gene = k.key(d)
				}
				if err := a.AppendRow(runID, anc, desc, string(r.Event), ancestral, gene); err != nil {
					return fmt.Errorf("append event: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`INSERT INTO run_comparisons VALUES (?, ?, ?)`, runID, anc, desc); err != nil {
		return fmt.Errorf("insert comparison: %w", err)
	}
	return nil
}

// HasComparison reports whether runID holds the events of ancestor vs descendant.
func (s *Store) HasComparison(runID, ancestor, descendant string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT count(*) FROM run_comparisons
		WHERE run_id=? AND ancestor=? AND descendant=?`, runID, ancestor, descendant).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query comparison: %w", err)
	}
	return n > 0, nil
}

// LookupEvents returns the stored events of one genome comparison, across runs.
func (s *Store) LookupEvents(ancestor, descendant string) ([]EventRow, error) {
	rows, err := s.db.Query(`SELECT
		run_id, ancestor, descendant, event, ancestral_hog, descendant_gene
		FROM comparison_events
		WHERE ancestor=? AND descendant=?`, ancestor, descendant)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.RunID, &e.Ancestor, &e.Descendant, &e.Event, &e.AncestralHOG, &e.DescendantGene); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// CountGenes returns the number of genes of species stored under runID.
func (s *Store) CountGenes(runID, species string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT count(*) FROM genes WHERE run_id=? AND species=?`, runID, species).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count genes: %w", err)
	}
	return n, nil
}

// FamilyGenes returns the gene ids of one family stored under runID, sorted.
func (s *Store) FamilyGenes(runID, family string) ([]string, error) {
	rows, err := s.db.Query(`SELECT gene_id FROM genes
		WHERE run_id=? AND family=? ORDER BY gene_id`, runID, family)
	if err != nil {
		return nil, fmt.Errorf("query family genes: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan gene id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate family genes: %w", err)
	}
	return ids, nil
}
