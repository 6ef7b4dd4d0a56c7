package output

import (
	"io"
	"strings"

	"github.com/inodb/vibe-ham/internal/hog"
	"github.com/inodb/vibe-ham/internal/mapper"
)

// EventWriter writes one row per evolutionary event of a genome comparison.
type EventWriter struct {
	tw *TabWriter
}

// NewEventWriter creates a new event writer.
func NewEventWriter(w io.Writer) *EventWriter {
	return &EventWriter{
		tw: NewTabWriter(w, "ancestor", "descendant", "event", "ancestral_hog", "descendant_genes"),
	}
}

// WriteHeader writes the header line.
func (ew *EventWriter) WriteHeader() error { return ew.tw.WriteHeader() }

// Write writes the events of m in the order of HOGsMap.Records.
func (ew *EventWriter) Write(m *mapper.HOGsMap) error {
	anc, desc := m.Ancestor.Name(), m.Descendant.Name()
	for _, r := range m.Records() {
		ancestral := ""
		if r.Ancestral != nil {
			ancestral = hog.Label(r.Ancestral)
		}
		if err := ew.tw.WriteRow(anc, desc, string(r.Event), ancestral, labels(r.Descendants)); err != nil {
			return err
		}
	}
	return nil
}

// WriteLateral writes the events of every genome of a lateral comparison.
func (ew *EventWriter) WriteLateral(l *mapper.MapLateral) error {
	for _, g := range l.Descendants() {
		if err := ew.Write(l.Map(g)); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (ew *EventWriter) Flush() error { return ew.tw.Flush() }

func labels(genes []hog.AbstractGene) string {
	out := make([]string, len(genes))
	for i, g := range genes {
		out[i] = hog.Label(g)
	}
	return strings.Join(out, ",")
}
