package output

import (
	"io"

	"github.com/inodb/vibe-ham/internal/profile"
)

// ProfileWriter writes a tree profile, one row per taxonomy level.
type ProfileWriter struct {
	tw *TabWriter
}

// NewProfileWriter creates a new profile writer.
func NewProfileWriter(w io.Writer) *ProfileWriter {
	return &ProfileWriter{
		tw: NewTabWriter(w, "taxon", "depth", "genes", "retained", "duplicated", "lost", "gained"),
	}
}

// WriteHeader writes the header line.
func (pw *ProfileWriter) WriteHeader() error { return pw.tw.WriteHeader() }

// Write writes every row of p. Counts that are not defined for a row are
// written as "-".
func (pw *ProfileWriter) Write(p *profile.Profile) error {
	for _, r := range p.Rows {
		retained, duplicated, lost, gained := "", "", "", ""
		if r.HasEvents {
			retained, duplicated, lost = itoa(r.Retained), itoa(r.Duplicated), itoa(r.Lost)
			if r.HasGain {
				gained = itoa(r.Gained)
			}
		}
		depth := r.Taxon.Depth - p.Root.Depth
		if err := pw.tw.WriteRow(r.Taxon.Name, itoa(depth), itoa(r.Genes), retained, duplicated, lost, gained); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (pw *ProfileWriter) Flush() error { return pw.tw.Flush() }
