package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/inodb/vibe-ham/internal/hog"
)

// HOGWriter renders HOG hierarchies as indented text, one member per line.
// HOG lines carry their level in brackets, gene lines their species; members
// that arose by duplication are marked with the level of the event.
type HOGWriter struct {
	w      *bufio.Writer
	indent string
}

// NewHOGWriter creates a new HOG writer.
func NewHOGWriter(w io.Writer) *HOGWriter {
	return &HOGWriter{w: bufio.NewWriter(w), indent: "  "}
}

// Write renders h and everything below it.
func (hw *HOGWriter) Write(h *hog.HOG) error {
	var (
		depth int
		err   error
	)
	line := func(g hog.AbstractGene, text string) {
		if err != nil {
			return
		}
		if d := g.AroseByDuplication(); d != nil && d.MRCA() != nil {
			text += " dup@" + d.MRCA().Name()
		}
		_, err = hw.w.WriteString(strings.Repeat(hw.indent, depth) + text + "\n")
	}

	hog.Visit(h, hog.Visitor{
		Leaf: func(g *hog.Gene) {
			text := g.ID + " " + genomeName(g)
			if g.ProtID != "" {
				text += " " + g.ProtID
			}
			line(g, text)
		},
		Pre: func(x *hog.HOG) {
			text := fmt.Sprintf("%s [%s]", hog.Label(x), genomeName(x))
			for _, name := range x.ScoreNames() {
				v, _ := x.Score(name)
				text += fmt.Sprintf(" %s=%g", name, v)
			}
			line(x, text)
			depth++
		},
		Post: func(*hog.HOG) { depth-- },
	})
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (hw *HOGWriter) Flush() error { return hw.w.Flush() }

func genomeName(g hog.AbstractGene) string {
	if g.Genome() == nil {
		return "?"
	}
	return g.Genome().Name()
}
