// Package orthoxml reads OrthoXML documents as a stream of structural events.
package orthoxml

import "fmt"

// Kind identifies the type of a structural event.
type Kind int

const (
	SpeciesStart Kind = iota + 1 // <species>
	SpeciesEnd                   // </species>
	GeneRecord                   // <gene> inside a species block
	GeneRef                      // <geneRef> inside a group
	GroupStart                   // <orthologGroup>
	GroupEnd                     // </orthologGroup>
	ParalogStart                 // <paralogGroup>
	ParalogEnd                   // </paralogGroup>
	Property                     // <property> of the enclosing group
	Score                        // <score> of the enclosing group
)

var kindNames = map[Kind]string{
	SpeciesStart: "species-start",
	SpeciesEnd:   "species-end",
	GeneRecord:   "gene",
	GeneRef:      "gene-ref",
	GroupStart:   "group-start",
	GroupEnd:     "group-end",
	ParalogStart: "paralog-start",
	ParalogEnd:   "paralog-end",
	Property:     "property",
	Score:        "score",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is one structural event of the record stream. Which fields are set
// depends on Kind.
type Event struct {
	Kind Kind
	Line int // Line of the element in the input, 0 if unknown

	Name  string // Species name (SpeciesStart) or property name (Property)
	TaxID string // NCBI taxon id (SpeciesStart)
	ID    string // Gene id (GeneRecord, GeneRef), group id (GroupStart) or score id (Score)

	GeneID       string            // GeneRecord
	ProtID       string            // GeneRecord
	TranscriptID string            // GeneRecord
	Extra        map[string]string // GeneRecord: any other attributes

	Value      string  // Property value
	ScoreValue float64 // Score value
}

func (e *Event) String() string {
	switch e.Kind {
	case SpeciesStart:
		return fmt.Sprintf("%s %s", e.Kind, e.Name)
	case GeneRecord, GeneRef, GroupStart, Score:
		return fmt.Sprintf("%s %s", e.Kind, e.ID)
	case Property:
		return fmt.Sprintf("%s %s=%s", e.Kind, e.Name, e.Value)
	}
	return e.Kind.String()
}

// EventSource is implemented by anything producing structural events.
type EventSource interface {
	// Next returns the next event, or nil, nil at the end of the stream.
	Next() (*Event, error)
}

// ParseError reports a malformed document.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("orthoxml parse error at line %d: %s", e.Line, e.Message)
}
