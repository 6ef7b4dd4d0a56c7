package hog

import "errors"

var (
	// ErrNotFound is returned by lookups when no gene, HOG or genome matches.
	ErrNotFound = errors.New("not found")
	// ErrNotSameLineage is returned when two genomes do not lie on one lineage.
	ErrNotSameLineage = errors.New("genomes are not on the same lineage")
	// ErrInvalidChild is returned when a nil value is attached as a child or genome.
	ErrInvalidChild = errors.New("invalid child")
)

// EvolutionaryConceptError reports an operation that contradicts the model,
// such as a HOG adopting itself or a genome being reassigned.
type EvolutionaryConceptError struct {
	Message string
}

func (e *EvolutionaryConceptError) Error() string {
	return "evolutionary concept error: " + e.Message
}
