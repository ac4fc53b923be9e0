package tabular

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFilterSyntax is returned when a filter clause has no recognized operator.
	ErrInvalidFilterSyntax = errors.New("invalid filter syntax")
	// ErrUnsupportedOperator is returned when the evaluator meets an operator the parser never emits.
	ErrUnsupportedOperator = errors.New("unsupported operator")
	// ErrDatasetLoad is matched by every *LoadError.
	ErrDatasetLoad = errors.New("failed to load dataset")
)

// LoadError reports a backing file that could not be read or parsed into a
// rectangular table.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDatasetLoad) succeed for any LoadError.
func (e *LoadError) Is(target error) bool { return target == ErrDatasetLoad }
