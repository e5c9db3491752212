// Package graph defines the typed input declarations a patch record
// produces for the computation graph's input queue, and the pairing of
// declarations with concrete arrays used to feed it.
package graph

import (
	"volpatch/pkg/tensor"
)

// Placeholder is a typed, shaped input declaration. The input buffer uses
// the set of placeholders to initialise its queue before any data flows.
type Placeholder struct {
	// Name identifies the input within the graph ("images", "info", ...).
	Name string

	// DType is the element type the queue expects for this input.
	DType tensor.DType

	// Shape is the exact per-record shape of this input.
	Shape tensor.Shape
}

// NewPlaceholder builds a declaration over a copy of the given shape.
func NewPlaceholder(name string, dtype tensor.DType, shape tensor.Shape) Placeholder {
	return Placeholder{
		Name:  name,
		DType: dtype,
		Shape: shape.Clone(),
	}
}

// Feed pairs a placeholder tuple with the matching tuple of concrete
// arrays, positionally. It is the unit handed to the input queue for one
// record.
type Feed struct {
	Placeholders []Placeholder
	Values       []*tensor.Dense
}
