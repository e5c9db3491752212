// Package tensor provides the dense n-dimensional arrays exchanged between
// the image sampler, the patch record and the input queue. Arrays carry a
// declared element type and an exact shape; all assignment paths in this
// module validate against both.
package tensor

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Shape describes the dimensions of an array, outermost first. Image-like
// arrays in this module are laid out spatial-then-channel.
type Shape []int

// Elems returns the total number of elements an array of this shape holds.
func (s Shape) Elems() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Equal reports whether two shapes have the same rank and dimensions.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the shape.
func (s Shape) Clone() Shape {
	c := make(Shape, len(s))
	copy(c, s)
	return c
}

// String formats the shape as "(d0, d1, ...)".
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, dim := range s {
		parts[i] = strconv.Itoa(dim)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Dense is a row-major dense array with a declared element type.
//
// The backing storage is always []float64; the declared DType is metadata
// describing how the downstream queue should type the matching placeholder.
// Integer-typed arrays (subject ids, patch coordinates) hold exactly
// representable integer values.
type Dense struct {
	dtype DType
	shape Shape
	data  []float64
}

// New creates a zero-filled array of the given type and shape.
func New(dtype DType, shape Shape) (*Dense, error) {
	for i, dim := range shape {
		if dim < 0 {
			return nil, fmt.Errorf("invalid dimension %d at axis %d", dim, i)
		}
	}
	return &Dense{
		dtype: dtype,
		shape: shape.Clone(),
		data:  make([]float64, shape.Elems()),
	}, nil
}

// FromFloat64s creates an array over the given values. The value count must
// match the shape exactly.
func FromFloat64s(dtype DType, shape Shape, data []float64) (*Dense, error) {
	d, err := New(dtype, shape)
	if err != nil {
		return nil, err
	}
	if len(data) != len(d.data) {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.Elems())
	}
	copy(d.data, data)
	return d, nil
}

// FromInt64s creates an int64-typed array over the given values.
func FromInt64s(shape Shape, data []int64) (*Dense, error) {
	vals := make([]float64, len(data))
	for i, v := range data {
		vals[i] = float64(v)
	}
	return FromFloat64s(Int64, shape, vals)
}

// DType returns the declared element type.
func (d *Dense) DType() DType {
	return d.dtype
}

// Shape returns the array shape. The caller must not modify it.
func (d *Dense) Shape() Shape {
	return d.shape
}

// Len returns the total element count.
func (d *Dense) Len() int {
	return len(d.data)
}

// Values returns the backing storage in row-major order. The caller must
// not resize it.
func (d *Dense) Values() []float64 {
	return d.data
}

// Int64s returns a copy of the elements truncated to int64, the form the
// location/info array is consumed in.
func (d *Dense) Int64s() []int64 {
	out := make([]int64, len(d.data))
	for i, v := range d.data {
		out[i] = int64(v)
	}
	return out
}

// flatIndex maps a multi-index to the row-major offset. Panics on rank or
// bounds violations, like slice indexing.
func (d *Dense) flatIndex(idx []int) int {
	if len(idx) != len(d.shape) {
		panic(fmt.Sprintf("tensor: %d indices for rank-%d array", len(idx), len(d.shape)))
	}
	flat := 0
	for axis, i := range idx {
		if i < 0 || i >= d.shape[axis] {
			panic(fmt.Sprintf("tensor: index %d out of range for axis %d (size %d)",
				i, axis, d.shape[axis]))
		}
		flat = flat*d.shape[axis] + i
	}
	return flat
}

// At returns the element at the given multi-index.
func (d *Dense) At(idx ...int) float64 {
	return d.data[d.flatIndex(idx)]
}

// Set stores v at the given multi-index.
func (d *Dense) Set(v float64, idx ...int) {
	d.data[d.flatIndex(idx)] = v
}

// Fill sets every element to v.
func (d *Dense) Fill(v float64) {
	for i := range d.data {
		d.data[i] = v
	}
}

// Equal reports whether two arrays have the same declared type, shape and
// element values. A nil argument compares false.
func (d *Dense) Equal(o *Dense) bool {
	if o == nil {
		return false
	}
	return d.dtype == o.dtype &&
		d.shape.Equal(o.shape) &&
		floats.Equal(d.data, o.data)
}

// AllEqual reports whether every element equals v.
func (d *Dense) AllEqual(v float64) bool {
	for _, x := range d.data {
		if x != v {
			return false
		}
	}
	return true
}

// Region copies the half-open hyperrectangle [start, end) into a new array
// of the same declared type. start and end must cover every axis.
func (d *Dense) Region(start, end []int) (*Dense, error) {
	if len(start) != len(d.shape) || len(end) != len(d.shape) {
		return nil, fmt.Errorf("region bounds must cover all %d axes", len(d.shape))
	}
	outShape := make(Shape, len(d.shape))
	for axis := range d.shape {
		if start[axis] < 0 || end[axis] > d.shape[axis] || start[axis] > end[axis] {
			return nil, fmt.Errorf("region [%d:%d] out of range for axis %d (size %d)",
				start[axis], end[axis], axis, d.shape[axis])
		}
		outShape[axis] = end[axis] - start[axis]
	}
	out, err := New(d.dtype, outShape)
	if err != nil {
		return nil, err
	}

	// Row-major strides of the source.
	strides := make([]int, len(d.shape))
	stride := 1
	for axis := len(d.shape) - 1; axis >= 0; axis-- {
		strides[axis] = stride
		stride *= d.shape[axis]
	}

	// Walk the output in row-major order, projecting each coordinate back
	// into the source.
	idx := make([]int, len(outShape))
	for flat := 0; flat < out.Len(); flat++ {
		src := 0
		for axis, i := range idx {
			src += (start[axis] + i) * strides[axis]
		}
		out.data[flat] = d.data[src]

		for axis := len(idx) - 1; axis >= 0; axis-- {
			idx[axis]++
			if idx[axis] < outShape[axis] {
				break
			}
			idx[axis] = 0
		}
	}
	return out, nil
}

// Squeeze returns a view-shaped copy with the given singleton axis removed.
func (d *Dense) Squeeze(axis int) (*Dense, error) {
	if axis < 0 || axis >= len(d.shape) {
		return nil, fmt.Errorf("squeeze axis %d out of range for rank %d", axis, len(d.shape))
	}
	if d.shape[axis] != 1 {
		return nil, fmt.Errorf("squeeze axis %d has size %d, want 1", axis, d.shape[axis])
	}
	outShape := make(Shape, 0, len(d.shape)-1)
	for i, dim := range d.shape {
		if i != axis {
			outShape = append(outShape, dim)
		}
	}
	return FromFloat64s(d.dtype, outShape, d.data)
}

// Mean returns the arithmetic mean of the elements.
func (d *Dense) Mean() float64 {
	return stat.Mean(d.data, nil)
}

// StdDev returns the sample standard deviation of the elements.
func (d *Dense) StdDev() float64 {
	return stat.StdDev(d.data, nil)
}
