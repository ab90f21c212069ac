package models

import (
	"fmt"
)

// DType is the pixel data type of a slice stack.
type DType int

const (
	Uint8 DType = iota
	Uint16
)

// BitDepth returns the number of stored bits per pixel.
func (d DType) BitDepth() int {
	if d == Uint16 {
		return 16
	}
	return 8
}

// Bytes returns the number of bytes per pixel.
func (d DType) Bytes() int {
	if d == Uint16 {
		return 2
	}
	return 1
}

// Max returns the largest representable pixel value.
func (d DType) Max() uint16 {
	if d == Uint16 {
		return 65535
	}
	return 255
}

func (d DType) String() string {
	if d == Uint16 {
		return "uint16"
	}
	return "uint8"
}

// Slice references a single 2D image on disk at a fixed z position.
// The pixel data stays on disk; only metadata lives here.
type Slice struct {
	// Path is the location of the compressed image file.
	Path string

	// Z is the position of this slice in the stack.
	Z int

	// Width and Height are the slice dimensions in pixels.
	Width  int
	Height int

	// DType is the pixel data type.
	DType DType
}

// Stack is an ordered sequence of slices sharing a single shape and dtype.
// Lexical filename order of the slices corresponds to ascending z.
type Stack struct {
	Slices []Slice

	// Width, Height and DType are shared by every slice in the stack.
	Width  int
	Height int
	DType  DType
}

// Depth returns the number of slices in the stack.
func (s *Stack) Depth() int {
	return len(s.Slices)
}

// Slab is a contiguous run of slices materialized as an in-memory buffer.
// Planes holds one flat row-major float64 plane per z index in [Z0, Z1).
// A slab is exclusively owned by the task processing it.
type Slab struct {
	Z0, Z1 int
	Width  int
	Height int
	Planes [][]float64
}

// Depth returns the number of materialized planes in the slab.
func (s *Slab) Depth() int {
	return len(s.Planes)
}

// ReducedImage is the 2D result of reducing one slab.
type ReducedImage struct {
	Width  int
	Height int
	Pix    []float64
}

// Job binds one input z range to one output file. Jobs share no mutable
// state, so disjoint jobs can run concurrently without coordination.
type Job struct {
	// Index is the output z index this job produces.
	Index int

	// Z0 and Z1 delimit the input slice range [Z0, Z1).
	Z0, Z1 int

	// OutputPath is where the reduced image is written.
	OutputPath string
}

func (j Job) String() string {
	return fmt.Sprintf("job %d: z[%d,%d) -> %s", j.Index, j.Z0, j.Z1, j.OutputPath)
}
