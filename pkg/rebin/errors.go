package rebin

import (
	"fmt"
	"sort"
	"strings"
)

// ParameterError reports an invalid rebinning parameter. It is raised before
// any pixel I/O happens; the run never starts.
type ParameterError struct {
	Msg string
}

func (e *ParameterError) Error() string {
	return e.Msg
}

// InputError reports a problem with the input slice stack: an empty
// directory, or slices with inconsistent shapes or dtypes. Fatal at planning
// time.
type InputError struct {
	Dir string
	Msg string
	Err error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("input %s: %s: %v", e.Dir, e.Msg, e.Err)
	}
	return fmt.Sprintf("input %s: %s", e.Dir, e.Msg)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// SlabReadError reports that a slice inside one job's slab failed to decode.
// It is scoped to that job; sibling jobs are unaffected.
type SlabReadError struct {
	Z0, Z1 int
	Err    error
}

func (e *SlabReadError) Error() string {
	return fmt.Sprintf("failed to read slab z[%d,%d): %v", e.Z0, e.Z1, e.Err)
}

func (e *SlabReadError) Unwrap() error {
	return e.Err
}

// WriteError reports a codec or filesystem failure while writing one reduced
// image. It is scoped to its job.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// RunError aggregates the per-job failures of a run that was driven to
// completion. Output indices not listed here were written successfully and
// remain valid on disk.
type RunError struct {
	// Failed maps each failed output index to its error.
	Failed map[int]error
}

func (e *RunError) Error() string {
	indices := make([]int, 0, len(e.Failed))
	for idx := range e.Failed {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = fmt.Sprintf("%d", idx)
	}
	return fmt.Sprintf("rebin failed for %d output indices: [%s]",
		len(indices), strings.Join(parts, " "))
}

// FailedIndices returns the failed output indices in ascending order.
func (e *RunError) FailedIndices() []int {
	indices := make([]int, 0, len(e.Failed))
	for idx := range e.Failed {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}
