package rebin

import (
	"fmt"

	"jp2rebin/internal/models"
	"jp2rebin/pkg/jp2"
)

// Volume is a virtual 3D view over an indexed slice stack. Constructing it
// reads nothing; pixel data is only touched when a slab request is
// materialized. Peak memory is therefore bounded by the depth of the slabs
// actually in flight, not by the depth of the stack.
type Volume struct {
	stack *models.Stack
}

// NewVolume wraps stack as a virtual (height, width, depth) array.
func NewVolume(stack *models.Stack) *Volume {
	return &Volume{stack: stack}
}

// Shape returns the (height, width, depth) of the virtual volume.
func (v *Volume) Shape() (h, w, d int) {
	return v.stack.Height, v.stack.Width, v.stack.Depth()
}

// Slab returns a request for the contiguous z range [z0, z1). The request
// holds no pixel data until Materialize is called.
func (v *Volume) Slab(z0, z1 int) (*SlabRequest, error) {
	if z0 < 0 || z1 > v.stack.Depth() || z0 >= z1 {
		return nil, fmt.Errorf("slab range [%d,%d) out of bounds for depth %d", z0, z1, v.stack.Depth())
	}
	return &SlabRequest{stack: v.stack, z0: z0, z1: z1}, nil
}

// SlabRequest is a deferred read of one contiguous z range.
type SlabRequest struct {
	stack  *models.Stack
	z0, z1 int
}

// Materialize decodes exactly the slices in [z0, z1) and returns them as an
// in-memory slab. The caller owns the returned buffer.
func (r *SlabRequest) Materialize() (*models.Slab, error) {
	slab := &models.Slab{
		Z0:     r.z0,
		Z1:     r.z1,
		Width:  r.stack.Width,
		Height: r.stack.Height,
		Planes: make([][]float64, 0, r.z1-r.z0),
	}

	for z := r.z0; z < r.z1; z++ {
		slice := r.stack.Slices[z]
		pix, hdr, err := jp2.ReadImage(slice.Path)
		if err != nil {
			return nil, &SlabReadError{Z0: r.z0, Z1: r.z1, Err: err}
		}
		if hdr.Width != r.stack.Width || hdr.Height != r.stack.Height {
			return nil, &SlabReadError{
				Z0: r.z0, Z1: r.z1,
				Err: fmt.Errorf("slice %s decoded to %dx%d, stack is %dx%d",
					slice.Path, hdr.Width, hdr.Height, r.stack.Width, r.stack.Height),
			}
		}
		slab.Planes = append(slab.Planes, pix)
	}

	return slab, nil
}
