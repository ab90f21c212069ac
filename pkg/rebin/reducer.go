package rebin

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"jp2rebin/internal/models"
)

// Reduce collapses a slab to a single reduced image in two ordered stages:
// first the arithmetic mean over the depth axis, then a block mean over
// factor x factor spatial tiles. The stage order is part of the numeric
// contract and must not be swapped.
//
// The axial mean divides by the actual slab depth, so a short final slab is
// averaged over the slices it really contains. The spatial stage zero-pads
// the final row/column of blocks when the shape is not divisible by factor,
// while still dividing every block by factor*factor. The padded zeros pull
// edge pixels toward zero; that bias is a compatibility contract with
// existing rebinned datasets and is preserved deliberately.
//
// Reduce is purely functional and safe to call concurrently.
func Reduce(slab *models.Slab, factor int) (*models.ReducedImage, error) {
	if factor <= 1 {
		return nil, fmt.Errorf("factor must be > 1, got %d", factor)
	}
	if slab.Depth() == 0 {
		return nil, fmt.Errorf("cannot reduce an empty slab")
	}

	// Stage 1: axial mean over depth.
	planeSize := slab.Width * slab.Height
	mean := make([]float64, planeSize)
	for _, plane := range slab.Planes {
		floats.Add(mean, plane)
	}
	floats.Scale(1/float64(slab.Depth()), mean)

	// Stage 2: spatial block mean.
	outH := ceilDiv(slab.Height, factor)
	outW := ceilDiv(slab.Width, factor)
	out := &models.ReducedImage{
		Width:  outW,
		Height: outH,
		Pix:    make([]float64, outW*outH),
	}

	area := float64(factor * factor)
	for by := 0; by < outH; by++ {
		for bx := 0; bx < outW; bx++ {
			sum := 0.0
			for dy := 0; dy < factor; dy++ {
				y := by*factor + dy
				if y >= slab.Height {
					break
				}
				for dx := 0; dx < factor; dx++ {
					x := bx*factor + dx
					if x >= slab.Width {
						break
					}
					sum += mean[y*slab.Width+x]
				}
			}
			// Divisor stays factor^2 even for clipped edge blocks.
			out.Pix[by*outW+bx] = sum / area
		}
	}

	return out, nil
}

// ceilDiv returns ceil(a/b) for positive integers.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
