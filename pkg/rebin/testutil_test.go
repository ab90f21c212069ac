package rebin

import (
	"fmt"
	"path/filepath"
	"testing"

	"jp2rebin/internal/models"
	"jp2rebin/pkg/jp2"
)

// writeTestSlice encodes vals losslessly as one slice image in dir.
func writeTestSlice(t *testing.T, dir, name string, w, h int, dtype models.DType, vals []uint16) string {
	t.Helper()

	var pix []byte
	if dtype == models.Uint16 {
		pix = make([]byte, len(vals)*2)
		for i, v := range vals {
			pix[i*2] = byte(v)
			pix[i*2+1] = byte(v >> 8)
		}
	} else {
		pix = make([]byte, len(vals))
		for i, v := range vals {
			pix[i] = byte(v)
		}
	}

	path := filepath.Join(dir, name)
	if err := jp2.WriteImage(path, pix, w, h, dtype, 1); err != nil {
		t.Fatalf("failed to write test slice %s: %v", name, err)
	}
	return path
}

// writeUniformStack writes n wxh slices where every pixel of slice z has
// value vals[z].
func writeUniformStack(t *testing.T, dir string, n, w, h int, dtype models.DType, vals []uint16) {
	t.Helper()
	if len(vals) != n {
		t.Fatalf("need %d values, got %d", n, len(vals))
	}
	for z := 0; z < n; z++ {
		plane := make([]uint16, w*h)
		for i := range plane {
			plane[i] = vals[z]
		}
		writeTestSlice(t, dir, fmt.Sprintf("slice_%03d.jp2", z), w, h, dtype, plane)
	}
}

// readOutputSlice decodes one output image and returns its flat pixels.
func readOutputSlice(t *testing.T, path string) ([]float64, jp2.Header) {
	t.Helper()
	pix, hdr, err := jp2.ReadImage(path)
	if err != nil {
		t.Fatalf("failed to read output %s: %v", path, err)
	}
	return pix, hdr
}
