package rebin

import (
	"fmt"
	"os"
	"path/filepath"

	"jp2rebin/internal/models"
	"jp2rebin/pkg/jp2"
)

// WriteReduced casts img to dtype and writes it through the codec at the
// given compression ratio. Float values are truncated toward zero, matching
// the cast semantics downstream tooling expects. The image is first encoded
// to a temporary sibling path and renamed into place, so a failed write never
// leaves a partial file that looks valid.
func WriteReduced(img *models.ReducedImage, path string, dtype models.DType, ratio int) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}

	pix := castPixels(img.Pix, dtype)

	tmp := path + ".tmp"
	if err := jp2.WriteImage(tmp, pix, img.Width, img.Height, dtype, ratio); err != nil {
		os.Remove(tmp)
		return "", &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", &WriteError{Path: path, Err: fmt.Errorf("rename failed: %w", err)}
	}

	return path, nil
}

// castPixels truncates float pixels to the target unsigned dtype and packs
// them as raw bytes (little-endian for 16-bit data). No bounds checking
// beyond the type's range: block means of valid input cannot overflow it.
func castPixels(pix []float64, dtype models.DType) []byte {
	if dtype == models.Uint8 {
		out := make([]byte, len(pix))
		for i, v := range pix {
			out[i] = byte(uint8(v))
		}
		return out
	}

	out := make([]byte, len(pix)*2)
	for i, v := range pix {
		u := uint16(v)
		out[i*2] = byte(u)
		out[i*2+1] = byte(u >> 8)
	}
	return out
}
