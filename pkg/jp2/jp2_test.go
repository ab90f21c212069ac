package jp2

import (
	"os"
	"path/filepath"
	"testing"

	"jp2rebin/internal/models"
)

// packUint16 packs pixel values as little-endian bytes.
func packUint16(vals []uint16) []byte {
	out := make([]byte, len(vals)*2)
	for i, v := range vals {
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

func packUint8(vals []uint16) []byte {
	out := make([]byte, len(vals))
	for i, v := range vals {
		out[i] = byte(v)
	}
	return out
}

// TestRoundtripLossless verifies that a reversible encode followed by a
// decode reproduces the input exactly, for both supported dtypes.
func TestRoundtripLossless(t *testing.T) {
	testCases := []struct {
		name  string
		dtype models.DType
		w, h  int
		vals  []uint16
	}{
		{"uint16 2x2", models.Uint16, 2, 2, []uint16{0, 1, 2, 5}},
		{"uint16 3x2", models.Uint16, 2, 3, []uint16{0, 1, 2, 5, 10, 12}},
		{"uint8 4x4", models.Uint8, 4, 4, []uint16{
			0, 16, 32, 48,
			64, 80, 96, 112,
			128, 144, 160, 176,
			192, 208, 224, 240,
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "img"+Ext)

			var pix []byte
			if tc.dtype == models.Uint16 {
				pix = packUint16(tc.vals)
			} else {
				pix = packUint8(tc.vals)
			}

			if err := WriteImage(path, pix, tc.w, tc.h, tc.dtype, 1); err != nil {
				t.Fatalf("WriteImage failed: %v", err)
			}

			got, hdr, err := ReadImage(path)
			if err != nil {
				t.Fatalf("ReadImage failed: %v", err)
			}
			if hdr.Width != tc.w || hdr.Height != tc.h {
				t.Fatalf("decoded shape %dx%d, want %dx%d", hdr.Width, hdr.Height, tc.w, tc.h)
			}
			if hdr.DType != tc.dtype {
				t.Fatalf("decoded dtype %s, want %s", hdr.DType, tc.dtype)
			}

			for i, want := range tc.vals {
				if got[i] != float64(want) {
					t.Errorf("pixel %d: got %v, want %d", i, got[i], want)
				}
			}
		})
	}
}

// TestReadHeader verifies that header reads report shape and dtype without
// needing a decodable payload.
func TestReadHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img"+Ext)

	vals := []uint16{0, 1, 2, 5, 10, 12}
	if err := WriteImage(path, packUint16(vals), 2, 3, models.Uint16, 1); err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}

	hdr, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if hdr.Width != 2 || hdr.Height != 3 {
		t.Errorf("header shape %dx%d, want 2x3", hdr.Width, hdr.Height)
	}
	if hdr.DType != models.Uint16 {
		t.Errorf("header dtype %s, want uint16", hdr.DType)
	}

	// A file with a valid main header but a damaged payload must still
	// report correct metadata; the damage only shows up at decode time.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := sizPrefixLen; i < len(data); i++ {
		data[i] ^= 0xFF
	}
	damaged := filepath.Join(dir, "damaged"+Ext)
	if err := os.WriteFile(damaged, data, 0644); err != nil {
		t.Fatal(err)
	}

	hdr2, err := ReadHeader(damaged)
	if err != nil {
		t.Fatalf("ReadHeader on damaged payload failed: %v", err)
	}
	if hdr2 != hdr {
		t.Errorf("damaged-payload header %+v, want %+v", hdr2, hdr)
	}
	if _, _, err := ReadImage(damaged); err == nil {
		t.Error("ReadImage on damaged payload should fail")
	}
}

// TestReadHeaderRejectsGarbage verifies that non-codestream files are
// rejected.
func TestReadHeaderRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage"+Ext)
	if err := os.WriteFile(path, make([]byte, 64), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadHeader(path); err == nil {
		t.Error("ReadHeader should reject a non-codestream file")
	}
}

// TestQualityForRatio checks the ratio-to-quality mapping stays monotonic
// and clamped.
func TestQualityForRatio(t *testing.T) {
	if q := qualityForRatio(2); q >= 100 || q <= 0 {
		t.Errorf("ratio 2 quality out of range: %d", q)
	}
	prev := 101
	for _, ratio := range []int{2, 5, 10, 50, 1000} {
		q := qualityForRatio(ratio)
		if q < 1 || q > 100 {
			t.Fatalf("ratio %d quality %d out of [1,100]", ratio, q)
		}
		if q >= prev {
			t.Errorf("quality must decrease with ratio: ratio %d gave %d, previous %d", ratio, q, prev)
		}
		prev = q
	}
}
