// Package jp2 binds the external JPEG 2000 codec to the slice stack model.
// It reads and writes whole grayscale images only; the rest of the program
// never touches the codec directly.
package jp2

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/cocosip/go-dicom-codec/jpeg2000"
	"github.com/cocosip/go-dicom-codec/jpeg2000/codestream"

	"jp2rebin/internal/models"
)

// Ext is the file extension for slice images.
const Ext = ".jp2"

// Header holds the metadata of one slice image.
type Header struct {
	Width  int
	Height int
	DType  models.DType
}

// sizPrefixLen covers SOC, the SIZ marker and length, the fixed SIZ fields,
// and the first component's sizing bytes.
const sizPrefixLen = 45

// ReadHeader reads the SOC and SIZ markers at the start of the codestream at
// path and returns its shape and dtype. Only the first few dozen bytes of
// the file are read; pixel data is never touched, and damage past the main
// header is not detected here (it surfaces when the slice is decoded).
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, sizPrefixLen)
	if _, err := io.ReadFull(f, buf); err != nil {
		return Header{}, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	if m := binary.BigEndian.Uint16(buf[0:]); m != codestream.MarkerSOC {
		return Header{}, fmt.Errorf("%s is not a JPEG 2000 codestream (marker 0x%04X)", path, m)
	}
	if m := binary.BigEndian.Uint16(buf[2:]); m != codestream.MarkerSIZ {
		return Header{}, fmt.Errorf("%s has no SIZ segment after SOC (marker 0x%04X)", path, m)
	}

	xsiz := binary.BigEndian.Uint32(buf[8:])
	ysiz := binary.BigEndian.Uint32(buf[12:])
	xosiz := binary.BigEndian.Uint32(buf[16:])
	yosiz := binary.BigEndian.Uint32(buf[20:])
	csiz := binary.BigEndian.Uint16(buf[40:])
	if csiz != 1 {
		return Header{}, fmt.Errorf("%s has %d components, expected grayscale", path, csiz)
	}

	// Ssiz holds signedness in the top bit and bit depth minus one below it.
	ssiz := buf[42]
	if ssiz&0x80 != 0 {
		return Header{}, fmt.Errorf("%s has signed pixel data, expected unsigned", path)
	}

	hdr := Header{
		Width:  int(xsiz - xosiz),
		Height: int(ysiz - yosiz),
	}
	depth := int(ssiz&0x7F) + 1
	switch {
	case depth <= 8:
		hdr.DType = models.Uint8
	case depth <= 16:
		hdr.DType = models.Uint16
	default:
		return Header{}, fmt.Errorf("%s has unsupported bit depth %d", path, depth)
	}

	return hdr, nil
}

// ReadImage decodes the whole image at path into a flat row-major float64
// plane, along with its header.
func ReadImage(path string) ([]float64, Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	dec := jpeg2000.NewDecoder()
	if err := dec.Decode(data); err != nil {
		return nil, Header{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if dec.Components() != 1 {
		return nil, Header{}, fmt.Errorf("%s has %d components, expected grayscale", path, dec.Components())
	}

	hdr := Header{Width: dec.Width(), Height: dec.Height()}
	if dec.BitDepth() <= 8 {
		hdr.DType = models.Uint8
	} else {
		hdr.DType = models.Uint16
	}

	comp, err := dec.GetComponentData(0)
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to extract pixels from %s: %w", path, err)
	}

	pix := make([]float64, len(comp))
	for i, v := range comp {
		pix[i] = float64(v)
	}
	return pix, hdr, nil
}

// WriteImage encodes pix (raw pixel bytes, little-endian for 16-bit data) as
// a grayscale JPEG 2000 codestream at the given compression ratio and writes
// it to path. Ratio 1 selects reversible encoding; larger ratios trade
// quality for size.
func WriteImage(path string, pix []byte, width, height int, dtype models.DType, ratio int) error {
	params := jpeg2000.DefaultEncodeParams(width, height, 1, dtype.BitDepth(), false)
	params.NumLevels = clampLevels(params.NumLevels, width, height)
	if ratio > 1 {
		params.Lossless = false
		params.Quality = qualityForRatio(ratio)
	}

	encoded, err := jpeg2000.NewEncoder(params).Encode(pix)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := os.WriteFile(path, encoded, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// clampLevels limits wavelet decomposition levels so the coarsest band keeps
// at least one pixel on the shortest side. Reduced outputs can be very small.
func clampLevels(requested, width, height int) int {
	minDim := width
	if height < minDim {
		minDim = height
	}
	maxLevels := 0
	for maxLevels < 6 && (minDim>>(maxLevels+1)) >= 1 {
		maxLevels++
	}
	if requested > maxLevels {
		return maxLevels
	}
	return requested
}

// qualityForRatio derives the codec quality setting from a target
// compression ratio. Quality drops logarithmically with the ratio.
func qualityForRatio(ratio int) int {
	q := int(math.Round(100 - 15*math.Log2(float64(ratio))))
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	return q
}
