package rebin

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"jp2rebin/internal/models"
	"jp2rebin/pkg/jp2"
)

// BuildIndex scans dir for slice images, orders them by ascending lexical
// filename (the caller names files so this matches ascending z), and checks
// that every slice shares one shape and dtype. Only codestream headers are
// read here, never pixel data.
func BuildIndex(dir string) (*models.Stack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &InputError{Dir: dir, Msg: "failed to read directory", Err: err}
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), jp2.Ext) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, &InputError{Dir: dir, Msg: "no " + jp2.Ext + " files found"}
	}
	sort.Strings(names)

	stack := &models.Stack{Slices: make([]models.Slice, 0, len(names))}
	for z, name := range names {
		path := filepath.Join(dir, name)
		hdr, err := jp2.ReadHeader(path)
		if err != nil {
			return nil, &InputError{Dir: dir, Msg: "failed to read metadata of " + name, Err: err}
		}

		if z == 0 {
			stack.Width = hdr.Width
			stack.Height = hdr.Height
			stack.DType = hdr.DType
		} else if hdr.Width != stack.Width || hdr.Height != stack.Height || hdr.DType != stack.DType {
			return nil, &InputError{
				Dir: dir,
				Msg: "inconsistent stack: " + name + " does not match the first slice's shape/dtype",
			}
		}

		stack.Slices = append(stack.Slices, models.Slice{
			Path:   path,
			Z:      z,
			Width:  hdr.Width,
			Height: hdr.Height,
			DType:  hdr.DType,
		})
	}

	return stack, nil
}
