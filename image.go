package nandprog

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"
)

// Image is a flat byte image to be written at Offset.
type Image struct {
	Offset int
	Data   []byte
}

// ImageFormat names the encoding of an input file.
type ImageFormat string

const (
	FormatAuto   ImageFormat = ""
	FormatBinary ImageFormat = "bin"
	FormatIHex   ImageFormat = "hex"
)

// LoadImageFile reads a raw binary or Intel HEX file. FormatAuto picks
// Intel HEX for .hex and .ihx extensions. Images larger than maxSize bytes
// are rejected; maxSize <= 0 disables the check.
func LoadImageFile(path string, format ImageFormat, maxSize int) (*Image, error) {
	if format == FormatAuto {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".hex", ".ihx":
			format = FormatIHex
		default:
			format = FormatBinary
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadImage(f, format, maxSize)
}

// LoadImage decodes an image. Gaps between Intel HEX segments are filled
// with 0xFF, the erased state of flash; Offset is the lowest segment
// address. The span from the lowest to the highest byte must fit in
// maxSize unless maxSize <= 0.
func LoadImage(r io.Reader, format ImageFormat, maxSize int) (*Image, error) {
	switch format {
	case FormatBinary, FormatAuto:
		if maxSize > 0 {
			r = io.LimitReader(r, int64(maxSize)+1)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrap(err, "read image")
		}
		if maxSize > 0 && len(data) > maxSize {
			return nil, errors.Errorf("image larger than %d bytes", maxSize)
		}
		return &Image{Data: data}, nil
	case FormatIHex:
		return loadIHex(r, maxSize)
	}
	return nil, errors.Errorf("unknown image format %q", format)
}

func loadIHex(r io.Reader, maxSize int) (*Image, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, errors.Wrap(err, "parse intel hex")
	}
	segments := mem.GetDataSegments()
	if len(segments) == 0 {
		return &Image{}, nil
	}

	lo, hi := uint64(segments[0].Address), uint64(segments[0].Address)
	for _, seg := range segments {
		lo = min(lo, uint64(seg.Address))
		hi = max(hi, uint64(seg.Address)+uint64(len(seg.Data)))
	}
	if maxSize > 0 && hi-lo > uint64(maxSize) {
		return nil, errors.Errorf("intel hex spans 0x%X-0x%X, more than %d bytes", lo, hi, maxSize)
	}
	data := bytes.Repeat([]byte{0xFF}, int(hi-lo))
	for _, seg := range segments {
		pkgLog.Debugf("loaded hex segment at %X length %v", seg.Address, len(seg.Data))
		copy(data[uint64(seg.Address)-lo:], seg.Data)
	}
	return &Image{Offset: int(lo), Data: data}, nil
}
