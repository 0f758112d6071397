package nandprog

import (
	"fmt"
	"iter"

	"github.com/pkg/errors"
)

// Capacity above which the chip must be switched into 4-byte addressing.
const fourByteThreshold = 16 << 20 // 16777216

// Geometry describes the page/block layout of a chip. PageSize includes the
// OOB (spare) bytes.
type Geometry struct {
	PageSize   int
	OOBSize    int
	BlockSize  int
	BlockCount int
}

// DefaultGeometry matches a 1 Gbit SPI NAND with 2048+64 byte pages and
// 64 pages per block.
var DefaultGeometry = Geometry{
	PageSize:   2048 + 64,
	OOBSize:    64,
	BlockSize:  135168,
	BlockCount: 1024,
}

func (g Geometry) PageDataSize() int  { return g.PageSize - g.OOBSize }
func (g Geometry) ChipSize() int      { return g.BlockSize * g.BlockCount }
func (g Geometry) PagesPerBlock() int { return g.BlockSize / g.PageSize }
func (g Geometry) PageCount() int     { return g.ChipSize() / g.PageSize }

// Validate checks the invariants the page arithmetic relies on.
func (g Geometry) Validate() error {
	switch {
	case g.PageSize <= 0:
		return errors.Errorf("page size must be positive, got %d", g.PageSize)
	case g.OOBSize < 0:
		return errors.Errorf("oob size must not be negative, got %d", g.OOBSize)
	case g.PageDataSize() <= 0:
		return errors.Errorf("oob size %d leaves no data in a %d byte page", g.OOBSize, g.PageSize)
	case g.BlockSize <= 0 || g.BlockCount <= 0:
		return errors.Errorf("block size and count must be positive, got %d x %d", g.BlockSize, g.BlockCount)
	case g.BlockSize%g.PageSize != 0:
		return errors.Errorf("block size %d is not a multiple of page size %d", g.BlockSize, g.PageSize)
	}
	return nil
}

func (g Geometry) String() string {
	return fmt.Sprintf("chip %d bytes, block %d (%d pages), page %d (%d + %d)",
		g.ChipSize(), g.BlockSize, g.PagesPerBlock(), g.PageSize, g.PageDataSize(), g.OOBSize)
}

// DataBytes returns how many of n raw bytes read from page starts are user
// data, subtracting the OOB area of every complete page.
func (g Geometry) DataBytes(n int) int {
	return n - (n/g.PageSize)*g.OOBSize
}

// AddressMode selects how many address bytes follow an opcode.
type AddressMode int

const (
	ThreeByte AddressMode = iota
	FourByte
)

// AddressModeFor returns FourByte only for chips strictly larger than 16 MiB.
func AddressModeFor(chipSize int) AddressMode {
	if chipSize > fourByteThreshold {
		return FourByte
	}
	return ThreeByte
}

// ParseAddressMode parses "auto", "3" or "4". "auto" returns ok == false.
func ParseAddressMode(s string) (mode AddressMode, ok bool, err error) {
	switch s {
	case "", "auto":
		return ThreeByte, false, nil
	case "3", "3byte", "three":
		return ThreeByte, true, nil
	case "4", "4byte", "four":
		return FourByte, true, nil
	}
	return 0, false, errors.Errorf("unknown address mode %q", s)
}

// AddrLen returns the number of address bytes sent in this mode.
func (m AddressMode) AddrLen() int {
	if m == FourByte {
		return 4
	}
	return 3
}

func (m AddressMode) String() string {
	if m == FourByte {
		return "4-byte"
	}
	return "3-byte"
}

// TransferRequest is a page range, End exclusive.
type TransferRequest struct {
	Start      int
	End        int
	ExcludeOOB bool
}

// RequestForBytes maps a byte range onto the pages containing it. With
// excludeOOB the offsets count only data bytes, so page boundaries fall
// every PageDataSize bytes; otherwise every PageSize bytes.
func (g Geometry) RequestForBytes(offset, length int, excludeOOB bool) (TransferRequest, error) {
	if offset < 0 || length < 0 {
		return TransferRequest{}, errors.Errorf("invalid byte range %d+%d", offset, length)
	}
	unit := g.PageSize
	if excludeOOB {
		unit = g.PageDataSize()
	}
	return TransferRequest{
		Start:      offset / unit,
		End:        (offset + length + unit - 1) / unit,
		ExcludeOOB: excludeOOB,
	}, nil
}

// chunk is one paged transfer.
type chunk struct {
	addr int
	n    int
}

// chunks walks pages [start, end) in page sized transfers. The limit is
// clamped to the chip size and the final chunk shortened to fit.
func (g Geometry) chunks(start, end int) iter.Seq[chunk] {
	return func(yield func(chunk) bool) {
		addr := start * g.PageSize
		limit := min(end*g.PageSize, g.ChipSize())
		for addr < limit {
			n := min(g.PageSize, limit-addr)
			if !yield(chunk{addr, n}) {
				return
			}
			addr += n
		}
	}
}

// rangeBytes returns how many bytes chunks(start, end) covers.
func (g Geometry) rangeBytes(start, end int) int {
	return max(0, min(end*g.PageSize, g.ChipSize())-start*g.PageSize)
}

// StripOOB drops the OOB bytes of every page in raw, which must start on a
// page boundary. A trailing partial page keeps at most PageDataSize bytes.
func (g Geometry) StripOOB(raw []byte) []byte {
	out := make([]byte, 0, g.DataBytes(len(raw)))
	for off := 0; off < len(raw); off += g.PageSize {
		page := raw[off:min(off+g.PageSize, len(raw))]
		out = append(out, page[:min(len(page), g.PageDataSize())]...)
	}
	return out
}
