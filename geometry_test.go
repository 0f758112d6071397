package nandprog

import (
	"bytes"
	"testing"
)

// 16 pages of 16+4 bytes.
var smallGeometry = Geometry{PageSize: 20, OOBSize: 4, BlockSize: 80, BlockCount: 4}

func TestChunks(t *testing.T) {
	g := smallGeometry
	tests := []struct {
		start, end int
		want       int
		chunks     int
	}{
		{0, 3, 60, 3},
		{2, 2, 0, 0},
		{5, 4, 0, 0},
		{14, 16, 40, 2},
		{14, 100, 40, 2}, // clamped to the chip
		{16, 20, 0, 0},
	}
	for _, tt := range tests {
		sum, n := 0, 0
		for c := range g.chunks(tt.start, tt.end) {
			if c.n <= 0 || c.n > g.PageSize {
				t.Errorf("chunks(%d, %d): chunk of %d bytes", tt.start, tt.end, c.n)
			}
			if c.addr != tt.start*g.PageSize+sum {
				t.Errorf("chunks(%d, %d): chunk at 0x%X, want 0x%X", tt.start, tt.end, c.addr, tt.start*g.PageSize+sum)
			}
			sum += c.n
			n++
		}
		if sum != tt.want || n != tt.chunks {
			t.Errorf("chunks(%d, %d) = %d bytes in %d chunks, want %d in %d", tt.start, tt.end, sum, n, tt.want, tt.chunks)
		}
		if got := g.rangeBytes(tt.start, tt.end); got != sum {
			t.Errorf("rangeBytes(%d, %d) = %d, chunks cover %d", tt.start, tt.end, got, sum)
		}
	}
}

func TestChunksTrailingPartialPage(t *testing.T) {
	// The chip ends half way into page 3.
	g := Geometry{PageSize: 20, OOBSize: 4, BlockSize: 70, BlockCount: 1}
	var got []chunk
	for c := range g.chunks(0, 10) {
		got = append(got, c)
	}
	want := []chunk{{0, 20}, {20, 20}, {40, 20}, {60, 10}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestChunksStop(t *testing.T) {
	n := 0
	for range smallGeometry.chunks(0, 16) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterated %d chunks after break, want 2", n)
	}
}

func TestAddressModeFor(t *testing.T) {
	tests := []struct {
		size int
		want AddressMode
	}{
		{2 << 20, ThreeByte},
		{16777216, ThreeByte},
		{16777217, FourByte},
		{DefaultGeometry.ChipSize(), FourByte},
	}
	for _, tt := range tests {
		if got := AddressModeFor(tt.size); got != tt.want {
			t.Errorf("AddressModeFor(%d) = %s, want %s", tt.size, got, tt.want)
		}
	}
	if got := DefaultGeometry.ChipSize(); got != 138412032 {
		t.Errorf("default chip size = %d, want 138412032", got)
	}
}

func TestParseAddressMode(t *testing.T) {
	tests := []struct {
		in     string
		mode   AddressMode
		forced bool
		err    bool
	}{
		{"", ThreeByte, false, false},
		{"auto", ThreeByte, false, false},
		{"3", ThreeByte, true, false},
		{"4byte", FourByte, true, false},
		{"four", FourByte, true, false},
		{"5", 0, false, true},
	}
	for _, tt := range tests {
		mode, forced, err := ParseAddressMode(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseAddressMode(%q) error = %v", tt.in, err)
			continue
		}
		if mode != tt.mode || forced != tt.forced {
			t.Errorf("ParseAddressMode(%q) = %s, %v; want %s, %v", tt.in, mode, forced, tt.mode, tt.forced)
		}
	}
}

func TestRequestForBytes(t *testing.T) {
	g := smallGeometry
	tests := []struct {
		offset, length int
		excludeOOB     bool
		want           TransferRequest
	}{
		{0, 1, false, TransferRequest{0, 1, false}},
		{0, 20, false, TransferRequest{0, 1, false}},
		{0, 21, false, TransferRequest{0, 2, false}},
		{19, 2, false, TransferRequest{0, 2, false}},
		{40, 0, false, TransferRequest{2, 2, false}},
		// Data bytes only: pages every 16 bytes.
		{0, 1, true, TransferRequest{0, 1, true}},
		{16, 16, true, TransferRequest{1, 2, true}},
		{20, 20, true, TransferRequest{1, 3, true}},
	}
	for _, tt := range tests {
		got, err := g.RequestForBytes(tt.offset, tt.length, tt.excludeOOB)
		if err != nil {
			t.Errorf("RequestForBytes(%d, %d, %v): %v", tt.offset, tt.length, tt.excludeOOB, err)
			continue
		}
		if got != tt.want {
			t.Errorf("RequestForBytes(%d, %d, %v) = %+v, want %+v", tt.offset, tt.length, tt.excludeOOB, got, tt.want)
		}
	}
	if _, err := g.RequestForBytes(-1, 4, false); err == nil {
		t.Error("negative offset accepted")
	}
}

func TestDataBytes(t *testing.T) {
	g := DefaultGeometry
	if got := g.DataBytes(3 * g.PageSize); got != 3*2048 {
		t.Errorf("DataBytes(3 pages) = %d, want %d", got, 3*2048)
	}
	// A trailing partial page keeps all of its bytes.
	if got := g.DataBytes(g.PageSize + 100); got != 2048+100 {
		t.Errorf("DataBytes(page+100) = %d, want %d", got, 2048+100)
	}
}

func TestStripOOB(t *testing.T) {
	g := Geometry{PageSize: 4, OOBSize: 1, BlockSize: 8, BlockCount: 1}
	raw := []byte{1, 2, 3, 0xA, 4, 5, 6, 0xB, 7, 8}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if got := g.StripOOB(raw); !bytes.Equal(got, want) {
		t.Errorf("StripOOB = %v, want %v", got, want)
	}
}

func TestGeometryValidate(t *testing.T) {
	if err := DefaultGeometry.Validate(); err != nil {
		t.Errorf("default geometry: %v", err)
	}
	bad := []Geometry{
		{PageSize: 0, BlockSize: 8, BlockCount: 1},
		{PageSize: 4, OOBSize: 4, BlockSize: 8, BlockCount: 1},
		{PageSize: 4, OOBSize: -1, BlockSize: 8, BlockCount: 1},
		{PageSize: 4, BlockSize: 10, BlockCount: 1},
		{PageSize: 4, BlockSize: 8, BlockCount: 0},
	}
	for _, g := range bad {
		if err := g.Validate(); err == nil {
			t.Errorf("%+v accepted", g)
		}
	}
	if got := DefaultGeometry.PagesPerBlock(); got != 64 {
		t.Errorf("pages per block = %d, want 64", got)
	}
}
