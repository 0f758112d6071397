package nandprog

import "testing"

func TestChipIdentityFields(t *testing.T) {
	id := ChipIdentity{
		JEDEC:  [3]byte{0xEF, 0xAA, 0x21},
		Legacy: [2]byte{0xEF, 0xFF},
		Alt:    0xFF,
		Ext:    [2]byte{0xFF, 0xFF},
	}
	f := id.Fields()
	want := map[byte]string{0x9F: "EFAA21", 0x90: "EF", 0xAB: "", 0x15: ""}
	for op, v := range want {
		if f[op] != v {
			t.Errorf("field %02X = %q, want %q", op, f[op], v)
		}
	}
	if got, want := id.String(), "9F:EFAA21 90:EF AB:- 15:-"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if id.Manufacturer() != 0xEF {
		t.Errorf("manufacturer %02X", id.Manufacturer())
	}
	if name, ok := id.Known(); !ok || name != "Winbond W25N01GV 1Gb NAND" {
		t.Errorf("Known() = %q, %v", name, ok)
	}
}

func TestChipIdentityUnknown(t *testing.T) {
	id := ChipIdentity{
		JEDEC:  [3]byte{0xFF, 0xFF, 0xFF},
		Legacy: [2]byte{0xFF, 0xFF},
		Alt:    0x17,
		Ext:    [2]byte{0x01, 0xFF},
	}
	if _, ok := id.Known(); ok {
		t.Error("all-0xFF JEDEC ID reported as known")
	}
	if got, want := id.String(), "9F:- 90:- AB:17 15:01"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestMemoryType(t *testing.T) {
	tests := []struct {
		jedec [3]byte
		want  string
		ok    bool
	}{
		{[3]byte{0xC8, 0x03, 0x00}, "Flash (NAND)", true},
		{[3]byte{0xEF, 0x20, 0x18}, "Flash (NOR)", true},
		{[3]byte{0xEF, 0xAA, 0x21}, "", false},
	}
	for _, tt := range tests {
		got, ok := ChipIdentity{JEDEC: tt.jedec}.MemoryType()
		if got != tt.want || ok != tt.ok {
			t.Errorf("MemoryType(% X) = %q, %v; want %q, %v", tt.jedec, got, ok, tt.want, tt.ok)
		}
	}
}

func TestProbeSequence(t *testing.T) {
	r := &recorder{reply: 0xFF}
	s := &Session{t: r, bus: openBus(r, CSHardware)}
	s.flash = NewFlash(s.bus, ThreeByte)

	id, err := s.Probe()
	if err != nil {
		t.Fatal(err)
	}
	if id.String() != "9F:- 90:- AB:- 15:-" {
		t.Errorf("id %s", id)
	}
	want := []string{
		"delay 50ms",
		"stream 80 AB",
		"delay 2ms",
		"pins 29/00", "stream 00 9F", "stream 80 FF FF FF",
		"pins 29/00", "stream 00 90 00 00 00", "stream 80 FF FF",
		"pins 29/00", "stream 00 AB 00 00 00", "stream 80 FF",
		"pins 29/00", "stream 00 15", "stream 80 FF FF",
		"pins 00/00",
	}
	if len(r.ops) != len(want) {
		t.Fatalf("ops:\n%s", r)
	}
	for i := range want {
		if r.ops[i] != want[i] {
			t.Errorf("op %d = %q, want %q", i, r.ops[i], want[i])
		}
	}
}
