package nandprog

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestCmdAddr(t *testing.T) {
	tests := []struct {
		mode AddressMode
		addr int
		want []byte
	}{
		{ThreeByte, 0x012345, []byte{0x03, 0x01, 0x23, 0x45}},
		{ThreeByte, 0xFFFFFF, []byte{0x03, 0xFF, 0xFF, 0xFF}},
		{FourByte, 0x01234567, []byte{0x03, 0x01, 0x23, 0x45, 0x67}},
		{FourByte, 0x0840, []byte{0x03, 0x00, 0x00, 0x08, 0x40}},
	}
	for _, tt := range tests {
		f := NewFlash(nil, tt.mode)
		got, err := f.cmdAddr(flashCmdRead, tt.addr, 0)
		if err != nil {
			t.Errorf("%s 0x%X: %v", tt.mode, tt.addr, err)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("%s 0x%X = % X, want % X", tt.mode, tt.addr, got, tt.want)
		}
	}
}

func TestCmdAddrOutOfRange(t *testing.T) {
	f := NewFlash(nil, ThreeByte)
	if _, err := f.cmdAddr(flashCmdRead, 1<<24, 0); err == nil {
		t.Error("3-byte address 0x1000000 accepted")
	}
	if _, err := f.cmdAddr(flashCmdRead, -1, 0); err == nil {
		t.Error("negative address accepted")
	}
}

func TestCmdAddrExtraCapacity(t *testing.T) {
	f := NewFlash(nil, ThreeByte)
	cmd, err := f.cmdAddr(flashCmdPageProgram, 0, 16)
	if err != nil {
		t.Fatal(err)
	}
	if len(cmd) != 4 || cap(cmd) != 20 {
		t.Errorf("len %d cap %d, want 4 and 20", len(cmd), cap(cmd))
	}
}

func TestStatusRegisterString(t *testing.T) {
	tests := []struct {
		sr   fmtStringer
		want string
	}{
		{StatusRegister(0x00), "00000000"},
		{StatusRegister(0x03), "00000011 WEL,BUSY"},
		{StatusRegister(0x9C), "10011100 SRP,BP2,BP1,BP0"},
		{StatusRegister2(0x29), "00101001 LB3,LB1,SRL"},
		{StatusRegister2(0x42), "01000010 CMP,QE"},
	}
	for _, tt := range tests {
		if got := tt.sr.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

type fmtStringer interface{ String() string }

func TestProgramTime(t *testing.T) {
	f := NewFlash(nil, ThreeByte)
	if got := f.tPP(); got != 5*time.Millisecond {
		t.Errorf("unidentified tPP = %v, want the slowest known part (5ms)", got)
	}
	f.identify(flashIDWinbondW25N01GV)
	if got := f.tPP(); got != 700*time.Microsecond {
		t.Errorf("W25N01GV tPP = %v, want 700µs", got)
	}
}

func TestBusyWaitFastPath(t *testing.T) {
	r := &recorder{reply: 0x00}
	f := NewFlash(openBus(r, CSHardware), ThreeByte)
	if err := f.BusyWait(time.Millisecond, 0); err != nil {
		t.Fatal(err)
	}
	if len(r.ops) != 3 {
		t.Errorf("ops:\n%s\nwant a single status read", r)
	}
}

func TestBusyWaitTimeout(t *testing.T) {
	r := &recorder{reply: 0x01}
	f := NewFlash(openBus(r, CSHardware), ThreeByte)
	err := f.BusyWait(time.Millisecond, 20*time.Millisecond)
	var berr *BusyTimeoutError
	if !errors.As(err, &berr) {
		t.Fatalf("got %v, want *BusyTimeoutError", err)
	}
	if berr.Timeout != 20*time.Millisecond || berr.Polls < 1 {
		t.Errorf("got %+v", berr)
	}
}
