package nandprog

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi"
)

// csConn is an spi.Conn recording the CS level seen by every transfer.
type csConn struct {
	cs      *gpiotest.Pin
	reply   []byte
	written [][]byte
	levels  []gpio.Level
}

func (c *csConn) String() string                 { return "csConn" }
func (c *csConn) Duplex() conn.Duplex            { return conn.Full }
func (c *csConn) TxPackets(p []spi.Packet) error { return errors.New("not supported") }

func (c *csConn) Tx(w, r []byte) error {
	c.written = append(c.written, append([]byte(nil), w...))
	c.levels = append(c.levels, c.cs.Read())
	copy(r, c.reply)
	return nil
}

func testFTDI() (*FTDI, *csConn) {
	cs := &gpiotest.Pin{N: "D4", L: gpio.High}
	c := &csConn{cs: cs}
	return &FTDI{cs: cs, conn: c, mode: StreamMSBFirst}, c
}

func TestFTDIStreamHardwareCS(t *testing.T) {
	d, c := testFTDI()
	c.reply = []byte{0xEF, 0xAA, 0x21}
	buf := []byte{0xFF, 0xFF, 0xFF}
	if err := d.Stream(csSelectHardware, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, c.reply) {
		t.Errorf("read % X", buf)
	}
	if c.levels[0] != gpio.Low {
		t.Error("CS not asserted during transfer")
	}
	if c.cs.Read() != gpio.High {
		t.Error("CS not released after transfer")
	}
}

func TestFTDIManualCS(t *testing.T) {
	d, c := testFTDI()
	if err := d.SetPins(DefaultChipSelectMask, 0); err != nil {
		t.Fatal(err)
	}
	if err := d.Stream(0, []byte{0x9F}); err != nil {
		t.Fatal(err)
	}
	if err := d.Stream(0, []byte{0xFF}); err != nil {
		t.Fatal(err)
	}
	if c.levels[0] != gpio.Low || c.levels[1] != gpio.Low {
		t.Errorf("CS levels %v, want held low", c.levels)
	}
	if err := d.SetPins(DefaultChipSelectMask, pinCS); err != nil {
		t.Fatal(err)
	}
	if c.cs.Read() != gpio.High {
		t.Error("CS not released")
	}

	// Releasing all pins also raises CS.
	d.SetPins(DefaultChipSelectMask, 0)
	d.SetPins(0, 0)
	if c.cs.Read() != gpio.High {
		t.Error("CS low with pins released")
	}
}

func TestFTDIDelay(t *testing.T) {
	d, _ := testFTDI()
	d.SetDelay(time.Millisecond)
	d.SetDelay(time.Millisecond)
	if d.delay != 2*time.Millisecond {
		t.Errorf("delay %v, want 2ms", d.delay)
	}
	start := time.Now()
	if err := d.Stream(0, []byte{0}); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 2*time.Millisecond {
		t.Error("stream not delayed")
	}
	if d.delay != 0 {
		t.Errorf("delay %v left pending", d.delay)
	}
}

func TestFTDINotOpen(t *testing.T) {
	d := NewFTDI()
	if err := d.Stream(0, []byte{0}); err == nil {
		t.Error("stream without connection succeeded")
	}
	if err := d.SetPins(DefaultChipSelectMask, 0); err == nil {
		t.Error("set pins without device succeeded")
	}
	if _, err := d.ChipRevision(); err == nil {
		t.Error("revision without device succeeded")
	}
	if err := d.SetStreamMode(spiStreamMode); err == nil {
		t.Error("stream mode without device succeeded")
	}
}

func TestFTDIOpenMissing(t *testing.T) {
	err := NewFTDI().Open(1 << 10)
	if err == nil {
		t.Fatal("opened a nonexistent adapter")
	}
	// Failures carry the call stack of the open.
	if trace := fmt.Sprintf("%+v", err); !strings.Contains(trace, "(*FTDI).Open") {
		t.Errorf("no stack trace in %q", trace)
	}
}
