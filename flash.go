package nandprog

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Flash encodes flash commands into Bus transactions.
type Flash struct {
	bus  *Bus
	mode AddressMode
	id   [3]byte // JEDEC ID of the flash chip
	pr   *flashParams

	pollInterval time.Duration
	busyTimeout  time.Duration
}

func NewFlash(bus *Bus, mode AddressMode) *Flash {
	return &Flash{
		bus:          bus,
		mode:         mode,
		pollInterval: 100 * time.Millisecond,
	}
}

// Flash commands:
//   - [W25N01GV|8.1 Instruction Set Table]
//   - [W25Q128|8.1.2 Instruction Set Table 1]
//   - [MX25L256|Command Set] for EN4B/EX4B
const (
	flashCmdReadID              = 0x9F // JEDEC ID
	flashCmdReadIDLegacy        = 0x90 // Manufacturer/Device ID
	flashCmdReadIDAlt           = 0xAB // Release Power Down / Device ID
	flashCmdReadIDExt           = 0x15
	flashCmdRead                = 0x03
	flashCmdPageProgram         = 0x02
	flashCmdWriteEnable         = 0x06
	flashCmdWriteDisable        = 0x04
	flashCmdEnter4Byte          = 0xB7
	flashCmdExit4Byte           = 0xE9
	flashCmdReadStatusRegister  = 0x05
	flashCmdReadStatusRegister2 = 0x35
	flashCmdGlobalUnlock        = 0x98
)

// Mode returns the address mode used to encode read and program commands.
func (f *Flash) Mode() AddressMode { return f.mode }

// cmdAddr builds opcode followed by the big-endian address, 3 or 4 bytes
// depending on the address mode, with room for extra payload bytes.
func (f *Flash) cmdAddr(op byte, addr, extra int) ([]byte, error) {
	n := f.mode.AddrLen()
	if addr < 0 || addr >= 1<<(8*n) {
		return nil, errors.Errorf("address 0x%X out of %s range", addr, f.mode)
	}
	buf := make([]byte, 1+n, 1+n+extra)
	buf[0] = op
	for i := range n {
		buf[n-i] = byte(addr >> (8 * i))
	}
	return buf, nil
}

func (f *Flash) ReadJEDECID() (id [3]byte, err error) {
	r, err := f.bus.tx([]byte{flashCmdReadID}, 3)
	if err != nil {
		return id, err
	}
	return [3]byte(r), nil
}

func (f *Flash) ReadLegacyID() (id [2]byte, err error) {
	r, err := f.bus.tx([]byte{flashCmdReadIDLegacy, 0, 0, 0}, 2)
	if err != nil {
		return id, err
	}
	return [2]byte(r), nil
}

func (f *Flash) ReadAltID() (byte, error) {
	r, err := f.bus.tx([]byte{flashCmdReadIDAlt, 0, 0, 0}, 1)
	if err != nil {
		return 0, err
	}
	return r[0], nil
}

func (f *Flash) ReadExtID() (id [2]byte, err error) {
	r, err := f.bus.tx([]byte{flashCmdReadIDExt}, 2)
	if err != nil {
		return id, err
	}
	return [2]byte(r), nil
}

// identify records the JEDEC ID and configures chip parameters if known.
func (f *Flash) identify(id [3]byte) {
	f.id = id
	f.pr = nil
	if params, ok := knownFlash[id]; ok {
		f.pr = &params
	}
}

func (f *Flash) writeEnable() error {
	_, err := f.bus.tx([]byte{flashCmdWriteEnable}, 0)
	return err
}

func (f *Flash) writeDisable() error {
	_, err := f.bus.tx([]byte{flashCmdWriteDisable}, 0)
	return err
}

// enter4Byte switches the chip into 4-byte addressing. Some parts only
// accept EN4B with the write enable latch set.
func (f *Flash) enter4Byte() error {
	if err := f.writeEnable(); err != nil {
		return err
	}
	_, err := f.bus.tx([]byte{flashCmdEnter4Byte}, 0)
	return err
}

func (f *Flash) exit4Byte() error {
	if err := f.writeEnable(); err != nil {
		return err
	}
	_, err := f.bus.tx([]byte{flashCmdExit4Byte}, 0)
	return err
}

// globalUnlock clears the block protection of the whole array and waits
// for the chip to finish.
func (f *Flash) globalUnlock() (err error) {
	if err = f.writeEnable(); err != nil {
		return err
	}
	defer func() {
		if wrdiErr := f.writeDisable(); wrdiErr != nil && err == nil {
			err = wrdiErr
		}
	}()
	if _, err = f.bus.tx([]byte{flashCmdGlobalUnlock}, 0); err != nil {
		return err
	}
	return f.BusyWait(f.pollInterval, f.busyTimeout)
}

// readPage reads n bytes starting at addr.
func (f *Flash) readPage(addr, n int) ([]byte, error) {
	cmd, err := f.cmdAddr(flashCmdRead, addr, 0)
	if err != nil {
		return nil, err
	}
	r, err := f.bus.tx(cmd, n)
	if err != nil {
		return nil, err
	}
	if len(r) != n {
		return r, shortTransfer(len(r), n)
	}
	return r, nil
}

// pageProgram programs one page worth of data at addr and waits for the
// chip to finish.
func (f *Flash) pageProgram(addr int, data []byte) error {
	if err := f.writeEnable(); err != nil {
		return err
	}
	cmd, err := f.cmdAddr(flashCmdPageProgram, addr, len(data))
	if err != nil {
		return err
	}
	if _, err := f.bus.tx(append(cmd, data...), 0); err != nil {
		return err
	}
	return f.BusyWait(f.pollInterval, f.busyTimeout)
}

// BusyWait waits for the flash to become ready by polling the status
// register's bit 0 with the given interval. A timeout of 0 selects one
// derived from the page program time of the chip.
func (f *Flash) BusyWait(interval, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = max(time.Second, 100*f.tPP())
	}

	// Fast path
	polls := 1
	sr, err := f.ReadStatusRegister()
	if err != nil {
		return err
	}
	if !sr.Busy() {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			return &BusyTimeoutError{Timeout: timeout, Polls: polls}
		case <-ticker.C:
			sr, err := f.ReadStatusRegister()
			if err != nil {
				return err
			}
			polls++
			if !sr.Busy() {
				pkgLog.WithField("polls", polls).Debug("flash ready")
				return nil
			}
		}
	}
}

// StatusRegister represents status register 1 of the flash chip.
//
//	Bits| [W25Q128|7.1 Status Registers]
//	----+-------------------------------
//	7   | SRP: Status Register Protect
//	6   | SEC: Sector protect
//	5   | TB: Top/Bottom protect
//	4:2 | BP2-0: Block Protect bit 2-0
//	1   | WEL: Write Enable Latch
//	0   | BUSY: Erase/Write in progress
type StatusRegister byte

func (sr StatusRegister) StatusRegisterProtect() bool { return sr&(1<<7) != 0 }
func (sr StatusRegister) SectorProtect() bool         { return sr&(1<<6) != 0 }
func (sr StatusRegister) TopBottom() bool             { return sr&(1<<5) != 0 }
func (sr StatusRegister) BlockProtect2() bool         { return sr&(1<<4) != 0 }
func (sr StatusRegister) BlockProtect1() bool         { return sr&(1<<3) != 0 }
func (sr StatusRegister) BlockProtect0() bool         { return sr&(1<<2) != 0 }
func (sr StatusRegister) WriteEnabled() bool          { return sr&(1<<1) != 0 }
func (sr StatusRegister) Busy() bool                  { return sr&(1<<0) != 0 }

func (sr StatusRegister) String() string {
	return bitString(byte(sr), []flagBit{
		{sr.StatusRegisterProtect(), "SRP"},
		{sr.SectorProtect(), "SEC"},
		{sr.TopBottom(), "TB"},
		{sr.BlockProtect2(), "BP2"},
		{sr.BlockProtect1(), "BP1"},
		{sr.BlockProtect0(), "BP0"},
		{sr.WriteEnabled(), "WEL"},
		{sr.Busy(), "BUSY"},
	})
}

// StatusRegister2 represents status register 2.
//
//	Bits| [W25Q128|7.1 Status Registers]
//	----+-------------------------------
//	7   | SUS: Suspend Status
//	6   | CMP: Complement Protect
//	5:3 | LB3-1: Security Register Lock Bits
//	1   | QE: Quad Enable
//	0   | SRL: Status Register Lock
type StatusRegister2 byte

func (sr StatusRegister2) Suspended() bool          { return sr&(1<<7) != 0 }
func (sr StatusRegister2) ComplementProtect() bool  { return sr&(1<<6) != 0 }
func (sr StatusRegister2) LockBits() byte           { return byte(sr>>3) & 0x07 }
func (sr StatusRegister2) QuadEnable() bool         { return sr&(1<<1) != 0 }
func (sr StatusRegister2) StatusRegisterLock() bool { return sr&(1<<0) != 0 }

func (sr StatusRegister2) String() string {
	return bitString(byte(sr), []flagBit{
		{sr.Suspended(), "SUS"},
		{sr.ComplementProtect(), "CMP"},
		{sr.LockBits()&0x04 != 0, "LB3"},
		{sr.LockBits()&0x02 != 0, "LB2"},
		{sr.LockBits()&0x01 != 0, "LB1"},
		{sr.QuadEnable(), "QE"},
		{sr.StatusRegisterLock(), "SRL"},
	})
}

type flagBit struct {
	set  bool
	name string
}

func bitString(v byte, flags []flagBit) string {
	b := fmt.Sprintf("%08b", v)
	s := []string{}
	for _, f := range flags {
		if f.set {
			s = append(s, f.name)
		}
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}

func (f *Flash) ReadStatusRegister() (StatusRegister, error) {
	r, err := f.bus.tx([]byte{flashCmdReadStatusRegister}, 1)
	if err != nil {
		return 0, err
	}
	return StatusRegister(r[0]), nil
}

func (f *Flash) ReadStatusRegister2() (StatusRegister2, error) {
	r, err := f.bus.tx([]byte{flashCmdReadStatusRegister2}, 1)
	if err != nil {
		return 0, err
	}
	return StatusRegister2(r[0]), nil
}
