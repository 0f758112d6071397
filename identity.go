package nandprog

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ChipIdentity holds the answers to the four ID opcodes. The answers are
// independent probes and need not agree with each other.
type ChipIdentity struct {
	JEDEC  [3]byte // 0x9F: manufacturer, memory type, capacity
	Legacy [2]byte // 0x90: manufacturer, device
	Alt    byte    // 0xAB: device
	Ext    [2]byte // 0x15
}

// Manufacturer returns the JEDEC manufacturer byte.
func (id ChipIdentity) Manufacturer() byte { return id.JEDEC[0] }

// JEDEC memory type codes, second byte of the 0x9F answer.
var memoryTypes = map[byte]string{
	0x01: "DRAM",
	0x02: "EEPROM",
	0x03: "Flash (NAND)",
	0x04: "SRAM",
	0x05: "ROM",
	0x20: "Flash (NOR)",
	0x30: "PCM (Phase-Change Memory)",
	0x40: "FRAM",
	0x50: "MRAM",
	0x60: "ReRAM",
}

// MemoryType decodes the memory type byte of the JEDEC ID. Vendors that
// put a family code there are reported as unknown.
func (id ChipIdentity) MemoryType() (string, bool) {
	t, ok := memoryTypes[id.JEDEC[1]]
	return t, ok
}

// Known returns the part name for a recognised JEDEC ID.
func (id ChipIdentity) Known() (string, bool) {
	if p, ok := knownFlash[id.JEDEC]; ok {
		return p.name, true
	}
	return "", false
}

// Fields returns the per-opcode hex strings with 0xFF padding removed.
// An opcode whose answer is all padding maps to "".
func (id ChipIdentity) Fields() map[byte]string {
	return map[byte]string{
		flashCmdReadID:       idHex(id.JEDEC[:]),
		flashCmdReadIDLegacy: idHex(id.Legacy[:]),
		flashCmdReadIDAlt:    idHex([]byte{id.Alt}),
		flashCmdReadIDExt:    idHex(id.Ext[:]),
	}
}

func (id ChipIdentity) String() string {
	f := id.Fields()
	s := []string{}
	for _, op := range []byte{flashCmdReadID, flashCmdReadIDLegacy, flashCmdReadIDAlt, flashCmdReadIDExt} {
		v := f[op]
		if v == "" {
			v = "-"
		}
		s = append(s, fmt.Sprintf("%02X:%s", op, v))
	}
	return strings.Join(s, " ")
}

func idHex(b []byte) string {
	kept := make([]byte, 0, len(b))
	for _, c := range b {
		if c != 0xFF {
			kept = append(kept, c)
		}
	}
	return strings.ToUpper(hex.EncodeToString(kept))
}

// Probe mode timing. The adapter applies the delays before its next stream.
const (
	probeStartupDelay = 50 * time.Millisecond
	probeSettleDelay  = 2 * time.Millisecond
)

// Probe reads all four chip IDs. It must not overlap a transfer; the
// session lock guarantees that.
func (s *Session) Probe() (ChipIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.bus.open {
		return ChipIdentity{}, ErrNotOpen
	}
	return s.probe()
}

func (s *Session) probe() (id ChipIdentity, err error) {
	if err = s.enterProbeMode(); err != nil {
		return id, err
	}
	defer func() {
		if exitErr := s.exitProbeMode(); exitErr != nil && err == nil {
			err = exitErr
		}
	}()

	if id.JEDEC, err = s.flash.ReadJEDECID(); err != nil {
		return id, err
	}
	if id.Legacy, err = s.flash.ReadLegacyID(); err != nil {
		return id, err
	}
	if id.Alt, err = s.flash.ReadAltID(); err != nil {
		return id, err
	}
	if id.Ext, err = s.flash.ReadExtID(); err != nil {
		return id, err
	}

	s.flash.identify(id.JEDEC)
	s.id = id
	pkgLog.WithField("id", id.String()).Debug("probed chip identity")
	return id, nil
}

func (s *Session) enterProbeMode() error {
	if err := s.t.SetStreamMode(StreamMSBFirst); err != nil {
		return &TransportError{Op: "set stream mode", Err: err}
	}
	if err := s.t.SetDelay(probeStartupDelay); err != nil {
		return &TransportError{Op: "set delay", Err: err}
	}
	// Release power down, which also wakes parts left in deep sleep.
	if _, err := s.bus.Write(CSHardware, []byte{flashCmdReadIDAlt}); err != nil {
		return err
	}
	if err := s.t.SetDelay(probeSettleDelay); err != nil {
		return &TransportError{Op: "set delay", Err: err}
	}
	return nil
}

func (s *Session) exitProbeMode() error {
	if err := s.t.SetPins(0, 0); err != nil {
		return &TransportError{Op: "release pins", Err: err}
	}
	return nil
}
