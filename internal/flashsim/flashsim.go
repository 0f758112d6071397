// Package flashsim emulates a CH341-style USB-to-SPI adapter with a serial
// flash chip attached. It implements nandprog.Transport and records what
// the chip saw, for tests and dry runs.
package flashsim

import (
	"bytes"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/gentam/nandprog"
)

// ErrInjected is returned by Stream while FailStreams is positive.
var ErrInjected = errors.New("injected stream failure")

// Opcodes understood by the chip.
const (
	opPageProgram  = 0x02
	opRead         = 0x03
	opWriteDisable = 0x04
	opReadStatus   = 0x05
	opWriteEnable  = 0x06
	opReadIDExt    = 0x15
	opReadStatus2  = 0x35
	opReadIDLegacy = 0x90
	opReadID       = 0x9F
	opReadIDAlt    = 0xAB
	opGlobalUnlock = 0x98
	opEnter4Byte   = 0xB7
	opExit4Byte    = 0xE9
)

// Chip is a simulated adapter and flash chip. Memory starts erased (0xFF)
// and programming can only clear bits.
type Chip struct {
	mu sync.Mutex

	Mem []byte

	JEDEC  [3]byte
	Legacy [2]byte
	Alt    byte
	Ext    [2]byte
	SR2    byte

	// Protect holds the SR1 block protect bits (6:2). Page programs are
	// rejected while any is set.
	Protect byte

	Revision int
	// BusyPolls is how many status reads report busy after a page program
	// or a global unlock.
	BusyPolls int
	// FailStreams makes the next Stream calls fail.
	FailStreams int
	// CorruptReads flips a bit in the next read responses.
	CorruptReads int

	opened    bool
	exclusive bool
	stream    nandprog.StreamMode
	pinDir    byte
	pinVal    byte
	selected  bool
	txn       []byte
	fourByte  bool
	wel       bool
	busy      int
	corrupted bool

	// Transactions lists every completed transaction, opcode first.
	Transactions [][]byte
	// StatusReads counts 0x05 transactions.
	StatusReads int
	// RejectedPrograms counts page programs ignored because the write
	// enable latch was clear, the chip was busy or protected.
	RejectedPrograms int
	Delays           []time.Duration
}

// New returns a chip of the given size identifying as a Winbond W25N01GV.
func New(size int) *Chip {
	return &Chip{
		Mem:      bytes.Repeat([]byte{0xFF}, size),
		JEDEC:    [3]byte{0xEF, 0xAA, 0x21},
		Legacy:   [2]byte{0xEF, 0xFF},
		Alt:      0xFF,
		Ext:      [2]byte{0xFF, 0xFF},
		Revision: 0x30,
	}
}

func (c *Chip) Open(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index != 0 {
		return errors.Errorf("no simulated device %d", index)
	}
	c.opened = true
	return nil
}

func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opened {
		return errors.New("not open")
	}
	c.endTxn()
	c.opened = false
	return nil
}

func (c *Chip) SetExclusive(exclusive bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exclusive = exclusive
	return nil
}

func (c *Chip) ChipRevision() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opened {
		return 0, errors.New("not open")
	}
	return c.Revision, nil
}

func (c *Chip) SetStreamMode(mode nandprog.StreamMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stream = mode
	return nil
}

func (c *Chip) SetDelay(d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Delays = append(c.Delays, d)
	return nil
}

// SetPins selects the chip while D0 is an output driven low.
func (c *Chip) SetPins(dir, value byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opened {
		return errors.New("not open")
	}
	c.pinDir, c.pinVal = dir, value
	sel := dir&0x01 != 0 && value&0x01 == 0
	if c.selected && !sel {
		c.endTxn()
	}
	c.selected = sel
	return nil
}

func (c *Chip) Stream(cs byte, buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opened {
		return errors.New("not open")
	}
	if c.FailStreams > 0 {
		c.FailStreams--
		return ErrInjected
	}
	hw := cs&0x80 != 0
	if hw {
		c.selected = true
	}
	for i, b := range buf {
		if c.selected {
			buf[i] = c.clock(b)
		} else {
			buf[i] = 0xFF
		}
	}
	if hw {
		c.endTxn()
		c.selected = false
		c.pinVal |= 0x01
	}
	return nil
}

// FourByte reports whether the chip is in 4-byte address mode.
func (c *Chip) FourByte() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fourByte
}

// WriteEnabled reports the write enable latch.
func (c *Chip) WriteEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wel
}

// Opcodes returns the opcode of every completed transaction.
func (c *Chip) Opcodes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	ops := make([]byte, 0, len(c.Transactions))
	for _, t := range c.Transactions {
		ops = append(ops, t[0])
	}
	return ops
}

// ResetLog clears the recorded transactions and counters.
func (c *Chip) ResetLog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions = nil
	c.StatusReads = 0
	c.RejectedPrograms = 0
	c.Delays = nil
}

func (c *Chip) addrLen() int {
	if c.fourByte {
		return 4
	}
	return 3
}

// addr decodes the big-endian address following the opcode.
func (c *Chip) addr(txn []byte) int {
	a := 0
	for _, b := range txn[1 : 1+c.addrLen()] {
		a = a<<8 | int(b)
	}
	return a
}

// clock shifts one byte in and returns the byte shifted out.
func (c *Chip) clock(in byte) byte {
	i := len(c.txn)
	c.txn = append(c.txn, in)
	if i == 0 {
		return 0xFF
	}
	switch c.txn[0] {
	case opReadID:
		if i <= 3 {
			return c.JEDEC[i-1]
		}
	case opReadIDLegacy:
		if i >= 4 {
			return c.Legacy[(i-4)%2]
		}
	case opReadIDAlt:
		if i >= 4 {
			return c.Alt
		}
	case opReadIDExt:
		if i <= 2 {
			return c.Ext[i-1]
		}
	case opReadStatus:
		return c.status()
	case opReadStatus2:
		return c.SR2
	case opRead:
		n := c.addrLen()
		if i <= n {
			return 0xFF
		}
		p := c.addr(c.txn) + i - 1 - n
		if p >= len(c.Mem) {
			return 0xFF
		}
		out := c.Mem[p]
		if c.CorruptReads > 0 && !c.corrupted {
			c.corrupted = true
			out ^= 0x01
		}
		return out
	}
	return 0xFF
}

func (c *Chip) status() byte {
	var sr byte
	if c.busy > 0 {
		sr |= 0x01
	}
	if c.wel {
		sr |= 0x02
	}
	return sr | c.Protect&0x7C
}

// endTxn executes the command collected while CS was asserted.
func (c *Chip) endTxn() {
	if len(c.txn) == 0 {
		return
	}
	txn := c.txn
	c.txn = nil
	c.Transactions = append(c.Transactions, txn)

	switch txn[0] {
	case opWriteEnable:
		c.wel = true
	case opWriteDisable:
		c.wel = false
	case opEnter4Byte:
		if c.wel {
			c.fourByte = true
		}
	case opExit4Byte:
		if c.wel {
			c.fourByte = false
		}
	case opReadStatus:
		c.StatusReads++
		if c.busy > 0 {
			c.busy--
		}
	case opRead:
		if c.corrupted {
			c.corrupted = false
			c.CorruptReads--
		}
	case opPageProgram:
		c.program(txn)
	case opGlobalUnlock:
		if c.wel && c.busy == 0 {
			c.Protect = 0
			c.wel = false
			c.busy = c.BusyPolls
		}
	}
}

func (c *Chip) program(txn []byte) {
	n := c.addrLen()
	if !c.wel || c.busy > 0 || c.Protect != 0 || len(txn) <= 1+n {
		c.RejectedPrograms++
		return
	}
	a := c.addr(txn)
	for k, b := range txn[1+n:] {
		if a+k < len(c.Mem) {
			c.Mem[a+k] &= b
		}
	}
	c.wel = false
	c.busy = c.BusyPolls
}
