package nandprog

// ChipSelect picks how CS is handled for one exchange.
type ChipSelect int

const (
	// CSManual drives CS low through the pins before the exchange and
	// leaves it asserted afterwards, so a following phase continues the
	// same flash transaction.
	CSManual ChipSelect = iota
	// CSHardware lets the adapter assert CS for the exchange and release
	// it at the end, terminating the flash transaction.
	CSHardware
)

func (cs ChipSelect) String() string {
	if cs == CSHardware {
		return "hardware"
	}
	return "manual"
}

// Bus is the SPI transaction layer on top of a Transport.
type Bus struct {
	t      Transport
	open   bool
	index  byte // adapter chip select line, D0-D2
	mask   byte // pin direction mask used for manual CS
	endsCS ChipSelect
}

func newBus(t Transport, mask byte, index int, end ChipSelect) *Bus {
	return &Bus{
		t:      t,
		index:  byte(index) & 0x03,
		mask:   mask,
		endsCS: end,
	}
}

// Write clocks p out and returns the number of bytes written. p is not
// modified.
func (b *Bus) Write(cs ChipSelect, p []byte) (int, error) {
	if !b.open {
		return 0, ErrNotOpen
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	if err := b.stream(cs, buf); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read clocks n bytes in, sending 0xFF.
func (b *Bus) Read(cs ChipSelect, n int) ([]byte, error) {
	if !b.open {
		return nil, ErrNotOpen
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = 0xFF
	}
	if err := b.stream(cs, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Release raises CS through the pins, ending a manually selected
// transaction.
func (b *Bus) Release() error {
	if !b.open {
		return ErrNotOpen
	}
	if err := b.t.SetPins(b.mask, pinCS); err != nil {
		return &TransportError{Op: "release cs", Err: err}
	}
	return nil
}

func (b *Bus) stream(cs ChipSelect, buf []byte) error {
	if cs == CSHardware {
		if err := b.t.Stream(csSelectHardware|b.index, buf); err != nil {
			return &TransportError{Op: "stream", Err: err}
		}
		return nil
	}
	if err := b.t.SetPins(b.mask, 0); err != nil {
		return &TransportError{Op: "assert cs", Err: err}
	}
	if err := b.t.Stream(0, buf); err != nil {
		return &TransportError{Op: "stream", Err: err}
	}
	return nil
}

// tx runs one flash transaction: w is sent with CS held, then rn bytes
// are read. The last phase ends the transaction according to the
// configured chip select mode. CS is raised after a failure so the next
// transaction does not continue a broken one.
func (b *Bus) tx(w []byte, rn int) (r []byte, err error) {
	last := b.endsCS
	if rn > 0 {
		if _, err = b.Write(CSManual, w); err == nil {
			r, err = b.Read(last, rn)
		}
	} else {
		_, err = b.Write(last, w)
	}
	if err != nil && !b.open {
		return nil, err
	}
	if last == CSManual || err != nil {
		if csErr := b.Release(); csErr != nil && err == nil {
			err = csErr
		}
	}
	return r, err
}
