package nandprog

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// SPI init stream mode: MSB first, I2C at the default 100KHz.
const spiStreamMode = StreamMSBFirst | StreamI2C100K

// Session is an open adapter with one flash chip attached.
type Session struct {
	mu sync.Mutex

	t     Transport
	cfg   Config
	geo   Geometry
	bus   *Bus
	flash *Flash
	id    ChipIdentity

	pageLatency time.Duration
}

// Open opens the adapter, checks that it can stream SPI, initialises the
// bus and probes the chip.
func Open(t Transport, cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, _ := cfg.ResolveAddressMode()
	end, _ := cfg.chipSelectEnd()

	s := &Session{
		t:   t,
		cfg: cfg,
		geo: cfg.Geometry(),
		bus: newBus(t, cfg.ChipSelectMask, cfg.ChipSelectIndex, end),
	}
	s.flash = NewFlash(s.bus, mode)
	s.flash.pollInterval = cfg.PollInterval
	s.flash.busyTimeout = cfg.BusyTimeout

	pkgLog.WithField("geometry", s.geo.String()).Info("opening device")

	if err := t.Open(cfg.DeviceIndex); err != nil {
		return nil, &TransportError{Op: "open", Err: err}
	}
	if err := s.handshake(); err != nil {
		t.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) handshake() error {
	if err := s.t.SetExclusive(s.cfg.Exclusive); err != nil {
		return &TransportError{Op: "set exclusive", Err: err}
	}
	rev, err := s.t.ChipRevision()
	if err != nil {
		return &TransportError{Op: "chip revision", Err: err}
	}
	pkgLog.WithField("revision", rev).Info("adapter opened")
	if rev < s.cfg.MinChipRevision {
		return errors.Errorf("adapter revision 0x%02X does not support SPI streaming (need 0x%02X)",
			rev, s.cfg.MinChipRevision)
	}
	s.bus.open = true

	if err := s.spiInit(); err != nil {
		return err
	}
	if _, err := s.probe(); err != nil {
		return errors.Wrap(err, "probe chip")
	}
	if p := s.flash.pr; p != nil && p.capacity != 0 && p.capacity != s.geo.ChipSize() {
		pkgLog.Warnf("%s has %d bytes but geometry describes %d", p.name, p.capacity, s.geo.ChipSize())
	}
	if !s.cfg.SkipBenchmark {
		s.benchmark()
	}
	return nil
}

func (s *Session) spiInit() error {
	if err := s.t.SetStreamMode(spiStreamMode); err != nil {
		return &TransportError{Op: "set stream mode", Err: err}
	}
	if err := s.t.SetPins(s.cfg.ChipSelectMask, 0); err != nil {
		return &TransportError{Op: "set pins", Err: err}
	}
	return nil
}

// benchmark times a short read to estimate transfer durations. Failures
// only leave the estimate unset.
func (s *Session) benchmark() {
	const pages = 3
	end := min(pages, s.geo.PageCount())
	start := time.Now()
	if _, err := s.readRange(context.Background(), 0, end); err != nil {
		pkgLog.WithError(err).Warn("page latency benchmark failed")
		return
	}
	s.pageLatency = time.Since(start) / time.Duration(max(end, 1))
	pkgLog.WithField("latency", s.pageLatency).Info("page read time")
}

// Close releases the pins and closes the adapter. Further operations fail
// with ErrNotOpen.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.bus.open {
		return ErrNotOpen
	}
	s.bus.open = false
	pinErr := s.t.SetPins(0, 0)
	if err := s.t.Close(); err != nil {
		return &TransportError{Op: "close", Err: err}
	}
	if pinErr != nil {
		return &TransportError{Op: "release pins", Err: pinErr}
	}
	return nil
}

// Geometry returns the configured chip geometry.
func (s *Session) Geometry() Geometry { return s.geo }

// AddressMode returns the address mode used for transfers.
func (s *Session) AddressMode() AddressMode { return s.flash.mode }

// Identity returns the identity probed at open or by the last Probe.
func (s *Session) Identity() ChipIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// PageLatency returns the measured time per page read, or 0.
func (s *Session) PageLatency() time.Duration { return s.pageLatency }

// Estimate returns the expected duration of a transfer of the given number
// of pages, or 0 if no latency was measured.
func (s *Session) Estimate(pages int) time.Duration {
	return s.pageLatency * time.Duration(pages)
}

// StatusRegisters reads both status registers.
func (s *Session) StatusRegisters() (StatusRegister, StatusRegister2, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr1, err := s.flash.ReadStatusRegister()
	if err != nil {
		return 0, 0, err
	}
	sr2, err := s.flash.ReadStatusRegister2()
	return sr1, sr2, err
}

// Unlock clears the block protection bits so that every page can be
// programmed. The chip is woken the same way as for Probe.
func (s *Session) Unlock() (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.bus.open {
		return ErrNotOpen
	}
	if err = s.enterProbeMode(); err != nil {
		return err
	}
	defer func() {
		if exitErr := s.exitProbeMode(); exitErr != nil && err == nil {
			err = exitErr
		}
	}()
	if err = s.flash.globalUnlock(); err != nil {
		return errors.Wrap(err, "global block unlock")
	}
	pkgLog.Info("chip unlocked")
	return nil
}
