package nandprog

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// FTDI is a Transport on top of an FT232H/FT2232H in MPSSE mode. Chip
// select is driven as a GPIO so that a write phase and a read phase can
// share one transaction.
type FTDI struct {
	Dev *ftdi.FT232H

	cs    gpio.PinIO // ADBUS4 Chip Select
	clock physic.Frequency
	port  spi.PortCloser
	conn  spi.Conn
	mode  StreamMode
	delay time.Duration
}

var hostInitialized atomic.Bool

// MPSSE-capable parts pass the SPI streaming revision check.
const ftdiRevision = 0x30

// NewFTDI returns an unopened FTDI transport clocked at 30MHz.
func NewFTDI() *FTDI {
	return &FTDI{
		clock: 30 * physic.MegaHertz, // [AN_135 3.2.1 Divisors]
	}
}

// Open finds the index-th FT232H/FT2232H.
func (d *FTDI) Open(index int) error {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return errors.Wrap(err, "host initialization failed")
		}
	}

	const (
		vendorID   = 0x0403 // FTDI
		productID  = 0x6010 // FT2232H
		productIDH = 0x6014 // FT232H
	)

	info := ftdi.Info{}
	n := 0
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID || (info.DevID != productID && info.DevID != productIDH) {
			continue
		}
		ft, ok := dev.(*ftdi.FT232H)
		if !ok {
			continue
		}
		if n == index {
			d.Dev = ft
			// [FTDI-AN_114|Table 1] ADBUS0 SCK, ADBUS1 MOSI, ADBUS2 MISO, ADBUS4 CS
			d.cs = ft.D4
			return d.cs.Out(gpio.High)
		}
		n++
	}
	return errors.Errorf("FTDI device %d not found", index)
}

func (d *FTDI) Close() error {
	var err error
	if d.port != nil {
		err = d.port.Close()
	}
	d.port, d.conn, d.Dev = nil, nil, nil
	return err
}

// SetExclusive is a no-op: the USB interface is already claimed by this
// process once opened.
func (d *FTDI) SetExclusive(bool) error { return nil }

func (d *FTDI) ChipRevision() (int, error) {
	if d.Dev == nil {
		return 0, errors.New("FTDI device not opened")
	}
	return ftdiRevision, nil
}

// SetStreamMode connects the SPI port. The bit order cannot change once
// connected.
func (d *FTDI) SetStreamMode(mode StreamMode) error {
	if d.Dev == nil {
		return errors.New("FTDI device not opened")
	}
	if mode.Dual() {
		return errors.New("dual I/O is not supported by MPSSE SPI")
	}
	if d.conn != nil {
		if mode.MSBFirst() != d.mode.MSBFirst() {
			return errors.New("bit order cannot change after connect")
		}
		d.mode = mode
		return nil
	}

	port, err := d.Dev.SPI()
	if err != nil {
		return errors.Wrap(err, "failed to get SPI port")
	}

	// [FTDI AN_114|1.2]> FTDI device can only support mode 0 and mode 2 due to the limitation of MPSSE engine
	m := spi.Mode0
	if !mode.MSBFirst() {
		m |= spi.LSBFirst
	}
	conn, err := port.Connect(d.clock, m, 8)
	if err != nil {
		port.Close()
		return errors.Wrap(err, "failed to connect SPI port")
	}
	d.port, d.conn, d.mode = port, conn, mode
	return nil
}

// SetPins drives CS from bit 0. The remaining pins belong to the MPSSE
// engine. An input CS is released.
func (d *FTDI) SetPins(dir, value byte) error {
	if d.cs == nil {
		return errors.New("FTDI device not opened")
	}
	if dir&pinCS == 0 || value&pinCS != 0 {
		return d.cs.Out(gpio.High)
	}
	return d.cs.Out(gpio.Low)
}

// Stream wraps one SPI transfer, asserting CS around it when selected.
func (d *FTDI) Stream(cs byte, buf []byte) (err error) {
	if d.conn == nil {
		return errors.New("SPI not connected")
	}
	if d.delay > 0 {
		time.Sleep(d.delay)
		d.delay = 0
	}
	if cs&csSelectHardware == 0 {
		return d.conn.Tx(buf, buf)
	}

	if err = d.cs.Out(gpio.Low); err != nil {
		return err
	}
	defer func() {
		if csErr := d.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}()
	err = d.conn.Tx(buf, buf)
	return
}

// SetDelay postpones the next Stream.
func (d *FTDI) SetDelay(delay time.Duration) error {
	d.delay += delay
	return nil
}
