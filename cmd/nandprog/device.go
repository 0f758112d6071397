package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gentam/nandprog"
	"github.com/gentam/nandprog/internal/flashsim"
	log "github.com/sirupsen/logrus"
)

// device is an open session plus whatever has to happen when it closes.
type device struct {
	*nandprog.Session

	ftdi *nandprog.FTDI
	sim  *flashsim.Chip
}

// openDevice opens the FTDI adapter, or the simulated chip when --sim is
// given.
func openDevice() (*device, error) {
	d := &device{}
	var t nandprog.Transport
	if simFile != "" {
		chip, err := loadSim(simFile, cfg.Geometry().ChipSize())
		if err != nil {
			return nil, err
		}
		d.sim = chip
		t = chip
	} else {
		d.ftdi = nandprog.NewFTDI()
		t = d.ftdi
	}

	s, err := nandprog.Open(t, cfg)
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	d.Session = s
	return d, nil
}

func (d *device) close() {
	if err := d.Session.Close(); err != nil {
		log.Warnf("close device: %v", err)
	}
	if d.sim != nil {
		if err := os.WriteFile(simFile, d.sim.Mem, 0644); err != nil {
			log.Errorf("save simulated chip: %v", err)
		}
	}
}

// loadSim creates a simulated chip of the given size, preloaded from path
// when it exists.
func loadSim(path string, size int) (*flashsim.Chip, error) {
	chip := flashsim.New(size)
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Infof("creating erased simulated chip %s", path)
	case err != nil:
		return nil, err
	default:
		if len(b) > size {
			return nil, fmt.Errorf("image %s is larger than the chip (%d > %d)", path, len(b), size)
		}
		copy(chip.Mem, b)
	}
	return chip, nil
}
