package nandprog

import "time"

// Transport is the capability set of a USB-to-SPI bridge. The CH341
// programming manual is the model: a chip select selector with bit 7 set
// asks the adapter to assert CS for the duration of Stream, a zero selector
// leaves CS wherever SetPins put it.
type Transport interface {
	Open(index int) error
	Close() error
	SetExclusive(exclusive bool) error
	ChipRevision() (int, error)
	SetStreamMode(mode StreamMode) error
	// SetPins sets the direction (1 = output) and output level of D5-D0.
	SetPins(dir, value byte) error
	// Stream clocks buf out and replaces it with the bytes clocked in.
	Stream(cs byte, buf []byte) error
	// SetDelay delays the next stream operation.
	SetDelay(d time.Duration) error
}

// StreamMode is the adapter stream configuration. [CH341DS2|CH341SetStream]
//
//	Bit | Meaning
//	----+-----------------------------------------------
//	1:0 | I2C speed (00 20KHz, 01 100KHz, 10 400KHz, 11 750KHz)
//	2   | SPI I/O: 0 single in/out, 1 dual in/out
//	7   | SPI bit order: 0 LSB first, 1 MSB first
type StreamMode byte

const (
	StreamI2C100K  StreamMode = 0x01
	StreamSPIDual  StreamMode = 0x04
	StreamMSBFirst StreamMode = 0x80
)

func (m StreamMode) MSBFirst() bool { return m&StreamMSBFirst != 0 }
func (m StreamMode) Dual() bool     { return m&StreamSPIDual != 0 }

// Chip select selector bit asking the adapter to drive CS itself.
const csSelectHardware = 0x80

// Pin D0 carries chip select when it is driven manually.
const pinCS = 0x01

// DefaultChipSelectMask sets D0 (CS), D3 (clock) and D5 (MOSI) as outputs.
// 0x3F additionally drives D1, D2 and D4; it is accepted by the config but
// not known to be equivalent on every board revision.
const DefaultChipSelectMask = 0x29
