package nandprog

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNotOpen is returned by every operation issued before Open succeeded
	// or after Close.
	ErrNotOpen = errors.New("device not open")

	// ErrShortTransfer is wrapped with the byte counts when a transfer moved
	// fewer bytes than requested.
	ErrShortTransfer = errors.New("short transfer")
)

// TransportError reports an adapter-level exchange failure. It is not
// retried by the transaction layer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BusyTimeoutError reports a busy flag that did not clear in time.
type BusyTimeoutError struct {
	Timeout time.Duration
	Polls   int
}

func (e *BusyTimeoutError) Error() string {
	return fmt.Sprintf("flash still busy after %v (%d status reads)", e.Timeout, e.Polls)
}

// VerificationMismatchError reports the first byte where the read-back
// differs from the data written. Offset is relative to the start of the
// written range.
type VerificationMismatchError struct {
	Offset int
	Want   byte
	Got    byte
}

func (e *VerificationMismatchError) Error() string {
	return fmt.Sprintf("verification mismatch at offset 0x%X: wrote 0x%02X, read 0x%02X",
		e.Offset, e.Want, e.Got)
}

func shortTransfer(got, want int) error {
	return errors.Wrapf(ErrShortTransfer, "transferred %d of %d bytes", got, want)
}
