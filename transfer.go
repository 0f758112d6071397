package nandprog

import (
	"bytes"
	"context"
	"hash/crc32"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrChecksum is returned when two reads of the same page disagree.
var ErrChecksum = errors.New("page checksum mismatch between reads")

// ReadResult is the outcome of a page range read.
type ReadResult struct {
	Start, End int    // page range, End exclusive
	Data       []byte // raw pages, OOB included
	Bytes      int    // bytes transferred
	Expected   int    // bytes requested after clamping to the chip size
	DataBytes  int    // Bytes minus the OOB area of every complete page
	CRC32      uint32 // IEEE CRC of Data
	PageCRCs   []uint32
}

// WriteResult is the outcome of a page range write.
type WriteResult struct {
	Start, End int // pages touched, End exclusive
	Written    int
	Expected   int
	Verified   bool
	// Changed reports whether the range differs between the captures taken
	// before and after the write. Only set when Verified.
	Changed bool
}

// ReadRange reads pages [start, end). end is clamped to the chip size; a
// start beyond the last page is an error.
func (s *Session) ReadRange(ctx context.Context, start, end int) (*ReadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readRange(ctx, start, end)
}

// ReadBytes reads the pages holding length bytes starting at offset. With
// excludeOOB the offsets count data bytes only. Whole pages are returned.
func (s *Session) ReadBytes(ctx context.Context, offset, length int, excludeOOB bool) (*ReadResult, error) {
	req, err := s.geo.RequestForBytes(offset, length, excludeOOB)
	if err != nil {
		return nil, err
	}
	return s.ReadRange(ctx, req.Start, req.End)
}

func (s *Session) readRange(ctx context.Context, start, end int) (*ReadResult, error) {
	if !s.bus.open {
		return nil, ErrNotOpen
	}
	if start < 0 || start > end {
		return nil, errors.Errorf("invalid page range [%d, %d)", start, end)
	}
	if start > s.geo.PageCount() {
		return nil, errors.Errorf("start page %d beyond chip end (%d pages)", start, s.geo.PageCount())
	}
	end = min(end, s.geo.PageCount())

	res := &ReadResult{Start: start, End: end, Expected: s.geo.rangeBytes(start, end)}
	res.Data = make([]byte, 0, res.Expected)

	err := s.withAddressMode(func() error {
		for c := range s.geo.chunks(start, end) {
			if err := ctx.Err(); err != nil {
				return err
			}
			page, sum, err := s.readChunk(c)
			if err != nil {
				return errors.Wrapf(err, "read page %d", c.addr/s.geo.PageSize)
			}
			res.Data = append(res.Data, page...)
			res.Bytes += len(page)
			res.PageCRCs = append(res.PageCRCs, sum)
		}
		return nil
	})
	if s.flash.mode == FourByte {
		// EX4B raised the write enable latch.
		if wrdiErr := s.flash.writeDisable(); wrdiErr != nil && err == nil {
			err = wrdiErr
		}
	}

	res.DataBytes = s.geo.DataBytes(res.Bytes)
	res.CRC32 = crc32.ChecksumIEEE(res.Data)
	if err != nil {
		return res, err
	}
	if res.Bytes != res.Expected {
		return res, shortTransfer(res.Bytes, res.Expected)
	}
	return res, nil
}

// readChunk reads one page, reissuing it on transport or checksum failures
// up to the configured number of retries.
func (s *Session) readChunk(c chunk) (page []byte, sum uint32, err error) {
	log := pkgLog.WithFields(logrus.Fields{"page": c.addr / s.geo.PageSize, "addr": c.addr})
	for attempt := 0; attempt <= s.cfg.Retries; attempt++ {
		if attempt > 0 {
			log.WithError(err).Warnf("retrying page read (%d/%d)", attempt, s.cfg.Retries)
		}
		page, sum, err = s.readChunkOnce(c)
		if err == nil {
			log.WithField("crc32", sum).Debug("page read")
			return page, sum, nil
		}
		var terr *TransportError
		if !errors.As(err, &terr) && !errors.Is(err, ErrChecksum) {
			return nil, 0, err
		}
	}
	return nil, 0, err
}

func (s *Session) readChunkOnce(c chunk) ([]byte, uint32, error) {
	page, err := s.flash.readPage(c.addr, c.n)
	if err != nil {
		return nil, 0, err
	}
	sum := crc32.ChecksumIEEE(page)
	if !s.cfg.VerifyReads {
		return page, sum, nil
	}
	again, err := s.flash.readPage(c.addr, c.n)
	if err != nil {
		return nil, 0, err
	}
	if crc32.ChecksumIEEE(again) != sum {
		return nil, 0, ErrChecksum
	}
	return page, sum, nil
}

// WriteRange programs data page by page starting at startPage. With verify
// the range is read before and after the write; the returned result is
// valid even when a *VerificationMismatchError is returned.
func (s *Session) WriteRange(ctx context.Context, startPage int, data []byte, verify bool) (*WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeRange(ctx, startPage, data, verify)
}

// WriteBytes writes data at the page holding offset. With excludeOOB the
// offset counts data bytes only.
func (s *Session) WriteBytes(ctx context.Context, offset int, data []byte, excludeOOB, verify bool) (*WriteResult, error) {
	req, err := s.geo.RequestForBytes(offset, 0, excludeOOB)
	if err != nil {
		return nil, err
	}
	return s.WriteRange(ctx, req.Start, data, verify)
}

func (s *Session) writeRange(ctx context.Context, startPage int, data []byte, verify bool) (*WriteResult, error) {
	if !s.bus.open {
		return nil, ErrNotOpen
	}
	if startPage < 0 || startPage > s.geo.PageCount() {
		return nil, errors.Errorf("start page %d beyond chip end (%d pages)", startPage, s.geo.PageCount())
	}
	addr := startPage * s.geo.PageSize
	end := addr + len(data)
	if end > s.geo.ChipSize() {
		return nil, errors.Errorf("write of %d bytes at page %d exceeds chip size %d",
			len(data), startPage, s.geo.ChipSize())
	}

	res := &WriteResult{
		Start:    startPage,
		End:      (end + s.geo.PageSize - 1) / s.geo.PageSize,
		Expected: len(data),
		Verified: verify,
	}

	var before []byte
	if verify {
		r, err := s.readRange(ctx, res.Start, res.End)
		if err != nil {
			return res, errors.Wrap(err, "read before write")
		}
		before = r.Data
	}

	pkgLog.WithFields(logrus.Fields{"addr": addr, "bytes": len(data)}).Info("writing")
	if err := s.program(ctx, addr, data, res); err != nil {
		return res, err
	}
	if res.Written != res.Expected {
		return res, shortTransfer(res.Written, res.Expected)
	}
	if !verify {
		return res, nil
	}

	after, err := s.readRange(ctx, res.Start, res.End)
	if err != nil {
		return res, errors.Wrap(err, "read after write")
	}
	res.Changed = !bytes.Equal(before, after.Data)
	for i, b := range data {
		if after.Data[i] != b {
			return res, &VerificationMismatchError{Offset: i, Want: b, Got: after.Data[i]}
		}
	}
	return res, nil
}

// program brackets the page programs with the write enable latch and the
// address mode switch.
func (s *Session) program(ctx context.Context, addr int, data []byte, res *WriteResult) (err error) {
	if err = s.flash.writeEnable(); err != nil {
		return err
	}
	defer func() {
		if wrdiErr := s.flash.writeDisable(); wrdiErr != nil && err == nil {
			err = wrdiErr
		}
	}()

	return s.withAddressMode(func() error {
		for off := 0; off < len(data); {
			// Page program is atomic per page; stop only between pages.
			if err := ctx.Err(); err != nil {
				return err
			}
			n := min(s.geo.PageSize, len(data)-off)
			if err := s.flash.pageProgram(addr+off, data[off:off+n]); err != nil {
				return errors.Wrapf(err, "program page %d", (addr+off)/s.geo.PageSize)
			}
			off += n
			res.Written += n
		}
		return nil
	})
}

// withAddressMode runs fn with the chip in 4-byte mode when the session
// uses it, leaving 4-byte mode afterwards even if fn fails.
func (s *Session) withAddressMode(fn func() error) (err error) {
	if s.flash.mode != FourByte {
		return fn()
	}
	if err = s.flash.enter4Byte(); err != nil {
		return errors.Wrap(err, "enter 4-byte mode")
	}
	defer func() {
		if exitErr := s.flash.exit4Byte(); exitErr != nil && err == nil {
			err = errors.Wrap(exitErr, "exit 4-byte mode")
		}
	}()
	return fn()
}
