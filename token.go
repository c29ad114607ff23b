package arcfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
)

// TokenReader reads delimiter-terminated UTF-8 tokens.
type TokenReader struct {
	delim byte
	buf   []byte
}

// NewTokenReader returns a TokenReader splitting on delim, which must be exactly one byte.
func NewTokenReader(delim []byte) (*TokenReader, error) {
	if len(delim) != 1 {
		return nil, ErrDelimiter
	}
	return &TokenReader{delim: delim[0]}, nil
}

// ReadToken accumulates bytes up to the next delimiter, which is consumed but not returned. Invalid
// UTF-8 is replaced with U+FFFD. If the stream ends before a delimiter, the bytes read so far are
// returned together with io.EOF.
func (t *TokenReader) ReadToken(r io.ByteReader) (string, error) {
	t.buf = t.buf[:0]
	for {
		b, err := r.ReadByte()
		if err != nil {
			return t.decode(), err
		}
		if b == t.delim {
			return t.decode(), nil
		}
		t.buf = append(t.buf, b)
	}
}

func (t *TokenReader) decode() string {
	out, err := unicode.UTF8.NewDecoder().Bytes(t.buf)
	if err != nil {
		return string(t.buf)
	}
	return string(out)
}

// ScanToNextHeader skips bytes until it finds an ASCII hex digit, which it leaves unread. It
// returns false at the end of the stream and ErrScanLimit if maxScan bytes are skipped first.
func ScanToNextHeader(r io.ByteScanner, maxScan int64) (bool, error) {
	for scanned := int64(0); scanned < maxScan; scanned++ {
		b, err := r.ReadByte()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if isHexByte(b) {
			return true, r.UnreadByte()
		}
	}
	return false, ErrScanLimit
}

// source is a buffered io.ReadSeeker that keeps track of its logical offset, so that byte-at-a-time
// token reads stay cheap while callers can still seek.
type source struct {
	rs  io.ReadSeeker
	br  *bufio.Reader
	off int64

	// size is the length of the underlying stream when it was opened.
	size int64
}

func newSource(rs io.ReadSeeker) (*source, error) {
	off, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("arcfile: %w", err)
	}
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("arcfile: %w", err)
	}
	if _, err := rs.Seek(off, io.SeekStart); err != nil {
		return nil, fmt.Errorf("arcfile: %w", err)
	}
	return &source{rs: rs, br: bufio.NewReaderSize(rs, 64*1024), off: off, size: size}, nil
}

func (s *source) ReadByte() (byte, error) {
	b, err := s.br.ReadByte()
	if err == nil {
		s.off++
	}
	return b, err
}

func (s *source) UnreadByte() error {
	err := s.br.UnreadByte()
	if err == nil {
		s.off--
	}
	return err
}

func (s *source) Read(p []byte) (int, error) {
	n, err := s.br.Read(p)
	s.off += int64(n)
	return n, err
}

func (s *source) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += s.off
		whence = io.SeekStart
	}
	off, err := s.rs.Seek(offset, whence)
	if err != nil {
		return s.off, err
	}
	s.br.Reset(s.rs)
	s.off = off
	return off, nil
}

// Offset is the position of the next byte to be read.
func (s *source) Offset() int64 {
	return s.off
}

// Remaining is the number of bytes between offset and the end of the stream.
func (s *source) Remaining(offset int64) int64 {
	if offset >= s.size {
		return 0
	}
	return s.size - offset
}
