/*
Copyright (c) 2013 Blake Smith <blakesmith0@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package arcfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// debugRecords is the number of leading records logged at debug level.
const debugRecords = 4

// Reader provides sequential access to the records of an archive.
// Call Next to advance to the next record.
//
// Example:
//
//	reader, err := NewReader(f, format)
//	if err != nil {
//	    return err
//	}
//	for {
//	    rec, err := reader.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(rec.Name)
//	}
type Reader struct {
	// src is the underlying archive, buffered and offset-tracking.
	src *source

	format *FormatSpec
	tokens *TokenReader

	// signature is the archive's first token.
	signature string

	// pending is the most recent file record whose payload has not been consumed with Payload or
	// Skip. Next skips over it before looking for the following header.
	pending *Record

	maxScan        int64
	maxPayloadScan int
	count          int
	done           bool
	logger         *slog.Logger
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithHeaderScanLimit bounds how many bytes the recovery scan may skip between records.
func WithHeaderScanLimit(n int64) ReaderOption {
	return func(rd *Reader) { rd.maxScan = n }
}

// WithPayloadScanLimit bounds the window searched for the start of a payload.
func WithPayloadScanLimit(n int) ReaderOption {
	return func(rd *Reader) { rd.maxPayloadScan = n }
}

// WithLogger sets the logger diagnostics are written to.
func WithLogger(l *slog.Logger) ReaderOption {
	return func(rd *Reader) { rd.logger = l }
}

// NewReader creates a new Reader for the archive in r, which must be positioned at its first byte.
// It validates the signature token and consumes the global header.
func NewReader(r io.ReadSeeker, format *FormatSpec, opts ...ReaderOption) (*Reader, error) {
	tokens, err := NewTokenReader(format.Delimiter)
	if err != nil {
		return nil, &ConfigError{Path: format.Key, Err: err}
	}
	src, err := newSource(r)
	if err != nil {
		return nil, err
	}
	rd := &Reader{
		src:            src,
		format:         format,
		tokens:         tokens,
		maxScan:        DEFAULT_HEADER_SCAN,
		maxPayloadScan: DEFAULT_PAYLOAD_SCAN,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(rd)
	}

	// The signature may carry trailing version digits, so only its prefix has to match.
	start := rd.src.Offset()
	if rd.signature, err = rd.token(); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(rd.signature, format.Magic) {
		return nil, &StreamError{
			Offset: start,
			Err:    fmt.Errorf("%w: got %q, expected prefix %q", ErrSignatureMismatch, rd.signature, format.Magic),
		}
	}

	// The global header is a length token, a hex field count and that many fields, none of which
	// are needed. Some variants do not write a hex count; carry on regardless.
	globalLen, err := rd.token()
	if err != nil {
		return nil, err
	}
	globalCount, err := rd.token()
	if err != nil {
		return nil, err
	}
	if isHex(globalCount) {
		n, _ := strconv.ParseUint(globalCount, 16, 64)
		if _, err := rd.fields(n); err != nil {
			return nil, err
		}
	}
	rd.logger.Debug("Read global header", "signature", rd.signature, "len", globalLen, "fields", globalCount)
	return rd, nil
}

// Signature is the archive's signature token, e.g. "ArchiveFile1".
func (rd *Reader) Signature() string {
	return rd.signature
}

// Format is the format the archive is read as.
func (rd *Reader) Format() *FormatSpec {
	return rd.format
}

// Offset is the current position in the archive.
func (rd *Reader) Offset() int64 {
	return rd.src.Offset()
}

// token reads one token, treating the end of the stream as an empty tail rather than an error.
func (rd *Reader) token() (string, error) {
	tok, err := rd.tokens.ReadToken(rd.src)
	if err != nil && !errors.Is(err, io.EOF) {
		return tok, fmt.Errorf("arcfile: %w", err)
	}
	return tok, nil
}

// fields reads up to n tokens, stopping early at the end of the stream.
func (rd *Reader) fields(n uint64) ([]string, error) {
	out := make([]string, 0, min(n, 1024))
	for i := uint64(0); i < n; i++ {
		tok, err := rd.tokens.ReadToken(rd.src)
		if errors.Is(err, io.EOF) {
			if tok != "" {
				out = append(out, tok)
			}
			break
		}
		if err != nil {
			return nil, fmt.Errorf("arcfile: %w", err)
		}
		out = append(out, tok)
	}
	return out, nil
}

// Next advances to the next record in the archive. io.EOF is returned once no further header can
// be found.
func (rd *Reader) Next() (*Record, error) {
	if rd.done {
		return nil, io.EOF
	}
	if err := rd.skipUnread(); err != nil {
		return nil, err
	}

	for {
		ok, err := ScanToNextHeader(rd.src, rd.maxScan)
		if err != nil {
			rd.done = true
			return nil, &StreamError{Offset: rd.src.Offset(), Err: err}
		}
		if !ok {
			rd.done = true
			return nil, io.EOF
		}

		headerOffset := rd.src.Offset()
		headerLen, err := rd.token()
		if err != nil {
			return nil, err
		}
		// A length that is not hex is trailing data rather than another record.
		if !isHex(headerLen) {
			rd.done = true
			return nil, io.EOF
		}
		fieldCount, err := rd.token()
		if err != nil {
			return nil, err
		}
		if !isHex(fieldCount) {
			continue
		}
		n, err := strconv.ParseUint(fieldCount, 16, 64)
		if err != nil {
			continue
		}
		fields, err := rd.fields(n)
		if err != nil {
			return nil, err
		}

		rec := rd.record(headerOffset, headerLen, fieldCount, fields)
		if rd.count < debugRecords {
			rd.logger.Debug("Parsed record", "index", rd.count, "offset", headerOffset,
				"hlen", headerLen, "fcount", fieldCount, "type", rec.Type, "name", rec.Name)
		}
		rd.count++
		if rec.IsFile() && rec.CompressedSize > 0 {
			rd.pending = rec
		}
		return rec, nil
	}
}

func (rd *Reader) record(offset int64, headerLen, fieldCount string, fields []string) *Record {
	rec := &Record{
		HeaderOffset: offset,
		HeaderLen:    headerLen,
		FieldCount:   fieldCount,
		Fields:       fields,
	}
	idx := rd.format.Indices
	rec.Type = rec.field(idx.Type)
	rec.Name = rec.field(idx.Name)
	rec.Method = rec.field(idx.Comp)
	rec.UncompressedSize = hexSize(rec.field(idx.USize))
	rec.CompressedSize = hexSize(rec.field(idx.CSize))

	if rd.format.Checksums && len(fields) >= 4 {
		tail := fields[len(fields)-4:]
		rec.HeaderChecksumType = tail[0]
		rec.ContentChecksumType = tail[1]
		rec.HeaderChecksum = tail[2]
		rec.ContentChecksum = tail[3]
	}
	return rec
}

// hexSize decodes a hexadecimal size field; anything malformed counts as zero.
func hexSize(s string) int64 {
	if !isHex(s) {
		return 0
	}
	n, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return 0
	}
	return n
}

// payloadStart finds where rec's payload begins relative to the current position. Stored entries
// begin immediately.
func (rd *Reader) payloadStart(rec *Record) (int64, bool, error) {
	if rec.IsStored() {
		return rd.src.Offset(), true, nil
	}
	return FindContentStart(rd.src, rec.Method, rd.maxPayloadScan)
}

// skipUnread moves past the payload of a file record the caller did not consume. If the payload
// cannot be located the recovery scan in Next takes over.
func (rd *Reader) skipUnread() error {
	rec := rd.pending
	rd.pending = nil
	if rec == nil {
		return nil
	}
	start, ok, err := rd.payloadStart(rec)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	end, ok := rd.payloadEnd(rec, start)
	if !ok {
		rd.logger.Debug("Declared payload runs past the end of the archive", "name", rec.Name,
			"offset", rec.HeaderOffset, "csize", rec.CompressedSize)
		return nil
	}
	_, err = rd.src.Seek(end, io.SeekStart)
	return err
}

// payloadEnd is the offset just past rec's payload if it began at start, or false if the declared
// size does not fit in the archive.
func (rd *Reader) payloadEnd(rec *Record, start int64) (int64, bool) {
	if rec.CompressedSize < 0 || rec.CompressedSize > rd.src.Remaining(start) {
		return 0, false
	}
	return start + rec.CompressedSize, true
}

func (rd *Reader) truncated(rec *Record, start, got int64) error {
	rd.done = true
	return &StreamError{
		Offset: start,
		Err:    fmt.Errorf("%w: short read for %s: wanted %d, got %d", ErrTruncated, rec.Name, rec.CompressedSize, got),
	}
}

// Skip marks rec's payload as consumed without reading it, leaving the stream where it is.
func (rd *Reader) Skip(rec *Record) {
	if rd.pending == rec {
		rd.pending = nil
	}
}

// Payload reads the CompressedSize raw bytes of rec's payload, which must be the record most
// recently returned by Next. On return the archive is positioned just past the payload.
//
// A payload that cannot be located or is cut short by the end of the archive is a *StreamError.
// A payload larger than limit (if positive) is a *RecordError and is skipped.
func (rd *Reader) Payload(rec *Record, limit int64) (start int64, data []byte, err error) {
	rd.Skip(rec)
	start, ok, err := rd.payloadStart(rec)
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, nil, &StreamError{
			Offset: rd.src.Offset(),
			Err:    fmt.Errorf("%w for %s (%s)", ErrPayloadNotFound, rec.Name, rec.Method),
		}
	}
	end, ok := rd.payloadEnd(rec, start)
	if !ok {
		return start, nil, rd.truncated(rec, start, rd.src.Remaining(start))
	}
	if limit > 0 && (rec.CompressedSize > limit || rec.UncompressedSize > limit) {
		if _, err := rd.src.Seek(end, io.SeekStart); err != nil {
			return start, nil, err
		}
		return start, nil, &RecordError{Name: rec.Name, Offset: rec.HeaderOffset, Err: ErrEntryTooLarge}
	}

	if _, err := rd.src.Seek(start, io.SeekStart); err != nil {
		return start, nil, err
	}
	// Grow with the data actually present so a bogus declared size cannot force a huge allocation.
	var buf bytes.Buffer
	n, err := io.CopyN(&buf, rd.src, rec.CompressedSize)
	if errors.Is(err, io.EOF) {
		return start, nil, rd.truncated(rec, start, n)
	}
	if err != nil {
		return start, nil, fmt.Errorf("arcfile: %w", err)
	}
	return start, buf.Bytes(), nil
}

// SeekPast repositions the archive to the end of a payload that began at start, keeping record
// boundaries aligned whatever happened to the payload.
func (rd *Reader) SeekPast(rec *Record, start int64) error {
	rd.Skip(rec)
	end, ok := rd.payloadEnd(rec, start)
	if !ok {
		return rd.truncated(rec, start, rd.src.Remaining(start))
	}
	_, err := rd.src.Seek(end, io.SeekStart)
	return err
}
