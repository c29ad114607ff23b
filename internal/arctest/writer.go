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
// Package arctest builds ArchiveFile-style archives for tests.
package arctest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

var (
	ErrWriteTooLong = errors.New("arctest: write too long")
)

// Field positions written by default. They match the default layout the reader expects.
const (
	fieldType   = 0
	fieldName   = 3
	fieldUSize  = 5
	fieldComp   = 15
	fieldCSize  = 16
	fieldsTotal = 17
)

// Entry describes one record header.
type Entry struct {
	// Type is the entry type code; "0" is a file. Empty means "0".
	Type   string
	Name   string
	Method string

	// Size is the declared uncompressed size and CompressedSize the declared payload size. The
	// payload actually written may differ.
	Size           int64
	CompressedSize int64

	// Fields, if set, replaces the generated field list.
	Fields []string

	// HeaderChecksumType and ContentChecksumType, if set, append the four checksum fields using
	// Options.Checksum. ContentChecksum is written verbatim.
	HeaderChecksumType  string
	ContentChecksumType string
	ContentChecksum     string
}

// Options configure a Writer.
type Options struct {
	// Signature is the first token. Defaults to "ArchiveFile1".
	Signature string
	// Delimiter separates tokens. Defaults to NUL.
	Delimiter byte
	// GlobalFields are written after the signature, preceded by their length and hex count.
	GlobalFields []string
	// Checksum computes hex digests for entries that request checksums.
	Checksum func(data []byte, algo string) string
}

// Writer provides sequential writing of an archive.
// Call WriteHeader to begin a new record, then Write to supply its payload.
//
// Example:
//
//	archive := arctest.NewWriter(w, arctest.Options{})
//	if err := archive.WriteHeader(&arctest.Entry{Name: "a.txt", Method: "zlib", CompressedSize: int64(len(payload))}); err != nil {
//		return err
//	}
//	archive.Write(payload)
type Writer struct {
	// w is the underlying io.Writer to which the archive is written.
	w    io.Writer
	opts Options

	// closed is true if Close has been called on this Writer.
	closed bool

	// wroteHeader is true once the signature and global header have been written.
	wroteHeader bool

	// nb is the number of payload bytes that may still be written for the current record.
	nb int64
}

// NewWriter creates a new Writer that writes an archive to w.
func NewWriter(w io.Writer, opts Options) *Writer {
	if opts.Signature == "" {
		opts.Signature = "ArchiveFile1"
	}
	return &Writer{w: w, opts: opts}
}

func (aw *Writer) write(p []byte) (int, error) {
	if aw.closed {
		return 0, errors.New("arctest: write to closed writer")
	}
	if err := aw.writeHeader(); err != nil {
		return 0, err
	}
	return aw.w.Write(p)
}

// tokens joins each token with a trailing delimiter.
func (aw *Writer) tokens(toks ...string) []byte {
	var b bytes.Buffer
	for _, t := range toks {
		b.WriteString(t)
		b.WriteByte(aw.opts.Delimiter)
	}
	return b.Bytes()
}

// block renders a length token, a hex field count and the fields.
func (aw *Writer) block(fields []string) []string {
	body := aw.tokens(fields...)
	return append([]string{strconv.FormatInt(int64(len(body)), 16), strconv.FormatInt(int64(len(fields)), 16)}, fields...)
}

// writeHeader writes the signature and global header. This must only happen once, and must be the
// first write operation on the io.Writer.
func (aw *Writer) writeHeader() error {
	if aw.wroteHeader {
		return nil
	}
	aw.wroteHeader = true
	toks := append([]string{aw.opts.Signature}, aw.block(aw.opts.GlobalFields)...)
	if _, err := aw.w.Write(aw.tokens(toks...)); err != nil {
		return fmt.Errorf("arctest: write archive header: %w", err)
	}
	return nil
}

// Close finishes writing the archive, ensuring that the global header has been written even if the
// archive contains no records. It does not close the underlying io.Writer.
func (aw *Writer) Close() error {
	if aw.closed {
		return errors.New("arctest: writer closed twice")
	}
	if err := aw.writeHeader(); err != nil {
		return err
	}
	aw.closed = true
	return nil
}

// Write writes payload bytes for the current record.
// Returns ErrWriteTooLong if more than CompressedSize bytes are written after a call to WriteHeader.
func (aw *Writer) Write(b []byte) (n int, err error) {
	if int64(len(b)) > aw.nb {
		b = b[0:aw.nb]
		err = ErrWriteTooLong
	}
	n, werr := aw.write(b)
	aw.nb -= int64(n)
	if werr != nil {
		return n, werr
	}
	return
}

// Pad writes n zero bytes, which readers skip between records and before payloads.
func (aw *Writer) Pad(n int) error {
	_, err := aw.write(make([]byte, n))
	return err
}

// WriteRaw writes b verbatim.
func (aw *Writer) WriteRaw(b []byte) error {
	_, err := aw.write(b)
	return err
}

func (e *Entry) fields() []string {
	if e.Fields != nil {
		return append([]string(nil), e.Fields...)
	}
	fields := make([]string, fieldsTotal)
	for i := range fields {
		fields[i] = "0"
	}
	fields[fieldType] = e.Type
	if fields[fieldType] == "" {
		fields[fieldType] = "0"
	}
	fields[fieldName] = e.Name
	fields[fieldUSize] = strconv.FormatInt(e.Size, 16)
	fields[fieldComp] = e.Method
	fields[fieldCSize] = strconv.FormatInt(e.CompressedSize, 16)
	return fields
}

// WriteHeader writes the record header for e and prepares to receive its payload.
func (aw *Writer) WriteHeader(e *Entry) error {
	aw.nb = e.CompressedSize
	fields := e.fields()

	var toks []string
	if e.HeaderChecksumType == "" && e.ContentChecksumType == "" {
		toks = aw.block(fields)
	} else {
		if aw.opts.Checksum == nil {
			return errors.New("arctest: checksum fields requested without Options.Checksum")
		}
		fields = append(fields, e.HeaderChecksumType, e.ContentChecksumType)
		body := aw.tokens(fields...)
		hlen := strconv.FormatInt(int64(len(body)), 16)
		fcount := strconv.FormatInt(int64(len(fields)+2), 16)
		covered := aw.tokens(append([]string{hlen, fcount}, fields...)...)
		fields = append(fields, aw.opts.Checksum(covered, e.HeaderChecksumType), e.ContentChecksum)
		toks = append([]string{hlen, fcount}, fields...)
	}
	_, err := aw.write(aw.tokens(toks...))
	return err
}

// AddFile compresses data with method and writes a complete file record for it.
func (aw *Writer) AddFile(name, method string, data []byte) error {
	return aw.AddEntry(&Entry{Name: name, Method: method}, data)
}

// AddEntry compresses data with e.Method, fills in the sizes (and the content checksum, if e asks
// for checksums) and writes the record and its payload.
func (aw *Writer) AddEntry(e *Entry, data []byte) error {
	payload, err := Compress(e.Method, data)
	if err != nil {
		return err
	}
	e.Size = int64(len(data))
	e.CompressedSize = int64(len(payload))
	if e.ContentChecksumType != "" && e.ContentChecksum == "" && aw.opts.Checksum != nil {
		e.ContentChecksum = aw.opts.Checksum(payload, e.ContentChecksumType)
	}
	if err := aw.WriteHeader(e); err != nil {
		return err
	}
	_, err = aw.Write(payload)
	return err
}

// AddDir writes a directory record, which has no payload.
func (aw *Writer) AddDir(name string) error {
	return aw.WriteHeader(&Entry{Type: "5", Name: strings.TrimSuffix(name, "/") + "/"})
}

// Compress encodes data with the named method. Stored methods ("" and "none") return data as is.
func Compress(method string, data []byte) ([]byte, error) {
	var (
		buf bytes.Buffer
		w   io.WriteCloser
		err error
	)
	switch method {
	case "", "none":
		return data, nil
	case "zlib":
		w = zlib.NewWriter(&buf)
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "lzma":
		w, err = lzma.NewWriter(&buf)
	case "xz":
		w, err = xz.NewWriter(&buf)
	case "zstd":
		w, err = zstd.NewWriter(&buf)
	case "lz4":
		w = lz4.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("arctest: no encoder for %q", method)
	}
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
