package arcfile

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFormats indicates that a format descriptor file contained no usable format entries.
	ErrNoFormats = errors.New("arcfile: no formats found")

	// ErrNoMagic indicates that none of the registered formats has a decodable magic byte
	// signature, so detection cannot even fall back to a default.
	ErrNoMagic = errors.New("arcfile: no valid magic hex entries in config")

	// ErrDelimiter indicates that a format's delimiter is not exactly one byte long.
	ErrDelimiter = errors.New("arcfile: delimiter must be exactly 1 byte")

	// ErrSignatureMismatch indicates that the archive's first token does not start with the
	// format's magic string.
	ErrSignatureMismatch = errors.New("arcfile: signature mismatch")

	// ErrScanLimit indicates that the recovery scan consumed its byte budget without finding the
	// start of another record header.
	ErrScanLimit = errors.New("arcfile: could not find next header within scan limit")

	// ErrTruncated indicates that a record declares more payload bytes than remain in the archive.
	ErrTruncated = errors.New("arcfile: truncated file")

	// ErrPayloadNotFound indicates that the start of a record's compressed payload could not be
	// located within the scan window.
	ErrPayloadNotFound = errors.New("arcfile: could not locate content start")

	// ErrDecompress indicates that a record's payload is not valid for its declared codec.
	ErrDecompress = errors.New("arcfile: decompress failed")

	// ErrChecksumMismatch indicates that a stored checksum does not match the computed one.
	ErrChecksumMismatch = errors.New("arcfile: checksum mismatch")

	// ErrSizeMismatch indicates that the extracted data does not have the declared size.
	ErrSizeMismatch = errors.New("arcfile: size mismatch")

	// ErrEntryTooLarge indicates that a record exceeds the caller's size bound.
	ErrEntryTooLarge = errors.New("arcfile: entry exceeds size limit")

	// ErrUnsafePath indicates that an entry name would resolve outside the output directory.
	ErrUnsafePath = errors.New("arcfile: unsafe path (traversal blocked)")
)

// ConfigError indicates a problem with a format descriptor file.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("arcfile: format config '%s': %s", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// StreamError indicates a structural problem with the archive. Processing of the archive cannot
// continue after one.
type StreamError struct {
	Offset int64
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("arcfile: at offset %d: %s", e.Offset, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// RecordError indicates a problem with a single archive member. The rest of the archive can still
// be processed.
type RecordError struct {
	Name   string
	Offset int64
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("arcfile: archive member '%s' at offset %d: %s", e.Name, e.Offset, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// ChecksumError indicates that a stored header or content checksum does not match the computed
// one.
type ChecksumError struct {
	Kind     string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s (%s): '%s' != '%s'", ErrChecksumMismatch, e.Kind, e.Expected, e.Actual)
}

func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}

// UnsafePathError indicates an entry name that escapes the output directory.
type UnsafePathError struct {
	Name string
}

func (e *UnsafePathError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnsafePath, e.Name)
}

func (e *UnsafePathError) Unwrap() error {
	return ErrUnsafePath
}

// IsFatal reports whether err stops processing of a whole archive, as opposed to a problem confined
// to one member.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var re *RecordError
	if errors.As(err, &re) {
		return false
	}
	var ue *UnsafePathError
	return !errors.As(err, &ue)
}
