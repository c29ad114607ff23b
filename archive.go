package arcfile

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ScanOptions are the parsing knobs shared by listing and extraction.
type ScanOptions struct {
	// HeaderScanLimit and PayloadScanLimit override DEFAULT_HEADER_SCAN and DEFAULT_PAYLOAD_SCAN.
	HeaderScanLimit  int64
	PayloadScanLimit int

	// Include restricts processing to entries whose names match one of these doublestar patterns.
	Include []string

	// SkipChecksums disables checksum verification for formats that carry checksums.
	SkipChecksums bool
	// Salt, if set, keys checksums as HMACs.
	Salt []byte

	Logger *slog.Logger
}

func (o *ScanOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *ScanOptions) readerOptions() []ReaderOption {
	opts := []ReaderOption{WithLogger(o.logger())}
	if o.HeaderScanLimit > 0 {
		opts = append(opts, WithHeaderScanLimit(o.HeaderScanLimit))
	}
	if o.PayloadScanLimit > 0 {
		opts = append(opts, WithPayloadScanLimit(o.PayloadScanLimit))
	}
	return opts
}

// ValidatePatterns checks that every include pattern is well formed.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("arcfile: invalid include pattern %q", p)
		}
	}
	return nil
}

func (o *ScanOptions) included(name string) bool {
	if len(o.Include) == 0 {
		return true
	}
	name = strings.TrimPrefix(strings.ReplaceAll(name, `\`, "/"), "./")
	for _, p := range o.Include {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// openArchive opens path, detects its format against reg and positions a Reader after the global
// header. The caller closes the returned file.
func openArchive(reg *Registry, path string, o *ScanOptions) (*os.File, *Reader, error) {
	if err := ValidatePatterns(o.Include); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("arcfile: %w", err)
	}

	head := make([]byte, reg.MaxMagicLen())
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		f.Close()
		return nil, nil, fmt.Errorf("arcfile: %w", err)
	}
	format, err := reg.Detect(head[:n])
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("arcfile: %w", err)
	}
	o.logger().Info("Detected format", "format", format.Key, "magic", format.Magic, "delimiter", fmt.Sprintf("%q", format.Delimiter))

	rd, err := NewReader(f, format, o.readerOptions()...)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, rd, nil
}
