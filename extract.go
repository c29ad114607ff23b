package arcfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// Predicate decides whether a record is extracted. Records it rejects are skipped silently.
type Predicate func(rec *Record) bool

func extractable(rec *Record) bool {
	return rec.IsFile() && rec.Name != "" && rec.CompressedSize > 0
}

// DefaultPredicate accepts named file records compressed with lzma, bzip2 or zlib. Stored entries
// are not extracted.
func DefaultPredicate(rec *Record) bool {
	return extractable(rec) && IsCoreMethod(rec.Method)
}

// ExtendedPredicate accepts named file records compressed with any codec Decompress knows.
func ExtendedPredicate(rec *Record) bool {
	return extractable(rec) && IsKnownMethod(rec.Method)
}

// StoredPredicate is ExtendedPredicate plus stored entries.
func StoredPredicate(rec *Record) bool {
	return extractable(rec) && (rec.IsStored() || IsKnownMethod(rec.Method))
}

// ExtractOptions configure Extract.
type ExtractOptions struct {
	ScanOptions

	// OutDir is where entries are written. It is created if necessary.
	OutDir string

	// SkipSizeCheck disables the comparison of extracted and declared sizes.
	SkipSizeCheck bool

	// Predicate selects the records to extract. Nil means DefaultPredicate.
	Predicate Predicate

	// MaxEntrySize, if positive, bounds the declared and decompressed size of each entry.
	MaxEntrySize int64

	// Out receives one line per extracted entry and a summary. Nil discards them.
	Out io.Writer
}

// ExtractResult summarises an extraction.
type ExtractResult struct {
	Format *FormatSpec

	// Files are the paths written, relative to the output directory.
	Files []string
	Bytes int64

	// Problems are the per-record errors that were reported and skipped over. Size mismatches
	// appear here too even though the file was written.
	Problems []error
}

// Extracted is the number of files written.
func (r *ExtractResult) Extracted() int {
	return len(r.Files)
}

// SafeJoin resolves the entry name against outDir. Leading "./" and "/" are stripped and
// backslashes treated as separators; a name that still resolves outside outDir is an
// *UnsafePathError.
func SafeJoin(outDir, name string) (string, error) {
	base, err := filepath.Abs(outDir)
	if err != nil {
		return "", err
	}
	rel := strings.ReplaceAll(name, `\`, "/")
	for {
		if strings.HasPrefix(rel, "./") {
			rel = rel[2:]
		} else if strings.HasPrefix(rel, "/") {
			rel = rel[1:]
		} else {
			break
		}
	}

	full := filepath.Join(base, filepath.FromSlash(rel))
	r, err := filepath.Rel(base, full)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", &UnsafePathError{Name: name}
	}
	return full, nil
}

// Extract writes the file entries of the archive at path into opts.OutDir.
//
// Problems confined to one record are collected in the result and processing moves on to the next
// record. A structural problem, such as a truncated payload, stops extraction: the partial result
// is returned together with the error.
func Extract(reg *Registry, path string, opts ExtractOptions) (*ExtractResult, error) {
	if opts.OutDir == "" {
		opts.OutDir = "."
	}
	pred := opts.Predicate
	if pred == nil {
		pred = DefaultPredicate
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	logger := opts.logger()

	f, rd, err := openArchive(reg, path, &opts.ScanOptions)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("arcfile: %w", err)
	}

	base, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("arcfile: %w", err)
	}

	res := &ExtractResult{Format: rd.Format()}
	report := func(rec *Record, err error) {
		var re *RecordError
		if !errors.As(err, &re) {
			err = &RecordError{Name: rec.Name, Offset: rec.HeaderOffset, Err: err}
		}
		logger.Warn("Skipping entry", "name", rec.Name, "offset", rec.HeaderOffset, "err", err)
		res.Problems = append(res.Problems, err)
	}

	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, err
		}
		if !pred(rec) || !opts.included(rec.Name) {
			continue
		}

		if !opts.SkipChecksums {
			if err := VerifyHeaderChecksum(rec, res.Format, opts.Salt); err != nil {
				report(rec, err)
				continue
			}
		}

		start, payload, err := rd.Payload(rec, opts.MaxEntrySize)
		if err != nil {
			if IsFatal(err) {
				logger.Error("Stopping extraction", "name", rec.Name, "err", err)
				return res, err
			}
			report(rec, err)
			continue
		}

		if !opts.SkipChecksums {
			if err := VerifyContentChecksum(rec, res.Format, payload, opts.Salt); err != nil {
				report(rec, err)
				continue
			}
		}

		data, err := DecompressLimit(rec.Method, payload, opts.MaxEntrySize)
		if err != nil {
			report(rec, err)
			if err := rd.SeekPast(rec, start); err != nil {
				return res, err
			}
			continue
		}

		target, err := SafeJoin(opts.OutDir, rec.Name)
		if err != nil {
			report(rec, err)
			continue
		}
		if err := writeEntry(target, data); err != nil {
			return res, err
		}
		rel, _ := filepath.Rel(base, target)
		res.Files = append(res.Files, filepath.ToSlash(rel))
		res.Bytes += int64(len(data))

		status := "OK"
		if !opts.SkipSizeCheck && rec.UncompressedSize != 0 && rec.UncompressedSize != int64(len(data)) {
			status = "SIZE MISMATCH"
			err := &RecordError{
				Name:   rec.Name,
				Offset: rec.HeaderOffset,
				Err:    fmt.Errorf("%w: declared %d, got %d", ErrSizeMismatch, rec.UncompressedSize, len(data)),
			}
			logger.Warn("Size mismatch", "name", rec.Name, "declared", rec.UncompressedSize, "actual", len(data))
			res.Problems = append(res.Problems, err)
		}
		fmt.Fprintf(out, "Extracted %s [%s] %s\n", rec.Name, rec.Method, status)
	}

	fmt.Fprintf(out, "Done. Extracted %d files (%s) into: %s\n", res.Extracted(), humanize.IBytes(uint64(res.Bytes)), opts.OutDir)
	logger.Info("Extraction finished", "files", res.Extracted(), "bytes", res.Bytes, "problems", len(res.Problems))
	return res, nil
}

func writeEntry(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("arcfile: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("arcfile: %w", err)
	}
	return nil
}

// ExtractArchive loads the format descriptors at formatPath and extracts the archive at
// archivePath into outDir with the default predicate.
func ExtractArchive(archivePath, formatPath, outDir string, verifySizes bool) (*ExtractResult, error) {
	reg, err := LoadRegistry(formatPath)
	if err != nil {
		return nil, err
	}
	return Extract(reg, archivePath, ExtractOptions{OutDir: outDir, SkipSizeCheck: !verifySizes})
}
