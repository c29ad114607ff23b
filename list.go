package arcfile

import (
	"errors"
	"fmt"
	"io"
)

// ListOptions configure List.
type ListOptions struct {
	ScanOptions
}

// List writes one line per named record of the archive at path to w and returns how many were
// listed. Sizes are reported as parsed, whether or not the record could be extracted.
func List(reg *Registry, path string, w io.Writer, opts ListOptions) (int, error) {
	f, rd, err := openArchive(reg, path, &opts.ScanOptions)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	logger := opts.logger()
	listed := 0
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return listed, err
		}
		if rec.Name == "" || !opts.included(rec.Name) {
			continue
		}
		if !opts.SkipChecksums {
			if err := VerifyHeaderChecksum(rec, rd.Format(), opts.Salt); err != nil {
				logger.Warn("Header checksum mismatch", "name", rec.Name, "offset", rec.HeaderOffset, "err", err)
			}
		}
		listed++
		fmt.Fprintf(w, "%s %s  usize=%d  comp=%s  csize=%d\n",
			rec.Kind(), rec.Name, rec.UncompressedSize, rec.Method, rec.CompressedSize)
	}
	fmt.Fprintf(w, "Done. Listed %d records.\n", listed)
	return listed, nil
}

// ListArchive loads the format descriptors at formatPath and lists the archive at archivePath to
// w with default options.
func ListArchive(archivePath, formatPath string, w io.Writer) (int, error) {
	reg, err := LoadRegistry(formatPath)
	if err != nil {
		return 0, err
	}
	return List(reg, archivePath, w, ListOptions{})
}
