package arcfile

import (
	"bytes"
	"fmt"
	"io"
)

// FindContentStart searches up to maxScan bytes from the current position of r for the marker
// that begins a payload compressed with method. It returns the absolute offset of the marker, or
// false if there is none in the window, the window is empty or the method has no marker. The
// position of r is restored before returning.
func FindContentStart(r io.ReadSeeker, method string, maxScan int) (int64, bool, error) {
	c, ok := codecs[method]
	if !ok || len(c.marker) == 0 || maxScan <= 0 {
		return 0, false, nil
	}
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, false, fmt.Errorf("arcfile: %w", err)
	}

	window := make([]byte, maxScan)
	n, err := io.ReadFull(r, window)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, false, fmt.Errorf("arcfile: %w", err)
	}
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return 0, false, fmt.Errorf("arcfile: %w", err)
	}

	i := bytes.Index(window[:n], c.marker)
	if i < 0 {
		return 0, false, nil
	}
	return start + int64(i), true, nil
}
