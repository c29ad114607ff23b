package arcfile

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFatal(t *testing.T) {
	for _, tc := range []struct {
		Description string
		Err         error
		Fatal       bool
	}{
		{"nil", nil, false},
		{"config", &ConfigError{Path: "x.ini", Err: ErrNoFormats}, true},
		{"stream", &StreamError{Offset: 4, Err: ErrTruncated}, true},
		{"record", &RecordError{Name: "a", Err: ErrDecompress}, false},
		{"unsafe path", &UnsafePathError{Name: "../a"}, false},
		{"wrapped record", fmt.Errorf("while extracting: %w", &RecordError{Name: "a", Err: ErrSizeMismatch}), false},
		{"io", io.ErrUnexpectedEOF, true},
	} {
		t.Run(tc.Description, func(t *testing.T) {
			assert.Equal(t, tc.Fatal, IsFatal(tc.Err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "arcfile: format config 'x.ini': arcfile: no formats found",
		(&ConfigError{Path: "x.ini", Err: ErrNoFormats}).Error())
	assert.Equal(t, "arcfile: at offset 12: arcfile: truncated file",
		(&StreamError{Offset: 12, Err: ErrTruncated}).Error())
	assert.Equal(t, "arcfile: archive member 'a.txt' at offset 3: arcfile: decompress failed",
		(&RecordError{Name: "a.txt", Offset: 3, Err: ErrDecompress}).Error())
	assert.Equal(t, "arcfile: checksum mismatch (header): 'aa' != 'bb'",
		(&ChecksumError{Kind: "header", Expected: "aa", Actual: "bb"}).Error())
	assert.Equal(t, "arcfile: unsafe path (traversal blocked): ../x",
		(&UnsafePathError{Name: "../x"}).Error())
}
