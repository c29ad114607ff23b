package arcfile

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// maxLZMADict bounds the dictionary an LZMA header may ask for.
const maxLZMADict = 1 << 28

// codec pairs a decompressor with the byte sequence its streams begin with.
type codec struct {
	marker    []byte
	newReader func(io.Reader) (io.Reader, error)
}

var codecs = map[string]codec{
	MethodLZMA: {
		marker: []byte{0x5d},
		newReader: func(r io.Reader) (io.Reader, error) {
			return lzma.ReaderConfig{DictCap: maxLZMADict}.NewReader(r)
		},
	},
	MethodBzip2: {
		marker: []byte("BZh"),
		newReader: func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		},
	},
	MethodZlib: {
		marker: []byte{0x78},
		newReader: func(r io.Reader) (io.Reader, error) {
			return zlib.NewReader(r)
		},
	},
	MethodGzip: {
		marker: []byte{0x1f, 0x8b},
		newReader: func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		},
	},
	MethodXZ: {
		marker: []byte{0xfd, '7', 'z', 'X', 'Z', 0x00},
		newReader: func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		},
	},
	MethodZstd: {
		marker: []byte{0x28, 0xb5, 0x2f, 0xfd},
		newReader: func(r io.Reader) (io.Reader, error) {
			d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
	},
	MethodLZ4: {
		marker: []byte{0x04, 0x22, 0x4d, 0x18},
		newReader: func(r io.Reader) (io.Reader, error) {
			return lz4.NewReader(r), nil
		},
	},
}

// coreMethods are the codecs the ArchiveFile format itself uses.
var coreMethods = []string{MethodLZMA, MethodBzip2, MethodZlib}

// IsCoreMethod reports whether method is one of lzma, bzip2 or zlib.
func IsCoreMethod(method string) bool {
	for _, m := range coreMethods {
		if m == method {
			return true
		}
	}
	return false
}

// IsKnownMethod reports whether Decompress has a decoder for method.
func IsKnownMethod(method string) bool {
	_, ok := codecs[method]
	return ok
}

// Decompress decodes payload with the named method. Unknown methods, including stored entries,
// return payload unchanged.
func Decompress(method string, payload []byte) ([]byte, error) {
	return DecompressLimit(method, payload, 0)
}

// DecompressLimit is like Decompress but fails with ErrEntryTooLarge once more than limit bytes
// have been produced. A limit of zero or less means no limit.
func DecompressLimit(method string, payload []byte, limit int64) ([]byte, error) {
	c, ok := codecs[method]
	if !ok {
		if limit > 0 && int64(len(payload)) > limit {
			return nil, ErrEntryTooLarge
		}
		return payload, nil
	}

	r, err := c.newReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %w", ErrDecompress, method, err)
	}
	if rc, ok := r.(io.Closer); ok {
		defer rc.Close()
	}
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}

	var out bytes.Buffer
	if _, err := io.Copy(&out, r); err != nil {
		return nil, fmt.Errorf("%w (%s): %w", ErrDecompress, method, err)
	}
	if limit > 0 && int64(out.Len()) > limit {
		return nil, ErrEntryTooLarge
	}
	return out.Bytes(), nil
}
