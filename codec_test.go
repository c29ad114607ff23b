package arcfile

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/please-build/arcfile/internal/arctest"
)

// bzip2Hello is "hello bzip2\n" compressed with bzip2, which has no encoder in Go.
const bzip2Hello = "425a6839314159265359ab6ba1f1000002d9800010400010001264c01020003100d34d04001ea3ef4e51a2078bb9229c284855b5d0f880"

func TestDecompressRoundTrip(t *testing.T) {
	content := bytes.Repeat([]byte("round trip through every codec\n"), 50)
	for _, method := range []string{MethodZlib, MethodLZMA, MethodGzip, MethodXZ, MethodZstd, MethodLZ4} {
		t.Run(method, func(t *testing.T) {
			payload, err := arctest.Compress(method, content)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(payload, codecs[method].marker), "payload starts with the codec marker")

			out, err := Decompress(method, payload)
			require.NoError(t, err)
			assert.Equal(t, content, out)
		})
	}
}

func TestDecompressBzip2(t *testing.T) {
	payload, err := hex.DecodeString(bzip2Hello)
	require.NoError(t, err)
	out, err := Decompress(MethodBzip2, payload)
	require.NoError(t, err)
	assert.Equal(t, "hello bzip2\n", string(out))
}

func TestDecompressPassThrough(t *testing.T) {
	for _, method := range []string{"", MethodNone, "brotli"} {
		out, err := Decompress(method, []byte("as is"))
		require.NoError(t, err)
		assert.Equal(t, "as is", string(out))
	}
}

func TestDecompressCorrupt(t *testing.T) {
	garbage := []byte("definitely not compressed data")
	for _, method := range []string{MethodZlib, MethodLZMA, MethodBzip2, MethodGzip, MethodXZ, MethodZstd, MethodLZ4} {
		t.Run(method, func(t *testing.T) {
			payload := append(append([]byte{}, codecs[method].marker...), garbage...)
			if method == MethodLZMA {
				// A 1 MiB dictionary and unknown size, so only the stream itself is bad.
				payload = append([]byte{0x5d, 0, 0, 0x10, 0, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, garbage...)
			}
			_, err := Decompress(method, payload)
			assert.ErrorIs(t, err, ErrDecompress)
			assert.Contains(t, err.Error(), method)
		})
	}
}

func TestDecompressLimit(t *testing.T) {
	content := bytes.Repeat([]byte{'z'}, 10000)
	payload, err := arctest.Compress(MethodZlib, content)
	require.NoError(t, err)

	_, err = DecompressLimit(MethodZlib, payload, 1000)
	assert.ErrorIs(t, err, ErrEntryTooLarge)

	out, err := DecompressLimit(MethodZlib, payload, 10000)
	require.NoError(t, err)
	assert.Len(t, out, 10000)

	_, err = DecompressLimit(MethodNone, content, 10)
	assert.ErrorIs(t, err, ErrEntryTooLarge)
}

func TestMethodSets(t *testing.T) {
	for _, m := range []string{MethodLZMA, MethodBzip2, MethodZlib} {
		assert.True(t, IsCoreMethod(m), m)
		assert.True(t, IsKnownMethod(m), m)
	}
	for _, m := range []string{MethodGzip, MethodXZ, MethodZstd, MethodLZ4} {
		assert.False(t, IsCoreMethod(m), m)
		assert.True(t, IsKnownMethod(m), m)
	}
	for _, m := range []string{"", MethodNone, "LZMA"} {
		assert.False(t, IsCoreMethod(m), m)
		assert.False(t, IsKnownMethod(m), m)
	}
}
