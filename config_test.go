package arcfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRegistry(t *testing.T) {
	for _, path := range []string{
		"./fixtures/formats.ini",
		"./fixtures/formats.json",
		"./fixtures/formats.yaml",
	} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			reg, err := LoadRegistry(path)
			require.NoError(t, err)

			var keys []string
			for _, f := range reg.Formats() {
				keys = append(keys, f.Key)
			}
			assert.Equal(t, []string{"ArchiveFile", "ArchiveFileSum", "NeoFile"}, keys)
			assert.Equal(t, "ArchiveFile", reg.Default().Key)

			af, ok := reg.Lookup("ArchiveFile")
			require.True(t, ok)
			assert.Equal(t, "ArchiveFile", af.Magic)
			assert.Equal(t, []byte{0}, af.Delimiter)
			assert.Equal(t, ".arc", af.Extension)
			assert.Equal(t, "001", af.Version)
			assert.Equal(t, DefaultFieldIndices, af.Indices)
			assert.False(t, af.Checksums)

			sum, ok := reg.Lookup("ArchiveFileSum")
			require.True(t, ok)
			assert.Equal(t, "ArchiveFileSum", sum.Name)
			assert.Equal(t, []byte{0}, sum.Delimiter)
			assert.True(t, sum.Checksums)

			neo, ok := reg.Lookup("NeoFile")
			require.True(t, ok)
			assert.Equal(t, []byte{0x1f}, neo.Delimiter)
			assert.Equal(t, 2, neo.Indices.Name)
			assert.Equal(t, DefaultFieldIndices.CSize, neo.Indices.CSize)

			_, ok = reg.Lookup("Incomplete")
			assert.False(t, ok)
		})
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRegistryErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRegistry(filepath.Join(t.TempDir(), "nope.ini"))
		var ce *ConfigError
		require.True(t, errors.As(err, &ce))
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.True(t, IsFatal(err))
	})

	t.Run("no formats", func(t *testing.T) {
		path := writeConfig(t, "empty.ini", "[config]\ndefault = ArchiveFile\n\n[Partial]\nmagic = Partial\n")
		_, err := LoadRegistry(path)
		var ce *ConfigError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, path, ce.Path)
		assert.ErrorIs(t, err, ErrNoFormats)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := LoadRegistry(writeConfig(t, "bad.json", "{not json"))
		var ce *ConfigError
		assert.True(t, errors.As(err, &ce))
	})

	t.Run("bad index", func(t *testing.T) {
		path := writeConfig(t, "idx.ini", "[A]\nmagic = A\nhex = 41\ndelimiter = \\x00\nidx_name = three\n")
		_, err := LoadRegistry(path)
		assert.ErrorContains(t, err, "idx_name")
	})
}

func TestLoadRegistryUnknownExtension(t *testing.T) {
	t.Run("ini content", func(t *testing.T) {
		path := writeConfig(t, "formats.conf", "[A]\nmagic = A\nhex = 41\ndelimiter = \\x00\n")
		reg, err := LoadRegistry(path)
		require.NoError(t, err)
		assert.Equal(t, "A", reg.Default().Key)
	})

	t.Run("json content", func(t *testing.T) {
		path := writeConfig(t, "formats.conf", `{"A": {"magic": "A", "hex": "41", "delimiter": "\u0000"}}`)
		reg, err := LoadRegistry(path)
		require.NoError(t, err)
		assert.Equal(t, "A", reg.Default().Key)
	})
}

func TestLoadRegistryINIDefaults(t *testing.T) {
	content := "[DEFAULT]\ndelimiter = \\x00\nchecksums = true\n\n" +
		"[A]\nmagic = A\nhex = 41\n\n" +
		"[B]\nmagic = B\nhex = 42\ndelimiter = \\x1f\n"
	reg, err := LoadRegistry(writeConfig(t, "formats.ini", content))
	require.NoError(t, err)
	require.Len(t, reg.Formats(), 2)

	a, ok := reg.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, []byte{0}, a.Delimiter)
	assert.True(t, a.Checksums)

	b, ok := reg.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, []byte{0x1f}, b.Delimiter)
	assert.True(t, b.Checksums)
}

func TestDefaultResolution(t *testing.T) {
	for _, tc := range []struct {
		Description string
		Default     string
		Expected    string
	}{
		{"by key", "B", "B"},
		{"by magic", "MagicC", "C"},
		{"by name", "Format C", "C"},
		{"unknown falls back to first", "Zed", "A"},
		{"empty falls back to first", "", "A"},
	} {
		t.Run(tc.Description, func(t *testing.T) {
			content := "[config]\ndefault = " + tc.Default + "\n\n" +
				"[A]\nmagic = MagicA\nhex = 41\ndelimiter = \\x00\n\n" +
				"[B]\nmagic = MagicB\nhex = 42\ndelimiter = \\x00\n\n" +
				"[C]\nname = Format C\nmagic = MagicC\nhex = 43\ndelimiter = \\x00\n"
			reg, err := LoadRegistry(writeConfig(t, "formats.ini", content))
			require.NoError(t, err)
			assert.Equal(t, tc.Expected, reg.Default().Key)
		})
	}
}

func TestNormalizeDelimiter(t *testing.T) {
	for _, tc := range []struct {
		Raw      string
		Expected []byte
	}{
		{`\x00`, []byte{0}},
		{"\x00", []byte{0}},
		{`\u0000`, []byte{0}},
		{`\x1f`, []byte{0x1f}},
		{`\t`, []byte{'\t'}},
		{",", []byte{0}},
		{"|", []byte{0}},
		{"", []byte{0}},
		{`\x1f,`, []byte{0}},
	} {
		t.Run(tc.Raw, func(t *testing.T) {
			assert.Equal(t, tc.Expected, NormalizeDelimiter(tc.Raw))
		})
	}
	// Normalising a normalised delimiter changes nothing.
	assert.Equal(t, []byte{0}, NormalizeDelimiter(string(NormalizeDelimiter(","))))
}

func TestDecodeEscapes(t *testing.T) {
	for _, tc := range []struct {
		In, Out string
	}{
		{"plain", "plain"},
		{`a\x41b`, "aAb"},
		{`\u00e9t\u00e9`, "été"},
		{`tab\there`, "tab\there"},
		{`back\\slash`, `back\slash`},
		{`\q`, `\q`},
		{`trailing\`, `trailing\`},
	} {
		t.Run(tc.In, func(t *testing.T) {
			assert.Equal(t, tc.Out, DecodeEscapes(tc.In))
		})
	}
}
