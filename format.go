package arcfile

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"slices"
)

// FormatSpec describes one container dialect.
type FormatSpec struct {
	// Key is the registry key (INI section name or top-level JSON/YAML key).
	Key  string
	Name string

	// Magic is the textual signature expected as a prefix of the archive's first token.
	Magic string

	// MagicHex is the on-disk byte signature used for file type detection, as hex text.
	MagicHex string

	// Delimiter is the single token separator byte.
	Delimiter []byte

	Extension string
	Version   string

	Indices FieldIndices

	// Checksums indicates that every record ends with header checksum type, content checksum
	// type, header checksum and content checksum fields.
	Checksums bool
}

// MagicBytes decodes MagicHex. ok is false if it is not valid hex.
func (f *FormatSpec) MagicBytes() (b []byte, ok bool) {
	b, err := hex.DecodeString(f.MagicHex)
	if err != nil {
		return nil, false
	}
	return b, true
}

func (f *FormatSpec) String() string {
	return fmt.Sprintf("%s (magic=%q, delimiter=%q)", f.Key, f.Magic, f.Delimiter)
}

// Registry is the set of formats loaded from a descriptor file, in declaration order.
type Registry struct {
	defaultKey string
	formats    []*FormatSpec
	byKey      map[string]*FormatSpec
}

// NewRegistry builds a registry from formats in declaration order and resolves defaultKey against
// them. Later formats with a duplicate key replace earlier ones in place.
func NewRegistry(defaultKey string, formats ...*FormatSpec) (*Registry, error) {
	reg := &Registry{byKey: map[string]*FormatSpec{}}
	for _, f := range formats {
		if _, dup := reg.byKey[f.Key]; dup {
			i := slices.IndexFunc(reg.formats, func(o *FormatSpec) bool { return o.Key == f.Key })
			reg.formats[i] = f
		} else {
			reg.formats = append(reg.formats, f)
		}
		reg.byKey[f.Key] = f
	}
	if len(reg.formats) == 0 {
		return nil, ErrNoFormats
	}
	reg.defaultKey = reg.resolveDefault(defaultKey)
	return reg, nil
}

// resolveDefault maps the declared default onto a registry key. A default that is not itself a key
// may name a format by its magic string or name; anything else falls back to the first format.
func (reg *Registry) resolveDefault(declared string) string {
	if _, ok := reg.byKey[declared]; ok {
		return declared
	}
	if declared != "" {
		for _, f := range reg.formats {
			if f.Magic == declared || f.Name == declared {
				return f.Key
			}
		}
	}
	return reg.formats[0].Key
}

// Default returns the resolved default format.
func (reg *Registry) Default() *FormatSpec {
	return reg.byKey[reg.defaultKey]
}

// Lookup returns the format registered under key.
func (reg *Registry) Lookup(key string) (*FormatSpec, bool) {
	f, ok := reg.byKey[key]
	return f, ok
}

// Formats returns the registered formats in declaration order.
func (reg *Registry) Formats() []*FormatSpec {
	return slices.Clone(reg.formats)
}

// MaxMagicLen is the length of the longest decodable magic byte signature.
func (reg *Registry) MaxMagicLen() int {
	n := 0
	for _, f := range reg.formats {
		if b, ok := f.MagicBytes(); ok {
			n = max(n, len(b))
		}
	}
	return n
}

type candidate struct {
	spec  *FormatSpec
	magic []byte
}

// Detect picks the format whose magic bytes are the longest prefix of head. Equal lengths are won
// by the format declared first. Without a match the default format is returned.
func (reg *Registry) Detect(head []byte) (*FormatSpec, error) {
	var candidates []candidate
	for _, f := range reg.formats {
		if b, ok := f.MagicBytes(); ok {
			candidates = append(candidates, candidate{f, b})
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoMagic
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return len(b.magic) - len(a.magic)
	})
	for _, c := range candidates {
		if len(c.magic) > 0 && bytes.HasPrefix(head, c.magic) {
			return c.spec, nil
		}
	}

	if f := reg.Default(); f != nil {
		return f, nil
	}
	return reg.formats[0], nil
}

// DetectFile reads enough of the file at path to match the longest magic and runs Detect on it.
func (reg *Registry) DetectFile(path string) (*FormatSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("arcfile: %w", err)
	}
	defer f.Close()

	head := make([]byte, reg.MaxMagicLen())
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("arcfile: %w", err)
	}
	return reg.Detect(head[:n])
}
