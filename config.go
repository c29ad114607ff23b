package arcfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// configSection is the reserved section/key holding tool settings rather than a format.
const configSection = "config"

var requiredKeys = []string{"hex", "magic", "delimiter"}

// entry is a loader-neutral view of one format section.
type entry interface {
	has(key string) bool
	get(key, fallback string) string
}

type mapEntry map[string]string

func (m mapEntry) has(key string) bool {
	_, ok := m[key]
	return ok
}

func (m mapEntry) get(key, fallback string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}

// LoadRegistry loads the format descriptors in path. The extension selects the parser: .ini/.cfg,
// .json or .yaml/.yml. Any other extension is tried as INI first and then as JSON.
func LoadRegistry(path string) (*Registry, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var (
		reg *Registry
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".cfg":
		reg, err = loadINI(path)
	case ".json":
		reg, err = loadJSON(path)
	case ".yaml", ".yml":
		reg, err = loadYAML(path)
	default:
		if reg, err = loadINI(path); err != nil {
			reg, err = loadJSON(path)
		}
	}
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return reg, nil
}

func loadINI(path string) (*Registry, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{InsensitiveKeys: true}, path)
	if err != nil {
		return nil, err
	}

	var defaultKey string
	if sec, err := cfg.GetSection(configSection); err == nil {
		defaultKey = DecodeEscapes(sec.Key("default").String())
	}

	// Keys under [DEFAULT] apply to every format section that does not set them itself.
	defaults := cfg.Section(ini.DefaultSection).Keys()

	var formats []*FormatSpec
	for _, sec := range cfg.Sections() {
		name := sec.Name()
		if name == configSection || name == ini.DefaultSection {
			continue
		}
		e := mapEntry{}
		for _, k := range defaults {
			e[k.Name()] = k.String()
		}
		for _, k := range sec.Keys() {
			e[k.Name()] = k.String()
		}
		f, err := newFormatSpec(name, e)
		if err != nil {
			return nil, err
		}
		if f != nil {
			formats = append(formats, f)
		}
	}
	return NewRegistry(defaultKey, formats...)
}

func loadJSON(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, errors.New("top level JSON value is not an object")
	}

	defaultKey := DecodeEscapes(root.Get(configSection + ".default").String())

	var (
		formats []*FormatSpec
		ferr    error
	)
	root.ForEach(func(key, value gjson.Result) bool {
		if key.String() == configSection || !value.IsObject() {
			return true
		}
		e := mapEntry{}
		value.ForEach(func(k, v gjson.Result) bool {
			e[strings.ToLower(k.String())] = v.String()
			return true
		})
		f, err := newFormatSpec(key.String(), e)
		if err != nil {
			ferr = err
			return false
		}
		if f != nil {
			formats = append(formats, f)
		}
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	return NewRegistry(defaultKey, formats...)
}

func loadYAML(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("top level YAML value is not a mapping")
	}
	root := doc.Content[0]

	var (
		defaultKey string
		formats    []*FormatSpec
	)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		if value.Kind != yaml.MappingNode {
			continue
		}
		e := mapEntry{}
		for j := 0; j+1 < len(value.Content); j += 2 {
			e[strings.ToLower(value.Content[j].Value)] = value.Content[j+1].Value
		}
		if key == configSection {
			defaultKey = DecodeEscapes(e.get("default", ""))
			continue
		}
		f, err := newFormatSpec(key, e)
		if err != nil {
			return nil, err
		}
		if f != nil {
			formats = append(formats, f)
		}
	}
	return NewRegistry(defaultKey, formats...)
}

// newFormatSpec builds a format from a section. It returns nil without error for sections that
// lack a required key.
func newFormatSpec(key string, e entry) (*FormatSpec, error) {
	for _, k := range requiredKeys {
		if !e.has(k) {
			return nil, nil
		}
	}

	f := &FormatSpec{
		Key:       key,
		Name:      DecodeEscapes(e.get("name", key)),
		Magic:     DecodeEscapes(e.get("magic", key)),
		MagicHex:  DecodeEscapes(e.get("hex", "")),
		Delimiter: NormalizeDelimiter(e.get("delimiter", `\x00`)),
		Extension: DecodeEscapes(e.get("extension", "")),
		Version:   DecodeEscapes(e.get("ver", "")),
	}
	if f.Name == "" {
		f.Name = key
	}

	var err error
	idx := DefaultFieldIndices
	for _, fi := range []struct {
		key string
		dst *int
	}{
		{"idx_type", &idx.Type},
		{"idx_name", &idx.Name},
		{"idx_usize", &idx.USize},
		{"idx_comp", &idx.Comp},
		{"idx_csize", &idx.CSize},
	} {
		if !e.has(fi.key) {
			continue
		}
		if *fi.dst, err = strconv.Atoi(strings.TrimSpace(e.get(fi.key, ""))); err != nil {
			return nil, fmt.Errorf("format %s: %s: %w", key, fi.key, err)
		}
	}
	f.Indices = idx

	if e.has("checksums") {
		if f.Checksums, err = strconv.ParseBool(strings.TrimSpace(e.get("checksums", ""))); err != nil {
			return nil, fmt.Errorf("format %s: checksums: %w", key, err)
		}
	}
	return f, nil
}

// NormalizeDelimiter decodes escape sequences in raw. A result that is empty or contains any
// printable character is replaced by NUL.
func NormalizeDelimiter(raw string) []byte {
	d := DecodeEscapes(raw)
	if d == "" || !onlyNonPrintable(d) {
		d = "\x00"
	}
	return []byte(d)
}

func onlyNonPrintable(s string) bool {
	for _, r := range s {
		if unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// DecodeEscapes interprets backslash escapes (\x00, \u0000, \n, \\ ...) in s. Malformed escapes
// are kept literally.
func DecodeEscapes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for len(s) > 0 {
		if s[0] != '\\' {
			i := strings.IndexByte(s, '\\')
			if i < 0 {
				i = len(s)
			}
			sb.WriteString(s[:i])
			s = s[i:]
			continue
		}
		value, _, tail, err := strconv.UnquoteChar(s, 0)
		if err != nil {
			sb.WriteByte('\\')
			s = s[1:]
			continue
		}
		sb.WriteRune(value)
		s = tail
	}
	return sb.String()
}
