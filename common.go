package arcfile

const (
	// DEFAULT_HEADER_SCAN is the maximum number of bytes ScanToNextHeader will skip looking for the
	// start of the next record header.
	DEFAULT_HEADER_SCAN = 2_000_000

	// DEFAULT_PAYLOAD_SCAN is the size of the window FindContentStart searches for a codec marker.
	DEFAULT_PAYLOAD_SCAN = 4096

	// CHECKSUM_CHUNK_SIZE is the read size used when hashing streams.
	CHECKSUM_CHUNK_SIZE = 256 * 1024

	// ENTRY_FILE is the entry type code of a regular file. Any other code is a directory or other
	// non-file entry.
	ENTRY_FILE = "0"
)

// Compression method names as they appear in record headers.
const (
	MethodLZMA  = "lzma"
	MethodBzip2 = "bzip2"
	MethodZlib  = "zlib"
	MethodGzip  = "gzip"
	MethodXZ    = "xz"
	MethodZstd  = "zstd"
	MethodLZ4   = "lz4"
	MethodNone  = "none"
)

// FieldIndices are the positions of the interesting fields within a record's field list. Fields
// are counted after the header length and field count tokens.
type FieldIndices struct {
	Type  int
	Name  int
	USize int
	Comp  int
	CSize int
}

// DefaultFieldIndices is the layout used by ArchiveFile archives.
var DefaultFieldIndices = FieldIndices{Type: 0, Name: 3, USize: 5, Comp: 15, CSize: 16}

// Record describes one entry parsed from the archive's token stream.
type Record struct {
	Type             string
	Name             string
	UncompressedSize int64
	CompressedSize   int64
	Method           string

	// HeaderOffset is where the record's header began in the source stream.
	HeaderOffset int64

	// HeaderLen and FieldCount are the raw leading tokens of the header; Fields are the tokens
	// that followed them.
	HeaderLen  string
	FieldCount string
	Fields     []string

	// Checksum fields are only populated for formats that carry them.
	HeaderChecksumType  string
	ContentChecksumType string
	HeaderChecksum      string
	ContentChecksum     string
}

// IsFile reports whether the record describes a regular file.
func (r *Record) IsFile() bool {
	return r.Type == ENTRY_FILE
}

// IsStored reports whether the record's payload is kept without compression.
func (r *Record) IsStored() bool {
	return r.Method == "" || r.Method == MethodNone
}

// Kind is the short label used when listing the record.
func (r *Record) Kind() string {
	if r.IsFile() {
		return "FILE"
	}
	return "DIR "
}

func (r *Record) field(idx int) string {
	if idx < 0 || idx >= len(r.Fields) {
		return ""
	}
	return r.Fields[idx]
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isHexByte(s[i]) {
			return false
		}
	}
	return true
}

func isHexByte(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
