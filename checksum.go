package arcfile

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"hash/crc32"
	"io"
	"slices"
	"strings"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// NO_CHECKSUM is the digest reported for unsupported algorithms.
const NO_CHECKSUM = "0"

var hashes = map[string]func() hash.Hash{
	"md5":        md5.New,
	"sha1":       sha1.New,
	"sha224":     sha256.New224,
	"sha256":     sha256.New,
	"sha384":     sha512.New384,
	"sha512":     sha512.New,
	"sha512_224": sha512.New512_224,
	"sha512_256": sha512.New512_256,
	"sha3_224":   sha3.New224,
	"sha3_256":   sha3.New256,
	"sha3_384":   sha3.New384,
	"sha3_512":   sha3.New512,
	"blake2b": func() hash.Hash {
		h, _ := blake2b.New512(nil)
		return h
	},
	"blake2s": func() hash.Hash {
		h, _ := blake2s.New256(nil)
		return h
	},
	"crc32": func() hash.Hash { return crc32.NewIEEE() },
	"xxh3":  func() hash.Hash { return xxh3.New() },
}

// hashKey maps an algorithm name to its key in hashes. "SHA-256" and "sha256" name the same
// digest, as do "sha3-256" and "sha3_256", and "sha512/256" and "sha512_256".
func hashKey(algo string) string {
	key := strings.ToLower(strings.TrimSpace(algo))
	key = strings.ReplaceAll(key, "/", "_")
	if rest, ok := strings.CutPrefix(key, "sha3-"); ok {
		return "sha3_" + rest
	}
	if rest, ok := strings.CutPrefix(key, "sha-"); ok {
		key = "sha" + rest
	}
	return strings.ReplaceAll(key, "-", "_")
}

// ChecksumSupported reports whether algo names a known digest algorithm.
func ChecksumSupported(algo string) bool {
	_, ok := hashes[hashKey(algo)]
	return ok
}

// ChecksumAlgorithms lists the supported algorithm names.
func ChecksumAlgorithms() []string {
	names := make([]string, 0, len(hashes))
	for k := range hashes {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func newHash(algo string, salt []byte) (hash.Hash, bool) {
	h, ok := hashes[hashKey(algo)]
	if !ok {
		return nil, false
	}
	if len(salt) > 0 {
		return hmac.New(h, salt), true
	}
	return h(), true
}

// ComputeChecksum hashes everything read from r with algo, keyed as an HMAC when salt is not empty,
// and returns the lowercase hex digest. Unsupported algorithms yield NO_CHECKSUM without reading r.
func ComputeChecksum(r io.Reader, algo string, salt []byte) (string, error) {
	h, ok := newHash(algo, salt)
	if !ok {
		return NO_CHECKSUM, nil
	}
	if _, err := io.CopyBuffer(h, r, make([]byte, CHECKSUM_CHUNK_SIZE)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumBytes is ComputeChecksum for in-memory data.
func ChecksumBytes(data []byte, algo string, salt []byte) string {
	h, ok := newHash(algo, salt)
	if !ok {
		return NO_CHECKSUM
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeDigest(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return NO_CHECKSUM
	}
	return s
}

// ChecksumsEqual compares two hex digests in constant time, ignoring case, surrounding space and an
// optional 0x prefix.
func ChecksumsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(normalizeDigest(a)), []byte(normalizeDigest(b))) == 1
}

// headerChecksumInput is the byte string a record's header checksum is computed over: every header
// token except the two stored checksums, each followed by the delimiter.
func headerChecksumInput(rec *Record, delim []byte) []byte {
	tokens := append([]string{rec.HeaderLen, rec.FieldCount}, rec.Fields...)
	tokens = tokens[:max(len(tokens)-2, 0)]
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t)
		b.Write(delim)
	}
	return []byte(b.String())
}

// VerifyHeaderChecksum checks rec's stored header checksum. Records without checksum fields always
// verify.
func VerifyHeaderChecksum(rec *Record, f *FormatSpec, salt []byte) error {
	if !f.Checksums {
		return nil
	}
	actual := ChecksumBytes(headerChecksumInput(rec, f.Delimiter), rec.HeaderChecksumType, salt)
	if !ChecksumsEqual(rec.HeaderChecksum, actual) {
		return &ChecksumError{Kind: "header", Expected: rec.HeaderChecksum, Actual: actual}
	}
	return nil
}

// VerifyContentChecksum checks rec's stored content checksum against the raw payload bytes.
func VerifyContentChecksum(rec *Record, f *FormatSpec, payload []byte, salt []byte) error {
	if !f.Checksums {
		return nil
	}
	actual := ChecksumBytes(payload, rec.ContentChecksumType, salt)
	if !ChecksumsEqual(rec.ContentChecksum, actual) {
		return &ChecksumError{Kind: "content", Expected: rec.ContentChecksum, Actual: actual}
	}
	return nil
}
