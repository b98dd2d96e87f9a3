package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// HashAlgorithm represents the hashing algorithm to use
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "sha256"
	BLAKE3 HashAlgorithm = "blake3"
)

// Hasher provides extensible hashing functionality
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm HashAlgorithm) *Hasher {
	return &Hasher{
		algorithm: algorithm,
	}
}

// DefaultHasher returns a hasher with the default algorithm
func DefaultHasher() *Hasher {
	return NewHasher(BLAKE3)
}

// Algorithm reports the configured algorithm
func (h *Hasher) Algorithm() HashAlgorithm {
	return h.algorithm
}

// Hash computes a hash of the input data
func (h *Hasher) Hash(data []byte) string {
	switch h.algorithm {
	case BLAKE3:
		sum := blake3.Sum256(data)
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
}

// HashString computes a hash of a string
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// HashFields computes a hash from multiple fields
// Fields are concatenated with a delimiter for consistent hashing
func (h *Hasher) HashFields(fields ...string) string {
	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)

	combined := strings.Join(sorted, "|")
	return h.HashString(combined)
}

// New returns a streaming hash.Hash for the configured algorithm
func (h *Hasher) New() hash.Hash {
	if h.algorithm == BLAKE3 {
		return blake3.New()
	}
	return sha256.New()
}

// HashTree computes a deterministic digest over a path -> content mapping.
// Keys are visited in sorted order and each record is length-prefixed so
// that ("a", "bc") and ("ab", "c") never collide.
func (h *Hasher) HashTree(files map[string][]byte) string {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := h.New()
	var lenBuf [8]byte
	for _, k := range keys {
		writeLen(d, lenBuf[:], len(k))
		d.Write([]byte(k))
		writeLen(d, lenBuf[:], len(files[k]))
		d.Write(files[k])
	}
	return hex.EncodeToString(d.Sum(nil))
}

func writeLen(w hash.Hash, buf []byte, n int) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(uint64(n) >> (8 * i))
	}
	w.Write(buf)
}
