// Package domain contains the core types of the forge engine.
package domain

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
	"go.trai.ch/zerr"
)

// Digest identifies an immutable blob by its BLAKE3-256 content hash and size.
// Two digests are interchangeable iff they compare equal.
type Digest struct {
	Hash      string `json:"hash"`
	SizeBytes int64  `json:"size_bytes"`
}

// NewDigest computes the digest of the given content.
func NewDigest(content []byte) Digest {
	sum := blake3.Sum256(content)
	return Digest{
		Hash:      hex.EncodeToString(sum[:]),
		SizeBytes: int64(len(content)),
	}
}

// IsZero reports whether the digest is the zero value.
func (d Digest) IsZero() bool {
	return d.Hash == "" && d.SizeBytes == 0
}

// String returns the canonical "hash-size" form.
func (d Digest) String() string {
	return d.Hash + "-" + strconv.FormatInt(d.SizeBytes, 10)
}

// ParseDigest parses the canonical "hash-size" form produced by String.
func ParseDigest(s string) (Digest, error) {
	idx := strings.LastIndexByte(s, '-')
	if idx <= 0 || idx == len(s)-1 {
		return Digest{}, zerr.With(ErrInvalidDigest, "digest", s)
	}

	hash := s[:idx]
	if _, err := hex.DecodeString(hash); err != nil || len(hash) != hashHexLen {
		return Digest{}, zerr.With(ErrInvalidDigest, "digest", s)
	}

	size, err := strconv.ParseInt(s[idx+1:], 10, 64)
	if err != nil || size < 0 {
		return Digest{}, zerr.With(ErrInvalidDigest, "digest", s)
	}

	return Digest{Hash: hash, SizeBytes: size}, nil
}

// hashHexLen is the length of a hex-encoded BLAKE3-256 hash.
const hashHexLen = 64

// EmptyDigest is the digest of the empty blob.
var EmptyDigest = NewDigest(nil)

var _ fmt.Stringer = Digest{}
