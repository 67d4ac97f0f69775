// Package crypto implements the fixed-size hashing, RSA signing, address
// derivation and merkle root primitives used by the rest of the node.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

// HashSize is the size in bytes of a Hash.
const HashSize = 32

// Hash is a fixed-size SHA-256 digest.
type Hash [HashSize]byte

// ZeroHash is the all-zero digest returned by MerkleRoot for empty input.
var ZeroHash = Hash{}

// HashData returns the SHA-256 digest of data.
func HashData(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// String returns the hex encoding of the hash, most significant byte first.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Bytes returns a copy of the hash's bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// HashFromBytes builds a Hash from a byte slice of exactly HashSize bytes.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, errors.Errorf("invalid hash length %d, expected %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// MerkleRoot computes the merkle root of the given leaves by pairwise
// SHA-256 reduction. An odd element at any level is carried unpaired to
// the next level. Empty input yields the zero hash.
func MerkleRoot(leaves [][]byte) Hash {
	if len(leaves) == 0 {
		return ZeroHash
	}

	level := make([]Hash, len(leaves))
	for i, leaf := range leaves {
		level[i] = HashData(leaf)
	}

	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			concat := make([]byte, 0, HashSize*2)
			concat = append(concat, level[i][:]...)
			concat = append(concat, level[i+1][:]...)
			next = append(next, HashData(concat))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return level[0]
}
