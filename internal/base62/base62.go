// Package base62 implements the alphanumeric address encoding used for
// human-facing wallet addresses and on-disk page payload paths.
package base62

import (
	"math/big"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var base = big.NewInt(int64(len(alphabet)))

// Encode returns the base-62 encoding of b, treating it as a big-endian
// unsigned integer. Leading zero bytes are preserved as leading '0'
// digits so encodings of fixed-width hashes remain visually aligned.
func Encode(b []byte) string {
	n := new(big.Int).SetBytes(b)
	if n.Sign() == 0 {
		return zeroPadded(b)
	}

	var out []byte
	zero := new(big.Int)
	mod := new(big.Int)
	for n.Cmp(zero) > 0 {
		n.DivMod(n, base, mod)
		out = append(out, alphabet[mod.Int64()])
	}
	reverse(out)

	leadingZeros := countLeadingZeroBytes(b)
	prefix := make([]byte, leadingZeros)
	for i := range prefix {
		prefix[i] = alphabet[0]
	}
	return string(prefix) + string(out)
}

// Decode reverses Encode, returning a byte slice of the given width.
func Decode(s string, width int) ([]byte, error) {
	n := new(big.Int)
	for _, r := range s {
		idx := indexOf(byte(r))
		if idx < 0 {
			return nil, errInvalidChar(r)
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(idx)))
	}
	raw := n.Bytes()
	if len(raw) > width {
		return nil, errTooLong{got: len(raw), want: width}
	}
	out := make([]byte, width)
	copy(out[width-len(raw):], raw)
	return out, nil
}

func indexOf(c byte) int {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return i
		}
	}
	return -1
}

func countLeadingZeroBytes(b []byte) int {
	count := 0
	for _, v := range b {
		if v != 0 {
			break
		}
		count++
	}
	return count
}

func zeroPadded(b []byte) string {
	out := make([]byte, len(b))
	for i := range out {
		out[i] = alphabet[0]
	}
	return string(out)
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

type errInvalidChar rune

func (e errInvalidChar) Error() string {
	return "base62: invalid character " + string(rune(e))
}

type errTooLong struct {
	got, want int
}

func (e errTooLong) Error() string {
	return "base62: decoded value too long"
}
