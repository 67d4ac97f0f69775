package domainmessage

import (
	"io"
	"math/big"

	"github.com/pkg/errors"
)

// CompactTarget is the 4-byte compact encoding of a 32-byte
// proof-of-work ceiling: three mantissa bytes (high, mid, low) and one
// exponent byte.
type CompactTarget [4]byte

// MinTarget is the easiest allowed target.
var MinTarget = CompactTarget{0x00, 0xFF, 0xFF, 0x20}

// Coefficient returns the 3-byte mantissa as a big-endian integer.
func (t CompactTarget) Coefficient() uint32 {
	return uint32(t[0])<<16 | uint32(t[1])<<8 | uint32(t[2])
}

// Exponent returns the exponent byte.
func (t CompactTarget) Exponent() byte {
	return t[3]
}

// NewCompactTarget packs a coefficient and exponent into compact form.
func NewCompactTarget(coefficient uint32, exponent byte) CompactTarget {
	return CompactTarget{
		byte(coefficient >> 16),
		byte(coefficient >> 8),
		byte(coefficient),
		exponent,
	}
}

// Expand returns the 32-byte big-endian hash ceiling this compact
// target represents: coefficient * 256^(exponent-3), matching
// Bitcoin's nBits expansion.
func (t CompactTarget) Expand() *big.Int {
	coeff := big.NewInt(int64(t.Coefficient()))
	exp := int(t.Exponent())
	if exp <= 3 {
		// Shift right for small exponents instead of a negative shift.
		shiftBits := uint(8 * (3 - exp))
		return new(big.Int).Rsh(coeff, shiftBits)
	}
	shiftBits := uint(8 * (exp - 3))
	return new(big.Int).Lsh(coeff, shiftBits)
}

// CompactFromBig packs a big.Int difficulty target into compact form,
// choosing the smallest exponent that represents it without
// overflowing the 3-byte mantissa.
func CompactFromBig(target *big.Int) CompactTarget {
	if target.Sign() <= 0 {
		return CompactTarget{}
	}

	bytes := target.Bytes()
	exponent := len(bytes)

	var mantissa []byte
	if exponent <= 3 {
		mantissa = make([]byte, 3)
		copy(mantissa[3-exponent:], bytes)
	} else {
		mantissa = append([]byte{}, bytes[:3]...)
	}

	// If the high mantissa bit is set, the value would be interpreted as
	// negative; shift down by one byte and bump the exponent, the same
	// normalization Bitcoin's nBits encoding applies.
	if mantissa[0]&0x80 != 0 {
		mantissa = append([]byte{0}, mantissa[:2]...)
		exponent++
	}

	coeff := uint32(mantissa[0])<<16 | uint32(mantissa[1])<<8 | uint32(mantissa[2])
	if exponent > 255 {
		exponent = 255
	}
	return NewCompactTarget(coeff, byte(exponent))
}

// HashBelowTarget reports whether the hash, interpreted as a
// big-endian integer, is strictly below the expansion of target.
func HashBelowTarget(hashBytes []byte, target CompactTarget) bool {
	h := new(big.Int).SetBytes(hashBytes)
	return h.Cmp(target.Expand()) < 0
}

func writeCompactTarget(w io.Writer, t CompactTarget) error {
	_, err := w.Write(t[:])
	return err
}

func readCompactTarget(r io.Reader) (CompactTarget, error) {
	var t CompactTarget
	_, err := io.ReadFull(r, t[:])
	if err != nil {
		return t, errors.Wrap(err, "reading compact target")
	}
	return t, nil
}
