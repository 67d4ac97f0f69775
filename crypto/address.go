package crypto

import "github.com/dagchain/pagechain/internal/base62"

// Address is the SHA-256 digest of a wallet's public key. It is an
// alias of Hash: addresses and hashes share the same fixed width and
// the same binary codec.
type Address = Hash

// EncodeAddress returns the base-62 display encoding of an address.
func EncodeAddress(addr Address) string {
	return base62.Encode(addr[:])
}

// DecodeAddress parses the base-62 display encoding of an address.
func DecodeAddress(s string) (Address, error) {
	var addr Address
	raw, err := base62.Decode(s, HashSize)
	if err != nil {
		return addr, err
	}
	copy(addr[:], raw)
	return addr, nil
}
