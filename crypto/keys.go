package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"math/big"

	"github.com/pkg/errors"
)

// PubKeyLen is the width in bytes of the RSA-2048 public modulus, and
// therefore also of a Signature.
const PubKeyLen = 256

// rsaKeyBits is the modulus size used when generating new wallet keys.
const rsaKeyBits = PubKeyLen * 8

// PublicKey is the fixed-width RSA-2048 modulus identifying a wallet.
type PublicKey [PubKeyLen]byte

// Signature is an RSA PKCS#1 v1.5 signature, the same width as a PublicKey.
type Signature [PubKeyLen]byte

// Exponent is the 3-byte RSA public exponent carried in a transaction
// envelope alongside the modulus.
type Exponent [3]byte

// PrivateKey wraps an RSA private key for signing.
type PrivateKey struct {
	key *rsa.PrivateKey
}

// GenerateKey creates a new RSA-2048 wallet keypair.
func GenerateKey() (*PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, errors.Wrap(err, "generating RSA key")
	}
	return &PrivateKey{key: key}, nil
}

// LoadPrivateKeyDER parses a PKCS#8 DER-encoded RSA private key, the
// format wallet key files use on disk.
func LoadPrivateKeyDER(der []byte) (*PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, errors.Wrap(err, "parsing PKCS#8 private key")
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("key file does not contain an RSA private key")
	}
	return &PrivateKey{key: rsaKey}, nil
}

// LoadPrivateKeyPEM parses a PEM block wrapping a PKCS#8 DER private key.
func LoadPrivateKeyPEM(data []byte) (*PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found in key file")
	}
	return LoadPrivateKeyDER(block.Bytes)
}

// DER encodes the private key as PKCS#8 DER, the on-disk wallet key format.
func (k *PrivateKey) DER() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(k.key)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling PKCS#8 private key")
	}
	return der, nil
}

// PublicKey returns the fixed-width public modulus for this key.
func (k *PrivateKey) PublicKey() (PublicKey, error) {
	return publicKeyFromRSA(&k.key.PublicKey)
}

// Exponent returns the 3-byte public exponent for this key.
func (k *PrivateKey) Exponent() Exponent {
	return exponentFromInt(k.key.PublicKey.E)
}

// Sign produces an RSA PKCS#1 v1.5 signature over the SHA-256 digest.
func (k *PrivateKey) Sign(digest Hash) (Signature, error) {
	var sig Signature
	raw, err := rsa.SignPKCS1v15(rand.Reader, k.key, crypto.SHA256, digest[:])
	if err != nil {
		return sig, errors.Wrap(err, "signing digest")
	}
	if len(raw) != PubKeyLen {
		return sig, errors.Errorf("unexpected signature length %d", len(raw))
	}
	copy(sig[:], raw)
	return sig, nil
}

// Verify checks an RSA PKCS#1 v1.5 signature over digest against the
// given public key and exponent.
func Verify(pub PublicKey, exp Exponent, digest Hash, sig Signature) bool {
	rsaPub := &rsa.PublicKey{
		N: new(big.Int).SetBytes(pub[:]),
		E: intFromExponent(exp),
	}
	err := rsa.VerifyPKCS1v15(rsaPub, crypto.SHA256, digest[:], sig[:])
	return err == nil
}

// AddressOf returns the SHA-256 address of a public key.
func AddressOf(pub PublicKey) Hash {
	return HashData(pub[:])
}

func publicKeyFromRSA(pub *rsa.PublicKey) (PublicKey, error) {
	var out PublicKey
	n := pub.N.Bytes()
	if len(n) > PubKeyLen {
		return out, errors.Errorf("public modulus too large: %d bytes", len(n))
	}
	// Left-pad so the modulus always occupies the full fixed width.
	copy(out[PubKeyLen-len(n):], n)
	return out, nil
}

func exponentFromInt(e int) Exponent {
	var out Exponent
	out[0] = byte(e >> 16)
	out[1] = byte(e >> 8)
	out[2] = byte(e)
	return out
}

func intFromExponent(e Exponent) int {
	return int(e[0])<<16 | int(e[1])<<8 | int(e[2])
}
