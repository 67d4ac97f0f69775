package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	pub, err := key.PublicKey()
	require.NoError(t, err)
	exp := key.Exponent()

	digest := HashData([]byte("hello pagechain"))
	sig, err := key.Sign(digest)
	require.NoError(t, err)

	require.True(t, Verify(pub, exp, digest, sig))
}

func TestVerifyRejectsTamperedDigest(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	pub, err := key.PublicKey()
	require.NoError(t, err)
	exp := key.Exponent()

	sig, err := key.Sign(HashData([]byte("original")))
	require.NoError(t, err)

	require.False(t, Verify(pub, exp, HashData([]byte("tampered")), sig))
}

func TestPrivateKeyDERRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	der, err := key.DER()
	require.NoError(t, err)

	loaded, err := LoadPrivateKeyDER(der)
	require.NoError(t, err)

	pub, err := key.PublicKey()
	require.NoError(t, err)
	loadedPub, err := loaded.PublicKey()
	require.NoError(t, err)
	require.Equal(t, pub, loadedPub)

	digest := HashData([]byte("round trip"))
	sig, err := loaded.Sign(digest)
	require.NoError(t, err)
	require.True(t, Verify(pub, loaded.Exponent(), digest, sig))
}

func TestAddressOfIsDeterministic(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	pub, err := key.PublicKey()
	require.NoError(t, err)

	a1 := AddressOf(pub)
	a2 := AddressOf(pub)
	require.Equal(t, a1, a2)

	var other PublicKey
	copy(other[:], pub[:])
	other[0] ^= 0xFF
	require.NotEqual(t, a1, AddressOf(other))
}

func TestHashFromBytesRejectsWrongLength(t *testing.T) {
	_, err := HashFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestMerkleRootEmptyIsZero(t *testing.T) {
	require.Equal(t, ZeroHash, MerkleRoot(nil))
}

func TestMerkleRootSingleLeaf(t *testing.T) {
	leaf := []byte("only leaf")
	require.Equal(t, HashData(leaf), MerkleRoot([][]byte{leaf}))
}

func TestMerkleRootOddCountCarriesLastUnpaired(t *testing.T) {
	a, b, c := []byte("a"), []byte("b"), []byte("c")

	ab := HashData(append(append([]byte{}, HashData(a)[:]...), HashData(b)[:]...))
	expected := HashData(append(append([]byte{}, ab[:]...), HashData(c)[:]...))

	require.Equal(t, expected, MerkleRoot([][]byte{a, b, c}))
}

func TestMerkleRootOrderSensitive(t *testing.T) {
	a, b := []byte("a"), []byte("b")
	require.NotEqual(t, MerkleRoot([][]byte{a, b}), MerkleRoot([][]byte{b, a}))
}

func TestEncodeDecodeAddressRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	pub, err := key.PublicKey()
	require.NoError(t, err)
	addr := AddressOf(pub)

	encoded := EncodeAddress(addr)
	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, addr, decoded)
}
