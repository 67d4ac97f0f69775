package domainmessage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagchain/pagechain/crypto"
)

func fakeTransferEnvelope() *TransferEnvelope {
	var pub crypto.PublicKey
	pub[0] = 0x11
	var sig crypto.Signature
	sig[0] = 0x22
	return &TransferEnvelope{
		Header: Transfer{
			ID:     7,
			To:     crypto.Address{0x33},
			Amount: 1000,
			FeeAmt: 5,
		},
		FromPublicKey: pub,
		Signature:     sig,
		Exponent:      crypto.Exponent{0x01, 0x00, 0x01},
	}
}

func TestTransferEnvelopeSerializeRoundTrip(t *testing.T) {
	orig := fakeTransferEnvelope()

	buf := &bytes.Buffer{}
	require.NoError(t, SerializeTransferEnvelope(buf, orig))

	got, err := DeserializeTransferEnvelope(buf)
	require.NoError(t, err)
	require.Equal(t, orig, got)
}

func TestTransferEnvelopeHashStableAcrossCalls(t *testing.T) {
	e := fakeTransferEnvelope()
	require.Equal(t, e.Hash(), e.Hash())
	require.Equal(t, e.HeaderHash(), e.HeaderHash())
}

func TestTransferEnvelopeHashChangesWithSignature(t *testing.T) {
	a := fakeTransferEnvelope()
	b := fakeTransferEnvelope()
	b.Signature[0] = 0xFF

	require.Equal(t, a.HeaderHash(), b.HeaderHash(), "header hash must not cover the signature")
	require.NotEqual(t, a.Hash(), b.Hash(), "envelope hash must cover the signature")
}

func TestPageExpectedChunkCount(t *testing.T) {
	p := &Page{DataLength: 0}
	require.EqualValues(t, 0, p.ExpectedChunkCount())

	p.DataLength = PageChunkSize
	require.EqualValues(t, 1, p.ExpectedChunkCount())

	p.DataLength = PageChunkSize + 1
	require.EqualValues(t, 2, p.ExpectedChunkCount())
}

func fakePageEnvelope() *PageEnvelope {
	var pub crypto.PublicKey
	pub[0] = 0x44
	return &PageEnvelope{
		Header: Page{
			ID:         3,
			DataHashes: []crypto.Hash{crypto.HashData([]byte("chunk0")), crypto.HashData([]byte("chunk1"))},
			DataLength: PageChunkSize + 1,
			FeeAmt:     9,
		},
		FromPublicKey: pub,
	}
}

func TestPageEnvelopeSerializeRoundTrip(t *testing.T) {
	orig := fakePageEnvelope()

	buf := &bytes.Buffer{}
	require.NoError(t, SerializePageEnvelope(buf, orig))

	got, err := DeserializePageEnvelope(buf)
	require.NoError(t, err)
	require.Equal(t, orig, got)
}

func TestEnvelopeByteLenMatchesSerializedSize(t *testing.T) {
	orig := fakeTransferEnvelope()
	buf := &bytes.Buffer{}
	require.NoError(t, SerializeTransferEnvelope(buf, orig))
	require.Equal(t, buf.Len(), orig.ByteLen())
}
