package validator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
)

func signedTransfer(t *testing.T, key *crypto.PrivateKey, header domainmessage.Transfer) *domainmessage.TransferEnvelope {
	t.Helper()
	pub, err := key.PublicKey()
	require.NoError(t, err)

	env := &domainmessage.TransferEnvelope{
		Header:        header,
		FromPublicKey: pub,
		Exponent:      key.Exponent(),
	}
	sig, err := key.Sign(env.HeaderHash())
	require.NoError(t, err)
	env.Signature = sig
	return env
}

func signedPage(t *testing.T, key *crypto.PrivateKey, header domainmessage.Page) *domainmessage.PageEnvelope {
	t.Helper()
	pub, err := key.PublicKey()
	require.NoError(t, err)

	env := &domainmessage.PageEnvelope{
		Header:        header,
		FromPublicKey: pub,
		Exponent:      key.Exponent(),
	}
	sig, err := key.Sign(env.HeaderHash())
	require.NoError(t, err)
	env.Signature = sig
	return env
}

func TestValidateTransferEnvelopeAcceptsWellFormed(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	env := signedTransfer(t, key, domainmessage.Transfer{ID: 1, To: crypto.Address{0x01}, Amount: 10, FeeAmt: 1})
	require.True(t, ValidateTransferEnvelope(env).IsOk())
}

func TestValidateTransferEnvelopeRejectsNegativeAmount(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	env := signedTransfer(t, key, domainmessage.Transfer{ID: 1, To: crypto.Address{0x01}, Amount: -1, FeeAmt: 1})
	res := ValidateTransferEnvelope(env)
	require.Equal(t, ResultTransaction, res.Code)
}

func TestValidateTransferEnvelopeRejectsBadSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	env := signedTransfer(t, key, domainmessage.Transfer{ID: 1, To: crypto.Address{0x01}, Amount: 10, FeeAmt: 1})
	env.Header.Amount = 999 // mutate after signing

	res := ValidateTransferEnvelope(env)
	require.Equal(t, ResultTransaction, res.Code)
}

func TestValidatePageEnvelopeRejectsMismatchedChunkCount(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	env := signedPage(t, key, domainmessage.Page{
		ID:         1,
		DataHashes: []crypto.Hash{crypto.HashData([]byte("only one"))},
		DataLength: domainmessage.PageChunkSize + 1, // expects 2 chunks
		FeeAmt:     1,
	})
	res := ValidatePageEnvelope(env)
	require.Equal(t, ResultTransaction, res.Code)
}

func TestValidatePageEnvelopeAcceptsWellFormed(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	env := signedPage(t, key, domainmessage.Page{
		ID:         1,
		DataHashes: []crypto.Hash{crypto.HashData([]byte("chunk0"))},
		DataLength: 10,
		FeeAmt:     1,
	})
	require.True(t, ValidatePageEnvelope(env).IsOk())
}

func TestValidatePagePayloadChecksChunkHashes(t *testing.T) {
	payload := make([]byte, domainmessage.PageChunkSize+10)
	for i := range payload {
		payload[i] = byte(i)
	}
	header := &domainmessage.Page{
		DataHashes: []crypto.Hash{
			crypto.HashData(payload[:domainmessage.PageChunkSize]),
			crypto.HashData(payload[domainmessage.PageChunkSize:]),
		},
		DataLength: uint32(len(payload)),
	}
	require.True(t, ValidatePagePayload(header, payload))

	payload[0] ^= 0xFF
	require.False(t, ValidatePagePayload(header, payload))
}
