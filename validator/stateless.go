package validator

import (
	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
)

// ValidateTransferEnvelope performs the stateless checks a transfer
// must pass: signature verifies, amount and fee are non-negative. It
// does not know about balances or nonces — those are chain-contextual.
func ValidateTransferEnvelope(e *domainmessage.TransferEnvelope) Result {
	if e.Header.Amount.IsNegative() {
		return Transaction("transfer amount is negative")
	}
	if e.Header.FeeAmt.IsNegative() {
		return Transaction("transfer fee is negative")
	}
	if !verifyEnvelopeSignature(e.HeaderHash(), e.FromPublicKey, e.Exponent, e.Signature) {
		return Transaction("transfer signature does not verify")
	}
	return Ok
}

// ValidatePageEnvelope performs the stateless checks a page transaction
// must pass: data_hashes count matches data_length, fee is non-negative,
// signature verifies.
func ValidatePageEnvelope(e *domainmessage.PageEnvelope) Result {
	if e.Header.FeeAmt.IsNegative() {
		return Transaction("page fee is negative")
	}
	if uint32(len(e.Header.DataHashes)) != e.Header.ExpectedChunkCount() {
		return Transaction("page data_hashes count does not match data_length")
	}
	if !verifyEnvelopeSignature(e.HeaderHash(), e.FromPublicKey, e.Exponent, e.Signature) {
		return Transaction("page signature does not verify")
	}
	return Ok
}

func verifyEnvelopeSignature(headerHash crypto.Hash, pub crypto.PublicKey, exp crypto.Exponent, sig crypto.Signature) bool {
	return crypto.Verify(pub, exp, headerHash, sig)
}

// ValidatePagePayload checks that a received page payload actually
// chunks into the hashes the page transaction declared.
func ValidatePagePayload(header *domainmessage.Page, payload []byte) bool {
	if uint32(len(payload)) != header.DataLength {
		return false
	}
	if uint32(len(header.DataHashes)) != header.ExpectedChunkCount() {
		return false
	}
	for i, want := range header.DataHashes {
		start := i * domainmessage.PageChunkSize
		end := start + domainmessage.PageChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		got := crypto.HashData(payload[start:end])
		if got != want {
			return false
		}
	}
	return true
}
