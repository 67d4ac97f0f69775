package domainmessage

import "github.com/dagchain/pagechain/crypto"

// Tx is implemented by *TransferEnvelope and *PageEnvelope: the common
// surface the validator, chain engine, pending queue and gossip network
// operate over without caring which concrete kind they're holding.
type Tx interface {
	Hash() crypto.Hash
	HeaderHash() crypto.Hash
	SenderAddress() crypto.Address
	SenderID() senderID
	FeeAmount() Amount
	ByteLen() int
}

// senderID is the nonce a transaction carries (Transfer.ID / Page.ID);
// named distinctly from crypto types to avoid confusion with addresses.
type senderID = uint32

// FeeAmount implements Tx.
func (e *TransferEnvelope) FeeAmount() Amount { return e.Header.FeeAmt }

// SenderID implements Tx.
func (e *TransferEnvelope) SenderID() senderID { return e.Header.ID }

// FeeAmount implements Tx.
func (e *PageEnvelope) FeeAmount() Amount { return e.Header.FeeAmt }

// SenderID implements Tx.
func (e *PageEnvelope) SenderID() senderID { return e.Header.ID }

var _ Tx = (*TransferEnvelope)(nil)
var _ Tx = (*PageEnvelope)(nil)
