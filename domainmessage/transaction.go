package domainmessage

import (
	"io"

	"github.com/pkg/errors"

	"github.com/dagchain/pagechain/crypto"
)

// HeaderKind distinguishes the two transaction header variants an
// envelope can carry.
type HeaderKind uint8

// Header kinds.
const (
	HeaderKindTransfer HeaderKind = 0
	HeaderKindPage     HeaderKind = 1
)

// TxHeader is implemented by Transfer and Page: the signed payload of a
// transaction envelope.
type TxHeader interface {
	Kind() HeaderKind
	SenderID() uint32
	Fee() Amount
	serialize(w io.Writer) error
}

// Transfer is an account-to-account payment.
type Transfer struct {
	ID     uint32
	To     crypto.Address
	Amount Amount
	FeeAmt Amount
}

// Kind implements TxHeader.
func (t *Transfer) Kind() HeaderKind { return HeaderKindTransfer }

// SenderID implements TxHeader.
func (t *Transfer) SenderID() uint32 { return t.ID }

// Fee implements TxHeader.
func (t *Transfer) Fee() Amount { return t.FeeAmt }

func (t *Transfer) serialize(w io.Writer) error {
	if err := writeUint32(w, t.ID); err != nil {
		return err
	}
	if err := writeHash(w, t.To); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(t.Amount)); err != nil {
		return err
	}
	return writeUint64(w, uint64(t.FeeAmt))
}

func deserializeTransfer(r io.Reader) (*Transfer, error) {
	t := &Transfer{}
	var err error
	if t.ID, err = readUint32(r); err != nil {
		return nil, err
	}
	if t.To, err = readHash(r); err != nil {
		return nil, err
	}
	amt, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	t.Amount = Amount(amt)
	fee, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	t.FeeAmt = Amount(fee)
	return t, nil
}

// PageChunkSize is the chunk size a page payload is split into before
// hashing: 1,000,000 bytes.
const PageChunkSize = 1_000_000

// Page is a content announcement committing to the chunk hashes of an
// out-of-band payload.
type Page struct {
	ID         uint32
	DataHashes []crypto.Hash
	DataLength uint32
	FeeAmt     Amount
}

// Kind implements TxHeader.
func (p *Page) Kind() HeaderKind { return HeaderKindPage }

// SenderID implements TxHeader.
func (p *Page) SenderID() uint32 { return p.ID }

// Fee implements TxHeader.
func (p *Page) Fee() Amount { return p.FeeAmt }

// ExpectedChunkCount returns ceil(DataLength / PageChunkSize), the
// chunk count DataHashes must match.
func (p *Page) ExpectedChunkCount() uint32 {
	return expectedChunkCount(p.DataLength)
}

func expectedChunkCount(dataLength uint32) uint32 {
	if dataLength == 0 {
		return 0
	}
	return (dataLength + PageChunkSize - 1) / PageChunkSize
}

func (p *Page) serialize(w io.Writer) error {
	if err := writeUint32(w, p.ID); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(p.DataHashes))); err != nil {
		return err
	}
	for _, h := range p.DataHashes {
		if err := writeHash(w, h); err != nil {
			return err
		}
	}
	if err := writeUint32(w, p.DataLength); err != nil {
		return err
	}
	return writeUint64(w, uint64(p.FeeAmt))
}

const maxDataHashes = 32 // 32 chunks of PageChunkSize, 32,000,000 bytes in all, per page transaction

func deserializePage(r io.Reader) (*Page, error) {
	p := &Page{}
	var err error
	if p.ID, err = readUint32(r); err != nil {
		return nil, err
	}
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading data hash count")
	}
	if count > maxDataHashes {
		return nil, errors.Errorf("data hash count %d exceeds maximum %d", count, maxDataHashes)
	}
	p.DataHashes = make([]crypto.Hash, count)
	for i := range p.DataHashes {
		if p.DataHashes[i], err = readHash(r); err != nil {
			return nil, err
		}
	}
	if p.DataLength, err = readUint32(r); err != nil {
		return nil, err
	}
	fee, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	p.FeeAmt = Amount(fee)
	return p, nil
}

// TransferEnvelope is a signed, sender-attributed Transfer.
type TransferEnvelope struct {
	Header        Transfer
	FromPublicKey crypto.PublicKey
	Signature     crypto.Signature
	Exponent      crypto.Exponent
}

// PageEnvelope is a signed, sender-attributed Page.
type PageEnvelope struct {
	Header        Page
	FromPublicKey crypto.PublicKey
	Signature     crypto.Signature
	Exponent      crypto.Exponent
}

// HeaderHash returns the hash of the envelope's header, the value the
// signature covers.
func (e *TransferEnvelope) HeaderHash() crypto.Hash {
	return hashHeader(&e.Header)
}

// HeaderHash returns the hash of the envelope's header.
func (e *PageEnvelope) HeaderHash() crypto.Hash {
	return hashHeader(&e.Header)
}

// Hash returns the content-addressed hash of the full envelope, used as
// the transaction's identity for history and pending-queue lookups.
func (e *TransferEnvelope) Hash() crypto.Hash {
	return hashEnvelope(&e.Header, e.FromPublicKey, e.Signature, e.Exponent)
}

// Hash returns the content-addressed hash of the full envelope.
func (e *PageEnvelope) Hash() crypto.Hash {
	return hashEnvelope(&e.Header, e.FromPublicKey, e.Signature, e.Exponent)
}

// SenderAddress returns the address of the signer.
func (e *TransferEnvelope) SenderAddress() crypto.Address {
	return crypto.AddressOf(e.FromPublicKey)
}

// SenderAddress returns the address of the signer.
func (e *PageEnvelope) SenderAddress() crypto.Address {
	return crypto.AddressOf(e.FromPublicKey)
}

// ByteLen returns the envelope's serialized size, used for fee-per-byte
// pending-queue ordering.
func (e *TransferEnvelope) ByteLen() int {
	return envelopeByteLen(&e.Header)
}

// ByteLen returns the envelope's serialized size.
func (e *PageEnvelope) ByteLen() int {
	return envelopeByteLen(&e.Header)
}

func hashHeader(h TxHeader) crypto.Hash {
	buf := &countingBuffer{}
	_ = h.serialize(buf)
	return crypto.HashData(buf.bytes())
}

func hashEnvelope(h TxHeader, pub crypto.PublicKey, sig crypto.Signature, exp crypto.Exponent) crypto.Hash {
	buf := &countingBuffer{}
	_ = h.serialize(buf)
	buf.write(pub[:])
	buf.write(sig[:])
	buf.write(exp[:])
	return crypto.HashData(buf.bytes())
}

func envelopeByteLen(h TxHeader) int {
	buf := &countingBuffer{}
	_ = h.serialize(buf)
	// public key + signature + exponent, fixed widths.
	return buf.n + crypto.PubKeyLen*2 + len(crypto.Exponent{})
}

// countingBuffer is a minimal io.Writer that accumulates bytes and
// counts them in n; used instead of bytes.Buffer.
type countingBuffer struct {
	b []byte
	n int
}

func (c *countingBuffer) Write(p []byte) (int, error) {
	c.b = append(c.b, p...)
	c.n += len(p)
	return len(p), nil
}

func (c *countingBuffer) write(p []byte) {
	_, _ = c.Write(p)
}

func (c *countingBuffer) bytes() []byte {
	return c.b
}

// SerializeTransferEnvelope writes e's wire form, shared by block
// serialization and the gossip network's Transfer packet.
func SerializeTransferEnvelope(w io.Writer, e *TransferEnvelope) error {
	if err := e.Header.serialize(w); err != nil {
		return err
	}
	return serializeEnvelopeTail(w, e.FromPublicKey, e.Signature, e.Exponent)
}

func DeserializeTransferEnvelope(r io.Reader) (*TransferEnvelope, error) {
	header, err := deserializeTransfer(r)
	if err != nil {
		return nil, err
	}
	pub, sig, exp, err := deserializeEnvelopeTail(r)
	if err != nil {
		return nil, err
	}
	return &TransferEnvelope{Header: *header, FromPublicKey: pub, Signature: sig, Exponent: exp}, nil
}

func SerializePageEnvelope(w io.Writer, e *PageEnvelope) error {
	if err := e.Header.serialize(w); err != nil {
		return err
	}
	return serializeEnvelopeTail(w, e.FromPublicKey, e.Signature, e.Exponent)
}

// DeserializePageEnvelope parses a PageEnvelope from its wire form.
func DeserializePageEnvelope(r io.Reader) (*PageEnvelope, error) {
	header, err := deserializePage(r)
	if err != nil {
		return nil, err
	}
	pub, sig, exp, err := deserializeEnvelopeTail(r)
	if err != nil {
		return nil, err
	}
	return &PageEnvelope{Header: *header, FromPublicKey: pub, Signature: sig, Exponent: exp}, nil
}

func serializeEnvelopeTail(w io.Writer, pub crypto.PublicKey, sig crypto.Signature, exp crypto.Exponent) error {
	if err := writeFixed(w, pub[:]); err != nil {
		return err
	}
	if err := writeFixed(w, sig[:]); err != nil {
		return err
	}
	return writeFixed(w, exp[:])
}

func deserializeEnvelopeTail(r io.Reader) (crypto.PublicKey, crypto.Signature, crypto.Exponent, error) {
	var pub crypto.PublicKey
	var sig crypto.Signature
	var exp crypto.Exponent

	pubBytes, err := readFixed(r, crypto.PubKeyLen)
	if err != nil {
		return pub, sig, exp, err
	}
	copy(pub[:], pubBytes)

	sigBytes, err := readFixed(r, crypto.PubKeyLen)
	if err != nil {
		return pub, sig, exp, err
	}
	copy(sig[:], sigBytes)

	expBytes, err := readFixed(r, len(exp))
	if err != nil {
		return pub, sig, exp, err
	}
	copy(exp[:], expBytes)

	return pub, sig, exp, nil
}
