package domainmessage

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/dagchain/pagechain/crypto"
)

// Block is the node's unit of consensus.
type Block struct {
	PrevHash    crypto.Hash
	BlockID     uint64
	RewardTo    crypto.Address
	Transfers   []*TransferEnvelope
	Pages       []*PageEnvelope
	Timestamp   uint64 // milliseconds since epoch, low 64 bits
	TimestampHi uint64 // high bits, together forming a 128-bit timestamp
	Target      CompactTarget
	PoW         uint64
}

// maxTxPerBlock bounds the per-kind transaction count to keep a
// malformed block's declared counts from driving absurd allocations
// before the MaxBlockPayload check can run.
const maxTxPerBlock = 1 << 20

// TimestampMillis returns the block timestamp as the low 64 bits of its
// 128-bit millisecond timestamp; blocks this node produces never need
// the high word, but it round-trips for a peer block that does.
func (b *Block) TimestampMillis() uint64 {
	return b.Timestamp
}

// Hash returns the content-addressed hash of the block, computed over
// its full serialized form; the PoW field participates directly, since
// the hash is itself the proof-of-work target check.
func (b *Block) Hash() (crypto.Hash, error) {
	buf := &countingBuffer{}
	if err := b.serialize(buf); err != nil {
		return crypto.Hash{}, err
	}
	return crypto.HashData(buf.bytes()), nil
}

// Serialize writes the block's binary encoding to w, enforcing the
// MaxBlockPayload ceiling.
func (b *Block) Serialize(w io.Writer) error {
	buf := &countingBuffer{}
	if err := b.serialize(buf); err != nil {
		return err
	}
	if err := ensurePayloadLimit(buf.n); err != nil {
		return err
	}
	_, err := w.Write(buf.bytes())
	return err
}

// Bytes returns the block's serialized binary form.
func (b *Block) Bytes() ([]byte, error) {
	buf := &countingBuffer{}
	if err := b.Serialize(buf); err != nil {
		return nil, err
	}
	return buf.bytes(), nil
}

func (b *Block) serialize(w io.Writer) error {
	if err := writeHash(w, b.PrevHash); err != nil {
		return err
	}
	if err := writeUint64(w, b.BlockID); err != nil {
		return err
	}
	if err := writeHash(w, b.RewardTo); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(b.Transfers))); err != nil {
		return err
	}
	for _, t := range b.Transfers {
		if err := SerializeTransferEnvelope(w, t); err != nil {
			return err
		}
	}

	if err := WriteVarInt(w, uint64(len(b.Pages))); err != nil {
		return err
	}
	for _, p := range b.Pages {
		if err := SerializePageEnvelope(w, p); err != nil {
			return err
		}
	}

	if err := writeUint128(w, [2]uint64{b.Timestamp, b.TimestampHi}); err != nil {
		return err
	}
	if err := writeCompactTarget(w, b.Target); err != nil {
		return err
	}
	return writeUint64(w, b.PoW)
}

// DeserializeBlock parses a block from its binary encoding, rejecting
// anything that would exceed MaxBlockPayload before it is fully read.
func DeserializeBlock(r io.Reader) (*Block, error) {
	r = io.LimitReader(r, MaxBlockPayload)
	b := &Block{}
	var err error

	if b.PrevHash, err = readHash(r); err != nil {
		return nil, errors.Wrap(err, "reading prev hash")
	}
	if b.BlockID, err = readUint64(r); err != nil {
		return nil, errors.Wrap(err, "reading block id")
	}
	if b.RewardTo, err = readHash(r); err != nil {
		return nil, errors.Wrap(err, "reading reward address")
	}

	transferCount, err := ReadVarInt(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading transfer count")
	}
	if transferCount > maxTxPerBlock {
		return nil, errors.Errorf("transfer count %d exceeds maximum %d", transferCount, maxTxPerBlock)
	}
	if transferCount > 0 {
		b.Transfers = make([]*TransferEnvelope, transferCount)
	}
	for i := range b.Transfers {
		if b.Transfers[i], err = DeserializeTransferEnvelope(r); err != nil {
			return nil, errors.Wrapf(err, "reading transfer %d", i)
		}
	}

	pageCount, err := ReadVarInt(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading page count")
	}
	if pageCount > maxTxPerBlock {
		return nil, errors.Errorf("page count %d exceeds maximum %d", pageCount, maxTxPerBlock)
	}
	if pageCount > 0 {
		b.Pages = make([]*PageEnvelope, pageCount)
	}
	for i := range b.Pages {
		if b.Pages[i], err = DeserializePageEnvelope(r); err != nil {
			return nil, errors.Wrapf(err, "reading page %d", i)
		}
	}

	ts, err := readUint128(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading timestamp")
	}
	b.Timestamp, b.TimestampHi = ts[0], ts[1]

	if b.Target, err = readCompactTarget(r); err != nil {
		return nil, err
	}
	if b.PoW, err = readUint64(r); err != nil {
		return nil, errors.Wrap(err, "reading pow nonce")
	}

	return b, nil
}

// DeserializeBlockBytes is a convenience wrapper around DeserializeBlock
// for callers holding the block already in memory (e.g. from disk).
func DeserializeBlockBytes(data []byte) (*Block, error) {
	return DeserializeBlock(bytes.NewReader(data))
}
