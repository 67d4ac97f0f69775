// Package network implements the gossip network: peer discovery,
// persistent TCP connections, the typed envelope/packet protocol, and
// per-peer branch assembly feeding the chain engine. Each peer runs one
// reader goroutine and one writer goroutine over a small, hand-rolled
// envelope enum rather than a generic RPC framework.
package network

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
	"github.com/dagchain/pagechain/store"
)

// envelopeKind tags the top-level wire enum.
type envelopeKind uint8

const (
	envelopeOnConnected envelopeKind = iota
	envelopeKnownNode
	envelopePacket
)

// packetKind tags the Packet sub-enum.
type packetKind uint8

const (
	packetOnConnected packetKind = iota
	packetBlock
	packetBlockRequest
	packetTransfer
	packetPage
	packetPing
)

// Envelope is the wire-level frame payload: exactly one of its
// OnConnected/KnownNode/Packet fields is meaningful, selected by Kind.
type Envelope struct {
	kind envelopeKind

	// OnConnected handshake payload.
	port uint16

	// KnownNode payload.
	knownNode string

	// Packet payload.
	packet *Packet
}

// Packet is the post-handshake message enum.
type Packet struct {
	kind packetKind

	block        *domainmessage.Block
	pagePayloads map[crypto.Hash]store.DataUnit

	blockRequestID uint64

	transfer *domainmessage.TransferEnvelope

	page        *domainmessage.PageEnvelope
	pagePayload store.DataUnit
}

// OnConnectedEnvelope builds the handshake envelope a node sends
// immediately on accept and on connect.
func OnConnectedEnvelope(listenPort uint16) *Envelope {
	return &Envelope{kind: envelopeOnConnected, port: listenPort}
}

// KnownNodeEnvelope announces a known peer address.
func KnownNodeEnvelope(address string) *Envelope {
	return &Envelope{kind: envelopeKnownNode, knownNode: address}
}

// PacketEnvelope wraps a Packet in the top-level envelope.
func PacketEnvelope(p *Packet) *Envelope {
	return &Envelope{kind: envelopePacket, packet: p}
}

// PostHandshakePacket is the OnConnected packet, sent once immediately
// after the handshake completes.
func PostHandshakePacket() *Packet { return &Packet{kind: packetOnConnected} }

// BlockPacket carries a block plus the page payloads its transactions
// declare.
func BlockPacket(block *domainmessage.Block, payloads map[crypto.Hash]store.DataUnit) *Packet {
	return &Packet{kind: packetBlock, block: block, pagePayloads: payloads}
}

// BlockRequestPacket asks a peer for the block at id.
func BlockRequestPacket(id uint64) *Packet {
	return &Packet{kind: packetBlockRequest, blockRequestID: id}
}

// TransferPacket relays a pending transfer.
func TransferPacket(tx *domainmessage.TransferEnvelope) *Packet {
	return &Packet{kind: packetTransfer, transfer: tx}
}

// PagePacket relays a pending page transaction plus its payload.
func PagePacket(tx *domainmessage.PageEnvelope, payload store.DataUnit) *Packet {
	return &Packet{kind: packetPage, page: tx, pagePayload: payload}
}

// PingPacket is the discovery loop's liveness probe.
func PingPacket() *Packet { return &Packet{kind: packetPing} }

func writeUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func writeString(w io.Writer, s string) error {
	return domainmessage.WriteVarBytes(w, []byte(s))
}

func readString(r io.Reader, maxLen uint64) (string, error) {
	b, err := domainmessage.ReadVarBytes(r, maxLen, "string")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

const maxKnownNodeAddrLen = 256

// serialize writes e's wire form to w. The length prefix itself is
// added by the frame writer, not here.
func (e *Envelope) serialize(w io.Writer) error {
	if _, err := w.Write([]byte{byte(e.kind)}); err != nil {
		return err
	}
	switch e.kind {
	case envelopeOnConnected:
		return writeUint16(w, e.port)
	case envelopeKnownNode:
		return writeString(w, e.knownNode)
	case envelopePacket:
		return e.packet.serialize(w)
	default:
		return errors.Errorf("network: unknown envelope kind %d", e.kind)
	}
}

func deserializeEnvelope(r io.Reader) (*Envelope, error) {
	var kindByte [1]byte
	if _, err := io.ReadFull(r, kindByte[:]); err != nil {
		return nil, err
	}
	e := &Envelope{kind: envelopeKind(kindByte[0])}
	switch e.kind {
	case envelopeOnConnected:
		port, err := readUint16(r)
		if err != nil {
			return nil, errors.Wrap(err, "reading OnConnected port")
		}
		e.port = port
	case envelopeKnownNode:
		addr, err := readString(r, maxKnownNodeAddrLen)
		if err != nil {
			return nil, errors.Wrap(err, "reading KnownNode address")
		}
		e.knownNode = addr
	case envelopePacket:
		p, err := deserializePacket(r)
		if err != nil {
			return nil, err
		}
		e.packet = p
	default:
		return nil, errors.Errorf("network: unknown envelope kind %d", e.kind)
	}
	return e, nil
}

func (p *Packet) serialize(w io.Writer) error {
	if _, err := w.Write([]byte{byte(p.kind)}); err != nil {
		return err
	}
	switch p.kind {
	case packetOnConnected, packetPing:
		return nil
	case packetBlock:
		if err := p.block.Serialize(w); err != nil {
			return err
		}
		return writePagePayloads(w, p.pagePayloads)
	case packetBlockRequest:
		return writeUint64(w, p.blockRequestID)
	case packetTransfer:
		return domainmessage.SerializeTransferEnvelope(w, p.transfer)
	case packetPage:
		if err := domainmessage.SerializePageEnvelope(w, p.page); err != nil {
			return err
		}
		return domainmessage.WriteVarBytes(w, p.pagePayload)
	default:
		return errors.Errorf("network: unknown packet kind %d", p.kind)
	}
}

func deserializePacket(r io.Reader) (*Packet, error) {
	var kindByte [1]byte
	if _, err := io.ReadFull(r, kindByte[:]); err != nil {
		return nil, err
	}
	p := &Packet{kind: packetKind(kindByte[0])}
	switch p.kind {
	case packetOnConnected, packetPing:
		return p, nil
	case packetBlock:
		block, err := domainmessage.DeserializeBlock(r)
		if err != nil {
			return nil, errors.Wrap(err, "reading block packet")
		}
		payloads, err := readPagePayloads(r)
		if err != nil {
			return nil, err
		}
		p.block, p.pagePayloads = block, payloads
	case packetBlockRequest:
		id, err := readUint64(r)
		if err != nil {
			return nil, errors.Wrap(err, "reading block request id")
		}
		p.blockRequestID = id
	case packetTransfer:
		tx, err := domainmessage.DeserializeTransferEnvelope(r)
		if err != nil {
			return nil, errors.Wrap(err, "reading transfer packet")
		}
		p.transfer = tx
	case packetPage:
		tx, err := domainmessage.DeserializePageEnvelope(r)
		if err != nil {
			return nil, errors.Wrap(err, "reading page packet")
		}
		payload, err := domainmessage.ReadVarBytes(r, uint64(domainmessage.MaxBlockPayload), "page payload")
		if err != nil {
			return nil, errors.Wrap(err, "reading page payload")
		}
		p.page, p.pagePayload = tx, payload
	default:
		return nil, errors.Errorf("network: unknown packet kind %d", p.kind)
	}
	return p, nil
}

const maxPagePayloadsPerBlock = 1 << 20

func writePagePayloads(w io.Writer, payloads map[crypto.Hash]store.DataUnit) error {
	if err := domainmessage.WriteVarInt(w, uint64(len(payloads))); err != nil {
		return err
	}
	for hash, data := range payloads {
		if _, err := w.Write(hash.Bytes()); err != nil {
			return err
		}
		if err := domainmessage.WriteVarBytes(w, data); err != nil {
			return err
		}
	}
	return nil
}

func readPagePayloads(r io.Reader) (map[crypto.Hash]store.DataUnit, error) {
	count, err := domainmessage.ReadVarInt(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading page payload count")
	}
	if count > maxPagePayloadsPerBlock {
		return nil, errors.Errorf("network: page payload count %d exceeds limit", count)
	}
	out := make(map[crypto.Hash]store.DataUnit, count)
	for i := uint64(0); i < count; i++ {
		var raw [32]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return nil, errors.Wrap(err, "reading page payload hash")
		}
		hash, err := crypto.HashFromBytes(raw[:])
		if err != nil {
			return nil, err
		}
		data, err := domainmessage.ReadVarBytes(r, uint64(domainmessage.MaxBlockPayload), "page payload")
		if err != nil {
			return nil, errors.Wrap(err, "reading page payload data")
		}
		out[hash] = data
	}
	return out, nil
}
