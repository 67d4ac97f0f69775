// Package cmdchannel implements the command channel: a synchronous
// request/response bridge over its own TCP port for an external
// front end. Framed the same way as the gossip network's wire
// protocol — length-prefixed, a closed enum per message — rather than
// JSON-RPC.
package cmdchannel

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
)

type requestKind uint8

const (
	reqBalance requestKind = iota
	reqSend
	reqUpdatePage
	reqTransactionInfo
	reqTransactionHistory
	reqPageUpdates
	reqPageData
	reqBlocks
	reqTopBlock
	reqStatistics
	reqExit
)

// Request is the command channel's request enum.
type Request struct {
	kind requestKind

	addr crypto.Address // Balance, TransactionHistory, PageUpdates

	fromKeyDER []byte         // Send, UpdatePage: PKCS#8 DER-encoded private key
	to         crypto.Address // Send
	amount     domainmessage.Amount
	fee        domainmessage.Amount

	pageName string // UpdatePage (front-end namespacing hint, not stored on-chain)
	bytes    []byte // UpdatePage

	txHash crypto.Hash // TransactionInfo, PageData

	from, until uint64 // Blocks
}

// BalanceRequest asks for addr's current wallet status.
func BalanceRequest(addr crypto.Address) *Request {
	return &Request{kind: reqBalance, addr: addr}
}

// SendRequest submits a new transfer signed by the key in fromKeyDER.
func SendRequest(fromKeyDER []byte, to crypto.Address, amount, fee domainmessage.Amount) *Request {
	return &Request{kind: reqSend, fromKeyDER: fromKeyDER, to: to, amount: amount, fee: fee}
}

// UpdatePageRequest submits a new page transaction over bytes, signed by
// the key in fromKeyDER. name is a front-end namespacing hint: the chain
// engine indexes pages by sender address only, so it is accepted but
// not persisted on-chain.
func UpdatePageRequest(fromKeyDER []byte, name string, bytes []byte, fee domainmessage.Amount) *Request {
	return &Request{kind: reqUpdatePage, fromKeyDER: fromKeyDER, pageName: name, bytes: bytes, fee: fee}
}

// TransactionInfoRequest looks up a transaction by hash.
func TransactionInfoRequest(hash crypto.Hash) *Request {
	return &Request{kind: reqTransactionInfo, txHash: hash}
}

// TransactionHistoryRequest lists every transaction addr sent or received.
func TransactionHistoryRequest(addr crypto.Address) *Request {
	return &Request{kind: reqTransactionHistory, addr: addr}
}

// PageUpdatesRequest lists the block_ids at which addr's page was updated.
func PageUpdatesRequest(addr crypto.Address) *Request {
	return &Request{kind: reqPageUpdates, addr: addr}
}

// PageDataRequest retrieves the payload a page transaction committed to.
func PageDataRequest(txHash crypto.Hash) *Request {
	return &Request{kind: reqPageData, txHash: txHash}
}

// BlocksRequest lists canonical blocks in [from, until].
func BlocksRequest(from, until uint64) *Request {
	return &Request{kind: reqBlocks, from: from, until: until}
}

// TopBlockRequest asks for the canonical tip.
func TopBlockRequest() *Request { return &Request{kind: reqTopBlock} }

// StatisticsRequest asks for a node-health summary.
func StatisticsRequest() *Request { return &Request{kind: reqStatistics} }

// ExitRequest asks the serving process to exit. The server records the
// request and closes the requesting connection after replying; it does
// not close its listener or other connections, which are served until
// Stop.
func ExitRequest() *Request { return &Request{kind: reqExit} }

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

func writeInt64(w io.Writer, v int64) error { return writeUint64(w, uint64(v)) }

func readInt64(r io.Reader) (int64, error) {
	v, err := readUint64(r)
	return int64(v), err
}

func writeHashField(w io.Writer, h crypto.Hash) error {
	_, err := w.Write(h.Bytes())
	return err
}

func readHashField(r io.Reader) (crypto.Hash, error) {
	var raw [32]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return crypto.Hash{}, err
	}
	return crypto.HashFromBytes(raw[:])
}

const maxFieldLen = domainmessage.MaxBlockPayload

func (req *Request) serialize(w io.Writer) error {
	if _, err := w.Write([]byte{byte(req.kind)}); err != nil {
		return err
	}
	switch req.kind {
	case reqBalance, reqTransactionHistory, reqPageUpdates:
		return writeHashField(w, req.addr)
	case reqSend:
		if err := domainmessage.WriteVarBytes(w, req.fromKeyDER); err != nil {
			return err
		}
		if err := writeHashField(w, req.to); err != nil {
			return err
		}
		if err := writeInt64(w, int64(req.amount)); err != nil {
			return err
		}
		return writeInt64(w, int64(req.fee))
	case reqUpdatePage:
		if err := domainmessage.WriteVarBytes(w, req.fromKeyDER); err != nil {
			return err
		}
		if err := domainmessage.WriteVarBytes(w, []byte(req.pageName)); err != nil {
			return err
		}
		if err := domainmessage.WriteVarBytes(w, req.bytes); err != nil {
			return err
		}
		return writeInt64(w, int64(req.fee))
	case reqTransactionInfo, reqPageData:
		return writeHashField(w, req.txHash)
	case reqBlocks:
		if err := writeUint64(w, req.from); err != nil {
			return err
		}
		return writeUint64(w, req.until)
	case reqTopBlock, reqStatistics, reqExit:
		return nil
	default:
		return errors.Errorf("cmdchannel: unknown request kind %d", req.kind)
	}
}

func deserializeRequest(r io.Reader) (*Request, error) {
	var kindByte [1]byte
	if _, err := io.ReadFull(r, kindByte[:]); err != nil {
		return nil, err
	}
	req := &Request{kind: requestKind(kindByte[0])}
	var err error
	switch req.kind {
	case reqBalance, reqTransactionHistory, reqPageUpdates:
		req.addr, err = readHashField(r)
	case reqSend:
		if req.fromKeyDER, err = domainmessage.ReadVarBytes(r, maxFieldLen, "from_key"); err != nil {
			return nil, err
		}
		if req.to, err = readHashField(r); err != nil {
			return nil, err
		}
		amt, err2 := readInt64(r)
		if err2 != nil {
			return nil, err2
		}
		req.amount = domainmessage.Amount(amt)
		fee, err3 := readInt64(r)
		if err3 != nil {
			return nil, err3
		}
		req.fee = domainmessage.Amount(fee)
	case reqUpdatePage:
		if req.fromKeyDER, err = domainmessage.ReadVarBytes(r, maxFieldLen, "from_key"); err != nil {
			return nil, err
		}
		name, err2 := domainmessage.ReadVarBytes(r, maxFieldLen, "page name")
		if err2 != nil {
			return nil, err2
		}
		req.pageName = string(name)
		if req.bytes, err = domainmessage.ReadVarBytes(r, maxFieldLen, "page bytes"); err != nil {
			return nil, err
		}
		fee, err3 := readInt64(r)
		if err3 != nil {
			return nil, err3
		}
		req.fee = domainmessage.Amount(fee)
	case reqTransactionInfo, reqPageData:
		req.txHash, err = readHashField(r)
	case reqBlocks:
		if req.from, err = readUint64(r); err != nil {
			return nil, err
		}
		req.until, err = readUint64(r)
	case reqTopBlock, reqStatistics, reqExit:
	default:
		return nil, errors.Errorf("cmdchannel: unknown request kind %d", req.kind)
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading request body")
	}
	return req, nil
}
