package cmdchannel

import (
	"io"

	"github.com/pkg/errors"

	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
)

type responseKind uint8

const (
	respBalance responseKind = iota
	respSent
	respPageUpdated
	respTransactionInfo
	respTransactionHistory
	respPageUpdates
	respPageData
	respBlocks
	respTopBlock
	respStatistics
	respExiting
	respFailed
)

// Response is the command channel's reply enum.
type Response struct {
	kind responseKind

	status domainmessage.WalletStatus // Balance

	txHash crypto.Hash // Sent, PageUpdated

	found   bool
	txLoc   TxLocation   // TransactionInfo, when found
	history []TxLocation // TransactionHistory

	blockIDs []uint64 // PageUpdates

	pageData []byte // PageData

	blocks []*domainmessage.Block // Blocks

	top *domainmessage.Block // TopBlock, may be nil

	stats Statistics // Statistics

	reason string // Failed
}

// TxLocation pairs a transaction with the block that confirmed it, the
// command channel's view of chain.TxWithBlock.
type TxLocation struct {
	Tx      domainmessage.Tx
	BlockID uint64
}

func writeTxLocation(w io.Writer, loc TxLocation) error {
	var isTransfer bool
	switch t := loc.Tx.(type) {
	case *domainmessage.TransferEnvelope:
		isTransfer = true
		if err := writeBool(w, isTransfer); err != nil {
			return err
		}
		if err := writeUint64(w, loc.BlockID); err != nil {
			return err
		}
		return domainmessage.SerializeTransferEnvelope(w, t)
	case *domainmessage.PageEnvelope:
		if err := writeBool(w, isTransfer); err != nil {
			return err
		}
		if err := writeUint64(w, loc.BlockID); err != nil {
			return err
		}
		return domainmessage.SerializePageEnvelope(w, t)
	default:
		return errors.Errorf("cmdchannel: unknown transaction kind %T", loc.Tx)
	}
}

func readTxLocation(r io.Reader) (TxLocation, error) {
	isTransfer, err := readBool(r)
	if err != nil {
		return TxLocation{}, err
	}
	blockID, err := readUint64(r)
	if err != nil {
		return TxLocation{}, err
	}
	var tx domainmessage.Tx
	if isTransfer {
		tx, err = domainmessage.DeserializeTransferEnvelope(r)
	} else {
		tx, err = domainmessage.DeserializePageEnvelope(r)
	}
	if err != nil {
		return TxLocation{}, err
	}
	return TxLocation{Tx: tx, BlockID: blockID}, nil
}

// Statistics is the node-health summary the Statistics command reports,
// folding chain height, peer count, mempool size and current target
// into one reply.
type Statistics struct {
	ChainHeight   uint64
	PeerCount     uint32
	MempoolSize   uint32
	CurrentTarget domainmessage.CompactTarget
}

// BalanceResponse reports addr's wallet status.
func BalanceResponse(status domainmessage.WalletStatus) *Response {
	return &Response{kind: respBalance, status: status}
}

// SentResponse reports a transfer's assigned hash.
func SentResponse(hash crypto.Hash) *Response {
	return &Response{kind: respSent, txHash: hash}
}

// PageUpdatedResponse reports a page transaction's assigned hash.
func PageUpdatedResponse(hash crypto.Hash) *Response {
	return &Response{kind: respPageUpdated, txHash: hash}
}

// NotFoundTransactionInfoResponse reports that no transaction matched.
func NotFoundTransactionInfoResponse() *Response {
	return &Response{kind: respTransactionInfo, found: false}
}

// TransactionInfoResponse reports a located transaction.
func TransactionInfoResponse(loc TxLocation) *Response {
	return &Response{kind: respTransactionInfo, found: true, txLoc: loc}
}

// TransactionHistoryResponse reports every transaction an address sent
// or received, oldest first.
func TransactionHistoryResponse(history []TxLocation) *Response {
	return &Response{kind: respTransactionHistory, history: history}
}

// TopBlockResponse reports the canonical tip, or nil if the chain is empty.
func TopBlockResponse(top *domainmessage.Block) *Response {
	return &Response{kind: respTopBlock, top: top}
}

// BlocksResponse reports a contiguous run of canonical blocks.
func BlocksResponse(blocks []*domainmessage.Block) *Response {
	return &Response{kind: respBlocks, blocks: blocks}
}

// StatisticsResponse reports a node-health summary.
func StatisticsResponse(s Statistics) *Response {
	return &Response{kind: respStatistics, stats: s}
}

// PageUpdatesResponse reports the block_ids at which an address's page
// was updated.
func PageUpdatesResponse(ids []uint64) *Response {
	return &Response{kind: respPageUpdates, blockIDs: ids}
}

// PageDataResponse reports a stored page payload, or found=false if it
// isn't held locally.
func PageDataResponse(data []byte, found bool) *Response {
	return &Response{kind: respPageData, pageData: data, found: found}
}

// ExitingResponse acknowledges an Exit request.
func ExitingResponse() *Response { return &Response{kind: respExiting} }

// FailedResponse reports a general error.
func FailedResponse(reason string) *Response {
	return &Response{kind: respFailed, reason: reason}
}

func (resp *Response) serialize(w io.Writer) error {
	if _, err := w.Write([]byte{byte(resp.kind)}); err != nil {
		return err
	}
	switch resp.kind {
	case respBalance:
		if err := writeInt64(w, int64(resp.status.Balance)); err != nil {
			return err
		}
		return writeUint64(w, uint64(resp.status.MaxID))
	case respSent, respPageUpdated:
		return writeHashField(w, resp.txHash)
	case respTransactionInfo:
		if err := writeBool(w, resp.found); err != nil {
			return err
		}
		if resp.found {
			return writeTxLocation(w, resp.txLoc)
		}
		return nil
	case respTransactionHistory:
		if err := domainmessage.WriteVarInt(w, uint64(len(resp.history))); err != nil {
			return err
		}
		for _, loc := range resp.history {
			if err := writeTxLocation(w, loc); err != nil {
				return err
			}
		}
		return nil
	case respPageUpdates:
		return writeUint64Slice(w, resp.blockIDs)
	case respPageData:
		if err := writeBool(w, resp.found); err != nil {
			return err
		}
		return domainmessage.WriteVarBytes(w, resp.pageData)
	case respBlocks:
		if err := domainmessage.WriteVarInt(w, uint64(len(resp.blocks))); err != nil {
			return err
		}
		for _, b := range resp.blocks {
			if err := b.Serialize(w); err != nil {
				return err
			}
		}
		return nil
	case respTopBlock:
		has := resp.top != nil
		if err := writeBool(w, has); err != nil {
			return err
		}
		if has {
			return resp.top.Serialize(w)
		}
		return nil
	case respStatistics:
		if err := writeUint64(w, resp.stats.ChainHeight); err != nil {
			return err
		}
		if err := writeUint16(w, uint16(resp.stats.PeerCount)); err != nil {
			return err
		}
		if err := writeUint16(w, uint16(resp.stats.MempoolSize)); err != nil {
			return err
		}
		_, err := w.Write(resp.stats.CurrentTarget[:])
		return err
	case respExiting:
		return nil
	case respFailed:
		return domainmessage.WriteVarBytes(w, []byte(resp.reason))
	default:
		return errors.Errorf("cmdchannel: unknown response kind %d", resp.kind)
	}
}

func deserializeResponse(r io.Reader) (*Response, error) {
	var kindByte [1]byte
	if _, err := io.ReadFull(r, kindByte[:]); err != nil {
		return nil, err
	}
	resp := &Response{kind: responseKind(kindByte[0])}
	var err error
	switch resp.kind {
	case respBalance:
		bal, err2 := readInt64(r)
		if err2 != nil {
			return nil, err2
		}
		resp.status.Balance = domainmessage.Amount(bal)
		maxID, err3 := readUint64(r)
		if err3 != nil {
			return nil, err3
		}
		resp.status.MaxID = uint32(maxID)
	case respSent, respPageUpdated:
		resp.txHash, err = readHashField(r)
	case respTransactionInfo:
		if resp.found, err = readBool(r); err != nil {
			return nil, err
		}
		if resp.found {
			resp.txLoc, err = readTxLocation(r)
		}
	case respTransactionHistory:
		count, err2 := domainmessage.ReadVarInt(r)
		if err2 != nil {
			return nil, err2
		}
		resp.history = make([]TxLocation, count)
		for i := range resp.history {
			if resp.history[i], err = readTxLocation(r); err != nil {
				return nil, err
			}
		}
	case respPageUpdates:
		resp.blockIDs, err = readUint64Slice(r)
	case respPageData:
		if resp.found, err = readBool(r); err != nil {
			return nil, err
		}
		resp.pageData, err = domainmessage.ReadVarBytes(r, maxFieldLen, "page data")
	case respBlocks:
		count, err2 := domainmessage.ReadVarInt(r)
		if err2 != nil {
			return nil, err2
		}
		resp.blocks = make([]*domainmessage.Block, count)
		for i := range resp.blocks {
			if resp.blocks[i], err = domainmessage.DeserializeBlock(r); err != nil {
				return nil, err
			}
		}
	case respTopBlock:
		has, err2 := readBool(r)
		if err2 != nil {
			return nil, err2
		}
		if has {
			resp.top, err = domainmessage.DeserializeBlock(r)
		}
	case respStatistics:
		if resp.stats.ChainHeight, err = readUint64(r); err != nil {
			return nil, err
		}
		peers, err2 := readUint16(r)
		if err2 != nil {
			return nil, err2
		}
		resp.stats.PeerCount = uint32(peers)
		mempool, err3 := readUint16(r)
		if err3 != nil {
			return nil, err3
		}
		resp.stats.MempoolSize = uint32(mempool)
		var target domainmessage.CompactTarget
		if _, err = io.ReadFull(r, target[:]); err != nil {
			return nil, err
		}
		resp.stats.CurrentTarget = target
	case respExiting:
	case respFailed:
		reason, err2 := domainmessage.ReadVarBytes(r, maxFieldLen, "failure reason")
		if err2 != nil {
			return nil, err2
		}
		resp.reason = string(reason)
	default:
		return nil, errors.Errorf("cmdchannel: unknown response kind %d", resp.kind)
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}
	return resp, nil
}

func writeBool(w io.Writer, b bool) error {
	v := byte(0)
	if b {
		v = 1
	}
	_, err := w.Write([]byte{v})
	return err
}

func readBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func writeUint64Slice(w io.Writer, vs []uint64) error {
	if err := domainmessage.WriteVarInt(w, uint64(len(vs))); err != nil {
		return err
	}
	for _, v := range vs {
		if err := writeUint64(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readUint64Slice(r io.Reader) ([]uint64, error) {
	count, err := domainmessage.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, count)
	for i := range out {
		if out[i], err = readUint64(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}
