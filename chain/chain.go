// Package chain implements the chain engine: ordered block storage, the
// wallet-status index, the pending-transaction queue, and per-peer
// branch tracking for fork resolution. It is the single serialization
// point for the node's canonical state: every exported method that
// touches state takes the chain-wide lock for its whole duration.
package chain

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
	"github.com/dagchain/pagechain/logger"
	"github.com/dagchain/pagechain/validator"
)

var errPrevBlockMissing = errors.New("chain: previous block not found")

// AppendCode enumerates the outcomes of appending a block to the chain.
type AppendCode int

const (
	AppendOk AppendCode = iota
	AppendDuplicate
	AppendMoreNeeded
	AppendInvalid
)

// AppendResult is the outcome of Chain.AddBlock.
type AppendResult struct {
	Code   AppendCode
	Reason validator.Result // populated when Code == AppendInvalid
}

func (r AppendResult) IsOk() bool { return r.Code == AppendOk }

// blockMetadata caches, per canonical block, the wallet-status deltas
// it caused and which addresses had a page updated. It is a pure
// function of the block and the chain state immediately below it, so
// it can always be rebuilt.
type blockMetadata struct {
	deltas       map[crypto.Address]domainmessage.WalletStatus
	pagesUpdated map[crypto.Address]bool
}

func newBlockMetadata(block *domainmessage.Block, deltas map[crypto.Address]domainmessage.WalletStatus) blockMetadata {
	pagesUpdated := make(map[crypto.Address]bool, len(block.Pages))
	for _, p := range block.Pages {
		pagesUpdated[p.SenderAddress()] = true
	}
	return blockMetadata{deltas: deltas, pagesUpdated: pagesUpdated}
}

// txLocation records where a transaction hash was found, for
// FindTransaction and TransactionHistory.
type txLocation struct {
	blockID uint64
	tx      domainmessage.Tx
}

// Chain is the chain engine. The zero value is not usable; construct
// with New.
type Chain struct {
	mu sync.Mutex

	blocks   []*domainmessage.Block
	metadata []blockMetadata

	// txIndex maps every transaction hash ever included in a canonical
	// block to its location, rebuilt wholesale on branch merges since a
	// merge can displace an arbitrary suffix of the chain.
	txIndex map[crypto.Hash]txLocation

	// bySenderHistory supports transaction_history(address) without a
	// linear scan of the whole chain on every call.
	bySenderHistory map[crypto.Address][]txLocation

	pending  *pendingQueue
	branches *branchTable

	store BlockStore
}

// New returns an empty chain backed by store. store may be nil, in
// which case blocks are held in memory only (used by tests).
func New(store BlockStore) *Chain {
	return &Chain{
		txIndex:         make(map[crypto.Hash]txLocation),
		bySenderHistory: make(map[crypto.Address][]txLocation),
		pending:         newPendingQueue(),
		branches:        newBranchTable(),
		store:           store,
	}
}

func (c *Chain) blockByIDLocked(id uint64) (*domainmessage.Block, bool) {
	if id >= uint64(len(c.blocks)) {
		return nil, false
	}
	return c.blocks[id], true
}

func (c *Chain) topLocked() (*domainmessage.Block, bool) {
	if len(c.blocks) == 0 {
		return nil, false
	}
	return c.blocks[len(c.blocks)-1], true
}

// BlockByID implements validator.ChainView.
func (c *Chain) BlockByID(id uint64) (*domainmessage.Block, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockByIDLocked(id)
}

// Block returns the canonical block at id, if any.
func (c *Chain) Block(id uint64) (*domainmessage.Block, bool) {
	return c.BlockByID(id)
}

// Top returns the canonical tip, if the chain is non-empty.
func (c *Chain) Top() (*domainmessage.Block, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topLocked()
}

// ExpectedTarget implements validator.ChainView, returning the
// proof-of-work target blockID must satisfy under the retarget
// schedule.
func (c *Chain) ExpectedTarget(blockID uint64) (domainmessage.CompactTarget, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return expectedTargetFor(c.blockByIDLocked, blockID)
}

func (c *Chain) walletStatusUpToLocked(addr crypto.Address, maxBlockID uint64) domainmessage.WalletStatus {
	limit := maxBlockID + 1
	if limit > uint64(len(c.metadata)) {
		limit = uint64(len(c.metadata))
	}
	for i := int64(limit) - 1; i >= 0; i-- {
		if st, ok := c.metadata[i].deltas[addr]; ok {
			return st
		}
	}
	return domainmessage.DefaultWalletStatus
}

// WalletStatus implements validator.ChainView: it scans from the tip
// downward and returns the first block whose cached delta map contains
// addr, or the zero-balance default if addr has never appeared.
func (c *Chain) WalletStatus(addr crypto.Address) domainmessage.WalletStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.metadata) == 0 {
		return domainmessage.DefaultWalletStatus
	}
	return c.walletStatusUpToLocked(addr, uint64(len(c.metadata)-1))
}

// TransactionHistory returns every transaction addr has sent or
// received, oldest first, alongside the block it was confirmed in.
func (c *Chain) TransactionHistory(addr crypto.Address) []TxWithBlock {
	c.mu.Lock()
	defer c.mu.Unlock()
	locs := c.bySenderHistory[addr]
	out := make([]TxWithBlock, 0, len(locs))
	for _, loc := range locs {
		blk, _ := c.blockByIDLocked(loc.blockID)
		out = append(out, TxWithBlock{Tx: loc.tx, Block: blk})
	}
	return out
}

// TxWithBlock pairs a transaction with the block that confirmed it.
type TxWithBlock struct {
	Tx    domainmessage.Tx
	Block *domainmessage.Block
}

// FindTransaction locates a transaction by hash among canonical blocks.
func (c *Chain) FindTransaction(hash crypto.Hash) (domainmessage.Tx, *domainmessage.Block, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	loc, ok := c.txIndex[hash]
	if !ok {
		return nil, nil, false
	}
	blk, _ := c.blockByIDLocked(loc.blockID)
	return loc.tx, blk, true
}

// PushTransfer validates and enqueues a transfer.
func (c *Chain) PushTransfer(tx *domainmessage.TransferEnvelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if res := validator.ValidateTransferEnvelope(tx); !res.IsOk() {
		return false
	}
	status := domainmessage.DefaultWalletStatus
	if len(c.metadata) > 0 {
		status = c.walletStatusUpToLocked(tx.SenderAddress(), uint64(len(c.metadata)-1))
	}
	if tx.Header.ID <= status.MaxID {
		return false
	}
	return c.pending.push(tx)
}

// PushPage validates and enqueues a page transaction.
func (c *Chain) PushPage(tx *domainmessage.PageEnvelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if res := validator.ValidatePageEnvelope(tx); !res.IsOk() {
		return false
	}
	status := domainmessage.DefaultWalletStatus
	if len(c.metadata) > 0 {
		status = c.walletStatusUpToLocked(tx.SenderAddress(), uint64(len(c.metadata)-1))
	}
	if tx.Header.ID <= status.MaxID {
		return false
	}
	return c.pending.push(tx)
}

// PageUpdates returns the block_ids, oldest first, at which addr's
// page was updated. Backs the PageUpdates command.
func (c *Chain) PageUpdates(addr crypto.Address) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []uint64
	for i, m := range c.metadata {
		if m.pagesUpdated[addr] {
			ids = append(ids, uint64(i))
		}
	}
	return ids
}

// NextPending returns up to k queued transactions, highest
// fee-per-byte first.
func (c *Chain) NextPending(k int) []domainmessage.Tx {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.next(k)
}

// PendingCount returns the number of transactions currently queued,
// backing the Statistics command's mempool-size field.
func (c *Chain) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.len()
}

// BlocksRange returns the canonical blocks with block_id in [from,
// until], backing the Blocks command.
func (c *Chain) BlocksRange(from, until uint64) []*domainmessage.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	if until >= uint64(len(c.blocks)) {
		if len(c.blocks) == 0 {
			return nil
		}
		until = uint64(len(c.blocks)) - 1
	}
	if from > until {
		return nil
	}
	out := make([]*domainmessage.Block, 0, until-from+1)
	for id := from; id <= until; id++ {
		out = append(out, c.blocks[id])
	}
	return out
}

// ReplayFromStore rebuilds in-memory state from blocks a prior run
// persisted, reading sequentially from block_id 0 until the store
// reports none left. A block file that cannot be loaded is logged and
// treated as absent: replay stops there and later blocks are left for
// peers to resync. Callers run this once at startup, before the chain
// begins accepting new blocks from peers or the miner.
func (c *Chain) ReplayFromStore(now time.Time) error {
	c.mu.Lock()
	store := c.store
	c.store = nil
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.store = store
		c.mu.Unlock()
	}()

	if store == nil {
		return nil
	}
	for id := uint64(0); ; id++ {
		block, err := store.Load(id)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			if log, ok := logger.Get(logger.SubsystemTags.CHAN); ok {
				log.Errorf("loading persisted block %d, treating it as absent: %v", id, err)
			}
			return nil
		}
		res := c.AddBlock(block, now)
		if !res.IsOk() {
			return errors.Errorf("replaying persisted block %d: code %d", id, res.Code)
		}
	}
}

// AddBlock attempts to append block to the canonical chain.
func (c *Chain) AddBlock(block *domainmessage.Block, now time.Time) AppendResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	top, hasTop := c.topLocked()
	var topID uint64
	if hasTop {
		topID = top.BlockID
	} else if block.BlockID != 0 {
		return AppendResult{Code: AppendMoreNeeded}
	}

	if hasTop {
		switch {
		case block.BlockID < topID+1:
			existing, _ := c.blockByIDLocked(block.BlockID)
			existingHash, err := existing.Hash()
			blockHash, err2 := block.Hash()
			if err == nil && err2 == nil && existingHash == blockHash {
				return AppendResult{Code: AppendDuplicate}
			}
			return AppendResult{Code: AppendInvalid, Reason: validator.NotNextBlock()}
		case block.BlockID > topID+1:
			return AppendResult{Code: AppendMoreNeeded}
		}
	} else if block.BlockID > 0 {
		return AppendResult{Code: AppendMoreNeeded}
	}

	res := validator.ValidateBlock(block, c, now)
	if !res.IsOk() {
		if res.Code == validator.ResultBalance {
			c.pending.purge(res.Addr)
		}
		return AppendResult{Code: AppendInvalid, Reason: res}
	}

	_, deltas := validator.ValidateTransactionsAndBalances(block, c)
	c.appendCanonicalLocked(block, deltas)
	return AppendResult{Code: AppendOk}
}

func (c *Chain) appendCanonicalLocked(block *domainmessage.Block, deltas map[crypto.Address]domainmessage.WalletStatus) {
	c.blocks = append(c.blocks, block)
	c.metadata = append(c.metadata, newBlockMetadata(block, deltas))
	c.indexBlockLocked(block)
	c.pending.purgeIncluded(block)
	if c.store != nil {
		if err := c.store.Append(block); err != nil {
			if log, ok := logger.Get(logger.SubsystemTags.STOR); ok {
				log.Errorf("persisting block %d: %v", block.BlockID, err)
			}
		}
	}
}

func (c *Chain) indexBlockLocked(block *domainmessage.Block) {
	for _, t := range block.Transfers {
		h := t.Hash()
		c.txIndex[h] = txLocation{blockID: block.BlockID, tx: t}
		c.bySenderHistory[t.SenderAddress()] = append(c.bySenderHistory[t.SenderAddress()], c.txIndex[h])
		c.bySenderHistory[t.Header.To] = append(c.bySenderHistory[t.Header.To], c.txIndex[h])
	}
	for _, p := range block.Pages {
		h := p.Hash()
		c.txIndex[h] = txLocation{blockID: block.BlockID, tx: p}
		c.bySenderHistory[p.SenderAddress()] = append(c.bySenderHistory[p.SenderAddress()], c.txIndex[h])
	}
}

func (c *Chain) rebuildTxIndexLocked() {
	c.txIndex = make(map[crypto.Hash]txLocation)
	c.bySenderHistory = make(map[crypto.Address][]txLocation)
	for _, blk := range c.blocks {
		c.indexBlockLocked(blk)
	}
}
