package chain

import (
	"sort"
	"time"

	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
	"github.com/dagchain/pagechain/validator"
)

// MergeResult is the closed set of outcomes CanMergeBranch reports.
type MergeResult struct {
	Code   MergeCode
	Reason string
}

// MergeCode enumerates CanMergeBranch outcomes.
type MergeCode int

const (
	MergeOk MergeCode = iota
	MergeEmpty
	MergeAbove
	MergeShort
	MergeInvalid
)

func mergeOk() MergeResult      { return MergeResult{Code: MergeOk} }
func mergeEmpty() MergeResult   { return MergeResult{Code: MergeEmpty} }
func mergeAbove() MergeResult   { return MergeResult{Code: MergeAbove} }
func mergeShort() MergeResult   { return MergeResult{Code: MergeShort} }
func mergeInvalid(reason string) MergeResult {
	return MergeResult{Code: MergeInvalid, Reason: reason}
}

func (r MergeResult) IsOk() bool { return r.Code == MergeOk }

// Branch is a peer-sourced, not-yet-adopted sequence of blocks being
// assembled for possible chain replacement. It owns copies of the
// blocks until merged or discarded.
type Branch struct {
	blocks map[uint64]*domainmessage.Block
}

// newBranch returns an empty branch.
func newBranch() *Branch {
	return &Branch{blocks: make(map[uint64]*domainmessage.Block)}
}

// insert adds block to the branch at its block_id, overwriting any
// block previously held at that id (a peer re-sending a block is not
// an error — the newer copy simply replaces the older one).
func (b *Branch) insert(block *domainmessage.Block) {
	b.blocks[block.BlockID] = block
}

// bottom returns the lowest-block_id block currently held.
func (b *Branch) bottom() (*domainmessage.Block, bool) {
	if len(b.blocks) == 0 {
		return nil, false
	}
	min := uint64(1<<64 - 1)
	for id := range b.blocks {
		if id < min {
			min = id
		}
	}
	return b.blocks[min], true
}

// top returns the highest-block_id block currently held.
func (b *Branch) top() (*domainmessage.Block, bool) {
	if len(b.blocks) == 0 {
		return nil, false
	}
	var max uint64
	found := false
	for id := range b.blocks {
		if !found || id > max {
			max = id
			found = true
		}
	}
	return b.blocks[max], true
}

// connected reports whether the branch's bottom block links to an
// existing canonical block: either block_id == 0 with a zero prev_hash, or a canonical
// ancestor exists at bottom.block_id-1 whose hash matches bottom's
// prev_hash.
func (b *Branch) connected(c *Chain) bool {
	bottom, ok := b.bottom()
	if !ok {
		return false
	}
	if bottom.BlockID == 0 {
		return bottom.PrevHash.IsZero()
	}
	ancestor, ok := c.blockByIDLocked(bottom.BlockID - 1)
	if !ok {
		return false
	}
	ancestorHash, err := ancestor.Hash()
	if err != nil {
		return false
	}
	return ancestorHash == bottom.PrevHash
}

// nextRequestID returns the block_id the node should request next from
// the branch's peer to keep walking backward toward a connection
// point, along with whether the branch is already connected.
func (b *Branch) nextRequestID(c *Chain) (uint64, bool) {
	if b.connected(c) {
		return 0, true
	}
	bottom, ok := b.bottom()
	if !ok {
		return 0, false
	}
	if bottom.BlockID == 0 {
		// Unconnectable: block_id 0 with a non-zero prev_hash can never
		// link to the canonical chain.
		return 0, false
	}
	return bottom.BlockID - 1, false
}

// sequence returns the branch's blocks ordered ascending by block_id.
func (b *Branch) sequence() []*domainmessage.Block {
	out := make([]*domainmessage.Block, 0, len(b.blocks))
	for _, blk := range b.blocks {
		out = append(out, blk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockID < out[j].BlockID })
	return out
}

// branchTable tracks one Branch per peer, identified by the peer's
// address.
type branchTable struct {
	byPeer map[string]*Branch
}

func newBranchTable() *branchTable {
	return &branchTable{byPeer: make(map[string]*Branch)}
}

func (t *branchTable) get(peer string) *Branch {
	b, ok := t.byPeer[peer]
	if !ok {
		b = newBranch()
		t.byPeer[peer] = b
	}
	return b
}

func (t *branchTable) clear(peer string) {
	delete(t.byPeer, peer)
}

// ClearBranch discards any in-progress branch held for peer, called
// when the peer disconnects or its branch is no longer relevant.
func (c *Chain) ClearBranch(peer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.branches.clear(peer)
}

// FeedBranchBlock inserts a block rejected by AddBlock (Invalid or
// MoreNeeded) into peer's branch and reports which block_id to request
// next in order to keep walking backward toward a connection point.
func (c *Chain) FeedBranchBlock(peer string, block *domainmessage.Block) (requestID uint64, alreadyConnected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.branches.get(peer)
	b.insert(block)
	return b.nextRequestID(c)
}

// TryMergeBranch attempts to complete and adopt peer's branch. now is
// injected for testability.
func (c *Chain) TryMergeBranch(peer string, now time.Time) MergeResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.branches.byPeer[peer]
	if !ok {
		return mergeEmpty()
	}
	if !b.connected(c) {
		return mergeEmpty()
	}
	seq := b.sequence()
	res := c.canMergeBranchLocked(seq, now)
	if res.IsOk() {
		c.mergeBranchLocked(seq)
		c.branches.clear(peer)
	}
	return res
}

// CanMergeBranch reports whether seq is a mergeable replacement for the
// chain's current suffix.
func (c *Chain) CanMergeBranch(seq []*domainmessage.Block, now time.Time) MergeResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canMergeBranchLocked(seq, now)
}

func (c *Chain) canMergeBranchLocked(seq []*domainmessage.Block, now time.Time) MergeResult {
	if len(seq) == 0 {
		return mergeEmpty()
	}

	first := seq[0]
	last := seq[len(seq)-1]

	top, hasTop := c.topLocked()
	if hasTop && last.BlockID <= top.BlockID {
		return mergeShort()
	}

	connectionPoint := first.BlockID
	if connectionPoint > 0 {
		ancestor, ok := c.blockByIDLocked(connectionPoint - 1)
		if !ok {
			return mergeAbove()
		}
		ancestorHash, err := ancestor.Hash()
		if err != nil || ancestorHash != first.PrevHash {
			return mergeInvalid("branch does not connect to a canonical ancestor")
		}
	} else if !first.PrevHash.IsZero() {
		return mergeInvalid("branch genesis has non-zero prev_hash")
	}

	view := newBridgeView(c, connectionPoint)
	for i, blk := range seq {
		if blk.BlockID != connectionPoint+uint64(i) {
			return mergeInvalid("branch has a gap in block_id")
		}
		res := validator.ValidateBlock(blk, view, now)
		if !res.IsOk() {
			return mergeInvalid("branch block " + res.Code.String())
		}
		resBal, deltas := validator.ValidateTransactionsAndBalances(blk, view)
		if !resBal.IsOk() {
			return mergeInvalid("branch block balances: " + resBal.Code.String())
		}
		view.appendValidated(blk, deltas)
	}

	return mergeOk()
}

func (c *Chain) mergeBranchLocked(seq []*domainmessage.Block) {
	connectionPoint := seq[0].BlockID
	c.blocks = c.blocks[:connectionPoint]
	c.metadata = c.metadata[:connectionPoint]
	c.rebuildTxIndexLocked()

	for _, blk := range seq {
		view := newBridgeView(c, uint64(len(c.blocks)))
		_, deltas := validator.ValidateTransactionsAndBalances(blk, view)
		meta := newBlockMetadata(blk, deltas)
		c.blocks = append(c.blocks, blk)
		c.metadata = append(c.metadata, meta)
		c.indexBlockLocked(blk)
		c.pending.purgeIncluded(blk)
	}
}

// bridgeView implements validator.ChainView over the canonical chain
// below a splice point plus a branch sequence above it, so a branch
// candidate can be validated exactly as if it were already adopted —
// including a retarget sample window that bridges canonical blocks
// below the branch and branch blocks above.
type bridgeView struct {
	chain           *Chain
	connectionPoint uint64
	branchBlocks    []*domainmessage.Block
	branchDeltas    []map[crypto.Address]domainmessage.WalletStatus
}

func newBridgeView(c *Chain, connectionPoint uint64) *bridgeView {
	return &bridgeView{chain: c, connectionPoint: connectionPoint}
}

func (v *bridgeView) appendValidated(blk *domainmessage.Block, deltas map[crypto.Address]domainmessage.WalletStatus) {
	v.branchBlocks = append(v.branchBlocks, blk)
	v.branchDeltas = append(v.branchDeltas, deltas)
}

func (v *bridgeView) BlockByID(id uint64) (*domainmessage.Block, bool) {
	if id < v.connectionPoint {
		return v.chain.blockByIDLocked(id)
	}
	idx := id - v.connectionPoint
	if idx >= uint64(len(v.branchBlocks)) {
		return nil, false
	}
	return v.branchBlocks[idx], true
}

func (v *bridgeView) WalletStatus(addr crypto.Address) domainmessage.WalletStatus {
	for i := len(v.branchDeltas) - 1; i >= 0; i-- {
		if st, ok := v.branchDeltas[i][addr]; ok {
			return st
		}
	}
	if v.connectionPoint == 0 {
		return domainmessage.DefaultWalletStatus
	}
	return v.chain.walletStatusUpToLocked(addr, v.connectionPoint-1)
}

func (v *bridgeView) ExpectedTarget(blockID uint64) (domainmessage.CompactTarget, error) {
	return expectedTargetFor(v.BlockByID, blockID)
}
