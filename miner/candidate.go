// Package miner implements proof-of-work block production: assembling
// a candidate block from the pending-transaction queue and searching
// the nonce space until its hash clears the current target.
package miner

import (
	"time"

	"github.com/dagchain/pagechain/chain"
	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
)

// maxTxPerCandidate bounds how many pending transactions a single
// candidate block pulls from the queue, keeping a candidate well under
// MaxBlockPayload without having to measure its serialized size first.
const maxTxPerCandidate = 4096

// buildCandidate assembles an unsolved block extending c's current tip,
// crediting rewardTo with the block subsidy plus the included
// transactions' fees.
func buildCandidate(c *chain.Chain, rewardTo crypto.Address, now time.Time) (*domainmessage.Block, error) {
	var prevHash crypto.Hash
	var blockID uint64

	if top, ok := c.Top(); ok {
		h, err := top.Hash()
		if err != nil {
			return nil, err
		}
		prevHash = h
		blockID = top.BlockID + 1
	}

	target, err := c.ExpectedTarget(blockID)
	if err != nil {
		return nil, err
	}

	txs := c.NextPending(maxTxPerCandidate)
	block := &domainmessage.Block{
		PrevHash:  prevHash,
		BlockID:   blockID,
		RewardTo:  rewardTo,
		Timestamp: uint64(now.UnixMilli()),
		Target:    target,
		PoW:       0,
	}
	for _, tx := range txs {
		switch t := tx.(type) {
		case *domainmessage.TransferEnvelope:
			block.Transfers = append(block.Transfers, t)
		case *domainmessage.PageEnvelope:
			block.Pages = append(block.Pages, t)
		}
	}
	return block, nil
}
