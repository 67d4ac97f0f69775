package validator

import (
	"time"

	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
	"github.com/dagchain/pagechain/params"
)

// ChainView is the read-only slice of chain-engine state block
// validation needs: access to the previous block, the retarget sample
// window, and the wallet-status index. The chain package implements
// this; validator never imports chain, keeping the dependency
// direction chain -> validator.
type ChainView interface {
	// BlockByID returns the canonical block at id, if any.
	BlockByID(id uint64) (*domainmessage.Block, bool)
	// WalletStatus returns the current status of addr.
	WalletStatus(addr crypto.Address) domainmessage.WalletStatus
	// ExpectedTarget returns the target the block at blockID must carry,
	// per the retarget schedule.
	ExpectedTarget(blockID uint64) (domainmessage.CompactTarget, error)
}

// ValidateBlock performs the full chain-contextual validation for a
// block that is known to extend the chain at block.BlockID ==
// prevID+1 (NotNextBlock/Duplicate/MoreNeeded are the chain engine's
// concern, decided before this is called). now is injected for
// testability.
func ValidateBlock(block *domainmessage.Block, view ChainView, now time.Time) Result {
	var prev *domainmessage.Block
	if block.BlockID > 0 {
		var ok bool
		prev, ok = view.BlockByID(block.BlockID - 1)
		if !ok {
			return NotNextBlock()
		}
		prevHash, err := prev.Hash()
		if err != nil {
			return NotNextBlock()
		}
		if block.PrevHash != prevHash {
			return PrevHash()
		}
		if block.TimestampMillis() < prev.TimestampMillis() {
			return Timestamp()
		}
	} else if !block.PrevHash.IsZero() {
		return PrevHash()
	}

	if block.TimestampMillis() > uint64(now.UnixMilli()) {
		return Timestamp()
	}

	expectedTarget, err := view.ExpectedTarget(block.BlockID)
	if err != nil {
		return Target()
	}
	if block.Target != expectedTarget {
		return Target()
	}

	hash, err := block.Hash()
	if err != nil {
		return Transaction("block does not serialize")
	}
	if !domainmessage.HashBelowTarget(hash[:], block.Target) {
		return POW()
	}

	res, _ := ValidateTransactionsAndBalances(block, view)
	return res
}

// ValidateTransactionsAndBalances applies every transaction in block
// against view's wallet statuses and returns both the validation
// result and, on success, the map of address -> new WalletStatus for
// every address touched. The chain engine caches exactly this map as
// the block's metadata, so it does not need to re-derive it separately
// from validation.
func ValidateTransactionsAndBalances(block *domainmessage.Block, view ChainView) (Result, map[crypto.Address]domainmessage.WalletStatus) {
	return validateTransactionsAndBalances(block, view)
}

// scratchStatus tracks wallet status mutations within a single block
// being validated, so that e.g. a sender's second transfer in the same
// block sees the balance debited by its first.
type scratchStatus struct {
	base map[crypto.Address]domainmessage.WalletStatus
	view ChainView
}

func newScratchStatus(view ChainView) *scratchStatus {
	return &scratchStatus{base: make(map[crypto.Address]domainmessage.WalletStatus), view: view}
}

func (s *scratchStatus) get(addr crypto.Address) domainmessage.WalletStatus {
	if st, ok := s.base[addr]; ok {
		return st
	}
	return s.view.WalletStatus(addr)
}

func (s *scratchStatus) set(addr crypto.Address, st domainmessage.WalletStatus) {
	s.base[addr] = st
}

func validateTransactionsAndBalances(block *domainmessage.Block, view ChainView) (Result, map[crypto.Address]domainmessage.WalletStatus) {
	scratch := newScratchStatus(view)
	var totalFees domainmessage.Amount

	for _, t := range block.Transfers {
		if res := ValidateTransferEnvelope(t); !res.IsOk() {
			return res, nil
		}
		sender := t.SenderAddress()
		status := scratch.get(sender)
		if t.Header.ID <= status.MaxID {
			return Transaction("transfer id is not greater than sender's max id"), nil
		}
		newBalance := status.Balance - t.Header.Amount - t.Header.FeeAmt
		if newBalance < 0 {
			return Balance(sender), nil
		}
		status.Balance = newBalance
		status.MaxID = t.Header.ID
		scratch.set(sender, status)

		recipient := t.Header.To
		recvStatus := scratch.get(recipient)
		recvStatus.Balance += t.Header.Amount
		scratch.set(recipient, recvStatus)

		totalFees += t.Header.FeeAmt
	}

	for _, p := range block.Pages {
		if res := ValidatePageEnvelope(p); !res.IsOk() {
			return res, nil
		}
		sender := p.SenderAddress()
		status := scratch.get(sender)
		if p.Header.ID <= status.MaxID {
			return Transaction("page id is not greater than sender's max id"), nil
		}
		newBalance := status.Balance - p.Header.FeeAmt
		if newBalance < 0 {
			return Balance(sender), nil
		}
		status.Balance = newBalance
		status.MaxID = p.Header.ID
		scratch.set(sender, status)

		totalFees += p.Header.FeeAmt
	}

	// Credit the block reward plus collected fees to reward_to. This
	// happens after all debits so a block can't use its own reward to
	// fund its own transactions.
	rewardStatus := scratch.get(block.RewardTo)
	rewardStatus.Balance += params.GenesisReward + totalFees
	scratch.set(block.RewardTo, rewardStatus)

	return Ok, scratch.base
}
