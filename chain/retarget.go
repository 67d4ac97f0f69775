package chain

import (
	"math"

	"github.com/dagchain/pagechain/domainmessage"
	"github.com/dagchain/pagechain/params"
)

// difficulty expresses a compact target as a float relative to
// MinTarget: difficulty 1.0 == MinTarget, larger means harder.
func difficulty(target domainmessage.CompactTarget) float64 {
	exponentDiff := float64(8 * (index(domainmessage.MinTarget) - index(target)))
	coeffDiff := float64(domainmessage.MinTarget.Coefficient()) / float64(target.Coefficient())
	return coeffDiff * math.Exp2(exponentDiff)
}

// index clamps the exponent byte so a corrupt or adversarial target's
// exponent can never be interpreted past MinTarget's own exponent (0x20).
func index(target domainmessage.CompactTarget) int {
	e := int(target.Exponent())
	if e > 0x20 {
		e = 0x20
	}
	return e
}

func hashRateFor(diff float64, windowMillis int64, sampleSize uint64) float64 {
	return (diff * 256.0 * float64(sampleSize)) / float64(windowMillis)
}

func diffForHashRate(hashRate float64) float64 {
	return (hashRate * float64(params.BlockTime.Milliseconds())) / 256.0
}

// compactFromDifficulty is the inverse of difficulty, saturating to
// MinTarget when the requested difficulty would fall below 1.0 or when
// the retarget math hits a precision limit, rather than wrapping.
func compactFromDifficulty(diff float64) domainmessage.CompactTarget {
	if diff <= 1.0 || math.IsNaN(diff) || math.IsInf(diff, 0) {
		return domainmessage.MinTarget
	}

	exponent := math.Round(math.Log2(diff))
	offsetDiff := diff / math.Exp2(exponent)

	idFloat := (256.0 - exponent) / 8.0
	if idFloat < 0 {
		idFloat = 0
	}
	if idFloat > 255 {
		idFloat = 255
	}
	id := byte(idFloat)

	coeff := float64(domainmessage.MinTarget.Coefficient()) / offsetDiff
	if coeff < 0 {
		coeff = 0
	}
	if coeff > math.MaxUint32 {
		coeff = math.MaxUint32
	}

	result := domainmessage.NewCompactTarget(uint32(coeff), id)

	// Never allow a retarget to produce a target easier than MinTarget.
	if result.Expand().Cmp(domainmessage.MinTarget.Expand()) > 0 {
		return domainmessage.MinTarget
	}
	return result
}

// computeRetarget derives the target the block following sampleEnd's
// block should carry, given the block BlockSampleSize positions
// earlier (sampleStart).
func computeRetarget(sampleStart, sampleEnd *domainmessage.Block) domainmessage.CompactTarget {
	windowMillis := int64(sampleEnd.TimestampMillis()) - int64(sampleStart.TimestampMillis())
	if windowMillis <= 0 {
		windowMillis = 1
	}
	curDiff := difficulty(sampleEnd.Target)
	rate := hashRateFor(curDiff, windowMillis, params.BlockSampleSize)
	newDiff := diffForHashRate(rate)
	return compactFromDifficulty(newDiff)
}

// blockLookup abstracts "find the canonical-or-branch block with this
// id" so the retarget schedule can be evaluated both against the live
// chain and against a branch being considered for merge (chain.go,
// branch.go).
type blockLookup func(id uint64) (*domainmessage.Block, bool)

// expectedTargetFor computes the retarget schedule: blockID 0 and every
// blockID up to the first full sample window get MinTarget; thereafter
// the target only changes on a sample boundary, and is copied forward
// from the previous block otherwise.
func expectedTargetFor(lookup blockLookup, blockID uint64) (domainmessage.CompactTarget, error) {
	if blockID == 0 {
		return domainmessage.MinTarget, nil
	}
	prevID := blockID - 1
	prev, ok := lookup(prevID)
	if !ok {
		return domainmessage.CompactTarget{}, errPrevBlockMissing
	}
	if prevID < params.BlockSampleSize {
		return domainmessage.MinTarget, nil
	}
	if prevID%params.BlockSampleSize != 0 {
		return prev.Target, nil
	}
	sampleStart, ok := lookup(prevID - params.BlockSampleSize)
	if !ok {
		return domainmessage.MinTarget, nil
	}
	return computeRetarget(sampleStart, prev), nil
}
