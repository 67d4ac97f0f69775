package miner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dagchain/pagechain/chain"
	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
	"github.com/dagchain/pagechain/internal/panics"
	"github.com/dagchain/pagechain/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.MINR)

var spawn = panics.GoroutineWrapperFunc(log)

// abandonCheckInterval is how often, in hash attempts, the nonce-search
// loop checks whether a new canonical tip has appeared underneath it.
const abandonCheckInterval = 100

const logHashRateInterval = 10 * time.Second

// Broadcaster is the network-facing half of block announcement; the
// miner depends on this narrow interface instead of the network package
// directly to keep network -> miner the only import edge, never the
// reverse.
type Broadcaster interface {
	BroadcastBlock(block *domainmessage.Block)
}

// Miner repeatedly assembles and solves candidate blocks extending the
// chain's tip, appending and broadcasting each one it finds.
type Miner struct {
	chain    *chain.Chain
	net      Broadcaster
	rewardTo crypto.Address

	hashesTried atomic.Uint64
}

// New returns a Miner crediting rewardTo for every block it mines.
func New(c *chain.Chain, net Broadcaster, rewardTo crypto.Address) *Miner {
	return &Miner{chain: c, net: net, rewardTo: rewardTo}
}

// Run mines blocks until ctx is canceled.
func (m *Miner) Run(ctx context.Context) {
	spawn("miner-hashrate", func() { m.logHashRate(ctx) })
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		block, ok := m.mineOne(ctx)
		if !ok {
			continue
		}
		m.submit(block)
	}
}

// mineOne builds one candidate and searches for a valid nonce,
// returning ok=false if ctx was canceled or the tip advanced underneath
// it and the candidate was abandoned.
func (m *Miner) mineOne(ctx context.Context) (*domainmessage.Block, bool) {
	startTop, hadTop := m.chain.Top()
	var startTopID uint64
	if hadTop {
		startTopID = startTop.BlockID
	}

	block, err := buildCandidate(m.chain, m.rewardTo, time.Now())
	if err != nil {
		log.Errorf("building candidate: %v", err)
		return nil, false
	}

	var nonce uint64
	for {
		select {
		case <-ctx.Done():
			return nil, false
		default:
		}

		for i := 0; i < abandonCheckInterval; i++ {
			block.PoW = nonce
			hash, err := block.Hash()
			if err != nil {
				log.Errorf("hashing candidate: %v", err)
				return nil, false
			}
			m.hashesTried.Add(1)
			if domainmessage.HashBelowTarget(hash[:], block.Target) {
				return block, true
			}
			nonce++
		}

		top, ok := m.chain.Top()
		if ok != hadTop || (ok && top.BlockID != startTopID) {
			return nil, false
		}
	}
}

func (m *Miner) submit(block *domainmessage.Block) {
	res := m.chain.AddBlock(block, time.Now())
	if !res.IsOk() {
		log.Warnf("mined block %d rejected locally: %s", block.BlockID, res.Reason.Code)
		return
	}
	log.Infof("mined block %d", block.BlockID)
	m.net.BroadcastBlock(block)
}

func (m *Miner) logHashRate(ctx context.Context) {
	ticker := time.NewTicker(logHashRateInterval)
	defer ticker.Stop()
	lastCheck := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tried := m.hashesTried.Swap(0)
			now := time.Now()
			rate := float64(tried) / now.Sub(lastCheck).Seconds() / 1000.0
			lastCheck = now
			log.Infof("current hash rate is %.2f khash/s", rate)
		}
	}
}
