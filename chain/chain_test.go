package chain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
)

// mineBlock finds a PoW nonce satisfying block.Target and returns the
// block's hash alongside it, the same brute-force loop miner.Run uses.
func mineBlock(t *testing.T, block *domainmessage.Block) crypto.Hash {
	t.Helper()
	for nonce := uint64(0); ; nonce++ {
		block.PoW = nonce
		h, err := block.Hash()
		require.NoError(t, err)
		if domainmessage.HashBelowTarget(h[:], block.Target) {
			return h
		}
	}
}

func genesisBlock(t *testing.T, rewardTo crypto.Address, now time.Time) *domainmessage.Block {
	t.Helper()
	b := &domainmessage.Block{
		BlockID:   0,
		RewardTo:  rewardTo,
		Timestamp: uint64(now.UnixMilli()),
		Target:    domainmessage.MinTarget,
	}
	mineBlock(t, b)
	return b
}

func childBlock(t *testing.T, prev *domainmessage.Block, rewardTo crypto.Address, now time.Time) *domainmessage.Block {
	t.Helper()
	prevHash, err := prev.Hash()
	require.NoError(t, err)
	b := &domainmessage.Block{
		PrevHash:  prevHash,
		BlockID:   prev.BlockID + 1,
		RewardTo:  rewardTo,
		Timestamp: prev.Timestamp + 1,
		Target:    domainmessage.MinTarget,
	}
	mineBlock(t, b)
	return b
}

func TestChainAddBlockGenesis(t *testing.T) {
	c := New(nil)
	now := time.Now()

	var miner crypto.Address
	miner[0] = 1

	genesis := genesisBlock(t, miner, now)
	res := c.AddBlock(genesis, now)
	require.True(t, res.IsOk())

	top, ok := c.Top()
	require.True(t, ok)
	require.Equal(t, uint64(0), top.BlockID)

	status := c.WalletStatus(miner)
	require.EqualValues(t, 10, status.Balance)
}

func TestChainAddBlockRejectsDuplicate(t *testing.T) {
	c := New(nil)
	now := time.Now()
	var miner crypto.Address
	miner[0] = 1

	genesis := genesisBlock(t, miner, now)
	require.True(t, c.AddBlock(genesis, now).IsOk())

	res := c.AddBlock(genesis, now)
	require.Equal(t, AppendDuplicate, res.Code)
}

func TestChainAddBlockRequiresSequential(t *testing.T) {
	c := New(nil)
	now := time.Now()
	var miner crypto.Address
	miner[0] = 1

	genesis := genesisBlock(t, miner, now)
	require.True(t, c.AddBlock(genesis, now).IsOk())

	skip := childBlock(t, genesis, miner, now)
	skip.BlockID = 2
	res := c.AddBlock(skip, now)
	require.Equal(t, AppendMoreNeeded, res.Code)
}

func TestChainAddBlockChainsRewards(t *testing.T) {
	c := New(nil)
	now := time.Now()
	var miner crypto.Address
	miner[0] = 1

	genesis := genesisBlock(t, miner, now)
	require.True(t, c.AddBlock(genesis, now).IsOk())

	b1 := childBlock(t, genesis, miner, now)
	require.True(t, c.AddBlock(b1, now.Add(time.Second)).IsOk())

	status := c.WalletStatus(miner)
	require.EqualValues(t, 20, status.Balance)

	top, ok := c.Top()
	require.True(t, ok)
	require.Equal(t, uint64(1), top.BlockID)
}

func TestChainReplayFromStoreRebuildsState(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileBlockStore(dir)
	require.NoError(t, err)

	now := time.Now()
	var miner crypto.Address
	miner[0] = 7

	c := New(store)
	genesis := genesisBlock(t, miner, now)
	require.True(t, c.AddBlock(genesis, now).IsOk())
	b1 := childBlock(t, genesis, miner, now)
	require.True(t, c.AddBlock(b1, now.Add(time.Second)).IsOk())

	replayed := New(store)
	require.NoError(t, replayed.ReplayFromStore(now.Add(time.Second)))

	top, ok := replayed.Top()
	require.True(t, ok)
	require.Equal(t, uint64(1), top.BlockID)

	status := replayed.WalletStatus(miner)
	require.EqualValues(t, 20, status.Balance)
}
