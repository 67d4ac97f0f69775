package miner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dagchain/pagechain/chain"
	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
)

type fakeBroadcaster struct {
	blocks []*domainmessage.Block
}

func (f *fakeBroadcaster) BroadcastBlock(block *domainmessage.Block) {
	f.blocks = append(f.blocks, block)
}

func TestBuildCandidateGenesis(t *testing.T) {
	c := chain.New(nil)
	var rewardTo crypto.Address
	rewardTo[0] = 1

	block, err := buildCandidate(c, rewardTo, time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 0, block.BlockID)
	require.True(t, block.PrevHash.IsZero())
	require.Equal(t, domainmessage.MinTarget, block.Target)
	require.Equal(t, rewardTo, block.RewardTo)
}

func TestBuildCandidateExtendsTip(t *testing.T) {
	c := chain.New(nil)
	now := time.Now()
	var rewardTo crypto.Address
	rewardTo[0] = 1

	genesis, err := buildCandidate(c, rewardTo, now)
	require.NoError(t, err)
	mineForTest(t, genesis)
	require.True(t, c.AddBlock(genesis, now).IsOk())

	child, err := buildCandidate(c, rewardTo, now.Add(time.Second))
	require.NoError(t, err)
	require.EqualValues(t, 1, child.BlockID)

	genesisHash, err := genesis.Hash()
	require.NoError(t, err)
	require.Equal(t, genesisHash, child.PrevHash)
}

func TestBuildCandidateIncludesPendingTransactions(t *testing.T) {
	c := chain.New(nil)
	var rewardTo crypto.Address
	rewardTo[0] = 1

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	pub, err := key.PublicKey()
	require.NoError(t, err)

	env := &domainmessage.TransferEnvelope{
		Header:        domainmessage.Transfer{ID: 1, To: crypto.Address{0x02}, Amount: 1, FeeAmt: 1},
		FromPublicKey: pub,
		Exponent:      key.Exponent(),
	}
	sig, err := key.Sign(env.HeaderHash())
	require.NoError(t, err)
	env.Signature = sig

	require.True(t, c.PushTransfer(env))

	block, err := buildCandidate(c, rewardTo, time.Now())
	require.NoError(t, err)
	require.Len(t, block.Transfers, 1)
	require.Equal(t, env.Hash(), block.Transfers[0].Hash())
}

func mineForTest(t *testing.T, block *domainmessage.Block) {
	t.Helper()
	for nonce := uint64(0); ; nonce++ {
		block.PoW = nonce
		h, err := block.Hash()
		require.NoError(t, err)
		if domainmessage.HashBelowTarget(h[:], block.Target) {
			return
		}
	}
}

func TestMinerRunMinesAndBroadcastsBlock(t *testing.T) {
	c := chain.New(nil)
	var rewardTo crypto.Address
	rewardTo[0] = 3

	bcast := &fakeBroadcaster{}
	m := New(c, bcast, rewardTo)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok := c.Top()
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	top, ok := c.Top()
	require.True(t, ok)
	require.Len(t, bcast.blocks, int(top.BlockID)+1)
}
