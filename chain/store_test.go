package chain

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
)

func TestFileBlockStoreAppendLoadRoundTrip(t *testing.T) {
	store, err := NewFileBlockStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	now := blockTimestampNow()
	var miner crypto.Address
	miner[0] = 9
	b := &domainmessage.Block{
		BlockID:   0,
		RewardTo:  miner,
		Timestamp: now,
		Target:    domainmessage.MinTarget,
	}
	require.NoError(t, store.Append(b))

	got, err := store.Load(0)
	require.NoError(t, err)
	require.Equal(t, b, got)
}

func TestFileBlockStoreLoadMissingReturnsNotExist(t *testing.T) {
	store, err := NewFileBlockStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load(5)
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestFileBlockStoreRoundTripsBlockTransactions(t *testing.T) {
	store, err := NewFileBlockStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	transfer := fakeTransfer(t, 1, 0, 10, 1)
	b := &domainmessage.Block{
		BlockID:   0,
		RewardTo:  crypto.Address{0x01},
		Transfers: []*domainmessage.TransferEnvelope{transfer},
		Timestamp: blockTimestampNow(),
		Target:    domainmessage.MinTarget,
	}
	require.NoError(t, store.Append(b))

	got, err := store.Load(0)
	require.NoError(t, err)
	require.Len(t, got.Transfers, 1)
	require.Equal(t, transfer.Hash(), got.Transfers[0].Hash())
}

func blockTimestampNow() uint64 {
	return 1_700_000_000_000
}
