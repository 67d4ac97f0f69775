package cmdchannel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagchain/pagechain/chain"
	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
	"github.com/dagchain/pagechain/store"
)

type fakePeerCounter struct{ n int }

func (f *fakePeerCounter) PeerCount() int { return f.n }

type fakeBroadcaster struct {
	transfers []*domainmessage.TransferEnvelope
	pages     []*domainmessage.PageEnvelope
}

func (f *fakeBroadcaster) BroadcastTransfer(tx *domainmessage.TransferEnvelope) {
	f.transfers = append(f.transfers, tx)
}

func (f *fakeBroadcaster) BroadcastPage(tx *domainmessage.PageEnvelope, _ store.DataUnit) {
	f.pages = append(f.pages, tx)
}

func newTestServer(t *testing.T) (*Server, *chain.Chain, *fakeBroadcaster) {
	t.Helper()
	c := chain.New(nil)
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	bcast := &fakeBroadcaster{}
	return NewServer(c, s, &fakePeerCounter{n: 2}, bcast), c, bcast
}

func TestServerHandleBalanceUnknownAddressIsZero(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := srv.handle(BalanceRequest(crypto.Address{0x01}))
	require.Equal(t, respBalance, resp.kind)
	require.Zero(t, resp.status.Balance)
}

func TestServerHandleSendRejectsNegativeAmount(t *testing.T) {
	srv, _, bcast := newTestServer(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	der, err := key.DER()
	require.NoError(t, err)

	resp := srv.handle(SendRequest(der, crypto.Address{0x02}, -100, 1))
	require.Equal(t, respFailed, resp.kind)
	require.Empty(t, bcast.transfers)
}

func TestServerHandleSendSignsAndBroadcasts(t *testing.T) {
	srv, c, bcast := newTestServer(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	der, err := key.DER()
	require.NoError(t, err)

	resp := srv.handle(SendRequest(der, crypto.Address{0x02}, 10, 1))
	require.Equal(t, respSent, resp.kind)
	require.Len(t, bcast.transfers, 1)
	require.Equal(t, resp.txHash, bcast.transfers[0].Hash())
	require.EqualValues(t, 1, c.PendingCount())
}

func TestServerHandleUpdatePageStoresPayloadAndBroadcasts(t *testing.T) {
	srv, c, bcast := newTestServer(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	der, err := key.DER()
	require.NoError(t, err)

	payload := []byte("hello page contents")
	resp := srv.handle(UpdatePageRequest(der, "homepage", payload, 0))
	require.Equal(t, respPageUpdated, resp.kind)
	require.Len(t, bcast.pages, 1)

	stored, ok := srv.store.Get(resp.txHash)
	require.True(t, ok)
	require.Equal(t, store.DataUnit(payload), stored)

	require.EqualValues(t, 1, c.PendingCount())
}

func TestServerHandleStatisticsReportsEmptyChainDefaults(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := srv.handle(StatisticsRequest())
	require.Equal(t, respStatistics, resp.kind)
	require.Zero(t, resp.stats.ChainHeight)
	require.EqualValues(t, 2, resp.stats.PeerCount)
	require.Equal(t, domainmessage.MinTarget, resp.stats.CurrentTarget)
}

func TestServerHandleExitMarksExiting(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := srv.handle(ExitRequest())
	require.Equal(t, respExiting, resp.kind)
	require.True(t, srv.exiting.Load())
}

func TestServerHandleTransactionInfoNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := srv.handle(TransactionInfoRequest(crypto.Hash{0x09}))
	require.Equal(t, respTransactionInfo, resp.kind)
	require.False(t, resp.found)
}

func TestChunkHashesEmptyPayload(t *testing.T) {
	require.Nil(t, chunkHashes(nil))
}

func TestChunkHashesSingleChunk(t *testing.T) {
	data := []byte("small payload")
	hashes := chunkHashes(data)
	require.Len(t, hashes, 1)
	require.Equal(t, crypto.HashData(data), hashes[0])
}
