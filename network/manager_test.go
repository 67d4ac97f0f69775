package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dagchain/pagechain/chain"
	"github.com/dagchain/pagechain/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	c := chain.New(nil)
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	return NewManager(c, s, 0)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestManagerHandshakeEstablishesPeer(t *testing.T) {
	serverMgr := newTestManager(t)
	require.NoError(t, serverMgr.Listen("127.0.0.1:0"))
	defer serverMgr.Stop()
	serverAddr := serverMgr.listener.Addr().String()

	clientMgr := newTestManager(t)
	defer clientMgr.Stop()

	clientMgr.dialOne(serverAddr)

	waitFor(t, 2*time.Second, func() bool { return clientMgr.PeerCount() == 1 })
	waitFor(t, 2*time.Second, func() bool { return serverMgr.PeerCount() == 1 })
}

func TestManagerStopDisconnectsPeers(t *testing.T) {
	serverMgr := newTestManager(t)
	require.NoError(t, serverMgr.Listen("127.0.0.1:0"))
	serverAddr := serverMgr.listener.Addr().String()

	clientMgr := newTestManager(t)
	clientMgr.dialOne(serverAddr)

	waitFor(t, 2*time.Second, func() bool { return clientMgr.PeerCount() == 1 })

	clientMgr.Stop()
	require.Equal(t, 0, clientMgr.PeerCount())

	serverMgr.Stop()
}

func TestManagerLearnsKnownNodeFromPeer(t *testing.T) {
	serverMgr := newTestManager(t)
	require.NoError(t, serverMgr.Listen("127.0.0.1:0"))
	defer serverMgr.Stop()
	serverMgr.AddKnownAddress("10.0.0.1:9977")
	serverAddr := serverMgr.listener.Addr().String()

	clientMgr := newTestManager(t)
	defer clientMgr.Stop()
	clientMgr.dialOne(serverAddr)

	waitFor(t, 2*time.Second, func() bool {
		clientMgr.mu.Lock()
		defer clientMgr.mu.Unlock()
		return clientMgr.known["10.0.0.1:9977"]
	})
}
