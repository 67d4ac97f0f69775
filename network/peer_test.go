package network

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPeerStateTransitionsOnStartAndDisconnect(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	p := newPeer(serverConn, false, nil, nil)
	require.Equal(t, peerConnecting, p.State())

	p.start(func(name string, f func()) { go f() })
	require.Equal(t, peerHandshakePending, p.State())

	p.setState(peerEstablished)
	require.Equal(t, peerEstablished, p.State())

	p.Disconnect()
	require.Equal(t, peerClosed, p.State())

	// A second Disconnect must be a no-op, not a double-close panic.
	require.NotPanics(t, p.Disconnect)
}

func TestPeerDeliversReceivedEnvelopes(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	received := make(chan *Envelope, 1)
	p := newPeer(serverConn, false, func(_ *Peer, e *Envelope) {
		received <- e
	}, nil)
	p.start(func(name string, f func()) { go f() })
	defer p.Disconnect()

	require.NoError(t, writeFrame(clientConn, PacketEnvelope(PingPacket())))

	select {
	case e := <-received:
		require.Equal(t, envelopePacket, e.kind)
		require.Equal(t, packetPing, e.packet.kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope delivery")
	}
}

func TestPeerSendWritesFrameToConn(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	p := newPeer(serverConn, true, nil, nil)
	p.start(func(name string, f func()) { go f() })
	defer p.Disconnect()

	p.Send(OnConnectedEnvelope(9977))

	got, err := readFrame(clientConn)
	require.NoError(t, err)
	require.Equal(t, envelopeOnConnected, got.kind)
	require.EqualValues(t, 9977, got.port)
}

func TestPeerOnClosedCalledAfterDisconnect(t *testing.T) {
	_, serverConn := net.Pipe()

	closed := make(chan struct{})
	p := newPeer(serverConn, false, nil, func(*Peer) { close(closed) })
	p.Disconnect()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("onClosed callback was not invoked")
	}
}
