package network

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// peerState is the per-peer connection state machine.
type peerState int32

const (
	peerConnecting peerState = iota
	peerHandshakePending
	peerEstablished
	peerClosed
)

func (s peerState) String() string {
	switch s {
	case peerConnecting:
		return "Connecting"
	case peerHandshakePending:
		return "HandshakePending"
	case peerEstablished:
		return "Established"
	case peerClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Peer owns one TCP connection to another node: a reader goroutine
// decoding frames, a writer goroutine draining an outbound queue, and
// the handshake/state-machine bookkeeping that brings a connection up
// to Established.
type Peer struct {
	conn     net.Conn
	outbound bool

	state atomic.Int32

	// address is the raw net.Conn remote address until the handshake
	// completes, then the canonical "peer_ip:peer_advertised_port".
	mu      sync.Mutex
	address string

	outCh chan *Envelope
	quit  chan struct{}
	wg    sync.WaitGroup

	onEnvelope func(p *Peer, e *Envelope)
	onClosed   func(p *Peer)
}

// newPeer wraps an already-accepted or already-dialed connection.
func newPeer(conn net.Conn, outbound bool, onEnvelope func(*Peer, *Envelope), onClosed func(*Peer)) *Peer {
	p := &Peer{
		conn:       conn,
		outbound:   outbound,
		address:    conn.RemoteAddr().String(),
		outCh:      make(chan *Envelope, 64),
		quit:       make(chan struct{}),
		onEnvelope: onEnvelope,
		onClosed:   onClosed,
	}
	p.state.Store(int32(peerConnecting))
	return p
}

// Address returns the peer's current address (raw remote address
// before handshake, canonical "ip:advertised_port" after).
func (p *Peer) Address() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.address
}

func (p *Peer) setAddress(addr string) {
	p.mu.Lock()
	p.address = addr
	p.mu.Unlock()
}

func (p *Peer) State() peerState { return peerState(p.state.Load()) }

func (p *Peer) setState(s peerState) { p.state.Store(int32(s)) }

// Send queues e for delivery; it never blocks the caller on network I/O.
func (p *Peer) Send(e *Envelope) {
	select {
	case p.outCh <- e:
	case <-p.quit:
	}
}

// start launches the peer's reader and writer goroutines. spawn is the
// node's panic-recovering goroutine launcher (internal/panics).
func (p *Peer) start(spawn func(name string, f func())) {
	p.setState(peerHandshakePending)
	p.wg.Add(2)
	spawn("peer-reader", func() { defer p.wg.Done(); p.readLoop() })
	spawn("peer-writer", func() { defer p.wg.Done(); p.writeLoop() })
}

func (p *Peer) readLoop() {
	defer p.Disconnect()
	for {
		e, err := readFrame(p.conn)
		if err != nil {
			return
		}
		if p.onEnvelope != nil {
			p.onEnvelope(p, e)
		}
	}
}

func (p *Peer) writeLoop() {
	for {
		select {
		case e := <-p.outCh:
			if err := writeFrame(p.conn, e); err != nil {
				p.Disconnect()
				return
			}
		case <-p.quit:
			return
		}
	}
}

// Disconnect closes the connection and marks the peer Closed. Safe to
// call more than once and from either goroutine.
func (p *Peer) Disconnect() {
	for {
		cur := p.state.Load()
		if peerState(cur) == peerClosed {
			return
		}
		if p.state.CompareAndSwap(cur, int32(peerClosed)) {
			break
		}
	}
	close(p.quit)
	p.conn.Close()
	if p.onClosed != nil {
		p.onClosed(p)
	}
}

// WaitForDisconnect blocks until both the reader and writer goroutines
// have exited.
func (p *Peer) WaitForDisconnect() {
	p.wg.Wait()
}

// dial opens an outbound connection, giving up after connectTimeout.
func dial(addr string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "dialing peer")
	}
	return conn, nil
}
