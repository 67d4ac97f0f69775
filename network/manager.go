package network

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/dagchain/pagechain/chain"
	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
	"github.com/dagchain/pagechain/store"
	"github.com/dagchain/pagechain/validator"
)

// Manager owns the node's gossip network: the listener, the peer
// table, the discovery loop, and the dispatch of incoming packets into
// the chain engine and data store.
type Manager struct {
	chain *chain.Chain
	store *store.Store

	listenPort uint16

	mu            sync.Mutex
	peers         map[string]*Peer // keyed by canonical address once known
	pendingByConn map[*Peer]bool   // peers whose canonical address isn't settled yet
	known         map[string]bool

	listener net.Listener
	quit     chan struct{}
	wg       sync.WaitGroup
}

// NewManager returns a Manager that serves c and s. listenPort is
// advertised to peers during the handshake.
func NewManager(c *chain.Chain, s *store.Store, listenPort uint16) *Manager {
	return &Manager{
		chain:         c,
		store:         s,
		listenPort:    listenPort,
		peers:         make(map[string]*Peer),
		pendingByConn: make(map[*Peer]bool),
		known:         make(map[string]bool),
		quit:          make(chan struct{}),
	}
}

// AddKnownAddress seeds the known-address set (e.g. from config's
// bootstrap peer list).
func (m *Manager) AddKnownAddress(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.known[addr] = true
}

// Listen binds bindAddr and starts accepting inbound connections.
func (m *Manager) Listen(bindAddr string) error {
	l, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return errors.Wrap(err, "binding listener")
	}
	m.listener = l
	m.wg.Add(1)
	spawn("network-accept", func() { defer m.wg.Done(); m.acceptLoop() })
	return nil
}

// Start launches the discovery loop.
func (m *Manager) Start() {
	m.wg.Add(1)
	spawn("network-discovery", func() { defer m.wg.Done(); m.discoveryLoop() })
}

// Stop closes the listener and every connected peer, then waits for
// all manager goroutines to exit.
func (m *Manager) Stop() {
	close(m.quit)
	if m.listener != nil {
		m.listener.Close()
	}
	m.mu.Lock()
	peers := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	for p := range m.pendingByConn {
		peers = append(peers, p)
	}
	m.mu.Unlock()
	for _, p := range peers {
		p.Disconnect()
	}
	m.wg.Wait()
}

func (m *Manager) acceptLoop() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			select {
			case <-m.quit:
				return
			default:
				log.Errorf("accept: %v", err)
				return
			}
		}
		m.adopt(conn, false)
	}
}

func (m *Manager) discoveryLoop() {
	ticker := time.NewTicker(discoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			m.discoveryTick()
		}
	}
}

// discoveryTick dials every known address not currently connected, then
// pings every established peer.
func (m *Manager) discoveryTick() {
	m.mu.Lock()
	toDial := make([]string, 0)
	for addr := range m.known {
		if _, connected := m.peers[addr]; !connected {
			toDial = append(toDial, addr)
		}
	}
	established := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		if p.State() == peerEstablished {
			established = append(established, p)
		}
	}
	m.mu.Unlock()

	for _, addr := range toDial {
		m.dialOne(addr)
	}
	for _, p := range established {
		p.Send(PacketEnvelope(PingPacket()))
	}
}

func (m *Manager) dialOne(addr string) {
	conn, err := dial(addr)
	if err != nil {
		return
	}
	m.adopt(conn, true)
}

func (m *Manager) adopt(conn net.Conn, outbound bool) {
	p := newPeer(conn, outbound, m.handleEnvelope, m.handleClosed)
	m.mu.Lock()
	m.pendingByConn[p] = true
	m.mu.Unlock()
	p.start(spawn)
	p.Send(OnConnectedEnvelope(m.listenPort))
}

func (m *Manager) handleClosed(p *Peer) {
	m.mu.Lock()
	delete(m.pendingByConn, p)
	addr := p.Address()
	if m.peers[addr] == p {
		delete(m.peers, addr)
	}
	m.mu.Unlock()
	m.chain.ClearBranch(addr)
}

func (m *Manager) handleEnvelope(p *Peer, e *Envelope) {
	switch e.kind {
	case envelopeOnConnected:
		m.completeHandshake(p, e.port)
	case envelopeKnownNode:
		m.learnKnownNode(e.knownNode)
	case envelopePacket:
		m.handlePacket(p, e.packet)
	}
}

// completeHandshake settles a peer's canonical address, host:advertised_port,
// once its advertised listen port is known.
func (m *Manager) completeHandshake(p *Peer, advertisedPort uint16) {
	host, _, err := net.SplitHostPort(p.conn.RemoteAddr().String())
	if err != nil {
		p.Disconnect()
		return
	}
	canonical := net.JoinHostPort(host, strconv.Itoa(int(advertisedPort)))

	m.mu.Lock()
	if existing, ok := m.peers[canonical]; ok && existing != p {
		m.mu.Unlock()
		p.Disconnect()
		return
	}
	delete(m.pendingByConn, p)
	p.setAddress(canonical)
	p.setState(peerEstablished)
	m.peers[canonical] = p
	knownAddrs := make([]string, 0, len(m.known))
	for a := range m.known {
		knownAddrs = append(knownAddrs, a)
	}
	m.known[canonical] = true
	m.mu.Unlock()

	p.Send(PacketEnvelope(PostHandshakePacket()))
	for _, a := range knownAddrs {
		p.Send(KnownNodeEnvelope(a))
	}
}

func (m *Manager) learnKnownNode(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.known) >= maxKnownAddresses {
		return
	}
	m.known[addr] = true
}

// handlePacket dispatches a post-handshake packet by kind.
func (m *Manager) handlePacket(p *Peer, pkt *Packet) {
	switch pkt.kind {
	case packetOnConnected, packetPing:
		// Liveness only; no action required.
	case packetBlock:
		m.handleBlockPacket(p, pkt)
	case packetBlockRequest:
		m.handleBlockRequest(p, pkt.blockRequestID)
	case packetTransfer:
		m.chain.PushTransfer(pkt.transfer)
	case packetPage:
		m.handlePagePacket(pkt)
	}
}

func (m *Manager) handleBlockPacket(p *Peer, pkt *Packet) {
	for hash, payload := range pkt.pagePayloads {
		if m.store.Has(hash) {
			continue
		}
		page := pageForPayload(pkt.block, hash)
		if page != nil && validator.ValidatePagePayload(&page.Header, payload) {
			_ = m.store.Put(hash, payload)
		}
	}

	res := m.chain.AddBlock(pkt.block, time.Now())
	switch res.Code {
	case chain.AppendOk:
		m.chain.ClearBranch(p.Address())
		m.broadcastExcept(p, PacketEnvelope(BlockPacket(pkt.block, pkt.pagePayloads)))
	case chain.AppendDuplicate:
		// Already canonical; a peer resending its tip after we rejected
		// an earlier block of theirs can still complete a branch merge.
		if merged := m.chain.TryMergeBranch(p.Address(), time.Now()); merged.IsOk() {
			m.broadcastExcept(p, PacketEnvelope(BlockPacket(pkt.block, pkt.pagePayloads)))
		}
	case chain.AppendMoreNeeded, chain.AppendInvalid:
		reqID, connected := m.chain.FeedBranchBlock(p.Address(), pkt.block)
		if connected {
			if merged := m.chain.TryMergeBranch(p.Address(), time.Now()); merged.IsOk() {
				m.broadcastExcept(p, PacketEnvelope(BlockPacket(pkt.block, pkt.pagePayloads)))
			}
			return
		}
		p.Send(PacketEnvelope(BlockRequestPacket(reqID)))
	}
}

func pageForPayload(block *domainmessage.Block, hash crypto.Hash) *domainmessage.PageEnvelope {
	for _, pg := range block.Pages {
		if hash == pg.Hash() {
			return pg
		}
	}
	return nil
}

func (m *Manager) handleBlockRequest(p *Peer, id uint64) {
	block, ok := m.chain.Block(id)
	if !ok {
		return
	}
	payloads := m.collectPagePayloads(block)
	p.Send(PacketEnvelope(BlockPacket(block, payloads)))
}

func (m *Manager) collectPagePayloads(block *domainmessage.Block) map[crypto.Hash]store.DataUnit {
	out := make(map[crypto.Hash]store.DataUnit)
	for _, pg := range block.Pages {
		h := pg.Hash()
		if data, ok := m.store.Get(h); ok {
			out[h] = data
		}
	}
	return out
}

func (m *Manager) handlePagePacket(pkt *Packet) {
	if !validator.ValidatePagePayload(&pkt.page.Header, pkt.pagePayload) {
		return
	}
	if m.chain.PushPage(pkt.page) {
		_ = m.store.Put(pkt.page.Hash(), pkt.pagePayload)
	}
}

// BroadcastBlock announces a newly mined or merged block to every
// established peer, attaching the page payloads it references.
func (m *Manager) BroadcastBlock(block *domainmessage.Block) {
	payloads := m.collectPagePayloads(block)
	m.broadcastExcept(nil, PacketEnvelope(BlockPacket(block, payloads)))
}

// BroadcastTransfer relays a locally submitted transfer to every peer.
func (m *Manager) BroadcastTransfer(tx *domainmessage.TransferEnvelope) {
	m.broadcastExcept(nil, PacketEnvelope(TransferPacket(tx)))
}

// BroadcastPage relays a locally submitted page transaction and its
// payload to every peer.
func (m *Manager) BroadcastPage(tx *domainmessage.PageEnvelope, payload store.DataUnit) {
	m.broadcastExcept(nil, PacketEnvelope(PagePacket(tx, payload)))
}

// PeerCount reports the number of established peers.
func (m *Manager) PeerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.peers)
}

func (m *Manager) broadcastExcept(except *Peer, e *Envelope) {
	m.mu.Lock()
	peers := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		if p != except {
			peers = append(peers, p)
		}
	}
	m.mu.Unlock()
	for _, p := range peers {
		p.Send(e)
	}
}
