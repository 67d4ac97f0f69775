package cmdchannel

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/dagchain/pagechain/chain"
	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
	"github.com/dagchain/pagechain/internal/panics"
	"github.com/dagchain/pagechain/logger"
	"github.com/dagchain/pagechain/store"
)

var log, _ = logger.Get(logger.SubsystemTags.CMDC)

var spawn = panics.GoroutineWrapperFunc(log)

// PeerCounter reports the node's currently connected peer count, backing
// the Statistics reply.
type PeerCounter interface {
	PeerCount() int
}

// Broadcaster relays locally submitted transactions to the gossip
// network. A narrow interface keeps cmdchannel from importing network
// directly.
type Broadcaster interface {
	BroadcastTransfer(tx *domainmessage.TransferEnvelope)
	BroadcastPage(tx *domainmessage.PageEnvelope, payload store.DataUnit)
}

// Server is the command channel listener: one request, fully handled,
// then one response, per connection round-trip.
type Server struct {
	chain *chain.Chain
	store *store.Store
	peers PeerCounter
	net   Broadcaster

	listener net.Listener
	quit     chan struct{}
	wg       sync.WaitGroup
	exiting  atomic.Bool
}

// NewServer returns a command channel server over c and s, reporting
// peer counts from peers and relaying submissions through net.
func NewServer(c *chain.Chain, s *store.Store, peers PeerCounter, net Broadcaster) *Server {
	return &Server{chain: c, store: s, peers: peers, net: net, quit: make(chan struct{})}
}

// Listen binds bindAddr and starts serving connections.
func (s *Server) Listen(bindAddr string) error {
	l, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return errors.Wrap(err, "binding command channel listener")
	}
	s.listener = l
	s.wg.Add(1)
	spawn("cmdchannel-accept", func() { defer s.wg.Done(); s.acceptLoop() })
	return nil
}

// Stop closes the listener and waits for in-flight connections to drain.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Errorf("accept: %v", err)
				return
			}
		}
		s.wg.Add(1)
		spawn("cmdchannel-conn", func() { defer s.wg.Done(); s.serveConn(conn) })
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		req, err := readRequestFrame(conn)
		if err != nil {
			return
		}
		resp := s.handle(req)
		if err := writeResponseFrame(conn, resp); err != nil {
			return
		}
		if req.kind == reqExit {
			return
		}
	}
}

func (s *Server) handle(req *Request) *Response {
	switch req.kind {
	case reqBalance:
		return BalanceResponse(s.chain.WalletStatus(req.addr))
	case reqSend:
		return s.handleSend(req)
	case reqUpdatePage:
		return s.handleUpdatePage(req)
	case reqTransactionInfo:
		tx, blk, ok := s.chain.FindTransaction(req.txHash)
		if !ok {
			return NotFoundTransactionInfoResponse()
		}
		return TransactionInfoResponse(TxLocation{Tx: tx, BlockID: blk.BlockID})
	case reqTransactionHistory:
		history := s.chain.TransactionHistory(req.addr)
		locs := make([]TxLocation, len(history))
		for i, h := range history {
			locs[i] = TxLocation{Tx: h.Tx, BlockID: h.Block.BlockID}
		}
		return TransactionHistoryResponse(locs)
	case reqPageUpdates:
		return PageUpdatesResponse(s.chain.PageUpdates(req.addr))
	case reqPageData:
		data, ok := s.store.Get(req.txHash)
		return PageDataResponse(data, ok)
	case reqBlocks:
		return BlocksResponse(s.chain.BlocksRange(req.from, req.until))
	case reqTopBlock:
		top, _ := s.chain.Top()
		return TopBlockResponse(top)
	case reqStatistics:
		return s.handleStatistics()
	case reqExit:
		s.exiting.Store(true)
		return ExitingResponse()
	default:
		return FailedResponse("unknown request")
	}
}

func (s *Server) handleSend(req *Request) *Response {
	priv, err := crypto.LoadPrivateKeyDER(req.fromKeyDER)
	if err != nil {
		return FailedResponse("loading key: " + err.Error())
	}
	pub, err := priv.PublicKey()
	if err != nil {
		return FailedResponse("deriving public key: " + err.Error())
	}
	sender := crypto.AddressOf(pub)
	status := s.chain.WalletStatus(sender)

	header := domainmessage.Transfer{
		ID:     status.MaxID + 1,
		To:     req.to,
		Amount: req.amount,
		FeeAmt: req.fee,
	}
	tx, err := signTransfer(priv, pub, header)
	if err != nil {
		return FailedResponse("signing transfer: " + err.Error())
	}
	if !s.chain.PushTransfer(tx) {
		return FailedResponse("transfer rejected by pending queue")
	}
	s.net.BroadcastTransfer(tx)
	return SentResponse(tx.Hash())
}

func (s *Server) handleUpdatePage(req *Request) *Response {
	priv, err := crypto.LoadPrivateKeyDER(req.fromKeyDER)
	if err != nil {
		return FailedResponse("loading key: " + err.Error())
	}
	pub, err := priv.PublicKey()
	if err != nil {
		return FailedResponse("deriving public key: " + err.Error())
	}
	sender := crypto.AddressOf(pub)
	status := s.chain.WalletStatus(sender)

	header := domainmessage.Page{
		ID:         status.MaxID + 1,
		DataHashes: chunkHashes(req.bytes),
		DataLength: uint32(len(req.bytes)),
		FeeAmt:     req.fee,
	}
	tx, err := signPage(priv, pub, header)
	if err != nil {
		return FailedResponse("signing page: " + err.Error())
	}
	if !s.chain.PushPage(tx) {
		return FailedResponse("page rejected by pending queue")
	}
	if err := s.store.Put(tx.Hash(), req.bytes); err != nil {
		return FailedResponse("storing page payload: " + err.Error())
	}
	s.net.BroadcastPage(tx, req.bytes)
	return PageUpdatedResponse(tx.Hash())
}

func (s *Server) handleStatistics() *Response {
	var height uint64
	var target domainmessage.CompactTarget
	if top, ok := s.chain.Top(); ok {
		height = top.BlockID
		target = top.Target
	} else {
		target = domainmessage.MinTarget
	}
	return StatisticsResponse(Statistics{
		ChainHeight:   height,
		PeerCount:     uint32(s.peers.PeerCount()),
		MempoolSize:   uint32(s.chain.PendingCount()),
		CurrentTarget: target,
	})
}

func chunkHashes(data []byte) []crypto.Hash {
	count := (len(data) + domainmessage.PageChunkSize - 1) / domainmessage.PageChunkSize
	if len(data) == 0 {
		return nil
	}
	hashes := make([]crypto.Hash, count)
	for i := range hashes {
		start := i * domainmessage.PageChunkSize
		end := start + domainmessage.PageChunkSize
		if end > len(data) {
			end = len(data)
		}
		hashes[i] = crypto.HashData(data[start:end])
	}
	return hashes
}
