package chain

import (
	"sort"

	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
)

// pendingEntry is a single queued transaction together with the
// priority it was inserted under. Priority is fixed at insertion time,
// not recomputed on access.
type pendingEntry struct {
	tx       domainmessage.Tx
	sender   crypto.Address
	priority float64 // fee per byte
}

// pendingQueue is the pending-transaction queue, ordered by fee per
// byte. It is kept as a position-ordered slice rather than a
// container/heap priority queue: the per-sender ascending-id placement
// rule needs a stable total order callers can scan and insert into at
// an arbitrary interior position, which a heap does not expose.
type pendingQueue struct {
	entries []*pendingEntry
	byHash  map[crypto.Hash]*pendingEntry
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{byHash: make(map[crypto.Hash]*pendingEntry)}
}

func feePerByte(tx domainmessage.Tx) float64 {
	n := tx.ByteLen()
	if n == 0 {
		return 0
	}
	return float64(tx.FeeAmount()) / float64(n)
}

// push inserts tx, returning false if its hash is already queued. The
// insertion point is the maximum of (the first position whose priority
// is lower than tx's) and (one past the last position occupied by a
// lower-id transaction from the same sender), moved forward if needed
// so that it never lands behind a higher-id transaction from the same
// sender.
func (q *pendingQueue) push(tx domainmessage.Tx) bool {
	h := tx.Hash()
	if _, ok := q.byHash[h]; ok {
		return false
	}
	sender := tx.SenderAddress()
	priority := feePerByte(tx)

	byPriority := sort.Search(len(q.entries), func(i int) bool {
		return q.entries[i].priority < priority
	})

	afterSameSender := 0
	for i, e := range q.entries {
		if e.sender == sender && e.tx.SenderID() < tx.SenderID() {
			afterSameSender = i + 1
		}
	}

	pos := byPriority
	if afterSameSender > pos {
		pos = afterSameSender
	}
	for i, e := range q.entries[:pos] {
		if e.sender == sender && e.tx.SenderID() > tx.SenderID() {
			pos = i
			break
		}
	}

	entry := &pendingEntry{tx: tx, sender: sender, priority: priority}
	q.entries = append(q.entries, nil)
	copy(q.entries[pos+1:], q.entries[pos:])
	q.entries[pos] = entry
	q.byHash[h] = entry
	return true
}

// next returns up to k queued transactions in priority order. The
// insertion invariant above guarantees a sender's entries already
// appear in ascending sender-id order by position, so a straight
// front-to-back take never surfaces a transaction ahead of a
// lower-id, same-sender predecessor still sitting in the queue.
func (q *pendingQueue) next(k int) []domainmessage.Tx {
	if k > len(q.entries) {
		k = len(q.entries)
	}
	out := make([]domainmessage.Tx, k)
	for i := 0; i < k; i++ {
		out[i] = q.entries[i].tx
	}
	return out
}

// remove drops tx (by hash) from the queue, used once its containing
// block is accepted.
func (q *pendingQueue) remove(h crypto.Hash) {
	if _, ok := q.byHash[h]; !ok {
		return
	}
	delete(q.byHash, h)
	for i, e := range q.entries {
		if e.tx.Hash() == h {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// purge drops every queued transaction sent by addr, used when a block
// validation failure against addr's balance invalidates its pending
// entries.
func (q *pendingQueue) purge(addr crypto.Address) {
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.sender == addr {
			delete(q.byHash, e.tx.Hash())
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
}

func (q *pendingQueue) len() int { return len(q.entries) }

// purgeIncluded removes every transaction of blk from the queue, used
// once blk becomes canonical.
func (q *pendingQueue) purgeIncluded(blk *domainmessage.Block) {
	for _, t := range blk.Transfers {
		q.remove(t.Hash())
	}
	for _, p := range blk.Pages {
		q.remove(p.Hash())
	}
}
