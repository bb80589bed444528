package conn

import (
	"container/list"
	"time"

	"redisx/internal/proto"
	"redisx/resp"
)

// pendingEntry is one outstanding reply slot, in the same order as the
// commands were written to the wire. Touched only by the handler's run
// loop, so it needs no locking despite being shared conceptually across
// "the command that created it" and "the frame that resolves it" — both
// happen on the same goroutine.
type pendingEntry struct {
	deadline   time.Time // zero means no deadline
	tombstoned bool

	// exactly one of single/batch/monitor is set.
	single     *singleSlot
	batch      *batchSlot
	batchIndex int
	monitor    *proto.MonitorMessage

	// origSingle is set when the owning SingleMessage is eligible for
	// automatic retry on connection loss, so handleConnError can requeue it
	// instead of failing the caller outright.
	origSingle *proto.SingleMessage
}

type singleSlot struct {
	reply chan proto.Result
	cmd   resp.Command
}

// batchSlot is shared by every pendingEntry belonging to one BatchMessage;
// each entry fills in responses[index] and the last to arrive sends the
// collected responses on reply.
type batchSlot struct {
	reply     chan proto.BatchResult
	responses []resp.Response
	remaining int
}

// pendingQueue is the handler's single FIFO of outstanding reply slots,
// the Go analogue of a ring-buffer deque: server replies are strictly
// ordered, so the head entry always corresponds to the next frame read off
// the wire (unless it is a routed push frame, which bypasses the queue
// entirely).
type pendingQueue struct {
	l *list.List
}

func newPendingQueue() *pendingQueue { return &pendingQueue{l: list.New()} }

func (q *pendingQueue) push(e *pendingEntry) *list.Element { return q.l.PushBack(e) }

func (q *pendingQueue) popFront() *pendingEntry {
	e := q.l.Front()
	if e == nil {
		return nil
	}
	q.l.Remove(e)
	return e.Value.(*pendingEntry)
}

// earliestDeadline walks the whole queue and returns the soonest deadline
// among entries that are not tombstoned, or the zero Time if none carry a
// deadline. Entries with a zero deadline are skipped.
func (q *pendingQueue) earliestDeadline() time.Time {
	var earliest time.Time
	for e := q.l.Front(); e != nil; e = e.Next() {
		entry := e.Value.(*pendingEntry)
		if entry.tombstoned || entry.deadline.IsZero() {
			continue
		}
		if earliest.IsZero() || entry.deadline.Before(earliest) {
			earliest = entry.deadline
		}
	}
	return earliest
}

// tombstoneExpired marks every non-tombstoned entry whose deadline has
// passed, resolving its reply sink with a timeout error but leaving it in
// place so the eventual (discarded) response still consumes its wire slot.
func (q *pendingQueue) tombstoneExpired(now time.Time, timeoutErr error) {
	for e := q.l.Front(); e != nil; e = e.Next() {
		entry := e.Value.(*pendingEntry)
		if entry.tombstoned || entry.deadline.IsZero() || entry.deadline.After(now) {
			continue
		}
		entry.tombstoned = true
		resolveTimeout(entry, timeoutErr)
	}
}

func resolveTimeout(entry *pendingEntry, err error) {
	switch {
	case entry.single != nil:
		select {
		case entry.single.reply <- proto.Result{Err: err}:
		default:
		}
	case entry.batch != nil:
		b := entry.batch
		b.remaining = 0
		select {
		case b.reply <- proto.BatchResult{Err: err}:
		default:
		}
	case entry.monitor != nil:
		select {
		case entry.monitor.Reply <- proto.Result{Err: err}:
		default:
		}
	}
}

// drainWithError resolves every remaining entry with err, used when the
// connection is being torn down for good (permanent close or exhausted
// reconnect attempts).
func (q *pendingQueue) drainWithError(err error) {
	for {
		e := q.popFront()
		if e == nil {
			return
		}
		if e.tombstoned {
			continue
		}
		resolveTimeout(e, err)
	}
}

// drainAll removes and returns every entry without resolving them, so the
// caller can decide per-entry whether to retry or fail.
func (q *pendingQueue) drainAll() []*pendingEntry {
	out := make([]*pendingEntry, 0, q.l.Len())
	for {
		e := q.popFront()
		if e == nil {
			return out
		}
		out = append(out, e)
	}
}
