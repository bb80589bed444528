package conn

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"redisx/internal/logx"
	"redisx/internal/proto"
	"redisx/internal/rerr"
	"redisx/resp"
)

// Handler owns one logical Redis connection: a single goroutine (run) that
// exclusively touches the socket, the pending reply queue and the push
// route table. Every other goroutine talks to it only through Send.
type Handler struct {
	cfg    Config
	dial   Dialer
	connID string
	log    *zap.SugaredLogger

	inbox   chan proto.Message
	closeCh chan struct{}
	doneCh  chan struct{}
	closeOnce sync.Once

	// closed is set once by Close (caller goroutine) and read by every
	// subsequent Send call (also caller goroutines), so it is the one piece
	// of Handler state genuinely shared across goroutines; hence the atomic
	// instead of a mutex for a single bool.
	closed atomic.Bool

	// touched only inside run(); safe without locking because exactly one
	// goroutine (run's own) ever reads or writes them. Plain uint64/bool is
	// correct here, not atomic.Uint64 — these never cross a goroutine
	// boundary.
	pending        *pendingQueue
	routes         *routeTable
	monitorSink    chan proto.MonitorEvent
	monitorActive  bool
	txnOwner       uint64
	gated          []proto.Message
	retryBuf       []proto.Message
	generation     uint64
	resp3          bool

	conn   net.Conn
	writer *bufio.Writer
	reader *frameReader
}

// NewHandler constructs a Handler without dialing. Call Start to connect and
// launch the run loop.
func NewHandler(cfg Config, dial Dialer) *Handler {
	cfg = cfg.WithDefaults()
	if dial == nil {
		dial = DefaultDialer
	}
	id := uuid.NewString()
	return &Handler{
		cfg:     cfg,
		dial:    dial,
		connID:  id,
		log:     logx.WithConn(id, cfg.Addr),
		inbox:   make(chan proto.Message, cfg.InboxSize),
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
		pending: newPendingQueue(),
		routes:  newRouteTable(),
	}
}

// Start dials and completes the handshake synchronously, returning any
// initial-connect error to the caller (there is nothing to reconnect to
// yet), then launches the background run loop.
func (h *Handler) Start(ctx context.Context) error {
	if err := h.connect(ctx); err != nil {
		return err
	}
	go h.run()
	return nil
}

// Send hands msg to the run loop's inbox. It blocks until accepted, ctx is
// done, or the handler is closed. closed is checked up front, synchronously,
// rather than folded into the select below: once Close has run, h.inbox may
// still have spare buffer capacity, and a select with multiple ready cases
// picks among them at random, so relying on closeCh alone would let a caller
// occasionally queue a message after Close instead of failing every time.
func (h *Handler) Send(ctx context.Context, msg proto.Message) error {
	if h.closed.Load() {
		return rerr.New(rerr.KindClient, "conn.Handler.Send", "handler is closed")
	}
	select {
	case h.inbox <- msg:
		return nil
	case <-ctx.Done():
		return rerr.Wrap(rerr.KindTimeout, "conn.Handler.Send", ctx.Err())
	case <-h.closeCh:
		return rerr.New(rerr.KindClient, "conn.Handler.Send", "handler is closed")
	}
}

// Close requests a graceful shutdown and waits for the run loop to exit.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		close(h.closeCh)
	})
	<-h.doneCh
}

func (h *Handler) connect(ctx context.Context) error {
	nc, err := h.dial(ctx, h.cfg)
	if err != nil {
		return rerr.Wrap(rerr.KindIO, "conn.Handler.connect", err)
	}
	result, err := runHandshake(nc, h.cfg)
	if err != nil {
		nc.Close()
		return err
	}
	if result.Warning != "" {
		h.log.Warnw("handshake warning", "warning", result.Warning)
	}
	h.conn = nc
	h.writer = bufio.NewWriter(nc)
	h.reader = newFrameReader(nc)
	h.resp3 = result.RESP3
	return nil
}

type frameOrErr struct {
	r   resp.Response
	err error
}

func (h *Handler) spawnReader(fr *frameReader) <-chan frameOrErr {
	ch := make(chan frameOrErr, 1)
	go func() {
		for {
			r, err := fr.Next()
			select {
			case ch <- frameOrErr{r, err}:
			case <-h.closeCh:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

func (h *Handler) run() {
	defer close(h.doneCh)
	frameCh := h.spawnReader(h.reader)

	for {
		var timeoutC <-chan time.Time
		if dl := h.pending.earliestDeadline(); !dl.IsZero() {
			timeoutC = time.After(time.Until(dl))
		}

		select {
		case msg, ok := <-h.inbox:
			if !ok {
				h.teardown()
				return
			}
			h.handleOutbound(msg)

		case fe := <-frameCh:
			if fe.err != nil {
				h.handleConnError(fe.err)
				if !h.reconnect() {
					h.teardown()
					return
				}
				frameCh = h.spawnReader(h.reader)
				continue
			}
			h.handleInbound(fe.r)

		case <-timeoutC:
			h.pending.tombstoneExpired(time.Now(), rerr.Timeout)

		case <-h.closeCh:
			h.teardown()
			return
		}
	}
}

func (h *Handler) teardown() {
	if h.conn != nil {
		h.conn.Close()
	}
	h.pending.drainWithError(rerr.ConnectionLost)
	h.routes.closeAll()
	if h.monitorSink != nil {
		close(h.monitorSink)
	}
}

// reconnect runs the exponential-backoff redial loop until a connection
// succeeds, the attempt budget is exhausted, or Close is called.
func (h *Handler) reconnect() bool {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.cfg.ReconnectInitialDelay
	b.MaxInterval = h.cfg.ReconnectMaxDelay
	b.MaxElapsedTime = 0

	for attempt := 1; ; attempt++ {
		if h.cfg.MaxReconnectAttempts > 0 && attempt > h.cfg.MaxReconnectAttempts {
			h.log.Errorw("giving up reconnecting", "attempts", attempt-1)
			return false
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.ConnectTimeout)
		err := h.connect(ctx)
		cancel()
		if err == nil {
			h.generation++
			h.log.Infow("reconnected", "attempt", attempt, "generation", h.generation)
			h.resubscribeAfterReconnect()
			h.flushRetryBuf()
			return true
		}
		h.log.Warnw("reconnect attempt failed", "attempt", attempt, "err", err)
		d := b.NextBackOff()
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-h.closeCh:
			t.Stop()
			return false
		}
	}
}

func (h *Handler) flushRetryBuf() {
	buf := h.retryBuf
	h.retryBuf = nil
	for _, m := range buf {
		h.handleOutbound(m)
	}
}

// resubscribeAfterReconnect replays the channel/pattern/shard subscriptions
// and MONITOR that were active before the connection dropped, using an
// errgroup to encode the three replay commands concurrently (the only part
// of this that parallelizes; the actual wire writes are still serialized on
// the new socket).
func (h *Handler) resubscribeAfterReconnect() {
	if h.cfg.AutoResubscribe {
		var g errgroup.Group
		var chanWire, patWire, shardWire []byte
		if names := mapKeys(h.routes.channels); len(names) > 0 {
			g.Go(func() error {
				chanWire = resp.EncodeCommand(resp.NewCommand("SUBSCRIBE", toAnySlice(names)...))
				return nil
			})
		}
		if names := mapKeys(h.routes.patterns); len(names) > 0 {
			g.Go(func() error {
				patWire = resp.EncodeCommand(resp.NewCommand("PSUBSCRIBE", toAnySlice(names)...))
				return nil
			})
		}
		if names := mapKeys(h.routes.shards); len(names) > 0 {
			g.Go(func() error {
				shardWire = resp.EncodeCommand(resp.NewCommand("SSUBSCRIBE", toAnySlice(names)...))
				return nil
			})
		}
		_ = g.Wait()
		for _, w := range [][]byte{chanWire, patWire, shardWire} {
			if len(w) == 0 {
				continue
			}
			if _, err := h.writer.Write(w); err != nil {
				h.log.Errorw("resubscribe write failed", "err", err)
				return
			}
		}
		if chanWire != nil || patWire != nil || shardWire != nil {
			h.writer.Flush()
		}
	}
	if h.cfg.AutoRemonitor && h.monitorSink != nil {
		cmd := resp.NewCommand("MONITOR")
		h.writer.Write(resp.EncodeCommand(cmd))
		h.writer.Flush()
		mc := proto.MonitorMessage{Cmd: cmd, Reply: make(chan proto.Result, 1), Stream: h.monitorSink}
		h.pending.push(&pendingEntry{deadline: h.deadlineFor(), monitor: &mc})
	}
}

func mapKeys(m map[string]chan proto.PushPayload) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func (h *Handler) handleConnError(err error) {
	h.log.Warnw("connection lost", "err", err)
	entries := h.pending.drainAll()
	for _, e := range entries {
		if e.tombstoned {
			continue
		}
		if e.origSingle != nil && h.shouldRetry(e.origSingle, err) {
			e.origSingle.RetryReasons = append(e.origSingle.RetryReasons, proto.RetryReason{
				Attempt: len(e.origSingle.RetryReasons) + 1,
				Err:     err,
			})
			h.retryBuf = append(h.retryBuf, *e.origSingle)
			continue
		}
		resolveTimeout(e, rerr.ConnectionLost)
	}
	h.monitorActive = false
	h.txnOwner = 0
	// gated commands queued behind a hand-managed transaction can't be
	// resumed meaningfully once the MULTI that gated them is gone.
	for _, m := range h.gated {
		failMessage(m, rerr.ConnectionLost)
	}
	h.gated = nil
}

func (h *Handler) shouldRetry(m *proto.SingleMessage, cause error) bool {
	if !proto.IsIdempotent(m.Cmd.Name) && !m.RetryOnError {
		return false
	}
	if !(h.cfg.RetryOnError || m.RetryOnError) {
		return false
	}
	return len(m.RetryReasons)+1 < h.cfg.MaxCommandAttempts
}

func failMessage(m proto.Message, err error) {
	switch t := m.(type) {
	case proto.SingleMessage:
		select {
		case t.Reply <- proto.Result{Err: err}:
		default:
		}
	case proto.BatchMessage:
		select {
		case t.Reply <- proto.BatchResult{Err: err}:
		default:
		}
	case proto.PubSubMessage:
		select {
		case t.Reply <- proto.Result{Err: err}:
		default:
		}
	case proto.MonitorMessage:
		select {
		case t.Reply <- proto.Result{Err: err}:
		default:
		}
	}
}

func (h *Handler) deadlineFor() time.Time {
	if h.cfg.CommandTimeout == 0 {
		return time.Time{}
	}
	return time.Now().Add(h.cfg.CommandTimeout)
}

func (h *Handler) handleOutbound(msg proto.Message) {
	switch m := msg.(type) {
	case proto.SingleMessage:
		h.handleSingle(m)
	case proto.BatchMessage:
		h.handleBatch(m)
	case proto.PubSubMessage:
		h.handlePubSub(m)
	case proto.MonitorMessage:
		h.handleMonitor(m)
	case proto.InvalidationMessage:
		h.routes.invalidation = m.Stream
	}
}

func (h *Handler) gateBlocks(m proto.Message) bool {
	cid := callerIDOf(m)
	return h.txnOwner != 0 && cid != 0 && cid != h.txnOwner
}

func callerIDOf(m proto.Message) uint64 {
	switch t := m.(type) {
	case proto.SingleMessage:
		return t.CallerID
	case proto.BatchMessage:
		return t.CallerID
	}
	return 0
}

func (h *Handler) handleSingle(m proto.SingleMessage) {
	if h.gateBlocks(m) {
		h.gated = append(h.gated, m)
		return
	}
	// RESET (or any command) sent while MONITOR is active takes the
	// connection back to the normal reply protocol; flip the flag before
	// writing so the reply to this very command is matched against pending
	// instead of misread as another monitor line.
	if h.monitorActive {
		h.monitorActive = false
		h.monitorSink = nil
	}
	if err := h.writeOne(m.Cmd); err != nil {
		select {
		case m.Reply <- proto.Result{Err: err}:
		default:
		}
		return
	}
	entry := &pendingEntry{
		deadline: h.deadlineFor(),
		single:   &singleSlot{reply: m.Reply, cmd: m.Cmd},
	}
	if h.shouldRetry(&m, nil) {
		mc := m
		entry.origSingle = &mc
	}
	h.pending.push(entry)

	if m.CallerID != 0 && proto.IsTransactionStart(m.Cmd) {
		h.txnOwner = m.CallerID
	} else if m.CallerID != 0 && m.CallerID == h.txnOwner && proto.IsTransactionEnd(m.Cmd) {
		h.txnOwner = 0
		h.flushGated()
	}
}

func (h *Handler) flushGated() {
	g := h.gated
	h.gated = nil
	for _, m := range g {
		h.handleOutbound(m)
	}
}

func (h *Handler) handleBatch(m proto.BatchMessage) {
	if h.gateBlocks(m) {
		h.gated = append(h.gated, m)
		return
	}
	if len(m.Cmds) == 0 {
		m.Reply <- proto.BatchResult{}
		return
	}
	if err := h.writer.Flush(); err != nil { // flush any stray buffered bytes first
		m.Reply <- proto.BatchResult{Err: rerr.Wrap(rerr.KindIO, "conn.Handler.handleBatch", err)}
		return
	}
	wire := resp.EncodeBatch(m.Cmds)
	if _, err := h.writer.Write(wire); err != nil {
		m.Reply <- proto.BatchResult{Err: rerr.Wrap(rerr.KindIO, "conn.Handler.handleBatch", err)}
		return
	}
	if err := h.writer.Flush(); err != nil {
		m.Reply <- proto.BatchResult{Err: rerr.Wrap(rerr.KindIO, "conn.Handler.handleBatch", err)}
		return
	}
	slot := &batchSlot{reply: m.Reply, responses: make([]resp.Response, len(m.Cmds)), remaining: len(m.Cmds)}
	deadline := h.deadlineFor()
	for i := range m.Cmds {
		h.pending.push(&pendingEntry{deadline: deadline, batch: slot, batchIndex: i})
	}
}

func (h *Handler) handlePubSub(m proto.PubSubMessage) {
	if m.Unsubscribe {
		h.routes.unregisterTargets(m.Targets, m.Kind)
	} else {
		h.routes.register(m.Targets, m.Kind, m.Stream)
	}
	if err := h.writeOne(m.Cmd); err != nil {
		select {
		case m.Reply <- proto.Result{Err: err}:
		default:
		}
		return
	}
	select {
	case m.Reply <- proto.Result{}:
	default:
	}
}

// handleMonitor writes MONITOR and waits for its +OK ack via the ordinary
// pending-reply path before flipping monitorActive, so that ack frame is
// matched against this pendingEntry instead of being misread as the first
// monitor line once every subsequent frame is diverted to dispatchMonitorLine.
func (h *Handler) handleMonitor(m proto.MonitorMessage) {
	if err := h.writeOne(m.Cmd); err != nil {
		select {
		case m.Reply <- proto.Result{Err: err}:
		default:
		}
		return
	}
	mc := m
	h.pending.push(&pendingEntry{deadline: h.deadlineFor(), monitor: &mc})
}

func (h *Handler) writeOne(cmd resp.Command) error {
	if _, err := h.writer.Write(resp.EncodeCommand(cmd)); err != nil {
		return rerr.Wrap(rerr.KindIO, "conn.Handler.writeOne", err)
	}
	if err := h.writer.Flush(); err != nil {
		return rerr.Wrap(rerr.KindIO, "conn.Handler.writeOne", err)
	}
	return nil
}

func (h *Handler) handleInbound(r resp.Response) {
	if r.IsPush() {
		h.dispatchPush(r)
		return
	}
	if h.monitorActive {
		h.dispatchMonitorLine(r)
		return
	}

	entry := h.pending.popFront()
	if entry == nil {
		h.log.Warnw("unsolicited frame with empty pending queue", "kind", r.Kind())
		return
	}
	if entry.tombstoned {
		return
	}
	switch {
	case entry.single != nil:
		select {
		case entry.single.reply <- proto.Result{Response: r}:
		default:
		}
	case entry.batch != nil:
		b := entry.batch
		b.responses[entry.batchIndex] = r
		b.remaining--
		if b.remaining == 0 {
			select {
			case b.reply <- proto.BatchResult{Responses: b.responses}:
			default:
			}
		}
	case entry.monitor != nil:
		if r.IsError() {
			select {
			case entry.monitor.Reply <- proto.Result{Response: r}:
			default:
			}
			return
		}
		h.monitorSink = entry.monitor.Stream
		h.monitorActive = true
		select {
		case entry.monitor.Reply <- proto.Result{Response: r}:
		default:
		}
	}
}

func (h *Handler) dispatchPush(r resp.Response) {
	el, err := r.Elements()
	if err != nil || len(el) == 0 {
		h.log.Warnw("malformed push frame", "err", err)
		return
	}
	kind := el[0].AsString()
	switch kind {
	case "message":
		if len(el) < 3 {
			return
		}
		ch := el[1].AsString()
		h.routes.sendOrEvict(h.routes.channels[ch], proto.PushPayload{Channel: ch, Payload: el[2].AsBytes()})
	case "pmessage":
		if len(el) < 4 {
			return
		}
		pat, ch := el[1].AsString(), el[2].AsString()
		h.routes.sendOrEvict(h.routes.patterns[pat], proto.PushPayload{Pattern: pat, Channel: ch, Payload: el[3].AsBytes()})
	case "smessage":
		if len(el) < 3 {
			return
		}
		ch := el[1].AsString()
		h.routes.sendOrEvict(h.routes.shards[ch], proto.PushPayload{Channel: ch, Payload: el[2].AsBytes()})
	case "invalidate":
		if len(el) < 2 {
			return
		}
		if h.routes.invalidation == nil {
			return
		}
		if el[1].IsNil() {
			nonBlockingSendPush(h.routes.invalidation, proto.PushPayload{IsFlush: true})
			return
		}
		keys, _ := el[1].Elements()
		for _, k := range keys {
			nonBlockingSendPush(h.routes.invalidation, proto.PushPayload{Channel: k.AsString()})
		}
	case "subscribe", "unsubscribe", "psubscribe", "punsubscribe", "ssubscribe", "sunsubscribe":
		h.log.Debugw("pubsub ack", "kind", kind)
	default:
		h.log.Debugw("unhandled push frame", "kind", kind)
	}
}

func (h *Handler) dispatchMonitorLine(r resp.Response) {
	ev, err := parseMonitorLine(r.AsString())
	if err != nil {
		h.log.Warnw("unparseable monitor line", "err", err)
		return
	}
	nonBlockingSendMonitor(h.monitorSink, ev)
}
