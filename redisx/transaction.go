package redisx

import (
	"context"

	"redisx/internal/proto"
	"redisx/internal/rerr"
	"redisx/resp"
)

// Transaction buffers commands client-side exactly like Pipeline, but Exec
// wraps them in MULTI...EXEC and sends the whole thing as one atomic batch.
// Because nothing reaches the wire until Exec, there is no connection-level
// state to abandon: Discard only clears the local buffer. A Transaction left
// to the garbage collector without calling Exec or Discard has simply never
// sent anything, so it needs no finalizer.
type Transaction struct {
	c         *Client
	cmds      []resp.Command
	forgotten []bool
	done      bool
}

// Transaction starts a new, empty buffered transaction bound to this client.
func (c *Client) Transaction() *Transaction {
	return &Transaction{c: c}
}

// Queue appends cmd, including its response in Exec's result.
func (t *Transaction) Queue(cmd resp.Command) *Transaction {
	t.cmds = append(t.cmds, cmd)
	t.forgotten = append(t.forgotten, false)
	return t
}

// Forget appends cmd but drops its response from Exec's result.
func (t *Transaction) Forget(cmd resp.Command) *Transaction {
	t.cmds = append(t.cmds, cmd)
	t.forgotten = append(t.forgotten, true)
	return t
}

// Discard clears the buffered commands without contacting the server.
func (t *Transaction) Discard() {
	t.cmds = nil
	t.forgotten = nil
	t.done = true
}

// Exec sends MULTI, the buffered commands, and EXEC as one batch, then
// unwraps the QUEUED acknowledgements and the EXEC reply. A queue-time
// rejection (e.g. wrong arity) aborts the whole transaction, surfaced as the
// EXECABORT error Redis returns for EXEC; a WATCH-driven abort surfaces as a
// nil EXEC reply, reported here as a KindRedis error naming the cause.
func (t *Transaction) Exec(ctx context.Context) ([]resp.Response, error) {
	if t.done {
		return nil, rerr.New(rerr.KindClient, "redisx.Transaction.Exec", "transaction already executed or discarded")
	}
	t.done = true
	if len(t.cmds) == 0 {
		return nil, nil
	}

	wire := make([]resp.Command, 0, len(t.cmds)+2)
	wire = append(wire, resp.NewCommand("MULTI"))
	wire = append(wire, t.cmds...)
	wire = append(wire, resp.NewCommand("EXEC"))

	reply := make(chan proto.BatchResult, 1)
	if err := t.c.h.Send(ctx, proto.BatchMessage{Cmds: wire, Reply: reply}); err != nil {
		return nil, err
	}
	var batch proto.BatchResult
	select {
	case batch = <-reply:
	case <-ctx.Done():
		return nil, rerr.Wrap(rerr.KindTimeout, "redisx.Transaction.Exec", ctx.Err())
	}
	if batch.Err != nil {
		return nil, batch.Err
	}
	return t.unwrap(batch.Responses)
}

func (t *Transaction) unwrap(responses []resp.Response) ([]resp.Response, error) {
	n := len(t.cmds)
	if len(responses) != n+2 {
		return nil, rerr.New(rerr.KindProtocolDecode, "redisx.Transaction.Exec", "server returned an unexpected number of replies for MULTI/EXEC")
	}

	multiAck := responses[0]
	if multiAck.IsError() {
		code, msg := multiAck.Error()
		return nil, rerr.Redis("redisx.Transaction.Exec(MULTI)", code, msg)
	}

	execReply := responses[n+1]
	if execReply.IsError() {
		code, msg := execReply.Error()
		return nil, rerr.Redis("redisx.Transaction.Exec(EXEC)", code, msg)
	}
	if execReply.IsNil() {
		return nil, rerr.New(rerr.KindRedis, "redisx.Transaction.Exec(EXEC)", "transaction aborted, likely a watched key changed")
	}

	els, err := execReply.Elements()
	if err != nil {
		return nil, err
	}
	if len(els) != n {
		return nil, rerr.New(rerr.KindProtocolDecode, "redisx.Transaction.Exec", "EXEC reply length does not match queued command count")
	}
	out := make([]resp.Response, 0, n)
	for i, r := range els {
		if t.forgotten[i] {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
