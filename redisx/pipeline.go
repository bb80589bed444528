package redisx

import (
	"context"

	"redisx/internal/rerr"
	"redisx/resp"
)

// Pipeline buffers commands client-side and writes them as a single batch on
// Execute, returning their responses in queue order. Forgotten commands are
// still sent (and still occupy a wire slot) but excluded from Execute's
// result, for callers that queue a housekeeping command (EXPIRE, say) whose
// reply they never want to look at.
type Pipeline struct {
	c        *Client
	cmds     []resp.Command
	forgotten []bool
}

// Pipeline starts a new, empty pipeline bound to this client.
func (c *Client) Pipeline() *Pipeline {
	return &Pipeline{c: c}
}

// Queue appends cmd, including its response in Execute's result.
func (p *Pipeline) Queue(cmd resp.Command) *Pipeline {
	p.cmds = append(p.cmds, cmd)
	p.forgotten = append(p.forgotten, false)
	return p
}

// Forget appends cmd but drops its response from Execute's result.
func (p *Pipeline) Forget(cmd resp.Command) *Pipeline {
	p.cmds = append(p.cmds, cmd)
	p.forgotten = append(p.forgotten, true)
	return p
}

// Len reports how many commands are currently queued.
func (p *Pipeline) Len() int { return len(p.cmds) }

// Execute sends every queued command as one batch and returns the responses
// of the non-Forgotten ones, in queue order.
func (p *Pipeline) Execute(ctx context.Context) ([]resp.Response, error) {
	if len(p.cmds) == 0 {
		return nil, nil
	}
	responses, err := p.c.SendBatch(ctx, p.cmds)
	if err != nil {
		return nil, err
	}
	if len(responses) != len(p.cmds) {
		return nil, rerr.New(rerr.KindProtocolDecode, "redisx.Pipeline.Execute", "server returned a different number of replies than commands queued")
	}
	out := make([]resp.Response, 0, len(responses))
	for i, r := range responses {
		if p.forgotten[i] {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
