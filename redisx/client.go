package redisx

import (
	"context"

	"redisx/internal/conn"
	"redisx/internal/proto"
	"redisx/internal/rerr"
	"redisx/resp"
)

// Client is a handle onto one multiplexed connection. Every method is safe
// to call from any number of goroutines concurrently; the underlying
// network handler serializes access to the socket.
type Client struct {
	h *conn.Handler
}

// SendOpts tunes one Send call, overriding the client-wide retry policy.
type SendOpts struct {
	// ForceRetry allows automatic retry on connection loss even for a
	// command internal/proto doesn't consider idempotent. The caller is
	// asserting that repeating this specific call is safe.
	ForceRetry bool
}

// New connects a fresh Client using the given configuration, blocking until
// the initial handshake completes or ctx is done.
func New(ctx context.Context, cfg Config) (*Client, error) {
	h := conn.NewHandler(cfg, nil)
	if err := h.Start(ctx); err != nil {
		return nil, err
	}
	return &Client{h: h}, nil
}

// Dial parses uri and connects, combining ParseURI and New.
func Dial(ctx context.Context, uri string) (*Client, error) {
	cfg, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

// Close stops the network handler, failing every outstanding call with a
// connection-lost error and closing every open stream.
func (c *Client) Close() {
	c.h.Close()
}

// Send issues one command and waits for its reply.
func (c *Client) Send(ctx context.Context, cmd resp.Command, opts ...SendOpts) (resp.Response, error) {
	var o SendOpts
	if len(opts) > 0 {
		o = opts[0]
	}
	reply := make(chan proto.Result, 1)
	msg := proto.SingleMessage{Cmd: cmd, Reply: reply, RetryOnError: o.ForceRetry}
	if err := c.h.Send(ctx, msg); err != nil {
		return resp.Response{}, err
	}
	select {
	case r := <-reply:
		return unwrapResult(r)
	case <-ctx.Done():
		return resp.Response{}, rerr.Wrap(rerr.KindTimeout, "redisx.Client.Send", ctx.Err())
	}
}

// SendAndForget writes cmd without waiting for a reply. The reply (including
// any server error) is silently discarded once it arrives.
func (c *Client) SendAndForget(cmd resp.Command) error {
	reply := make(chan proto.Result, 1)
	return c.h.Send(context.Background(), proto.SingleMessage{Cmd: cmd, Reply: reply})
}

// SendBatch writes every command back-to-back as one atomic write and
// returns their responses in order. Unlike a Pipeline, there is no
// client-side buffering step; this is the one-shot form.
func (c *Client) SendBatch(ctx context.Context, cmds []resp.Command) ([]resp.Response, error) {
	reply := make(chan proto.BatchResult, 1)
	if err := c.h.Send(ctx, proto.BatchMessage{Cmds: cmds, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case r := <-reply:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Responses, nil
	case <-ctx.Done():
		return nil, rerr.Wrap(rerr.KindTimeout, "redisx.Client.SendBatch", ctx.Err())
	}
}

func unwrapResult(r proto.Result) (resp.Response, error) {
	if r.Err != nil {
		return resp.Response{}, r.Err
	}
	if r.Response.IsError() {
		code, msg := r.Response.Error()
		return resp.Response{}, rerr.Redis("redisx.Client.Send", code, msg)
	}
	return r.Response, nil
}
