package redisx

import (
	"context"
	"sync"

	"redisx/internal/proto"
	"redisx/internal/rerr"
	"redisx/resp"
)

// PubSubStream delivers messages for one accumulated set of channel/pattern/
// shard-channel subscriptions. Close unsubscribes exactly the set this
// stream itself built up, best-effort (errors from the unsubscribe writes
// are not surfaced: the stream is going away regardless).
type PubSubStream struct {
	c      *Client
	stream chan proto.PushPayload

	mu       sync.Mutex
	channels map[string]struct{}
	patterns map[string]struct{}
	shards   map[string]struct{}
	closed   bool
}

const pubSubStreamBuffer = 256

// Subscribe opens a new stream subscribed to the given channels.
func (c *Client) Subscribe(ctx context.Context, channels ...string) (*PubSubStream, error) {
	return c.newPubSubStream(ctx, "SUBSCRIBE", channels, proto.TargetChannel)
}

// PSubscribe opens a new stream subscribed to the given glob patterns.
func (c *Client) PSubscribe(ctx context.Context, patterns ...string) (*PubSubStream, error) {
	return c.newPubSubStream(ctx, "PSUBSCRIBE", patterns, proto.TargetPattern)
}

// SSubscribe opens a new stream subscribed to the given shard channels.
func (c *Client) SSubscribe(ctx context.Context, channels ...string) (*PubSubStream, error) {
	return c.newPubSubStream(ctx, "SSUBSCRIBE", channels, proto.TargetShard)
}

func (c *Client) newPubSubStream(ctx context.Context, cmdName string, targets []string, kind proto.TargetKind) (*PubSubStream, error) {
	s := &PubSubStream{
		c:        c,
		stream:   make(chan proto.PushPayload, pubSubStreamBuffer),
		channels: map[string]struct{}{},
		patterns: map[string]struct{}{},
		shards:   map[string]struct{}{},
	}
	if err := s.addTargets(ctx, cmdName, targets, kind); err != nil {
		return nil, err
	}
	return s, nil
}

// Subscribe adds more channels to this stream.
func (s *PubSubStream) Subscribe(ctx context.Context, channels ...string) error {
	return s.addTargets(ctx, "SUBSCRIBE", channels, proto.TargetChannel)
}

// PSubscribe adds more glob patterns to this stream.
func (s *PubSubStream) PSubscribe(ctx context.Context, patterns ...string) error {
	return s.addTargets(ctx, "PSUBSCRIBE", patterns, proto.TargetPattern)
}

// SSubscribe adds more shard channels to this stream.
func (s *PubSubStream) SSubscribe(ctx context.Context, channels ...string) error {
	return s.addTargets(ctx, "SSUBSCRIBE", channels, proto.TargetShard)
}

func (s *PubSubStream) addTargets(ctx context.Context, cmdName string, targets []string, kind proto.TargetKind) error {
	if len(targets) == 0 {
		return nil
	}
	args := make([]any, len(targets))
	for i, t := range targets {
		args[i] = t
	}
	ack := make(chan proto.Result, 1)
	msg := proto.PubSubMessage{
		Cmd:     resp.NewCommand(cmdName, args...),
		Reply:   ack,
		Stream:  s.stream,
		Targets: targets,
		Kind:    kind,
	}
	if err := s.c.h.Send(ctx, msg); err != nil {
		return err
	}
	select {
	case r := <-ack:
		if r.Err != nil {
			return r.Err
		}
	case <-ctx.Done():
		return rerr.Wrap(rerr.KindTimeout, "redisx.PubSubStream", ctx.Err())
	}

	s.mu.Lock()
	set := s.setFor(kind)
	for _, t := range targets {
		set[t] = struct{}{}
	}
	s.mu.Unlock()
	return nil
}

func (s *PubSubStream) setFor(kind proto.TargetKind) map[string]struct{} {
	switch kind {
	case proto.TargetPattern:
		return s.patterns
	case proto.TargetShard:
		return s.shards
	default:
		return s.channels
	}
}

// Receive blocks until a push arrives, ctx is done, or the stream is closed.
func (s *PubSubStream) Receive(ctx context.Context) (proto.PushPayload, error) {
	select {
	case p, ok := <-s.stream:
		if !ok {
			return proto.PushPayload{}, rerr.New(rerr.KindConnectionLost, "redisx.PubSubStream.Receive", "stream closed")
		}
		return p, nil
	case <-ctx.Done():
		return proto.PushPayload{}, rerr.Wrap(rerr.KindTimeout, "redisx.PubSubStream.Receive", ctx.Err())
	}
}

// Close unsubscribes exactly the channels/patterns/shard-channels this
// stream accumulated. Safe to call more than once.
func (s *PubSubStream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	groups := []struct {
		cmdName string
		kind    proto.TargetKind
		names   []string
	}{
		{"UNSUBSCRIBE", proto.TargetChannel, keysOf(s.channels)},
		{"PUNSUBSCRIBE", proto.TargetPattern, keysOf(s.patterns)},
		{"SUNSUBSCRIBE", proto.TargetShard, keysOf(s.shards)},
	}
	s.mu.Unlock()

	for _, g := range groups {
		if len(g.names) == 0 {
			continue
		}
		args := make([]any, len(g.names))
		for i, n := range g.names {
			args[i] = n
		}
		ack := make(chan proto.Result, 1)
		msg := proto.PubSubMessage{
			Cmd:         resp.NewCommand(g.cmdName, args...),
			Reply:       ack,
			Stream:      s.stream,
			Targets:     g.names,
			Kind:        g.kind,
			Unsubscribe: true,
		}
		s.c.h.Send(context.Background(), msg)
	}
}

func keysOf(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
