package redisx

import (
	"context"

	"redisx/internal/proto"
	"redisx/internal/rerr"
	"redisx/resp"
)

// MonitorStream delivers every command line MONITOR observes across the
// whole server. Only one may usefully be active per connection, since the
// protocol dedicates the whole connection to the feed once MONITOR is sent.
type MonitorStream struct {
	c      *Client
	stream chan proto.MonitorEvent
}

const monitorStreamBuffer = 1024

// Monitor issues MONITOR and returns a stream of subsequent events.
func (c *Client) Monitor(ctx context.Context) (*MonitorStream, error) {
	stream := make(chan proto.MonitorEvent, monitorStreamBuffer)
	ack := make(chan proto.Result, 1)
	msg := proto.MonitorMessage{Cmd: resp.NewCommand("MONITOR"), Reply: ack, Stream: stream}
	if err := c.h.Send(ctx, msg); err != nil {
		return nil, err
	}
	select {
	case r := <-ack:
		if r.Err != nil {
			return nil, r.Err
		}
	case <-ctx.Done():
		return nil, rerr.Wrap(rerr.KindTimeout, "redisx.Client.Monitor", ctx.Err())
	}
	return &MonitorStream{c: c, stream: stream}, nil
}

// Receive blocks until one monitor event arrives, ctx is done, or the
// underlying connection closes.
func (s *MonitorStream) Receive(ctx context.Context) (proto.MonitorEvent, error) {
	select {
	case ev, ok := <-s.stream:
		if !ok {
			return proto.MonitorEvent{}, rerr.New(rerr.KindConnectionLost, "redisx.MonitorStream.Receive", "stream closed")
		}
		return ev, nil
	case <-ctx.Done():
		return proto.MonitorEvent{}, rerr.Wrap(rerr.KindTimeout, "redisx.MonitorStream.Receive", ctx.Err())
	}
}

// Close issues RESET to take the connection back out of monitor mode.
// Best-effort: the connection is typically discarded after monitoring
// anyway since RESET also clears any other per-connection state.
func (s *MonitorStream) Close() {
	reply := make(chan proto.Result, 1)
	s.c.h.Send(context.Background(), proto.SingleMessage{Cmd: resp.NewCommand("RESET"), Reply: reply})
}
