package conn

import "redisx/internal/proto"

// routeTable tracks where out-of-band push frames go: channel name / pattern
// / shard-channel name to a stream sink, plus the singleton monitor and
// client-tracking invalidation sinks. Touched only by the handler's run
// loop.
type routeTable struct {
	channels map[string]chan proto.PushPayload
	patterns map[string]chan proto.PushPayload
	shards   map[string]chan proto.PushPayload

	invalidation chan proto.PushPayload
}

func newRouteTable() *routeTable {
	return &routeTable{
		channels: map[string]chan proto.PushPayload{},
		patterns: map[string]chan proto.PushPayload{},
		shards:   map[string]chan proto.PushPayload{},
	}
}

func (rt *routeTable) tableFor(kind proto.TargetKind) map[string]chan proto.PushPayload {
	switch kind {
	case proto.TargetPattern:
		return rt.patterns
	case proto.TargetShard:
		return rt.shards
	default:
		return rt.channels
	}
}

func (rt *routeTable) register(targets []string, kind proto.TargetKind, sink chan proto.PushPayload) {
	m := rt.tableFor(kind)
	for _, t := range targets {
		m[t] = sink
	}
}

// unregisterTargets drops the named routes, used when handling an
// UNSUBSCRIBE/PUNSUBSCRIBE/SUNSUBSCRIBE request.
func (rt *routeTable) unregisterTargets(targets []string, kind proto.TargetKind) {
	m := rt.tableFor(kind)
	for _, t := range targets {
		delete(m, t)
	}
}

// unregisterSink drops every route entry currently pointing at sink (used by
// sendOrEvict when a send finds the stream's buffer full).
func (rt *routeTable) unregisterSink(sink chan proto.PushPayload) {
	for k, v := range rt.channels {
		if v == sink {
			delete(rt.channels, k)
		}
	}
	for k, v := range rt.patterns {
		if v == sink {
			delete(rt.patterns, k)
		}
	}
	for k, v := range rt.shards {
		if v == sink {
			delete(rt.shards, k)
		}
	}
}

// closeAll closes every distinct sink channel, signalling EOF to stream
// readers (used on permanent shutdown).
func (rt *routeTable) closeAll() {
	seen := map[chan proto.PushPayload]bool{}
	for _, sinks := range []map[string]chan proto.PushPayload{rt.channels, rt.patterns, rt.shards} {
		for _, s := range sinks {
			if !seen[s] {
				seen[s] = true
				close(s)
			}
		}
	}
	if rt.invalidation != nil && !seen[rt.invalidation] {
		close(rt.invalidation)
	}
}

func nonBlockingSendPush(sink chan proto.PushPayload, p proto.PushPayload) {
	if sink == nil {
		return
	}
	select {
	case sink <- p:
	default:
	}
}

// sendOrEvict delivers p to sink and, if the stream's reader is stuck badly
// enough that the buffered channel is full, unregisters every route pointing
// at sink instead of leaving it wired to a consumer that will never catch up.
func (rt *routeTable) sendOrEvict(sink chan proto.PushPayload, p proto.PushPayload) {
	if sink == nil {
		return
	}
	select {
	case sink <- p:
	default:
		rt.unregisterSink(sink)
	}
}

func nonBlockingSendMonitor(sink chan proto.MonitorEvent, ev proto.MonitorEvent) {
	if sink == nil {
		return
	}
	select {
	case sink <- ev:
	default:
	}
}
