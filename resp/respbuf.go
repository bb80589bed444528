package resp

import "sync/atomic"

// RespBuf is a reference-counted slice of network bytes owning one or more
// top-level frames. It is cheaply cloned (Retain bumps a shared counter, no
// copy) and sliceable (Slice shares the same counter as its parent). The
// refcount exists so long-lived pool buffers can be returned deterministically
// once every outstanding Response view has released its reference; Go's GC
// already keeps the backing array alive for as long as any slice references
// it, so the counter is a pooling signal, not a correctness requirement.
type RespBuf struct {
	data  []byte
	kind  BufKind
	count *int32
}

// BufKind self-describes the frame(s) a RespBuf was read for, so callers can
// tell push frames and monitor lines apart from ordinary replies without
// re-inspecting the tag byte.
type BufKind int

const (
	BufRegular BufKind = iota
	BufPush
	BufError
	BufMonitor
)

// NewRespBuf wraps data with a fresh refcount of 1.
func NewRespBuf(data []byte, kind BufKind) RespBuf {
	c := int32(1)
	return RespBuf{data: data, kind: kind, count: &c}
}

// Bytes returns the full backing slice.
func (b RespBuf) Bytes() []byte { return b.data }

// Kind reports the frame classification recorded at construction time.
func (b RespBuf) Kind() BufKind { return b.kind }

// Slice returns a new RespBuf over data[lo:hi], sharing this buffer's
// refcount so releasing either view decrements the same counter.
func (b RespBuf) Slice(lo, hi int) RespBuf {
	if b.count != nil {
		atomic.AddInt32(b.count, 1)
	}
	return RespBuf{data: b.data[lo:hi], kind: b.kind, count: b.count}
}

// Retain increments the refcount and returns the same buffer, for callers
// that hand a RespBuf to more than one long-lived consumer (e.g. a pub/sub
// stream and a log line).
func (b RespBuf) Retain() RespBuf {
	if b.count != nil {
		atomic.AddInt32(b.count, 1)
	}
	return b
}

// Release decrements the refcount. When it reaches zero the buffer is
// eligible for pool reuse via a registered release hook (none by default;
// Release is a no-op beyond bookkeeping unless WithReleaseHook is used).
func (b RespBuf) Release() {
	if b.count == nil {
		return
	}
	if atomic.AddInt32(b.count, -1) == 0 && releaseHook != nil {
		releaseHook(b.data)
	}
}

var releaseHook func([]byte)

// SetReleaseHook installs a callback invoked when a RespBuf's refcount drops
// to zero (e.g. to return the slice to a sync.Pool). Intended for advanced
// callers; the zero value (nil) means Release only does bookkeeping.
func SetReleaseHook(f func([]byte)) { releaseHook = f }
