// Package proto defines the message shapes a client handle hands to the
// network handler, and the typed results that flow back: a command plus a
// one-shot result channel, generalized across single commands, batches,
// pub/sub subscriptions, monitor feeds, and invalidation pushes.
package proto

import "redisx/resp"

// RetryReason records one transient-failure/retry cycle a message went
// through, surfaced to callers that want to observe flakiness.
type RetryReason struct {
	Attempt int
	Err     error
}

// Result is what a Single message's reply sink receives.
type Result struct {
	Response resp.Response
	Err      error
}

// BatchResult is what a Batch message's reply sink receives: one Response
// per command, in command order.
type BatchResult struct {
	Responses []resp.Response
	Err       error
}

// PushPayload is one routed out-of-band frame: a Pub/Sub message or a
// client-tracking invalidation.
type PushPayload struct {
	Pattern string // set for PSUBSCRIBE-routed messages, empty otherwise
	Channel string
	Payload []byte
	IsFlush bool // true for a cache-flush invalidation (nil payload array)
}

// MonitorEvent is one parsed MONITOR line.
type MonitorEvent struct {
	UnixTimeMs  int64
	Database    int
	PeerAddr    string
	CommandName string
	Argv        []string
}

// Message is the sum type the network handler's inbox channel carries.
type Message interface {
	isMessage()
	callerID() uint64
}

type base struct {
	// CallerID gates exclusive use of the connection between MULTI and
	// EXEC/DISCARD for callers that manage a transaction by hand instead of
	// through the Transaction helper (which instead buffers client-side and
	// sends one atomic Batch). Zero means "ungated": never queued behind
	// another caller's transaction.
	CallerID uint64
}

func (b base) callerID() uint64 { return b.CallerID }

// SingleMessage is one command with a one-shot reply sink.
type SingleMessage struct {
	base
	Cmd          resp.Command
	Reply        chan Result
	RetryOnError bool
	RetryReasons []RetryReason
}

func (SingleMessage) isMessage() {}

// BatchMessage is N commands with one reply sink receiving an ordered
// sequence of N responses, used by pipelines and (buffered) transactions.
type BatchMessage struct {
	base
	Cmds         []resp.Command
	Reply        chan BatchResult
	RetryOnError bool
}

func (BatchMessage) isMessage() {}

// TargetKind distinguishes the three Pub/Sub addressing schemes, since each
// keeps its own route table and its own (un)subscribe command family.
type TargetKind int

const (
	TargetChannel TargetKind = iota
	TargetPattern
	TargetShard
)

// PubSubMessage is a (un)SUBSCRIBE/(un)PSUBSCRIBE/(un)SSUBSCRIBE command
// whose acknowledgement goes to Reply and whose subsequent push payloads for
// the subscribed channels/patterns go to Stream. With Unsubscribe set, the
// handler drops the existing routes named by Targets (in Kind's table)
// instead of adding new ones.
type PubSubMessage struct {
	base
	Cmd         resp.Command
	Reply       chan Result
	Stream      chan PushPayload
	Targets     []string
	Kind        TargetKind
	Unsubscribe bool
}

func (PubSubMessage) isMessage() {}

// MonitorMessage is the MONITOR command plus a reply sink for the
// acknowledgement and a stream sink for subsequent event lines.
type MonitorMessage struct {
	base
	Cmd    resp.Command
	Reply  chan Result
	Stream chan MonitorEvent
}

func (MonitorMessage) isMessage() {}

// InvalidationMessage carries no command; it only registers Stream to
// receive client-tracking invalidation pushes.
type InvalidationMessage struct {
	base
	Stream chan PushPayload
}

func (InvalidationMessage) isMessage() {}

// IsTransactionStart/End let the handler recognize the gate-opening and
// gate-closing commands of a hand-managed transaction without hardcoding
// the check in multiple places.
func IsTransactionStart(cmd resp.Command) bool { return eqFold(cmd.Name, "MULTI") }
func IsTransactionEnd(cmd resp.Command) bool {
	return eqFold(cmd.Name, "EXEC") || eqFold(cmd.Name, "DISCARD")
}

func eqFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
