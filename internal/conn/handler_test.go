package conn

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"redisx/internal/logx"
	"redisx/internal/proto"
	"redisx/resp"
)

func init() {
	logx.Disable()
}

// fakeServer wraps the server side of a net.Pipe connection with enough
// RESP plumbing to answer a handshake and subsequent commands by name.
type fakeServer struct {
	nc net.Conn
	fr *frameReader
}

func newFakeServer(nc net.Conn) *fakeServer {
	return &fakeServer{nc: nc, fr: newFrameReader(nc)}
}

func (s *fakeServer) readCmdName(t *testing.T) string {
	t.Helper()
	r, err := s.fr.Next()
	require.NoError(t, err)
	el, err := r.Elements()
	require.NoError(t, err)
	require.NotEmpty(t, el)
	return el[0].AsString()
}

func (s *fakeServer) readAll(t *testing.T) resp.Response {
	t.Helper()
	r, err := s.fr.Next()
	require.NoError(t, err)
	return r
}

func (s *fakeServer) write(t *testing.T, wire string) {
	t.Helper()
	_, err := s.nc.Write([]byte(wire))
	require.NoError(t, err)
}

// serveHandshake answers a HELLO 3 with a minimal RESP3 map reply, enough
// for runHandshake to treat the connection as RESP3 with no warning.
func (s *fakeServer) serveHandshake(t *testing.T) {
	t.Helper()
	name := s.readCmdName(t)
	require.Equal(t, "HELLO", name)
	s.write(t, "%2\r\n+proto\r\n:3\r\n+mode\r\n+standalone\r\n")
}

func pipeDialer(serverConn net.Conn) Dialer {
	return func(ctx context.Context, cfg Config) (net.Conn, error) {
		return serverConn, nil
	}
}

func newTestHandler(t *testing.T) (*Handler, *fakeServer) {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	srv := newFakeServer(serverSide)

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.serveHandshake(t)
	}()

	h := NewHandler(Config{Addr: "pipe"}, pipeDialer(clientSide))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.Start(ctx))
	<-done
	return h, srv
}

func TestHandler_SingleCommandRoundTrip(t *testing.T) {
	h, srv := newTestHandler(t)
	defer h.Close()

	replyCh := make(chan proto.Result, 1)
	go func() {
		name := srv.readCmdName(t)
		require.Equal(t, "GET", name)
		srv.write(t, "$5\r\nhello\r\n")
	}()

	msg := proto.SingleMessage{Cmd: resp.NewCommand("GET", "k"), Reply: replyCh}
	require.NoError(t, h.Send(context.Background(), msg))

	select {
	case r := <-replyCh:
		require.NoError(t, r.Err)
		require.Equal(t, "hello", r.Response.AsString())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
	}
}

func TestHandler_BatchPreservesOrder(t *testing.T) {
	h, srv := newTestHandler(t)
	defer h.Close()

	go func() {
		require.Equal(t, "SET", srv.readCmdName(t))
		require.Equal(t, "SET", srv.readCmdName(t))
		require.Equal(t, "GET", srv.readCmdName(t))
		srv.write(t, "+OK\r\n+OK\r\n$2\r\nv1\r\n")
	}()

	replyCh := make(chan proto.BatchResult, 1)
	msg := proto.BatchMessage{
		Cmds: []resp.Command{
			resp.NewCommand("SET", "k1", "v1"),
			resp.NewCommand("SET", "k2", "v2"),
			resp.NewCommand("GET", "k1"),
		},
		Reply: replyCh,
	}
	require.NoError(t, h.Send(context.Background(), msg))

	select {
	case r := <-replyCh:
		require.NoError(t, r.Err)
		require.Len(t, r.Responses, 3)
		require.Equal(t, "v1", r.Responses[2].AsString())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch reply")
	}
}

func TestHandler_PubSubRoutesPushMessages(t *testing.T) {
	h, srv := newTestHandler(t)
	defer h.Close()

	go func() {
		require.Equal(t, "SUBSCRIBE", srv.readCmdName(t))
		srv.write(t, ">3\r\n+subscribe\r\n+news\r\n:1\r\n")
		srv.write(t, ">3\r\n+message\r\n+news\r\n$6\r\nhello!\r\n")
	}()

	ack := make(chan proto.Result, 1)
	stream := make(chan proto.PushPayload, 4)
	msg := proto.PubSubMessage{
		Cmd:     resp.NewCommand("SUBSCRIBE", "news"),
		Reply:   ack,
		Stream:  stream,
		Targets: []string{"news"},
		Kind:    proto.TargetChannel,
	}
	require.NoError(t, h.Send(context.Background(), msg))

	select {
	case r := <-ack:
		require.NoError(t, r.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscribe ack")
	}

	select {
	case p := <-stream:
		require.Equal(t, "news", p.Channel)
		require.Equal(t, "hello!", string(p.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pushed message")
	}
}

func TestHandler_CommandTimeoutTombstonesEntry(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	srv := newFakeServer(serverSide)
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.serveHandshake(t)
	}()

	h := NewHandler(Config{Addr: "pipe", CommandTimeout: 30 * time.Millisecond}, pipeDialer(clientSide))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.Start(ctx))
	<-done
	defer h.Close()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		srv.readCmdName(t) // never replies, simulating a stuck server
	}()

	replyCh := make(chan proto.Result, 1)
	require.NoError(t, h.Send(context.Background(), proto.SingleMessage{Cmd: resp.NewCommand("GET", "k"), Reply: replyCh}))

	select {
	case r := <-replyCh:
		require.Error(t, r.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for timeout resolution")
	}
	<-readDone
}

// sequentialDialer returns conns[0] on the first dial, conns[1] on the
// second, and so on, simulating an initial connect followed by a redial
// after a drop.
func sequentialDialer(conns ...net.Conn) Dialer {
	var calls int32
	return func(ctx context.Context, cfg Config) (net.Conn, error) {
		i := atomic.AddInt32(&calls, 1) - 1
		return conns[i], nil
	}
}

func TestHandler_ReconnectsAfterConnectionDropAndResumesCommands(t *testing.T) {
	client1, server1 := net.Pipe()
	client2, server2 := net.Pipe()
	srv1 := newFakeServer(server1)
	srv2 := newFakeServer(server2)

	handshake1Done := make(chan struct{})
	go func() {
		defer close(handshake1Done)
		srv1.serveHandshake(t)
	}()

	h := NewHandler(Config{
		Addr:                  "pipe",
		ReconnectInitialDelay: 5 * time.Millisecond,
		ReconnectMaxDelay:     20 * time.Millisecond,
	}, sequentialDialer(client1, client2))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.Start(ctx))
	<-handshake1Done
	defer h.Close()

	// Drop the first connection; the handler's reader goroutine sees EOF and
	// the run loop redials through sequentialDialer onto client2/server2.
	handshake2Done := make(chan struct{})
	go func() {
		defer close(handshake2Done)
		srv2.serveHandshake(t)
	}()
	server1.Close()

	select {
	case <-handshake2Done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reconnect handshake")
	}

	replyCh := make(chan proto.Result, 1)
	go func() {
		require.Equal(t, "PING", srv2.readCmdName(t))
		srv2.write(t, "+PONG\r\n")
	}()
	require.NoError(t, h.Send(context.Background(), proto.SingleMessage{Cmd: resp.NewCommand("PING"), Reply: replyCh}))

	select {
	case r := <-replyCh:
		require.NoError(t, r.Err)
		require.Equal(t, "PONG", r.Response.AsString())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for post-reconnect reply")
	}
}

func TestHandler_ReconnectMidTransactionFailsGatedCommands(t *testing.T) {
	client1, server1 := net.Pipe()
	client2, server2 := net.Pipe()
	srv1 := newFakeServer(server1)
	srv2 := newFakeServer(server2)

	handshake1Done := make(chan struct{})
	go func() {
		defer close(handshake1Done)
		srv1.serveHandshake(t)
	}()

	h := NewHandler(Config{
		Addr:                  "pipe",
		ReconnectInitialDelay: 5 * time.Millisecond,
		ReconnectMaxDelay:     20 * time.Millisecond,
	}, sequentialDialer(client1, client2))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.Start(ctx))
	<-handshake1Done
	defer h.Close()

	multiReply := make(chan proto.Result, 1)
	go func() {
		require.Equal(t, "MULTI", srv1.readCmdName(t))
		srv1.write(t, "+OK\r\n")
	}()
	multiMsg := proto.SingleMessage{Cmd: resp.NewCommand("MULTI"), Reply: multiReply}
	multiMsg.CallerID = 1
	require.NoError(t, h.Send(context.Background(), multiMsg))
	select {
	case r := <-multiReply:
		require.NoError(t, r.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for MULTI ack")
	}

	// A command from a different caller is gated behind the open transaction
	// and never reaches the wire.
	gatedReply := make(chan proto.Result, 1)
	gatedMsg := proto.SingleMessage{Cmd: resp.NewCommand("GET", "k"), Reply: gatedReply}
	gatedMsg.CallerID = 2
	require.NoError(t, h.Send(context.Background(), gatedMsg))
	// Give the run loop a moment to dequeue and gate the message before the
	// drop below; Send only guarantees the inbox accepted it, not that run()
	// has processed it yet.
	time.Sleep(20 * time.Millisecond)

	handshake2Done := make(chan struct{})
	go func() {
		defer close(handshake2Done)
		srv2.serveHandshake(t)
	}()
	server1.Close()

	select {
	case r := <-gatedReply:
		require.Error(t, r.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for gated command to fail on reconnect")
	}
	select {
	case <-handshake2Done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reconnect handshake")
	}
}
