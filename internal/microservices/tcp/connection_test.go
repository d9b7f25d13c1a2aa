package tcp

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telnest/internal/telnet"
)

type readResult struct {
	data []byte
	err  error
}

// fakeConn feeds scripted reads and records writes.
type fakeConn struct {
	reads    chan readResult
	writeErr error

	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{reads: make(chan readResult, 8)}
}

func (c *fakeConn) Read(p []byte) (int, error) {
	r, ok := <-c.reads
	if !ok {
		return 0, io.EOF
	}
	return copy(p, r.data), r.err
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.Write(p)
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.String()
}

func (c *fakeConn) LocalAddr() net.Addr  { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000} }
func (c *fakeConn) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000} }

func (c *fakeConn) SetDeadline(time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

// register pushes conn through the incoming queue like an accept would.
func register(t *testing.T, s *Server, conn net.Conn) ConnectionID {
	t.Helper()
	require.NoError(t, s.incoming.Send(conn))
	s.DrainIncoming()
	events := s.DrainEvents()
	require.Len(t, events, 1)
	connected, ok := events[0].(Connected)
	require.True(t, ok)
	return connected.ID
}

func collectEvents(t *testing.T, s *Server, want int) []Event {
	t.Helper()
	var events []Event
	require.Eventually(t, func() bool {
		events = append(events, s.DrainEvents()...)
		return len(events) >= want
	}, 2*time.Second, 5*time.Millisecond)
	return events
}

func TestReadWorker_ErrorEmitsSocketRead(t *testing.T) {
	s := NewServer(quietOptions())
	conn := newFakeConn()
	id := register(t, s, conn)

	boom := errors.New("connection reset")
	conn.reads <- readResult{err: boom}

	events := collectEvents(t, s, 1)
	require.Len(t, events, 1)
	ev, ok := events[0].(ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, KindSocketRead, ev.Err.Kind)
	assert.ErrorIs(t, ev.Err, boom)
	got, hasID := ev.Err.ConnectionID()
	assert.True(t, hasID)
	assert.Equal(t, id, got)

	// an error is not a clean close: nothing is reported lost
	s.DrainLost()
	assert.Empty(t, s.DrainEvents())
	assert.True(t, s.IsConnected(id))
}

func TestReadWorker_ChunksBecomeInbound(t *testing.T) {
	s := NewServer(quietOptions())
	conn := newFakeConn()
	id := register(t, s, conn)

	conn.reads <- readResult{data: []byte("say hi\n")}
	conn.reads <- readResult{data: []byte("\r\n")}
	conn.reads <- readResult{data: []byte{telnet.IAC, telnet.WONT, telnet.ECHO}}

	var inbound []Inbound
	require.Eventually(t, func() bool {
		inbound = append(inbound, s.DrainInbound()...)
		return len(inbound) == 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []Inbound{
		{From: id, Content: telnet.Text("say hi")},
		{From: id, Content: telnet.Command{telnet.IAC, telnet.WONT, telnet.ECHO}},
	}, inbound)
}

func TestReadWorker_EOFGoesThroughLost(t *testing.T) {
	s := NewServer(quietOptions())
	conn := newFakeConn()
	id := register(t, s, conn)

	close(conn.reads)

	require.Eventually(t, func() bool { return s.lost.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	// nothing is emitted by the worker itself
	assert.Empty(t, s.DrainEvents())
	assert.True(t, s.IsConnected(id))

	s.DrainLost()
	assert.Equal(t, []Event{Disconnected{ID: id}}, s.DrainEvents())
	assert.False(t, s.IsConnected(id))

	// both workers gone => socket closed
	require.Eventually(t, conn.isClosed, 2*time.Second, 5*time.Millisecond)
}

func TestWriteWorker_ErrorKeepsConnectionRegistered(t *testing.T) {
	s := NewServer(quietOptions())
	conn := newFakeConn()
	conn.writeErr = errors.New("broken pipe")
	id := register(t, s, conn)

	s.SendText(id, "hello")

	events := collectEvents(t, s, 1)
	ev, ok := events[0].(ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, KindSocketWrite, ev.Err.Kind)
	assert.Equal(t, id, ev.Err.ID)
	assert.True(t, s.IsConnected(id))

	// later sends still route without further errors
	s.SendText(id, "again")
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, s.DrainEvents())
	assert.True(t, s.Disconnect(id))
}

func TestWriteWorker_DrainsQueueAfterRemoval(t *testing.T) {
	s := NewServer(quietOptions())
	conn := newFakeConn()
	id := register(t, s, conn)

	s.SendText(id, "one")
	s.SendGMCP(id, telnet.NewPayload("Core").WithSubpackage("Goodbye"))
	s.Disconnect(id)
	s.SendText(id, "dropped")

	want := "one\r\n" + string(telnet.Encode(telnet.NewGMCP(telnet.NewPayload("Core").WithSubpackage("Goodbye"))))
	require.Eventually(t, func() bool { return conn.output() == want }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, want, conn.output())
	assert.Empty(t, s.DrainEvents())
}

func TestRouteOutbound_UnknownIDIsDropped(t *testing.T) {
	s := NewServer(quietOptions())
	s.FeedOutbound(Outbound{To: NewConnectionID(), Content: telnet.Text("nobody")})
	assert.Empty(t, s.DrainEvents())
	assert.Equal(t, 0, s.Count())
}

func TestDrainLost_EmitsEvenForRemovedIDs(t *testing.T) {
	s := NewServer(quietOptions())
	id := NewConnectionID()
	require.NoError(t, s.lost.Send(id))

	s.DrainLost()
	assert.Equal(t, []Event{Disconnected{ID: id}}, s.DrainEvents())
}

func TestRegisterAfterStopClosesSocket(t *testing.T) {
	s := NewServer(quietOptions())
	s.Stop()

	conn := newFakeConn()
	s.registerConnection(conn)
	assert.True(t, conn.isClosed())
	assert.Equal(t, 0, s.Count())
	assert.Empty(t, s.DrainEvents())
}
