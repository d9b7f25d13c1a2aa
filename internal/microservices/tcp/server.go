package tcp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/time/rate"

	"telnest/internal/channel"
)

// Server is the networking core. Network goroutines (accept loops and the
// per-connection workers) talk to the host only through its queues and the
// registry; the host drains and feeds them once per tick through the poll
// methods, none of which block.
type Server struct {
	Manager *ConnectionManager // registry of live connections, safe for concurrent use

	opts   Options
	logger *slog.Logger

	incoming *channel.Queue[net.Conn]     // accepted sockets waiting for registration
	lost     *channel.Queue[ConnectionID] // connections closed by the peer
	events   *channel.Queue[Event]        // lifecycle events for the host
	inbox    *channel.Queue[Inbound]      // messages received from clients

	mu        sync.Mutex
	listeners []net.Listener
	live      map[*connectionRecord]struct{} // records with a running worker, registered or not
	stopped   bool
	wg        sync.WaitGroup // accept loops and workers

	ctx    context.Context // cancelled by Stop
	cancel context.CancelFunc
}

// constructor for Server
func NewServer(opts Options) *Server {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		Manager:  NewConnectionManager(opts.Shards, opts.Logger),
		opts:     opts,
		logger:   opts.Logger,
		incoming: channel.New[net.Conn](),
		lost:     channel.New[ConnectionID](),
		events:   channel.New[Event](),
		inbox:    channel.New[Inbound](),
		live:     make(map[*connectionRecord]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Listen binds address and accepts connections in the background. It
// returns immediately. A bind failure is reported once as an ErrorEvent of
// KindListen and that listener is never retried.
func (s *Server) Listen(address string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.logger.Warn("listen_after_stop", "address", address)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		listener, err := net.Listen("tcp", address)
		if err != nil {
			s.logger.Error("listen_failed", "address", address, "error", err)
			s.emit(ErrorEvent{Err: &NetworkError{Kind: KindListen, Err: err}})
			return
		}
		s.serve(listener)
	}()
}

// Serve runs the accept loop on an already bound listener and blocks until
// the listener is closed. It returns ErrServerStopped if the server has
// been stopped, nil when Stop closes the listener.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		listener.Close()
		return ErrServerStopped
	}
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	return s.serve(listener)
}

func (s *Server) serve(listener net.Listener) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		listener.Close()
		return ErrServerStopped
	}
	s.listeners = append(s.listeners, listener)
	s.mu.Unlock()

	s.logger.Info("listening", "address", listener.Addr().String())

	// throttles retries after failed accepts, e.g. on fd exhaustion
	backoff := rate.NewLimiter(rate.Limit(10), 1)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.logger.Info("listener_closed", "address", listener.Addr().String())
				return nil
			}
			s.logger.Warn("accept_failed", "error", err)
			s.emit(ErrorEvent{Err: &NetworkError{Kind: KindAccept, Err: err}})
			if err := backoff.Wait(s.ctx); err != nil {
				s.logger.Info("accept_loop_cancelled", "address", listener.Addr().String())
				return nil
			}
			continue
		}

		s.logger.Info("accepted_connection", "remote_addr", remoteAddr(conn))
		if err := s.incoming.Send(conn); err != nil {
			s.logger.Error("could_not_queue_incoming_connection", "error", err)
			conn.Close()
		}
	}
}

// Disconnect removes the connection from the registry. Outbound messages
// for id are dropped from now on; what was already queued is still written
// before the write side is closed. Reports whether id was registered.
func (s *Server) Disconnect(id ConnectionID) bool {
	ok := s.removeConnection(id)
	if ok {
		s.logger.Info("connection_disconnected", "connection_id", id.String())
	}
	return ok
}

// IsConnected reports whether id is registered.
func (s *Server) IsConnected(id ConnectionID) bool {
	_, ok := s.Manager.get(id)
	return ok
}

// RemoteAddr returns the peer address of a registered connection.
func (s *Server) RemoteAddr(id ConnectionID) (net.Addr, bool) {
	rec, ok := s.Manager.get(id)
	if !ok {
		return nil, false
	}
	return rec.conn.RemoteAddr(), true
}

// Connections returns a snapshot of the registered ids.
func (s *Server) Connections() []ConnectionID {
	return s.Manager.IDs()
}

// Count is the number of registered connections.
func (s *Server) Count() int {
	return s.Manager.Count()
}

// Stop closes every listener and every socket that still has a worker
// running, registered or already disconnected, and waits for all network
// goroutines to exit. Connections closed this way produce no
// further events. Items already queued for the host can still be drained.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	listeners := s.listeners
	s.listeners = nil
	live := make([]*connectionRecord, 0, len(s.live))
	for rec := range s.live {
		live = append(live, rec)
	}
	s.mu.Unlock()

	s.cancel()
	for _, l := range listeners {
		l.Close()
	}

	s.incoming.Close()
	for _, conn := range s.incoming.Drain() {
		conn.Close()
	}

	for _, rec := range s.Manager.removeAll() {
		rec.outbox.Close()
	}
	for _, rec := range live {
		rec.outbox.Close()
		rec.conn.Close()
	}

	s.wg.Wait()
	s.logger.Info("server_stopped")
}

func (s *Server) emit(ev Event) {
	if err := s.events.Send(ev); err != nil {
		s.logger.Error("could_not_queue_event", "error", err)
	}
}
