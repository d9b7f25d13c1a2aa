package tcp

import (
	"errors"
	"io"
	"net"

	"golang.org/x/time/rate"

	"telnest/internal/telnet"
)

// registerConnection gives an accepted socket an id, records it and starts
// its read and write workers. Connected is queued before either worker
// runs, so it is never observed after an inbound message from the same id.
func (s *Server) registerConnection(conn net.Conn) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		conn.Close()
		return
	}
	rec := newConnectionRecord(conn)
	s.Manager.add(rec)
	s.live[rec] = struct{}{}
	s.wg.Add(2)
	s.mu.Unlock()

	s.emit(Connected{ID: rec.id})

	go s.readLoop(rec)
	go s.writeLoop(rec)
}

// workerExited forgets rec once both of its workers are gone.
func (s *Server) workerExited(rec *connectionRecord) {
	if rec.workerExited() {
		s.mu.Lock()
		delete(s.live, rec)
		s.mu.Unlock()
	}
}

// removeConnection drops the record, if any. Closing its outbox lets the
// write worker finish what is queued and exit. The read worker is not
// interrupted; it ends when the socket does.
func (s *Server) removeConnection(id ConnectionID) bool {
	rec, ok := s.Manager.remove(id)
	if ok {
		rec.outbox.Close()
	}
	return ok
}

// routeOutbound queues out on its connection. Unknown ids are dropped silently.
func (s *Server) routeOutbound(out Outbound) {
	rec, ok := s.Manager.get(out.To)
	if !ok {
		return
	}
	if err := rec.outbox.Send(out); err != nil {
		// removed between lookup and send
		s.logger.Debug("outbound_dropped",
			"connection_id", out.To.String(),
			"error", err,
		)
	}
}

// readLoop reads fixed-size chunks, classifies them and queues them on the
// inbox. A clean close from the peer reports the id as lost; any other
// read error is surfaced as an event. Either way the loop ends.
func (s *Server) readLoop(rec *connectionRecord) {
	defer s.wg.Done()
	defer s.workerExited(rec)
	defer close(rec.readDone)

	var limiter *rate.Limiter
	if s.opts.InboundRateLimit > 0 {
		limiter = rate.NewLimiter(s.opts.InboundRateLimit, s.opts.InboundBurst)
	}

	buf := make([]byte, s.opts.ReadBufferSize)
	s.logger.Debug("read_worker_started", "connection_id", rec.id.String())

	for {
		n, err := rec.conn.Read(buf)
		if n > 0 {
			s.handleChunk(rec.id, buf[:n], limiter)
		}
		if err == nil {
			continue
		}

		switch {
		case errors.Is(err, io.EOF):
			s.logger.Info("connection_lost", "connection_id", rec.id.String())
			if err := s.lost.Send(rec.id); err != nil {
				s.logger.Error("could_not_queue_lost_connection",
					"connection_id", rec.id.String(),
					"error", err,
				)
			}
		case errors.Is(err, net.ErrClosed):
			// closed locally by Stop
		default:
			s.emit(ErrorEvent{Err: &NetworkError{Kind: KindSocketRead, Err: err, ID: rec.id}})
		}
		return
	}
}

func (s *Server) handleChunk(id ConnectionID, chunk []byte, limiter *rate.Limiter) {
	msg, ok := telnet.Classify(chunk)
	if !ok {
		return
	}
	if limiter != nil && !limiter.Allow() {
		s.logger.Warn("inbound_rate_limited", "connection_id", id.String())
		return
	}
	if err := s.inbox.Send(Inbound{From: id, Content: msg}); err != nil {
		s.logger.Error("could_not_queue_inbound",
			"connection_id", id.String(),
			"error", err,
		)
	}
}

// writeLoop writes queued messages in order. It ends quietly once the
// registry has dropped the record and the queue is empty, or with an
// error event on the first failed write. A failed write does not remove
// the connection.
func (s *Server) writeLoop(rec *connectionRecord) {
	defer s.wg.Done()
	defer s.workerExited(rec)
	defer close(rec.writeDone)

	for {
		out, ok := rec.outbox.Recv()
		if !ok {
			closeWrite(rec.conn)
			return
		}

		if _, err := rec.conn.Write(telnet.Encode(out.Content)); err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.emit(ErrorEvent{Err: &NetworkError{Kind: KindSocketWrite, Err: err, ID: out.To}})
			}
			return
		}
	}
}

// closeWrite half-closes the socket so the peer sees end of stream.
func closeWrite(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
	}
}
