package tcp

import "telnest/internal/telnet"

// The methods below are the host's per-tick surface. Each drain takes the
// items queued at the moment of the call; anything arriving meanwhile is
// left for the next tick. None of them block.

// DrainIncoming registers every accepted socket waiting in the queue.
func (s *Server) DrainIncoming() {
	for _, conn := range s.incoming.Drain() {
		s.registerConnection(conn)
	}
}

// DrainLost removes every connection the peer has closed and emits
// Disconnected for each.
func (s *Server) DrainLost() {
	for _, id := range s.lost.Drain() {
		s.removeConnection(id)
		s.emit(Disconnected{ID: id})
	}
}

// DrainEvents returns every queued lifecycle event.
func (s *Server) DrainEvents() []Event {
	events := s.events.Drain()
	for _, ev := range events {
		s.logger.Debug("handling_event", "event", ev)
	}
	return events
}

// DrainInbound returns every queued inbound message.
func (s *Server) DrainInbound() []Inbound {
	return s.inbox.Drain()
}

// FeedOutbound routes each message to its connection's write worker.
// Messages for unknown or removed connections are dropped silently.
func (s *Server) FeedOutbound(out ...Outbound) {
	for _, o := range out {
		s.routeOutbound(o)
	}
}

// Poll runs one tick's worth of draining in order: registration, lost
// connections, events, inbound. Because registration runs first, a
// Connected event always comes out no later than the first message from
// that connection.
func (s *Server) Poll() ([]Event, []Inbound) {
	s.DrainIncoming()
	s.DrainLost()
	return s.DrainEvents(), s.DrainInbound()
}

// SendText queues a line of text for id.
func (s *Server) SendText(id ConnectionID, text string) {
	s.routeOutbound(Outbound{To: id, Content: telnet.Text(text)})
}

// SendCommand queues raw Telnet command bytes for id.
func (s *Server) SendCommand(id ConnectionID, cmd ...byte) {
	s.routeOutbound(Outbound{To: id, Content: telnet.Command(cmd)})
}

// SendGMCP queues a GMCP payload for id.
func (s *Server) SendGMCP(id ConnectionID, payload telnet.Payload) {
	s.routeOutbound(Outbound{To: id, Content: telnet.NewGMCP(payload)})
}
