package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"telnest/internal/microservices/tcp"
	"telnest/internal/presence"
	"telnest/internal/telnet"
)

const whoInterval = 3 * time.Second

// chatHost is the game side of the tick loop: it reacts to lifecycle
// events, relays chat lines to everyone and periodically pushes the online
// count over GMCP.
type chatHost struct {
	server   *tcp.Server
	presence presence.Store
	logger   *slog.Logger

	online  []tcp.ConnectionID
	lastWho time.Time
}

func newChatHost(server *tcp.Server, store presence.Store, logger *slog.Logger) *chatHost {
	return &chatHost{server: server, presence: store, logger: logger}
}

// tick runs one poll cycle.
func (h *chatHost) tick(ctx context.Context, now time.Time) {
	events, inbound := h.server.Poll()

	for _, ev := range events {
		h.handleEvent(ctx, ev)
	}
	for _, in := range inbound {
		h.handleMessage(in)
	}

	if now.Sub(h.lastWho) >= whoInterval {
		h.lastWho = now
		h.broadcastWho()
	}
}

func (h *chatHost) handleEvent(ctx context.Context, ev tcp.Event) {
	switch e := ev.(type) {
	case tcp.Connected:
		// offer GMCP to the client
		h.server.SendCommand(e.ID, telnet.IAC, telnet.WILL, telnet.GMCP)
		h.broadcast(fmt.Sprintf("%s connected", e.ID))
		h.online = append(h.online, e.ID)

		session := presence.Session{ID: e.ID.String(), ConnectedAt: time.Now().UTC()}
		if addr, ok := h.server.RemoteAddr(e.ID); ok {
			session.RemoteAddr = addr.String()
		}
		if err := h.presence.Add(ctx, session); err != nil {
			h.logger.Warn("presence_add_failed", "connection_id", e.ID.String(), "error", err)
		}

	case tcp.Disconnected:
		if !h.remove(e.ID) {
			return
		}
		h.broadcast(fmt.Sprintf("%s disconnected", e.ID))
		if err := h.presence.Remove(ctx, e.ID.String()); err != nil {
			h.logger.Warn("presence_remove_failed", "connection_id", e.ID.String(), "error", err)
		}

	case tcp.ErrorEvent:
		attrs := []any{"kind", e.Err.Kind.String(), "error", e.Err.Err}
		if id, ok := e.Err.ConnectionID(); ok {
			attrs = append(attrs, "connection_id", id.String())
		}
		h.logger.Error("network_error", attrs...)
	}
}

func (h *chatHost) handleMessage(in tcp.Inbound) {
	switch m := in.Content.(type) {
	case telnet.Text:
		h.broadcast(fmt.Sprintf("%s: %s", in.From, m))
	case telnet.Command:
		if p, ok := telnet.ParseGMCP(m); ok {
			h.logger.Debug("gmcp_received", "connection_id", in.From.String(), "package", p.Name())
		}
	}
}

func (h *chatHost) broadcast(text string) {
	for _, id := range h.online {
		h.server.SendText(id, text)
	}
}

func (h *chatHost) broadcastWho() {
	count := strconv.Itoa(len(h.online))
	payload := telnet.NewPayload("chat").WithSubpackage("who").WithData(count)
	for _, id := range h.online {
		h.server.SendGMCP(id, payload)
	}
}

func (h *chatHost) remove(id tcp.ConnectionID) bool {
	for i, other := range h.online {
		if other == id {
			h.online = append(h.online[:i], h.online[i+1:]...)
			return true
		}
	}
	return false
}
