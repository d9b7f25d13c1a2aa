// Package admin exposes an operator HTTP surface over the running server.
package admin

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"telnest/internal/microservices/tcp"
	"telnest/internal/presence"
)

// Registry is the part of tcp.Server the handler needs.
type Registry interface {
	Connections() []tcp.ConnectionID
	Count() int
	RemoteAddr(id tcp.ConnectionID) (net.Addr, bool)
	Disconnect(id tcp.ConnectionID) bool
}

type connectionResponse struct {
	ID         string `json:"id"`
	RemoteAddr string `json:"remote_addr"`
}

type Handler struct {
	registry Registry
	presence presence.Store
}

func NewHandler(registry Registry, store presence.Store) *Handler {
	return &Handler{registry: registry, presence: store}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", h.Health)
	r.GET("/connections", h.ListConnections)
	r.DELETE("/connections/:id", h.Disconnect)
	r.GET("/presence", h.ListPresence)
}

// NewRouter builds a gin engine with the admin routes installed.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListConnections handles GET /connections
func (h *Handler) ListConnections(c *gin.Context) {
	ids := h.registry.Connections()
	resp := make([]connectionResponse, 0, len(ids))
	for _, id := range ids {
		addr, ok := h.registry.RemoteAddr(id)
		if !ok {
			continue // disconnected meanwhile
		}
		resp = append(resp, connectionResponse{ID: id.String(), RemoteAddr: addr.String()})
	}
	c.JSON(http.StatusOK, gin.H{
		"count":       len(resp),
		"connections": resp,
	})
}

// Disconnect handles DELETE /connections/:id
func (h *Handler) Disconnect(c *gin.Context) {
	id, err := tcp.ParseConnectionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.registry.Disconnect(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListPresence handles GET /presence
func (h *Handler) ListPresence(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	sessions, err := h.presence.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(sessions),
		"sessions": sessions,
	})
}
