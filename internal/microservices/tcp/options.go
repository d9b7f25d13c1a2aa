package tcp

import (
	"log/slog"

	"golang.org/x/time/rate"
)

const (
	DefaultReadBufferSize = 1024 // max bytes handed to the framer per read
	DefaultShards         = 32   // registry shards
	DefaultInboundBurst   = 20
)

// Options tunes a Server. The zero value of each field falls back to its default.
type Options struct {
	ReadBufferSize int

	// InboundRateLimit caps messages per second per connection.
	// Zero disables limiting; excess messages are dropped.
	InboundRateLimit rate.Limit
	InboundBurst     int

	Shards int
	Logger *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		ReadBufferSize: DefaultReadBufferSize,
		InboundBurst:   DefaultInboundBurst,
		Shards:         DefaultShards,
		Logger:         slog.Default(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = d.ReadBufferSize
	}
	if o.InboundBurst <= 0 {
		o.InboundBurst = d.InboundBurst
	}
	if o.Shards <= 0 {
		o.Shards = d.Shards
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}
