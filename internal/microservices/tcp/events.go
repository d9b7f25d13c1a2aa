package tcp

import (
	"errors"
	"fmt"
)

// Event is a lifecycle signal: Connected, Disconnected or ErrorEvent.
type Event interface {
	isEvent()
}

type Connected struct {
	ID ConnectionID
}

type Disconnected struct {
	ID ConnectionID
}

// ErrorEvent surfaces a network failure to the host. None of them are fatal
// to the process.
type ErrorEvent struct {
	Err *NetworkError
}

func (Connected) isEvent()    {}
func (Disconnected) isEvent() {}
func (ErrorEvent) isEvent()   {}

// ErrorKind classifies a NetworkError.
type ErrorKind int

const (
	// KindListen: the listener could not bind. That listener is gone for good.
	KindListen ErrorKind = iota + 1
	// KindAccept: one accept attempt failed; the accept loop keeps going.
	KindAccept
	// KindSocketRead: the read worker of one connection ended.
	KindSocketRead
	// KindSocketWrite: the write worker of one connection ended. The
	// connection stays registered.
	KindSocketWrite
)

func (k ErrorKind) String() string {
	switch k {
	case KindListen:
		return "listen"
	case KindAccept:
		return "accept"
	case KindSocketRead:
		return "socket_read"
	case KindSocketWrite:
		return "socket_write"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrServerStopped is returned by Serve once Stop has been called.
var ErrServerStopped = errors.New("tcp: server stopped")

// NetworkError carries the underlying I/O failure and, for socket errors,
// the connection it happened on.
type NetworkError struct {
	Kind ErrorKind
	Err  error
	ID   ConnectionID // zero for listen and accept errors
}

func (e *NetworkError) Error() string {
	switch e.Kind {
	case KindListen:
		return fmt.Sprintf("failed to start listening for new connections: %v", e.Err)
	case KindAccept:
		return fmt.Sprintf("failed to accept new connection: %v", e.Err)
	case KindSocketRead:
		return fmt.Sprintf("failed to read from socket %s: %v", e.ID, e.Err)
	case KindSocketWrite:
		return fmt.Sprintf("failed to write to socket %s: %v", e.ID, e.Err)
	default:
		return fmt.Sprintf("network error (%s): %v", e.Kind, e.Err)
	}
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ConnectionID reports the connection the error belongs to, if any.
func (e *NetworkError) ConnectionID() (ConnectionID, bool) {
	switch e.Kind {
	case KindSocketRead, KindSocketWrite:
		return e.ID, true
	default:
		return ConnectionID{}, false
	}
}
