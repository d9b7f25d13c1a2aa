package telnet

import (
	"encoding/json"
	"fmt"
)

// Message is a single unit of content exchanged with a client.
// It is one of Text, Command or GMCPMessage.
type Message interface {
	isMessage()
}

// Text is a regular line of text. Outbound text is terminated with CRLF.
type Text string

// Command is a raw sequence of Telnet command bytes, passed through verbatim.
type Command []byte

// GMCPMessage carries a Payload over GMCP subnegotiation.
type GMCPMessage struct {
	Payload Payload
}

func (Text) isMessage()        {}
func (Command) isMessage()     {}
func (GMCPMessage) isMessage() {}

// Payload is structured out-of-band data exchanged via GMCP.
// Subpackage and Data are optional; nil means absent.
type Payload struct {
	Package    string
	Subpackage *string
	Data       *string
}

// NewPayload returns a payload for pkg with no subpackage and no data.
func NewPayload(pkg string) Payload {
	return Payload{Package: pkg}
}

// WithSubpackage returns a copy of p with the subpackage set.
func (p Payload) WithSubpackage(sub string) Payload {
	p.Subpackage = &sub
	return p
}

// WithData returns a copy of p with the data set.
func (p Payload) WithData(data string) Payload {
	p.Data = &data
	return p
}

// WithJSON returns a copy of p whose data is the JSON encoding of v.
func (p Payload) WithJSON(v any) (Payload, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return p, fmt.Errorf("failed to encode gmcp data: %w", err)
	}
	return p.WithData(string(raw)), nil
}

// Name is the dotted package name, e.g. "Char.Vitals".
func (p Payload) Name() string {
	if p.Subpackage == nil {
		return p.Package
	}
	return p.Package + "." + *p.Subpackage
}

// NewGMCP wraps p into a Message.
func NewGMCP(p Payload) Message {
	return GMCPMessage{Payload: p}
}
