package telnet

import (
	"bytes"
	"strings"
)

// Classify turns one read chunk into a message.
//
// A chunk starting with IAC is returned whole as a Command; nested or
// concatenated commands are not split. Anything else is decoded as text,
// dropping invalid UTF-8, and trimmed. ok is false when nothing remains.
func Classify(buf []byte) (msg Message, ok bool) {
	if len(buf) == 0 {
		return nil, false
	}
	if buf[0] == IAC {
		cmd := make(Command, len(buf))
		copy(cmd, buf)
		return cmd, true
	}

	clean := strings.TrimSpace(strings.ToValidUTF8(string(buf), ""))
	if clean == "" {
		return nil, false
	}
	return Text(clean), true
}

// Encode serializes msg to its wire bytes.
func Encode(msg Message) []byte {
	switch m := msg.(type) {
	case Text:
		out := make([]byte, 0, len(m)+2)
		out = append(out, string(m)...)
		return append(out, '\r', '\n')
	case Command:
		out := make([]byte, len(m))
		copy(out, m)
		return out
	case GMCPMessage:
		return encodeGMCP(m.Payload)
	default:
		return nil
	}
}

func encodeGMCP(p Payload) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{IAC, SB, GMCP})
	buf.WriteString(p.Package)
	if p.Subpackage != nil {
		buf.WriteByte('.')
		buf.WriteString(*p.Subpackage)
	}
	if p.Data != nil {
		buf.WriteByte(' ')
		buf.WriteString(*p.Data)
	}
	buf.Write([]byte{IAC, SE})
	return buf.Bytes()
}

// ParseGMCP decodes a complete IAC SB GMCP ... IAC SE frame.
// The last dot of the name separates package from subpackage, so
// "Core.Supports.Set" yields package "Core.Supports" and subpackage "Set".
func ParseGMCP(cmd []byte) (Payload, bool) {
	prefix := []byte{IAC, SB, GMCP}
	suffix := []byte{IAC, SE}
	if len(cmd) < len(prefix)+len(suffix) || !bytes.HasPrefix(cmd, prefix) || !bytes.HasSuffix(cmd, suffix) {
		return Payload{}, false
	}

	body := string(cmd[len(prefix) : len(cmd)-len(suffix)])
	name, data, hasData := strings.Cut(body, " ")
	if name == "" {
		return Payload{}, false
	}

	var p Payload
	if i := strings.LastIndexByte(name, '.'); i > 0 && i < len(name)-1 {
		p = NewPayload(name[:i]).WithSubpackage(name[i+1:])
	} else {
		p = NewPayload(name)
	}
	if hasData {
		p = p.WithData(data)
	}
	return p, true
}
