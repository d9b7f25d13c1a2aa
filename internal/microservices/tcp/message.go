package tcp

import "telnest/internal/telnet"

// Inbound is a message received from a connection.
type Inbound struct {
	From    ConnectionID
	Content telnet.Message
}

// Outbound is a message addressed to a connection.
type Outbound struct {
	To      ConnectionID
	Content telnet.Message
}
