package telnet

// Telnet command bytes passed through uninterpreted by the framer.
// See RFC 854 and, for GMCP, https://www.gammon.com.au/gmcp
const (
	IAC  byte = 255 // interpret as command
	DONT byte = 254 // demand that the other party stop performing
	DO   byte = 253 // request that the other party perform
	WONT byte = 252 // refusal to perform
	WILL byte = 251 // desire to begin performing
	SB   byte = 250 // begin option subnegotiation
	SE   byte = 240 // end option subnegotiation

	ECHO byte = 1   // echo option
	GMCP byte = 201 // generic mud client protocol option
)
