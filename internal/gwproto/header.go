// Package gwproto implements the Semtech-style gateway<->server wire
// protocol: the 12-byte common header, the rxpk JSON serializer used
// by the upstream engine, and the txpk JSON parser used by the
// downstream engine.
package gwproto

import (
	"crypto/rand"
	"fmt"

	"github.com/agsys/lora-pktfwd/internal/radio"
)

// Packet identifiers.
const (
	ProtocolVersion = 1

	PushData byte = 0
	PushAck  byte = 1
	PullData byte = 2
	PullResp byte = 3
	PullAck  byte = 4
)

// HeaderSize is the length of the common header in bytes.
const HeaderSize = 12

// Token is the two random bytes correlating a request with its
// acknowledgement.
type Token [2]byte

// NewToken draws a fresh random token. Collisions are acceptable given
// the short matching window.
func NewToken() (Token, error) {
	var t Token
	if _, err := rand.Read(t[:]); err != nil {
		return t, fmt.Errorf("gwproto: failed to draw token: %w", err)
	}
	return t, nil
}

// BuildHeader writes the 12-byte common header for an outbound
// gateway->server datagram: version, token, packet type, gateway
// identity (big-endian).
func BuildHeader(packetType byte, token Token, gwID radio.Identity) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = ProtocolVersion
	buf[1] = token[0]
	buf[2] = token[1]
	buf[3] = packetType
	idBytes := gwID.Bytes()
	copy(buf[4:12], idBytes[:])
	return buf
}

// ParseAck validates a 4-byte server acknowledgement (PUSH_ACK or
// PULL_ACK): version byte correct, identifier matches wantType, and the
// token matches wantToken. A short or malformed datagram is rejected
// without panicking.
func ParseAck(data []byte, wantType byte, wantToken Token) bool {
	if len(data) < 4 {
		return false
	}
	if data[0] != ProtocolVersion {
		return false
	}
	if data[3] != wantType {
		return false
	}
	return data[1] == wantToken[0] && data[2] == wantToken[1]
}

// ParseHeader extracts the packet type and token from a received
// datagram's common header, without validating packet-type-specific
// body length. Returns ok=false if the datagram is too short or the
// version byte is wrong.
func ParseHeader(data []byte) (packetType byte, token Token, ok bool) {
	if len(data) < 4 || data[0] != ProtocolVersion {
		return 0, Token{}, false
	}
	return data[3], Token{data[1], data[2]}, true
}
