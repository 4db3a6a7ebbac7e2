// Package protocol holds the server tier status codes and the reply payloads.
//
// Replies are not framed like requests: a zone reply is a 12 byte NUL padded
// ASCII field, a close reply two little endian float64 values (fee, elapsed
// seconds), and an error reply the literal "ERROR".
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// ZoneReplySize is the fixed width of the zone name reply.
	ZoneReplySize = 12
	// CloseReplySize is the width of the fee/elapsed reply.
	CloseReplySize = 16
	// ErrorReplySize is the width of the error literal.
	ErrorReplySize = 5
)

var errorLiteral = []byte("ERROR")

// ErrZoneTooLong is returned when a zone name does not fit the reply field.
var ErrZoneTooLong = errors.New("protocol: zone name exceeds reply width")

// ErrorReply returns the error literal.
func ErrorReply() []byte {
	out := make([]byte, ErrorReplySize)
	copy(out, errorLiteral)
	return out
}

// IsErrorReply reports whether b is exactly the error literal.
func IsErrorReply(b []byte) bool {
	return bytes.Equal(b, errorLiteral)
}

// ZoneReply encodes a zone name into its fixed width field.
func ZoneReply(zone string) ([]byte, error) {
	if len(zone) > ZoneReplySize {
		return nil, fmt.Errorf("%w: %q", ErrZoneTooLong, zone)
	}
	out := make([]byte, ZoneReplySize)
	copy(out, zone)
	return out, nil
}

// DecodeZoneReply strips the NUL padding of a zone reply.
func DecodeZoneReply(b []byte) (string, error) {
	if len(b) != ZoneReplySize {
		return "", fmt.Errorf("protocol: zone reply: got %d bytes", len(b))
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}

// CloseReply encodes the final fee and elapsed seconds.
func CloseReply(fee float64, elapsedSeconds int64) []byte {
	out := make([]byte, CloseReplySize)
	binary.LittleEndian.PutUint64(out[0:8], math.Float64bits(fee))
	binary.LittleEndian.PutUint64(out[8:16], math.Float64bits(float64(elapsedSeconds)))
	return out
}

// DecodeCloseReply unpacks a close reply.
func DecodeCloseReply(b []byte) (fee float64, elapsedSeconds float64, err error) {
	if len(b) != CloseReplySize {
		return 0, 0, fmt.Errorf("protocol: close reply: got %d bytes", len(b))
	}
	fee = math.Float64frombits(binary.LittleEndian.Uint64(b[0:8]))
	elapsedSeconds = math.Float64frombits(binary.LittleEndian.Uint64(b[8:16]))
	return fee, elapsedSeconds, nil
}
