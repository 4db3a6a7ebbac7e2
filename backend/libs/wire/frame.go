// Package wire implements the fixed size binary frame devices send to the server.
//
// Layout, 10 bytes:
//
//	[status:1][deviceId:6][x:1][y:1][crc8:1]
//
// The checksum covers the first 9 bytes.
package wire

import (
	"errors"
	"fmt"
	"io"
)

// FrameSize is the length of every inbound frame.
const FrameSize = 10

const (
	offsetStatus   = 0
	offsetDeviceID = 1
	offsetX        = offsetDeviceID + DeviceIDSize
	offsetY        = offsetX + 1
	offsetChecksum = offsetY + 1
)

var (
	// ErrFrameLength is returned when the buffer is not exactly FrameSize bytes.
	ErrFrameLength = errors.New("wire: invalid frame length")
	// ErrChecksum is returned when the trailing CRC-8 does not match the payload.
	ErrChecksum = errors.New("wire: checksum mismatch")
)

// Frame is a decoded and verified inbound frame. Status is kept raw here;
// translation into a tier specific meaning happens in the protocol package.
type Frame struct {
	Status   byte
	DeviceID DeviceID
	X        uint8
	Y        uint8
}

// Decode verifies and unpacks a frame.
func Decode(data []byte) (Frame, error) {
	if len(data) != FrameSize {
		return Frame{}, fmt.Errorf("%w: got %d bytes", ErrFrameLength, len(data))
	}
	if data[offsetChecksum] != Checksum(data[:offsetChecksum]) {
		return Frame{}, ErrChecksum
	}

	f := Frame{
		Status: data[offsetStatus],
		X:      data[offsetX],
		Y:      data[offsetY],
	}
	copy(f.DeviceID[:], data[offsetDeviceID:offsetX])
	return f, nil
}

// Valid reports whether data is a well formed frame.
func Valid(data []byte) bool {
	_, err := Decode(data)
	return err == nil
}

// Encode lays out the frame and appends its checksum.
func Encode(status byte, id DeviceID, x, y uint8) []byte {
	buf := make([]byte, FrameSize)
	buf[offsetStatus] = status
	copy(buf[offsetDeviceID:offsetX], id[:])
	buf[offsetX] = x
	buf[offsetY] = y
	buf[offsetChecksum] = Checksum(buf[:offsetChecksum])
	return buf
}

// Encode is the method form of Encode.
func (f Frame) Encode() []byte {
	return Encode(f.Status, f.DeviceID, f.X, f.Y)
}

// ReadFrame blocks until one full frame worth of bytes has been read.
// A clean close before the first byte yields io.EOF, a close mid frame
// io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	buf := make([]byte, FrameSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
