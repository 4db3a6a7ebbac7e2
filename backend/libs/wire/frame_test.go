package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleID = DeviceID{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}

func TestChecksumRegressionVectors(t *testing.T) {
	assert.Equal(t, byte(0x29), Checksum([]byte{0x01, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x23, 0x45}))
	assert.Equal(t, byte(0xFF), Checksum(nil))
	assert.Equal(t, byte(0xEB), Checksum([]byte{0x00}))
	assert.Equal(t, byte(0x9B), Checksum([]byte{0x02, 0, 0, 0, 0, 0, 0, 0, 0}))
}

func TestEncodeLayout(t *testing.T) {
	buf := Encode(0x01, sampleID, 0x23, 0x45)

	require.Len(t, buf, FrameSize)
	assert.Equal(t, []byte{0x01, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x23, 0x45, 0x29}, buf)
}

func TestDecodeRoundTrip(t *testing.T) {
	for _, status := range []byte{0, 1, 2, 3, 0xFF} {
		for _, xy := range [][2]uint8{{0, 0}, {70, 71}, {127, 127}, {255, 1}} {
			f, err := Decode(Encode(status, sampleID, xy[0], xy[1]))
			require.NoError(t, err)
			assert.Equal(t, Frame{Status: status, DeviceID: sampleID, X: xy[0], Y: xy[1]}, f)
			assert.Equal(t, Encode(status, sampleID, xy[0], xy[1]), f.Encode())
		}
	}
}

func TestDecodeRejectsOnlyOnChecksumMismatch(t *testing.T) {
	valid := Encode(0x02, sampleID, 10, 20)

	for c := 0; c < 256; c++ {
		buf := append([]byte(nil), valid...)
		buf[FrameSize-1] = byte(c)

		_, err := Decode(buf)
		if byte(c) == Checksum(buf[:FrameSize-1]) {
			assert.NoError(t, err)
			assert.True(t, Valid(buf))
		} else {
			assert.ErrorIs(t, err, ErrChecksum)
			assert.False(t, Valid(buf))
		}
	}
}

func TestDecodeDetectsPayloadCorruption(t *testing.T) {
	buf := Encode(0x01, sampleID, 10, 20)
	buf[3] ^= 0x10

	_, err := Decode(buf)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestDecodeLength(t *testing.T) {
	for _, n := range []int{0, 1, 9, 11, 64} {
		_, err := Decode(make([]byte, n))
		assert.ErrorIs(t, err, ErrFrameLength, "len %d", n)
	}
}

func TestReadFrame(t *testing.T) {
	frame := Encode(0x01, sampleID, 1, 2)
	r := io.MultiReader(bytes.NewReader(frame[:4]), bytes.NewReader(frame[4:]), bytes.NewReader(frame[:3]))

	got, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, frame, got)

	_, err = ReadFrame(r)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))

	_, err = ReadFrame(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)
}

func TestDeviceIDCanonicalForm(t *testing.T) {
	id := DeviceID{0x0A, 0x00, 0xFF, 0x10, 0x01, 0xB2}
	assert.Equal(t, "0a:00:ff:10:01:b2", id.String())

	parsed, err := ParseDeviceID("0A:00:FF:10:01:B2")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	for _, bad := range []string{"", "aa:bb", "aa:bb:cc:dd:ee:gg", "a:bb:cc:dd:ee:ff", "aa:bb:cc:dd:ee:ff:00"} {
		_, err := ParseDeviceID(bad)
		assert.Error(t, err, bad)
	}
}
