package protocol

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusStart, ParseStatus(1))
	assert.Equal(t, StatusClose, ParseStatus(2))
	for _, raw := range []byte{0, 3, 6, 7, 0xFF} {
		assert.Equal(t, StatusHeartbeat, ParseStatus(raw), "raw %d", raw)
	}
	assert.Equal(t, "close", StatusClose.String())
}

func TestZoneReply(t *testing.T) {
	b, err := ZoneReply("Petah-Tikva")
	require.NoError(t, err)
	require.Len(t, b, ZoneReplySize)
	assert.Equal(t, byte(0), b[11])

	zone, err := DecodeZoneReply(b)
	require.NoError(t, err)
	assert.Equal(t, "Petah-Tikva", zone)

	_, err = ZoneReply("a-very-long-zone")
	assert.ErrorIs(t, err, ErrZoneTooLong)

	_, err = DecodeZoneReply(b[:5])
	assert.Error(t, err)
}

func TestCloseReplyIsLittleEndianFloat64(t *testing.T) {
	b := CloseReply(0.6, 100)
	assert.Equal(t, "333333333333e33f0000000000005940", hex.EncodeToString(b))

	fee, elapsed, err := DecodeCloseReply(b)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, fee, 1e-12)
	assert.InDelta(t, 100.0, elapsed, 1e-12)
}

func TestErrorReply(t *testing.T) {
	assert.Equal(t, []byte("ERROR"), ErrorReply())
	assert.True(t, IsErrorReply(ErrorReply()))
	assert.False(t, IsErrorReply([]byte("ERRORS")))
}
