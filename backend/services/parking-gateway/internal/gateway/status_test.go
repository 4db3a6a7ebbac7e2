package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"parkmeter/backend/libs/wire"
	"parkmeter/backend/libs/wire/protocol"
)

func TestToWire(t *testing.T) {
	cases := []struct {
		status Status
		want   protocol.Status
		ok     bool
	}{
		{StatusOn, protocol.StatusStart, true},
		{StatusOff, protocol.StatusClose, true},
		{StatusRestart, protocol.StatusHeartbeat, false},
		{StatusStayOn, protocol.StatusHeartbeat, false},
		{StatusStayOff, protocol.StatusHeartbeat, false},
		{Status(0), protocol.StatusHeartbeat, false},
	}
	for _, tc := range cases {
		t.Run(tc.status.String(), func(t *testing.T) {
			got, ok := tc.status.ToWire()
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.ok, tc.status.Actionable())
		})
	}
}

func TestButtonCycle(t *testing.T) {
	s := Status(0)
	var seen []Status
	for i := 0; i < 4; i++ {
		s = s.Next()
		seen = append(seen, s)
	}
	assert.Equal(t, []Status{StatusOn, StatusOff, StatusRestart, StatusOn}, seen)
}

func TestClassifyReportHoldsStateOnCorruption(t *testing.T) {
	id := wire.DeviceID{1, 2, 3, 4, 5, 6}
	raw := wire.Encode(byte(StatusOff), id, 3, 4)

	frame, status := ClassifyReport(raw, StatusOn)
	assert.Equal(t, StatusOff, status)
	assert.Equal(t, id, frame.DeviceID)

	raw[wire.FrameSize-1] ^= 0x01
	_, status = ClassifyReport(raw, StatusOn)
	assert.Equal(t, StatusStayOn, status)
	_, status = ClassifyReport(raw, StatusOff)
	assert.Equal(t, StatusStayOff, status)
	_, status = ClassifyReport(raw[:3], StatusStayOn)
	assert.Equal(t, StatusStayOn, status)
}
