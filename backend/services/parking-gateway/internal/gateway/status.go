package gateway

import (
	"parkmeter/backend/libs/wire"
	"parkmeter/backend/libs/wire/protocol"
)

// Status is the gateway tier meaning of a controller status code.
type Status uint8

// Controller codes reported by the parking button firmware.
const (
	StatusOn      Status = 1
	StatusOff     Status = 2
	StatusRestart Status = 3
	StatusStayOn  Status = 6
	StatusStayOff Status = 7
)

func (s Status) String() string {
	switch s {
	case StatusOn:
		return "on"
	case StatusOff:
		return "off"
	case StatusRestart:
		return "restart"
	case StatusStayOn:
		return "stay_on"
	case StatusStayOff:
		return "stay_off"
	default:
		return "undefined"
	}
}

// ToWire translates a controller status into the server tier status. Only On and
// Off have a server meaning; ok is false for everything else.
func (s Status) ToWire() (protocol.Status, bool) {
	switch s {
	case StatusOn:
		return protocol.StatusStart, true
	case StatusOff:
		return protocol.StatusClose, true
	default:
		return protocol.StatusHeartbeat, false
	}
}

// Next advances the button cycle On -> Off -> Restart -> On.
func (s Status) Next() Status {
	switch s {
	case StatusOn:
		return StatusOff
	case StatusOff:
		return StatusRestart
	default:
		return StatusOn
	}
}

// Hold returns the status that keeps the current state after a corrupted report.
func (s Status) Hold() Status {
	if s == StatusOn || s == StatusStayOn {
		return StatusStayOn
	}
	return StatusStayOff
}

// Actionable reports whether the status asks the gateway to contact the server.
func (s Status) Actionable() bool {
	_, ok := s.ToWire()
	return ok
}

// ClassifyReport decodes a frame reported by the controller. A corrupted frame is
// never forwarded: the current state is held instead.
func ClassifyReport(raw []byte, current Status) (wire.Frame, Status) {
	frame, err := wire.Decode(raw)
	if err != nil {
		return wire.Frame{}, current.Hold()
	}
	return frame, Status(frame.Status)
}
