package protocol

// Status is the server tier meaning of a frame's status byte.
type Status uint8

// Wire codes the server acts on. Every other code is a heartbeat.
const (
	StatusHeartbeat Status = 0
	StatusStart     Status = 1
	StatusClose     Status = 2
)

// ParseStatus translates the raw status byte at the wire boundary.
func ParseStatus(raw byte) Status {
	switch Status(raw) {
	case StatusStart, StatusClose:
		return Status(raw)
	default:
		return StatusHeartbeat
	}
}

// Byte returns the wire code used when a client encodes this status.
func (s Status) Byte() byte {
	return byte(s)
}

func (s Status) String() string {
	switch s {
	case StatusStart:
		return "start"
	case StatusClose:
		return "close"
	default:
		return "heartbeat"
	}
}

// Reply kinds, used for logging and metrics labels.
const (
	ReplyZone  = "zone"
	ReplyClose = "close"
	ReplyError = "error"
)
