package wire

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// DeviceIDSize is the raw identity length carried in every frame.
const DeviceIDSize = 6

// DeviceID is the raw 6 byte identity of a gateway device.
type DeviceID [DeviceIDSize]byte

// String renders the canonical colon separated lowercase hex form.
func (id DeviceID) String() string {
	var b strings.Builder
	b.Grow(DeviceIDSize*3 - 1)
	for i, octet := range id {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(hex.EncodeToString([]byte{octet}))
	}
	return b.String()
}

// ParseDeviceID parses the canonical form produced by String. Upper case hex is accepted.
func ParseDeviceID(s string) (DeviceID, error) {
	var id DeviceID
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != DeviceIDSize {
		return id, fmt.Errorf("wire: device id %q: want %d octets", s, DeviceIDSize)
	}
	for i, part := range parts {
		if len(part) != 2 {
			return id, fmt.Errorf("wire: device id %q: octet %d malformed", s, i)
		}
		decoded, err := hex.DecodeString(part)
		if err != nil {
			return id, fmt.Errorf("wire: device id %q: %w", s, err)
		}
		id[i] = decoded[0]
	}
	return id, nil
}
