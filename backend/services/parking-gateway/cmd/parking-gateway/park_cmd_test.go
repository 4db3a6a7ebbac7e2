package main

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkmeter/backend/libs/wire"
	"parkmeter/backend/libs/wire/protocol"
	"parkmeter/backend/services/parking-gateway/internal/gateway"
)

// serveOnce answers one start and one close on a loopback listener.
func serveOnce(t *testing.T, zone string, fee float64, elapsed int64) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := wire.ReadFrame(conn); err != nil {
			return
		}
		reply, _ := protocol.ZoneReply(zone)
		if _, err := conn.Write(reply); err != nil {
			return
		}
		if _, err := wire.ReadFrame(conn); err != nil {
			return
		}
		_, _ = conn.Write(protocol.CloseReply(fee, elapsed))
	}()
	return ln.Addr().String()
}

func TestParkCommandPrintsReceipt(t *testing.T) {
	addr := serveOnce(t, "Herzliya", 0.5, 50)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"park", "--server", addr, "--device", "aa:bb:cc:dd:ee:ff", "--x", "100", "--y", "100", "--duration", "0s", "--log-level", "error"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Parking in Herzliya")
	assert.Contains(t, out.String(), "You parked for 0:0:50 paid 0.50 ILS")
}

func TestParkCommandRejectsBadDevice(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"park", "--device", "not-a-mac", "--log-level", "error"})

	require.Error(t, root.Execute())
}

func TestRelayCommandForwardsReports(t *testing.T) {
	addr := serveOnce(t, "Ashkelon", 0.06, 10)
	id := wire.DeviceID{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetIn(bytes.NewReader(append(
		wire.Encode(byte(gateway.StatusOn), id, 5, 5),
		wire.Encode(byte(gateway.StatusOff), id, 0, 0)...,
	)))
	root.SetArgs([]string{"relay", "--server", addr, "--log-level", "error"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Parking in Ashkelon")
	assert.Contains(t, out.String(), "You parked for 0:0:10 paid 0.06 ILS")
}
