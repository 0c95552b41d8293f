package kasa

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResponder answers discovery probes on a loopback UDP socket with the
// given sysinfo bodies, one datagram per body.
func fakeResponder(t *testing.T, bodies ...string) string {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 4096)
		for {
			_, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			for _, body := range bodies {
				_, _ = conn.WriteToUDP(Encrypt([]byte(body)), from)
			}
		}
	}()
	return conn.LocalAddr().String()
}

func sysInfoBody(deviceID, alias, micType string) string {
	return fmt.Sprintf(`{"system":{"get_sysinfo":{"err_code":0,"deviceId":%q,"alias":%q,"mic_type":%q}}}`,
		deviceID, alias, micType)
}

func TestDiscoverFindsDevices(t *testing.T) {
	addr := fakeResponder(t,
		sysInfoBody("PLUG-1", "Green Room", ""),
		sysInfoBody("BULB-1", "Vocal Booth", "IOT.SMARTBULB"),
	)

	found, err := Discover(context.Background(), DiscoverOptions{
		Timeout:       500 * time.Millisecond,
		BroadcastAddr: addr,
	})
	require.NoError(t, err)
	require.Len(t, found, 2)

	byID := make(map[string]DiscoveredDevice, len(found))
	for _, d := range found {
		byID[d.Info.DeviceID] = d
	}
	assert.Contains(t, byID, "PLUG-1")
	assert.Contains(t, byID, "BULB-1")
	bulbInfo := byID["BULB-1"].Info
	plugInfo := byID["PLUG-1"].Info
	assert.True(t, bulbInfo.IsBulb())
	assert.False(t, plugInfo.IsBulb())
	assert.Contains(t, byID["PLUG-1"].Addr, "127.0.0.1:")
}

func TestDiscoverDeduplicatesByDeviceID(t *testing.T) {
	addr := fakeResponder(t,
		sysInfoBody("PLUG-1", "Green Room", ""),
		sysInfoBody("PLUG-1", "Green Room", ""),
	)

	found, err := Discover(context.Background(), DiscoverOptions{
		Timeout:       500 * time.Millisecond,
		BroadcastAddr: addr,
	})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestDiscoverSkipsMalformedReplies(t *testing.T) {
	addr := fakeResponder(t,
		"garbage",
		sysInfoBody("PLUG-1", "Green Room", ""),
	)

	found, err := Discover(context.Background(), DiscoverOptions{
		Timeout:       500 * time.Millisecond,
		BroadcastAddr: addr,
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "PLUG-1", found[0].Info.DeviceID)
}

func TestDiscoverEmptyNetwork(t *testing.T) {
	// A responder that never answers: bind a socket but don't reply.
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	start := time.Now()
	found, err := Discover(context.Background(), DiscoverOptions{
		Timeout:       300 * time.Millisecond,
		BroadcastAddr: conn.LocalAddr().String(),
	})
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Less(t, time.Since(start), 2*time.Second)
}
