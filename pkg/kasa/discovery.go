package kasa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// DefaultBroadcastAddr is where discovery probes are sent.
const DefaultBroadcastAddr = "255.255.255.255:9999"

// DiscoveredDevice pairs a device's sysinfo with the address it answered from.
type DiscoveredDevice struct {
	Addr string
	Info SysInfo
}

// DiscoverOptions control a discovery sweep.
type DiscoverOptions struct {
	// Timeout bounds the whole sweep. Defaults to 10 seconds.
	Timeout time.Duration

	// BroadcastAddr overrides the probe destination; tests point it at a
	// loopback responder.
	BroadcastAddr string

	Logger *slog.Logger
}

// Discover broadcasts an encrypted get_sysinfo probe and collects replies
// until the timeout (or ctx) expires. Replies are deduplicated by deviceId;
// malformed datagrams are logged and skipped. An empty result is not an
// error: an unpopulated network is a normal state.
func Discover(ctx context.Context, opts DiscoverOptions) ([]DiscoveredDevice, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	broadcastAddr := opts.BroadcastAddr
	if broadcastAddr == "" {
		broadcastAddr = DefaultBroadcastAddr
	}

	dest, err := net.ResolveUDPAddr("udp4", broadcastAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve broadcast address %s: %w", broadcastAddr, err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("failed to open discovery socket: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	deadline, _ := ctx.Deadline()
	_ = conn.SetDeadline(deadline)

	probe := Encrypt([]byte(`{"system":{"get_sysinfo":{}}}`))
	if _, err := conn.WriteToUDP(probe, dest); err != nil {
		return nil, fmt.Errorf("failed to send discovery probe: %w", err)
	}
	logger.Debug("kasa: discovery probe sent", "dest", broadcastAddr, "timeout", timeout)

	var found []DiscoveredDevice
	seen := make(map[string]struct{})
	buf := make([]byte, 4096)

	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				return found, nil
			}
			if ctx.Err() != nil {
				return found, nil
			}
			return found, fmt.Errorf("failed to read discovery reply: %w", err)
		}

		plain := Decrypt(buf[:n])
		var reply sysInfoReply
		if err := json.Unmarshal(plain, &reply); err != nil {
			logger.Debug("kasa: undecodable discovery reply", "from", from, "error", err)
			continue
		}
		info := reply.System.GetSysInfo
		if info.DeviceID == "" || info.ErrCode != 0 {
			logger.Debug("kasa: discovery reply without usable sysinfo", "from", from)
			continue
		}
		if _, dup := seen[info.DeviceID]; dup {
			continue
		}
		seen[info.DeviceID] = struct{}{}

		addr := net.JoinHostPort(from.IP.String(), fmt.Sprintf("%d", DefaultPort))
		found = append(found, DiscoveredDevice{Addr: addr, Info: info})
		logger.Debug("kasa: device discovered",
			"device_id", info.DeviceID, "alias", info.Alias, "model", info.Model, "addr", addr)
	}
}
