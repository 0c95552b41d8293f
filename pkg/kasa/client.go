package kasa

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"
)

// DefaultPort is the TCP and UDP port Kasa devices listen on.
const DefaultPort = 9999

// ErrProtocol is wrapped by errors caused by the device itself: a non-zero
// err_code in a reply or a reply that cannot be decoded. Transport failures
// (dial, timeout) are returned unwrapped so callers can tell them apart.
var ErrProtocol = errors.New("kasa protocol error")

// Client talks to a single Kasa device at a fixed address. Each command
// opens a fresh TCP connection; the devices drop idle connections quickly,
// so there is nothing worth pooling.
type Client struct {
	addr    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a client for the device at addr (host or host:port;
// the default port is appended when missing).
func NewClient(addr string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = fmt.Sprintf("%s:%d", addr, DefaultPort)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{addr: addr, timeout: timeout, logger: logger}
}

// Addr returns the address the client commands.
func (c *Client) Addr() string { return c.addr }

// RoundTrip sends one JSON command and decodes the framed reply into out.
func (c *Client) RoundTrip(ctx context.Context, command any, out any) error {
	payload, err := json.Marshal(command)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(EncryptWithHeader(payload)); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}

	var header [4]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return fmt.Errorf("failed to read reply header: %w", err)
	}
	length := binary.BigEndian.Uint32(header[:])
	if length == 0 || length > 1<<20 {
		return fmt.Errorf("implausible reply length %d: %w", length, ErrProtocol)
	}

	cipher := make([]byte, length)
	if _, err := io.ReadFull(conn, cipher); err != nil {
		return fmt.Errorf("failed to read reply body: %w", err)
	}

	plain := Decrypt(cipher)
	c.logger.Debug("kasa: reply", "addr", c.addr, "body", string(plain))

	if err := json.Unmarshal(plain, out); err != nil {
		return fmt.Errorf("failed to decode reply %q: %w", string(plain), ErrProtocol)
	}
	return nil
}

// GetSysInfo queries the device for its identity and current state.
func (c *Client) GetSysInfo(ctx context.Context) (*SysInfo, error) {
	command := map[string]any{"system": map[string]any{"get_sysinfo": map[string]any{}}}

	var reply sysInfoReply
	if err := c.RoundTrip(ctx, command, &reply); err != nil {
		return nil, err
	}
	info := reply.System.GetSysInfo
	if info.ErrCode != 0 {
		return nil, fmt.Errorf("get_sysinfo returned err_code %d: %w", info.ErrCode, ErrProtocol)
	}
	if info.DeviceID == "" {
		return nil, fmt.Errorf("get_sysinfo reply missing deviceId: %w", ErrProtocol)
	}
	return &info, nil
}

// SetRelayState switches a smart socket's relay.
func (c *Client) SetRelayState(ctx context.Context, on bool) error {
	state := 0
	if on {
		state = 1
	}
	command := map[string]any{"system": map[string]any{"set_relay_state": map[string]any{"state": state}}}

	var reply relayReply
	if err := c.RoundTrip(ctx, command, &reply); err != nil {
		return err
	}
	if code := reply.System.SetRelayState.ErrCode; code != 0 {
		return fmt.Errorf("set_relay_state returned err_code %d (%s): %w",
			code, reply.System.SetRelayState.ErrMsg, ErrProtocol)
	}
	return nil
}

// SetLightState switches a smart bulb via the lighting service. Brightness
// is only meaningful when turning on; the device keeps its own value on off.
func (c *Client) SetLightState(ctx context.Context, on bool, brightness int) error {
	state := map[string]any{
		"on_off":            boolToInt(on),
		"ignore_default":    1,
		"transition_period": 0,
	}
	if on {
		if brightness < 1 {
			brightness = 1
		} else if brightness > 100 {
			brightness = 100
		}
		state["brightness"] = brightness
	}
	command := map[string]any{
		"smartlife.iot.smartbulb.lightingservice": map[string]any{
			"transition_light_state": state,
		},
	}

	var reply lightReply
	if err := c.RoundTrip(ctx, command, &reply); err != nil {
		return err
	}
	if code := reply.LightingService.TransitionLightState.ErrCode; code != 0 {
		return fmt.Errorf("transition_light_state returned err_code %d (%s): %w",
			code, reply.LightingService.TransitionLightState.ErrMsg, ErrProtocol)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
