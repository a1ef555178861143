package app

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/relabs-tech/sensor_hub/internal/imu"
	"github.com/relabs-tech/sensor_hub/internal/protocol"
)

// HubClient talks to a hub over its socket protocol.
type HubClient struct {
	conn    net.Conn
	timeout time.Duration
}

// DialHub connects to a hub at addr.
func DialHub(addr string, timeout time.Duration) (*HubClient, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewHubClient(conn, timeout), nil
}

// NewHubClient wraps an established connection.
func NewHubClient(conn net.Conn, timeout time.Duration) *HubClient {
	return &HubClient{conn: conn, timeout: timeout}
}

// Close closes the connection.
func (c *HubClient) Close() error { return c.conn.Close() }

// Request sends cmd and reads the fixed-size reply. Commands without a reply
// return nil.
func (c *HubClient) Request(cmd byte) ([]byte, error) {
	if c.timeout > 0 {
		c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	if _, err := c.conn.Write([]byte{cmd}); err != nil {
		return nil, fmt.Errorf("send 0x%02X: %w", cmd, err)
	}
	n := protocol.ReplySize(cmd)
	if n == 0 {
		return nil, nil
	}
	resp := make([]byte, n)
	if _, err := io.ReadFull(c.conn, resp); err != nil {
		return nil, fmt.Errorf("reply to 0x%02X: %w", cmd, err)
	}
	return resp, nil
}

// ParsePollCommand parses a command byte for polling. The credential commands
// are rejected: they need a payload, which SendCredentials provides.
func ParsePollCommand(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid command %q: %w", s, err)
	}
	cmd := byte(v)
	switch cmd {
	case protocol.CmdPrepareCredentials, protocol.CmdCredentials:
		return 0, fmt.Errorf("command 0x%02X needs a credentials payload, use -ssid", cmd)
	}
	return cmd, nil
}

// Frame requests sensor data, with the distance byte when withDistance is set.
// The raw reply is returned alongside the decoded frame.
func (c *HubClient) Frame(withDistance bool) (imu.Frame, []byte, error) {
	cmd := protocol.CmdSensors
	if withDistance {
		cmd = protocol.CmdSensorsDistance
	}
	resp, err := c.Request(cmd)
	if err != nil {
		return imu.Frame{}, nil, err
	}
	f, err := protocol.DecodeFrame(cmd, resp)
	if err != nil {
		return imu.Frame{}, resp, err
	}
	f.Time = time.Now().UTC().Format(time.RFC3339)
	return f, resp, nil
}

// SendCredentials hands the hub a new network to join.
func (c *HubClient) SendCredentials(ssid, password string) error {
	payload, err := protocol.EncodeCredentials(protocol.Credentials{SSID: ssid, Password: password})
	if err != nil {
		return err
	}
	ack, err := c.Request(protocol.CmdPrepareCredentials)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(ack, []byte{0xFF, 0x0F}) {
		return fmt.Errorf("unexpected credentials ack % X", ack)
	}
	if c.timeout > 0 {
		c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	if _, err := c.conn.Write(payload); err != nil {
		return fmt.Errorf("send credentials: %w", err)
	}
	return nil
}
