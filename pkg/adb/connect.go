package adb

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/huanfeng/apk-extractor/internal/errors"
)

// DefaultTCPIPPort is the port adb listens on after `adb tcpip`.
const DefaultTCPIPPort = 5555

// NormalizeAddress appends the default port to a bare host.
func NormalizeAddress(addr string, port int) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", errors.NewValidationError(errors.CodeConfigInvalid, "wireless address is empty")
	}
	if port <= 0 {
		port = DefaultTCPIPPort
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr, nil
	}
	return net.JoinHostPort(addr, strconv.Itoa(port)), nil
}

// TCPIP restarts adbd on serial in TCP mode on port.
func (c *Client) TCPIP(ctx context.Context, serial string, port int) error {
	if port <= 0 {
		port = DefaultTCPIPPort
	}
	result := c.RunDevice(ctx, serial, "tcpip", strconv.Itoa(port))
	if err := result.AsError("failed to switch device to TCP mode"); err != nil {
		return err
	}
	if strings.Contains(strings.ToLower(result.Combined()), "error") {
		return errors.NewDeviceError(errors.CodeCommandFailed, "failed to switch device to TCP mode").
			WithContext("output", result.Combined())
	}
	return nil
}

// Connect attaches to a device over Wi-Fi. adb exits zero on refusal, so the
// output is checked as well.
func (c *Client) Connect(ctx context.Context, addr string) error {
	result := c.Run(ctx, "connect", addr)
	if err := result.AsError(fmt.Sprintf("failed to connect to %s", addr)); err != nil {
		return err
	}

	out := strings.ToLower(result.Combined())
	if strings.Contains(out, "connected to") && !strings.Contains(out, "cannot") && !strings.Contains(out, "failed") {
		return nil
	}
	return errors.NewDeviceError(errors.CodeCommandFailed, fmt.Sprintf("failed to connect to %s", addr)).
		WithContext("address", addr).
		WithContext("output", result.Combined()).
		WithSuggestions([]string{
			"Make sure the device and this computer are on the same network",
			"Run 'apk-extractor connect --wifi <ip>' over USB first to enable TCP mode",
		})
}

// Disconnect detaches a Wi-Fi device.
func (c *Client) Disconnect(ctx context.Context, addr string) error {
	result := c.Run(ctx, "disconnect", addr)
	if err := result.AsError(fmt.Sprintf("failed to disconnect %s", addr)); err != nil {
		return err
	}
	if strings.Contains(strings.ToLower(result.Combined()), "error") {
		return errors.NewDeviceError(errors.CodeCommandFailed, fmt.Sprintf("failed to disconnect %s", addr)).
			WithContext("output", result.Combined())
	}
	return nil
}

// WifiAddress asks the device for its wlan0 address.
func (c *Client) WifiAddress(ctx context.Context, serial string) (string, error) {
	result, err := c.Shell(ctx, serial, "ip -f inet addr show wlan0")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(result.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "inet" {
			ip, _, _ := strings.Cut(fields[1], "/")
			return ip, nil
		}
	}
	return "", errors.NewNotFoundError(errors.CodeNoDevice, "device has no wlan0 address").
		WithContext("device", serial)
}
