package adb

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/huanfeng/apk-extractor/internal/device"
	"github.com/huanfeng/apk-extractor/internal/errors"
)

// Device states reported by `adb devices`.
const (
	StateDevice       = "device"
	StateOffline      = "offline"
	StateUnauthorized = "unauthorized"
)

var (
	wifiSerialPattern = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}:\d+$`)
	getpropPattern    = regexp.MustCompile(`^\[([^\]]+)\]: \[(.*)\]$`)
)

// Device represents an ADB device with detailed information
type Device struct {
	Serial       string    `json:"serial"`
	State        string    `json:"state"`
	Model        string    `json:"model,omitempty"`
	Product      string    `json:"product,omitempty"`
	DeviceName   string    `json:"device,omitempty"`
	TransportID  string    `json:"transport_id,omitempty"`
	AndroidAPI   int       `json:"android_api,omitempty"`
	AndroidVer   string    `json:"android_version,omitempty"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	Brand        string    `json:"brand,omitempty"`
	IsEmulator   bool      `json:"is_emulator"`
	IsWireless   bool      `json:"is_wireless"`
	LastSeen     time.Time `json:"last_seen"`
}

// Online reports whether the device accepts commands.
func (d Device) Online() bool {
	return d.State == StateDevice
}

// DisplayName returns a human friendly label.
func (d Device) DisplayName() string {
	name := d.Model
	if d.Manufacturer != "" && !strings.HasPrefix(strings.ToLower(name), strings.ToLower(d.Manufacturer)) {
		name = strings.TrimSpace(d.Manufacturer + " " + name)
	}
	if name == "" {
		return d.Serial
	}
	return fmt.Sprintf("%s (%s)", name, d.Serial)
}

// DeviceStatus represents device connection status
type DeviceStatus struct {
	Online       []Device `json:"online"`
	Offline      []Device `json:"offline"`
	Unauthorized []Device `json:"unauthorized"`
	Total        int      `json:"total"`
}

// ParseDevices parses the output of `adb devices -l`.
func ParseDevices(output string) []Device {
	var devices []Device
	now := time.Now()

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		d := Device{
			Serial:   parts[0],
			State:    parts[1],
			LastSeen: now,
		}
		d.IsEmulator = strings.HasPrefix(d.Serial, "emulator-")
		d.IsWireless = isWirelessSerial(d.Serial)

		for _, part := range parts[2:] {
			key, value, ok := strings.Cut(part, ":")
			if !ok {
				continue
			}
			switch key {
			case "model":
				d.Model = value
			case "product":
				d.Product = value
			case "device":
				d.DeviceName = value
			case "transport_id":
				d.TransportID = value
			}
		}

		devices = append(devices, d)
	}

	return devices
}

func isWirelessSerial(serial string) bool {
	return wifiSerialPattern.MatchString(serial) || strings.Contains(serial, "._adb-tls-connect._tcp")
}

// Devices lists attached devices. Online devices are enriched with system
// properties, queried concurrently.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	result := c.Run(ctx, "devices", "-l")
	if !result.OK() {
		return nil, result.AsError("failed to list devices")
	}

	devices := ParseDevices(result.Stdout)

	var online []string
	index := make(map[string]int)
	for i, d := range devices {
		if d.Online() {
			online = append(online, d.Serial)
			index[d.Serial] = i
		}
	}

	results := device.ForEach(ctx, online, c.workers, func(ctx context.Context, serial string) (map[string]string, error) {
		r := c.RunDevice(ctx, serial, "shell", "getprop")
		if !r.OK() {
			return nil, r.AsError("getprop failed")
		}
		return ParseGetprop(r.Stdout), nil
	})

	for _, res := range results {
		if res.Err != nil {
			c.logger.Debug("Skipping properties for %s: %v", res.Serial, res.Err)
			continue
		}
		applyProps(&devices[index[res.Serial]], res.Value)
	}

	return devices, nil
}

// ParseGetprop parses `getprop` output lines of the form "[key]: [value]".
func ParseGetprop(output string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		m := getpropPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		props[m[1]] = m[2]
	}
	return props
}

func applyProps(d *Device, props map[string]string) {
	if api, err := strconv.Atoi(props["ro.build.version.sdk"]); err == nil {
		d.AndroidAPI = api
	}
	d.AndroidVer = props["ro.build.version.release"]
	d.Manufacturer = props["ro.product.manufacturer"]
	d.Brand = props["ro.product.brand"]
	if d.Model == "" {
		d.Model = props["ro.product.model"]
	}
	if props["ro.kernel.qemu"] == "1" {
		d.IsEmulator = true
	}
}

// DeviceStatus returns categorized device status
func (c *Client) DeviceStatus(ctx context.Context) (*DeviceStatus, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return nil, err
	}
	return Categorize(devices), nil
}

// Categorize buckets devices by state.
func Categorize(devices []Device) *DeviceStatus {
	status := &DeviceStatus{
		Online:       []Device{},
		Offline:      []Device{},
		Unauthorized: []Device{},
		Total:        len(devices),
	}

	for _, d := range devices {
		switch d.State {
		case StateDevice:
			status.Online = append(status.Online, d)
		case StateOffline:
			status.Offline = append(status.Offline, d)
		case StateUnauthorized:
			status.Unauthorized = append(status.Unauthorized, d)
		}
	}

	return status
}

// PreferredDevice picks the device to work with. A requested serial must be
// online; otherwise an online Wi-Fi device wins over USB, then the first
// online device in serial order.
func PreferredDevice(devices []Device, requested string) (*Device, error) {
	if requested != "" {
		for i := range devices {
			if devices[i].Serial != requested {
				continue
			}
			switch devices[i].State {
			case StateDevice:
				return &devices[i], nil
			case StateUnauthorized:
				return nil, errors.NewDeviceError(errors.CodeUnauthorized,
					fmt.Sprintf("device %s is unauthorized - please allow USB debugging", requested)).
					WithContext("device", requested)
			default:
				return nil, errors.NewDeviceError(errors.CodeDeviceOffline,
					fmt.Sprintf("device %s is %s", requested, devices[i].State)).
					WithContext("device", requested)
			}
		}
		return nil, errors.NewDeviceError(errors.CodeNoDevice, fmt.Sprintf("device %s not found", requested)).
			WithContext("device", requested)
	}

	status := Categorize(devices)
	if len(status.Online) == 0 {
		switch {
		case len(status.Unauthorized) > 0:
			return nil, errors.NewDeviceError(errors.CodeUnauthorized,
				fmt.Sprintf("device %s is unauthorized - please allow USB debugging", status.Unauthorized[0].Serial))
		case len(status.Offline) > 0:
			return nil, errors.NewDeviceError(errors.CodeDeviceOffline,
				fmt.Sprintf("device %s is offline", status.Offline[0].Serial))
		default:
			return nil, errors.NewDeviceError(errors.CodeNoDevice, "no devices connected")
		}
	}

	online := status.Online
	sort.SliceStable(online, func(i, j int) bool {
		if online[i].IsWireless != online[j].IsWireless {
			return online[i].IsWireless
		}
		return online[i].Serial < online[j].Serial
	})
	return &online[0], nil
}

// WaitForDevice polls until serial is online or ctx is done.
func (c *Client) WaitForDevice(ctx context.Context, serial string, interval time.Duration) (*Device, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		devices, err := c.Devices(ctx)
		if err == nil {
			if d, perr := PreferredDevice(devices, serial); perr == nil {
				return d, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, errors.NewTimeoutError(errors.CodeNoDevice,
				fmt.Sprintf("timed out waiting for device %s", serial)).
				WithContext("device", serial)
		case <-ticker.C:
		}
	}
}
