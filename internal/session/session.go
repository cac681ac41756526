// Package session owns the device connection and runs the extraction
// pipeline against it.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/huanfeng/apk-extractor/internal/errors"
	"github.com/huanfeng/apk-extractor/pkg/adb"
	"github.com/huanfeng/apk-extractor/pkg/models"
)

// ConnState is the connection state of a Session.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnected    ConnState = "connected"
)

// Level classifies an Event.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelSuccess  Level = "success"
	LevelWarn     Level = "warn"
	LevelError    Level = "error"
	LevelProgress Level = "progress"
)

// Event is a progress or log message emitted while a session works.
type Event struct {
	Step    string
	Level   Level
	Message string
	Current int64
	Total   int64
	Time    time.Time
}

// Notifier receives session events. It is called synchronously.
type Notifier func(Event)

// Session is the single owner of the adb client, the selected device and
// the connection state.
type Session struct {
	mu sync.Mutex

	client    *adb.Client
	conn      models.ConnectionConfig
	requested string
	notify    Notifier

	state   ConnState
	device  *adb.Device
	address string

	connectAttempts int
	retryDelay      time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithNotifier sets the event callback.
func WithNotifier(n Notifier) Option {
	return func(s *Session) {
		if n != nil {
			s.notify = n
		}
	}
}

// WithDevice requests a specific device serial.
func WithDevice(serial string) Option {
	return func(s *Session) {
		s.requested = serial
	}
}

// WithConnectRetry sets how often a Wi-Fi connect is attempted and the
// pause between attempts.
func WithConnectRetry(attempts int, delay time.Duration) Option {
	return func(s *Session) {
		if attempts > 0 {
			s.connectAttempts = attempts
		}
		s.retryDelay = delay
	}
}

// New creates a disconnected session.
func New(client *adb.Client, conn models.ConnectionConfig, opts ...Option) *Session {
	s := &Session{
		client:          client,
		conn:            conn,
		notify:          func(Event) {},
		state:           StateDisconnected,
		connectAttempts: 3,
		retryDelay:      time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the adb client.
func (s *Session) Client() *adb.Client {
	return s.client
}

// State returns the connection state.
func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether a device has been selected.
func (s *Session) Connected() bool {
	return s.State() == StateConnected
}

// Device returns the selected device, or nil when disconnected.
func (s *Session) Device() *adb.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Serial returns the selected device serial.
func (s *Session) Serial() string {
	if d := s.Device(); d != nil {
		return d.Serial
	}
	return ""
}

// Notify emits a log event for step.
func (s *Session) Notify(step string, level Level, format string, args ...interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	s.notify(Event{Step: step, Level: level, Message: msg, Time: time.Now()})
}

// Progress emits a transfer progress event for step.
func (s *Session) Progress(step string, current, total int64) {
	s.notify(Event{Step: step, Level: LevelProgress, Current: current, Total: total, Time: time.Now()})
}

// Connect selects a device over the configured transport.
func (s *Session) Connect(ctx context.Context) (*adb.Device, error) {
	var (
		dev *adb.Device
		err error
	)
	if s.conn.Type == "wifi" {
		dev, err = s.connectWiFi(ctx)
	} else {
		dev, err = s.connectUSB(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.device = dev
	s.state = StateConnected
	s.mu.Unlock()

	s.Notify("connect", LevelSuccess, "Connected to %s", dev.DisplayName())
	return dev, nil
}

func (s *Session) connectUSB(ctx context.Context) (*adb.Device, error) {
	devices, err := s.client.Devices(ctx)
	if err != nil {
		return nil, err
	}
	return adb.PreferredDevice(devices, s.requested)
}

func (s *Session) connectWiFi(ctx context.Context) (*adb.Device, error) {
	addr, err := adb.NormalizeAddress(s.conn.Address, s.conn.TCPIPPort)
	if err != nil {
		return nil, err
	}

	devices, err := s.client.Devices(ctx)
	if err != nil {
		return nil, err
	}
	if dev, perr := adb.PreferredDevice(devices, addr); perr == nil {
		s.setAddress(addr)
		return dev, nil
	}

	// Switch an attached USB device to TCP mode first.
	if usb := firstUSB(devices, s.requested); usb != nil {
		s.Notify("connect", LevelInfo, "Enabling TCP/IP on %s (port %d)", usb.Serial, s.conn.TCPIPPort)
		if err := s.client.TCPIP(ctx, usb.Serial, s.conn.TCPIPPort); err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= s.connectAttempts; attempt++ {
		s.Notify("connect", LevelInfo, "Connecting to %s (attempt %d/%d)", addr, attempt, s.connectAttempts)
		if lastErr = s.client.Connect(ctx, addr); lastErr == nil {
			break
		}
		if attempt < s.connectAttempts {
			select {
			case <-ctx.Done():
				return nil, errors.WrapError(ctx.Err(), errors.ErrorTypeTimeout, errors.CodeCommandFailed,
					fmt.Sprintf("connecting to %s interrupted", addr))
			case <-time.After(s.retryDelay):
			}
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	s.setAddress(addr)

	devices, err = s.client.Devices(ctx)
	if err != nil {
		return nil, err
	}
	return adb.PreferredDevice(devices, addr)
}

func (s *Session) setAddress(addr string) {
	s.mu.Lock()
	s.address = addr
	s.mu.Unlock()
}

func firstUSB(devices []adb.Device, requested string) *adb.Device {
	for i := range devices {
		d := &devices[i]
		if !d.Online() || d.IsWireless {
			continue
		}
		if requested == "" || d.Serial == requested {
			return d
		}
	}
	return nil
}

// Disconnect releases the device. Wi-Fi connections are dropped with
// `adb disconnect`; the session is reset either way.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	addr := s.address
	s.mu.Unlock()

	var err error
	if s.conn.Type == "wifi" && addr != "" {
		err = s.client.Disconnect(ctx, addr)
	}

	s.mu.Lock()
	s.state = StateDisconnected
	s.device = nil
	s.address = ""
	s.mu.Unlock()

	if err == nil {
		s.Notify("disconnect", LevelInfo, "Disconnected")
	}
	return err
}

// RequireConnected fails with a precondition error when no device is selected.
func (s *Session) RequireConnected(step string) error {
	if s.Connected() {
		return nil
	}
	return errors.NewDeviceError(errors.CodeStepPrecondition,
		fmt.Sprintf("%s requires a connected device", step)).
		WithContext("step", step)
}
