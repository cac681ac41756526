package adb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/huanfeng/apk-extractor/internal/errors"
	"github.com/huanfeng/apk-extractor/pkg/models"
)

// DefaultCommandTimeout bounds short adb commands when no timeout is configured.
const DefaultCommandTimeout = 30 * time.Second

// Logger receives command traces.
type Logger interface {
	Debug(msg string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}

// Client wraps the adb executable. Every method returns an explicit error
// built from the command Result rather than raw output.
type Client struct {
	path    string
	timeout time.Duration
	runner  Runner
	logger  Logger
	workers int
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger that receives command traces.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithWorkerLimit caps concurrent per-device queries.
func WithWorkerLimit(n int) Option {
	return func(c *Client) {
		c.workers = n
	}
}

// NewClient creates a client for the adb binary described by cfg. A nil
// runner selects ExecRunner.
func NewClient(cfg models.ADBConfig, runner Runner, opts ...Option) *Client {
	if runner == nil {
		runner = ExecRunner{}
	}
	c := &Client{
		path:    cfg.Path,
		timeout: cfg.CommandTimeout,
		runner:  runner,
		logger:  nopLogger{},
	}
	if c.path == "" {
		c.path = "adb"
	}
	if c.timeout <= 0 {
		c.timeout = DefaultCommandTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the adb executable used by the client.
func (c *Client) Path() string {
	return c.path
}

// Run executes adb with args, bounded by the command timeout.
func (c *Client) Run(ctx context.Context, args ...string) *Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.exec(ctx, args...)
}

// RunDevice executes adb against serial. An empty serial lets adb pick the
// only attached device.
func (c *Client) RunDevice(ctx context.Context, serial string, args ...string) *Result {
	return c.Run(ctx, deviceArgs(serial, args...)...)
}

// runLong executes adb without the command timeout, for transfers.
func (c *Client) runLong(ctx context.Context, serial string, args ...string) *Result {
	return c.exec(ctx, deviceArgs(serial, args...)...)
}

func (c *Client) exec(ctx context.Context, args ...string) *Result {
	c.logger.Debug("Running: %s %s", c.path, strings.Join(args, " "))
	result := c.runner.Run(ctx, c.path, args...)
	c.logger.Debug("Finished in %v (exit %d)", result.Duration, result.ExitCode)
	return result
}

func deviceArgs(serial string, args ...string) []string {
	if serial == "" {
		return args
	}
	return append([]string{"-s", serial}, args...)
}

// VersionInfo is the parsed output of `adb version`.
type VersionInfo struct {
	Bridge    string `json:"bridge"`
	Tool      string `json:"tool,omitempty"`
	Installed string `json:"installed,omitempty"`
}

// Version runs `adb version`, which doubles as the availability check.
func (c *Client) Version(ctx context.Context) (*VersionInfo, error) {
	result := c.Run(ctx, "version")
	if !result.OK() {
		if result.ExitCode == -1 && result.Err != nil {
			return nil, errors.WrapError(result.Err, errors.ErrorTypeDependency, errors.CodeADBNotFound,
				fmt.Sprintf("adb is not available at %s", c.path)).
				WithSuggestions([]string{
					"Install Android SDK Platform-Tools",
					"Set adb.path in the configuration file",
				})
		}
		return nil, result.AsError("adb version failed")
	}
	return parseVersion(result.Stdout), nil
}

func parseVersion(output string) *VersionInfo {
	info := &VersionInfo{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Android Debug Bridge version"):
			info.Bridge = strings.TrimSpace(strings.TrimPrefix(line, "Android Debug Bridge version"))
		case strings.HasPrefix(line, "Version "):
			info.Tool = strings.TrimSpace(strings.TrimPrefix(line, "Version "))
		case strings.HasPrefix(line, "Installed as "):
			info.Installed = strings.TrimSpace(strings.TrimPrefix(line, "Installed as "))
		}
	}
	return info
}

// Shell runs command through `adb shell` on serial.
func (c *Client) Shell(ctx context.Context, serial, command string) (*Result, error) {
	result := c.RunDevice(ctx, serial, "shell", command)
	if err := result.AsError("shell command failed"); err != nil {
		return result, err
	}
	return result, nil
}

// GetProp reads a single system property.
func (c *Client) GetProp(ctx context.Context, serial, property string) (string, error) {
	result, err := c.Shell(ctx, serial, "getprop "+property)
	if err != nil {
		return "", err
	}
	return result.Output(), nil
}

// Remove deletes a path on the device.
func (c *Client) Remove(ctx context.Context, serial, remotePath string) error {
	_, err := c.Shell(ctx, serial, "rm -rf "+ShellQuote(remotePath))
	return err
}

// ShellQuote quotes s for a POSIX shell.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
