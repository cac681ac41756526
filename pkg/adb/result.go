package adb

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/huanfeng/apk-extractor/internal/errors"
)

// Result is the outcome of a single adb invocation.
type Result struct {
	Args     []string      `json:"args" yaml:"args"`
	Stdout   string        `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	ExitCode int           `json:"exit_code" yaml:"exit_code"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Err      error         `json:"-" yaml:"-"`
}

// OK reports whether the command ran and exited with status zero.
func (r *Result) OK() bool {
	return r != nil && r.Err == nil && r.ExitCode == 0
}

// Output returns stdout with surrounding whitespace removed.
func (r *Result) Output() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.Stdout)
}

// Combined returns stdout and stderr joined, trimmed.
func (r *Result) Combined() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSpace(r.Stdout) + "\n" + strings.TrimSpace(r.Stderr))
}

// CommandLine renders the invocation for logs.
func (r *Result) CommandLine() string {
	if r == nil {
		return ""
	}
	return strings.Join(r.Args, " ")
}

// Hint classifies well-known adb failure messages.
type Hint int

const (
	HintNone Hint = iota
	HintPermissionDenied
	HintUnauthorized
	HintOffline
	HintNoDevice
	HintNoSuchFile
	HintNotFound
)

// Message returns a short explanation of the hint for the user.
func (h Hint) Message() string {
	switch h {
	case HintPermissionDenied:
		return "Permission denied on the device; check the script and staging directory permissions"
	case HintUnauthorized:
		return "Device is unauthorized; accept the USB debugging prompt on the device"
	case HintOffline:
		return "Device is offline; reconnect it or restart the adb server"
	case HintNoDevice:
		return "No device is connected; check the cable or the Wi-Fi address"
	case HintNoSuchFile:
		return "File or directory not found on the device"
	case HintNotFound:
		return "Command or package not found on the device"
	default:
		return ""
	}
}

// Hint inspects stderr (and stdout, since adb shell merges streams) for a
// known failure pattern.
func (r *Result) Hint() Hint {
	if r == nil {
		return HintNone
	}
	text := strings.ToLower(r.Stderr + "\n" + r.Stdout)
	switch {
	case strings.Contains(text, "permission denied"):
		return HintPermissionDenied
	case strings.Contains(text, "unauthorized"):
		return HintUnauthorized
	case strings.Contains(text, "device offline"):
		return HintOffline
	case strings.Contains(text, "no devices/emulators found"),
		strings.Contains(text, "device not found"),
		strings.Contains(text, "no devices found"):
		return HintNoDevice
	case strings.Contains(text, "no such file or directory"):
		return HintNoSuchFile
	case strings.Contains(text, "not found"):
		return HintNotFound
	default:
		return HintNone
	}
}

// AsError converts a failed result into an ExtractorError. It returns nil
// when the result is OK.
func (r *Result) AsError(message string) *errors.ExtractorError {
	if r.OK() {
		return nil
	}

	var xerr *errors.ExtractorError
	switch {
	case stderrors.Is(r.Err, context.DeadlineExceeded):
		xerr = errors.NewTimeoutError(errors.CodeCommandFailed, message+": command timed out")
	case stderrors.Is(r.Err, context.Canceled):
		xerr = errors.WrapError(r.Err, errors.ErrorTypeDevice, errors.CodeCommandFailed, message+": cancelled")
	default:
		hint := r.Hint()
		switch hint {
		case HintPermissionDenied:
			xerr = errors.NewError(errors.ErrorTypePermission, errors.CodeCommandFailed, message)
		case HintUnauthorized:
			xerr = errors.NewDeviceError(errors.CodeUnauthorized, message)
		case HintOffline:
			xerr = errors.NewDeviceError(errors.CodeDeviceOffline, message)
		case HintNoDevice:
			xerr = errors.NewDeviceError(errors.CodeNoDevice, message)
		case HintNoSuchFile:
			xerr = errors.NewNotFoundError(errors.CodeRemoteFileMissing, message)
		default:
			xerr = errors.NewDeviceError(errors.CodeCommandFailed, message)
		}
		if r.Err != nil {
			xerr.Cause = r.Err
		}
		if msg := hint.Message(); msg != "" {
			xerr.WithSuggestion(msg)
		}
	}

	xerr.WithContext("command", r.CommandLine()).
		WithContext("exit_code", fmt.Sprintf("%d", r.ExitCode))
	if stderr := strings.TrimSpace(r.Stderr); stderr != "" {
		xerr.WithContext("stderr", stderr)
	}
	return xerr
}
