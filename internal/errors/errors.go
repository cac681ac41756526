package errors

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"
)

// ErrorType represents the type of error
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeValidation
	ErrorTypeFileSystem
	ErrorTypeParsing
	ErrorTypeDependency
	ErrorTypeConfiguration
	ErrorTypeDevice
	ErrorTypePermission
	ErrorTypeTimeout
	ErrorTypeNotFound
)

// String returns the string representation of the error type
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeFileSystem:
		return "FILESYSTEM"
	case ErrorTypeParsing:
		return "PARSING"
	case ErrorTypeDependency:
		return "DEPENDENCY"
	case ErrorTypeConfiguration:
		return "CONFIGURATION"
	case ErrorTypeDevice:
		return "DEVICE"
	case ErrorTypePermission:
		return "PERMISSION"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// Error codes shared across packages.
const (
	CodeContainerUnreadable   = "CONTAINER_UNREADABLE"
	CodeBaseEntryNotFound     = "BASE_ENTRY_NOT_FOUND"
	CodeBaseEntryAmbiguous    = "BASE_ENTRY_AMBIGUOUS"
	CodeExtractionWriteFailed = "EXTRACTION_WRITE_FAILED"
	CodeArtifactMissing       = "ARTIFACT_MISSING"
	CodeUnsupportedKind       = "UNSUPPORTED_KIND"

	CodeADBNotFound       = "ADB_NOT_FOUND"
	CodeCommandFailed     = "COMMAND_FAILED"
	CodeNoDevice          = "NO_DEVICE"
	CodeDeviceOffline     = "DEVICE_OFFLINE"
	CodeUnauthorized      = "DEVICE_UNAUTHORIZED"
	CodeInvalidPackage    = "INVALID_PACKAGE"
	CodeScriptOutput      = "SCRIPT_OUTPUT"
	CodeStepPrecondition  = "STEP_PRECONDITION"
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeRemoteFileMissing = "REMOTE_FILE_MISSING"
)

// Sentinels for errors.Is matching. Matching compares Type and Code only.
var (
	ErrContainerUnreadable    = &ExtractorError{Type: ErrorTypeParsing, Code: CodeContainerUnreadable}
	ErrBaseEntryNotFound      = &ExtractorError{Type: ErrorTypeNotFound, Code: CodeBaseEntryNotFound}
	ErrBaseEntryAmbiguous     = &ExtractorError{Type: ErrorTypeValidation, Code: CodeBaseEntryAmbiguous}
	ErrExtractionWriteFailure = &ExtractorError{Type: ErrorTypeFileSystem, Code: CodeExtractionWriteFailed}
	ErrArtifactMissing        = &ExtractorError{Type: ErrorTypeNotFound, Code: CodeArtifactMissing}
	ErrUnsupportedKind        = &ExtractorError{Type: ErrorTypeValidation, Code: CodeUnsupportedKind}
)

// ExtractorError represents an enhanced error with context and suggestions
type ExtractorError struct {
	Type        ErrorType         `json:"type"`
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Cause       error             `json:"cause,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Stack       []string          `json:"stack,omitempty"`
	Retryable   bool              `json:"retryable"`
}

// Error implements the error interface
func (e *ExtractorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *ExtractorError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *ExtractorError) Is(target error) bool {
	if t, ok := target.(*ExtractorError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error
func (e *ExtractorError) WithContext(key, value string) *ExtractorError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion to the error
func (e *ExtractorError) WithSuggestion(suggestion string) *ExtractorError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *ExtractorError) WithSuggestions(suggestions []string) *ExtractorError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// SetRetryable marks the error as retryable or not
func (e *ExtractorError) SetRetryable(retryable bool) *ExtractorError {
	e.Retryable = retryable
	return e
}

// FormatDetailed renders the error with its context, cause and hints for
// --verbose output.
func (e *ExtractorError) FormatDetailed() string {
	var b strings.Builder
	fmt.Fprintf(&b, "error[%s] %s: %s\n", e.Code, e.Type, e.Message)

	keys := make([]string, 0, len(e.Context))
	for key := range e.Context {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, "  %-12s %s\n", key+":", e.Context[key])
	}

	if e.Cause != nil {
		fmt.Fprintf(&b, "  %-12s %v\n", "cause:", e.Cause)
	}
	for _, hint := range e.Hints() {
		fmt.Fprintf(&b, "  hint: %s\n", hint)
	}
	if e.Retryable {
		b.WriteString("  (retryable)\n")
	}
	return b.String()
}

// NewError creates a new ExtractorError
func NewError(errorType ErrorType, code, message string) *ExtractorError {
	return &ExtractorError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Context:   make(map[string]string),
		Stack:     captureStack(),
	}
}

// WrapError wraps an existing error with ExtractorError
func WrapError(err error, errorType ErrorType, code, message string) *ExtractorError {
	return &ExtractorError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Cause:     err,
		Timestamp: time.Now(),
		Context:   make(map[string]string),
		Stack:     captureStack(),
	}
}

// As returns err as an *ExtractorError, wrapping unknown errors.
func As(err error) *ExtractorError {
	if err == nil {
		return nil
	}
	for e := err; e != nil; {
		if x, ok := e.(*ExtractorError); ok {
			return x
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return WrapError(err, ErrorTypeUnknown, "UNKNOWN", err.Error())
}

func captureStack() []string {
	var stack []string

	for i := 2; i < 10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		if strings.Contains(file, "apk-extractor") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		}
	}

	return stack
}

// typeHints are shown when an error carries no suggestion of its own.
var typeHints = map[ErrorType][]string{
	ErrorTypeFileSystem: {
		"Check write permission on the output directory",
		"Check free disk space",
	},
	ErrorTypeParsing: {
		"Pull the file from the device again",
		"Check that the file is an .apk, .apks, .xapk or .apkm",
	},
	ErrorTypeDependency: {
		"Run 'apk-extractor doctor'",
		"Install Android SDK Platform-Tools or set adb.path",
	},
	ErrorTypeConfiguration: {
		"Run 'apk-extractor config init' to regenerate configuration",
	},
	ErrorTypeDevice: {
		"Check the USB cable or Wi-Fi connection",
		"Enable USB debugging and authorize this computer",
		"Run 'apk-extractor devices'",
	},
	ErrorTypeTimeout: {
		"Increase adb.command_timeout",
	},
	ErrorTypeNotFound: {
		"Check the package name or device path",
	},
}

// Hints returns the error's suggestions, or generic ones for its type.
func (e *ExtractorError) Hints() []string {
	if len(e.Suggestions) > 0 {
		return e.Suggestions
	}
	return typeHints[e.Type]
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *ExtractorError {
	return NewError(ErrorTypeValidation, code, message)
}

// NewFileSystemError creates a filesystem error
func NewFileSystemError(code, message string) *ExtractorError {
	return NewError(ErrorTypeFileSystem, code, message)
}

// NewParsingError creates a parsing error
func NewParsingError(code, message string) *ExtractorError {
	return NewError(ErrorTypeParsing, code, message)
}

// NewDependencyError reports a missing or broken external tool.
func NewDependencyError(code, message string) *ExtractorError {
	return NewError(ErrorTypeDependency, code, message)
}

func NewConfigurationError(code, message string) *ExtractorError {
	return NewError(ErrorTypeConfiguration, code, message)
}

// NewDeviceError reports a device that is missing, offline or refusing
// commands.
func NewDeviceError(code, message string) *ExtractorError {
	return NewError(ErrorTypeDevice, code, message)
}

// NewTimeoutError creates a retryable timeout error.
func NewTimeoutError(code, message string) *ExtractorError {
	return NewError(ErrorTypeTimeout, code, message).SetRetryable(true)
}

func NewNotFoundError(code, message string) *ExtractorError {
	return NewError(ErrorTypeNotFound, code, message)
}

// Logger interface for error logging
type Logger interface {
	Error(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger Logger
	stats  *ErrorStats
}

// ErrorStats tracks error statistics
type ErrorStats struct {
	TotalErrors   int               `json:"total_errors"`
	ErrorsByType  map[ErrorType]int `json:"errors_by_type"`
	ErrorsByCode  map[string]int    `json:"errors_by_code"`
	LastError     *ExtractorError   `json:"last_error,omitempty"`
	LastErrorTime time.Time         `json:"last_error_time"`
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
		stats: &ErrorStats{
			ErrorsByType: make(map[ErrorType]int),
			ErrorsByCode: make(map[string]int),
		},
	}
}

// Handle logs the error, records it and returns it as an ExtractorError.
func (eh *ErrorHandler) Handle(err error) *ExtractorError {
	if err == nil {
		return nil
	}

	xerr := As(err)
	eh.addRecoverySuggestions(xerr)

	eh.stats.TotalErrors++
	eh.stats.ErrorsByType[xerr.Type]++
	eh.stats.ErrorsByCode[xerr.Code]++
	eh.stats.LastError = xerr
	eh.stats.LastErrorTime = time.Now()

	if eh.logger != nil {
		eh.logger.Error("%s [%s] %s", xerr.Type.String(), xerr.Code, xerr.Error())
		for key, value := range xerr.Context {
			eh.logger.Debug("error context: %s = %s", key, value)
		}
	}

	return xerr
}

// addRecoverySuggestions adds recovery suggestions based on error patterns
func (eh *ErrorHandler) addRecoverySuggestions(err *ExtractorError) {
	msg := strings.ToLower(err.Error())
	switch err.Type {
	case ErrorTypeFileSystem:
		if strings.Contains(msg, "permission denied") {
			err.WithSuggestion("Choose an output directory you can write to")
		}
		if strings.Contains(msg, "no space left") {
			err.WithSuggestion("Free up disk space and try again")
		}
	case ErrorTypeDevice:
		if strings.Contains(msg, "unauthorized") {
			err.WithSuggestion("Accept the RSA fingerprint prompt on the device")
		}
	}
}

// Stats returns error statistics
func (eh *ErrorHandler) Stats() *ErrorStats {
	return eh.stats
}
