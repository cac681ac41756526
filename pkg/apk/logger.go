package apk

import "fmt"

// Logger interface for resolver and inspector progress messages
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// SimpleLogger is a basic logger implementation
type SimpleLogger struct{}

func (l *SimpleLogger) Debug(format string, args ...interface{}) {}

func (l *SimpleLogger) Info(format string, args ...interface{}) {}

func (l *SimpleLogger) Warn(format string, args ...interface{}) {
	fmt.Printf("Warning: "+format+"\n", args...)
}

func (l *SimpleLogger) Error(format string, args ...interface{}) {
	fmt.Printf("Error: "+format+"\n", args...)
}
