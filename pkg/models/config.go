package models

import "time"

// Config represents the application configuration
type Config struct {
	ADB        ADBConfig        `mapstructure:"adb" yaml:"adb" json:"adb"`
	Connection ConnectionConfig `mapstructure:"connection" yaml:"connection" json:"connection"`
	Extract    ExtractConfig    `mapstructure:"extract" yaml:"extract" json:"extract"`
	Log        LogConfig        `mapstructure:"log" yaml:"log" json:"log"`
}

// ADBConfig contains adb executable settings
type ADBConfig struct {
	Path           string        `mapstructure:"path" yaml:"path" json:"path"`
	DefaultDevice  string        `mapstructure:"default_device" yaml:"default_device" json:"default_device"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout" json:"command_timeout"`
}

// ConnectionConfig describes how the device is reached
type ConnectionConfig struct {
	Type      string `mapstructure:"type" yaml:"type" json:"type"`          // "usb" or "wifi"
	Address   string `mapstructure:"address" yaml:"address" json:"address"` // host:port for wifi
	TCPIPPort int    `mapstructure:"tcpip_port" yaml:"tcpip_port" json:"tcpip_port"`
}

// ExtractConfig contains extraction pipeline settings
type ExtractConfig struct {
	Mechanism     string `mapstructure:"mechanism" yaml:"mechanism" json:"mechanism"` // "push" or "device"
	LocalScript   string `mapstructure:"local_script" yaml:"local_script" json:"local_script"`
	RemoteScript  string `mapstructure:"remote_script" yaml:"remote_script" json:"remote_script"`
	StagingDir    string `mapstructure:"staging_dir" yaml:"staging_dir" json:"staging_dir"`
	OutputDir     string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	IncludeSplits bool   `mapstructure:"include_splits" yaml:"include_splits" json:"include_splits"`
	Cleanup       bool   `mapstructure:"cleanup" yaml:"cleanup" json:"cleanup"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "text" or "json"
	File   string `mapstructure:"file" yaml:"file" json:"file"`
	Color  bool   `mapstructure:"color" yaml:"color" json:"color"`
}
