package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/huanfeng/apk-extractor/internal/errors"
	"github.com/huanfeng/apk-extractor/internal/script"
	"github.com/huanfeng/apk-extractor/pkg/models"
)

// FileName is the config file base name searched for in the config paths.
const FileName = "apk-extractor"

// EnvPrefix prefixes environment overrides, e.g. APKX_ADB_PATH.
const EnvPrefix = "APKX"

// Connection types and script mechanisms.
const (
	ConnectionUSB   = "usb"
	ConnectionWiFi  = "wifi"
	MechanismPush   = "push"
	MechanismDevice = "device"
)

var defaultConfig = models.Config{
	ADB: models.ADBConfig{
		Path:           "adb",
		DefaultDevice:  "",
		CommandTimeout: 30 * time.Second,
	},
	Connection: models.ConnectionConfig{
		Type:      ConnectionUSB,
		Address:   "",
		TCPIPPort: 5555,
	},
	Extract: models.ExtractConfig{
		Mechanism:     MechanismPush,
		LocalScript:   "",
		RemoteScript:  script.DefaultRemotePath,
		StagingDir:    script.DefaultStagingDir,
		OutputDir:     ".",
		IncludeSplits: false,
		Cleanup:       true,
	},
	Log: models.LogConfig{
		Level:  "info",
		Format: "text",
		File:   "",
		Color:  true,
	},
}

// Default returns a copy of the built-in configuration.
func Default() models.Config {
	return defaultConfig
}

// Load loads configuration from file and environment
func Load(configPath string) (*models.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("adb.path", defaultConfig.ADB.Path)
	v.SetDefault("adb.default_device", defaultConfig.ADB.DefaultDevice)
	v.SetDefault("adb.command_timeout", defaultConfig.ADB.CommandTimeout)
	v.SetDefault("connection.type", defaultConfig.Connection.Type)
	v.SetDefault("connection.address", defaultConfig.Connection.Address)
	v.SetDefault("connection.tcpip_port", defaultConfig.Connection.TCPIPPort)
	v.SetDefault("extract.mechanism", defaultConfig.Extract.Mechanism)
	v.SetDefault("extract.local_script", defaultConfig.Extract.LocalScript)
	v.SetDefault("extract.remote_script", defaultConfig.Extract.RemoteScript)
	v.SetDefault("extract.staging_dir", defaultConfig.Extract.StagingDir)
	v.SetDefault("extract.output_dir", defaultConfig.Extract.OutputDir)
	v.SetDefault("extract.include_splits", defaultConfig.Extract.IncludeSplits)
	v.SetDefault("extract.cleanup", defaultConfig.Extract.Cleanup)
	v.SetDefault("log.level", defaultConfig.Log.Level)
	v.SetDefault("log.format", defaultConfig.Log.Format)
	v.SetDefault("log.file", defaultConfig.Log.File)
	v.SetDefault("log.color", defaultConfig.Log.Color)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeConfigInvalid,
				"failed to read config file").
				WithSuggestion("Run 'apk-extractor config init' to regenerate configuration")
		}
		// Config file not found is not an error, we'll use defaults
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeConfigInvalid,
			"failed to unmarshal config")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks enumerated values and ranges.
func Validate(cfg *models.Config) error {
	invalid := func(key, value, allowed string) error {
		return errors.NewConfigurationError(errors.CodeConfigInvalid,
			fmt.Sprintf("invalid value %q for %s (expected %s)", value, key, allowed)).
			WithContext("key", key)
	}

	switch cfg.Connection.Type {
	case ConnectionUSB, ConnectionWiFi:
	default:
		return invalid("connection.type", cfg.Connection.Type, "usb or wifi")
	}
	if cfg.Connection.Type == ConnectionWiFi && cfg.Connection.Address == "" {
		return errors.NewConfigurationError(errors.CodeConfigInvalid,
			"connection.address is required for wifi connections").
			WithContext("key", "connection.address")
	}
	if cfg.Connection.TCPIPPort <= 0 || cfg.Connection.TCPIPPort > 65535 {
		return invalid("connection.tcpip_port", fmt.Sprint(cfg.Connection.TCPIPPort), "1-65535")
	}

	switch cfg.Extract.Mechanism {
	case MechanismPush, MechanismDevice:
	default:
		return invalid("extract.mechanism", cfg.Extract.Mechanism, "push or device")
	}
	if cfg.Extract.RemoteScript == "" {
		return invalid("extract.remote_script", "", "a device path")
	}

	if cfg.ADB.CommandTimeout < 0 {
		return invalid("adb.command_timeout", cfg.ADB.CommandTimeout.String(), "a positive duration")
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json", "compact":
	default:
		return invalid("log.format", cfg.Log.Format, "text, json or compact")
	}

	return nil
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", FileName), nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *models.Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// SaveTemplate saves a configuration template
func SaveTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.NewConfigurationError(errors.CodeConfigInvalid,
				fmt.Sprintf("%s already exists", path)).
				WithSuggestion("Use --force to overwrite it")
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.WrapError(err, errors.ErrorTypeFileSystem, errors.CodeConfigInvalid,
				"failed to create config directory")
		}
	}

	templateContent := `# APK Extractor Configuration File

adb:
  # Path to the adb executable. "adb" searches PATH and the usual SDK locations.
  path: "adb"

  # Serial of the device to use when several are attached
  default_device: ""

  # Timeout for short adb commands (transfers are not limited)
  command_timeout: 30s

connection:
  # "usb" or "wifi"
  type: "usb"

  # Device address for wifi connections, e.g. 192.168.1.20:5555
  address: ""

  # Port passed to 'adb tcpip' when switching a USB device to wifi
  tcpip_port: 5555

extract:
  # How the extraction script reaches the device:
  # - "push": push a local script first (default)
  # - "device": run a script that is already on the device
  mechanism: "push"

  # Local script to push. Empty uses the built-in extract-apk.sh
  local_script: ""

  # Script path on the device
  remote_script: "/data/local/tmp/extract-apk.sh"

  # Directory on the device the script copies APK files into
  staging_dir: "/data/local/tmp/apk-extractor"

  # Local directory for pulled files
  output_dir: "."

  # Also pull split APKs reported by the script
  include_splits: false

  # Remove the staged copies from the device afterwards
  cleanup: true

log:
  # debug, info, warn, error
  level: "info"

  # text, json or compact
  format: "text"

  # Optional log file (JSON lines)
  file: ""

  color: true
`

	return os.WriteFile(path, []byte(templateContent), 0644)
}
