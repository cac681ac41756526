package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huanfeng/apk-extractor/pkg/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ADB.Path != "adb" || cfg.ADB.CommandTimeout != 30*time.Second {
		t.Errorf("adb = %+v", cfg.ADB)
	}
	if cfg.Extract.RemoteScript != "/data/local/tmp/extract-apk.sh" || !cfg.Extract.Cleanup {
		t.Errorf("extract = %+v", cfg.Extract)
	}
	if cfg.Connection.Type != ConnectionUSB || cfg.Connection.TCPIPPort != 5555 {
		t.Errorf("connection = %+v", cfg.Connection)
	}
}

func TestLoadTemplateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apk-extractor.yaml")
	if err := SaveTemplate(path, false); err != nil {
		t.Fatal(err)
	}
	if err := SaveTemplate(path, false); err == nil {
		t.Error("expected error when template exists")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	if *cfg != want {
		t.Errorf("template differs from defaults:\n got %+v\nwant %+v", *cfg, want)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	content := `
adb:
  path: /opt/sdk/adb
  command_timeout: 5s
connection:
  type: wifi
  address: 192.168.1.20
extract:
  include_splits: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APKX_EXTRACT_MECHANISM", "device")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ADB.Path != "/opt/sdk/adb" || cfg.ADB.CommandTimeout != 5*time.Second {
		t.Errorf("adb = %+v", cfg.ADB)
	}
	if cfg.Connection.Type != ConnectionWiFi || !cfg.Extract.IncludeSplits {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Extract.Mechanism != MechanismDevice {
		t.Errorf("env override ignored: %s", cfg.Extract.Mechanism)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Config)
	}{
		{"connection type", func(c *models.Config) { c.Connection.Type = "bluetooth" }},
		{"wifi without address", func(c *models.Config) { c.Connection.Type = ConnectionWiFi }},
		{"port", func(c *models.Config) { c.Connection.TCPIPPort = 70000 }},
		{"mechanism", func(c *models.Config) { c.Extract.Mechanism = "magic" }},
		{"log format", func(c *models.Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := Validate(&cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	cfg := Default()
	if err := Validate(&cfg); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestMarshal(t *testing.T) {
	cfg := Default()
	out, err := Marshal(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "remote_script: /data/local/tmp/extract-apk.sh") {
		t.Errorf("yaml = %s", out)
	}
}
