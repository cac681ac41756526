package cmd

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huanfeng/apk-extractor/internal/errors"
	"github.com/huanfeng/apk-extractor/internal/i18n"
)

// runRoot executes the root command with args and returns what it printed.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("APKX_LANG", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		resolveFlags.pkg = ""
		resolveFlags.info = false
		resolveFlags.icon = false
		resolveFlags.format = formatText
		langFlag = ""
		noColor = false
		i18n.Reset()
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func writeContainer(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestResolveCommand(t *testing.T) {
	dir := t.TempDir()
	base := bytes.Repeat([]byte{0xAB}, 500)
	container := filepath.Join(dir, "app.xapk")
	writeContainer(t, container, map[string][]byte{
		"base.apk":      base,
		"config.en.apk": bytes.Repeat([]byte{0xCD}, 100),
	})

	out, err := runRoot(t, "resolve", container, "--package", "com.example.app", "--lang", "en", "--no-color")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	want := filepath.Join(dir, "com.example.app-base.apk")
	if !strings.Contains(out, "Resolved xapk: "+want) {
		t.Errorf("output = %q", out)
	}
	data, err := os.ReadFile(want)
	if err != nil || !bytes.Equal(data, base) {
		t.Errorf("resolved file differs from base entry: %v", err)
	}
	if _, err := os.Stat(container); err != nil {
		t.Errorf("container removed: %v", err)
	}
}

func TestResolveCommandJSON(t *testing.T) {
	dir := t.TempDir()
	container := filepath.Join(dir, "bundle.apks")
	writeContainer(t, container, map[string][]byte{"splits/base.apk": []byte("base")})

	out, err := runRoot(t, "resolve", container, "--format", "json", "--lang", "zh", "--no-color")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	var res resolveResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if res.Kind != "apks" || res.Resolved != filepath.Join(dir, "bundle-base.apk") {
		t.Errorf("result = %+v", res)
	}
}

func TestResolveCommandErrors(t *testing.T) {
	dir := t.TempDir()
	container := filepath.Join(dir, "app.xapk")
	writeContainer(t, container, map[string][]byte{"config.en.apk": []byte("split")})

	_, err := runRoot(t, "resolve", container, "--lang", "en")
	if xerr := errors.As(err); xerr == nil || xerr.Code != errors.CodeBaseEntryNotFound {
		t.Errorf("missing base: err = %v", err)
	}

	_, err = runRoot(t, "resolve", container, "--package", "../escaped", "--lang", "en")
	if xerr := errors.As(err); xerr == nil || xerr.Code != errors.CodeInvalidPackage {
		t.Errorf("unsafe package: err = %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(dir), "escaped-base.apk")); statErr == nil {
		t.Error("file written outside the container directory")
	}
}
