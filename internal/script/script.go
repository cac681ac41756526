// Package script holds the shell script run on the device to stage a
// package's APK files, and the parser for what it prints.
package script

import (
	_ "embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/huanfeng/apk-extractor/internal/errors"
)

// Name is the file name the script is pushed as.
const Name = "extract-apk.sh"

// DefaultRemotePath is where the script lives on the device.
const DefaultRemotePath = "/data/local/tmp/" + Name

// DefaultStagingDir is where the script copies APK files.
const DefaultStagingDir = "/data/local/tmp/apk-extractor"

//go:embed extract-apk.sh
var defaultScript []byte

var (
	primaryPattern = regexp.MustCompile(`APK Extracted: (.+\.(?:apk|apks|xapk|apkm))\s*$`)
	splitPattern   = regexp.MustCompile(`Split Extracted: (.+\.apk)\s*$`)
)

// Default returns the embedded script.
func Default() []byte {
	out := make([]byte, len(defaultScript))
	copy(out, defaultScript)
	return out
}

// WriteDefault writes the embedded script to dir and returns its path.
func WriteDefault(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeFileSystem, errors.CodeExtractionWriteFailed,
			"failed to create script directory")
	}
	p := filepath.Join(dir, Name)
	if err := os.WriteFile(p, defaultScript, 0755); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeFileSystem, errors.CodeExtractionWriteFailed,
			"failed to write script").WithContext("path", p)
	}
	return p, nil
}

// Command builds the shell command that makes the remote script executable
// and runs it for pkg. An empty staging leaves the script default in place.
func Command(remoteScript, pkg, staging string) string {
	cmd := fmt.Sprintf("chmod +x %s && %s %s", quote(remoteScript), quote(remoteScript), quote(pkg))
	if staging != "" {
		cmd += " " + quote(staging)
	}
	return cmd
}

// StagedDir is the directory the default script copies pkg into.
func StagedDir(staging, pkg string) string {
	if staging == "" {
		staging = DefaultStagingDir
	}
	return path.Join(staging, pkg)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Report is what the script said it extracted.
type Report struct {
	Primary []string `json:"primary" yaml:"primary"`
	Splits  []string `json:"splits,omitempty" yaml:"splits,omitempty"`
}

// All returns primary paths followed by split paths.
func (r *Report) All() []string {
	return append(append([]string{}, r.Primary...), r.Splits...)
}

// ParseOutput collects the reported device paths from the script's stdout.
// Output without any primary line is an error.
func ParseOutput(stdout string) (*Report, error) {
	report := &Report{}
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := primaryPattern.FindStringSubmatch(line); m != nil {
			report.Primary = append(report.Primary, strings.TrimSpace(m[1]))
			continue
		}
		if m := splitPattern.FindStringSubmatch(line); m != nil {
			report.Splits = append(report.Splits, strings.TrimSpace(m[1]))
		}
	}

	if len(report.Primary) == 0 {
		return nil, errors.NewParsingError(errors.CodeScriptOutput,
			"could not detect the APK path in the script output").
			WithContext("output", strings.TrimSpace(stdout)).
			WithSuggestion("Make sure the script prints 'APK Extracted: <path>'")
	}
	return report, nil
}
