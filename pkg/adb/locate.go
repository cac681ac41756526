package adb

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/huanfeng/apk-extractor/internal/errors"
)

// Locate finds the adb executable: the configured path, then PATH, then
// the usual SDK install locations.
func Locate(configured string) (string, error) {
	if configured != "" {
		if isExecutable(configured) {
			return configured, nil
		}
		if p, err := exec.LookPath(configured); err == nil {
			return p, nil
		}
	}

	if p, err := exec.LookPath(executableName()); err == nil {
		return p, nil
	}

	for _, p := range CommonPaths() {
		if isExecutable(p) {
			return p, nil
		}
	}

	xerr := errors.NewDependencyError(errors.CodeADBNotFound, "adb executable not found")
	if configured != "" {
		xerr.WithContext("configured", configured)
	}
	return "", xerr
}

func isExecutable(p string) bool {
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}

func executableName() string {
	if runtime.GOOS == "windows" {
		return "adb.exe"
	}
	return "adb"
}

// CommonPaths lists the places platform-tools is usually installed.
func CommonPaths() []string {
	var paths []string

	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if sdk := os.Getenv(env); sdk != "" {
			paths = append(paths, filepath.Join(sdk, "platform-tools", executableName()))
		}
	}

	home, _ := os.UserHomeDir()

	switch runtime.GOOS {
	case "linux":
		paths = append(paths,
			"/usr/bin/adb",
			"/usr/local/bin/adb",
			"/opt/android-sdk/platform-tools/adb",
		)
		if home != "" {
			paths = append(paths,
				filepath.Join(home, "Android/Sdk/platform-tools/adb"),
				filepath.Join(home, ".android-sdk/platform-tools/adb"),
			)
		}

	case "darwin":
		paths = append(paths,
			"/usr/local/bin/adb",
			"/opt/homebrew/bin/adb",
		)
		if home != "" {
			paths = append(paths, filepath.Join(home, "Library/Android/sdk/platform-tools/adb"))
		}

	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			paths = append(paths, filepath.Join(local, "Android", "Sdk", "platform-tools", "adb.exe"))
		}
		if home != "" {
			paths = append(paths, filepath.Join(home, "AppData", "Local", "Android", "Sdk", "platform-tools", "adb.exe"))
		}
		paths = append(paths, `C:\Android\platform-tools\adb.exe`)
	}

	return paths
}
