// Package system checks the local machine before files are written to it.
package system

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/huanfeng/apk-extractor/internal/errors"
	"github.com/huanfeng/apk-extractor/pkg/utils"
)

// Logger is the logging surface the checker needs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
}

// DiskUsage is the raw usage of the file system holding a path.
type DiskUsage struct {
	Total     uint64
	Used      uint64
	Free      uint64
	Available uint64
}

// DiskSpaceInfo describes free space for a path.
type DiskSpaceInfo struct {
	Path      string  `json:"path"`
	Total     uint64  `json:"total"`
	Free      uint64  `json:"free"`
	Available uint64  `json:"available"`
	Used      uint64  `json:"used"`
	UsedPct   float64 `json:"used_pct"`
}

// PermissionCheck names the access a path must allow.
type PermissionCheck struct {
	Path         string `json:"path"`
	RequireRead  bool   `json:"require_read"`
	RequireWrite bool   `json:"require_write"`
	RequireExec  bool   `json:"require_exec"`
}

// Info summarizes the host.
type Info struct {
	Timestamp    time.Time       `json:"timestamp"`
	OS           string          `json:"os"`
	Architecture string          `json:"architecture"`
	CPUCount     int             `json:"cpu_count"`
	DiskSpaces   []DiskSpaceInfo `json:"disk_spaces"`
	WorkingDir   string          `json:"working_dir"`
	TempDir      string          `json:"temp_dir"`
}

// ResourceChecker inspects disk space and permissions.
type ResourceChecker struct {
	logger Logger
	usage  func(string) (*DiskUsage, error)
}

// NewResourceChecker creates a checker. logger may be nil.
func NewResourceChecker(logger Logger) *ResourceChecker {
	return &ResourceChecker{logger: logger, usage: getDiskUsage}
}

// CheckDiskSpace reports usage of the file system that holds path.
func (rc *ResourceChecker) CheckDiskSpace(path string) (*DiskSpaceInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeFileSystem, errors.CodeExtractionWriteFailed,
			"failed to resolve path").WithContext("path", path)
	}

	usage, err := rc.usage(absPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeFileSystem, errors.CodeExtractionWriteFailed,
			"failed to read disk statistics").WithContext("path", absPath)
	}

	info := &DiskSpaceInfo{
		Path:      absPath,
		Total:     usage.Total,
		Free:      usage.Free,
		Available: usage.Available,
		Used:      usage.Used,
	}
	if usage.Total > 0 {
		info.UsedPct = float64(usage.Used) / float64(usage.Total) * 100
	}

	if rc.logger != nil {
		rc.logger.Debug("Disk space for %s: %.1f%% used, %s available",
			absPath, info.UsedPct, utils.FormatSize(int64(info.Available)))
	}
	return info, nil
}

// RequireSpace fails when the file system holding dir has less than need
// bytes available. A missing dir is checked through its nearest parent.
func (rc *ResourceChecker) RequireSpace(dir string, need int64) error {
	target := existingParent(dir)
	info, err := rc.CheckDiskSpace(target)
	if err != nil {
		return err
	}
	if need > 0 && info.Available < uint64(need) {
		return errors.NewFileSystemError(errors.CodeExtractionWriteFailed,
			fmt.Sprintf("not enough space in %s: need %s, have %s",
				dir, utils.FormatSize(need), utils.FormatSize(int64(info.Available)))).
			WithContext("path", dir).
			WithSuggestion("Free up disk space or choose another output directory")
	}
	return nil
}

func existingParent(dir string) string {
	p, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	for {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}

// CheckPermissions returns one message per failed check.
func (rc *ResourceChecker) CheckPermissions(checks []PermissionCheck) []string {
	var issues []string

	for _, check := range checks {
		if rc.logger != nil {
			rc.logger.Debug("Checking permissions for: %s", check.Path)
		}

		info, err := os.Stat(check.Path)
		if err != nil {
			if os.IsNotExist(err) {
				issues = append(issues, fmt.Sprintf("Path does not exist: %s", check.Path))
			} else {
				issues = append(issues, fmt.Sprintf("Cannot access path %s: %v", check.Path, err))
			}
			continue
		}

		if check.RequireRead {
			if err := checkReadPermission(check.Path); err != nil {
				issues = append(issues, fmt.Sprintf("No read permission for %s: %v", check.Path, err))
			}
		}
		if check.RequireWrite {
			if err := checkWritePermission(check.Path, info.IsDir()); err != nil {
				issues = append(issues, fmt.Sprintf("No write permission for %s: %v", check.Path, err))
			}
		}
		if check.RequireExec && !info.IsDir() && runtime.GOOS != "windows" && info.Mode()&0111 == 0 {
			issues = append(issues, fmt.Sprintf("No execute permission for %s", check.Path))
		}
	}

	return issues
}

func checkReadPermission(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

func checkWritePermission(path string, isDir bool) error {
	if !isDir {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return err
		}
		return f.Close()
	}

	f, err := os.CreateTemp(path, ".apk-extractor-write-test-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// SystemInfo gathers host details and disk usage for paths.
func (rc *ResourceChecker) SystemInfo(paths []string) *Info {
	info := &Info{
		Timestamp:    time.Now(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		CPUCount:     runtime.NumCPU(),
		TempDir:      os.TempDir(),
	}
	if wd, err := os.Getwd(); err == nil {
		info.WorkingDir = wd
	}

	for _, p := range paths {
		disk, err := rc.CheckDiskSpace(existingParent(p))
		if err != nil {
			if rc.logger != nil {
				rc.logger.Warn("Disk check for %s failed: %v", p, err)
			}
			continue
		}
		info.DiskSpaces = append(info.DiskSpaces, *disk)
	}
	return info
}
