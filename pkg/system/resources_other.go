//go:build !linux && !darwin && !freebsd && !windows

package system

import (
	"fmt"
	"runtime"
)

func getDiskUsage(path string) (*DiskUsage, error) {
	return nil, fmt.Errorf("disk usage is not supported on %s", runtime.GOOS)
}
