//go:build linux || darwin || freebsd

package system

import (
	"golang.org/x/sys/unix"
)

func getDiskUsage(path string) (*DiskUsage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return nil, err
	}

	bsize := uint64(stat.Bsize)
	total := uint64(stat.Blocks) * bsize
	free := uint64(stat.Bfree) * bsize
	return &DiskUsage{
		Total:     total,
		Used:      total - free,
		Free:      free,
		Available: uint64(stat.Bavail) * bsize,
	}, nil
}
