package adb

import (
	"context"
	"path"
	"sort"
	"strings"
)

// PackageEntry is one line of `pm list packages -f`.
type PackageEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// APKName returns the basename of the package's APK path.
func (p PackageEntry) APKName() string {
	return path.Base(p.Path)
}

// ListPackages returns installed packages sorted by name.
func (c *Client) ListPackages(ctx context.Context, serial string) ([]PackageEntry, error) {
	result, err := c.Shell(ctx, serial, "pm list packages -f")
	if err != nil {
		return nil, err
	}
	return ParsePackageList(result.Stdout), nil
}

// ParsePackageList parses `package:<path>=<name>` lines. The path itself may
// contain '=', so the split is on the last one.
func ParsePackageList(output string) []PackageEntry {
	var entries []PackageEntry
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, "package:")
		if !ok {
			continue
		}
		idx := strings.LastIndex(rest, "=")
		if idx <= 0 || idx == len(rest)-1 {
			continue
		}
		entries = append(entries, PackageEntry{Path: rest[:idx], Name: rest[idx+1:]})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// FilterPackages keeps entries whose name, APK basename or path contains
// filter, ignoring case. An empty filter keeps everything.
func FilterPackages(entries []PackageEntry, filter string) []PackageEntry {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return entries
	}
	var out []PackageEntry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), filter) ||
			strings.Contains(strings.ToLower(e.APKName()), filter) ||
			strings.Contains(strings.ToLower(e.Path), filter) {
			out = append(out, e)
		}
	}
	return out
}
