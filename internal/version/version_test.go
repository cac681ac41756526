package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	out := Info()
	if !strings.HasPrefix(out, "APK Extractor ") {
		t.Errorf("Info() = %q", out)
	}
	if !strings.Contains(out, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("platform missing from %q", out)
	}
}

func TestGetPrefersInjectedValues(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version, Commit = "v1.2.3", "abc123"
	b := Get()
	if b.Version != "v1.2.3" || b.Commit != "abc123" {
		t.Errorf("Get() = %+v", b)
	}
	if Short() != "v1.2.3" {
		t.Errorf("Short() = %q", Short())
	}
}
