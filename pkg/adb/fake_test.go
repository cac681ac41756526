package adb

import (
	"context"
	"strings"
	"sync"

	"github.com/huanfeng/apk-extractor/pkg/models"
)

// fakeRunner answers adb invocations from a table keyed by the joined
// argument list (without the binary name).
type fakeRunner struct {
	mu        sync.Mutex
	responses map[string]*Result
	calls     []string
	onRun     func(args []string)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: make(map[string]*Result)}
}

func (f *fakeRunner) on(cmdline, stdout string) *fakeRunner {
	f.responses[cmdline] = &Result{Stdout: stdout}
	return f
}

func (f *fakeRunner) fail(cmdline, stderr string, code int) *fakeRunner {
	f.responses[cmdline] = &Result{Stderr: stderr, ExitCode: code}
	return f
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) *Result {
	key := strings.Join(args, " ")
	f.mu.Lock()
	f.calls = append(f.calls, key)
	resp, ok := f.responses[key]
	hook := f.onRun
	f.mu.Unlock()

	if hook != nil {
		hook(args)
	}
	if !ok {
		return &Result{Args: append([]string{name}, args...), Stderr: "unexpected command: " + key, ExitCode: 1}
	}
	out := *resp
	out.Args = append([]string{name}, args...)
	return &out
}

func (f *fakeRunner) called(cmdline string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == cmdline {
			return true
		}
	}
	return false
}

func newTestClient(r Runner) *Client {
	return NewClient(models.ADBConfig{Path: "adb"}, r)
}
