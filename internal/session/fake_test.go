package session

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/huanfeng/apk-extractor/pkg/adb"
	"github.com/huanfeng/apk-extractor/pkg/models"
)

// fakeDevice simulates adb against one attached device. Remote files are
// served from files; shell commands are answered by prefix.
type fakeDevice struct {
	mu       sync.Mutex
	devices  string
	files    map[string][]byte
	shell    map[string]*adb.Result
	calls    [][]string
	connects map[string]string

	// afterConnect replaces devices once a connect succeeds.
	afterConnect string
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		devices:  "List of devices attached\nSER123 device product:p model:Pixel_7 device:d transport_id:1\n",
		files:    make(map[string][]byte),
		shell:    make(map[string]*adb.Result),
		connects: make(map[string]string),
	}
}

func (f *fakeDevice) Run(ctx context.Context, name string, args ...string) *adb.Result {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()

	res := f.handle(args)
	res.Args = append([]string{name}, args...)
	res.Duration = time.Millisecond
	return res
}

func (f *fakeDevice) handle(args []string) *adb.Result {
	if len(args) >= 2 && args[0] == "-s" {
		args = args[2:]
	}
	if len(args) == 0 {
		return &adb.Result{ExitCode: 1}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch args[0] {
	case "version":
		return &adb.Result{Stdout: "Android Debug Bridge version 1.0.41\nVersion 34.0.5\n"}
	case "devices":
		return &adb.Result{Stdout: f.devices}
	case "push":
		return &adb.Result{Stdout: "1 file pushed"}
	case "tcpip":
		return &adb.Result{Stdout: "restarting in TCP mode port: " + args[1]}
	case "connect":
		if out, ok := f.connects[args[1]]; ok {
			if f.afterConnect != "" {
				f.devices = f.afterConnect
			}
			return &adb.Result{Stdout: out}
		}
		return &adb.Result{Stdout: "cannot connect to " + args[1]}
	case "disconnect":
		return &adb.Result{Stdout: "disconnected " + args[1]}
	case "pull":
		data, ok := f.files[args[1]]
		if !ok {
			return &adb.Result{Stderr: "adb: error: failed to stat remote object '" + args[1] + "': No such file or directory", ExitCode: 1}
		}
		if err := os.WriteFile(args[2], data, 0644); err != nil {
			return &adb.Result{Stderr: err.Error(), ExitCode: 1}
		}
		return &adb.Result{Stdout: "1 file pulled"}
	case "shell":
		cmd := args[1]
		if strings.HasPrefix(cmd, "stat -c %s ") {
			p := strings.Trim(strings.TrimPrefix(cmd, "stat -c %s "), "'")
			data, ok := f.files[p]
			if !ok {
				return &adb.Result{Stderr: "stat: '" + p + "': No such file or directory", ExitCode: 1}
			}
			return &adb.Result{Stdout: strconv.Itoa(len(data)) + "\n"}
		}
		if cmd == "getprop" {
			return &adb.Result{Stdout: "[ro.build.version.sdk]: [34]\n[ro.product.manufacturer]: [Google]\n"}
		}
		for prefix, res := range f.shell {
			if strings.HasPrefix(cmd, prefix) {
				out := *res
				return &out
			}
		}
		return &adb.Result{}
	}
	return &adb.Result{Stderr: "unknown command", ExitCode: 1}
}

func (f *fakeDevice) called(prefix ...string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := strings.Join(prefix, " ")
	for _, c := range f.calls {
		if strings.HasPrefix(strings.Join(c, " "), want) {
			return true
		}
	}
	return false
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) notify(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) has(level Level, substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func newTestSession(f *fakeDevice, rec *recorder, conn models.ConnectionConfig) *Session {
	client := adb.NewClient(models.ADBConfig{Path: "adb"}, f)
	return New(client, conn, WithNotifier(rec.notify), WithConnectRetry(2, time.Millisecond))
}

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(data)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func usbConn() models.ConnectionConfig {
	return models.ConnectionConfig{Type: "usb", TCPIPPort: 5555}
}
