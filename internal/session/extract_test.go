package session

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huanfeng/apk-extractor/internal/errors"
	"github.com/huanfeng/apk-extractor/pkg/adb"
	"github.com/huanfeng/apk-extractor/pkg/models"
)

const (
	stagedBase  = "/data/local/tmp/apk-extractor/com.example.app/base.apk"
	stagedSplit = "/data/local/tmp/apk-extractor/com.example.app/split_config.en.apk"
)

func testOptions(t *testing.T) ExtractOptions {
	return ExtractOptions{
		Mechanism:        "push",
		RemoteScript:     "/data/local/tmp/extract-apk.sh",
		StagingDir:       "/data/local/tmp/apk-extractor",
		OutputDir:        t.TempDir(),
		Cleanup:          true,
		ProgressInterval: 5 * time.Millisecond,
	}
}

func mustPackage(t *testing.T, name string) models.PackageRef {
	ref, err := models.NewPackageRef(name)
	if err != nil {
		t.Fatal(err)
	}
	return ref
}

func TestExtractPlainPackage(t *testing.T) {
	f := newFakeDevice()
	f.files[stagedBase] = bytes.Repeat([]byte{1}, 500)
	f.shell["chmod +x "] = &adb.Result{Stdout: "APK Extracted: " + stagedBase + "\n"}
	rec := &recorder{}
	s := newTestSession(f, rec, usbConn())
	opts := testOptions(t)

	report := Extract(context.Background(), s, mustPackage(t, "com.example.app"), opts)
	if !report.OK() {
		t.Fatalf("Extract() failed at %v: %v", report.Failed().Name, report.Err)
	}

	var names []string
	for _, step := range report.Steps {
		names = append(names, step.Name)
	}
	want := "check-adb,connect,push-script,run-script,stat,pull,resolve,cleanup"
	if strings.Join(names, ",") != want {
		t.Errorf("steps = %v", names)
	}

	a := report.State.Artifact
	wantPath := filepath.Join(opts.OutputDir, "com.example.app-base.apk")
	if a.State != models.ArtifactResolved || a.ResolvedPath != wantPath || a.LocalPath != wantPath {
		t.Errorf("artifact = %+v", a)
	}
	if a.Size != 500 || a.Kind != "apk" {
		t.Errorf("size/kind = %d/%s", a.Size, a.Kind)
	}

	if !f.called("-s", "SER123", "push") {
		t.Error("script was not pushed")
	}
	if !f.called("-s", "SER123", "shell", "rm -rf '/data/local/tmp/apk-extractor/com.example.app'") {
		t.Error("staging dir was not cleaned up")
	}
	if !rec.has(LevelSuccess, "APK filename detected") {
		t.Error("missing detection event")
	}
	if report.Steps[3].Result == nil || !report.Steps[3].Result.OK() {
		t.Error("run-script result not recorded")
	}
}

func TestExtractContainerDeviceMechanism(t *testing.T) {
	base := bytes.Repeat([]byte{0xAB}, 500)
	f := newFakeDevice()
	f.files["/sdcard/Download/app.xapk"] = buildZip(t, map[string][]byte{
		"base.apk":      base,
		"config.en.apk": bytes.Repeat([]byte{0xCD}, 100),
	})
	f.shell["chmod +x "] = &adb.Result{Stdout: "APK Extracted: /sdcard/Download/app.xapk\n"}
	rec := &recorder{}
	s := newTestSession(f, rec, usbConn())

	opts := testOptions(t)
	opts.Mechanism = "device"

	report := Extract(context.Background(), s, mustPackage(t, "com.example.app"), opts)
	if !report.OK() {
		t.Fatalf("Extract() = %v", report.Err)
	}
	if f.called("-s", "SER123", "push") {
		t.Error("device mechanism must not push")
	}
	if f.called("-s", "SER123", "shell", "rm -rf") {
		t.Error("cleanup touched a path outside the staging dir")
	}

	a := report.State.Artifact
	if a.Kind != "xapk" || filepath.Base(a.LocalPath) != "app.xapk" {
		t.Errorf("artifact = %+v", a)
	}
	data, err := os.ReadFile(a.ResolvedPath)
	if err != nil || !bytes.Equal(data, base) {
		t.Errorf("resolved file differs from base entry: %v", err)
	}
	if filepath.Base(a.ResolvedPath) != "com.example.app-base.apk" {
		t.Errorf("resolved = %s", a.ResolvedPath)
	}
}

func TestExtractContainerWithoutBase(t *testing.T) {
	f := newFakeDevice()
	f.files["/sdcard/app.apks"] = buildZip(t, map[string][]byte{"config.en.apk": []byte("split")})
	f.shell["chmod +x "] = &adb.Result{Stdout: "APK Extracted: /sdcard/app.apks\n"}
	s := newTestSession(f, &recorder{}, usbConn())

	report := Extract(context.Background(), s, mustPackage(t, "com.example.app"), testOptions(t))
	if !stderrors.Is(report.Err, errors.ErrBaseEntryNotFound) {
		t.Fatalf("expected ErrBaseEntryNotFound, got %v", report.Err)
	}
	if report.Failed().Name != StepResolve {
		t.Errorf("failed step = %s", report.Failed().Name)
	}
	if report.State.Artifact.State != models.ArtifactFailed {
		t.Errorf("artifact state = %s", report.State.Artifact.State)
	}
}

func TestExtractScriptPermissionDenied(t *testing.T) {
	f := newFakeDevice()
	f.shell["chmod +x "] = &adb.Result{Stderr: "/data/local/tmp/extract-apk.sh: Permission denied", ExitCode: 126}
	rec := &recorder{}
	s := newTestSession(f, rec, usbConn())

	report := Extract(context.Background(), s, mustPackage(t, "com.example.app"), testOptions(t))
	if report.OK() {
		t.Fatal("expected failure")
	}
	xerr := errors.As(report.Err)
	if xerr.Type != errors.ErrorTypePermission {
		t.Errorf("error type = %s", xerr.Type)
	}
	if xerr.Context["step"] != StepRunScript {
		t.Errorf("step context = %q", xerr.Context["step"])
	}
	if last := report.Steps[len(report.Steps)-1]; last.Name != StepRunScript {
		t.Errorf("pipeline continued after failure: %s", last.Name)
	}
	if report.State.Artifact != nil {
		t.Error("artifact created despite failure")
	}
	if !rec.has(LevelError, "run-script failed") {
		t.Error("missing error event")
	}
}

func TestExtractScriptWithoutMarker(t *testing.T) {
	f := newFakeDevice()
	f.shell["chmod +x "] = &adb.Result{Stdout: "done\n"}
	s := newTestSession(f, &recorder{}, usbConn())

	report := Extract(context.Background(), s, mustPackage(t, "com.example.app"), testOptions(t))
	if xerr := errors.As(report.Err); xerr == nil || xerr.Code != errors.CodeScriptOutput {
		t.Fatalf("expected script output error, got %v", report.Err)
	}
}

func TestExtractWithSplits(t *testing.T) {
	f := newFakeDevice()
	f.files[stagedBase] = []byte("base")
	f.files[stagedSplit] = []byte("split")
	f.shell["chmod +x "] = &adb.Result{Stdout: "APK Extracted: " + stagedBase + "\nSplit Extracted: " + stagedSplit + "\n"}
	s := newTestSession(f, &recorder{}, usbConn())

	opts := testOptions(t)
	opts.IncludeSplits = true
	opts.Cleanup = false

	report := Extract(context.Background(), s, mustPackage(t, "com.example.app"), opts)
	if !report.OK() {
		t.Fatalf("Extract() = %v", report.Err)
	}
	splits := report.State.Artifact.Splits
	want := filepath.Join(opts.OutputDir, "com.example.app-splits", "split_config.en.apk")
	if len(splits) != 1 || splits[0] != want {
		t.Errorf("splits = %v", splits)
	}
	if got := report.State.Artifact.RemotePaths; len(got) != 2 {
		t.Errorf("remote paths = %v", got)
	}
}

func TestPullRemotePath(t *testing.T) {
	f := newFakeDevice()
	f.files["/sdcard/Download/tool.apkm"] = buildZip(t, map[string][]byte{
		"info.json": []byte(`{"pname":"org.tool.app"}`),
		"base.apk":  []byte("tool base"),
	})
	s := newTestSession(f, &recorder{}, usbConn())

	report := Pull(context.Background(), s, "/sdcard/Download/tool.apkm", models.PackageRef{}, testOptions(t))
	if !report.OK() {
		t.Fatalf("Pull() = %v", report.Err)
	}
	if got := filepath.Base(report.State.Artifact.ResolvedPath); got != "org.tool.app-base.apk" {
		t.Errorf("resolved = %s", got)
	}
}

func TestPullMissingRemote(t *testing.T) {
	s := newTestSession(newFakeDevice(), &recorder{}, usbConn())
	report := Pull(context.Background(), s, "/sdcard/none.apk", models.PackageRef{}, testOptions(t))
	if xerr := errors.As(report.Err); xerr == nil || xerr.Code != errors.CodeRemoteFileMissing {
		t.Fatalf("expected remote file missing, got %v", report.Err)
	}
	if report.Failed().Name != StepStat {
		t.Errorf("failed step = %s", report.Failed().Name)
	}
}

func TestPullSpaceCheck(t *testing.T) {
	f := newFakeDevice()
	f.files["/sdcard/app.apk"] = bytes.Repeat([]byte{1}, 300)
	s := newTestSession(f, &recorder{}, usbConn())

	opts := testOptions(t)
	var asked int64
	opts.SpaceCheck = func(dir string, need int64) error {
		asked = need
		return errors.NewFileSystemError(errors.CodeExtractionWriteFailed, "not enough space")
	}

	report := Pull(context.Background(), s, "/sdcard/app.apk", models.PackageRef{}, opts)
	if report.OK() || report.Failed().Name != StepPull {
		t.Fatalf("expected pull to fail, got %+v", report.Failed())
	}
	if asked != 300 {
		t.Errorf("space check asked for %d bytes", asked)
	}
	if f.called("-s", "SER123", "pull") {
		t.Error("pull ran after the space check failed")
	}
}

func TestStepPreconditions(t *testing.T) {
	s := newTestSession(newFakeDevice(), &recorder{}, usbConn())
	st := &State{}

	for _, step := range []Step{ResolveStep(), InspectStep()} {
		err := step.Run(context.Background(), s, st)
		if xerr := errors.As(err); xerr == nil || xerr.Code != errors.CodeStepPrecondition {
			t.Errorf("%s: expected precondition error, got %v", step.Name(), err)
		}
	}

	// Steps that talk to the device refuse to run while disconnected.
	for _, step := range []Step{PushScriptStep(), RunScriptStep(), StatStep(), PullStep()} {
		err := step.Run(context.Background(), s, st)
		if xerr := errors.As(err); xerr == nil || xerr.Code != errors.CodeStepPrecondition {
			t.Errorf("%s: expected precondition error, got %v", step.Name(), err)
		}
	}
}

func TestPipelineNames(t *testing.T) {
	p := ExtractPipeline(ExtractOptions{Mechanism: "device", IncludeSplits: true, Icon: true})
	got := strings.Join(p.Names(), ",")
	want := "check-adb,connect,run-script,stat,pull,resolve,inspect,pull-splits"
	if got != want {
		t.Errorf("Names() = %s", got)
	}
}

func TestPipelineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTestSession(newFakeDevice(), &recorder{}, usbConn())

	report := Extract(ctx, s, mustPackage(t, "com.example.app"), testOptions(t))
	if report.OK() || len(report.Steps) != 0 {
		t.Fatalf("cancelled run executed steps: %+v", report.Steps)
	}
}

func TestLocalName(t *testing.T) {
	a := models.NewArtifact(models.PackageRef{Name: "com.x"}, "/data/app/com.x-1/base.apk")
	if got := LocalName(a); got != "com.x-base.apk" {
		t.Errorf("LocalName() = %s", got)
	}
	b := models.NewArtifact(models.PackageRef{}, "/sdcard/base.apk")
	if got := LocalName(b); got != "base.apk" {
		t.Errorf("LocalName() without package = %s", got)
	}
}
