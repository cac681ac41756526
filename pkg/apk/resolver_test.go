package apk

import (
	"archive/zip"
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/huanfeng/apk-extractor/internal/errors"
)

type zipEntry struct {
	name string
	data []byte
}

func writeZip(t *testing.T, path string, entries ...zipEntry) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("create entry %s: %v", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			t.Fatalf("write entry %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestResolvePlainReturnsInputUnchanged(t *testing.T) {
	dir := t.TempDir()
	apkPath := filepath.Join(dir, "app.apk")
	if err := os.WriteFile(apkPath, []byte("plain apk"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := NewResolver().Resolve(apkPath, KindPlain, "com.example.app")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != apkPath {
		t.Errorf("Resolve() = %q, want %q", got, apkPath)
	}
	if names := listDir(t, dir); len(names) != 1 {
		t.Errorf("plain resolution wrote files: %v", names)
	}
}

func TestResolvePlainMissingFile(t *testing.T) {
	_, err := NewResolver().Resolve(filepath.Join(t.TempDir(), "missing.apk"), KindPlain, "")
	if !stderrors.Is(err, errors.ErrArtifactMissing) {
		t.Fatalf("expected ErrArtifactMissing, got %v", err)
	}
}

func TestResolveContainerExtractsBase(t *testing.T) {
	base := bytes.Repeat([]byte{0xAB}, 500)
	split := bytes.Repeat([]byte{0xCD}, 100)

	for _, ext := range []string{".xapk", ".apks", ".apkm"} {
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			container := filepath.Join(dir, "app"+ext)
			writeZip(t, container,
				zipEntry{"base.apk", base},
				zipEntry{"config.en.apk", split},
			)

			got, err := NewResolver().ResolvePath(container, "com.example.app")
			if err != nil {
				t.Fatalf("ResolvePath() error = %v", err)
			}

			want := filepath.Join(dir, "com.example.app-base.apk")
			if got != want {
				t.Errorf("ResolvePath() = %q, want %q", got, want)
			}
			if strings.Contains(got, "config.en") {
				t.Errorf("resolved path references split: %q", got)
			}

			data, err := os.ReadFile(got)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(data, base) {
				t.Errorf("extracted %d bytes, want the 500-byte base entry", len(data))
			}

			names := listDir(t, dir)
			wantNames := []string{"app" + ext, "com.example.app-base.apk"}
			if strings.Join(names, ",") != strings.Join(wantNames, ",") {
				t.Errorf("directory = %v, want %v", names, wantNames)
			}
		})
	}
}

func TestResolveContainerNestedBase(t *testing.T) {
	dir := t.TempDir()
	container := filepath.Join(dir, "bundle.apks")
	writeZip(t, container,
		zipEntry{"splits/base.apk", []byte("nested base")},
		zipEntry{"splits/base.apk.idsig", []byte("sig")},
		zipEntry{"splits/not-base.apk", []byte("other")},
	)

	got, err := NewResolver().Resolve(container, KindAPKS, "com.example.app")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	data, _ := os.ReadFile(got)
	if string(data) != "nested base" {
		t.Errorf("extracted %q", data)
	}
}

func TestResolveContainerMissingBase(t *testing.T) {
	dir := t.TempDir()
	container := filepath.Join(dir, "app.apks")
	writeZip(t, container, zipEntry{"config.en.apk", []byte("split")})

	_, err := NewResolver().Resolve(container, KindAPKS, "com.example.app")
	if !stderrors.Is(err, errors.ErrBaseEntryNotFound) {
		t.Fatalf("expected ErrBaseEntryNotFound, got %v", err)
	}
	if xerr := errors.As(err); xerr.Context["apk_entries"] != "config.en.apk" {
		t.Errorf("apk_entries context = %q", xerr.Context["apk_entries"])
	}
	if names := listDir(t, dir); len(names) != 1 {
		t.Errorf("failed resolution wrote files: %v", names)
	}
}

func TestResolveContainerCaseSensitive(t *testing.T) {
	dir := t.TempDir()
	container := filepath.Join(dir, "app.xapk")
	writeZip(t, container, zipEntry{"Base.APK", []byte("upper")})

	_, err := NewResolver().Resolve(container, KindXAPK, "com.example.app")
	if !stderrors.Is(err, errors.ErrBaseEntryNotFound) {
		t.Fatalf("expected ErrBaseEntryNotFound, got %v", err)
	}
}

func TestResolveContainerAmbiguousBase(t *testing.T) {
	dir := t.TempDir()
	container := filepath.Join(dir, "app.xapk")
	writeZip(t, container,
		zipEntry{"base.apk", []byte("one")},
		zipEntry{"extra/base.apk", []byte("two")},
	)

	_, err := NewResolver().Resolve(container, KindXAPK, "com.example.app")
	if !stderrors.Is(err, errors.ErrBaseEntryAmbiguous) {
		t.Fatalf("expected ErrBaseEntryAmbiguous, got %v", err)
	}
	if names := listDir(t, dir); len(names) != 1 {
		t.Errorf("failed resolution wrote files: %v", names)
	}
}

func TestResolveContainerUnreadable(t *testing.T) {
	dir := t.TempDir()
	container := filepath.Join(dir, "app.xapk")
	if err := os.WriteFile(container, []byte("definitely not a zip"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewResolver().Resolve(container, KindXAPK, "com.example.app")
	if !stderrors.Is(err, errors.ErrContainerUnreadable) {
		t.Fatalf("expected ErrContainerUnreadable, got %v", err)
	}
	if xerr := errors.As(err); xerr.Retryable {
		t.Errorf("container errors must not be retryable")
	}
	if names := listDir(t, dir); len(names) != 1 {
		t.Errorf("failed resolution wrote files: %v", names)
	}
}

func TestResolveContainerWriteFailure(t *testing.T) {
	dir := t.TempDir()
	container := filepath.Join(dir, "app.xapk")
	writeZip(t, container, zipEntry{"base.apk", []byte("base")})

	// A directory occupying the destination makes the rename fail.
	blocker := filepath.Join(dir, "com.example.app-base.apk")
	if err := os.MkdirAll(filepath.Join(blocker, "child"), 0755); err != nil {
		t.Fatal(err)
	}

	_, err := NewResolver().Resolve(container, KindXAPK, "com.example.app")
	if !stderrors.Is(err, errors.ErrExtractionWriteFailure) {
		t.Fatalf("expected ErrExtractionWriteFailure, got %v", err)
	}

	names := listDir(t, dir)
	if strings.Join(names, ",") != "app.xapk,com.example.app-base.apk" {
		t.Errorf("temp file left behind: %v", names)
	}
	if info, err := os.Stat(container); err != nil || info.Size() == 0 {
		t.Errorf("container was modified: %v", err)
	}
}

func TestResolveIdempotent(t *testing.T) {
	dir := t.TempDir()
	container := filepath.Join(dir, "app.xapk")
	writeZip(t, container, zipEntry{"base.apk", []byte("stable bytes")})

	r := NewResolver()
	first, err := r.Resolve(container, KindXAPK, "com.example.app")
	if err != nil {
		t.Fatal(err)
	}
	firstData, _ := os.ReadFile(first)

	if err := os.WriteFile(first, []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	second, err := r.Resolve(container, KindXAPK, "com.example.app")
	if err != nil {
		t.Fatal(err)
	}
	secondData, _ := os.ReadFile(second)

	if first != second || !bytes.Equal(firstData, secondData) {
		t.Errorf("second run differs: %q vs %q", firstData, secondData)
	}
}

func TestResolveStemFallbacks(t *testing.T) {
	dir := t.TempDir()

	withManifest := filepath.Join(dir, "download.xapk")
	writeZip(t, withManifest,
		zipEntry{"manifest.json", []byte(`{"package_name":"org.example.viewer","version_code":42}`)},
		zipEntry{"base.apk", []byte("x")},
	)
	got, err := NewResolver().Resolve(withManifest, KindXAPK, "")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "org.example.viewer-base.apk" {
		t.Errorf("manifest stem: got %q", filepath.Base(got))
	}

	bare := filepath.Join(dir, "mystery.apkm")
	writeZip(t, bare, zipEntry{"base.apk", []byte("y")})
	got, err = NewResolver().Resolve(bare, KindAPKM, "")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "mystery-base.apk" {
		t.Errorf("file stem: got %q", filepath.Base(got))
	}
}

func TestResolveUnknownKind(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "notes.txt")
	os.WriteFile(p, []byte("x"), 0644)

	if _, err := NewResolver().ResolvePath(p, ""); !stderrors.Is(err, errors.ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}
	if _, err := NewResolver().Resolve(p, KindUnknown, ""); !stderrors.Is(err, errors.ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}
}

func TestResolveRejectsUnsafePackageName(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	if err := os.Mkdir(out, 0755); err != nil {
		t.Fatal(err)
	}
	container := filepath.Join(out, "app.xapk")
	writeZip(t, container, zipEntry{"base.apk", []byte("base")})

	for _, name := range []string{"../escaped", "com.example/../../x", "/abs/path"} {
		_, err := NewResolver().Resolve(container, KindXAPK, name)
		if xerr := errors.As(err); xerr == nil || xerr.Code != errors.CodeInvalidPackage {
			t.Errorf("Resolve(%q) err = %v, want %s", name, err, errors.CodeInvalidPackage)
		}
	}
	if names := listDir(t, root); strings.Join(names, ",") != "out" {
		t.Errorf("files written outside the container dir: %v", names)
	}
	if names := listDir(t, out); strings.Join(names, ",") != "app.xapk" {
		t.Errorf("unexpected files next to the container: %v", names)
	}
}

func TestResolveKeepsContainerNamedLikeDestination(t *testing.T) {
	dir := t.TempDir()
	container := filepath.Join(dir, "com.example.app-base.apk")
	writeZip(t, container,
		zipEntry{"base.apk", []byte("base")},
		zipEntry{"config.en.apk", []byte("split")},
	)

	_, err := NewResolver().Resolve(container, KindXAPK, "com.example.app")
	if !stderrors.Is(err, errors.ErrExtractionWriteFailure) {
		t.Fatalf("expected ErrExtractionWriteFailure, got %v", err)
	}

	if _, err := ReadContainerManifest(container); err != nil {
		t.Fatalf("container damaged: %v", err)
	}
	if names := listDir(t, dir); strings.Join(names, ",") != "com.example.app-base.apk" {
		t.Errorf("temp file left behind: %v", names)
	}
}
