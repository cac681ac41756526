package apk

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveIconFromZipFallback(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 48, 48))
	for x := 0; x < 48; x++ {
		for y := 0; y < 48; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	apkPath := filepath.Join(dir, "com.example.app-base.apk")
	writeZip(t, apkPath, zipEntry{"res/mipmap-hdpi/ic_launcher.png", buf.Bytes()})

	iconPath, err := NewIconExtractor().SaveIcon(apkPath)
	if err != nil {
		t.Fatalf("SaveIcon() error = %v", err)
	}
	if filepath.Base(iconPath) != "com.example.app-icon.png" {
		t.Errorf("icon path = %q", iconPath)
	}

	f, err := os.Open(iconPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := decoded.Bounds(); b.Dx() != StandardIconSize || b.Dy() != StandardIconSize {
		t.Errorf("icon size = %v", b)
	}
}

func TestExtractIconMissing(t *testing.T) {
	apkPath := filepath.Join(t.TempDir(), "x.apk")
	writeZip(t, apkPath, zipEntry{"classes.dex", []byte("dex")})
	if _, err := NewIconExtractor().ExtractIcon(apkPath); err == nil {
		t.Fatal("expected error when no icon present")
	}
}
