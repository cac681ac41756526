package apk

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"github.com/shogo82148/androidbinary/apk"
	"golang.org/x/image/webp"
)

const (
	// StandardIconSize is the edge length of saved icons
	StandardIconSize = 144
	// IconSuffix is appended to the stem of saved icon files.
	IconSuffix = "-icon.png"
)

// IconExtractor handles icon extraction from APK files
type IconExtractor struct {
	targetSize uint
}

// NewIconExtractor creates a new icon extractor
func NewIconExtractor() *IconExtractor {
	return &IconExtractor{
		targetSize: StandardIconSize,
	}
}

// ExtractIcon returns the launcher icon of the APK, resized and PNG encoded.
func (e *IconExtractor) ExtractIcon(apkPath string) ([]byte, error) {
	if pkg, err := apk.OpenFile(apkPath); err == nil {
		img, iconErr := pkg.Icon(nil)
		pkg.Close()
		if iconErr == nil && img != nil {
			return e.encode(img)
		}
	}

	return e.extractIconFromZip(apkPath)
}

// SaveIcon writes the icon of apkPath next to it and returns the icon path.
func (e *IconExtractor) SaveIcon(apkPath string) (string, error) {
	data, err := e.ExtractIcon(apkPath)
	if err != nil {
		return "", err
	}

	base := filepath.Base(apkPath)
	stem := strings.TrimSuffix(strings.TrimSuffix(base, filepath.Ext(base)), strings.TrimSuffix(ResolvedSuffix, ".apk"))
	iconPath := filepath.Join(filepath.Dir(apkPath), stem+IconSuffix)
	if err := os.WriteFile(iconPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write icon: %w", err)
	}
	return iconPath, nil
}

func (e *IconExtractor) extractIconFromZip(apkPath string) ([]byte, error) {
	reader, err := zip.OpenReader(apkPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open APK: %w", err)
	}
	defer reader.Close()

	iconPriorities := []string{
		"res/mipmap-xxxhdpi/ic_launcher.png",
		"res/mipmap-xxhdpi/ic_launcher.png",
		"res/mipmap-xhdpi/ic_launcher.png",
		"res/mipmap-hdpi/ic_launcher.png",
		"res/drawable-xxxhdpi/ic_launcher.png",
		"res/drawable-xxhdpi/ic_launcher.png",
		"res/drawable-xhdpi/ic_launcher.png",
		"res/drawable-hdpi/ic_launcher.png",
		"res/mipmap-xxxhdpi/ic_launcher.webp",
		"res/mipmap-xxhdpi/ic_launcher.webp",
		"res/mipmap-xhdpi/ic_launcher.webp",
		"res/mipmap-hdpi/ic_launcher.webp",
	}

	files := make(map[string]*zip.File, len(reader.File))
	for _, file := range reader.File {
		files[file.Name] = file
	}

	for _, iconPath := range iconPriorities {
		if file, ok := files[iconPath]; ok {
			if data, err := e.readAndProcess(file); err == nil {
				return data, nil
			}
		}
	}

	for _, file := range reader.File {
		if strings.Contains(file.Name, "ic_launcher") &&
			(strings.HasSuffix(file.Name, ".png") || strings.HasSuffix(file.Name, ".webp")) &&
			!strings.Contains(file.Name, "_foreground") &&
			!strings.Contains(file.Name, "_background") {
			if data, err := e.readAndProcess(file); err == nil {
				return data, nil
			}
		}
	}

	return nil, fmt.Errorf("no launcher icon found in APK")
}

func (e *IconExtractor) readAndProcess(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	iconData, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	var img image.Image
	if filepath.Ext(file.Name) == ".webp" {
		img, err = webp.Decode(bytes.NewReader(iconData))
		if err != nil {
			return nil, fmt.Errorf("failed to decode webp: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(iconData))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
	}

	return e.encode(img)
}

func (e *IconExtractor) encode(img image.Image) ([]byte, error) {
	resized := resize.Resize(e.targetSize, e.targetSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
