package apk

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// ContainerManifest is the metadata some containers carry next to their APKs.
type ContainerManifest struct {
	Source      string
	PackageName string
	Name        string
	VersionName string
	VersionCode int64
	SplitAPKs   []string
}

// xapkManifest is manifest.json in XAPK files
type xapkManifest struct {
	PackageName string      `json:"package_name"`
	Name        string      `json:"name"`
	VersionCode json.Number `json:"version_code"`
	VersionName string      `json:"version_name"`
	SplitAPKs   []struct {
		File string `json:"file"`
		ID   string `json:"id"`
	} `json:"split_apks"`
}

// apkmInfo is info.json in APKM files
type apkmInfo struct {
	PackageName    string      `json:"pname"`
	AppName        string      `json:"app_name"`
	ReleaseVersion string      `json:"release_version"`
	VersionCode    json.Number `json:"versioncode"`
}

// saiMeta is meta.sai_v1.json / meta.sai_v2.json in APKS files
type saiMeta struct {
	Package     string      `json:"package"`
	Label       string      `json:"label"`
	VersionName string      `json:"version_name"`
	VersionCode json.Number `json:"version_code"`
}

// ReadContainerManifest opens the container at path and returns its manifest.
// A container without a known manifest yields (nil, nil).
func ReadContainerManifest(path string) (*ContainerManifest, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open container (not a valid zip): %w", err)
	}
	defer reader.Close()
	return readManifest(&reader.Reader)
}

func readManifest(reader *zip.Reader) (*ContainerManifest, error) {
	for _, file := range reader.File {
		switch entryBase(file.Name) {
		case "manifest.json":
			var m xapkManifest
			if err := decodeEntry(file, &m); err != nil {
				return nil, err
			}
			out := &ContainerManifest{
				Source:      file.Name,
				PackageName: m.PackageName,
				Name:        m.Name,
				VersionName: m.VersionName,
				VersionCode: parseCode(m.VersionCode),
			}
			for _, s := range m.SplitAPKs {
				out.SplitAPKs = append(out.SplitAPKs, s.File)
			}
			return out, nil
		case "info.json":
			var m apkmInfo
			if err := decodeEntry(file, &m); err != nil {
				return nil, err
			}
			return &ContainerManifest{
				Source:      file.Name,
				PackageName: m.PackageName,
				Name:        m.AppName,
				VersionName: m.ReleaseVersion,
				VersionCode: parseCode(m.VersionCode),
			}, nil
		case "meta.sai_v2.json", "meta.sai_v1.json":
			var m saiMeta
			if err := decodeEntry(file, &m); err != nil {
				return nil, err
			}
			return &ContainerManifest{
				Source:      file.Name,
				PackageName: m.Package,
				Name:        m.Label,
				VersionName: m.VersionName,
				VersionCode: parseCode(m.VersionCode),
			}, nil
		}
	}
	return nil, nil
}

func decodeEntry(file *zip.File, v interface{}) error {
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file.Name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", file.Name, err)
	}
	return nil
}

func parseCode(n json.Number) int64 {
	if n == "" {
		return 0
	}
	code, err := strconv.ParseInt(string(n), 10, 64)
	if err != nil {
		return 0
	}
	return code
}
