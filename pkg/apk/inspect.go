package apk

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shogo82148/androidbinary/apk"
)

// APKInfo contains information read from a base package file
type APKInfo struct {
	PackageID   string   `json:"package_id" yaml:"package_id"`
	Label       string   `json:"label,omitempty" yaml:"label,omitempty"`
	Version     string   `json:"version" yaml:"version"`
	VersionCode int64    `json:"version_code" yaml:"version_code"`
	MinSDK      int      `json:"min_sdk" yaml:"min_sdk"`
	TargetSDK   int      `json:"target_sdk" yaml:"target_sdk"`
	Size        int64    `json:"size" yaml:"size"`
	SHA256      string   `json:"sha256" yaml:"sha256"`
	Permissions []string `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	ABIs        []string `json:"abis,omitempty" yaml:"abis,omitempty"`
	FilePath    string   `json:"file_path" yaml:"file_path"`
}

// Inspect reads the manifest of the APK at apkPath.
func Inspect(apkPath string) (*APKInfo, error) {
	pkg, err := apk.OpenFile(apkPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open APK: %w", err)
	}
	defer pkg.Close()

	fileInfo, err := os.Stat(apkPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat APK file: %w", err)
	}

	hash, err := fileSHA256(apkPath)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	manifest := pkg.Manifest()

	info := &APKInfo{
		PackageID:   manifest.Package.MustString(),
		Version:     manifest.VersionName.MustString(),
		VersionCode: int64(manifest.VersionCode.MustInt32()),
		MinSDK:      extractMinSDK(&manifest),
		TargetSDK:   extractTargetSDK(&manifest),
		Size:        fileInfo.Size(),
		SHA256:      hash,
		Permissions: extractPermissions(&manifest),
		ABIs:        extractABIs(apkPath),
		FilePath:    apkPath,
	}

	if label, err := pkg.Label(nil); err == nil && label != "" {
		info.Label = label
	} else if label, err := manifest.App.Label.String(); err == nil {
		info.Label = label
	}

	return info, nil
}

func fileSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func extractMinSDK(manifest *apk.Manifest) int {
	if minSDK, err := manifest.SDK.Min.Int32(); err == nil {
		return int(minSDK)
	}
	return 1
}

func extractTargetSDK(manifest *apk.Manifest) int {
	if targetSDK, err := manifest.SDK.Target.Int32(); err == nil {
		return int(targetSDK)
	}
	return 0
}

func extractPermissions(manifest *apk.Manifest) []string {
	var permissions []string
	for _, perm := range manifest.UsesPermissions {
		if permName, err := perm.Name.String(); err == nil && permName != "" {
			permissions = append(permissions, permName)
		}
	}
	return permissions
}

// extractABIs lists the lib/<abi>/ directories of the APK.
func extractABIs(apkPath string) []string {
	reader, err := zip.OpenReader(apkPath)
	if err != nil {
		return nil
	}
	defer reader.Close()

	abiMap := make(map[string]bool)
	for _, file := range reader.File {
		if strings.HasPrefix(file.Name, "lib/") {
			parts := strings.Split(file.Name, "/")
			if len(parts) >= 3 && parts[1] != "" {
				abiMap[parts[1]] = true
			}
		}
	}

	abis := make([]string, 0, len(abiMap))
	for abi := range abiMap {
		abis = append(abis, abi)
	}
	sort.Strings(abis)
	return abis
}

// DisplayName returns the label, falling back to the package id or file name.
func (i *APKInfo) DisplayName() string {
	switch {
	case i.Label != "":
		return i.Label
	case i.PackageID != "":
		return i.PackageID
	default:
		return filepath.Base(i.FilePath)
	}
}
