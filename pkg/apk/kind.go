package apk

import (
	"path/filepath"
	"strings"

	"github.com/huanfeng/apk-extractor/internal/errors"
)

// Kind tags a downloaded file as a plain package or one of the
// zip-compatible split containers.
type Kind int

const (
	KindUnknown Kind = iota
	KindPlain
	KindAPKS
	KindXAPK
	KindAPKM
)

var kindExtensions = map[string]Kind{
	".apk":  KindPlain,
	".apks": KindAPKS,
	".xapk": KindXAPK,
	".apkm": KindAPKM,
}

// String returns the file extension style name of the kind
func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "apk"
	case KindAPKS:
		return "apks"
	case KindXAPK:
		return "xapk"
	case KindAPKM:
		return "apkm"
	default:
		return "unknown"
	}
}

// IsContainer reports whether files of this kind bundle several APKs.
func (k Kind) IsContainer() bool {
	return k == KindAPKS || k == KindXAPK || k == KindAPKM
}

// KindFromPath derives the kind from the file extension.
func KindFromPath(path string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if kind, ok := kindExtensions[ext]; ok {
		return kind, nil
	}
	return KindUnknown, errors.NewValidationError(errors.CodeUnsupportedKind,
		"unsupported package file type").
		WithContext("path", path).
		WithContext("extension", ext).
		WithSuggestion("Supported extensions: .apk, .apks, .xapk, .apkm")
}

// IsContainerFile checks if the file is an APKS, XAPK or APKM container
func IsContainerFile(path string) bool {
	kind, err := KindFromPath(path)
	return err == nil && kind.IsContainer()
}
