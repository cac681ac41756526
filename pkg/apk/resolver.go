package apk

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/huanfeng/apk-extractor/internal/errors"
	"github.com/huanfeng/apk-extractor/pkg/models"
)

const (
	// BaseEntryName is the entry name that marks the base package inside a container.
	BaseEntryName = "base.apk"
	// ResolvedSuffix is appended to the stem of the extracted base file.
	ResolvedSuffix = "-base.apk"
)

// Resolver normalizes a downloaded artifact into a single base package file.
type Resolver struct {
	logger Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger used for progress messages.
func WithLogger(logger Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a new archive resolver
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{logger: &SimpleLogger{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the path of the base package for the file at path.
//
// Plain packages are returned unchanged. Containers are opened as zip
// archives and their single base.apk entry is written next to the container
// as <stem>-base.apk, where stem is packageName, the package named in the
// container manifest, or the container's own file stem, in that order.
func (r *Resolver) Resolve(filePath string, kind Kind, packageName string) (string, error) {
	if packageName != "" {
		if _, err := models.NewPackageRef(packageName); err != nil {
			return "", err
		}
	}
	if _, err := os.Stat(filePath); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeNotFound, errors.CodeArtifactMissing,
			"downloaded file not accessible").
			WithContext("path", filePath)
	}

	switch {
	case kind == KindPlain:
		return filePath, nil
	case kind.IsContainer():
		return r.resolveContainer(filePath, kind, packageName)
	default:
		return "", errors.NewValidationError(errors.CodeUnsupportedKind,
			fmt.Sprintf("cannot resolve file of kind %s", kind)).
			WithContext("path", filePath)
	}
}

// ResolvePath resolves filePath using the kind implied by its extension.
func (r *Resolver) ResolvePath(filePath, packageName string) (string, error) {
	kind, err := KindFromPath(filePath)
	if err != nil {
		return "", err
	}
	return r.Resolve(filePath, kind, packageName)
}

func (r *Resolver) resolveContainer(containerPath string, kind Kind, packageName string) (string, error) {
	r.logger.Info("Detected %s container: %s", strings.ToUpper(kind.String()), filepath.Base(containerPath))

	reader, err := zip.OpenReader(containerPath)
	if err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeParsing, errors.CodeContainerUnreadable,
			fmt.Sprintf("%s is not a readable zip archive", filepath.Base(containerPath))).
			WithContext("path", containerPath).
			WithSuggestions([]string{
				"Pull the file from the device again",
				"Check that the file was not truncated",
			})
	}
	defer reader.Close()

	var matches []*zip.File
	var apkEntries []string
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(file.Name), ".apk") {
			apkEntries = append(apkEntries, file.Name)
		}
		if entryBase(file.Name) == BaseEntryName {
			matches = append(matches, file)
		}
	}

	switch len(matches) {
	case 0:
		return "", errors.NewError(errors.ErrorTypeNotFound, errors.CodeBaseEntryNotFound,
			fmt.Sprintf("%s not found in container %s", BaseEntryName, filepath.Base(containerPath))).
			WithContext("path", containerPath).
			WithContext("apk_entries", strings.Join(apkEntries, ", ")).
			WithSuggestions([]string{
				"The file may be a plain APK saved with a container extension",
				"Use a split APK installer to handle containers without a base file",
			})
	case 1:
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.Name)
		}
		return "", errors.NewError(errors.ErrorTypeValidation, errors.CodeBaseEntryAmbiguous,
			fmt.Sprintf("container %s holds %d %s entries", filepath.Base(containerPath), len(matches), BaseEntryName)).
			WithContext("path", containerPath).
			WithContext("candidates", strings.Join(names, ", "))
	}

	stem := packageName
	if stem == "" {
		stem = manifestPackage(&reader.Reader, r.logger)
	}
	if stem == "" {
		base := filepath.Base(containerPath)
		stem = strings.TrimSuffix(base, filepath.Ext(base))
	}
	dest := filepath.Join(filepath.Dir(containerPath), stem+ResolvedSuffix)
	if sameFile(dest, containerPath) {
		return "", errors.NewFileSystemError(errors.CodeExtractionWriteFailed,
			fmt.Sprintf("resolved file %s would overwrite the container", filepath.Base(dest))).
			WithContext("path", containerPath).
			WithSuggestion("Rename the container or pass a different package name")
	}

	r.logger.Info("Extracting %s from %s...", matches[0].Name, filepath.Base(containerPath))
	if err := extractEntry(matches[0], dest); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeFileSystem, errors.CodeExtractionWriteFailed,
			fmt.Sprintf("failed to write %s", filepath.Base(dest))).
			WithContext("entry", matches[0].Name).
			WithContext("destination", dest).
			WithSuggestions([]string{
				"Check free disk space",
				"Check write permission on the output directory",
			})
	}

	r.logger.Info("%s extracted to: %s", BaseEntryName, dest)
	return dest, nil
}

// extractEntry writes the entry to a temp file beside dest and renames it
// into place, so dest is either fully written or left as it was.
func extractEntry(file *zip.File, dest string) error {
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("copy entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// sameFile reports whether a and b name the same file. b must exist.
func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil && absA == absB {
		return true
	}
	infoA, err := os.Stat(a)
	if err != nil {
		return false
	}
	infoB, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(infoA, infoB)
}

// entryBase returns the final path component of a zip entry name.
func entryBase(name string) string {
	return path.Base(strings.ReplaceAll(name, "\\", "/"))
}

func manifestPackage(reader *zip.Reader, logger Logger) string {
	manifest, err := readManifest(reader)
	if err != nil {
		logger.Warn("ignoring container manifest: %v", err)
		return ""
	}
	if manifest == nil {
		return ""
	}
	ref, err := models.NewPackageRef(manifest.PackageName)
	if err != nil {
		return ""
	}
	return ref.Name
}

// Resolve resolves filePath with a default Resolver.
func Resolve(filePath string, kind Kind, packageName string) (string, error) {
	return NewResolver().Resolve(filePath, kind, packageName)
}
