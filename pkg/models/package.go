package models

import (
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/huanfeng/apk-extractor/internal/errors"
)

var packageNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)+$`)

// PackageRef identifies an installed application by its package name.
type PackageRef struct {
	Name string `json:"name" yaml:"name"`
}

// NewPackageRef validates name and returns a reference to it.
func NewPackageRef(name string) (PackageRef, error) {
	if !packageNamePattern.MatchString(name) {
		return PackageRef{}, errors.NewValidationError(errors.CodeInvalidPackage,
			fmt.Sprintf("invalid package name %q", name)).
			WithSuggestion("Package names look like com.example.app; list them with 'apk-extractor packages'")
	}
	return PackageRef{Name: name}, nil
}

// String returns the package name
func (p PackageRef) String() string {
	return p.Name
}

// ArtifactState tracks how far an artifact has progressed.
type ArtifactState string

const (
	ArtifactReported   ArtifactState = "reported"
	ArtifactDownloaded ArtifactState = "downloaded"
	ArtifactResolved   ArtifactState = "resolved"
	ArtifactFailed     ArtifactState = "failed"
)

// Artifact is a file pulled (or about to be pulled) from the device.
type Artifact struct {
	Package      PackageRef    `json:"package" yaml:"package"`
	RemotePaths  []string      `json:"remote_paths" yaml:"remote_paths"`
	LocalPath    string        `json:"local_path,omitempty" yaml:"local_path,omitempty"`
	ResolvedPath string        `json:"resolved_path,omitempty" yaml:"resolved_path,omitempty"`
	Kind         string        `json:"kind" yaml:"kind"`
	State        ArtifactState `json:"state" yaml:"state"`
	Size         int64         `json:"size" yaml:"size"`
	Splits       []string      `json:"splits,omitempty" yaml:"splits,omitempty"`
	Error        string        `json:"error,omitempty" yaml:"error,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at" yaml:"updated_at"`
}

// NewArtifact creates an artifact for paths reported by the device.
func NewArtifact(pkg PackageRef, remotePaths ...string) *Artifact {
	return &Artifact{
		Package:     pkg,
		RemotePaths: remotePaths,
		State:       ArtifactReported,
		UpdatedAt:   time.Now(),
	}
}

// PrimaryRemotePath returns the first reported device path.
func (a *Artifact) PrimaryRemotePath() string {
	if len(a.RemotePaths) == 0 {
		return ""
	}
	return a.RemotePaths[0]
}

// RemoteName returns the base name of the primary device path.
func (a *Artifact) RemoteName() string {
	return path.Base(a.PrimaryRemotePath())
}

// MarkDownloaded records the local copy of the primary file.
func (a *Artifact) MarkDownloaded(localPath string, size int64) {
	a.LocalPath = localPath
	a.Size = size
	a.State = ArtifactDownloaded
	a.UpdatedAt = time.Now()
}

// MarkResolved records the resolved base package file.
func (a *Artifact) MarkResolved(resolvedPath string) {
	a.ResolvedPath = resolvedPath
	a.State = ArtifactResolved
	a.UpdatedAt = time.Now()
}

// MarkFailed records a terminal failure.
func (a *Artifact) MarkFailed(err error) {
	a.State = ArtifactFailed
	if err != nil {
		a.Error = err.Error()
	}
	a.UpdatedAt = time.Now()
}

// Terminal reports whether the artifact will not change further.
func (a *Artifact) Terminal() bool {
	return a.State == ArtifactResolved || a.State == ArtifactFailed
}

// Target returns the file subsequent operations should act on.
func (a *Artifact) Target() string {
	if a.ResolvedPath != "" {
		return a.ResolvedPath
	}
	return a.LocalPath
}
