package session

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/huanfeng/apk-extractor/internal/errors"
	"github.com/huanfeng/apk-extractor/internal/script"
	"github.com/huanfeng/apk-extractor/pkg/apk"
	"github.com/huanfeng/apk-extractor/pkg/models"
	"github.com/huanfeng/apk-extractor/pkg/utils"
)

// Step names, in pipeline order.
const (
	StepCheckADB   = "check-adb"
	StepConnect    = "connect"
	StepPushScript = "push-script"
	StepRunScript  = "run-script"
	StepStat       = "stat"
	StepPull       = "pull"
	StepResolve    = "resolve"
	StepInspect    = "inspect"
	StepPullSplits = "pull-splits"
	StepCleanup    = "cleanup"
)

// DefaultProgressInterval is how often the local file is polled during a pull.
const DefaultProgressInterval = 200 * time.Millisecond

// ExtractOptions controls an extraction run.
type ExtractOptions struct {
	Mechanism        string
	LocalScript      string
	RemoteScript     string
	StagingDir       string
	OutputDir        string
	IncludeSplits    bool
	Cleanup          bool
	Inspect          bool
	Icon             bool
	ProgressInterval time.Duration

	// SpaceCheck, when set, is asked before a pull whether dir can hold
	// need more bytes.
	SpaceCheck func(dir string, need int64) error
}

// OptionsFromConfig copies the extract section of the config.
func OptionsFromConfig(cfg models.ExtractConfig) ExtractOptions {
	return ExtractOptions{
		Mechanism:     cfg.Mechanism,
		LocalScript:   cfg.LocalScript,
		RemoteScript:  cfg.RemoteScript,
		StagingDir:    cfg.StagingDir,
		OutputDir:     cfg.OutputDir,
		IncludeSplits: cfg.IncludeSplits,
		Cleanup:       cfg.Cleanup,
	}
}

// ExtractPipeline builds the steps that copy pkg off the device and resolve
// it to a single base package.
func ExtractPipeline(opts ExtractOptions) *Pipeline {
	steps := []Step{CheckADBStep(), ConnectStep()}
	if opts.Mechanism != "device" {
		steps = append(steps, PushScriptStep())
	}
	steps = append(steps, RunScriptStep(), StatStep(), PullStep(), ResolveStep())
	if opts.Inspect || opts.Icon {
		steps = append(steps, InspectStep())
	}
	if opts.IncludeSplits {
		steps = append(steps, PullSplitsStep())
	}
	if opts.Cleanup {
		steps = append(steps, CleanupStep())
	}
	return NewPipeline(steps...)
}

// PullPipeline builds the steps that copy a known device path and resolve it.
func PullPipeline(opts ExtractOptions) *Pipeline {
	steps := []Step{CheckADBStep(), ConnectStep(), StatStep(), PullStep(), ResolveStep()}
	if opts.Inspect || opts.Icon {
		steps = append(steps, InspectStep())
	}
	return NewPipeline(steps...)
}

// Extract runs the extraction pipeline for pkg.
func Extract(ctx context.Context, s *Session, pkg models.PackageRef, opts ExtractOptions) *Report {
	st := &State{Package: pkg, Options: opts}
	return ExtractPipeline(opts).Run(ctx, s, st)
}

// Pull runs the pull pipeline for a device path. pkg may be empty.
func Pull(ctx context.Context, s *Session, remotePath string, pkg models.PackageRef, opts ExtractOptions) *Report {
	st := &State{Package: pkg, Options: opts}
	st.Artifact = models.NewArtifact(pkg, remotePath)
	if kind, err := apk.KindFromPath(remotePath); err == nil {
		st.Artifact.Kind = kind.String()
	}
	return PullPipeline(opts).Run(ctx, s, st)
}

func precondition(step, message string) error {
	return errors.NewValidationError(errors.CodeStepPrecondition, message).
		WithContext("step", step)
}

// CheckADBStep verifies the adb executable answers.
func CheckADBStep() Step {
	return NewStep(StepCheckADB, func(ctx context.Context, s *Session, st *State) error {
		info, err := s.Client().Version(ctx)
		if err != nil {
			return err
		}
		s.Notify(StepCheckADB, LevelInfo, "Android Debug Bridge %s", info.Bridge)
		return nil
	})
}

// ConnectStep selects a device unless the session already has one.
func ConnectStep() Step {
	return NewStep(StepConnect, func(ctx context.Context, s *Session, st *State) error {
		if s.Connected() {
			return nil
		}
		_, err := s.Connect(ctx)
		return err
	})
}

// PushScriptStep pushes the local (or embedded) script to the device.
func PushScriptStep() Step {
	return NewStep(StepPushScript, func(ctx context.Context, s *Session, st *State) error {
		if err := s.RequireConnected(StepPushScript); err != nil {
			return err
		}
		if st.Options.RemoteScript == "" {
			return precondition(StepPushScript, "no remote script path configured")
		}

		local := st.Options.LocalScript
		if local == "" {
			dir, err := os.MkdirTemp("", "apk-extractor-")
			if err != nil {
				return errors.WrapError(err, errors.ErrorTypeFileSystem, errors.CodeExtractionWriteFailed,
					"failed to create temp dir for script")
			}
			defer os.RemoveAll(dir)
			if local, err = script.WriteDefault(dir); err != nil {
				return err
			}
		}

		s.Notify(StepPushScript, LevelInfo, "Pushing %s to %s", filepath.Base(local), st.Options.RemoteScript)
		if err := s.Client().Push(ctx, s.Serial(), local, st.Options.RemoteScript); err != nil {
			return err
		}
		s.Notify(StepPushScript, LevelSuccess, "Script pushed successfully")
		return nil
	})
}

// RunScriptStep runs the script for the package and records what it reported.
func RunScriptStep() Step {
	return NewStep(StepRunScript, func(ctx context.Context, s *Session, st *State) error {
		if err := s.RequireConnected(StepRunScript); err != nil {
			return err
		}
		if st.Package.Name == "" {
			return precondition(StepRunScript, "no package to extract")
		}

		cmd := script.Command(st.Options.RemoteScript, st.Package.Name, st.Options.StagingDir)
		s.Notify(StepRunScript, LevelInfo, "Running script on device for %s", st.Package)

		res, err := s.Client().Shell(ctx, s.Serial(), cmd)
		st.Record(res)
		if err != nil {
			return err
		}

		report, err := script.ParseOutput(res.Stdout)
		if err != nil {
			return err
		}
		if len(report.Primary) > 1 {
			return errors.NewError(errors.ErrorTypeValidation, errors.CodeBaseEntryAmbiguous,
				fmt.Sprintf("script reported %d primary files", len(report.Primary))).
				WithContext("paths", strings.Join(report.Primary, ", "))
		}

		kind, err := apk.KindFromPath(report.Primary[0])
		if err != nil {
			return err
		}

		st.ScriptReport = report
		st.Artifact = models.NewArtifact(st.Package, report.All()...)
		st.Artifact.Kind = kind.String()

		s.Notify(StepRunScript, LevelSuccess, "APK filename detected: %s", report.Primary[0])
		if n := len(report.Splits); n > 0 {
			s.Notify(StepRunScript, LevelInfo, "%d split APK(s) reported", n)
		}
		return nil
	})
}

// StatStep reads the size of the primary file on the device.
func StatStep() Step {
	return NewStep(StepStat, func(ctx context.Context, s *Session, st *State) error {
		if err := s.RequireConnected(StepStat); err != nil {
			return err
		}
		if st.Artifact == nil || st.Artifact.PrimaryRemotePath() == "" {
			return precondition(StepStat, "no device path to inspect")
		}

		size, err := s.Client().FileSize(ctx, s.Serial(), st.Artifact.PrimaryRemotePath())
		if err != nil {
			return err
		}
		st.Artifact.Size = size
		s.Notify(StepStat, LevelInfo, "Remote file size: %s", utils.FormatSize(size))
		return nil
	})
}

// LocalName is the file name used for the pulled primary file. Installed
// packages all report base.apk, so it is prefixed with the package name.
func LocalName(a *models.Artifact) string {
	name := a.RemoteName()
	if name == apk.BaseEntryName && a.Package.Name != "" {
		return a.Package.Name + apk.ResolvedSuffix
	}
	return name
}

// PullStep copies the primary file to the output directory.
func PullStep() Step {
	return NewStep(StepPull, func(ctx context.Context, s *Session, st *State) error {
		if err := s.RequireConnected(StepPull); err != nil {
			return err
		}
		if st.Artifact == nil || st.Artifact.State != models.ArtifactReported {
			return precondition(StepPull, "nothing reported to pull")
		}

		outDir := outputDir(st.Options)
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return errors.WrapError(err, errors.ErrorTypeFileSystem, errors.CodeExtractionWriteFailed,
				"failed to create output directory").WithContext("path", outDir)
		}
		if st.Options.SpaceCheck != nil && st.Artifact.Size > 0 {
			if err := st.Options.SpaceCheck(outDir, st.Artifact.Size); err != nil {
				return err
			}
		}
		local := filepath.Join(outDir, LocalName(st.Artifact))
		remote := st.Artifact.PrimaryRemotePath()

		s.Notify(StepPull, LevelInfo, "Downloading %s", remote)
		err := s.Client().Pull(ctx, s.Serial(), remote, local, st.Artifact.Size, progressInterval(st.Options),
			func(current, total int64) {
				s.Progress(StepPull, current, total)
			})
		if err != nil {
			return err
		}

		if info, statErr := os.Stat(local); statErr == nil && st.Artifact.Size > 0 && info.Size() != st.Artifact.Size {
			s.Notify(StepPull, LevelWarn, "Pulled %s but the device reported %s",
				utils.FormatSize(info.Size()), utils.FormatSize(st.Artifact.Size))
		}

		st.Artifact.MarkDownloaded(local, st.Artifact.Size)
		s.Notify(StepPull, LevelSuccess, "Downloaded to %s", local)
		return nil
	})
}

// ResolveStep normalizes the pulled file to a single base package.
func ResolveStep() Step {
	return NewStep(StepResolve, func(ctx context.Context, s *Session, st *State) error {
		if st.Artifact == nil || st.Artifact.State != models.ArtifactDownloaded {
			return precondition(StepResolve, "no downloaded file to resolve")
		}

		kind, err := apk.KindFromPath(st.Artifact.LocalPath)
		if err != nil {
			st.Artifact.MarkFailed(err)
			return err
		}

		resolver := apk.NewResolver(apk.WithLogger(stepLogger{s: s, step: StepResolve}))
		out, err := resolver.Resolve(st.Artifact.LocalPath, kind, st.Package.Name)
		if err != nil {
			st.Artifact.MarkFailed(err)
			return err
		}
		st.Artifact.MarkResolved(out)
		return nil
	})
}

// InspectStep reads metadata and optionally the icon from the resolved file.
func InspectStep() Step {
	return NewStep(StepInspect, func(ctx context.Context, s *Session, st *State) error {
		if st.Artifact == nil || st.Artifact.State != models.ArtifactResolved {
			return precondition(StepInspect, "no resolved package to inspect")
		}
		target := st.Artifact.Target()

		if st.Options.Inspect {
			info, err := apk.Inspect(target)
			if err != nil {
				return err
			}
			st.Info = info
			s.Notify(StepInspect, LevelInfo, "%s %s (%d)", info.DisplayName(), info.Version, info.VersionCode)
		}

		if st.Options.Icon {
			iconPath, err := apk.NewIconExtractor().SaveIcon(target)
			if err != nil {
				s.Notify(StepInspect, LevelWarn, "Icon not extracted: %v", err)
				return nil
			}
			st.IconPath = iconPath
			s.Notify(StepInspect, LevelSuccess, "Icon saved to %s", iconPath)
		}
		return nil
	})
}

// PullSplitsStep copies the split APKs the script reported.
func PullSplitsStep() Step {
	return NewStep(StepPullSplits, func(ctx context.Context, s *Session, st *State) error {
		if err := s.RequireConnected(StepPullSplits); err != nil {
			return err
		}
		if st.Artifact == nil || st.ScriptReport == nil {
			return precondition(StepPullSplits, "no script report")
		}
		if len(st.ScriptReport.Splits) == 0 {
			s.Notify(StepPullSplits, LevelInfo, "No split APKs reported")
			return nil
		}

		dir := filepath.Join(outputDir(st.Options), st.Package.Name+"-splits")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.WrapError(err, errors.ErrorTypeFileSystem, errors.CodeExtractionWriteFailed,
				"failed to create splits directory").WithContext("path", dir)
		}

		for _, remote := range st.ScriptReport.Splits {
			local := filepath.Join(dir, path.Base(remote))
			size, err := s.Client().FileSize(ctx, s.Serial(), remote)
			if err != nil {
				return err
			}
			s.Notify(StepPullSplits, LevelInfo, "Downloading %s", path.Base(remote))
			err = s.Client().Pull(ctx, s.Serial(), remote, local, size, progressInterval(st.Options),
				func(current, total int64) {
					s.Progress(StepPullSplits, current, total)
				})
			if err != nil {
				return err
			}
			st.Artifact.Splits = append(st.Artifact.Splits, local)
		}

		s.Notify(StepPullSplits, LevelSuccess, "%d split APK(s) saved to %s", len(st.Artifact.Splits), dir)
		return nil
	})
}

// CleanupStep removes the staged copies from the device. Only paths inside
// the staging directory are touched, and failures are reported as warnings.
func CleanupStep() Step {
	return NewStep(StepCleanup, func(ctx context.Context, s *Session, st *State) error {
		if err := s.RequireConnected(StepCleanup); err != nil {
			return err
		}
		if st.Artifact == nil || st.Package.Name == "" {
			return precondition(StepCleanup, "nothing staged")
		}

		staged := script.StagedDir(st.Options.StagingDir, st.Package.Name)
		if !strings.HasPrefix(st.Artifact.PrimaryRemotePath(), staged+"/") {
			s.Notify(StepCleanup, LevelDebug, "Skipping cleanup: %s is outside %s", st.Artifact.PrimaryRemotePath(), staged)
			return nil
		}

		if err := s.Client().Remove(ctx, s.Serial(), staged); err != nil {
			s.Notify(StepCleanup, LevelWarn, "Could not remove %s: %v", staged, err)
			return nil
		}
		s.Notify(StepCleanup, LevelInfo, "Removed %s from device", staged)
		return nil
	})
}

func outputDir(opts ExtractOptions) string {
	if opts.OutputDir == "" {
		return "."
	}
	return opts.OutputDir
}

func progressInterval(opts ExtractOptions) time.Duration {
	if opts.ProgressInterval > 0 {
		return opts.ProgressInterval
	}
	return DefaultProgressInterval
}

// stepLogger forwards resolver messages to the session notifier.
type stepLogger struct {
	s    *Session
	step string
}

func (l stepLogger) Debug(msg string, args ...interface{}) {
	l.s.Notify(l.step, LevelDebug, msg, args...)
}

func (l stepLogger) Info(msg string, args ...interface{}) {
	l.s.Notify(l.step, LevelInfo, msg, args...)
}

func (l stepLogger) Warn(msg string, args ...interface{}) {
	l.s.Notify(l.step, LevelWarn, msg, args...)
}

func (l stepLogger) Error(msg string, args ...interface{}) {
	l.s.Notify(l.step, LevelError, msg, args...)
}
