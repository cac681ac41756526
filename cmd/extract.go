package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/huanfeng/apk-extractor/internal/config"
	"github.com/huanfeng/apk-extractor/internal/errors"
	"github.com/huanfeng/apk-extractor/internal/i18n"
	"github.com/huanfeng/apk-extractor/internal/session"
	"github.com/huanfeng/apk-extractor/pkg/apk"
	"github.com/huanfeng/apk-extractor/pkg/models"
	"github.com/huanfeng/apk-extractor/pkg/utils"
)

// outputFlags are the report and artifact flags of extract and pull.
type outputFlags struct {
	output string
	info   bool
	icon   bool
	format string
}

var extractFlags struct {
	outputFlags
	mechanism    string
	script       string
	remoteScript string
	staging      string
	splits       bool
	cleanup      bool
	noCleanup    bool
	selectDevice bool
}

var extractCmd = &cobra.Command{
	Use:   "extract <package> [package...]",
	Short: "Extract installed packages from the device",
	Long: heredoc.Doc(`
		Copy one or more installed packages off the device and resolve each to a
		single base APK.

		The remote script is pushed to the device (or, with --mechanism device,
		an existing one is run), it stages the package files, reports their
		paths, and they are pulled with a progress bar. Containers (.apks,
		.xapk, .apkm) are opened and their base.apk is written next to them as
		<package>-base.apk.
	`),
	Example: heredoc.Doc(`
		apk-extractor extract com.example.app
		apk-extractor extract com.example.app --output ./apks --splits --info
		apk-extractor extract com.example.app --wifi 192.168.1.20 --format json
	`),
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(extractFlags.format, formatText, formatJSON, formatYAML); err != nil {
			return err
		}

		var pkgs []models.PackageRef
		for _, name := range args {
			ref, err := models.NewPackageRef(name)
			if err != nil {
				return err
			}
			pkgs = append(pkgs, ref)
		}

		opts, err := extractOptions(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		client, err := newClient()
		if err != nil {
			return err
		}
		if extractFlags.selectDevice && requestedDevice() == "" {
			serial, err := selectSerial(ctx, client, os.Stdin, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			deviceFlag = serial
		}

		structured := extractFlags.format != formatText
		s, n := newSession(client, connectionConfig(), structured)
		defer n.Close()

		var (
			reports []*session.Report
			failed  []string
		)
		for _, pkg := range pkgs {
			report := session.Extract(ctx, s, pkg, opts)
			reports = append(reports, report)
			if !report.OK() {
				failed = append(failed, pkg.Name)
				if ctx.Err() != nil {
					break
				}
			}
		}

		if structured {
			if err := writeStructured(cmd.OutOrStdout(), extractFlags.format, reports); err != nil {
				return err
			}
		} else {
			for _, r := range reports {
				printReport(cmd.OutOrStdout(), r)
			}
		}

		return pipelineError(reports, failed)
	},
}

// extractOptions merges the config with the flags that were set.
func extractOptions(cmd *cobra.Command) (session.ExtractOptions, error) {
	opts := baseOptions()
	flags := cmd.Flags()

	if flags.Changed("mechanism") {
		opts.Mechanism = extractFlags.mechanism
	}
	if flags.Changed("script") {
		opts.LocalScript = extractFlags.script
	}
	if flags.Changed("remote-script") {
		opts.RemoteScript = extractFlags.remoteScript
	}
	if flags.Changed("staging") {
		opts.StagingDir = extractFlags.staging
	}
	if flags.Changed("output") {
		opts.OutputDir = extractFlags.output
	}
	if flags.Changed("splits") {
		opts.IncludeSplits = extractFlags.splits
	}
	if flags.Changed("cleanup") {
		opts.Cleanup = extractFlags.cleanup
	}
	if extractFlags.noCleanup {
		opts.Cleanup = false
	}
	opts.Inspect = extractFlags.info
	opts.Icon = extractFlags.icon

	if opts.Mechanism != config.MechanismPush && opts.Mechanism != config.MechanismDevice {
		return opts, errors.NewValidationError(errors.CodeConfigInvalid,
			fmt.Sprintf("unknown mechanism %q", opts.Mechanism)).
			WithSuggestion("Use --mechanism push or --mechanism device")
	}
	if opts.LocalScript != "" {
		if _, err := os.Stat(opts.LocalScript); err != nil {
			return opts, errors.WrapError(err, errors.ErrorTypeNotFound, errors.CodeArtifactMissing,
				"local script not found").WithContext("path", opts.LocalScript)
		}
	}
	return opts, nil
}

func printReport(w io.Writer, r *session.Report) {
	st := r.State
	if !r.OK() {
		failedStep := ""
		if f := r.Failed(); f != nil {
			failedStep = f.Name
		}
		fmt.Fprintln(w, i18n.T("extract.failed", map[string]interface{}{
			"Package": st.Package.Name,
			"Step":    failedStep,
		}))
		return
	}

	a := st.Artifact
	if a == nil {
		return
	}
	name := st.Package.Name
	if name == "" {
		name = a.RemoteName()
	}
	fmt.Fprintln(w, i18n.T("extract.done", map[string]interface{}{
		"Package":  name,
		"Path":     a.Target(),
		"Size":     utils.FormatSize(a.Size),
		"Duration": r.Duration.Round(1e6).String(),
	}))
	if a.ResolvedPath != "" && a.ResolvedPath != a.LocalPath {
		fmt.Fprintf(w, "  %s: %s\n", i18n.T("extract.container"), a.LocalPath)
	}
	for _, split := range a.Splits {
		fmt.Fprintf(w, "  %s: %s\n", i18n.T("extract.split"), split)
	}
	if st.Info != nil {
		printInfo(w, st.Info)
	}
	if st.IconPath != "" {
		fmt.Fprintf(w, "  %s: %s\n", i18n.T("extract.icon"), st.IconPath)
	}
}

func printInfo(w io.Writer, info *apk.APKInfo) {
	fmt.Fprintf(w, "  Package:     %s\n", info.PackageID)
	if info.Label != "" {
		fmt.Fprintf(w, "  Label:       %s\n", info.Label)
	}
	fmt.Fprintf(w, "  Version:     %s (%d)\n", info.Version, info.VersionCode)
	fmt.Fprintf(w, "  SDK:         min %d, target %d\n", info.MinSDK, info.TargetSDK)
	if len(info.ABIs) > 0 {
		fmt.Fprintf(w, "  ABIs:        %s\n", strings.Join(info.ABIs, ", "))
	}
	fmt.Fprintf(w, "  Size:        %s\n", utils.FormatSize(info.Size))
	fmt.Fprintf(w, "  SHA256:      %s\n", info.SHA256)
	if len(info.Permissions) > 0 {
		fmt.Fprintf(w, "  Permissions: %d\n", len(info.Permissions))
	}
}

// pipelineError returns the single failure as is, or a summary when several
// packages failed.
func pipelineError(reports []*session.Report, failed []string) error {
	switch len(failed) {
	case 0:
		return nil
	case 1:
		for _, r := range reports {
			if !r.OK() {
				return r.Err
			}
		}
	}
	return errors.NewError(errors.ErrorTypeDevice, errors.CodeCommandFailed,
		fmt.Sprintf("%d of %d packages failed", len(failed), len(reports))).
		WithContext("packages", strings.Join(failed, ", "))
}

func addOutputFlags(cmd *cobra.Command, o *outputFlags) {
	f := cmd.Flags()
	f.StringVarP(&o.output, "output", "o", "", "Output directory (default extract.output_dir)")
	f.BoolVar(&o.info, "info", false, "Read package metadata from the resolved APK")
	f.BoolVar(&o.icon, "icon", false, "Save the launcher icon next to the resolved APK")
	f.StringVar(&o.format, "format", formatText, "Report format: text, json, yaml")
}

func init() {
	rootCmd.AddCommand(extractCmd)

	addDeviceFlag(extractCmd)
	addConnectionFlags(extractCmd)
	addOutputFlags(extractCmd, &extractFlags.outputFlags)

	f := extractCmd.Flags()
	f.StringVar(&extractFlags.mechanism, "mechanism", config.MechanismPush, "Script mechanism: push (push the script first) or device (run one already on the device)")
	f.StringVar(&extractFlags.script, "script", "", "Local script to push instead of the built-in one")
	f.StringVar(&extractFlags.remoteScript, "remote-script", "", "Script path on the device (default extract.remote_script)")
	f.StringVar(&extractFlags.staging, "staging", "", "Staging directory on the device (default extract.staging_dir)")
	f.BoolVar(&extractFlags.splits, "splits", false, "Also pull split APKs")
	f.BoolVar(&extractFlags.cleanup, "cleanup", true, "Remove staged files from the device afterwards")
	f.BoolVar(&extractFlags.noCleanup, "no-cleanup", false, "Keep staged files on the device")
	f.BoolVar(&extractFlags.selectDevice, "select", false, "Choose the device interactively when several are online")
}
