package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/huanfeng/apk-extractor/internal/errors"
	"github.com/huanfeng/apk-extractor/internal/i18n"
	"github.com/huanfeng/apk-extractor/pkg/adb"
	"github.com/huanfeng/apk-extractor/pkg/system"
	"github.com/huanfeng/apk-extractor/pkg/utils"
)

// minOutputSpace is the free space below which doctor warns about the
// output directory.
const minOutputSpace = 200 * 1024 * 1024

// diagnosis collects what doctor found.
type diagnosis struct {
	issues      []string
	suggestions []string
}

func (d *diagnosis) fail(issue string, suggestions ...string) {
	d.issues = append(d.issues, issue)
	d.suggestions = append(d.suggestions, suggestions...)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that adb and the local environment are ready",
	Long: heredoc.Doc(`
		Run the checks an extraction depends on:

		  - adb can be found and answers 'adb version'
		  - at least one device is online and authorized
		  - the output directory is writable and has free space
	`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, i18n.T("doctor.title"))
		fmt.Fprintln(w, strings.Repeat("=", 50))

		d := &diagnosis{}
		client := checkADB(ctx, w, d)
		if client != nil {
			checkDevices(ctx, w, client, d)
		}
		checkOutputDir(w, currentConfig().Extract.OutputDir, d)

		fmt.Fprintln(w, strings.Repeat("=", 50))
		if len(d.issues) == 0 {
			fmt.Fprintln(w, i18n.T("doctor.ok"))
			return nil
		}

		fmt.Fprintln(w, i18n.T("doctor.issues", map[string]interface{}{"count": len(d.issues)}))
		for i, issue := range d.issues {
			fmt.Fprintf(w, "%d. %s\n", i+1, issue)
		}
		if len(d.suggestions) > 0 {
			fmt.Fprintln(w, "\n"+i18n.T("doctor.suggestions"))
			for _, s := range d.suggestions {
				fmt.Fprintf(w, "   • %s\n", s)
			}
		}
		return errors.NewDependencyError(errors.CodeCommandFailed,
			fmt.Sprintf("system diagnostics found %d issue(s)", len(d.issues)))
	},
}

func checkADB(ctx context.Context, w io.Writer, d *diagnosis) *adb.Client {
	fmt.Fprintln(w, "\n🔍 adb")

	client, err := newClient()
	if err != nil {
		fmt.Fprintf(w, "   ❌ %v\n", err)
		d.fail("adb was not found", errors.As(err).Hints()...)
		return nil
	}

	info, err := client.Version(ctx)
	if err != nil {
		fmt.Fprintf(w, "   ❌ %s: %v\n", client.Path(), err)
		d.fail(fmt.Sprintf("%s does not run", client.Path()), errors.As(err).Hints()...)
		return nil
	}
	fmt.Fprintf(w, "   ✅ %s\n", client.Path())
	fmt.Fprintf(w, "   ✅ Android Debug Bridge %s", info.Bridge)
	if info.Tool != "" {
		fmt.Fprintf(w, " (platform-tools %s)", info.Tool)
	}
	fmt.Fprintln(w)
	return client
}

func checkDevices(ctx context.Context, w io.Writer, client *adb.Client, d *diagnosis) {
	fmt.Fprintln(w, "\n📱 Devices")

	status, err := client.DeviceStatus(ctx)
	if err != nil {
		fmt.Fprintf(w, "   ❌ %v\n", err)
		d.fail("could not list devices")
		return
	}
	for _, dev := range status.Online {
		fmt.Fprintf(w, "   ✅ %s\n", formatDevice(dev))
	}
	for _, dev := range status.Offline {
		fmt.Fprintf(w, "   ⚠️  %s is offline\n", dev.Serial)
	}
	for _, dev := range status.Unauthorized {
		fmt.Fprintf(w, "   🔒 %s is unauthorized\n", dev.Serial)
	}

	switch {
	case len(status.Online) > 0:
	case len(status.Unauthorized) > 0:
		d.fail("no authorized device", "Accept the USB debugging prompt on the device")
	default:
		fmt.Fprintln(w, "   ❌ "+i18n.T("devices.none"))
		d.fail("no online device",
			"Connect a device via USB and enable USB debugging",
			"Or connect over Wi-Fi with 'apk-extractor connect --wifi <ip>'")
	}
}

func checkOutputDir(w io.Writer, dir string, d *diagnosis) {
	if dir == "" {
		dir = "."
	}
	fmt.Fprintf(w, "\n💾 Output directory (%s)\n", dir)

	rc := system.NewResourceChecker(utils.GetGlobalLogger())
	if _, err := os.Stat(dir); err == nil {
		for _, issue := range rc.CheckPermissions([]system.PermissionCheck{{Path: dir, RequireWrite: true}}) {
			fmt.Fprintf(w, "   ❌ %s\n", issue)
			d.fail(issue, "Choose an output directory you can write to")
		}
	} else {
		fmt.Fprintln(w, "   ℹ️  Will be created on first extraction")
	}

	host := rc.SystemInfo([]string{dir})
	for _, disk := range host.DiskSpaces {
		fmt.Fprintf(w, "   ✅ %s available on %s (%.1f%% used)\n",
			utils.FormatSize(int64(disk.Available)), disk.Path, disk.UsedPct)
	}
	if len(host.DiskSpaces) == 0 {
		return
	}
	if err := rc.RequireSpace(dir, minOutputSpace); err != nil {
		d.fail(err.Error(), errors.As(err).Hints()...)
	}
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
