package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/huanfeng/apk-extractor/internal/i18n"
	"github.com/huanfeng/apk-extractor/pkg/adb"
	"github.com/huanfeng/apk-extractor/pkg/utils"
)

var (
	devicesFormat   string
	devicesTimeout  time.Duration
	devicesInterval time.Duration
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List connected Android devices",
	Long: heredoc.Doc(`
		List devices known to adb grouped by state. Online devices are enriched
		with model, manufacturer and Android version read over getprop.
	`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(devicesFormat, formatText, formatTable, formatJSON, formatYAML); err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		client, err := newClient()
		if err != nil {
			return err
		}
		status, err := client.DeviceStatus(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch devicesFormat {
		case formatJSON, formatYAML:
			return writeStructured(out, devicesFormat, status)
		case formatTable:
			return showDevicesTable(status)
		default:
			showDevices(out, status)
			return nil
		}
	},
}

var devicesWaitCmd = &cobra.Command{
	Use:   "wait <device-serial>",
	Short: "Wait for a device to come online",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		if devicesTimeout > 0 {
			var stop context.CancelFunc
			ctx, stop = context.WithTimeout(ctx, devicesTimeout)
			defer stop()
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		spinner, _ := pterm.DefaultSpinner.WithWriter(cmd.OutOrStdout()).Start(
			i18n.T("devices.waiting", map[string]interface{}{"Serial": args[0]}))
		d, err := client.WaitForDevice(ctx, args[0], devicesInterval)
		if err != nil {
			if spinner != nil {
				spinner.Fail(err.Error())
			}
			return err
		}
		if spinner != nil {
			spinner.Success(i18n.T("devices.nowOnline", map[string]interface{}{"Device": d.DisplayName()}))
		}
		return nil
	},
}

func showDevices(w io.Writer, status *adb.DeviceStatus) {
	if status.Total == 0 {
		fmt.Fprintln(w, i18n.T("devices.none"))
		fmt.Fprintln(w, i18n.T("devices.troubleshoot"))
		return
	}

	section := func(title string, devices []adb.Device) {
		if len(devices) == 0 {
			return
		}
		fmt.Fprintf(w, "%s (%d):\n", title, len(devices))
		for i, d := range devices {
			fmt.Fprintf(w, "  %d. %s\n", i+1, formatDevice(d))
		}
		fmt.Fprintln(w)
	}
	section(i18n.T("devices.onlineTitle"), status.Online)
	section(i18n.T("devices.offlineTitle"), status.Offline)
	section(i18n.T("devices.unauthorizedTitle"), status.Unauthorized)

	fmt.Fprintln(w, i18n.T("devices.summary", map[string]interface{}{
		"Total":        status.Total,
		"Online":       len(status.Online),
		"Offline":      len(status.Offline),
		"Unauthorized": len(status.Unauthorized),
	}))
}

func showDevicesTable(status *adb.DeviceStatus) error {
	all := append(append(append([]adb.Device{}, status.Online...), status.Offline...), status.Unauthorized...)
	rows := make([][]string, 0, len(all))
	for _, d := range all {
		rows = append(rows, []string{d.Serial, d.State, d.Model, androidVersion(d), d.Manufacturer, deviceKind(d)})
	}
	return utils.PrintTable([]string{"SERIAL", "STATE", "MODEL", "ANDROID", "MANUFACTURER", "TYPE"}, rows)
}

func formatDevice(d adb.Device) string {
	info := d.DisplayName()
	if d.IsEmulator {
		info += " [emulator]"
	}
	if d.IsWireless {
		info += " [wifi]"
	}
	if v := androidVersion(d); v != "" {
		info += " - Android " + v
	}
	return info
}

func androidVersion(d adb.Device) string {
	v := d.AndroidVer
	if d.AndroidAPI > 0 {
		if v != "" {
			v += " "
		}
		v += fmt.Sprintf("(API %d)", d.AndroidAPI)
	}
	return v
}

func deviceKind(d adb.Device) string {
	switch {
	case d.IsEmulator:
		return "emulator"
	case d.IsWireless:
		return "wifi"
	default:
		return "usb"
	}
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	devicesCmd.AddCommand(devicesWaitCmd)

	devicesCmd.Flags().StringVar(&devicesFormat, "format", formatText, "Output format: text, table, json, yaml")
	devicesWaitCmd.Flags().DurationVar(&devicesTimeout, "timeout", time.Minute, "Give up after this long (0 waits forever)")
	devicesWaitCmd.Flags().DurationVar(&devicesInterval, "interval", time.Second, "Polling interval")
}
