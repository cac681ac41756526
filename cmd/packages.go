package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/huanfeng/apk-extractor/internal/i18n"
	"github.com/huanfeng/apk-extractor/pkg/adb"
	"github.com/huanfeng/apk-extractor/pkg/utils"
)

var (
	packagesFormat string
	packagesSelect bool
)

var packagesCmd = &cobra.Command{
	Use:   "packages [filter]",
	Short: "List installed packages",
	Long: `List packages installed on the device with the path of their APK.
The optional filter matches the package name, APK file name or full path,
ignoring case.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(packagesFormat, formatText, formatTable, formatJSON, formatYAML); err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		client, err := newClient()
		if err != nil {
			return err
		}

		serial, err := packagesSerial(ctx, cmd, client)
		if err != nil {
			return err
		}

		entries, err := client.ListPackages(ctx, serial)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			entries = adb.FilterPackages(entries, args[0])
		}

		out := cmd.OutOrStdout()
		switch packagesFormat {
		case formatJSON, formatYAML:
			return writeStructured(out, packagesFormat, entries)
		case formatTable:
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Name, e.APKName(), e.Path})
			}
			return utils.PrintTable([]string{"PACKAGE", "APK", "PATH"}, rows)
		default:
			for _, e := range entries {
				fmt.Fprintf(out, "%s\t%s\n", e.Name, e.Path)
			}
			fmt.Fprintln(out, i18n.T("packages.count", map[string]interface{}{"count": len(entries)}))
			return nil
		}
	},
}

func packagesSerial(ctx context.Context, cmd *cobra.Command, client *adb.Client) (string, error) {
	if packagesSelect {
		return selectSerial(ctx, client, os.Stdin, cmd.OutOrStdout())
	}
	devices, err := client.Devices(ctx)
	if err != nil {
		return "", err
	}
	d, err := adb.PreferredDevice(devices, requestedDevice())
	if err != nil {
		return "", err
	}
	return d.Serial, nil
}

func init() {
	rootCmd.AddCommand(packagesCmd)

	addDeviceFlag(packagesCmd)
	packagesCmd.Flags().StringVar(&packagesFormat, "format", formatText, "Output format: text, table, json, yaml")
	packagesCmd.Flags().BoolVar(&packagesSelect, "select", false, "Choose the device interactively when several are online")
}
