package cmd

import (
	"path"

	"github.com/spf13/cobra"

	"github.com/huanfeng/apk-extractor/internal/session"
	"github.com/huanfeng/apk-extractor/pkg/models"
)

var pullFlags struct {
	outputFlags
	pkg string
}

var pullCmd = &cobra.Command{
	Use:   "pull <remote-path>",
	Short: "Pull a package file from the device and resolve it",
	Long: `Copy a file from the device by path, then resolve it to a single base
APK if it is a container. Use this for files the remote script does not
know about, such as bundles in the Download folder.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(pullFlags.format, formatText, formatJSON, formatYAML); err != nil {
			return err
		}
		remote := path.Clean(args[0])

		var pkg models.PackageRef
		if pullFlags.pkg != "" {
			ref, err := models.NewPackageRef(pullFlags.pkg)
			if err != nil {
				return err
			}
			pkg = ref
		}

		opts := baseOptions()
		if cmd.Flags().Changed("output") {
			opts.OutputDir = pullFlags.output
		}
		opts.Inspect = pullFlags.info
		opts.Icon = pullFlags.icon

		ctx, cancel := commandContext(cmd)
		defer cancel()

		client, err := newClient()
		if err != nil {
			return err
		}
		structured := pullFlags.format != formatText
		s, n := newSession(client, connectionConfig(), structured)
		defer n.Close()

		report := session.Pull(ctx, s, remote, pkg, opts)
		if structured {
			if err := writeStructured(cmd.OutOrStdout(), pullFlags.format, report); err != nil {
				return err
			}
		} else {
			printReport(cmd.OutOrStdout(), report)
		}
		return report.Err
	},
}

func init() {
	rootCmd.AddCommand(pullCmd)

	addDeviceFlag(pullCmd)
	addConnectionFlags(pullCmd)
	addOutputFlags(pullCmd, &pullFlags.outputFlags)
	pullCmd.Flags().StringVarP(&pullFlags.pkg, "package", "p", "", "Package name used to name the resolved file")
}
