package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huanfeng/apk-extractor/internal/version"
)

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version, commit and build platform of apk-extractor.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(versionFormat, formatText, formatJSON, formatYAML); err != nil {
			return err
		}
		if versionFormat != formatText {
			return writeStructured(cmd.OutOrStdout(), versionFormat, version.Get())
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().StringVar(&versionFormat, "format", formatText, "Output format: text, json, yaml")
}
