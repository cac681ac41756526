package cmd

import (
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/huanfeng/apk-extractor/internal/config"
)

var (
	configInitGlobal bool
	configInitForce  bool
	configShowFormat string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or inspect the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a commented configuration template",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.FileName + ".yaml"
		if configInitGlobal {
			dir, err := config.Dir()
			if err != nil {
				return err
			}
			path = filepath.Join(dir, config.FileName+".yaml")
		}
		if len(args) == 1 {
			path = args[0]
		}

		if err := config.SaveTemplate(path, configInitForce); err != nil {
			return err
		}
		pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Configuration written to %s", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(configShowFormat, formatYAML, formatJSON); err != nil {
			return err
		}
		cfg := currentConfig()
		if configShowFormat == formatJSON {
			return writeStructured(cmd.OutOrStdout(), formatJSON, cfg)
		}
		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().BoolVar(&configInitGlobal, "global", false, "Write to the per-user config directory")
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing file")
	configShowCmd.Flags().StringVar(&configShowFormat, "format", formatYAML, "Output format: yaml, json")
}
