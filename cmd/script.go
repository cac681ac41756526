package cmd

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/huanfeng/apk-extractor/internal/errors"
	"github.com/huanfeng/apk-extractor/internal/script"
	"github.com/huanfeng/apk-extractor/pkg/adb"
)

var scriptRemote string

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Show or push the remote extraction script",
}

var scriptShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the built-in script",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := cmd.OutOrStdout().Write(script.Default())
		return err
	},
}

var scriptPushCmd = &cobra.Command{
	Use:   "push [local-script]",
	Short: "Push a script (the built-in one by default) to the device",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		local := currentConfig().Extract.LocalScript
		if len(args) == 1 {
			local = args[0]
		}
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

		remote := currentConfig().Extract.RemoteScript
		if scriptRemote != "" {
			remote = scriptRemote
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		s, n := newSession(client, connectionConfig(), false)
		defer n.Close()
		if _, err := s.Connect(ctx); err != nil {
			return err
		}

		if err := client.Push(ctx, s.Serial(), local, remote); err != nil {
			return err
		}
		if _, err := client.Shell(ctx, s.Serial(), "chmod +x "+adb.ShellQuote(remote)); err != nil {
			return err
		}
		pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Pushed %s to %s", local, remote)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scriptCmd)
	scriptCmd.AddCommand(scriptShowCmd)
	scriptCmd.AddCommand(scriptPushCmd)

	addDeviceFlag(scriptPushCmd)
	addConnectionFlags(scriptPushCmd)
	scriptPushCmd.Flags().StringVar(&scriptRemote, "remote-script", "", "Destination on the device (default extract.remote_script)")
}
