package cmd

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/huanfeng/apk-extractor/internal/config"
	"github.com/huanfeng/apk-extractor/pkg/adb"
	"github.com/huanfeng/apk-extractor/pkg/models"
)

var (
	connectWiFi string
	connectPort int
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to a device over USB or Wi-Fi",
	Long: heredoc.Doc(`
		Select a device and check that it accepts commands.

		With --wifi the attached USB device is switched to TCP mode first, then
		adb connects to the given address. The connection stays up in the adb
		server until 'apk-extractor disconnect' is run.
	`),
	Example: heredoc.Doc(`
		apk-extractor connect
		apk-extractor connect --wifi 192.168.1.20
		apk-extractor connect --wifi 192.168.1.20:5556
	`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		client, err := newClient()
		if err != nil {
			return err
		}

		s, n := newSession(client, connectionConfig(), false)
		defer n.Close()
		_, err = s.Connect(ctx)
		return err
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect [address]",
	Short: "Drop a Wi-Fi connection",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		conn := currentConfig().Connection
		addr := conn.Address
		if len(args) == 1 {
			addr = args[0]
		}
		addr, err := adb.NormalizeAddress(addr, conn.TCPIPPort)
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		if err := client.Disconnect(ctx, addr); err != nil {
			return err
		}
		pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Disconnected %s", addr)
		return nil
	},
}

// connectionConfig applies --wifi and --port to the configured connection.
func connectionConfig() models.ConnectionConfig {
	conn := currentConfig().Connection
	if connectWiFi != "" {
		conn.Type = config.ConnectionWiFi
		conn.Address = connectWiFi
	}
	if connectPort > 0 {
		conn.TCPIPPort = connectPort
	}
	return conn
}

func addConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&connectWiFi, "wifi", "", "Connect over Wi-Fi to this address (host or host:port)")
	cmd.Flags().IntVar(&connectPort, "port", 0, "TCP port for adb tcpip (default connection.tcpip_port)")
}

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)

	addDeviceFlag(connectCmd)
	addConnectionFlags(connectCmd)
}
