package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/huanfeng/apk-extractor/internal/config"
	"github.com/huanfeng/apk-extractor/internal/session"
	"github.com/huanfeng/apk-extractor/pkg/adb"
	"github.com/huanfeng/apk-extractor/pkg/models"
	"github.com/huanfeng/apk-extractor/pkg/system"
	"github.com/huanfeng/apk-extractor/pkg/utils"
)

// deviceFlag is shared by every command that talks to a single device.
var deviceFlag string

func addDeviceFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&deviceFlag, "device", "s", "", "Device serial (defaults to adb.default_device, then the preferred online device)")
}

// commandContext is cancelled on Ctrl+C.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func currentConfig() *models.Config {
	if appConfig == nil {
		cfg := config.Default()
		appConfig = &cfg
	}
	return appConfig
}

// baseOptions returns the configured extract options with a free space
// check on the output directory.
func baseOptions() session.ExtractOptions {
	opts := session.OptionsFromConfig(currentConfig().Extract)
	opts.SpaceCheck = system.NewResourceChecker(utils.GetGlobalLogger()).RequireSpace
	return opts
}

// newClient locates adb and wraps it in a client.
func newClient() (*adb.Client, error) {
	cfg := currentConfig().ADB
	path, err := adb.Locate(cfg.Path)
	if err != nil {
		return nil, err
	}
	cfg.Path = path

	opts := []adb.Option{}
	if logger != nil {
		opts = append(opts, adb.WithLogger(logger))
	}
	return adb.NewClient(cfg, adb.ExecRunner{}, opts...), nil
}

func requestedDevice() string {
	if deviceFlag != "" {
		return deviceFlag
	}
	return currentConfig().ADB.DefaultDevice
}

// newSession creates a session on client that reports to the terminal.
func newSession(client *adb.Client, conn models.ConnectionConfig, quiet bool) (*session.Session, *cliNotifier) {
	n := newCLINotifier(os.Stdout, quiet)
	opts := []session.Option{session.WithNotifier(n.Notify)}
	if serial := requestedDevice(); serial != "" {
		opts = append(opts, session.WithDevice(serial))
	}
	return session.New(client, conn, opts...), n
}
