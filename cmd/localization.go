package cmd

import (
	"github.com/spf13/cobra"

	"github.com/huanfeng/apk-extractor/internal/i18n"
)

// applyCommandLocalization updates command and flag descriptions after i18n is initialized.
// Missing translations keep the English text set on the command.
func applyCommandLocalization() {
	// Message ID prefixes per command.
	localizedCommands := map[string]*cobra.Command{
		"cmd.root":        rootCmd,
		"cmd.version":     versionCmd,
		"cmd.devices":     devicesCmd,
		"cmd.devicesWait": devicesWaitCmd,
		"cmd.connect":     connectCmd,
		"cmd.disconnect":  disconnectCmd,
		"cmd.packages":    packagesCmd,
		"cmd.extract":     extractCmd,
		"cmd.pull":        pullCmd,
		"cmd.resolve":     resolveCmd,
		"cmd.script":      scriptCmd,
		"cmd.scriptShow":  scriptShowCmd,
		"cmd.scriptPush":  scriptPushCmd,
		"cmd.doctor":      doctorCmd,
		"cmd.config":      configCmd,
		"cmd.configInit":  configInitCmd,
		"cmd.configShow":  configShowCmd,
	}

	for prefix, cmd := range localizedCommands {
		cmd.Short = translated(prefix+".short", cmd.Short)
		if cmd.Long != "" {
			cmd.Long = translated(prefix+".long", cmd.Long)
		}
	}

	for name, id := range map[string]string{
		"config":   "flags.config",
		"verbose":  "flags.verbose",
		"debug":    "flags.debug",
		"log-file": "flags.logFile",
		"no-color": "flags.noColor",
		"lang":     "flags.lang",
	} {
		if flag := rootCmd.PersistentFlags().Lookup(name); flag != nil {
			flag.Usage = translated(id, flag.Usage)
		}
	}
}

func translated(id, fallback string) string {
	if msg := i18n.T(id); msg != id {
		return msg
	}
	return fallback
}
