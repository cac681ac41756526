package cmd

import (
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/huanfeng/apk-extractor/internal/config"
	"github.com/huanfeng/apk-extractor/internal/errors"
	"github.com/huanfeng/apk-extractor/internal/i18n"
	"github.com/huanfeng/apk-extractor/internal/version"
	"github.com/huanfeng/apk-extractor/pkg/models"
	"github.com/huanfeng/apk-extractor/pkg/utils"
)

var (
	cfgFile  string
	verbose  bool
	debug    bool
	logFile  string
	noColor  bool
	langFlag string

	appConfig *models.Config
	logger    *utils.ExtractorLogger
)

var rootCmd = &cobra.Command{
	Use:   "apk-extractor",
	Short: "Extract installed APKs from Android devices over adb",
	Long: heredoc.Doc(`
		apk-extractor copies installed applications off an Android device over adb
		and resolves whatever it pulled (plain .apk, .apks, .xapk or .apkm) to a
		single base.apk on disk.
	`),
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func reportError(err error) {
	handler := errors.NewErrorHandler(nil)
	if logger != nil {
		handler = errors.NewErrorHandler(logger)
	}
	xerr := handler.Handle(err)

	if verbose || debug {
		fmt.Fprint(os.Stderr, xerr.FormatDetailed())
		return
	}
	pterm.Error.WithWriter(os.Stderr).Println(xerr.Error())
	for _, s := range xerr.Hints() {
		fmt.Fprintf(os.Stderr, "  • %s\n", s)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	if err := i18n.Init(langFlag); err != nil {
		return errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeConfigInvalid,
			"failed to load translations")
	}
	applyCommandLocalization()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	appConfig = cfg

	if noColor || !cfg.Log.Color {
		utils.DisableColor()
	}

	logCfg := utils.DefaultLoggerConfig()
	logCfg.Level = utils.ParseLogLevel(cfg.Log.Level)
	logCfg.Format = utils.ParseLogFormat(cfg.Log.Format)
	logCfg.FilePath = cfg.Log.File
	logCfg.EnableColor = cfg.Log.Color && !noColor
	if verbose && logCfg.Level > utils.LogLevelInfo {
		logCfg.Level = utils.LogLevelInfo
	}
	if debug {
		logCfg.Level = utils.LogLevelDebug
	}
	if logFile != "" {
		logCfg.FilePath = logFile
	}

	l, err := utils.InitGlobalLogger(logCfg)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeConfigInvalid,
			"failed to initialize logger").WithContext("file", logCfg.FilePath)
	}
	logger = l
	logger.Debug("Loaded configuration (adb=%s, connection=%s, mechanism=%s)",
		cfg.ADB.Path, cfg.Connection.Type, cfg.Extract.Mechanism)
	return nil
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentPreRunE = setup

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default ./apk-extractor.yaml or ~/.config/apk-extractor/apk-extractor.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output with detailed errors")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&langFlag, "lang", "", "Interface language (en, zh)")
}
