package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/huanfeng/apk-extractor/internal/errors"
	"github.com/huanfeng/apk-extractor/internal/i18n"
	"github.com/huanfeng/apk-extractor/pkg/apk"
	"github.com/huanfeng/apk-extractor/pkg/utils"
)

var resolveFlags struct {
	pkg    string
	info   bool
	icon   bool
	format string
}

// resolveResult is what `resolve --format json|yaml` prints.
type resolveResult struct {
	Input    string       `json:"input" yaml:"input"`
	Kind     string       `json:"kind" yaml:"kind"`
	Resolved string       `json:"resolved" yaml:"resolved"`
	Info     *apk.APKInfo `json:"info,omitempty" yaml:"info,omitempty"`
	Icon     string       `json:"icon,omitempty" yaml:"icon,omitempty"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <file>",
	Short: "Resolve a local .apk, .apks, .xapk or .apkm to its base APK",
	Long: `Resolve a package file already on disk. A plain .apk is returned as is;
for a container the single base.apk entry is written next to it as
<package>-base.apk.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(resolveFlags.format, formatText, formatJSON, formatYAML); err != nil {
			return err
		}
		input := args[0]
		if _, err := os.Stat(input); err != nil {
			return errors.WrapError(err, errors.ErrorTypeNotFound, errors.CodeArtifactMissing,
				"input file not found").WithContext("path", input)
		}

		kind, err := apk.KindFromPath(input)
		if err != nil {
			return err
		}

		resolver := apk.NewResolver(apk.WithLogger(utils.GetGlobalLogger()))
		out, err := resolver.Resolve(input, kind, resolveFlags.pkg)
		if err != nil {
			return err
		}
		res := resolveResult{Input: input, Kind: kind.String(), Resolved: out}

		if resolveFlags.info {
			if res.Info, err = apk.Inspect(out); err != nil {
				return err
			}
		}
		if resolveFlags.icon {
			if res.Icon, err = apk.NewIconExtractor().SaveIcon(out); err != nil {
				utils.Warn("Icon not extracted: %v", err)
			}
		}

		w := cmd.OutOrStdout()
		if resolveFlags.format != formatText {
			return writeStructured(w, resolveFlags.format, res)
		}
		fmt.Fprintln(w, i18n.T("resolve.done", map[string]interface{}{"Kind": res.Kind, "Path": out}))
		if res.Info != nil {
			printInfo(w, res.Info)
		}
		if res.Icon != "" {
			fmt.Fprintf(w, "  %s: %s\n", i18n.T("extract.icon"), res.Icon)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	f := resolveCmd.Flags()
	f.StringVarP(&resolveFlags.pkg, "package", "p", "", "Package name used to name the resolved file")
	f.BoolVar(&resolveFlags.info, "info", false, "Read package metadata from the resolved APK")
	f.BoolVar(&resolveFlags.icon, "icon", false, "Save the launcher icon next to the resolved APK")
	f.StringVar(&resolveFlags.format, "format", formatText, "Report format: text, json, yaml")
}
