package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/brewprobe/internal/detect"
	"github.com/felixgeelhaar/brewprobe/internal/errors"
	"github.com/felixgeelhaar/brewprobe/internal/ux"
)

var checkSystemCmd = &cobra.Command{
	Use:   "check-system",
	Short: "Report platform, required tools and optional tools",
	Long: `Detect the platform and the tools brewprobe relies on.

Required: brew, git, python3. A missing required tool exits with code 3.
Optional: podman, docker, pipx, pdflatex, node.`,
	Args: cobra.NoArgs,
	RunE: runCheckSystem,
}

var checkSystemFormat string

func init() {
	checkSystemCmd.Flags().StringVar(&checkSystemFormat, "format", "text", "output format (text, json, yaml)")
	rootCmd.AddCommand(checkSystemCmd)
}

func runCheckSystem(cmd *cobra.Command, _ []string) error {
	detected := detect.DetectAll()

	if checkSystemFormat == "text" || checkSystemFormat == "" {
		fmt.Fprint(cmd.OutOrStdout(), detected.Summary())
	} else {
		formatter, err := ux.NewFormatter(checkSystemFormat, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
		if err != nil {
			return usageError(err)
		}
		if err := formatter.Format(detected); err != nil {
			return err
		}
	}

	if missing := detected.MissingRequired(); len(missing) > 0 {
		return errors.NewEnvironmentUnavailable(missing...)
	}
	return nil
}
