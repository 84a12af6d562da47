package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/brewprobe/internal/catalog"
)

func init() {
	for _, def := range []struct {
		use, short string
		suite      func() catalog.Suite
	}{
		{"validate", "Install from source, then strict audit and style check", catalog.Validate},
		{"install-test", "Install, run brew test and exercise the installed CLI", catalog.InstallTest},
		{"local", "Check an existing installation without installing or removing it", catalog.Local},
		{"macos", "Native macOS validation: sync the tap, install, audit and smoke-test", catalog.MacOS},
		{"bench", "Time installation and CLI responsiveness", catalog.Bench},
	} {
		rootCmd.AddCommand(newSuiteCommand(def.use, def.short, def.suite))
	}
}

func newSuiteCommand(use, short string, suite func() catalog.Suite) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			settings, err := cmdCtx.Settings()
			if err != nil {
				return err
			}
			return runSuite(cmd, cmdCtx, settings, suite())
		},
	}
	addReportFlags(cmd)
	return cmd
}
