package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shellmate/shellmate/internal/diagnostics"
	"github.com/spf13/cobra"
)

func newDiagnoseCommand(logger *log.Logger) *cobra.Command {
	var (
		outputPath string
		sections   []string
	)

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Collect a read-only diagnostic snapshot of this host",
		RunE: func(cmd *cobra.Command, _ []string) error {
			collector, err := diagnostics.NewCollector(diagnostics.Options{
				OutputPath: outputPath,
				Sections:   sections,
				Logger:     logger,
			})
			if err != nil {
				return err
			}

			path, err := collector.Collect(cmd.Context())
			if err != nil {
				return fmt.Errorf("collect diagnostics: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Diagnostics written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "snapshot file path (default diagnostics-<timestamp>.log)")
	cmd.Flags().StringSliceVar(&sections, "sections", nil,
		fmt.Sprintf("sections to collect (default all: %s)", strings.Join(diagnostics.SectionNames(), ", ")))
	return cmd
}
