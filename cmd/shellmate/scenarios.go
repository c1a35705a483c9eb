package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shellmate/shellmate/internal/config"
	"github.com/shellmate/shellmate/internal/planner"
	"github.com/shellmate/shellmate/internal/scenario"
	"github.com/spf13/cobra"
)

const defaultScenarioCount = 5

func newScenariosCommand(cfg *config.Config, logger *log.Logger) *cobra.Command {
	var (
		file    string
		count   int
		numbers []int
	)

	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "Run the agent against scenarios from a markdown file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			apiKey := os.Getenv("OPENAI_API_KEY")
			if strings.TrimSpace(apiKey) == "" {
				return errors.New("OPENAI_API_KEY is not set; export it and rerun")
			}

			scenarios, err := scenario.Load(file)
			if err != nil {
				return err
			}
			if len(numbers) > 0 {
				scenarios = scenario.Select(scenarios, numbers)
			} else {
				scenarios = scenario.First(scenarios, count)
			}
			if len(scenarios) == 0 {
				return fmt.Errorf("no scenarios selected from %s", file)
			}

			client, err := planner.NewClient(planner.Options{
				BaseURL:        cfg.BaseURL,
				APIKey:         apiKey,
				Model:          cfg.Model,
				Temperature:    cfg.Temperature,
				RequestTimeout: cfg.RequestTimeout,
				Logger:         logger,
			})
			if err != nil {
				return fmt.Errorf("build planner client: %w", err)
			}

			harnessRunner, err := buildHarnessRunner(cfg, logger, cfg.SafeMode, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}

			batch, err := scenario.NewRunner(scenario.RunnerOptions{
				Planner:  client,
				Executor: harnessRunner,
				Output:   cmd.OutOrStdout(),
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			return batch.Run(cmd.Context(), scenarios)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "SCENARIOS.md", "scenarios markdown file")
	cmd.Flags().IntVarP(&count, "count", "n", defaultScenarioCount, "run the first N scenarios")
	cmd.Flags().IntSliceVar(&numbers, "numbers", nil, "run specific scenarios by list number, e.g. 28,29")
	return cmd
}
