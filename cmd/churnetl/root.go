package main

import (
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"churnetl/internal/config"
	"churnetl/internal/metrics"
	"churnetl/internal/metrics/prompush"
	_ "churnetl/internal/storage/all"
)

// app carries the resolved pipeline configuration and per-run identity shared
// by all subcommands.
type app struct {
	cfg   config.Pipeline
	runID string
}

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath        string
		metricsBackend string
		pushgatewayURL string
	)
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "churnetl",
		Short:         "Customer churn ETL pipeline",
		Long:          "Transforms a raw churn CSV, loads it into the remote store in batches, and validates the result.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if !reportIssues(config.ValidatePipeline(cfg)) {
				return fmt.Errorf("invalid pipeline configuration")
			}
			a.cfg = cfg
			a.runID = uuid.NewString()

			switch metricsBackend {
			case "", "none":
			case "prometheus":
				b, err := prompush.NewBackend(cfg.Job, pushgatewayURL)
				if err != nil {
					return err
				}
				metrics.SetBackend(b)
			default:
				return fmt.Errorf("unknown metrics backend %q (expected \"none\" or \"prometheus\")", metricsBackend)
			}

			log.Printf("run_id=%s job=%s storage.kind=%s remote_enabled=%v",
				a.runID, cfg.Job, cfg.Storage.Kind, cfg.Storage.RemoteEnabled)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if err := metrics.Flush(); err != nil {
				log.Printf("metrics flush failed: %v", err)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Pipeline config file (JSON); defaults apply when omitted")
	rootCmd.PersistentFlags().StringVar(&metricsBackend, "metrics-backend", "none", "Metrics backend (none, prometheus)")
	rootCmd.PersistentFlags().StringVar(&pushgatewayURL, "pushgateway-url", "", "Prometheus Pushgateway base URL")

	rootCmd.AddCommand(
		newTransformCmd(a),
		newLoadCmd(a),
		newValidateCmd(a),
		newRunCmd(a),
	)
	return rootCmd
}

// reportIssues prints validation findings and reports whether the pipeline is
// runnable (no error-severity issues).
func reportIssues(issues []config.Issue) bool {
	ok := true
	for _, is := range issues {
		fmt.Fprintf(os.Stderr, "config: %s\n", is.Error())
		if is.Severity == config.SeverityError {
			ok = false
		}
	}
	return ok
}
