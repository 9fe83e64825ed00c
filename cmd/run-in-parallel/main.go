// Command run-in-parallel wraps a non-parallel command-line program,
// splitting its record-oriented inputs into shards, running one shard
// per subprocess (or per batch-scheduler submission), and joining the
// shard outputs back into the caller's requested files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/comav-bio/prunner/internal/config"
	"github.com/comav-bio/prunner/internal/driver"
	"github.com/comav-bio/prunner/internal/logging"
	"github.com/comav-bio/prunner/internal/monitor"
	"github.com/comav-bio/prunner/internal/runner"
)

func main() {
	var (
		command      string
		splits       int
		runnerName   string
		output       string
		errFile      string
		input        string
		schemaArg    string
		requirements string
		monitorAddr  string
	)

	cmd := &cobra.Command{
		Use:   "run-in-parallel",
		Short: "Run a record-oriented command in parallel across shards",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if monitorAddr != "" {
				cfg.MonitorAddr = monitorAddr
			}

			logger := logging.Component(logging.New(cfg.GetLogLevel()), "dispatcher")

			var bus *monitor.Bus
			if cfg.MonitorAddr != "" {
				bus = monitor.NewBus(logger)
				srv := monitor.New(cfg.MonitorAddr, bus, logger)
				go func() {
					if err := srv.ListenAndServe(); err != nil {
						logger.WithError(err).Error("monitor server stopped")
					}
				}()
			}

			var r runner.Runner
			switch runnerName {
			case "", "subprocess":
				r = &runner.Local{Logger: logger}
			case "condor":
				r = &runner.Batch{
					Logger:       logger,
					Submit:       cfg.CondorSubmit,
					Query:        cfg.CondorQuery,
					Wait:         cfg.CondorWait,
					Remove:       cfg.CondorRemove,
					Status:       cfg.CondorStatus,
					TransferFiles: true,
					Requirements: requirements,
				}
			default:
				return fmt.Errorf("unknown runner %q: allowed values are subprocess and condor", runnerName)
			}

			job := driver.JobSpec{
				Command:      command,
				Splits:       splits,
				Output:       output,
				ErrorFile:    errFile,
				Input:        input,
				SchemaArg:    schemaArg,
				Requirements: requirements,
			}

			var diag *os.File
			if errFile != "" {
				if f, err := os.OpenFile(errFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644); err == nil {
					diag = f
					defer f.Close()
				}
			}

			code := driver.Run(job, r, logger, bus, diag)
			os.Exit(code)
			return nil
		},
	}

	cmd.Flags().StringVarP(&command, "command", "c", "", "the command to run")
	cmd.Flags().IntVarP(&splits, "nsplits", "n", 0, "number of shards to create")
	cmd.Flags().StringVarP(&runnerName, "runner", "r", "subprocess", "who should run the shards (subprocess or condor)")
	cmd.Flags().StringVarP(&output, "stdout", "o", "", "a file to store the stdout")
	cmd.Flags().StringVarP(&errFile, "stderr", "e", "", "a file to store the stderr")
	cmd.Flags().StringVarP(&input, "stdin", "i", "", "a file to read the stdin from")
	cmd.Flags().StringVarP(&schemaArg, "cmd_def", "d", "", "the command line definition (file path or literal JSON)")
	cmd.Flags().StringVarP(&requirements, "runner_req", "q", "", "runner requirements")
	cmd.Flags().StringVar(&monitorAddr, "monitor-addr", "", "optional host:port to serve shard status on")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
