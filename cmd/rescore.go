package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sells-group/match-cli/internal/rescore"
)

var rescoreRunID string

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Rescore every stored profile pair in checkpointed chunks",
	Long:  "Enumerates all unordered profile pairs and recomputes bidirectional matches. Progress is checkpointed per chunk; rerun with the same --run-id to resume an interrupted run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		runID := rescoreRunID
		if runID == "" {
			runID = uuid.New().String()
		}

		runner := rescore.NewRunner(env.Store, env.Aggregator, cfg.Batch.ChunkSize, cfg.Batch.Concurrency)
		sum, err := runner.Run(ctx, runID, time.Now().UTC())
		if err != nil {
			return err
		}

		if sum.Completed {
			fmt.Printf("rescore %s complete: %d of %d pairs scored this run\n", sum.RunID, sum.Scored, sum.TotalPairs)
		} else {
			fmt.Printf("rescore %s interrupted after %d pairs; resume with --run-id %s\n", sum.RunID, sum.Scored, sum.RunID)
		}
		return nil
	},
}

func init() {
	rescoreCmd.Flags().StringVar(&rescoreRunID, "run-id", "", "run id to resume (new runs get a generated id)")
	rootCmd.AddCommand(rescoreCmd)
}
