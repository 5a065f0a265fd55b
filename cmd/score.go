package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/match-cli/internal/model"
)

var scoreSave bool

var scoreCmd = &cobra.Command{
	Use:   "score <profile-a> <profile-b>",
	Short: "Score one profile pair in both directions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		pa, err := env.Store.GetProfile(ctx, args[0])
		if err != nil {
			return err
		}
		pb, err := env.Store.GetProfile(ctx, args[1])
		if err != nil {
			return err
		}

		match, err := env.Aggregator.ScorePair(ctx, pa, pb, time.Now().UTC())
		if err != nil {
			return err
		}

		if scoreSave {
			if err := env.Store.SaveMatch(ctx, match); err != nil {
				return err
			}
		}

		printMatch(match)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(match)
	},
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreSave, "save", false, "persist the match result")
	rootCmd.AddCommand(scoreCmd)
}

func printMatch(m *model.BidirectionalMatch) {
	fmt.Printf("%s <-> %s: %.1f (%s, %s)\n", m.ProfileA, m.ProfileB, m.Combined, m.Tier, m.Strategy)
	fmt.Printf("  %s -> %s: %.1f\n", m.ProfileA, m.ProfileB, m.ScoreAB)
	fmt.Printf("  %s -> %s: %.1f\n", m.ProfileB, m.ProfileA, m.ScoreBA)
}
