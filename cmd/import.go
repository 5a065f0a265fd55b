package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/match-cli/internal/model"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an enrichment feed and merge it into stored profiles",
	Long:  "Reads JSON-lines candidate records (profile_id, field, value, source, observed_at) produced by scraping, lookup, and classification connectors, and consolidates them through the merger.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(ctx); err != nil {
			return err
		}

		candidates, err := readFeed(importFile)
		if err != nil {
			return err
		}

		sum, err := env.Ingestor.Apply(ctx, candidates, time.Now().UTC())
		if err != nil {
			return err
		}

		for _, flag := range sum.ReviewFlags {
			fmt.Printf("REVIEW  %s/%s: %s\n", flag.ProfileID, flag.Field, flag.Reason)
		}
		fmt.Printf("imported %d candidates: %d updated, %d corroborated, %d unchanged, %d skipped\n",
			sum.Candidates, sum.Updated, sum.Corroborated, sum.Unchanged, sum.Skipped)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to JSON-lines feed (defaults to stdin)")
	rootCmd.AddCommand(importCmd)
}

// feedRecord is the wire form of one enrichment candidate.
type feedRecord struct {
	ProfileID  string    `json:"profile_id"`
	Field      string    `json:"field"`
	Value      string    `json:"value"`
	Source     string    `json:"source"`
	ObservedAt time.Time `json:"observed_at"`
}

// readFeed parses a JSON-lines candidate feed from a file or stdin.
func readFeed(path string) ([]model.Candidate, error) {
	var in *os.File
	if path == "" {
		in = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "import: open %s", path)
		}
		defer f.Close()
		in = f
	}

	var candidates []model.Candidate
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec feedRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			zap.L().Warn("import: bad feed line, skipping",
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}

		candidates = append(candidates, model.Candidate{
			ProfileID:  rec.ProfileID,
			Field:      model.FieldKind(rec.Field),
			Value:      rec.Value,
			Source:     model.SourceKind(rec.Source),
			ObservedAt: rec.ObservedAt,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "import: read feed")
	}

	return candidates, nil
}
