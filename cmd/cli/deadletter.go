package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pingcrafty/mcscan/internal/config"
	"github.com/pingcrafty/mcscan/internal/db"
	"github.com/pingcrafty/mcscan/internal/pipeline"
)

const defaultDeadLetterLimit = 100

var deadLetterLimit int

// deadLetterCmd groups the dead-letter inspection and replay subcommands.
var deadLetterCmd = &cobra.Command{
	Use:   "dead-letter",
	Short: "Inspect and replay persistence failures",
	Long: `Results the persist hook could not write are recorded in the
dead_letters table instead of being dropped. These subcommands list what's
pending and replay it back through the persist hook.`,
}

var deadLetterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unreplayed dead letters",
	Run:   runDeadLetterList,
}

var deadLetterReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay unreplayed dead letters through the persist hook",
	Run:   runDeadLetterReplay,
}

func init() {
	rootCmd.AddCommand(deadLetterCmd)
	deadLetterCmd.AddCommand(deadLetterListCmd)
	deadLetterCmd.AddCommand(deadLetterReplayCmd)
	deadLetterCmd.PersistentFlags().IntVar(&deadLetterLimit, "limit", defaultDeadLetterLimit, "Maximum rows to fetch")
}

func openPostgresSink(ctx context.Context) (*db.PostgresSink, error) {
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	database, err := db.Connect(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db.NewPostgresSink(database), nil
}

func runDeadLetterList(_ *cobra.Command, _ []string) {
	ctx := context.Background()
	sink, err := openPostgresSink(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer sink.Close() //nolint:errcheck

	rows, err := sink.ListDeadLetters(ctx, deadLetterLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing dead letters: %v\n", err)
		os.Exit(1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Failed Hook", "Reason", "Recorded At")
	for _, row := range rows {
		_ = table.Append([]string{
			row.ID,
			row.FailedHook,
			row.FailureReason,
			row.RecordedAt.Format("2006-01-02 15:04:05"),
		})
	}
	_ = table.Render()
	fmt.Printf("%d unreplayed dead letters\n", len(rows))
}

func runDeadLetterReplay(_ *cobra.Command, _ []string) {
	ctx := context.Background()
	sink, err := openPostgresSink(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer sink.Close() //nolint:errcheck

	rows, err := sink.ListDeadLetters(ctx, deadLetterLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing dead letters: %v\n", err)
		os.Exit(1)
	}

	hook := pipeline.NewPersistHook(sink)
	replayed, failed := 0, 0
	for _, row := range rows {
		result, err := row.ScanResult()
		if err != nil {
			fmt.Fprintf(os.Stderr, "dead letter %s: failed to decode: %v\n", row.ID, err)
			failed++
			continue
		}
		if _, err := hook.Process(ctx, &result); err != nil {
			fmt.Fprintf(os.Stderr, "dead letter %s: replay failed: %v\n", row.ID, err)
			failed++
			continue
		}
		if err := sink.MarkDeadLetterReplayed(ctx, row.ID); err != nil {
			fmt.Fprintf(os.Stderr, "dead letter %s: replayed but failed to mark: %v\n", row.ID, err)
			failed++
			continue
		}
		replayed++
	}
	fmt.Printf("replayed %d, failed %d\n", replayed, failed)
}
