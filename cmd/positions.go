package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civiclabs/stancewatch/internal/model"
	"github.com/civiclabs/stancewatch/internal/store"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Inspect recorded policy positions",
}

var positionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded positions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		subject, _ := cmd.Flags().GetString("subject")
		topic, _ := cmd.Flags().GetString("topic")
		stance, _ := cmd.Flags().GetString("stance")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.PositionFilter{
			SubjectID: subject,
			TopicSlug: topic,
			Stance:    model.Stance(stance),
			Limit:     limit,
		}

		positions, err := st.ListPositions(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "positions list")
		}

		if len(positions) == 0 {
			fmt.Fprintln(os.Stderr, "No positions found.")
			return nil
		}

		formatPositions(os.Stdout, positions)
		return nil
	},
}

var positionsShowCmd = &cobra.Command{
	Use:   "show <subject-id> <topic-id>",
	Short: "Show one position as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		pos, err := st.GetPosition(ctx, args[0], args[1])
		if err != nil {
			return eris.Wrap(err, "positions show")
		}
		if pos == nil {
			fmt.Fprintln(os.Stderr, "Position not found.")
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pos)
	},
}

func init() {
	positionsListCmd.Flags().String("subject", "", "filter by subject ID")
	positionsListCmd.Flags().String("topic", "", "filter by topic slug")
	positionsListCmd.Flags().String("stance", "", "filter by stance (support, oppose, mixed)")
	positionsListCmd.Flags().Int("limit", 50, "max number of positions to display")

	positionsCmd.AddCommand(positionsListCmd)
	positionsCmd.AddCommand(positionsShowCmd)
	rootCmd.AddCommand(positionsCmd)
}

// formatPositions writes a tabular position list to out.
func formatPositions(out io.Writer, positions []model.Position) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SUBJECT\tTOPIC\tSTANCE\tSTRENGTH\tCONF\tKEY\tUPDATED")
	_, _ = fmt.Fprintln(w, "-------\t-----\t------\t--------\t----\t---\t-------")

	for _, p := range positions {
		key := ""
		if p.IsKeyIssue {
			key = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
			p.SubjectID,
			p.TopicSlug,
			p.Stance,
			p.Strength,
			p.Confidence,
			key,
			p.LastUpdated.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatCrawlLog writes a tabular crawl log to out.
func formatCrawlLog(out io.Writer, entries []model.CrawlLogEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSUBJECT\tSTATUS\tERROR_CLASS\tPOSITIONS\tDURATION\tCRAWLED")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t-----------\t---------\t--------\t-------")

	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			truncateID(e.ID),
			e.SubjectID,
			e.Status,
			e.ErrorClass,
			e.PositionsFound,
			e.Duration.Round(time.Millisecond),
			e.CrawledAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
