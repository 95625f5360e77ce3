package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civiclabs/stancewatch/internal/model"
	"github.com/civiclabs/stancewatch/internal/store"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the crawl history, newest first",
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
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := st.ListCrawlLog(ctx, store.CrawlLogFilter{
			SubjectID: subject,
			Status:    model.CrawlStatus(status),
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "log")
		}

		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No crawl log entries found.")
			return nil
		}

		formatCrawlLog(os.Stdout, entries)
		return nil
	},
}

func init() {
	logCmd.Flags().String("subject", "", "filter by subject ID")
	logCmd.Flags().String("status", "", "filter by status (success, error)")
	logCmd.Flags().Int("limit", 50, "max number of entries to display")
	rootCmd.AddCommand(logCmd)
}
