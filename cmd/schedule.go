package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civiclabs/stancewatch/internal/model"
	"github.com/civiclabs/stancewatch/internal/subjects"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show which subjects the next crawl run would visit",
	Long:  "Dry-run of the re-crawl eligibility check: loads the subject directory, compares it against the latest crawl log entries, and prints who is due without fetching anything.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		subjectsFile, _ := cmd.Flags().GetString("subjects")
		if subjectsFile == "" {
			subjectsFile = cfg.Crawl.SubjectsFile
		}

		directory, err := subjects.LoadFile(subjectsFile)
		if err != nil {
			return eris.Wrap(err, "schedule")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		latest, err := st.LatestCrawlLogs(ctx)
		if err != nil {
			return eris.Wrap(err, "schedule")
		}

		now := time.Now().UTC()
		eligible := initScheduler().Eligible(directory, latest, now, 0)

		due := make(map[string]bool, len(eligible))
		for _, s := range eligible {
			due[s.ID] = true
		}

		formatSchedule(os.Stdout, directory, latest, due)
		fmt.Fprintf(os.Stdout, "\n%d of %d subjects due.\n", len(eligible), len(directory))
		return nil
	},
}

func init() {
	scheduleCmd.Flags().String("subjects", "", "path to subjects YAML file (default from config)")
	rootCmd.AddCommand(scheduleCmd)
}

func formatSchedule(out io.Writer, directory []model.Subject, latest map[string]model.CrawlLogEntry, due map[string]bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SUBJECT\tDUE\tLAST_STATUS\tLAST_CRAWLED")
	_, _ = fmt.Fprintln(w, "-------\t---\t-----------\t------------")

	for _, s := range directory {
		status := "never crawled"
		crawled := "-"
		if e, ok := latest[s.ID]; ok {
			status = string(e.Status)
			if e.ErrorClass != model.ErrorClassNone {
				status += " (" + string(e.ErrorClass) + ")"
			}
			crawled = e.CrawledAt.Format("2006-01-02 15:04")
		}

		dueMark := ""
		if due[s.ID] {
			dueMark = "yes"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, dueMark, status, crawled)
	}
	_ = w.Flush()
}
