package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civiclabs/stancewatch/internal/subjects"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl eligible subjects and record their policy positions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("crawl"); err != nil {
			return err
		}

		subjectsFile, _ := cmd.Flags().GetString("subjects")
		force, _ := cmd.Flags().GetBool("force")
		limit, _ := cmd.Flags().GetInt("limit")

		if subjectsFile == "" {
			subjectsFile = cfg.Crawl.SubjectsFile
		}

		directory, err := subjects.LoadFile(subjectsFile)
		if err != nil {
			return eris.Wrap(err, "crawl")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		c, err := initCrawler(st, force, limit)
		if err != nil {
			return err
		}

		summary, err := c.Run(ctx, directory)
		if err != nil {
			return eris.Wrap(err, "crawl")
		}

		fmt.Fprintf(os.Stdout, "Crawled %d of %d eligible subjects: %d succeeded, %d failed, %d positions recorded.\n",
			summary.Crawled, summary.Eligible, summary.Succeeded, summary.Failed, summary.PositionsFound)
		return nil
	},
}

func init() {
	crawlCmd.Flags().String("subjects", "", "path to subjects YAML file (default from config)")
	crawlCmd.Flags().Bool("force", false, "ignore re-crawl skip windows")
	crawlCmd.Flags().Int("limit", 0, "max subjects to crawl this run (0 = no limit)")
	rootCmd.AddCommand(crawlCmd)
}
