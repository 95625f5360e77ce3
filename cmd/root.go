package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civiclabs/stancewatch/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "stancewatch",
	Short: "Policy position tracker for elected officials",
	Long:  "Crawls official websites, extracts policy sections, classifies topics and stances, and records stated positions alongside a crawl history.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
