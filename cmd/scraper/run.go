package main

import (
	"go-careerwatch/internal/metrics"
	"go-careerwatch/internal/notifier"
	"go-careerwatch/internal/pipeline"

	"github.com/spf13/cobra"
)

func runCommand() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check every configured company once and notify about new postings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var n notifier.Notifier = notifier.NewLog(a.logger)
			if !dryRun {
				if n, err = notifier.New(a.cfg.Notifier, a.logger); err != nil {
					return err
				}
			}
			a.logger.Info("🚀 Starting careerwatch", "notifier", n.Name(), "dry_run", dryRun)

			p := pipeline.Build(a.cfg, a.blobs, a.renderer(), n, metrics.New(), a.logger, dryRun)
			if _, err := p.Run(ctx); err != nil {
				return err
			}
			a.logger.Info("🏁 Execution finished.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log the digest instead of sending it and leave history untouched")
	return cmd
}
