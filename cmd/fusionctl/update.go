package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/selivandex/sentiment-fusion/internal/dashboard"
	"github.com/selivandex/sentiment-fusion/internal/orchestrator"
	"github.com/selivandex/sentiment-fusion/internal/portfolio"
	"github.com/selivandex/sentiment-fusion/pkg/models"
)

func updateCMD() *cobra.Command {
	var withCleanup bool

	var update = &cobra.Command{
		Use:   "update <code>",
		Short: "Fetch, score and refresh one instrument in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := args[0]
			if !portfolio.ValidCode(code) {
				return portfolio.ErrInvalidCode
			}

			cfg, err := setup()
			if err != nil {
				return err
			}

			p, err := newPipeline(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			var snap orchestrator.Snapshot
			if withCleanup {
				snap, err = p.orch.CleanupAndUpdate(cmd.Context(), code)
			} else {
				snap, err = p.orch.Update(cmd.Context(), code)
			}
			if printErr := printJSON(snap); printErr != nil {
				return printErr
			}
			return err
		},
	}
	update.Flags().BoolVar(&withCleanup, "cleanup", false, "remove duplicates and invalid analyses first")

	return update
}

func fusedCMD() *cobra.Command {
	var days int
	var newsWeight, forumWeight float64

	var fused = &cobra.Command{
		Use:   "fused <code>",
		Short: "Print the price series merged with daily sentiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := args[0]
			if !portfolio.ValidCode(code) {
				return portfolio.ErrInvalidCode
			}
			if days < 1 || days > 365 {
				return fmt.Errorf("days must be within [1, 365]")
			}

			cfg, err := setup()
			if err != nil {
				return err
			}

			p, err := newPipeline(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			weights := models.WeightConfig{NewsWeight: cfg.Pipeline.NewsWeight, ForumWeight: cfg.Pipeline.ForumWeight}
			if cmd.Flags().Changed("news-weight") {
				weights.NewsWeight = newsWeight
			}
			if cmd.Flags().Changed("forum-weight") {
				weights.ForumWeight = forumWeight
			}

			points, err := p.dashboard.FusedSeries(cmd.Context(), code, days, weights)
			if err != nil {
				return err
			}
			return printJSON(points)
		},
	}
	fused.Flags().IntVar(&days, "days", dashboard.DefaultFusedDays, "trading days to include")
	fused.Flags().Float64Var(&newsWeight, "news-weight", 0, "override news weight")
	fused.Flags().Float64Var(&forumWeight, "forum-weight", 0, "override forum weight")

	return fused
}
