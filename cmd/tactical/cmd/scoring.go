package cmd

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/thebtf/laboveda/internal/scoring"
	"github.com/thebtf/laboveda/pkg/client"
	"github.com/thebtf/laboveda/pkg/models"
)

func newScoreCmd(a *app) *cobra.Command {
	var (
		counters models.Counters
		revenue  float64
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score raw counters with the configured weights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			calc := scoring.NewCalculator(a.cfg.ScoringConfig())
			return a.emit(calc.Components(counters, revenue))
		},
	}
	cmd.Flags().Int64Var(&counters.Impressions, "impressions", 0, "impressions")
	cmd.Flags().Int64Var(&counters.OutboundClicks, "clicks", 0, "outbound clicks")
	cmd.Flags().Int64Var(&counters.Saves, "saves", 0, "saves")
	cmd.Flags().Float64Var(&revenue, "revenue", 0, "revenue in dollars")
	return cmd
}

func newRecalibrateCmd(a *app) *cobra.Command {
	var (
		concurrency int
		quiet       bool
		remote      bool
	)
	cmd := &cobra.Command{
		Use:   "recalibrate",
		Short: "Recompute every asset and matrix",
		Long: `Recompute every asset and matrix.

Failures are collected in the report instead of stopping the run.
Interrupting the command cancels the remaining work. With --remote the
running worker performs the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency <= 0 {
				concurrency = a.cfg.RecalibrateConcurrency
			}
			if remote {
				report, err := client.New(a.cfg.WorkerPort, a.cfg.APIToken).Recalibrate(cmd.Context(), concurrency)
				if err != nil {
					return err
				}
				return a.emit(report)
			}

			engine, err := a.engine()
			if err != nil {
				return err
			}

			opts := scoring.Options{Concurrency: concurrency}
			if !quiet {
				stderr := cmd.ErrOrStderr()
				var mu sync.Mutex
				opts.Progress = func(p scoring.Progress) {
					mu.Lock()
					defer mu.Unlock()
					fmt.Fprintf(stderr, "\r%-8s %d/%d", p.Phase, p.Done, p.Total)
					if p.Done == p.Total {
						fmt.Fprintln(stderr)
					}
				}
			}

			report, err := engine.RecalibrateAll(cmd.Context(), opts)
			if report != nil {
				if emitErr := a.emit(report); emitErr != nil {
					return emitErr
				}
			}
			if err != nil {
				return err
			}
			if !report.Clean() {
				return fmt.Errorf("recalibration finished with %d asset and %d matrix failures",
					len(report.FailedAssets), len(report.FailedMatrices))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "parallel asset recomputes (default from settings)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "no progress output")
	cmd.Flags().BoolVar(&remote, "remote", false, "ask the running worker to recalibrate")
	return cmd
}

func newRadarCmd(a *app) *cobra.Command {
	var (
		matrix string
		limit  int
	)
	cmd := &cobra.Command{
		Use:       "radar KIND",
		Short:     "Show a radar list (monetization, infrastructure, ghosts, dust)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"monetization", "infrastructure", "ghosts", "dust"},
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			items, err := engine.Radar(cmd.Context(), models.RadarKind(args[0]), matrix, limit)
			if err != nil {
				return err
			}
			return a.emit(items)
		},
	}
	cmd.Flags().StringVarP(&matrix, "matrix", "m", "", "restrict to one matrix")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")
	return cmd
}

func newKPIsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kpis",
		Short: "Show catalog totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			kpis, err := engine.KPIs(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(kpis)
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the health of the running worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := client.New(a.cfg.WorkerPort, a.cfg.APIToken).Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("worker on port %d: %w", a.cfg.WorkerPort, err)
			}
			return a.emit(h)
		},
	}
}
