package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yourusername/shin/internal/cache"
	"github.com/yourusername/shin/internal/config"
	"github.com/yourusername/shin/internal/service"
)

var (
	raceID string
	since  time.Duration
)

var demarginCmd = &cobra.Command{
	Use:   "demargin",
	Short: "De-margin stored odds",
	Long: `Compute and store implied probabilities from the latest odds in the
database, either for one race or for every race with recent odds.`,
	Example: `  shin demargin --race 0b5e7c1e-8d52-4f8e-9a3a-6a4de0e1a2f1
  shin demargin --since 2h`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if (raceID == "") == (since == 0) {
			return fmt.Errorf("exactly one of --race or --since is required")
		}
		if since < 0 {
			return fmt.Errorf("--since must be positive")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
		defer cancel()

		if err := loadSecrets(ctx); err != nil {
			return err
		}
		if !cfg.Database.Enabled {
			return fmt.Errorf("database must be enabled to de-margin stored odds")
		}
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		db, repos, err := connectDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		svc := service.NewDemarginService(repos.Odds, repos.Probability,
			cache.NewResultCache(cfg.CacheTTL(), cfg.Cache.MaxSize), solverOptions(), logger)

		if raceID != "" {
			return demarginRace(ctx, cmd, svc)
		}

		count, err := svc.DemarginRecent(ctx, time.Now().UTC().Add(-since))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "De-margined %d races with odds in the last %s\n", count, since)
		return nil
	},
}

func init() {
	demarginCmd.Flags().StringVar(&raceID, "race", "", "Race ID to de-margin")
	demarginCmd.Flags().DurationVar(&since, "since", 0, "De-margin every race with odds newer than this")
}

func demarginRace(ctx context.Context, cmd *cobra.Command, svc *service.DemarginService) error {
	id, err := uuid.Parse(raceID)
	if err != nil {
		return fmt.Errorf("invalid race id %q: %w", raceID, err)
	}

	probabilities, err := svc.DemarginRace(ctx, id)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUNNER\tPRICE\tPROBABILITY\tEDGE")
	for _, p := range probabilities {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			p.RunnerID,
			strconv.FormatFloat(p.Price, 'f', 2, 64),
			strconv.FormatFloat(p.Probability, 'f', 6, 64),
			strconv.FormatFloat(p.Edge(), 'f', 4, 64),
		)
	}
	if len(probabilities) > 0 {
		fmt.Fprintf(w, "\nz\t%s\n", strconv.FormatFloat(probabilities[0].Z, 'g', 8, 64))
		fmt.Fprintf(w, "iterations\t%d\n", probabilities[0].Iterations)
	}
	return w.Flush()
}
