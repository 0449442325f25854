package main

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/calwatch/warchest/internal/aggregate"
	"github.com/calwatch/warchest/internal/cli"
	"github.com/calwatch/warchest/internal/config"
	"github.com/calwatch/warchest/internal/service"
	"github.com/calwatch/warchest/internal/storage"
)

func aggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Compute spending views from the ledger",
		Long: `Derived views over the reconciled ledger: per-candidate independent
expenditure totals, race rollups, donor traces, and threshold reports.
Aggregates are always recomputable from the ledger; nothing here writes.`,
	}

	cmd.AddCommand(aggregateCandidateCmd())
	cmd.AddCommand(aggregateRaceCmd())
	cmd.AddCommand(aggregateTraceCmd())
	cmd.AddCommand(aggregateThresholdCmd())
	cmd.AddCommand(aggregateRefreshCmd())

	return cmd
}

func aggregateCandidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "candidate [committee-id]",
		Short: "Support/oppose IE totals for one candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			committeeID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("committee id %q is not numeric", args[0])
			}

			settings, store, err := openForAggregation(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			engine := aggregate.NewEngine(store, newResolver(settings), service.RealClock{})
			agg, err := engine.CandidateAggregate(cmd.Context(), committeeID)
			if err != nil {
				return err
			}
			fmt.Println(cli.RenderCandidateAggregate(agg))
			return nil
		},
	}
}

func aggregateRaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "race [office]",
		Short: "Candidate-by-candidate rollup for one race",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cycle, _ := cmd.Flags().GetInt("cycle")
			if cycle == 0 {
				return fmt.Errorf("--cycle is required")
			}

			settings, store, err := openForAggregation(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			engine := aggregate.NewEngine(store, newResolver(settings), service.RealClock{})
			race, err := engine.RaceAggregate(cmd.Context(), args[0], cycle)
			if err != nil {
				return err
			}
			fmt.Println(cli.RenderRaceAggregate(race))
			return nil
		},
	}
	cmd.Flags().Int("cycle", 0, "election cycle year")
	return cmd
}

func aggregateTraceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trace [committee-id]",
		Short: "Trace IE money about a candidate back to its donors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			committeeID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("committee id %q is not numeric", args[0])
			}

			settings, store, err := openForAggregation(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			engine := aggregate.NewEngine(store, newResolver(settings), service.RealClock{})
			trace, err := engine.DonorTrace(cmd.Context(), committeeID)
			if err != nil {
				return err
			}
			fmt.Println(cli.RenderDonorTrace(trace))
			return nil
		},
	}
}

func aggregateThresholdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threshold",
		Short: "Classify candidates against a spending threshold",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, _ := cmd.Flags().GetString("amount")
			threshold, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("threshold amount %q is not a number", amount)
			}

			settings, store, err := openForAggregation(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			engine := aggregate.NewEngine(store, newResolver(settings), service.RealClock{})
			report, err := engine.ThresholdReport(cmd.Context(), threshold)
			if err != nil {
				return err
			}
			fmt.Println(cli.RenderThresholdReport(report))
			return nil
		},
	}
	cmd.Flags().String("amount", "1000", "dollar threshold")
	return cmd
}

func aggregateRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Recompute every aggregate from the ledger",
		Long: `Warm and force-refresh the aggregate cache: every candidate identity
group and every contested race is recomputed from the current ledger,
candidate-level aggregates strictly before the race rollups that depend
on them. Run after a bulk import when dashboards must reflect it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, store, err := openForAggregation(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			engine := aggregate.NewEngine(store, newResolver(settings), service.RealClock{})
			cache := aggregate.NewCache(engine, settings.CacheTTL, service.RealClock{})
			events := cache.Subscribe()

			committees, err := store.ListCommittees(ctx)
			if err != nil {
				return err
			}
			resolution := newResolver(settings).Resolve(committees)

			races := make(map[string]int)
			for _, group := range resolution.Groups {
				if len(group.CommitteeIDs) == 0 {
					continue
				}
				if _, err := cache.Candidate(ctx, group.CommitteeIDs[0]); err != nil {
					return err
				}
				if group.Office != "" && group.Cycle != 0 {
					if _, seen := races[group.Office+"\x00"+strconv.Itoa(group.Cycle)]; !seen {
						if _, err := cache.Race(ctx, group.Office, group.Cycle); err != nil {
							return err
						}
					}
					races[group.Office+"\x00"+strconv.Itoa(group.Cycle)]++
				}
			}

			if err := cache.ForceRefresh(ctx); err != nil {
				return err
			}

			event := <-events
			fmt.Println(cli.FormatSuccess(fmt.Sprintf(
				"recomputed %d candidate aggregates and %d race rollups",
				event.Candidates, event.Races)))
			return nil
		},
	}
}

// openForAggregation loads settings and opens the migrated store.
func openForAggregation(cmd *cobra.Command) (*config.Settings, *storage.SQLiteStorage, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, nil, err
	}
	store, err := initStorage(cmd.Context(), settings)
	if err != nil {
		return nil, nil, err
	}
	return settings, store, nil
}
