package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calwatch/warchest/internal/cli"
	"github.com/calwatch/warchest/internal/dedupe"
)

func dedupeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Collapse ledger rows that share a natural key",
		Long: `Scan the whole ledger for transactions sharing a natural key (committee,
counterparty, amount, date, type) and collapse each group down to its
earliest-imported row. Amendment links pointing at removed rows are
rewritten to the survivor first, so no chain ever dangles. Interrupting
the pass is safe; a re-run picks up where the committed state left off.`,
		RunE: runDedupe,
	}

	cmd.Flags().Int("batch-size", 100, "duplicate groups fetched per round")

	return cmd
}

func runDedupe(cmd *cobra.Command, _ []string) error {
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats, err := dedupe.New(store, batchSize).Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"collapsed %d duplicate groups, removed %d rows",
		stats.GroupsCollapsed, stats.RowsRemoved)))
	return nil
}
