package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calwatch/warchest/internal/cli"
	"github.com/calwatch/warchest/internal/repair"
)

func repairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Repair unresolvable committee references",
		Long: `Find transactions whose target committee id does not resolve. Where the
id matches a candidate or committee entity, a placeholder committee from
the reserved id range is synthesized (or reused) and the transactions are
repointed at it, so the spending stays attributable. References that match
nothing are cleared. Running repair twice changes nothing the second time.`,
		RunE: runRepair,
	}
}

func runRepair(cmd *cobra.Command, _ []string) error {
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

	stats, err := repair.Run(ctx, store)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"repointed %d transactions (%d placeholders created, %d reused), cleared %d",
		stats.TargetsRepointed, stats.PlaceholdersCreated, stats.PlaceholdersReused, stats.TargetsCleared)))
	return nil
}
