package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/calwatch/warchest/internal/cli"
)

func mergeEntitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge-entities [duplicate ids...]",
		Short: "Merge duplicate entities into a canonical one",
		Long: `Reassign every transaction and committee owned by the duplicate entities
onto the canonical entity given by --into. The merge is atomic: it either
moves everything or nothing, and overlapping merges over the same entities
are refused rather than interleaved.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runMergeEntities,
	}

	cmd.Flags().Int64("into", 0, "canonical entity id that survives the merge")
	_ = cmd.MarkFlagRequired("into")

	return cmd
}

func runMergeEntities(cmd *cobra.Command, args []string) error {
	canonical, _ := cmd.Flags().GetInt64("into")

	duplicates := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("duplicate id %q is not numeric", arg)
		}
		duplicates = append(duplicates, id)
	}

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

	reassigned, err := store.MergeEntities(ctx, canonical, duplicates)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"merged %d entities into %d, reassigned %d transactions",
		len(duplicates), canonical, reassigned)))
	return nil
}
