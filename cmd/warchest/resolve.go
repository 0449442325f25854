package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calwatch/warchest/internal/cli"
	"github.com/calwatch/warchest/internal/identity"
)

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Group committee records by real-world candidate",
		Long: `Run identity resolution over the committee roster: group records that
represent the same candidate in the same cycle, propose office and cycle
backfill copied from better-classified siblings, and surface anything
ambiguous for human review instead of guessing.

Resolution alone writes nothing. Pass --apply to write the unambiguous
corrections back to the ledger with an audit trail.`,
		RunE: runResolve,
	}

	cmd.Flags().Bool("apply", false, "write unambiguous corrections to the ledger")

	return cmd
}

func runResolve(cmd *cobra.Command, _ []string) error {
	apply, _ := cmd.Flags().GetBool("apply")

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

	committees, err := store.ListCommittees(ctx)
	if err != nil {
		return err
	}

	resolution := newResolver(settings).Resolve(committees)
	fmt.Println(cli.RenderResolution(resolution))

	if !apply {
		if len(resolution.Corrections) > 0 {
			fmt.Println(cli.SubtleStyle.Render("run again with --apply to write these corrections"))
		}
		return nil
	}

	applied, err := identity.ApplyCorrections(ctx, store, resolution.Corrections)
	if err != nil {
		return err
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("applied %d corrections", applied)))
	return nil
}
