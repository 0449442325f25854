package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/calwatch/warchest/internal/cli"
	"github.com/calwatch/warchest/internal/ingest"
	"github.com/calwatch/warchest/internal/model"
	"github.com/calwatch/warchest/internal/normalize"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import source export files into the ledger",
		Long: `Read one or more CSV export files, normalize their rows into canonical
ledger records, and store them. Rows already processed in a previous run
are skipped, per-row failures are recorded and never abort the run, and a
crashed run restarted with --run-id resumes from its last committed batch.

Each file needs a schema. With one --schema flag every file shares it;
otherwise pass file=schema pairs:

  warchest import --schema sos-transactions txns1.csv txns2.csv
  warchest import entities.csv=sos-entities txns.csv=portal-csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("schema", "", "source schema for every file ("+schemaList()+")")
	cmd.Flags().String("run-id", "", "resume a previous run's cursors instead of starting fresh")
	cmd.Flags().Bool("refresh", false, "update rows in place on natural-key collisions instead of skipping")
	cmd.Flags().Bool("dry-run", false, "parse and report without writing anything")

	return cmd
}

func schemaList() string {
	names := make([]string, 0, len(normalize.Schemas()))
	for _, s := range normalize.Schemas() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func parseSchemaArg(arg, shared string) (string, model.SourceSchema, error) {
	if path, schema, ok := strings.Cut(arg, "="); ok {
		return path, model.SourceSchema(schema), nil
	}
	if shared == "" {
		return "", "", fmt.Errorf("no schema for %s: pass --schema or use file=schema", arg)
	}
	return arg, model.SourceSchema(shared), nil
}

func runImport(cmd *cobra.Command, args []string) error {
	shared, _ := cmd.Flags().GetString("schema")
	runID, _ := cmd.Flags().GetString("run-id")
	refresh, _ := cmd.Flags().GetBool("refresh")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	known := make(map[model.SourceSchema]bool)
	for _, s := range normalize.Schemas() {
		known[s] = true
	}

	var sources []ingest.Source
	for _, arg := range args {
		path, schema, err := parseSchemaArg(arg, shared)
		if err != nil {
			return err
		}
		if !known[schema] {
			return fmt.Errorf("unknown schema %q (want one of: %s)", schema, schemaList())
		}
		src, err := ingest.ReadCSVFile(path, schema)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	importer := ingest.New(store, settings.Sources)
	report, err := importer.Run(ctx, sources, ingest.Config{
		RunID:       runID,
		BatchSize:   settings.BatchSize,
		Parallelism: settings.Parallelism,
		Refresh:     refresh,
		DryRun:      dryRun,
		ShowBar:     true,
	})
	if report != nil {
		fmt.Println(cli.RenderImportReport(report))
	}
	return err
}
