package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calwatch/warchest/internal/model"
	"github.com/calwatch/warchest/internal/normalize"
	"github.com/calwatch/warchest/internal/service"
	"github.com/calwatch/warchest/internal/testutil"
)

func testConfig() normalize.Config {
	return normalize.Config{
		normalize.SchemaSOSTransactions: {DateFormats: []string{"01/02/2006"}},
		normalize.SchemaPortalCSV:       {DateFormats: []string{"2006-01-02"}},
	}
}

func sosEntityRow(id, name, kind string) model.RawRow {
	return model.RawRow{Schema: normalize.SchemaSOSEntities, Fields: map[string]string{
		"id": id, "name": name, "type": kind,
	}}
}

func sosCommitteeRow(id, entityID string) model.RawRow {
	return model.RawRow{Schema: normalize.SchemaSOSCommittees, Fields: map[string]string{
		"id": id, "entity_id": entityID,
	}}
}

func sosTxnRow(recordID, filer, contributor, amount, date, tranType string) model.RawRow {
	return model.RawRow{Schema: normalize.SchemaSOSTransactions, Fields: map[string]string{
		"record_id":      recordID,
		"filer_id":       filer,
		"contributor_id": contributor,
		"amount":         amount,
		"tran_date":      date,
		"tran_type":      tranType,
	}}
}

func TestImporterReferenceBeforeTransactions(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	importer := New(db.Storage, testConfig())

	// The transaction references ids created by the reference sources in
	// the same run, so ordering matters.
	sources := []Source{
		{Name: "txns.csv", Rows: []model.RawRow{
			sosTxnRow("1", "200", "100", "250.00", "03/15/2024", "A"),
		}},
		{Name: "entities.csv", Rows: []model.RawRow{
			sosEntityRow("100", "Acme Corp", "ORG"),
			sosEntityRow("101", "Friends of Wong", "CTE"),
		}},
		{Name: "committees.csv", Rows: []model.RawRow{
			sosCommitteeRow("200", "101"),
		}},
	}

	report, err := importer.Run(ctx, sources, Config{})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Created)
	assert.Equal(t, 0, report.Rejected)
	assert.NotEmpty(t, report.RunID)

	txns, err := db.Storage.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, int64(200), txns[0].CommitteeID)
	assert.Equal(t, int64(100), txns[0].EntityID)
	assert.Equal(t, "250.00", txns[0].Amount.StringFixed(2))
	assert.Equal(t, report.RunID, txns[0].ImportRunID)
}

func TestImporterSkipsProcessedRowsOnRerun(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	importer := New(db.Storage, testConfig())

	sources := []Source{
		{Name: "entities.csv", Rows: []model.RawRow{sosEntityRow("100", "Acme Corp", "ORG"), sosEntityRow("101", "Friends of Wong", "CTE")}},
		{Name: "committees.csv", Rows: []model.RawRow{sosCommitteeRow("200", "101")}},
		{Name: "txns.csv", Rows: []model.RawRow{
			sosTxnRow("1", "200", "100", "250.00", "03/15/2024", "A"),
		}},
	}

	_, err := importer.Run(ctx, sources, Config{})
	require.NoError(t, err)

	// Second run over the same exports creates nothing. Different run id,
	// same row hashes.
	report, err := importer.Run(ctx, sources, Config{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 4, report.Skipped)

	txns, err := db.Storage.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestImporterRecordsRejections(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	importer := New(db.Storage, testConfig())

	sources := []Source{
		{Name: "entities.csv", Rows: []model.RawRow{sosEntityRow("100", "Acme Corp", "ORG"), sosEntityRow("101", "Friends of Wong", "CTE")}},
		{Name: "committees.csv", Rows: []model.RawRow{sosCommitteeRow("200", "101")}},
		{Name: "txns.csv", Rows: []model.RawRow{
			sosTxnRow("1", "200", "100", "not-a-number", "03/15/2024", "A"),
			sosTxnRow("2", "999", "100", "50.00", "03/15/2024", "A"),
			sosTxnRow("3", "200", "100", "50.00", "03/15/2024", "A"),
		}},
	}

	report, err := importer.Run(ctx, sources, Config{})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Created)
	assert.Equal(t, 2, report.Rejected)

	counts := report.ReasonCounts()
	assert.Equal(t, 1, counts[model.ReasonUnparseableField])
	assert.Equal(t, 1, counts[model.ReasonMissingRequiredFK])

	rejections, err := db.Storage.GetRejectionsByRun(ctx, report.RunID)
	require.NoError(t, err)
	assert.Len(t, rejections, 2)
}

func TestImporterDuplicateNaturalKeySkipped(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	importer := New(db.Storage, testConfig())

	// Same natural key, different source rows (record ids differ), so the
	// row-hash guard does not catch them; the duplicate guard must.
	sources := []Source{
		{Name: "entities.csv", Rows: []model.RawRow{sosEntityRow("100", "Acme Corp", "ORG"), sosEntityRow("101", "Friends of Wong", "CTE")}},
		{Name: "committees.csv", Rows: []model.RawRow{sosCommitteeRow("200", "101")}},
		{Name: "txns.csv", Rows: []model.RawRow{
			sosTxnRow("1", "200", "100", "250.00", "03/15/2024", "A"),
			sosTxnRow("2", "200", "100", "250.00", "03/15/2024", "A"),
		}},
	}

	report, err := importer.Run(ctx, sources, Config{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 1, report.Skipped)

	txns, err := db.Storage.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestImporterRefreshUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	importer := New(db.Storage, testConfig())

	reference := []Source{
		{Name: "entities.csv", Rows: []model.RawRow{sosEntityRow("100", "Acme Corp", "ORG"), sosEntityRow("101", "Friends of Wong", "CTE")}},
		{Name: "committees.csv", Rows: []model.RawRow{sosCommitteeRow("200", "101")}},
	}

	first := append(reference, Source{Name: "txns.csv", Rows: []model.RawRow{
		sosTxnRow("1", "200", "100", "250.00", "03/15/2024", "I"),
	}})
	_, err := importer.Run(ctx, first, Config{})
	require.NoError(t, err)

	// The amended export carries the same natural key with a corrected
	// support/oppose flag.
	amended := sosTxnRow("1", "200", "100", "250.00", "03/15/2024", "I")
	amended.Fields["sup_opp"] = "S"
	second := []Source{{Name: "txns-amended.csv", Rows: []model.RawRow{amended}}}

	report, err := importer.Run(ctx, second, Config{Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Updated)

	txns, err := db.Storage.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, model.True, txns[0].Benefit)
}

func TestImporterResumesFromCursor(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	importer := New(db.Storage, testConfig())

	seed := []Source{
		{Name: "entities.csv", Rows: []model.RawRow{sosEntityRow("100", "Acme Corp", "ORG"), sosEntityRow("101", "Friends of Wong", "CTE")}},
		{Name: "committees.csv", Rows: []model.RawRow{sosCommitteeRow("200", "101")}},
	}
	_, err := importer.Run(ctx, seed, Config{})
	require.NoError(t, err)

	// Simulate a crashed run that committed its first batch.
	const runID = "resume-run"
	require.NoError(t, db.Storage.SaveCursor(ctx, runID, "txns.csv", 1))

	sources := []Source{{Name: "txns.csv", Rows: []model.RawRow{
		sosTxnRow("1", "200", "100", "10.00", "03/01/2024", "A"),
		sosTxnRow("2", "200", "100", "20.00", "03/02/2024", "A"),
	}}}

	report, err := importer.Run(ctx, sources, Config{RunID: runID, BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, runID, report.RunID)
	assert.Equal(t, 1, report.Created)

	txns, err := db.Storage.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "20.00", txns[0].Amount.StringFixed(2))

	offset, err := db.Storage.GetCursor(ctx, runID, "txns.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, offset)
}

func TestImporterDryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	importer := New(db.Storage, testConfig())

	sources := []Source{
		{Name: "entities.csv", Rows: []model.RawRow{sosEntityRow("100", "Acme Corp", "ORG")}},
	}

	report, err := importer.Run(ctx, sources, Config{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	ids, err := db.Storage.ListEntityIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestReadCSV(t *testing.T) {
	input := "id,name,type\n100,Acme Corp,ORG\n101,Jane Smith,IND\n"
	src, err := ReadCSV(strings.NewReader(input), "entities.csv", normalize.SchemaSOSEntities)
	require.NoError(t, err)

	assert.Equal(t, "entities.csv", src.Name)
	require.Len(t, src.Rows, 2)
	assert.Equal(t, "Acme Corp", src.Rows[0].Field("name"))
	assert.Equal(t, normalize.SchemaSOSEntities, src.Rows[1].Schema)
}

func TestReadCSVEmpty(t *testing.T) {
	src, err := ReadCSV(strings.NewReader(""), "empty.csv", normalize.SchemaPortalCSV)
	require.NoError(t, err)
	assert.Empty(t, src.Rows)
}
