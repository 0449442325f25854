package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/calwatch/warchest/internal/model"
)

// ReadCSV reads a header-led CSV stream into raw rows under one schema.
func ReadCSV(r io.Reader, name string, schema model.SourceSchema) (Source, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return Source{Name: name}, nil
	}
	if err != nil {
		return Source{}, fmt.Errorf("source %s: failed to read header: %w", name, err)
	}

	src := Source{Name: name}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Source{}, fmt.Errorf("source %s: line %d: %w", name, line, err)
		}

		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				fields[col] = record[i]
			}
		}
		src.Rows = append(src.Rows, model.RawRow{Fields: fields, Schema: schema})
	}
	return src, nil
}

// ReadCSVFile reads one CSV export from disk. The source name is the file's
// base name so cursors survive a run restarted from a different directory.
func ReadCSVFile(path string, schema model.SourceSchema) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return Source{}, fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, filepath.Base(path), schema)
}
