/*
PURPOSE:
  Turns uploaded CSV files into validated observation tables.
  This is the dataset provider the benchmark engine consumes.

REQUIREMENTS:
  User-specified:
  - The caller names the date column and the numeric column.
  - Dates must parse and values must be numeric.

  Implementation-discovered:
  - A single bad row invalidates the whole table (fail fast, no row skipping).
  - Column lookups report the available columns, because users pick them by hand.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli, internal/server
  - Produces: model.Dataset

ERROR HANDLING:
  - Returns a *Error describing the first offending column/row.

IMPLEMENTATION RULES:
  - Use encoding/csv; trim header whitespace.
  - Never return a partially filled table.

USAGE:
  ds, err := dataset.ParseCSV("sales.csv", f, "date", "amount")

RELATED FILES:
  - internal/model/date.go
*/

package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/daryltucker/forecast-runner/internal/model"
)

// Error is a dataset validation failure.
type Error struct {
	Dataset string
	Column  string
	Row     int // 1-based data row, 0 when not row specific
	Reason  string
}

func (e *Error) Error() string {
	switch {
	case e.Row > 0:
		return fmt.Sprintf("dataset %s: column %q row %d: %s", e.Dataset, e.Column, e.Row, e.Reason)
	case e.Column != "":
		return fmt.Sprintf("dataset %s: column %q: %s", e.Dataset, e.Column, e.Reason)
	default:
		return fmt.Sprintf("dataset %s: %s", e.Dataset, e.Reason)
	}
}

// Columns returns the header row of a CSV stream.
func Columns(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty CSV")
		}
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}
	return headers, nil
}

// ParseCSV reads a CSV stream into a Dataset using the given date and numeric columns.
func ParseCSV(name string, r io.Reader, dateColumn, numericColumn string) (model.Dataset, error) {
	if dateColumn == "" || numericColumn == "" {
		return model.Dataset{}, &Error{Dataset: name, Reason: "date and numeric columns must both be specified"}
	}

	reader := csv.NewReader(r)
	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return model.Dataset{}, &Error{Dataset: name, Reason: "CSV file contains no data"}
		}
		return model.Dataset{}, fmt.Errorf("dataset %s: failed to read CSV headers: %w", name, err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	dateIdx, numIdx := index(headers, dateColumn), index(headers, numericColumn)
	if dateIdx < 0 {
		return model.Dataset{}, &Error{Dataset: name, Column: dateColumn,
			Reason: fmt.Sprintf("not found, available columns: %s", strings.Join(headers, ", "))}
	}
	if numIdx < 0 {
		return model.Dataset{}, &Error{Dataset: name, Column: numericColumn,
			Reason: fmt.Sprintf("not found, available columns: %s", strings.Join(headers, ", "))}
	}

	var table model.ObservationTable
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.Dataset{}, fmt.Errorf("dataset %s: row %d: %w", name, row, err)
		}

		ds, err := model.ParseDate(field(record, dateIdx))
		if err != nil {
			return model.Dataset{}, &Error{Dataset: name, Column: dateColumn, Row: row, Reason: err.Error()}
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(field(record, numIdx)), 64)
		if err != nil {
			return model.Dataset{}, &Error{Dataset: name, Column: numericColumn, Row: row, Reason: "value is not numeric"}
		}
		table = append(table, model.Observation{DS: ds, Y: y})
	}

	if len(table) == 0 {
		return model.Dataset{}, &Error{Dataset: name, Reason: "CSV file contains no data"}
	}

	return model.Dataset{ID: name, Name: name, SourceFile: name, Table: table}, nil
}

// LoadFile parses a CSV file from disk. The dataset is identified by the file base name.
func LoadFile(path, dateColumn, numericColumn string) (model.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Dataset{}, err
	}
	defer f.Close()

	return ParseCSV(filepath.Base(path), f, dateColumn, numericColumn)
}

func index(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	return -1
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return record[i]
}
