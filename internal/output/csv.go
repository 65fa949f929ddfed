/*
PURPOSE:
  Writes benchmark outcomes to a CSV file, one row per (script, dataset) pair.
  Ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - Output to CSV for spreadsheet comparison of scripts.

  Implementation-discovered:
  - Failed pairs still get a row, with empty metrics and the error text.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (as a Sink)
  - Consumes: internal/model.Outcome

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write (critical for crash resilience).
  - Mutex-guarded.

USAGE:
  w, err := output.NewCSVWriter("results.csv")
  w.Write("sales.csv", outcome)
  w.Close()
*/

package output

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/daryltucker/forecast-runner/internal/model"
)

// CSVHeader is the column layout of the CSV output.
var CSVHeader = []string{
	"dataset", "script", "mae", "rmse", "r2", "duration_s", "memory_peak_mb",
	"forecast_points", "run_id", "error_kind", "error",
}

// CSVWriter handles writing outcomes to a CSV file.
type CSVWriter struct {
	closer io.Closer
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates a new CSVWriter.
// It overwrites the file if it exists.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	cw, err := NewCSVStream(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return cw, nil
}

// NewCSVStream writes the header to w and returns a writer for the rows.
func NewCSVStream(w io.Writer) (*CSVWriter, error) {
	cw := &CSVWriter{writer: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}

	if err := cw.writer.Write(CSVHeader); err != nil {
		return nil, err
	}
	cw.writer.Flush()
	return cw, cw.writer.Error()
}

// Write writes a single outcome to the CSV file.
// It is thread-safe.
func (cw *CSVWriter) Write(dataset string, o model.Outcome) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	metric := func(name string) string {
		v, ok := o.Metrics[name]
		if !ok {
			return ""
		}
		return strconv.FormatFloat(v, 'f', 6, 64)
	}

	record := []string{
		dataset,
		o.Script,
		metric(model.MetricMAE),
		metric(model.MetricRMSE),
		metric(model.MetricR2),
		metric(model.MetricDuration),
		metric(model.MetricMemoryPeak),
		strconv.Itoa(len(o.Forecast)),
		o.RunID,
		o.ErrorKind,
		o.Error,
	}

	if err := cw.writer.Write(record); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	if cw.closer == nil {
		return cw.writer.Error()
	}
	return cw.closer.Close()
}
