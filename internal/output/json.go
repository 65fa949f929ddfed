/*
PURPOSE:
  Writes benchmark outcomes to a JSON Lines file (NDJSON).
  Optimized for machine parsing.

REQUIREMENTS:
  User-specified:
  - JSON output for easier parsing.

  Implementation-discovered:
  - JSON Lines is better for streaming/logging than a single large array (append-friendly).
  - Each line carries the dataset id next to the outcome fields.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (as a Sink)
  - Consumes: internal/model.Outcome

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/json.NewEncoder.
  - Thread-safe.

USAGE:
  w, err := output.NewJSONWriter("results.jsonl")
  w.Write("sales.csv", outcome)
  w.Close()
*/

package output

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/daryltucker/forecast-runner/internal/model"
)

// JSONWriter handles writing outcomes to a JSON Lines stream.
type JSONWriter struct {
	closer  io.Closer
	encoder *json.Encoder
	mu      sync.Mutex
}

type jsonLine struct {
	Dataset string `json:"dataset"`
	model.Outcome
}

// NewJSONWriter creates a new JSONWriter writing to path.
func NewJSONWriter(path string) (*JSONWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return NewJSONStream(f), nil
}

// NewJSONStream writes JSON lines to w. Close closes w if it is an io.Closer.
func NewJSONStream(w io.Writer) *JSONWriter {
	jw := &JSONWriter{encoder: json.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		jw.closer = c
	}
	return jw
}

// Write writes a single outcome as a JSON line.
func (jw *JSONWriter) Write(dataset string, o model.Outcome) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	return jw.encoder.Encode(jsonLine{Dataset: dataset, Outcome: o})
}

// Close closes the underlying file.
func (jw *JSONWriter) Close() error {
	if jw.closer == nil {
		return nil
	}
	return jw.closer.Close()
}
