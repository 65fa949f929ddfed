/*
PURPOSE:
  Defines the core data structures used throughout Forecast Runner.
  These models represent historical series, forecasts, scores and the
  per-(script, dataset) outcomes a benchmark produces.

REQUIREMENTS:
  User-specified:
  - Record MAE, RMSE, R2, duration and peak memory per successful pair.
  - One outcome per (script, dataset) pair, success or failure.

  Implementation-discovered:
  - Need JSON tags shaped like the HTTP responses ({script, forecast, metrics} | {script, error}).
  - ScoreCard is built once and never mutated; expose values, not pointers.

ARCHITECTURE INTEGRATION:
  - Used by: internal/dataset, internal/contract, internal/scoring, internal/engine,
    internal/output, internal/server
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Use time.Time and time.Duration for high precision.

USAGE:
  table := model.ObservationTable{{DS: t0, Y: 10}, {DS: t1, Y: 15}}

SELF-HEALING INSTRUCTIONS:
  - If new metrics are needed, add a field to ScoreCard and to ScoreCard.Metrics().

RELATED FILES:
  - internal/output/csv.go
  - internal/output/json.go

MAINTENANCE:
  - Update when adding new metrics to capture.
*/

package model

import (
	"fmt"
	"time"
)

// Date key layouts used for joining forecasts against observations.
const (
	DayLayout    = "2006-01-02"
	SecondLayout = "2006-01-02 15:04:05"
)

// Metric names as persisted and reported.
const (
	MetricMAE        = "MAE"
	MetricRMSE       = "RMSE"
	MetricR2         = "R2"
	MetricDuration   = "duration"
	MetricMemoryPeak = "memory_peak_mb"
)

// Observation is one historical record.
type Observation struct {
	DS time.Time `json:"ds"`
	Y  float64   `json:"y"`
}

// ObservationTable is the ordered historical input and the ground truth for scoring.
type ObservationTable []Observation

// Rows converts the table into the shape handed to forecasting scripts.
// Every call returns fresh maps so a script cannot mutate shared input.
func (t ObservationTable) Rows() []map[string]interface{} {
	rows := make([]map[string]interface{}, len(t))
	for i, o := range t {
		rows[i] = map[string]interface{}{"ds": o.DS, "y": o.Y}
	}
	return rows
}

// ForecastPoint is one validated {ds, yhat} pair.
type ForecastPoint struct {
	DS   time.Time `json:"-"`
	Raw  string    `json:"-"` // ds exactly as the script emitted it
	Yhat float64   `json:"yhat"`
}

// NormalizedPoint is a forecast point with its date rendered in a canonical layout.
type NormalizedPoint struct {
	DS   string  `json:"ds"`
	Yhat float64 `json:"yhat"`
}

// Normalize renders the points with the given layout.
func Normalize(points []ForecastPoint, layout string) []NormalizedPoint {
	out := make([]NormalizedPoint, len(points))
	for i, p := range points {
		out[i] = NormalizedPoint{DS: p.DS.Format(layout), Yhat: p.Yhat}
	}
	return out
}

// ScoreCard holds accuracy and resource-cost metrics for one successful pair.
type ScoreCard struct {
	MAE      float64       `json:"MAE"`
	RMSE     float64       `json:"RMSE"`
	R2       float64       `json:"R2"`
	Duration time.Duration `json:"-"`
	PeakMB   float64       `json:"memory_peak_mb"`
	Matched  int           `json:"-"`
}

// Metrics returns the named metric values in their reporting order.
func (s ScoreCard) Metrics() []Metric {
	return []Metric{
		{Name: MetricMAE, Value: s.MAE},
		{Name: MetricRMSE, Value: s.RMSE},
		{Name: MetricR2, Value: s.R2},
		{Name: MetricDuration, Value: s.Duration.Seconds()},
		{Name: MetricMemoryPeak, Value: s.PeakMB},
	}
}

// MetricMap is the JSON form of a ScoreCard.
func (s ScoreCard) MetricMap() map[string]float64 {
	m := make(map[string]float64, 5)
	for _, metric := range s.Metrics() {
		m[metric.Name] = metric.Value
	}
	return m
}

// Metric is a single named value.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Script is one uploaded forecasting script.
type Script struct {
	Name   string `json:"name"`
	Source []byte `json:"-"`
}

// Dataset is a validated observation table plus its identity.
type Dataset struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	SourceFile string           `json:"source_file,omitempty"`
	Table      ObservationTable `json:"-"`
}

// Outcome is the result of one (script, dataset) pair.
type Outcome struct {
	Script       string             `json:"script"`
	Forecast     []NormalizedPoint  `json:"forecast,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	RunID        string             `json:"run_id,omitempty"`
	PersistError string             `json:"persist_error,omitempty"`
	Error        string             `json:"error,omitempty"`
	ErrorKind    string             `json:"error_kind,omitempty"`

	Score *ScoreCard `json:"-"`
}

// Failed reports whether the outcome carries an error.
func (o Outcome) Failed() bool {
	return o.Error != ""
}

// Report maps a dataset identifier to its outcomes in script upload order.
type Report map[string][]Outcome

// UniqueKey returns id, or "id (n)" with the smallest n >= 2 not yet in the
// report, so datasets uploaded under the same name never share an entry.
func (r Report) UniqueKey(id string) string {
	key := id
	for n := 2; ; n++ {
		if _, taken := r[key]; !taken {
			return key
		}
		key = fmt.Sprintf("%s (%d)", id, n)
	}
}
