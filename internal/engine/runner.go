/*
PURPOSE:
  High-level runner that orchestrates the benchmarking process.
  Loops through Datasets -> Scripts and runs every pair through the pipeline.

REQUIREMENTS:
  User-specified:
  - Run every uploaded script against every selected dataset.
  - One outcome per pair, in script upload order, failures included.
  - A failing pair never aborts the batch.

  Implementation-discovered:
  - Pairs run sequentially: heap measurement is process wide and scratch-file
    cleanup stays deterministic.
  - Outcomes are streamed to optional sinks (CSV / JSON Lines) as they complete.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli, internal/server
  - Uses: internal/engine/pipeline.go, internal/output

ERROR HANDLING:
  - Only malformed requests (no scripts, no datasets, no caller) return an error.
  - Sink write failures are logged and do not affect the report.

IMPLEMENTATION RULES:
  - Iterate datasets in request order.
  - For each dataset: iterate scripts in upload order.

USAGE:
  e := engine.New(cfg, store)
  report, err := e.Benchmark(ctx, engine.Request{User: "alice", Scripts: s, Datasets: d})

RELATED FILES:
  - internal/engine/pipeline.go
*/

package engine

import (
	"context"

	"github.com/daryltucker/forecast-runner/internal/config"
	"github.com/daryltucker/forecast-runner/internal/contract"
	"github.com/daryltucker/forecast-runner/internal/model"
	"github.com/daryltucker/forecast-runner/internal/output"
	"github.com/daryltucker/forecast-runner/internal/profiler"
	"github.com/daryltucker/forecast-runner/internal/scoring"
	"github.com/daryltucker/forecast-runner/internal/script"
	"github.com/daryltucker/forecast-runner/internal/storage"
	"github.com/rs/zerolog"
)

// Sink receives outcomes as they are produced.
type Sink interface {
	Write(dataset string, o model.Outcome) error
}

// Engine runs scripts against datasets.
type Engine struct {
	Loader    *script.Loader
	Validator *contract.Validator
	Profiler  *profiler.Profiler
	Store     storage.Store // nil disables persistence
	Logger    zerolog.Logger
}

// New creates an Engine from configuration.
func New(cfg *config.Config, store storage.Store) *Engine {
	return &Engine{
		Loader:    script.NewLoader(cfg.TempDir, cfg.EntryPoint),
		Validator: contract.NewValidator(contract.ProbeV1()),
		Profiler:  profiler.New(cfg.SampleInterval, cfg.Timeout),
		Store:     store,
		Logger:    output.Component("engine"),
	}
}

// Request describes one benchmark.
type Request struct {
	User     string
	Scripts  []model.Script
	Datasets []model.Dataset
	// Layout renders forecast dates and the join key. Defaults to second precision.
	Layout string
	Sinks  []Sink
}

func (r *Request) layout() string {
	if r.Layout == "" {
		return model.SecondLayout
	}
	return r.Layout
}

func (r *Request) validate() error {
	switch {
	case r.User == "":
		return ErrNoCaller
	case len(r.Scripts) == 0:
		return ErrNoScripts
	case len(r.Datasets) == 0:
		return ErrNoDatasets
	}
	return nil
}

func (e *Engine) scorer(layout string) *scoring.Scorer {
	return scoring.New(layout)
}

// Benchmark runs every script against every dataset.
func (e *Engine) Benchmark(ctx context.Context, req Request) (model.Report, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	e.Logger.Info().
		Str("user", req.User).
		Int("scripts", len(req.Scripts)).
		Int("datasets", len(req.Datasets)).
		Msg("Starting benchmark")

	report := make(model.Report, len(req.Datasets))
	for _, ds := range req.Datasets {
		ds.ID = report.UniqueKey(ds.ID)
		outcomes := make([]model.Outcome, 0, len(req.Scripts))
		for _, s := range req.Scripts {
			o := e.runPair(ctx, &req, s, ds)
			outcomes = append(outcomes, o)

			for _, sink := range req.Sinks {
				if err := sink.Write(ds.ID, o); err != nil {
					e.Logger.Error().Err(err).Str("dataset", ds.ID).Msg("Failed to write outcome")
				}
			}
		}
		report[ds.ID] = outcomes
	}

	return report, nil
}

// Run runs every script against a single dataset with day-precision dates.
func (e *Engine) Run(ctx context.Context, user string, scripts []model.Script, ds model.Dataset, sinks ...Sink) ([]model.Outcome, error) {
	report, err := e.Benchmark(ctx, Request{
		User:     user,
		Scripts:  scripts,
		Datasets: []model.Dataset{ds},
		Layout:   model.DayLayout,
		Sinks:    sinks,
	})
	if err != nil {
		return nil, err
	}
	return report[ds.ID], nil
}
