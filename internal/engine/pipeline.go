/*
PURPOSE:
  Runs one (script, dataset) pair through the fixed pipeline:
  load -> probe -> execute -> verify -> score -> persist.

REQUIREMENTS:
  User-specified:
  - The probe runs on synthetic data before the unit sees real data.
  - Real output is re-validated with the full rule set.
  - The unit's scratch file is released before the next pair starts, on every path.

  Implementation-discovered:
  - Stages are an explicit list so the order is visible and testable.
  - Persistence failure keeps the computed outcome and only annotates it.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go
  - Uses: internal/script, internal/contract, internal/profiler, internal/scoring, internal/storage

ERROR HANDLING:
  - Every failure becomes a failed Outcome. Nothing escapes the pair.
*/

package engine

import (
	"context"
	"errors"

	"github.com/daryltucker/forecast-runner/internal/model"
	"github.com/daryltucker/forecast-runner/internal/profiler"
	"github.com/daryltucker/forecast-runner/internal/script"
	"github.com/daryltucker/forecast-runner/internal/storage"
	"github.com/rs/zerolog"
)

// Stage is one step of the pair pipeline.
type Stage int

const (
	StageLoad Stage = iota
	StageProbe
	StageExecute
	StageVerify
	StageScore
	StagePersist
)

// Pipeline is the order every pair goes through.
var Pipeline = []Stage{StageLoad, StageProbe, StageExecute, StageVerify, StageScore, StagePersist}

func (s Stage) String() string {
	switch s {
	case StageLoad:
		return "load"
	case StageProbe:
		return "probe"
	case StageExecute:
		return "execute"
	case StageVerify:
		return "verify"
	case StageScore:
		return "score"
	case StagePersist:
		return "persist"
	default:
		return "unknown"
	}
}

// pair carries the state of one (script, dataset) run between stages.
type pair struct {
	e       *Engine
	req     *Request
	script  model.Script
	dataset model.Dataset
	log     zerolog.Logger

	unit    *script.Unit
	out     map[string]interface{}
	measure profiler.Measurement
	points  []model.ForecastPoint
	card    model.ScoreCard
	outcome model.Outcome
}

func (e *Engine) runPair(ctx context.Context, req *Request, s model.Script, ds model.Dataset) model.Outcome {
	p := &pair{
		e:       e,
		req:     req,
		script:  s,
		dataset: ds,
		log:     e.Logger.With().Str("script", s.Name).Str("dataset", ds.ID).Logger(),
		outcome: model.Outcome{Script: s.Name},
	}
	defer p.release()

	for _, stage := range Pipeline {
		if err := p.step(ctx, stage); err != nil {
			kind, msg := classify(&StageError{Stage: stage, Err: err})
			p.log.Warn().Str("stage", stage.String()).Str("kind", kind).Err(err).Msg("Pair failed")
			return model.Outcome{Script: s.Name, Error: msg, ErrorKind: kind}
		}
	}

	p.log.Info().
		Str("run_id", p.outcome.RunID).
		Dur("duration", p.card.Duration).
		Float64("peak_mb", p.card.PeakMB).
		Float64("mae", p.card.MAE).
		Int("matched", p.card.Matched).
		Msg("Pair succeeded")
	return p.outcome
}

func (p *pair) step(ctx context.Context, stage Stage) error {
	switch stage {
	case StageLoad:
		unit, err := p.e.Loader.Load(p.script.Name, p.script.Source)
		if err != nil {
			return err
		}
		p.unit = unit
		p.log = p.log.With().Str("unit", unit.ID).Logger()
		return nil

	case StageProbe:
		_, err := p.e.Validator.Smoke(bounded{ctx: ctx, profiler: p.e.Profiler, unit: p.unit})
		return err

	case StageExecute:
		rows := p.dataset.Table.Rows()
		out, m, err := p.e.Profiler.Run(ctx, func() (map[string]interface{}, error) {
			return p.unit.Forecast(rows)
		})
		p.measure = m
		if err != nil {
			return err
		}
		p.out = out
		return nil

	case StageVerify:
		points, err := p.e.Validator.Check(p.out)
		if err != nil {
			return err
		}
		p.points = points
		return nil

	case StageScore:
		card, err := p.e.scorer(p.req.layout()).Score(p.points, p.dataset.Table)
		if err != nil {
			return err
		}
		card.Duration = p.measure.Elapsed
		card.PeakMB = p.measure.PeakMB()
		p.card = card
		p.outcome = model.Outcome{
			Script:   p.script.Name,
			Forecast: model.Normalize(p.points, p.req.layout()),
			Metrics:  card.MetricMap(),
			Score:    &p.card,
		}
		// The unit is done; release it before talking to the store.
		p.release()
		return nil

	case StagePersist:
		p.persist(ctx)
		return nil
	}
	return errors.New("unknown stage")
}

// bounded runs a unit under the profiler so the probe call honours the
// same timeout as the real invocation. The measurement is discarded.
type bounded struct {
	ctx      context.Context
	profiler *profiler.Profiler
	unit     *script.Unit
}

func (b bounded) Forecast(rows []map[string]interface{}) (map[string]interface{}, error) {
	out, _, err := b.profiler.Run(b.ctx, func() (map[string]interface{}, error) {
		return b.unit.Forecast(rows)
	})
	return out, err
}

// persist records the run. Failures annotate the outcome instead of failing it.
func (p *pair) persist(ctx context.Context) {
	if p.e.Store == nil {
		return
	}

	run := storage.Run{
		User:         p.req.User,
		ScriptName:   p.script.Name,
		SourceFile:   p.dataset.SourceFile,
		ScriptDigest: storage.Digest(p.script.Source),
	}
	if p.dataset.SourceFile == "" {
		run.DatasetRef = p.dataset.ID
	}

	id, err := p.e.Store.SaveRun(ctx, run, p.card.Metrics())
	if err != nil {
		p.log.Error().Err(err).Msg("Failed to persist run")
		p.outcome.PersistError = err.Error()
		return
	}
	p.outcome.RunID = id
}

// release removes the unit's scratch file. Safe to call more than once.
func (p *pair) release() {
	if p.unit == nil {
		return
	}
	if err := p.unit.Close(); err != nil {
		p.log.Error().Err(err).Str("path", p.unit.Path).Msg("Failed to remove script scratch file")
	}
}
