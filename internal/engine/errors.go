package engine

import (
	"errors"
	"fmt"

	"github.com/daryltucker/forecast-runner/internal/contract"
	"github.com/daryltucker/forecast-runner/internal/profiler"
	"github.com/daryltucker/forecast-runner/internal/scoring"
	"github.com/daryltucker/forecast-runner/internal/script"
)

// Input errors. These reject a request before any pair runs.
var (
	ErrNoScripts  = errors.New("at least one script is required")
	ErrNoDatasets = errors.New("at least one dataset is required")
	ErrNoCaller   = errors.New("caller identity is required")
)

// Failure kinds reported in Outcome.ErrorKind.
const (
	KindScriptLoad = "script_load"
	KindContract   = "contract_violation"
	KindExecution  = "execution"
	KindNoOverlap  = "no_overlapping_dates"
	KindScoring    = "scoring"
)

// StageError ties a per-pair failure to the pipeline stage that raised it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// classify maps a pipeline error to its kind and the message shown to users.
func classify(err error) (kind, message string) {
	var (
		stage     Stage
		loadErr   *script.LoadError
		violation *contract.Violation
		probeErr  *contract.ProbeError
		execErr   *profiler.ExecutionError
		stageErr  *StageError
	)
	if errors.As(err, &stageErr) {
		stage = stageErr.Stage
		err = stageErr.Err
	}

	switch {
	case errors.As(err, &loadErr):
		return KindScriptLoad, "ScriptLoadError: " + loadErr.Error()
	case errors.As(err, &violation):
		if stage == StageVerify {
			return KindContract, "ContractViolation on real data: " + violation.Error()
		}
		return KindContract, "ContractViolation: " + violation.Error()
	case errors.As(err, &probeErr):
		return KindContract, "ContractViolation: script failed on the probe table: " + probeErr.Error()
	case errors.As(err, &execErr):
		return KindExecution, "ExecutionError: " + execErr.Error()
	case errors.Is(err, scoring.ErrNoOverlappingDates):
		return KindNoOverlap, "NoOverlappingDates: " + err.Error()
	case stage == StageScore:
		return KindScoring, "ScoringError: " + err.Error()
	default:
		return KindExecution, fmt.Sprintf("%s: %v", stage, err)
	}
}
