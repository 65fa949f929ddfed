/*
PURPOSE:
  Checks that a forecasting unit's output has the required shape before the
  result is trusted, and converts valid output into typed forecast points.

REQUIREMENTS:
  User-specified:
  - Rules are checked in a fixed order and the first violation wins.
  - A unit is smoke-tested on a small synthetic table before it sees real data.
  - Real output is re-checked with the same rules.

  Implementation-discovered:
  - Script output is semi-structured (map[string]interface{} from the interpreter),
    so sequence and mapping checks go through reflect to accept any slice kind
    and any map keyed by strings.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Uses: internal/model

ERROR HANDLING:
  - Every failure is a *Violation carrying its Rule.

IMPLEMENTATION RULES:
  - Never collect multiple violations.
  - Do not mutate the script's output.

USAGE:
  v := contract.NewValidator(contract.ProbeV1())
  points, err := v.Check(out)

RELATED FILES:
  - internal/contract/probe.go
*/

package contract

import (
	"fmt"
	"reflect"

	"github.com/daryltucker/forecast-runner/internal/model"
)

// Rule identifies which part of the output contract was violated.
type Rule string

// Rules in evaluation order.
const (
	MissingForecastKey       Rule = "MissingForecastKey"
	EmptyOrInvalidForecast   Rule = "EmptyOrInvalidForecast"
	MalformedForecastElement Rule = "MalformedForecastElement"
	InvalidDateField         Rule = "InvalidDateField"
	InvalidValueField        Rule = "InvalidValueField"
)

// Violation is a contract failure.
type Violation struct {
	Rule   Rule
	Index  int // offending forecast element, -1 when not element specific
	Detail string
}

func (v *Violation) Error() string {
	if v.Index >= 0 {
		return fmt.Sprintf("%s: forecast[%d]: %s", v.Rule, v.Index, v.Detail)
	}
	return fmt.Sprintf("%s: %s", v.Rule, v.Detail)
}

// Forecaster is anything that can be probed.
type Forecaster interface {
	Forecast(rows []map[string]interface{}) (map[string]interface{}, error)
}

// Validator enforces the output contract.
type Validator struct {
	probe Probe
}

// NewValidator creates a validator that smoke-tests units with probe.
func NewValidator(probe Probe) *Validator {
	return &Validator{probe: probe}
}

// Probe returns the synthetic table this validator uses.
func (v *Validator) Probe() Probe {
	return v.probe
}

// ProbeError is returned by Smoke when the unit fails or panics on the probe
// table instead of returning a result.
type ProbeError struct {
	Version string
	Err     error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Version, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Smoke runs f against the synthetic probe table and checks the result.
func (v *Validator) Smoke(f Forecaster) (points []model.ForecastPoint, err error) {
	defer func() {
		if r := recover(); r != nil {
			points, err = nil, &ProbeError{Version: v.probe.Version, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	out, err := f.Forecast(v.probe.Table.Rows())
	if err != nil {
		return nil, &ProbeError{Version: v.probe.Version, Err: err}
	}
	return v.Check(out)
}

// Check applies the rules to out in order and returns the parsed forecast.
func (v *Validator) Check(out map[string]interface{}) ([]model.ForecastPoint, error) {
	raw, ok := out["forecast"]
	if !ok {
		return nil, &Violation{Rule: MissingForecastKey, Index: -1,
			Detail: `result must be a mapping with a "forecast" key`}
	}

	seq := reflect.ValueOf(raw)
	if !seq.IsValid() || (seq.Kind() != reflect.Slice && seq.Kind() != reflect.Array) || seq.Len() == 0 {
		return nil, &Violation{Rule: EmptyOrInvalidForecast, Index: -1,
			Detail: `"forecast" must be a non-empty list`}
	}

	points := make([]model.ForecastPoint, seq.Len())
	for i := 0; i < seq.Len(); i++ {
		ds, yhat, ok := fields(seq.Index(i))
		if !ok {
			return nil, &Violation{Rule: MalformedForecastElement, Index: i,
				Detail: `element must be a mapping with "ds" and "yhat" keys`}
		}

		s, ok := ds.(string)
		if !ok {
			return nil, &Violation{Rule: InvalidDateField, Index: i,
				Detail: fmt.Sprintf(`"ds" must be a date string, got %T`, ds)}
		}
		t, err := model.ParseDate(s)
		if err != nil {
			return nil, &Violation{Rule: InvalidDateField, Index: i, Detail: err.Error()}
		}

		y, ok := number(yhat)
		if !ok {
			return nil, &Violation{Rule: InvalidValueField, Index: i,
				Detail: fmt.Sprintf(`"yhat" must be a number, got %T`, yhat)}
		}

		points[i] = model.ForecastPoint{DS: t, Raw: s, Yhat: y}
	}

	return points, nil
}

// fields extracts "ds" and "yhat" from a mapping element.
func fields(elem reflect.Value) (ds, yhat interface{}, ok bool) {
	for elem.Kind() == reflect.Interface || elem.Kind() == reflect.Pointer {
		if elem.IsNil() {
			return nil, nil, false
		}
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Map || elem.Type().Key().Kind() != reflect.String {
		return nil, nil, false
	}

	key := func(name string) (interface{}, bool) {
		v := elem.MapIndex(reflect.ValueOf(name).Convert(elem.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	}

	ds, okDS := key("ds")
	yhat, okY := key("yhat")
	return ds, yhat, okDS && okY
}

// number accepts any integer or floating point kind. Booleans are not numbers.
func number(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	default:
		return 0, false
	}
}
