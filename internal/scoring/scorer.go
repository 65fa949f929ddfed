/*
PURPOSE:
  Joins validated forecast points against the observed series by date key
  and computes MAE, RMSE and R2 over the matched rows.

REQUIREMENTS:
  User-specified:
  - Inner join: only dates present on both sides are scored.
  - An empty join is an error, never NaN metrics.

  Implementation-discovered:
  - Keys are dates rendered with a layout (day or second precision) chosen by the caller.
  - Each key is matched at most once per side (first occurrence wins), so the
    matched count never exceeds min(|observations|, |forecast|).

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Dependencies: gonum.org/v1/gonum/floats, gonum.org/v1/gonum/stat

ERROR HANDLING:
  - ErrNoOverlappingDates when nothing matches.
  - ErrNonFinite when a metric is NaN or infinite (JSON cannot carry it).

IMPLEMENTATION RULES:
  - Pure function of its inputs; iteration follows forecast order.

USAGE:
  card, err := scoring.New(model.DayLayout).Score(points, table)
*/

package scoring

import (
	"errors"
	"math"

	"github.com/daryltucker/forecast-runner/internal/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrNoOverlappingDates means no forecast date matched an observation.
	ErrNoOverlappingDates = errors.New("no overlapping dates between forecast and observations")
	// ErrNonFinite means a metric came out NaN or infinite, usually from a NaN yhat.
	ErrNonFinite = errors.New("metric is not a finite number")
)

// Scorer computes accuracy metrics.
type Scorer struct {
	Layout string
}

// New creates a scorer joining on dates rendered with layout.
func New(layout string) *Scorer {
	if layout == "" {
		layout = model.DayLayout
	}
	return &Scorer{Layout: layout}
}

// Match holds the aligned series used for scoring.
type Match struct {
	Keys      []string
	Actual    []float64
	Predicted []float64
}

// Join aligns forecast points with observations on the date key.
func (s *Scorer) Join(points []model.ForecastPoint, table model.ObservationTable) Match {
	actual := make(map[string]float64, len(table))
	for _, o := range table {
		key := o.DS.Format(s.Layout)
		if _, dup := actual[key]; !dup {
			actual[key] = o.Y
		}
	}

	var m Match
	used := make(map[string]bool, len(points))
	for _, p := range points {
		key := p.DS.Format(s.Layout)
		y, ok := actual[key]
		if !ok || used[key] {
			continue
		}
		used[key] = true
		m.Keys = append(m.Keys, key)
		m.Actual = append(m.Actual, y)
		m.Predicted = append(m.Predicted, p.Yhat)
	}
	return m
}

// Score joins and computes the accuracy part of a ScoreCard.
func (s *Scorer) Score(points []model.ForecastPoint, table model.ObservationTable) (model.ScoreCard, error) {
	m := s.Join(points, table)
	n := float64(len(m.Keys))
	if n == 0 {
		return model.ScoreCard{}, ErrNoOverlappingDates
	}

	card := model.ScoreCard{
		MAE:     floats.Distance(m.Actual, m.Predicted, 1) / n,
		RMSE:    floats.Distance(m.Actual, m.Predicted, 2) / math.Sqrt(n),
		R2:      rSquared(m.Actual, m.Predicted),
		Matched: len(m.Keys),
	}
	for _, v := range []float64{card.MAE, card.RMSE, card.R2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.ScoreCard{}, ErrNonFinite
		}
	}
	return card, nil
}

// rSquared is 1 - SSres/SStot. A constant actual series has no variance to
// explain: a perfect fit scores 1 and anything else scores 0.
func rSquared(actual, predicted []float64) float64 {
	mean := stat.Mean(actual, nil)
	var ssTot float64
	for _, y := range actual {
		ssTot += (y - mean) * (y - mean)
	}
	if ssTot == 0 {
		if floats.Distance(actual, predicted, 2) == 0 {
			return 1
		}
		return 0
	}
	return stat.RSquaredFrom(predicted, actual, nil)
}
