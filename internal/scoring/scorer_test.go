package scoring

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/daryltucker/forecast-runner/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2021, 1, d, 0, 0, 0, 0, time.UTC)
}

func point(d int, y float64) model.ForecastPoint {
	return model.ForecastPoint{DS: day(d), Yhat: y}
}

func TestPerfectForecast(t *testing.T) {
	table := model.ObservationTable{{DS: day(1), Y: 10}, {DS: day(2), Y: 15}}
	points := []model.ForecastPoint{point(1, 10), point(2, 15)}

	card, err := New(model.DayLayout).Score(points, table)
	require.NoError(t, err)
	assert.Equal(t, 0.0, card.MAE)
	assert.Equal(t, 0.0, card.RMSE)
	assert.Equal(t, 1.0, card.R2)
	assert.Equal(t, 2, card.Matched)
}

func TestKnownMetrics(t *testing.T) {
	table := model.ObservationTable{{DS: day(1), Y: 1}, {DS: day(2), Y: 2}, {DS: day(3), Y: 3}}
	points := []model.ForecastPoint{point(1, 2), point(2, 2), point(3, 2)}

	card, err := New(model.DayLayout).Score(points, table)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, card.MAE, 1e-12)
	assert.InDelta(t, math.Sqrt(2.0/3.0), card.RMSE, 1e-12)
	// SSres = 2, SStot = 2
	assert.InDelta(t, 0.0, card.R2, 1e-12)
}

func TestNoOverlappingDates(t *testing.T) {
	table := model.ObservationTable{{DS: day(1), Y: 10}, {DS: day(2), Y: 15}}
	points := []model.ForecastPoint{point(20, 10), point(21, 15)}

	_, err := New(model.DayLayout).Score(points, table)
	assert.True(t, errors.Is(err, ErrNoOverlappingDates))
}

func TestInnerJoinDropsUnmatched(t *testing.T) {
	table := model.ObservationTable{{DS: day(1), Y: 10}, {DS: day(2), Y: 20}, {DS: day(3), Y: 30}}
	points := []model.ForecastPoint{point(2, 21), point(3, 29), point(4, 100), point(5, 100)}

	m := New(model.DayLayout).Join(points, table)
	assert.Equal(t, []string{"2021-01-02", "2021-01-03"}, m.Keys)
	assert.Equal(t, []float64{20, 30}, m.Actual)
	assert.Equal(t, []float64{21, 29}, m.Predicted)

	card, err := New(model.DayLayout).Score(points, table)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, card.MAE, 1e-12)
}

func TestMatchedNeverExceedsSmallerSide(t *testing.T) {
	table := model.ObservationTable{{DS: day(1), Y: 1}, {DS: day(1), Y: 2}, {DS: day(2), Y: 3}}
	points := []model.ForecastPoint{point(1, 1), point(1, 1), point(1, 5), point(2, 3)}

	m := New(model.DayLayout).Join(points, table)
	assert.LessOrEqual(t, len(m.Keys), len(table))
	assert.LessOrEqual(t, len(m.Keys), len(points))
	assert.Equal(t, []float64{1, 3}, m.Actual)
}

func TestLayoutControlsKeyPrecision(t *testing.T) {
	table := model.ObservationTable{{DS: day(1), Y: 10}}
	points := []model.ForecastPoint{{DS: day(1).Add(6 * time.Hour), Yhat: 10}}

	_, err := New(model.DayLayout).Score(points, table)
	assert.NoError(t, err)

	_, err = New(model.SecondLayout).Score(points, table)
	assert.ErrorIs(t, err, ErrNoOverlappingDates)
}

func TestConstantActuals(t *testing.T) {
	table := model.ObservationTable{{DS: day(1), Y: 5}, {DS: day(2), Y: 5}}

	card, err := New("").Score([]model.ForecastPoint{point(1, 5), point(2, 5)}, table)
	require.NoError(t, err)
	assert.Equal(t, 1.0, card.R2)

	card, err = New("").Score([]model.ForecastPoint{point(1, 4), point(2, 6)}, table)
	require.NoError(t, err)
	assert.Equal(t, 0.0, card.R2)
	assert.False(t, math.IsNaN(card.R2))
}

func TestScoringIsDeterministic(t *testing.T) {
	table := model.ObservationTable{{DS: day(1), Y: 3.3}, {DS: day(2), Y: 7.1}, {DS: day(3), Y: 2.2}}
	points := []model.ForecastPoint{point(3, 2.0), point(1, 3.0), point(2, 8.0)}

	s := New(model.DayLayout)
	first, err := s.Score(points, table)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := s.Score(points, table)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestNonFiniteMetrics(t *testing.T) {
	table := model.ObservationTable{{DS: day(1), Y: 1}, {DS: day(2), Y: 2}}
	points := []model.ForecastPoint{point(1, math.NaN()), point(2, 2)}

	_, err := New(model.DayLayout).Score(points, table)
	assert.ErrorIs(t, err, ErrNonFinite)
}
