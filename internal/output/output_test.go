package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/daryltucker/forecast-runner/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	success = model.Outcome{
		Script:   "naive.go",
		Forecast: []model.NormalizedPoint{{DS: "2021-01-01", Yhat: 10}},
		Metrics:  map[string]float64{"MAE": 0.5, "RMSE": 1, "R2": 0.9, "duration": 0.01, "memory_peak_mb": 2},
		RunID:    "7",
	}
	failure = model.Outcome{Script: "broken.go", Error: "ExecutionError: boom", ErrorKind: "execution"}
)

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.Write("sales.csv", success))
	require.NoError(t, w.Write("sales.csv", failure))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{"sales.csv", "naive.go", "0.500000", "1.000000", "0.900000", "0.010000", "2.000000", "1", "7", "", ""}, rows[1])
	assert.Equal(t, []string{"sales.csv", "broken.go", "", "", "", "", "", "0", "", "execution", "ExecutionError: boom"}, rows[2])
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONStream(&buf)

	require.NoError(t, w.Write("sales.csv", success))
	require.NoError(t, w.Write("sales.csv", failure))
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "sales.csv", first["dataset"])
	assert.Equal(t, "naive.go", first["script"])
	assert.NotContains(t, first, "error")

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "ExecutionError: boom", second["error"])
	assert.NotContains(t, second, "metrics")
	assert.NotContains(t, second, "forecast")
}

func TestConfigure(t *testing.T) {
	defer SetLogger(Logger)

	var buf bytes.Buffer
	Configure(&buf, "warn", "json")
	engineLog := Component("engine")
	engineLog.Info().Msg("hidden")
	engineLog.Warn().Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"component":"engine"`)
	assert.Equal(t, zerolog.WarnLevel, Logger.GetLevel())

	Configure(&buf, "nonsense", "json")
	assert.Equal(t, zerolog.InfoLevel, Logger.GetLevel())
}
