package script

import (
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/daryltucker/forecast-runner/internal/assets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traefik/yaegi/interp"
)

const echoScript = `package echo

func Forecast(data []map[string]interface{}) (map[string]interface{}, error) {
	out := []interface{}{}
	for _, row := range data {
		out = append(out, map[string]interface{}{"ds": "2023-01-01", "yhat": row["y"]})
	}
	return map[string]interface{}{"forecast": out}, nil
}
`

const noErrorScript = `package plain

func Forecast(data []map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"forecast": []interface{}{}, "rows": len(data)}
}
`

const mainScript = `package main

func Forecast(data []map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"rows": len(data)}
}

func main() {}
`

func scratchFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestLoadAndInvoke(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(dir, "")

	unit, err := l.Load("echo.go", []byte(echoScript))
	require.NoError(t, err)
	assert.FileExists(t, unit.Path)
	assert.NotContains(t, unit.Path, "echo.go")

	out, err := unit.Forecast([]map[string]interface{}{{"y": 42.0}})
	require.NoError(t, err)
	forecast := out["forecast"].([]interface{})
	require.Len(t, forecast, 1)
	assert.Equal(t, 42.0, forecast[0].(map[string]interface{})["yhat"])

	require.NoError(t, unit.Close())
	assert.NoFileExists(t, unit.Path)
	assert.Empty(t, scratchFiles(t, dir))

	// Close is idempotent.
	assert.NoError(t, unit.Close())
}

func TestLoadSignatureWithoutError(t *testing.T) {
	unit, err := NewLoader(t.TempDir(), "").Load("plain.go", []byte(noErrorScript))
	require.NoError(t, err)
	defer unit.Close()

	out, err := unit.Forecast(make([]map[string]interface{}, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, out["rows"])
}

func TestLoadMainPackage(t *testing.T) {
	unit, err := NewLoader(t.TempDir(), "").Load("main.go", []byte(mainScript))
	require.NoError(t, err)
	defer unit.Close()

	out, err := unit.Forecast(make([]map[string]interface{}, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, out["rows"])
}

func TestLoadFailures(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		symbol  string
		missing bool
	}{
		{"syntax error", "package broken\n\nfunc Forecast( {", "", false},
		{"type error", "package broken\n\nfunc Forecast(data []map[string]interface{}) map[string]interface{} { return 1 }", "", false},
		{"missing entry point", "package other\n\nfunc Predict() {}", "Forecast", true},
		{"wrong signature", "package other\n\nfunc Forecast(n int) int { return n }", "Forecast", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			_, err := NewLoader(dir, "").Load("bad.go", []byte(tc.src))
			require.Error(t, err)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr), "got %T: %v", err, err)
			assert.Equal(t, tc.symbol, loadErr.Symbol)
			assert.Equal(t, tc.missing, errors.Is(err, ErrMissingSymbol))
			assert.Empty(t, scratchFiles(t, dir), "scratch file must be released on failure")
		})
	}
}

func TestLoadWithInvalidSymbols(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(dir, "")
	l.Symbols = []interp.Exports{{"nopath": {}}}

	_, err := l.Load("echo.go", []byte(echoScript))

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr), "got %T: %v", err, err)
	assert.Equal(t, "echo.go", loadErr.Script)
	assert.Contains(t, err.Error(), "interpreter symbols")
	assert.Empty(t, scratchFiles(t, dir))
}

func TestLoadSameNameConcurrently(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(dir, "")

	const n = 8
	units := make([]*Unit, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := l.Load("forecast.go", []byte(echoScript))
			assert.NoError(t, err)
			units[i] = u
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, u := range units {
		require.NotNil(t, u)
		assert.False(t, seen[u.Path], "duplicate scratch path %s", u.Path)
		seen[u.Path] = true
	}
	assert.Len(t, scratchFiles(t, dir), n)

	for _, u := range units {
		require.NoError(t, u.Close())
	}
	assert.Empty(t, scratchFiles(t, dir))
}

func TestTemplateLoads(t *testing.T) {
	src, err := assets.ForecastTemplate()
	require.NoError(t, err)

	unit, err := NewLoader(t.TempDir(), "").Load("template.go", src)
	require.NoError(t, err)
	defer unit.Close()
}
