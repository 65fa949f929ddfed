package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/daryltucker/forecast-runner/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataSpec(t *testing.T) {
	path, date, numeric, err := parseDataSpec("sales.csv:date:sales")
	require.NoError(t, err)
	assert.Equal(t, "sales.csv", path)
	assert.Equal(t, "date", date)
	assert.Equal(t, "sales", numeric)

	path, _, _, err = parseDataSpec(`C:\data\sales.csv:date:sales`)
	require.NoError(t, err)
	assert.Equal(t, `C:\data\sales.csv`, path)

	_, _, _, err = parseDataSpec("sales.csv:date")
	assert.Error(t, err)
}

func TestReadScripts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package b"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	single := filepath.Join(t.TempDir(), "z.go")
	require.NoError(t, os.WriteFile(single, []byte("package z"), 0o600))

	scripts, err := readScripts([]string{single, dir})
	require.NoError(t, err)
	require.Len(t, scripts, 3)
	assert.Equal(t, "z.go", scripts[0].Name)
	assert.Equal(t, "a.go", scripts[1].Name)
	assert.Equal(t, "b.go", scripts[2].Name)
	assert.Equal(t, "package a", string(scripts[1].Source))

	_, err = readScripts([]string{filepath.Join(dir, "missing.go")})
	assert.Error(t, err)
}

func TestLoadDatasets(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.csv")
	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(good, []byte("date,v\n2021-01-01,1\n"), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte("date,v\n2021-01-01,oops\n"), 0o600))

	datasets, rejected, err := loadDatasets([]string{good + ":date:v", bad + ":date:v"})
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, "good.csv", datasets[0].ID)
	require.Len(t, rejected, 1)
	assert.Equal(t, "bad.csv", rejected[0].Name)
	assert.Contains(t, rejected[0].Err.Error(), "not numeric")
}

func TestLoadDatasetsKeepsSameNamedRejections(t *testing.T) {
	good := filepath.Join(t.TempDir(), "a.csv")
	bad1 := filepath.Join(t.TempDir(), "a.csv")
	bad2 := filepath.Join(t.TempDir(), "a.csv")
	require.NoError(t, os.WriteFile(good, []byte("date,v\n2021-01-01,1\n"), 0o600))
	require.NoError(t, os.WriteFile(bad1, []byte("date,v\nnotadate,1\n"), 0o600))
	require.NoError(t, os.WriteFile(bad2, []byte("date,v\n"), 0o600))

	datasets, rejected, err := loadDatasets([]string{good + ":date:v", bad1 + ":date:v", bad2 + ":date:v"})
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	require.Len(t, rejected, 2)

	report := model.Report{"a.csv": {{Script: "naive.go"}}}
	sink := &recordingSink{}
	writeRejected(report, rejected, sink)

	require.Len(t, report, 3)
	assert.Equal(t, "naive.go", report["a.csv"][0].Script)
	assert.Contains(t, report["a.csv (2)"][0].Error, "unparseable date")
	assert.Contains(t, report["a.csv (3)"][0].Error, "no data")
	assert.Equal(t, []string{"a.csv (2)", "a.csv (3)"}, sink.datasets)
}

type recordingSink struct{ datasets []string }

func (s *recordingSink) Write(dataset string, o model.Outcome) error {
	s.datasets = append(s.datasets, dataset)
	return nil
}
