package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/daryltucker/forecast-runner/internal/dataset"
	"github.com/daryltucker/forecast-runner/internal/model"
)

// readScripts loads script files. A directory contributes its *.go files in name order.
func readScripts(paths []string) ([]model.Script, error) {
	var scripts []model.Script
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read script %s: %w", p, err)
		}

		files := []string{p}
		if info.IsDir() {
			files, err = filepath.Glob(filepath.Join(p, "*.go"))
			if err != nil {
				return nil, err
			}
			sort.Strings(files)
		}

		for _, f := range files {
			src, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read script %s: %w", f, err)
			}
			scripts = append(scripts, model.Script{Name: filepath.Base(f), Source: src})
		}
	}
	return scripts, nil
}

// parseDataSpec splits "path:date_column:numeric_column". The path may itself contain colons.
func parseDataSpec(spec string) (path, dateColumn, numericColumn string, err error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 3 {
		return "", "", "", fmt.Errorf("invalid --data %q, want path:date_column:numeric_column", spec)
	}
	n := len(parts)
	return strings.Join(parts[:n-2], ":"), parts[n-2], parts[n-1], nil
}

// rejectedDataset is a dataset that failed its own validation.
type rejectedDataset struct {
	Name string
	Err  error
}

// loadDatasets parses every data spec. Invalid datasets are returned separately,
// in argument order, so they can be reported without aborting the others.
func loadDatasets(specs []string) ([]model.Dataset, []rejectedDataset, error) {
	var datasets []model.Dataset
	var rejected []rejectedDataset
	for _, spec := range specs {
		path, dateColumn, numericColumn, err := parseDataSpec(spec)
		if err != nil {
			return nil, nil, err
		}
		ds, err := dataset.LoadFile(path, dateColumn, numericColumn)
		if err != nil {
			rejected = append(rejected, rejectedDataset{Name: filepath.Base(path), Err: err})
			continue
		}
		datasets = append(datasets, ds)
	}
	return datasets, rejected, nil
}
