package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/daryltucker/forecast-runner/internal/assets"
	"github.com/daryltucker/forecast-runner/internal/dataset"
	"github.com/daryltucker/forecast-runner/internal/engine"
	"github.com/daryltucker/forecast-runner/internal/model"
	"github.com/daryltucker/forecast-runner/internal/storage"
)

type rejection struct {
	name string
	err  error
}

// columnSelection names the columns to read from one uploaded CSV.
type columnSelection struct {
	Date    string `json:"date"`
	Numeric string `json:"numeric"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid multipart form: %w", err)
	}
	return nil
}

func readScripts(r *http.Request) ([]model.Script, error) {
	headers := r.MultipartForm.File["scripts"]
	scripts := make([]model.Script, 0, len(headers))
	for _, h := range headers {
		src, err := readPart(h)
		if err != nil {
			return nil, fmt.Errorf("script %s: %w", h.Filename, err)
		}
		scripts = append(scripts, model.Script{Name: h.Filename, Source: src})
	}
	return scripts, nil
}

func readPart(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func parseDataset(h *multipart.FileHeader, sel columnSelection) (model.Dataset, error) {
	f, err := h.Open()
	if err != nil {
		return model.Dataset{}, err
	}
	defer f.Close()
	return dataset.ParseCSV(h.Filename, f, sel.Date, sel.Numeric)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scripts, err := readScripts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(scripts) == 0 {
		writeError(w, http.StatusBadRequest, engine.ErrNoScripts.Error())
		return
	}

	files := r.MultipartForm.File["data_file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "data_file is required")
		return
	}
	ds, err := parseDataset(files[0], columnSelection{
		Date:    r.FormValue("date_column"),
		Numeric: r.FormValue("numeric_column"),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcomes, err := s.engine.Run(r.Context(), userFrom(r.Context()), scripts, ds)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": outcomes})
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scripts, err := readScripts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(scripts) == 0 {
		writeError(w, http.StatusBadRequest, engine.ErrNoScripts.Error())
		return
	}

	files := r.MultipartForm.File["data_files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, engine.ErrNoDatasets.Error())
		return
	}

	selections := map[string]columnSelection{}
	if raw := r.FormValue("selected_csv_columns"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &selections); err != nil {
			writeError(w, http.StatusBadRequest, "selected_csv_columns: "+err.Error())
			return
		}
	}

	// Datasets that fail their own validation are reported without running.
	var rejected []rejection
	var datasets []model.Dataset
	for _, h := range files {
		ds, err := parseDataset(h, selections[h.Filename])
		if err != nil {
			s.log.Warn().Err(err).Str("dataset", h.Filename).Msg("Rejected dataset")
			rejected = append(rejected, rejection{name: h.Filename, err: err})
			continue
		}
		datasets = append(datasets, ds)
	}

	report := model.Report{}
	if len(datasets) > 0 {
		report, err = s.engine.Benchmark(r.Context(), engine.Request{
			User:     userFrom(r.Context()),
			Scripts:  scripts,
			Datasets: datasets,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	for _, r := range rejected {
		report[report.UniqueKey(r.name)] = []model.Outcome{{Error: r.err.Error()}}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": report})
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	src, err := assets.ForecastTemplate()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read embedded template")
		writeError(w, http.StatusInternalServerError, "template unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="forecast.go"`)
	w.Write(src)
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}

	f, err := files[0].Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer f.Close()

	columns, err := dataset.Columns(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"columns": columns})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	runs := []storage.RunRecord{}
	if s.store != nil {
		found, err := s.store.ListRuns(r.Context(), userFrom(r.Context()), r.URL.Query().Get("dataset"))
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to list runs")
			writeError(w, http.StatusInternalServerError, "failed to load history")
			return
		}
		if found != nil {
			runs = found
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": runs})
}
