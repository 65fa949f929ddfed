/*
PURPOSE:
  Turns uploaded script source into a callable forecasting unit.
  This is the only place untrusted code crosses into the process.

REQUIREMENTS:
  User-specified:
  - Scripts expose one entry point: Forecast(data) -> {"forecast": [...]}.
  - Two scripts with the same upload name must never collide.

  Implementation-discovered:
  - Every unit gets its own yaegi interpreter; nothing is shared between loads.
  - The source is materialized to a uniquely named scratch file (uuid, never
    the upload name) and interpreted from there.
  - Both "returns map" and "returns (map, error)" signatures are accepted.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Dependencies: github.com/traefik/yaegi, github.com/google/uuid

ERROR HANDLING:
  - Compile failures, missing symbols and wrong signatures return *LoadError.
  - The scratch file is removed on every failed load before returning.

IMPLEMENTATION RULES:
  - Callers must Close() the unit on every path.
  - Close is idempotent.

USAGE:
  l := script.NewLoader(dir, "Forecast")
  unit, err := l.Load(name, src)
  defer unit.Close()
  out, err := unit.Forecast(rows)

RELATED FILES:
  - internal/assets/assets.go
  - internal/engine/pipeline.go
*/

package script

import (
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// DefaultEntryPoint is the symbol every script must export.
const DefaultEntryPoint = "Forecast"

// Accepted entry point signatures.
type (
	forecastFunc    = func([]map[string]interface{}) map[string]interface{}
	forecastErrFunc = func([]map[string]interface{}) (map[string]interface{}, error)
)

// LoadError reports a script that could not be turned into a unit.
type LoadError struct {
	Script string
	Symbol string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("script %s: %s: %v", e.Script, e.Symbol, e.Err)
	}
	return fmt.Sprintf("script %s: %v", e.Script, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ErrMissingSymbol is wrapped by LoadError when the entry point is absent.
var ErrMissingSymbol = errors.New("required function is not defined")

// Loader materializes scripts as units.
type Loader struct {
	Dir        string // scratch directory, os.TempDir() when empty
	EntryPoint string
	// Symbols are exposed to scripts in addition to the standard library.
	Symbols []interp.Exports
}

// NewLoader creates a loader writing scratch files to dir.
func NewLoader(dir, entryPoint string) *Loader {
	if entryPoint == "" {
		entryPoint = DefaultEntryPoint
	}
	return &Loader{Dir: dir, EntryPoint: entryPoint}
}

// Unit is a loaded forecasting capability bound to one scratch file.
type Unit struct {
	ID     string
	Script string
	Path   string

	fn        forecastErrFunc
	closeOnce sync.Once
	closeErr  error
}

// Forecast invokes the script's entry point.
func (u *Unit) Forecast(rows []map[string]interface{}) (map[string]interface{}, error) {
	return u.fn(rows)
}

// Close releases the scratch file backing the unit.
func (u *Unit) Close() error {
	u.closeOnce.Do(func() {
		if err := os.Remove(u.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			u.closeErr = err
		}
	})
	return u.closeErr
}

// Load writes src to a fresh scratch file, interprets it and resolves the entry point.
func (l *Loader) Load(name string, src []byte) (unit *Unit, err error) {
	dir := l.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create script directory %s: %w", dir, err)
	}

	id := uuid.NewString()
	path := filepath.Join(dir, "unit-"+id+".go")
	if err := os.WriteFile(path, src, 0o600); err != nil {
		return nil, fmt.Errorf("failed to materialize script %s: %w", name, err)
	}

	u := &Unit{ID: id, Script: name, Path: path}
	defer func() {
		if err != nil {
			u.Close()
		}
	}()

	pkg, err := packageName(path)
	if err != nil {
		return nil, &LoadError{Script: name, Err: err}
	}

	fn, err := l.compile(name, pkg, path)
	if err != nil {
		return nil, err
	}
	u.fn = fn
	return u, nil
}

func (l *Loader) compile(name, pkg, path string) (fn forecastErrFunc, err error) {
	// yaegi panics on some malformed programs instead of returning an error.
	defer func() {
		if r := recover(); r != nil {
			err = &LoadError{Script: name, Err: fmt.Errorf("interpreter panic: %v", r)}
		}
	}()

	i := interp.New(interp.Options{})
	for _, symbols := range append([]interp.Exports{stdlib.Symbols}, l.Symbols...) {
		if err := i.Use(symbols); err != nil {
			return nil, &LoadError{Script: name, Err: fmt.Errorf("failed to load interpreter symbols: %w", err)}
		}
	}

	if _, err := i.EvalPath(path); err != nil {
		return nil, &LoadError{Script: name, Err: fmt.Errorf("compile: %w", err)}
	}

	symbol := pkg + "." + l.EntryPoint
	if pkg == "main" {
		symbol = l.EntryPoint
	}
	v, err := i.Eval(symbol)
	if err != nil || !v.IsValid() {
		return nil, &LoadError{Script: name, Symbol: l.EntryPoint, Err: ErrMissingSymbol}
	}

	switch f := v.Interface().(type) {
	case forecastErrFunc:
		return f, nil
	case forecastFunc:
		return func(rows []map[string]interface{}) (map[string]interface{}, error) {
			return f(rows), nil
		}, nil
	default:
		return nil, &LoadError{Script: name, Symbol: l.EntryPoint,
			Err: fmt.Errorf("unsupported signature %s, want func([]map[string]interface{}) (map[string]interface{}, error)", v.Type())}
	}
}

func packageName(path string) (string, error) {
	f, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.PackageClauseOnly)
	if err != nil {
		return "", fmt.Errorf("compile: %w", err)
	}
	return f.Name.Name, nil
}
