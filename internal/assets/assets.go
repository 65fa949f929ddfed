// Package assets holds files embedded into the binary.
package assets

import "embed"

// Templates contains starter scripts served to users.
//
//go:embed templates
var Templates embed.FS

// ForecastTemplate returns the starter forecasting script.
func ForecastTemplate() ([]byte, error) {
	return Templates.ReadFile("templates/forecast.go.tmpl")
}
