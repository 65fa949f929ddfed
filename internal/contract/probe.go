package contract

import (
	"time"

	"github.com/daryltucker/forecast-runner/internal/model"
)

// Probe is a versioned synthetic table used to smoke-test units.
type Probe struct {
	Version string
	Table   model.ObservationTable
}

// ProbeV1 is two consecutive days with simple values. A fresh copy is built
// on every call.
func ProbeV1() Probe {
	return Probe{
		Version: "v1",
		Table: model.ObservationTable{
			{DS: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Y: 100.0},
			{DS: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Y: 110.0},
		},
	}
}
