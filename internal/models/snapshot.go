package models

import (
	"errors"
	"fmt"
)

var (
	errNoTimestamps        = errors.New("snapshot has no timestamp_sec field")
	errTimestampsDecreased = errors.New("timestamp_sec is not monotonically non-decreasing")
)

// StateSnapshot is one complete device-state payload. Every frame replaces the
// previous one in full.
type StateSnapshot struct {
	TimestampSec  []float64            `json:"timestamp_sec"`
	TemperatureC  map[string][]float64 `json:"temperature_c"`
	TachometerRPM map[string][]float64 `json:"tachometer_rpm"`
	Seq           *uint64              `json:"seq,omitempty"` // stamped by the device, optional
}

// Validate checks the alignment contract: every series has exactly one reading
// per timestamp and timestamps never go backwards.
func (s StateSnapshot) Validate() error {
	if s.TimestampSec == nil {
		return errNoTimestamps
	}
	for i := 1; i < len(s.TimestampSec); i++ {
		if s.TimestampSec[i] < s.TimestampSec[i-1] {
			return fmt.Errorf("%w at index %d", errTimestampsDecreased, i)
		}
	}
	if err := checkAligned("temperature_c", s.TemperatureC, len(s.TimestampSec)); err != nil {
		return err
	}
	return checkAligned("tachometer_rpm", s.TachometerRPM, len(s.TimestampSec))
}

func checkAligned(field string, series map[string][]float64, n int) error {
	for name, values := range series {
		if len(values) != n {
			return fmt.Errorf("%s[%q] has %d readings, want %d", field, name, len(values), n)
		}
	}
	return nil
}
