// Package domain contains core domain types for the heating controller.
package domain

import (
	"fmt"
	"time"
)

// Measurement is a single temperature reading collected from one sensor.
type Measurement struct {
	Source      string
	Value       float64
	CollectedAt time.Time
}

// String returns a string representation of the measurement.
func (m Measurement) String() string {
	return fmt.Sprintf("%s: %.1f°C at %s", m.Source, m.Value, m.CollectedAt.Format("2006-01-02 15:04:05"))
}

// Average returns the arithmetic mean of the measurement values.
// The second return value is false when the slice is empty.
func Average(measurements []Measurement) (float64, bool) {
	if len(measurements) == 0 {
		return 0, false
	}
	var sum float64
	for _, m := range measurements {
		sum += m.Value
	}
	return sum / float64(len(measurements)), true
}

// Coldest returns the measurement with the lowest value.
// The second return value is false when the slice is empty.
func Coldest(measurements []Measurement) (Measurement, bool) {
	if len(measurements) == 0 {
		return Measurement{}, false
	}
	coldest := measurements[0]
	for _, m := range measurements[1:] {
		if m.Value < coldest.Value {
			coldest = m
		}
	}
	return coldest, true
}
