package domain

import "time"

// HeaterState is one row of the heater transition log. Consecutive rows in
// the canonical log never repeat the same state value: the log records
// transitions, not samples.
type HeaterState struct {
	ID        int64
	Timestamp time.Time
	On        bool
}

// TemperatureRow is one row of the temperature log: one poll cycle, with one
// column per configured source slot. A source that was missing from the
// cycle has a nil value.
type TemperatureRow struct {
	ID        int64
	Timestamp time.Time
	Values    map[string]*float64
}

// SetpointEntry is one row of the append-only setpoint audit log. Every
// setpoint write is logged regardless of change.
type SetpointEntry struct {
	ID        int64
	Timestamp time.Time
	OffPeak   float64
	FullCost  float64
}
