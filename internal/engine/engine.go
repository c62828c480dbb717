// Package engine decides whether the heater should run. The decision is a
// pure function of the current time, the price signal, the setpoints and
// the collected measurements.
package engine

import (
	"time"

	"github.com/ovanier/heatctl-go/internal/domain"
)

// SafetyMargin is how far a single room may fall below the target before
// heat is forced on regardless of the average.
const SafetyMargin = 1.5

// Deltas are the target adjustments applied on high-price days.
type Deltas struct {
	// Preheat is added to the target during off-peak hours when tomorrow
	// is a high-price day.
	Preheat float64
	// HighPrice is added to the target during full-cost hours when today
	// is a high-price day. Usually negative.
	HighPrice float64
}

// Reason explains a decision, for logging and alerting.
type Reason string

const (
	ReasonNoData         Reason = "no measurements"
	ReasonSafetyOverride Reason = "room below safety margin"
	ReasonBelowTarget    Reason = "average below target"
	ReasonAtTarget       Reason = "average at or above target"
)

// Decision is the outcome of one control cycle evaluation.
type Decision struct {
	Heat    bool
	Target  float64
	OffPeak bool
	NoData  bool
	Reason  Reason
	// Coldest is set when the safety override fired.
	Coldest *domain.Measurement
}

// Decide computes the heat command. Rules apply in order: off-peak window
// classification picks the base target, the price signal adjusts it, then a
// single room more than SafetyMargin below the target forces heat on, and
// otherwise the mean of all measurements is compared against the target.
// With no measurements the result is heat off, never a division fault.
func Decide(now time.Time, windows []domain.Window, sp domain.Setpoints, prices domain.PriceSignal, deltas Deltas, measurements []domain.Measurement) Decision {
	offPeak := domain.InOffPeak(domain.ClockTimeOf(now), windows)

	target := sp.FullCost
	if offPeak {
		target = sp.OffPeak
	}

	if offPeak && prices.Tomorrow == domain.PriceHigh {
		// Pre-heat ahead of an expensive day.
		target += deltas.Preheat
	} else if !offPeak && prices.Today == domain.PriceHigh {
		target += deltas.HighPrice
	}

	d := Decision{Target: target, OffPeak: offPeak}

	if len(measurements) == 0 {
		d.NoData = true
		d.Reason = ReasonNoData
		return d
	}

	if coldest, ok := domain.Coldest(measurements); ok && coldest.Value < target-SafetyMargin {
		d.Heat = true
		d.Reason = ReasonSafetyOverride
		d.Coldest = &coldest
		return d
	}

	avg, _ := domain.Average(measurements)
	if avg < target {
		d.Heat = true
		d.Reason = ReasonBelowTarget
	} else {
		d.Reason = ReasonAtTarget
	}
	return d
}
