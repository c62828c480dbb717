package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovanier/heatctl-go/internal/domain"
)

var (
	nightWindow = mustWindow("23:30", "07:30")
	noonWindow  = mustWindow("12:30", "14:30")
	setpoints   = domain.Setpoints{OffPeak: 22.0, FullCost: 18.0}
	noPrices    = domain.PriceSignal{Today: domain.PriceUnknown, Tomorrow: domain.PriceUnknown}
	deltas      = Deltas{Preheat: 1.0, HighPrice: -1.0}
)

func mustWindow(start, end string) domain.Window {
	s, err := domain.ParseClockTime(start)
	if err != nil {
		panic(err)
	}
	e, err := domain.ParseClockTime(end)
	if err != nil {
		panic(err)
	}
	return domain.Window{Start: s, End: e}
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 2, 10, hour, minute, 0, 0, time.Local)
}

func temps(values ...float64) []domain.Measurement {
	measurements := make([]domain.Measurement, len(values))
	for i, v := range values {
		measurements[i] = domain.Measurement{Source: "room", Value: v}
	}
	return measurements
}

func TestDecideOffPeakTarget(t *testing.T) {
	// 00:05 is inside the 23:30-07:30 window via midnight wrap.
	d := Decide(at(0, 5), []domain.Window{nightWindow}, setpoints, noPrices, deltas, temps(20.0, 20.0))

	assert.True(t, d.OffPeak)
	assert.Equal(t, 22.0, d.Target)
	assert.True(t, d.Heat, "average 20° below off-peak target 22° must heat")
	assert.Equal(t, ReasonBelowTarget, d.Reason)
}

func TestDecideFullCostTarget(t *testing.T) {
	d := Decide(at(10, 0), []domain.Window{nightWindow, noonWindow}, setpoints, noPrices, deltas, temps(19.0))

	assert.False(t, d.OffPeak)
	assert.Equal(t, 18.0, d.Target)
	assert.False(t, d.Heat, "19° above full-cost target 18° must not heat")
	assert.Equal(t, ReasonAtTarget, d.Reason)
}

func TestDecidePreheatBeforeHighPriceDay(t *testing.T) {
	prices := domain.PriceSignal{Today: domain.PriceNormal, Tomorrow: domain.PriceHigh}
	d := Decide(at(2, 0), []domain.Window{nightWindow}, setpoints, prices, deltas, temps(22.5))

	assert.Equal(t, 23.0, d.Target, "off-peak target raised by preheat delta")
	assert.True(t, d.Heat)
}

func TestDecideReducedTargetOnHighPriceDay(t *testing.T) {
	prices := domain.PriceSignal{Today: domain.PriceHigh, Tomorrow: domain.PriceNormal}
	d := Decide(at(10, 0), []domain.Window{nightWindow}, setpoints, prices, deltas, temps(17.5))

	assert.Equal(t, 17.0, d.Target, "full-cost target lowered by high-price delta")
	assert.False(t, d.Heat)
}

func TestDecideTomorrowHighOnlyAffectsOffPeak(t *testing.T) {
	prices := domain.PriceSignal{Today: domain.PriceNormal, Tomorrow: domain.PriceHigh}
	d := Decide(at(10, 0), []domain.Window{nightWindow}, setpoints, prices, deltas, temps(19.0))

	assert.Equal(t, 18.0, d.Target, "tomorrow's price must not adjust the full-cost target")
}

func TestDecideSafetyOverride(t *testing.T) {
	// One cold room below target-1.5° forces heat on even though the
	// average is above the target.
	d := Decide(at(10, 0), []domain.Window{nightWindow}, setpoints, noPrices, deltas, temps(16.0, 24.0, 24.0))

	avg := (16.0 + 24.0 + 24.0) / 3
	require.Greater(t, avg, d.Target)
	assert.True(t, d.Heat)
	assert.Equal(t, ReasonSafetyOverride, d.Reason)
	require.NotNil(t, d.Coldest)
	assert.Equal(t, 16.0, d.Coldest.Value)
}

func TestDecideSafetyOverrideBoundary(t *testing.T) {
	// Exactly at target-1.5° the override does not fire.
	d := Decide(at(10, 0), []domain.Window{nightWindow}, setpoints, noPrices, deltas, temps(16.5, 24.0))
	assert.NotEqual(t, ReasonSafetyOverride, d.Reason)
}

func TestDecideAverageRule(t *testing.T) {
	on := Decide(at(10, 0), []domain.Window{nightWindow}, setpoints, noPrices, deltas, temps(17.0, 18.5))
	assert.True(t, on.Heat, "mean 17.75° below 18° target")

	off := Decide(at(10, 0), []domain.Window{nightWindow}, setpoints, noPrices, deltas, temps(18.0, 18.5))
	assert.False(t, off.Heat, "mean 18.25° at or above target")
}

func TestDecideNoMeasurements(t *testing.T) {
	d := Decide(at(10, 0), []domain.Window{nightWindow}, setpoints, noPrices, deltas, nil)

	assert.False(t, d.Heat)
	assert.True(t, d.NoData)
	assert.Equal(t, ReasonNoData, d.Reason)
}

func TestDecideNoWindows(t *testing.T) {
	d := Decide(at(3, 0), nil, setpoints, noPrices, deltas, temps(20.0))
	assert.False(t, d.OffPeak)
	assert.Equal(t, 18.0, d.Target)
}
