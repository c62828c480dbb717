// Package scheduler drives the periodic control loop and the price refresh
// loop, independent of the HTTP server.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ovanier/heatctl-go/internal/domain"
	"github.com/ovanier/heatctl-go/internal/engine"
	"github.com/ovanier/heatctl-go/internal/state"
	"github.com/ovanier/heatctl-go/internal/storage"
)

// Collector reads all configured sensors for one cycle.
type Collector interface {
	Collect(ctx context.Context) []domain.Measurement
}

// PriceProvider supplies the cached price signal and refreshes it.
type PriceProvider interface {
	Signal() domain.PriceSignal
	Refresh(ctx context.Context)
}

// HeatSwitch applies the heat command to the actuator.
type HeatSwitch interface {
	Apply(ctx context.Context, desired bool) error
}

// Alerter is notified of abnormal cycle outcomes. May be nil.
type Alerter interface {
	SafetyOverride(ctx context.Context, coldest domain.Measurement, target float64)
}

// Scheduler runs the sense → decide → command → log cycle on a fixed
// interval and refreshes the price signal on its own schedule.
type Scheduler struct {
	log *logrus.Entry

	pollInterval  time.Duration
	priceInterval time.Duration
	windows       []domain.Window
	deltas        engine.Deltas

	setpoints *state.Setpoints
	collector Collector
	prices    PriceProvider
	actuator  HeatSwitch
	store     storage.Store
	alerter   Alerter

	now     func() time.Time
	trigger chan struct{}
	busy    atomic.Bool
}

// Config collects the scheduler dependencies.
type Config struct {
	Log           *logrus.Entry
	PollInterval  time.Duration
	PriceInterval time.Duration
	Windows       []domain.Window
	Deltas        engine.Deltas
	Setpoints     *state.Setpoints
	Collector     Collector
	Prices        PriceProvider
	Actuator      HeatSwitch
	Store         storage.Store
	Alerter       Alerter
}

// New creates a scheduler.
func New(cfg Config) *Scheduler {
	return &Scheduler{
		log:           cfg.Log,
		pollInterval:  cfg.PollInterval,
		priceInterval: cfg.PriceInterval,
		windows:       cfg.Windows,
		deltas:        cfg.Deltas,
		setpoints:     cfg.Setpoints,
		collector:     cfg.Collector,
		prices:        cfg.Prices,
		actuator:      cfg.Actuator,
		store:         cfg.Store,
		alerter:       cfg.Alerter,
		now:           time.Now,
		trigger:       make(chan struct{}, 1),
	}
}

// TriggerCycle requests an immediate decision cycle, used by the setpoint
// write endpoint. Requests coalesce while a cycle is pending.
func (s *Scheduler) TriggerCycle() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run drives both loops until the context is cancelled. In-flight cycles
// finish; they are short and harmless to complete.
func (s *Scheduler) Run(ctx context.Context) {
	go s.priceLoop(ctx)

	s.log.WithFields(logrus.Fields{
		"poll_interval":  s.pollInterval.String(),
		"price_interval": s.priceInterval.String(),
	}).Info("control loop started")

	s.Cycle(ctx)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("control loop stopped")
			return
		case <-ticker.C:
			s.Cycle(ctx)
		case <-s.trigger:
			s.Cycle(ctx)
		}
	}
}

func (s *Scheduler) priceLoop(ctx context.Context) {
	s.prices.Refresh(ctx)

	ticker := time.NewTicker(s.priceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.prices.Refresh(ctx)
		}
	}
}

// Cycle runs one sense → decide → command → log pass. A cycle that is still
// running when the next one is due makes the new one a no-op skip; the
// append-dedup invariant tolerates no concurrent writers.
func (s *Scheduler) Cycle(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		s.log.Warn("previous cycle still running, skipping tick")
		return
	}
	defer s.busy.Store(false)

	measurements := s.collector.Collect(ctx)

	values := make(map[string]float64, len(measurements))
	for _, m := range measurements {
		values[m.Source] = m.Value
	}
	if err := s.store.AppendTemperatures(ctx, values); err != nil {
		// A failed log write never blocks the heat command.
		s.log.WithError(err).Error("failed to log temperatures")
	}

	d := engine.Decide(s.now(), s.windows, s.setpoints.Get(), s.prices.Signal(), s.deltas, measurements)
	s.log.WithFields(logrus.Fields{
		"heat":     d.Heat,
		"target":   d.Target,
		"off_peak": d.OffPeak,
		"reason":   string(d.Reason),
		"sensors":  len(measurements),
	}).Info("decision")

	if d.Reason == engine.ReasonSafetyOverride && s.alerter != nil && d.Coldest != nil {
		s.alerter.SafetyOverride(ctx, *d.Coldest, d.Target)
	}

	if err := s.actuator.Apply(ctx, d.Heat); err != nil {
		s.log.WithError(err).Error("failed to command heater")
	}

	if err := s.store.AppendHeaterState(ctx, d.Heat); err != nil {
		s.log.WithError(err).Error("failed to log heater state")
	}
}
