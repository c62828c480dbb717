// Package storage provides storage abstractions for the controller's
// durable logs.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ovanier/heatctl-go/internal/domain"
)

// Store is the interface for the heater, temperature and setpoint logs.
type Store interface {
	// AppendHeaterState records a heater state transition. A state equal
	// to the most recently persisted one is not appended: the log records
	// transitions, not samples.
	AppendHeaterState(ctx context.Context, on bool) error

	// AppendTemperatures records one poll cycle. Every cycle is recorded,
	// even when unchanged; a source missing from the map leaves its
	// column unset.
	AppendTemperatures(ctx context.Context, values map[string]float64) error

	// AppendSetpoints records a setpoint write. Every write is logged
	// regardless of change, for audit.
	AppendSetpoints(ctx context.Context, sp domain.Setpoints) error

	// LatestTemperatures returns the most recent temperature row.
	LatestTemperatures(ctx context.Context) (domain.TemperatureRow, error)

	// QueryTemperatureLog returns the temperature rows in [start, end],
	// oldest first.
	QueryTemperatureLog(ctx context.Context, start, end time.Time) ([]domain.TemperatureRow, error)

	// QueryHeaterLog returns the heater transitions in [start, end],
	// oldest first.
	QueryHeaterLog(ctx context.Context, start, end time.Time) ([]domain.HeaterState, error)

	// Lifecycle
	Close() error
}

// ErrUnavailable is returned by read operations when no backing store has
// any data yet (cold start: neither the primary nor the scratch file
// exists).
var ErrUnavailable = errors.New("store unavailable")

// IsUnavailable checks if an error is a store-unavailable error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// ErrNotFound is returned when a record is not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e ErrNotFound) Error() string {
	return e.Resource + " not found: " + e.ID
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	var notFound ErrNotFound
	return errors.As(err, &notFound)
}
