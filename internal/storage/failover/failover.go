// Package failover implements the resilient dual-tier store: a primary
// database on network-attached storage, preferred whenever its medium is
// reachable, and a local scratch database used while it is not. Rows
// accumulated in scratch are merged back into the primary as one unit once
// it recovers, and the scratch file is deleted after a successful merge.
package failover

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ovanier/heatctl-go/internal/domain"
	"github.com/ovanier/heatctl-go/internal/storage"
	"github.com/ovanier/heatctl-go/internal/storage/sqlite"
)

// Location identifies which physical store is the active write target.
type Location int

const (
	Primary Location = iota
	Scratch
)

// String returns the location name.
func (l Location) String() string {
	if l == Primary {
		return "primary"
	}
	return "scratch"
}

// Store is a storage.Store that fails over between a primary and a scratch
// SQLite file. The control loop is the sole writer; HTTP handlers read
// concurrently, so all operations are serialized behind one mutex.
type Store struct {
	primaryPath string
	scratchPath string
	sources     []string
	log         *logrus.Entry
	now         func() time.Time

	// onFailover is invoked on its own goroutine after the active target
	// switches to scratch.
	onFailover func(Location)

	mu      sync.Mutex
	primary *sqlite.Store
	scratch *sqlite.Store
	active  *Location
}

// Open creates a failover store over the two paths. Nothing is opened until
// the first operation.
func Open(primaryPath, scratchPath string, sources []string, log *logrus.Entry) *Store {
	return &Store{
		primaryPath: primaryPath,
		scratchPath: scratchPath,
		sources:     sources,
		log:         log,
		now:         time.Now,
	}
}

// OnFailover registers a hook called when new writes start going to the
// scratch store. Must be set before the store is used.
func (s *Store) OnFailover(fn func(Location)) {
	s.onFailover = fn
}

// Close closes any open database handles.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.primary != nil {
		firstErr = s.primary.Close()
		s.primary = nil
	}
	if s.scratch != nil {
		if err := s.scratch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.scratch = nil
	}
	return firstErr
}

// primaryReachable is the cheap reachability check: the directory holding
// the primary file must exist. When the network mount is gone, so is the
// directory.
func (s *Store) primaryReachable() bool {
	info, err := os.Stat(filepath.Dir(s.primaryPath))
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (s *Store) openPrimary() (*sqlite.Store, error) {
	if s.primary == nil {
		store, err := sqlite.Open(s.primaryPath, s.sources)
		if err != nil {
			return nil, fmt.Errorf("open primary store: %w", err)
		}
		s.primary = store
	}
	return s.primary, nil
}

func (s *Store) openScratch() (*sqlite.Store, error) {
	if s.scratch == nil {
		store, err := sqlite.Open(s.scratchPath, s.sources)
		if err != nil {
			return nil, fmt.Errorf("open scratch store: %w", err)
		}
		s.scratch = store
	}
	return s.scratch, nil
}

func (s *Store) noteActive(loc Location) {
	if s.active != nil && *s.active == loc {
		return
	}
	s.log.WithField("location", loc.String()).Info("active store changed")
	s.active = &loc
	if loc == Scratch && s.onFailover != nil {
		// The hook may block on network I/O (an alert send); it must not
		// hold up the write that triggered it or any reader behind s.mu.
		go s.onFailover(loc)
	}
}

// resolveTarget picks the write target: primary whenever reachable, scratch
// otherwise. When the primary just became reachable again and scratch holds
// unmerged rows, reconciliation runs before the primary is handed out, so
// new writes never interleave with an in-flight merge. A failed
// reconciliation keeps the scratch file and is retried on the next resolve.
func (s *Store) resolveTarget(ctx context.Context) (*sqlite.Store, error) {
	if !s.primaryReachable() {
		target, err := s.openScratch()
		if err != nil {
			return nil, err
		}
		s.noteActive(Scratch)
		return target, nil
	}

	if fileExists(s.scratchPath) {
		if err := s.reconcile(ctx); err != nil {
			s.log.WithError(err).Error("reconciliation failed, scratch retained")
		}
	}
	target, err := s.openPrimary()
	if err != nil {
		return nil, err
	}
	s.noteActive(Primary)
	return target, nil
}

// readTarget picks the store reads are served from. Unlike resolveTarget it
// never creates a missing file: with no data anywhere the read fails with
// ErrUnavailable.
func (s *Store) readTarget(ctx context.Context) (*sqlite.Store, error) {
	if s.primaryReachable() {
		if fileExists(s.scratchPath) {
			if err := s.reconcile(ctx); err != nil {
				s.log.WithError(err).Error("reconciliation failed, scratch retained")
			}
		}
		if fileExists(s.primaryPath) {
			return s.openPrimary()
		}
		// Primary reachable but never written; serve from scratch if a
		// failed merge left one behind.
		if fileExists(s.scratchPath) {
			return s.openScratch()
		}
		return nil, storage.ErrUnavailable
	}
	if fileExists(s.scratchPath) {
		return s.openScratch()
	}
	return nil, storage.ErrUnavailable
}

// reconcile merges every scratch row into the primary as one unit and
// deletes the scratch file. The merge preserves original timestamps and row
// order. On any failure the scratch file is left intact.
func (s *Store) reconcile(ctx context.Context) error {
	scratch, err := s.openScratch()
	if err != nil {
		return err
	}
	primary, err := s.openPrimary()
	if err != nil {
		return err
	}

	if err := primary.ImportFrom(ctx, scratch); err != nil {
		return fmt.Errorf("merge scratch into primary: %w", err)
	}

	if err := scratch.Close(); err != nil {
		s.log.WithError(err).Warn("failed to close scratch store after merge")
	}
	s.scratch = nil

	if err := os.Remove(s.scratchPath); err != nil {
		return fmt.Errorf("remove scratch file after merge: %w", err)
	}

	s.log.Info("scratch store merged into primary")
	return nil
}

// AppendHeaterState implements storage.Store. The new state is compared
// against the most recent state persisted in the resolved target; equal
// states are not appended. A transition that straddles a failover may still
// produce a duplicate across the scratch/primary boundary after a merge;
// the merge deliberately does not re-apply the check.
func (s *Store) AppendHeaterState(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.resolveTarget(ctx)
	if err != nil {
		return err
	}

	last, ok, err := target.LastHeaterState(ctx)
	if err != nil {
		return err
	}
	if ok && last == on {
		return nil
	}
	return target.AppendHeaterStateAt(ctx, s.now(), on)
}

// AppendTemperatures implements storage.Store. Every poll cycle is
// recorded, even when unchanged.
func (s *Store) AppendTemperatures(ctx context.Context, values map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.resolveTarget(ctx)
	if err != nil {
		return err
	}
	return target.AppendTemperaturesAt(ctx, s.now(), values)
}

// AppendSetpoints implements storage.Store.
func (s *Store) AppendSetpoints(ctx context.Context, sp domain.Setpoints) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.resolveTarget(ctx)
	if err != nil {
		return err
	}
	return target.AppendSetpointsAt(ctx, s.now(), sp)
}

// LatestTemperatures implements storage.Store.
func (s *Store) LatestTemperatures(ctx context.Context) (domain.TemperatureRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.readTarget(ctx)
	if err != nil {
		return domain.TemperatureRow{}, err
	}
	return target.LatestTemperatures(ctx)
}

// QueryTemperatureLog implements storage.Store.
func (s *Store) QueryTemperatureLog(ctx context.Context, start, end time.Time) ([]domain.TemperatureRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.readTarget(ctx)
	if err != nil {
		return nil, err
	}
	return target.QueryTemperatureLog(ctx, start, end)
}

// QueryHeaterLog implements storage.Store.
func (s *Store) QueryHeaterLog(ctx context.Context, start, end time.Time) ([]domain.HeaterState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.readTarget(ctx)
	if err != nil {
		return nil, err
	}
	return target.QueryHeaterLog(ctx, start, end)
}

// Verify interface compliance
var _ storage.Store = (*Store)(nil)
