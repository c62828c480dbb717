package failover

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovanier/heatctl-go/internal/domain"
	"github.com/ovanier/heatctl-go/internal/storage"
	"github.com/ovanier/heatctl-go/internal/storage/sqlite"
)

var testSources = []string{"living_room", "bedroom"}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// testStore returns a failover store whose primary lives in a directory
// that does not exist yet. Creating the directory makes the primary
// "reachable" again, which is how the tests drive reachability
// transitions.
func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	base := t.TempDir()
	primaryDir := filepath.Join(base, "mnt")
	store := Open(
		filepath.Join(primaryDir, "heat.db"),
		filepath.Join(base, "scratch.db"),
		testSources,
		testLogger(),
	)
	t.Cleanup(func() { _ = store.Close() })
	return store, primaryDir
}

func fakeClock(store *Store) *time.Time {
	now := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	return &now
}

func TestWritesGoToPrimaryWhenReachable(t *testing.T) {
	store, primaryDir := testStore(t)
	require.NoError(t, os.MkdirAll(primaryDir, 0o755))
	ctx := context.Background()

	require.NoError(t, store.AppendHeaterState(ctx, true))

	assert.FileExists(t, store.primaryPath)
	assert.NoFileExists(t, store.scratchPath)
}

func TestHeaterDedupInvariant(t *testing.T) {
	store, primaryDir := testStore(t)
	require.NoError(t, os.MkdirAll(primaryDir, 0o755))
	ctx := context.Background()
	now := fakeClock(store)

	// [T,T,T,F,T,F,F] must persist as [T,F,T,F].
	for _, on := range []bool{true, true, true, false, true, false, false} {
		require.NoError(t, store.AppendHeaterState(ctx, on))
		*now = now.Add(time.Minute)
	}

	entries, err := store.QueryHeaterLog(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.True(t, entries[0].On)
	assert.False(t, entries[1].On)
	assert.True(t, entries[2].On)
	assert.False(t, entries[3].On)
}

func TestFailoverToScratch(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	failedOverTo := make(chan Location, 1)
	store.OnFailover(func(loc Location) { failedOverTo <- loc })

	require.NoError(t, store.AppendTemperatures(ctx, map[string]float64{"living_room": 19.5}))

	assert.FileExists(t, store.scratchPath)
	assert.NoFileExists(t, store.primaryPath)
	select {
	case loc := <-failedOverTo:
		assert.Equal(t, Scratch, loc)
	case <-time.After(time.Second):
		t.Fatal("failover hook was not invoked")
	}

	// Reads are served from scratch while the primary is unreachable.
	row, err := store.LatestTemperatures(ctx)
	require.NoError(t, err)
	require.NotNil(t, row.Values["living_room"])
	assert.Equal(t, 19.5, *row.Values["living_room"])
}

func TestReconciliationOnRecovery(t *testing.T) {
	store, primaryDir := testStore(t)
	ctx := context.Background()
	now := fakeClock(store)

	scratchTimes := make([]time.Time, 0, 3)
	for _, on := range []bool{true, false, true} {
		scratchTimes = append(scratchTimes, *now)
		require.NoError(t, store.AppendHeaterState(ctx, on))
		*now = now.Add(10 * time.Minute)
	}
	require.NoError(t, store.AppendTemperatures(ctx, map[string]float64{"bedroom": 18.0}))
	require.FileExists(t, store.scratchPath)

	// Primary comes back; the first write after recovery triggers the
	// merge before the write itself lands in the primary.
	require.NoError(t, os.MkdirAll(primaryDir, 0o755))
	require.NoError(t, store.AppendHeaterState(ctx, false))

	assert.NoFileExists(t, store.scratchPath, "scratch is deleted after a successful merge")
	require.FileExists(t, store.primaryPath)

	entries, err := store.QueryHeaterLog(ctx, scratchTimes[0].Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 4, "three merged transitions plus the post-recovery write")
	assert.True(t, entries[0].On)
	assert.False(t, entries[1].On)
	assert.True(t, entries[2].On)
	assert.False(t, entries[3].On)
	for i, want := range scratchTimes {
		assert.Equal(t, want, entries[i].Timestamp.UTC(), "merged row %d keeps its original timestamp", i)
	}

	temps, err := store.QueryTemperatureLog(ctx, scratchTimes[0].Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, temps, 1)
	require.NotNil(t, temps[0].Values["bedroom"])
	assert.Equal(t, 18.0, *temps[0].Values["bedroom"])
}

func TestReconciliationDedupAgainstMergedTail(t *testing.T) {
	store, primaryDir := testStore(t)
	ctx := context.Background()
	now := fakeClock(store)

	require.NoError(t, store.AppendHeaterState(ctx, true))
	*now = now.Add(time.Minute)

	require.NoError(t, os.MkdirAll(primaryDir, 0o755))

	// After the merge the primary's most recent state is the merged ON;
	// appending ON again must be deduplicated.
	require.NoError(t, store.AppendHeaterState(ctx, true))

	entries, err := store.QueryHeaterLog(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestColdStartReadsUnavailable(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	_, err := store.LatestTemperatures(ctx)
	assert.True(t, storage.IsUnavailable(err))

	_, err = store.QueryTemperatureLog(ctx, time.Now().Add(-time.Hour), time.Now())
	assert.True(t, storage.IsUnavailable(err))

	_, err = store.QueryHeaterLog(ctx, time.Now().Add(-time.Hour), time.Now())
	assert.True(t, storage.IsUnavailable(err))
}

func TestSetpointLogKeepsEveryWrite(t *testing.T) {
	store, primaryDir := testStore(t)
	require.NoError(t, os.MkdirAll(primaryDir, 0o755))
	ctx := context.Background()

	sp := domain.Setpoints{OffPeak: 21.0, FullCost: 18.0}
	require.NoError(t, store.AppendSetpoints(ctx, sp))
	require.NoError(t, store.AppendSetpoints(ctx, sp))
	require.NoError(t, store.Close())

	primary, err := sqlite.Open(store.primaryPath, testSources)
	require.NoError(t, err)
	defer primary.Close()

	entries, err := primary.AllSetpoints(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "setpoint writes are never deduplicated")
}

func TestFailedReconciliationRetainsScratch(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	now := fakeClock(store)

	scratchTimes := make([]time.Time, 0, 2)
	for _, on := range []bool{true, false} {
		scratchTimes = append(scratchTimes, *now)
		require.NoError(t, store.AppendHeaterState(ctx, on))
		*now = now.Add(10 * time.Minute)
	}
	require.NoError(t, store.AppendTemperatures(ctx, map[string]float64{"living_room": 18.5}))
	require.FileExists(t, store.scratchPath)

	// The primary medium comes back, but its path is occupied by a
	// directory: every open of the primary fails, so the merge cannot
	// run and the write that triggered it errors out.
	require.NoError(t, os.MkdirAll(store.primaryPath, 0o755))
	*now = now.Add(10 * time.Minute)
	require.Error(t, store.AppendHeaterState(ctx, true))

	// The scratch file and every row in it survive the failed merge.
	require.FileExists(t, store.scratchPath)
	scratch, err := sqlite.Open(store.scratchPath, testSources)
	require.NoError(t, err)
	heaterRows, err := scratch.AllHeaterStates(ctx)
	require.NoError(t, err)
	tempRows, err := scratch.AllTemperatures(ctx)
	require.NoError(t, err)
	require.NoError(t, scratch.Close())
	require.Len(t, heaterRows, 2)
	assert.True(t, heaterRows[0].On)
	assert.False(t, heaterRows[1].On)
	require.Len(t, tempRows, 1)

	// Clear the obstruction; the next write retries the merge, which
	// succeeds and deletes the scratch file.
	require.NoError(t, os.Remove(store.primaryPath))
	require.NoError(t, store.AppendHeaterState(ctx, true))

	assert.NoFileExists(t, store.scratchPath)
	entries, err := store.QueryHeaterLog(ctx, scratchTimes[0].Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 3, "two merged transitions plus the retried write")
	assert.Equal(t, scratchTimes[0].UTC(), entries[0].Timestamp.UTC(), "merged rows keep their original timestamps")
	assert.True(t, entries[2].On)
}

func TestFailoverHookDoesNotBlockWrites(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	hookStarted := make(chan struct{})
	hookRelease := make(chan struct{})
	store.OnFailover(func(Location) {
		close(hookStarted)
		<-hookRelease
	})

	// A hook stuck on slow I/O must not hold up the write that
	// triggered the failover, nor any operation after it.
	require.NoError(t, store.AppendHeaterState(ctx, true))
	require.NoError(t, store.AppendTemperatures(ctx, map[string]float64{"bedroom": 17.5}))

	row, err := store.LatestTemperatures(ctx)
	require.NoError(t, err)
	require.NotNil(t, row.Values["bedroom"])

	select {
	case <-hookStarted:
	case <-time.After(time.Second):
		t.Fatal("failover hook was not invoked")
	}
	close(hookRelease)
}
