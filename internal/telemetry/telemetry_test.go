package telemetry

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"codeberg.org/mutker/xlnpwmon/internal/logger"
	"codeberg.org/mutker/xlnpwmon/internal/sensor"
	"codeberg.org/mutker/xlnpwmon/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()

	dir := t.TempDir()
	return Config{
		Enabled:   true,
		DBPath:    filepath.Join(dir, "telemetry.db"),
		BackupDir: filepath.Join(dir, "backups"),
		BatchSize: 100,
	}
}

func publishedStore(t *testing.T) (*store.Store, []sensor.Descriptor) {
	t.Helper()

	descs := []sensor.Descriptor{
		{Name: "CPU", RawName: "CPU", Category: sensor.CategoryI2C},
		{Name: "GPU", RawName: "GPU", Category: sensor.CategoryI2C},
	}
	st := store.New(descs, store.Policy{})
	publish(st, descs)

	return st, descs
}

func publish(st *store.Store, descs []sensor.Descriptor) {
	readings := make([]sensor.Reading, len(descs))
	for i, d := range descs {
		readings[i] = sensor.Reading{
			Name: d.Name, Category: d.Category,
			Voltage: 5, Current: 1, Power: 5,
			Online: true, Status: sensor.StatusNormal,
		}
	}
	st.Publish(readings)
}

func countRows(t *testing.T, path, where string) int {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM samples "+where).Scan(&n))

	return n
}

func TestRows(t *testing.T) {
	st, _ := publishedStore(t)

	rows := Rows(st.Snapshot())
	require.Len(t, rows, 3)
	assert.Equal(t, "CPU", rows[0].Channel)
	assert.Equal(t, KindSensor, rows[0].Kind)
	assert.Equal(t, "I2C", rows[0].Category)
	assert.Equal(t, store.TotalName, rows[2].Channel)
	assert.Equal(t, KindTotal, rows[2].Kind)
	assert.InDelta(t, 10.0, rows[2].Power, 1e-9)
	assert.Equal(t, uint64(1), rows[2].Tick)
}

func TestServiceRecordsSnapshots(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewService(cfg, logger.Nop())
	require.NoError(t, err)

	st, descs := publishedStore(t)
	require.NoError(t, c.Record(context.Background(), st.Snapshot()))
	// Same tick again is skipped.
	require.NoError(t, c.Record(context.Background(), st.Snapshot()))

	publish(st, descs)
	require.NoError(t, c.Record(context.Background(), st.Snapshot()))
	require.NoError(t, c.Close())

	assert.Equal(t, 6, countRows(t, cfg.DBPath, ""))
	assert.Equal(t, 2, countRows(t, cfg.DBPath, "WHERE kind = 'total'"))
	assert.Equal(t, 2, countRows(t, cfg.DBPath, "WHERE channel = 'CPU' AND online = 1"))
}

func TestServiceSkipsUnpublishedSnapshot(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewService(cfg, logger.Nop())
	require.NoError(t, err)

	st := store.New([]sensor.Descriptor{{Name: "CPU", RawName: "CPU"}}, store.Policy{})
	require.NoError(t, c.Record(context.Background(), st.Snapshot()))
	require.NoError(t, c.Close())

	assert.Zero(t, countRows(t, cfg.DBPath, ""))
}

func TestServiceRecordCancelledContext(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewService(cfg, logger.Nop())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st, _ := publishedStore(t)
	err = c.Record(ctx, st.Snapshot())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrOperationTimeout))
}

func TestRepositoryPeriodicFlush(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchTimeout = 20 * time.Millisecond

	repo, err := NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	defer repo.Close()

	st, _ := publishedStore(t)
	require.NoError(t, repo.Record(Rows(st.Snapshot())))

	assert.Eventually(t, func() bool {
		return countRows(t, cfg.DBPath, "") == 3
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRepositoryRecordAfterClose(t *testing.T) {
	repo, err := NewRepository(testConfig(t), logger.Nop())
	require.NoError(t, err)
	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close())

	err = repo.Record([]Row{{Channel: "CPU", Kind: KindSensor}})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrClosed))
}

func TestSchemaMismatchCreatesBackup(t *testing.T) {
	cfg := testConfig(t)

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions (version, applied_at) VALUES (99, datetime('now'));`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	repo, err := NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	backups, err := filepath.Glob(filepath.Join(cfg.BackupDir, "telemetry_v99_*.db"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	db, err = sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestDisabledUsesNoop(t *testing.T) {
	c, err := NewService(DefaultConfig(), nil)
	require.NoError(t, err)
	assert.IsType(t, &noopCollector{}, c)

	st, _ := publishedStore(t)
	assert.NoError(t, c.Record(context.Background(), st.Snapshot()))
	assert.NoError(t, c.Close())
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBPath = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidDBPath))

	cfg = testConfig(t)
	cfg.BatchSize = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidConfig))

	assert.NoError(t, DefaultConfig().Validate())
}
