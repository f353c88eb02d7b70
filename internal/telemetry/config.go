package telemetry

import (
	"path/filepath"
	"time"

	"codeberg.org/mutker/xlnpwmon/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/xlnpwmon/telemetry.db"
	defaultBatchSize    = 50
	defaultBatchTimeout = 5 * time.Second
)

type Config struct {
	Enabled bool
	DBPath  string
	// BackupDir receives a copy of the database before an incompatible
	// schema is replaced. Defaults to a backups directory next to DBPath.
	BackupDir string
	// BatchSize is the number of rows buffered before a flush.
	BatchSize int
	// BatchTimeout flushes a partial batch periodically. Zero disables the
	// periodic flush.
	BatchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		DBPath:       defaultDBPath,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Enabled:      false, // Disabled by default
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if telemetry is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.Enabled && c.BatchSize <= 0 {
		return errFactory.WithData(ErrInvalidConfig, c.BatchSize)
	}
	return nil
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(filepath.Dir(c.DBPath), "backups")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
