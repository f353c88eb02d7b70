// Package telemetry records sampled readings to a local sqlite database
// for offline analysis. The database is write-only from the monitor's
// point of view; nothing is ever restored from it.
package telemetry

import (
	"context"
	"time"

	"codeberg.org/mutker/xlnpwmon/internal/store"
)

// Collector defines the core domain interface
type Collector interface {
	Record(ctx context.Context, snapshot store.Snapshot) error
	Close() error
}

// Repository defines the interface for telemetry data storage
type Repository interface {
	Record(rows []Row) error
	Close() error
}

// Kind tells real channels from synthetic totals.
type Kind string

const (
	KindSensor Kind = "sensor"
	KindTotal  Kind = "total"
)

// Row is one channel's reading at one tick.
type Row struct {
	Timestamp time.Time
	Tick      uint64
	Channel   string
	Kind      Kind
	Category  string
	Group     string
	Voltage   float64
	Current   float64
	Power     float64
	Online    bool
	Status    string
}

// Rows flattens a snapshot into one Row per sensor and total.
func Rows(snapshot store.Snapshot) []Row {
	rows := make([]Row, 0, len(snapshot.Sensors)+len(snapshot.Totals))
	for _, r := range snapshot.Sensors {
		rows = append(rows, rowFrom(r, KindSensor))
	}
	for _, r := range snapshot.Totals {
		rows = append(rows, rowFrom(r, KindTotal))
	}

	return rows
}
