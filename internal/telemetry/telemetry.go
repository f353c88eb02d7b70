package telemetry

import (
	"context"
	"sync"

	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"codeberg.org/mutker/xlnpwmon/internal/logger"
	"codeberg.org/mutker/xlnpwmon/internal/sensor"
	"codeberg.org/mutker/xlnpwmon/internal/store"
)

type service struct {
	repo     Repository
	mu       sync.Mutex
	lastTick uint64
}

type noopCollector struct{}

// NewService returns a Collector writing to sqlite, or a no-op Collector
// when telemetry is disabled.
func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if log == nil {
		log = logger.Nop()
	}
	log = log.With("telemetry")

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Telemetry disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return &service{repo: repo}, nil
}

// Record stores every reading of snapshot. A snapshot from a tick that was
// already recorded, or from before the first tick, is skipped.
func (s *service) Record(ctx context.Context, snapshot store.Snapshot) error {
	errFactory := errors.New()

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tick := snapshot.Total().Tick
	if tick == 0 || tick == s.lastTick {
		return nil
	}

	if err := s.repo.Record(Rows(snapshot)); err != nil {
		return errFactory.Wrap(ErrRecordFailed, err)
	}
	s.lastTick = tick

	return nil
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}

func (*noopCollector) Record(_ context.Context, _ store.Snapshot) error {
	return nil
}

func (*noopCollector) Close() error {
	return nil
}

func rowFrom(r sensor.Reading, kind Kind) Row {
	return Row{
		Timestamp: r.Timestamp,
		Tick:      r.Tick,
		Channel:   r.Name,
		Kind:      kind,
		Category:  string(r.Category),
		Group:     r.Group,
		Voltage:   r.Voltage,
		Current:   r.Current,
		Power:     r.Power,
		Online:    r.Online,
		Status:    r.Status,
	}
}
