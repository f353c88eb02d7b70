// Package xlnpwmon samples board power sensors in the background and
// exposes the latest readings and running statistics.
//
// A Monitor discovers its channels once in New and then samples them at a
// configurable frequency between Start and Stop. All accessors return
// copies and are safe for concurrent use.
package xlnpwmon

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"codeberg.org/mutker/xlnpwmon/internal/logger"
	"codeberg.org/mutker/xlnpwmon/internal/sampler"
	"codeberg.org/mutker/xlnpwmon/internal/sensor"
	"codeberg.org/mutker/xlnpwmon/internal/store"
)

// DefaultFrequency is the sampling rate of a new Monitor in Hz.
const DefaultFrequency = sampler.DefaultFrequency

type options struct {
	config      sensor.Config
	source      sensor.Source
	frequency   int
	readTimeout time.Duration
	log         logger.Logger
}

// Option configures New.
type Option func(*options)

// WithConfig selects the discovery strategy and roots.
func WithConfig(cfg SourceConfig) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithSource replaces discovery with src. WithConfig is ignored.
func WithSource(src Source) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithFrequency sets the initial sampling rate in Hz.
func WithFrequency(hz int) Option {
	return func(o *options) {
		o.frequency = hz
	}
}

// WithReadTimeout bounds each channel read. Zero disables the bound.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readTimeout = d
	}
}

// WithLogger sets the logger used by the Monitor and its components.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// Monitor is a handle on one set of discovered channels.
type Monitor struct {
	// mu guards lifecycle transitions. It is never held across the
	// sampler join.
	mu     sync.Mutex
	closed atomic.Bool

	src     sensor.Source
	store   *store.Store
	sampler *sampler.Sampler
	log     logger.Logger
}

// New discovers channels and returns a Monitor ready to sample. No
// Monitor is returned on error.
func New(opts ...Option) (*Monitor, error) {
	errFactory := errors.New()

	o := options{
		config:    sensor.DefaultConfig(),
		frequency: DefaultFrequency,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.frequency <= 0 {
		return nil, errFactory.WithData(errors.ErrInvalidFrequency, o.frequency)
	}

	log := o.log.With("monitor")

	src := o.source
	if src == nil {
		var err error
		src, err = sensor.New(o.config, o.log)
		if err != nil {
			return nil, err
		}
	}

	descs, err := src.Discover()
	if err != nil {
		closeSource(src, log)
		if errors.HasCode(err, errors.ErrNoSensors) || errors.HasCode(err, errors.ErrInitFailed) {
			return nil, err
		}
		return nil, errFactory.Wrap(errors.ErrInitFailed, err)
	}
	if len(descs) == 0 {
		closeSource(src, log)
		return nil, errFactory.New(errors.ErrNoSensors)
	}
	descs = sensor.UniqueNames(descs)

	var policy store.Policy
	if p, ok := src.(sensor.PrimaryRailer); ok {
		policy.Primary = p.PrimaryRail()
	}

	st := store.New(descs, policy)
	m := &Monitor{
		src:   src,
		store: st,
		sampler: sampler.New(src, descs, st,
			sampler.WithFrequency(o.frequency),
			sampler.WithReadTimeout(o.readTimeout),
			sampler.WithLogger(o.log),
		),
		log: log,
	}

	log.Info().
		Str("backend", src.Name()).
		Int("sensors", st.SensorCount()).
		Strs("groups", st.Groups()).
		Msg("Monitor initialized")

	return m, nil
}

func closeSource(src sensor.Source, log logger.Logger) {
	c, ok := src.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close sensor source")
	}
}

func (m *Monitor) check() error {
	if m == nil || m.closed.Load() {
		return errors.New().New(errors.ErrNotInitialized)
	}

	return nil
}

// SetFrequency changes the sampling rate. It takes effect on the next
// wait of a running sampler.
func (m *Monitor) SetFrequency(hz int) error {
	if err := m.check(); err != nil {
		return err
	}

	return m.sampler.SetFrequency(hz)
}

// Frequency returns the sampling rate in Hz.
func (m *Monitor) Frequency() (int, error) {
	if err := m.check(); err != nil {
		return 0, err
	}

	return m.sampler.Frequency(), nil
}

// Start begins background sampling.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(); err != nil {
		return err
	}

	return m.sampler.Start()
}

// Stop ends background sampling and waits for the sampler to exit. No
// sample is published after Stop returns.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if err := m.check(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	return m.sampler.Stop()
}

// IsSampling reports whether background sampling is active.
func (m *Monitor) IsSampling() (bool, error) {
	if err := m.check(); err != nil {
		return false, err
	}

	return m.sampler.IsRunning(), nil
}

// State returns the lifecycle state.
func (m *Monitor) State() State {
	switch {
	case m == nil:
		return StateUninitialized
	case m.closed.Load():
		return StateTerminated
	case m.sampler.IsRunning():
		return StateSampling
	default:
		return StateReady
	}
}

// LatestData returns the readings of the most recent tick.
func (m *Monitor) LatestData() (Snapshot, error) {
	if err := m.check(); err != nil {
		return Snapshot{}, err
	}

	return m.store.Snapshot(), nil
}

// Statistics returns the running statistics.
func (m *Monitor) Statistics() (StatsSnapshot, error) {
	if err := m.check(); err != nil {
		return StatsSnapshot{}, err
	}

	return m.store.StatsSnapshot(), nil
}

// ResetStatistics zeroes every statistic. Sampling is not interrupted.
func (m *Monitor) ResetStatistics() error {
	if err := m.check(); err != nil {
		return err
	}

	m.store.ResetStats()
	m.log.Debug().Msg("Statistics reset")

	return nil
}

// SensorCount returns the number of discovered channels, totals excluded.
func (m *Monitor) SensorCount() (int, error) {
	if err := m.check(); err != nil {
		return 0, err
	}

	return m.store.SensorCount(), nil
}

// Descriptors returns the discovered channels in discovery order.
func (m *Monitor) Descriptors() ([]Descriptor, error) {
	if err := m.check(); err != nil {
		return nil, err
	}

	return m.store.Descriptors(), nil
}

// Backend returns the name of the active discovery strategy.
func (m *Monitor) Backend() (string, error) {
	if err := m.check(); err != nil {
		return "", err
	}

	return m.src.Name(), nil
}

// supportsSummary requires every channel to belong to ps or pl, with both
// present, so that the whole-system total equals PS + PL.
func (m *Monitor) supportsSummary() error {
	var ps, pl bool
	for _, d := range m.store.Descriptors() {
		switch d.Group {
		case sensor.GroupPS:
			ps = true
		case sensor.GroupPL:
			pl = true
		default:
			return errors.New().WithData(errors.ErrNotSupported, struct {
				Backend string
				Channel string
				Group   string
			}{
				Backend: m.src.Name(),
				Channel: d.Name,
				Group:   d.Group,
			})
		}
	}
	if !ps || !pl {
		return errors.New().WithData(errors.ErrNotSupported, m.src.Name())
	}

	return nil
}

// PowerSummary returns the latest PS, PL and whole-board totals. It fails
// with ErrNotSupported unless every channel is grouped into processing
// system or programmable logic.
func (m *Monitor) PowerSummary() (PowerSummary, error) {
	if err := m.check(); err != nil {
		return PowerSummary{}, err
	}
	if err := m.supportsSummary(); err != nil {
		return PowerSummary{}, err
	}

	snap := m.store.Snapshot()
	ps, _ := snap.Group(sensor.GroupPS)
	pl, _ := snap.Group(sensor.GroupPL)

	return PowerSummary{PS: ps, PL: pl, Total: snap.Total()}, nil
}

// PowerSummaryStats is PowerSummary for the running statistics.
func (m *Monitor) PowerSummaryStats() (PowerSummaryStats, error) {
	if err := m.check(); err != nil {
		return PowerSummaryStats{}, err
	}
	if err := m.supportsSummary(); err != nil {
		return PowerSummaryStats{}, err
	}

	st := m.store.StatsSnapshot()
	ps, _ := st.Group(sensor.GroupPS)
	pl, _ := st.Group(sensor.GroupPL)

	return PowerSummaryStats{PS: ps, PL: pl, Total: st.Total()}, nil
}

// Close stops sampling if needed and releases the sensor source. Every
// later call, including a second Close, returns ErrNotInitialized.
func (m *Monitor) Close() error {
	if m == nil {
		return errors.New().New(errors.ErrNotInitialized)
	}

	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		return errors.New().New(errors.ErrNotInitialized)
	}
	m.closed.Store(true)
	m.mu.Unlock()

	if m.sampler.IsRunning() {
		if err := m.sampler.Stop(); err != nil && !errors.HasCode(err, errors.ErrNotRunning) {
			return err
		}
	}

	closeSource(m.src, m.log)
	m.log.Info().Msg("Monitor closed")

	return nil
}
