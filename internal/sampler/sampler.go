// Package sampler runs the background polling loop that reads every
// channel and publishes the results to a store.
package sampler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"codeberg.org/mutker/xlnpwmon/internal/logger"
	"codeberg.org/mutker/xlnpwmon/internal/sensor"
	"codeberg.org/mutker/xlnpwmon/internal/store"
)

// DefaultFrequency is the sampling rate in Hz used when none is set.
const DefaultFrequency = 1

// Sampler owns one polling goroutine at a time.
type Sampler struct {
	src         sensor.Source
	descs       []sensor.Descriptor
	store       *store.Store
	readTimeout time.Duration
	log         logger.Logger

	frequency atomic.Int64
	running   atomic.Bool

	// lifecycle serialises Start and Stop, including the join.
	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithFrequency sets the initial sampling rate. Values below 1 are
// ignored.
func WithFrequency(hz int) Option {
	return func(s *Sampler) {
		if hz > 0 {
			s.frequency.Store(int64(hz))
		}
	}
}

// WithReadTimeout bounds each channel read. A zero duration disables the
// bound.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Sampler) {
		s.readTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Sampler) {
		s.log = log
	}
}

// New creates a stopped Sampler reading descs from src into st.
func New(src sensor.Source, descs []sensor.Descriptor, st *store.Store, opts ...Option) *Sampler {
	s := &Sampler{
		src:   src,
		descs: append([]sensor.Descriptor(nil), descs...),
		store: st,
		log:   logger.Nop(),
	}
	s.frequency.Store(DefaultFrequency)

	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("sampler")

	return s
}

// SetFrequency changes the sampling rate. A running loop picks it up on
// its next wait.
func (s *Sampler) SetFrequency(hz int) error {
	if hz <= 0 {
		return errors.New().WithData(errors.ErrInvalidFrequency, hz)
	}
	s.frequency.Store(int64(hz))

	return nil
}

// Frequency returns the sampling rate in Hz.
func (s *Sampler) Frequency() int {
	return int(s.frequency.Load())
}

func (s *Sampler) period() time.Duration {
	return time.Second / time.Duration(s.frequency.Load())
}

// IsRunning reports whether the polling goroutine is active.
func (s *Sampler) IsRunning() bool {
	return s.running.Load()
}

// Start launches the polling goroutine. The first tick runs immediately.
func (s *Sampler) Start() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.running.Load() {
		return errors.New().New(errors.ErrAlreadyRunning)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go s.run(ctx, s.done)

	s.log.Info().Int("frequency", s.Frequency()).Int("sensors", len(s.descs)).Msg("Sampling started")

	return nil
}

// Stop cancels the polling goroutine and waits for it to exit. It must not
// be called from the polling goroutine.
func (s *Sampler) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.running.Load() {
		return errors.New().New(errors.ErrNotRunning)
	}

	s.cancel()
	<-s.done

	s.cancel = nil
	s.done = nil
	s.running.Store(false)

	s.log.Info().Uint64("ticks", s.store.Tick()).Msg("Sampling stopped")

	return nil
}

func (s *Sampler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		s.Sample()

		timer := time.NewTimer(s.period())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Sample performs a single tick: read every channel without holding the
// store lock, then publish the batch.
func (s *Sampler) Sample() {
	start := time.Now()

	readings := make([]sensor.Reading, len(s.descs))
	for i, d := range s.descs {
		readings[i] = s.read(d)
	}

	s.store.Publish(readings)

	s.log.Debug().
		Uint64("tick", s.store.Tick()).
		Dur("elapsed", time.Since(start)).
		Msg("Sample published")
}

func (s *Sampler) read(d sensor.Descriptor) sensor.Reading {
	if s.readTimeout <= 0 {
		return s.src.Read(d)
	}

	result := make(chan sensor.Reading, 1)
	go func() {
		result <- s.src.Read(d)
	}()

	timer := time.NewTimer(s.readTimeout)
	defer timer.Stop()

	select {
	case r := <-result:
		return r
	case <-timer.C:
		s.log.Warn().Str("sensor", d.Name).Dur("timeout", s.readTimeout).Msg("Sensor read timed out")
		return sensor.Offline(d, "timeout")
	}
}
