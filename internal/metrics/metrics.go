// Package metrics exposes the latest readings and running statistics as
// Prometheus metrics. There is no HTTP listener; the registry is written
// to a node-exporter textfile instead.
package metrics

import (
	"sync"

	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"codeberg.org/mutker/xlnpwmon/internal/logger"
	"codeberg.org/mutker/xlnpwmon/internal/sensor"
	"codeberg.org/mutker/xlnpwmon/internal/stats"
	"codeberg.org/mutker/xlnpwmon/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "xlnpwmon"

const (
	ErrWriteTextfile = errors.ErrWriteTextfile
	ErrRegister      = errors.ErrorCode("metrics_register_failed")
)

// Source provides the data behind every scrape.
type Source interface {
	LatestData() (store.Snapshot, error)
	Statistics() (store.StatsSnapshot, error)
}

var channelLabels = []string{"channel", "kind", "group", "category"}

// Exporter is a prometheus.Collector reading from a Source on each
// collection.
type Exporter struct {
	src    Source
	logger logger.Logger

	mu           sync.Mutex
	scrapeErrors prometheus.Counter

	voltage  *prometheus.Desc
	current  *prometheus.Desc
	power    *prometheus.Desc
	online   *prometheus.Desc
	warning  *prometheus.Desc
	critical *prometheus.Desc
	tick     *prometheus.Desc
	samples  *prometheus.Desc
	powerMin *prometheus.Desc
	powerMax *prometheus.Desc
	powerAvg *prometheus.Desc
}

func NewExporter(src Source, log logger.Logger) *Exporter {
	if log == nil {
		log = logger.Nop()
	}

	desc := func(name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}

	return &Exporter{
		src:    src,
		logger: log.With("metrics"),
		scrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_errors_total",
			Help:      "Collections that could not read the monitor.",
		}),
		voltage:  desc("voltage_volts", "Latest bus voltage.", channelLabels),
		current:  desc("current_amperes", "Latest current.", channelLabels),
		power:    desc("power_watts", "Latest power.", channelLabels),
		online:   desc("online", "1 when the channel produced a valid reading.", channelLabels),
		warning:  desc("power_warning_watts", "Power warning threshold.", channelLabels),
		critical: desc("power_critical_watts", "Power critical threshold.", channelLabels),
		tick:     desc("tick", "Sampling ticks published since start.", nil),
		samples:  desc("samples", "Valid samples folded into the statistics.", channelLabels),
		powerMin: desc("power_min_watts", "Lowest power since the last reset.", channelLabels),
		powerMax: desc("power_max_watts", "Highest power since the last reset.", channelLabels),
		powerAvg: desc("power_avg_watts", "Mean power since the last reset.", channelLabels),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		e.voltage, e.current, e.power, e.online, e.warning, e.critical,
		e.tick, e.samples, e.powerMin, e.powerMax, e.powerAvg,
	} {
		ch <- d
	}
	e.scrapeErrors.Describe(ch)
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.scrapeErrors.Collect(ch)

	snap, err := e.src.LatestData()
	if err != nil {
		e.scrapeErrors.Inc()
		e.logger.Warn().Err(err).Msg("Failed to read latest data")
		return
	}

	ch <- prometheus.MustNewConstMetric(e.tick, prometheus.GaugeValue, float64(snap.Total().Tick))

	for _, r := range snap.Sensors {
		e.collectReading(ch, r, "sensor")
	}
	for _, r := range snap.Totals {
		e.collectReading(ch, r, "total")
	}

	st, err := e.src.Statistics()
	if err != nil {
		e.scrapeErrors.Inc()
		e.logger.Warn().Err(err).Msg("Failed to read statistics")
		return
	}

	// Statistics carry only names; categories and groups come from the
	// readings at the same index.
	for i, c := range st.Sensors {
		if i < len(snap.Sensors) {
			e.collectStats(ch, c, labels(snap.Sensors[i], "sensor"))
		}
	}
	for i, c := range st.Totals {
		if i < len(snap.Totals) {
			e.collectStats(ch, c, labels(snap.Totals[i], "total"))
		}
	}
}

func labels(r sensor.Reading, kind string) []string {
	return []string{r.Name, kind, r.Group, string(r.Category)}
}

func (e *Exporter) collectReading(ch chan<- prometheus.Metric, r sensor.Reading, kind string) {
	lv := labels(r, kind)

	online := 0.0
	if r.Online {
		online = 1
	}

	ch <- prometheus.MustNewConstMetric(e.voltage, prometheus.GaugeValue, r.Voltage, lv...)
	ch <- prometheus.MustNewConstMetric(e.current, prometheus.GaugeValue, r.Current, lv...)
	ch <- prometheus.MustNewConstMetric(e.power, prometheus.GaugeValue, r.Power, lv...)
	ch <- prometheus.MustNewConstMetric(e.online, prometheus.GaugeValue, online, lv...)
	ch <- prometheus.MustNewConstMetric(e.warning, prometheus.GaugeValue, r.WarningThreshold, lv...)
	ch <- prometheus.MustNewConstMetric(e.critical, prometheus.GaugeValue, r.CriticalThreshold, lv...)
}

func (e *Exporter) collectStats(ch chan<- prometheus.Metric, c stats.ChannelStats, lv []string) {
	ch <- prometheus.MustNewConstMetric(e.samples, prometheus.GaugeValue, float64(c.Power.Count), lv...)
	if c.Power.Count == 0 {
		return
	}

	ch <- prometheus.MustNewConstMetric(e.powerMin, prometheus.GaugeValue, c.Power.Min, lv...)
	ch <- prometheus.MustNewConstMetric(e.powerMax, prometheus.GaugeValue, c.Power.Max, lv...)
	ch <- prometheus.MustNewConstMetric(e.powerAvg, prometheus.GaugeValue, c.Power.Avg, lv...)
}

// NewRegistry returns a registry holding only e.
func NewRegistry(e *Exporter) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(e); err != nil {
		return nil, errors.New().Wrap(ErrRegister, err)
	}

	return reg, nil
}

// WriteTextfile atomically replaces path with the current metrics of g in
// the text exposition format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return errors.New().WithData(ErrWriteTextfile, struct {
			Path  string
			Error string
		}{
			Path:  path,
			Error: err.Error(),
		})
	}

	return nil
}
