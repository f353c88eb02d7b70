package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/xlnpwmon/internal/config"
	"codeberg.org/mutker/xlnpwmon/internal/errors"
	"codeberg.org/mutker/xlnpwmon/internal/logger"
	"codeberg.org/mutker/xlnpwmon/internal/metrics"
	"codeberg.org/mutker/xlnpwmon/internal/telemetry"
	"codeberg.org/mutker/xlnpwmon/pkg/xlnpwmon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
)

// outputs bundles the optional per-report sinks.
type outputs struct {
	telemetry telemetry.Collector
	registry  *prometheus.Registry
	textfile  string
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	level, err := logger.ParseLevel(cfg.GetLogLevel().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		return 1
	}
	logger.Init(level, logger.IsService())
	log := logger.Default()
	log.Debug().Msg("Config loaded")

	mon, err := xlnpwmon.New(
		xlnpwmon.WithConfig(cfg.GetSourceConfig()),
		xlnpwmon.WithFrequency(cfg.GetFrequency()),
		xlnpwmon.WithReadTimeout(cfg.GetReadTimeout()),
		xlnpwmon.WithLogger(log),
	)
	if err != nil {
		log.Error().Err(err).Str("error_code", string(errors.CodeOf(err))).Msg("Failed to initialize monitor")
		return 1
	}
	defer func() {
		if err := mon.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close monitor")
		}
	}()

	out, err := newOutputs(cfg, mon, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize outputs")
		return 1
	}
	defer func() {
		if err := out.telemetry.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close telemetry")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if d := cfg.GetDuration(); d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	go handleSignals(ctx, cancel, log)

	if err := mon.Start(); err != nil {
		log.Error().Err(err).Msg("Failed to start sampling")
		return 1
	}

	loop(ctx, cfg.GetInterval(), mon, out, log)

	if err := mon.Stop(); err != nil {
		log.Warn().Err(err).Msg("Failed to stop sampling")
	}
	logSummary(mon, log)
	report(context.Background(), mon, out, log)
	log.Info().Msg("Exiting...")

	return 0
}

func newOutputs(cfg config.Provider, mon *xlnpwmon.Monitor, log logger.Logger) (*outputs, error) {
	tcfg := telemetry.DefaultConfig()
	tcfg.Enabled = cfg.IsTelemetryEnabled()
	tcfg.DBPath = cfg.GetTelemetryDBPath()
	tcfg.BatchSize = cfg.GetTelemetryBatchSize()

	collector, err := telemetry.NewService(tcfg, log)
	if err != nil {
		return nil, err
	}

	out := &outputs{telemetry: collector, textfile: cfg.GetTextfilePath()}
	if out.textfile != "" {
		out.registry, err = metrics.NewRegistry(metrics.NewExporter(mon, log))
		if err != nil {
			collector.Close()
			return nil, err
		}
	}

	return out, nil
}

func loop(ctx context.Context, interval time.Duration, mon *xlnpwmon.Monitor, out *outputs, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report(ctx, mon, out, log)
		}
	}
}

func handleSignals(ctx context.Context, cancel context.CancelFunc, log logger.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		log.Info().Msg("Received termination signal.")
		cancel()
	case <-ctx.Done():
	}
}

// report logs the latest data and hands it to the configured outputs.
func report(ctx context.Context, mon *xlnpwmon.Monitor, out *outputs, log logger.Logger) {
	snap, err := mon.LatestData()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read latest data")
		return
	}

	total := snap.Total()
	log.Info().
		Uint64("tick", total.Tick).
		Float64("voltage", total.Voltage).
		Float64("current", total.Current).
		Float64("power", total.Power).
		Bool("online", total.Online).
		Str("status", total.Status).
		Msg(total.Name)

	for _, r := range snap.Sensors {
		log.Info().
			Str("category", string(r.Category)).
			Str("group", r.Group).
			Float64("voltage", r.Voltage).
			Float64("current", r.Current).
			Float64("power", r.Power).
			Bool("online", r.Online).
			Str("status", r.Status).
			Msg(r.Name)
	}

	if err := out.telemetry.Record(ctx, snap); err != nil {
		log.Warn().Err(err).Msg("Failed to record telemetry")
	}

	if out.registry != nil {
		if err := metrics.WriteTextfile(out.textfile, out.registry); err != nil {
			log.Warn().Err(err).Str("path", out.textfile).Msg("Failed to write metrics textfile")
		}
	}
}

func logSummary(mon *xlnpwmon.Monitor, log logger.Logger) {
	st, err := mon.Statistics()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read statistics")
		return
	}

	for _, c := range append(st.Sensors, st.Totals...) {
		logStats(log, c)
	}

	summary, err := mon.PowerSummaryStats()
	switch {
	case err == nil:
		log.Info().
			Float64("ps_avg_power", summary.PS.Power.Avg).
			Float64("pl_avg_power", summary.PL.Power.Avg).
			Float64("total_avg_power", summary.Total.Power.Avg).
			Float64("total_max_power", summary.Total.Power.Max).
			Msg("Power summary")
	case errors.HasCode(err, errors.ErrNotSupported):
		log.Debug().Msg("No PS/PL groups; power summary skipped")
	default:
		log.Warn().Err(err).Msg("Failed to read power summary")
	}
}

func logStats(log logger.Logger, c xlnpwmon.ChannelStats) {
	log.Info().
		Uint64("samples", c.Power.Count).
		Float64("voltage_min", c.Voltage.Min).
		Float64("voltage_max", c.Voltage.Max).
		Float64("voltage_avg", c.Voltage.Avg).
		Float64("current_min", c.Current.Min).
		Float64("current_max", c.Current.Max).
		Float64("current_avg", c.Current.Avg).
		Float64("power_min", c.Power.Min).
		Float64("power_max", c.Power.Max).
		Float64("power_avg", c.Power.Avg).
		Msg(c.Name + " statistics")
}
