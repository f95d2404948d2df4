// Package plant wires configuration, ingest, scheduler, interlock and
// publishers into the runnable controller process.
package plant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avolkov/plant-controller/internal/config"
	"github.com/avolkov/plant-controller/internal/domain/plant"
	"github.com/avolkov/plant-controller/internal/eventlog"
	"github.com/avolkov/plant-controller/internal/export"
	"github.com/avolkov/plant-controller/internal/ingest"
	"github.com/avolkov/plant-controller/internal/logger"
	"github.com/avolkov/plant-controller/internal/metrics"
	"github.com/avolkov/plant-controller/internal/repository/snapshot"
	"github.com/avolkov/plant-controller/internal/scheduler"
)

// Options controls the plant-controller process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// Broker provides an optional MQTT broker override.
	Broker string
	// MetricsAddress provides an optional metrics listen address override.
	MetricsAddress string
	// Simulate forces the built-in plant model as the measurement source.
	Simulate bool
}

const metricsShutdownTimeout = 5 * time.Second

// Run assembles the controller and drives the scan loop until the
// context is cancelled. On shutdown the safe command set is published
// and the last process state is persisted.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "plant-controller")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.Broker != "" {
		settings.MQTT.Broker = opts.Broker
		settings.MQTT.Enabled = true
	}
	if opts.MetricsAddress != "" {
		settings.MetricsAddress = opts.MetricsAddress
	}
	if opts.Simulate {
		settings.MQTT.Enabled = false
	}

	source, sim, mqttSource, err := buildSource(ctx, settings)
	if err != nil {
		return err
	}
	if mqttSource != nil {
		defer mqttSource.Close()
	}

	publishers := []scheduler.Publisher{
		export.NewLogPublisher(uint64(settings.SnapshotEveryCycles)),
	}

	if sim != nil {
		publishers = append(publishers, simFeedback{sim})
	}

	var mqttPub *export.MQTTPublisher
	if settings.MQTT.Enabled {
		mqttPub, err = export.NewMQTTPublisher(
			settings.MQTT.Broker, settings.MQTT.ClientID,
			settings.MQTT.CommandsTopic, settings.MQTT.EventsTopic)
		if err != nil {
			return fmt.Errorf("mqtt publisher: %w", err)
		}
		defer mqttPub.Close()

		publishers = append(publishers, mqttPub)
	}

	var metricsServer *http.Server
	if settings.MetricsAddress != "" {
		collector := metrics.NewCollector()
		publishers = append(publishers, collector)
		metricsServer = serveMetrics(ctx, settings.MetricsAddress, collector)
	}

	repo := snapshot.NewFileRepository(settings.SnapshotFile)
	publishers = append(publishers, &snapshotPublisher{
		repo:        repo,
		everyCycles: uint64(settings.SnapshotEveryCycles),
	})

	events := eventlog.New(settings.EventLogCapacity)
	sched := scheduler.New(settings, source, events, publishers...)

	if restored, err := repo.Load(); err == nil {
		sched.Restore(restored)
		logger.InfoKV(ctx, "Restored persisted process state", "cycle_id", restored.CycleID)
	} else if !errors.Is(err, snapshot.ErrNotFound) {
		logger.WarnKV(ctx, "Ignoring unreadable process state snapshot", "error", err)
	}

	sched.Init(ctx)

	runErr := sched.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("scan loop: %w", runErr)
	}

	shutdown(ctx, sched, repo, mqttPub, metricsServer, settings)

	return nil
}

// buildSource selects the measurement source: the MQTT edge when
// enabled, the built-in simulator otherwise.
func buildSource(ctx context.Context, settings *config.Config) (ingest.Source, *ingest.SimSource, *ingest.MQTTSource, error) {
	if settings.MQTT.Enabled {
		src, err := ingest.NewMQTTSource(ctx,
			settings.MQTT.Broker, settings.MQTT.ClientID, settings.MQTT.MeasurementsTopic)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("mqtt source: %w", err)
		}

		logger.InfoKV(ctx, "Using MQTT measurement source",
			"broker", settings.MQTT.Broker, "topic", settings.MQTT.MeasurementsTopic)

		return src, nil, src, nil
	}

	sim := ingest.NewSimSource(settings.Scaling, settings.ScanPeriod.Seconds())
	logger.Info(ctx, "Using built-in plant simulator as measurement source")

	return sim, sim, nil, nil
}

// serveMetrics starts the prometheus endpoint in the background.
func serveMetrics(ctx context.Context, addr string, collector *metrics.Collector) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.InfoKV(ctx, "Metrics endpoint listening", "address", addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorKV(ctx, "Metrics endpoint failed", "error", err)
		}
	}()

	return srv
}

// shutdown publishes the safe command set, persists the final state and
// stops the metrics endpoint.
func shutdown(ctx context.Context, sched *scheduler.Scheduler, repo *snapshot.FileRepository,
	mqttPub *export.MQTTPublisher, metricsServer *http.Server, settings *config.Config,
) {
	logger.Info(ctx, "Shutting down, publishing safe command set")

	if mqttPub != nil {
		mqttPub.PublishCycle(ctx, scheduler.CycleSnapshot{
			State:    sched.State(),
			Commands: plant.SafeCommands(),
		})
	}

	if err := repo.Save(sched.State()); err != nil {
		logger.WarnKV(ctx, "Failed to persist final process state",
			"path", settings.SnapshotFile, "error", err)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()

		//nolint:errcheck // Nothing to do about a failed metrics shutdown.
		metricsServer.Shutdown(shutdownCtx)
	}
}

// simFeedback closes the development loop: published commands drive the
// simulated plant next cycle.
type simFeedback struct {
	sim *ingest.SimSource
}

func (f simFeedback) PublishCycle(_ context.Context, snap scheduler.CycleSnapshot) {
	f.sim.Feed(snap.Commands)
}

// snapshotPublisher persists the process state on a sub-period.
type snapshotPublisher struct {
	repo        *snapshot.FileRepository
	everyCycles uint64
}

func (p *snapshotPublisher) PublishCycle(ctx context.Context, snap scheduler.CycleSnapshot) {
	if p.everyCycles == 0 || snap.State.CycleID%p.everyCycles != 0 {
		return
	}

	if err := p.repo.Save(snap.State); err != nil {
		logger.WarnKV(ctx, "Failed to persist process state", "error", err)
	}
}
