// Package metrics exposes the controller's process values and scan-loop
// health as prometheus collectors.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avolkov/plant-controller/internal/scheduler"
)

const namespace = "plant"

// Collector turns every cycle snapshot into gauge updates. It implements
// scheduler.Publisher.
type Collector struct {
	registry *prometheus.Registry

	cycleID       prometheus.Gauge
	scanDuration  prometheus.Histogram
	systemState   prometheus.Gauge
	operatingMode prometheus.Gauge
	alarmsActive  prometheus.Gauge
	compliant     prometheus.Gauge

	measurements *prometheus.GaugeVec
	actuators    *prometheus.GaugeVec
	eventsTotal  *prometheus.CounterVec
}

// NewCollector registers the plant collectors on a private registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cycleID: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_cycle_id",
			Help:      "Identifier of the last completed scan cycle.",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time spent executing one scan cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		systemState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_state",
			Help:      "Aggregate system state (0=init 1=running 2=warning 3=alarm 4=emergency).",
		}),
		operatingMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operating_mode",
			Help:      "Operating mode (0=stopped 1=auto 2=storm 3=maintenance).",
		}),
		alarmsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alarms_active",
			Help:      "1 while any alarm flag is raised.",
		}),
		compliant: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "discharge_compliant",
			Help:      "1 while discharge is closed or within every registered limit.",
		}),
		measurements: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "measurement",
			Help:      "Scaled process measurements in engineering units.",
		}, []string{"channel"}),
		actuators: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "actuator",
			Help:      "Published actuator commands (bools as 0/1, speeds and rates as-is).",
		}, []string{"output"}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarm_events_total",
			Help:      "Alarm events recorded since start, by condition code.",
		}, []string{"code"}),
	}

	c.registry.MustRegister(
		c.cycleID, c.scanDuration, c.systemState, c.operatingMode,
		c.alarmsActive, c.compliant, c.measurements, c.actuators, c.eventsTotal,
	)

	return c
}

// Handler returns the HTTP handler serving the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// PublishCycle implements scheduler.Publisher.
func (c *Collector) PublishCycle(_ context.Context, snap scheduler.CycleSnapshot) {
	ps := snap.State

	c.cycleID.Set(float64(ps.CycleID))
	c.scanDuration.Observe(snap.Elapsed.Seconds())
	c.systemState.Set(float64(ps.State))
	c.operatingMode.Set(float64(ps.Mode))
	c.alarmsActive.Set(boolGauge(ps.Alarms.Any()))
	c.compliant.Set(boolGauge(ps.Compliant))

	for _, evt := range snap.Events {
		c.eventsTotal.WithLabelValues(string(evt.Code)).Inc()
	}

	m := ps.Measurements
	c.measurements.WithLabelValues("influent_flow").Set(m.InfluentFlow)
	c.measurements.WithLabelValues("intake_level").Set(m.IntakeLevel)
	c.measurements.WithLabelValues("basin_level").Set(m.BasinLevel)
	c.measurements.WithLabelValues("ph").Set(m.PH)
	c.measurements.WithLabelValues("dissolved_oxygen").Set(m.DissolvedOxygen)
	c.measurements.WithLabelValues("turbidity").Set(m.Turbidity)
	c.measurements.WithLabelValues("chlorine_residual").Set(m.ChlorineResidual)
	c.measurements.WithLabelValues("temperature").Set(m.Temperature)
	c.measurements.WithLabelValues("filter_dp").Set(m.FilterDP)
	c.measurements.WithLabelValues("supply_level").Set(m.SupplyLevel)

	cmds := snap.Commands
	c.actuators.WithLabelValues("intake_pump_run").Set(boolGauge(cmds.IntakePumpRun))
	c.actuators.WithLabelValues("intake_pump_speed").Set(cmds.IntakePumpSpeed)
	c.actuators.WithLabelValues("blower_run").Set(boolGauge(cmds.BlowerRun))
	c.actuators.WithLabelValues("blower_speed").Set(cmds.BlowerSpeed)
	c.actuators.WithLabelValues("discharge_valve_open").Set(boolGauge(cmds.DischargeValveOpen))
	c.actuators.WithLabelValues("acid_dose_rate").Set(cmds.AcidDoseRate)
	c.actuators.WithLabelValues("base_dose_rate").Set(cmds.BaseDoseRate)
	c.actuators.WithLabelValues("disinfectant_dose_rate").Set(cmds.DisinfectantDoseRate)
	c.actuators.WithLabelValues("alarm_beacon").Set(boolGauge(cmds.AlarmBeacon))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}

	return 0
}
