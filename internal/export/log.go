package export

import (
	"context"

	"github.com/avolkov/plant-controller/internal/logger"
	"github.com/avolkov/plant-controller/internal/scheduler"
)

// LogPublisher writes a cycle summary to the structured log on a
// configurable sub-period, plus every recorded alarm event immediately.
// It is the default sink when MQTT is disabled.
type LogPublisher struct {
	// EveryCycles spaces the periodic summaries (0 means every 100).
	EveryCycles uint64
}

// NewLogPublisher returns a publisher summarizing every n cycles.
func NewLogPublisher(n uint64) *LogPublisher {
	if n == 0 {
		n = 100
	}

	return &LogPublisher{EveryCycles: n}
}

// PublishCycle implements scheduler.Publisher.
func (p *LogPublisher) PublishCycle(ctx context.Context, snap scheduler.CycleSnapshot) {
	for _, evt := range snap.Events {
		logger.WarnKV(ctx, "Alarm event",
			"code", string(evt.Code),
			"cycle_id", evt.CycleID,
			"timestamp", evt.Timestamp)
	}

	if snap.State.CycleID%p.EveryCycles != 0 {
		return
	}

	logger.InfoKV(ctx, "Cycle summary",
		"cycle_id", snap.State.CycleID,
		"mode", snap.State.Mode.String(),
		"state", snap.State.State.String(),
		"influent_flow", snap.State.Measurements.InfluentFlow,
		"ph", snap.State.Measurements.PH,
		"do", snap.State.Measurements.DissolvedOxygen,
		"chlorine", snap.State.Measurements.ChlorineResidual,
		"discharge_active", snap.State.DischargeActive,
		"compliant", snap.State.Compliant,
		"elapsed", snap.Elapsed.String())
}
