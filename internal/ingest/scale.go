package ingest

import (
	"github.com/avolkov/plant-controller/internal/config"
	"github.com/avolkov/plant-controller/internal/domain/plant"
)

// Scaler converts raw channel counts into engineering units under the
// per-channel scaling contract. A raw value outside its calibrated range
// is a sensor-range fault: the fault flag is reported and the channel
// holds its last valid engineering value (the controllers keep operating
// on it).
type Scaler struct {
	cfg config.Scaling

	// lastValid holds the last in-range engineering value per channel.
	lastValid plant.Measurements
	// seeded is false until the first snapshot has been scaled; the
	// first snapshot is accepted even if out of range, clamped to the
	// channel limits, so the loop never starts from all-zero garbage.
	seeded bool
}

// NewScaler returns a scaler for the given channel contracts.
func NewScaler(cfg config.Scaling) *Scaler {
	return &Scaler{cfg: cfg}
}

// Scale converts one raw snapshot. rangeFault reports whether any
// channel was out of its calibrated range this cycle.
func (s *Scaler) Scale(raw RawSnapshot) (m plant.Measurements, rangeFault bool) {
	m = s.lastValid

	rangeFault = !s.scaleChannel(raw.Flow, s.cfg.Flow, &m.InfluentFlow)
	rangeFault = !s.scaleChannel(raw.IntakeLevel, s.cfg.IntakeLevel, &m.IntakeLevel) || rangeFault
	rangeFault = !s.scaleChannel(raw.BasinLevel, s.cfg.BasinLevel, &m.BasinLevel) || rangeFault
	rangeFault = !s.scaleChannel(raw.PH, s.cfg.PH, &m.PH) || rangeFault
	rangeFault = !s.scaleChannel(raw.DO, s.cfg.DO, &m.DissolvedOxygen) || rangeFault
	rangeFault = !s.scaleChannel(raw.Turbidity, s.cfg.Turbidity, &m.Turbidity) || rangeFault
	rangeFault = !s.scaleChannel(raw.Chlorine, s.cfg.Chlorine, &m.ChlorineResidual) || rangeFault
	rangeFault = !s.scaleChannel(raw.Temperature, s.cfg.Temperature, &m.Temperature) || rangeFault
	rangeFault = !s.scaleChannel(raw.FilterDP, s.cfg.FilterDP, &m.FilterDP) || rangeFault
	rangeFault = !s.scaleChannel(raw.SupplyLevel, s.cfg.SupplyLevel, &m.SupplyLevel) || rangeFault

	s.lastValid = m
	s.seeded = true

	return m, rangeFault
}

// scaleChannel maps one raw count into *out. It returns false on a range
// fault, leaving *out at the held value (except on the very first
// snapshot, where the value is clamped instead of held).
func (s *Scaler) scaleChannel(raw float64, ch config.ChannelScale, out *float64) bool {
	span := ch.RawMax - ch.RawMin
	if span == 0 {
		// Unconfigured channel: pass the raw value through.
		*out = raw

		return true
	}

	inRange := raw >= ch.RawMin && raw <= ch.RawMax
	if !inRange {
		if !s.seeded {
			if raw < ch.RawMin {
				raw = ch.RawMin
			} else {
				raw = ch.RawMax
			}
		} else {
			return false
		}
	}

	*out = ch.EngMin + (raw-ch.RawMin)/span*(ch.EngMax-ch.EngMin)

	return inRange
}
