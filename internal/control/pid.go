package control

import "math"

// PIDConfig holds the tuning and limits for one PID block.
type PIDConfig struct {
	// Kp, Ki, Kd are the proportional, integral and derivative gains.
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
	// OutputMin and OutputMax clamp the computed output.
	OutputMin float64 `yaml:"output_min"`
	OutputMax float64 `yaml:"output_max"`
	// IntegralLimit clamps the accumulated integral term to
	// [-IntegralLimit, +IntegralLimit] after every update.
	IntegralLimit float64 `yaml:"integral_limit"`
	// Deadband holds the previous output unchanged while |error| is
	// below it, to prevent hunting around the setpoint.
	Deadband float64 `yaml:"deadband"`
}

// PID is a proportional-integral-derivative block executed once per scan
// tick. One independent instance exists per control loop; there is no
// hidden global state, so identical (setpoint, process value, dt)
// sequences produce identical outputs.
type PID struct {
	cfg PIDConfig

	setpoint     float64
	processValue float64

	integral   float64
	prevError  float64
	lastOutput float64
	// firstRun suppresses the derivative term on the first execution
	// after a reset to avoid derivative kick.
	firstRun bool
}

// NewPID returns a PID block with the given tuning, ready for its first
// execution.
func NewPID(cfg PIDConfig) *PID {
	return &PID{
		cfg:        cfg,
		lastOutput: clamp(0, cfg.OutputMin, cfg.OutputMax),
		firstRun:   true,
	}
}

// SetSetpoint updates the target the loop tracks.
func (p *PID) SetSetpoint(sp float64) {
	p.setpoint = sp
}

// Setpoint returns the current target.
func (p *PID) Setpoint() float64 {
	return p.setpoint
}

// Observe records the latest process value for the next Execute.
func (p *PID) Observe(pv float64) {
	p.processValue = pv
}

// Execute advances the loop by dt seconds and returns the clamped output.
// While |error| is inside the deadband the previous output is returned
// unchanged and the integral is left untouched.
func (p *PID) Execute(dt float64) float64 {
	if dt <= 0 {
		return p.lastOutput
	}

	err := p.setpoint - p.processValue

	if !p.firstRun && math.Abs(err) < p.cfg.Deadband {
		p.prevError = err

		return p.lastOutput
	}

	p.integral += err * p.cfg.Ki * dt
	p.integral = clamp(p.integral, -p.cfg.IntegralLimit, p.cfg.IntegralLimit)

	var derivative float64
	if !p.firstRun {
		derivative = p.cfg.Kd * (err - p.prevError) / dt
	}

	output := clamp(p.cfg.Kp*err+p.integral+derivative, p.cfg.OutputMin, p.cfg.OutputMax)

	p.prevError = err
	p.lastOutput = output
	p.firstRun = false

	return output
}

// Output returns the most recently computed output.
func (p *PID) Output() float64 {
	return p.lastOutput
}

// Integral returns the current integral term. Exposed for tests and
// metrics only.
func (p *PID) Integral() float64 {
	return p.integral
}

// Reset atomically zeroes the integral and the previous error and
// re-arms the first-run derivative suppression.
func (p *PID) Reset() {
	p.integral = 0
	p.prevError = 0
	p.firstRun = true
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
