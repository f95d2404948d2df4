package control

import "time"

// Timer is a non-blocking countdown timer. A controller arms it with a
// duration, the scheduler advances it once per scan tick, and the owning
// controller polls Expired until it disarms or rearms the timer. There is
// no implicit auto-reset.
type Timer struct {
	// running reports whether the timer accumulates elapsed time.
	running bool
	// target is the duration after which the timer expires.
	target time.Duration
	// elapsed is the accumulated run time since the last Arm.
	elapsed time.Duration
}

// Arm starts the timer with the given target duration, resetting any
// previously accumulated time.
func (t *Timer) Arm(target time.Duration) {
	t.running = true
	t.target = target
	t.elapsed = 0
}

// Disarm stops the timer and zeroes the accumulated time.
func (t *Timer) Disarm() {
	t.running = false
	t.elapsed = 0
}

// Advance accumulates dt if the timer is running. It is the only way
// time passes for a Timer.
func (t *Timer) Advance(dt time.Duration) {
	if !t.running {
		return
	}

	t.elapsed += dt
}

// Expired reports whether an armed timer has reached its target.
// A disarmed timer never reports expiry.
func (t *Timer) Expired() bool {
	return t.running && t.elapsed >= t.target
}

// Running reports whether the timer is armed.
func (t *Timer) Running() bool {
	return t.running
}

// Elapsed returns the accumulated run time.
func (t *Timer) Elapsed() time.Duration {
	return t.elapsed
}
