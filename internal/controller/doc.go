// Package controller implements the five cooperating subsystem state
// machines of the plant: intake, treatment, dosing, aeration and
// monitoring.
//
// Every controller follows the same shape: a closed state enum, an
// Execute method run top-to-bottom once per scan cycle, private timers
// advanced by the scheduler, and independent PID instances. Controllers
// never block; all waiting is a timer plus a state re-entered each cycle
// until the timer expires. A skipped controller writes nothing, so its
// actuator fields keep their last commanded values until the interlock
// overwrites them.
package controller
