// Package plant contains the core domain types for the process-control
// loop: scaled measurements, setpoints, alarm flags, operating mode and
// system state, the actuator command set, and alarm events.
//
// ProcessState is the single shared mutable structure of the scan loop.
// Each field has exactly one designated writer: the scheduler owns the
// mode/state fields and the threshold-derived alarm flags, each subsystem
// controller owns its actuator fields and derived flags. All components
// may read any field.
package plant
