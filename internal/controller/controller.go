package controller

import (
	"context"
	"time"

	"github.com/avolkov/plant-controller/internal/control"
	"github.com/avolkov/plant-controller/internal/domain/plant"
)

// Controller is one subsystem state machine dispatched by the scan
// scheduler. Execute reads its subset of the process state and writes
// only its own actuator and derived fields; it must never block.
type Controller interface {
	// Name identifies the controller in logs and metrics.
	Name() string
	// Execute runs one scan cycle worth of control logic. dt is the
	// scan period; ps and cmds are the shared state and command set.
	Execute(ctx context.Context, dt time.Duration, ps *plant.ProcessState, cmds *plant.ActuatorCommandSet)
	// Timers returns the controller's private timers so the scheduler
	// can advance them once per tick, after the interlock has run.
	Timers() []*control.Timer
}
