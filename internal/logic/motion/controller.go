package motion

import (
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/ScanGo/internal/debug"
	"github.com/cjeanneret/ScanGo/internal/hw/motor"
	"github.com/jonboulle/clockwork"
)

// Drive is the motor pair as seen by the controller.
type Drive interface {
	Drive(dir motor.Direction, leftDuty, rightDuty uint16) error
	Stop() error
}

// Maneuver is one timed motion: drive, hold, stop.
type Maneuver struct {
	Direction motor.Direction
	LeftDuty  uint16
	RightDuty uint16
	Hold      time.Duration
}

func (m Maneuver) String() string {
	return fmt.Sprintf("%s (%d/%d) for %s", m.Direction, m.LeftDuty, m.RightDuty, m.Hold)
}

// Controller runs maneuvers on a motor pair.
// It's an intermediate layer between command dispatch and the motor
// driver, and owns the only timing in the motion path.
type Controller struct {
	drive Drive
	clock clockwork.Clock
}

func NewController(drive Drive, clock clockwork.Clock) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Controller{
		drive: drive,
		clock: clock,
	}
}

// Run performs the maneuver and blocks for its whole hold. The three phases
// always run: a failed drive still holds and stops, and the errors of both
// ends are returned together.
func (c *Controller) Run(m Maneuver) error {
	debug.Maneuver(m.Direction.String(), m.LeftDuty, m.RightDuty, m.Hold)

	driveErr := c.drive.Drive(m.Direction, m.LeftDuty, m.RightDuty)
	if driveErr != nil {
		driveErr = fmt.Errorf("drive %s: %w", m.Direction, driveErr)
	}

	c.clock.Sleep(m.Hold)

	stopErr := c.drive.Stop()
	if stopErr != nil {
		stopErr = fmt.Errorf("stop: %w", stopErr)
	}

	return errors.Join(driveErr, stopErr)
}
