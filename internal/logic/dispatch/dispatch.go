// Package dispatch maps recognised commands onto actuator actions.
package dispatch

import (
	"fmt"
	"time"

	"github.com/cjeanneret/ScanGo/internal/debug"
	"github.com/cjeanneret/ScanGo/internal/hw/buzzer"
	"github.com/cjeanneret/ScanGo/internal/hw/indicator"
	"github.com/cjeanneret/ScanGo/internal/hw/motor"
	"github.com/cjeanneret/ScanGo/internal/logic/command"
	"github.com/cjeanneret/ScanGo/internal/logic/motion"
)

// Fixed maneuver parameters.
const (
	DriveDuty uint16 = 4500
	SpinDuty  uint16 = 3000
	Hold             = 3000 * time.Millisecond
)

// InvalidNotice is emitted when a scanned line matches no command.
const InvalidNotice = "Barcode Scanner Command Invalid!"

// Action is one of SetColor, PlayTone or Move.
type Action interface {
	isAction()
}

// SetColor changes the indicator colour.
type SetColor struct {
	Color indicator.Color
}

// PlayTone plays the note pattern.
type PlayTone struct{}

// Move runs a blocking maneuver.
type Move struct {
	Maneuver motion.Maneuver
}

func (SetColor) isAction() {}
func (PlayTone) isAction() {}
func (Move) isAction()     {}

// ActionFor returns the action bound to a command.
func ActionFor(id command.ID) (Action, bool) {
	switch id {
	case command.RGBLEDGreen:
		return SetColor{Color: indicator.Green}, true
	case command.RGBLEDBlue:
		return SetColor{Color: indicator.Blue}, true
	case command.RGBLEDRed:
		return SetColor{Color: indicator.Red}, true
	case command.RGBLEDOff:
		return SetColor{Color: indicator.Off}, true
	case command.PlayNotePattern:
		return PlayTone{}, true
	case command.MoveForward:
		return Move{motion.Maneuver{Direction: motor.Forward, LeftDuty: DriveDuty, RightDuty: DriveDuty, Hold: Hold}}, true
	case command.MoveBackward:
		return Move{motion.Maneuver{Direction: motor.Backward, LeftDuty: DriveDuty, RightDuty: DriveDuty, Hold: Hold}}, true
	case command.SpinClockwise:
		return Move{motion.Maneuver{Direction: motor.Right, LeftDuty: SpinDuty, RightDuty: SpinDuty, Hold: Hold}}, true
	case command.SpinCounterclockwise:
		return Move{motion.Maneuver{Direction: motor.Left, LeftDuty: SpinDuty, RightDuty: SpinDuty, Hold: Hold}}, true
	default:
		return nil, false
	}
}

// Mover runs a maneuver to completion.
type Mover interface {
	Run(m motion.Maneuver) error
}

// Notifier receives diagnostic notices.
type Notifier interface {
	Notice(msg string)
}

// Dispatcher drives the actuators. It holds no state between calls.
type Dispatcher struct {
	indicator indicator.Indicator
	player    buzzer.Player
	mover     Mover
	notifier  Notifier
}

func NewDispatcher(ind indicator.Indicator, player buzzer.Player, mover Mover, notifier Notifier) *Dispatcher {
	if player == nil {
		player = buzzer.None{}
	}
	return &Dispatcher{
		indicator: ind,
		player:    player,
		mover:     mover,
		notifier:  notifier,
	}
}

// Dispatch performs the action of a match result. With ok false it only
// emits InvalidNotice. Moves block until the motors are stopped again.
func (d *Dispatcher) Dispatch(id command.ID, ok bool) error {
	if !ok {
		d.notifier.Notice(InvalidNotice)
		return nil
	}

	action, known := ActionFor(id)
	if !known {
		d.notifier.Notice(InvalidNotice)
		return nil
	}

	debug.Live("Dispatch: %s", id)

	var err error
	switch a := action.(type) {
	case SetColor:
		err = d.indicator.SetColor(a.Color)
	case PlayTone:
		err = d.player.PlayPattern()
	case Move:
		err = d.mover.Run(a.Maneuver)
	default:
		err = fmt.Errorf("unhandled action %T", action)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	return nil
}
