package motor

import (
	"errors"
	"fmt"

	"github.com/cjeanneret/ScanGo/internal/debug"
	"github.com/cjeanneret/ScanGo/internal/hw/gpio"
)

// DefaultPeriod is the PWM period in counts; duty values are expressed
// against it (4500 = 30%).
const DefaultPeriod = 15000

// Config holds the hardware configuration for one DC motor behind an
// H-bridge driver (DRV8838 style: PWM/EN, PH/DIR, nSLEEP).
type Config struct {
	PWMPin   int
	DirPin   int
	SleepPin int    // nSLEEP pin (BCM). 0 = not used. Active LOW (LOW=asleep).
	Period   uint32 // PWM period in counts. 0 defaults to DefaultPeriod.
	ClockHz  int    // PWM clock; output frequency is ClockHz/Period.
}

// Motor drives a single DC motor.
type Motor struct {
	gpio gpio.Driver
	cfg  Config
}

// NewMotor creates a motor controller and leaves it stopped and asleep.
func NewMotor(g gpio.Driver, cfg Config) *Motor {
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}

	_ = g.SetupPin(cfg.DirPin, gpio.Output)
	_ = g.SetupPWM(cfg.PWMPin, cfg.ClockHz)
	_ = g.WritePWM(cfg.PWMPin, 0, cfg.Period)

	if cfg.SleepPin > 0 {
		_ = g.SetupPin(cfg.SleepPin, gpio.Output)
		_ = g.WritePin(cfg.SleepPin, gpio.Low)
	}

	return &Motor{gpio: g, cfg: cfg}
}

// Run wakes the driver, sets the direction, restores the motor's PWM clock
// and applies the duty cycle. DIR LOW is forward.
func (m *Motor) Run(forward bool, duty uint16) error {
	if uint32(duty) > m.cfg.Period {
		return fmt.Errorf("duty %d exceeds period %d", duty, m.cfg.Period)
	}

	dirLevel := gpio.High
	if forward {
		dirLevel = gpio.Low
	}
	if err := m.gpio.WritePin(m.cfg.DirPin, dirLevel); err != nil {
		return err
	}
	if m.cfg.SleepPin > 0 {
		if err := m.gpio.WritePin(m.cfg.SleepPin, gpio.High); err != nil {
			return err
		}
	}
	// The PWM clock is shared by both channels and the buzzer retunes it.
	if err := m.gpio.SetupPWM(m.cfg.PWMPin, m.cfg.ClockHz); err != nil {
		return err
	}
	return m.gpio.WritePWM(m.cfg.PWMPin, uint32(duty), m.cfg.Period)
}

// Stop sets zero duty and puts the driver to sleep. Both writes are
// attempted even if the first fails.
func (m *Motor) Stop() error {
	err := m.gpio.WritePWM(m.cfg.PWMPin, 0, m.cfg.Period)
	if m.cfg.SleepPin > 0 {
		if sleepErr := m.gpio.WritePin(m.cfg.SleepPin, gpio.Low); err == nil {
			err = sleepErr
		}
	}
	return err
}

// Direction is the motion of a differential-drive pair.
type Direction int

const (
	Forward  Direction = iota
	Backward           // both wheels reversed
	Right              // in place, clockwise seen from above
	Left               // in place, counter-clockwise
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Right:
		return "right"
	case Left:
		return "left"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Pair is a differential drive made of a left and a right motor.
type Pair struct {
	left  *Motor
	right *Motor
}

func NewPair(left, right *Motor) *Pair {
	return &Pair{left: left, right: right}
}

// Drive starts both motors. Turning in place runs the wheels in
// opposite directions.
func (p *Pair) Drive(dir Direction, leftDuty, rightDuty uint16) error {
	var leftFwd, rightFwd bool
	switch dir {
	case Forward:
		leftFwd, rightFwd = true, true
	case Backward:
		leftFwd, rightFwd = false, false
	case Right:
		leftFwd, rightFwd = true, false
	case Left:
		leftFwd, rightFwd = false, true
	default:
		return fmt.Errorf("unknown direction: %d", dir)
	}

	debug.Verbose("Motors: %s (left=%d, right=%d)", dir, leftDuty, rightDuty)

	if err := p.left.Run(leftFwd, leftDuty); err != nil {
		return fmt.Errorf("left motor: %w", err)
	}
	if err := p.right.Run(rightFwd, rightDuty); err != nil {
		return fmt.Errorf("right motor: %w", err)
	}
	return nil
}

// Stop stops both motors; the right one is stopped even if the left fails.
func (p *Pair) Stop() error {
	debug.Verbose("Motors: stop")

	leftErr := p.left.Stop()
	if leftErr != nil {
		leftErr = fmt.Errorf("left motor: %w", leftErr)
	}
	rightErr := p.right.Stop()
	if rightErr != nil {
		rightErr = fmt.Errorf("right motor: %w", rightErr)
	}
	return errors.Join(leftErr, rightErr)
}
