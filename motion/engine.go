package motion

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mdouchement/logger"
)

var (
	ErrValidation          = errors.New("invalid parameter")
	ErrTimerInit           = errors.New("could not create stepping timer")
	ErrSteppingUnavailable = errors.New("stepping mode unavailable")
)

// Direction is the nominal direction requested by a move.
type Direction uint8

const (
	DirectionNone Direction = iota
	DirectionForward
	DirectionBackward
)

func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionBackward:
		return "backward"
	default:
		return "none"
	}
}

// Status is a point-in-time copy of the engine state.
type Status struct {
	Parameters
	Running           bool   `json:"running"`
	Direction         string `json:"direction"`
	PhaseTicks        uint32 `json:"phase_ticks"`
	SteppingAvailable bool   `json:"stepping_available"`
	// Fault is the failure that halted stepping, cleared by the next Stop or move.
	Fault string `json:"fault,omitempty"`
}

// An Engine owns the motion parameters and the PWM/timer hardware.
//
// All exported methods are safe for concurrent use. The stepping timer callback never
// takes the engine lock, it only works on the stepper state and the hardware.
type Engine struct {
	sync      sync.Mutex
	hw        Hardware
	log       logger.Logger
	params    Parameters
	running   bool
	direction Direction // hardware direction, after reversal
	ticks     uint32
	stepper   *stepper
}

// New returns an Engine using the given hardware and default parameters.
func New(hw Hardware, defaults Parameters) (*Engine, error) {
	if hw.PWM == nil || hw.Regulator == nil || hw.Enable == nil {
		return nil, errors.New("motion: incomplete hardware")
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("motion: defaults: %w", err)
	}

	return &Engine{
		hw:     hw,
		params: defaults,
	}, nil
}

func (e *Engine) SetLogger(l logger.Logger) {
	e.log = l
}

// Init brings the hardware into a safe stopped state and creates the stepping timer.
// A stepping timer failure is not fatal: it is logged once and stepping mode stays unavailable.
func (e *Engine) Init() error {
	e.sync.Lock()
	defer e.sync.Unlock()

	e.params.Voltage = 0
	if err := e.applyVoltage(); err != nil {
		return fmt.Errorf("regulator: %w", err)
	}

	if _, err := applyPhase(e.hw.PWM, e.params.ForwardFreq, e.params.Duty, e.params.ForwardPhase); err != nil {
		return fmt.Errorf("pwm: %w", err)
	}
	if err := e.stopOutputs(); err != nil {
		return fmt.Errorf("pwm: %w", err)
	}

	st, err := newStepper(e.hw, e.params.StepTime, e.params.StillTime)
	if err != nil {
		if e.log != nil {
			e.log.WithError(err).Error("Stepping mode is permanently unavailable")
		}
		e.params.StepMode = false
		return nil
	}
	e.stepper = st

	return nil
}

// SteppingAvailable reports whether the stepping timer could be created.
func (e *Engine) SteppingAvailable() bool {
	e.sync.Lock()
	defer e.sync.Unlock()

	return e.stepper != nil
}

// MoveForward drives the actuator in the forward direction.
func (e *Engine) MoveForward() error {
	return e.move(DirectionForward)
}

// MoveBackward drives the actuator in the backward direction.
func (e *Engine) MoveBackward() error {
	return e.move(DirectionBackward)
}

func (e *Engine) move(nominal Direction) error {
	e.sync.Lock()
	defer e.sync.Unlock()

	dir := nominal
	if e.params.Reversed {
		dir = opposite(nominal)
	}

	freq, phase := e.params.ForwardFreq, e.params.ForwardPhase
	if dir == DirectionBackward {
		freq, phase = e.params.BackwardFreq, e.params.BackwardPhase
	}

	ticks, err := applyPhase(e.hw.PWM, freq, e.params.Duty, phase)
	if err != nil {
		return fmt.Errorf("apply phase: %w", err)
	}
	e.ticks = ticks
	e.direction = dir

	if e.running && e.fault() == nil {
		// Already driving: the new phase is latched by applyPhase, no restart needed.
		return nil
	}

	if e.params.StepMode {
		if e.stepper == nil {
			return ErrSteppingUnavailable
		}
		if err := e.stepper.start(e.params.StepTime, e.params.StillTime); err != nil {
			return fmt.Errorf("stepping: %w", err)
		}
	} else if err := startOutputs(e.hw); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	e.running = true
	return nil
}

// Stop halts every output and cancels any pending stepping timer.
func (e *Engine) Stop() error {
	e.sync.Lock()
	defer e.sync.Unlock()

	return e.stop()
}

func (e *Engine) stop() error {
	e.running = false
	e.direction = DirectionNone

	if e.stepper == nil {
		return e.stopOutputs()
	}

	fault, err := e.stepper.stop()
	if fault != nil && e.log != nil {
		e.log.WithError(fault).Error("[motion] Stepping had halted")
	}
	return err
}

func (e *Engine) stopOutputs() error {
	return stopOutputs(e.hw)
}

// SetGlobalVoltage sets the boost voltage in volts, applied immediately.
func (e *Engine) SetGlobalVoltage(v int) error {
	if err := validateVoltage(v); err != nil {
		return err
	}

	e.sync.Lock()
	defer e.sync.Unlock()

	prev := e.params.Voltage
	e.params.Voltage = v
	if err := e.applyVoltage(); err != nil {
		e.params.Voltage = prev
		return fmt.Errorf("regulator: %w", err)
	}
	return nil
}

// VoltageDuty maps a voltage onto the regulator duty scale.
func VoltageDuty(v int, maxDuty uint32) uint32 {
	if v <= 0 {
		return 0
	}
	return uint32(v) * maxDuty / MaxVoltage
}

func (e *Engine) applyVoltage() error {
	return e.hw.Regulator.SetDuty(VoltageDuty(e.params.Voltage, e.hw.Regulator.MaxDuty()))
}

// SetGlobalDutyCycle sets the duty cycle in percent used by the next move.
func (e *Engine) SetGlobalDutyCycle(duty float64) error {
	if err := validateDuty(duty); err != nil {
		return err
	}

	e.sync.Lock()
	defer e.sync.Unlock()

	e.params.Duty = duty
	return nil
}

func (e *Engine) SetForwardFreq(freq uint32) error {
	if err := validateFrequency(freq); err != nil {
		return err
	}

	e.sync.Lock()
	defer e.sync.Unlock()

	e.params.ForwardFreq = freq
	return nil
}

func (e *Engine) SetForwardPhase(phase float64) error {
	if err := validatePhase(phase); err != nil {
		return err
	}

	e.sync.Lock()
	defer e.sync.Unlock()

	e.params.ForwardPhase = phase
	return nil
}

func (e *Engine) SetBackwardFreq(freq uint32) error {
	if err := validateFrequency(freq); err != nil {
		return err
	}

	e.sync.Lock()
	defer e.sync.Unlock()

	e.params.BackwardFreq = freq
	return nil
}

func (e *Engine) SetBackwardPhase(phase float64) error {
	if err := validatePhase(phase); err != nil {
		return err
	}

	e.sync.Lock()
	defer e.sync.Unlock()

	e.params.BackwardPhase = phase
	return nil
}

// SetStepTime sets the active interval of stepping mode.
func (e *Engine) SetStepTime(ms float64) error {
	us, err := MillisToMicros(ms)
	if err != nil {
		return err
	}

	e.sync.Lock()
	defer e.sync.Unlock()

	e.params.StepTime = us
	if e.stepper != nil {
		e.stepper.stepTime.Store(us)
	}
	return nil
}

// SetStillTime sets the idle interval of stepping mode.
func (e *Engine) SetStillTime(ms float64) error {
	us, err := MillisToMicros(ms)
	if err != nil {
		return err
	}

	e.sync.Lock()
	defer e.sync.Unlock()

	e.params.StillTime = us
	if e.stepper != nil {
		e.stepper.stillTime.Store(us)
	}
	return nil
}

// SwapDirection flips the direction reversal flag.
// Motion already underway is not affected.
func (e *Engine) SwapDirection() bool {
	e.sync.Lock()
	defer e.sync.Unlock()

	e.params.Reversed = !e.params.Reversed
	return e.params.Reversed
}

func (e *Engine) IsDirectionReversed() bool {
	e.sync.Lock()
	defer e.sync.Unlock()

	return e.params.Reversed
}

// EnableStepMode switches between continuous and stepping drive.
// An actual change stops the actuator first, setting the current value again does nothing.
func (e *Engine) EnableStepMode(enable bool) error {
	e.sync.Lock()
	defer e.sync.Unlock()

	if e.params.StepMode == enable {
		return nil
	}
	if enable && e.stepper == nil {
		return ErrSteppingUnavailable
	}

	err := e.stop()
	e.params.StepMode = enable
	return err
}

func (e *Engine) IsStepModeEnabled() bool {
	e.sync.Lock()
	defer e.sync.Unlock()

	return e.params.StepMode
}

// ParamsString serializes every parameter in a fixed order, see Parameters.String.
func (e *Engine) ParamsString() string {
	e.sync.Lock()
	defer e.sync.Unlock()

	return e.params.String()
}

// Parameters returns a copy of the current parameters.
func (e *Engine) Parameters() Parameters {
	e.sync.Lock()
	defer e.sync.Unlock()

	return e.params
}

func (e *Engine) Snapshot() Status {
	e.sync.Lock()
	defer e.sync.Unlock()

	s := Status{
		Parameters:        e.params,
		Running:           e.running,
		Direction:         e.direction.String(),
		PhaseTicks:        e.ticks,
		SteppingAvailable: e.stepper != nil,
	}
	if err := e.fault(); err != nil {
		s.Running = false
		s.Fault = err.Error()
	}
	return s
}

func (e *Engine) fault() error {
	if e.stepper == nil {
		return nil
	}
	return e.stepper.faulted()
}

func opposite(d Direction) Direction {
	switch d {
	case DirectionForward:
		return DirectionBackward
	case DirectionBackward:
		return DirectionForward
	default:
		return d
	}
}

func startOutputs(hw Hardware) error {
	if err := hw.Enable.Set(true); err != nil {
		return err
	}
	if err := hw.PWM.Start(ChannelA); err != nil {
		return err
	}
	if err := hw.PWM.Start(ChannelB); err != nil {
		return err
	}
	return resync(hw.PWM)
}

func stopOutputs(hw Hardware) error {
	return errors.Join(
		hw.PWM.Stop(ChannelA),
		hw.PWM.Stop(ChannelB),
		hw.Enable.Set(false),
	)
}
