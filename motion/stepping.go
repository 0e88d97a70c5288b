package motion

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// stepper alternates the outputs between an active and an idle interval.
//
// The timer callback runs outside of the engine lock. It only reads the atomics below and
// drives the hardware under toggle, which is also taken by start and stop so that a stop
// can never be followed by a late restart.
type stepper struct {
	hw     Hardware
	timer  OneShotTimer
	toggle sync.Mutex

	armed     atomic.Bool
	active    atomic.Bool
	stepTime  atomic.Uint32
	stillTime atomic.Uint32
	fault     atomic.Pointer[stepFault]
}

// stepFault is the failure that ended a stepping run.
type stepFault struct {
	err error
}

func newStepper(hw Hardware, stepTime, stillTime uint32) (*stepper, error) {
	if hw.NewTimer == nil {
		return nil, ErrTimerInit
	}

	s := &stepper{hw: hw}
	s.stepTime.Store(stepTime)
	s.stillTime.Store(stillTime)

	timer, err := hw.NewTimer(s.fire)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTimerInit, err)
	}
	if timer == nil {
		return nil, ErrTimerInit
	}
	s.timer = timer

	return s, nil
}

func (s *stepper) start(stepTime, stillTime uint32) error {
	s.toggle.Lock()
	defer s.toggle.Unlock()

	s.stepTime.Store(stepTime)
	s.stillTime.Store(stillTime)
	s.fault.Store(nil)

	if err := startOutputs(s.hw); err != nil {
		return err
	}
	s.active.Store(true)
	s.armed.Store(true)

	return s.timer.Start(micros(stepTime))
}

// stop halts the run. fault is the failure that ended it early, if any, and is cleared.
func (s *stepper) stop() (fault error, err error) {
	s.toggle.Lock()
	defer s.toggle.Unlock()

	s.armed.Store(false)
	s.active.Store(false)

	if f := s.fault.Swap(nil); f != nil {
		fault = f.err
	}

	return fault, errors.Join(
		s.timer.Stop(),
		stopOutputs(s.hw),
	)
}

// faulted returns the failure that ended the current run.
func (s *stepper) faulted() error {
	if f := s.fault.Load(); f != nil {
		return f.err
	}
	return nil
}

// fire is the timer callback.
// A failure disarms the stepper and leaves the outputs stopped until the next start.
func (s *stepper) fire() {
	s.toggle.Lock()
	defer s.toggle.Unlock()

	if !s.armed.Load() {
		return
	}

	var err error
	if s.active.Load() {
		err = stopOutputs(s.hw)
		s.active.Store(false)
		if err == nil {
			err = s.timer.Start(micros(s.stillTime.Load()))
		}
	} else {
		// Idle -> active, startOutputs re-latches the phase lost by the restart.
		err = startOutputs(s.hw)
		s.active.Store(true)
		if err == nil {
			err = s.timer.Start(micros(s.stepTime.Load()))
		}
	}
	if err == nil {
		return
	}

	s.armed.Store(false)
	s.active.Store(false)
	s.fault.Store(&stepFault{err: fmt.Errorf("stepping: %w", errors.Join(err, stopOutputs(s.hw)))})
}
