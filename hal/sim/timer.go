package sim

import (
	"sync"
	"time"

	"github.com/mdouchement/actuatord/motion"
)

// A ManualTimer only fires when told to.
type ManualTimer struct {
	sync     sync.Mutex
	callback func()
	armed    bool
	last     time.Duration
	arms     int
	failNext error
}

// FailNext makes the next Start return err without arming.
func (t *ManualTimer) FailNext(err error) {
	t.sync.Lock()
	defer t.sync.Unlock()

	t.failNext = err
}

// Fire runs the callback if the timer is armed and reports whether it did.
func (t *ManualTimer) Fire() bool {
	t.sync.Lock()
	if !t.armed {
		t.sync.Unlock()
		return false
	}
	t.armed = false
	cb := t.callback
	t.sync.Unlock()

	cb()
	return true
}

func (t *ManualTimer) Start(d time.Duration) error {
	t.sync.Lock()
	defer t.sync.Unlock()

	if err := t.failNext; err != nil {
		t.failNext = nil
		return err
	}

	t.armed = true
	t.last = d
	t.arms++
	return nil
}

func (t *ManualTimer) Stop() error {
	t.sync.Lock()
	defer t.sync.Unlock()

	t.armed = false
	return nil
}

func (t *ManualTimer) Armed() bool {
	t.sync.Lock()
	defer t.sync.Unlock()

	return t.armed
}

// Last returns the duration of the latest arming.
func (t *ManualTimer) Last() time.Duration {
	t.sync.Lock()
	defer t.sync.Unlock()

	return t.last
}

// ManualTimers is a motion.TimerFactory that keeps track of the created timers.
type ManualTimers struct {
	sync   sync.Mutex
	timers []*ManualTimer
	Fail   bool
}

func (f *ManualTimers) New(callback func()) (motion.OneShotTimer, error) {
	if f.Fail {
		return nil, ErrTimerUnavailable
	}

	f.sync.Lock()
	defer f.sync.Unlock()

	t := &ManualTimer{callback: callback}
	f.timers = append(f.timers, t)
	return t, nil
}

// Get returns the i-th created timer or nil.
func (f *ManualTimers) Get(i int) *ManualTimer {
	f.sync.Lock()
	defer f.sync.Unlock()

	if i < 0 || i >= len(f.timers) {
		return nil
	}
	return f.timers[i]
}

// A Timer is backed by the Go runtime timers.
type Timer struct {
	sync     sync.Mutex
	callback func()
	t        *time.Timer
}

// NewTimer is a motion.TimerFactory using real time.
func NewTimer(callback func()) (motion.OneShotTimer, error) {
	return &Timer{callback: callback}, nil
}

func (t *Timer) Start(d time.Duration) error {
	t.sync.Lock()
	defer t.sync.Unlock()

	if t.t != nil {
		t.t.Stop()
	}
	t.t = time.AfterFunc(d, t.callback)
	return nil
}

func (t *Timer) Stop() error {
	t.sync.Lock()
	defer t.sync.Unlock()

	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
	return nil
}

// Hardware returns a complete simulated motion.Hardware.
func Hardware(timers motion.TimerFactory) (motion.Hardware, *PWM, *Regulator, *Line) {
	pwm := NewPWM()
	reg := NewRegulator()
	enable := &Line{}

	return motion.Hardware{
		PWM:       pwm,
		Regulator: reg,
		Enable:    enable,
		NewTimer:  timers,
	}, pwm, reg, enable
}
