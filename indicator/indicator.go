// Package indicator drives the status LED with per-state flash patterns.
package indicator

import (
	"sync"
	"time"
)

// State is the status shown by the LED.
type State uint8

const (
	Off State = iota
	RadioLinkConnecting
	RadioLinkConnected
	UpdateActive
	MotionActive
	Error
	Standby
)

var names = map[State]string{
	Off:                 "off",
	RadioLinkConnecting: "connecting",
	RadioLinkConnected:  "connected",
	UpdateActive:        "update",
	MotionActive:        "motion",
	Error:               "error",
	Standby:             "standby",
}

func (s State) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return "unknown"
}

// A Pattern flashes Count times, each phase lasting Interval, then holds the LED off for Pause.
type Pattern struct {
	Count    int
	Interval time.Duration
	Pause    time.Duration
}

// DefaultPatterns returns the flash patterns of the blinking states.
// Off and MotionActive are static and have no pattern.
func DefaultPatterns() map[State]Pattern {
	return map[State]Pattern{
		RadioLinkConnecting: {Count: 1, Interval: 200 * time.Millisecond, Pause: 200 * time.Millisecond},
		RadioLinkConnected:  {Count: 1, Interval: time.Second, Pause: time.Second},
		UpdateActive:        {Count: 2, Interval: 150 * time.Millisecond, Pause: time.Second},
		Error:               {Count: 1, Interval: 100 * time.Millisecond, Pause: 100 * time.Millisecond},
		Standby:             {Count: 1, Interval: 100 * time.Millisecond, Pause: 2 * time.Second},
	}
}

type (
	// Output is the LED line, high means lit.
	Output interface {
		Set(high bool) error
	}

	Clock interface {
		Now() time.Time
	}

	Option func(*Indicator)

	systemClock struct{}
)

func (systemClock) Now() time.Time {
	return time.Now()
}

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(i *Indicator) {
		i.clock = c
	}
}

// WithPatterns overrides the patterns of the given states.
func WithPatterns(patterns map[State]Pattern) Option {
	return func(i *Indicator) {
		for s, p := range patterns {
			i.patterns[s] = p
		}
	}
}

// An Indicator is a non-blocking LED state machine, Update must be polled.
type Indicator struct {
	sync     sync.Mutex
	out      Output
	clock    Clock
	patterns map[State]Pattern

	state      State
	pattern    Pattern
	lit        bool
	toggles    int
	lastUpdate time.Time
	inPause    bool
	pauseStart time.Time
}

// New returns an Indicator in the Off state.
func New(out Output, opts ...Option) *Indicator {
	i := &Indicator{
		out:      out,
		clock:    systemClock{},
		patterns: DefaultPatterns(),
		state:    Off,
	}
	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Begin de-energizes the LED.
func (i *Indicator) Begin() error {
	i.sync.Lock()
	defer i.sync.Unlock()

	i.lit = false
	return i.out.Set(false)
}

func (i *Indicator) State() State {
	i.sync.Lock()
	defer i.sync.Unlock()

	return i.state
}

// Set switches to state. Setting the current state does nothing, so that an ongoing pattern is not restarted.
func (i *Indicator) Set(state State) error {
	i.sync.Lock()
	defer i.sync.Unlock()

	if i.state == state {
		return nil
	}

	i.state = state
	i.toggles = 0
	i.inPause = false
	i.lastUpdate = i.clock.Now()
	i.pattern = i.patterns[state]

	switch state {
	case MotionActive:
		i.lit = true
	default:
		i.lit = false
	}
	return i.out.Set(i.lit)
}

func (i *Indicator) static() bool {
	return i.state == Off || i.state == MotionActive || i.pattern.Count <= 0
}

// Update advances the pattern according to the elapsed time. It never blocks.
func (i *Indicator) Update() error {
	i.sync.Lock()
	defer i.sync.Unlock()

	if i.static() {
		return nil
	}

	now := i.clock.Now()

	if i.inPause {
		if now.Sub(i.pauseStart) >= i.pattern.Pause {
			i.inPause = false
			i.toggles = 0
			i.lastUpdate = now
		}
		return nil
	}

	if now.Sub(i.lastUpdate) < i.pattern.Interval {
		return nil
	}

	if i.toggles < i.pattern.Count*2 {
		i.lit = !i.lit
		i.toggles++
		i.lastUpdate = now
		return i.out.Set(i.lit)
	}

	// Burst complete.
	i.lit = false
	i.inPause = true
	i.pauseStart = now
	return i.out.Set(false)
}
