package motion

import "time"

// Channel identifies one complementary PWM pair feeding a winding driver.
type Channel uint8

const (
	ChannelA Channel = iota
	ChannelB
)

func (c Channel) String() string {
	switch c {
	case ChannelA:
		return "A"
	case ChannelB:
		return "B"
	default:
		return "?"
	}
}

// PWM is the dual-channel phase-lockable PWM peripheral.
// Both outputs of a pair are complementary, the driver handles the inversion.
type PWM interface {
	SetFrequency(ch Channel, hz uint32) error
	// SetDuty sets the duty cycle in percent.
	SetDuty(ch Channel, percent float64) error
	// SetSyncSource makes ch emit a synchronization pulse on counter zero.
	SetSyncSource(ch Channel) error
	// SetSyncFollower makes ch reload its counter to offset ticks (over a 1000 ticks period)
	// whenever source emits a synchronization pulse.
	SetSyncFollower(ch, source Channel, offset uint32) error
	// TriggerSync issues a software synchronization on ch.
	TriggerSync(ch Channel) error
	Start(ch Channel) error
	Stop(ch Channel) error
}

// Regulator is the auxiliary PWM channel driving the boost converter.
type Regulator interface {
	SetDuty(value uint32) error
	MaxDuty() uint32
}

// EnableLine is the digital line enabling the winding amplifiers.
type EnableLine interface {
	Set(high bool) error
}

// OneShotTimer fires its callback once after the armed duration.
// Start re-arms a pending timer; Stop cancels it.
type OneShotTimer interface {
	Start(d time.Duration) error
	Stop() error
}

// TimerFactory creates a one-shot timer bound to callback.
type TimerFactory func(callback func()) (OneShotTimer, error)

// Hardware groups the peripherals used by the Engine.
type Hardware struct {
	PWM       PWM
	Regulator Regulator
	Enable    EnableLine
	NewTimer  TimerFactory
}
