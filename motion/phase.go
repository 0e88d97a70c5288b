package motion

import "math"

const (
	// PhasePeriodTicks is the fixed-point resolution of one PWM period used for the follower offset.
	PhasePeriodTicks = 1000

	// The synchronization trigger reaches the follower with a latency growing linearly
	// with the frequency, about one tick per 500 Hz.
	phaseCompensationDivisor = 500.0
)

// PhaseTicks computes the follower offset for the given frequency and phase.
// The result is always in [0, PhasePeriodTicks).
func PhaseTicks(freq uint32, phaseDeg float64) uint32 {
	ticks := math.Round(phaseDeg/360*PhasePeriodTicks + float64(freq)/phaseCompensationDivisor)
	return uint32(ticks) % PhasePeriodTicks
}

// applyPhase configures both channels for freq/duty and locks channel B on channel A with the computed offset.
// Must be called with the engine lock held.
func applyPhase(pwm PWM, freq uint32, duty, phaseDeg float64) (uint32, error) {
	for _, ch := range []Channel{ChannelA, ChannelB} {
		if err := pwm.SetFrequency(ch, freq); err != nil {
			return 0, err
		}
		if err := pwm.SetDuty(ch, duty); err != nil {
			return 0, err
		}
	}

	ticks := PhaseTicks(freq, phaseDeg)

	if err := pwm.SetSyncSource(ChannelA); err != nil {
		return 0, err
	}
	if err := pwm.SetSyncFollower(ChannelB, ChannelA, ticks); err != nil {
		return 0, err
	}

	return ticks, resync(pwm)
}

// resync re-latches the phase relationship. Every restart of a stopped channel needs it.
func resync(pwm PWM) error {
	if err := pwm.TriggerSync(ChannelA); err != nil {
		return err
	}
	return pwm.TriggerSync(ChannelB)
}
