package actuatord

import (
	"errors"
	"fmt"

	"github.com/mdouchement/actuatord/motion"
)

// MaxWaveformSamples bounds the number of samples of a rendered waveform.
const MaxWaveformSamples = 20000

var ErrInvalidWaveform = errors.New("invalid waveform request")

// A Waveform is the simulated output of both channels for one direction.
type Waveform struct {
	Direction motion.Direction
	Frequency uint32
	Ticks     uint32
	// Step is the duration of one sample in microseconds.
	Step    float64
	A       []float64
	B       []float64
	Enabled []float64
}

// SampleWaveform simulates the channel outputs driven by p in the nominal direction dir.
// Continuous drive is sampled over periods PWM periods, stepping drive over one active/idle cycle.
// Each period is split in samplesPerPeriod samples.
func SampleWaveform(p motion.Parameters, dir motion.Direction, periods, samplesPerPeriod int) (Waveform, error) {
	if dir != motion.DirectionForward && dir != motion.DirectionBackward {
		return Waveform{}, fmt.Errorf("%w: direction %s", ErrInvalidWaveform, dir)
	}
	if periods <= 0 || samplesPerPeriod <= 0 {
		return Waveform{}, fmt.Errorf("%w: periods and samples must be positive", ErrInvalidWaveform)
	}

	hw := dir
	if p.Reversed {
		hw = motion.DirectionBackward
		if dir == motion.DirectionBackward {
			hw = motion.DirectionForward
		}
	}

	w := Waveform{
		Direction: hw,
		Frequency: p.ForwardFreq,
		Ticks:     motion.PhaseTicks(p.ForwardFreq, p.ForwardPhase),
	}
	if hw == motion.DirectionBackward {
		w.Frequency = p.BackwardFreq
		w.Ticks = motion.PhaseTicks(p.BackwardFreq, p.BackwardPhase)
	}

	periodUS := 1e6 / float64(w.Frequency)
	w.Step = periodUS / float64(samplesPerPeriod)

	if p.StepMode {
		cycle := float64(p.StepTime) + float64(p.StillTime)
		periods = int(cycle/periodUS) + 1
	}

	n := periods * samplesPerPeriod
	if n > MaxWaveformSamples {
		return Waveform{}, fmt.Errorf("%w: %d samples exceeds %d", ErrInvalidWaveform, n, MaxWaveformSamples)
	}

	high := p.Duty / 100 * motion.PhasePeriodTicks
	w.A = make([]float64, n)
	w.B = make([]float64, n)
	w.Enabled = make([]float64, n)

	for i := range n {
		enabled := true
		if p.StepMode {
			// Stepping restarts both channels in phase at the beginning of each active interval.
			elapsed := float64(i) * w.Step
			enabled = elapsed < float64(p.StepTime)
		}
		if !enabled {
			continue
		}

		// Position within the period over the fixed-point scale.
		t := float64(i%samplesPerPeriod) / float64(samplesPerPeriod) * motion.PhasePeriodTicks
		tb := t + float64(w.Ticks)
		if tb >= motion.PhasePeriodTicks {
			tb -= motion.PhasePeriodTicks
		}

		w.Enabled[i] = 1
		if t < high {
			w.A[i] = 1
		}
		if tb < high {
			w.B[i] = 1
		}
	}

	return w, nil
}

// ToPtr returns a pointer to a copy of v.
func ToPtr[T any](v T) *T {
	return &v
}
