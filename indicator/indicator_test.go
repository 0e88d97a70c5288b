package indicator_test

import (
	"testing"
	"time"

	"github.com/mdouchement/actuatord/hal/sim"
	"github.com/mdouchement/actuatord/indicator"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestTripleFlash(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	led := &sim.Line{}
	ind := indicator.New(led,
		indicator.WithClock(clock),
		indicator.WithPatterns(map[indicator.State]indicator.Pattern{
			indicator.Standby: {Count: 3, Interval: 100 * time.Millisecond, Pause: 1500 * time.Millisecond},
		}),
	)
	require.NoError(t, ind.Begin())
	require.NoError(t, ind.Set(indicator.Standby))

	// Nothing before the first interval.
	require.NoError(t, ind.Update())
	require.Equal(t, 0, led.Changes())

	for n := 1; n <= 6; n++ {
		clock.Advance(100 * time.Millisecond)
		require.NoError(t, ind.Update())
		require.Equal(t, n, led.Changes())
		require.Equal(t, n%2 == 1, led.High())
	}

	// Burst complete, LED stays low during the pause.
	clock.Advance(100 * time.Millisecond)
	require.NoError(t, ind.Update())
	require.False(t, led.High())
	require.Equal(t, 6, led.Changes())

	for elapsed := time.Duration(0); elapsed < 1500*time.Millisecond; elapsed += 100 * time.Millisecond {
		clock.Advance(100 * time.Millisecond)
		require.NoError(t, ind.Update())
		require.Equal(t, 6, led.Changes())
	}

	// Pause is over at this point; the next burst starts one interval later.
	clock.Advance(100 * time.Millisecond)
	require.NoError(t, ind.Update())
	require.True(t, led.High())
	require.Equal(t, 7, led.Changes())
}

func TestStaticStates(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	led := &sim.Line{}
	ind := indicator.New(led, indicator.WithClock(clock))

	require.NoError(t, ind.Set(indicator.MotionActive))
	require.True(t, led.High())

	clock.Advance(time.Hour)
	require.NoError(t, ind.Update())
	require.True(t, led.High())
	require.Equal(t, 1, led.Changes())

	require.NoError(t, ind.Set(indicator.Off))
	require.False(t, led.High())
	require.NoError(t, ind.Update())
	require.False(t, led.High())
}

func TestSetRestartsPattern(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	led := &sim.Line{}
	ind := indicator.New(led, indicator.WithClock(clock))

	require.NoError(t, ind.Set(indicator.RadioLinkConnecting))
	clock.Advance(200 * time.Millisecond)
	require.NoError(t, ind.Update())
	require.True(t, led.High())

	// Same state: pattern keeps going.
	require.NoError(t, ind.Set(indicator.RadioLinkConnecting))
	require.True(t, led.High())

	// New state: restart from the off phase.
	require.NoError(t, ind.Set(indicator.Error))
	require.False(t, led.High())
	require.Equal(t, indicator.Error, ind.State())

	clock.Advance(99 * time.Millisecond)
	require.NoError(t, ind.Update())
	require.False(t, led.High())

	clock.Advance(time.Millisecond)
	require.NoError(t, ind.Update())
	require.True(t, led.High())
}

func TestDefaultPatterns(t *testing.T) {
	p := indicator.DefaultPatterns()

	require.Equal(t, indicator.Pattern{Count: 2, Interval: 150 * time.Millisecond, Pause: time.Second}, p[indicator.UpdateActive])
	require.Equal(t, indicator.Pattern{Count: 1, Interval: 100 * time.Millisecond, Pause: 2 * time.Second}, p[indicator.Standby])
	require.NotContains(t, p, indicator.Off)
	require.NotContains(t, p, indicator.MotionActive)
}
