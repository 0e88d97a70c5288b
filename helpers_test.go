package actuatord_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mdouchement/actuatord"
	"github.com/mdouchement/actuatord/hal/sim"
	"github.com/mdouchement/actuatord/indicator"
	"github.com/mdouchement/actuatord/lora"
	"github.com/mdouchement/actuatord/motion"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	sync sync.Mutex
	buf  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.sync.Lock()
	defer b.sync.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.sync.Lock()
	defer b.sync.Unlock()

	return b.buf.String()
}

type fakeRadio struct {
	sync    sync.Mutex
	in      bytes.Buffer
	sent    []lora.Frame
	readErr error
}

func (r *fakeRadio) Fail(err error) {
	r.sync.Lock()
	defer r.sync.Unlock()

	r.readErr = err
}

func (r *fakeRadio) Feed(s string) {
	r.sync.Lock()
	defer r.sync.Unlock()

	r.in.WriteString(s)
}

func (r *fakeRadio) Read(p []byte) (int, error) {
	r.sync.Lock()
	defer r.sync.Unlock()

	if r.readErr != nil {
		return 0, r.readErr
	}
	if r.in.Len() == 0 {
		return 0, nil
	}
	return r.in.Read(p)
}

func (r *fakeRadio) Send(f lora.Frame) error {
	r.sync.Lock()
	defer r.sync.Unlock()

	r.sent = append(r.sent, f)
	return nil
}

func (r *fakeRadio) Sent() []lora.Frame {
	r.sync.Lock()
	defer r.sync.Unlock()

	return append([]lora.Frame(nil), r.sent...)
}

// SentWith returns the sent frames having the given command.
func (r *fakeRadio) SentWith(command string) []lora.Frame {
	var frames []lora.Frame
	for _, f := range r.Sent() {
		if f.Command == command {
			frames = append(frames, f)
		}
	}
	return frames
}

type fakeUpdate struct {
	sync    sync.Mutex
	begins  int
	ends    int
	running bool
	fail    error
	updated chan struct{}
	// onEnd runs while End drains in-flight uploads.
	onEnd func()
}

func newFakeUpdate() *fakeUpdate {
	return &fakeUpdate{updated: make(chan struct{}, 1)}
}

func (u *fakeUpdate) Begin() error {
	u.sync.Lock()
	defer u.sync.Unlock()

	u.begins++
	if u.fail != nil {
		return u.fail
	}
	u.running = true
	return nil
}

func (u *fakeUpdate) End(context.Context) error {
	u.sync.Lock()
	defer u.sync.Unlock()

	if u.running {
		u.ends++
		if u.onEnd != nil {
			u.onEnd()
		}
	}
	u.running = false
	return nil
}

func (u *fakeUpdate) OnEnd(f func()) {
	u.sync.Lock()
	defer u.sync.Unlock()

	u.onEnd = f
}

func (u *fakeUpdate) Addr() string {
	return "10.0.0.2:8080"
}

func (u *fakeUpdate) Updated() <-chan struct{} {
	return u.updated
}

func (u *fakeUpdate) Counts() (begins, ends int) {
	u.sync.Lock()
	defer u.sync.Unlock()

	return u.begins, u.ends
}

type bench struct {
	engine    *motion.Engine
	pwm       *sim.PWM
	indicator *indicator.Indicator
	led       *sim.Line
	signal    *actuatord.Signal
}

func newBench(t *testing.T) *bench {
	t.Helper()

	timers := &sim.ManualTimers{}
	hw, pwm, _, _ := sim.Hardware(timers.New)

	engine, err := motion.New(hw, motion.DefaultParameters())
	require.NoError(t, err)
	require.NoError(t, engine.Init())

	led := &sim.Line{}
	return &bench{
		engine:    engine,
		pwm:       pwm,
		indicator: indicator.New(led),
		led:       led,
		signal:    actuatord.NewSignal(),
	}
}

func testConfig() actuatord.Config {
	cfg := actuatord.DefaultConfig()
	cfg.Socket = ""
	cfg.Radio.Poll.Duration = time.Millisecond
	cfg.Update.Poll.Duration = time.Millisecond
	cfg.Indicator.Poll.Duration = time.Millisecond
	return cfg
}
