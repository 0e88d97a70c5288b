package actuatord_test

import (
	"errors"
	"testing"

	"github.com/mdouchement/actuatord"
	"github.com/mdouchement/actuatord/indicator"
	"github.com/mdouchement/actuatord/lora"
	"github.com/mdouchement/actuatord/motion"
	"github.com/stretchr/testify/require"
)

func (b *bench) dispatcher() *actuatord.Dispatcher {
	return actuatord.NewCommandDispatcher("DEV1", actuatord.Commands{
		Motion:    b.engine,
		Indicator: b.indicator,
		Signal:    b.signal,
	})
}

func frame(command, payload string) lora.Frame {
	return lora.Frame{Receiver: "DEV1", Sender: "HOST", Command: command, Payload: payload}
}

func TestDispatchMotion(t *testing.T) {
	b := newBench(t)
	d := b.dispatcher()

	reply, err := d.Dispatch(frame(lora.CommandForward, ""))
	require.NoError(t, err)
	require.Equal(t, "HOST:DEV1:ACK:FORWARD\n", reply.String())
	require.True(t, b.engine.Snapshot().Running)
	require.Equal(t, indicator.MotionActive, b.indicator.State())

	reply, err = d.Dispatch(frame(lora.CommandStop, ""))
	require.NoError(t, err)
	require.Equal(t, "HOST:DEV1:ACK:STOP\n", reply.String())
	require.False(t, b.engine.Snapshot().Running)
	require.Equal(t, indicator.Standby, b.indicator.State())

	_, err = d.Dispatch(frame(lora.CommandBackward, ""))
	require.NoError(t, err)
	require.Equal(t, "backward", b.engine.Snapshot().Direction)
}

func TestDispatchUnknown(t *testing.T) {
	b := newBench(t)
	d := b.dispatcher()

	reply, err := d.Dispatch(frame("MOVE", ""))
	require.ErrorIs(t, err, actuatord.ErrUnknownCommand)
	require.Nil(t, reply)

	// Case-sensitive
	_, err = d.Dispatch(frame("stop", ""))
	require.ErrorIs(t, err, actuatord.ErrUnknownCommand)
}

func TestDispatchFirstMatch(t *testing.T) {
	d := actuatord.NewDispatcher("DEV1")
	d.HandleFunc("PING", func(string) (*actuatord.Reply, error) {
		return &actuatord.Reply{Command: "PONG", Payload: "first"}, nil
	})
	d.HandleFunc("PING", func(string) (*actuatord.Reply, error) {
		return &actuatord.Reply{Command: "PONG", Payload: "second"}, nil
	})
	require.Equal(t, []string{"PING", "PING"}, d.Keywords())

	reply, err := d.Dispatch(frame("PING", ""))
	require.NoError(t, err)
	require.Equal(t, "first", reply.Payload)
}

func TestDispatchSetParams(t *testing.T) {
	b := newBench(t)
	d := b.dispatcher()

	reply, err := d.Dispatch(frame(lora.CommandSetParams, "VOLTAGE,40"))
	require.NoError(t, err)
	require.Equal(t, "HOST:DEV1:ACK:SET_PARAMS:VOLTAGE,40\n", reply.String())
	require.Equal(t, 40, b.engine.Parameters().Voltage)

	before := b.engine.ParamsString()
	for _, payload := range []string{"VOLTAGE,81", "VOLTAGE,-1", "VOLTAGE,abc", "DUTY,0", "FWD_FREQ,99", "BWD_PHASE,400", "BOGUS,1", "VOLTAGE"} {
		reply, err := d.Dispatch(frame(lora.CommandSetParams, payload))
		require.ErrorIs(t, err, motion.ErrValidation, payload)
		require.Nil(t, reply)
	}
	require.Equal(t, before, b.engine.ParamsString())

	_, err = d.Dispatch(frame(lora.CommandSetParams, "FWD_PHASE, 45.5"))
	require.NoError(t, err)
	require.Equal(t, 45.5, b.engine.Parameters().ForwardPhase)
}

func TestDispatchBatch(t *testing.T) {
	b := newBench(t)
	d := b.dispatcher()

	reply, err := d.Dispatch(frame(lora.CommandSetBatchParams, "VOLTAGE:40;DUTY:60.0;BOGUS:1"))
	require.NoError(t, err)
	require.Equal(t, "HOST:DEV1:ACK:SET_BATCH_PARAMS:BATCH_OK\n", reply.String())

	p := b.engine.Parameters()
	require.Equal(t, 40, p.Voltage)
	require.Equal(t, 60.0, p.Duty)

	// Every entry failing still acknowledges once.
	reply, err = d.Dispatch(frame(lora.CommandSetBatchParams, "VOLTAGE:99;garbage;;"))
	require.NoError(t, err)
	require.Equal(t, "SET_BATCH_PARAMS:BATCH_OK", reply.Payload)
	require.Equal(t, 40, b.engine.Parameters().Voltage)
}

func TestDispatchReportRoundTrip(t *testing.T) {
	b := newBench(t)
	d := b.dispatcher()

	_, err := d.Dispatch(frame(lora.CommandSetBatchParams, "VOLTAGE:12;FWD_FREQ:1000;REVERSED:1;STEP_MODE:1;STEP_TIME_MS:2.5"))
	require.NoError(t, err)

	reply, err := d.Dispatch(frame(lora.CommandReportParams, ""))
	require.NoError(t, err)
	require.Equal(t, lora.CommandParams, reply.Command)
	require.Equal(t, "HOST", reply.Receiver)
	require.Equal(t, b.engine.ParamsString(), reply.Payload)
	require.Contains(t, reply.Payload, "REVERSED:1;STEP_MODE:1;STEP_TIME_MS:2.5")

	// The report can be fed back as a batch on another device.
	other := newBench(t)
	_, err = other.dispatcher().Dispatch(frame(lora.CommandSetBatchParams, reply.Payload))
	require.NoError(t, err)
	require.Equal(t, b.engine.ParamsString(), other.engine.ParamsString())
}

func TestDispatchStepMode(t *testing.T) {
	b := newBench(t)
	d := b.dispatcher()
	stops := b.pwm.State(motion.ChannelA).Stops

	reply, err := d.Dispatch(frame(lora.CommandStepMode, "1"))
	require.NoError(t, err)
	require.Equal(t, "HOST:DEV1:ACK:STEP_MODE:1\n", reply.String())
	require.Equal(t, stops+1, b.pwm.State(motion.ChannelA).Stops)

	_, err = d.Dispatch(frame(lora.CommandStepMode, "1"))
	require.NoError(t, err)
	require.Equal(t, stops+1, b.pwm.State(motion.ChannelA).Stops)

	_, err = d.Dispatch(frame(lora.CommandStepMode, "0"))
	require.NoError(t, err)
	require.Equal(t, stops+2, b.pwm.State(motion.ChannelA).Stops)

	_, err = d.Dispatch(frame(lora.CommandStepMode, "yes"))
	require.ErrorIs(t, err, motion.ErrValidation)
}

func TestDispatchTimes(t *testing.T) {
	b := newBench(t)
	d := b.dispatcher()

	reply, err := d.Dispatch(frame(lora.CommandSetStepTime, "2.5"))
	require.NoError(t, err)
	require.Equal(t, "SET_STEP_TIME:2.5", reply.Payload)

	_, err = d.Dispatch(frame(lora.CommandSetStillTime, "10"))
	require.NoError(t, err)

	p := b.engine.Parameters()
	require.Equal(t, uint32(2500), p.StepTime)
	require.Equal(t, uint32(10000), p.StillTime)

	_, err = d.Dispatch(frame(lora.CommandSetStillTime, "0"))
	require.ErrorIs(t, err, motion.ErrValidation)
	require.Equal(t, uint32(10000), b.engine.Parameters().StillTime)
}

func TestDispatchSwapAndOTA(t *testing.T) {
	b := newBench(t)
	d := b.dispatcher()

	reply, err := d.Dispatch(frame(lora.CommandSwapDirection, ""))
	require.NoError(t, err)
	require.Equal(t, "SWAP_DIR", reply.Payload)
	require.True(t, b.engine.IsDirectionReversed())

	_, err = d.Dispatch(frame(lora.CommandOTAEnable, ""))
	require.NoError(t, err)
	require.Equal(t, actuatord.SignalStartUpdate, b.signal.Peek())

	_, err = d.Dispatch(frame(lora.CommandOTADisable, ""))
	require.NoError(t, err)
	require.Equal(t, actuatord.SignalStartUpdate|actuatord.SignalStopUpdate, b.signal.Peek())
}

type brokenIndicator struct {
	*indicator.Indicator
}

func (brokenIndicator) Set(indicator.State) error {
	return errors.New("led line stuck")
}

func TestDispatchIndicatorFailureStillAcks(t *testing.T) {
	b := newBench(t)
	logs := &syncBuffer{}
	d := actuatord.NewCommandDispatcher("DEV1", actuatord.Commands{
		Motion:    b.engine,
		Indicator: brokenIndicator{b.indicator},
		Signal:    b.signal,
		Log:       actuatord.NewLogger(logs, false),
	})

	reply, err := d.Dispatch(frame(lora.CommandBackward, ""))
	require.NoError(t, err)
	require.Equal(t, "HOST:DEV1:ACK:BACKWARD\n", reply.String())
	require.True(t, b.engine.Snapshot().Running)

	reply, err = d.Dispatch(frame(lora.CommandStop, ""))
	require.NoError(t, err)
	require.Equal(t, "HOST:DEV1:ACK:STOP\n", reply.String())
	require.False(t, b.engine.Snapshot().Running)

	require.Contains(t, logs.String(), "led line stuck")
}
