package actuatord

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mdouchement/actuatord/indicator"
	"github.com/mdouchement/actuatord/lora"
	"github.com/mdouchement/actuatord/motion"
	"github.com/mdouchement/logger"
)

// Commands holds the collaborators of the command handlers.
type Commands struct {
	Motion    Motion
	Indicator Indicator
	Signal    *Signal
	Log       logger.Logger
}

// NewCommandDispatcher returns a Dispatcher with the whole command set registered.
func NewCommandDispatcher(id string, c Commands) *Dispatcher {
	d := NewDispatcher(id)
	d.SetLogger(c.Log)

	d.HandleFunc(lora.CommandForward, c.forward)
	d.HandleFunc(lora.CommandBackward, c.backward)
	d.HandleFunc(lora.CommandStop, c.stop)
	d.HandleFunc(lora.CommandOTAEnable, c.signal(SignalStartUpdate))
	d.HandleFunc(lora.CommandOTADisable, c.signal(SignalStopUpdate))
	d.HandleFunc(lora.CommandSetParams, c.setParams)
	d.HandleFunc(lora.CommandSetBatchParams, c.setBatchParams)
	d.HandleFunc(lora.CommandSwapDirection, c.swapDirection)
	d.HandleFunc(lora.CommandStepMode, c.stepMode)
	d.HandleFunc(lora.CommandSetStepTime, c.setTime(motion.ParamStepTime))
	d.HandleFunc(lora.CommandSetStillTime, c.setTime(motion.ParamStillTime))
	d.HandleFunc(lora.CommandReportParams, c.reportParams)

	return d
}

func (c Commands) infof(format string, args ...any) {
	if c.Log != nil {
		c.Log.Infof(format, args...)
	}
}

func (c Commands) forward(string) (*Reply, error) {
	if err := c.Motion.MoveForward(); err != nil {
		return nil, err
	}

	c.infof("[motion] Moving forward")
	c.indicate(indicator.MotionActive)
	return nil, nil
}

func (c Commands) backward(string) (*Reply, error) {
	if err := c.Motion.MoveBackward(); err != nil {
		return nil, err
	}

	c.infof("[motion] Moving backward")
	c.indicate(indicator.MotionActive)
	return nil, nil
}

func (c Commands) stop(string) (*Reply, error) {
	if err := c.Motion.Stop(); err != nil {
		return nil, err
	}

	c.infof("[motion] Stopped")
	c.indicate(indicator.Standby)
	return nil, nil
}

// indicate never fails the command, the motion already happened.
func (c Commands) indicate(state indicator.State) {
	if err := c.Indicator.Set(state); err != nil {
		c.errorf(err, "[indicator] Could not show %s", state)
	}
}

func (c Commands) signal(bits SignalBits) func(string) (*Reply, error) {
	return func(string) (*Reply, error) {
		c.Signal.Set(bits)
		return nil, nil
	}
}

func (c Commands) setParams(payload string) (*Reply, error) {
	name, value, ok := strings.Cut(payload, ",")
	if !ok {
		return nil, fmt.Errorf("%w: expected NAME,VALUE got %q", motion.ErrValidation, payload)
	}

	return nil, c.applyParam(strings.TrimSpace(name), strings.TrimSpace(value))
}

func (c Commands) setBatchParams(payload string) (*Reply, error) {
	var applied int
	for entry := range strings.SplitSeq(payload, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, value, ok := strings.Cut(entry, ":")
		if !ok {
			c.errorf(fmt.Errorf("%w: expected NAME:VALUE got %q", motion.ErrValidation, entry), "[dispatch] Skipping batch entry")
			continue
		}

		if err := c.applyParam(strings.TrimSpace(name), strings.TrimSpace(value)); err != nil {
			c.errorf(err, "[dispatch] Skipping batch entry")
			continue
		}
		applied++
	}

	c.infof("[dispatch] Batch applied %d parameter(s)", applied)
	return &Reply{
		Command: lora.CommandAck,
		Payload: lora.CommandSetBatchParams + ":" + lora.BatchOK,
	}, nil
}

func (c Commands) errorf(err error, format string, args ...any) {
	if c.Log != nil {
		c.Log.WithError(err).Errorf(format, args...)
	}
}

func (c Commands) swapDirection(string) (*Reply, error) {
	reversed := c.Motion.SwapDirection()
	c.infof("[motion] Direction reversed: %t", reversed)
	return nil, nil
}

func (c Commands) stepMode(payload string) (*Reply, error) {
	enable, err := parseFlag(payload)
	if err != nil {
		return nil, err
	}

	if err = c.Motion.EnableStepMode(enable); err != nil {
		return nil, err
	}

	c.infof("[motion] Step mode: %t", enable)
	return nil, nil
}

func (c Commands) setTime(name string) func(string) (*Reply, error) {
	return func(payload string) (*Reply, error) {
		return nil, c.applyParam(name, strings.TrimSpace(payload))
	}
}

func (c Commands) reportParams(string) (*Reply, error) {
	return &Reply{
		Command: lora.CommandParams,
		Payload: c.Motion.ParamsString(),
	}, nil
}

// applyParam parses value according to name and applies it.
func (c Commands) applyParam(name, value string) error {
	var err error

	switch name {
	case motion.ParamVoltage:
		var v int
		if v, err = strconv.Atoi(value); err == nil {
			err = c.Motion.SetGlobalVoltage(v)
		}
	case motion.ParamDuty:
		err = withFloat(value, c.Motion.SetGlobalDutyCycle)
	case motion.ParamForwardFreq:
		err = withUint32(value, c.Motion.SetForwardFreq)
	case motion.ParamForwardPhase:
		err = withFloat(value, c.Motion.SetForwardPhase)
	case motion.ParamBackwardFreq:
		err = withUint32(value, c.Motion.SetBackwardFreq)
	case motion.ParamBackwardPhase:
		err = withFloat(value, c.Motion.SetBackwardPhase)
	case motion.ParamStepTime:
		err = withFloat(value, c.Motion.SetStepTime)
	case motion.ParamStillTime:
		err = withFloat(value, c.Motion.SetStillTime)
	case motion.ParamReversed:
		var reversed bool
		if reversed, err = parseFlag(value); err == nil && reversed != c.Motion.IsDirectionReversed() {
			c.Motion.SwapDirection()
		}
	case motion.ParamStepMode:
		var enable bool
		if enable, err = parseFlag(value); err == nil {
			err = c.Motion.EnableStepMode(enable)
		}
	default:
		return fmt.Errorf("%w: unknown parameter %q", motion.ErrValidation, name)
	}

	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return fmt.Errorf("%w: %s: %q is not a valid number", motion.ErrValidation, name, value)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	c.infof("[dispatch] %s set to %s", name, value)
	return nil
}

func withFloat(value string, set func(float64) error) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	return set(v)
}

func withUint32(value string, set func(uint32) error) error {
	v, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return err
	}
	return set(uint32(v))
}

func parseFlag(value string) (bool, error) {
	switch strings.TrimSpace(value) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: expected 0 or 1 got %q", motion.ErrValidation, value)
	}
}
