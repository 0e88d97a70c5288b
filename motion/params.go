package motion

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Validation ranges.
const (
	MinVoltage = 0
	MaxVoltage = 80

	MinDuty = 0.1
	MaxDuty = 99.9

	MinFrequency = 100
	MaxFrequency = 50000

	MinPhase = 0.0
	MaxPhase = 360.0
)

// Parameter names, as used by SET_PARAMS, SET_BATCH_PARAMS and ParamsString.
const (
	ParamVoltage       = "VOLTAGE"
	ParamDuty          = "DUTY"
	ParamForwardFreq   = "FWD_FREQ"
	ParamForwardPhase  = "FWD_PHASE"
	ParamBackwardFreq  = "BWD_FREQ"
	ParamBackwardPhase = "BWD_PHASE"
	ParamReversed      = "REVERSED"
	ParamStepMode      = "STEP_MODE"
	ParamStepTime      = "STEP_TIME_MS"
	ParamStillTime     = "STILL_TIME_MS"
)

// Parameters holds every motion setting.
// StepTime and StillTime are expressed in microseconds.
type Parameters struct {
	Voltage       int     `json:"voltage" yaml:"voltage"`
	Duty          float64 `json:"duty" yaml:"duty"`
	ForwardFreq   uint32  `json:"forward_freq" yaml:"forward_freq"`
	ForwardPhase  float64 `json:"forward_phase" yaml:"forward_phase"`
	BackwardFreq  uint32  `json:"backward_freq" yaml:"backward_freq"`
	BackwardPhase float64 `json:"backward_phase" yaml:"backward_phase"`
	Reversed      bool    `json:"reversed" yaml:"reversed"`
	StepTime      uint32  `json:"step_time_us" yaml:"step_time_us"`
	StillTime     uint32  `json:"still_time_us" yaml:"still_time_us"`
	StepMode      bool    `json:"step_mode" yaml:"step_mode"`
}

// DefaultParameters returns the factory settings.
// Voltage always starts at 0 whatever the defaults say, see Engine.Init.
func DefaultParameters() Parameters {
	return Parameters{
		Voltage:       0,
		Duty:          50,
		ForwardFreq:   20000,
		ForwardPhase:  90,
		BackwardFreq:  20000,
		BackwardPhase: 270,
		StepTime:      500,
		StillTime:     1000,
	}
}

// Validate checks every field against its range.
func (p Parameters) Validate() error {
	if err := validateVoltage(p.Voltage); err != nil {
		return err
	}
	if err := validateDuty(p.Duty); err != nil {
		return err
	}
	if err := validateFrequency(p.ForwardFreq); err != nil {
		return fmt.Errorf("forward: %w", err)
	}
	if err := validatePhase(p.ForwardPhase); err != nil {
		return fmt.Errorf("forward: %w", err)
	}
	if err := validateFrequency(p.BackwardFreq); err != nil {
		return fmt.Errorf("backward: %w", err)
	}
	if err := validatePhase(p.BackwardPhase); err != nil {
		return fmt.Errorf("backward: %w", err)
	}
	if p.StepTime == 0 || p.StillTime == 0 {
		return fmt.Errorf("%w: step and still times must be greater than zero", ErrValidation)
	}
	return nil
}

// String renders the parameters with a fixed field order as NAME:VALUE entries joined by ';'.
// It uses the same grammar as the SET_BATCH_PARAMS payload.
func (p Parameters) String() string {
	fields := []string{
		ParamVoltage + ":" + strconv.Itoa(p.Voltage),
		ParamDuty + ":" + formatFloat(p.Duty),
		ParamForwardFreq + ":" + strconv.FormatUint(uint64(p.ForwardFreq), 10),
		ParamForwardPhase + ":" + formatFloat(p.ForwardPhase),
		ParamBackwardFreq + ":" + strconv.FormatUint(uint64(p.BackwardFreq), 10),
		ParamBackwardPhase + ":" + formatFloat(p.BackwardPhase),
		ParamReversed + ":" + formatBool(p.Reversed),
		ParamStepMode + ":" + formatBool(p.StepMode),
		ParamStepTime + ":" + formatFloat(float64(p.StepTime)/1000),
		ParamStillTime + ":" + formatFloat(float64(p.StillTime)/1000),
	}
	return strings.Join(fields, ";")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func validateVoltage(v int) error {
	if v < MinVoltage || v > MaxVoltage {
		return fmt.Errorf("%w: voltage %d out of range [%d,%d]", ErrValidation, v, MinVoltage, MaxVoltage)
	}
	return nil
}

func validateDuty(v float64) error {
	if math.IsNaN(v) || v < MinDuty || v > MaxDuty {
		return fmt.Errorf("%w: duty %v out of range [%v,%v]", ErrValidation, v, MinDuty, MaxDuty)
	}
	return nil
}

func validateFrequency(v uint32) error {
	if v < MinFrequency || v > MaxFrequency {
		return fmt.Errorf("%w: frequency %d out of range [%d,%d]", ErrValidation, v, MinFrequency, MaxFrequency)
	}
	return nil
}

func validatePhase(v float64) error {
	if math.IsNaN(v) || v < MinPhase || v > MaxPhase {
		return fmt.Errorf("%w: phase %v out of range [%v,%v]", ErrValidation, v, MinPhase, MaxPhase)
	}
	return nil
}

// MillisToMicros converts a step/still time given in milliseconds.
// Zero, negative and sub-microsecond values are rejected.
func MillisToMicros(ms float64) (uint32, error) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms <= 0 {
		return 0, fmt.Errorf("%w: time %v ms must be greater than zero", ErrValidation, ms)
	}

	us := ms * 1000
	if us > math.MaxUint32 {
		return 0, fmt.Errorf("%w: time %v ms is too large", ErrValidation, ms)
	}
	if uint32(us) == 0 {
		return 0, fmt.Errorf("%w: time %v ms is too small to be represented", ErrValidation, ms)
	}
	return uint32(us), nil
}

func micros(us uint32) time.Duration {
	return time.Duration(us) * time.Microsecond
}
