package actuatord

import (
	"context"
	"time"

	"github.com/mdouchement/actuatord/indicator"
	"github.com/mdouchement/actuatord/lora"
	"github.com/mdouchement/actuatord/motion"
)

type Motion interface {
	MoveForward() error
	MoveBackward() error
	Stop() error
	SetGlobalVoltage(v int) error
	SetGlobalDutyCycle(duty float64) error
	SetForwardFreq(freq uint32) error
	SetForwardPhase(phase float64) error
	SetBackwardFreq(freq uint32) error
	SetBackwardPhase(phase float64) error
	SetStepTime(ms float64) error
	SetStillTime(ms float64) error
	SwapDirection() bool
	IsDirectionReversed() bool
	EnableStepMode(enable bool) error
	ParamsString() string
	Snapshot() motion.Status
}

type Indicator interface {
	Set(state indicator.State) error
	State() indicator.State
	Update() error
}

// Radio is the frame link to the host.
type Radio interface {
	Read(p []byte) (int, error)
	Send(f lora.Frame) error
}

// UpdateService is the network firmware update endpoint.
type UpdateService interface {
	Begin() error
	End(ctx context.Context) error
	Addr() string
	Updated() <-chan struct{}
}

// Status is the snapshot published on the monitor socket.
type Status struct {
	DeviceID  string        `json:"device_id"`
	Indicator string        `json:"indicator"`
	Updating  bool          `json:"updating"`
	UpdateURL string        `json:"update_url,omitempty"`
	Motion    motion.Status `json:"motion"`
	Frames    uint64        `json:"frames"`
	Errors    uint64        `json:"errors"`
	At        time.Time     `json:"at"`
}

const (
	eventRefreshWatchers = "refresh-watchers"
	eventWatch           = "watch"
	eventUnwatch         = "unwatch"
)

type event struct {
	name      string
	monitorID int64
	monitor   chan<- []byte
}

func genID() int64 {
	time.Sleep(time.Nanosecond)
	return time.Now().UnixNano()
}
