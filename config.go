package actuatord

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/mdouchement/actuatord/environment"
	"github.com/mdouchement/actuatord/lora"
	"github.com/mdouchement/actuatord/motion"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Debug         bool            `yaml:"debug"`
	Socket        string          `yaml:"socket"`
	IdentityStore string          `yaml:"identity_store"`
	Radio         RadioConfig     `yaml:"radio"`
	Update        UpdateConfig    `yaml:"update"`
	Indicator     IndicatorConfig `yaml:"indicator"`
	Motion        MotionConfig    `yaml:"motion"`
}

type RadioConfig struct {
	// Port is the serial device, or "auto" to look it up by USBID.
	Port          string   `yaml:"port"`
	USBID         string   `yaml:"usb_id"`
	BaudRate      int      `yaml:"baud_rate"`
	MaxLineLength int      `yaml:"max_line_length"`
	Poll          Duration `yaml:"poll"`
}

type UpdateConfig struct {
	Listen       string   `yaml:"listen"`
	ImagePath    string   `yaml:"image_path"`
	MaxImageSize int64    `yaml:"max_image_size"`
	Poll         Duration `yaml:"poll"`
}

type IndicatorConfig struct {
	Poll Duration `yaml:"poll"`
}

type MotionConfig struct {
	Voltage   int          `yaml:"voltage"`
	Duty      float64      `yaml:"duty"`
	Forward   DriveSetting `yaml:"forward"`
	Backward  DriveSetting `yaml:"backward"`
	Reversed  bool         `yaml:"reversed"`
	StepMode  bool         `yaml:"step_mode"`
	StepTime  Duration     `yaml:"step_time"`
	StillTime Duration     `yaml:"still_time"`
}

type DriveSetting struct {
	Frequency uint32  `yaml:"frequency"`
	Phase     float64 `yaml:"phase"`
}

// PortAuto makes the daemon look up the radio serial adapter by USB identifier.
const PortAuto = "auto"

// DefaultConfig returns the settings used for every omitted field.
func DefaultConfig() Config {
	p := motion.DefaultParameters()

	return Config{
		Socket:        environment.RuntimePath("actuatord.sock"),
		IdentityStore: environment.StatePath("identity.yml"),
		Radio: RadioConfig{
			Port:          PortAuto,
			USBID:         "1a86:7523",
			BaudRate:      lora.DefaultBaudRate,
			MaxLineLength: lora.DefaultMaxLineLength,
			Poll:          Duration{10 * time.Millisecond},
		},
		Update: UpdateConfig{
			Listen:    ":8080",
			ImagePath: environment.StatePath("actuatord.next"),
			Poll:      Duration{5 * time.Millisecond},
		},
		Indicator: IndicatorConfig{
			Poll: Duration{20 * time.Millisecond},
		},
		Motion: MotionConfig{
			Voltage:   p.Voltage,
			Duty:      p.Duty,
			Forward:   DriveSetting{Frequency: p.ForwardFreq, Phase: p.ForwardPhase},
			Backward:  DriveSetting{Frequency: p.BackwardFreq, Phase: p.BackwardPhase},
			Reversed:  p.Reversed,
			StepMode:  p.StepMode,
			StepTime:  Duration{time.Duration(p.StepTime) * time.Microsecond},
			StillTime: Duration{time.Duration(p.StillTime) * time.Microsecond},
		},
	}
}

func Load(path string) (Config, error) {
	c := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return c, err
	}
	defer f.Close()

	codec := yaml.NewDecoder(f)
	err = codec.Decode(&c)
	if err != nil && !errors.Is(err, io.EOF) {
		return c, err
	}

	return c, c.Validate()
}

var reUSBID = regexp.MustCompile(`^[0-9a-fA-F]{4}:[0-9a-fA-F]{4}$`)

func (c Config) Validate() error {
	if c.Socket == "" {
		return errors.New("socket: must be provided")
	}
	if c.IdentityStore == "" {
		return errors.New("identity_store: must be provided")
	}

	if c.Radio.Port == "" {
		return errors.New("radio: port must be provided")
	}
	if c.Radio.Port == PortAuto && !reUSBID.MatchString(c.Radio.USBID) {
		return fmt.Errorf("radio: invalid usb_id %q, expected VID:PID", c.Radio.USBID)
	}
	if c.Radio.BaudRate <= 0 {
		return fmt.Errorf("radio: invalid baud_rate %d", c.Radio.BaudRate)
	}
	if c.Radio.MaxLineLength < 16 {
		return fmt.Errorf("radio: max_line_length %d is too small", c.Radio.MaxLineLength)
	}

	if c.Update.Listen == "" {
		return errors.New("update: listen must be provided")
	}
	if c.Update.ImagePath == "" {
		return errors.New("update: image_path must be provided")
	}
	if c.Update.MaxImageSize < 0 {
		return errors.New("update: max_image_size must be positive")
	}

	for name, d := range map[string]Duration{
		"radio: poll":     c.Radio.Poll,
		"update: poll":    c.Update.Poll,
		"indicator: poll": c.Indicator.Poll,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("%s: must be greater than zero", name)
		}
	}

	if _, err := c.Motion.Parameters(); err != nil {
		return fmt.Errorf("motion: %w", err)
	}
	return nil
}

// Parameters converts the motion settings into engine parameters.
func (m MotionConfig) Parameters() (motion.Parameters, error) {
	p := motion.Parameters{
		Voltage:       m.Voltage,
		Duty:          m.Duty,
		ForwardFreq:   m.Forward.Frequency,
		ForwardPhase:  m.Forward.Phase,
		BackwardFreq:  m.Backward.Frequency,
		BackwardPhase: m.Backward.Phase,
		Reversed:      m.Reversed,
		StepMode:      m.StepMode,
	}

	var err error
	p.StepTime, err = motion.MillisToMicros(float64(m.StepTime.Duration) / float64(time.Millisecond))
	if err != nil {
		return p, fmt.Errorf("step_time: %w", err)
	}
	p.StillTime, err = motion.MillisToMicros(float64(m.StillTime.Duration) / float64(time.Millisecond))
	if err != nil {
		return p, fmt.Errorf("still_time: %w", err)
	}

	return p, p.Validate()
}
