package actuatord

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.yaml.in/yaml/v4"
)

// Duration is a time.Duration serialized as a string such as "10ms".
// A bare number is read as milliseconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	var v any
	err := json.Unmarshal(data, &v)
	if err != nil {
		return err
	}

	switch v := v.(type) {
	case float64:
		d.Duration = millis(v)
		return nil
	case string:
		return d.parse(v)
	default:
		return fmt.Errorf("invalid duration: %s", data)
	}
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	err := value.Decode(&str)
	if err != nil {
		return err
	}

	return d.parse(str)
}

func (d *Duration) parse(str string) error {
	if str == "" {
		return nil
	}

	if ms, err := strconv.ParseFloat(str, 64); err == nil {
		d.Duration = millis(ms)
		return nil
	}

	var err error
	d.Duration, err = time.ParseDuration(str)
	return err
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
