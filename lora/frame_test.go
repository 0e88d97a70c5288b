package lora_test

import (
	"testing"

	"github.com/mdouchement/actuatord/lora"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		frame lora.Frame
		err   error
	}{
		{
			name:  "no payload",
			line:  "DEV1:HOST:STOP:",
			frame: lora.Frame{Receiver: "DEV1", Sender: "HOST", Command: "STOP"},
		},
		{
			name:  "payload with colons",
			line:  "DEV1:HOST:SET_BATCH_PARAMS:VOLTAGE:40;DUTY:60.0",
			frame: lora.Frame{Receiver: "DEV1", Sender: "HOST", Command: "SET_BATCH_PARAMS", Payload: "VOLTAGE:40;DUTY:60.0"},
		},
		{
			name:  "trimmed command and payload",
			line:  "ALL:HOST: SET_PARAMS : VOLTAGE,12 ",
			frame: lora.Frame{Receiver: "ALL", Sender: "HOST", Command: "SET_PARAMS", Payload: "VOLTAGE,12"},
		},
		{
			name: "two colons",
			line: "DEV1:HOST:STOP",
			err:  lora.ErrFrameFormat,
		},
		{
			name: "empty receiver",
			line: ":HOST:STOP:",
			err:  lora.ErrFrameFormat,
		},
		{
			name: "empty",
			line: "",
			err:  lora.ErrFrameFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := lora.Parse(tt.line)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.frame, frame)
		})
	}
}

func TestIsFor(t *testing.T) {
	require.True(t, lora.Frame{Receiver: "DEV1"}.IsFor("DEV1"))
	require.True(t, lora.Frame{Receiver: "ALL"}.IsFor("DEV2"))
	require.False(t, lora.Frame{Receiver: "DEV2"}.IsFor("DEV1"))
	require.False(t, lora.Frame{Receiver: "dev1"}.IsFor("DEV1"))
}

func TestAck(t *testing.T) {
	f := lora.Frame{Receiver: "ALL", Sender: "HOST", Command: "SET_PARAMS", Payload: "DUTY,20"}
	require.Equal(t, "HOST:DEV1:ACK:SET_PARAMS:DUTY,20\n", f.Ack("DEV1").String())

	f = lora.Frame{Receiver: "DEV1", Sender: "HOST", Command: "STOP"}
	require.Equal(t, "HOST:DEV1:ACK:STOP\n", f.Ack("DEV1").String())

	reply := f.Reply("DEV1", lora.CommandParams, "VOLTAGE:0")
	require.Equal(t, lora.Frame{Receiver: "HOST", Sender: "DEV1", Command: "PARAMS", Payload: "VOLTAGE:0"}, reply)
}
