package lora_test

import (
	"strings"
	"testing"

	"github.com/mdouchement/actuatord/lora"
	"github.com/stretchr/testify/require"
)

func TestFramer(t *testing.T) {
	f := lora.NewFramer(0)

	frames, errs := f.Write([]byte("DEV1:HOST:FORWARD:\nDEV2:HOST:STOP:\r\nbogus\nALL:HOST:STEP_MODE:1\n"))
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], lora.ErrFrameFormat)
	require.Equal(t, []lora.Frame{
		{Receiver: "DEV1", Sender: "HOST", Command: "FORWARD"},
		{Receiver: "DEV2", Sender: "HOST", Command: "STOP"},
		{Receiver: "ALL", Sender: "HOST", Command: "STEP_MODE", Payload: "1"},
	}, frames)
	require.Zero(t, f.Buffered())
}

func TestFramerPartial(t *testing.T) {
	f := lora.NewFramer(0)

	frames, errs := f.Write([]byte("DEV1:HO"))
	require.Empty(t, frames)
	require.Empty(t, errs)
	require.Equal(t, 7, f.Buffered())

	frame, err := f.Push('S')
	require.NoError(t, err)
	require.Nil(t, frame)

	frames, errs = f.Write([]byte("T:STOP:\n"))
	require.Empty(t, errs)
	require.Equal(t, []lora.Frame{{Receiver: "DEV1", Sender: "HOST", Command: "STOP"}}, frames)
}

func TestFramerLineTooLong(t *testing.T) {
	f := lora.NewFramer(16)

	frames, errs := f.Write([]byte(strings.Repeat("X", 40)))
	require.Empty(t, frames)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], lora.ErrLineTooLong)
	require.Zero(t, f.Buffered())

	// The tail of the oversized line is dropped with its terminator.
	frames, errs = f.Write([]byte("A:B:C:D\nDEV1:HOST:STOP:\n"))
	require.Empty(t, errs)
	require.Equal(t, []lora.Frame{{Receiver: "DEV1", Sender: "HOST", Command: "STOP"}}, frames)
}

func TestFramerLimit(t *testing.T) {
	f := lora.NewFramer(15)

	// Exactly at the limit.
	frames, errs := f.Write([]byte("DEV1:HOST:STOP:\n"))
	require.Empty(t, errs)
	require.Len(t, frames, 1)
}
