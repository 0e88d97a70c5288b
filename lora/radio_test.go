package lora_test

import (
	"bytes"
	"testing"

	"github.com/mdouchement/actuatord/lora"
	"github.com/stretchr/testify/require"
)

type loopback struct {
	bytes.Buffer
	closed bool
}

func (l *loopback) Close() error {
	l.closed = true
	return nil
}

func TestRadio(t *testing.T) {
	port := &loopback{}
	r := lora.New("x-testing", port)
	require.Equal(t, "x-testing", r.Port())

	require.NoError(t, r.Send(lora.Frame{Receiver: lora.Host, Sender: "DEV1", Command: lora.CommandReportIP, Payload: "10.0.0.2:8080"}))
	require.Equal(t, "HOST:DEV1:REPORT_IP:10.0.0.2:8080\n", port.String())

	buf := make([]byte, 64)
	n, err := r.Read(buf)
	require.NoError(t, err)

	frames, errs := lora.NewFramer(0).Write(buf[:n])
	require.Empty(t, errs)
	require.Equal(t, []lora.Frame{{Receiver: "HOST", Sender: "DEV1", Command: "REPORT_IP", Payload: "10.0.0.2:8080"}}, frames)

	require.NoError(t, r.Close())
	require.True(t, port.closed)
}
