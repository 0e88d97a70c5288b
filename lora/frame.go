package lora

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFrameFormat = errors.New("invalid frame format")
	ErrLineTooLong = errors.New("line too long")
)

// A Frame is one protocol line: RECEIVER:SENDER:COMMAND:PAYLOAD.
type Frame struct {
	Receiver string `json:"receiver"`
	Sender   string `json:"sender"`
	Command  string `json:"command"`
	Payload  string `json:"payload"`
}

// Parse decodes a line without its terminator.
// Only the three first colons are separators, the payload may contain more.
func Parse(line string) (Frame, error) {
	parts := strings.SplitN(line, string(CommSeparator), 4)
	if len(parts) != 4 {
		return Frame{}, fmt.Errorf("%w: %q", ErrFrameFormat, line)
	}
	if parts[0] == "" {
		return Frame{}, fmt.Errorf("%w: empty receiver: %q", ErrFrameFormat, line)
	}

	return Frame{
		Receiver: parts[0],
		Sender:   parts[1],
		Command:  strings.TrimSpace(parts[2]),
		Payload:  strings.TrimSpace(parts[3]),
	}, nil
}

// IsFor reports whether the frame is addressed to id, directly or by broadcast.
func (f Frame) IsFor(id string) bool {
	return f.Receiver == id || f.Receiver == Broadcast
}

// String returns the wire representation, terminator included.
func (f Frame) String() string {
	return f.Receiver + ":" + f.Sender + ":" + f.Command + ":" + f.Payload + string(CommEndCharacter)
}

// Reply builds a frame from localID back to the sender of f.
func (f Frame) Reply(localID, command, payload string) Frame {
	return Frame{
		Receiver: f.Sender,
		Sender:   localID,
		Command:  command,
		Payload:  payload,
	}
}

// Ack builds the acknowledgement of f.
// The payload is the received command, followed by ':' and its payload when there is one.
func (f Frame) Ack(localID string) Frame {
	payload := f.Command
	if f.Payload != "" {
		payload += string(CommSeparator) + f.Payload
	}
	return f.Reply(localID, CommandAck, payload)
}
