package actuatord

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// MaxEventSize bounds the size of one monitor event.
const MaxEventSize = 512 << 10

var ErrEventTooLarge = errors.New("event too large")

// An EventReader splits a monitor stream into events. Events are terminated by an empty line.
type EventReader struct {
	r   *bufio.Reader
	buf bytes.Buffer
}

func NewEventReader(r io.Reader) *EventReader {
	return &EventReader{r: bufio.NewReader(r)}
}

// Next returns the next event payload. An optional "data:" field prefix is removed.
func (e *EventReader) Next() ([]byte, error) {
	e.buf.Reset()

	for {
		line, err := e.r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			err = nil
		}
		if err != nil {
			if len(line) > 0 || e.buf.Len() > 0 {
				e.buf.Write(line)
				return e.payload(), err
			}
			return nil, err
		}

		if len(bytes.TrimRight(line, "\r\n")) == 0 {
			if e.buf.Len() == 0 {
				continue // Keep-alive
			}
			return e.payload(), nil
		}

		if e.buf.Len()+len(line) > MaxEventSize {
			return nil, ErrEventTooLarge
		}
		line = bytes.TrimPrefix(line, []byte("data:"))
		line = bytes.TrimPrefix(line, []byte(" "))
		e.buf.Write(line)
	}
}

func (e *EventReader) payload() []byte {
	payload := bytes.TrimRight(e.buf.Bytes(), "\r\n")
	return bytes.Clone(payload)
}
