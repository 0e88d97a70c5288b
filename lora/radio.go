package lora

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mdouchement/logger"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var ErrNotFound = errors.New("radio module not found/plugged")

// Port is the byte link to the radio module in transparent mode.
type Port interface {
	io.ReadWriteCloser
}

// A Radio sends frames to and reads raw bytes from the radio module.
// Send is safe for concurrent use, Read must only be called from one goroutine.
type Radio struct {
	sync  sync.Mutex
	pname string
	port  Port
	log   logger.Logger
}

// OpenAuto opens the first serial adapter matching the given USB identifier (VID:PID).
func OpenAuto(usbID string, baudRate int) (*Radio, error) {
	vid, pid, ok := strings.Cut(strings.ToLower(usbID), ":")
	if !ok {
		return nil, fmt.Errorf("invalid usb id %q, expected VID:PID", usbID)
	}

	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	for _, p := range ports {
		if p.IsUSB && strings.ToLower(p.VID) == vid && strings.ToLower(p.PID) == pid {
			return Open(p.Name, baudRate)
		}
	}

	return nil, ErrNotFound
}

// Open opens the serial port of the radio module, 8N1.
func Open(name string, baudRate int) (*Radio, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}

	if err = port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		return nil, err
	}

	if err = port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, err
	}

	return New(name, port), nil
}

// New wraps an already opened port.
func New(name string, port Port) *Radio {
	return &Radio{
		pname: name,
		port:  port,
	}
}

func (r *Radio) SetLogger(l logger.Logger) {
	r.log = l
}

func (r *Radio) Port() string {
	return r.pname
}

func (r *Radio) Close() error {
	return r.port.Close()
}

// Read reads the available bytes. A read timeout is reported as (0, nil).
func (r *Radio) Read(p []byte) (int, error) {
	return r.port.Read(p)
}

// Send writes the frame as a single line.
func (r *Radio) Send(f Frame) error {
	return r.SendRaw([]byte(f.String()))
}

// SendRaw writes raw bytes to the radio module.
func (r *Radio) SendRaw(p []byte) error {
	r.sync.Lock()
	defer r.sync.Unlock()

	n, err := r.port.Write(p)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("write: short write %d of %d", n, len(p))
	}

	if r.log != nil {
		r.log.Debugf("[radio] sent: %s", strings.TrimRight(string(p), "\r\n"))
	}
	return nil
}

// Ports lists the serial ports of the host.
func Ports() ([]*enumerator.PortDetails, error) {
	return enumerator.GetDetailedPortsList()
}
