package actuatord

import (
	"errors"
	"fmt"

	"github.com/mdouchement/actuatord/lora"
	"github.com/mdouchement/logger"
)

var ErrUnknownCommand = errors.New("unknown command")

// A Reply overrides the default acknowledgement of a handler.
type Reply struct {
	Command string
	Payload string
}

// A Handler executes one command. It must return quickly, it runs on the radio loop.
// A nil reply with a nil error means the frame is acknowledged.
type Handler interface {
	Handle(payload string) (*Reply, error)
}

type HandlerFunc func(payload string) (*Reply, error)

func (f HandlerFunc) Handle(payload string) (*Reply, error) {
	return f(payload)
}

type route struct {
	keyword string
	handler Handler
}

// A Dispatcher routes commands to their handler, first registered match wins.
type Dispatcher struct {
	id     string
	routes []route
	log    logger.Logger
}

// NewDispatcher returns an empty Dispatcher replying as id.
func NewDispatcher(id string) *Dispatcher {
	return &Dispatcher{id: id}
}

func (d *Dispatcher) SetLogger(l logger.Logger) {
	d.log = l
}

func (d *Dispatcher) Handle(keyword string, h Handler) {
	d.routes = append(d.routes, route{keyword: keyword, handler: h})
}

func (d *Dispatcher) HandleFunc(keyword string, f func(payload string) (*Reply, error)) {
	d.Handle(keyword, HandlerFunc(f))
}

// Keywords lists the registered commands in dispatch order.
func (d *Dispatcher) Keywords() []string {
	keywords := make([]string, len(d.routes))
	for i, r := range d.routes {
		keywords[i] = r.keyword
	}
	return keywords
}

// Dispatch runs the handler of f.Command and returns the frame to send back to the sender.
// A failed handler yields no reply.
func (d *Dispatcher) Dispatch(f lora.Frame) (*lora.Frame, error) {
	for _, r := range d.routes {
		if r.keyword != f.Command {
			continue
		}

		if d.log != nil {
			d.log.Debugf("[dispatch] %s from %s with payload %q", f.Command, f.Sender, f.Payload)
		}

		reply, err := r.handler.Handle(f.Payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Command, err)
		}

		if reply == nil {
			ack := f.Ack(d.id)
			return &ack, nil
		}

		answer := f.Reply(d.id, reply.Command, reply.Payload)
		return &answer, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, f.Command)
}
