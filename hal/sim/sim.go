// Package sim provides in-memory peripherals. It should only be used for dev & tests.
package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mdouchement/actuatord/motion"
)

var ErrTimerUnavailable = errors.New("sim: timer unavailable")

// ChannelState is the recorded configuration of a PWM channel.
type ChannelState struct {
	Frequency  uint32
	Duty       float64
	SyncSource bool
	Follows    *motion.Channel
	Offset     uint32
	Running    bool
	Starts     int
	Stops      int
	Triggers   int
}

// A PWM records every call made on a dual-channel PWM peripheral.
type PWM struct {
	sync     sync.Mutex
	channels [2]ChannelState
}

func NewPWM() *PWM {
	return &PWM{}
}

func (p *PWM) channel(ch motion.Channel) (*ChannelState, error) {
	if int(ch) >= len(p.channels) {
		return nil, fmt.Errorf("sim: unknown channel %d", ch)
	}
	return &p.channels[ch], nil
}

func (p *PWM) do(ch motion.Channel, f func(c *ChannelState)) error {
	p.sync.Lock()
	defer p.sync.Unlock()

	c, err := p.channel(ch)
	if err != nil {
		return err
	}
	f(c)
	return nil
}

func (p *PWM) SetFrequency(ch motion.Channel, hz uint32) error {
	return p.do(ch, func(c *ChannelState) { c.Frequency = hz })
}

func (p *PWM) SetDuty(ch motion.Channel, percent float64) error {
	return p.do(ch, func(c *ChannelState) { c.Duty = percent })
}

func (p *PWM) SetSyncSource(ch motion.Channel) error {
	return p.do(ch, func(c *ChannelState) {
		c.SyncSource = true
		c.Follows = nil
		c.Offset = 0
	})
}

func (p *PWM) SetSyncFollower(ch, source motion.Channel, offset uint32) error {
	return p.do(ch, func(c *ChannelState) {
		c.SyncSource = false
		c.Follows = &source
		c.Offset = offset
	})
}

func (p *PWM) TriggerSync(ch motion.Channel) error {
	return p.do(ch, func(c *ChannelState) { c.Triggers++ })
}

func (p *PWM) Start(ch motion.Channel) error {
	return p.do(ch, func(c *ChannelState) {
		c.Running = true
		c.Starts++
	})
}

func (p *PWM) Stop(ch motion.Channel) error {
	return p.do(ch, func(c *ChannelState) {
		c.Running = false
		c.Stops++
	})
}

// State returns a copy of the channel state.
func (p *PWM) State(ch motion.Channel) ChannelState {
	p.sync.Lock()
	defer p.sync.Unlock()

	c, err := p.channel(ch)
	if err != nil {
		return ChannelState{}
	}
	return *c
}

// Regulator is a 10-bit boost regulator channel.
type Regulator struct {
	sync sync.Mutex
	duty uint32
	max  uint32
}

func NewRegulator() *Regulator {
	return &Regulator{max: 1023}
}

func (r *Regulator) SetDuty(value uint32) error {
	r.sync.Lock()
	defer r.sync.Unlock()

	if value > r.max {
		return fmt.Errorf("sim: duty %d exceeds %d", value, r.max)
	}
	r.duty = value
	return nil
}

func (r *Regulator) MaxDuty() uint32 {
	return r.max
}

func (r *Regulator) Duty() uint32 {
	r.sync.Lock()
	defer r.sync.Unlock()

	return r.duty
}

// Line is a digital output. It serves both as amplifier enable line and as LED output.
type Line struct {
	sync    sync.Mutex
	high    bool
	changes int
}

func (l *Line) Set(high bool) error {
	l.sync.Lock()
	defer l.sync.Unlock()

	if l.high != high {
		l.changes++
	}
	l.high = high
	return nil
}

func (l *Line) High() bool {
	l.sync.Lock()
	defer l.sync.Unlock()

	return l.high
}

// Changes returns the number of level transitions.
func (l *Line) Changes() int {
	l.sync.Lock()
	defer l.sync.Unlock()

	return l.changes
}
