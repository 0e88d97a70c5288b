package actuatord

import (
	"context"
	"sync"
)

// SignalBits is a set of lifecycle signal bits.
type SignalBits uint8

const (
	SignalStartUpdate SignalBits = 1 << iota
	SignalStopUpdate
)

// A Signal is a set of one-shot event bits.
// Setting an already set bit has no effect, waiting consumes the awaited bits.
type Signal struct {
	sync   sync.Mutex
	bits   SignalBits
	wakeUp chan struct{}
}

func NewSignal() *Signal {
	return &Signal{
		wakeUp: make(chan struct{}, 1),
	}
}

// Set raises bits and wakes up a waiter.
func (s *Signal) Set(bits SignalBits) {
	s.sync.Lock()
	s.bits |= bits
	s.sync.Unlock()

	select {
	case s.wakeUp <- struct{}{}:
	default:
	}
}

// Take clears and returns the raised bits among mask without blocking.
func (s *Signal) Take(mask SignalBits) SignalBits {
	s.sync.Lock()
	defer s.sync.Unlock()

	bits := s.bits & mask
	s.bits &^= bits
	return bits
}

// Peek returns the raised bits without clearing them.
func (s *Signal) Peek() SignalBits {
	s.sync.Lock()
	defer s.sync.Unlock()

	return s.bits
}

// Wait blocks until at least one bit of mask is raised, then clears and returns them.
func (s *Signal) Wait(ctx context.Context, mask SignalBits) (SignalBits, error) {
	for {
		if bits := s.Take(mask); bits != 0 {
			return bits, nil
		}

		select {
		case <-s.wakeUp:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
