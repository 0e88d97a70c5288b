package lora

// A Framer accumulates bytes into lines and decodes them into frames.
// It is not safe for concurrent use.
type Framer struct {
	// MaxLineLength bounds the buffered line, DefaultMaxLineLength when zero.
	MaxLineLength int

	buf      []byte
	overflow bool
}

func NewFramer(maxLineLength int) *Framer {
	if maxLineLength <= 0 {
		maxLineLength = DefaultMaxLineLength
	}

	return &Framer{
		MaxLineLength: maxLineLength,
		buf:           make([]byte, 0, maxLineLength),
	}
}

func (f *Framer) limit() int {
	if f.MaxLineLength <= 0 {
		return DefaultMaxLineLength
	}
	return f.MaxLineLength
}

// Push feeds one byte. It returns a frame when b completes a valid line.
//
// A malformed line yields ErrFrameFormat. A line exceeding the limit yields ErrLineTooLong once,
// then everything is discarded up to the next terminator.
func (f *Framer) Push(b byte) (*Frame, error) {
	if b == CommEndCharacter {
		defer f.Reset()

		if f.overflow {
			return nil, nil
		}

		line := f.buf
		if n := len(line); n > 0 && line[n-1] == CommAltEndCharacter {
			line = line[:n-1]
		}

		frame, err := Parse(string(line))
		if err != nil {
			return nil, err
		}
		return &frame, nil
	}

	if f.overflow {
		return nil, nil
	}

	if len(f.buf) >= f.limit() {
		f.overflow = true
		f.buf = f.buf[:0]
		return nil, ErrLineTooLong
	}

	f.buf = append(f.buf, b)
	return nil, nil
}

// Write feeds p and returns every completed frame along with the errors of discarded lines.
func (f *Framer) Write(p []byte) ([]Frame, []error) {
	var (
		frames []Frame
		errs   []error
	)
	for _, b := range p {
		frame, err := f.Push(b)
		if err != nil {
			errs = append(errs, err)
		}
		if frame != nil {
			frames = append(frames, *frame)
		}
	}

	return frames, errs
}

// Reset drops the partial line.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.overflow = false
}

// Buffered returns the length of the partial line.
func (f *Framer) Buffered() int {
	return len(f.buf)
}
