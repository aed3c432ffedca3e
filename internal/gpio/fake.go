package gpio

import (
	"errors"
	"sync"
)

// FakeButton is a test double that returns scripted button states.
type FakeButton struct {
	mu sync.Mutex

	// Samples contains scripted pressed values. Each call to Pressed
	// consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Pressed()
	ReadError error
}

// NewFakeButton creates a FakeButton with the given samples.
func NewFakeButton(samples ...bool) *FakeButton {
	return &FakeButton{Samples: samples}
}

// Pressed returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeButton) Pressed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}

// Set replaces the script with a single held state.
func (f *FakeButton) Set(pressed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Samples = []bool{pressed}
	f.index = 0
}

// SetReadError sets the error returned by Pressed. Safe while another
// goroutine is polling.
func (f *FakeButton) SetReadError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReadError = err
}

// Close marks the button as closed.
func (f *FakeButton) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Reset rewinds to the beginning of samples.
func (f *FakeButton) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.Closed = false
}
