package pwm

// FakeBackend records configurations and pushes for test assertions.
type FakeBackend struct {
	Name string

	// Configs contains every frequency passed to Configure.
	Configs []uint32

	// Pushes contains a copy of every output set passed to Push.
	Pushes [][]Output

	// ConfigureError, if set, will be returned by Configure.
	ConfigureError error

	// PushError, if set, will be returned by Push (the push is still recorded).
	PushError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeBackend creates a FakeBackend reporting name from String.
func NewFakeBackend(name string) *FakeBackend {
	return &FakeBackend{Name: name}
}

func (f *FakeBackend) String() string { return f.Name }

// Configure records the frequency.
func (f *FakeBackend) Configure(freqHz uint32) error {
	if f.ConfigureError != nil {
		return f.ConfigureError
	}
	f.Configs = append(f.Configs, freqHz)
	return nil
}

// Push records the outputs.
func (f *FakeBackend) Push(outputs []Output) error {
	cp := make([]Output, len(outputs))
	copy(cp, outputs)
	f.Pushes = append(f.Pushes, cp)
	return f.PushError
}

// Last returns the most recent push, or nil.
func (f *FakeBackend) Last() []Output {
	if len(f.Pushes) == 0 {
		return nil
	}
	return f.Pushes[len(f.Pushes)-1]
}

// Close marks the backend as closed.
func (f *FakeBackend) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded calls.
func (f *FakeBackend) Reset() {
	f.Configs = nil
	f.Pushes = nil
	f.ConfigureError = nil
	f.PushError = nil
	f.Closed = false
}
