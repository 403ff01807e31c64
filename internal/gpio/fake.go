package gpio

// FakeEnabler is a test double that records output-enable transitions.
type FakeEnabler struct {
	// History holds every value passed to SetEnabled, in order.
	History []bool

	// Closed tracks if Close was called
	Closed bool

	// SetError, if set, will be returned by SetEnabled()
	SetError error
}

// NewFakeEnabler creates a FakeEnabler.
func NewFakeEnabler() *FakeEnabler {
	return &FakeEnabler{}
}

// SetEnabled records the requested state.
func (f *FakeEnabler) SetEnabled(enabled bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.History = append(f.History, enabled)
	return nil
}

// Enabled reports the last recorded state; false before any call.
func (f *FakeEnabler) Enabled() bool {
	if len(f.History) == 0 {
		return false
	}
	return f.History[len(f.History)-1]
}

// Close marks the enabler as closed.
func (f *FakeEnabler) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded history.
func (f *FakeEnabler) Reset() {
	f.History = nil
	f.Closed = false
	f.SetError = nil
}
