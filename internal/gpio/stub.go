//go:build !linux

package gpio

import "errors"

// RealEnabler is not available on non-Linux platforms.
type RealEnabler struct{}

// NewRealEnabler returns an error on non-Linux platforms.
func NewRealEnabler(chip string, offset int) (*RealEnabler, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetEnabled is not implemented on non-Linux platforms.
func (r *RealEnabler) SetEnabled(enabled bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealEnabler) Close() error {
	return nil
}
