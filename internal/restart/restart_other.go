//go:build !linux

package restart

import "errors"

var errUnsupported = errors.New("not supported on this platform")

func execSelf() error { return errUnsupported }

func reboot() error { return errUnsupported }
