package tunnel

import "errors"

// Start failures. Each is wrapped around the underlying cause, so callers
// match with errors.Is.
var (
	ErrAlreadyRunning  = errors.New("tunnel already running")
	ErrConfigInvalid   = errors.New("configuration invalid")
	ErrEngineStart     = errors.New("engine failed to start")
	ErrInterfaceConfig = errors.New("interface configuration failed")
	ErrStartTimeout    = errors.New("tunnel start timed out")
)
