package sandbox

import (
	"errors"
	"time"
)

var (
	ErrNotCallable = errors.New("script does not evaluate to a function")
	ErrClosed      = errors.New("runtime closed")
)

// Config defines sandbox configuration
type Config struct {
	Timeout       time.Duration // Per-call execution timeout
	MaxCallStack  int           // Maximum call stack depth
	EnableConsole bool          // Allow console.log/warn/error
}

// Bridge is the host access granted to scripts.
type Bridge interface {
	Send(name string, payload interface{}) error
}

// BridgeFunc adapts a function to Bridge.
type BridgeFunc func(name string, payload interface{}) error

// Send calls f(name, payload).
func (f BridgeFunc) Send(name string, payload interface{}) error {
	return f(name, payload)
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Timeout:       2 * time.Second,
		MaxCallStack:  1024,
		EnableConsole: true,
	}
}
