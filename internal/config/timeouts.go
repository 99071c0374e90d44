package config

import "time"

// TimeoutConfig holds the HTTP server timeouts, in whole seconds.
type TimeoutConfig struct {
	// ReadHeader bounds reading request headers. Default: 10s
	ReadHeader int `yaml:"read_header"`

	// Read bounds reading the full request. Default: 30s
	Read int `yaml:"read"`

	// Write bounds writing the response. Default: 30s
	Write int `yaml:"write"`

	// Idle is the keep-alive idle timeout. Default: 120s
	Idle int `yaml:"idle"`

	// Request is the per-request handler deadline. Default: 20s
	Request int `yaml:"request"`

	// Shutdown is the graceful shutdown budget. Default: 15s
	Shutdown int `yaml:"shutdown"`
}

// DefaultTimeoutConfig returns the default timeout configuration
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		ReadHeader: 10,
		Read:       30,
		Write:      30,
		Idle:       120,
		Request:    20,
		Shutdown:   15,
	}
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func (t TimeoutConfig) ReadHeaderTimeout() time.Duration { return seconds(t.ReadHeader, 10) }
func (t TimeoutConfig) ReadTimeout() time.Duration       { return seconds(t.Read, 30) }
func (t TimeoutConfig) WriteTimeout() time.Duration      { return seconds(t.Write, 30) }
func (t TimeoutConfig) IdleTimeout() time.Duration       { return seconds(t.Idle, 120) }
func (t TimeoutConfig) RequestTimeout() time.Duration    { return seconds(t.Request, 20) }
func (t TimeoutConfig) ShutdownTimeout() time.Duration   { return seconds(t.Shutdown, 15) }
