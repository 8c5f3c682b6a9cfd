package telemetry

// Config holds tracing configuration.
type Config struct {
	// Enabled indicates whether spans are created at all. When false,
	// Tracer returns a no-op tracer and every helper becomes a no-op.
	Enabled bool

	// ServiceName is reported on the tracer provider's resource.
	ServiceName string

	// SampleRate is the trace sampling rate (0.0 to 1.0). 1.0 samples
	// every trace, 0.0 samples none.
	SampleRate float64
}

// DefaultConfig returns a default configuration with tracing disabled.
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		ServiceName: "raid5-coordinator",
		SampleRate:  1.0,
	}
}
