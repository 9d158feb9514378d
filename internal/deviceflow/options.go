package deviceflow

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the device flow implementation
type Option func(*Flow)

// WithDefaultExpiry sets the session lifetime used when the provider omits expires_in
func WithDefaultExpiry(d time.Duration) Option {
	return func(f *Flow) {
		f.defaultExpiry = d
	}
}

// WithLogger sets the logger for flow transitions
func WithLogger(logger *zap.Logger) Option {
	return func(f *Flow) {
		f.logger = logger
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *Metrics) Option {
	return func(f *Flow) {
		f.metrics = m
	}
}
