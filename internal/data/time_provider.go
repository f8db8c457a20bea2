package data

import "time"

// TimeProvider supplies timestamps for persisted rows; tests swap in a fixed clock.
type TimeProvider interface {
	Now() time.Time
	// FormatForDB formats a time for database insertion.
	FormatForDB(t time.Time) string
}

// RealTimeProvider implements TimeProvider using system time.
type RealTimeProvider struct{}

func (r *RealTimeProvider) Now() time.Time { return time.Now() }

func (r *RealTimeProvider) FormatForDB(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// FixedTimeProvider always reports the same instant.
type FixedTimeProvider struct {
	fixedTime time.Time
}

// NewFixedTimeProvider creates a FixedTimeProvider at t.
func NewFixedTimeProvider(t time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{fixedTime: t}
}

func (f *FixedTimeProvider) Now() time.Time { return f.fixedTime }

func (f *FixedTimeProvider) FormatForDB(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }
