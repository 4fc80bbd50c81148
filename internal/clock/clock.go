// Package clock provides an injectable source of time so scheduling logic
// is deterministic under test (§8 seed scenarios all pin "now").
package clock

import "time"

// Clock is the time source of pkg/scheduler's Driver, for its poll deadline
// and requeue time; other components call time.Now directly.
// Production code uses Real; tests use a Fake they can advance explicitly.
type Clock interface {
	Now() time.Time
}

// Real is the Clock backed by the system wall clock.
type Real struct{}

// Now returns the current time in UTC.
func (Real) Now() time.Time { return time.Now().UTC() }

// Fake is a Clock whose value is set explicitly, for deterministic tests.
type Fake struct {
	t time.Time
}

// NewFake creates a Fake clock pinned to t.
func NewFake(t time.Time) *Fake {
	return &Fake{t: t.UTC()}
}

// Now returns the pinned time.
func (f *Fake) Now() time.Time { return f.t }

// Advance moves the pinned time forward by d.
func (f *Fake) Advance(d time.Duration) { f.t = f.t.Add(d) }

// Set pins the clock to an explicit instant.
func (f *Fake) Set(t time.Time) { f.t = t.UTC() }
