// README: Clock abstraction and local temporal buckets (hour of day, weekday).
package timeutil

import (
	"sync"
	"time"
)

// DefaultZone is the IANA zone the temporal buckets are computed in.
const DefaultZone = "Asia/Baghdad"

// Clock provides the current time; injected so bucket defaults are testable.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Safe for concurrent use.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// LoadZone resolves name via the tz database. Baghdad has had no DST since 2008,
// so a fixed UTC+3 zone stands in when tzdata is missing from the host.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc, nil
	}
	if name == DefaultZone {
		return time.FixedZone("AST", 3*60*60), nil
	}
	return nil, err
}

// Buckets returns the local hour (0-23) and weekday (0-6, Sunday = 0) of t in loc.
func Buckets(t time.Time, loc *time.Location) (hour, weekday int) {
	local := t.In(loc)
	return local.Hour(), int(local.Weekday())
}
