// Package clock derives accounting-day indexes from wall-clock time.
//
// An accounting day is floor((now - epochShift) / dayLength). The epoch shift
// moves the business-day boundary away from midnight UTC and is configuration,
// not a hard-coded constant.
package clock

import (
	"sync"
	"time"

	apperrors "github.com/cloudwalk/yield-streamer/internal/errors"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

// Clock supplies the current time. The system clock backs production; tests
// use the manual clock.
type Clock interface {
	Now() time.Time
}

// System is the wall-clock implementation of Clock.
type System struct{}

// Now returns the current wall-clock time.
func (System) Now() time.Time {
	return time.Now()
}

// Manual is a settable clock for tests.
type Manual struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManual creates a manual clock starting at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

// Now returns the clock's current time.
func (m *Manual) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Counter converts clock readings into accounting-day indexes.
type Counter struct {
	clock      Clock
	epochShift time.Duration
	dayLength  time.Duration
}

// NewCounter creates a day counter. dayLength must be positive; epochShift
// must not be negative.
func NewCounter(c Clock, epochShift, dayLength time.Duration) *Counter {
	if dayLength <= 0 {
		panic("clock: day length must be positive")
	}
	if epochShift < 0 {
		panic("clock: epoch shift must not be negative")
	}
	return &Counter{clock: c, epochShift: epochShift, dayLength: dayLength}
}

// DaySeconds returns the length of one accounting day in seconds.
func (c *Counter) DaySeconds() uint64 {
	return uint64(c.dayLength / time.Second)
}

// DayAndTime returns the current accounting day and the number of seconds
// elapsed within it.
func (c *Counter) DayAndTime() (types.Day, uint64, error) {
	shifted := c.clock.Now().Add(-c.epochShift).Unix()
	if shifted < 0 {
		return 0, 0, apperrors.NewValueOverflowError("day index", "clock reads before the accounting epoch")
	}

	daySeconds := int64(c.DaySeconds())
	return types.Day(shifted / daySeconds), uint64(shifted % daySeconds), nil
}

// CurrentDay returns the current accounting day.
func (c *Counter) CurrentDay() (types.Day, error) {
	day, _, err := c.DayAndTime()
	return day, err
}

// DayOf returns the accounting day a timestamp falls into.
func (c *Counter) DayOf(t time.Time) (types.Day, error) {
	shifted := t.Add(-c.epochShift).Unix()
	if shifted < 0 {
		return 0, apperrors.NewValueOverflowError("day index", "timestamp before the accounting epoch")
	}
	return types.Day(shifted / int64(c.DaySeconds())), nil
}

// StartOf returns the wall-clock instant an accounting day begins.
func (c *Counter) StartOf(day types.Day) time.Time {
	return time.Unix(int64(day)*int64(c.DaySeconds()), 0).Add(c.epochShift)
}
