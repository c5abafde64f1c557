package clock

import (
	"testing"
	"time"

	"github.com/cloudwalk/yield-streamer/internal/types"
)

func TestCounter_DayAndTime(t *testing.T) {
	// Day 100 with a 3h shift begins at unix 100*86400 + 3h.
	base := time.Unix(100*86400+3*3600, 0).UTC()
	manual := NewManual(base)
	counter := NewCounter(manual, 3*time.Hour, 24*time.Hour)

	day, elapsed, err := counter.DayAndTime()
	if err != nil {
		t.Fatalf("DayAndTime() error = %v", err)
	}
	if day != 100 {
		t.Errorf("day = %d, want 100", day)
	}
	if elapsed != 0 {
		t.Errorf("elapsed = %d, want 0", elapsed)
	}

	manual.Advance(5*time.Hour + 30*time.Second)
	day, elapsed, err = counter.DayAndTime()
	if err != nil {
		t.Fatalf("DayAndTime() error = %v", err)
	}
	if day != 100 {
		t.Errorf("day = %d, want 100", day)
	}
	if want := uint64(5*3600 + 30); elapsed != want {
		t.Errorf("elapsed = %d, want %d", elapsed, want)
	}
}

func TestCounter_BoundaryShift(t *testing.T) {
	// One second before the shifted boundary still belongs to the prior day.
	boundary := time.Unix(200*86400+3*3600, 0).UTC()
	manual := NewManual(boundary.Add(-time.Second))
	counter := NewCounter(manual, 3*time.Hour, 24*time.Hour)

	day, err := counter.CurrentDay()
	if err != nil {
		t.Fatalf("CurrentDay() error = %v", err)
	}
	if day != 199 {
		t.Errorf("day before boundary = %d, want 199", day)
	}

	manual.Set(boundary)
	day, err = counter.CurrentDay()
	if err != nil {
		t.Fatalf("CurrentDay() error = %v", err)
	}
	if day != 200 {
		t.Errorf("day at boundary = %d, want 200", day)
	}
}

func TestCounter_CustomDayLength(t *testing.T) {
	manual := NewManual(time.Unix(3700, 0))
	counter := NewCounter(manual, 0, time.Hour)

	day, elapsed, err := counter.DayAndTime()
	if err != nil {
		t.Fatalf("DayAndTime() error = %v", err)
	}
	if day != 1 {
		t.Errorf("day = %d, want 1", day)
	}
	if elapsed != 100 {
		t.Errorf("elapsed = %d, want 100", elapsed)
	}
	if counter.DaySeconds() != 3600 {
		t.Errorf("DaySeconds() = %d, want 3600", counter.DaySeconds())
	}
}

func TestCounter_BeforeEpoch(t *testing.T) {
	manual := NewManual(time.Unix(3600, 0))
	counter := NewCounter(manual, 2*time.Hour, 24*time.Hour)

	if _, _, err := counter.DayAndTime(); err == nil {
		t.Error("DayAndTime() expected error for pre-epoch clock reading")
	}
}

func TestCounter_StartOf(t *testing.T) {
	counter := NewCounter(System{}, 3*time.Hour, 24*time.Hour)

	start := counter.StartOf(types.Day(100))
	day, err := counter.DayOf(start)
	if err != nil {
		t.Fatalf("DayOf() error = %v", err)
	}
	if day != 100 {
		t.Errorf("DayOf(StartOf(100)) = %d, want 100", day)
	}

	day, err = counter.DayOf(start.Add(-time.Second))
	if err != nil {
		t.Fatalf("DayOf() error = %v", err)
	}
	if day != 99 {
		t.Errorf("DayOf(StartOf(100)-1s) = %d, want 99", day)
	}
}
