package schedule

import (
	"math/big"
	"testing"

	apperrors "github.com/cloudwalk/yield-streamer/internal/errors"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

func day(d uint64) types.Day {
	return types.Day(d)
}

func mustConfigureRate(t *testing.T, s *Store, effectiveDay uint64, rate int64) {
	t.Helper()
	if err := s.ConfigureYieldRate(types.Day(effectiveDay), big.NewInt(rate)); err != nil {
		t.Fatalf("ConfigureYieldRate(%d, %d): %v", effectiveDay, rate, err)
	}
}

func TestConfigureYieldRate_Monotonic(t *testing.T) {
	s := NewStore()

	if err := s.ConfigureYieldRate(50, big.NewInt(100)); err != nil {
		t.Fatalf("first configure: %v", err)
	}

	// Non-monotonic effective day must fail.
	err := s.ConfigureYieldRate(40, big.NewInt(200))
	if err == nil {
		t.Fatal("expected error for non-monotonic effective day")
	}
	if ce, ok := apperrors.AsCategorized(err); !ok || ce.Code != "SCHEDULE_NOT_MONOTONIC" {
		t.Errorf("error = %v, want SCHEDULE_NOT_MONOTONIC", err)
	}

	// Equal effective day must fail too.
	if err := s.ConfigureYieldRate(50, big.NewInt(200)); err == nil {
		t.Error("expected error for equal effective day")
	}

	// Repeating the last rate is a rejected no-op.
	err = s.ConfigureYieldRate(60, big.NewInt(100))
	if err == nil {
		t.Fatal("expected error for redundant rate")
	}
	if ce, ok := apperrors.AsCategorized(err); !ok || ce.Code != "REDUNDANT_CONFIGURATION" {
		t.Errorf("error = %v, want REDUNDANT_CONFIGURATION", err)
	}

	if err := s.ConfigureYieldRate(60, big.NewInt(150)); err != nil {
		t.Fatalf("valid configure: %v", err)
	}
}

func TestRateAt(t *testing.T) {
	s := NewStore()
	mustConfigureRate(t, s, 10, 100)
	mustConfigureRate(t, s, 20, 200)
	mustConfigureRate(t, s, 30, 300)

	tests := []struct {
		day    uint64
		want   int64
		wantOK bool
	}{
		{day: 5, wantOK: false},
		{day: 10, want: 100, wantOK: true},
		{day: 15, want: 100, wantOK: true},
		{day: 20, want: 200, wantOK: true},
		{day: 29, want: 200, wantOK: true},
		{day: 30, want: 300, wantOK: true},
		{day: 1000, want: 300, wantOK: true},
	}

	for _, tt := range tests {
		rate, ok := s.RateAt(day(tt.day))
		if ok != tt.wantOK {
			t.Errorf("RateAt(%d) ok = %v, want %v", tt.day, ok, tt.wantOK)
			continue
		}
		if ok && rate.Cmp(big.NewInt(tt.want)) != 0 {
			t.Errorf("RateAt(%d) = %s, want %d", tt.day, rate, tt.want)
		}
	}
}

func TestConfigureLookBackPeriod(t *testing.T) {
	s := NewStore()

	if err := s.ConfigureLookBackPeriod(5, 0); err == nil {
		t.Error("expected error for zero length")
	}

	// Window reaching before day zero is rejected.
	if err := s.ConfigureLookBackPeriod(1, 3); err == nil {
		t.Error("expected error for window reaching before history")
	}

	if err := s.ConfigureLookBackPeriod(2, 3); err != nil {
		t.Fatalf("valid configure: %v", err)
	}

	// Only one look-back period is supported in this version.
	err := s.ConfigureLookBackPeriod(10, 5)
	if err == nil {
		t.Fatal("expected error for second look-back period")
	}
	if ce, ok := apperrors.AsCategorized(err); !ok || ce.Code != "LOOK_BACK_ALREADY_SET" {
		t.Errorf("error = %v, want LOOK_BACK_ALREADY_SET", err)
	}

	if _, ok := s.LookBackAt(day(1)); ok {
		t.Error("LookBackAt before first entry should report not configured")
	}
	if length, ok := s.LookBackAt(day(2)); !ok || length != 3 {
		t.Errorf("LookBackAt(2) = %d/%v, want 3/true", length, ok)
	}
	if length, ok := s.LookBackAt(day(500)); !ok || length != 3 {
		t.Errorf("LookBackAt(500) = %d/%v, want 3/true", length, ok)
	}
}

func TestFirstRateDay(t *testing.T) {
	s := NewStore()

	if _, ok := s.FirstRateDay(); ok {
		t.Error("FirstRateDay on empty store should report false")
	}

	mustConfigureRate(t, s, 42, 7)
	mustConfigureRate(t, s, 50, 9)

	first, ok := s.FirstRateDay()
	if !ok || first != 42 {
		t.Errorf("FirstRateDay() = %d/%v, want 42/true", first, ok)
	}
}

func TestRates_ReturnsCopies(t *testing.T) {
	s := NewStore()
	mustConfigureRate(t, s, 10, 100)

	rates := s.Rates()
	rates[0].Rate.SetInt64(999)

	rate, _ := s.RateAt(day(10))
	if rate.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("mutating a returned rate leaked into the store: %s", rate)
	}
}
