// Package schedule holds the effective-dated yield configuration: the yield
// rate list and the look-back period list. Both lists are append-only and
// strictly increasing by effective day.
//
// The look-back list currently accepts a single entry. The storage and lookup
// paths already handle multiple effective-dated entries, so lifting the
// restriction only requires removing the guard in ConfigureLookBackPeriod.
package schedule

import (
	"math/big"
	"sort"
	"sync"

	apperrors "github.com/cloudwalk/yield-streamer/internal/errors"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

// Store is the in-memory schedule. All mutations are serialized by a single
// writer lock; lookups take the read lock and use binary search.
type Store struct {
	mu        sync.RWMutex
	rates     []types.YieldRateRecord
	lookBacks []types.LookBackRecord
}

// NewStore creates an empty schedule store.
func NewStore() *Store {
	return &Store{}
}

// ConfigureYieldRate appends a yield rate taking effect on effectiveDay.
// The effective day must be strictly greater than the last configured entry
// and the rate must differ from the last configured rate.
func (s *Store) ConfigureYieldRate(effectiveDay types.Day, rate *big.Int) error {
	if rate == nil || rate.Sign() < 0 {
		return apperrors.NewInvalidParameterError("rate", "must be a non-negative integer")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.rates); n > 0 {
		last := s.rates[n-1]
		if effectiveDay <= last.EffectiveDay {
			return apperrors.NewScheduleNotMonotonicError("yield rate", effectiveDay, last.EffectiveDay)
		}
		if rate.Cmp(last.Rate) == 0 {
			return apperrors.NewRedundantConfigurationError("yield rate", rate.String())
		}
	}

	s.rates = append(s.rates, types.YieldRateRecord{
		EffectiveDay: effectiveDay,
		Rate:         types.CopyBig(rate),
	})
	return nil
}

// ConfigureLookBackPeriod appends a look-back period taking effect on
// effectiveDay. The window must not reach before any history can exist, so
// effectiveDay must be at least length-1.
func (s *Store) ConfigureLookBackPeriod(effectiveDay types.Day, length uint64) error {
	if length == 0 {
		return apperrors.NewInvalidLookBackError(effectiveDay, length, "length must be positive")
	}
	if uint64(effectiveDay) < length-1 {
		return apperrors.NewInvalidLookBackError(effectiveDay, length, "window would reach before any history exists")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.lookBacks); n > 0 {
		// Current-version limitation: a single look-back period only.
		if effectiveDay <= s.lookBacks[n-1].EffectiveDay {
			return apperrors.NewScheduleNotMonotonicError("look-back", effectiveDay, s.lookBacks[n-1].EffectiveDay)
		}
		return apperrors.NewLookBackAlreadySetError()
	}

	s.lookBacks = append(s.lookBacks, types.LookBackRecord{
		EffectiveDay: effectiveDay,
		Length:       length,
	})
	return nil
}

// RateAt returns the yield rate in effect on day, or false if the day
// precedes the first configured entry.
func (s *Store) RateAt(day types.Day) (*big.Int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := latestAtOrBefore(len(s.rates), day, func(i int) types.Day { return s.rates[i].EffectiveDay })
	if idx < 0 {
		return nil, false
	}
	return types.CopyBig(s.rates[idx].Rate), true
}

// LookBackAt returns the look-back length in effect on day, or false if the
// day precedes the first configured entry.
func (s *Store) LookBackAt(day types.Day) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := latestAtOrBefore(len(s.lookBacks), day, func(i int) types.Day { return s.lookBacks[i].EffectiveDay })
	if idx < 0 {
		return 0, false
	}
	return s.lookBacks[idx].Length, true
}

// FirstRateDay returns the effective day of the earliest yield rate.
func (s *Store) FirstRateDay() (types.Day, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.rates) == 0 {
		return 0, false
	}
	return s.rates[0].EffectiveDay, true
}

// Rates returns a copy of the yield rate list.
func (s *Store) Rates() []types.YieldRateRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.YieldRateRecord, len(s.rates))
	for i, r := range s.rates {
		out[i] = types.YieldRateRecord{EffectiveDay: r.EffectiveDay, Rate: types.CopyBig(r.Rate)}
	}
	return out
}

// LookBacks returns a copy of the look-back list.
func (s *Store) LookBacks() []types.LookBackRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.LookBackRecord, len(s.lookBacks))
	copy(out, s.lookBacks)
	return out
}

// latestAtOrBefore finds the index of the last entry with effectiveDay <= day,
// or -1 when no entry qualifies.
func latestAtOrBefore(n int, day types.Day, dayAt func(int) types.Day) int {
	// First entry with effectiveDay > day; the answer precedes it.
	idx := sort.Search(n, func(i int) bool { return dayAt(i) > day })
	return idx - 1
}
