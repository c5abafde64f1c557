// Package tracker maintains the day-indexed balance history that yield
// computation reads from.
//
// The history is run-length encoded: one record per account per day that saw a
// balance-changing event, asserting the balance held through that day and all
// earlier days back to the previous record. The live balance read from the
// token source covers every day after the last record.
package tracker

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/cloudwalk/yield-streamer/internal/errors"
	"github.com/cloudwalk/yield-streamer/internal/logging"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

// LiveBalanceSource reads current balances from the underlying token.
type LiveBalanceSource interface {
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
}

// RecordSink receives newly created balance records. Sinks must not block;
// the archiver wires a buffered queue here.
type RecordSink interface {
	BalanceRecordCreated(account common.Address, record types.BalanceRecord)
}

// DayClock supplies the current accounting day.
type DayClock interface {
	CurrentDay() (types.Day, error)
}

// BalanceTracker is the append-only per-account balance history.
//
// Appends and range queries are scoped per account, so operations on distinct
// accounts run in parallel. Queries hold only the account's read lock and
// return fresh values, so no reader observes a torn append.
type BalanceTracker struct {
	initDay types.Day
	token   common.Address
	live    LiveBalanceSource
	clock   DayClock
	sink    RecordSink
	logger  *logging.Logger

	mu        sync.RWMutex
	histories map[common.Address]*history
}

// history is one account's record list guarded by its own lock.
type history struct {
	mu      sync.RWMutex
	records []types.BalanceRecord
}

// Config assembles a BalanceTracker.
type Config struct {
	// InitDay is the tracker initialization day. Transfers on this day are
	// baseline, not history.
	InitDay types.Day
	// TokenSource is the only caller allowed to invoke RecordTransfer.
	TokenSource common.Address
	// Live reads current balances from the token.
	Live LiveBalanceSource
	// Clock supplies the current accounting day.
	Clock DayClock
	// Sink optionally receives created records.
	Sink RecordSink
}

// New creates a BalanceTracker.
func New(cfg Config) *BalanceTracker {
	return &BalanceTracker{
		initDay:   cfg.InitDay,
		token:     cfg.TokenSource,
		live:      cfg.Live,
		clock:     cfg.Clock,
		sink:      cfg.Sink,
		logger:    logging.GetGlobalLogger().WithComponent("tracker"),
		histories: make(map[common.Address]*history),
	}
}

// InitDay returns the tracker initialization day.
func (t *BalanceTracker) InitDay() types.Day {
	return t.initDay
}

// TokenSource returns the address authorized to call RecordTransfer.
func (t *BalanceTracker) TokenSource() common.Address {
	return t.token
}

// CurrentDay returns the current accounting day.
func (t *BalanceTracker) CurrentDay() (types.Day, error) {
	return t.clock.CurrentDay()
}

// RecordTransfer is the after-transfer hook. It must be invoked by the
// configured token source once the transfer has been applied to live balances.
//
// Zero-amount transfers and transfers on the initialization day never create
// records. For each real account involved whose history does not yet cover
// yesterday, one record {day: yesterday, value: balance before today} is
// appended, with today's delta reversed out of the live balance.
func (t *BalanceTracker) RecordTransfer(ctx context.Context, caller, from, to common.Address, amount *big.Int) error {
	if caller != t.token {
		return apperrors.NewUnauthorizedHookCallerError(caller.Hex())
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return apperrors.NewInvalidParameterError("amount", "must not be negative")
	}

	today, err := t.clock.CurrentDay()
	if err != nil {
		return err
	}
	if today == t.initDay {
		// Balances moved on the initialization day are the baseline.
		return nil
	}
	if today < t.initDay {
		return apperrors.NewValueOverflowError("day index", "current day precedes the initialization day")
	}
	yesterday := today - 1

	if from != types.ZeroAddress {
		// The sender's balance was higher before today's transfer.
		if err := t.ensureRecord(ctx, from, yesterday, amount, true); err != nil {
			return err
		}
	}
	if to != types.ZeroAddress {
		if err := t.ensureRecord(ctx, to, yesterday, amount, false); err != nil {
			return err
		}
	}
	return nil
}

// ensureRecord appends the {yesterday, balanceBeforeToday} record for account
// unless its history already covers yesterday.
func (t *BalanceTracker) ensureRecord(ctx context.Context, account common.Address, yesterday types.Day, delta *big.Int, addBack bool) error {
	h := t.historyFor(account)

	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.records); n > 0 && h.records[n-1].Day >= yesterday {
		// Already recorded for this day; same-day repeats never duplicate.
		return nil
	}

	live, err := t.live.BalanceOf(ctx, account)
	if err != nil {
		return err
	}

	before := new(big.Int).Set(live)
	if addBack {
		before.Add(before, delta)
	} else {
		before.Sub(before, delta)
	}

	if before.Sign() < 0 || before.Cmp(types.MaxUint256) > 0 {
		return apperrors.NewValueOverflowError("balance record value", before.String())
	}

	record := types.BalanceRecord{Day: yesterday, Value: before}
	h.records = append(h.records, record)

	t.logger.WithFields(map[string]interface{}{
		"account": account.Hex(),
		"day":     uint64(yesterday),
		"value":   before.String(),
	}).Debug("Balance record created")

	if t.sink != nil {
		t.sink.BalanceRecordCreated(account, types.BalanceRecord{Day: record.Day, Value: types.CopyBig(record.Value)})
	}
	return nil
}

// DailyBalances returns the balance held on each day of [fromDay, toDay].
//
// For each day the value comes from the earliest record with day >= queryDay;
// once the range runs past the last record, the live balance is repeated. The
// record array is scanned from a binary-searched starting point, so the cost
// is O(log n + range length).
func (t *BalanceTracker) DailyBalances(ctx context.Context, account common.Address, fromDay, toDay types.Day) ([]*big.Int, error) {
	if fromDay < t.initDay || fromDay > toDay {
		return nil, apperrors.NewInvalidDayRangeError(fromDay, toDay, t.initDay)
	}

	h := t.historyFor(account)

	h.mu.RLock()
	defer h.mu.RUnlock()

	records := h.records
	idx := sort.Search(len(records), func(i int) bool { return records[i].Day >= fromDay })

	out := make([]*big.Int, 0, toDay-fromDay+1)
	var live *big.Int
	for day := fromDay; ; day++ {
		for idx < len(records) && records[idx].Day < day {
			idx++
		}
		if idx < len(records) {
			out = append(out, types.CopyBig(records[idx].Value))
		} else {
			if live == nil {
				current, err := t.live.BalanceOf(ctx, account)
				if err != nil {
					return nil, err
				}
				live = current
			}
			out = append(out, types.CopyBig(live))
		}
		if day == toDay {
			break
		}
	}
	return out, nil
}

// Records returns a copy of the account's record list, oldest first.
func (t *BalanceTracker) Records(account common.Address) []types.BalanceRecord {
	h := t.historyFor(account)

	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]types.BalanceRecord, len(h.records))
	for i, r := range h.records {
		out[i] = types.BalanceRecord{Day: r.Day, Value: types.CopyBig(r.Value)}
	}
	return out
}

// Restore seeds an account's history from persisted records. Records must be
// strictly day-increasing; Restore is for startup only and replaces any
// in-memory history for the account.
func (t *BalanceTracker) Restore(account common.Address, records []types.BalanceRecord) error {
	for i, r := range records {
		if r.Day < t.initDay {
			return apperrors.NewInvalidDayRangeError(r.Day, r.Day, t.initDay)
		}
		if i > 0 && records[i-1].Day >= r.Day {
			return apperrors.NewInvalidParameterError("records", "days must be strictly increasing")
		}
		if r.Value == nil || r.Value.Sign() < 0 || r.Value.Cmp(types.MaxUint256) > 0 {
			return apperrors.NewValueOverflowError("balance record value", "nil or out of range")
		}
	}

	h := t.historyFor(account)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = make([]types.BalanceRecord, len(records))
	for i, r := range records {
		h.records[i] = types.BalanceRecord{Day: r.Day, Value: types.CopyBig(r.Value)}
	}
	return nil
}

// historyFor returns the account's history, creating it on first use.
func (t *BalanceTracker) historyFor(account common.Address) *history {
	t.mu.RLock()
	h, ok := t.histories[account]
	t.mu.RUnlock()
	if ok {
		return h
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok = t.histories[account]; ok {
		return h
	}
	h = &history{}
	t.histories[account] = h
	return h
}
