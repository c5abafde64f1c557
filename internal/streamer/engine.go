// Package streamer implements the yield accrual and claim engine.
//
// Yield for a day is the minimum balance over that day's trailing look-back
// window multiplied by the rate in effect, divided by the rate scale. Accrued
// but not yet claimed yield compounds into the minimum-balance computation
// from the following day onward. Claims settle against the accrued yield with
// exact once-only accounting across repeated partial claims.
package streamer

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/cloudwalk/yield-streamer/internal/errors"
	"github.com/cloudwalk/yield-streamer/internal/logging"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

// BalanceSource supplies day-indexed balances, normally the balance tracker.
type BalanceSource interface {
	DailyBalances(ctx context.Context, account common.Address, fromDay, toDay types.Day) ([]*big.Int, error)
}

// Schedule resolves the yield rate and look-back window for a day.
type Schedule interface {
	RateAt(day types.Day) (*big.Int, bool)
	LookBackAt(day types.Day) (uint64, bool)
	FirstRateDay() (types.Day, bool)
}

// TimeSource supplies the current accounting day and intra-day progress.
type TimeSource interface {
	DayAndTime() (types.Day, uint64, error)
	DaySeconds() uint64
}

// Payer moves claimed yield out of the engine reserve.
type Payer interface {
	Pay(ctx context.Context, to common.Address, amount *big.Int) error
}

// ClaimJournal receives executed claims. Implementations must not block.
type ClaimJournal interface {
	YieldClaimed(result types.ClaimResult)
}

// Engine computes and settles yield.
type Engine struct {
	schedule  Schedule
	clock     TimeSource
	rateScale *big.Int
	feeRate   *big.Int
	payer     Payer
	journal   ClaimJournal
	logger    *logging.Logger

	// cfgMu guards the admin-settable collaborators.
	cfgMu       sync.RWMutex
	balances    BalanceSource
	feeReceiver common.Address

	claimsMu sync.RWMutex
	claims   map[common.Address]*accountClaim
}

// accountClaim serializes claim-state mutation per account.
type accountClaim struct {
	mu    sync.Mutex
	state types.ClaimState
}

// Config assembles an Engine.
type Config struct {
	Balances    BalanceSource
	Schedule    Schedule
	Clock       TimeSource
	RateScale   *big.Int
	FeeRate     *big.Int
	FeeReceiver common.Address
	Payer       Payer
	Journal     ClaimJournal
}

// New creates an Engine.
func New(cfg Config) *Engine {
	return &Engine{
		schedule:    cfg.Schedule,
		clock:       cfg.Clock,
		rateScale:   types.CopyBig(cfg.RateScale),
		feeRate:     types.CopyBig(cfg.FeeRate),
		payer:       cfg.Payer,
		journal:     cfg.Journal,
		logger:      logging.GetGlobalLogger().WithComponent("streamer"),
		balances:    cfg.Balances,
		feeReceiver: cfg.FeeReceiver,
		claims:      make(map[common.Address]*accountClaim),
	}
}

// CalculateYieldByDays returns the gross yield for each day of
// [dayFrom, dayTo]. The debit is the portion of dayFrom's yield already paid;
// it reduces the compounding feed-forward but not the reported gross values.
func (e *Engine) CalculateYieldByDays(ctx context.Context, account common.Address, dayFrom, dayTo types.Day, debit *big.Int) ([]*big.Int, error) {
	if dayFrom > dayTo {
		return nil, apperrors.NewInvalidParameterError("dayRange", "toDay precedes fromDay")
	}

	lookBack, ok := e.schedule.LookBackAt(dayFrom)
	if !ok {
		return nil, apperrors.NewScheduleNotConfiguredError("look-back", dayFrom)
	}
	if uint64(dayFrom)+1 < lookBack {
		return nil, apperrors.NewInvalidLookBackError(dayFrom, lookBack, "window reaches before day zero")
	}
	windowStart := dayFrom + 1 - types.Day(lookBack)

	balances, err := e.source().DailyBalances(ctx, account, windowStart, dayTo)
	if err != nil {
		return nil, err
	}

	n := int(dayTo - dayFrom + 1)
	window := int(lookBack)
	yields := make([]*big.Int, n)
	accrued := new(big.Int)

	for i := 0; i < n; i++ {
		day := dayFrom + types.Day(i)

		rate, ok := e.schedule.RateAt(day)
		if !ok {
			rate = new(big.Int)
		}

		// Minimum balance over the day's trailing window.
		minBalance := balances[i]
		for j := i + 1; j < i+window; j++ {
			if balances[j].Cmp(minBalance) < 0 {
				minBalance = balances[j]
			}
		}

		raw := new(big.Int).Mul(minBalance, rate)
		raw.Quo(raw, e.rateScale)

		if i == 0 {
			accrued.Sub(raw, zeroIfNil(debit))
			if accrued.Sign() < 0 {
				accrued.SetInt64(0)
			}
		} else {
			accrued.Add(accrued, raw)
		}

		// Unclaimed yield joins the next day's balance before that day's
		// window minimum is taken.
		if next := i + window; next < len(balances) {
			balances[next].Add(balances[next], accrued)
		}

		yields[i] = raw
	}

	return yields, nil
}

// ClaimPreview computes the outcome of claiming amount without mutating any
// state. A nil amount (or MaxUint256) previews claiming everything.
func (e *Engine) ClaimPreview(ctx context.Context, account common.Address, amount *big.Int) (types.ClaimPreview, error) {
	return e.previewWith(ctx, account, e.LastClaimDetails(account), amount)
}

// ClaimAllPreview previews claiming all available yield.
func (e *Engine) ClaimAllPreview(ctx context.Context, account common.Address) (types.ClaimPreview, error) {
	return e.ClaimPreview(ctx, account, nil)
}

// Claim settles amount of accrued yield for account. The claim is
// all-or-nothing: a Shortfall error leaves every piece of state untouched.
// A nil amount (or MaxUint256) claims everything available.
func (e *Engine) Claim(ctx context.Context, account common.Address, amount *big.Int) (types.ClaimResult, error) {
	if amount != nil && amount.Sign() < 0 {
		return types.ClaimResult{}, apperrors.NewInvalidParameterError("amount", "must not be negative")
	}

	ac := e.claimFor(account)
	ac.mu.Lock()
	defer ac.mu.Unlock()

	preview, err := e.previewWith(ctx, account, copyState(ac.state), amount)
	if err != nil {
		return types.ClaimResult{}, err
	}
	if preview.Shortfall.Sign() > 0 {
		return types.ClaimResult{}, apperrors.NewShortfallError(account.Hex(), preview.Shortfall)
	}

	claimed := new(big.Int)
	if isClaimAll(amount) {
		claimed.Add(preview.PrimaryYield, preview.StreamYield)
	} else {
		claimed.Set(amount)
	}
	credited := new(big.Int).Sub(claimed, preview.Fee)

	if e.payer != nil {
		receiver := e.FeeReceiver()
		if preview.Fee.Sign() > 0 {
			if err := e.payer.Pay(ctx, receiver, types.CopyBig(preview.Fee)); err != nil {
				return types.ClaimResult{}, err
			}
		}
		if credited.Sign() > 0 {
			if err := e.payer.Pay(ctx, account, types.CopyBig(credited)); err != nil {
				return types.ClaimResult{}, err
			}
		}
	}

	ac.state = types.ClaimState{
		Day:   preview.NextClaimDay,
		Debit: types.CopyBig(preview.NextClaimDebit),
	}

	result := types.ClaimResult{
		Account:  account,
		Claimed:  claimed,
		Credited: credited,
		Fee:      types.CopyBig(preview.Fee),
		Preview:  preview,
	}

	e.logger.WithFields(map[string]interface{}{
		"account":  account.Hex(),
		"claimed":  claimed.String(),
		"fee":      preview.Fee.String(),
		"nextDay":  uint64(preview.NextClaimDay),
		"newDebit": preview.NextClaimDebit.String(),
	}).Info("Yield claimed")

	if e.journal != nil {
		e.journal.YieldClaimed(result)
	}
	return result, nil
}

// ClaimAll claims all available yield for account.
func (e *Engine) ClaimAll(ctx context.Context, account common.Address) (types.ClaimResult, error) {
	return e.Claim(ctx, account, nil)
}

// LastClaimDetails returns the account's claim state: the last day accounting
// has advanced through and the portion of that day's yield already paid.
func (e *Engine) LastClaimDetails(account common.Address) types.ClaimState {
	e.claimsMu.RLock()
	ac, ok := e.claims[account]
	e.claimsMu.RUnlock()
	if !ok {
		return types.ClaimState{Day: 0, Debit: new(big.Int)}
	}

	ac.mu.Lock()
	defer ac.mu.Unlock()
	return copyState(ac.state)
}

// RestoreClaimState seeds an account's claim state from persistence. The
// restored day must not move accounting backwards.
func (e *Engine) RestoreClaimState(account common.Address, state types.ClaimState) error {
	ac := e.claimFor(account)

	ac.mu.Lock()
	defer ac.mu.Unlock()

	if state.Day < ac.state.Day {
		return apperrors.NewInvalidParameterError("claimState", "day must not decrease")
	}
	ac.state = copyState(state)
	return nil
}

// FeeReceiver returns the current fee receiver.
func (e *Engine) FeeReceiver() common.Address {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.feeReceiver
}

// SetFeeReceiver changes the fee receiver, rejecting no-op reconfiguration.
func (e *Engine) SetFeeReceiver(receiver common.Address) error {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()

	if receiver == e.feeReceiver {
		return apperrors.NewRedundantConfigurationError("fee receiver", receiver.Hex())
	}
	e.feeReceiver = receiver
	return nil
}

// SetBalanceSource swaps the balance tracker, rejecting no-op reconfiguration.
func (e *Engine) SetBalanceSource(source BalanceSource) error {
	if source == nil {
		return apperrors.NewInvalidParameterError("balanceSource", "must not be nil")
	}

	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()

	if source == e.balances {
		return apperrors.NewRedundantConfigurationError("balance tracker", "current source")
	}
	e.balances = source
	return nil
}

// previewWith computes a claim preview against an explicit claim state.
func (e *Engine) previewWith(ctx context.Context, account common.Address, state types.ClaimState, amount *big.Int) (types.ClaimPreview, error) {
	today, elapsed, err := e.clock.DayAndTime()
	if err != nil {
		return types.ClaimPreview{}, err
	}
	if today == 0 {
		return types.ClaimPreview{}, apperrors.NewValueOverflowError("day index", "no elapsed day exists yet")
	}
	yesterday := today - 1

	p := emptyPreview()
	debit0 := zeroIfNil(state.Debit)
	sentinel := isClaimAll(amount)

	if state.Day != yesterday {
		if state.Day > yesterday {
			return types.ClaimPreview{}, apperrors.NewInternalError("claim state is ahead of the clock", nil)
		}

		firstDay := state.Day
		if firstDay == 0 {
			fd, ok := e.schedule.FirstRateDay()
			if !ok {
				return types.ClaimPreview{}, apperrors.NewScheduleNotConfiguredError("yield rate", today)
			}
			firstDay = fd
		}
		p.FirstYieldDay = firstDay
		p.NextClaimDay = state.Day
		p.NextClaimDebit = types.CopyBig(debit0)

		if firstDay > yesterday {
			// No fully elapsed day to accrue from yet.
			if !sentinel && amount.Sign() > 0 {
				p.Shortfall = types.CopyBig(amount)
			}
			return p, nil
		}

		yields, err := e.CalculateYieldByDays(ctx, account, firstDay, yesterday, debit0)
		if err != nil {
			return types.ClaimPreview{}, err
		}

		last := yields[len(yields)-1]
		p.LastDayYield = types.CopyBig(last)
		p.StreamYield = prorate(last, elapsed, e.clock.DaySeconds())

		// The first day was already partially paid; only its remainder counts.
		yields[0].Sub(yields[0], debit0)
		if yields[0].Sign() < 0 {
			yields[0].SetInt64(0)
		}

		primary := new(big.Int)
		fee := new(big.Int)

		if sentinel {
			for _, y := range yields {
				primary.Add(primary, y)
				fee.Add(fee, e.feeOf(y))
			}
			fee.Add(fee, e.feeOf(p.StreamYield))
			p.PrimaryYield = primary
			p.Fee = fee
			p.NextClaimDay = yesterday
			p.NextClaimDebit = types.CopyBig(p.StreamYield)
			return p, nil
		}

		crossIdx := -1
		for i, y := range yields {
			primary.Add(primary, y)
			fee.Add(fee, e.feeOf(y))
			if primary.Cmp(amount) >= 0 {
				crossIdx = i
				break
			}
		}

		if crossIdx >= 0 {
			surplus := new(big.Int).Sub(primary, amount)
			p.NextClaimDay = firstDay + types.Day(crossIdx)
			debit := new(big.Int).Sub(yields[crossIdx], surplus)
			if crossIdx == 0 {
				// The crossing day already carried a debit; the new debit is
				// cumulative so a later preview nets it out exactly once.
				debit.Add(debit, debit0)
			}
			p.NextClaimDebit = debit
			fee.Sub(fee, e.feeOf(surplus))
			// Report the full available primary yield; the surplus days carry
			// no fee because they are not claimed.
			for j := crossIdx + 1; j < len(yields); j++ {
				primary.Add(primary, yields[j])
			}
			p.PrimaryYield = primary
			p.Fee = fee
			return p, nil
		}

		// The whole primary range is consumed; the rest settles against the
		// current day's stream.
		p.NextClaimDay = yesterday
		remaining := new(big.Int).Sub(amount, primary)
		debitFromStream := bigMin(remaining, p.StreamYield)
		p.NextClaimDebit = types.CopyBig(debitFromStream)
		fee.Add(fee, e.feeOf(debitFromStream))
		if remaining.Cmp(p.StreamYield) > 0 {
			p.Shortfall = new(big.Int).Sub(remaining, p.StreamYield)
		}
		p.PrimaryYield = primary
		p.Fee = fee
		return p, nil
	}

	// Accounting already advanced through today: only the stream remains.
	p.FirstYieldDay = yesterday
	p.NextClaimDay = yesterday

	yields, err := e.CalculateYieldByDays(ctx, account, yesterday, yesterday, nil)
	if err != nil {
		return types.ClaimPreview{}, err
	}
	raw := yields[0]
	p.LastDayYield = types.CopyBig(raw)

	stream := prorate(raw, elapsed, e.clock.DaySeconds())
	stream.Sub(stream, debit0)
	if stream.Sign() < 0 {
		stream.SetInt64(0)
	}
	p.StreamYield = stream

	switch {
	case sentinel:
		p.NextClaimDebit = new(big.Int).Add(debit0, stream)
		p.Fee = e.feeOf(stream)
	case amount.Cmp(stream) <= 0:
		p.NextClaimDebit = new(big.Int).Add(debit0, amount)
		p.Fee = e.feeOf(amount)
	default:
		p.NextClaimDebit = types.CopyBig(debit0)
		p.Shortfall = new(big.Int).Sub(amount, stream)
	}
	return p, nil
}

// source returns the current balance source.
func (e *Engine) source() BalanceSource {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.balances
}

// feeOf returns the fee on a claimed amount.
func (e *Engine) feeOf(amount *big.Int) *big.Int {
	fee := new(big.Int).Mul(amount, e.feeRate)
	return fee.Quo(fee, e.rateScale)
}

// claimFor returns the account's claim slot, creating it on first use.
func (e *Engine) claimFor(account common.Address) *accountClaim {
	e.claimsMu.RLock()
	ac, ok := e.claims[account]
	e.claimsMu.RUnlock()
	if ok {
		return ac
	}

	e.claimsMu.Lock()
	defer e.claimsMu.Unlock()
	if ac, ok = e.claims[account]; ok {
		return ac
	}
	ac = &accountClaim{state: types.ClaimState{Day: 0, Debit: new(big.Int)}}
	e.claims[account] = ac
	return ac
}

// ClaimStates returns a copy of every non-default claim state, keyed by
// account. The archiver uses it to persist state in bulk.
func (e *Engine) ClaimStates() map[common.Address]types.ClaimState {
	e.claimsMu.RLock()
	defer e.claimsMu.RUnlock()

	out := make(map[common.Address]types.ClaimState, len(e.claims))
	for account, ac := range e.claims {
		ac.mu.Lock()
		out[account] = copyState(ac.state)
		ac.mu.Unlock()
	}
	return out
}

func emptyPreview() types.ClaimPreview {
	return types.ClaimPreview{
		NextClaimDebit: new(big.Int),
		PrimaryYield:   new(big.Int),
		StreamYield:    new(big.Int),
		LastDayYield:   new(big.Int),
		Shortfall:      new(big.Int),
		Fee:            new(big.Int),
	}
}

func copyState(s types.ClaimState) types.ClaimState {
	return types.ClaimState{Day: s.Day, Debit: types.CopyBig(s.Debit)}
}

func isClaimAll(amount *big.Int) bool {
	return amount == nil || amount.Cmp(types.MaxUint256) == 0
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// prorate scales a full day's yield by the elapsed fraction of the day.
func prorate(dayYield *big.Int, elapsedSeconds, daySeconds uint64) *big.Int {
	out := new(big.Int).Mul(dayYield, new(big.Int).SetUint64(elapsedSeconds))
	return out.Quo(out, new(big.Int).SetUint64(daySeconds))
}

// bigMin returns the smaller of a and b (no copy).
func bigMin(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
