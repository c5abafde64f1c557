// Package service is the application layer between the HTTP API and the
// engine: input validation, preview caching, and write-through persistence
// of claim state and schedule changes.
package service

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/cloudwalk/yield-streamer/internal/errors"
	"github.com/cloudwalk/yield-streamer/internal/logging"
	"github.com/cloudwalk/yield-streamer/internal/models"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

// ClaimEngine is the accrual engine surface the service depends on.
type ClaimEngine interface {
	CalculateYieldByDays(ctx context.Context, account common.Address, dayFrom, dayTo types.Day, debit *big.Int) ([]*big.Int, error)
	ClaimPreview(ctx context.Context, account common.Address, amount *big.Int) (types.ClaimPreview, error)
	Claim(ctx context.Context, account common.Address, amount *big.Int) (types.ClaimResult, error)
	LastClaimDetails(account common.Address) types.ClaimState
	SetFeeReceiver(receiver common.Address) error
	FeeReceiver() common.Address
}

// BalanceHistory is the tracker surface the service depends on.
type BalanceHistory interface {
	DailyBalances(ctx context.Context, account common.Address, fromDay, toDay types.Day) ([]*big.Int, error)
	InitDay() types.Day
	CurrentDay() (types.Day, error)
}

// ScheduleStore is the in-memory schedule surface the service depends on.
type ScheduleStore interface {
	ConfigureYieldRate(effectiveDay types.Day, rate *big.Int) error
	ConfigureLookBackPeriod(effectiveDay types.Day, length uint64) error
	Rates() []types.YieldRateRecord
	LookBacks() []types.LookBackRecord
}

// PreviewCache is the Redis-backed cache surface. All methods must be safe
// to skip: a nil cache disables caching entirely.
type PreviewCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	GeneratePreviewKey(account, amount string) string
	GenerateBalancesKey(account string, fromDay, toDay uint64) string
	GenerateYieldKey(account string, fromDay, toDay uint64) string
	InvalidateAccount(ctx context.Context, account string) error
}

// ClaimStatePersistence writes claim states through to Postgres.
type ClaimStatePersistence interface {
	Upsert(ctx context.Context, state *models.StoredClaimState) error
}

// SchedulePersistence writes schedule changes through to Postgres.
type SchedulePersistence interface {
	InsertYieldRate(ctx context.Context, rate *models.StoredYieldRate) error
	InsertLookBack(ctx context.Context, lookBack *models.StoredLookBack) error
	UpsertTrackerMeta(ctx context.Context, meta *models.TrackerMeta) error
}

// YieldService exposes the yield engine to the HTTP layer.
type YieldService struct {
	engine    ClaimEngine
	history   BalanceHistory
	schedule  ScheduleStore
	cache     PreviewCache
	claimRepo ClaimStatePersistence
	schedRepo SchedulePersistence
	logger    *logging.Logger
}

// NewYieldService creates a YieldService. cache, claimRepo, and schedRepo may
// be nil; the service then runs uncached and memory-only.
func NewYieldService(
	engine ClaimEngine,
	history BalanceHistory,
	schedule ScheduleStore,
	cache PreviewCache,
	claimRepo ClaimStatePersistence,
	schedRepo SchedulePersistence,
) *YieldService {
	return &YieldService{
		engine:    engine,
		history:   history,
		schedule:  schedule,
		cache:     cache,
		claimRepo: claimRepo,
		schedRepo: schedRepo,
		logger:    logging.GetGlobalLogger().WithComponent("yield-service"),
	}
}

// parseAccount validates and parses a hex account address.
func parseAccount(account string) (common.Address, error) {
	if !common.IsHexAddress(account) {
		return common.Address{}, apperrors.NewInvalidAddressError(account)
	}
	return common.HexToAddress(account), nil
}

// cachedBigSlice is the cache representation of a []*big.Int.
type cachedBigSlice struct {
	Values []string `json:"values"`
}

func encodeBigSlice(values []*big.Int) cachedBigSlice {
	out := cachedBigSlice{Values: make([]string, len(values))}
	for i, v := range values {
		out.Values[i] = v.String()
	}
	return out
}

func (c cachedBigSlice) decode() ([]*big.Int, bool) {
	out := make([]*big.Int, len(c.Values))
	for i, s := range c.Values {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// GetClaimPreview previews claiming amount for account. A nil amount
// previews claiming everything. Results are cached briefly.
func (s *YieldService) GetClaimPreview(ctx context.Context, account string, amount *big.Int) (types.ClaimPreview, error) {
	addr, err := parseAccount(account)
	if err != nil {
		return types.ClaimPreview{}, err
	}
	if amount != nil && amount.Sign() < 0 {
		return types.ClaimPreview{}, apperrors.NewInvalidParameterError("amount", "must not be negative")
	}

	amountKey := "all"
	if amount != nil {
		amountKey = amount.String()
	}

	var key string
	if s.cache != nil {
		key = s.cache.GeneratePreviewKey(addr.Hex(), amountKey)
		var cached types.ClaimPreview
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	preview, err := s.engine.ClaimPreview(ctx, addr, amount)
	if err != nil {
		return types.ClaimPreview{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, preview); err != nil {
			s.logger.WithError(err).Warn("Failed to cache claim preview")
		}
	}
	return preview, nil
}

// GetClaimAllPreview previews claiming everything available for account.
func (s *YieldService) GetClaimAllPreview(ctx context.Context, account string) (types.ClaimPreview, error) {
	return s.GetClaimPreview(ctx, account, nil)
}

// ExecuteClaim claims amount for account, persists the advanced claim state,
// and drops the account's cached projections. A nil amount claims everything.
func (s *YieldService) ExecuteClaim(ctx context.Context, account string, amount *big.Int) (types.ClaimResult, error) {
	addr, err := parseAccount(account)
	if err != nil {
		return types.ClaimResult{}, err
	}

	result, err := s.engine.Claim(ctx, addr, amount)
	if err != nil {
		return types.ClaimResult{}, err
	}

	if s.claimRepo != nil {
		stored := &models.StoredClaimState{
			Account: addr.Hex(),
			Day:     uint64(result.Preview.NextClaimDay),
			Debit:   result.Preview.NextClaimDebit.String(),
		}
		if err := s.claimRepo.Upsert(ctx, stored); err != nil {
			// The in-memory claim already settled; losing the write-through
			// means a restart replays from the previous state, so surface it
			// loudly but do not fail the claim.
			s.logger.WithError(err).WithField("account", addr.Hex()).Error("Failed to persist claim state")
		}
	}

	if s.cache != nil {
		if err := s.cache.InvalidateAccount(ctx, addr.Hex()); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate account cache")
		}
	}
	return result, nil
}

// GetLastClaim returns the account's claim state.
func (s *YieldService) GetLastClaim(_ context.Context, account string) (types.ClaimState, error) {
	addr, err := parseAccount(account)
	if err != nil {
		return types.ClaimState{}, err
	}
	return s.engine.LastClaimDetails(addr), nil
}

// GetDailyBalances returns the balance held on each day of [fromDay, toDay].
func (s *YieldService) GetDailyBalances(ctx context.Context, account string, fromDay, toDay types.Day) ([]*big.Int, error) {
	addr, err := parseAccount(account)
	if err != nil {
		return nil, err
	}

	var key string
	if s.cache != nil {
		key = s.cache.GenerateBalancesKey(addr.Hex(), uint64(fromDay), uint64(toDay))
		var cached cachedBigSlice
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			if values, ok := cached.decode(); ok {
				return values, nil
			}
		}
	}

	balances, err := s.history.DailyBalances(ctx, addr, fromDay, toDay)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, encodeBigSlice(balances)); err != nil {
			s.logger.WithError(err).Warn("Failed to cache daily balances")
		}
	}
	return balances, nil
}

// GetYieldByDays returns the gross yield for each day of [fromDay, toDay],
// computed with the account's current claim debit.
func (s *YieldService) GetYieldByDays(ctx context.Context, account string, fromDay, toDay types.Day) ([]*big.Int, error) {
	addr, err := parseAccount(account)
	if err != nil {
		return nil, err
	}

	var key string
	if s.cache != nil {
		key = s.cache.GenerateYieldKey(addr.Hex(), uint64(fromDay), uint64(toDay))
		var cached cachedBigSlice
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			if values, ok := cached.decode(); ok {
				return values, nil
			}
		}
	}

	state := s.engine.LastClaimDetails(addr)
	debit := new(big.Int)
	if state.Day == fromDay {
		debit.Set(state.Debit)
	}

	yields, err := s.engine.CalculateYieldByDays(ctx, addr, fromDay, toDay, debit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, encodeBigSlice(yields)); err != nil {
			s.logger.WithError(err).Warn("Failed to cache yield range")
		}
	}
	return yields, nil
}

// ConfigureYieldRate appends a yield rate entry and writes it through.
func (s *YieldService) ConfigureYieldRate(ctx context.Context, effectiveDay types.Day, rate *big.Int) error {
	if err := s.schedule.ConfigureYieldRate(effectiveDay, rate); err != nil {
		return err
	}

	if s.schedRepo != nil {
		stored := &models.StoredYieldRate{EffectiveDay: uint64(effectiveDay), Rate: rate.String()}
		if err := s.schedRepo.InsertYieldRate(ctx, stored); err != nil {
			s.logger.WithError(err).Error("Failed to persist yield rate")
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"effectiveDay": uint64(effectiveDay),
		"rate":         rate.String(),
	}).Info("Yield rate configured")
	return nil
}

// ConfigureLookBackPeriod appends a look-back entry and writes it through.
func (s *YieldService) ConfigureLookBackPeriod(ctx context.Context, effectiveDay types.Day, length uint64) error {
	if err := s.schedule.ConfigureLookBackPeriod(effectiveDay, length); err != nil {
		return err
	}

	if s.schedRepo != nil {
		stored := &models.StoredLookBack{EffectiveDay: uint64(effectiveDay), Length: length}
		if err := s.schedRepo.InsertLookBack(ctx, stored); err != nil {
			s.logger.WithError(err).Error("Failed to persist look-back period")
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"effectiveDay": uint64(effectiveDay),
		"length":       length,
	}).Info("Look-back period configured")
	return nil
}

// SetFeeReceiver changes the fee receiver and writes it through.
func (s *YieldService) SetFeeReceiver(ctx context.Context, receiver string) error {
	addr, err := parseAccount(receiver)
	if err != nil {
		return err
	}
	if err := s.engine.SetFeeReceiver(addr); err != nil {
		return err
	}

	if s.schedRepo != nil {
		meta := &models.TrackerMeta{
			InitDay:     uint64(s.history.InitDay()),
			FeeReceiver: addr.Hex(),
		}
		if err := s.schedRepo.UpsertTrackerMeta(ctx, meta); err != nil {
			s.logger.WithError(err).Error("Failed to persist fee receiver")
		}
	}

	s.logger.WithField("receiver", addr.Hex()).Info("Fee receiver changed")
	return nil
}

// Schedule returns the configured rates and look-back periods.
func (s *YieldService) Schedule() ([]types.YieldRateRecord, []types.LookBackRecord) {
	return s.schedule.Rates(), s.schedule.LookBacks()
}

// CurrentDay returns the current accounting day and the tracker init day.
func (s *YieldService) CurrentDay() (types.Day, types.Day, error) {
	current, err := s.history.CurrentDay()
	if err != nil {
		return 0, 0, err
	}
	return current, s.history.InitDay(), nil
}
