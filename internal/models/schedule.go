package models

import (
	"math/big"
	"time"

	apperrors "github.com/cloudwalk/yield-streamer/internal/errors"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

// StoredYieldRate is a yield rate entry as persisted in Postgres.
type StoredYieldRate struct {
	EffectiveDay uint64    `json:"effectiveDay"`
	Rate         string    `json:"rate"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ToYieldRateRecord converts the stored row back to the in-memory form.
func (s StoredYieldRate) ToYieldRateRecord() (types.YieldRateRecord, error) {
	rate, ok := new(big.Int).SetString(s.Rate, 10)
	if !ok {
		return types.YieldRateRecord{}, apperrors.NewValueOverflowError("stored yield rate", s.Rate)
	}
	return types.YieldRateRecord{EffectiveDay: types.Day(s.EffectiveDay), Rate: rate}, nil
}

// StoredLookBack is a look-back period entry as persisted in Postgres.
type StoredLookBack struct {
	EffectiveDay uint64    `json:"effectiveDay"`
	Length       uint64    `json:"length"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ToLookBackRecord converts the stored row back to the in-memory form.
func (s StoredLookBack) ToLookBackRecord() types.LookBackRecord {
	return types.LookBackRecord{EffectiveDay: types.Day(s.EffectiveDay), Length: s.Length}
}
