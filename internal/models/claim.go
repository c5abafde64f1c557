package models

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/cloudwalk/yield-streamer/internal/errors"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

// StoredClaimState is the durable per-account claim state row.
type StoredClaimState struct {
	Account   string    `json:"account"`
	Day       uint64    `json:"day"`
	Debit     string    `json:"debit"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ToClaimState converts the stored row back to the in-memory form.
func (s StoredClaimState) ToClaimState() (types.ClaimState, error) {
	debit, ok := new(big.Int).SetString(s.Debit, 10)
	if !ok {
		return types.ClaimState{}, apperrors.NewValueOverflowError("stored claim debit", s.Debit)
	}
	return types.ClaimState{Day: types.Day(s.Day), Debit: debit}, nil
}

// ClaimEvent is an executed claim as journaled to ClickHouse.
type ClaimEvent struct {
	ID        uuid.UUID `json:"id" ch:"id"`
	Account   string    `json:"account" ch:"account"`
	Claimed   string    `json:"claimed" ch:"claimed"`
	Credited  string    `json:"credited" ch:"credited"`
	Fee       string    `json:"fee" ch:"fee"`
	ClaimDay  uint64    `json:"claimDay" ch:"claim_day"`
	NewDebit  string    `json:"newDebit" ch:"new_debit"`
	CreatedAt time.Time `json:"createdAt" ch:"created_at"`
}

// FromClaimResult converts an executed claim for journaling.
func FromClaimResult(result types.ClaimResult) ClaimEvent {
	return ClaimEvent{
		ID:        uuid.New(),
		Account:   result.Account.Hex(),
		Claimed:   result.Claimed.String(),
		Credited:  result.Credited.String(),
		Fee:       result.Fee.String(),
		ClaimDay:  uint64(result.Preview.NextClaimDay),
		NewDebit:  result.Preview.NextClaimDebit.String(),
		CreatedAt: time.Now().UTC(),
	}
}
