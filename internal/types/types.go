// Package types provides common type definitions for the yield streamer system.
package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Day is an accounting-day index: the number of whole business days elapsed
// since the Unix epoch, after the configured epoch shift is applied.
type Day uint64

// MaxUint256 is the upper bound for balances and yields. Values are rejected
// with an overflow error before they are recorded, never silently truncated.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// BalanceRecord asserts that an account held Value throughout day Day and all
// earlier days back to the previous record (or account creation). Records for
// an account form a strictly day-increasing, append-only sequence.
type BalanceRecord struct {
	Day   Day      `json:"day"`
	Value *big.Int `json:"value"`
}

// YieldRateRecord is one entry of the effective-dated yield rate schedule.
// Rate is scaled by the engine's rate scale (yield = balance * rate / scale).
type YieldRateRecord struct {
	EffectiveDay Day      `json:"effectiveDay"`
	Rate         *big.Int `json:"rate"`
}

// LookBackRecord is one entry of the effective-dated look-back schedule.
// Length is the number of trailing days whose minimum balance sets a day's yield.
type LookBackRecord struct {
	EffectiveDay Day    `json:"effectiveDay"`
	Length       uint64 `json:"length"`
}

// ClaimState tracks how far yield accounting has advanced for an account.
// Day is the last day accounting has advanced through; Debit is the portion of
// that day's yield already paid out by an earlier partial claim.
type ClaimState struct {
	Day   Day      `json:"day"`
	Debit *big.Int `json:"debit"`
}

// ClaimPreview is the result of a dry-run claim. It never reflects a state
// change and is safe to recompute repeatedly.
type ClaimPreview struct {
	NextClaimDay   Day      `json:"nextClaimDay"`
	NextClaimDebit *big.Int `json:"nextClaimDebit"`
	FirstYieldDay  Day      `json:"firstYieldDay"`
	PrimaryYield   *big.Int `json:"primaryYield"`
	StreamYield    *big.Int `json:"streamYield"`
	LastDayYield   *big.Int `json:"lastDayYield"`
	Shortfall      *big.Int `json:"shortfall"`
	Fee            *big.Int `json:"fee"`
}

// ClaimResult describes an executed claim.
type ClaimResult struct {
	Account common.Address `json:"account"`
	// Claimed is the total amount resolved by the claim (fee included).
	Claimed *big.Int `json:"claimed"`
	// Credited is the amount paid to the account (Claimed minus Fee).
	Credited *big.Int     `json:"credited"`
	Fee      *big.Int     `json:"fee"`
	Preview  ClaimPreview `json:"preview"`
}

// ServiceError represents a structured error response.
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// ZeroAddress is the null account. Transfers from or to it are mints and burns;
// the balance tracker never keeps history for it.
var ZeroAddress = common.Address{}

// CopyBig returns a defensive copy of v, treating nil as zero.
func CopyBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
