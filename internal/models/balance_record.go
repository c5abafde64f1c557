package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/cloudwalk/yield-streamer/internal/errors"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

// ArchivedBalanceRecord is a balance record as stored in ClickHouse. Values
// are decimal strings so arbitrary-precision amounts survive the round trip.
type ArchivedBalanceRecord struct {
	Account    string    `json:"account" ch:"account"`
	Day        uint64    `json:"day" ch:"day"`
	Value      string    `json:"value" ch:"value"`
	ArchivedAt time.Time `json:"archivedAt" ch:"archived_at"`
}

// FromBalanceRecord converts an in-memory record for archival.
func FromBalanceRecord(account common.Address, record types.BalanceRecord) ArchivedBalanceRecord {
	return ArchivedBalanceRecord{
		Account:    account.Hex(),
		Day:        uint64(record.Day),
		Value:      record.Value.String(),
		ArchivedAt: time.Now().UTC(),
	}
}

// ToBalanceRecord converts an archived row back to the in-memory form.
func (r ArchivedBalanceRecord) ToBalanceRecord() (types.BalanceRecord, error) {
	value, ok := new(big.Int).SetString(r.Value, 10)
	if !ok {
		return types.BalanceRecord{}, apperrors.NewValueOverflowError("archived balance value", r.Value)
	}
	return types.BalanceRecord{Day: types.Day(r.Day), Value: value}, nil
}
