package models

import "time"

// TrackerMeta is the single-row engine metadata: the day the tracker was
// initialized and the current fee receiver. Restarts read it back so the
// accounting timeline stays anchored.
type TrackerMeta struct {
	InitDay     uint64    `json:"initDay"`
	FeeReceiver string    `json:"feeReceiver"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
