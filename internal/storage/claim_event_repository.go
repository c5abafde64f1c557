package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwalk/yield-streamer/internal/models"
)

// ClaimEventRepository journals executed claims in ClickHouse for audit and
// analytics. Rows are append-only and never consulted by the engine.
type ClaimEventRepository struct {
	db *ClickHouseDB
}

// NewClaimEventRepository creates a new claim event repository.
func NewClaimEventRepository(db *ClickHouseDB) *ClaimEventRepository {
	return &ClaimEventRepository{db: db}
}

// BatchInsert journals multiple claim events.
func (r *ClaimEventRepository) BatchInsert(ctx context.Context, events []*models.ClaimEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO claim_events (id, account, claimed, credited, fee, claim_day, new_debit, created_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, event := range events {
		err := batch.Append(
			event.ID,
			strings.ToLower(event.Account),
			event.Claimed,
			event.Credited,
			event.Fee,
			event.ClaimDay,
			event.NewDebit,
			event.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to append claim event: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// ListByAccount returns an account's claim history, newest first.
func (r *ClaimEventRepository) ListByAccount(ctx context.Context, account string, limit int) ([]*models.ClaimEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, account, claimed, credited, fee, claim_day, new_debit, created_at
		FROM claim_events
		WHERE account = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.Conn().Query(ctx, query, strings.ToLower(account), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query claim events: %w", err)
	}
	defer rows.Close()

	var events []*models.ClaimEvent
	for rows.Next() {
		var event models.ClaimEvent
		err := rows.Scan(
			&event.ID,
			&event.Account,
			&event.Claimed,
			&event.Credited,
			&event.Fee,
			&event.ClaimDay,
			&event.NewDebit,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim event: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claim events: %w", err)
	}
	return events, nil
}
