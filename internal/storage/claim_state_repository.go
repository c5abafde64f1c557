package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/cloudwalk/yield-streamer/internal/models"
)

// ClaimStateRepository persists per-account claim states in Postgres. The
// engine owns the in-memory truth; rows here exist so a restart resumes from
// the last settled claim instead of day zero.
type ClaimStateRepository struct {
	db *PostgresDB
}

// NewClaimStateRepository creates a new claim state repository.
func NewClaimStateRepository(db *PostgresDB) *ClaimStateRepository {
	return &ClaimStateRepository{db: db}
}

// Upsert writes an account's claim state, replacing any previous row.
func (r *ClaimStateRepository) Upsert(ctx context.Context, state *models.StoredClaimState) error {
	query := `
		INSERT INTO claim_states (account, day, debit, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (account) DO UPDATE
		SET day = EXCLUDED.day, debit = EXCLUDED.debit, updated_at = NOW()
	`

	_, err := r.db.Pool().Exec(ctx, query,
		strings.ToLower(state.Account),
		state.Day,
		state.Debit,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert claim state: %w", err)
	}
	return nil
}

// Get returns an account's claim state, or (nil, nil) if none is stored.
func (r *ClaimStateRepository) Get(ctx context.Context, account string) (*models.StoredClaimState, error) {
	query := `
		SELECT account, day, debit, updated_at
		FROM claim_states
		WHERE account = $1
	`

	var state models.StoredClaimState
	err := r.db.Pool().QueryRow(ctx, query, strings.ToLower(account)).Scan(
		&state.Account,
		&state.Day,
		&state.Debit,
		&state.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get claim state: %w", err)
	}
	return &state, nil
}

// List returns all stored claim states, used to warm the engine on startup.
func (r *ClaimStateRepository) List(ctx context.Context) ([]*models.StoredClaimState, error) {
	query := `
		SELECT account, day, debit, updated_at
		FROM claim_states
		ORDER BY account
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list claim states: %w", err)
	}
	defer rows.Close()

	var states []*models.StoredClaimState
	for rows.Next() {
		var state models.StoredClaimState
		if err := rows.Scan(&state.Account, &state.Day, &state.Debit, &state.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim state: %w", err)
		}
		states = append(states, &state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claim states: %w", err)
	}
	return states, nil
}
