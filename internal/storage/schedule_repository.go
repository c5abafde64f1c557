package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cloudwalk/yield-streamer/internal/models"
)

// ScheduleRepository persists the effective-dated yield configuration in
// Postgres. Both tables are append-only, mirroring the in-memory store.
type ScheduleRepository struct {
	db *PostgresDB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *PostgresDB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// InsertYieldRate appends a yield rate entry.
func (r *ScheduleRepository) InsertYieldRate(ctx context.Context, rate *models.StoredYieldRate) error {
	query := `
		INSERT INTO yield_rates (effective_day, rate, created_at)
		VALUES ($1, $2, NOW())
	`

	if _, err := r.db.Pool().Exec(ctx, query, rate.EffectiveDay, rate.Rate); err != nil {
		return fmt.Errorf("failed to insert yield rate: %w", err)
	}
	return nil
}

// ListYieldRates returns all yield rate entries ordered by effective day.
func (r *ScheduleRepository) ListYieldRates(ctx context.Context) ([]*models.StoredYieldRate, error) {
	query := `
		SELECT effective_day, rate, created_at
		FROM yield_rates
		ORDER BY effective_day
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list yield rates: %w", err)
	}
	defer rows.Close()

	var rates []*models.StoredYieldRate
	for rows.Next() {
		var rate models.StoredYieldRate
		if err := rows.Scan(&rate.EffectiveDay, &rate.Rate, &rate.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan yield rate: %w", err)
		}
		rates = append(rates, &rate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate yield rates: %w", err)
	}
	return rates, nil
}

// InsertLookBack appends a look-back period entry.
func (r *ScheduleRepository) InsertLookBack(ctx context.Context, lookBack *models.StoredLookBack) error {
	query := `
		INSERT INTO look_back_periods (effective_day, length, created_at)
		VALUES ($1, $2, NOW())
	`

	if _, err := r.db.Pool().Exec(ctx, query, lookBack.EffectiveDay, lookBack.Length); err != nil {
		return fmt.Errorf("failed to insert look-back period: %w", err)
	}
	return nil
}

// ListLookBacks returns all look-back entries ordered by effective day.
func (r *ScheduleRepository) ListLookBacks(ctx context.Context) ([]*models.StoredLookBack, error) {
	query := `
		SELECT effective_day, length, created_at
		FROM look_back_periods
		ORDER BY effective_day
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list look-back periods: %w", err)
	}
	defer rows.Close()

	var lookBacks []*models.StoredLookBack
	for rows.Next() {
		var lookBack models.StoredLookBack
		if err := rows.Scan(&lookBack.EffectiveDay, &lookBack.Length, &lookBack.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan look-back period: %w", err)
		}
		lookBacks = append(lookBacks, &lookBack)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate look-back periods: %w", err)
	}
	return lookBacks, nil
}

// GetTrackerMeta returns the persisted tracker initialization day and fee
// receiver, or (nil, nil) when the engine has never run.
func (r *ScheduleRepository) GetTrackerMeta(ctx context.Context) (*models.TrackerMeta, error) {
	query := `
		SELECT init_day, fee_receiver, updated_at
		FROM tracker_meta
		WHERE id = 1
	`

	var meta models.TrackerMeta
	err := r.db.Pool().QueryRow(ctx, query).Scan(&meta.InitDay, &meta.FeeReceiver, &meta.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tracker meta: %w", err)
	}
	return &meta, nil
}

// UpsertTrackerMeta writes the tracker initialization day and fee receiver.
func (r *ScheduleRepository) UpsertTrackerMeta(ctx context.Context, meta *models.TrackerMeta) error {
	query := `
		INSERT INTO tracker_meta (id, init_day, fee_receiver, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET init_day = EXCLUDED.init_day, fee_receiver = EXCLUDED.fee_receiver, updated_at = NOW()
	`

	if _, err := r.db.Pool().Exec(ctx, query, meta.InitDay, meta.FeeReceiver); err != nil {
		return fmt.Errorf("failed to upsert tracker meta: %w", err)
	}
	return nil
}
