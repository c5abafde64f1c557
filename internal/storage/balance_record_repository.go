package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwalk/yield-streamer/internal/models"
)

// BalanceRecordRepository archives balance records in ClickHouse. The table
// is the durable copy of the tracker's in-memory history; startup replays it
// to rebuild the tracker.
type BalanceRecordRepository struct {
	db *ClickHouseDB
}

// NewBalanceRecordRepository creates a new balance record repository.
func NewBalanceRecordRepository(db *ClickHouseDB) *BalanceRecordRepository {
	return &BalanceRecordRepository{db: db}
}

// BatchInsert archives multiple balance records.
func (r *BalanceRecordRepository) BatchInsert(ctx context.Context, records []*models.ArchivedBalanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO balance_records (account, day, value, archived_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, record := range records {
		err := batch.Append(
			strings.ToLower(record.Account),
			record.Day,
			record.Value,
			record.ArchivedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to append balance record: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// ListByAccount returns an account's archived records ordered by day.
// Duplicate days from replayed flushes collapse to a single row.
func (r *BalanceRecordRepository) ListByAccount(ctx context.Context, account string) ([]*models.ArchivedBalanceRecord, error) {
	query := `
		SELECT account, day, value, max(archived_at) AS archived_at
		FROM balance_records
		WHERE account = ?
		GROUP BY account, day, value
		ORDER BY day
	`

	rows, err := r.db.Conn().Query(ctx, query, strings.ToLower(account))
	if err != nil {
		return nil, fmt.Errorf("failed to query balance records: %w", err)
	}
	defer rows.Close()

	var records []*models.ArchivedBalanceRecord
	for rows.Next() {
		var record models.ArchivedBalanceRecord
		if err := rows.Scan(&record.Account, &record.Day, &record.Value, &record.ArchivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance record: %w", err)
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balance records: %w", err)
	}
	return records, nil
}

// ListAccounts returns every account with archived records.
func (r *BalanceRecordRepository) ListAccounts(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT account FROM balance_records ORDER BY account`

	rows, err := r.db.Conn().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}
