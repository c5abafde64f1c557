// Package worker runs the background archiver that drains engine events into
// ClickHouse.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudwalk/yield-streamer/internal/logging"
	"github.com/cloudwalk/yield-streamer/internal/models"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

// BalanceRecordStore receives archived balance records.
type BalanceRecordStore interface {
	BatchInsert(ctx context.Context, records []*models.ArchivedBalanceRecord) error
}

// ClaimEventStore receives journaled claim events.
type ClaimEventStore interface {
	BatchInsert(ctx context.Context, events []*models.ClaimEvent) error
}

// Archiver buffers balance records and claim events from the engine's hot
// path and flushes them to ClickHouse in batches. It implements the
// tracker's RecordSink and the engine's ClaimJournal; both entry points are
// non-blocking, so a slow database never stalls a transfer or a claim. A
// full buffer drops the event with a warning; the durable history catches up
// from the in-memory state on the next restart anyway.
type Archiver struct {
	records BalanceRecordStore
	events  ClaimEventStore
	logger  *logging.Logger

	flushInterval time.Duration
	recordCh      chan *models.ArchivedBalanceRecord
	eventCh       chan *models.ClaimEvent

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// ArchiverConfig holds configuration for an Archiver.
type ArchiverConfig struct {
	Records       BalanceRecordStore
	Events        ClaimEventStore
	FlushInterval time.Duration
	BufferSize    int
}

// NewArchiver creates an Archiver.
func NewArchiver(cfg *ArchiverConfig) (*Archiver, error) {
	if cfg.Records == nil {
		return nil, fmt.Errorf("balance record store cannot be nil")
	}
	if cfg.Events == nil {
		return nil, fmt.Errorf("claim event store cannot be nil")
	}

	flushInterval := cfg.FlushInterval
	if flushInterval == 0 {
		flushInterval = 5 * time.Second
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1024
	}

	return &Archiver{
		records:       cfg.Records,
		events:        cfg.Events,
		logger:        logging.GetGlobalLogger().WithComponent("archiver"),
		flushInterval: flushInterval,
		recordCh:      make(chan *models.ArchivedBalanceRecord, bufferSize),
		eventCh:       make(chan *models.ClaimEvent, bufferSize),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}, nil
}

// BalanceRecordCreated queues a balance record for archival.
func (a *Archiver) BalanceRecordCreated(account common.Address, record types.BalanceRecord) {
	row := models.FromBalanceRecord(account, record)
	select {
	case a.recordCh <- &row:
	default:
		a.logger.WithFields(map[string]interface{}{
			"account": account.Hex(),
			"day":     uint64(record.Day),
		}).Warn("Archiver buffer full, dropping balance record")
	}
}

// YieldClaimed queues an executed claim for journaling.
func (a *Archiver) YieldClaimed(result types.ClaimResult) {
	row := models.FromClaimResult(result)
	select {
	case a.eventCh <- &row:
	default:
		a.logger.WithField("account", result.Account.Hex()).Warn("Archiver buffer full, dropping claim event")
	}
}

// Start launches the flush loop.
func (a *Archiver) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return fmt.Errorf("archiver is already running")
	}
	a.running = true

	go a.flushLoop()

	a.logger.WithField("flushInterval", a.flushInterval.String()).Info("Archiver started")
	return nil
}

// Stop flushes any buffered rows and stops the loop.
func (a *Archiver) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return fmt.Errorf("archiver is not running")
	}
	a.running = false
	a.mu.Unlock()

	close(a.stopCh)

	select {
	case <-a.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for archiver to stop: %w", ctx.Err())
	}
}

func (a *Archiver) flushLoop() {
	defer close(a.doneCh)

	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flush()
		case <-a.stopCh:
			a.flush()
			a.logger.Info("Archiver stopped")
			return
		}
	}
}

// flush drains both buffers and batch-inserts whatever accumulated.
func (a *Archiver) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var records []*models.ArchivedBalanceRecord
drainRecords:
	for {
		select {
		case record := <-a.recordCh:
			records = append(records, record)
		default:
			break drainRecords
		}
	}

	var events []*models.ClaimEvent
drainEvents:
	for {
		select {
		case event := <-a.eventCh:
			events = append(events, event)
		default:
			break drainEvents
		}
	}

	if len(records) > 0 {
		if err := a.records.BatchInsert(ctx, records); err != nil {
			a.logger.WithError(err).WithField("count", len(records)).Error("Failed to archive balance records")
		} else {
			a.logger.WithField("count", len(records)).Debug("Archived balance records")
		}
	}
	if len(events) > 0 {
		if err := a.events.BatchInsert(ctx, events); err != nil {
			a.logger.WithError(err).WithField("count", len(events)).Error("Failed to journal claim events")
		} else {
			a.logger.WithField("count", len(events)).Debug("Journaled claim events")
		}
	}
}
