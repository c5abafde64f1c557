package worker

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwalk/yield-streamer/internal/models"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

var archAccount = common.HexToAddress("0x00000000000000000000000000000000000000a1")

type capturingRecordStore struct {
	mu      sync.Mutex
	batches [][]*models.ArchivedBalanceRecord
}

func (s *capturingRecordStore) BatchInsert(_ context.Context, records []*models.ArchivedBalanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, records)
	return nil
}

func (s *capturingRecordStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

type capturingEventStore struct {
	mu     sync.Mutex
	events []*models.ClaimEvent
}

func (s *capturingEventStore) BatchInsert(_ context.Context, events []*models.ClaimEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func newTestArchiver(t *testing.T) (*Archiver, *capturingRecordStore, *capturingEventStore) {
	t.Helper()
	records := &capturingRecordStore{}
	events := &capturingEventStore{}
	a, err := NewArchiver(&ArchiverConfig{
		Records:       records,
		Events:        events,
		FlushInterval: 10 * time.Millisecond,
		BufferSize:    16,
	})
	require.NoError(t, err)
	return a, records, events
}

func TestArchiver_FlushesOnStop(t *testing.T) {
	a, records, events := newTestArchiver(t)
	require.NoError(t, a.Start())

	a.BalanceRecordCreated(archAccount, types.BalanceRecord{Day: 100, Value: big.NewInt(10000)})
	a.BalanceRecordCreated(archAccount, types.BalanceRecord{Day: 102, Value: big.NewInt(7500)})
	a.YieldClaimed(types.ClaimResult{
		Account:  archAccount,
		Claimed:  big.NewInt(667),
		Credited: big.NewInt(521),
		Fee:      big.NewInt(146),
		Preview: types.ClaimPreview{
			NextClaimDay:   105,
			NextClaimDebit: big.NewInt(52),
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))

	assert.Equal(t, 2, records.total())
	require.Len(t, events.events, 1)
	assert.Equal(t, archAccount.Hex(), events.events[0].Account)
	assert.Equal(t, "667", events.events[0].Claimed)
	assert.Equal(t, uint64(105), events.events[0].ClaimDay)
	assert.Equal(t, "52", events.events[0].NewDebit)
	assert.NotEqual(t, events.events[0].ID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestArchiver_PeriodicFlush(t *testing.T) {
	a, records, _ := newTestArchiver(t)
	require.NoError(t, a.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.Stop(ctx)
	}()

	a.BalanceRecordCreated(archAccount, types.BalanceRecord{Day: 100, Value: big.NewInt(1)})

	require.Eventually(t, func() bool {
		return records.total() == 1
	}, time.Second, 5*time.Millisecond, "record should flush without a stop")
}

func TestArchiver_DoubleStartAndStop(t *testing.T) {
	a, _, _ := newTestArchiver(t)

	require.NoError(t, a.Start())
	assert.Error(t, a.Start(), "second start must fail")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))
	assert.Error(t, a.Stop(ctx), "second stop must fail")
}

func TestArchiver_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	records := &capturingRecordStore{}
	events := &capturingEventStore{}
	a, err := NewArchiver(&ArchiverConfig{
		Records:       records,
		Events:        events,
		FlushInterval: time.Hour,
		BufferSize:    2,
	})
	require.NoError(t, err)

	// Not started: nothing drains the channels, so the third send must
	// return immediately instead of blocking the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			a.BalanceRecordCreated(archAccount, types.BalanceRecord{Day: types.Day(100 + i), Value: big.NewInt(1)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("full archiver buffer blocked the hot path")
	}
}
