package tracker

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/cloudwalk/yield-streamer/internal/errors"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

var (
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob       = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

// fakeToken is an in-place balance map standing in for the live token.
type fakeToken struct {
	balances map[common.Address]*big.Int
}

func newFakeToken() *fakeToken {
	return &fakeToken{balances: make(map[common.Address]*big.Int)}
}

func (f *fakeToken) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	if b, ok := f.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *fakeToken) set(account common.Address, value int64) {
	f.balances[account] = big.NewInt(value)
}

// transfer applies the balance change and fires the after-transfer hook, the
// way the token source does.
func (f *fakeToken) transfer(t *testing.T, bt *BalanceTracker, from, to common.Address, amount int64) {
	t.Helper()
	v := big.NewInt(amount)
	if from != types.ZeroAddress {
		f.balances[from] = new(big.Int).Sub(f.balanceOrZero(from), v)
	}
	if to != types.ZeroAddress {
		f.balances[to] = new(big.Int).Add(f.balanceOrZero(to), v)
	}
	if err := bt.RecordTransfer(context.Background(), tokenAddr, from, to, v); err != nil {
		t.Fatalf("RecordTransfer(%s -> %s, %d): %v", from.Hex(), to.Hex(), amount, err)
	}
}

func (f *fakeToken) balanceOrZero(account common.Address) *big.Int {
	if b, ok := f.balances[account]; ok {
		return b
	}
	return new(big.Int)
}

// fakeClock pins the current accounting day.
type fakeClock struct {
	day types.Day
}

func (f *fakeClock) CurrentDay() (types.Day, error) {
	return f.day, nil
}

// recordingSink collects created-record notifications.
type recordingSink struct {
	created []types.BalanceRecord
}

func (s *recordingSink) BalanceRecordCreated(_ common.Address, record types.BalanceRecord) {
	s.created = append(s.created, record)
}

func newTestTracker(initDay, currentDay uint64) (*BalanceTracker, *fakeToken, *fakeClock, *recordingSink) {
	token := newFakeToken()
	clk := &fakeClock{day: types.Day(currentDay)}
	sink := &recordingSink{}
	bt := New(Config{
		InitDay:     types.Day(initDay),
		TokenSource: tokenAddr,
		Live:        token,
		Clock:       clk,
		Sink:        sink,
	})
	return bt, token, clk, sink
}

func TestRecordTransfer_UnauthorizedCaller(t *testing.T) {
	bt, _, _, _ := newTestTracker(100, 105)

	err := bt.RecordTransfer(context.Background(), alice, alice, bob, big.NewInt(1))
	if err == nil {
		t.Fatal("expected unauthorized caller error")
	}
	if !apperrors.IsCategory(err, apperrors.CategoryAuthorization) {
		t.Errorf("error = %v, want authorization category", err)
	}
}

func TestRecordTransfer_ZeroAmountIsNoOp(t *testing.T) {
	bt, _, _, sink := newTestTracker(100, 105)

	if err := bt.RecordTransfer(context.Background(), tokenAddr, alice, bob, big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
	if len(bt.Records(alice)) != 0 || len(bt.Records(bob)) != 0 {
		t.Error("zero-amount transfer must not create records")
	}
	if len(sink.created) != 0 {
		t.Error("zero-amount transfer must not emit events")
	}
}

func TestRecordTransfer_InitDayIsBaseline(t *testing.T) {
	bt, token, _, sink := newTestTracker(100, 100)
	token.set(alice, 5000)

	token.transfer(t, bt, alice, bob, 1000)

	if len(bt.Records(alice)) != 0 || len(bt.Records(bob)) != 0 {
		t.Error("transfers on the initialization day must not create records")
	}
	if len(sink.created) != 0 {
		t.Error("initialization-day transfer must not emit events")
	}
}

func TestRecordTransfer_OneRecordPerDay(t *testing.T) {
	bt, token, clk, sink := newTestTracker(100, 101)
	token.set(alice, 10000)

	// Three transfers on day 101; only the first snapshots day 100.
	token.transfer(t, bt, alice, bob, 1000)
	token.transfer(t, bt, alice, bob, 2000)
	token.transfer(t, bt, bob, alice, 500)

	aliceRecords := bt.Records(alice)
	if len(aliceRecords) != 1 {
		t.Fatalf("alice records = %d, want 1", len(aliceRecords))
	}
	if aliceRecords[0].Day != 100 {
		t.Errorf("record day = %d, want 100", aliceRecords[0].Day)
	}
	// Before the first transfer of the day alice held 10000.
	if aliceRecords[0].Value.Cmp(big.NewInt(10000)) != 0 {
		t.Errorf("record value = %s, want 10000", aliceRecords[0].Value)
	}

	bobRecords := bt.Records(bob)
	if len(bobRecords) != 1 {
		t.Fatalf("bob records = %d, want 1", len(bobRecords))
	}
	if bobRecords[0].Value.Sign() != 0 {
		t.Errorf("bob record value = %s, want 0", bobRecords[0].Value)
	}

	// Next day appends exactly one more record per touched account.
	clk.day = 103
	token.transfer(t, bt, alice, bob, 100)

	aliceRecords = bt.Records(alice)
	if len(aliceRecords) != 2 {
		t.Fatalf("alice records = %d, want 2", len(aliceRecords))
	}
	if aliceRecords[1].Day != 102 {
		t.Errorf("second record day = %d, want 102", aliceRecords[1].Day)
	}
	for i := 1; i < len(aliceRecords); i++ {
		if aliceRecords[i].Day <= aliceRecords[i-1].Day {
			t.Error("record days must be strictly increasing")
		}
	}
	if len(sink.created) != 4 {
		t.Errorf("emitted events = %d, want 4", len(sink.created))
	}
}

func TestRecordTransfer_MintAndBurnTouchOneSide(t *testing.T) {
	bt, token, _, _ := newTestTracker(100, 101)

	token.transfer(t, bt, types.ZeroAddress, alice, 7000)
	if len(bt.Records(alice)) != 1 {
		t.Fatal("mint must create a record for the receiver")
	}
	if got := bt.Records(alice)[0].Value; got.Sign() != 0 {
		t.Errorf("pre-mint balance = %s, want 0", got)
	}

	token.transfer(t, bt, alice, types.ZeroAddress, 1000)
	// Burn on the same day: no extra record.
	if len(bt.Records(alice)) != 1 {
		t.Error("same-day burn must not duplicate the record")
	}
}

func TestDailyBalances_NoRecordsReturnsLive(t *testing.T) {
	bt, token, _, _ := newTestTracker(100, 110)
	token.set(alice, 4242)

	balances, err := bt.DailyBalances(context.Background(), alice, 100, 104)
	if err != nil {
		t.Fatalf("DailyBalances: %v", err)
	}
	if len(balances) != 5 {
		t.Fatalf("len = %d, want 5", len(balances))
	}
	for i, b := range balances {
		if b.Cmp(big.NewInt(4242)) != 0 {
			t.Errorf("balances[%d] = %s, want 4242", i, b)
		}
	}
}

func TestDailyBalances_RangeQuery(t *testing.T) {
	bt, token, _, _ := newTestTracker(100, 110)
	token.set(alice, 1000)

	// Records: day 102 -> 8000, day 105 -> 3000; live 1000 afterwards.
	if err := bt.Restore(alice, []types.BalanceRecord{
		{Day: 102, Value: big.NewInt(8000)},
		{Day: 105, Value: big.NewInt(3000)},
	}); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	balances, err := bt.DailyBalances(context.Background(), alice, 100, 108)
	if err != nil {
		t.Fatalf("DailyBalances: %v", err)
	}

	want := []int64{8000, 8000, 8000, 3000, 3000, 3000, 1000, 1000, 1000}
	for i, w := range want {
		if balances[i].Cmp(big.NewInt(w)) != 0 {
			t.Errorf("day %d balance = %s, want %d", 100+i, balances[i], w)
		}
	}
}

func TestDailyBalances_Validation(t *testing.T) {
	bt, _, _, _ := newTestTracker(100, 110)

	if _, err := bt.DailyBalances(context.Background(), alice, 99, 105); err == nil {
		t.Error("expected error for fromDay before init day")
	}
	if _, err := bt.DailyBalances(context.Background(), alice, 106, 105); err == nil {
		t.Error("expected error for fromDay > toDay")
	}
	if _, err := bt.DailyBalances(context.Background(), alice, 105, 105); err != nil {
		t.Errorf("single-day range: %v", err)
	}
}

func TestDailyBalances_ReturnsCopies(t *testing.T) {
	bt, token, _, _ := newTestTracker(100, 110)
	token.set(alice, 500)

	balances, err := bt.DailyBalances(context.Background(), alice, 100, 101)
	if err != nil {
		t.Fatalf("DailyBalances: %v", err)
	}
	balances[0].SetInt64(-1)

	again, err := bt.DailyBalances(context.Background(), alice, 100, 101)
	if err != nil {
		t.Fatalf("DailyBalances: %v", err)
	}
	if again[0].Cmp(big.NewInt(500)) != 0 {
		t.Errorf("mutating a returned balance leaked into the tracker: %s", again[0])
	}
}

func TestRecordTransfer_NegativeReconstructionFails(t *testing.T) {
	bt, token, _, _ := newTestTracker(100, 101)

	// Receiver's live balance is 100 after a claimed transfer of 500:
	// reversing the delta would go negative.
	token.set(bob, 100)
	err := bt.RecordTransfer(context.Background(), tokenAddr, types.ZeroAddress, bob, big.NewInt(500))
	if err == nil {
		t.Fatal("expected overflow error for negative reconstructed balance")
	}
	if !apperrors.IsCategory(err, apperrors.CategoryArithmetic) {
		t.Errorf("error = %v, want arithmetic category", err)
	}
}
