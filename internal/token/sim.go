package token

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/cloudwalk/yield-streamer/internal/errors"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

// SimToken is an in-memory token for local runs and tests. Transfers mutate
// balances and then fire the after-transfer hook, the same contract order a
// deployed token follows. The reserve account funds yield payments.
type SimToken struct {
	address common.Address
	reserve common.Address
	hook    TransferHook

	mu       sync.Mutex
	balances map[common.Address]*big.Int
	supply   *big.Int
}

// NewSimToken creates an empty in-memory token.
func NewSimToken(address, reserve common.Address) *SimToken {
	return &SimToken{
		address:  address,
		reserve:  reserve,
		balances: make(map[common.Address]*big.Int),
		supply:   new(big.Int),
	}
}

// SetHook attaches the after-transfer hook. Must be called before transfers.
func (s *SimToken) SetHook(hook TransferHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// Address returns the token's own address, the authorized hook caller.
func (s *SimToken) Address() common.Address {
	return s.address
}

// BalanceOf returns the account's current balance.
func (s *SimToken) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.CopyBig(s.balanceLocked(account)), nil
}

// TotalSupply returns the minted supply.
func (s *SimToken) TotalSupply(_ context.Context) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.CopyBig(s.supply), nil
}

// Mint creates amount for account and fires the hook with the zero address
// as sender.
func (s *SimToken) Mint(ctx context.Context, account common.Address, amount *big.Int) error {
	return s.apply(ctx, types.ZeroAddress, account, amount)
}

// Burn destroys amount from account and fires the hook with the zero address
// as receiver.
func (s *SimToken) Burn(ctx context.Context, account common.Address, amount *big.Int) error {
	return s.apply(ctx, account, types.ZeroAddress, amount)
}

// Transfer moves amount between accounts and fires the hook.
func (s *SimToken) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	return s.apply(ctx, from, to, amount)
}

// Pay transfers claimed yield out of the reserve.
func (s *SimToken) Pay(ctx context.Context, to common.Address, amount *big.Int) error {
	return s.apply(ctx, s.reserve, to, amount)
}

func (s *SimToken) apply(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return apperrors.NewInvalidParameterError("amount", "must be a non-negative integer")
	}

	s.mu.Lock()

	if from != types.ZeroAddress {
		balance := s.balanceLocked(from)
		if balance.Cmp(amount) < 0 {
			s.mu.Unlock()
			return apperrors.NewValueOverflowError("balance", "insufficient funds for transfer")
		}
		s.balances[from] = new(big.Int).Sub(balance, amount)
	} else {
		s.supply = new(big.Int).Add(s.supply, amount)
	}

	if to != types.ZeroAddress {
		s.balances[to] = new(big.Int).Add(s.balanceLocked(to), amount)
	} else {
		s.supply = new(big.Int).Sub(s.supply, amount)
	}

	hook := s.hook
	s.mu.Unlock()

	if hook != nil {
		return hook.RecordTransfer(ctx, s.address, from, to, types.CopyBig(amount))
	}
	return nil
}

func (s *SimToken) balanceLocked(account common.Address) *big.Int {
	if b, ok := s.balances[account]; ok {
		return b
	}
	return new(big.Int)
}
