// Package token is the boundary to the underlying asset: reading live
// balances and paying out claimed yield. Two implementations exist, an
// ERC-20 client for production and an in-memory token for local runs and
// tests.
package token

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Source reads live token state.
type Source interface {
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
}

// Payer moves tokens out of the yield reserve to a recipient.
type Payer interface {
	Pay(ctx context.Context, to common.Address, amount *big.Int) error
}

// TransferHook is invoked after every applied transfer. The balance tracker
// implements it.
type TransferHook interface {
	RecordTransfer(ctx context.Context, caller, from, to common.Address, amount *big.Int) error
}
