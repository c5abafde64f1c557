package token

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	apperrors "github.com/cloudwalk/yield-streamer/internal/errors"
	"github.com/cloudwalk/yield-streamer/internal/logging"
)

// erc20ABI covers the calls the engine needs.
const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

// erc20TransferGasLimit is ample for a standard transfer.
const erc20TransferGasLimit = 100_000

// ERC20Token reads balances and pays yield through a deployed ERC-20
// contract. Payments are signed with the reserve treasury key and sent from
// its address.
type ERC20Token struct {
	client   *ethclient.Client
	contract common.Address
	parsed   abi.ABI
	chainID  *big.Int
	key      *ecdsa.PrivateKey
	from     common.Address
	logger   *logging.Logger

	// nonceMu serializes payment submission so nonces stay sequential.
	nonceMu sync.Mutex
}

// ERC20Config configures an ERC20Token.
type ERC20Config struct {
	// RPCURL is the JSON-RPC endpoint.
	RPCURL string
	// Contract is the token contract address.
	Contract common.Address
	// ChainID is the network chain ID used for transaction signing.
	ChainID int64
	// TreasuryKey is the hex-encoded private key of the yield reserve.
	// Optional; without it the token is read-only and Pay fails.
	TreasuryKey string
}

// NewERC20Token dials the RPC endpoint and prepares the contract binding.
func NewERC20Token(cfg ERC20Config) (*ERC20Token, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to dial RPC endpoint", err)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to parse ERC-20 ABI", err)
	}

	t := &ERC20Token{
		client:   client,
		contract: cfg.Contract,
		parsed:   parsed,
		chainID:  big.NewInt(cfg.ChainID),
		logger:   logging.GetGlobalLogger().WithComponent("erc20"),
	}

	if cfg.TreasuryKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.TreasuryKey, "0x"))
		if err != nil {
			return nil, apperrors.NewInternalError("invalid treasury key", err)
		}
		t.key = key
		t.from = crypto.PubkeyToAddress(key.PublicKey)
	}

	return t, nil
}

// Close releases the RPC connection.
func (t *ERC20Token) Close() {
	t.client.Close()
}

// BalanceOf reads an account's current token balance.
func (t *ERC20Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	out, err := t.call(ctx, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TotalSupply reads the token's total supply.
func (t *ERC20Token) TotalSupply(ctx context.Context) (*big.Int, error) {
	return t.call(ctx, "totalSupply")
}

// Pay transfers amount from the reserve treasury to the recipient and waits
// only for submission, not inclusion.
func (t *ERC20Token) Pay(ctx context.Context, to common.Address, amount *big.Int) error {
	if t.key == nil {
		return apperrors.NewInternalError("token is read-only: no treasury key configured", nil)
	}

	input, err := t.parsed.Pack("transfer", to, amount)
	if err != nil {
		return apperrors.NewInternalError("failed to pack transfer call", err)
	}

	t.nonceMu.Lock()
	defer t.nonceMu.Unlock()

	nonce, err := t.client.PendingNonceAt(ctx, t.from)
	if err != nil {
		return apperrors.NewInternalError("failed to fetch treasury nonce", err)
	}
	gasPrice, err := t.client.SuggestGasPrice(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to fetch gas price", err)
	}

	tx := ethtypes.NewTransaction(nonce, t.contract, big.NewInt(0), erc20TransferGasLimit, gasPrice, input)
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(t.chainID), t.key)
	if err != nil {
		return apperrors.NewInternalError("failed to sign payment", err)
	}
	if err := t.client.SendTransaction(ctx, signed); err != nil {
		return apperrors.NewInternalError("failed to submit payment", err)
	}

	t.logger.WithFields(map[string]interface{}{
		"to":     to.Hex(),
		"amount": amount.String(),
		"txHash": signed.Hash().Hex(),
		"nonce":  nonce,
	}).Info("Yield payment submitted")
	return nil
}

// call performs a read-only contract call returning a single uint256.
func (t *ERC20Token) call(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	input, err := t.parsed.Pack(method, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to pack "+method+" call", err)
	}

	msg := ethereum.CallMsg{To: &t.contract, Data: input}
	raw, err := t.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, apperrors.NewInternalError(method+" call failed", err)
	}

	outputs, err := t.parsed.Unpack(method, raw)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to decode "+method+" result", err)
	}
	value, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, apperrors.NewInternalError(method+" returned an unexpected type", nil)
	}
	return value, nil
}
