// Package chain wraps the on-chain reads and signing the engine needs:
// settlement counters and order status, token balances and approvals,
// validate simulations and transaction receipts.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/lootex/aggregatord/internal/seaport"
)

var ErrEmptyCallResult = errors.New("chain: empty call result")

// Backend is the subset of ethclient the reader depends on; tests swap
// in a fake.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Reader is the chain read surface consumed by the validator, planner
// and reconciler.
type Reader interface {
	Counter(ctx context.Context, exchange, offerer common.Address) (*big.Int, error)
	OrderStatus(ctx context.Context, exchange common.Address, orderHash common.Hash) (seaport.OrderStatus, error)
	SimulateValidate(ctx context.Context, exchange, from common.Address, orders []seaport.Order) error
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	ERC20Balance(ctx context.Context, token, account common.Address) (*big.Int, error)
	ERC20Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	ERC721Owner(ctx context.Context, token common.Address, id *big.Int) (common.Address, error)
	ERC1155Balance(ctx context.Context, token, account common.Address, id *big.Int) (*big.Int, error)
	IsApprovedForAll(ctx context.Context, token, owner, operator common.Address) (bool, error)
	Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client implements Reader over a JSON-RPC backend.
type Client struct {
	backend Backend
	chainID uint64
}

// Dial connects to the RPC endpoint.
func Dial(rawURL string, chainID uint64) (*Client, error) {
	backend, err := ethclient.Dial(rawURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	return NewClient(backend, chainID), nil
}

// NewClient wraps an existing backend.
func NewClient(backend Backend, chainID uint64) *Client {
	return &Client{backend: backend, chainID: chainID}
}

// ChainID is the chain this client talks to.
func (c *Client) ChainID() uint64 { return c.chainID }

func (c *Client) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCallResult, to)
	}
	return out, nil
}

// Counter reads the offerer's replay-protection counter.
func (c *Client) Counter(ctx context.Context, exchange, offerer common.Address) (*big.Int, error) {
	data, err := seaport.EncodeGetCounter(offerer)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, exchange, data)
	if err != nil {
		return nil, fmt.Errorf("getCounter %s: %w", offerer, err)
	}
	return seaport.DecodeCounter(out)
}

// OrderStatus reads validation, cancellation and fill totals for a hash.
func (c *Client) OrderStatus(ctx context.Context, exchange common.Address, orderHash common.Hash) (seaport.OrderStatus, error) {
	data, err := seaport.EncodeGetOrderStatus(orderHash)
	if err != nil {
		return seaport.OrderStatus{}, err
	}
	out, err := c.call(ctx, exchange, data)
	if err != nil {
		return seaport.OrderStatus{}, fmt.Errorf("getOrderStatus %s: %w", orderHash, err)
	}
	return seaport.DecodeOrderStatus(out)
}

// SimulateValidate runs the settlement validate call without
// broadcasting; a revert surfaces as an error.
func (c *Client) SimulateValidate(ctx context.Context, exchange, from common.Address, orders []seaport.Order) error {
	data, err := seaport.EncodeValidate(orders)
	if err != nil {
		return err
	}
	_, err = c.backend.CallContract(ctx, ethereum.CallMsg{From: from, To: &exchange, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("validate simulation: %w", err)
	}
	return nil
}

// NativeBalance reads the account's native coin balance.
func (c *Client) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("balance %s: %w", account, err)
	}
	return balance, nil
}

// ERC20Balance reads an ERC20 balance.
func (c *Client) ERC20Balance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	data, err := seaport.EncodeBalanceOf(account)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s on %s: %w", account, token, err)
	}
	return seaport.DecodeBalanceOf(out)
}

// ERC20Allowance reads an ERC20 allowance.
func (c *Client) ERC20Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data, err := seaport.EncodeAllowance(owner, spender)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("allowance %s on %s: %w", owner, token, err)
	}
	return seaport.DecodeAllowance(out)
}

// ERC721Owner reads the owner of one ERC721 token.
func (c *Client) ERC721Owner(ctx context.Context, token common.Address, id *big.Int) (common.Address, error) {
	data, err := seaport.EncodeOwnerOf(id)
	if err != nil {
		return common.Address{}, err
	}
	out, err := c.call(ctx, token, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("ownerOf %s on %s: %w", id, token, err)
	}
	return seaport.DecodeOwnerOf(out)
}

// ERC1155Balance reads an ERC1155 balance for one id.
func (c *Client) ERC1155Balance(ctx context.Context, token, account common.Address, id *big.Int) (*big.Int, error) {
	data, err := seaport.EncodeBalanceOfERC1155(account, id)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s/%s on %s: %w", account, id, token, err)
	}
	return seaport.DecodeBalanceOfERC1155(out)
}

// IsApprovedForAll reads a collection-wide approval.
func (c *Client) IsApprovedForAll(ctx context.Context, token, owner, operator common.Address) (bool, error) {
	data, err := seaport.EncodeIsApprovedForAll(owner, operator)
	if err != nil {
		return false, err
	}
	out, err := c.call(ctx, token, data)
	if err != nil {
		return false, fmt.Errorf("isApprovedForAll %s on %s: %w", owner, token, err)
	}
	return seaport.DecodeIsApprovedForAll(out)
}

// Receipt fetches a mined transaction's receipt.
func (c *Client) Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("receipt %s: %w", txHash, err)
	}
	return receipt, nil
}
