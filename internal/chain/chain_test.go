package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lootex/aggregatord/internal/seaport"
)

type fakeBackend struct {
	result  []byte
	err     error
	lastMsg ethereum.CallMsg
	balance *big.Int
	receipt *types.Receipt
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.lastMsg = msg
	return f.result, f.err
}

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.balance, f.err
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return f.receipt, f.err
}

func packWords(words ...[]byte) []byte {
	var out []byte
	for _, w := range words {
		out = append(out, common.LeftPadBytes(w, 32)...)
	}
	return out
}

func TestCounter(t *testing.T) {
	backend := &fakeBackend{result: packWords(big.NewInt(7).Bytes())}
	client := NewClient(backend, 1)

	counter, err := client.Counter(context.Background(), seaport.SeaportV16Address, common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), counter.Int64())
	assert.Equal(t, seaport.SeaportV16Address, *backend.lastMsg.To)
}

func TestOrderStatus(t *testing.T) {
	backend := &fakeBackend{result: packWords(
		[]byte{1}, nil, big.NewInt(2).Bytes(), big.NewInt(4).Bytes(),
	)}
	client := NewClient(backend, 1)

	status, err := client.OrderStatus(context.Background(), seaport.SeaportV16Address, common.Hash{})
	require.NoError(t, err)
	assert.True(t, status.IsValidated)
	assert.False(t, status.IsCancelled)
	assert.Equal(t, int64(2), status.TotalFilled.Int64())
	assert.False(t, status.FullyFilled())
}

func TestCallError(t *testing.T) {
	backend := &fakeBackend{err: errors.New("revert")}
	client := NewClient(backend, 1)

	_, err := client.ERC20Balance(context.Background(), common.HexToAddress("0x02"), common.HexToAddress("0x01"))
	assert.Error(t, err)
}

func TestEmptyResult(t *testing.T) {
	backend := &fakeBackend{result: nil}
	client := NewClient(backend, 1)

	_, err := client.ERC20Allowance(context.Background(), common.HexToAddress("0x02"), common.HexToAddress("0x01"), common.HexToAddress("0x03"))
	assert.ErrorIs(t, err, ErrEmptyCallResult)
}

func TestSimulateValidatePassesFrom(t *testing.T) {
	backend := &fakeBackend{result: packWords([]byte{1})}
	client := NewClient(backend, 1)

	from := common.HexToAddress("0x0000000000000000000000000000000000000009")
	err := client.SimulateValidate(context.Background(), seaport.SeaportV16Address, from, nil)
	require.NoError(t, err)
	assert.Equal(t, from, backend.lastMsg.From)
}

func TestKeySigner(t *testing.T) {
	// Throwaway key for the test only.
	signer, err := NewKeySigner("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	assert.NotEqual(t, common.Address{}, signer.Address())

	digest := crypto.Keccak256Hash([]byte("payload"))
	sig, err := signer.SignDigest(digest)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	// Recover and compare against the signer address.
	recovery := make([]byte, 65)
	copy(recovery, sig)
	recovery[64] -= 27
	pub, err := crypto.SigToPub(digest.Bytes(), recovery)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), crypto.PubkeyToAddress(*pub))
}

func TestNewKeySignerRejectsGarbage(t *testing.T) {
	_, err := NewKeySigner("not-a-key")
	assert.Error(t, err)
}
