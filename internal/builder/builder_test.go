package builder

import (
	"bytes"
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lootex/aggregatord/internal/chain"
	"github.com/lootex/aggregatord/internal/numeric"
	"github.com/lootex/aggregatord/internal/order"
	"github.com/lootex/aggregatord/internal/seaport"
)

var (
	testExchange = common.HexToAddress("0x0000000000000068F116a894984e2DB1123eB395")
	testMaker    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testNFT      = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testWETH     = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testFeeAddr  = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testRoyalty  = common.HexToAddress("0x5555555555555555555555555555555555555555")
)

type fakeReader struct {
	counter        *big.Int
	nativeBalance  *big.Int
	erc20Balance   *big.Int
	erc20Allowance *big.Int
	erc721Owner    common.Address
	erc1155Bal     *big.Int
	approvedAll    bool
}

func healthyReader() *fakeReader {
	huge := new(big.Int).Lsh(big.NewInt(1), 128)
	return &fakeReader{
		counter:        big.NewInt(7),
		nativeBalance:  huge,
		erc20Balance:   huge,
		erc20Allowance: huge,
		erc721Owner:    testMaker,
		erc1155Bal:     big.NewInt(100),
		approvedAll:    true,
	}
}

func (f *fakeReader) Counter(ctx context.Context, exchange, offerer common.Address) (*big.Int, error) {
	return f.counter, nil
}

func (f *fakeReader) OrderStatus(ctx context.Context, exchange common.Address, orderHash common.Hash) (seaport.OrderStatus, error) {
	return seaport.OrderStatus{TotalFilled: big.NewInt(0), TotalSize: big.NewInt(0)}, nil
}

func (f *fakeReader) SimulateValidate(ctx context.Context, exchange, from common.Address, orders []seaport.Order) error {
	return nil
}

func (f *fakeReader) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return f.nativeBalance, nil
}

func (f *fakeReader) ERC20Balance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	return f.erc20Balance, nil
}

func (f *fakeReader) ERC20Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return f.erc20Allowance, nil
}

func (f *fakeReader) ERC721Owner(ctx context.Context, token common.Address, id *big.Int) (common.Address, error) {
	return f.erc721Owner, nil
}

func (f *fakeReader) ERC1155Balance(ctx context.Context, token, account common.Address, id *big.Int) (*big.Int, error) {
	return f.erc1155Bal, nil
}

func (f *fakeReader) IsApprovedForAll(ctx context.Context, token, owner, operator common.Address) (bool, error) {
	return f.approvedAll, nil
}

func (f *fakeReader) Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return nil, nil
}

func testBuilder(reader *fakeReader) *Builder {
	return New(reader, 137, testExchange, common.Address{}, nil)
}

func listingIntent(totalPrice int64) Intent {
	start := time.Unix(1_700_000_000, 0)
	return Intent{
		Category:   order.CategoryListing,
		Token:      testNFT,
		TokenID:    big.NewInt(42),
		TokenKind:  seaport.ItemERC721,
		TotalPrice: big.NewInt(totalPrice),
		StartTime:  start,
		EndTime:    start.Add(24 * time.Hour),
		Fees: []Fee{
			{Recipient: testFeeAddr, BasisPoints: 250},
			{Recipient: testRoyalty, BasisPoints: 500},
		},
	}
}

func TestBuildListing(t *testing.T) {
	b := testBuilder(healthyReader())

	plan, err := b.Build(context.Background(), testMaker, []Intent{listingIntent(10_000)}, Options{})
	require.NoError(t, err)
	require.Len(t, plan.Orders, 1)

	o := plan.Orders[0]
	assert.Equal(t, big.NewInt(7), o.Counter)
	assert.Equal(t, testExchange, o.ExchangeAddress)
	assert.Equal(t, uint64(137), o.ChainID)
	assert.NotEqual(t, common.Hash{}, o.Hash)

	require.Len(t, o.Parameters.Offer, 1)
	offer := o.Parameters.Offer[0]
	assert.Equal(t, seaport.ItemERC721, offer.ItemType)
	assert.Equal(t, testNFT, offer.Token)
	assert.Equal(t, big.NewInt(42), offer.IdentifierOrCriteria)

	// Maker share first (largest amount), then royalty, then platform fee.
	require.Len(t, o.Parameters.Consideration, 3)
	assert.Equal(t, big.NewInt(9_250), o.Parameters.Consideration[0].StartAmount)
	assert.Equal(t, testMaker, o.Parameters.Consideration[0].Recipient)
	assert.Equal(t, big.NewInt(500), o.Parameters.Consideration[1].StartAmount)
	assert.Equal(t, testRoyalty, o.Parameters.Consideration[1].Recipient)
	assert.Equal(t, big.NewInt(250), o.Parameters.Consideration[2].StartAmount)
	assert.Equal(t, testFeeAddr, o.Parameters.Consideration[2].Recipient)
	assert.Equal(t, big.NewInt(3), o.Parameters.TotalOriginalConsiderationItems)

	// Fully approved maker: sign then submit, no approvals.
	require.Len(t, plan.Actions, 2)
	assert.Equal(t, "sign-order", plan.Actions[0].Kind())
	assert.Equal(t, "submit-orders", plan.Actions[1].Kind())
}

func TestBuildFeeRoundsDown(t *testing.T) {
	b := testBuilder(healthyReader())

	intent := listingIntent(999)
	intent.Fees = []Fee{{Recipient: testFeeAddr, BasisPoints: 250}}

	plan, err := b.Build(context.Background(), testMaker, []Intent{intent}, Options{})
	require.NoError(t, err)

	consideration := plan.Orders[0].Parameters.Consideration
	require.Len(t, consideration, 2)
	assert.Equal(t, big.NewInt(975), consideration[0].StartAmount)
	assert.Equal(t, big.NewInt(24), consideration[1].StartAmount)
}

func TestBuildCollectionOffer(t *testing.T) {
	b := testBuilder(healthyReader())

	start := time.Unix(1_700_000_000, 0)
	intent := Intent{
		Category:   order.CategoryCollectionOffer,
		Token:      testNFT,
		TokenKind:  seaport.ItemERC721,
		Currency:   wethCurrency(),
		TotalPrice: big.NewInt(5_000),
		StartTime:  start,
		EndTime:    start.Add(time.Hour),
		Fees:       []Fee{{Recipient: testFeeAddr, BasisPoints: 250}},
	}

	plan, err := b.Build(context.Background(), testMaker, []Intent{intent}, Options{})
	require.NoError(t, err)

	o := plan.Orders[0]
	require.Len(t, o.Parameters.Offer, 1)
	assert.Equal(t, seaport.ItemERC20, o.Parameters.Offer[0].ItemType)
	assert.Equal(t, testWETH, o.Parameters.Offer[0].Token)
	assert.Equal(t, big.NewInt(5_000), o.Parameters.Offer[0].StartAmount)

	require.Len(t, o.Parameters.Consideration, 2)
	nft := o.Parameters.Consideration[0]
	assert.Equal(t, seaport.ItemERC721WithCriteria, nft.ItemType)
	assert.Equal(t, big.NewInt(0), nft.IdentifierOrCriteria)
	assert.Equal(t, testMaker, nft.Recipient)
	assert.Equal(t, big.NewInt(125), o.Parameters.Consideration[1].StartAmount)
}

func TestBuildOfferRequiresERC20(t *testing.T) {
	b := testBuilder(healthyReader())

	start := time.Unix(1_700_000_000, 0)
	intent := Intent{
		Category:   order.CategoryOffer,
		Token:      testNFT,
		TokenID:    big.NewInt(1),
		TokenKind:  seaport.ItemERC721,
		TotalPrice: big.NewInt(100),
		StartTime:  start,
		EndTime:    start.Add(time.Hour),
	}

	_, err := b.Build(context.Background(), testMaker, []Intent{intent}, Options{})
	assert.ErrorIs(t, err, ErrCollectionNeedsERC20)
}

func TestBuildMissingApproval(t *testing.T) {
	reader := healthyReader()
	reader.approvedAll = false
	b := testBuilder(reader)

	plan, err := b.Build(context.Background(), testMaker, []Intent{listingIntent(10_000), listingIntent(20_000)}, Options{})
	require.NoError(t, err)

	// Same collection twice: one approval, two signatures, one submit.
	require.Len(t, plan.Actions, 4)
	approve, ok := plan.Actions[0].(*ApproveAction)
	require.True(t, ok)
	assert.Equal(t, testNFT, approve.Token)
	assert.Equal(t, testExchange, approve.Operator)
	assert.Equal(t, seaport.ItemERC721, approve.ItemType)
}

func TestBuildInsufficientBalance(t *testing.T) {
	reader := healthyReader()
	reader.erc721Owner = common.HexToAddress("0x9999999999999999999999999999999999999999")
	b := testBuilder(reader)

	_, err := b.Build(context.Background(), testMaker, []Intent{listingIntent(10_000)}, Options{})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestBuildValidation(t *testing.T) {
	b := testBuilder(healthyReader())
	ctx := context.Background()

	_, err := b.Build(ctx, testMaker, nil, Options{})
	assert.ErrorIs(t, err, ErrNoIntents)

	zero := listingIntent(10_000)
	zero.TotalPrice = big.NewInt(0)
	_, err = b.Build(ctx, testMaker, []Intent{zero}, Options{})
	assert.ErrorIs(t, err, ErrZeroPrice)

	backwards := listingIntent(10_000)
	backwards.EndTime = backwards.StartTime
	_, err = b.Build(ctx, testMaker, []Intent{backwards}, Options{})
	assert.ErrorIs(t, err, ErrBadTimeRange)

	noExchange := New(healthyReader(), 137, common.Address{}, common.Address{}, nil)
	_, err = noExchange.Build(ctx, testMaker, []Intent{listingIntent(10_000)}, Options{})
	assert.ErrorIs(t, err, ErrNoSettlementAddress)
}

func TestBuildBulkSign(t *testing.T) {
	b := testBuilder(healthyReader())

	plan, err := b.Build(context.Background(), testMaker,
		[]Intent{listingIntent(10_000), listingIntent(20_000)}, Options{BulkSign: true})
	require.NoError(t, err)

	require.Len(t, plan.Actions, 2)
	bulk, ok := plan.Actions[0].(*SignBulkAction)
	require.True(t, ok)
	assert.NotEqual(t, common.Hash{}, bulk.Digest)

	sig := bytes.Repeat([]byte{0xab}, 65)
	require.NoError(t, bulk.Apply(sig))
	for _, o := range plan.Orders {
		// Two leaves make a height-1 tree: 65-byte signature, 3-byte
		// key, one 32-byte proof word.
		assert.Len(t, o.Signature, 65+3+32)
		assert.Equal(t, sig, o.Signature[:65])
	}
	// Sibling proofs differ, so the encoded signatures must too.
	assert.NotEqual(t, plan.Orders[0].Signature, plan.Orders[1].Signature)
}

func TestBuildSaltTag(t *testing.T) {
	b := testBuilder(healthyReader())

	plan, err := b.Build(context.Background(), testMaker, []Intent{listingIntent(10_000)},
		Options{SaltTag: "lootex.io"})
	require.NoError(t, err)

	var buf [12]byte
	plan.Orders[0].Parameters.Salt.FillBytes(buf[:])
	assert.Equal(t, crypto.Keccak256([]byte("lootex.io"))[:4], buf[:4])
}

func TestSignActions(t *testing.T) {
	b := testBuilder(healthyReader())

	plan, err := b.Build(context.Background(), testMaker, []Intent{listingIntent(10_000)}, Options{})
	require.NoError(t, err)

	signer, err := chain.NewKeySigner("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	require.NoError(t, SignActions(plan.Actions, signer))

	require.Len(t, plan.Orders, 1)
	sig := plan.Orders[0].Signature
	require.Len(t, sig, 65)

	// The signature must recover to the signer's account.
	signAction, ok := plan.Actions[0].(*SignOrderAction)
	require.True(t, ok)
	rec := bytes.Clone(sig)
	rec[64] -= 27
	pub, err := crypto.SigToPub(signAction.Digest.Bytes(), rec)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), crypto.PubkeyToAddress(*pub))
}

func TestBuildTransaction(t *testing.T) {
	nftTx, err := BuildTransaction(&ApproveAction{
		Token:    testNFT,
		ItemType: seaport.ItemERC721,
		Operator: testExchange,
	})
	require.NoError(t, err)
	assert.Equal(t, testNFT, nftTx.To)

	wantNFT, err := seaport.EncodeSetApprovalForAll(testExchange, true)
	require.NoError(t, err)
	assert.Equal(t, wantNFT, nftTx.Data)

	erc20Tx, err := BuildTransaction(&ApproveAction{
		Token:    testWETH,
		ItemType: seaport.ItemERC20,
		Operator: testExchange,
	})
	require.NoError(t, err)

	wantERC20, err := seaport.EncodeERC20Approve(testExchange, seaport.MaxInt256)
	require.NoError(t, err)
	assert.Equal(t, wantERC20, erc20Tx.Data)

	_, err = BuildTransaction(&SubmitOrdersAction{})
	assert.Error(t, err)
}

func wethCurrency() numeric.Currency {
	return numeric.Currency{Symbol: "WETH", Address: testWETH, Decimals: 18}
}
