package validate

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lootex/aggregatord/internal/marketplace"
	"github.com/lootex/aggregatord/internal/order"
	"github.com/lootex/aggregatord/internal/seaport"
)

var (
	maker    = common.HexToAddress("0x7D878A527e86321aECd80A493E584117A907A0AB")
	nftToken = common.HexToAddress("0x7210000000000000000000000000000000000000")
	wethAddr = common.HexToAddress("0x2000000000000000000000000000000000000000")
)

// fakeReader satisfies chain.Reader with canned answers.
type fakeReader struct {
	nativeBalance *big.Int
	erc20Balance  *big.Int
	erc20Allow    *big.Int
	erc721Owner   common.Address
	erc1155Bal    *big.Int
	approvedAll   bool
	status        seaport.OrderStatus
	statusErr     error
	validateErr   error
}

func (f *fakeReader) Counter(context.Context, common.Address, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (f *fakeReader) OrderStatus(context.Context, common.Address, common.Hash) (seaport.OrderStatus, error) {
	return f.status, f.statusErr
}
func (f *fakeReader) SimulateValidate(context.Context, common.Address, common.Address, []seaport.Order) error {
	return f.validateErr
}
func (f *fakeReader) NativeBalance(context.Context, common.Address) (*big.Int, error) {
	return f.nativeBalance, nil
}
func (f *fakeReader) ERC20Balance(context.Context, common.Address, common.Address) (*big.Int, error) {
	return f.erc20Balance, nil
}
func (f *fakeReader) ERC20Allowance(context.Context, common.Address, common.Address, common.Address) (*big.Int, error) {
	return f.erc20Allow, nil
}
func (f *fakeReader) ERC721Owner(context.Context, common.Address, *big.Int) (common.Address, error) {
	return f.erc721Owner, nil
}
func (f *fakeReader) ERC1155Balance(context.Context, common.Address, common.Address, *big.Int) (*big.Int, error) {
	return f.erc1155Bal, nil
}
func (f *fakeReader) IsApprovedForAll(context.Context, common.Address, common.Address, common.Address) (bool, error) {
	return f.approvedAll, nil
}
func (f *fakeReader) Receipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, errors.New("not implemented")
}

func healthyReader() *fakeReader {
	return &fakeReader{
		nativeBalance: big.NewInt(1e18),
		erc20Balance:  big.NewInt(1e18),
		erc20Allow:    big.NewInt(1e18),
		erc721Owner:   maker,
		erc1155Bal:    big.NewInt(100),
		approvedAll:   true,
		status:        seaport.OrderStatus{IsValidated: true, TotalFilled: big.NewInt(0), TotalSize: big.NewInt(1)},
	}
}

func testListing(endTime int64) *order.Order {
	return &order.Order{
		Hash:            common.HexToHash("0x01"),
		Offerer:         maker,
		ChainID:         1,
		ExchangeAddress: seaport.SeaportV16Address,
		Category:        order.CategoryListing,
		Platform:        marketplace.Lootex,
		Parameters: seaport.OrderParameters{
			Offerer: maker,
			Offer: []seaport.OfferItem{{
				ItemType:             seaport.ItemERC721,
				Token:                nftToken,
				IdentifierOrCriteria: big.NewInt(1),
				StartAmount:          big.NewInt(1),
				EndAmount:            big.NewInt(1),
			}},
			Consideration: []seaport.ConsiderationItem{{
				ItemType:    seaport.ItemNative,
				StartAmount: big.NewInt(1e18),
				EndAmount:   big.NewInt(1e18),
				Recipient:   maker,
			}},
			EndTime: big.NewInt(endTime),
		},
		Counter: big.NewInt(0),
	}
}

func pipelineAt(reader *fakeReader, now int64) *Pipeline {
	p := New(reader, nil)
	p.now = func() time.Time { return time.Unix(now, 0) }
	return p
}

func TestValidHealthyOrder(t *testing.T) {
	p := pipelineAt(healthyReader(), 1700000000)

	results := p.ValidateOrders(context.Background(), []*order.Order{testListing(1800000000)})
	require.Len(t, results, 1)
	assert.True(t, results[0].IsValid)
	assert.Empty(t, results[0].InvalidReasons)
}

func TestExpiredAlwaysReported(t *testing.T) {
	// Even with everything else failing, the expiry reason must be
	// present; checks never short-circuit each other.
	reader := healthyReader()
	reader.erc721Owner = common.Address{}
	reader.approvedAll = false
	reader.status = seaport.OrderStatus{IsCancelled: true}
	p := pipelineAt(reader, 1900000000)

	results := p.ValidateOrders(context.Background(), []*order.Order{testListing(1800000000)})
	require.Len(t, results, 1)
	assert.False(t, results[0].IsValid)
	assert.Contains(t, results[0].InvalidReasons, ReasonExpired)
	assert.Contains(t, results[0].InvalidReasons, ReasonInsufficientBalance)
	assert.Contains(t, results[0].InvalidReasons, ReasonMissingApproval)
	assert.Contains(t, results[0].InvalidReasons, ReasonCancelled)
}

func TestCancelledOrder(t *testing.T) {
	reader := healthyReader()
	reader.status = seaport.OrderStatus{IsCancelled: true}
	p := pipelineAt(reader, 1700000000)

	results := p.ValidateOrders(context.Background(), []*order.Order{testListing(1800000000)})
	assert.False(t, results[0].IsValid)
	assert.Equal(t, []string{ReasonCancelled}, results[0].InvalidReasons)
}

func TestFullyFilledOrder(t *testing.T) {
	reader := healthyReader()
	reader.status = seaport.OrderStatus{TotalFilled: big.NewInt(4), TotalSize: big.NewInt(4)}
	p := pipelineAt(reader, 1700000000)

	results := p.ValidateOrders(context.Background(), []*order.Order{testListing(1800000000)})
	assert.Equal(t, []string{ReasonFullyFilled}, results[0].InvalidReasons)
}

func TestStatusErrorFailsClosed(t *testing.T) {
	reader := healthyReader()
	reader.statusErr = errors.New("rpc timeout")
	p := pipelineAt(reader, 1700000000)

	results := p.ValidateOrders(context.Background(), []*order.Order{testListing(1800000000)})
	assert.False(t, results[0].IsValid)
	assert.Contains(t, results[0].InvalidReasons, ReasonCancelled)
}

func TestERC20OfferChecksAllowance(t *testing.T) {
	o := testListing(1800000000)
	o.Category = order.CategoryOffer
	o.Parameters.Offer = []seaport.OfferItem{{
		ItemType:    seaport.ItemERC20,
		Token:       wethAddr,
		StartAmount: big.NewInt(1e18),
		EndAmount:   big.NewInt(1e18),
	}}

	reader := healthyReader()
	reader.erc20Allow = big.NewInt(1)
	p := pipelineAt(reader, 1700000000)

	results := p.ValidateOrders(context.Background(), []*order.Order{o})
	assert.Equal(t, []string{ReasonMissingApproval}, results[0].InvalidReasons)
}

func TestPartialFillScalesRequiredBalance(t *testing.T) {
	// A half-sold ERC1155 listing only needs the unsold units on hand.
	o := testListing(1800000000)
	o.Parameters.Offer = []seaport.OfferItem{{
		ItemType:             seaport.ItemERC1155,
		Token:                nftToken,
		IdentifierOrCriteria: big.NewInt(1),
		StartAmount:          big.NewInt(10),
		EndAmount:            big.NewInt(10),
	}}

	reader := healthyReader()
	reader.status = seaport.OrderStatus{IsValidated: true, TotalFilled: big.NewInt(6), TotalSize: big.NewInt(10)}
	reader.erc1155Bal = big.NewInt(4)
	p := pipelineAt(reader, 1700000000)

	results := p.ValidateOrders(context.Background(), []*order.Order{o})
	require.Len(t, results, 1)
	assert.True(t, results[0].IsValid)
	assert.Empty(t, results[0].InvalidReasons)

	reader.erc1155Bal = big.NewInt(3)
	results = p.ValidateOrders(context.Background(), []*order.Order{o})
	assert.Equal(t, []string{ReasonInsufficientBalance}, results[0].InvalidReasons)
}

func TestPartialFillScalesRequiredAllowance(t *testing.T) {
	o := testListing(1800000000)
	o.Category = order.CategoryOffer
	o.Parameters.Offer = []seaport.OfferItem{{
		ItemType:    seaport.ItemERC20,
		Token:       wethAddr,
		StartAmount: big.NewInt(1e18),
		EndAmount:   big.NewInt(1e18),
	}}

	reader := healthyReader()
	reader.status = seaport.OrderStatus{IsValidated: true, TotalFilled: big.NewInt(1), TotalSize: big.NewInt(2)}
	reader.erc20Balance = big.NewInt(5e17)
	reader.erc20Allow = big.NewInt(5e17)
	p := pipelineAt(reader, 1700000000)

	results := p.ValidateOrders(context.Background(), []*order.Order{o})
	require.Len(t, results, 1)
	assert.True(t, results[0].IsValid)
}

func TestCertify(t *testing.T) {
	a := testListing(1800000000)
	b := testListing(1800000000)
	b.Hash = common.HexToHash("0x02")

	reader := healthyReader()
	p := pipelineAt(reader, 1700000000)

	passes, err := p.Certify(context.Background(), maker, []*order.Order{a, b})
	require.NoError(t, err)
	assert.True(t, passes[a.Hash])
	assert.True(t, passes[b.Hash])

	reader.validateErr = errors.New("execution reverted")
	fails, err := p.Certify(context.Background(), maker, []*order.Order{a, b})
	require.NoError(t, err)
	assert.False(t, fails[a.Hash])
	assert.False(t, fails[b.Hash])
}
