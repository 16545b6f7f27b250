package seaport

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeGetCounterSelector(t *testing.T) {
	data, err := EncodeGetCounter(common.HexToAddress("0x7D878A527e86321aECd80A493E584117A907A0AB"))
	require.NoError(t, err)
	require.Len(t, data, 4+32)
	assert.Equal(t, methodGetCounter.ID, data[:4])
}

func TestDecodeOrderStatus(t *testing.T) {
	packed, err := methodGetOrderStatus.Outputs.Pack(true, false, big.NewInt(1), big.NewInt(4))
	require.NoError(t, err)

	status, err := DecodeOrderStatus(packed)
	require.NoError(t, err)
	assert.True(t, status.IsValidated)
	assert.False(t, status.IsCancelled)
	assert.Equal(t, int64(1), status.TotalFilled.Int64())
	assert.Equal(t, int64(4), status.TotalSize.Int64())
	assert.False(t, status.FullyFilled())

	packed, err = methodGetOrderStatus.Outputs.Pack(true, false, big.NewInt(4), big.NewInt(4))
	require.NoError(t, err)
	status, err = DecodeOrderStatus(packed)
	require.NoError(t, err)
	assert.True(t, status.FullyFilled())
}

func TestEncodeFulfillAdvancedOrder(t *testing.T) {
	o := sampleOrder(9)
	advanced := AdvancedOrder{
		Parameters:  o.OrderParameters,
		Numerator:   big.NewInt(1),
		Denominator: big.NewInt(1),
		Signature:   make([]byte, 65),
	}

	data, err := EncodeFulfillAdvancedOrder(advanced, nil, common.Hash{}, o.Offerer)
	require.NoError(t, err)
	assert.Equal(t, methodFulfillAdvancedOrder.ID, data[:4])
	assert.Greater(t, len(data), 4+32*10)
}

func TestEncodeFulfillAvailableAdvancedOrders(t *testing.T) {
	orders := []AdvancedOrder{
		{Parameters: sampleOrder(1).OrderParameters},
		{Parameters: sampleOrder(2).OrderParameters},
	}
	offer := [][]FulfillmentComponent{
		{{OrderIndex: big.NewInt(0), ItemIndex: big.NewInt(0)}},
		{{OrderIndex: big.NewInt(1), ItemIndex: big.NewInt(0)}},
	}
	consideration := [][]FulfillmentComponent{
		{{OrderIndex: big.NewInt(0), ItemIndex: big.NewInt(0)}, {OrderIndex: big.NewInt(1), ItemIndex: big.NewInt(0)}},
	}

	data, err := EncodeFulfillAvailableAdvancedOrders(orders, nil, offer, consideration,
		OpenSeaConduitKey, common.HexToAddress("0x01"), big.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, methodFulfillAvailableAdvancedOrders.ID, data[:4])
}

func TestEncodeCancel(t *testing.T) {
	data, err := EncodeCancel([]OrderComponents{sampleOrder(1), sampleOrder(2)})
	require.NoError(t, err)
	assert.Equal(t, methodCancel.ID, data[:4])
}

func TestTokenCallRoundTrips(t *testing.T) {
	owner := common.HexToAddress("0x7D878A527e86321aECd80A493E584117A907A0AB")
	operator := common.HexToAddress("0x1e0049783F008A0085193E00003D00cd54003c71")

	data, err := EncodeAllowance(owner, operator)
	require.NoError(t, err)
	assert.Len(t, data, 4+64)

	packed, err := methodERC20Allowance.Outputs.Pack(big.NewInt(12345))
	require.NoError(t, err)
	allowance, err := DecodeAllowance(packed)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), allowance.Int64())

	packed, err = methodIsApprovedForAll.Outputs.Pack(true)
	require.NoError(t, err)
	approved, err := DecodeIsApprovedForAll(packed)
	require.NoError(t, err)
	assert.True(t, approved)

	packed, err = methodOwnerOf.Outputs.Pack(owner)
	require.NoError(t, err)
	got, err := DecodeOwnerOf(packed)
	require.NoError(t, err)
	assert.Equal(t, owner, got)
}

func TestParseOrderFulfilled(t *testing.T) {
	offerer := common.HexToAddress("0x7D878A527e86321aECd80A493E584117A907A0AB")
	recipient := common.HexToAddress("0x0000000000000000000000000000000000000002")
	orderHash := common.HexToHash("0xdeadbeef00000000000000000000000000000000000000000000000000000000")

	spent := []wireSpentItem{{
		ItemType:   uint8(ItemERC721),
		Token:      common.HexToAddress("0x7210000000000000000000000000000000000000"),
		Identifier: big.NewInt(5),
		Amount:     big.NewInt(1),
	}}
	received := []wireReceivedItem{{
		ItemType:   uint8(ItemNative),
		Identifier: big.NewInt(0),
		Amount:     big.NewInt(1000),
		Recipient:  offerer,
	}}

	data, err := eventOrderFulfilled.Inputs.NonIndexed().Pack([32]byte(orderHash), recipient, spent, received)
	require.NoError(t, err)

	topics := []common.Hash{
		OrderFulfilledTopic,
		common.BytesToHash(offerer.Bytes()),
		{},
	}

	fulfilled, err := ParseOrderFulfilled(topics, data)
	require.NoError(t, err)
	assert.Equal(t, orderHash, fulfilled.OrderHash)
	assert.Equal(t, offerer, fulfilled.Offerer)
	assert.Equal(t, recipient, fulfilled.Recipient)
	require.Len(t, fulfilled.Offer, 1)
	assert.Equal(t, ItemERC721, fulfilled.Offer[0].ItemType)
	assert.Equal(t, int64(5), fulfilled.Offer[0].Identifier.Int64())
	require.Len(t, fulfilled.Consideration, 1)
	assert.Equal(t, int64(1000), fulfilled.Consideration[0].Amount.Int64())
}
