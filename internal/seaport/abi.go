package seaport

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Hand-built ABI surface for the three contract families the engine
// talks to: the settlement contract, the aggregator and the token
// standards. Only the entry points the engine uses are declared.

var ErrShortReturnData = errors.New("seaport: return data too short")

func mustType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(err)
	}
	return typ
}

var (
	offerItemComponents = []abi.ArgumentMarshaling{
		{Name: "itemType", Type: "uint8"},
		{Name: "token", Type: "address"},
		{Name: "identifierOrCriteria", Type: "uint256"},
		{Name: "startAmount", Type: "uint256"},
		{Name: "endAmount", Type: "uint256"},
	}
	considerationItemComponents = []abi.ArgumentMarshaling{
		{Name: "itemType", Type: "uint8"},
		{Name: "token", Type: "address"},
		{Name: "identifierOrCriteria", Type: "uint256"},
		{Name: "startAmount", Type: "uint256"},
		{Name: "endAmount", Type: "uint256"},
		{Name: "recipient", Type: "address"},
	}
	orderParametersComponents = []abi.ArgumentMarshaling{
		{Name: "offerer", Type: "address"},
		{Name: "zone", Type: "address"},
		{Name: "offer", Type: "tuple[]", Components: offerItemComponents},
		{Name: "consideration", Type: "tuple[]", Components: considerationItemComponents},
		{Name: "orderType", Type: "uint8"},
		{Name: "startTime", Type: "uint256"},
		{Name: "endTime", Type: "uint256"},
		{Name: "zoneHash", Type: "bytes32"},
		{Name: "salt", Type: "uint256"},
		{Name: "conduitKey", Type: "bytes32"},
		{Name: "totalOriginalConsiderationItems", Type: "uint256"},
	}
	orderComponentsComponents = []abi.ArgumentMarshaling{
		{Name: "offerer", Type: "address"},
		{Name: "zone", Type: "address"},
		{Name: "offer", Type: "tuple[]", Components: offerItemComponents},
		{Name: "consideration", Type: "tuple[]", Components: considerationItemComponents},
		{Name: "orderType", Type: "uint8"},
		{Name: "startTime", Type: "uint256"},
		{Name: "endTime", Type: "uint256"},
		{Name: "zoneHash", Type: "bytes32"},
		{Name: "salt", Type: "uint256"},
		{Name: "conduitKey", Type: "bytes32"},
		{Name: "counter", Type: "uint256"},
	}
	orderComponentsList = []abi.ArgumentMarshaling{
		{Name: "parameters", Type: "tuple", Components: orderParametersComponents},
		{Name: "signature", Type: "bytes"},
	}
	advancedOrderComponents = []abi.ArgumentMarshaling{
		{Name: "parameters", Type: "tuple", Components: orderParametersComponents},
		{Name: "numerator", Type: "uint120"},
		{Name: "denominator", Type: "uint120"},
		{Name: "signature", Type: "bytes"},
		{Name: "extraData", Type: "bytes"},
	}
	criteriaResolverComponents = []abi.ArgumentMarshaling{
		{Name: "orderIndex", Type: "uint256"},
		{Name: "side", Type: "uint8"},
		{Name: "index", Type: "uint256"},
		{Name: "identifier", Type: "uint256"},
		{Name: "criteriaProof", Type: "bytes32[]"},
	}
	fulfillmentComponentComponents = []abi.ArgumentMarshaling{
		{Name: "orderIndex", Type: "uint256"},
		{Name: "itemIndex", Type: "uint256"},
	}
	spentItemComponents = []abi.ArgumentMarshaling{
		{Name: "itemType", Type: "uint8"},
		{Name: "token", Type: "address"},
		{Name: "identifier", Type: "uint256"},
		{Name: "amount", Type: "uint256"},
	}
	receivedItemComponents = []abi.ArgumentMarshaling{
		{Name: "itemType", Type: "uint8"},
		{Name: "token", Type: "address"},
		{Name: "identifier", Type: "uint256"},
		{Name: "amount", Type: "uint256"},
		{Name: "recipient", Type: "address"},
	}
)

var (
	typeAddress      = mustType("address", nil)
	typeAddressSlice = mustType("address[]", nil)
	typeBool         = mustType("bool", nil)
	typeBytes        = mustType("bytes", nil)
	typeBytes32      = mustType("bytes32", nil)
	typeUint256      = mustType("uint256", nil)
	typeUint256Slice = mustType("uint256[]", nil)

	typeOrderSlice             = mustType("tuple[]", orderComponentsList)
	typeOrderComponentsSlice   = mustType("tuple[]", orderComponentsComponents)
	typeAdvancedOrder          = mustType("tuple", advancedOrderComponents)
	typeAdvancedOrderSlice     = mustType("tuple[]", advancedOrderComponents)
	typeCriteriaResolverSlice  = mustType("tuple[]", criteriaResolverComponents)
	typeFulfillmentGrid        = mustType("tuple[][]", fulfillmentComponentComponents)
	typeSpentItemSlice         = mustType("tuple[]", spentItemComponents)
	typeReceivedItemSlice      = mustType("tuple[]", receivedItemComponents)
	typeERC20DetailSlice       = mustType("tuple[]", []abi.ArgumentMarshaling{{Name: "token", Type: "address"}, {Name: "amount", Type: "uint256"}})
	typeERC721DetailSlice      = mustType("tuple[]", []abi.ArgumentMarshaling{{Name: "token", Type: "address"}, {Name: "tokenId", Type: "uint256"}})
	typeERC1155DetailSlice     = mustType("tuple[]", []abi.ArgumentMarshaling{{Name: "token", Type: "address"}, {Name: "tokenId", Type: "uint256"}, {Name: "amount", Type: "uint256"}})
)

func args(types ...abi.Type) abi.Arguments {
	out := make(abi.Arguments, len(types))
	for i, t := range types {
		out[i] = abi.Argument{Type: t}
	}
	return out
}

func method(name string, inputs, outputs abi.Arguments) abi.Method {
	return abi.NewMethod(name, name, abi.Function, "", false, false, inputs, outputs)
}

// Settlement contract methods.
var (
	methodGetCounter     = method("getCounter", args(typeAddress), args(typeUint256))
	methodGetOrderStatus = method("getOrderStatus", args(typeBytes32), args(typeBool, typeBool, typeUint256, typeUint256))
	methodValidate       = method("validate", args(typeOrderSlice), args(typeBool))
	methodCancel         = method("cancel", args(typeOrderComponentsSlice), args(typeBool))

	methodFulfillAdvancedOrder = method("fulfillAdvancedOrder",
		args(typeAdvancedOrder, typeCriteriaResolverSlice, typeBytes32, typeAddress), args(typeBool))
	methodFulfillAvailableAdvancedOrders = method("fulfillAvailableAdvancedOrders",
		args(typeAdvancedOrderSlice, typeCriteriaResolverSlice, typeFulfillmentGrid, typeFulfillmentGrid, typeBytes32, typeAddress, typeUint256), nil)
)

// Aggregator contract methods.
var (
	methodBatchBuyWithETH    = method("batchBuyWithETH", args(typeBytes), nil)
	methodBatchBuyWithERC20s = method("batchBuyWithERC20s", args(typeERC20DetailSlice, typeBytes, typeAddressSlice), nil)
	methodAcceptWithERC721   = method("acceptWithERC721", args(typeERC721DetailSlice, typeUint256Slice, typeAddressSlice, typeBytes), nil)
	methodAcceptWithERC1155  = method("acceptWithERC1155", args(typeERC1155DetailSlice, typeUint256Slice, typeAddressSlice, typeBytes), nil)
	methodApproveERC721      = method("approveERC721", args(typeAddress, typeAddress, typeBool), nil)
	methodApproveERC1155     = method("approveERC1155", args(typeAddress, typeAddress, typeBool), nil)
)

// Token standard methods.
var (
	methodERC20Approve       = method("approve", args(typeAddress, typeUint256), args(typeBool))
	methodERC20Allowance     = method("allowance", args(typeAddress, typeAddress), args(typeUint256))
	methodBalanceOf          = method("balanceOf", args(typeAddress), args(typeUint256))
	methodOwnerOf            = method("ownerOf", args(typeUint256), args(typeAddress))
	methodSetApprovalForAll  = method("setApprovalForAll", args(typeAddress, typeBool), nil)
	methodIsApprovedForAll   = method("isApprovedForAll", args(typeAddress, typeAddress), args(typeBool))
	methodBalanceOfERC1155   = method("balanceOf", args(typeAddress, typeUint256), args(typeUint256))
)

// OrderFulfilled event of the settlement contract; offerer and zone are
// indexed.
var eventOrderFulfilled = abi.NewEvent("OrderFulfilled", "OrderFulfilled", false, abi.Arguments{
	{Name: "orderHash", Type: typeBytes32},
	{Name: "offerer", Type: typeAddress, Indexed: true},
	{Name: "zone", Type: typeAddress, Indexed: true},
	{Name: "recipient", Type: typeAddress},
	{Name: "offer", Type: typeSpentItemSlice},
	{Name: "consideration", Type: typeReceivedItemSlice},
})

// Event topics the reconciler matches receipt logs against.
var (
	OrderFulfilledTopic = eventOrderFulfilled.ID
	TransferTopic       = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	TransferSingleTopic = crypto.Keccak256Hash([]byte("TransferSingle(address,address,address,uint256,uint256)"))
)

// Wire structs mirror the tuple layouts above so go-ethereum's reflection
// based packer can map fields by name.

type wireOfferItem struct {
	ItemType             uint8
	Token                common.Address
	IdentifierOrCriteria *big.Int
	StartAmount          *big.Int
	EndAmount            *big.Int
}

type wireConsiderationItem struct {
	ItemType             uint8
	Token                common.Address
	IdentifierOrCriteria *big.Int
	StartAmount          *big.Int
	EndAmount            *big.Int
	Recipient            common.Address
}

type wireOrderParameters struct {
	Offerer                         common.Address
	Zone                            common.Address
	Offer                           []wireOfferItem
	Consideration                   []wireConsiderationItem
	OrderType                       uint8
	StartTime                       *big.Int
	EndTime                         *big.Int
	ZoneHash                        [32]byte
	Salt                            *big.Int
	ConduitKey                      [32]byte
	TotalOriginalConsiderationItems *big.Int
}

type wireOrderComponents struct {
	Offerer       common.Address
	Zone          common.Address
	Offer         []wireOfferItem
	Consideration []wireConsiderationItem
	OrderType     uint8
	StartTime     *big.Int
	EndTime       *big.Int
	ZoneHash      [32]byte
	Salt          *big.Int
	ConduitKey    [32]byte
	Counter       *big.Int
}

type wireOrder struct {
	Parameters wireOrderParameters
	Signature  []byte
}

type wireAdvancedOrder struct {
	Parameters  wireOrderParameters
	Numerator   *big.Int
	Denominator *big.Int
	Signature   []byte
	ExtraData   []byte
}

type wireCriteriaResolver struct {
	OrderIndex    *big.Int
	Side          uint8
	Index         *big.Int
	Identifier    *big.Int
	CriteriaProof [][32]byte
}

type wireFulfillmentComponent struct {
	OrderIndex *big.Int
	ItemIndex  *big.Int
}

type wireSpentItem struct {
	ItemType   uint8
	Token      common.Address
	Identifier *big.Int
	Amount     *big.Int
}

type wireReceivedItem struct {
	ItemType   uint8
	Token      common.Address
	Identifier *big.Int
	Amount     *big.Int
	Recipient  common.Address
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func toWireOfferItems(items []OfferItem) []wireOfferItem {
	out := make([]wireOfferItem, len(items))
	for i, item := range items {
		out[i] = wireOfferItem{
			ItemType:             uint8(item.ItemType),
			Token:                item.Token,
			IdentifierOrCriteria: bigOrZero(item.IdentifierOrCriteria),
			StartAmount:          bigOrZero(item.StartAmount),
			EndAmount:            bigOrZero(item.EndAmount),
		}
	}
	return out
}

func toWireConsiderationItems(items []ConsiderationItem) []wireConsiderationItem {
	out := make([]wireConsiderationItem, len(items))
	for i, item := range items {
		out[i] = wireConsiderationItem{
			ItemType:             uint8(item.ItemType),
			Token:                item.Token,
			IdentifierOrCriteria: bigOrZero(item.IdentifierOrCriteria),
			StartAmount:          bigOrZero(item.StartAmount),
			EndAmount:            bigOrZero(item.EndAmount),
			Recipient:            item.Recipient,
		}
	}
	return out
}

func toWireParameters(p OrderParameters) wireOrderParameters {
	total := p.TotalOriginalConsiderationItems
	if total == nil {
		total = big.NewInt(int64(len(p.Consideration)))
	}
	return wireOrderParameters{
		Offerer:                         p.Offerer,
		Zone:                            p.Zone,
		Offer:                           toWireOfferItems(p.Offer),
		Consideration:                   toWireConsiderationItems(p.Consideration),
		OrderType:                       uint8(p.OrderType),
		StartTime:                       bigOrZero(p.StartTime),
		EndTime:                         bigOrZero(p.EndTime),
		ZoneHash:                        p.ZoneHash,
		Salt:                            bigOrZero(p.Salt),
		ConduitKey:                      p.ConduitKey,
		TotalOriginalConsiderationItems: total,
	}
}

func toWireComponents(c OrderComponents) wireOrderComponents {
	return wireOrderComponents{
		Offerer:       c.Offerer,
		Zone:          c.Zone,
		Offer:         toWireOfferItems(c.Offer),
		Consideration: toWireConsiderationItems(c.Consideration),
		OrderType:     uint8(c.OrderType),
		StartTime:     bigOrZero(c.StartTime),
		EndTime:       bigOrZero(c.EndTime),
		ZoneHash:      c.ZoneHash,
		Salt:          bigOrZero(c.Salt),
		ConduitKey:    c.ConduitKey,
		Counter:       bigOrZero(c.Counter),
	}
}

func toWireAdvancedOrder(o AdvancedOrder) wireAdvancedOrder {
	sig := o.Signature
	if sig == nil {
		sig = []byte{}
	}
	extra := o.ExtraData
	if extra == nil {
		extra = []byte{}
	}
	numerator := o.Numerator
	if numerator == nil {
		numerator = big.NewInt(1)
	}
	denominator := o.Denominator
	if denominator == nil {
		denominator = big.NewInt(1)
	}
	return wireAdvancedOrder{
		Parameters:  toWireParameters(o.Parameters),
		Numerator:   numerator,
		Denominator: denominator,
		Signature:   sig,
		ExtraData:   extra,
	}
}

func toWireResolvers(resolvers []CriteriaResolver) []wireCriteriaResolver {
	out := make([]wireCriteriaResolver, len(resolvers))
	for i, r := range resolvers {
		proof := make([][32]byte, len(r.CriteriaProof))
		for j, h := range r.CriteriaProof {
			proof[j] = h
		}
		out[i] = wireCriteriaResolver{
			OrderIndex:    bigOrZero(r.OrderIndex),
			Side:          uint8(r.Side),
			Index:         bigOrZero(r.Index),
			Identifier:    bigOrZero(r.Identifier),
			CriteriaProof: proof,
		}
	}
	return out
}

func toWireFulfillments(grid [][]FulfillmentComponent) [][]wireFulfillmentComponent {
	out := make([][]wireFulfillmentComponent, len(grid))
	for i, row := range grid {
		out[i] = make([]wireFulfillmentComponent, len(row))
		for j, c := range row {
			out[i][j] = wireFulfillmentComponent{
				OrderIndex: bigOrZero(c.OrderIndex),
				ItemIndex:  bigOrZero(c.ItemIndex),
			}
		}
	}
	return out
}

func encode(m abi.Method, values ...interface{}) ([]byte, error) {
	packed, err := m.Inputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", m.Name, err)
	}
	return append(append([]byte{}, m.ID...), packed...), nil
}

// EncodeGetCounter packs a getCounter call for the offerer.
func EncodeGetCounter(offerer common.Address) ([]byte, error) {
	return encode(methodGetCounter, offerer)
}

// DecodeCounter unpacks the getCounter return value.
func DecodeCounter(data []byte) (*big.Int, error) {
	out, err := methodGetCounter.Outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack getCounter: %w", err)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// EncodeGetOrderStatus packs a getOrderStatus call for the order hash.
func EncodeGetOrderStatus(orderHash common.Hash) ([]byte, error) {
	return encode(methodGetOrderStatus, [32]byte(orderHash))
}

// DecodeOrderStatus unpacks the getOrderStatus return values.
func DecodeOrderStatus(data []byte) (OrderStatus, error) {
	out, err := methodGetOrderStatus.Outputs.Unpack(data)
	if err != nil {
		return OrderStatus{}, fmt.Errorf("unpack getOrderStatus: %w", err)
	}
	return OrderStatus{
		IsValidated: out[0].(bool),
		IsCancelled: out[1].(bool),
		TotalFilled: abi.ConvertType(out[2], new(big.Int)).(*big.Int),
		TotalSize:   abi.ConvertType(out[3], new(big.Int)).(*big.Int),
	}, nil
}

// EncodeValidate packs a validate call over the signed orders. The call
// is only ever simulated; it reverts when a signature does not check out.
func EncodeValidate(orders []Order) ([]byte, error) {
	wire := make([]wireOrder, len(orders))
	for i, o := range orders {
		sig := o.Signature
		if sig == nil {
			sig = []byte{}
		}
		wire[i] = wireOrder{Parameters: toWireParameters(o.Parameters), Signature: sig}
	}
	return encode(methodValidate, wire)
}

// EncodeCancel packs a cancel call over the order components.
func EncodeCancel(orders []OrderComponents) ([]byte, error) {
	wire := make([]wireOrderComponents, len(orders))
	for i, o := range orders {
		wire[i] = toWireComponents(o)
	}
	return encode(methodCancel, wire)
}

// EncodeFulfillAdvancedOrder packs a single-order fulfillment.
func EncodeFulfillAdvancedOrder(order AdvancedOrder, resolvers []CriteriaResolver, conduitKey common.Hash, recipient common.Address) ([]byte, error) {
	return encode(methodFulfillAdvancedOrder,
		toWireAdvancedOrder(order), toWireResolvers(resolvers), [32]byte(conduitKey), recipient)
}

// EncodeFulfillAvailableAdvancedOrders packs a batch fulfillment that
// skips unavailable orders instead of reverting.
func EncodeFulfillAvailableAdvancedOrders(
	orders []AdvancedOrder,
	resolvers []CriteriaResolver,
	offerFulfillments, considerationFulfillments [][]FulfillmentComponent,
	conduitKey common.Hash,
	recipient common.Address,
	maximumFulfilled *big.Int,
) ([]byte, error) {
	wire := make([]wireAdvancedOrder, len(orders))
	for i, o := range orders {
		wire[i] = toWireAdvancedOrder(o)
	}
	return encode(methodFulfillAvailableAdvancedOrders,
		wire, toWireResolvers(resolvers),
		toWireFulfillments(offerFulfillments), toWireFulfillments(considerationFulfillments),
		[32]byte(conduitKey), recipient, bigOrZero(maximumFulfilled))
}

// ERC20Detail names a payment token and the total the aggregator should
// pull for a batch.
type ERC20Detail struct {
	Token  common.Address
	Amount *big.Int
}

// NFTDetail names one NFT handed to the aggregator when accepting offers.
type NFTDetail struct {
	Token      common.Address
	Identifier *big.Int
	Amount     *big.Int
}

type wireERC20Detail struct {
	Token  common.Address
	Amount *big.Int
}

type wireERC721Detail struct {
	Token   common.Address
	TokenId *big.Int
}

type wireERC1155Detail struct {
	Token   common.Address
	TokenId *big.Int
	Amount  *big.Int
}

// EncodeBatchBuyWithETH packs the native-payment aggregator call.
func EncodeBatchBuyWithETH(tradeBytes []byte) ([]byte, error) {
	return encode(methodBatchBuyWithETH, tradeBytes)
}

// EncodeBatchBuyWithERC20s packs the ERC20-payment aggregator call.
// Dust tokens are swept back to the caller after the batch.
func EncodeBatchBuyWithERC20s(details []ERC20Detail, tradeBytes []byte, dustTokens []common.Address) ([]byte, error) {
	wire := make([]wireERC20Detail, len(details))
	for i, d := range details {
		wire[i] = wireERC20Detail{Token: d.Token, Amount: bigOrZero(d.Amount)}
	}
	if dustTokens == nil {
		dustTokens = []common.Address{}
	}
	return encode(methodBatchBuyWithERC20s, wire, tradeBytes, dustTokens)
}

// EncodeAcceptWithERC721 packs the accept-offer call delivering ERC721s.
func EncodeAcceptWithERC721(nfts []NFTDetail, feeAmounts []*big.Int, dustTokens []common.Address, tradeBytes []byte) ([]byte, error) {
	wire := make([]wireERC721Detail, len(nfts))
	for i, n := range nfts {
		wire[i] = wireERC721Detail{Token: n.Token, TokenId: bigOrZero(n.Identifier)}
	}
	if feeAmounts == nil {
		feeAmounts = []*big.Int{}
	}
	if dustTokens == nil {
		dustTokens = []common.Address{}
	}
	return encode(methodAcceptWithERC721, wire, feeAmounts, dustTokens, tradeBytes)
}

// EncodeAcceptWithERC1155 packs the accept-offer call delivering
// ERC1155 units.
func EncodeAcceptWithERC1155(nfts []NFTDetail, feeAmounts []*big.Int, dustTokens []common.Address, tradeBytes []byte) ([]byte, error) {
	wire := make([]wireERC1155Detail, len(nfts))
	for i, n := range nfts {
		wire[i] = wireERC1155Detail{Token: n.Token, TokenId: bigOrZero(n.Identifier), Amount: bigOrZero(n.Amount)}
	}
	if feeAmounts == nil {
		feeAmounts = []*big.Int{}
	}
	if dustTokens == nil {
		dustTokens = []common.Address{}
	}
	return encode(methodAcceptWithERC1155, wire, feeAmounts, dustTokens, tradeBytes)
}

// EncodeApproveERC721 packs the aggregator's approval hop for ERC721
// collections.
func EncodeApproveERC721(token, operator common.Address, approved bool) ([]byte, error) {
	return encode(methodApproveERC721, token, operator, approved)
}

// EncodeApproveERC1155 packs the aggregator's approval hop for ERC1155
// collections.
func EncodeApproveERC1155(token, operator common.Address, approved bool) ([]byte, error) {
	return encode(methodApproveERC1155, token, operator, approved)
}

// EncodeERC20Approve packs an unconditional max-allowance approval.
func EncodeERC20Approve(spender common.Address, amount *big.Int) ([]byte, error) {
	return encode(methodERC20Approve, spender, bigOrZero(amount))
}

// EncodeAllowance packs an ERC20 allowance query.
func EncodeAllowance(owner, spender common.Address) ([]byte, error) {
	return encode(methodERC20Allowance, owner, spender)
}

// DecodeAllowance unpacks an allowance return value.
func DecodeAllowance(data []byte) (*big.Int, error) {
	out, err := methodERC20Allowance.Outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack allowance: %w", err)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// EncodeBalanceOf packs an ERC20/ERC721 balanceOf query.
func EncodeBalanceOf(owner common.Address) ([]byte, error) {
	return encode(methodBalanceOf, owner)
}

// DecodeBalanceOf unpacks a balanceOf return value.
func DecodeBalanceOf(data []byte) (*big.Int, error) {
	out, err := methodBalanceOf.Outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// EncodeBalanceOfERC1155 packs an ERC1155 balance query.
func EncodeBalanceOfERC1155(owner common.Address, id *big.Int) ([]byte, error) {
	return encode(methodBalanceOfERC1155, owner, bigOrZero(id))
}

// DecodeBalanceOfERC1155 unpacks an ERC1155 balance return value.
func DecodeBalanceOfERC1155(data []byte) (*big.Int, error) {
	out, err := methodBalanceOfERC1155.Outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// EncodeOwnerOf packs an ERC721 ownerOf query.
func EncodeOwnerOf(id *big.Int) ([]byte, error) {
	return encode(methodOwnerOf, bigOrZero(id))
}

// DecodeOwnerOf unpacks an ownerOf return value.
func DecodeOwnerOf(data []byte) (common.Address, error) {
	out, err := methodOwnerOf.Outputs.Unpack(data)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack ownerOf: %w", err)
	}
	return out[0].(common.Address), nil
}

// EncodeSetApprovalForAll packs a collection-wide NFT approval.
func EncodeSetApprovalForAll(operator common.Address, approved bool) ([]byte, error) {
	return encode(methodSetApprovalForAll, operator, approved)
}

// EncodeIsApprovedForAll packs a collection-wide approval query.
func EncodeIsApprovedForAll(owner, operator common.Address) ([]byte, error) {
	return encode(methodIsApprovedForAll, owner, operator)
}

// DecodeIsApprovedForAll unpacks an isApprovedForAll return value.
func DecodeIsApprovedForAll(data []byte) (bool, error) {
	out, err := methodIsApprovedForAll.Outputs.Unpack(data)
	if err != nil {
		return false, fmt.Errorf("unpack isApprovedForAll: %w", err)
	}
	return out[0].(bool), nil
}

// ParseOrderFulfilled decodes one OrderFulfilled log from its topics and
// data. The caller has already matched topic zero.
func ParseOrderFulfilled(topics []common.Hash, data []byte) (FulfilledOrder, error) {
	if len(topics) < 3 {
		return FulfilledOrder{}, fmt.Errorf("%w: %d topics", ErrShortReturnData, len(topics))
	}

	out, err := eventOrderFulfilled.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return FulfilledOrder{}, fmt.Errorf("unpack OrderFulfilled: %w", err)
	}

	spent := *abi.ConvertType(out[2], new([]wireSpentItem)).(*[]wireSpentItem)
	received := *abi.ConvertType(out[3], new([]wireReceivedItem)).(*[]wireReceivedItem)

	offer := make([]SpentItem, len(spent))
	for i, item := range spent {
		offer[i] = SpentItem{
			ItemType:   ItemType(item.ItemType),
			Token:      item.Token,
			Identifier: item.Identifier,
			Amount:     item.Amount,
		}
	}
	consideration := make([]ReceivedItem, len(received))
	for i, item := range received {
		consideration[i] = ReceivedItem{
			ItemType:   ItemType(item.ItemType),
			Token:      item.Token,
			Identifier: item.Identifier,
			Amount:     item.Amount,
			Recipient:  item.Recipient,
		}
	}

	return FulfilledOrder{
		OrderHash:     common.Hash(out[0].([32]byte)),
		Offerer:       common.BytesToAddress(topics[1].Bytes()),
		Zone:          common.BytesToAddress(topics[2].Bytes()),
		Recipient:     out[1].(common.Address),
		Offer:         offer,
		Consideration: consideration,
	}, nil
}
