package seaport

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder(salt int64) OrderComponents {
	return OrderComponents{
		OrderParameters: OrderParameters{
			Offerer: common.HexToAddress("0x7D878A527e86321aECd80A493E584117A907A0AB"),
			Zone:    common.Address{},
			Offer: []OfferItem{{
				ItemType:             ItemERC721,
				Token:                common.HexToAddress("0x7210000000000000000000000000000000000000"),
				IdentifierOrCriteria: big.NewInt(1),
				StartAmount:          big.NewInt(1),
				EndAmount:            big.NewInt(1),
			}},
			Consideration: []ConsiderationItem{{
				ItemType:             ItemNative,
				Token:                common.Address{},
				IdentifierOrCriteria: big.NewInt(0),
				StartAmount:          big.NewInt(1000000000000000000),
				EndAmount:            big.NewInt(1000000000000000000),
				Recipient:            common.HexToAddress("0x7D878A527e86321aECd80A493E584117A907A0AB"),
			}},
			OrderType: FullOpen,
			StartTime: big.NewInt(1700000000),
			EndTime:   big.NewInt(1800000000),
			Salt:      big.NewInt(salt),
		},
		Counter: big.NewInt(0),
	}
}

func TestOrderHashGoldenVector(t *testing.T) {
	// Mainnet ERC721 listing with an OpenSea fee split, hashed through
	// the conduit. The expected values were computed with an independent
	// EIP-712 implementation over the contract's type strings.
	offerer := common.HexToAddress("0x7D878A527e86321aECd80A493E584117A907A0AB")
	order := OrderComponents{
		OrderParameters: OrderParameters{
			Offerer: offerer,
			Offer: []OfferItem{{
				ItemType:             ItemERC721,
				Token:                common.HexToAddress("0xBC4CA0EdA7647A8aB7C2061c2E118A18a936f13D"),
				IdentifierOrCriteria: big.NewInt(5555),
				StartAmount:          big.NewInt(1),
				EndAmount:            big.NewInt(1),
			}},
			Consideration: []ConsiderationItem{
				{
					ItemType:    ItemNative,
					StartAmount: mustBig(t, "97500000000000000000"),
					EndAmount:   mustBig(t, "97500000000000000000"),
					Recipient:   offerer,
				},
				{
					ItemType:    ItemNative,
					StartAmount: mustBig(t, "2500000000000000000"),
					EndAmount:   mustBig(t, "2500000000000000000"),
					Recipient:   common.HexToAddress("0x0000a26b00c1F0DF003000390027140000fAa719"),
				},
			},
			OrderType:  FullOpen,
			StartTime:  big.NewInt(1718000000),
			EndTime:    big.NewInt(1720592000),
			Salt:       big.NewInt(0x5d879a8c9dd43d35),
			ConduitKey: common.HexToHash("0x0000007b02230091a7ed01230072f7006a004d60a8d4e71d599b8104250f0000"),
		},
		Counter: big.NewInt(3),
	}

	assert.Equal(t,
		common.HexToHash("0xf9d7c8d5f4ddb0b82eb01461fc9f0caeb29e26fb9b84ad5782e0639ecec7aa54"),
		orderComponentsTypeHash)
	assert.Equal(t,
		common.HexToHash("0xe947a821b55fab9426048584cc0d3690a5ca1b0ced1e00313a4a6627d09c7f66"),
		OrderHash(order))

	domain := DomainSeparator(big.NewInt(1), SeaportV16Address)
	assert.Equal(t,
		common.HexToHash("0x01704bbd2138d55f1682379c19ab45ce1ffe898205247321e0703913ecdbed5f"),
		domain)
	assert.Equal(t,
		common.HexToHash("0xedddb3757f553d177aea3469061e988a4bf465f767e9aca918d7a6a9f07f70b9"),
		OrderSignDigest(big.NewInt(1), SeaportV16Address, order))
}

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return v
}

func TestOrderHashDeterministic(t *testing.T) {
	order := sampleOrder(42)
	first := OrderHash(order)
	second := OrderHash(order)
	assert.Equal(t, first, second)
	assert.NotEqual(t, common.Hash{}, first)
}

func TestOrderHashSensitiveToFields(t *testing.T) {
	base := OrderHash(sampleOrder(42))

	mutated := sampleOrder(43)
	assert.NotEqual(t, base, OrderHash(mutated), "salt change must change the hash")

	withCounter := sampleOrder(42)
	withCounter.Counter = big.NewInt(1)
	assert.NotEqual(t, base, OrderHash(withCounter), "counter change must change the hash")

	withOfferer := sampleOrder(42)
	withOfferer.Offerer = common.HexToAddress("0x0000000000000000000000000000000000000001")
	assert.NotEqual(t, base, OrderHash(withOfferer))
}

func TestDomainSeparator(t *testing.T) {
	// The EIP712Domain type hash is a published constant.
	assert.Equal(t,
		common.HexToHash("0x8b73c3c69bb8fe3d512ecc4cf759cc79239f7b179b0ffacaa9a75d522b39400f"),
		eip712DomainTypeHash)

	mainnet := DomainSeparator(big.NewInt(1), SeaportV16Address)
	polygon := DomainSeparator(big.NewInt(137), SeaportV16Address)
	assert.NotEqual(t, mainnet, polygon, "chain id must bind the domain")
	assert.Equal(t, mainnet, DomainSeparator(big.NewInt(1), SeaportV16Address))
}

func TestSignDigestPrefix(t *testing.T) {
	order := sampleOrder(7)
	domain := DomainSeparator(big.NewInt(1), SeaportV16Address)
	digest := SignDigest(domain, OrderHash(order))

	assert.Equal(t, digest, OrderSignDigest(big.NewInt(1), SeaportV16Address, order))
	assert.NotEqual(t, digest, SignDigest(domain, OrderHash(sampleOrder(8))))
}

func TestNilAmountsHashAsZero(t *testing.T) {
	withNil := sampleOrder(1)
	withNil.Counter = nil
	withNil.StartTime = nil

	withZero := sampleOrder(1)
	withZero.Counter = big.NewInt(0)
	withZero.StartTime = big.NewInt(0)

	require.Equal(t, OrderHash(withZero), OrderHash(withNil))
}
