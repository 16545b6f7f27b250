package seaport

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EIP-712 type strings as the settlement contract defines them. The
// order-components type string embeds the item type strings it
// references.
const (
	offerItemTypeString         = "OfferItem(uint8 itemType,address token,uint256 identifierOrCriteria,uint256 startAmount,uint256 endAmount)"
	considerationItemTypeString = "ConsiderationItem(uint8 itemType,address token,uint256 identifierOrCriteria,uint256 startAmount,uint256 endAmount,address recipient)"
	orderComponentsTypeString   = "OrderComponents(address offerer,address zone,OfferItem[] offer,ConsiderationItem[] consideration,uint8 orderType,uint256 startTime,uint256 endTime,bytes32 zoneHash,uint256 salt,bytes32 conduitKey,uint256 counter)"
	eip712DomainTypeString      = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"
)

var (
	offerItemTypeHash         = crypto.Keccak256Hash([]byte(offerItemTypeString))
	considerationItemTypeHash = crypto.Keccak256Hash([]byte(considerationItemTypeString))
	orderComponentsTypeHash   = crypto.Keccak256Hash([]byte(orderComponentsTypeString + considerationItemTypeString + offerItemTypeString))
	eip712DomainTypeHash      = crypto.Keccak256Hash([]byte(eip712DomainTypeString))

	nameHash    = crypto.Keccak256Hash([]byte(ContractName))
	versionHash = crypto.Keccak256Hash([]byte(ContractVersion))
)

// word left-pads a big integer to a 32-byte word, treating nil as zero.
func word(v *big.Int) []byte {
	if v == nil {
		return make([]byte, 32)
	}
	return common.BigToHash(v).Bytes()
}

func addressWord(a common.Address) []byte {
	return common.BytesToHash(a.Bytes()).Bytes()
}

func uint8Word(v uint8) []byte {
	return common.BigToHash(big.NewInt(int64(v))).Bytes()
}

func hashOfferItem(item OfferItem) common.Hash {
	return crypto.Keccak256Hash(
		offerItemTypeHash.Bytes(),
		uint8Word(uint8(item.ItemType)),
		addressWord(item.Token),
		word(item.IdentifierOrCriteria),
		word(item.StartAmount),
		word(item.EndAmount),
	)
}

func hashConsiderationItem(item ConsiderationItem) common.Hash {
	return crypto.Keccak256Hash(
		considerationItemTypeHash.Bytes(),
		uint8Word(uint8(item.ItemType)),
		addressWord(item.Token),
		word(item.IdentifierOrCriteria),
		word(item.StartAmount),
		word(item.EndAmount),
		addressWord(item.Recipient),
	)
}

// OrderHash computes the EIP-712 struct hash of the order components.
// This is the hash the settlement contract signs over and indexes orders
// by, so it doubles as the off-chain order identifier.
func OrderHash(order OrderComponents) common.Hash {
	offerHashes := make([]byte, 0, len(order.Offer)*32)
	for _, item := range order.Offer {
		offerHashes = append(offerHashes, hashOfferItem(item).Bytes()...)
	}

	considerationHashes := make([]byte, 0, len(order.Consideration)*32)
	for _, item := range order.Consideration {
		considerationHashes = append(considerationHashes, hashConsiderationItem(item).Bytes()...)
	}

	return crypto.Keccak256Hash(
		orderComponentsTypeHash.Bytes(),
		addressWord(order.Offerer),
		addressWord(order.Zone),
		crypto.Keccak256(offerHashes),
		crypto.Keccak256(considerationHashes),
		uint8Word(uint8(order.OrderType)),
		word(order.StartTime),
		word(order.EndTime),
		order.ZoneHash.Bytes(),
		word(order.Salt),
		order.ConduitKey.Bytes(),
		word(order.Counter),
	)
}

// DomainSeparator computes the EIP-712 domain separator for the
// settlement contract deployment on the given chain.
func DomainSeparator(chainID *big.Int, verifyingContract common.Address) common.Hash {
	return crypto.Keccak256Hash(
		eip712DomainTypeHash.Bytes(),
		nameHash.Bytes(),
		versionHash.Bytes(),
		word(chainID),
		addressWord(verifyingContract),
	)
}

// SignDigest is the final digest a wallet signs: 0x1901 || domain
// separator || struct hash.
func SignDigest(domainSeparator, structHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		domainSeparator.Bytes(),
		structHash.Bytes(),
	)
}

// OrderSignDigest is the digest for a single, non-bulk order.
func OrderSignDigest(chainID *big.Int, verifyingContract common.Address, order OrderComponents) common.Hash {
	return SignDigest(DomainSeparator(chainID, verifyingContract), OrderHash(order))
}
