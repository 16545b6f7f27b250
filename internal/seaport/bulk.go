package seaport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// maxBulkTreeHeight bounds the bulk order tree; the settlement contract
// rejects keys wider than 24 bits.
const maxBulkTreeHeight = 24

var (
	ErrEmptyBulkTree    = errors.New("seaport: bulk tree needs at least one order")
	ErrBulkTreeTooLarge = errors.New("seaport: bulk tree exceeds maximum height")
	ErrBadProofIndex    = errors.New("seaport: proof index out of range")
)

// emptyLeafHash is the struct hash of a zeroed OrderComponents, used to
// pad the leaf layer to a full power of two.
var emptyLeafHash = OrderHash(OrderComponents{})

// BulkTree is a balanced binary merkle tree over order hashes. Signing
// its root once covers every order in the tree; each order is then
// presented on-chain with its leaf index and sibling path.
type BulkTree struct {
	height int
	count  int
	// layers[0] is the padded leaf layer, layers[height] the root.
	layers [][]common.Hash
}

// NewBulkTree hashes the orders and builds the tree at height
// ceil(log2(n)), minimum 1.
func NewBulkTree(orders []OrderComponents) (*BulkTree, error) {
	if len(orders) == 0 {
		return nil, ErrEmptyBulkTree
	}

	height := 1
	for 1<<height < len(orders) {
		height++
	}
	if height > maxBulkTreeHeight {
		return nil, fmt.Errorf("%w: %d orders", ErrBulkTreeTooLarge, len(orders))
	}

	leaves := make([]common.Hash, 1<<height)
	for i, order := range orders {
		leaves[i] = OrderHash(order)
	}
	for i := len(orders); i < len(leaves); i++ {
		leaves[i] = emptyLeafHash
	}

	layers := make([][]common.Hash, height+1)
	layers[0] = leaves
	for level := 1; level <= height; level++ {
		below := layers[level-1]
		layer := make([]common.Hash, len(below)/2)
		for i := range layer {
			layer[i] = crypto.Keccak256Hash(below[2*i].Bytes(), below[2*i+1].Bytes())
		}
		layers[level] = layer
	}

	return &BulkTree{height: height, count: len(orders), layers: layers}, nil
}

// Height is the padded tree height.
func (t *BulkTree) Height() int { return t.height }

// Root is the merkle root over all padded leaves.
func (t *BulkTree) Root() common.Hash {
	return t.layers[t.height][0]
}

// Proof returns the leaf key and sibling path for order i, bottom-up.
func (t *BulkTree) Proof(i int) (uint32, []common.Hash, error) {
	if i < 0 || i >= t.count {
		return 0, nil, fmt.Errorf("%w: %d of %d", ErrBadProofIndex, i, t.count)
	}

	proof := make([]common.Hash, t.height)
	index := i
	for level := 0; level < t.height; level++ {
		proof[level] = t.layers[level][index^1]
		index >>= 1
	}
	return uint32(i), proof, nil
}

// VerifyProof reconstructs the root from a leaf, its key and sibling
// path.
func VerifyProof(root, leaf common.Hash, key uint32, proof []common.Hash) bool {
	current := leaf
	for _, sibling := range proof {
		if key&1 == 0 {
			current = crypto.Keccak256Hash(current.Bytes(), sibling.Bytes())
		} else {
			current = crypto.Keccak256Hash(sibling.Bytes(), current.Bytes())
		}
		key >>= 1
	}
	return current == root
}

// bulkOrderTypeString builds the BulkOrder type string for a tree of the
// given height. Referenced struct types follow in alphabetical order per
// EIP-712.
func bulkOrderTypeString(height int) string {
	return "BulkOrder(OrderComponents" + strings.Repeat("[2]", height) + " tree)" +
		considerationItemTypeString + offerItemTypeString + orderComponentsTypeString
}

// BulkOrderTypeHash is the EIP-712 type hash of BulkOrder at the given
// tree height.
func BulkOrderTypeHash(height int) common.Hash {
	return crypto.Keccak256Hash([]byte(bulkOrderTypeString(height)))
}

// SignDigest is the digest covering every order in the tree.
func (t *BulkTree) SignDigest(domainSeparator common.Hash) common.Hash {
	structHash := crypto.Keccak256Hash(BulkOrderTypeHash(t.height).Bytes(), t.Root().Bytes())
	return SignDigest(domainSeparator, structHash)
}

// EncodeBulkSignature packs a per-order signature the settlement contract
// can verify against the bulk-signed root: signature || 3-byte key ||
// proof words.
func EncodeBulkSignature(key uint32, proof []common.Hash, signature []byte) []byte {
	out := make([]byte, 0, len(signature)+3+len(proof)*32)
	out = append(out, signature...)

	var keyBytes [4]byte
	binary.BigEndian.PutUint32(keyBytes[:], key)
	out = append(out, keyBytes[1:]...)

	for _, h := range proof {
		out = append(out, h.Bytes()...)
	}
	return out
}
