package builder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lootex/aggregatord/internal/chain"
	"github.com/lootex/aggregatord/internal/order"
	"github.com/lootex/aggregatord/internal/seaport"
)

// TransactionRequest is a ready-to-broadcast call; broadcasting is the
// caller's responsibility.
type TransactionRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Action is one discrete step of an order-creation plan. The caller
// controls sequencing and may abort between steps.
type Action interface {
	Kind() string
}

// ApproveAction asks the maker to grant the operator access to an
// offered token.
type ApproveAction struct {
	Token                common.Address
	ItemType             seaport.ItemType
	IdentifierOrCriteria *big.Int
	Operator             common.Address
}

func (ApproveAction) Kind() string { return "approve" }

// SignOrderAction asks for one signature over a single order digest.
type SignOrderAction struct {
	Order  *order.Order
	Digest common.Hash
}

func (SignOrderAction) Kind() string { return "sign-order" }

// Apply stores the wallet's signature on the order.
func (a *SignOrderAction) Apply(signature []byte) {
	a.Order.Signature = signature
}

// SignBulkAction asks for one signature covering every order through
// the merkle tree; Apply then derives each order's individually
// verifiable signature.
type SignBulkAction struct {
	Orders []*order.Order
	Digest common.Hash
	tree   *seaport.BulkTree
}

func (SignBulkAction) Kind() string { return "sign-bulk" }

// Apply encodes signature || key || proof per order.
func (a *SignBulkAction) Apply(signature []byte) error {
	for i, o := range a.Orders {
		key, proof, err := a.tree.Proof(i)
		if err != nil {
			return fmt.Errorf("proof for order %d: %w", i, err)
		}
		o.Signature = seaport.EncodeBulkSignature(key, proof, signature)
	}
	return nil
}

// SubmitOrdersAction hands the signed batch to the order store;
// submission is all-or-nothing.
type SubmitOrdersAction struct {
	Orders []*order.Order
}

func (SubmitOrdersAction) Kind() string { return "submit-orders" }

// SignActions resolves every sign action in a plan with the given
// signer. Approve and submit actions are left for the caller.
func SignActions(actions []Action, signer chain.Signer) error {
	for _, action := range actions {
		switch a := action.(type) {
		case *SignOrderAction:
			sig, err := signer.SignDigest(a.Digest)
			if err != nil {
				return err
			}
			a.Apply(sig)
		case *SignBulkAction:
			sig, err := signer.SignDigest(a.Digest)
			if err != nil {
				return err
			}
			if err := a.Apply(sig); err != nil {
				return err
			}
		}
	}
	return nil
}

// BuildTransaction turns an approve action into its transaction
// request. Sign and submit actions have no transaction; they are
// resolved through Apply and the order store.
func BuildTransaction(action Action) (*TransactionRequest, error) {
	approve, ok := action.(*ApproveAction)
	if !ok {
		return nil, fmt.Errorf("builder: no transaction for %q action", action.Kind())
	}

	var (
		data []byte
		err  error
	)
	if approve.ItemType == seaport.ItemERC20 {
		data, err = seaport.EncodeERC20Approve(approve.Operator, seaport.MaxInt256)
	} else {
		data, err = seaport.EncodeSetApprovalForAll(approve.Operator, true)
	}
	if err != nil {
		return nil, err
	}

	return &TransactionRequest{To: approve.Token, Data: data}, nil
}
