package planner

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lootex/aggregatord/internal/seaport"
)

// TransactionRequest is a ready-to-broadcast call.
type TransactionRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Action is one step of a fulfillment plan, executed front to back.
type Action interface {
	Kind() string
}

// ApproveAction grants the aggregator access to a token the fulfiller
// pays or delivers with. ERC20 approvals always go to max so repeated
// fills never re-approve.
type ApproveAction struct {
	Token    common.Address
	ItemType seaport.ItemType
	Operator common.Address
}

func (ApproveAction) Kind() string { return "approve" }

// ExchangeAction is a call against the aggregator or a settlement
// contract, carrying the order hashes it settles when it is a fill.
type ExchangeAction struct {
	To          common.Address
	Value       *big.Int
	Data        []byte
	OrderHashes []common.Hash
}

func (ExchangeAction) Kind() string { return "exchange" }

// BuildTransaction turns a plan action into its transaction request.
func BuildTransaction(action Action) (*TransactionRequest, error) {
	switch a := action.(type) {
	case *ApproveAction:
		var (
			data []byte
			err  error
		)
		if a.ItemType == seaport.ItemERC20 {
			data, err = seaport.EncodeERC20Approve(a.Operator, seaport.MaxInt256)
		} else {
			data, err = seaport.EncodeSetApprovalForAll(a.Operator, true)
		}
		if err != nil {
			return nil, err
		}
		return &TransactionRequest{To: a.Token, Data: data}, nil

	case *ExchangeAction:
		return &TransactionRequest{To: a.To, Data: a.Data, Value: a.Value}, nil
	}
	return nil, fmt.Errorf("planner: no transaction for %q action", action.Kind())
}
