// Package opensea consumes the OpenSea v2 REST API and the Stream
// websocket, mapping their payloads into the settlement types the
// reconciler imports.
package opensea

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lootex/aggregatord/internal/seaport"
)

// chainIDs maps OpenSea chain tags to EVM chain ids.
var chainIDs = map[string]uint64{
	"ethereum": 1,
	"sepolia":  11155111,
	// OpenSea tags Polygon "matic" in event payloads and API paths;
	// "polygon" is kept as an alias.
	"matic":     137,
	"polygon":   137,
	"mumbai":    80001,
	"arbitrum":  42161,
	"optimism":  10,
	"base":      8453,
	"avalanche": 43114,
	"bsc":       56,
}

// ChainID resolves an OpenSea chain tag.
func ChainID(chain string) (uint64, bool) {
	id, ok := chainIDs[chain]
	return id, ok
}

// Stream event types.
const (
	EventItemListed      = "item_listed"
	EventItemCancelled   = "item_cancelled"
	EventItemSold        = "item_sold"
	EventItemTransferred = "item_transferred"
)

// Listing is one order as the REST API reports it.
type Listing struct {
	OrderHash       string       `json:"order_hash"`
	Chain           string       `json:"chain"`
	ProtocolAddress string       `json:"protocol_address"`
	Type            string       `json:"type"`
	ProtocolData    ProtocolData `json:"protocol_data"`
}

// ProtocolData carries the full signed order body.
type ProtocolData struct {
	Parameters Parameters `json:"parameters"`
	Signature  string     `json:"signature"`
}

// Parameters mirrors the settlement order parameters with the API's
// string-encoded numbers.
type Parameters struct {
	Offerer                         string              `json:"offerer"`
	Zone                            string              `json:"zone"`
	Offer                           []OfferItem         `json:"offer"`
	Consideration                   []ConsiderationItem `json:"consideration"`
	OrderType                       int                 `json:"orderType"`
	StartTime                       json.Number         `json:"startTime"`
	EndTime                         json.Number         `json:"endTime"`
	ZoneHash                        string              `json:"zoneHash"`
	Salt                            string              `json:"salt"`
	ConduitKey                      string              `json:"conduitKey"`
	TotalOriginalConsiderationItems int                 `json:"totalOriginalConsiderationItems"`
	Counter                         json.Number         `json:"counter"`
}

// OfferItem is one API-side offer entry.
type OfferItem struct {
	ItemType             int    `json:"itemType"`
	Token                string `json:"token"`
	IdentifierOrCriteria string `json:"identifierOrCriteria"`
	StartAmount          string `json:"startAmount"`
	EndAmount            string `json:"endAmount"`
}

// ConsiderationItem is one API-side consideration entry.
type ConsiderationItem struct {
	ItemType             int    `json:"itemType"`
	Token                string `json:"token"`
	IdentifierOrCriteria string `json:"identifierOrCriteria"`
	StartAmount          string `json:"startAmount"`
	EndAmount            string `json:"endAmount"`
	Recipient            string `json:"recipient"`
}

// OrderDetail is the per-order lookup response.
type OrderDetail struct {
	Order Listing `json:"order"`
}

// Event is one row of the events endpoints.
type Event struct {
	EventType       string          `json:"event_type"`
	OrderHash       string          `json:"order_hash"`
	Chain           string          `json:"chain"`
	ProtocolAddress string          `json:"protocol_address"`
	Transaction     string          `json:"transaction"`
	Maker           string          `json:"maker"`
	Taker           string          `json:"taker"`
	FromAccount     string          `json:"from_account"`
	ToAccount       string          `json:"to_account"`
	Quantity        int             `json:"quantity"`
	EventTimestamp  int64           `json:"event_timestamp"`
	NFT             *EventNFT       `json:"nft"`
	Payment         *EventPayment   `json:"payment"`
	ProtocolData    json.RawMessage `json:"protocol_data"`
}

// EventNFT identifies the asset an event is about.
type EventNFT struct {
	Identifier    string `json:"identifier"`
	Contract      string `json:"contract"`
	TokenStandard string `json:"token_standard"`
}

// EventPayment is the realized price of a sale event.
type EventPayment struct {
	Quantity     string `json:"quantity"`
	TokenAddress string `json:"token_address"`
	Decimals     int    `json:"decimals"`
	Symbol       string `json:"symbol"`
}

// ToParameters converts the API body into settlement order parameters.
func (p Parameters) ToParameters() (seaport.OrderParameters, error) {
	out := seaport.OrderParameters{
		Offerer:                         common.HexToAddress(p.Offerer),
		Zone:                            common.HexToAddress(p.Zone),
		OrderType:                       seaport.OrderType(p.OrderType),
		ZoneHash:                        common.HexToHash(p.ZoneHash),
		ConduitKey:                      common.HexToHash(p.ConduitKey),
		TotalOriginalConsiderationItems: big.NewInt(int64(p.TotalOriginalConsiderationItems)),
	}

	var err error
	if out.StartTime, err = parseBig(p.StartTime.String()); err != nil {
		return out, fmt.Errorf("startTime: %w", err)
	}
	if out.EndTime, err = parseBig(p.EndTime.String()); err != nil {
		return out, fmt.Errorf("endTime: %w", err)
	}
	if out.Salt, err = parseBig(p.Salt); err != nil {
		return out, fmt.Errorf("salt: %w", err)
	}

	for i, item := range p.Offer {
		converted, err := convertOfferItem(item)
		if err != nil {
			return out, fmt.Errorf("offer[%d]: %w", i, err)
		}
		out.Offer = append(out.Offer, converted)
	}
	for i, item := range p.Consideration {
		identifier, err := parseBig(item.IdentifierOrCriteria)
		if err != nil {
			return out, fmt.Errorf("consideration[%d]: %w", i, err)
		}
		start, err := parseBig(item.StartAmount)
		if err != nil {
			return out, fmt.Errorf("consideration[%d]: %w", i, err)
		}
		end, err := parseBig(item.EndAmount)
		if err != nil {
			return out, fmt.Errorf("consideration[%d]: %w", i, err)
		}
		out.Consideration = append(out.Consideration, seaport.ConsiderationItem{
			ItemType:             seaport.ItemType(item.ItemType),
			Token:                common.HexToAddress(item.Token),
			IdentifierOrCriteria: identifier,
			StartAmount:          start,
			EndAmount:            end,
			Recipient:            common.HexToAddress(item.Recipient),
		})
	}
	return out, nil
}

// CounterValue parses the replay-protection counter.
func (p Parameters) CounterValue() (*big.Int, error) {
	return parseBig(p.Counter.String())
}

func convertOfferItem(item OfferItem) (seaport.OfferItem, error) {
	identifier, err := parseBig(item.IdentifierOrCriteria)
	if err != nil {
		return seaport.OfferItem{}, err
	}
	start, err := parseBig(item.StartAmount)
	if err != nil {
		return seaport.OfferItem{}, err
	}
	end, err := parseBig(item.EndAmount)
	if err != nil {
		return seaport.OfferItem{}, err
	}
	return seaport.OfferItem{
		ItemType:             seaport.ItemType(item.ItemType),
		Token:                common.HexToAddress(item.Token),
		IdentifierOrCriteria: identifier,
		StartAmount:          start,
		EndAmount:            end,
	}, nil
}

// parseBig accepts decimal and 0x-hex string numbers.
func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	base := 10
	digits := s
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		base = 16
		digits = s[2:]
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("opensea: bad integer %q", s)
	}
	return v, nil
}

