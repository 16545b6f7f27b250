package store

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/lootex/aggregatord/internal/numeric"
)

// Side values for order_items rows.
const (
	SideOffer         = 0
	SideConsideration = 1
)

// History categories.
const (
	HistoryListed    = "listed"
	HistoryCancelled = "cancelled"
	HistorySale      = "sale"
	HistorySync      = "sync"
)

// OrderRow is one orders row. Addresses and hashes are lowercase hex
// strings; amounts are decimal strings.
type OrderRow struct {
	Hash            string
	ChainID         uint64
	ExchangeAddress string
	Offerer         string
	Category        string
	Platform        uint16
	AssetToken      string
	AssetIdentifier string
	CurrencyAddress string
	TotalPrice      string
	PerPrice        string
	Quantity        string
	StartTime       int64
	EndTime         int64
	Counter         string
	Salt            string
	Signature       string
	IsFillable      bool
	IsCancelled     bool
	IsFulfilled     bool
	IsExpired       bool
	CreatedAt       int64
	UpdatedAt       int64
}

// ItemRow is one order_items row.
type ItemRow struct {
	OrderHash       string
	ChainID         uint64
	Side            int
	Idx             int
	ItemType        int
	Token           string
	Identifier      string
	StartAmount     string
	EndAmount       string
	AvailableAmount string
	Recipient       string
}

// HistoryRow is one order_history row; the (hash, tx hash, chain)
// primary key doubles as the duplicate-delivery guard.
type HistoryRow struct {
	OrderHash string
	TxHash    string
	ChainID   uint64
	Category  string
	Price     string
	Maker     string
	Taker     string
	CreatedAt int64
}

// AssetRow is one assets row.
type AssetRow struct {
	ChainID    uint64
	Token      string
	Identifier string
	Kind       int
	Slug       string
}

// CurrencyRow is one currencies row.
type CurrencyRow struct {
	ChainID  uint64
	Address  string
	Symbol   string
	Decimals int
	IsNative bool
}

// WatchedCollection is one watched_collections row.
type WatchedCollection struct {
	ChainID  uint64
	Token    string
	Slug     string
	Ranking  int
	Selected bool
}

// RepairLog is one repair_logs row.
type RepairLog struct {
	ChainID   uint64
	Token     string
	FromTime  int64
	ToTime    int64
	Status    string
	CreatedAt int64
}

// sortableWidth pads amounts so lexicographic TEXT ordering matches
// numeric ordering; 40 digits covers uint256.
const sortableWidth = 40

// SortableAmount renders a fraction as a fixed-width decimal string
// whose string ordering equals its numeric ordering.
func SortableAmount(f numeric.Fraction) string {
	fixed := f.ToFixed(18, numeric.RoundDown)
	intPart, fracPart, _ := strings.Cut(fixed, ".")
	return fmt.Sprintf("%0*s.%s", sortableWidth, intPart, fracPart)
}

// SortableInt renders a raw big integer in the same fixed-width form.
func SortableInt(v *big.Int) string {
	if v == nil {
		v = new(big.Int)
	}
	return SortableAmount(numeric.FromBig(v))
}

// BigFromSortable parses a fixed-width amount back into an integer,
// truncating fractional digits.
func BigFromSortable(s string) *big.Int {
	intPart, _, _ := strings.Cut(s, ".")
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		return new(big.Int)
	}
	v, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}
