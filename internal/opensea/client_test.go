package opensea

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient("test-key", testLogger(),
		WithBaseURL(srv.URL),
		WithPageDelay(time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("", testLogger())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestChainID(t *testing.T) {
	id, ok := ChainID("matic")
	require.True(t, ok)
	assert.Equal(t, uint64(137), id)

	// Alias used by some API responses.
	id, ok = ChainID("polygon")
	require.True(t, ok)
	assert.Equal(t, uint64(137), id)

	id, ok = ChainID("ethereum")
	require.True(t, ok)
	assert.Equal(t, uint64(1), id)

	_, ok = ChainID("moonbase")
	assert.False(t, ok)
}

func TestBestListingsPagination(t *testing.T) {
	var gotKey string
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		assert.Equal(t, "/api/v2/listings/collection/cool-cats/best", r.URL.Path)
		calls++
		switch r.URL.Query().Get("next") {
		case "":
			fmt.Fprint(w, `{"listings":[{"order_hash":"0xaa"},{"order_hash":"0xbb"}],"next":"page2"}`)
		case "page2":
			fmt.Fprint(w, `{"listings":[{"order_hash":"0xcc"}],"next":""}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("next"))
		}
	})

	var hashes []string
	err := c.BestListingsByCollection(context.Background(), "cool-cats", func(page []Listing) error {
		for _, l := range page {
			hashes = append(hashes, l.OrderHash)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"0xaa", "0xbb", "0xcc"}, hashes)
}

func TestBestListingsCallbackStops(t *testing.T) {
	stop := errors.New("enough")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"listings":[{"order_hash":"0xaa"}],"next":"more"}`)
	})
	err := c.BestListingsByCollection(context.Background(), "cool-cats", func([]Listing) error {
		return stop
	})
	assert.ErrorIs(t, err, stop)
}

func TestEventsByCollection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/events/collection/cool-cats", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1000", q.Get("after"))
		assert.Equal(t, "2000", q.Get("before"))
		assert.Equal(t, []string{"item_listed", "item_sold"}, q["event_type"])
		fmt.Fprint(w, `{"asset_events":[{"event_type":"item_sold","order_hash":"0xdd","transaction":"0x99","nft":{"identifier":"7","contract":"0xnft","token_standard":"erc721"}}],"next":""}`)
	})

	var events []Event
	err := c.EventsByCollection(context.Background(), "cool-cats",
		time.Unix(1000, 0), time.Unix(2000, 0),
		[]string{EventItemListed, EventItemSold},
		func(page []Event) error {
			events = append(events, page...)
			return nil
		})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventItemSold, events[0].EventType)
	assert.Equal(t, "0x99", events[0].Transaction)
	require.NotNil(t, events[0].NFT)
	assert.Equal(t, "7", events[0].NFT.Identifier)
}

func TestEventsByNFTPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/events/chain/matic/contract/0xnft/nfts/42", r.URL.Path)
		fmt.Fprint(w, `{"asset_events":[],"next":""}`)
	})
	err := c.EventsByNFT(context.Background(), "matic", "0xnft", "42",
		time.Time{}, time.Time{}, nil,
		func([]Event) error { return nil })
	require.NoError(t, err)
}

func TestOrderDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/orders/chain/matic/protocol/0xseaport/0xhash", r.URL.Path)
		fmt.Fprint(w, `{"order":{"order_hash":"0xhash","chain":"matic","protocol_data":{"parameters":{"offerer":"0xmaker","counter":0,"startTime":"1700000000","endTime":"1700086400"},"signature":"0xsig"}}}`)
	})

	listing, err := c.Order(context.Background(), "matic", "0xseaport", "0xhash")
	require.NoError(t, err)
	assert.Equal(t, "0xhash", listing.OrderHash)
	assert.Equal(t, "0xmaker", listing.ProtocolData.Parameters.Offerer)
	assert.Equal(t, "0xsig", listing.ProtocolData.Signature)
}

func TestOrderNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":["not found"]}`, http.StatusNotFound)
	})
	_, err := c.Order(context.Background(), "matic", "0xseaport", "0xmissing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	})
	_, err := c.Order(context.Background(), "matic", "0xseaport", "0xhash")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Status)
}

func TestListingsByNFT(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/orders/matic/seaport/listings", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "0xnft", q.Get("asset_contract_address"))
		assert.Equal(t, "42", q.Get("token_ids"))
		fmt.Fprint(w, `{"orders":[{"order_hash":"0xee"}]}`)
	})
	listings, err := c.ListingsByNFT(context.Background(), "matic", "0xnft", "42")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "0xee", listings[0].OrderHash)
}

func TestParametersConversion(t *testing.T) {
	raw := `{
		"offerer": "0x00000000000000000000000000000000000000a1",
		"zone": "0x0000000000000000000000000000000000000000",
		"offer": [{"itemType": 2, "token": "0x00000000000000000000000000000000000000b2", "identifierOrCriteria": "42", "startAmount": "1", "endAmount": "1"}],
		"consideration": [{"itemType": 0, "token": "0x0000000000000000000000000000000000000000", "identifierOrCriteria": "0", "startAmount": "950000000000000000", "endAmount": "950000000000000000", "recipient": "0x00000000000000000000000000000000000000a1"}],
		"orderType": 0,
		"startTime": "1700000000",
		"endTime": "1700086400",
		"zoneHash": "0x0000000000000000000000000000000000000000000000000000000000000000",
		"salt": "0x360c6ebe0000000000000000000000000000000000000000d4b9f37aeb979b2c",
		"conduitKey": "0x0000007b02230091a7ed01230072f7006a004d60a8d4e71d599b8104250f0000",
		"totalOriginalConsiderationItems": 1,
		"counter": 0
	}`
	var params Parameters
	require.NoError(t, json.Unmarshal([]byte(raw), &params))

	converted, err := params.ToParameters()
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000A1", converted.Offerer.Hex())
	require.Len(t, converted.Offer, 1)
	assert.Equal(t, big.NewInt(42), converted.Offer[0].IdentifierOrCriteria)
	require.Len(t, converted.Consideration, 1)
	assert.Equal(t, "950000000000000000", converted.Consideration[0].StartAmount.String())
	assert.Equal(t, int64(1700000000), converted.StartTime.Int64())

	salt := new(big.Int)
	salt.SetString("360c6ebe0000000000000000000000000000000000000000d4b9f37aeb979b2c", 16)
	assert.Equal(t, 0, salt.Cmp(converted.Salt))

	counter, err := params.CounterValue()
	require.NoError(t, err)
	assert.Equal(t, int64(0), counter.Int64())
}

func TestParametersBadNumber(t *testing.T) {
	params := Parameters{
		StartTime: "soon",
		EndTime:   "1700086400",
	}
	_, err := params.ToParameters()
	assert.Error(t, err)
}
