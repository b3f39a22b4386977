package delta

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const optionProductsBody = `{"success":true,"result":[
	{"id":102,"symbol":"C-BTC-50500-250926","contract_type":"call_options","strike_price":"50500","settlement_time":"2026-09-25T12:00:00Z","state":"live"},
	{"id":101,"symbol":"C-BTC-50000-250926","contract_type":"call_options","strike_price":"50000","settlement_time":"2026-09-25T12:00:00Z","state":"live"},
	{"id":202,"symbol":"P-BTC-50500-250926","contract_type":"put_options","strike_price":"50500","settlement_time":"2026-09-25T12:30:00Z","state":"live"},
	{"id":201,"symbol":"P-BTC-50000-250926","contract_type":"put_options","strike_price":"50000","settlement_time":"2026-09-25T12:30:00Z","state":"live"},
	{"id":301,"symbol":"C-BTC-48000-300826","contract_type":"call_options","strike_price":"48000","settlement_time":"2026-08-30T08:00:00Z","state":"live"},
	{"id":999,"symbol":"C-BTC-BROKEN","contract_type":"call_options","strike_price":"1","settlement_time":"not-a-time","state":"live"}
]}`

const optionTickersBody = `{"success":true,"result":[
	{"symbol":"C-BTC-50000-250926","product_id":101,"contract_type":"call_options","strike_price":"50000","mark_price":"1250.5","quotes":{"best_bid":"1240","best_ask":"1260"}},
	{"symbol":"P-BTC-50000-250926","product_id":201,"contract_type":"put_options","strike_price":"50000","mark_price":"980.25","quotes":{"best_bid":"970","best_ask":"990"}}
]}`

func optionServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/products":
			w.Write([]byte(optionProductsBody))
		case "/v2/tickers":
			w.Write([]byte(optionTickersBody))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestExpiriesTruncatesDedupesSorts(t *testing.T) {
	ts := optionServer(t)
	defer ts.Close()

	c := testClient(t, ts, Config{})
	expiries, err := c.Expiries(context.Background(), "BTCUSD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []time.Time{
		time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 25, 12, 0, 0, 0, time.UTC),
	}
	if len(expiries) != len(want) {
		t.Fatalf("expiry count mismatch: got %d want %d (%v)", len(expiries), len(want), expiries)
	}
	for i := range want {
		if !expiries[i].Equal(want[i]) {
			t.Fatalf("expiry[%d] mismatch: got %v want %v", i, expiries[i], want[i])
		}
	}
}

func TestExpiriesUnknownAsset(t *testing.T) {
	ts := optionServer(t)
	defer ts.Close()

	c := testClient(t, ts, Config{})
	if _, err := c.Expiries(context.Background(), "DOGEUSD"); err == nil {
		t.Fatalf("expected error for unknown asset")
	}
}

func TestOptionsChainPartitionsAndSorts(t *testing.T) {
	ts := optionServer(t)
	defer ts.Close()

	c := testClient(t, ts, Config{})
	expiry := time.Date(2026, 9, 25, 12, 0, 0, 0, time.UTC)
	chain, err := c.OptionsChain(context.Background(), "BTCUSD", expiry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := len(chain.Calls), 2; got != want {
		t.Fatalf("call count mismatch: got %d want %d", got, want)
	}
	if got, want := len(chain.Puts), 2; got != want {
		t.Fatalf("put count mismatch: got %d want %d", got, want)
	}
	if got, want := chain.Calls[0].ID, int64(101); got != want {
		t.Fatalf("calls not sorted by strike: first id %d want %d", got, want)
	}
	if got, want := chain.Puts[1].ID, int64(202); got != want {
		t.Fatalf("puts not sorted by strike: second id %d want %d", got, want)
	}
}

func TestFindATMOptionsTieBreaksToLowerStrike(t *testing.T) {
	ts := optionServer(t)
	defer ts.Close()

	c := testClient(t, ts, Config{})
	expiry := time.Date(2026, 9, 25, 12, 0, 0, 0, time.UTC)
	spot := decimal.NewFromInt(50250)

	straddle, err := c.FindATMOptions(context.Background(), "BTCUSD", expiry, spot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := straddle.Strike.String(), "50000"; got != want {
		t.Fatalf("strike mismatch: got %q want %q", got, want)
	}
	if got, want := straddle.Call.ProductID, int64(101); got != want {
		t.Fatalf("call product mismatch: got %d want %d", got, want)
	}
	if got, want := straddle.Put.ProductID, int64(201); got != want {
		t.Fatalf("put product mismatch: got %d want %d", got, want)
	}
	if got, want := straddle.Call.MarkPrice.String(), "1250.5"; got != want {
		t.Fatalf("call mark mismatch: got %q want %q", got, want)
	}
	if got, want := straddle.Put.BestAsk.String(), "990"; got != want {
		t.Fatalf("put ask mismatch: got %q want %q", got, want)
	}
}

func TestFindATMOptionsNoChain(t *testing.T) {
	ts := optionServer(t)
	defer ts.Close()

	c := testClient(t, ts, Config{})
	expiry := time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC)
	_, err := c.FindATMOptions(context.Background(), "BTCUSD", expiry, decimal.NewFromInt(50000))

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestOptionPricesNotFound(t *testing.T) {
	ts := optionServer(t)
	defer ts.Close()

	c := testClient(t, ts, Config{})
	_, err := c.OptionPrices(context.Background(), 424242)

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSpotPrice(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got, want := r.URL.Path, "/v2/tickers/BTCUSD"; got != want {
			t.Errorf("path mismatch: got %q want %q", got, want)
		}
		w.Write([]byte(`{"success":true,"result":{"symbol":"BTCUSD","spot_price":"50250.5"}}`))
	}))
	defer ts.Close()

	c := testClient(t, ts, Config{})
	spot, err := c.SpotPrice(context.Background(), "BTCUSD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := spot.String(), "50250.5"; got != want {
		t.Fatalf("spot mismatch: got %q want %q", got, want)
	}
}

func TestSpotPriceMissing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"result":{"symbol":"BTCUSD"}}`))
	}))
	defer ts.Close()

	c := testClient(t, ts, Config{})
	_, err := c.SpotPrice(context.Background(), "BTCUSD")

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
