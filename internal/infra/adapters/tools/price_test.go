package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"onchain-ai-assistant/internal/tool"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func findHandler(t *testing.T, catalog *tool.Catalog, name string) tool.Handler {
	t.Helper()
	reg, ok := catalog.Lookup(name)
	if !ok {
		t.Fatalf("tool %s not registered", name)
	}
	return reg.Handler
}

func catalogWithServer(t *testing.T, srv *httptest.Server) *tool.Catalog {
	t.Helper()
	catalog := tool.NewCatalog()
	err := RegisterAll(catalog, Deps{
		PriceBase:    srv.URL,
		ProtocolBase: srv.URL,
		HTTPClient:   srv.Client(),
		Log:          nopLogger(),
	})
	if err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	return catalog
}

func TestRegisterAllOrder(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	catalog := catalogWithServer(t, srv)

	specs := catalog.Specs()
	want := []string{
		"get_wallet_balance", "get_transaction", "get_token_price",
		"get_price_history", "get_protocol_info", "classify_defi_action",
	}
	if len(specs) != len(want) {
		t.Fatalf("registered %d tools, want %d", len(specs), len(want))
	}
	for i, name := range want {
		if specs[i].Name != name {
			t.Fatalf("specs[%d] = %s, want %s", i, specs[i].Name, name)
		}
	}
}

func TestGetTokenPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "ids=uniswap") {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"uniswap":{"usd":80.5,"usd_24h_change":-1.2}}`))
	}))
	defer srv.Close()

	h := findHandler(t, catalogWithServer(t, srv), "get_token_price")
	out, err := h(context.Background(), map[string]any{"symbol": "UNI"})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if payload["price"] != "$80.50" {
		t.Fatalf("price = %v", payload["price"])
	}
	if payload["symbol"] != "UNI" {
		t.Fatalf("symbol = %v", payload["symbol"])
	}
}

func TestGetTokenPriceUnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	h := findHandler(t, catalogWithServer(t, srv), "get_token_price")
	if _, err := h(context.Background(), map[string]any{"symbol": "NOT A TOKEN"}); err == nil {
		t.Fatalf("want error for unknown symbol")
	}
}

func TestGetPriceHistoryClampsDays(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		_, _ = w.Write([]byte(`{"prices":[[1700000000000,1800.5],[1700086400000,1825.0]]}`))
	}))
	defer srv.Close()

	h := findHandler(t, catalogWithServer(t, srv), "get_price_history")
	out, err := h(context.Background(), map[string]any{"symbol": "ETH", "days": float64(500)})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !strings.Contains(gotPath, "/coins/ethereum/market_chart") {
		t.Fatalf("path = %s", gotPath)
	}
	if !strings.Contains(gotQuery, "days=90") {
		t.Fatalf("days not clamped: %s", gotQuery)
	}

	var payload struct {
		Prices []map[string]any `json:"prices"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if len(payload.Prices) != 2 {
		t.Fatalf("prices = %v", payload.Prices)
	}
}

func TestGetProtocolInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/protocol/aave" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"name":"Aave","category":"Lending","chains":["Ethereum","Polygon"],
			"tvl":[{"date":1700000000,"totalLiquidityUSD":5000000000}]}`))
	}))
	defer srv.Close()

	h := findHandler(t, catalogWithServer(t, srv), "get_protocol_info")
	out, err := h(context.Background(), map[string]any{"protocol": "Aave"})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if payload["category"] != "Lending" {
		t.Fatalf("category = %v", payload["category"])
	}
	if chains := payload["chains"].([]any); len(chains) != 2 {
		t.Fatalf("chains = %v", chains)
	}
}

func TestWalletBalanceWithoutChain(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	h := findHandler(t, catalogWithServer(t, srv), "get_wallet_balance")
	_, err := h(context.Background(), map[string]any{"address": "0x0000000000000000000000000000000000000001"})
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("err = %v, want unavailability error", err)
	}
}
