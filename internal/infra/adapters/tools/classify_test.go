package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func classify(t *testing.T, description string) map[string]any {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	h := findHandler(t, catalogWithServer(t, srv), "classify_defi_action")
	out, err := h(context.Background(), map[string]any{"description": description})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	return payload
}

func TestClassifyByKeyword(t *testing.T) {
	cases := map[string]string{
		"swap 1 ETH for USDC":                      "swap",
		"borrow DAI against my WBTC collateral":    "borrow",
		"stake SOL with a validator":               "stake",
		"bridge USDC from Ethereum to Arbitrum":    "bridge",
		"harvest the yield from my vault position": "yield_farm",
		"just checking my balance":                 "unknown",
	}
	for desc, want := range cases {
		if got := classify(t, desc)["action"]; got != want {
			t.Errorf("%q classified as %v, want %s", desc, got, want)
		}
	}
}

func TestClassifyFallsBackToProtocolCategory(t *testing.T) {
	payload := classify(t, "put my USDC into Aave")
	if payload["action"] != "lend" {
		t.Fatalf("action = %v, want lend (from protocol category)", payload["action"])
	}
	protocols := payload["protocols"].([]any)
	if len(protocols) != 1 || protocols[0] != "Aave" {
		t.Fatalf("protocols = %v", protocols)
	}
}

func TestClassifyNamesMatchedProtocols(t *testing.T) {
	payload := classify(t, "swap on Uniswap then lend on Aave")
	if payload["action"] != "swap" {
		t.Fatalf("action = %v", payload["action"])
	}
	if protocols := payload["protocols"].([]any); len(protocols) != 2 {
		t.Fatalf("protocols = %v", protocols)
	}
}
