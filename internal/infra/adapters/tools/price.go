// File: internal/infra/adapters/tools/price.go
package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"onchain-ai-assistant/internal/domain/ports/adapter"
	"onchain-ai-assistant/internal/registry"
	"onchain-ai-assistant/internal/tool"
)

// resolveCoinID maps a ticker symbol to the price API's coin id via the
// embedded token registry, passing through anything that already looks
// like an id (lowercase, hyphenated).
func resolveCoinID(symbol string) (string, error) {
	if tok, ok := registry.LookupToken(symbol); ok {
		return tok.CoingeckoID, nil
	}
	lower := strings.ToLower(strings.TrimSpace(symbol))
	if lower != "" && lower == symbol {
		return lower, nil
	}
	return "", fmt.Errorf("unknown token %q", symbol)
}

func newTokenPriceTool(deps Deps) tool.Registration {
	return tool.Registration{
		Spec: adapter.Tool{
			Name:        "get_token_price",
			Description: "Get the current USD price of a token by ticker symbol (e.g. ETH, UNI).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"symbol": map[string]any{
						"type":        "string",
						"description": "Token ticker symbol.",
					},
				},
				"required": []string{"symbol"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			symbol, err := argString(args, "symbol")
			if err != nil {
				return "", err
			}
			id, err := resolveCoinID(symbol)
			if err != nil {
				return "", err
			}

			u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true",
				deps.PriceBase, url.QueryEscape(id))
			var parsed map[string]struct {
				USD       float64 `json:"usd"`
				Change24h float64 `json:"usd_24h_change"`
			}
			if err := getJSON(ctx, deps.HTTPClient, u, &parsed); err != nil {
				return "", fmt.Errorf("price lookup failed: %w", err)
			}
			quote, ok := parsed[id]
			if !ok {
				return "", fmt.Errorf("no price data for %q", symbol)
			}
			return marshal(map[string]any{
				"symbol":         strings.ToUpper(symbol),
				"price_usd":      quote.USD,
				"price":          fmt.Sprintf("$%.2f", quote.USD),
				"change_24h_pct": quote.Change24h,
			}), nil
		},
	}
}

func newPriceHistoryTool(deps Deps) tool.Registration {
	return tool.Registration{
		Spec: adapter.Tool{
			Name:        "get_price_history",
			Description: "Get the recent daily USD price history of a token.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"symbol": map[string]any{
						"type":        "string",
						"description": "Token ticker symbol.",
					},
					"days": map[string]any{
						"type":        "integer",
						"description": "How many days of history, 1-90. Defaults to 7.",
					},
				},
				"required": []string{"symbol"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			symbol, err := argString(args, "symbol")
			if err != nil {
				return "", err
			}
			id, err := resolveCoinID(symbol)
			if err != nil {
				return "", err
			}
			days := argInt(args, "days", 7)
			if days < 1 {
				days = 1
			}
			if days > 90 {
				days = 90
			}

			u := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d",
				deps.PriceBase, url.PathEscape(id), days)
			var parsed struct {
				Prices [][2]float64 `json:"prices"`
			}
			if err := getJSON(ctx, deps.HTTPClient, u, &parsed); err != nil {
				return "", fmt.Errorf("price history lookup failed: %w", err)
			}

			points := make([]map[string]any, 0, len(parsed.Prices))
			for _, p := range parsed.Prices {
				points = append(points, map[string]any{
					"ts":        int64(p[0]),
					"price_usd": p[1],
				})
			}
			return marshal(map[string]any{
				"symbol": strings.ToUpper(symbol),
				"days":   days,
				"prices": points,
			}), nil
		},
	}
}
