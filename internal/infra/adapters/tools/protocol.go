// File: internal/infra/adapters/tools/protocol.go
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

func newProtocolInfoTool(deps Deps) tool.Registration {
	return tool.Registration{
		Spec: adapter.Tool{
			Name:        "get_protocol_info",
			Description: "Get category, supported chains and TVL for a DeFi protocol (e.g. Uniswap, Aave).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"protocol": map[string]any{
						"type":        "string",
						"description": "Protocol name or slug.",
					},
				},
				"required": []string{"protocol"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			name, err := argString(args, "protocol")
			if err != nil {
				return "", err
			}
			slug := strings.ToLower(strings.TrimSpace(name))
			if p, ok := registry.LookupProtocol(name); ok {
				slug = p.Slug
			}

			u := fmt.Sprintf("%s/protocol/%s", deps.ProtocolBase, url.PathEscape(slug))
			var parsed struct {
				Name     string   `json:"name"`
				Category string   `json:"category"`
				Chains   []string `json:"chains"`
				TVL      []struct {
					Date     int64   `json:"date"`
					TotalUSD float64 `json:"totalLiquidityUSD"`
				} `json:"tvl"`
			}
			if err := getJSON(ctx, deps.HTTPClient, u, &parsed); err != nil {
				return "", fmt.Errorf("protocol lookup failed: %w", err)
			}
			if parsed.Name == "" {
				return "", fmt.Errorf("unknown protocol %q", name)
			}

			tvl := make([]map[string]any, 0, len(parsed.TVL))
			for _, point := range parsed.TVL {
				tvl = append(tvl, map[string]any{
					"date":    point.Date,
					"tvl_usd": point.TotalUSD,
				})
			}
			return marshal(map[string]any{
				"name":     parsed.Name,
				"slug":     slug,
				"category": parsed.Category,
				"chains":   parsed.Chains,
				"tvl":      tvl,
			}), nil
		},
	}
}
