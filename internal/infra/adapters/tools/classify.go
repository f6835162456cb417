package tools

import (
	"context"
	"strings"

	"onchain-ai-assistant/internal/domain/ports/adapter"
	"onchain-ai-assistant/internal/registry"
	"onchain-ai-assistant/internal/tool"
)

// Classification is keyword-driven and runs entirely locally; the model
// already did the language understanding, this just normalizes the label.
var actionKeywords = []struct {
	label    string
	keywords []string
}{
	{"swap", []string{"swap", "exchange", "trade", "convert"}},
	{"lend", []string{"lend", "supply", "deposit into", "earn interest"}},
	{"borrow", []string{"borrow", "loan", "leverage", "collateral"}},
	{"stake", []string{"stake", "staking", "restake", "validator", "delegate"}},
	{"provide_liquidity", []string{"liquidity", "lp ", "pool", "pair"}},
	{"bridge", []string{"bridge", "cross-chain", "wormhole"}},
	{"yield_farm", []string{"farm", "yield", "harvest", "vault"}},
}

// categoryLabels maps a registry protocol category to the action most
// users mean when they name that protocol.
var categoryLabels = map[string]string{
	"dex":       "swap",
	"lending":   "lend",
	"cdp":       "borrow",
	"staking":   "stake",
	"restaking": "stake",
}

func newClassifyTool(deps Deps) tool.Registration {
	return tool.Registration{
		Spec: adapter.Tool{
			Name:        "classify_defi_action",
			Description: "Classify a described DeFi action into one of: swap, lend, borrow, stake, provide_liquidity, bridge, yield_farm, unknown.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"description": map[string]any{
						"type":        "string",
						"description": "Plain-language description of the action.",
					},
				},
				"required": []string{"description"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			desc, err := argString(args, "description")
			if err != nil {
				return "", err
			}
			lower := strings.ToLower(desc)

			label := ""
			var matched []string
			for _, action := range actionKeywords {
				for _, kw := range action.keywords {
					if strings.Contains(lower, kw) {
						if label == "" {
							label = action.label
						}
						matched = append(matched, kw)
						break
					}
				}
			}

			var protocols []string
			for _, p := range registry.Protocols() {
				if strings.Contains(lower, strings.ToLower(p.Name)) || strings.Contains(lower, p.Slug) {
					protocols = append(protocols, p.Name)
					if label == "" {
						if mapped, ok := categoryLabels[p.Category]; ok {
							label = mapped
						}
					}
				}
			}

			if label == "" {
				label = "unknown"
			}
			return marshal(map[string]any{
				"action":    label,
				"matched":   matched,
				"protocols": protocols,
			}), nil
		},
	}
}
