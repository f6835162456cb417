// File: internal/infra/adapters/tools/wallet.go
package tools

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"onchain-ai-assistant/internal/domain/ports/adapter"
	"onchain-ai-assistant/internal/tool"
)

var weiPerEth = new(big.Float).SetFloat64(1e18)

func newWalletBalanceTool(deps Deps) tool.Registration {
	return tool.Registration{
		Spec: adapter.Tool{
			Name:        "get_wallet_balance",
			Description: "Get the native ETH balance of a wallet address.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"address": map[string]any{
						"type":        "string",
						"description": "Hex-encoded wallet address, 0x-prefixed.",
					},
				},
				"required": []string{"address"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if deps.Chain == nil {
				return "", errors.New("chain RPC is not configured")
			}
			raw, err := argString(args, "address")
			if err != nil {
				return "", err
			}
			if !common.IsHexAddress(raw) {
				return "", fmt.Errorf("invalid address %q", raw)
			}
			addr := common.HexToAddress(raw)
			wei, err := deps.Chain.BalanceAt(ctx, addr, nil)
			if err != nil {
				return "", fmt.Errorf("balance lookup failed: %w", err)
			}
			eth, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEth).Float64()
			return marshal(map[string]any{
				"address":     addr.Hex(),
				"balance_wei": wei.String(),
				"balance_eth": fmt.Sprintf("%.6f", eth),
			}), nil
		},
	}
}
