package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum"

	"onchain-ai-assistant/internal/domain/ports/adapter"
	"onchain-ai-assistant/internal/tool"
)

func newTransactionTool(deps Deps) tool.Registration {
	return tool.Registration{
		Spec: adapter.Tool{
			Name:        "get_transaction",
			Description: "Look up an Ethereum transaction by hash, including its receipt status when mined.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"hash": map[string]any{
						"type":        "string",
						"description": "Transaction hash, 0x-prefixed.",
					},
				},
				"required": []string{"hash"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if deps.Chain == nil {
				return "", errors.New("chain RPC is not configured")
			}
			raw, err := argString(args, "hash")
			if err != nil {
				return "", err
			}
			if !strings.HasPrefix(raw, "0x") || len(raw) != 66 {
				return "", fmt.Errorf("invalid transaction hash %q", raw)
			}
			hash := common.HexToHash(raw)

			tx, pending, err := deps.Chain.TransactionByHash(ctx, hash)
			if err != nil {
				return "", fmt.Errorf("transaction lookup failed: %w", err)
			}

			out := map[string]any{
				"hash":      hash.Hex(),
				"pending":   pending,
				"value_wei": tx.Value().String(),
				"gas":       tx.Gas(),
				"nonce":     tx.Nonce(),
			}
			if to := tx.To(); to != nil {
				out["to"] = to.Hex()
			} else {
				out["to"] = "" // contract creation
			}

			if !pending {
				receipt, err := deps.Chain.TransactionReceipt(ctx, hash)
				switch {
				case err == nil:
					status := "failed"
					if receipt.Status == types.ReceiptStatusSuccessful {
						status = "success"
					}
					out["status"] = status
					out["block_number"] = receipt.BlockNumber.String()
					out["gas_used"] = receipt.GasUsed
				case errors.Is(err, ethereum.NotFound):
					out["status"] = "unknown"
				default:
					return "", fmt.Errorf("receipt lookup failed: %w", err)
				}
			}
			return marshal(out), nil
		},
	}
}
