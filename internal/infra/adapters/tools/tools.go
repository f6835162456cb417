// File: internal/infra/adapters/tools/tools.go
// Package tools registers the on-chain and market-data lookups the agent
// can invoke. Every handler returns a JSON string so results survive the
// round trip through the model context unambiguously.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"onchain-ai-assistant/internal/tool"
)

// Deps carries the external clients the tool handlers share.
type Deps struct {
	Chain        ChainReader // nil when no RPC endpoint is configured
	PriceBase    string
	ProtocolBase string
	HTTPClient   *http.Client
	Log          *zerolog.Logger
}

// RegisterAll adds every tool to the catalog. Registration order is the
// order providers see them in.
func RegisterAll(catalog *tool.Catalog, deps Deps) error {
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	regs := []tool.Registration{
		newWalletBalanceTool(deps),
		newTransactionTool(deps),
		newTokenPriceTool(deps),
		newPriceHistoryTool(deps),
		newProtocolInfoTool(deps),
		newClassifyTool(deps),
	}
	for _, reg := range regs {
		if err := catalog.Register(reg.Spec, reg.Handler); err != nil {
			return err
		}
	}
	return nil
}

// --- shared helpers ---

func marshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, "result could not be encoded")
	}
	return string(b)
}

func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

// argInt tolerates the float64 that json decoding produces for numbers.
func argInt(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}
