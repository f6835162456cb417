package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"onchain-ai-assistant/internal/domain/ports/adapter"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// encoding resolves the cl100k_base BPE once per process. It is close
// enough for ceiling math across the chat models we target.
func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		if e, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			enc = e
		}
	})
	return enc
}

// countTokens approximates prompt tokens for the admission check. Falls
// back to a ~4 chars/token heuristic when the BPE files are unavailable
// (offline environments). Under-estimation is acceptable; what matters is
// that the count is deterministic and monotonic in history length.
func countTokens(messages []adapter.Message) int {
	total := 0
	for _, m := range messages {
		total += 4 // per-message framing overhead
		if e := encoding(); e != nil {
			total += len(e.Encode(m.Content, nil, nil))
		} else {
			total += len(m.Content)/4 + 1
		}
	}
	return total
}

func estimateCostMicros(messages []adapter.Message, pricing adapter.Pricing) int64 {
	return int64(countTokens(messages)) * pricing.InputMicrosPer1K / 1000
}
