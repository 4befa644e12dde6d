package usage

import "strings"

// priceTable maps a model-id substring to (input, output) price per
// million tokens. The first substring match wins; unmatched models cost
// nothing. Entries are ordered most-specific first so e.g. "gpt-5-mini"
// is checked before the bare "gpt-5" it also contains.
var priceTable = []struct {
	substring           string
	inputPerMillion     float64
	outputPerMillion    float64
}{
	{"gpt-5-nano", 0.05, 0.40},
	{"gpt-5-mini", 0.25, 2.00},
	{"gpt-5", 1.25, 10.00},
	{"gpt-4o-mini", 0.15, 0.60},
	{"gpt-4o", 2.50, 10.00},
	{"o3-mini", 1.10, 4.40},
	{"o3", 2.00, 8.00},
	{"o1-mini", 1.10, 4.40},
	{"o1", 15.00, 60.00},
	{"claude-opus", 15.00, 75.00},
	{"claude-sonnet", 3.00, 15.00},
	{"claude-haiku", 0.80, 4.00},
	{"deepseek-r1", 0.55, 2.19},
	{"deepseek-v3", 0.27, 1.10},
	{"qwen3", 0.20, 0.60},
	{"grok", 2.00, 10.00},
}

// EstimateCost returns the estimated dollar cost of a request given its
// model id and token counts, using the first matching priceTable entry.
// Unmatched models estimate to zero.
func EstimateCost(modelID string, inputTokens, outputTokens int) float64 {
	lower := strings.ToLower(modelID)
	for _, p := range priceTable {
		if strings.Contains(lower, p.substring) {
			return float64(inputTokens)/1_000_000*p.inputPerMillion + float64(outputTokens)/1_000_000*p.outputPerMillion
		}
	}
	return 0
}
