package usage

import "testing"

func TestEstimateCostMatchesMostSpecificSubstring(t *testing.T) {
	costMini := EstimateCost("openai/gpt-5-mini", 1_000_000, 1_000_000)
	costFull := EstimateCost("openai/gpt-5", 1_000_000, 1_000_000)
	if costMini >= costFull {
		t.Errorf("gpt-5-mini cost %.2f should be less than gpt-5 cost %.2f", costMini, costFull)
	}
}

func TestEstimateCostUnmatchedIsZero(t *testing.T) {
	if cost := EstimateCost("some-unlisted-model", 1000, 1000); cost != 0 {
		t.Errorf("expected 0 for unmatched model, got %f", cost)
	}
}
