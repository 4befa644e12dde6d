package usage

import (
	"github.com/tidwall/gjson"
)

const minJSONRegionBytes = 100

// DetectJSON scans text once for a balanced {...} or [...] region of at
// least minJSONRegionBytes that parses as JSON, returning the total size
// of all such regions found. hasStructuralBlocks short-circuits to true
// when the request already carries a tool_use/tool_result block, per the
// rule that either signal counts as "JSON-containing".
func DetectJSON(text string, hasStructuralBlocks bool) (hasJSON bool, jsonBytes int) {
	if hasStructuralBlocks {
		hasJSON = true
	}
	for _, region := range candidateJSONRegions(text) {
		if len(region) < minJSONRegionBytes {
			continue
		}
		if !gjson.Valid(region) {
			continue
		}
		hasJSON = true
		jsonBytes += len(region)
	}
	return hasJSON, jsonBytes
}

// candidateJSONRegions finds every maximal balanced-bracket substring of
// text delimited by {}/[] pairs, scanning once left to right.
func candidateJSONRegions(text string) []string {
	var regions []string
	var stack []int
	for i, r := range text {
		switch r {
		case '{', '[':
			stack = append(stack, i)
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			start := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				regions = append(regions, text[start:i+1])
			}
		}
	}
	return regions
}

// ToonRecommendation is the rolling-window predicate from the JSON
// detection design: recommend a TOON-style compact encoding when, over
// the last 20 requests, JSON-bearing traffic is both frequent and large.
type ToonRecommendation struct {
	seen      [toonWindowSize]bool
	seenBytes [toonWindowSize]int
	next      int
	jsonCount int
	total     int
	jsonBytes int
}

const toonWindowSize = 20

// Observe records one request's JSON-detection outcome into a sliding
// window of the last toonWindowSize requests; once the window is full,
// each new observation evicts the oldest one.
func (t *ToonRecommendation) Observe(hasJSON bool, jsonBytes int) {
	if t.total == toonWindowSize {
		if t.seen[t.next] {
			t.jsonCount--
			t.jsonBytes -= t.seenBytes[t.next]
		}
	} else {
		t.total++
	}
	if !hasJSON {
		jsonBytes = 0
	}
	t.seen[t.next], t.seenBytes[t.next] = hasJSON, jsonBytes
	t.next = (t.next + 1) % toonWindowSize
	if hasJSON {
		t.jsonCount++
		t.jsonBytes += jsonBytes
	}
}

// ShouldRecommend reports whether the window satisfies the recommendation
// predicate: JSON ratio > 30%, average JSON size > 500 bytes, and total
// JSON > 10 KB.
func (t *ToonRecommendation) ShouldRecommend() bool {
	if t.total == 0 || t.jsonCount == 0 {
		return false
	}
	ratio := float64(t.jsonCount) / float64(t.total)
	avgSize := float64(t.jsonBytes) / float64(t.jsonCount)
	return ratio > 0.30 && avgSize > 500 && t.jsonBytes > 10*1024
}
