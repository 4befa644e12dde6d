package usage

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ModelStat is one row of a top_models result.
type ModelStat struct {
	Model        string
	RequestCount int
	TotalTokens  int64
	AvgCostUSD   float64
}

// TopModels returns the most-used models over the last windowDays days,
// ordered by request count, capped at limit rows.
func (m *Meter) TopModels(limit, windowDays int) ([]ModelStat, error) {
	since := windowStart(windowDays)
	rows, err := m.db.Query(`
		SELECT model_routed, COUNT(*), SUM(total_tokens), AVG(estimated_cost_usd)
		FROM api_requests
		WHERE ts >= ?
		GROUP BY model_routed
		ORDER BY COUNT(*) DESC
		LIMIT ?
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query top_models: %w", err)
	}
	defer rows.Close()

	var out []ModelStat
	for rows.Next() {
		var s ModelStat
		if err := rows.Scan(&s.Model, &s.RequestCount, &s.TotalTokens, &s.AvgCostUSD); err != nil {
			return nil, fmt.Errorf("scan top_models row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Summary aggregates usage over the last days days.
type Summary struct {
	Requests           int
	InputTokens        int64
	OutputTokens       int64
	ThinkingTokens     int64
	CostUSD            float64
	AvgLatencyMS       float64
	AvgTokensPerSecond float64
}

// Summary computes the aggregate Summary over the last days days.
func (m *Meter) Summary(days int) (Summary, error) {
	since := windowStart(days)
	var s Summary
	err := m.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(thinking_tokens), 0),
			COALESCE(SUM(estimated_cost_usd), 0),
			COALESCE(AVG(duration_ms), 0),
			COALESCE(AVG(tokens_per_second), 0)
		FROM api_requests
		WHERE ts >= ?
	`, since).Scan(&s.Requests, &s.InputTokens, &s.OutputTokens, &s.ThinkingTokens, &s.CostUSD, &s.AvgLatencyMS, &s.AvgTokensPerSecond)
	if err != nil {
		return Summary{}, fmt.Errorf("query summary: %w", err)
	}
	return s, nil
}

// ExportCSV writes every row within the last windowDays days to path as CSV.
func (m *Meter) ExportCSV(path string, windowDays int) error {
	since := windowStart(windowDays)
	rows, err := m.db.Query(`
		SELECT request_id, ts, model_requested, model_routed, endpoint, tier,
			input_tokens, output_tokens, thinking_tokens, total_tokens,
			duration_ms, tokens_per_second, estimated_cost_usd, stream,
			message_count, has_system, has_tools, has_images,
			status, error_message, has_json_content, json_bytes
		FROM api_requests WHERE ts >= ? ORDER BY ts
	`, since)
	if err != nil {
		return fmt.Errorf("query export_csv: %w", err)
	}
	defer rows.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"request_id", "ts", "model_requested", "model_routed", "endpoint", "tier",
		"input_tokens", "output_tokens", "thinking_tokens", "total_tokens",
		"duration_ms", "tokens_per_second", "estimated_cost_usd", "stream",
		"message_count", "has_system", "has_tools", "has_images",
		"status", "error_message", "has_json_content", "json_bytes",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for rows.Next() {
		var r Record
		var stream, hasSystem, hasTools, hasImages, hasJSON int
		if err := rows.Scan(
			&r.RequestID, &r.TS, &r.ModelRequested, &r.ModelRouted, &r.Endpoint, &r.Tier,
			&r.InputTokens, &r.OutputTokens, &r.ThinkingTokens, &r.TotalTokens,
			&r.DurationMS, &r.TokensPerSecond, &r.EstimatedCostUSD, &stream,
			&r.MessageCount, &hasSystem, &hasTools, &hasImages,
			&r.Status, &r.ErrorMessage, &hasJSON, &r.JSONBytes,
		); err != nil {
			return fmt.Errorf("scan export row: %w", err)
		}
		record := []string{
			r.RequestID, strconv.FormatInt(r.TS, 10), r.ModelRequested, r.ModelRouted, r.Endpoint, r.Tier,
			strconv.Itoa(r.InputTokens), strconv.Itoa(r.OutputTokens), strconv.Itoa(r.ThinkingTokens), strconv.Itoa(r.TotalTokens),
			strconv.FormatInt(r.DurationMS, 10), strconv.FormatFloat(r.TokensPerSecond, 'f', -1, 64), strconv.FormatFloat(r.EstimatedCostUSD, 'f', -1, 64), strconv.Itoa(stream),
			strconv.Itoa(r.MessageCount), strconv.Itoa(hasSystem), strconv.Itoa(hasTools), strconv.Itoa(hasImages),
			r.Status, r.ErrorMessage, strconv.Itoa(hasJSON), strconv.Itoa(r.JSONBytes),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return rows.Err()
}

func windowStart(days int) int64 {
	return time.Now().AddDate(0, 0, -days).UnixMilli()
}
