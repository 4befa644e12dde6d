package usage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

const (
	queueCapacity = 1024
	flushInterval = 100 * time.Millisecond
	flushBatch    = 50
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS api_requests (
	request_id          TEXT PRIMARY KEY,
	ts                  INTEGER NOT NULL,
	model_requested     TEXT NOT NULL,
	model_routed        TEXT NOT NULL,
	endpoint            TEXT NOT NULL,
	tier                TEXT NOT NULL,
	input_tokens        INTEGER NOT NULL,
	output_tokens       INTEGER NOT NULL,
	thinking_tokens     INTEGER NOT NULL,
	total_tokens        INTEGER NOT NULL,
	duration_ms         INTEGER NOT NULL,
	tokens_per_second   REAL NOT NULL,
	estimated_cost_usd  REAL NOT NULL,
	stream              INTEGER NOT NULL,
	message_count       INTEGER NOT NULL,
	has_system          INTEGER NOT NULL,
	has_tools           INTEGER NOT NULL,
	has_images          INTEGER NOT NULL,
	status              TEXT NOT NULL,
	error_message       TEXT NOT NULL DEFAULT '',
	has_json_content    INTEGER NOT NULL,
	json_bytes          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_api_requests_ts ON api_requests(ts);
CREATE INDEX IF NOT EXISTS idx_api_requests_model_routed ON api_requests(model_routed);
`

// Meter is a single-writer, many-producer usage recorder. Log enqueues
// without blocking the request path; a background worker batches inserts
// every flushInterval or flushBatch rows, whichever comes first, and
// drops the oldest queued record when the queue is full rather than
// blocking a producer.
type Meter struct {
	db      *sql.DB
	queue   chan Record
	dropped atomic.Uint64
	logger  *slog.Logger
	done    chan struct{}
}

// Open creates (if needed) the usage database at path and starts the
// writer goroutine. Close must be called to flush and release the file.
func Open(path string, logger *slog.Logger) (*Meter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open usage database: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite: single writer connection
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create usage schema: %w", err)
	}

	m := &Meter{
		db:     db,
		queue:  make(chan Record, queueCapacity),
		logger: logger,
		done:   make(chan struct{}),
	}
	go m.run()
	return m, nil
}

// Log enqueues r for persistence. Never blocks longer than a channel send
// against a full buffer takes to fail over to the drop-oldest path.
func (m *Meter) Log(r Record) {
	select {
	case m.queue <- r:
	default:
		// Queue full: drop the oldest queued record to make room, per the
		// drop-oldest-on-full policy, and count it.
		select {
		case <-m.queue:
			m.dropped.Add(1)
		default:
		}
		select {
		case m.queue <- r:
		default:
			m.dropped.Add(1)
		}
	}
}

// Dropped returns the number of usage rows discarded by the drop-oldest
// policy since startup.
func (m *Meter) Dropped() uint64 {
	return m.dropped.Load()
}

// Close flushes any buffered records and closes the database.
func (m *Meter) Close() error {
	close(m.queue)
	<-m.done
	return m.db.Close()
}

func (m *Meter) run() {
	defer close(m.done)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, flushBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := m.insertBatch(batch); err != nil {
			m.logger.Error("usage meter: failed to flush batch", "error", err, "rows", len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case r, ok := <-m.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, r)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (m *Meter) insertBatch(batch []Record) error {
	tx, err := m.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO api_requests (
			request_id, ts, model_requested, model_routed, endpoint, tier,
			input_tokens, output_tokens, thinking_tokens, total_tokens,
			duration_ms, tokens_per_second, estimated_cost_usd, stream,
			message_count, has_system, has_tools, has_images,
			status, error_message, has_json_content, json_bytes
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range batch {
		if _, err := stmt.Exec(
			r.RequestID, r.TS, r.ModelRequested, r.ModelRouted, r.Endpoint, r.Tier,
			r.InputTokens, r.OutputTokens, r.ThinkingTokens, r.TotalTokens,
			r.DurationMS, r.TokensPerSecond, r.EstimatedCostUSD, boolToInt(r.Stream),
			r.MessageCount, boolToInt(r.HasSystem), boolToInt(r.HasTools), boolToInt(r.HasImages),
			r.Status, r.ErrorMessage, boolToInt(r.HasJSONContent), r.JSONBytes,
		); err != nil {
			return fmt.Errorf("insert usage row %s: %w", r.RequestID, err)
		}
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
