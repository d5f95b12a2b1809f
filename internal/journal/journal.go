// Package journal persists an audit trail of inbound webhook deliveries.
// Recording is best-effort: callers log journal failures and move on, the
// remote webhook caller never sees them.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Journal struct {
	db *sql.DB
}

func New(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Record inserts a delivery row and returns its id.
func (j *Journal) Record(ctx context.Context, req RecordRequest) (string, error) {
	if req.Feed == "" {
		return "", fmt.Errorf("feed is empty")
	}
	if req.Outcome == "" {
		return "", fmt.Errorf("outcome is empty")
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := j.db.ExecContext(ctx, `
INSERT INTO delivery_log(id, feed, outcome, body_bytes, remote_addr, received_at)
VALUES(?, ?, ?, ?, ?, ?);
`, id, req.Feed, req.Outcome, req.BodyBytes, req.RemoteAddr, now)
	if err != nil {
		return "", fmt.Errorf("record delivery: %w", err)
	}
	return id, nil
}

// Recent returns up to limit deliveries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]*Delivery, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT id, feed, outcome, body_bytes, remote_addr, received_at
FROM delivery_log
ORDER BY received_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*Delivery
	for rows.Next() {
		var (
			d          Delivery
			outcomeS   string
			remoteAddr sql.NullString
			receivedS  string
		)
		if err := rows.Scan(&d.ID, &d.Feed, &outcomeS, &d.BodyBytes, &remoteAddr, &receivedS); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		d.Outcome = Outcome(outcomeS)
		if remoteAddr.Valid {
			d.RemoteAddr = remoteAddr.String
		}
		if t, err := time.Parse(time.RFC3339Nano, receivedS); err == nil {
			d.ReceivedAt = t
		}
		deliveries = append(deliveries, &d)
	}
	return deliveries, rows.Err()
}

// Totals returns delivery counts per outcome.
func (j *Journal) Totals(ctx context.Context) (map[Outcome]int64, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT outcome, COUNT(*) FROM delivery_log GROUP BY outcome;
`)
	if err != nil {
		return nil, fmt.Errorf("count deliveries: %w", err)
	}
	defer rows.Close()

	totals := make(map[Outcome]int64)
	for rows.Next() {
		var (
			outcomeS string
			count    int64
		)
		if err := rows.Scan(&outcomeS, &count); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		totals[Outcome(outcomeS)] = count
	}
	return totals, rows.Err()
}
