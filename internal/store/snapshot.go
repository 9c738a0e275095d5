package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// snapshotRepo implements SnapshotRepo over the session_snapshots table.
type snapshotRepo struct {
	db *sql.DB
}

func (r *snapshotRepo) SaveSnapshot(ctx context.Context, sessionID string, seq int64, data json.RawMessage) error {
	if !json.Valid(data) {
		return fmt.Errorf("save snapshot %s: data is not valid JSON", sessionID)
	}

	query, args := builder().Insert(snapshotsTable).
		Columns("session_id", "sequence", "timestamp", "data").
		Values(sessionID, seq, time.Now().UTC(), string(data)).
		OnConflict(
			entsql.ConflictColumns("session_id", "sequence"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepo) LoadSnapshot(ctx context.Context, sessionID string) (json.RawMessage, error) {
	snap, err := r.Latest(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return snap.Data, nil
}

func (r *snapshotRepo) Latest(ctx context.Context, sessionID string) (*Snapshot, error) {
	query, args := builder().
		Select("id", "session_id", "sequence", "timestamp", "data").
		From(entsql.Table(snapshotsTable)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy(entsql.Desc("sequence")).
		Limit(1).
		Query()

	var (
		s    Snapshot
		data string
	)
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&s.ID, &s.SessionID, &s.Sequence, &s.Timestamp, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("snapshot for session %s: %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	s.Data = json.RawMessage(data)
	return &s, nil
}

func (r *snapshotRepo) Prune(ctx context.Context, sessionID string, keep int) error {
	// Find the sequence of the Nth most recent snapshot.
	query, args := builder().
		Select("sequence").
		From(entsql.Table(snapshotsTable)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy(entsql.Desc("sequence")).
		Offset(keep).
		Limit(1).
		Query()

	var threshold int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil // fewer than keep snapshots exist
	}
	if err != nil {
		return fmt.Errorf("query snapshots for prune: %w", err)
	}

	query, args = builder().Delete(snapshotsTable).
		Where(entsql.And(
			entsql.EQ("session_id", sessionID),
			entsql.LTE("sequence", threshold),
		)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}

func (r *snapshotRepo) ListSessions(ctx context.Context, limit int) ([]SessionInfo, error) {
	sel := builder().
		Select(
			"session_id",
			entsql.As(entsql.Max("sequence"), "last_sequence"),
			entsql.As(entsql.Max("timestamp"), "updated_at"),
			entsql.As(entsql.Count("*"), "snapshots"),
		).
		From(entsql.Table(snapshotsTable)).
		GroupBy("session_id").
		// Upserts refresh the timestamp but keep the row id, so MAX(id)
		// only breaks ties between sessions written in the same instant.
		OrderBy(entsql.Desc("updated_at"), entsql.Desc(entsql.Max("id")))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var (
			info    SessionInfo
			updated string
		)
		if err := rows.Scan(&info.SessionID, &info.Sequence, &updated, &info.Snapshots); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		info.UpdatedAt = parseTimestamp(updated)
		out = append(out, info)
	}
	return out, rows.Err()
}

// parseTimestamp reads a timestamp produced by an aggregate, where the
// driver hands back text rather than a time.Time.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
