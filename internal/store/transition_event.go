package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var transitionFields = []string{
	"id", "sequence", "timestamp", "session_id", "learner_id", "topic",
	"op", "from_phase", "to_phase", "step_index", "progress",
}

func (r *eventRepo) AppendTransition(ctx context.Context, data TransitionEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := builder().Insert(transitionsTable).
		Columns(transitionFields[1:]...).
		Values(
			seqNum,
			time.Now().UTC(),
			data.SessionID,
			data.LearnerID,
			data.Topic,
			data.Op,
			data.From,
			data.To,
			data.StepIndex,
			data.Progress,
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save transition event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryTransitions(ctx context.Context, sessionID string, opts QueryOpts) ([]TransitionRecord, error) {
	where := entsql.EQ("session_id", sessionID)
	if p := opts.predicate(); p != nil {
		where = entsql.And(where, p)
	}

	sel := builder().
		Select(transitionFields...).
		From(entsql.Table(transitionsTable)).
		Where(where).
		OrderBy("sequence")
	if opts.Limit > 0 {
		sel = sel.Limit(opts.Limit)
	}
	query, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []TransitionRecord
	for rows.Next() {
		var rec TransitionRecord
		err := rows.Scan(
			&rec.ID, &rec.Sequence, &rec.Timestamp,
			&rec.SessionID, &rec.LearnerID, &rec.Topic,
			&rec.Op, &rec.From, &rec.To, &rec.StepIndex, &rec.Progress,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
