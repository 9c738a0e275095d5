package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/tutorly/internal/level"
)

// levelRepo implements LevelRepo over the learner_levels table.
type levelRepo struct {
	db *sql.DB
}

func (r *levelRepo) LevelFor(ctx context.Context, learnerID, topic string) (level.Level, error) {
	query, args := builder().
		Select("level").
		From(entsql.Table(levelsTable)).
		Where(entsql.And(
			entsql.EQ("learner_id", learnerID),
			entsql.EQ("topic", normalizeTopic(topic)),
		)).
		Limit(1).
		Query()

	var raw string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return level.Beginner, nil
	}
	if err != nil {
		return "", fmt.Errorf("query level: %w", err)
	}

	lvl, err := level.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("stored level for %s/%s: %w", learnerID, topic, err)
	}
	return lvl, nil
}

func (r *levelRepo) SetLevel(ctx context.Context, learnerID, topic string, lvl level.Level) error {
	if !lvl.Valid() {
		return fmt.Errorf("set level: %w", level.ErrUnknownLevel)
	}

	query, args := builder().Insert(levelsTable).
		Columns("learner_id", "topic", "level", "updated_at").
		Values(learnerID, normalizeTopic(topic), string(lvl), time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns("learner_id", "topic"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save level: %w", err)
	}
	return nil
}

// normalizeTopic folds case and whitespace so "Photosynthesis " and
// "photosynthesis" share one level.
func normalizeTopic(topic string) string {
	return strings.ToLower(strings.Join(strings.Fields(topic), " "))
}
