package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rafaeljc/herald/internal/model"
)

// SessionRepository records app sessions.
type SessionRepository interface {
	// StartSession opens a session for the user with externalID and bumps
	// its LastSeen. It returns ErrNotFound when the user does not exist.
	StartSession(ctx context.Context, appID, externalID string, at time.Time) (model.Session, error)
	// EndSession closes sessionID and records its duration in seconds.
	// It reports false when the session does not exist.
	EndSession(ctx context.Context, appID, sessionID string, at time.Time) (bool, error)
}

func (s *PostgresStore) StartSession(ctx context.Context, appID, externalID string, at time.Time) (model.Session, error) {
	sess := model.Session{
		ID:        newID(),
		AppID:     appID,
		StartedAt: at.UTC(),
		Date:      model.SessionDate(at),
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		// 1. Resolve and touch the user
		err := tx.QueryRow(ctx, `
			UPDATE users SET last_seen = $3, updated_at = NOW()
			WHERE app_id = $1 AND external_id = $2
			RETURNING id`, appID, externalID, sess.StartedAt).Scan(&sess.UserID)
		if err != nil {
			return mapError(err, fmt.Sprintf("user %s", externalID))
		}

		// 2. Open the session
		_, err = tx.Exec(ctx, `
			INSERT INTO sessions (id, app_id, user_id, started_at, date)
			VALUES ($1, $2, $3, $4, $5::date)`,
			sess.ID, appID, sess.UserID, sess.StartedAt, sess.Date)
		if err != nil {
			return mapError(err, "failed to insert session")
		}
		return nil
	})
	if err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

func (s *PostgresStore) EndSession(ctx context.Context, appID, sessionID string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE sessions
		SET ended_at = $3,
			duration = GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($3 - started_at))))::int
		WHERE id = $1 AND app_id = $2`,
		sessionID, appID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to end session %s: %w", sessionID, err)
	}
	return tag.RowsAffected() > 0, nil
}
