package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rafaeljc/herald/internal/model"
)

// DefaultDAUDays is the length of the DAU history in the overview.
const DefaultDAUDays = 30

// AnalyticsRepository aggregates users and sessions.
type AnalyticsRepository interface {
	// Overview counts users, and distinct active users on today's UTC day,
	// over the last 7 days and over the last 30 days.
	Overview(ctx context.Context, appID string, now time.Time) (model.AnalyticsOverview, error)
	// DAUHistory returns one point per UTC day, oldest first, ending today.
	DAUHistory(ctx context.Context, appID string, days int, now time.Time) ([]model.DAUPoint, error)
}

func (s *PostgresStore) Overview(ctx context.Context, appID string, now time.Time) (model.AnalyticsOverview, error) {
	var out model.AnalyticsOverview
	today := model.SessionDate(now)

	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM users WHERE app_id = $1),
			count(DISTINCT user_id) FILTER (WHERE date = $2::date),
			count(DISTINCT user_id) FILTER (WHERE date >= $2::date - 7),
			count(DISTINCT user_id) FILTER (WHERE date >= $2::date - 30)
		FROM sessions
		WHERE app_id = $1 AND date >= $2::date - 30`,
		appID, today,
	).Scan(&out.TotalUsers, &out.ActiveUsers.Daily, &out.ActiveUsers.Weekly, &out.ActiveUsers.Monthly)
	if err != nil {
		return model.AnalyticsOverview{}, fmt.Errorf("failed to compute overview for app %s: %w", appID, err)
	}

	out.DAUHistory, err = s.DAUHistory(ctx, appID, DefaultDAUDays, now)
	if err != nil {
		return model.AnalyticsOverview{}, err
	}
	return out, nil
}

func (s *PostgresStore) DAUHistory(ctx context.Context, appID string, days int, now time.Time) ([]model.DAUPoint, error) {
	if days < 1 {
		return []model.DAUPoint{}, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT to_char(d.day, 'YYYY-MM-DD'), count(DISTINCT s.user_id)
		FROM generate_series($2::date - ($3::int - 1), $2::date, interval '1 day') AS d(day)
		LEFT JOIN sessions s ON s.app_id = $1 AND s.date = d.day::date
		GROUP BY d.day
		ORDER BY d.day`,
		appID, model.SessionDate(now), days)
	if err != nil {
		return nil, fmt.Errorf("failed to compute dau history for app %s: %w", appID, err)
	}
	defer rows.Close()

	history := make([]model.DAUPoint, 0, days)
	for rows.Next() {
		var p model.DAUPoint
		if err := rows.Scan(&p.Date, &p.Count); err != nil {
			return nil, fmt.Errorf("failed to scan dau row: %w", err)
		}
		history = append(history, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return history, nil
}
