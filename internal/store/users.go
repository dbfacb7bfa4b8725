package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/rules"
)

// UserRepository persists end users, keyed by (app id, external id).
type UserRepository interface {
	// UpsertUser creates the user or replaces its properties and bumps LastSeen.
	UpsertUser(ctx context.Context, appID, externalID string, props rules.Properties) (model.User, error)
	GetUser(ctx context.Context, appID, externalID string) (model.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]model.User, int64, error)
	DeleteUser(ctx context.Context, appID, externalID string) error
	// ForEachUser streams every user of appID, most recently seen first,
	// stopping at the first error returned by fn.
	ForEachUser(ctx context.Context, appID string, fn func(model.User) error) error
}

// UserFilter selects users. Empty fields do not filter.
type UserFilter struct {
	AppID  string
	Search string // substring of the external id
	Limit  int    // <= 0 means no limit
	Offset int
}

const userColumns = `id, app_id, external_id, properties, first_seen, last_seen, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.AppID, &u.ExternalID, &u.Properties, &u.FirstSeen, &u.LastSeen, &u.CreatedAt, &u.UpdatedAt)
	if u.Properties == nil {
		u.Properties = rules.Properties{}
	}
	return u, err
}

func (s *PostgresStore) UpsertUser(ctx context.Context, appID, externalID string, props rules.Properties) (model.User, error) {
	if props == nil {
		props = rules.Properties{}
	}

	query := `
		INSERT INTO users (id, app_id, external_id, properties)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (app_id, external_id) DO UPDATE
		SET properties = EXCLUDED.properties, last_seen = NOW(), updated_at = NOW()
		RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, newID(), appID, externalID, props))
	if err != nil {
		return model.User{}, mapError(err, "failed to upsert user")
	}
	return u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, appID, externalID string) (model.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE app_id = $1 AND external_id = $2`, appID, externalID))
	if err != nil {
		return model.User{}, mapError(err, fmt.Sprintf("user %s", externalID))
	}
	return u, nil
}

// ListUsers returns one page of users, most recently seen first, and the
// total number of matches.
func (s *PostgresStore) ListUsers(ctx context.Context, filter UserFilter) ([]model.User, int64, error) {
	where := `($1 = '' OR app_id = $1) AND ($2 = '' OR strpos(external_id, $2) > 0)`

	// 1. Total
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM users WHERE `+where,
		filter.AppID, filter.Search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	if total == 0 {
		return []model.User{}, 0, nil
	}

	// 2. Page
	var limit any
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE `+where+`
		ORDER BY last_seen DESC, id
		LIMIT $3 OFFSET $4`,
		filter.AppID, filter.Search, limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, max(filter.Limit, 0))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}
	return users, total, nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, appID, externalID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE app_id = $1 AND external_id = $2`, appID, externalID)
	if err != nil {
		return mapError(err, fmt.Sprintf("user %s", externalID))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", externalID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ForEachUser(ctx context.Context, appID string, fn func(model.User) error) error {
	rows, err := s.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE app_id = $1
		ORDER BY last_seen DESC, id`, appID)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return fmt.Errorf("failed to scan user row: %w", err)
		}
		if err := fn(u); err != nil {
			return err
		}
	}
	return rows.Err()
}
