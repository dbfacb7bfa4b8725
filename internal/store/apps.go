package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rafaeljc/herald/internal/model"
)

// AppRepository persists tenants.
type AppRepository interface {
	CreateApp(ctx context.Context, name string) (model.App, error)
	GetApp(ctx context.Context, id string) (model.App, error)
	ListApps(ctx context.Context) ([]model.App, error)
	RenameApp(ctx context.Context, id, name string) (model.App, error)
	DeleteApp(ctx context.Context, id string) error
	RegenerateAPIKey(ctx context.Context, id string) (model.App, error)
}

const appColumns = `id, name, api_key, created_at, updated_at`

func scanApp(row pgx.Row) (model.App, error) {
	var a model.App
	err := row.Scan(&a.ID, &a.Name, &a.APIKey, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// CreateApp inserts an app with a generated id and API key.
func (s *PostgresStore) CreateApp(ctx context.Context, name string) (model.App, error) {
	query := `
		INSERT INTO apps (id, name, api_key)
		VALUES ($1, $2, $3)
		RETURNING ` + appColumns

	a, err := scanApp(s.db.QueryRow(ctx, query, newID(), name, NewAPIKey()))
	if err != nil {
		return model.App{}, mapError(err, "failed to insert app")
	}
	return a, nil
}

func (s *PostgresStore) GetApp(ctx context.Context, id string) (model.App, error) {
	a, err := scanApp(s.db.QueryRow(ctx, `SELECT `+appColumns+` FROM apps WHERE id = $1`, id))
	if err != nil {
		return model.App{}, mapError(err, fmt.Sprintf("app %s", id))
	}
	return a, nil
}

// ListApps returns every app, newest first.
func (s *PostgresStore) ListApps(ctx context.Context) ([]model.App, error) {
	rows, err := s.db.Query(ctx, `SELECT `+appColumns+` FROM apps ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer rows.Close()

	apps := []model.App{}
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan app row: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return apps, nil
}

func (s *PostgresStore) RenameApp(ctx context.Context, id, name string) (model.App, error) {
	query := `
		UPDATE apps SET name = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + appColumns

	a, err := scanApp(s.db.QueryRow(ctx, query, id, name))
	if err != nil {
		return model.App{}, mapError(err, fmt.Sprintf("app %s", id))
	}
	return a, nil
}

// DeleteApp removes the app and, by cascade, everything it owns.
func (s *PostgresStore) DeleteApp(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM apps WHERE id = $1`, id)
	if err != nil {
		return mapError(err, fmt.Sprintf("app %s", id))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("app %s: %w", id, ErrNotFound)
	}
	return nil
}

// RegenerateAPIKey replaces the app's key. The old key stops working immediately.
func (s *PostgresStore) RegenerateAPIKey(ctx context.Context, id string) (model.App, error) {
	query := `
		UPDATE apps SET api_key = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + appColumns

	a, err := scanApp(s.db.QueryRow(ctx, query, id, NewAPIKey()))
	if err != nil {
		return model.App{}, mapError(err, fmt.Sprintf("app %s", id))
	}
	return a, nil
}
