package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/rules"
	"github.com/rafaeljc/herald/internal/trigger"
)

// NotificationRepository persists notifications. Every write stamps the
// notification with the next value of its app's version counter, so versions
// grow across the whole app and a delta sync past any watermark sees it.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error)
	GetNotification(ctx context.Context, id string) (model.Notification, error)
	// ListNotifications returns the notifications of appID, or of every app
	// when appID is empty, newest first.
	ListNotifications(ctx context.Context, appID string) ([]model.Notification, error)
	UpdateNotification(ctx context.Context, id string, patch NotificationPatch) (model.Notification, error)
	ToggleNotification(ctx context.Context, id string) (model.Notification, error)
	DuplicateNotification(ctx context.Context, id string) (model.Notification, error)
	DeleteNotification(ctx context.Context, id string) (model.Notification, error)
	// ListSyncNotifications returns the enabled notifications of appID whose
	// version is greater than since.
	ListSyncNotifications(ctx context.Context, appID string, since int64) ([]model.Notification, error)
}

// NotificationPatch holds a partial update. Nil fields are left unchanged.
// An empty SegmentID detaches the segment.
type NotificationPatch struct {
	Name       *string
	Title      *string
	Body       *string
	Locales    *map[string]model.LocalizedText
	Data       *map[string]any
	Trigger    *trigger.Trigger
	Conditions *[]rules.Condition
	SegmentID  *string
	Enabled    *bool
	Priority   *model.Priority
	Badge      *int
	Sound      *string
}

// Apply copies the set fields onto n.
func (p NotificationPatch) Apply(n *model.Notification) {
	if p.Name != nil {
		n.Name = *p.Name
	}
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Body != nil {
		n.Body = *p.Body
	}
	if p.Locales != nil {
		n.Locales = *p.Locales
	}
	if p.Data != nil {
		n.Data = *p.Data
	}
	if p.Trigger != nil {
		n.Trigger = *p.Trigger
	}
	if p.Conditions != nil {
		n.Conditions = *p.Conditions
	}
	if p.SegmentID != nil {
		n.SegmentID = *p.SegmentID
	}
	if p.Enabled != nil {
		n.Enabled = *p.Enabled
	}
	if p.Priority != nil {
		n.Priority = *p.Priority
	}
	if p.Badge != nil {
		badge := *p.Badge
		n.Badge = &badge
	}
	if p.Sound != nil {
		n.Sound = *p.Sound
	}
}

const notificationColumns = `
	id, app_id, name, title, body, locales, data, trigger, conditions,
	COALESCE(segment_id, ''), enabled, priority, badge, COALESCE(sound, ''),
	version, created_at, updated_at`

func scanNotification(row pgx.Row) (model.Notification, error) {
	var n model.Notification
	err := row.Scan(
		&n.ID, &n.AppID, &n.Name, &n.Title, &n.Body,
		&n.Locales, &n.Data, &n.Trigger, &n.Conditions,
		&n.SegmentID, &n.Enabled, &n.Priority, &n.Badge, &n.Sound,
		&n.Version, &n.CreatedAt, &n.UpdatedAt,
	)
	return n, err
}

func collectNotifications(rows pgx.Rows) ([]model.Notification, error) {
	defer rows.Close()

	out := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateNotification inserts n with a generated id at the app's next
// version.
func (s *PostgresStore) CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	if n.Priority == "" {
		n.Priority = model.PriorityDefault
	}

	var created model.Notification
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		version, err := nextVersion(ctx, tx, n.AppID)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO notifications
				(id, app_id, name, title, body, locales, data, trigger, conditions,
				 segment_id, enabled, priority, badge, sound, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING ` + notificationColumns

		created, err = scanNotification(tx.QueryRow(ctx, query,
			newID(), n.AppID, n.Name, n.Title, n.Body,
			jsonArg(n.Locales), jsonArg(n.Data), n.Trigger, jsonArg(n.Conditions),
			nullString(n.SegmentID), n.Enabled, n.Priority, n.Badge, nullString(n.Sound),
			version,
		))
		if err != nil {
			return mapError(err, "failed to insert notification")
		}
		return nil
	})
	return created, err
}

func (s *PostgresStore) GetNotification(ctx context.Context, id string) (model.Notification, error) {
	n, err := scanNotification(s.db.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		return model.Notification{}, mapError(err, fmt.Sprintf("notification %s", id))
	}
	return n, nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, appID string) ([]model.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE $1 = '' OR app_id = $1
		ORDER BY created_at DESC, id`

	rows, err := s.db.Query(ctx, query, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return collectNotifications(rows)
}

// UpdateNotification applies patch under a row lock and moves the
// notification to the app's next version.
func (s *PostgresStore) UpdateNotification(ctx context.Context, id string, patch NotificationPatch) (model.Notification, error) {
	var updated model.Notification

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		// 1. Version
		version, err := nextNotificationVersion(ctx, tx, id)
		if err != nil {
			return err
		}

		// 2. Lock
		n, err := scanNotification(tx.QueryRow(ctx,
			`SELECT `+notificationColumns+` FROM notifications WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return mapError(err, fmt.Sprintf("notification %s", id))
		}

		// 3. Merge
		patch.Apply(&n)

		// 4. Write
		query := `
			UPDATE notifications SET
				name = $2, title = $3, body = $4, locales = $5, data = $6, trigger = $7,
				conditions = $8, segment_id = $9, enabled = $10, priority = $11,
				badge = $12, sound = $13, version = $14, updated_at = NOW()
			WHERE id = $1
			RETURNING ` + notificationColumns

		updated, err = scanNotification(tx.QueryRow(ctx, query,
			id, n.Name, n.Title, n.Body, jsonArg(n.Locales), jsonArg(n.Data), n.Trigger,
			jsonArg(n.Conditions), nullString(n.SegmentID), n.Enabled, n.Priority,
			n.Badge, nullString(n.Sound), version,
		))
		if err != nil {
			return mapError(err, fmt.Sprintf("notification %s", id))
		}
		return nil
	})
	return updated, err
}

// ToggleNotification flips Enabled and moves the notification to the app's
// next version.
func (s *PostgresStore) ToggleNotification(ctx context.Context, id string) (model.Notification, error) {
	var toggled model.Notification

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		version, err := nextNotificationVersion(ctx, tx, id)
		if err != nil {
			return err
		}

		query := `
			UPDATE notifications
			SET enabled = NOT enabled, version = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING ` + notificationColumns

		toggled, err = scanNotification(tx.QueryRow(ctx, query, id, version))
		if err != nil {
			return mapError(err, fmt.Sprintf("notification %s", id))
		}
		return nil
	})
	return toggled, err
}

// DuplicateNotification copies id into a new, disabled notification named
// "<name> (copy)" at the app's next version.
func (s *PostgresStore) DuplicateNotification(ctx context.Context, id string) (model.Notification, error) {
	var dup model.Notification

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		version, err := nextNotificationVersion(ctx, tx, id)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO notifications
				(id, app_id, name, title, body, locales, data, trigger, conditions,
				 segment_id, enabled, priority, badge, sound, version)
			SELECT $2, app_id, name || ' (copy)', title, body, locales, data, trigger, conditions,
				segment_id, FALSE, priority, badge, sound, $3
			FROM notifications
			WHERE id = $1
			RETURNING ` + notificationColumns

		dup, err = scanNotification(tx.QueryRow(ctx, query, id, newID(), version))
		if err != nil {
			return mapError(err, fmt.Sprintf("notification %s", id))
		}
		return nil
	})
	return dup, err
}

// DeleteNotification removes id and returns the deleted row.
func (s *PostgresStore) DeleteNotification(ctx context.Context, id string) (model.Notification, error) {
	n, err := scanNotification(s.db.QueryRow(ctx,
		`DELETE FROM notifications WHERE id = $1 RETURNING `+notificationColumns, id))
	if err != nil {
		return model.Notification{}, mapError(err, fmt.Sprintf("notification %s", id))
	}
	return n, nil
}

func (s *PostgresStore) ListSyncNotifications(ctx context.Context, appID string, since int64) ([]model.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE app_id = $1 AND enabled AND version > $2
		ORDER BY created_at DESC, id`

	rows, err := s.db.Query(ctx, query, appID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync notifications: %w", err)
	}
	return collectNotifications(rows)
}

// nextVersion takes the next value of the app's version counter. The row
// lock it takes is held until commit, so versions are handed out in commit
// order. Callers take it before locking any other row of the app.
func nextVersion(ctx context.Context, tx pgx.Tx, appID string) (int64, error) {
	var version int64
	err := tx.QueryRow(ctx,
		`UPDATE apps SET sync_version = sync_version + 1 WHERE id = $1 RETURNING sync_version`,
		appID,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("app %s: %w", appID, ErrConflict)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to advance version of app %s: %w", appID, err)
	}
	return version, nil
}

func nextNotificationVersion(ctx context.Context, tx pgx.Tx, id string) (int64, error) {
	var appID string
	err := tx.QueryRow(ctx, `SELECT app_id FROM notifications WHERE id = $1`, id).Scan(&appID)
	if err != nil {
		return 0, mapError(err, fmt.Sprintf("notification %s", id))
	}
	return nextVersion(ctx, tx, appID)
}
