package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/rules"
)

// SegmentRepository persists segments.
type SegmentRepository interface {
	CreateSegment(ctx context.Context, seg model.Segment) (model.Segment, error)
	GetSegment(ctx context.Context, id string) (model.Segment, error)
	// ListSegments returns the segments of appID, or of every app when
	// appID is empty, newest first.
	ListSegments(ctx context.Context, appID string) ([]model.Segment, error)
	UpdateSegment(ctx context.Context, id string, patch SegmentPatch) (model.Segment, error)
	DeleteSegment(ctx context.Context, id string) (model.Segment, error)
}

// SegmentPatch holds a partial update. Nil fields are left unchanged.
type SegmentPatch struct {
	Name        *string
	Description *string
	Rules       *[]rules.Condition
}

const segmentColumns = `id, app_id, name, description, rules, created_at, updated_at`

func scanSegment(row pgx.Row) (model.Segment, error) {
	var seg model.Segment
	err := row.Scan(&seg.ID, &seg.AppID, &seg.Name, &seg.Description, &seg.Rules, &seg.CreatedAt, &seg.UpdatedAt)
	if seg.Rules == nil {
		seg.Rules = []rules.Condition{}
	}
	return seg, err
}

func rulesArg(r []rules.Condition) []rules.Condition {
	if r == nil {
		return []rules.Condition{}
	}
	return r
}

func (s *PostgresStore) CreateSegment(ctx context.Context, seg model.Segment) (model.Segment, error) {
	query := `
		INSERT INTO segments (id, app_id, name, description, rules)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + segmentColumns

	created, err := scanSegment(s.db.QueryRow(ctx, query,
		newID(), seg.AppID, seg.Name, seg.Description, rulesArg(seg.Rules)))
	if err != nil {
		return model.Segment{}, mapError(err, "failed to insert segment")
	}
	return created, nil
}

func (s *PostgresStore) GetSegment(ctx context.Context, id string) (model.Segment, error) {
	seg, err := scanSegment(s.db.QueryRow(ctx, `SELECT `+segmentColumns+` FROM segments WHERE id = $1`, id))
	if err != nil {
		return model.Segment{}, mapError(err, fmt.Sprintf("segment %s", id))
	}
	return seg, nil
}

func (s *PostgresStore) ListSegments(ctx context.Context, appID string) ([]model.Segment, error) {
	query := `
		SELECT ` + segmentColumns + `
		FROM segments
		WHERE $1 = '' OR app_id = $1
		ORDER BY created_at DESC, id`

	rows, err := s.db.Query(ctx, query, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	defer rows.Close()

	segments := []model.Segment{}
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment row: %w", err)
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return segments, nil
}

// UpdateSegment applies patch. A rule change moves the notifications gated
// by the segment to the app's next version so delta syncs carry the new
// rules.
func (s *PostgresStore) UpdateSegment(ctx context.Context, id string, patch SegmentPatch) (model.Segment, error) {
	var updated model.Segment

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var version int64
		if patch.Rules != nil {
			var err error
			if version, err = nextSegmentVersion(ctx, tx, id); err != nil {
				return err
			}
		}

		seg, err := scanSegment(tx.QueryRow(ctx,
			`SELECT `+segmentColumns+` FROM segments WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return mapError(err, fmt.Sprintf("segment %s", id))
		}

		if patch.Name != nil {
			seg.Name = *patch.Name
		}
		if patch.Description != nil {
			seg.Description = *patch.Description
		}
		if patch.Rules != nil {
			seg.Rules = *patch.Rules
		}

		updated, err = scanSegment(tx.QueryRow(ctx, `
			UPDATE segments SET name = $2, description = $3, rules = $4, updated_at = NOW()
			WHERE id = $1
			RETURNING `+segmentColumns,
			id, seg.Name, seg.Description, rulesArg(seg.Rules)))
		if err != nil {
			return mapError(err, fmt.Sprintf("segment %s", id))
		}

		if patch.Rules != nil {
			return bumpSegmentNotifications(ctx, tx, id, version)
		}
		return nil
	})
	return updated, err
}

// DeleteSegment removes the segment. Notifications that referenced it keep
// the dangling id, which devices treat as ineligible.
func (s *PostgresStore) DeleteSegment(ctx context.Context, id string) (model.Segment, error) {
	var deleted model.Segment

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		version, err := nextSegmentVersion(ctx, tx, id)
		if err != nil {
			return err
		}

		deleted, err = scanSegment(tx.QueryRow(ctx,
			`DELETE FROM segments WHERE id = $1 RETURNING `+segmentColumns, id))
		if err != nil {
			return mapError(err, fmt.Sprintf("segment %s", id))
		}
		return bumpSegmentNotifications(ctx, tx, id, version)
	})
	return deleted, err
}

func nextSegmentVersion(ctx context.Context, tx pgx.Tx, id string) (int64, error) {
	var appID string
	err := tx.QueryRow(ctx, `SELECT app_id FROM segments WHERE id = $1`, id).Scan(&appID)
	if err != nil {
		return 0, mapError(err, fmt.Sprintf("segment %s", id))
	}
	return nextVersion(ctx, tx, appID)
}

// bumpSegmentNotifications moves every notification gated by segmentID to
// version. They share it: the next write of the app takes a higher one.
func bumpSegmentNotifications(ctx context.Context, tx pgx.Tx, segmentID string, version int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE notifications SET version = $2, updated_at = NOW()
		WHERE segment_id = $1`, segmentID, version)
	if err != nil {
		return fmt.Errorf("failed to bump notifications of segment %s: %w", segmentID, err)
	}
	return nil
}
