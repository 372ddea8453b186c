package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres implementation of Repository.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ Repository = (*Store)(nil)

func (s *Store) InsertEntry(ctx context.Context, e Entry) error {
	var detail []byte
	if len(e.Detail) > 0 {
		encoded, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("encode detail: %w", err)
		}
		detail = encoded
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_entries (id, occurred_at, actor_id, action, entity, entity_id, organization_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.OccurredAt, e.Actor, e.Action, e.Entity, e.EntityID, e.OrganizationID, detail)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

const timelineSelect = `
	SELECT e.occurred_at,
	       COALESCE(u.email, e.actor_id::text) AS actor,
	       e.action,
	       e.entity,
	       e.entity_id,
	       COALESCE(e.organization_id::text, '') AS organization,
	       COALESCE(e.detail::text, '') AS detail
	FROM audit_entries e
	LEFT JOIN users u ON u.id = e.actor_id
	WHERE ($1::timestamptz IS NULL OR e.occurred_at >= $1)
	  AND ($2::timestamptz IS NULL OR e.occurred_at < $2)
	  AND ($3::text IS NULL OR u.email = $3 OR e.actor_id::text = $3)
	  AND ($4::text IS NULL OR e.entity = $4)
	  AND ($5::text IS NULL OR e.action = $5)
	  AND ($6::uuid IS NULL OR e.organization_id = $6)
	ORDER BY e.occurred_at DESC`

func (s *Store) TimelineWindow(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	rows, err := s.pool.Query(ctx, timelineSelect+`
	OFFSET $7 LIMIT $8`,
		nullableTime(f.From), nullableTime(f.To),
		nullableText(f.Actor), nullableText(f.Entity), nullableText(f.Action),
		f.OrganizationID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit timeline: %w", err)
	}
	return scanTimelineRows(rows)
}

func (s *Store) TimelineAll(ctx context.Context, f TimelineFilters) ([]TimelineRow, error) {
	rows, err := s.pool.Query(ctx, timelineSelect,
		nullableTime(f.From), nullableTime(f.To),
		nullableText(f.Actor), nullableText(f.Entity), nullableText(f.Action),
		f.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("query audit timeline: %w", err)
	}
	return scanTimelineRows(rows)
}

func scanTimelineRows(rows pgx.Rows) ([]TimelineRow, error) {
	defer rows.Close()
	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.At, &row.Actor, &row.Action, &row.Entity, &row.EntityID, &row.Organization, &row.Detail); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return out, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullableText(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
