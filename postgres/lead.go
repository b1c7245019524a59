package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/nexocrm/leadview"
)

// LeadStore implements leadview.LeadStore over Postgres.
type LeadStore struct {
	db *sqlx.DB
}

func NewLeadStore(db *sqlx.DB) *LeadStore {
	return &LeadStore{
		db: db,
	}
}

// ListOpen returns one page of not-yet-converted leads, newest first.
// Creation time ties break on id so pages never overlap or skip rows.
func (ls *LeadStore) ListOpen(ctx context.Context, offset, limit int) ([]leadview.Lead, error) {
	const query = `
	SELECT
		id,
		name,
		email,
		phone_number,
		country,
		status,
		COALESCE(assigned_to, '') AS assigned_to,
		desk,
		is_converted,
		created_at,
		modified_at
	FROM leads
	WHERE is_converted = false
	ORDER BY created_at DESC, id DESC
	OFFSET $1 LIMIT $2`

	leads := []leadview.Lead{}
	if err := ls.db.SelectContext(ctx, &leads, query, offset, limit); err != nil {
		return nil, fmt.Errorf("selecting leads page: %w", err)
	}
	return leads, nil
}

// ListStatuses returns the enumerated pipeline statuses in display order.
func (ls *LeadStore) ListStatuses(ctx context.Context) ([]leadview.Status, error) {
	const query = `
	SELECT name, position
	FROM lead_statuses
	ORDER BY position`

	statuses := []leadview.Status{}
	if err := ls.db.SelectContext(ctx, &statuses, query); err != nil {
		return nil, fmt.Errorf("selecting statuses: %w", err)
	}
	return statuses, nil
}

// UpdateStatus moves every lead in ids to status.
func (ls *LeadStore) UpdateStatus(ctx context.Context, ids []string, status string) error {
	const query = `
	UPDATE leads
	SET status = $1, modified_at = now()
	WHERE id = ANY($2)`

	if _, err := ls.db.ExecContext(ctx, query, status, pq.Array(ids)); err != nil {
		return fmt.Errorf("updating lead status: %w", err)
	}
	return nil
}

// Assign points every lead in ids at agentID. Empty agentID clears the
// assignment.
func (ls *LeadStore) Assign(ctx context.Context, ids []string, agentID string) error {
	const query = `
	UPDATE leads
	SET assigned_to = NULLIF($1, ''), modified_at = now()
	WHERE id = ANY($2)`

	if _, err := ls.db.ExecContext(ctx, query, agentID, pq.Array(ids)); err != nil {
		return fmt.Errorf("assigning leads: %w", err)
	}
	return nil
}

// Delete removes every lead in ids.
func (ls *LeadStore) Delete(ctx context.Context, ids []string) error {
	const query = `
	DELETE FROM leads
	WHERE id = ANY($1)`

	if _, err := ls.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("deleting leads: %w", err)
	}
	return nil
}
