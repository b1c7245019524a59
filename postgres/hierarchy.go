package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Hierarchy implements leadview.Hierarchy by walking the users table's
// manager links. The whole subtree counts as subordinates, not just
// direct reports.
type Hierarchy struct {
	db *sqlx.DB
}

func NewHierarchy(db *sqlx.DB) *Hierarchy {
	return &Hierarchy{
		db: db,
	}
}

func (h *Hierarchy) Subordinates(ctx context.Context, userID string) ([]string, error) {
	const query = `
	WITH RECURSIVE reports AS (
		SELECT id FROM users WHERE manager_id = $1
		UNION
		SELECT u.id FROM users u
		JOIN reports r ON u.manager_id = r.id
	)
	SELECT id FROM reports`

	ids := []string{}
	if err := h.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("selecting subordinates of %s: %w", userID, err)
	}
	return ids, nil
}
