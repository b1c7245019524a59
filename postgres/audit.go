package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/nexocrm/leadview"
)

// AuditLog implements leadview.AuditLog as an append-only table. Rows are
// never updated or deleted.
type AuditLog struct {
	db *sqlx.DB
}

func NewAuditLog(db *sqlx.DB) *AuditLog {
	return &AuditLog{
		db: db,
	}
}

func (al *AuditLog) Append(ctx context.Context, entry leadview.AuditEntry) error {
	const query = `
	INSERT INTO audit_log (
		id, lead_id, type, description, actor_id, created_at
	) VALUES (
		:id, :lead_id, :type, :description, :actor_id, :created_at
	)`

	if _, err := al.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}
