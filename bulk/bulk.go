// Package bulk implements the multi-select lead operations: status
// change, agent assignment, and deletion. Mutations and their audit
// records are deliberately not transactional: the store update commits
// first, then audit entries fan out one per lead, and an audit failure is
// logged and skipped without rolling anything back.
package bulk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nexocrm/leadview"
	"go.uber.org/zap"
)

const (
	auditStatusChange = "status_change"
	auditAssignment   = "assignment"
	auditDeletion     = "deletion"
)

type Service struct {
	store leadview.LeadStore
	audit leadview.AuditLog
	log   *zap.SugaredLogger
}

func NewService(store leadview.LeadStore, audit leadview.AuditLog, log *zap.SugaredLogger) *Service {
	return &Service{
		store: store,
		audit: audit,
		log:   log,
	}
}

// UpdateStatus moves every selected lead to the given status. Agents may
// not run bulk status changes.
func (s *Service) UpdateStatus(ctx context.Context, actor leadview.Viewer, ids []string, status string) error {
	if actor.Role == leadview.RoleAgent {
		return leadview.ErrForbidden
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return leadview.ErrNoSelection
	}

	if err := s.store.UpdateStatus(ctx, ids, status); err != nil {
		return fmt.Errorf("bulk status update: %w", err)
	}

	s.appendAudits(ctx, actor, ids, auditStatusChange,
		fmt.Sprintf("status changed to %q", status))
	return nil
}

// Assign hands every selected lead to agentID. An empty agentID
// unassigns. Agents may not reassign leads.
func (s *Service) Assign(ctx context.Context, actor leadview.Viewer, ids []string, agentID string) error {
	if actor.Role == leadview.RoleAgent {
		return leadview.ErrForbidden
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return leadview.ErrNoSelection
	}

	if err := s.store.Assign(ctx, ids, agentID); err != nil {
		return fmt.Errorf("bulk assign: %w", err)
	}

	desc := fmt.Sprintf("assigned to %q", agentID)
	if agentID == "" {
		desc = "unassigned"
	}
	s.appendAudits(ctx, actor, ids, auditAssignment, desc)
	return nil
}

// Delete removes the selected leads permanently. Admin only.
func (s *Service) Delete(ctx context.Context, actor leadview.Viewer, ids []string) error {
	if actor.Role != leadview.RoleAdmin {
		return leadview.ErrForbidden
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return leadview.ErrNoSelection
	}

	if err := s.store.Delete(ctx, ids); err != nil {
		return fmt.Errorf("bulk delete: %w", err)
	}

	s.appendAudits(ctx, actor, ids, auditDeletion, "lead deleted")
	return nil
}

// appendAudits writes one entry per lead, logging and continuing past
// individual failures. The caller's result never depends on the outcome.
func (s *Service) appendAudits(ctx context.Context, actor leadview.Viewer, ids []string, typ, desc string) {
	now := time.Now().UTC()
	for _, id := range ids {
		entry := leadview.AuditEntry{
			ID:          uuid.NewString(),
			LeadID:      id,
			Type:        typ,
			Description: desc,
			ActorID:     actor.ID,
			CreatedAt:   now,
		}
		if err := s.audit.Append(ctx, entry); err != nil {
			s.log.Warnw("bulk: audit append failed",
				"lead", id, "type", typ, "err", err)
		}
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
