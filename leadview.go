package leadview

import (
	"context"
	"errors"
	"time"
)

var (
	ErrLeadNotFound = errors.New("lead not found")
	ErrForbidden    = errors.New("operation not permitted for role")
	ErrNoSelection  = errors.New("no leads selected")
	ErrUnknownRole  = errors.New("unknown role")
)

// Lead is an open prospect record. AssignedTo is empty while the lead is
// unassigned. Converted leads never reach this service's queries.
type Lead struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Email       string    `json:"email" db:"email"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	Country     string    `json:"country" db:"country"`
	Status      string    `json:"status" db:"status"`
	AssignedTo  string    `json:"assigned_to" db:"assigned_to"`
	Desk        string    `json:"desk" db:"desk"`
	IsConverted bool      `json:"is_converted" db:"is_converted"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	ModifiedAt  time.Time `json:"modified_at" db:"modified_at"`
}

// Status is one entry of the enumerated pipeline-status set, fetched
// separately from the leads themselves.
type Status struct {
	Name     string `json:"name" db:"name"`
	Position int    `json:"position" db:"position"`
}

// AuditEntry is an append-only record of a mutation applied to one lead.
type AuditEntry struct {
	ID          string    `json:"id" db:"id"`
	LeadID      string    `json:"lead_id" db:"lead_id"`
	Type        string    `json:"type" db:"type"`
	Description string    `json:"description" db:"description"`
	ActorID     string    `json:"actor_id" db:"actor_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// LeadStore is the remote record store. ListOpen pages through leads with
// is_converted = false, newest first.
type LeadStore interface {
	ListOpen(ctx context.Context, offset, limit int) ([]Lead, error)
	ListStatuses(ctx context.Context) ([]Status, error)
	UpdateStatus(ctx context.Context, ids []string, status string) error
	Assign(ctx context.Context, ids []string, agentID string) error
	Delete(ctx context.Context, ids []string) error
}

// AuditLog is the append-only audit sink.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
}

// Hierarchy resolves the set of user ids managed by a viewer.
type Hierarchy interface {
	Subordinates(ctx context.Context, userID string) ([]string, error)
}
