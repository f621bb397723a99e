package audit

import "time"

// Entry is a single audit trail record. Meta carries action-specific details
// and is stored as JSONB.
type Entry struct {
	ID        int64          `json:"id"`
	ActorID   *int64         `json:"actorId,omitempty"`
	Action    string         `json:"action"`
	Module    string         `json:"module"`
	EntityID  *int64         `json:"entityId,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Actions recorded by the lifecycle services.
const (
	ActionAccountCreate = "account.create"
	ActionAccountUpdate = "account.update"
	ActionAccountDelete = "account.delete"
	ActionAccountVerify = "account.verify_fix"
	ActionRoleCreate    = "role.create"
	ActionRoleUpdate    = "role.update"
	ActionRoleDelete    = "role.delete"
	ActionInvoiceIssue  = "invoice.issue"
	ActionInvoiceVoid   = "invoice.void"
	ActionPaymentRecord = "payment.record"
)
