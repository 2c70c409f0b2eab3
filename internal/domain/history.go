package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChangeType classifies a history ledger entry.
type ChangeType string

const (
	ChangeTypeCreate             ChangeType = "CREATE"
	ChangeTypeUpdate             ChangeType = "UPDATE"
	ChangeTypeDelete             ChangeType = "DELETE"
	ChangeTypeRelationshipAdd    ChangeType = "RELATIONSHIP_ADD"
	ChangeTypeRelationshipRemove ChangeType = "RELATIONSHIP_REMOVE"
)

// HistoryEntry is one append-only record in the audit ledger. Entries are
// never updated or deleted, and survive the soft-delete of their subject CI.
type HistoryEntry struct {
	ID           int64      `json:"id"`
	CIID         uuid.UUID  `json:"ci_id"`
	ChangeType   ChangeType `json:"change_type"`
	FieldName    *string    `json:"field_name,omitempty"`
	OldValue     *string    `json:"old_value,omitempty"`
	NewValue     *string    `json:"new_value,omitempty"`
	ChangeReason *string    `json:"change_reason,omitempty"`
	ChangedBy    string     `json:"changed_by"`
	ChangedAt    time.Time  `json:"changed_at"`
}

// NewHistoryEntry builds a ledger entry for a CI mutation. Optional values
// are passed as empty strings and stored as NULLs.
func NewHistoryEntry(ciID uuid.UUID, changeType ChangeType, fieldName, oldValue, newValue, reason, actor string) HistoryEntry {
	return HistoryEntry{
		CIID:         ciID,
		ChangeType:   changeType,
		FieldName:    optional(fieldName),
		OldValue:     optional(oldValue),
		NewValue:     optional(newValue),
		ChangeReason: optional(reason),
		ChangedBy:    actor,
		ChangedAt:    time.Now().UTC(),
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
