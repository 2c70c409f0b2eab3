package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// CIUpdate is a partial update to a configuration item. Nil fields are
// left untouched; a non-nil field that serializes to the current stored
// value produces no change.
type CIUpdate struct {
	Name         *string            `json:"name,omitempty"`
	Description  *string            `json:"description,omitempty"`
	CIType       *string            `json:"ci_type,omitempty"`
	Status       *CIStatus          `json:"status,omitempty"`
	Criticality  *CICriticality     `json:"criticality,omitempty"`
	Environment  *string            `json:"environment,omitempty"`
	Location     *string            `json:"location,omitempty"`
	Owner        *string            `json:"owner,omitempty"`
	SupportGroup *string            `json:"support_group,omitempty"`
	Attributes   map[string]any     `json:"attributes,omitempty"`
	Tags         []string           `json:"tags,omitempty"`
	ChangeReason string             `json:"change_reason,omitempty"`
}

// FieldChange records one field-level difference between the stored CI
// and an applied update. Values are serialized scalars.
type FieldChange struct {
	Field    string
	OldValue string
	NewValue string
}

// Apply computes the field-level diff of the update against the current
// CI and returns the updated CI together with one FieldChange per field
// whose serialized value actually differs. The caller emits one Update
// history entry per change.
func (u CIUpdate) Apply(ci ConfigurationItem, actor string, now time.Time) (ConfigurationItem, []FieldChange) {
	var changes []FieldChange

	applyString := func(field string, current *string, updated *string) {
		if updated == nil {
			return
		}
		if change, ok := diffValues(field, *current, *updated); ok {
			changes = append(changes, change)
			*current = *updated
		}
	}

	applyString("name", &ci.Name, u.Name)
	applyString("description", &ci.Description, u.Description)
	applyString("ci_type", &ci.CIType, u.CIType)

	if u.Status != nil {
		if change, ok := diffValues("status", ci.Status, *u.Status); ok {
			changes = append(changes, change)
			ci.Status = *u.Status
		}
	}
	if u.Criticality != nil {
		if change, ok := diffValues("criticality", ci.Criticality, *u.Criticality); ok {
			changes = append(changes, change)
			ci.Criticality = *u.Criticality
		}
	}

	applyString("environment", &ci.Environment, u.Environment)
	applyString("location", &ci.Location, u.Location)
	applyString("owner", &ci.Owner, u.Owner)
	applyString("support_group", &ci.SupportGroup, u.SupportGroup)

	if u.Attributes != nil {
		if change, ok := diffValues("attributes", ci.Attributes, u.Attributes); ok {
			changes = append(changes, change)
			ci.Attributes = copyAttributes(u.Attributes)
		}
	}
	if u.Tags != nil {
		if change, ok := diffValues("tags", ci.Tags, u.Tags); ok {
			changes = append(changes, change)
			ci.Tags = append([]string(nil), u.Tags...)
		}
	}

	if len(changes) > 0 {
		ci.UpdatedAt = now
		ci.UpdatedBy = actor
	}

	return ci, changes
}

// diffValues compares two values by their canonical JSON serialization,
// so that semantically equal values never produce a spurious entry.
func diffValues(field string, oldValue, newValue any) (FieldChange, bool) {
	oldJSON := serializeValue(oldValue)
	newJSON := serializeValue(newValue)
	if oldJSON == newJSON {
		return FieldChange{}, false
	}
	return FieldChange{Field: field, OldValue: oldJSON, NewValue: newJSON}, true
}

func serializeValue(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}

func copyAttributes(attributes map[string]any) map[string]any {
	copied := make(map[string]any, len(attributes))
	for k, v := range attributes {
		copied[k] = v
	}
	return copied
}
