package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CIClass is the closed enumeration of configuration item classes.
// The class is fixed at creation and drives the CI code prefix.
type CIClass string

const (
	CIClassHardware  CIClass = "HARDWARE"
	CIClassSoftware  CIClass = "SOFTWARE"
	CIClassService   CIClass = "SERVICE"
	CIClassDocument  CIClass = "DOCUMENT"
	CIClassNetwork   CIClass = "NETWORK"
	CIClassCloud     CIClass = "CLOUD"
	CIClassContainer CIClass = "CONTAINER"
	CIClassDatabase  CIClass = "DATABASE"
	CIClassVirtual   CIClass = "VIRTUAL"
)

var ciClassPrefixes = map[CIClass]string{
	CIClassHardware:  "HW",
	CIClassSoftware:  "SW",
	CIClassService:   "SVC",
	CIClassDocument:  "DOC",
	CIClassNetwork:   "NET",
	CIClassCloud:     "CLD",
	CIClassContainer: "CTR",
	CIClassDatabase:  "DB",
	CIClassVirtual:   "VM",
}

// Prefix returns the CI code prefix for the class (e.g. HARDWARE -> HW).
func (c CIClass) Prefix() (string, error) {
	prefix, ok := ciClassPrefixes[c]
	if !ok {
		return "", fmt.Errorf("unknown CI class %q", c)
	}
	return prefix, nil
}

// Valid reports whether the class is a known enumeration value.
func (c CIClass) Valid() bool {
	_, ok := ciClassPrefixes[c]
	return ok
}

// FormatCICode renders a class prefix and sequence number as a CI code,
// zero-padding the sequence to five digits (e.g. HW-00042).
func FormatCICode(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%05d", prefix, seq)
}

// CIStatus is the lifecycle status of a configuration item.
// Disposed is the terminal soft-delete state.
type CIStatus string

const (
	CIStatusPlanned     CIStatus = "PLANNED"
	CIStatusOrdered     CIStatus = "ORDERED"
	CIStatusReceived    CIStatus = "RECEIVED"
	CIStatusInStock     CIStatus = "IN_STOCK"
	CIStatusDeployed    CIStatus = "DEPLOYED"
	CIStatusActive      CIStatus = "ACTIVE"
	CIStatusMaintenance CIStatus = "MAINTENANCE"
	CIStatusRetired     CIStatus = "RETIRED"
	CIStatusDisposed    CIStatus = "DISPOSED"
	CIStatusMissing     CIStatus = "MISSING"
)

// CICriticality ranks the business impact of a configuration item.
type CICriticality string

const (
	CICriticalityCritical CICriticality = "CRITICAL"
	CICriticalityHigh     CICriticality = "HIGH"
	CICriticalityMedium   CICriticality = "MEDIUM"
	CICriticalityLow      CICriticality = "LOW"
	CICriticalityNone     CICriticality = "NONE"
)

// ConfigurationItem is a record representing a managed asset or service.
type ConfigurationItem struct {
	ID               uuid.UUID      `json:"id"`
	CICode           string         `json:"ci_code"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	Class            CIClass        `json:"ci_class"`
	CIType           string         `json:"ci_type,omitempty"`
	Status           CIStatus       `json:"status"`
	Criticality      CICriticality  `json:"criticality"`
	Environment      string         `json:"environment,omitempty"`
	Location         string         `json:"location,omitempty"`
	Owner            string         `json:"owner,omitempty"`
	SupportGroup     string         `json:"support_group,omitempty"`
	Attributes       map[string]any `json:"attributes,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	DecommissionDate *time.Time     `json:"decommission_date,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	CreatedBy        string         `json:"created_by"`
	UpdatedBy        string         `json:"updated_by"`
}

// NewConfigurationItem builds a CI with defaulted status and criticality.
// The CI code is assigned later by the store.
func NewConfigurationItem(class CIClass, name, actor string) ConfigurationItem {
	now := time.Now().UTC()
	return ConfigurationItem{
		ID:          uuid.New(),
		Name:        name,
		Class:       class,
		Status:      CIStatusActive,
		Criticality: CICriticalityMedium,
		Attributes:  map[string]any{},
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   actor,
		UpdatedBy:   actor,
	}
}

// Disposed reports whether the CI is in the terminal soft-delete state.
func (ci ConfigurationItem) Disposed() bool {
	return ci.Status == CIStatusDisposed
}

// Snapshot serializes the full CI as JSON, used as the new_value of a
// Create history entry.
func (ci ConfigurationItem) Snapshot() (string, error) {
	data, err := json.Marshal(ci)
	if err != nil {
		return "", fmt.Errorf("failed to snapshot CI %s: %w", ci.ID, err)
	}
	return string(data), nil
}

// GetAttributesAsJSONB marshals the open attribute map for storage.
func (ci *ConfigurationItem) GetAttributesAsJSONB() (json.RawMessage, error) {
	if ci.Attributes == nil {
		ci.Attributes = make(map[string]any)
	}
	return json.Marshal(ci.Attributes)
}

// FromJSONBAttributes decodes the stored attribute map.
func FromJSONBAttributes(attributesJSON json.RawMessage) (map[string]any, error) {
	if len(attributesJSON) == 0 {
		return map[string]any{}, nil
	}
	var attributes map[string]any
	err := json.Unmarshal(attributesJSON, &attributes)
	return attributes, err
}
