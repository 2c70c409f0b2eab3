package domain

// CIFilter narrows a CI search. Zero-value fields are ignored. Disposed
// CIs are excluded unless IncludeDisposed is set.
type CIFilter struct {
	Query           string          `json:"query,omitempty"`
	Class           *CIClass        `json:"ci_class,omitempty"`
	CIType          string          `json:"ci_type,omitempty"`
	Statuses        []CIStatus      `json:"status,omitempty"`
	Criticalities   []CICriticality `json:"criticality,omitempty"`
	Environment     string          `json:"environment,omitempty"`
	Location        string          `json:"location,omitempty"`
	Owner           string          `json:"owner,omitempty"`
	SupportGroup    string          `json:"support_group,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	IncludeDisposed bool            `json:"include_disposed,omitempty"`
}

// Statistics aggregates CMDB inventory counts. Disposed CIs are excluded
// from the class breakdown but appear in the status breakdown.
type Statistics struct {
	TotalCIs           int64            `json:"total_cis"`
	TotalRelationships int64            `json:"total_relationships"`
	ByClass            map[string]int64 `json:"by_class"`
	ByStatus           map[string]int64 `json:"by_status"`
}
