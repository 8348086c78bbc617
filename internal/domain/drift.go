package domain

type DriftStatus string

const (
	DriftInSync      DriftStatus = "in_sync"
	DriftDrifted     DriftStatus = "drifted"
	DriftMissing     DriftStatus = "missing"
	DriftNotRecorded DriftStatus = "not_recorded"
	DriftError       DriftStatus = "error"
)

// FieldDrift is one attribute whose live value differs from the record.
type FieldDrift struct {
	Key      string `json:"key"`
	Recorded string `json:"recorded"`
	Live     string `json:"live"`
}

// DriftReport compares one recorded resource with its live state.
type DriftReport struct {
	LogicalName string       `json:"logical_name"`
	Kind        ResourceKind `json:"kind"`
	ProviderID  string       `json:"provider_id,omitempty"`
	Status      DriftStatus  `json:"status"`
	Fields      []FieldDrift `json:"fields,omitempty"`
	Err         error        `json:"-"`
}
