package model

type ValueType string

const (
	ValueTypeString ValueType = "string"
	ValueTypeReal   ValueType = "real"
)

// Signal is a measurement channel attached to exactly one asset.
type Signal struct {
	ID          string    `json:"id"`
	AssetID     string    `json:"assetId"`
	Name        string    `json:"name"`
	ValueType   ValueType `json:"valueType"`
	Description string    `json:"description,omitempty"`
}
