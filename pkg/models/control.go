package models

// ControlTypeMitigation marks a MITRE control that mitigates rather than detects.
const ControlTypeMitigation = "MITIGATION"

// MitreControl is one metadata row for a MITRE control id. A control id may
// map to several technique or sub-technique rows.
type MitreControl struct {
	ControlID   string `json:"controlId"`
	TechniqueID string `json:"techniqueId"`
	CIAMapping  []CIA  `json:"ciaMapping"`
	Priority    int    `json:"controlPriority"`
	Type        string `json:"controlType"`
}

// Weight is the aggregation weight of the row: priority, tripled for mitigations.
func (m MitreControl) Weight() float64 {
	typeWeight := 1
	if m.Type == ControlTypeMitigation {
		typeWeight = 3
	}
	return float64(typeWeight * m.Priority)
}

// ControlMetadata maps a control id to its metadata rows.
type ControlMetadata map[string][]MitreControl

// ControlResponse is the questionnaire score recorded for one control on an asset.
type ControlResponse struct {
	ControlID string   `json:"controlId"`
	Score     *float64 `json:"score"`
}

// NotApplicable is the response value that excludes a control from aggregation.
const NotApplicable = -1.0

// AssetControlScore is the weighted control strength of an asset per CIA
// dimension and overall. Each value is in [0, 10].
type AssetControlScore struct {
	C       float64 `json:"c"`
	I       float64 `json:"i"`
	A       float64 `json:"a"`
	Overall float64 `json:"overall"`
}

// For returns the score for one CIA dimension.
func (s AssetControlScore) For(dim CIA) float64 {
	switch dim {
	case CIAConfidentiality:
		return s.C
	case CIAIntegrity:
		return s.I
	case CIAAvailability:
		return s.A
	}
	return s.Overall
}
