package models

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestParseCIAList(t *testing.T) {
	got := ParseCIAList([]string{"c", " I ", "Availability", "X", ""})
	assert.Equal(t, []CIA{CIAConfidentiality, CIAIntegrity, CIAAvailability}, got)
	assert.Empty(t, ParseCIAList(nil))
}

func TestContainsCIA(t *testing.T) {
	m := []CIA{CIAConfidentiality, CIAAvailability}
	assert.True(t, ContainsCIA(m, CIAAvailability))
	assert.False(t, ContainsCIA(m, CIAIntegrity))
	assert.False(t, ContainsCIA(nil, CIAConfidentiality))
}

func TestSelectionValidate(t *testing.T) {
	tests := []struct {
		name    string
		sel     Selection
		wantErr bool
	}{
		{"active", Selection{Mode: SelectActive}, false},
		{"all", Selection{Mode: SelectAll}, false},
		{"ids with list", Selection{Mode: SelectIDs, AssessmentIDs: []uuid.UUID{uuid.New()}}, false},
		{"ids without list", Selection{Mode: SelectIDs}, true},
		{"unknown mode", Selection{Mode: "latest"}, true},
		{"empty mode", Selection{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidSelection))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMitreControlWeight(t *testing.T) {
	assert.Equal(t, 6.0, MitreControl{Priority: 2, Type: ControlTypeMitigation}.Weight())
	assert.Equal(t, 2.0, MitreControl{Priority: 2, Type: "DETECTION"}.Weight())
	assert.Equal(t, 0.0, MitreControl{Priority: 0, Type: ControlTypeMitigation}.Weight())
}

func TestAssetControlScoreFor(t *testing.T) {
	s := AssetControlScore{C: 1, I: 2, A: 3, Overall: 4}
	assert.Equal(t, 1.0, s.For(CIAConfidentiality))
	assert.Equal(t, 2.0, s.For(CIAIntegrity))
	assert.Equal(t, 3.0, s.For(CIAAvailability))
	assert.Equal(t, 4.0, s.For(""))
}

func TestScenarioRefBand(t *testing.T) {
	var nilRef *ScenarioRef
	assert.Nil(t, nilRef.Band(SeverityFinancial))

	fin := &SeverityBand{Category: SeverityFinancial}
	ref := &ScenarioRef{Financial: fin}
	assert.Same(t, fin, ref.Band(SeverityFinancial))
	assert.Nil(t, ref.Band(SeverityOperational))
}
