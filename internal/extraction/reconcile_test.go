package extraction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-compliance/internal/models"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
func proposal(v string, c float64) models.Proposal {
	return models.Proposal{Value: strPtr(v), Confidence: floatPtr(c)}
}

func TestReconcile_InvalidCalendarDateCoercedToAbsent(t *testing.T) {
	agent := AgentFields{
		ExpiryDate: proposal("2024-13-40", 0.9),
	}

	got, err := Reconcile(agent, nil)
	require.NoError(t, err)
	assert.Nil(t, got.ExpiryDate)
	assert.Nil(t, got.Provenance.ExpiryDate.Value)
	assert.Nil(t, got.Provenance.ExpiryDate.Confidence)
}

func TestReconcile_MalformedDateFormats(t *testing.T) {
	for _, bad := range []string{"01/02/2024", "2024-2-3", "yesterday", "2024-02-30", "2023-04-31"} {
		agent := AgentFields{StartDate: proposal(bad, 0.8)}
		got, err := Reconcile(agent, nil)
		require.NoError(t, err, bad)
		assert.Nil(t, got.StartDate, bad)
		assert.Nil(t, got.Provenance.StartDate.Value, bad)
	}
}

func TestReconcile_ValidFieldsFlowThrough(t *testing.T) {
	agent := AgentFields{
		RegistrationNumber:     proposal("KA01AB1234", 0.97),
		PolicyNumber:           proposal("POL-8891", 0.88),
		StartDate:              proposal("2024-01-01", 0.9),
		ExpiryDate:             proposal("2025-01-01", 0.92),
		Make:                   proposal("Tata", 0.8),
		Model:                  proposal("Ace", 0.75),
		VehicleType:            proposal("truck", 0.7),
		DocumentTypeSuggestion: proposal("Insurance", 0.95),
	}

	got, err := Reconcile(agent, nil)
	require.NoError(t, err)
	assert.Equal(t, models.DocTypeInsurance, got.Type)
	assert.Empty(t, got.CustomTypeName)
	assert.Equal(t, "KA01AB1234", got.RegistrationNumber)
	assert.Equal(t, "POL-8891", got.PolicyNumber)
	require.NotNil(t, got.ExpiryDate)
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), *got.ExpiryDate)
	require.NotNil(t, got.StartDate)
	assert.Equal(t, "Tata", got.Make)

	// Provenance mirrors the proposal.
	require.NotNil(t, got.Provenance.ExpiryDate.Confidence)
	assert.InDelta(t, 0.92, *got.Provenance.ExpiryDate.Confidence, 1e-9)
}

func TestReconcile_AgentFoundNothing(t *testing.T) {
	got, err := Reconcile(AgentFields{}, nil)
	require.NoError(t, err)
	assert.Nil(t, got.ExpiryDate)
	assert.Nil(t, got.StartDate)
	assert.Empty(t, got.RegistrationNumber)
	// No type suggestion at all still yields a relabelable Other.
	assert.Equal(t, models.DocTypeOther, got.Type)
	assert.Equal(t, UnclassifiedTypeName, got.CustomTypeName)
}

func TestReconcile_UnknownTypeStoredAsOtherWithPlaceholder(t *testing.T) {
	agent := AgentFields{DocumentTypeSuggestion: proposal("Unknown", 0.4)}

	got, err := Reconcile(agent, nil)
	require.NoError(t, err)
	assert.Equal(t, models.DocTypeOther, got.Type)
	assert.Equal(t, UnclassifiedTypeName, got.CustomTypeName)
	assert.NotEmpty(t, got.CustomTypeName)
}

func TestReconcile_FreeTextTypeGuessRetainedAsCustomName(t *testing.T) {
	agent := AgentFields{DocumentTypeSuggestion: proposal("Road Tax Receipt", 0.6)}

	got, err := Reconcile(agent, nil)
	require.NoError(t, err)
	assert.Equal(t, models.DocTypeOther, got.Type)
	assert.Equal(t, "Road Tax Receipt", got.CustomTypeName)
}

func TestReconcile_TypeAliases(t *testing.T) {
	tests := map[string]models.DocumentType{
		"insurance":         models.DocTypeInsurance,
		"Fitness":           models.DocTypeFitness,
		"puc":               models.DocTypePUC,
		"pollution":         models.DocTypePUC,
		"AITP":              models.DocTypeAITP,
		"rc":                models.DocTypeRegistrationCard,
		"Registration Card": models.DocTypeRegistrationCard,
	}
	for raw, want := range tests {
		got, err := Reconcile(AgentFields{DocumentTypeSuggestion: proposal(raw, 0.9)}, nil)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got.Type, raw)
	}
}

func TestReconcile_HumanCorrectionSupersedesAgentDate(t *testing.T) {
	agent := AgentFields{ExpiryDate: proposal("2024-06-01", 0.9)}
	human := &DateVerification{
		IsCorrect:     false,
		CorrectedDate: strPtr("2024-09-15"),
		Note:          "agent misread the renewal stamp",
	}

	got, err := Reconcile(agent, human)
	require.NoError(t, err)
	require.NotNil(t, got.ExpiryDate)
	assert.Equal(t, time.Date(2024, time.September, 15, 0, 0, 0, 0, time.UTC), *got.ExpiryDate)

	// The agent's original proposal survives as provenance only.
	require.NotNil(t, got.Provenance.ExpiryDate.Value)
	assert.Equal(t, "2024-06-01", *got.Provenance.ExpiryDate.Value)
	require.NotNil(t, got.Provenance.ExpiryDate.Confidence)
	assert.InDelta(t, 0.9, *got.Provenance.ExpiryDate.Confidence, 1e-9)
}

func TestReconcile_HumanConfirmationKeepsAgentDate(t *testing.T) {
	agent := AgentFields{ExpiryDate: proposal("2024-06-01", 0.9)}
	human := &DateVerification{IsCorrect: true}

	got, err := Reconcile(agent, human)
	require.NoError(t, err)
	require.NotNil(t, got.ExpiryDate)
	assert.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), *got.ExpiryDate)
}

func TestReconcile_CorrectedDateRequired(t *testing.T) {
	agent := AgentFields{ExpiryDate: proposal("2024-06-01", 0.9)}

	_, err := Reconcile(agent, &DateVerification{IsCorrect: false})
	assert.ErrorIs(t, err, ErrCorrectedDateRequired)

	_, err = Reconcile(agent, &DateVerification{IsCorrect: false, CorrectedDate: strPtr("  ")})
	assert.ErrorIs(t, err, ErrCorrectedDateRequired)

	_, err = Reconcile(agent, &DateVerification{IsCorrect: false, CorrectedDate: strPtr("not-a-date")})
	assert.Error(t, err)
}

func TestReconcile_ConfidenceHygiene(t *testing.T) {
	// A confidence with no value is dropped.
	got, err := Reconcile(AgentFields{PolicyNumber: models.Proposal{Confidence: floatPtr(0.9)}}, nil)
	require.NoError(t, err)
	assert.Nil(t, got.Provenance.PolicyNumber.Value)
	assert.Nil(t, got.Provenance.PolicyNumber.Confidence)

	// An out-of-range confidence is dropped while the value is kept.
	got, err = Reconcile(AgentFields{PolicyNumber: proposal("POL-1", 1.7)}, nil)
	require.NoError(t, err)
	require.NotNil(t, got.Provenance.PolicyNumber.Value)
	assert.Equal(t, "POL-1", *got.Provenance.PolicyNumber.Value)
	assert.Nil(t, got.Provenance.PolicyNumber.Confidence)
	assert.Equal(t, "POL-1", got.PolicyNumber)
}

func TestReconcile_WhitespaceValueIsAbsent(t *testing.T) {
	got, err := Reconcile(AgentFields{Make: proposal("   ", 0.5)}, nil)
	require.NoError(t, err)
	assert.Empty(t, got.Make)
	assert.Nil(t, got.Provenance.Make.Value)
	assert.Nil(t, got.Provenance.Make.Confidence)
}
