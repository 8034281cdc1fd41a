package extraction

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ukydev/fleet-compliance/internal/models"
)

// dateLayout is the only accepted calendar date format.
const dateLayout = "2006-01-02"

// UnclassifiedTypeName is the custom type name placeholder stored when the
// agent cannot classify the document, so the human relabel step always has a
// non-empty handle.
const UnclassifiedTypeName = "Unclassified document"

// ErrCorrectedDateRequired is returned when a verification verdict says the
// agent's date is wrong but supplies no replacement.
var ErrCorrectedDateRequired = errors.New("corrected date required when verdict is not correct")

// DateVerification is the human verdict on the agent's expiry date proposal.
type DateVerification struct {
	IsCorrect     bool    `json:"is_correct"`
	CorrectedDate *string `json:"corrected_date,omitempty"`
	Note          string  `json:"note,omitempty"`
}

// ReconciledFields is the confirmed document payload handed to the mutation
// gateway, with the full agent proposal retained as provenance for audit.
type ReconciledFields struct {
	Type               models.DocumentType `json:"type"`
	CustomTypeName     string              `json:"custom_type_name,omitempty"`
	RegistrationNumber string              `json:"registration_number,omitempty"`
	PolicyNumber       string              `json:"policy_number,omitempty"`
	StartDate          *time.Time          `json:"start_date,omitempty"`
	ExpiryDate         *time.Time          `json:"expiry_date,omitempty"`
	Make               string              `json:"make,omitempty"`
	Model              string              `json:"model,omitempty"`
	VehicleType        string              `json:"vehicle_type,omitempty"`
	Provenance         models.Provenance   `json:"provenance"`
}

// Reconcile normalizes the agent's proposal and merges the human verdict into
// the confirmed payload. Malformed agent values are coerced to absent rather
// than propagated; a corrected date from the human supersedes the agent's,
// whose proposal survives only as provenance. Blank stays blank: the pipeline
// never fabricates a confirmed value.
func Reconcile(agent AgentFields, human *DateVerification) (ReconciledFields, error) {
	prov := models.Provenance{
		RegistrationNumber: sanitize(agent.RegistrationNumber),
		PolicyNumber:       sanitize(agent.PolicyNumber),
		StartDate:          sanitizeDate(agent.StartDate),
		ExpiryDate:         sanitizeDate(agent.ExpiryDate),
		Make:               sanitize(agent.Make),
		Model:              sanitize(agent.Model),
		VehicleType:        sanitize(agent.VehicleType),
		TypeSuggestion:     sanitize(agent.DocumentTypeSuggestion),
	}

	out := ReconciledFields{
		RegistrationNumber: textValue(prov.RegistrationNumber),
		PolicyNumber:       textValue(prov.PolicyNumber),
		StartDate:          dateValue(prov.StartDate),
		ExpiryDate:         dateValue(prov.ExpiryDate),
		Make:               textValue(prov.Make),
		Model:              textValue(prov.Model),
		VehicleType:        textValue(prov.VehicleType),
		Provenance:         prov,
	}
	out.Type, out.CustomTypeName = resolveType(prov.TypeSuggestion)

	if human != nil && !human.IsCorrect {
		if human.CorrectedDate == nil || strings.TrimSpace(*human.CorrectedDate) == "" {
			return ReconciledFields{}, ErrCorrectedDateRequired
		}
		corrected, err := time.Parse(dateLayout, strings.TrimSpace(*human.CorrectedDate))
		if err != nil {
			return ReconciledFields{}, fmt.Errorf("corrected date %q is not a valid %s date", *human.CorrectedDate, dateLayout)
		}
		out.ExpiryDate = &corrected
	}

	return out, nil
}

// sanitize normalizes one proposal: an absent value may not carry a
// confidence, and a confidence outside [0,1] is dropped while a well-formed
// value is kept.
func sanitize(p models.Proposal) models.Proposal {
	if p.Value == nil || strings.TrimSpace(*p.Value) == "" {
		return models.Proposal{}
	}
	v := strings.TrimSpace(*p.Value)
	out := models.Proposal{Value: &v}
	if p.Confidence != nil && *p.Confidence >= 0 && *p.Confidence <= 1 {
		c := *p.Confidence
		out.Confidence = &c
	}
	return out
}

// sanitizeDate additionally requires a strict calendar date; a value that
// does not normalize is treated as absent, confidence included.
func sanitizeDate(p models.Proposal) models.Proposal {
	p = sanitize(p)
	if p.Value == nil {
		return models.Proposal{}
	}
	if _, err := time.Parse(dateLayout, *p.Value); err != nil {
		return models.Proposal{}
	}
	return p
}

func textValue(p models.Proposal) string {
	if p.Value == nil {
		return ""
	}
	return *p.Value
}

func dateValue(p models.Proposal) *time.Time {
	if p.Value == nil {
		return nil
	}
	t, err := time.Parse(dateLayout, *p.Value)
	if err != nil {
		return nil
	}
	return &t
}

// resolveType maps the agent's free-text type suggestion onto the enum.
// Unknown or unrecognized suggestions become Other with the guess retained as
// the custom name so the human can relabel it; Unknown is never stored.
func resolveType(suggestion models.Proposal) (models.DocumentType, string) {
	if suggestion.Value == nil {
		return models.DocTypeOther, UnclassifiedTypeName
	}
	raw := strings.TrimSpace(*suggestion.Value)
	switch strings.ToLower(raw) {
	case "insurance":
		return models.DocTypeInsurance, ""
	case "fitness":
		return models.DocTypeFitness, ""
	case "puc", "pollution":
		return models.DocTypePUC, ""
	case "aitp", "permit":
		return models.DocTypeAITP, ""
	case "registrationcard", "registration card", "rc":
		return models.DocTypeRegistrationCard, ""
	case "other":
		return models.DocTypeOther, UnclassifiedTypeName
	case "unknown", "":
		return models.DocTypeOther, UnclassifiedTypeName
	default:
		return models.DocTypeOther, raw
	}
}
