package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DocumentType enumerates the regulatory document categories tracked per vehicle.
type DocumentType string

const (
	DocTypeInsurance        DocumentType = "Insurance"
	DocTypeFitness          DocumentType = "Fitness"
	DocTypePUC              DocumentType = "PUC"
	DocTypeAITP             DocumentType = "AITP"
	DocTypeRegistrationCard DocumentType = "RegistrationCard"
	DocTypeOther            DocumentType = "Other"
)

// IsValidDocumentType checks if a document type is one of the enumerated values.
func IsValidDocumentType(t DocumentType) bool {
	switch t {
	case DocTypeInsurance, DocTypeFitness, DocTypePUC, DocTypeAITP, DocTypeRegistrationCard, DocTypeOther:
		return true
	default:
		return false
	}
}

// TypeKey identifies one document series on a vehicle. CustomName is only
// meaningful for the Other type; two Other series with different custom names
// are distinct, and an unnamed Other is its own series.
type TypeKey struct {
	Type       DocumentType `bson:"type" json:"type"`
	CustomName string       `bson:"custom_name,omitempty" json:"custom_name,omitempty"`
}

// Proposal is a single agent-extracted field value with confidence in [0,1].
// A nil Value means the agent found nothing; Confidence is nil in that case.
type Proposal struct {
	Value      *string  `bson:"value,omitempty" json:"value,omitempty"`
	Confidence *float64 `bson:"confidence,omitempty" json:"confidence,omitempty"`
}

// Provenance retains the original agent proposals for every extractable field
// so agent accuracy can be audited later. These are never used as operative
// values; the confirmed fields on Document are.
type Provenance struct {
	RegistrationNumber Proposal `bson:"registration_number,omitempty" json:"registration_number,omitempty"`
	PolicyNumber       Proposal `bson:"policy_number,omitempty" json:"policy_number,omitempty"`
	StartDate          Proposal `bson:"start_date,omitempty" json:"start_date,omitempty"`
	ExpiryDate         Proposal `bson:"expiry_date,omitempty" json:"expiry_date,omitempty"`
	Make               Proposal `bson:"make,omitempty" json:"make,omitempty"`
	Model              Proposal `bson:"model,omitempty" json:"model,omitempty"`
	VehicleType        Proposal `bson:"vehicle_type,omitempty" json:"vehicle_type,omitempty"`
	TypeSuggestion     Proposal `bson:"type_suggestion,omitempty" json:"type_suggestion,omitempty"`
}

// Document is one upload event in a vehicle's compliance history. Documents
// form an append-only history per series; the latest upload wins on read.
type Document struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type           DocumentType       `bson:"type" json:"type"`
	CustomTypeName string             `bson:"custom_type_name,omitempty" json:"custom_type_name,omitempty"`
	PolicyNumber   string             `bson:"policy_number,omitempty" json:"policy_number,omitempty"`
	StartDate      *time.Time         `bson:"start_date,omitempty" json:"start_date,omitempty"`
	ExpiryDate     *time.Time         `bson:"expiry_date,omitempty" json:"expiry_date,omitempty"`
	UploadedAt     time.Time          `bson:"uploaded_at" json:"uploaded_at"`
	FileName       string             `bson:"file_name,omitempty" json:"file_name,omitempty"`
	FileObjectKey  string             `bson:"file_object_key,omitempty" json:"file_object_key,omitempty"`

	// Confirmed values read off the document itself. They describe what the
	// paper says, which may disagree with the vehicle record.
	RegistrationNumber string `bson:"registration_number,omitempty" json:"registration_number,omitempty"`
	Make               string `bson:"make,omitempty" json:"make,omitempty"`
	Model              string `bson:"model,omitempty" json:"model,omitempty"`
	VehicleType        string `bson:"vehicle_type,omitempty" json:"vehicle_type,omitempty"`

	Provenance Provenance `bson:"provenance,omitempty" json:"provenance,omitempty"`
}

// SeriesKey returns the series identity of the document. The custom name only
// participates for Other documents.
func (d *Document) SeriesKey() TypeKey {
	key := TypeKey{Type: d.Type}
	if d.Type == DocTypeOther {
		key.CustomName = d.CustomTypeName
	}
	return key
}
