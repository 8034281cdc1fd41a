package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vehicle represents a fleet vehicle and owns its compliance document history.
// Documents are embedded so a history append is a single-document write.
type Vehicle struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID            primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	RegistrationNumber string             `bson:"registration_number" json:"registration_number"` // unique, stored uppercased
	Type               string             `bson:"type" json:"type"`                               // "car", "truck", "bus", "two_wheeler", ...
	Make               string             `bson:"make" json:"make"`
	Model              string             `bson:"model" json:"model"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
	Documents          []Document         `bson:"documents" json:"documents"`
}

// NormalizeRegistration uppercases and trims a registration number so lookups
// are case-insensitive.
func NormalizeRegistration(reg string) string {
	return strings.ToUpper(strings.TrimSpace(reg))
}
