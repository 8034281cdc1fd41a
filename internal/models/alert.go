package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Alert is a compliance warning for one document series on one vehicle.
// At most one unread alert exists per (vehicle, series) at any time; read
// alerts are immutable history.
type Alert struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehicleID      primitive.ObjectID `bson:"vehicle_id" json:"vehicle_id"`
	Type           DocumentType       `bson:"type" json:"type"`
	CustomTypeName string             `bson:"custom_type_name,omitempty" json:"custom_type_name,omitempty"`
	Message        string             `bson:"message" json:"message"`
	DueDate        time.Time          `bson:"due_date" json:"due_date"`
	IsRead         bool               `bson:"is_read" json:"is_read"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	// Denormalized so alert lists render without a vehicle lookup.
	VehicleRegistration string `bson:"vehicle_registration" json:"vehicle_registration"`
}

// SeriesKey returns the document series this alert tracks.
func (a *Alert) SeriesKey() TypeKey {
	key := TypeKey{Type: a.Type}
	if a.Type == DocTypeOther {
		key.CustomName = a.CustomTypeName
	}
	return key
}
