package db

import (
	"context"
	"time"

	"github.com/ukydev/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// VehicleCollection defines the interface for vehicle data operations.
// Documents live embedded in the vehicle record, so appending to a history is
// a single-document write.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle models.Vehicle) error
	FindVehicles(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (VehicleCursor, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	FindVehicleByRegistration(ctx context.Context, registration string) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, id string, vehicle models.Vehicle) error
	DeleteVehicle(ctx context.Context, id string) error
	AppendDocument(ctx context.Context, vehicleID string, doc models.Document) error
}

// VehicleCursor defines the interface for vehicle cursor operations.
type VehicleCursor interface {
	All(ctx context.Context, out interface{}) error
	Close(ctx context.Context) error
}

// AlertCollection defines the interface for alert data operations.
type AlertCollection interface {
	InsertAlert(ctx context.Context, alert models.Alert) error
	FindAlerts(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (AlertCursor, error)
	FindAlertsByVehicle(ctx context.Context, vehicleID primitive.ObjectID) ([]models.Alert, error)
	UpdateAlertDue(ctx context.Context, id primitive.ObjectID, dueDate time.Time, message string) error
	DeleteAlerts(ctx context.Context, ids []primitive.ObjectID) error
	DeleteAlertsByVehicle(ctx context.Context, vehicleID primitive.ObjectID) error
	MarkAlertRead(ctx context.Context, id string) error
	CountUnread(ctx context.Context) (int64, error)
}

// AlertCursor defines the interface for alert cursor operations.
type AlertCursor interface {
	All(ctx context.Context, out interface{}) error
	Close(ctx context.Context) error
}

// UserCollection defines the interface for fleet account operations.
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, user models.User) error
	UpdateLastLogin(ctx context.Context, id string) error
}
