package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/extraction"
	"github.com/ukydev/fleet-compliance/internal/middleware"
	"github.com/ukydev/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// In-memory collections backing handler tests, so no Mongo is needed.

type memVehicleCursor struct{ vehicles []models.Vehicle }

func (c *memVehicleCursor) All(_ context.Context, out interface{}) error {
	*out.(*[]models.Vehicle) = append([]models.Vehicle(nil), c.vehicles...)
	return nil
}
func (c *memVehicleCursor) Close(context.Context) error { return nil }

type memVehicles struct {
	byID map[string]*models.Vehicle
}

func newMemVehicles() *memVehicles {
	return &memVehicles{byID: make(map[string]*models.Vehicle)}
}

func (f *memVehicles) InsertVehicle(_ context.Context, v models.Vehicle) error {
	f.byID[v.ID.Hex()] = &v
	return nil
}

func (f *memVehicles) FindVehicles(context.Context, interface{}, ...*options.FindOptions) (db.VehicleCursor, error) {
	var all []models.Vehicle
	for _, v := range f.byID {
		all = append(all, *v)
	}
	return &memVehicleCursor{vehicles: all}, nil
}

func (f *memVehicles) FindVehicleByID(_ context.Context, id string) (*models.Vehicle, error) {
	v, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("vehicle %s: %w", id, db.ErrNotFound)
	}
	out := *v
	out.Documents = append([]models.Document(nil), v.Documents...)
	return &out, nil
}

func (f *memVehicles) FindVehicleByRegistration(_ context.Context, reg string) (*models.Vehicle, error) {
	for _, v := range f.byID {
		if v.RegistrationNumber == models.NormalizeRegistration(reg) {
			out := *v
			return &out, nil
		}
	}
	return nil, fmt.Errorf("vehicle %s: %w", reg, db.ErrNotFound)
}

func (f *memVehicles) UpdateVehicle(_ context.Context, id string, v models.Vehicle) error {
	if _, ok := f.byID[id]; !ok {
		return db.ErrNotFound
	}
	f.byID[id] = &v
	return nil
}

func (f *memVehicles) DeleteVehicle(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *memVehicles) AppendDocument(_ context.Context, id string, doc models.Document) error {
	v, ok := f.byID[id]
	if !ok {
		return db.ErrNotFound
	}
	v.Documents = append(v.Documents, doc)
	return nil
}

type memAlertCursor struct{ alerts []models.Alert }

func (c *memAlertCursor) All(_ context.Context, out interface{}) error {
	*out.(*[]models.Alert) = append([]models.Alert(nil), c.alerts...)
	return nil
}
func (c *memAlertCursor) Close(context.Context) error { return nil }

type memAlerts struct {
	byID map[primitive.ObjectID]*models.Alert
}

func newMemAlerts() *memAlerts {
	return &memAlerts{byID: make(map[primitive.ObjectID]*models.Alert)}
}

func (f *memAlerts) InsertAlert(_ context.Context, a models.Alert) error {
	f.byID[a.ID] = &a
	return nil
}

func (f *memAlerts) FindAlerts(context.Context, interface{}, ...*options.FindOptions) (db.AlertCursor, error) {
	var all []models.Alert
	for _, a := range f.byID {
		all = append(all, *a)
	}
	return &memAlertCursor{alerts: all}, nil
}

func (f *memAlerts) FindAlertsByVehicle(_ context.Context, vehicleID primitive.ObjectID) ([]models.Alert, error) {
	var out []models.Alert
	for _, a := range f.byID {
		if a.VehicleID == vehicleID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *memAlerts) UpdateAlertDue(_ context.Context, id primitive.ObjectID, due time.Time, msg string) error {
	a, ok := f.byID[id]
	if !ok || a.IsRead {
		return db.ErrNotFound
	}
	a.DueDate = due
	a.Message = msg
	return nil
}

func (f *memAlerts) DeleteAlerts(_ context.Context, ids []primitive.ObjectID) error {
	for _, id := range ids {
		delete(f.byID, id)
	}
	return nil
}

func (f *memAlerts) DeleteAlertsByVehicle(_ context.Context, vehicleID primitive.ObjectID) error {
	for id, a := range f.byID {
		if a.VehicleID == vehicleID {
			delete(f.byID, id)
		}
	}
	return nil
}

func (f *memAlerts) MarkAlertRead(_ context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	a, ok := f.byID[objectID]
	if !ok {
		return db.ErrNotFound
	}
	a.IsRead = true
	return nil
}

func (f *memAlerts) CountUnread(context.Context) (int64, error) {
	var n int64
	for _, a := range f.byID {
		if !a.IsRead {
			n++
		}
	}
	return n, nil
}

// MockAgent is a mock implementation of extraction.Agent
type MockAgent struct {
	mock.Mock
}

func (m *MockAgent) Extract(ctx context.Context, documentBytes []byte, mimeType string) (extraction.AgentFields, error) {
	args := m.Called(ctx, documentBytes, mimeType)
	return args.Get(0).(extraction.AgentFields), args.Error(1)
}

// withClaims injects authenticated user claims the way the middleware does.
func withClaims(r *http.Request, role models.Role) *http.Request {
	claims := &models.Claims{
		UserID:   primitive.NewObjectID().Hex(),
		Username: "tester",
		Role:     role,
	}
	ctx := context.WithValue(r.Context(), middleware.UserContextKey, claims)
	return r.WithContext(ctx)
}
