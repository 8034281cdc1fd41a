package gateway

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-compliance/internal/alerts"
	"github.com/ukydev/fleet-compliance/internal/compliance"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/extraction"
	"github.com/ukydev/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notifier receives alerts created by a write. Implemented by alerts.Notifier;
// nil disables fan-out.
type Notifier interface {
	PublishCreated(created []models.Alert)
}

// Gateway is the only place documents are created and alerts mutated. It
// serializes writes per vehicle so two concurrent uploads for the same
// vehicle cannot interleave the history append and the alert dedup check.
type Gateway struct {
	vehicles    db.VehicleCollection
	alerts      db.AlertCollection
	notifier    Notifier
	warningDays int
	now         func() time.Time

	locks [64]sync.Mutex
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithNotifier sets the alert fan-out target.
func WithNotifier(n Notifier) Option {
	return func(g *Gateway) { g.notifier = n }
}

// WithWarningWindow overrides the expiring-soon window length in days.
func WithWarningWindow(days int) Option {
	return func(g *Gateway) { g.warningDays = days }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New creates a Gateway over the vehicle and alert collections.
func New(vehicles db.VehicleCollection, alertCol db.AlertCollection, opts ...Option) *Gateway {
	g := &Gateway{
		vehicles:    vehicles,
		alerts:      alertCol,
		warningDays: compliance.DefaultWarningWindowDays,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CreateVehicle registers a vehicle after normalizing its registration number
// and checking uniqueness case-insensitively.
func (g *Gateway) CreateVehicle(ctx context.Context, v models.Vehicle) (models.Vehicle, error) {
	v.RegistrationNumber = models.NormalizeRegistration(v.RegistrationNumber)
	if v.RegistrationNumber == "" {
		return models.Vehicle{}, fmt.Errorf("registration number is required")
	}
	if _, err := g.vehicles.FindVehicleByRegistration(ctx, v.RegistrationNumber); err == nil {
		return models.Vehicle{}, fmt.Errorf("vehicle %s already exists", v.RegistrationNumber)
	}

	now := g.now()
	v.ID = primitive.NewObjectID()
	v.CreatedAt = now
	v.UpdatedAt = now
	if v.Documents == nil {
		v.Documents = []models.Document{}
	}
	if err := g.vehicles.InsertVehicle(ctx, v); err != nil {
		return models.Vehicle{}, err
	}
	return v, nil
}

// VehicleUpdate carries the editable descriptive fields of a vehicle. Empty
// fields are left unchanged.
type VehicleUpdate struct {
	RegistrationNumber string
	Type               string
	Make               string
	Model              string
}

// UpdateVehicle edits a vehicle's descriptive fields under its write lock.
// Ownership and the document history are never touched here. A registration
// change is checked for uniqueness the same way registration is.
func (g *Gateway) UpdateVehicle(ctx context.Context, id string, update VehicleUpdate) (models.Vehicle, error) {
	unlock := g.lockVehicle(id)
	defer unlock()

	vehicle, err := g.vehicles.FindVehicleByID(ctx, id)
	if err != nil {
		return models.Vehicle{}, err
	}

	if update.RegistrationNumber != "" {
		reg := models.NormalizeRegistration(update.RegistrationNumber)
		if reg != vehicle.RegistrationNumber {
			if existing, err := g.vehicles.FindVehicleByRegistration(ctx, reg); err == nil && existing.ID != vehicle.ID {
				return models.Vehicle{}, fmt.Errorf("vehicle %s already exists", reg)
			}
			vehicle.RegistrationNumber = reg
		}
	}
	if update.Type != "" {
		vehicle.Type = update.Type
	}
	if update.Make != "" {
		vehicle.Make = update.Make
	}
	if update.Model != "" {
		vehicle.Model = update.Model
	}

	if err := g.vehicles.UpdateVehicle(ctx, id, *vehicle); err != nil {
		return models.Vehicle{}, err
	}
	return *vehicle, nil
}

// AddDocument appends a confirmed document to the vehicle's history and
// brings the vehicle's alerts in line with the new state, all under the
// vehicle's write lock. The reconciled fields carry both the operative values
// and the agent provenance; nothing here ever persists a partial document.
func (g *Gateway) AddDocument(ctx context.Context, vehicleID string, fields extraction.ReconciledFields, fileName, fileObjectKey string) (models.Document, alerts.Plan, error) {
	if !models.IsValidDocumentType(fields.Type) {
		return models.Document{}, alerts.Plan{}, fmt.Errorf("invalid document type %q", fields.Type)
	}

	unlock := g.lockVehicle(vehicleID)
	defer unlock()

	doc := models.Document{
		ID:                 primitive.NewObjectID(),
		Type:               fields.Type,
		CustomTypeName:     fields.CustomTypeName,
		PolicyNumber:       fields.PolicyNumber,
		StartDate:          fields.StartDate,
		ExpiryDate:         fields.ExpiryDate,
		UploadedAt:         g.now(),
		FileName:           fileName,
		FileObjectKey:      fileObjectKey,
		RegistrationNumber: fields.RegistrationNumber,
		Make:               fields.Make,
		Model:              fields.Model,
		VehicleType:        fields.VehicleType,
		Provenance:         fields.Provenance,
	}

	if err := g.vehicles.AppendDocument(ctx, vehicleID, doc); err != nil {
		return models.Document{}, alerts.Plan{}, err
	}

	plan, err := g.syncAlerts(ctx, vehicleID)
	if err != nil {
		// The document is persisted; alert refresh failures are logged and
		// repaired on the next write or listing.
		log.WithError(err).WithField("vehicle_id", vehicleID).Error("failed to sync alerts after document append")
		return doc, alerts.Plan{}, nil
	}

	return doc, plan, nil
}

// RefreshVehicleAlerts recomputes the vehicle's alerts from its current
// document state, without changing the documents.
func (g *Gateway) RefreshVehicleAlerts(ctx context.Context, vehicleID string) (alerts.Plan, error) {
	unlock := g.lockVehicle(vehicleID)
	defer unlock()
	return g.syncAlerts(ctx, vehicleID)
}

// VehicleStatus resolves the overall badge for a vehicle at the time of the
// call.
func (g *Gateway) VehicleStatus(ctx context.Context, vehicleID string) (compliance.VehicleStatusResult, error) {
	v, err := g.vehicles.FindVehicleByID(ctx, vehicleID)
	if err != nil {
		return compliance.VehicleStatusResult{}, err
	}
	return compliance.ResolveVehicleStatus(*v, g.now(), g.warningDays), nil
}

// ListAlerts refreshes every vehicle's alerts and returns the full alert set,
// so listings never serve stale due dates.
func (g *Gateway) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	cursor, err := g.vehicles.FindVehicles(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var vehicles []models.Vehicle
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, err
	}
	cursor.Close(ctx)

	for _, v := range vehicles {
		if _, err := g.RefreshVehicleAlerts(ctx, v.ID.Hex()); err != nil {
			return nil, err
		}
	}

	alertCursor, err := g.alerts.FindAlerts(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer alertCursor.Close(ctx)

	var out []models.Alert
	if err := alertCursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnreadCount returns the badge counter. With the synthesizer's dedup
// invariant this never double-counts a series.
func (g *Gateway) UnreadCount(ctx context.Context) (int64, error) {
	return g.alerts.CountUnread(ctx)
}

// MarkAlertRead acknowledges an alert. Read alerts become immutable history.
func (g *Gateway) MarkAlertRead(ctx context.Context, alertID string) error {
	return g.alerts.MarkAlertRead(ctx, alertID)
}

// DeleteVehicle removes a vehicle, its embedded document history, and all of
// its alerts.
func (g *Gateway) DeleteVehicle(ctx context.Context, vehicleID string) error {
	unlock := g.lockVehicle(vehicleID)
	defer unlock()

	v, err := g.vehicles.FindVehicleByID(ctx, vehicleID)
	if err != nil {
		return err
	}
	if err := g.vehicles.DeleteVehicle(ctx, vehicleID); err != nil {
		return err
	}
	return g.alerts.DeleteAlertsByVehicle(ctx, v.ID)
}

// syncAlerts loads a fresh vehicle snapshot, synthesizes the alert plan, and
// applies it. Callers must hold the vehicle lock.
func (g *Gateway) syncAlerts(ctx context.Context, vehicleID string) (alerts.Plan, error) {
	v, err := g.vehicles.FindVehicleByID(ctx, vehicleID)
	if err != nil {
		return alerts.Plan{}, err
	}
	existing, err := g.alerts.FindAlertsByVehicle(ctx, v.ID)
	if err != nil {
		return alerts.Plan{}, err
	}

	plan := alerts.Synthesize(*v, existing, g.now(), g.warningDays)

	for i := range plan.Create {
		plan.Create[i].ID = primitive.NewObjectID()
		if err := g.alerts.InsertAlert(ctx, plan.Create[i]); err != nil {
			return alerts.Plan{}, err
		}
	}
	for _, a := range plan.Update {
		if err := g.alerts.UpdateAlertDue(ctx, a.ID, a.DueDate, a.Message); err != nil {
			return alerts.Plan{}, err
		}
	}
	if err := g.alerts.DeleteAlerts(ctx, plan.Resolve); err != nil {
		return alerts.Plan{}, err
	}

	if g.notifier != nil && len(plan.Create) > 0 {
		g.notifier.PublishCreated(plan.Create)
	}
	return plan, nil
}

func (g *Gateway) lockVehicle(vehicleID string) func() {
	h := fnv.New32a()
	h.Write([]byte(vehicleID))
	m := &g.locks[h.Sum32()%uint32(len(g.locks))]
	m.Lock()
	return m.Unlock
}
