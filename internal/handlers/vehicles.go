package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-compliance/internal/compliance"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/gateway"
	"github.com/ukydev/fleet-compliance/internal/middleware"
	"github.com/ukydev/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VehicleHandler handles vehicle CRUD and status requests
type VehicleHandler struct {
	gateway     *gateway.Gateway
	vehicles    db.VehicleCollection
	warningDays int
	now         func() time.Time
}

// VehicleOption configures a VehicleHandler.
type VehicleOption func(*VehicleHandler)

// WithVehicleClock overrides the clock compliance statuses are derived from.
func WithVehicleClock(now func() time.Time) VehicleOption {
	return func(h *VehicleHandler) { h.now = now }
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(gw *gateway.Gateway, vehicles db.VehicleCollection, warningDays int, opts ...VehicleOption) *VehicleHandler {
	h := &VehicleHandler{gateway: gw, vehicles: vehicles, warningDays: warningDays, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CreateVehicleRequest is the payload for vehicle registration
type CreateVehicleRequest struct {
	RegistrationNumber string `json:"registration_number"`
	Type               string `json:"type"`
	Make               string `json:"make"`
	Model              string `json:"model"`
}

// VehicleResponse is a vehicle with its derived compliance badge
type VehicleResponse struct {
	Vehicle models.Vehicle                 `json:"vehicle"`
	Status  compliance.VehicleStatusResult `json:"status"`
	Series  []SeriesStatus                 `json:"series,omitempty"`
}

// SeriesStatus is the resolved state of one document series
type SeriesStatus struct {
	Key    models.TypeKey    `json:"key"`
	Latest *models.Document  `json:"latest,omitempty"`
	Status compliance.Status `json:"status"`
}

// Create handles vehicle registration
func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}
	ownerID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusUnauthorized)
		return
	}

	vehicle, err := h.gateway.CreateVehicle(r.Context(), models.Vehicle{
		OwnerID:            ownerID,
		RegistrationNumber: req.RegistrationNumber,
		Type:               req.Type,
		Make:               req.Make,
		Model:              req.Model,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(vehicle)
}

// List returns all vehicles with their compliance badges
func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cursor, err := h.vehicles.FindVehicles(r.Context(), bson.M{})
	if err != nil {
		log.WithError(err).Error("failed to list vehicles")
		http.Error(w, "Failed to list vehicles", http.StatusInternalServerError)
		return
	}
	defer cursor.Close(r.Context())

	var vehicles []models.Vehicle
	if err := cursor.All(r.Context(), &vehicles); err != nil {
		log.WithError(err).Error("failed to decode vehicles")
		http.Error(w, "Failed to list vehicles", http.StatusInternalServerError)
		return
	}

	now := h.now()
	responses := make([]VehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		responses = append(responses, VehicleResponse{
			Vehicle: v,
			Status:  compliance.ResolveVehicleStatus(v, now, h.warningDays),
		})
	}

	// Optional badge filter, e.g. ?status=overdue
	if want := r.URL.Query().Get("status"); want != "" {
		filtered := responses[:0]
		for _, resp := range responses {
			if string(resp.Status.Status) == want {
				filtered = append(filtered, resp)
			}
		}
		responses = filtered
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// Get returns one vehicle with badge and per-series breakdown
func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	vehicle, err := h.vehicles.FindVehicleByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Vehicle not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load vehicle", http.StatusInternalServerError)
		return
	}

	now := h.now()
	resp := VehicleResponse{
		Vehicle: *vehicle,
		Status:  compliance.ResolveVehicleStatus(*vehicle, now, h.warningDays),
	}
	for _, key := range trackedSeries(vehicle.Documents) {
		latest := compliance.LatestByKey(vehicle.Documents, key)
		status := compliance.StatusMissing
		if latest != nil {
			status = compliance.ComputeStatus(latest.ExpiryDate, now, h.warningDays)
		}
		resp.Series = append(resp.Series, SeriesStatus{Key: key, Latest: latest, Status: status})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// UpdateVehicleRequest is the payload for vehicle edits. All fields are
// optional; blanks leave the current value in place.
type UpdateVehicleRequest struct {
	RegistrationNumber string `json:"registration_number"`
	Type               string `json:"type"`
	Make               string `json:"make"`
	Model              string `json:"model"`
}

// Update edits a vehicle's descriptive fields
func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req UpdateVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	vehicle, err := h.gateway.UpdateVehicle(r.Context(), r.PathValue("id"), gateway.VehicleUpdate{
		RegistrationNumber: req.RegistrationNumber,
		Type:               req.Type,
		Make:               req.Make,
		Model:              req.Model,
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Vehicle not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(vehicle)
}

// Delete removes a vehicle and cascades its alerts
func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.gateway.DeleteVehicle(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Vehicle not found", http.StatusNotFound)
			return
		}
		log.WithError(err).Error("failed to delete vehicle")
		http.Error(w, "Failed to delete vehicle", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// trackedSeries lists the essential types plus any extra series present.
func trackedSeries(docs []models.Document) []models.TypeKey {
	seen := make(map[models.TypeKey]bool)
	var keys []models.TypeKey
	for _, t := range compliance.EssentialTypes {
		key := models.TypeKey{Type: t}
		seen[key] = true
		keys = append(keys, key)
	}
	for _, key := range compliance.SeriesKeys(docs) {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}
