package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/extraction"
	"github.com/ukydev/fleet-compliance/internal/gateway"
	"github.com/ukydev/fleet-compliance/internal/models"
	"github.com/ukydev/fleet-compliance/internal/storage"
)

// maxUploadBytes bounds document uploads (scans and photos, not archives).
const maxUploadBytes = 20 << 20

// DocumentHandler handles document upload, extraction and confirmation
type DocumentHandler struct {
	gateway *gateway.Gateway
	agent   extraction.Agent
	store   storage.Store
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(gw *gateway.Gateway, agent extraction.Agent, store storage.Store) *DocumentHandler {
	return &DocumentHandler{gateway: gw, agent: agent, store: store}
}

// ExtractResponse is the agent's proposal for human review, plus the stored
// file reference the confirmation step will attach to the document.
type ExtractResponse struct {
	FileName      string                      `json:"file_name"`
	FileObjectKey string                      `json:"file_object_key"`
	AgentFields   extraction.AgentFields      `json:"agent_fields"`
	Proposal      extraction.ReconciledFields `json:"proposal"`
}

// extractionFailure is the distinguished failure outcome: the client falls
// back to the manual entry path instead of treating nulls as a success.
type extractionFailure struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// Extract accepts a multipart upload, stores the file, and runs the
// extraction agent. Agent failure is reported as a distinguished outcome and
// nothing is persisted to the vehicle.
func (h *DocumentHandler) Extract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	vehicleID := r.PathValue("id")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		http.Error(w, "Missing document file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	objectKey, err := h.store.Save(r.Context(), vehicleID, header.Filename, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		log.WithError(err).Error("failed to store uploaded document")
		http.Error(w, "Failed to store document", http.StatusInternalServerError)
		return
	}

	fields, err := h.agent.Extract(r.Context(), data, contentType)
	if err != nil {
		writeExtractionFailure(w, err)
		return
	}

	proposal, err := extraction.Reconcile(fields, nil)
	if err != nil {
		writeExtractionFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ExtractResponse{
		FileName:      header.Filename,
		FileObjectKey: objectKey,
		AgentFields:   fields,
		Proposal:      proposal,
	})
}

// ConfirmRequest carries the reviewed extraction back for persistence. The
// agent fields are re-reconciled server-side with the human verdict; any
// explicitly edited field overrides the operative value. A request with empty
// agent fields and overrides set is the fully manual entry path.
type ConfirmRequest struct {
	FileName      string                       `json:"file_name"`
	FileObjectKey string                       `json:"file_object_key"`
	AgentFields   extraction.AgentFields       `json:"agent_fields"`
	Verification  *extraction.DateVerification `json:"verification,omitempty"`

	Type               models.DocumentType `json:"type,omitempty"`
	CustomTypeName     string              `json:"custom_type_name,omitempty"`
	PolicyNumber       string              `json:"policy_number,omitempty"`
	RegistrationNumber string              `json:"registration_number,omitempty"`
	Make               string              `json:"make,omitempty"`
	Model              string              `json:"model,omitempty"`
	VehicleType        string              `json:"vehicle_type,omitempty"`
	StartDate          string              `json:"start_date,omitempty"`
	ExpiryDate         string              `json:"expiry_date,omitempty"`
}

// Confirm persists the reviewed document through the mutation gateway.
func (h *DocumentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	vehicleID := r.PathValue("id")

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	fields, err := extraction.Reconcile(req.AgentFields, req.Verification)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := applyOverrides(&fields, req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc, plan, err := h.gateway.AddDocument(r.Context(), vehicleID, fields, req.FileName, req.FileObjectKey)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Vehicle not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"document":        doc,
		"alerts_created":  len(plan.Create),
		"alerts_updated":  len(plan.Update),
		"alerts_resolved": len(plan.Resolve),
	})
}

// applyOverrides lets the human's explicit edits replace operative values.
// Confirmed values are only ever changed by this explicit user action.
func applyOverrides(fields *extraction.ReconciledFields, req ConfirmRequest) error {
	if req.Type != "" {
		if !models.IsValidDocumentType(req.Type) {
			return errors.New("invalid document type")
		}
		fields.Type = req.Type
		fields.CustomTypeName = req.CustomTypeName
	}
	if req.PolicyNumber != "" {
		fields.PolicyNumber = req.PolicyNumber
	}
	if req.RegistrationNumber != "" {
		fields.RegistrationNumber = req.RegistrationNumber
	}
	if req.Make != "" {
		fields.Make = req.Make
	}
	if req.Model != "" {
		fields.Model = req.Model
	}
	if req.VehicleType != "" {
		fields.VehicleType = req.VehicleType
	}
	if req.StartDate != "" {
		t, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return errors.New("start_date must be YYYY-MM-DD")
		}
		fields.StartDate = &t
	}
	if req.ExpiryDate != "" {
		t, err := time.Parse("2006-01-02", req.ExpiryDate)
		if err != nil {
			return errors.New("expiry_date must be YYYY-MM-DD")
		}
		fields.ExpiryDate = &t
	}
	return nil
}

func writeExtractionFailure(w http.ResponseWriter, err error) {
	reason := "agent_failed"
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, extraction.ErrAgentTimeout):
		reason = "agent_timeout"
		status = http.StatusGatewayTimeout
	case errors.Is(err, extraction.ErrAgentUnavailable):
		reason = "agent_unavailable"
	case errors.Is(err, extraction.ErrInvalidPayload):
		reason = "agent_invalid_payload"
	}
	log.WithError(err).Warn("document extraction failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(extractionFailure{Error: "extraction failed", Reason: reason})
}
