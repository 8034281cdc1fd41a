package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/gateway"
)

// AlertHandler handles alert listing and acknowledgement
type AlertHandler struct {
	gateway *gateway.Gateway
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(gw *gateway.Gateway) *AlertHandler {
	return &AlertHandler{gateway: gw}
}

// List returns all alerts, re-synthesized first so due dates are never stale
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	alerts, err := h.gateway.ListAlerts(r.Context())
	if err != nil {
		log.WithError(err).Error("failed to list alerts")
		http.Error(w, "Failed to list alerts", http.StatusInternalServerError)
		return
	}

	// Optional filter, e.g. ?unread=true
	if r.URL.Query().Get("unread") == "true" {
		filtered := alerts[:0]
		for _, a := range alerts {
			if !a.IsRead {
				filtered = append(filtered, a)
			}
		}
		alerts = filtered
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alerts)
}

// UnreadCount returns the badge counter
func (h *AlertHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	count, err := h.gateway.UnreadCount(r.Context())
	if err != nil {
		log.WithError(err).Error("failed to count unread alerts")
		http.Error(w, "Failed to count alerts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"unread": count})
}

// MarkRead acknowledges an alert; read alerts become immutable history
func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.gateway.MarkAlertRead(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Alert not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Alert marked as read"})
}
