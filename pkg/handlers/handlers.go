package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"crisis-escalation-service/pkg/escalation"
	"crisis-escalation-service/pkg/responders"
	"crisis-escalation-service/pkg/store"
)

type Handler struct {
	coordinator  *escalation.Coordinator
	store        store.Store
	roster       responders.Roster
	logger       *logrus.Logger
	isLeaderFunc func() bool
}

func NewHandler(coordinator *escalation.Coordinator, st store.Store, roster responders.Roster, logger *logrus.Logger, isLeaderFunc func() bool) *Handler {
	return &Handler{
		coordinator:  coordinator,
		store:        st,
		roster:       roster,
		logger:       logger,
		isLeaderFunc: isLeaderFunc,
	}
}

// Message ingests one chat message and runs the detection pipeline.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	var request struct {
		SenderID string `json:"sender_id"`
		Content  string `json:"content"`
		Type     string `json:"type,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.coordinator.HandleMessage(r.Context(), escalation.InboundMessage{
		ConversationID: conversationID,
		SenderID:       request.SenderID,
		Content:        request.Content,
		Type:           request.Type,
	})
	if err != nil {
		if errors.Is(err, escalation.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
			return
		}
		h.logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to handle message")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    result.Message,
		"assessment": result.Assessment,
		"escalation": result.Escalation,
		"reply":      result.Reply,
	})
}

// Claim is the responder-facing accept action. Conflict is a typed 409, not
// a server error.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	escalationID := mux.Vars(r)["id"]

	var request struct {
		ResponderID string `json:"responder_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := h.coordinator.Claim(r.Context(), escalationID, request.ResponderID)
	if err != nil {
		switch {
		case errors.Is(err, escalation.ErrValidation):
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "escalation not found"})
		default:
			h.logger.WithError(err).WithField("escalation_id", escalationID).Error("Claim failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	if !outcome.Accepted {
		writeJSON(w, http.StatusConflict, outcome)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	escalationID := mux.Vars(r)["id"]

	var request struct {
		ResponderID string `json:"responder_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	esc, err := h.coordinator.Resolve(r.Context(), escalationID, request.ResponderID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "escalation not found"})
		case errors.Is(err, store.ErrInvalidTransition):
			writeJSON(w, http.StatusConflict, map[string]interface{}{"error": "escalation is not claimed by this responder"})
		default:
			h.logger.WithError(err).WithField("escalation_id", escalationID).Error("Resolve failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, esc)
}

func (h *Handler) GetEscalation(w http.ResponseWriter, r *http.Request) {
	escalationID := mux.Vars(r)["id"]

	esc, err := h.store.FindEscalation(r.Context(), escalationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "escalation not found"})
			return
		}
		h.logger.WithError(err).WithField("escalation_id", escalationID).Error("Failed to read escalation")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, esc)
}

func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	escalationID := mux.Vars(r)["id"]

	entries, err := h.store.AuditTrail(r.Context(), escalationID)
	if err != nil {
		h.logger.WithError(err).WithField("escalation_id", escalationID).Error("Failed to read audit trail")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"escalation_id": escalationID,
		"entries":       entries,
	})
}

// Duty toggles a responder's on-duty status for automatic assignment.
func (h *Handler) Duty(w http.ResponseWriter, r *http.Request) {
	responderID := mux.Vars(r)["id"]

	var request struct {
		OnDuty bool `json:"on_duty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var err error
	if request.OnDuty {
		err = h.roster.GoOnDuty(r.Context(), responderID)
	} else {
		err = h.roster.GoOffDuty(r.Context(), responderID)
	}
	if err != nil {
		h.logger.WithError(err).WithField("responder_id", responderID).Error("Failed to update duty status")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"responder_id": responderID,
		"on_duty":      request.OnDuty,
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	pending, err := h.store.PendingCount(r.Context())
	if err != nil {
		http.Error(w, "Health check failed", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":              "healthy",
		"is_leader":           h.isLeaderFunc(),
		"pending_escalations": pending,
		"timestamp":           time.Now(),
	})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	pending, err := h.store.PendingCount(r.Context())
	if err != nil {
		http.Error(w, "Failed to get status", http.StatusInternalServerError)
		return
	}

	onDuty, err := h.roster.OnDutyCount(r.Context())
	if err != nil {
		http.Error(w, "Failed to get status", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"is_leader":           h.isLeaderFunc(),
		"pending_escalations": pending,
		"responders_on_duty":  onDuty,
		"timestamp":           time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
