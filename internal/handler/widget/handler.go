package widget

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	widgetModel "github.com/stenlabs/sten/backend/internal/model/widget"
	analysisService "github.com/stenlabs/sten/backend/internal/service/analysis"
	"github.com/stenlabs/sten/backend/internal/service/identity"
	sessionService "github.com/stenlabs/sten/backend/internal/service/session"
	"github.com/stenlabs/sten/backend/internal/store"
	"github.com/stenlabs/sten/backend/pkg/utils"
)

// Handler exposes the widget-facing HTTP surface over the session engine.
type Handler struct {
	registry   widgetModel.Registry
	sessionSvc *sessionService.Service
	analyzer   *analysisService.Service
	guests     store.GuestStore
	messages   store.MessageStore
}

// New creates the widget handler.
func New(registry widgetModel.Registry, sessionSvc *sessionService.Service, analyzer *analysisService.Service, guests store.GuestStore, messages store.MessageStore) *Handler {
	return &Handler{
		registry:   registry,
		sessionSvc: sessionSvc,
		analyzer:   analyzer,
		guests:     guests,
		messages:   messages,
	}
}

// RegisterRoutes mounts the widget routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/widget/guest/start/{publicWidgetID}", h.handleGuestStart)
	r.Post("/widget/guest/session/init/{publicWidgetID}", h.handleSessionInit)
	r.Post("/widget/chat/{publicWidgetID}/session/{sessionID}", h.handleSessionChat)
	r.Post("/widget/chat/{publicWidgetID}/{guestID}", h.handleLegacyChat)
	r.Get("/widget/sessions/{guestID}/history", h.handleSessionHistory)
	r.Get("/widget/session/{sessionID}/messages", h.handleSessionMessages)
	r.Post("/widget/session/{sessionID}/analyze", h.handleAnalyze)
	r.Get("/widget/interactions/{guestID}", h.handleGuestInteractions)
	r.Get("/widget/{publicWidgetID}/guests", h.handleWidgetGuests)
}

func (h *Handler) resolveWidget(w http.ResponseWriter, r *http.Request) (widgetModel.Ref, bool) {
	publicID := chi.URLParam(r, "publicWidgetID")
	ref, ok := h.registry.FindByPublicID(publicID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "widget not found")
		return widgetModel.Ref{}, false
	}
	return ref, true
}

// handleGuestStart identifies the visitor without opening a session.
func (h *Handler) handleGuestStart(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.resolveWidget(w, r)
	if !ok {
		return
	}

	var payload struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.sessionSvc.StartIdentification(r.Context(), identity.IdentifyRequest{
		WidgetID: ref.ID,
		Name:     payload.Name,
		Email:    payload.Email,
		Phone:    payload.Phone,
	})
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "identification failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"guestId":       result.Guest.ID,
		"widgetOwnerId": ref.OwnerUserID,
		"status":        result.Status,
	})
}

// handleSessionInit opens a session and processes its first message.
func (h *Handler) handleSessionInit(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.resolveWidget(w, r)
	if !ok {
		return
	}

	var payload struct {
		GuestID string `json:"guestId"`
		Message string `json:"message"`
		Origin  string `json:"origin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.GuestID == "" || payload.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "guestId and message are required")
		return
	}
	origin := widgetModel.SessionOrigin(payload.Origin)
	if payload.Origin == "" {
		origin = widgetModel.OriginAutoStart
	}

	sess, result, err := h.sessionSvc.BeginSession(r.Context(), sessionService.BeginRequest{
		GuestID:     payload.GuestID,
		Origin:      origin,
		Message:     payload.Message,
		OwnerUserID: ref.OwnerUserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, sessionService.ErrGuestNotFound):
			utils.RespondError(w, http.StatusNotFound, "guest not found")
		case errors.Is(err, sessionService.ErrInvalidOrigin):
			utils.RespondError(w, http.StatusBadRequest, "invalid origin")
		default:
			utils.RespondError(w, http.StatusInternalServerError, "failed to start session")
		}
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"session":  sess,
		"message":  result.GuestMessage,
		"response": result.AgentMessage,
	})
}

// handleSessionChat continues an existing session.
func (h *Handler) handleSessionChat(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.resolveWidget(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.sessionSvc.ContinueSession(r.Context(), sessionService.ContinueRequest{
		SessionID:   sessionID,
		Message:     payload.Message,
		OwnerUserID: ref.OwnerUserID,
	})
	if err != nil {
		if errors.Is(err, sessionService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

// handleLegacyChat keeps the pre-session embed contract alive: every call
// opens a fresh auto-start session around the message.
func (h *Handler) handleLegacyChat(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.resolveWidget(w, r)
	if !ok {
		return
	}
	guestID := chi.URLParam(r, "guestID")

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	sess, result, err := h.sessionSvc.ChatWithGuest(r.Context(), guestID, payload.Message, ref.OwnerUserID)
	if err != nil {
		if errors.Is(err, sessionService.ErrGuestNotFound) {
			utils.RespondError(w, http.StatusNotFound, "guest not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"session":  sess,
		"message":  result.GuestMessage,
		"response": result.AgentMessage,
	})
}

// handleSessionHistory lists a guest's sessions, newest first.
func (h *Handler) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	guestID := chi.URLParam(r, "guestID")
	sessions, err := h.sessionSvc.SessionsByGuest(r.Context(), guestID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	utils.RespondJSON(w, http.StatusOK, sessions)
}

// handleSessionMessages returns a session transcript in order.
func (h *Handler) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messages, err := h.messages.MessagesBySession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

// handleAnalyze runs summary/intent analysis and persists the outcome.
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sess, result, err := h.analyzer.Run(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, analysisService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to analyze session")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"session":  sess,
		"analysis": result,
	})
}

// handleGuestInteractions returns every message a guest exchanged, across
// sessions, for the owner dashboard.
func (h *Handler) handleGuestInteractions(w http.ResponseWriter, r *http.Request) {
	guestID := chi.URLParam(r, "guestID")
	messages, err := h.messages.MessagesByGuest(r.Context(), guestID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load interactions")
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

// handleWidgetGuests lists a widget's guests for the owner dashboard,
// newest first.
func (h *Handler) handleWidgetGuests(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.resolveWidget(w, r)
	if !ok {
		return
	}
	guests, err := h.guests.GuestsByWidget(r.Context(), ref.ID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load guests")
		return
	}
	utils.RespondJSON(w, http.StatusOK, guests)
}
