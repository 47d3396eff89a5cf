package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/taurimind/server/internal/conversation"
	"github.com/taurimind/server/internal/log"
	"github.com/taurimind/server/internal/model"
	"github.com/taurimind/server/internal/user"
)

// Conversation validation constants.
const (
	MaxPromptLength        = 32000
	MaxInitialPromptLength = 32000
)

// ConversationHandler handles conversation-related HTTP endpoints.
//
// Listing, creation and deletion go through the caller's user index;
// prompting and history reads address the conversation actor directly by
// (conversation id, owner id).
type ConversationHandler struct {
	users  *user.Registry
	convs  *conversation.Registry
	models *model.Registry
	logger log.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(users *user.Registry, convs *conversation.Registry, models *model.Registry, logger log.Logger) *ConversationHandler {
	return &ConversationHandler{users: users, convs: convs, models: models, logger: logger}
}

// RegisterRoutes registers conversation routes on the given mux.
func (h *ConversationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/conversations", h.list)
	mux.HandleFunc("POST /api/conversations", h.create)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.delete)
	mux.HandleFunc("GET /api/conversations/{id}/messages", h.messages)
	mux.HandleFunc("POST /api/conversations/{id}/prompt", h.prompt)
	mux.HandleFunc("PUT /api/conversations/{id}/model", h.switchModel)
}

// conversationID parses the {id} path value. Reports the error itself;
// callers return on !ok.
func conversationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id", err.Error())
		return uuid.UUID{}, false
	}
	return id, true
}

// list returns the caller's conversations in creation order.
func (h *ConversationHandler) list(w http.ResponseWriter, r *http.Request) {
	idx, err := h.users.Get(r.Context(), userID(r))
	if err != nil {
		h.logger.Error("failed to resolve user index", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	conversations, err := idx.GetConversations(r.Context())
	if err != nil {
		h.logger.Error("failed to list conversations", "error", err)
		http.Error(w, "failed to list conversations", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"conversations": conversations})
}

// CreateConversationRequest is the request body for creating a conversation.
type CreateConversationRequest struct {
	Model         string `json:"model"`
	InitialPrompt string `json:"initialPrompt"`
}

// create creates a conversation for the caller. When an initial prompt is
// given, the first generation is started as well; its progress arrives via
// the event stream.
func (h *ConversationHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.InitialPrompt) > MaxInitialPromptLength {
		http.Error(w, "initialPrompt too long", http.StatusBadRequest)
		return
	}

	ref, err := h.models.Resolve(req.Model)
	if err != nil {
		writeError(w, http.StatusBadRequest, "model not supported", err.Error())
		return
	}

	owner := userID(r)
	idx, err := h.users.Get(r.Context(), owner)
	if err != nil {
		h.logger.Error("failed to resolve user index", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	info, err := idx.CreateConversation(r.Context(), ref, req.InitialPrompt)
	if err != nil {
		h.logger.Error("failed to create conversation", "error", err)
		http.Error(w, "failed to create conversation", http.StatusInternalServerError)
		return
	}

	// Initialization never generates; the initial prompt is issued here.
	if req.InitialPrompt != "" {
		conv, err := h.convs.Get(r.Context(), owner, info.ID)
		if err == nil {
			err = conv.Prompt(r.Context(), req.InitialPrompt)
		}
		if err != nil {
			h.logger.Error("failed to start initial generation", "error", err, "conversation", info.ID)
		}
	}

	writeJSON(w, http.StatusCreated, info)
}

// delete removes a conversation. 404 when the caller's index does not list
// the id.
func (h *ConversationHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	idx, err := h.users.Get(r.Context(), userID(r))
	if err != nil {
		h.logger.Error("failed to resolve user index", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	deleted, err := idx.DeleteConversation(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete conversation", "error", err, "conversation", id)
		http.Error(w, "failed to delete conversation", http.StatusInternalServerError)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "conversation not found", "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// messages is the conditional history fetch. The client echoes the ETag of
// its cached copy in If-None-Match; the response is 204 when the
// conversation has no message activity, 304 when the cache is current, or
// 200 with the full sequence and its ETag.
func (h *ConversationHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	idx, err := h.users.Get(r.Context(), userID(r))
	if err != nil {
		h.logger.Error("failed to resolve user index", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	res, err := idx.GetConversationMessages(r.Context(), id, r.Header.Get("If-None-Match"))
	if err != nil {
		h.logger.Error("failed to fetch messages", "error", err, "conversation", id)
		http.Error(w, "failed to fetch messages", http.StatusInternalServerError)
		return
	}

	switch res.Status {
	case conversation.FetchEmpty:
		w.WriteHeader(http.StatusNoContent)
	case conversation.FetchNotModified:
		w.Header().Set("ETag", res.ETag)
		w.WriteHeader(http.StatusNotModified)
	default:
		w.Header().Set("ETag", res.ETag)
		writeJSON(w, http.StatusOK, map[string]any{"messages": res.Messages})
	}
}

// PromptRequest is the request body for starting a generation.
type PromptRequest struct {
	Text string `json:"text"`
}

// prompt starts a generation on the conversation and returns 202; progress
// and completion arrive via the event stream. 409 while a generation is
// already in flight.
func (h *ConversationHandler) prompt(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if len(req.Text) > MaxPromptLength {
		http.Error(w, "text too long", http.StatusBadRequest)
		return
	}

	conv, err := h.convs.Get(r.Context(), userID(r), id)
	if err != nil {
		h.logger.Error("failed to resolve conversation", "error", err, "conversation", id)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	switch err := conv.Prompt(r.Context(), req.Text); {
	case errors.Is(err, conversation.ErrNotInitialized):
		writeError(w, http.StatusNotFound, "conversation not found", "")
	case errors.Is(err, conversation.ErrGenerationInFlight):
		writeError(w, http.StatusConflict, "generation in flight", "a generation is already running for this conversation")
	case err != nil:
		h.logger.Error("failed to start generation", "error", err, "conversation", id)
		http.Error(w, "failed to start generation", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

// SwitchModelRequest is the request body for switching a conversation's model.
type SwitchModelRequest struct {
	Model string `json:"model"`
}

// switchModel changes the conversation's model. Unknown conversation ids
// are a silent no-op with 204, matching the index contract.
func (h *ConversationHandler) switchModel(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	var req SwitchModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ref, err := h.models.Resolve(req.Model)
	if err != nil {
		writeError(w, http.StatusBadRequest, "model not supported", err.Error())
		return
	}

	idx, err := h.users.Get(r.Context(), userID(r))
	if err != nil {
		h.logger.Error("failed to resolve user index", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := idx.SwitchModel(r.Context(), id, ref); err != nil {
		h.logger.Error("failed to switch model", "error", err, "conversation", id)
		http.Error(w, "failed to switch model", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
