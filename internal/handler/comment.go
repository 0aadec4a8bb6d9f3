package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/invitely/internal/model"
	"github.com/dukerupert/invitely/internal/store"
	"github.com/dukerupert/invitely/internal/websocket"
)

type CommentHandler struct {
	events   *store.EventStore
	comments *store.CommentStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewCommentHandler(es *store.EventStore, cs *store.CommentStore, hub *websocket.Hub, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{events: es, comments: cs, hub: hub, logger: logger}
}

func (h *CommentHandler) broadcast(eventID int64, action string, id int64) {
	if h.hub != nil {
		h.hub.Broadcast(eventID, websocket.NewMessage("comment", action, id, nil))
	}
}

// PublicList handles GET /api/public/events/{slug}/comments
func (h *CommentHandler) PublicList(w http.ResponseWriter, r *http.Request) {
	event, ok := publicEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}

	comments, err := h.comments.ListByEvent(event.ID)
	if err != nil {
		h.logger.Error("list comments", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list comments")
		return
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

// PublicCreate handles POST /api/public/events/{slug}/comments
func (h *CommentHandler) PublicCreate(w http.ResponseWriter, r *http.Request) {
	event, ok := publicEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}

	var req struct {
		AuthorName string `json:"author_name" validate:"required,max=100"`
		Body       string `json:"body" validate:"required,max=2000"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	author := strings.TrimSpace(req.AuthorName)
	body := strings.TrimSpace(req.Body)
	if author == "" || body == "" {
		writeError(w, http.StatusBadRequest, "author_name and body are required")
		return
	}

	comment, err := h.comments.Create(event.ID, author, body)
	if err != nil {
		h.logger.Error("create comment", "event_id", event.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to post comment")
		return
	}
	h.broadcast(event.ID, "created", comment.ID)
	writeJSON(w, http.StatusCreated, comment)
}

// Delete handles DELETE /api/events/{id}/comments/{comment_id}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	event, ok := ownedEvent(w, r, h.events, h.logger)
	if !ok {
		return
	}
	commentID, err := parsePathID(r, "comment_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid comment id")
		return
	}

	deleted, err := h.comments.Delete(commentID, event.ID)
	if err != nil {
		h.logger.Error("delete comment", "comment_id", commentID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete comment")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}
	h.broadcast(event.ID, "deleted", commentID)
	w.WriteHeader(http.StatusNoContent)
}
