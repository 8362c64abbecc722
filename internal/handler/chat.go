// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sline-ai/agent-gateway/internal/agui"
	"github.com/sline-ai/agent-gateway/internal/middleware"
	"github.com/sline-ai/agent-gateway/internal/model"
	"github.com/sline-ai/agent-gateway/internal/service"
	"github.com/sline-ai/agent-gateway/internal/sse"
	"github.com/sline-ai/agent-gateway/internal/store"
	"github.com/sline-ai/agent-gateway/pkg/logger"
	"github.com/sline-ai/agent-gateway/pkg/metrics"
)

// dashboardChannel is the channel scope for threads opened from the web
// dashboard. Threads arriving via the messaging ingress carry their own
// channel id.
const dashboardChannel = "dashboard"

// ChatHandler handles the submit/reload boundary.
type ChatHandler struct {
	runService    *service.RunService
	threadService *service.ThreadService
	logger        *logger.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(runSvc *service.RunService, threadSvc *service.ThreadService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		runService:    runSvc,
		threadService: threadSvc,
		logger:        log,
	}
}

// runtimeInfo describes the agent runtime for client handshakes.
var runtimeInfo = map[string]interface{}{
	"agents": []map[string]interface{}{
		{
			"name":                    "default",
			"description":             "Sline AI coding assistant",
			"model":                   "sline-agent",
			"supportsVision":          false,
			"supportsFunctionCalling": true,
		},
	},
}

// Info handles GET /api/chat/info
func (h *ChatHandler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, runtimeInfo)
}

// Submit handles POST /api/chat. The response is a persistent SSE stream of
// run events; headers are committed on the first event so pre-stream
// failures still map to proper HTTP statuses.
func (h *ChatHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	// Method-based routing kept for clients that probe over POST.
	if req.Method == "info" {
		writeJSON(w, http.StatusOK, runtimeInfo)
		return
	}

	if err := middleware.ValidateThreadID(req.ThreadID); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if n := len(req.Messages); n > 0 {
		if err := middleware.ValidateMessageContent(req.Messages[n-1].Content); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	var writer *sse.Writer
	streaming := false

	err := h.runService.Submit(ctx, dashboardChannel, &req, func(ev agui.Event) error {
		if !streaming {
			sw, err := sse.NewWriter(w)
			if err != nil {
				return err
			}
			sse.PrepareHeaders(w)
			w.WriteHeader(http.StatusOK)
			writer = sw
			streaming = true
			metrics.IncrementSSEConnections()
		}

		// Client gone: stop producing, the service finalizes locally.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		return writer.WriteEvent(ev)
	})

	if streaming {
		metrics.DecrementSSEConnections()
	}

	if err != nil && !streaming {
		switch {
		case errors.Is(err, service.ErrRunActive):
			writeError(w, r, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrInvalidRequest):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, sse.ErrStreamingUnsupported):
			writeError(w, r, http.StatusInternalServerError, "streaming not supported")
		default:
			h.logger.Error("submit failed before streaming", "thread_id", req.ThreadID, "error", err)
			writeError(w, r, http.StatusInternalServerError, "failed to start run")
		}
		return
	}

	if err != nil {
		// Mid-stream failure: the event sequence already carries the
		// terminal RunError (or the client disconnected and is not
		// listening). Nothing useful can be added to the response.
		h.logger.Warn("stream ended early", "thread_id", req.ThreadID, "error", err)
	}
}

// Reload handles GET /api/chat/thread/{threadID}: the persisted transcript
// in the same shape live streaming produces, stable ids included.
func (h *ChatHandler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threadID := chi.URLParam(r, "threadID")

	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	messages, err := h.runService.Reload(ctx, dashboardChannel, threadID)
	if err != nil {
		h.logger.Error("failed to reload thread", "thread_id", threadID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to load thread")
		return
	}

	writeJSON(w, http.StatusOK, &model.ThreadResponse{
		ThreadID: threadID,
		Messages: messages,
	})
}

// ListThreads handles GET /api/chat/threads
func (h *ChatHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	resp, err := h.threadService.List(ctx, dashboardChannel, limit)
	if err != nil {
		h.logger.Error("failed to list threads", "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to list threads")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteThread handles DELETE /api/chat/thread/{threadID}
func (h *ChatHandler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threadID := chi.URLParam(r, "threadID")

	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.threadService.Delete(ctx, dashboardChannel, threadID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "thread not found")
			return
		}
		h.logger.Error("failed to delete thread", "thread_id", threadID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to delete thread")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
