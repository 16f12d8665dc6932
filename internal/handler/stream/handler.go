package stream

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/yesno-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/yesno-chat/backend/internal/service/chat"
	"github.com/zhouzirui/yesno-chat/backend/pkg/utils"
)

const defaultHeartbeat = 15 * time.Second

// Handler pushes session changes to the widget via Server-Sent Events so the
// view can re-render and scroll to the newest message.
type Handler struct {
	chatSvc   *chatService.Service
	heartbeat time.Duration
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc, heartbeat: defaultHeartbeat}
}

// RegisterRoutes mounts the event feed.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/events", h.handleEvents)
}

// SnapshotEvent is the first event of every stream.
type SnapshotEvent struct {
	SessionID  string         `json:"sessionId"`
	Started    bool           `json:"started"`
	Generation uint64         `json:"generation"`
	Messages   []chat.Message `json:"messages"`
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.Stream(r.Context(), w, sessionID); err != nil {
		log.Printf("[stream] session=%s: %v", sessionID, err)
	}
}

// Stream writes a snapshot followed by every session event until ctx ends.
func (h *Handler) Stream(ctx context.Context, w http.ResponseWriter, sessionID string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return fmt.Errorf("streaming unsupported")
	}

	controller, err := h.chatSvc.Controller(ctx, sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return err
	}
	session := controller.Session()

	// Subscribe before the snapshot so nothing between the two is lost.
	events, cancel := session.Subscribe()
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	snapshot := SnapshotEvent{
		SessionID:  sessionID,
		Started:    session.Started(),
		Generation: session.Generation(),
		Messages:   session.Messages(),
	}
	if err := utils.SendSSEEvent(w, flusher, "", "snapshot", snapshot); err != nil {
		return err
	}

	log.Printf("[stream] opened event stream for session=%s", sessionID)
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[stream] closing event stream for session=%s", sessionID)
			return nil
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return err
			}
		case event, ok := <-events:
			if !ok {
				return nil
			}
			id := strconv.FormatUint(event.Generation, 10) + "-" + strconv.Itoa(event.Index)
			if err := utils.SendSSEEvent(w, flusher, id, string(event.Type), event); err != nil {
				return err
			}
		}
	}
}
