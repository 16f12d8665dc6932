package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/yesno-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/yesno-chat/backend/internal/service/chat"
	"github.com/zhouzirui/yesno-chat/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Route("/sessions/{sessionID}", func(sr chi.Router) {
		sr.Get("/", h.handleGetSession)
		sr.Delete("/", h.handleDeleteSession)
		sr.Post("/start", h.handleStart)
		sr.Get("/messages", h.handleMessages)
		sr.Put("/draft", h.handleDraft)
		sr.Post("/questions", h.handleAsk)
	})
}

type sessionView struct {
	chat.Session
	Started bool   `json:"started"`
	Draft   string `json:"draft"`
}

type transcriptView struct {
	SessionID string         `json:"sessionId"`
	Started   bool           `json:"started"`
	Messages  []chat.Message `json:"messages"`
}

type textPayload struct {
	Text string `json:"text"`
}

// handleCreateSession 创建会话，历史在 start 之前保持未初始化。
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, sessionView{Session: session})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	controller, err := h.chatSvc.Controller(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, sessionView{
		Session: session,
		Started: controller.Session().Started(),
		Draft:   controller.Draft(),
	})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStart 初始化或重置会话历史。
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	controller, err := h.chatSvc.Controller(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	controller.Initialize()
	utils.RespondJSON(w, http.StatusOK, transcriptView{
		SessionID: sessionID,
		Started:   true,
		Messages:  controller.Session().Messages(),
	})
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messages, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, transcriptView{
		SessionID: sessionID,
		Started:   messages != nil,
		Messages:  messages,
	})
}

// handleDraft 保存输入框中尚未提交的内容。
func (h *Handler) handleDraft(w http.ResponseWriter, r *http.Request) {
	var payload textPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	controller, err := h.chatSvc.Controller(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	controller.SetDraft(payload.Text)
	w.WriteHeader(http.StatusNoContent)
}

// handleAsk 提交问题；回答在后台获取，通过事件流推送。
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var payload textPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	controller, err := h.chatSvc.Controller(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	awaiting := controller.AskQuestion(r.Context(), payload.Text)
	utils.RespondJSON(w, http.StatusAccepted, map[string]bool{"awaitingAnswer": awaiting})
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, chatService.ErrTooManySessions):
		utils.RespondError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, err.Error())
}
