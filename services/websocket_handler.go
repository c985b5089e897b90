package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	ws "github.com/veriview/backend/websocket"
)

// safeSend tries to send a message to the client channel, recovers if closed
func safeSend(ch chan<- []byte, msg []byte) {
	defer func() {
		if r := recover(); r != nil {
			// Channel is closed, ignore
		}
	}()
	select {
	case ch <- msg:
		// sent
	default:
		// channel full or closed
	}
}

// WebSocketHandler adapts interview envelopes onto the websocket transport.
// It is a thin shim over InterviewService; all interview logic stays in the
// core.
type WebSocketHandler struct {
	service *InterviewService
}

func NewWebSocketHandler(service *InterviewService) *WebSocketHandler {
	return &WebSocketHandler{service: service}
}

type wsReply struct {
	Type         string `json:"type"`
	Data         any    `json:"data,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// HandleMessage routes one client frame. Runs on its own goroutine per frame.
func (h *WebSocketHandler) HandleMessage(client *ws.Client, messageBytes []byte) {
	var msg ws.Message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		slog.Error("Failed to unmarshal WebSocket message", "error", err)
		return
	}

	ctx := context.Background()

	switch msg.Type {
	case "start_interview":
		h.handleStart(ctx, client, msg)
	case "answer":
		h.handleAnswer(ctx, client, msg)
	case "result":
		h.handleResult(ctx, client, msg)
	default:
		slog.Warn("Unknown message type", "type", msg.Type, "connection_id", client.ConnectionID)
		h.sendError(client, "UNKNOWN_MESSAGE_TYPE", "지원하지 않는 메시지 유형입니다: "+msg.Type)
	}
}

func (h *WebSocketHandler) handleStart(ctx context.Context, client *ws.Client, msg ws.Message) {
	var req StartRequest
	if len(msg.Settings) > 0 {
		if err := json.Unmarshal(msg.Settings, &req); err != nil {
			h.sendError(client, "INVALID_SETTINGS", "면접 설정을 해석할 수 없습니다.")
			return
		}
	}
	if req.UserID == "" {
		req.UserID = client.UserID
	}

	resp, err := h.service.StartInterview(ctx, &req)
	if err != nil {
		h.sendServiceError(client, err)
		return
	}

	client.SetSession(resp.SessionID)
	h.send(client, wsReply{Type: "interview_started", Data: resp})
}

func (h *WebSocketHandler) handleAnswer(ctx context.Context, client *ws.Client, msg ws.Message) {
	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = client.Session()
	}
	if sessionID == "" {
		h.sendError(client, "NO_SESSION", "진행 중인 면접 세션이 없습니다.")
		return
	}

	resp, err := h.service.SubmitAnswer(ctx, sessionID, msg.Content, msg.Duration)
	if err != nil {
		h.sendServiceError(client, err)
		return
	}

	replyType := "turn"
	if resp.Status == StatusCompleted {
		replyType = "interview_completed"
	}
	h.send(client, wsReply{Type: replyType, Data: resp})
}

func (h *WebSocketHandler) handleResult(ctx context.Context, client *ws.Client, msg ws.Message) {
	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = client.Session()
	}

	resp, err := h.service.Result(ctx, sessionID)
	if err != nil {
		h.sendServiceError(client, err)
		return
	}
	h.send(client, wsReply{Type: "result", Data: resp})
}

func (h *WebSocketHandler) send(client *ws.Client, reply wsReply) {
	b, err := json.Marshal(reply)
	if err != nil {
		slog.Error("Failed to marshal WebSocket reply", "error", err, "type", reply.Type)
		return
	}
	safeSend(client.Send, b)
}

func (h *WebSocketHandler) sendServiceError(client *ws.Client, err error) {
	switch {
	case errors.Is(err, ErrInvalidSettings):
		h.sendError(client, "INVALID_SETTINGS", err.Error())
	case errors.Is(err, ErrSessionNotFound):
		h.sendError(client, "SESSION_NOT_FOUND", err.Error())
	case errors.Is(err, ErrAlreadyCompleted):
		h.sendError(client, "ALREADY_COMPLETED", err.Error())
	case errors.Is(err, ErrUpstreamUnavailable):
		h.sendError(client, "UPSTREAM_UNAVAILABLE", err.Error())
	default:
		slog.Error("Unhandled service error on WebSocket", "error", err)
		h.sendError(client, "INTERNAL_ERROR", "요청을 처리하지 못했습니다.")
	}
}

func (h *WebSocketHandler) sendError(client *ws.Client, code, message string) {
	h.send(client, wsReply{Type: "error", ErrorCode: code, ErrorMessage: message})
}
