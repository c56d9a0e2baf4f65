package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/internal/service"
	"github.com/capitalize-ai/community-platform/pkg/logger"
	"github.com/capitalize-ai/community-platform/pkg/metrics"
)

const (
	wsWriteWait   = 10 * time.Second
	wsMaxFrame    = 16 << 10
	wsReplyBuffer = 16
)

// Frame types exchanged on the conversation socket.
const (
	FrameSend     = "send"
	FrameRead     = "read"
	FrameSent     = "sent"
	FrameMessages = "messages"
	FrameError    = "error"
)

// Frame is one JSON message on the conversation socket. Clients send
// "send" and "read" frames; the server answers with "sent", "read",
// "messages" and "error" frames. Ref echoes the client's correlation tag.
type Frame struct {
	Type       string            `json:"type"`
	Ref        string            `json:"ref,omitempty"`
	ReceiverID string            `json:"receiverId,omitempty"`
	Text       string            `json:"text,omitempty"`
	ID         string            `json:"id,omitempty"`
	Messages   []model.Message   `json:"messages,omitempty"`
	Error      *model.ErrorEvent `json:"error,omitempty"`
}

// messagesFrame is the wire form of a snapshot. It always carries the
// messages field, so an empty conversation arrives as "messages": [].
type messagesFrame struct {
	Type     string          `json:"type"`
	Messages []model.Message `json:"messages"`
}

// WebSocketHandler serves the two-way conversation channel.
type WebSocketHandler struct {
	messageService *service.MessageService
	logger         *logger.Logger
	heartbeat      time.Duration
	upgrader       websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler. Origins take the
// same patterns as the CORS middleware: "*" or one wildcard per entry.
func NewWebSocketHandler(msgSvc *service.MessageService, log *logger.Logger, heartbeat time.Duration, origins []string) *WebSocketHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &WebSocketHandler{
		messageService: msgSvc,
		logger:         log,
		heartbeat:      heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(origins) == 0 {
					return true
				}
				for _, pattern := range origins {
					if originAllowed(pattern, origin) {
						return true
					}
				}
				return false
			},
		},
	}
}

func originAllowed(pattern, origin string) bool {
	if pattern == "*" || strings.EqualFold(pattern, origin) {
		return true
	}
	prefix, suffix, ok := strings.Cut(strings.ToLower(pattern), "*")
	origin = strings.ToLower(origin)
	return ok && len(origin) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix)
}

// Conversation handles GET /api/v1/conversations/:id/ws
func (h *WebSocketHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	convID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sess := session(r)

	// subscribe before upgrading so access errors are plain HTTP answers
	updates := newLatest[model.Message]()
	sub, err := h.messageService.SubscribeAndMarkRead(ctx, sess, convID, updates.put)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to open conversation socket", err)
		return
	}
	defer sub.Unsubscribe()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already answered the request
		h.logger.WithContext(ctx).Info("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	metrics.IncrementStreams("websocket")
	defer metrics.DecrementStreams("websocket")

	log := h.logger.WithContext(ctx).With(zap.String("conversation_id", convID))
	replies := make(chan Frame, wsReplyBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		// closing the socket unblocks the read loop
		defer ws.Close()
		defer cancel()
		h.writeLoop(ctx, ws, log, updates, replies)
	}()

	ws.SetReadLimit(wsMaxFrame)
	ws.SetReadDeadline(time.Now().Add(2 * h.heartbeat))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(2 * h.heartbeat))
	})

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && ctx.Err() == nil {
				log.Debug("websocket read ended", zap.Error(err))
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		var in Frame
		if err := json.Unmarshal(data, &in); err != nil {
			h.reply(ctx, replies, errorFrame("", "bad_frame", "frame is not valid JSON"))
			continue
		}
		h.reply(ctx, replies, h.handleFrame(ctx, sess, convID, in))
	}

	cancel()
	<-done
}

func (h *WebSocketHandler) handleFrame(ctx context.Context, sess *service.Session, convID string, in Frame) Frame {
	switch in.Type {
	case FrameSend:
		id, err := h.messageService.Send(ctx, sess, convID, in.ReceiverID, in.Text)
		if err != nil && id == "" {
			status, text := statusFor(err)
			if status >= http.StatusInternalServerError {
				h.logger.WithContext(ctx).Error("failed to send message", zap.String("conversation_id", convID), zap.Error(err))
			}
			return errorFrame(in.Ref, errorCode(status), text)
		}
		return Frame{Type: FrameSent, Ref: in.Ref, ID: id}
	case FrameRead:
		if err := h.messageService.MarkConversationAsRead(ctx, sess, convID); err != nil {
			status, text := statusFor(err)
			if status >= http.StatusInternalServerError {
				h.logger.WithContext(ctx).Error("failed to mark conversation read", zap.String("conversation_id", convID), zap.Error(err))
			}
			return errorFrame(in.Ref, errorCode(status), text)
		}
		return Frame{Type: FrameRead, Ref: in.Ref}
	}
	return errorFrame(in.Ref, "bad_frame", "unknown frame type "+in.Type)
}

func (h *WebSocketHandler) reply(ctx context.Context, replies chan<- Frame, f Frame) {
	select {
	case replies <- f:
	case <-ctx.Done():
	}
}

// writeLoop owns every write on ws.
func (h *WebSocketHandler) writeLoop(ctx context.Context, ws *websocket.Conn, log *logger.Logger, updates latest[model.Message], replies <-chan Frame) {
	ping := time.NewTicker(h.heartbeat)
	defer ping.Stop()

	write := func(f any) bool {
		ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := ws.WriteJSON(f); err != nil {
			log.Debug("websocket write failed", zap.Error(err))
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return

		case u := <-updates:
			if u.err != nil {
				log.Warn("live feed failed", zap.Error(u.err))
				write(errorFrame("", "feed_error", "live updates interrupted"))
				return
			}
			msgs := u.items
			if msgs == nil {
				msgs = []model.Message{}
			}
			if !write(messagesFrame{Type: FrameMessages, Messages: msgs}) {
				return
			}

		case f := <-replies:
			if !write(f) {
				return
			}

		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func errorFrame(ref, code, message string) Frame {
	return Frame{Type: FrameError, Ref: ref, Error: &model.ErrorEvent{Code: code, Message: message}}
}
