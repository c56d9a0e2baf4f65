package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/community-platform/internal/model"
	"github.com/capitalize-ai/community-platform/internal/service"
	"github.com/capitalize-ai/community-platform/pkg/logger"
	"github.com/capitalize-ai/community-platform/pkg/metrics"
)

// DefaultHeartbeat is the keep-alive interval of open streams.
const DefaultHeartbeat = 30 * time.Second

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	messageService      *service.MessageService
	notificationService *service.NotificationService
	logger              *logger.Logger
	heartbeat           time.Duration
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(
	msgSvc *service.MessageService,
	notifSvc *service.NotificationService,
	log *logger.Logger,
	heartbeat time.Duration,
) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &StreamHandler{
		messageService:      msgSvc,
		notificationService: notifSvc,
		logger:              log,
		heartbeat:           heartbeat,
	}
}

// update is one live snapshot handed from a subscription callback to the
// goroutine that owns the response.
type update[T any] struct {
	items []T
	err   error
}

// latest is a single-slot mailbox: a newer value replaces an unread one.
// It has one writer, the subscription callback.
type latest[T any] chan update[T]

func newLatest[T any]() latest[T] {
	return make(latest[T], 1)
}

func (l latest[T]) put(items []T, err error) {
	u := update[T]{items: items, err: err}
	for {
		select {
		case l <- u:
			return
		default:
		}
		select {
		case <-l:
		default:
		}
	}
}

// Messages handles GET /api/v1/conversations/:id/messages/stream
// The stream keeps the conversation read for the caller while open.
func (h *StreamHandler) Messages(w http.ResponseWriter, r *http.Request) {
	convID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates := newLatest[model.Message]()
	sub, err := h.messageService.SubscribeAndMarkRead(ctx, session(r), convID, updates.put)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to open message stream", err)
		return
	}
	defer sub.Unsubscribe()

	serveSSE(ctx, h, w, "messages", map[string]string{"conversation_id": convID}, func(flusher http.Flusher, u update[model.Message]) bool {
		if u.err != nil {
			return false
		}
		msgs := u.items
		if msgs == nil {
			msgs = []model.Message{}
		}
		sendSSEEvent(w, flusher, "messages", msgs)
		return true
	}, updates)
}

// Notifications handles GET /api/v1/notifications/stream
func (h *StreamHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates := newLatest[model.Notification]()
	sub, err := h.notificationService.Subscribe(ctx, session(r), updates.put)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to open notification stream", err)
		return
	}
	defer sub.Unsubscribe()

	serveSSE(ctx, h, w, "notifications", map[string]string{}, func(flusher http.Flusher, u update[model.Notification]) bool {
		if u.err != nil {
			return false
		}
		ns := u.items
		if ns == nil {
			ns = []model.Notification{}
		}
		sendSSEEvent(w, flusher, "notifications", &model.ListNotificationsResponse{
			Notifications: ns,
			Unread:        countUnread(ns),
		})
		return true
	}, updates)
}

// serveSSE runs an SSE response until the client leaves or the feed fails.
// write returns false when the update carried an error.
func serveSSE[T any](ctx context.Context, h *StreamHandler, w http.ResponseWriter, name string, hello map[string]string, write func(http.Flusher, update[T]) bool, updates latest[T]) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	metrics.IncrementStreams("sse")
	defer metrics.DecrementStreams("sse")

	log := h.logger.WithContext(ctx).With(zap.String("stream", name))
	sendSSEEvent(w, flusher, "connected", hello)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("SSE client disconnected")
			return

		case u := <-updates:
			if !write(flusher, u) {
				log.Warn("live feed failed", zap.Error(u.err))
				sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
					Code:    "feed_error",
					Message: "live updates interrupted",
				})
				return
			}

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

func countUnread(ns []model.Notification) int {
	n := 0
	for _, item := range ns {
		if !item.Read {
			n++
		}
	}
	return n
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}
