package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/community-platform/internal/middleware"
	"github.com/capitalize-ai/community-platform/internal/service"
	"github.com/capitalize-ai/community-platform/pkg/logger"
)

// Services are the domain services the API serves.
type Services struct {
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Notifications *service.NotificationService
	Reactions     *service.ReactionService
	Comments      *service.CommentService
	Posts         *service.PostService
	Users         *service.UserService
	Devices       *service.DeviceService
}

// RouterOptions configures the HTTP surface.
type RouterOptions struct {
	Verifier          middleware.TokenVerifier
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Heartbeat         time.Duration
	Checks            map[string]Check
}

// NewRouter builds the API router.
func NewRouter(svc Services, opt RouterOptions, log *logger.Logger) http.Handler {
	healthHandler := NewHealthHandler(opt.Checks)
	conversationHandler := NewConversationHandler(svc.Conversations, log)
	messageHandler := NewMessageHandler(svc.Messages, log)
	streamHandler := NewStreamHandler(svc.Messages, svc.Notifications, log, opt.Heartbeat)
	wsHandler := NewWebSocketHandler(svc.Messages, log, opt.Heartbeat, opt.CORSOrigins)
	postHandler := NewPostHandler(svc.Posts, svc.Reactions, log)
	commentHandler := NewCommentHandler(svc.Comments, log)
	notificationHandler := NewNotificationHandler(svc.Notifications, log)
	userHandler := NewUserHandler(svc.Users, log)
	deviceHandler := NewDeviceHandler(svc.Devices, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	if len(opt.CORSOrigins) > 0 {
		r.Use(middleware.CORS(opt.CORSOrigins))
	}

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(opt.Verifier))
		if opt.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(opt.RateLimitRequests, opt.RateLimitWindow))
		}

		// Conversations
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)

				// Messages
				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)
				r.Post("/read", messageHandler.MarkRead)

				// Streaming
				r.Get("/messages/stream", streamHandler.Messages)
				r.Get("/ws", wsHandler.Conversation)
			})
		})

		// Posts
		r.Route("/posts", func(r chi.Router) {
			r.Post("/", postHandler.Create)
			r.Get("/", postHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", postHandler.Get)
				r.Put("/", postHandler.Update)
				r.Delete("/", postHandler.Delete)
				r.Post("/reactions", postHandler.React)
				r.Post("/bookmark", postHandler.Bookmark)
				r.Post("/views", postHandler.View)

				// Comments
				r.Get("/comments", commentHandler.List)
				r.Post("/comments", commentHandler.Add)
			})
		})

		r.Route("/comments/{id}", func(r chi.Router) {
			r.Put("/", commentHandler.Edit)
			r.Delete("/", commentHandler.Delete)
			r.Post("/like", commentHandler.Like)
		})

		// Notifications
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.List)
			r.Get("/stream", streamHandler.Notifications)
			r.Post("/{id}/read", notificationHandler.MarkRead)
		})

		// Users
		r.Route("/users", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
			r.Put("/me", userHandler.UpdateMe)
			r.Get("/{id}", userHandler.Get)
			r.Post("/{id}/follow", userHandler.Follow)
		})

		r.Post("/devices", deviceHandler.Register)
	})

	return r
}
