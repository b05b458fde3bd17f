package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/alecgard/huddle/internal/auth"
	"github.com/alecgard/huddle/internal/metrics"
	"github.com/alecgard/huddle/internal/ratelimit"
	"github.com/alecgard/huddle/internal/realtime"
)

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Users    UserStore
	Groups   GroupStore
	Tasks    TaskStore
	Events   EventSink
	Audit    EventReader
	Sessions auth.SessionLookup
	Limiter  *ratelimit.Limiter
	Hub      *realtime.Hub
	Metrics  *metrics.Metrics

	AllowedOrigins []string
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.Use(slogRequestLogger)
	r.Use(metricsMiddleware(deps.Metrics))

	var onAuthFailure func(reason string)
	var onRateLimitReject func()
	if deps.Metrics != nil {
		onAuthFailure = func(reason string) {
			deps.Metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
		}
		onRateLimitReject = func() {
			deps.Metrics.RateLimitRejectionsTotal.Inc()
		}
	}
	sessionAuth := auth.SessionMiddleware(deps.Sessions, onAuthFailure)
	rateLimited := ratelimit.Middleware(deps.Limiter, onRateLimitReject)

	// Handlers.
	authh := newAuthHandler(deps.Users)
	groups := newGroupsHandler(deps.Groups, deps.Events)
	tasks := newTasksHandler(deps.Tasks, deps.Groups, deps.Events)

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Live metrics summary.
	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.Handler())
	}

	// Public (unauthenticated) routes, rate limited per client IP.
	r.Group(func(pr chi.Router) {
		pr.Use(rateLimited)

		pr.Post("/api/v1/auth/register", authh.Register)
		pr.Post("/api/v1/auth/login", authh.Login)
	})

	// Session-authed routes.
	r.Route("/api/v1", func(ar chi.Router) {
		ar.Use(sessionAuth)

		ar.Post("/auth/logout", authh.Logout)
		ar.Get("/me", authh.Me)

		ar.Post("/groups", groups.CreateGroup)
		ar.With(rateLimited).Post("/groups/join", groups.JoinGroup)
		ar.Get("/groups/{groupID}", groups.GetGroup)
		ar.Post("/groups/{groupID}/invite", groups.RefreshInvite)
		ar.Get("/groups/{groupID}/members", groups.ListMembers)
		if deps.Audit != nil {
			activity := newEventsHandler(deps.Audit, deps.Groups)
			ar.Get("/groups/{groupID}/events", activity.ListGroupEvents)
		}
		ar.Get("/users/{userID}/groups", groups.ListUserGroups)

		ar.Post("/groups/{groupID}/tasks", tasks.CreateTask)
		ar.Get("/groups/{groupID}/tasks", tasks.ListTasks)
		ar.Post("/groups/{groupID}/tasks/shuffle", tasks.ShuffleTasks)
		ar.Put("/groups/{groupID}/tasks/{taskID}", tasks.UpdateTask)
		ar.Delete("/tasks/{taskID}", tasks.DeleteTask)
	})

	// Websocket endpoint (session via header or ?token=).
	if deps.Hub != nil {
		var onConnect, onDisconnect func()
		if deps.Metrics != nil {
			m := deps.Metrics
			hub := deps.Hub
			onConnect = func() {
				m.WSConnections.Inc()
				m.WSRooms.Set(float64(hub.Rooms()))
			}
			onDisconnect = func() {
				m.WSConnections.Dec()
				m.WSRooms.Set(float64(hub.Rooms()))
			}
		}
		ws := newWSHandler(deps.Hub, deps.Groups, deps.AllowedOrigins, onConnect, onDisconnect)
		r.With(sessionAuth).Get("/ws", ws.Serve)
	}

	return r
}

// slogRequestLogger is a simple structured logging middleware using slog.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.BytesWritten(),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}
