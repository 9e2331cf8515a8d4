// Package server is the composition root: it builds the store, the realtime
// hub, every service and handler, and mounts them on one chi router.
//
// ROUTE STRUCTURE:
//
//	GET  /health                  liveness + database ping
//	     /api/...                 REST, JSON {"ok": ...} envelope
//	GET  /ws?token=<jwt>          realtime socket
//	GET  /uploads/*               stored files
//	GET  /*                       single-page client, index.html fallback
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the logger can print it; Recoverer sits inside the
// logger so a panic is logged as a 500 instead of killing the process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/unityboard/internal/auth"
	"github.com/sakif/unityboard/internal/config"
	"github.com/sakif/unityboard/internal/executor"
	"github.com/sakif/unityboard/internal/handler"
	"github.com/sakif/unityboard/internal/middleware"
	"github.com/sakif/unityboard/internal/notify"
	"github.com/sakif/unityboard/internal/realtime"
	sqliteRepo "github.com/sakif/unityboard/internal/repository/sqlite"
	"github.com/sakif/unityboard/internal/service"
	"github.com/sakif/unityboard/internal/storage"
)

const shutdownTimeout = 30 * time.Second

// Server owns the router and the long-lived pieces behind it. The database
// and the executor are owned by the caller and are not closed here.
type Server struct {
	router   *chi.Mux
	cfg      *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	hub      *realtime.Hub
	reminder *service.Reminder
}

// New wires every dependency. exec may be nil, which disables code execution.
func New(cfg *config.Config, db *sqliteRepo.DB, exec executor.Executor, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	files, err := storage.NewLocalStore(cfg.Upload.Dir)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	hub := realtime.NewHub(logger)
	notifier := notify.New(db, hub, logger)

	s := &Server{
		router:   chi.NewRouter(),
		cfg:      cfg,
		logger:   logger,
		db:       db,
		hub:      hub,
		reminder: service.NewReminder(db, notifier, cfg.Reminder.Window, logger),
	}

	deps := routeDeps{
		tokens:   tokens,
		github:   auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL),
		files:    files,
		notifier: notifier,
		exec:     exec,
	}
	s.routes(deps)
	return s, nil
}

type routeDeps struct {
	tokens   *auth.TokenService
	github   *auth.GitHubProvider
	files    *storage.LocalStore
	notifier *notify.Notifier
	exec     executor.Executor
}

func (s *Server) routes(d routeDeps) {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	logger := s.logger
	db := s.db

	authSvc := service.NewAuthService(db, d.tokens, auth.NewPasswordService(), logger)
	projectSvc := service.NewProjectService(db, d.files, d.notifier, s.hub, logger)
	snippetSvc := service.NewSnippetService(db, d.exec, logger)

	authH := handler.NewAuthHandler(authSvc, d.github, s.cfg.JWTExpiry, s.cfg.CookieSecure, logger)
	userH := handler.NewUserHandler(service.NewUserService(db, logger), logger)
	projectH := handler.NewProjectHandler(projectSvc, logger)
	inviteH := handler.NewInvitationHandler(service.NewInvitationService(db, d.notifier, logger), logger)
	taskH := handler.NewTaskHandler(service.NewTaskService(db, d.notifier, logger), logger)
	threadH := handler.NewThreadHandler(
		service.NewThreadService(db, s.hub, logger),
		service.NewMessageService(db, d.notifier, s.hub, logger),
		logger,
	)
	resourceH := handler.NewResourceHandler(service.NewResourceService(db, d.files, logger), s.cfg.Upload.MaxBytes, logger)
	learningH := handler.NewLearningHandler(service.NewLearningService(db, logger), logger)
	snippetH := handler.NewSnippetHandler(snippetSvc, logger)
	executeH := handler.NewExecuteHandler(snippetSvc, logger)
	solutionH := handler.NewSolutionHandler(service.NewSolutionService(db, logger), logger)
	notificationH := handler.NewNotificationHandler(service.NewNotificationService(db, logger), logger)

	r.Get("/health", s.handleHealth)

	requireAuth := auth.RequireAuth(d.tokens)
	optionalAuth := auth.OptionalAuth(d.tokens)

	r.Route("/api", func(r chi.Router) {
		// Public.
		r.Post("/auth/register", authH.HandleRegister)
		r.Post("/auth/login", authH.HandleLogin)
		r.Post("/auth/logout", authH.HandleLogout)
		if authH.GitHubEnabled() {
			r.Get("/auth/github/login", authH.HandleGitHubLogin)
			r.Get("/auth/github/callback", authH.HandleGitHubCallback)
		}
		r.Get("/invites/{key}", inviteH.HandlePreview)

		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/projects/public", projectH.HandleListPublic)
			r.Get("/projects/{id}", projectH.HandleGet)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/auth/me", authH.HandleMe)

			r.Get("/users/{id}", userH.HandleGet)
			r.Patch("/users/me", userH.HandleUpdateProfile)
			r.Get("/users/me/analytics", userH.HandleAnalytics)

			r.Get("/projects", projectH.HandleListMine)
			r.Post("/projects", projectH.HandleCreate)
			r.Post("/projects/join-private", projectH.HandleJoinPrivate)
			r.Patch("/projects/{id}", projectH.HandleUpdate)
			r.Delete("/projects/{id}", projectH.HandleDelete)
			r.Post("/projects/{id}/join", projectH.HandleJoin)
			r.Post("/projects/{id}/leave", projectH.HandleLeave)
			r.Get("/projects/{id}/members", projectH.HandleMembers)
			r.Patch("/projects/{id}/members/{userId}", projectH.HandleChangeRole)
			r.Delete("/projects/{id}/members/{userId}", projectH.HandleRemoveMember)

			// Project-scoped collections.
			r.Get("/projects/{id}/invites", inviteH.HandleList)
			r.Post("/projects/{id}/invites", inviteH.HandleCreate)
			r.Get("/projects/{id}/tasks", taskH.HandleList)
			r.Post("/projects/{id}/tasks", taskH.HandleCreate)
			r.Get("/projects/{id}/threads", threadH.HandleList)
			r.Post("/projects/{id}/threads", threadH.HandleCreate)
			r.Get("/projects/{id}/resources", resourceH.HandleList)
			r.Post("/projects/{id}/resources", resourceH.HandleAddLink)
			r.Post("/projects/{id}/resources/upload", resourceH.HandleUpload)
			r.Get("/projects/{id}/learning", learningH.HandleList)
			r.Post("/projects/{id}/learning", learningH.HandleCreate)
			r.Get("/projects/{id}/snippets", snippetH.HandleList)
			r.Post("/projects/{id}/snippets", snippetH.HandleCreate)
			r.Get("/projects/{id}/solutions", solutionH.HandleList)
			r.Post("/projects/{id}/solutions", solutionH.HandleCreate)

			r.Patch("/invites/{key}", inviteH.HandleSetEnabled)
			r.Delete("/invites/{key}", inviteH.HandleDelete)
			r.Post("/invites/{key}/accept", inviteH.HandleAccept)

			r.Get("/tasks/{id}", taskH.HandleGet)
			r.Patch("/tasks/{id}", taskH.HandleUpdate)
			r.Delete("/tasks/{id}", taskH.HandleDelete)
			r.Post("/tasks/{id}/comments", taskH.HandleComment)

			r.Get("/threads/{id}", threadH.HandleGet)
			r.Patch("/threads/{id}", threadH.HandleUpdate)
			r.Delete("/threads/{id}", threadH.HandleDelete)
			r.Get("/threads/{id}/messages", threadH.HandleListMessages)
			r.Post("/threads/{id}/messages", threadH.HandlePostMessage)
			r.Delete("/messages/{id}", threadH.HandleDeleteMessage)

			r.Delete("/resources/{id}", resourceH.HandleDelete)

			r.Get("/learning/{id}", learningH.HandleGet)
			r.Patch("/learning/{id}", learningH.HandleUpdate)
			r.Delete("/learning/{id}", learningH.HandleDelete)

			r.Post("/snippets/run", executeH.HandleExecute)
			r.Get("/snippets/{id}", snippetH.HandleGet)
			r.Patch("/snippets/{id}", snippetH.HandleUpdate)
			r.Delete("/snippets/{id}", snippetH.HandleDelete)
			r.Post("/snippets/{id}/run", snippetH.HandleRun)

			r.Get("/solutions/{id}", solutionH.HandleGet)
			r.Patch("/solutions/{id}", solutionH.HandleUpdate)
			r.Delete("/solutions/{id}", solutionH.HandleDelete)

			r.Get("/notifications", notificationH.HandleList)
			r.Delete("/notifications", notificationH.HandleDeleteAll)
			r.Get("/notifications/unread-count", notificationH.HandleUnreadCount)
			r.Patch("/notifications/read-all", notificationH.HandleMarkAllRead)
			r.Patch("/notifications/{id}/read", notificationH.HandleMarkRead)
			r.Delete("/notifications/{id}", notificationH.HandleDelete)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"ok":false,"error":"Not found"}` + "\n"))
		})
	})

	r.Handle("/ws", realtime.NewHandler(s.hub, d.tokens, db, originHosts(s.cfg.CORSOrigins), logger))

	uploads := http.StripPrefix(storage.URLPrefix, http.FileServer(http.Dir(d.files.Dir())))
	r.Handle(storage.URLPrefix+"*", uploads)

	r.Handle("/*", handler.NewSPAHandler(s.cfg.StaticDir, logger))
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"ok":false,"error":"database unavailable"}` + "\n"))
		return
	}
	w.Write([]byte(`{"ok":true,"status":"healthy"}` + "\n"))
}

// Run serves until ctx is cancelled, then shuts down gracefully. The
// due-date reminder runs alongside the HTTP server and stops with it.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting connections
//  2. Wait up to 30s for in-flight requests
//  3. Return; the caller closes the database
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: it would cut long-lived WebSocket connections.
	}

	reminderCtx, stopReminder := context.WithCancel(ctx)
	defer stopReminder()
	go s.reminder.Run(reminderCtx, s.cfg.Reminder.Interval)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.DBPath),
			slog.Bool("github_sign_in", s.cfg.GitHub.ClientID != ""),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutdown signal received")
	stopReminder()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: graceful shutdown failed: %w", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}

// originHosts turns CORS origins ("http://localhost:5173") into the host
// patterns the WebSocket accept check expects ("localhost:5173").
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			hosts = append(hosts, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
