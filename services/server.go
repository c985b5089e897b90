package services

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veriview/backend/repository"
	ws "github.com/veriview/backend/websocket"
	"gorm.io/gorm"
)

// Server holds all server dependencies
type Server struct {
	config *Config
	gormDB *repository.GORMRepository
	rawDB  *gorm.DB
	pool   *pgxpool.Pool

	llmClient          *LLMClient
	catalog            *CompanyCatalog
	personaFactory     *PersonaFactory
	planner            *QuestionPlanner
	candidate          *AICandidate
	evaluator          *EvaluationService
	storage            *S3Storage
	gazeTasks          *GazeTaskRegistry
	feedback           *FeedbackPipeline
	interviewService   *InterviewService
	interviewEndpoints *InterviewEndpoints
	websocketHandler   *WebSocketHandler
	wsHub              *ws.Hub
	upgrader           websocket.Upgrader
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
	}
}

// SetDatabase sets the database connections established in main.go.
func (s *Server) SetDatabase(db *repository.GORMRepository, rawDB *gorm.DB, pool *pgxpool.Pool) {
	s.gormDB = db
	s.rawDB = rawDB
	s.pool = pool
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices(ctx context.Context) error {
	// Text generation providers, primary first
	var providers []TextGenerator
	if s.config.AI.GeminiAPIKey != "" {
		gemini, err := NewGeminiProvider(s.config.AI.GeminiAPIKey)
		if err != nil {
			slog.Error("Failed to initialize Gemini provider", "error", err)
		} else {
			providers = append(providers, gemini)
			slog.Info("Gemini provider initialized", "model", GeminiModelName)
		}
	}
	if s.config.AI.OpenAIAPIKey != "" {
		openai, err := NewOpenAIProvider(s.config.AI.OpenAIAPIKey)
		if err != nil {
			slog.Error("Failed to initialize OpenAI provider", "error", err)
		} else {
			providers = append(providers, openai)
			slog.Info("OpenAI provider initialized", "model", OpenAIModelName)
		}
	}
	if len(providers) == 0 {
		slog.Warn("No LLM providers configured, sessions will run on fallback content")
	}
	s.llmClient = NewLLMClient(&s.config.AI, providers...)

	// Company catalog: bundled defaults overlaid with database rows
	s.catalog = NewCompanyCatalog()
	if s.pool != nil {
		if err := s.catalog.LoadFromDatabase(ctx, s.pool); err != nil {
			slog.Warn("Failed to load companies from database, using bundled catalog", "error", err)
		}
	}

	// Object storage for gaze recordings
	storage, err := NewS3Storage(ctx, &s.config.AWS)
	if err != nil {
		slog.Warn("Failed to initialize media storage", "error", err)
	} else {
		s.storage = storage
	}

	// Interview core
	s.personaFactory = NewPersonaFactory(s.llmClient, s.gormDB, s.catalog)
	s.planner = NewQuestionPlanner(s.llmClient, s.catalog)
	s.candidate = NewAICandidate(s.llmClient)
	s.gazeTasks = NewGazeTaskRegistry()

	if s.gormDB != nil {
		s.evaluator = NewEvaluationService(s.llmClient, s.gormDB)
		s.feedback = NewFeedbackPipeline(
			s.evaluator, s.gormDB, s.storage, nil, s.gazeTasks,
			s.config.Interview.TempGazeDir)
		slog.Info("Feedback pipeline initialized", "temp_gaze_dir", s.config.Interview.TempGazeDir)
	} else {
		slog.Warn("Database not configured, completed interviews will not be persisted")
	}

	var resumes ResumeSource
	if s.gormDB != nil {
		resumes = s.gormDB
	}
	s.interviewService = NewInterviewService(
		s.config, s.llmClient, s.catalog, s.personaFactory,
		s.planner, s.candidate, resumes, s.feedback, s.gazeTasks)
	s.interviewService.StartEvictionLoop()

	s.interviewEndpoints = NewInterviewEndpoints(s.interviewService, s.gormDB, s.storage)
	s.websocketHandler = NewWebSocketHandler(s.interviewService)

	s.wsHub = ws.NewHub()
	go s.wsHub.Run()

	slog.Info("Services initialized")
	return nil
}

// InterviewService exposes the core service, mainly for tests.
func (s *Server) InterviewService() *InterviewService {
	return s.interviewService
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health endpoint
	r.Get("/health", s.healthHandler)

	// API v1 route group
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ws", s.websocketHandlerFunc)
		s.interviewEndpoints.RegisterRoutes(r)
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.SetupRoutes(),
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	s.interviewService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// websocketHandlerFunc upgrades the connection and attaches the interview
// message handler.
func (s *Server) websocketHandlerFunc(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	userID := r.URL.Query().Get("user_id")
	client := s.wsHub.RegisterClient(conn, userID)
	client.MessageHandler = s.websocketHandler.HandleMessage

	go client.WritePump()
	go client.ReadPump()
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// If no allowed origins are configured, deny all requests for security
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	allowedOrigins := strings.Split(allowedOriginsStr, ",")
	for i := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
	}

	for _, allowed := range allowedOrigins {
		if allowed == origin {
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"

	if s.rawDB != nil {
		if sqlDB, err := s.rawDB.DB(); err == nil {
			if err := sqlDB.Ping(); err != nil {
				dbStatus = "down"
				status = "degraded"
			} else {
				dbStatus = "up"
			}
		} else {
			dbStatus = "down"
			status = "degraded"
		}
	}

	sessions := 0
	if s.interviewService != nil {
		sessions = s.interviewService.SessionCount()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          status,
		"database":        dbStatus,
		"active_sessions": sessions,
	})
}
