package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/veriview/backend/models"
)

// Sentinel errors surfaced to the transport layer.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrAlreadyCompleted = errors.New("interview already completed")
	ErrInvalidSettings  = errors.New("invalid interview settings")
)

const evictionInterval = time.Minute

// gazeTaskMaxAge bounds how long an orphaned upload notification is kept.
const gazeTaskMaxAge = 2 * time.Hour

// StartRequest carries the client's interview settings.
type StartRequest struct {
	UserID          string `json:"user_id"`
	UserName        string `json:"user_name"`
	Company         string `json:"company"`
	Position        string `json:"position"`
	PostingID       string `json:"posting_id,omitempty"`
	UserResumeID    string `json:"user_resume_id,omitempty"`
	CalibrationData string `json:"calibration_data,omitempty"`
	QuestionLimit   int    `json:"total_question_limit,omitempty"`
}

// ResumeSource looks up the user's stored resume when the settings carry a
// user_resume_id, so the planner can ground questions in it.
type ResumeSource interface {
	GetUserResume(ctx context.Context, userResumeID string) (*models.UserResume, error)
}

type sessionEntry struct {
	orchestrator    *Orchestrator
	lastActivity    time.Time
	completion      *TurnResponse
	feedbackStarted bool
}

// InterviewService owns the in-memory session registry and coordinates the
// per-session orchestrators with the background feedback pipeline.
type InterviewService struct {
	mutex    sync.Mutex
	sessions map[string]*sessionEntry

	config    *Config
	llm       *LLMClient
	catalog   *CompanyCatalog
	personas  *PersonaFactory
	planner   *QuestionPlanner
	candidate *AICandidate
	resumes   ResumeSource
	feedback  *FeedbackPipeline
	gazeTasks *GazeTaskRegistry

	stopCh chan struct{}
}

func NewInterviewService(
	config *Config,
	llm *LLMClient,
	catalog *CompanyCatalog,
	personas *PersonaFactory,
	planner *QuestionPlanner,
	candidate *AICandidate,
	resumes ResumeSource,
	feedback *FeedbackPipeline,
	gazeTasks *GazeTaskRegistry,
) *InterviewService {
	return &InterviewService{
		sessions:  make(map[string]*sessionEntry),
		config:    config,
		llm:       llm,
		catalog:   catalog,
		personas:  personas,
		planner:   planner,
		candidate: candidate,
		resumes:   resumes,
		feedback:  feedback,
		gazeTasks: gazeTasks,
		stopCh:    make(chan struct{}),
	}
}

// StartInterview validates the settings, builds the session, and runs the
// initial flow.
func (s *InterviewService) StartInterview(ctx context.Context, req *StartRequest) (*StartResponse, error) {
	if strings.TrimSpace(req.Company) == "" {
		return nil, fmt.Errorf("%w: company is required", ErrInvalidSettings)
	}
	if strings.TrimSpace(req.Position) == "" {
		return nil, fmt.Errorf("%w: position is required", ErrInvalidSettings)
	}
	if strings.TrimSpace(req.UserName) == "" {
		return nil, fmt.Errorf("%w: user_name is required", ErrInvalidSettings)
	}

	companyID := s.catalog.Resolve(req.Company)
	profile, err := s.catalog.Profile(companyID)
	if err != nil {
		profile = s.catalog.GenericProfile(companyID)
	}

	limit := req.QuestionLimit
	if limit <= 0 {
		limit = s.config.Interview.TotalQuestionLimit
	}

	state := NewSessionState(uuid.NewString(), limit)
	state.CompanyID = companyID
	state.Position = req.Position
	state.UserID = req.UserID
	state.UserName = req.UserName
	state.PostingID = req.PostingID
	state.UserResumeID = req.UserResumeID
	state.CalibrationData = req.CalibrationData
	state.Company = profile
	state.UserResumeText = s.loadUserResume(ctx, req.UserResumeID)

	persona := s.personas.CreatePersona(ctx, companyID, req.Position)
	state.Persona = persona
	state.AIResumeID = persona.ResumeID

	orch := NewOrchestrator(state, s.planner, s.candidate, s.llm)
	s.mutex.Lock()
	s.sessions[state.SessionID] = &sessionEntry{
		orchestrator: orch,
		lastActivity: time.Now(),
	}
	count := len(s.sessions)
	s.mutex.Unlock()

	slog.Info("Interview session started",
		"session_id", state.SessionID,
		"company_id", companyID,
		"position", req.Position,
		"question_limit", limit,
		"active_sessions", count)

	return orch.StartFlow(ctx), nil
}

// loadUserResume fetches the stored resume text for question grounding. Any
// failure degrades to resume-free prompts.
func (s *InterviewService) loadUserResume(ctx context.Context, userResumeID string) string {
	if userResumeID == "" || s.resumes == nil {
		return ""
	}
	resume, err := s.resumes.GetUserResume(ctx, userResumeID)
	if err != nil {
		slog.Warn("Failed to load user resume", "user_resume_id", userResumeID, "error", err)
		return ""
	}
	if resume == nil {
		slog.Warn("User resume not found", "user_resume_id", userResumeID)
		return ""
	}
	return resume.Content
}

// SubmitAnswer records the user's answer and advances the session. The first
// completed envelope also schedules the feedback pipeline, exactly once.
func (s *InterviewService) SubmitAnswer(ctx context.Context, sessionID, answer string, duration float64) (*TurnResponse, error) {
	entry, err := s.touch(sessionID)
	if err != nil {
		return nil, err
	}
	if entry.isCompleted() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyCompleted, sessionID)
	}

	resp := entry.orchestrator.ProcessUserAnswer(ctx, answer, duration)
	if resp.Status == StatusCompleted {
		s.onCompleted(entry, resp)
	}
	return resp, nil
}

// Result returns the session's current envelope: the retained completion
// envelope for finished sessions, or the pending-question view for live ones.
func (s *InterviewService) Result(ctx context.Context, sessionID string) (*TurnResponse, error) {
	entry, err := s.touch(sessionID)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	completion := entry.completion
	s.mutex.Unlock()
	if completion != nil {
		return completion, nil
	}
	return entry.orchestrator.View(), nil
}

// onCompleted retains the completion envelope and fires the feedback pipeline
// at most once per session.
func (s *InterviewService) onCompleted(entry *sessionEntry, resp *TurnResponse) {
	s.mutex.Lock()
	entry.completion = resp
	start := !entry.feedbackStarted
	entry.feedbackStarted = true
	s.mutex.Unlock()

	if start && s.feedback != nil {
		snapshot := entry.orchestrator.Snapshot()
		go s.feedback.Run(snapshot)
	}
}

func (s *InterviewService) touch(sessionID string) (*sessionEntry, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	entry.lastActivity = time.Now()
	return entry, nil
}

func (e *sessionEntry) isCompleted() bool {
	return e.orchestrator.State().IsCompleted
}

// SessionCount reports the number of live sessions, for the health endpoint.
func (s *InterviewService) SessionCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.sessions)
}

// GazeTasks exposes the upload registry to the transport layer.
func (s *InterviewService) GazeTasks() *GazeTaskRegistry {
	return s.gazeTasks
}

// StartEvictionLoop runs the idle-session sweeper until Stop is called.
func (s *InterviewService) StartEvictionLoop() {
	go func() {
		ticker := time.NewTicker(evictionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.evictIdle()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop halts the eviction loop.
func (s *InterviewService) Stop() {
	close(s.stopCh)
}

func (s *InterviewService) evictIdle() {
	ttl := s.config.Interview.SessionIdleTTL()
	cutoff := time.Now().Add(-ttl)

	s.mutex.Lock()
	var evicted []string
	for id, entry := range s.sessions {
		if entry.lastActivity.Before(cutoff) {
			delete(s.sessions, id)
			evicted = append(evicted, id)
		}
	}
	remaining := len(s.sessions)
	s.mutex.Unlock()

	for _, id := range evicted {
		slog.Info("Evicted idle session", "session_id", id, "ttl", ttl)
	}
	if s.gazeTasks != nil {
		if dropped := s.gazeTasks.Prune(gazeTaskMaxAge); dropped > 0 {
			slog.Info("Pruned stale gaze tasks", "dropped", dropped)
		}
	}
	if len(evicted) > 0 {
		slog.Info("Session sweep finished", "evicted", len(evicted), "remaining", remaining)
	}
}
