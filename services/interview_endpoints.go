package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/veriview/backend/repository"
)

// InterviewEndpoints exposes the orchestration core over HTTP. The WebSocket
// adapter shares the same InterviewService; both transports emit the same
// envelopes.
type InterviewEndpoints struct {
	service *InterviewService
	repo    *repository.GORMRepository
	storage *S3Storage
}

func NewInterviewEndpoints(service *InterviewService, repo *repository.GORMRepository, storage *S3Storage) *InterviewEndpoints {
	return &InterviewEndpoints{
		service: service,
		repo:    repo,
		storage: storage,
	}
}

type SubmitAnswerRequest struct {
	Answer          string  `json:"answer"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

type UploadURLRequest struct {
	UserID      string `json:"user_id"`
	SessionID   string `json:"session_id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type,omitempty"`
}

type UploadURLResponse struct {
	UploadURL string `json:"upload_url"`
	S3Key     string `json:"s3_key"`
}

type UploadedRequest struct {
	SessionID string  `json:"session_id"`
	UserID    string  `json:"user_id"`
	S3Key     string  `json:"s3_key"`
	FileName  string  `json:"file_name"`
	FileSize  int64   `json:"file_size,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
}

func (e *InterviewEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/interview", func(r chi.Router) {
		r.Post("/start", e.StartHandler)
		r.Post("/{sessionID}/answer", e.AnswerHandler)
		r.Get("/{sessionID}/result", e.ResultHandler)
	})

	r.Route("/interviews", func(r chi.Router) {
		r.Get("/{interviewID}", e.GetInterviewHandler)
	})

	r.Route("/gaze", func(r chi.Router) {
		r.Post("/upload-url", e.UploadURLHandler)
		r.Post("/uploaded", e.UploadedHandler)
		r.Get("/{interviewID}", e.GetGazeHandler)
	})
}

func (e *InterviewEndpoints) StartHandler(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := e.service.StartInterview(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (e *InterviewEndpoints) AnswerHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := e.service.SubmitAnswer(r.Context(), sessionID, req.Answer, req.DurationSeconds)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *InterviewEndpoints) ResultHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	resp, err := e.service.Result(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetInterviewHandler serves the persisted record written by the feedback
// pipeline, including history details.
func (e *InterviewEndpoints) GetInterviewHandler(w http.ResponseWriter, r *http.Request) {
	if e.repo == nil {
		http.Error(w, "Database not configured", http.StatusServiceUnavailable)
		return
	}
	interviewID := chi.URLParam(r, "interviewID")

	interview, err := e.repo.GetInterview(r.Context(), interviewID)
	if err != nil {
		http.Error(w, "Failed to get interview", http.StatusInternalServerError)
		return
	}
	if interview == nil {
		http.Error(w, "Interview not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, interview)
}

// UploadURLHandler hands out a pre-signed PUT URL for a gaze recording.
func (e *InterviewEndpoints) UploadURLHandler(w http.ResponseWriter, r *http.Request) {
	if e.storage == nil {
		http.Error(w, "Media storage not configured", http.StatusServiceUnavailable)
		return
	}

	var req UploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.FileName == "" {
		http.Error(w, "session_id and file_name are required", http.StatusBadRequest)
		return
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = contentTypeFor(req.FileName)
	}

	key := GazeVideoKey(req.UserID, req.SessionID, extOf(req.FileName))
	url, err := e.storage.PresignedPutURL(r.Context(), key, contentType)
	if err != nil {
		http.Error(w, "Failed to create upload URL", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, UploadURLResponse{UploadURL: url, S3Key: key})
}

// UploadedHandler parks the finished upload so the feedback pipeline can link
// it once the session completes.
func (e *InterviewEndpoints) UploadedHandler(w http.ResponseWriter, r *http.Request) {
	var req UploadedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.S3Key == "" {
		http.Error(w, "session_id and s3_key are required", http.StatusBadRequest)
		return
	}

	e.service.GazeTasks().Register(&GazeTask{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		S3Key:     req.S3Key,
		FileName:  req.FileName,
		FileSize:  req.FileSize,
		Duration:  req.Duration,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "registered"})
}

func (e *InterviewEndpoints) GetGazeHandler(w http.ResponseWriter, r *http.Request) {
	if e.repo == nil {
		http.Error(w, "Database not configured", http.StatusServiceUnavailable)
		return
	}
	interviewID := chi.URLParam(r, "interviewID")

	analysis, err := e.repo.GetGazeAnalysisByInterview(r.Context(), interviewID)
	if err != nil {
		http.Error(w, "Failed to get gaze analysis", http.StatusInternalServerError)
		return
	}
	if analysis == nil {
		http.Error(w, "Gaze analysis not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// writeServiceError maps service sentinels onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidSettings):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrAlreadyCompleted):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrUpstreamUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		slog.Error("Unhandled service error", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func extOf(fileName string) string {
	for i := len(fileName) - 1; i >= 0; i-- {
		if fileName[i] == '.' {
			return fileName[i+1:]
		}
		if fileName[i] == '/' {
			break
		}
	}
	return ""
}
