package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// GazeResult is the scored output of the gaze engine for one recording.
type GazeResult struct {
	GazeScore         float64 `json:"gaze_score"`
	JitterScore       float64 `json:"jitter_score"`
	ComplianceScore   float64 `json:"compliance_score"`
	StabilityRating   string  `json:"stability_rating"`
	GazePoints        string  `json:"gaze_points,omitempty"`
	CalibrationPoints string  `json:"calibration_points,omitempty"`
	VideoMetadata     string  `json:"video_metadata,omitempty"`
}

// GazeAnalyzer scores a stored recording. The production implementation calls
// the external gaze engine; tests supply fakes.
type GazeAnalyzer interface {
	Analyze(ctx context.Context, videoURL, calibrationData string) (*GazeResult, error)
}

// baselineGazeResult is recorded when no analyzer is configured or the
// engine fails, so the interview still gets a gaze row to display.
func baselineGazeResult(calibrationData string) *GazeResult {
	return &GazeResult{
		GazeScore:         70,
		JitterScore:       70,
		ComplianceScore:   70,
		StabilityRating:   stabilityRating(70),
		CalibrationPoints: calibrationData,
	}
}

func stabilityRating(score float64) string {
	switch {
	case score >= 85:
		return "안정적"
	case score >= 60:
		return "보통"
	default:
		return "불안정"
	}
}

// GazeTask is a client-side upload reported through the pre-signed URL path,
// parked until the owning session completes and gets an interview_id.
type GazeTask struct {
	SessionID  string
	UserID     string
	S3Key      string
	FileName   string
	FileSize   int64
	Duration   float64
	UploadedAt time.Time
}

// GazeTaskRegistry holds uploaded-recording notifications keyed by session ID
// until the feedback pipeline consumes them.
type GazeTaskRegistry struct {
	mutex sync.Mutex
	tasks map[string]*GazeTask
}

func NewGazeTaskRegistry() *GazeTaskRegistry {
	return &GazeTaskRegistry{tasks: make(map[string]*GazeTask)}
}

// Register parks an upload notification; a later notification for the same
// session replaces the earlier one.
func (r *GazeTaskRegistry) Register(task *GazeTask) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	task.UploadedAt = time.Now()
	r.tasks[task.SessionID] = task
	slog.Info("Gaze upload registered", "session_id", task.SessionID, "s3_key", task.S3Key)
}

// Take removes and returns the parked task for a session, if any.
func (r *GazeTaskRegistry) Take(sessionID string) *GazeTask {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	task, ok := r.tasks[sessionID]
	if !ok {
		return nil
	}
	delete(r.tasks, sessionID)
	return task
}

// Prune drops tasks older than maxAge and returns how many were dropped.
func (r *GazeTaskRegistry) Prune(maxAge time.Duration) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	cutoff := time.Now().Add(-maxAge)
	dropped := 0
	for id, task := range r.tasks {
		if task.UploadedAt.Before(cutoff) {
			delete(r.tasks, id)
			dropped++
		}
	}
	return dropped
}
