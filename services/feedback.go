package services

import (
	"context"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/veriview/backend/models"
)

// feedbackDelay gives the client a short window to finish uploading its gaze
// recording after the completion envelope before the pipeline looks for it.
const feedbackDelay = 5 * time.Second

const feedbackTimeout = 5 * time.Minute

// RecordingStore is the slice of the repository the gaze linkage writes to.
type RecordingStore interface {
	CreateMediaFile(ctx context.Context, media *models.MediaFile) error
	CreateGazeAnalysis(ctx context.Context, analysis *models.GazeAnalysis) error
}

// FeedbackPipeline is the post-interview background task: evaluate the
// transcript, then link whatever gaze recording exists to the new interview.
// It runs on a session snapshot and never reports errors to the client; every
// failure is logged and the rest of the pipeline continues where it can.
type FeedbackPipeline struct {
	evaluator *EvaluationService
	repo      RecordingStore
	storage   *S3Storage
	analyzer  GazeAnalyzer
	gazeTasks *GazeTaskRegistry
	tempDir   string
	delay     time.Duration
}

func NewFeedbackPipeline(
	evaluator *EvaluationService,
	repo RecordingStore,
	storage *S3Storage,
	analyzer GazeAnalyzer,
	gazeTasks *GazeTaskRegistry,
	tempDir string,
) *FeedbackPipeline {
	return &FeedbackPipeline{
		evaluator: evaluator,
		repo:      repo,
		storage:   storage,
		analyzer:  analyzer,
		gazeTasks: gazeTasks,
		tempDir:   tempDir,
		delay:     feedbackDelay,
	}
}

// Run executes the pipeline for one completed session. Intended to be called
// in its own goroutine, at most once per session.
func (p *FeedbackPipeline) Run(s *SessionState) {
	time.Sleep(p.delay)

	ctx, cancel := context.WithTimeout(context.Background(), feedbackTimeout)
	defer cancel()

	// The temp recording is removed no matter how far the pipeline gets; a
	// failed evaluation or upload must not strand files in the temp dir.
	tempPath := p.findTempRecording(s.SessionID)
	if tempPath != "" {
		defer p.removeTempRecording(tempPath)
	}

	interview, err := p.evaluator.Evaluate(ctx, s)
	if err != nil {
		slog.Error("Post-interview evaluation failed", "session_id", s.SessionID, "error", err)
		return
	}

	p.linkGazeRecording(ctx, s, interview, tempPath)
}

// linkGazeRecording binds the session's recording to the interview. The
// server-side temp file is checked before the pre-signed upload registry; at
// most one recording is linked.
func (p *FeedbackPipeline) linkGazeRecording(ctx context.Context, s *SessionState, interview *models.Interview, tempPath string) {
	if tempPath != "" {
		p.linkTempRecording(ctx, s, interview, tempPath)
		return
	}
	if p.gazeTasks != nil {
		if task := p.gazeTasks.Take(s.SessionID); task != nil {
			p.linkUploadedRecording(ctx, s, interview, task)
			return
		}
	}
	slog.Info("No gaze recording for session", "session_id", s.SessionID, "interview_id", interview.InterviewID)
}

func (p *FeedbackPipeline) findTempRecording(sessionID string) string {
	if p.tempDir == "" {
		return ""
	}
	matches, err := filepath.Glob(filepath.Join(p.tempDir, sessionID+".*"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// linkTempRecording handles recordings streamed to local disk during the
// session: upload to permanent storage, record the media row, and analyze.
// The caller owns removal of the temp file.
func (p *FeedbackPipeline) linkTempRecording(ctx context.Context, s *SessionState, interview *models.Interview, path string) {
	fileName := filepath.Base(path)
	videoURL := path

	info, err := os.Stat(path)
	if err != nil {
		slog.Error("Temp gaze recording vanished", "path", path, "error", err)
		return
	}

	key := GazeTrackingKey(interview.InterviewID, fileName)
	if p.storage != nil {
		file, err := os.Open(path)
		if err != nil {
			slog.Error("Failed to open temp gaze recording", "path", path, "error", err)
			return
		}
		url, err := p.storage.UploadFile(ctx, key, contentTypeFor(fileName), file)
		file.Close()
		if err != nil {
			slog.Error("Failed to upload gaze recording", "path", path, "error", err)
			return
		}
		videoURL = url
	}

	p.recordMedia(ctx, s, interview, &models.MediaFile{
		UserID:      s.UserID,
		InterviewID: interview.InterviewID,
		FileName:    fileName,
		FileType:    contentTypeFor(fileName),
		S3Key:       key,
		S3URL:       videoURL,
		FileSize:    info.Size(),
	})
	p.recordGaze(ctx, s, interview, videoURL)
}

func (p *FeedbackPipeline) removeTempRecording(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove temp gaze recording", "path", path, "error", err)
	}
}

// linkUploadedRecording handles recordings the client PUT directly to object
// storage via a pre-signed URL: promote the object to its permanent key,
// record the media row, and analyze.
func (p *FeedbackPipeline) linkUploadedRecording(ctx context.Context, s *SessionState, interview *models.Interview, task *GazeTask) {
	key := task.S3Key
	videoURL := ""

	if p.storage != nil {
		dstKey := GazeTrackingKey(interview.InterviewID, task.FileName)
		if err := p.storage.CopyObject(ctx, task.S3Key, dstKey); err == nil {
			key = dstKey
		}
		url, err := p.storage.PresignedGetURL(ctx, key)
		if err != nil {
			slog.Warn("Failed to presign gaze recording", "key", key, "error", err)
		} else {
			videoURL = url
		}
	}

	p.recordMedia(ctx, s, interview, &models.MediaFile{
		UserID:      s.UserID,
		InterviewID: interview.InterviewID,
		FileName:    task.FileName,
		FileType:    contentTypeFor(task.FileName),
		S3Key:       key,
		S3URL:       videoURL,
		FileSize:    task.FileSize,
		Duration:    task.Duration,
	})
	p.recordGaze(ctx, s, interview, videoURL)
}

func (p *FeedbackPipeline) recordMedia(ctx context.Context, s *SessionState, interview *models.Interview, media *models.MediaFile) {
	if p.repo == nil {
		return
	}
	if err := p.repo.CreateMediaFile(ctx, media); err != nil {
		slog.Error("Failed to record media file", "interview_id", interview.InterviewID, "error", err)
	}
}

// recordGaze scores the recording and writes the gaze row. Analyzer failures
// degrade to the baseline result rather than losing the linkage.
func (p *FeedbackPipeline) recordGaze(ctx context.Context, s *SessionState, interview *models.Interview, videoURL string) {
	if p.repo == nil {
		return
	}

	result := baselineGazeResult(s.CalibrationData)
	if p.analyzer != nil {
		scored, err := p.analyzer.Analyze(ctx, videoURL, s.CalibrationData)
		if err != nil {
			slog.Warn("Gaze analysis failed, recording baseline",
				"interview_id", interview.InterviewID, "error", err)
		} else if scored != nil {
			result = scored
			if result.StabilityRating == "" {
				result.StabilityRating = stabilityRating(result.GazeScore)
			}
		}
	}

	analysis := &models.GazeAnalysis{
		InterviewID:       interview.InterviewID,
		UserID:            s.UserID,
		GazeScore:         result.GazeScore,
		JitterScore:       result.JitterScore,
		ComplianceScore:   result.ComplianceScore,
		StabilityRating:   result.StabilityRating,
		GazePoints:        result.GazePoints,
		CalibrationPoints: result.CalibrationPoints,
		VideoMetadata:     result.VideoMetadata,
	}
	if err := p.repo.CreateGazeAnalysis(ctx, analysis); err != nil {
		slog.Error("Failed to record gaze analysis", "interview_id", interview.InterviewID, "error", err)
	}
}

func contentTypeFor(fileName string) string {
	if ct := mime.TypeByExtension(filepath.Ext(fileName)); ct != "" {
		return ct
	}
	return "video/webm"
}
