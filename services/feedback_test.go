package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veriview/backend/models"
)

// interviewStore is an in-memory InterviewStore.
type interviewStore struct {
	mu         sync.Mutex
	createErr  error
	interviews []*models.Interview
	details    []models.HistoryDetail
	plans      map[string]string
}

func (s *interviewStore) CreateInterview(ctx context.Context, interview *models.Interview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	interview.InterviewID = fmt.Sprintf("iv-%d", len(s.interviews)+1)
	s.interviews = append(s.interviews, interview)
	return nil
}

func (s *interviewStore) CreateHistoryDetails(ctx context.Context, details []models.HistoryDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details = append(s.details, details...)
	return nil
}

func (s *interviewStore) UpdateInterviewPlan(ctx context.Context, interviewID, plan string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plans == nil {
		s.plans = make(map[string]string)
	}
	s.plans[interviewID] = plan
	return nil
}

func (s *interviewStore) interviewCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.interviews)
}

// recordingStore is an in-memory RecordingStore.
type recordingStore struct {
	mu       sync.Mutex
	media    []*models.MediaFile
	analyses []*models.GazeAnalysis
}

func (s *recordingStore) CreateMediaFile(ctx context.Context, media *models.MediaFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media = append(s.media, media)
	return nil
}

func (s *recordingStore) CreateGazeAnalysis(ctx context.Context, analysis *models.GazeAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses = append(s.analyses, analysis)
	return nil
}

// fakeAnalyzer scripts GazeAnalyzer behavior for tests.
type fakeAnalyzer struct {
	mu     sync.Mutex
	videos []string
	result *GazeResult
	err    error
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, videoURL, calibrationData string) (*GazeResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.videos = append(a.videos, videoURL)
	if a.err != nil {
		return nil, a.err
	}
	if a.result != nil {
		return a.result, nil
	}
	return baselineGazeResult(calibrationData), nil
}

func completedSessionState() *SessionState {
	s := newTestState(15)
	s.UserID = "user-1"
	s.IsCompleted = true
	q := QuestionRecord{ID: 1, Kind: KindRoleMain, Content: "기술 질문", Role: RoleHR}
	recordBoth(s, &q)
	return s
}

func newTestPipeline(store InterviewStore, rec RecordingStore, analyzer GazeAnalyzer, tasks *GazeTaskRegistry, tempDir string) *FeedbackPipeline {
	p := NewFeedbackPipeline(NewEvaluationService(nil, store), rec, nil, analyzer, tasks, tempDir)
	p.delay = 0
	return p
}

func TestFeedbackPipelineLinksTempRecording(t *testing.T) {
	tempDir := t.TempDir()
	s := completedSessionState()
	path := filepath.Join(tempDir, s.SessionID+".webm")
	require.NoError(t, os.WriteFile(path, []byte("video-bytes"), 0o644))

	store := &interviewStore{}
	rec := &recordingStore{}
	analyzer := &fakeAnalyzer{result: &GazeResult{GazeScore: 88, JitterScore: 90, ComplianceScore: 85}}
	p := newTestPipeline(store, rec, analyzer, NewGazeTaskRegistry(), tempDir)

	p.Run(s)

	require.Equal(t, 1, store.interviewCount())
	interviewID := store.interviews[0].InterviewID

	require.Len(t, rec.media, 1)
	media := rec.media[0]
	assert.Equal(t, s.SessionID+".webm", media.FileName)
	assert.Equal(t, GazeTrackingKey(interviewID, media.FileName), media.S3Key)
	assert.Equal(t, int64(len("video-bytes")), media.FileSize)
	assert.Equal(t, interviewID, media.InterviewID)

	require.Len(t, rec.analyses, 1)
	assert.Equal(t, interviewID, rec.analyses[0].InterviewID)
	assert.Equal(t, 88.0, rec.analyses[0].GazeScore)
	assert.Equal(t, "안정적", rec.analyses[0].StabilityRating)
	assert.Equal(t, []string{path}, analyzer.videos)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "temp recording must be removed")
}

func TestFeedbackPipelineRemovesTempRecordingOnEvaluationFailure(t *testing.T) {
	tempDir := t.TempDir()
	s := completedSessionState()
	path := filepath.Join(tempDir, s.SessionID+".webm")
	require.NoError(t, os.WriteFile(path, []byte("video-bytes"), 0o644))

	store := &interviewStore{createErr: fmt.Errorf("scripted write failure")}
	rec := &recordingStore{}
	p := newTestPipeline(store, rec, nil, NewGazeTaskRegistry(), tempDir)

	p.Run(s)

	assert.Empty(t, rec.media)
	assert.Empty(t, rec.analyses)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "temp recording must be removed even when evaluation fails")
}

func TestFeedbackPipelineLinksUploadedRecording(t *testing.T) {
	s := completedSessionState()
	tasks := NewGazeTaskRegistry()
	tasks.Register(&GazeTask{
		SessionID: s.SessionID,
		UserID:    s.UserID,
		S3Key:     "gaze-videos/user-1/" + s.SessionID + "/1.webm",
		FileName:  "1.webm",
		FileSize:  2048,
		Duration:  93.5,
	})

	store := &interviewStore{}
	rec := &recordingStore{}
	p := newTestPipeline(store, rec, nil, tasks, "")

	p.Run(s)

	require.Len(t, rec.media, 1)
	assert.Equal(t, "1.webm", rec.media[0].FileName)
	assert.Equal(t, int64(2048), rec.media[0].FileSize)
	assert.Equal(t, 93.5, rec.media[0].Duration)
	require.Len(t, rec.analyses, 1)
	assert.Nil(t, tasks.Take(s.SessionID), "linked task must be consumed")
}

func TestFeedbackPipelineWithoutRecording(t *testing.T) {
	s := completedSessionState()
	store := &interviewStore{}
	rec := &recordingStore{}
	p := newTestPipeline(store, rec, nil, NewGazeTaskRegistry(), t.TempDir())

	p.Run(s)

	assert.Equal(t, 1, store.interviewCount(), "evaluation must run without a recording")
	assert.Empty(t, rec.media)
	assert.Empty(t, rec.analyses)
}
