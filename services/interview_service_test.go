package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veriview/backend/models"
)

func newTestService(t *testing.T) *InterviewService {
	t.Helper()
	return newTestServiceWith(t, nil, nil)
}

func newTestServiceWith(t *testing.T, resumes ResumeSource, feedback *FeedbackPipeline) *InterviewService {
	t.Helper()
	gen := failingGenerator()
	catalog := NewCompanyCatalog()
	config := &Config{
		Interview: InterviewConfig{TotalQuestionLimit: 15, SessionIdleTTLSec: 3600},
		AI:        AIConfig{TimeoutSec: 1, MaxRetries: 1, RateLimitPerMin: 600},
	}
	return NewInterviewService(
		config,
		nil, // provider chain is exercised separately; fallback content suffices here
		catalog,
		NewPersonaFactory(gen, nil, catalog),
		NewQuestionPlanner(gen, catalog),
		NewAICandidate(gen),
		resumes,
		feedback,
		NewGazeTaskRegistry(),
	)
}

// fakeResumeSource serves stored user resumes from a map.
type fakeResumeSource struct {
	resumes map[string]*models.UserResume
}

func (f *fakeResumeSource) GetUserResume(ctx context.Context, userResumeID string) (*models.UserResume, error) {
	return f.resumes[userResumeID], nil
}

func validStartRequest() *StartRequest {
	return &StartRequest{
		UserID:   "user-1",
		UserName: "영희",
		Company:  "네이버",
		Position: "백엔드",
	}
}

func TestStartInterviewValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*StartRequest)
	}{
		{"missing company", func(r *StartRequest) { r.Company = "" }},
		{"missing position", func(r *StartRequest) { r.Position = " " }},
		{"missing user name", func(r *StartRequest) { r.UserName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validStartRequest()
			tt.mutate(req)
			_, err := svc.StartInterview(ctx, req)
			require.ErrorIs(t, err, ErrInvalidSettings)
		})
	}
}

func TestStartInterviewResolvesCompanyAlias(t *testing.T) {
	svc := newTestService(t)
	resp, err := svc.StartInterview(context.Background(), validStartRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.Contains(t, resp.IntroMessage, "네이버")
	assert.Equal(t, "자기소개 부탁드립니다.", resp.FirstQuestion)
	assert.Equal(t, 1, svc.SessionCount())
}

func TestInterviewLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	start, err := svc.StartInterview(ctx, validStartRequest())
	require.NoError(t, err)
	sessionID := start.SessionID

	// Mid-interview, Result reflects the pending question.
	view, err := svc.Result(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusWaitingForUser, view.Status)
	require.NotNil(t, view.Content)
	assert.Equal(t, start.FirstQuestion, view.Content.Question)

	var final *TurnResponse
	for i := 0; i < 40; i++ {
		resp, err := svc.SubmitAnswer(ctx, sessionID, "경험을 설명드리겠습니다.", 30)
		require.NoError(t, err)
		require.NotEqual(t, StatusError, resp.Status)
		if resp.Status == StatusCompleted {
			final = resp
			break
		}
	}
	require.NotNil(t, final, "interview never completed")
	assert.Len(t, final.QAHistory, 26)

	// Submitting after completion is rejected.
	_, err = svc.SubmitAnswer(ctx, sessionID, "늦은 답변", 5)
	require.ErrorIs(t, err, ErrAlreadyCompleted)

	// The completion envelope stays queryable.
	result, err := svc.Result(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Len(t, result.QAHistory, 26)
}

func TestStartInterviewLoadsUserResume(t *testing.T) {
	resumes := &fakeResumeSource{resumes: map[string]*models.UserResume{
		"resume-1": {UserResumeID: "resume-1", UserID: "user-1", Content: "Kubernetes 클러스터 3년 운영"},
	}}
	svc := newTestServiceWith(t, resumes, nil)

	req := validStartRequest()
	req.UserResumeID = "resume-1"
	resp, err := svc.StartInterview(context.Background(), req)
	require.NoError(t, err)

	state := svc.sessions[resp.SessionID].orchestrator.State()
	assert.Equal(t, "Kubernetes 클러스터 3년 운영", state.UserResumeText)

	// An unknown resume ID degrades to resume-free prompts.
	req = validStartRequest()
	req.UserResumeID = "no-such-resume"
	resp, err = svc.StartInterview(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, svc.sessions[resp.SessionID].orchestrator.State().UserResumeText)
}

// TestFeedbackRunsOncePerSession drives a session to completion and checks
// the pipeline fires exactly once, even on a duplicate completion signal.
func TestFeedbackRunsOncePerSession(t *testing.T) {
	store := &interviewStore{}
	pipeline := newTestPipeline(store, &recordingStore{}, nil, NewGazeTaskRegistry(), "")
	svc := newTestServiceWith(t, nil, pipeline)
	ctx := context.Background()

	start, err := svc.StartInterview(ctx, validStartRequest())
	require.NoError(t, err)

	var final *TurnResponse
	for i := 0; i < 40; i++ {
		resp, err := svc.SubmitAnswer(ctx, start.SessionID, "답변입니다.", 20)
		require.NoError(t, err)
		if resp.Status == StatusCompleted {
			final = resp
			break
		}
	}
	require.NotNil(t, final, "interview never completed")

	require.Eventually(t, func() bool { return store.interviewCount() == 1 },
		2*time.Second, 10*time.Millisecond, "completion must trigger the pipeline")

	// Duplicate submits are rejected and the started flag blocks a re-run.
	_, err = svc.SubmitAnswer(ctx, start.SessionID, "늦은 답변", 5)
	require.ErrorIs(t, err, ErrAlreadyCompleted)

	entry, err := svc.touch(start.SessionID)
	require.NoError(t, err)
	svc.onCompleted(entry, final)

	assert.Never(t, func() bool { return store.interviewCount() > 1 },
		300*time.Millisecond, 20*time.Millisecond, "feedback must run exactly once")
}

func TestUnknownSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.SubmitAnswer(ctx, "no-such-session", "답변", 5)
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Result(ctx, "no-such-session")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestEvictIdleSessions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	start, err := svc.StartInterview(ctx, validStartRequest())
	require.NoError(t, err)

	svc.mutex.Lock()
	svc.sessions[start.SessionID].lastActivity = time.Now().Add(-2 * time.Hour)
	svc.mutex.Unlock()

	svc.evictIdle()
	assert.Equal(t, 0, svc.SessionCount())

	_, err = svc.Result(ctx, start.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestConcurrentSessionsAreIsolated(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.StartInterview(ctx, validStartRequest())
	require.NoError(t, err)
	reqB := validStartRequest()
	reqB.Company = "토스"
	reqB.UserName = "철수"
	b, err := svc.StartInterview(ctx, reqB)
	require.NoError(t, err)
	require.NotEqual(t, a.SessionID, b.SessionID)

	_, err = svc.SubmitAnswer(ctx, a.SessionID, "A의 답변", 10)
	require.NoError(t, err)

	// Session B is untouched by A's progress.
	viewB, err := svc.Result(ctx, b.SessionID)
	require.NoError(t, err)
	assert.Equal(t, b.FirstQuestion, viewB.Content.Question)
	assert.Equal(t, 2, svc.SessionCount())
}
