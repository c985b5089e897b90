package services

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T, limit int) *Orchestrator {
	t.Helper()
	gen := failingGenerator()
	state := newTestState(limit)
	planner := NewQuestionPlanner(gen, NewCompanyCatalog())
	candidate := NewAICandidate(gen)
	return NewOrchestrator(state, planner, candidate, nil)
}

// TestFullInterviewFlow drives an interview to completion through the
// orchestrator on deterministic fallback content and checks every invariant
// the transcript must satisfy.
func TestFullInterviewFlow(t *testing.T) {
	orch := newTestOrchestrator(t, 15)
	ctx := context.Background()

	start := orch.StartFlow(ctx)
	require.NotNil(t, start)
	assert.Equal(t, "test-session", start.SessionID)
	assert.NotEmpty(t, start.IntroMessage)
	assert.Equal(t, "자기소개 부탁드립니다.", start.FirstQuestion)
	assert.True(t, start.TurnInfo.IsUserTurn)

	var final *TurnResponse
	for i := 0; i < 40; i++ {
		resp := orch.ProcessUserAnswer(ctx, "저는 이런 경험이 있습니다.", 42.5)
		require.NotEqual(t, StatusError, resp.Status, "turn %d errored: %s", i, resp.ErrorMessage)
		if resp.Status == StatusCompleted {
			final = resp
			break
		}
		require.Equal(t, StatusWaitingForUser, resp.Status)
		require.NotNil(t, resp.Content)
		require.NotEmpty(t, resp.Content.Question)
	}
	require.NotNil(t, final, "interview never completed")

	state := orch.State()
	assert.True(t, state.IsCompleted)
	assert.Equal(t, 14, state.TurnCount)
	assert.Len(t, final.QAHistory, 26)
	assert.False(t, final.TurnInfo.IsUserTurn)

	// The two fixed questions are answered by the user only; every other
	// question has exactly one user and one AI entry, adjacent and sharing a
	// question ID.
	perQuestion := make(map[int][]Answerer)
	for _, entry := range final.QAHistory {
		perQuestion[entry.Answer.QuestionID] = append(perQuestion[entry.Answer.QuestionID], entry.Answer.Answerer)
	}
	assert.Len(t, perQuestion, 14)

	single, double := 0, 0
	for id, answerers := range perQuestion {
		switch len(answerers) {
		case 1:
			assert.Equal(t, AnswererUser, answerers[0], "question %d single answer must be the user's", id)
			single++
		case 2:
			assert.ElementsMatch(t, []Answerer{AnswererUser, AnswererAI}, answerers, "question %d", id)
			double++
		default:
			t.Fatalf("question %d has %d answers", id, len(answerers))
		}
	}
	assert.Equal(t, 2, single)
	assert.Equal(t, 12, double)

	// Duration is only tracked for user answers.
	for _, entry := range final.QAHistory {
		if entry.Answer.Answerer == AnswererUser {
			assert.Equal(t, 42.5, entry.Answer.DurationSeconds)
		} else {
			assert.Zero(t, entry.Answer.DurationSeconds)
		}
	}
}

func TestProcessUserAnswerAfterCompletionReturnsCompletion(t *testing.T) {
	orch := newTestOrchestrator(t, 15)
	ctx := context.Background()
	orch.StartFlow(ctx)

	for i := 0; i < 40; i++ {
		if resp := orch.ProcessUserAnswer(ctx, "답변", 10); resp.Status == StatusCompleted {
			break
		}
	}
	require.True(t, orch.State().IsCompleted)

	resp := orch.ProcessUserAnswer(ctx, "추가 답변", 10)
	assert.Equal(t, StatusCompleted, resp.Status)
	assert.Len(t, resp.QAHistory, 26, "late answers must not mutate the transcript")
}

func TestFormatQuestionForAI(t *testing.T) {
	orch := newTestOrchestrator(t, 15)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "vocative rewritten",
			in:   "영희님, 프로젝트 경험을 말씀해 주세요.",
			want: "AI 지원자님, 프로젝트 경험을 말씀해 주세요.",
		},
		{
			name: "vocative with space",
			in:   "영희 님의 의견은 어떤가요?",
			want: "AI 지원자님의 의견은 어떤가요?",
		},
		{
			name: "no vocative untouched",
			in:   "프로젝트 경험을 말씀해 주세요.",
			want: "프로젝트 경험을 말씀해 주세요.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := orch.formatQuestionForAI(tt.in)
			assert.Equal(t, tt.want, once)
			assert.Equal(t, once, orch.formatQuestionForAI(once), "rewrite must be idempotent")
		})
	}
}

func TestFormatQuestionForAISelfFeedingName(t *testing.T) {
	gen := failingGenerator()
	state := newTestState(15)
	state.UserName = "AI 지원자"
	orch := NewOrchestrator(state, NewQuestionPlanner(gen, NewCompanyCatalog()), NewAICandidate(gen), nil)

	in := "AI 지원자님, 답변해 주세요."
	assert.Equal(t, in, orch.formatQuestionForAI(in))
}

// TestFirstResponderDistribution checks the per-question coin flip is close
// to uniform over many draws with a fixed seed.
func TestFirstResponderDistribution(t *testing.T) {
	orch := newTestOrchestrator(t, 15)
	orch.rng = rand.New(rand.NewSource(42))
	ctx := context.Background()

	const draws = 2000
	aiFirst := 0
	step := PlanStep{Kind: KindRoleMain, Role: RoleTech}
	for i := 0; i < draws; i++ {
		orch.state.Pending = nil
		if first, _ := orch.installQuestion(ctx, step); first {
			aiFirst++
		}
	}

	ratio := float64(aiFirst) / draws
	assert.GreaterOrEqual(t, ratio, 0.45, "AI-first ratio too low: %f", ratio)
	assert.LessOrEqual(t, ratio, 0.55, "AI-first ratio too high: %f", ratio)
}

func TestFixedQuestionsAreUserOnly(t *testing.T) {
	orch := newTestOrchestrator(t, 15)
	ctx := context.Background()

	aiFirst, env := orch.installQuestion(ctx, PlanStep{Kind: KindIntroFixed, Role: RoleHR})
	assert.False(t, aiFirst)
	assert.True(t, orch.state.Pending.AIAnswered, "the AI never answers fixed questions")
	assert.False(t, orch.state.Pending.UserAnswered)
	assert.Equal(t, string(KindIntroFixed), env.Content.Type)
}

// TestRecordAIAnswerEnvelope checks the envelope each step hands back to the
// flow loop: agent routing, the recorded answer, and the visible content
// block derived from it.
func TestRecordAIAnswerEnvelope(t *testing.T) {
	orch := newTestOrchestrator(t, 15)
	ctx := context.Background()
	orch.installQuestion(ctx, PlanStep{Kind: KindRoleMain, Role: RoleTech})

	content, env := orch.recordAIAnswer(ctx)
	require.NotNil(t, content)

	assert.Equal(t, agentAICandidate, env.Metadata.FromAgent)
	assert.Equal(t, agentOrchestrator, env.Metadata.NextAgent)
	assert.Equal(t, "record_answer", env.Metadata.Task)
	assert.Equal(t, 200, env.Metadata.StatusCode)
	assert.Equal(t, "test-session", env.Metadata.InterviewID)
	assert.Equal(t, string(RoleTech), env.Content.Type)

	last := orch.state.QAHistory[len(orch.state.QAHistory)-1]
	assert.Equal(t, last.Answer.Content, env.Content.Content)
	assert.Equal(t, env.Content.Content, content.Answer)
}

func TestProcessUserAnswerWhileLLMUnavailable(t *testing.T) {
	gen := failingGenerator()
	state := newTestState(15)
	planner := NewQuestionPlanner(gen, NewCompanyCatalog())
	llm := NewLLMClient(&AIConfig{TimeoutSec: 1, MaxRetries: 1, RateLimitPerMin: 600}, gen)
	llm.firstFailure = time.Now().Add(-outageWindow - time.Second)

	orch := NewOrchestrator(state, planner, NewAICandidate(gen), llm)
	ctx := context.Background()
	orch.StartFlow(ctx)

	before := len(state.QAHistory)
	resp := orch.ProcessUserAnswer(ctx, "답변", 10)

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", resp.ErrorCode)
	assert.NotEmpty(t, resp.ErrorMessage)
	// The session stays alive and unchanged so the client can retry.
	assert.False(t, state.IsCompleted)
	assert.Len(t, state.QAHistory, before)
	assert.False(t, state.Pending.UserAnswered)
}

func TestProcessUserAnswerWithoutPending(t *testing.T) {
	orch := newTestOrchestrator(t, 15)
	resp := orch.ProcessUserAnswer(context.Background(), "답변", 10)
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "INVALID_SESSION_STATE", resp.ErrorCode)
}
