package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
)

const aiVocative = "AI 지원자님"

// Agent names used in envelope metadata.
const (
	agentOrchestrator = "orchestrator"
	agentInterviewer  = "interviewer"
	agentAICandidate  = "ai"
	agentUser         = "user"
)

// Orchestrator is the per-session state machine. It owns its SessionState;
// all mutation happens under the orchestrator's lock, so many sessions run
// in parallel while each one stays single-threaded.
type Orchestrator struct {
	mu        sync.Mutex
	state     *SessionState
	planner   *QuestionPlanner
	candidate *AICandidate
	llm       *LLMClient

	rng         *rand.Rand
	namePattern *regexp.Regexp
}

func NewOrchestrator(state *SessionState, planner *QuestionPlanner, candidate *AICandidate, llm *LLMClient) *Orchestrator {
	o := &Orchestrator{
		state:     state,
		planner:   planner,
		candidate: candidate,
		llm:       llm,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if name := strings.TrimSpace(state.UserName); name != "" {
		o.namePattern = regexp.MustCompile(regexp.QuoteMeta(name) + `\s*님`)
	}
	return o
}

// State exposes the session for the service layer. Callers outside the
// orchestrator's own task must go through Snapshot.
func (o *Orchestrator) State() *SessionState {
	return o.state
}

// Snapshot returns a consistent copy of the session under the lock.
func (o *Orchestrator) Snapshot() *SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Snapshot()
}

// StartFlow runs the initial flow: fixed intro message plus the first
// question. Called exactly once, right after session creation.
func (o *Orchestrator) StartFlow(ctx context.Context) *StartResponse {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.state
	display := s.CompanyID
	if s.Company != nil {
		display = s.Company.DisplayName
	}
	s.IntroMessage = fmt.Sprintf(
		"안녕하세요, %s %s 모의 면접을 시작하겠습니다. %s님과 AI 지원자가 함께 면접에 참여합니다.",
		display, s.Position, s.UserName)

	step := o.planner.SelectNext(s)
	_, env := o.installQuestion(ctx, step)
	o.emit(env)
	question := s.Pending.ForUser()

	return &StartResponse{
		SessionID:     s.SessionID,
		IntroMessage:  s.IntroMessage,
		FirstQuestion: question.Content,
		Content: QuestionContent{
			Question: question.Content,
			Metadata: o.questionMetadata(question),
		},
		AIResumeID: s.AIResumeID,
		AIAnswer: &AIAnswerContent{
			Metadata: QuestionMetadata{AIResumeID: s.AIResumeID},
		},
		TurnInfo: o.turnInfo(true, "wait_user_answer"),
	}
}

// ProcessUserAnswer records the user's answer and drives the flow loop until
// the session needs user input again, completes, or fails. It never returns
// an error; every non-fatal condition becomes an envelope.
func (o *Orchestrator) ProcessUserAnswer(ctx context.Context, answer string, duration float64) *TurnResponse {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := o.state
	if s.IsCompleted {
		return o.completionResponse()
	}
	if o.llm != nil && o.llm.Unavailable() {
		slog.Error("LLM providers unavailable, rejecting turn without mutation", "session_id", s.SessionID)
		return o.errorResponse("UPSTREAM_UNAVAILABLE", "질문 생성 서비스가 일시적으로 불안정합니다. 잠시 후 다시 시도해 주세요.")
	}
	if s.Pending == nil || s.Pending.UserAnswered {
		slog.Error("Answer submitted with no question awaiting the user", "session_id", s.SessionID, "turn", s.TurnCount)
		return o.errorResponse("INVALID_SESSION_STATE", "현재 답변을 기다리는 질문이 없습니다.")
	}

	userQuestion := s.Pending.ForUser()
	s.QAHistory = append(s.QAHistory, QAEntry{
		Question: *userQuestion,
		Answer: AnswerRecord{
			QuestionID:      userQuestion.ID,
			Answerer:        AnswererUser,
			Content:         answer,
			DurationSeconds: duration,
		},
	})
	s.Pending.UserAnswered = true
	o.emit(o.newEnvelope(agentUser, agentOrchestrator, "record_answer", string(userQuestion.Role), answer, time.Now()))

	return o.runFlow(ctx)
}

// View rebuilds the session's current envelope without advancing it: the
// completion envelope for finished sessions, otherwise the pending question.
func (o *Orchestrator) View() *TurnResponse {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.IsCompleted {
		return o.completionResponse()
	}
	if o.state.Pending != nil {
		return o.waitingResponse(nil)
	}
	return o.errorResponse("INVALID_SESSION_STATE", "세션 상태를 조회할 수 없습니다.")
}

// runFlow is the single decision point of the event loop: each iteration
// either answers as the AI, advances the turn, installs a new question, or
// exits with an envelope.
func (o *Orchestrator) runFlow(ctx context.Context) *TurnResponse {
	s := o.state
	var lastAIAnswer *AIAnswerContent

	for {
		if s.Pending != nil {
			if !s.Pending.AIAnswered {
				answer, env := o.recordAIAnswer(ctx)
				o.emit(env)
				lastAIAnswer = answer
			}
			if s.Pending.UserAnswered && s.Pending.AIAnswered {
				s.Pending = nil
				s.TurnCount++
				continue
			}
			// The AI answered first; hand the question to the user.
			return o.waitingResponse(lastAIAnswer)
		}

		step := o.planner.SelectNext(s)
		if step.Kind == KindEndOfInterview {
			s.IsCompleted = true
			slog.Info("Interview completed", "session_id", s.SessionID, "turns", s.TurnCount, "qa_entries", len(s.QAHistory))
			return o.completionResponse()
		}

		aiFirst, env := o.installQuestion(ctx, step)
		o.emit(env)
		if !aiFirst {
			return o.waitingResponse(lastAIAnswer)
		}
	}
}

// installQuestion generates the question for a plan step, sets it as pending,
// and returns the step's envelope for the caller to emit. aiFirst reports
// whether the AI candidate answers first (uniformly random per non-fixed
// question; fixed slots are user-only).
func (o *Orchestrator) installQuestion(ctx context.Context, step PlanStep) (aiFirst bool, env Envelope) {
	s := o.state
	started := time.Now()
	pending := o.planner.GenerateQuestion(ctx, s, step)
	s.Pending = pending

	env = o.newEnvelope(agentInterviewer, agentOrchestrator, "generate_question",
		string(step.Kind), pending.ForUser().Content, started)

	if step.IsFixed() {
		// Fixed intro/motivation questions are answered by the user only.
		pending.AIAnswered = true
		return false, env
	}
	return o.rng.Intn(2) == 1, env
}

// recordAIAnswer generates and records the AI candidate's answer to the
// pending question, with the vocative rewritten for the AI, and applies the
// per-role turn accounting. The answer travels back in the step's envelope;
// the visible content block is derived from it.
func (o *Orchestrator) recordAIAnswer(ctx context.Context) (*AIAnswerContent, Envelope) {
	s := o.state
	started := time.Now()

	aiQuestion := *s.Pending.ForAI()
	aiQuestion.Content = o.formatQuestionForAI(aiQuestion.Content)

	answer := o.candidate.Answer(ctx, s, &aiQuestion)
	s.QAHistory = append(s.QAHistory, QAEntry{
		Question: aiQuestion,
		Answer: AnswerRecord{
			QuestionID: aiQuestion.ID,
			Answerer:   AnswererAI,
			Content:    answer,
		},
	})
	s.Pending.AIAnswered = true

	// Fixed slots never reach here, so every recorded AI answer counts
	// against the current role's budget.
	state := s.TurnStates[aiQuestion.Role]
	switch aiQuestion.Kind {
	case KindRoleMain:
		state.MainAsked = true
	case KindRoleFollowUpCommon, KindRoleFollowUpIndividual:
		state.FollowUps++
	}

	env := o.newEnvelope(agentAICandidate, agentOrchestrator, "record_answer",
		string(aiQuestion.Role), answer, started)

	return &AIAnswerContent{
		Question: aiQuestion.Content,
		Answer:   env.Content.Content,
		Metadata: o.questionMetadata(&aiQuestion),
	}, env
}

// formatQuestionForAI rewrites user-name vocatives ("영희님,") into the AI
// candidate's form of address. Applying it twice yields the same result as
// applying it once.
func (o *Orchestrator) formatQuestionForAI(question string) string {
	if o.namePattern == nil {
		return question
	}
	// A user name that itself matches inside the replacement would make the
	// rewrite self-feeding; leave such questions untouched.
	if o.namePattern.MatchString(aiVocative) {
		return question
	}
	return o.namePattern.ReplaceAllString(question, aiVocative)
}

func (o *Orchestrator) waitingResponse(aiAnswer *AIAnswerContent) *TurnResponse {
	s := o.state
	question := s.Pending.ForUser()

	resp := &TurnResponse{
		Status:    StatusWaitingForUser,
		SessionID: s.SessionID,
		Content: &QuestionContent{
			Question: question.Content,
			Metadata: o.questionMetadata(question),
		},
		AIAnswer: aiAnswer,
		TurnInfo: o.turnInfo(true, "wait_user_answer"),
	}
	if aiAnswer != nil {
		resp.AIQuestion = aiAnswer.Question
	}
	if s.TurnCount <= 1 {
		resp.IntroMessage = s.IntroMessage
	}
	return resp
}

func (o *Orchestrator) completionResponse() *TurnResponse {
	s := o.state
	history := make([]QAEntry, len(s.QAHistory))
	copy(history, s.QAHistory)

	return &TurnResponse{
		Status:    StatusCompleted,
		SessionID: s.SessionID,
		QAHistory: history,
		TurnInfo:  o.turnInfo(false, "completed"),
	}
}

func (o *Orchestrator) errorResponse(code, message string) *TurnResponse {
	return &TurnResponse{
		Status:       StatusError,
		SessionID:    o.state.SessionID,
		ErrorCode:    code,
		ErrorMessage: message,
		TurnInfo:     o.turnInfo(true, "retry"),
	}
}

func (o *Orchestrator) questionMetadata(q *QuestionRecord) QuestionMetadata {
	return QuestionMetadata{
		AIResumeID:      o.state.AIResumeID,
		InterviewerType: string(q.Role),
		QuestionType:    string(q.Kind),
		TurnCount:       o.state.TurnCount,
	}
}

func (o *Orchestrator) turnInfo(userTurn bool, nextAction string) TurnInfo {
	return TurnInfo{
		CurrentTurn: o.state.TurnCount,
		IsUserTurn:  userTurn,
		NextAction:  nextAction,
		AIMetadata:  AIMetadata{ResumeID: o.state.AIResumeID},
	}
}

// newEnvelope builds the uniform agent envelope for one internal step. The
// flow loop carries these between steps and emits each one.
func (o *Orchestrator) newEnvelope(from, next, task, contentType, content string, started time.Time) Envelope {
	return Envelope{
		Metadata: EnvelopeMetadata{
			InterviewID: o.state.SessionID,
			Step:        o.state.TurnCount,
			Task:        task,
			FromAgent:   from,
			NextAgent:   next,
			StatusCode:  200,
		},
		Content: EnvelopeContent{Type: contentType, Content: content},
		Metrics: EnvelopeMetrics{
			Duration:  time.Since(started).Seconds(),
			TotalTime: time.Since(o.state.StartTime).Seconds(),
		},
	}
}

// emit writes one envelope to the session log.
func (o *Orchestrator) emit(env Envelope) {
	slog.Debug("Agent envelope",
		"session_id", env.Metadata.InterviewID,
		"step", env.Metadata.Step,
		"task", env.Metadata.Task,
		"from", env.Metadata.FromAgent,
		"next", env.Metadata.NextAgent,
		"type", env.Content.Type,
		"duration", env.Metrics.Duration)
}
