package services

import (
	"time"
)

// InterviewerRole identifies one of the three virtual interviewers.
type InterviewerRole string

const (
	RoleHR            InterviewerRole = "HR"
	RoleTech          InterviewerRole = "TECH"
	RoleCollaboration InterviewerRole = "COLLABORATION"
)

// InterviewerRotation is the fixed round-robin order.
var InterviewerRotation = []InterviewerRole{RoleHR, RoleTech, RoleCollaboration}

// NextRole returns the role following r in rotation order.
func NextRole(r InterviewerRole) InterviewerRole {
	for i, role := range InterviewerRotation {
		if role == r {
			return InterviewerRotation[(i+1)%len(InterviewerRotation)]
		}
	}
	return InterviewerRotation[0]
}

// QuestionKind tags what the planner decided to ask next.
type QuestionKind string

const (
	KindIntroFixed             QuestionKind = "intro_fixed"
	KindMotivationFixed        QuestionKind = "motivation_fixed"
	KindRoleMain               QuestionKind = "role_main"
	KindRoleFollowUpCommon     QuestionKind = "role_follow_up_common"
	KindRoleFollowUpIndividual QuestionKind = "role_follow_up_individual"
	KindEndOfInterview         QuestionKind = "end_of_interview"
)

// PlanStep is the plan selector's decision for the next action.
type PlanStep struct {
	Kind QuestionKind
	Role InterviewerRole
}

// IsFixed reports whether the step is one of the two deterministic slots.
func (p PlanStep) IsFixed() bool {
	return p.Kind == KindIntroFixed || p.Kind == KindMotivationFixed
}

// Answerer identifies who produced an answer.
type Answerer string

const (
	AnswererUser Answerer = "user"
	AnswererAI   Answerer = "ai"
)

// DefaultTimeLimitSec is the per-question answer budget shown to clients.
const DefaultTimeLimitSec = 120

// QuestionRecord is one generated question. IDs are monotonic within a
// session; both variants of an individualized pair share one ID because they
// are the same logical question.
type QuestionRecord struct {
	ID        int             `json:"id"`
	Kind      QuestionKind    `json:"kind"`
	Content   string          `json:"content"`
	Intent    string          `json:"intent"`
	Role      InterviewerRole `json:"interviewer_role"`
	IsFixed   bool            `json:"is_fixed"`
	TimeLimit int             `json:"time_limit"`
}

// AnswerRecord is one submitted answer.
type AnswerRecord struct {
	QuestionID      int      `json:"question_id"`
	Answerer        Answerer `json:"answerer"`
	Content         string   `json:"content"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// QAEntry pairs a question with one of its answers. Non-fixed questions
// appear twice in qa_history, once per answerer.
type QAEntry struct {
	Question QuestionRecord `json:"question"`
	Answer   AnswerRecord   `json:"answer"`
}

// TurnState tracks one interviewer's budget within the current rotation.
type TurnState struct {
	MainAsked bool `json:"main_question_asked"`
	FollowUps int  `json:"follow_up_count"`
}

// PendingQuestion is the question currently awaiting answers. Either Common
// is set (fixed questions and common follow-ups) or the UserVariant/AIVariant
// pair is set (individualized follow-ups); never both.
type PendingQuestion struct {
	Common      *QuestionRecord
	UserVariant *QuestionRecord
	AIVariant   *QuestionRecord

	UserAnswered bool
	AIAnswered   bool
}

// Individual reports whether the pending question carries per-answerer
// variants.
func (p *PendingQuestion) Individual() bool {
	return p != nil && p.Common == nil && p.UserVariant != nil
}

// ForUser returns the question shown to the human candidate.
func (p *PendingQuestion) ForUser() *QuestionRecord {
	if p == nil {
		return nil
	}
	if p.Individual() {
		return p.UserVariant
	}
	return p.Common
}

// ForAI returns the question answered by the AI candidate.
func (p *PendingQuestion) ForAI() *QuestionRecord {
	if p == nil {
		return nil
	}
	if p.Individual() {
		return p.AIVariant
	}
	return p.Common
}

// SessionState is the authoritative in-memory record for one interview.
// It is owned by its Orchestrator and mutated only under the orchestrator's
// lock.
type SessionState struct {
	SessionID      string
	CompanyID      string
	Position       string
	UserName       string
	UserID         string
	PostingID      string
	UserResumeID   string
	UserResumeText string
	AIResumeID     string

	TotalQuestionLimit int

	TurnCount          int
	CurrentInterviewer InterviewerRole
	Pending            *PendingQuestion
	TurnStates         map[InterviewerRole]*TurnState

	QAHistory    []QAEntry
	IntroMessage string

	Persona *AICandidatePersona
	Company *CompanyProfile

	CalibrationData string

	StartTime   time.Time
	IsCompleted bool

	nextQuestionID int
}

// NewSessionState builds a fresh session with default limits.
func NewSessionState(sessionID string, limit int) *SessionState {
	if limit <= 0 {
		limit = 15
	}
	states := make(map[InterviewerRole]*TurnState, len(InterviewerRotation))
	for _, role := range InterviewerRotation {
		states[role] = &TurnState{}
	}
	return &SessionState{
		SessionID:          sessionID,
		TotalQuestionLimit: limit,
		CurrentInterviewer: RoleHR,
		TurnStates:         states,
		StartTime:          time.Now(),
	}
}

// NextQuestionID hands out monotonic question IDs.
func (s *SessionState) NextQuestionID() int {
	s.nextQuestionID++
	return s.nextQuestionID
}

// LastAnsweredQuestionID returns the question ID of the newest qa_history
// entry, or 0 when the history is empty.
func (s *SessionState) LastAnsweredQuestionID() int {
	if len(s.QAHistory) == 0 {
		return 0
	}
	return s.QAHistory[len(s.QAHistory)-1].Answer.QuestionID
}

// BothAnsweredPrevious reports whether the two newest qa_history entries
// belong to the same question, i.e. user and AI both answered it. This is
// the gate for individualized follow-ups.
func (s *SessionState) BothAnsweredPrevious() bool {
	n := len(s.QAHistory)
	if n < 2 {
		return false
	}
	return s.QAHistory[n-1].Answer.QuestionID == s.QAHistory[n-2].Answer.QuestionID
}

// Snapshot returns a deep copy of the fields the feedback pipeline reads, so
// the background task never races with the registry.
func (s *SessionState) Snapshot() *SessionState {
	copied := *s
	copied.QAHistory = make([]QAEntry, len(s.QAHistory))
	copy(copied.QAHistory, s.QAHistory)
	copied.TurnStates = make(map[InterviewerRole]*TurnState, len(s.TurnStates))
	for role, ts := range s.TurnStates {
		c := *ts
		copied.TurnStates[role] = &c
	}
	copied.Pending = nil
	return &copied
}

// Envelope is the uniform message carrier between the orchestrator and the
// logical agents.
type Envelope struct {
	Metadata EnvelopeMetadata `json:"metadata"`
	Content  EnvelopeContent  `json:"content"`
	Metrics  EnvelopeMetrics  `json:"metrics"`
}

type EnvelopeMetadata struct {
	InterviewID string `json:"interview_id"`
	Step        int    `json:"step"`
	Task        string `json:"task"`
	FromAgent   string `json:"from_agent"`
	NextAgent   string `json:"next_agent"`
	StatusCode  int    `json:"status_code"`
}

type EnvelopeContent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type EnvelopeMetrics struct {
	Duration  float64 `json:"duration,omitempty"`
	TotalTime float64 `json:"total_time,omitempty"`
}

// QuestionMetadata accompanies every question returned to the adapter.
type QuestionMetadata struct {
	AIResumeID      string `json:"ai_resume_id,omitempty"`
	InterviewerType string `json:"interviewer_type"`
	QuestionType    string `json:"question_type"`
	TurnCount       int    `json:"turn_count"`
}

// QuestionContent is the user-facing question block.
type QuestionContent struct {
	Question string           `json:"question"`
	Metadata QuestionMetadata `json:"metadata"`
}

// AIAnswerContent reports the AI candidate's visible activity for a turn.
type AIAnswerContent struct {
	Question string           `json:"question,omitempty"`
	Answer   string           `json:"answer,omitempty"`
	Metadata QuestionMetadata `json:"metadata"`
}

// TurnInfo tells the adapter whose move it is.
type TurnInfo struct {
	CurrentTurn int        `json:"current_turn"`
	IsUserTurn  bool       `json:"is_user_turn"`
	NextAction  string     `json:"next_action"`
	AIMetadata  AIMetadata `json:"ai_metadata"`
}

type AIMetadata struct {
	ResumeID string `json:"resume_id,omitempty"`
}

// Turn response statuses.
const (
	StatusWaitingForUser = "waiting_for_user"
	StatusCompleted      = "completed"
	StatusError          = "error"
)

// StartResponse is returned by StartInterview.
type StartResponse struct {
	SessionID     string           `json:"session_id"`
	IntroMessage  string           `json:"intro_message"`
	FirstQuestion string           `json:"first_question"`
	Content       QuestionContent  `json:"content"`
	AIResumeID    string           `json:"ai_resume_id,omitempty"`
	AIAnswer      *AIAnswerContent `json:"ai_answer,omitempty"`
	TurnInfo      TurnInfo         `json:"turn_info"`
}

// TurnResponse is returned by SubmitAnswer.
type TurnResponse struct {
	Status       string           `json:"status"`
	SessionID    string           `json:"session_id"`
	Content      *QuestionContent `json:"content,omitempty"`
	AIQuestion   string           `json:"ai_question,omitempty"`
	AIAnswer     *AIAnswerContent `json:"ai_answer,omitempty"`
	IntroMessage string           `json:"intro_message,omitempty"`
	QAHistory    []QAEntry        `json:"qa_history,omitempty"`
	TurnInfo     TurnInfo         `json:"turn_info"`
	ErrorCode    string           `json:"error_code,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
}
