package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

const (
	// MaxFollowUpsPerRole caps follow-up questions per interviewer rotation.
	MaxFollowUpsPerRole = 2

	introQuestionText = "자기소개 부탁드립니다."
	introIntentText   = "지원자의 첫인상과 전달력 확인"
)

// QuestionPlanner decides what the current interviewer asks next and
// produces the question text. Plan selection is pure; only generation talks
// to the LLM, and generation always falls back to deterministic content.
type QuestionPlanner struct {
	llm     TextGenerator
	catalog *CompanyCatalog
}

func NewQuestionPlanner(llm TextGenerator, catalog *CompanyCatalog) *QuestionPlanner {
	return &QuestionPlanner{
		llm:     llm,
		catalog: catalog,
	}
}

// SelectNext evaluates the selection rules against the session state and
// returns the next plan step. Called only when no question is pending.
func (p *QuestionPlanner) SelectNext(s *SessionState) PlanStep {
	if s.TurnCount == 0 {
		return PlanStep{Kind: KindIntroFixed, Role: s.CurrentInterviewer}
	}
	if s.TurnCount == 1 {
		return PlanStep{Kind: KindMotivationFixed, Role: s.CurrentInterviewer}
	}
	if s.TurnCount >= s.TotalQuestionLimit {
		return PlanStep{Kind: KindEndOfInterview}
	}

	role := s.CurrentInterviewer
	for range InterviewerRotation {
		state := s.TurnStates[role]
		if !state.MainAsked {
			s.CurrentInterviewer = role
			return PlanStep{Kind: KindRoleMain, Role: role}
		}
		if state.FollowUps < MaxFollowUpsPerRole && s.BothAnsweredPrevious() {
			s.CurrentInterviewer = role
			return PlanStep{Kind: KindRoleFollowUpIndividual, Role: role}
		}

		// Budget exhausted. A rotation on the final countable turn would
		// open a fresh main question right at the boundary, so close the
		// interview instead of handing over.
		if s.TurnCount >= s.TotalQuestionLimit-1 {
			return PlanStep{Kind: KindEndOfInterview}
		}
		state.MainAsked = false
		state.FollowUps = 0
		role = NextRole(role)
		s.CurrentInterviewer = role
	}

	return PlanStep{Kind: KindRoleMain, Role: s.CurrentInterviewer}
}

// GenerateQuestion produces the pending question for a plan step. It never
// returns an error; LLM failures degrade to deterministic fallbacks and an
// individualized pair degrades to a common follow-up.
func (p *QuestionPlanner) GenerateQuestion(ctx context.Context, s *SessionState, step PlanStep) *PendingQuestion {
	switch step.Kind {
	case KindIntroFixed:
		return &PendingQuestion{Common: p.fixedQuestion(s, step, introQuestionText, introIntentText)}
	case KindMotivationFixed:
		return &PendingQuestion{Common: p.fixedQuestion(s, step, p.motivationText(s), "지원 동기와 회사 이해도 확인")}
	case KindRoleFollowUpIndividual:
		if pair := p.generateIndividualPair(ctx, s, step); pair != nil {
			return pair
		}
		// Degraded: a single common follow-up sent to both answerers.
		step.Kind = KindRoleFollowUpCommon
		return &PendingQuestion{Common: p.generateSingle(ctx, s, step)}
	default:
		return &PendingQuestion{Common: p.generateSingle(ctx, s, step)}
	}
}

func (p *QuestionPlanner) fixedQuestion(s *SessionState, step PlanStep, content, intent string) *QuestionRecord {
	return &QuestionRecord{
		ID:        s.NextQuestionID(),
		Kind:      step.Kind,
		Content:   content,
		Intent:    intent,
		Role:      step.Role,
		IsFixed:   true,
		TimeLimit: DefaultTimeLimitSec,
	}
}

func (p *QuestionPlanner) motivationText(s *SessionState) string {
	display := s.CompanyID
	if s.Company != nil {
		display = s.Company.DisplayName
	}
	return fmt.Sprintf("%s에 지원하신 동기를 말씀해 주세요.", display)
}

func (p *QuestionPlanner) generateSingle(ctx context.Context, s *SessionState, step PlanStep) *QuestionRecord {
	content, intent, err := p.callLLM(ctx, s, step, false)
	if err != nil || content == "" {
		slog.Warn("Question generation fell back to deterministic content",
			"session_id", s.SessionID, "role", step.Role, "turn", s.TurnCount, "error", err)
		content, intent = fallbackQuestion(step.Role, s.TurnCount)
	}
	return &QuestionRecord{
		ID:        s.NextQuestionID(),
		Kind:      step.Kind,
		Content:   content,
		Intent:    intent,
		Role:      step.Role,
		TimeLimit: DefaultTimeLimitSec,
	}
}

// generateIndividualPair asks for two distinct follow-ups in one call, one
// per answerer's previous answer. Returns nil when the output cannot be
// split into two usable questions.
func (p *QuestionPlanner) generateIndividualPair(ctx context.Context, s *SessionState, step PlanStep) *PendingQuestion {
	raw, err := p.callLLMRaw(ctx, s, step, true)
	if err != nil {
		slog.Warn("Individualized follow-up generation failed",
			"session_id", s.SessionID, "role", step.Role, "error", err)
		return nil
	}

	userPart, aiPart, ok := splitIndividualSections(raw)
	if !ok {
		slog.Warn("Individualized follow-up response malformed, degrading to common",
			"session_id", s.SessionID, "role", step.Role)
		return nil
	}

	userContent, userIntent := parseQuestionText(userPart)
	aiContent, aiIntent := parseQuestionText(aiPart)
	if userContent == "" || aiContent == "" {
		return nil
	}

	// One logical question, two texts: both variants share an ID so the
	// qa_history pairing stays intact.
	id := s.NextQuestionID()
	return &PendingQuestion{
		UserVariant: &QuestionRecord{
			ID: id, Kind: step.Kind, Content: userContent, Intent: userIntent,
			Role: step.Role, TimeLimit: DefaultTimeLimitSec,
		},
		AIVariant: &QuestionRecord{
			ID: id, Kind: step.Kind, Content: aiContent, Intent: aiIntent,
			Role: step.Role, TimeLimit: DefaultTimeLimitSec,
		},
	}
}

func (p *QuestionPlanner) callLLM(ctx context.Context, s *SessionState, step PlanStep, individual bool) (string, string, error) {
	raw, err := p.callLLMRaw(ctx, s, step, individual)
	if err != nil {
		return "", "", err
	}
	content, intent := parseQuestionText(raw)
	if content == "" {
		return "", "", fmt.Errorf("empty question after parsing")
	}
	return content, intent, nil
}

func (p *QuestionPlanner) callLLMRaw(ctx context.Context, s *SessionState, step PlanStep, individual bool) (string, error) {
	if p.llm == nil {
		return "", fmt.Errorf("no text generator configured")
	}

	profile := s.Company
	if profile == nil {
		profile = p.catalog.GenericProfile(s.CompanyID)
	}

	system := fmt.Sprintf(
		"당신은 %s의 면접관입니다. 간결하고 정중한 질문을 하나만 하고, 마지막 줄에 '의도: ...' 형식으로 질문 의도를 덧붙이세요.",
		profile.DisplayName)

	var b strings.Builder
	fmt.Fprintf(&b, "면접관 역할: %s\n직무: %s\n", roleDescription(step.Role), s.Position)
	fmt.Fprintf(&b, "회사 키워드: %s\n", strings.Join(profile.InterviewKeywords, ", "))
	fmt.Fprintf(&b, "인재상: %s\n", profile.TalentProfile)
	if s.Persona != nil {
		fmt.Fprintf(&b, "AI 지원자 요약: %s (강점: %s)\n",
			s.Persona.Summary, strings.Join(s.Persona.Strengths, ", "))
	}
	if excerpt := resumeExcerpt(s.UserResumeText, maxResumePromptRunes); excerpt != "" {
		fmt.Fprintf(&b, "사용자 이력서 발췌:\n%s\n", excerpt)
	}
	if recent := recentContext(s, 3); recent != "" {
		fmt.Fprintf(&b, "\n최근 질의응답:\n%s\n", recent)
	}

	switch {
	case individual:
		b.WriteString("\n두 지원자의 직전 답변을 각각 겨냥한 서로 다른 꼬리질문 두 개를 작성하세요.\n")
		b.WriteString("형식을 정확히 지키세요:\n[사용자 질문]\n질문 내용\n의도: ...\n[AI 질문]\n질문 내용\n의도: ...")
	case step.Kind == KindRoleMain:
		fmt.Fprintf(&b, "\n%s 관점의 메인 질문을 하나 작성하세요.", roleDescription(step.Role))
	default:
		b.WriteString("\n직전 답변을 파고드는 꼬리질문을 하나 작성하세요.")
	}

	return p.llm.GenerateText(ctx, system, b.String())
}

// maxResumePromptRunes bounds how much resume text one prompt carries.
const maxResumePromptRunes = 600

// resumeExcerpt trims the stored resume to a prompt-sized excerpt.
func resumeExcerpt(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}

func roleDescription(role InterviewerRole) string {
	switch role {
	case RoleHR:
		return "인성(HR) 면접관"
	case RoleTech:
		return "기술(TECH) 면접관"
	case RoleCollaboration:
		return "협업(COLLABORATION) 면접관"
	default:
		return string(role)
	}
}

// recentContext renders the newest qa_history entries for the prompt.
func recentContext(s *SessionState, limit int) string {
	n := len(s.QAHistory)
	if n == 0 {
		return ""
	}
	start := n - limit
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	for _, entry := range s.QAHistory[start:] {
		who := "사용자"
		if entry.Answer.Answerer == AnswererAI {
			who = "AI 지원자"
		}
		fmt.Fprintf(&b, "Q: %s\nA(%s): %s\n", entry.Question.Content, who, entry.Answer.Content)
	}
	return b.String()
}

var (
	intentDelimiterRe = regexp.MustCompile(`(?m)^\s*(의도|intent)\s*[:：]\s*`)
	controlCharRe     = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
	markdownRe        = regexp.MustCompile("[*#`_]+")
	multiNewlineRe    = regexp.MustCompile(`\n{2,}`)
)

// parseQuestionText splits an LLM response into question content and intent
// on the known delimiter, then sanitizes both.
func parseQuestionText(raw string) (content, intent string) {
	cleaned := sanitizeText(raw)
	loc := intentDelimiterRe.FindStringIndex(cleaned)
	if loc == nil {
		return strings.TrimSpace(cleaned), ""
	}
	content = strings.TrimSpace(cleaned[:loc[0]])
	rest := cleaned[loc[1]:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return content, strings.TrimSpace(rest)
}

// sanitizeText strips control characters and markdown and collapses runs of
// blank lines.
func sanitizeText(s string) string {
	s = controlCharRe.ReplaceAllString(s, "")
	s = markdownRe.ReplaceAllString(s, "")
	s = multiNewlineRe.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// splitIndividualSections extracts the two labeled sections of an
// individualized follow-up response.
func splitIndividualSections(raw string) (userPart, aiPart string, ok bool) {
	userIdx := strings.Index(raw, "[사용자 질문]")
	aiIdx := strings.Index(raw, "[AI 질문]")
	if userIdx < 0 || aiIdx < 0 || aiIdx <= userIdx {
		return "", "", false
	}
	userPart = raw[userIdx+len("[사용자 질문]") : aiIdx]
	aiPart = raw[aiIdx+len("[AI 질문]"):]
	return userPart, aiPart, true
}

// fallbackQuestion returns deterministic content keyed on (role, turn) for
// when generation is unavailable. Content is never empty.
func fallbackQuestion(role InterviewerRole, turnCount int) (content, intent string) {
	hr := []string{
		"최근에 어려움을 극복했던 경험을 말씀해 주세요.",
		"본인의 강점이 팀에 어떻게 기여할 수 있을까요?",
		"실패에서 배운 가장 큰 교훈은 무엇인가요?",
	}
	tech := []string{
		"가장 자신 있는 기술 스택과 그 이유를 설명해 주세요.",
		"성능 문제를 진단하고 개선했던 경험을 말씀해 주세요.",
		"최근 학습한 기술 중 실무에 적용해 본 것이 있나요?",
	}
	collab := []string{
		"동료와 의견이 충돌했을 때 어떻게 해결하시나요?",
		"협업 과정에서 가장 중요하게 생각하는 것은 무엇인가요?",
		"코드 리뷰에서 피드백을 주고받는 본인만의 방식이 있나요?",
	}

	var pool []string
	switch role {
	case RoleTech:
		pool = tech
	case RoleCollaboration:
		pool = collab
	default:
		pool = hr
	}
	idx := turnCount % len(pool)
	if idx < 0 {
		idx = 0
	}
	return pool[idx], "기본 역량 확인"
}
