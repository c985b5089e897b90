package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// aiApologyAnswer is recorded when answer generation fails outright; the
// session continues rather than aborting.
const aiApologyAnswer = "죄송합니다, 잠시 생각이 정리되지 않았습니다. 다음 질문에는 더 성실히 답변드리겠습니다."

// AICandidate produces the AI co-candidate's answers in the voice of its
// persona.
type AICandidate struct {
	llm TextGenerator
}

func NewAICandidate(llm TextGenerator) *AICandidate {
	return &AICandidate{llm: llm}
}

// Answer generates the persona's answer to a question. It never fails; on
// error a polite apology is returned so the interview can proceed.
func (c *AICandidate) Answer(ctx context.Context, s *SessionState, question *QuestionRecord) string {
	if c.llm == nil || s.Persona == nil {
		return aiApologyAnswer
	}

	persona := s.Persona
	system := fmt.Sprintf(
		"당신은 면접에 참여 중인 지원자 %s입니다. 아래 프로필에 충실하게, 구체적인 경험을 들어 3~5문장으로 답변하세요.",
		persona.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "프로필 요약: %s\n", persona.Summary)
	fmt.Fprintf(&b, "경력: %d년, %s\n", persona.Background.CareerYears, persona.Background.CurrentPosition)
	fmt.Fprintf(&b, "기술: %s\n", strings.Join(persona.TechnicalSkills, ", "))
	if len(persona.Projects) > 0 {
		fmt.Fprintf(&b, "프로젝트: %s\n", strings.Join(persona.Projects, " / "))
	}
	fmt.Fprintf(&b, "답변 스타일: %s\n", persona.InterviewStyle)
	fmt.Fprintf(&b, "\n면접관의 질문: %s", question.Content)

	answer, err := c.llm.GenerateText(ctx, system, b.String())
	if err != nil || strings.TrimSpace(answer) == "" {
		slog.Warn("AI answer generation failed, recording apology",
			"session_id", s.SessionID, "question_id", question.ID, "error", err)
		return aiApologyAnswer
	}
	return sanitizeText(answer)
}
