package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/veriview/backend/models"
)

const defaultImprovementPlan = "답변에 구체적인 수치와 경험 사례를 더해 보세요. 질문의 의도를 먼저 짚고, 결론부터 말한 뒤 근거를 붙이는 구조를 연습하면 전달력이 좋아집니다."

// InterviewStore is the slice of the repository the evaluation writes to.
type InterviewStore interface {
	CreateInterview(ctx context.Context, interview *models.Interview) error
	CreateHistoryDetails(ctx context.Context, details []models.HistoryDetail) error
	UpdateInterviewPlan(ctx context.Context, interviewID, plan string) error
}

// EvaluationService turns a completed session's transcript into persisted
// interview records: per-answer feedback, overall scores for both candidates,
// and an improvement plan for the user.
type EvaluationService struct {
	llm  TextGenerator
	repo InterviewStore
}

func NewEvaluationService(llm TextGenerator, repo InterviewStore) *EvaluationService {
	return &EvaluationService{llm: llm, repo: repo}
}

// answerScore is the per-answer unit of the LLM's scoring response.
type answerScore struct {
	QuestionID int     `json:"question_id"`
	Score      float64 `json:"score"`
	Feedback   string  `json:"feedback"`
}

// Evaluate scores the snapshot and writes the interview plus its history
// details. It returns the created interview so the caller can link media and
// gaze records to it.
func (e *EvaluationService) Evaluate(ctx context.Context, s *SessionState) (*models.Interview, error) {
	if e.repo == nil {
		return nil, fmt.Errorf("evaluation requires a repository")
	}

	userEntries, aiEntries := splitByAnswerer(s.QAHistory)
	userScores := e.scoreAnswers(ctx, AnswererUser, userEntries)
	aiScores := e.scoreAnswers(ctx, AnswererAI, aiEntries)

	interview := &models.Interview{
		UserID:    s.UserID,
		CompanyID: s.CompanyID,
		UserScore: overallScore(userEntries, userScores),
		AIScore:   overallScore(aiEntries, aiScores),
		Date:      s.StartTime,
	}
	if s.PostingID != "" {
		posting := s.PostingID
		interview.PostingID = &posting
	}
	if err := e.repo.CreateInterview(ctx, interview); err != nil {
		return nil, fmt.Errorf("failed to persist interview: %w", err)
	}

	details := make([]models.HistoryDetail, 0, len(s.QAHistory))
	for i, entry := range s.QAHistory {
		feedback := ""
		score := float64(0)
		if sc, ok := scoreFor(entry, userScores, aiScores); ok {
			feedback = sc.Feedback
			score = sc.Score
		}
		details = append(details, models.HistoryDetail{
			InterviewID:     interview.InterviewID,
			Who:             string(entry.Answer.Answerer),
			QuestionIndex:   entry.Question.ID,
			QuestionContent: entry.Question.Content,
			QuestionIntent:  entry.Question.Intent,
			QuestionLevel:   levelFromScore(score),
			Answer:          entry.Answer.Content,
			Feedback:        feedback,
			Sequence:        i + 1,
			Duration:        entry.Answer.DurationSeconds,
		})
	}
	if err := e.repo.CreateHistoryDetails(ctx, details); err != nil {
		return nil, fmt.Errorf("failed to persist history details: %w", err)
	}

	plan := e.improvementPlan(ctx, userEntries, userScores)
	if err := e.repo.UpdateInterviewPlan(ctx, interview.InterviewID, plan); err != nil {
		slog.Warn("Failed to store improvement plan", "error", err, "interview_id", interview.InterviewID)
	} else {
		interview.ImprovementPlan = plan
	}

	slog.Info("Interview evaluated",
		"interview_id", interview.InterviewID,
		"user_score", interview.UserScore,
		"ai_score", interview.AIScore,
		"details", len(details))
	return interview, nil
}

// scoreAnswers asks the LLM to score one answerer's full transcript in a
// single call; on any failure it falls back to per-answer heuristics so the
// pipeline always produces scores.
func (e *EvaluationService) scoreAnswers(ctx context.Context, who Answerer, entries []QAEntry) map[int]answerScore {
	if len(entries) == 0 {
		return map[int]answerScore{}
	}
	if e.llm != nil {
		if scores := e.scoreViaLLM(ctx, who, entries); scores != nil {
			return scores
		}
	}

	scores := make(map[int]answerScore, len(entries))
	for _, entry := range entries {
		scores[entry.Question.ID] = heuristicScore(entry)
	}
	return scores
}

func (e *EvaluationService) scoreViaLLM(ctx context.Context, who Answerer, entries []QAEntry) map[int]answerScore {
	var b strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&b, "질문 %d (%s): %s\n답변: %s\n\n",
			entry.Question.ID, entry.Question.Role, entry.Question.Content, entry.Answer.Content)
	}
	fmt.Fprintf(&b, `위의 답변들을 각각 평가해 주세요. 0~100점 척도이며 피드백은 한두 문장으로 씁니다.
다음 JSON 배열로만 응답하세요. 설명이나 마크다운 없이 배열 하나만 출력합니다.
[{"question_id": 1, "score": 80, "feedback": "..."}]`)

	raw, err := e.llm.GenerateText(ctx,
		"당신은 기술 면접 답변을 공정하게 채점하는 평가관입니다.", b.String())
	if err != nil {
		slog.Warn("Scoring LLM call failed, using heuristics", "who", who, "error", err)
		return nil
	}

	var parsed []answerScore
	if err := json.Unmarshal([]byte(stripMarkdownFences(raw)), &parsed); err != nil {
		slog.Warn("Scoring LLM response is not valid JSON, using heuristics", "who", who, "error", err)
		return nil
	}

	scores := make(map[int]answerScore, len(parsed))
	for _, sc := range parsed {
		if sc.Score < 0 {
			sc.Score = 0
		}
		if sc.Score > 100 {
			sc.Score = 100
		}
		scores[sc.QuestionID] = sc
	}
	// The model must cover every question or the batch is unusable.
	for _, entry := range entries {
		if _, ok := scores[entry.Question.ID]; !ok {
			slog.Warn("Scoring LLM response missing a question, using heuristics",
				"who", who, "question_id", entry.Question.ID)
			return nil
		}
	}
	return scores
}

// improvementPlan summarizes the user's weakest answers into actionable
// advice. Falls back to a generic plan when the LLM is unavailable.
func (e *EvaluationService) improvementPlan(ctx context.Context, entries []QAEntry, scores map[int]answerScore) string {
	if e.llm == nil || len(entries) == 0 {
		return defaultImprovementPlan
	}

	var b strings.Builder
	for _, entry := range entries {
		sc := scores[entry.Question.ID]
		fmt.Fprintf(&b, "질문: %s\n답변: %s\n점수: %.0f, 피드백: %s\n\n",
			entry.Question.Content, entry.Answer.Content, sc.Score, sc.Feedback)
	}
	b.WriteString("위 면접 결과를 바탕으로 지원자가 다음 면접에서 개선할 점을 3~5문장으로 제안해 주세요.")

	plan, err := e.llm.GenerateText(ctx,
		"당신은 면접 코치입니다. 구체적이고 실행 가능한 조언만 합니다.", b.String())
	if err != nil || strings.TrimSpace(plan) == "" {
		slog.Warn("Improvement plan generation failed, using default", "error", err)
		return defaultImprovementPlan
	}
	return sanitizeText(plan)
}

func splitByAnswerer(history []QAEntry) (user, ai []QAEntry) {
	for _, entry := range history {
		if entry.Answer.Answerer == AnswererAI {
			ai = append(ai, entry)
		} else {
			user = append(user, entry)
		}
	}
	return user, ai
}

func scoreFor(entry QAEntry, userScores, aiScores map[int]answerScore) (answerScore, bool) {
	if entry.Answer.Answerer == AnswererAI {
		sc, ok := aiScores[entry.Question.ID]
		return sc, ok
	}
	sc, ok := userScores[entry.Question.ID]
	return sc, ok
}

func overallScore(entries []QAEntry, scores map[int]answerScore) float64 {
	if len(entries) == 0 {
		return 0
	}
	total := 0.0
	for _, entry := range entries {
		total += scores[entry.Question.ID].Score
	}
	return total / float64(len(entries))
}

// heuristicScore is the no-LLM fallback: substance is approximated by answer
// length, with a floor for empty or apology answers.
func heuristicScore(entry QAEntry) answerScore {
	answer := strings.TrimSpace(entry.Answer.Content)
	if answer == "" || answer == aiApologyAnswer {
		return answerScore{
			QuestionID: entry.Question.ID,
			Score:      30,
			Feedback:   "답변이 제출되지 않았거나 내용이 없습니다.",
		}
	}
	score := 50.0 + float64(utf8.RuneCountInString(answer))/10
	if score > 85 {
		score = 85
	}
	return answerScore{
		QuestionID: entry.Question.ID,
		Score:      score,
		Feedback:   "답변의 구조와 구체성을 기준으로 기본 평가되었습니다.",
	}
}

// levelFromScore maps a 0-100 score onto the 1-5 question-level column.
func levelFromScore(score float64) int {
	switch {
	case score >= 90:
		return 5
	case score >= 75:
		return 4
	case score >= 55:
		return 3
	case score >= 35:
		return 2
	case score > 0:
		return 1
	default:
		return 3
	}
}
