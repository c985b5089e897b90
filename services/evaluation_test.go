package services

import (
	"context"
	"strings"
	"testing"
)

func sampleEntries() []QAEntry {
	q1 := QuestionRecord{ID: 1, Kind: KindIntroFixed, Content: "자기소개 부탁드립니다.", Role: RoleHR, IsFixed: true}
	q2 := QuestionRecord{ID: 2, Kind: KindRoleMain, Content: "기술 질문", Role: RoleTech}
	return []QAEntry{
		{Question: q1, Answer: AnswerRecord{QuestionID: 1, Answerer: AnswererUser, Content: "저는 백엔드 개발자입니다. 주문 시스템을 3년간 운영했습니다.", DurationSeconds: 40}},
		{Question: q2, Answer: AnswerRecord{QuestionID: 2, Answerer: AnswererUser, Content: "인덱스 설계로 조회 시간을 절반으로 줄였습니다.", DurationSeconds: 55}},
		{Question: q2, Answer: AnswerRecord{QuestionID: 2, Answerer: AnswererAI, Content: "저는 캐시 적중률을 개선한 경험이 있습니다."}},
	}
}

func TestSplitByAnswerer(t *testing.T) {
	user, ai := splitByAnswerer(sampleEntries())
	if len(user) != 2 {
		t.Errorf("user entries = %d, want 2", len(user))
	}
	if len(ai) != 1 {
		t.Errorf("ai entries = %d, want 1", len(ai))
	}
}

func TestScoreAnswersViaLLM(t *testing.T) {
	gen := &fakeGenerator{fn: func(ctx context.Context, system, prompt string) (string, error) {
		return `[{"question_id":1,"score":85,"feedback":"구체적입니다."},{"question_id":2,"score":120,"feedback":"범위 밖 점수"}]`, nil
	}}
	e := NewEvaluationService(gen, nil)

	user, _ := splitByAnswerer(sampleEntries())
	scores := e.scoreAnswers(context.Background(), AnswererUser, user)

	if scores[1].Score != 85 {
		t.Errorf("score[1] = %f, want 85", scores[1].Score)
	}
	if scores[2].Score != 100 {
		t.Errorf("score[2] = %f, want clamped to 100", scores[2].Score)
	}
}

func TestScoreAnswersFallsBackOnBadLLM(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"llm error", failingGenerator()},
		{"invalid json", &fakeGenerator{fn: func(ctx context.Context, system, prompt string) (string, error) {
			return "점수표가 아님", nil
		}}},
		{"missing question", &fakeGenerator{fn: func(ctx context.Context, system, prompt string) (string, error) {
			return `[{"question_id":1,"score":80,"feedback":"하나뿐"}]`, nil
		}}},
	}

	user, _ := splitByAnswerer(sampleEntries())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvaluationService(tt.gen, nil)
			scores := e.scoreAnswers(context.Background(), AnswererUser, user)
			if len(scores) != len(user) {
				t.Fatalf("scores = %d, want one per answer", len(scores))
			}
			for id, sc := range scores {
				if sc.Score <= 0 || sc.Feedback == "" {
					t.Errorf("heuristic score for question %d incomplete: %+v", id, sc)
				}
			}
		})
	}
}

func TestHeuristicScore(t *testing.T) {
	empty := heuristicScore(QAEntry{
		Question: QuestionRecord{ID: 1},
		Answer:   AnswerRecord{QuestionID: 1, Content: "   "},
	})
	if empty.Score != 30 {
		t.Errorf("empty answer score = %f, want 30", empty.Score)
	}

	apology := heuristicScore(QAEntry{
		Question: QuestionRecord{ID: 2},
		Answer:   AnswerRecord{QuestionID: 2, Content: aiApologyAnswer},
	})
	if apology.Score != 30 {
		t.Errorf("apology answer score = %f, want 30", apology.Score)
	}

	long := heuristicScore(QAEntry{
		Question: QuestionRecord{ID: 3},
		Answer:   AnswerRecord{QuestionID: 3, Content: strings.Repeat("상세한 답변입니다. ", 50)},
	})
	if long.Score != 85 {
		t.Errorf("long answer score = %f, want the 85 cap", long.Score)
	}
}

func TestOverallScore(t *testing.T) {
	entries := sampleEntries()[:2]
	scores := map[int]answerScore{
		1: {QuestionID: 1, Score: 80},
		2: {QuestionID: 2, Score: 60},
	}
	if got := overallScore(entries, scores); got != 70 {
		t.Errorf("overallScore = %f, want 70", got)
	}
	if got := overallScore(nil, nil); got != 0 {
		t.Errorf("empty overallScore = %f, want 0", got)
	}
}

func TestLevelFromScore(t *testing.T) {
	tests := []struct {
		score float64
		want  int
	}{
		{95, 5}, {80, 4}, {60, 3}, {40, 2}, {10, 1}, {0, 3},
	}
	for _, tt := range tests {
		if got := levelFromScore(tt.score); got != tt.want {
			t.Errorf("levelFromScore(%f) = %d, want %d", tt.score, got, tt.want)
		}
	}
}

func TestImprovementPlanFallback(t *testing.T) {
	e := NewEvaluationService(failingGenerator(), nil)
	user, _ := splitByAnswerer(sampleEntries())

	plan := e.improvementPlan(context.Background(), user, map[int]answerScore{})
	if plan != defaultImprovementPlan {
		t.Errorf("plan = %q, want the default plan", plan)
	}
}
