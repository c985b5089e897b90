package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/veriview/backend/models"
	"github.com/veriview/backend/repository"
)

// PersonaBackground describes the AI candidate's career history.
type PersonaBackground struct {
	CareerYears     int      `json:"career_years"`
	CurrentPosition string   `json:"current_position"`
	Education       []string `json:"education"`
}

// AICandidatePersona is the AI co-candidate's profile, constructed once per
// session and never rewritten.
type AICandidatePersona struct {
	Name              string            `json:"name"`
	Summary           string            `json:"summary"`
	Background        PersonaBackground `json:"background"`
	TechnicalSkills   []string          `json:"technical_skills"`
	Projects          []string          `json:"projects"`
	Experiences       []string          `json:"experiences"`
	Strengths         []string          `json:"strengths"`
	Weaknesses        []string          `json:"weaknesses"`
	Motivation        string            `json:"motivation"`
	CareerGoal        string            `json:"career_goal"`
	PersonalityTraits []string          `json:"personality_traits"`
	InterviewStyle    string            `json:"interview_style"`
	ResumeID          string            `json:"resume_id,omitempty"`
}

// PersonaFactory constructs AI candidate personas for (company, position)
// pairs. It always returns a well-formed persona; every failure path falls
// through to a deterministic default.
type PersonaFactory struct {
	llm     TextGenerator
	repo    *repository.GORMRepository
	catalog *CompanyCatalog
}

func NewPersonaFactory(llm TextGenerator, repo *repository.GORMRepository, catalog *CompanyCatalog) *PersonaFactory {
	return &PersonaFactory{
		llm:     llm,
		repo:    repo,
		catalog: catalog,
	}
}

// CreatePersona builds the persona for a session. Resolution order: persisted
// AI resume for the pair, then LLM generation, then the default template.
func (f *PersonaFactory) CreatePersona(ctx context.Context, companyID, position string) *AICandidatePersona {
	if strings.TrimSpace(companyID) == "" || strings.TrimSpace(position) == "" {
		slog.Warn("Persona requested with empty company or position, using default",
			"company_id", companyID, "position", position)
		return DefaultPersona(companyID, position)
	}

	if persona := f.fromStoredResume(ctx, companyID, position); persona != nil {
		return persona
	}

	if persona := f.fromLLM(ctx, companyID, position); persona != nil {
		f.persistResume(ctx, companyID, position, persona)
		return persona
	}

	slog.Warn("Persona generation failed, using default persona",
		"company_id", companyID, "position", position)
	persona := DefaultPersona(companyID, position)
	f.persistResume(ctx, companyID, position, persona)
	return persona
}

func (f *PersonaFactory) fromStoredResume(ctx context.Context, companyID, position string) *AICandidatePersona {
	if f.repo == nil {
		return nil
	}
	resume, err := f.repo.GetAIResume(ctx, companyID, position)
	if err != nil || resume == nil {
		return nil
	}

	var persona AICandidatePersona
	if err := json.Unmarshal([]byte(resume.Content), &persona); err != nil {
		slog.Warn("Stored AI resume is not a valid persona document",
			"ai_resume_id", resume.AIResumeID, "error", err)
		return nil
	}
	if persona.Name == "" {
		return nil
	}
	persona.ResumeID = resume.AIResumeID
	slog.Info("Persona lifted from stored AI resume",
		"ai_resume_id", resume.AIResumeID, "company_id", companyID, "position", position)
	return &persona
}

func (f *PersonaFactory) fromLLM(ctx context.Context, companyID, position string) *AICandidatePersona {
	if f.llm == nil {
		return nil
	}

	profile, err := f.catalog.Profile(companyID)
	if err != nil {
		profile = f.catalog.GenericProfile(companyID)
	}

	prompt := fmt.Sprintf(`%s의 %s 직무에 지원하는 가상 지원자의 프로필을 만들어 주세요.

회사 인재상: %s
기술 분야: %s

다음 JSON 스키마로만 응답하세요. 설명이나 마크다운 없이 JSON 객체 하나만 출력합니다.
{
  "name": "한국어 이름",
  "summary": "한 줄 요약",
  "background": {"career_years": 3, "current_position": "현재 직무", "education": ["학력"]},
  "technical_skills": ["기술"],
  "projects": ["프로젝트 한 줄 설명"],
  "experiences": ["경험"],
  "strengths": ["강점"],
  "weaknesses": ["약점"],
  "motivation": "지원 동기",
  "career_goal": "커리어 목표",
  "personality_traits": ["성격"],
  "interview_style": "면접 답변 스타일"
}`,
		profile.DisplayName, position, profile.TalentProfile, strings.Join(profile.TechFocus, ", "))

	raw, err := f.llm.GenerateText(ctx,
		"당신은 모의 면접 플랫폼을 위한 가상 지원자 프로필 생성기입니다.", prompt)
	if err != nil {
		slog.Warn("Persona LLM call failed", "error", err, "company_id", companyID)
		return nil
	}

	var persona AICandidatePersona
	if err := json.Unmarshal([]byte(stripMarkdownFences(raw)), &persona); err != nil {
		slog.Warn("Persona LLM response is not valid JSON", "error", err, "company_id", companyID)
		return nil
	}
	if persona.Name == "" || len(persona.TechnicalSkills) == 0 {
		slog.Warn("Persona LLM response missing required fields", "company_id", companyID)
		return nil
	}
	return &persona
}

// persistResume stores the persona as an ai_resume row so the session can
// report a stable ai_resume_id. Best effort; persona creation never fails on
// a write error.
func (f *PersonaFactory) persistResume(ctx context.Context, companyID, position string, persona *AICandidatePersona) {
	if f.repo == nil {
		return
	}
	content, err := json.Marshal(persona)
	if err != nil {
		return
	}
	resume := &models.AIResume{
		CompanyID: companyID,
		Position:  position,
		Title:     fmt.Sprintf("%s %s AI 지원자", companyID, position),
		Content:   string(content),
	}
	if err := f.repo.CreateAIResume(ctx, resume); err != nil {
		slog.Warn("Failed to persist AI resume", "error", err, "company_id", companyID)
		return
	}
	persona.ResumeID = resume.AIResumeID
}

// DefaultPersona is the deterministic fallback for a (company, position)
// pair: a three-year backend template with minimal but valid lists.
func DefaultPersona(companyID, position string) *AICandidatePersona {
	if position == "" {
		position = "백엔드"
	}
	return &AICandidatePersona{
		Name:    "춘식이",
		Summary: fmt.Sprintf("3년차 %s 개발자, 안정적인 서비스 운영 경험 보유", position),
		Background: PersonaBackground{
			CareerYears:     3,
			CurrentPosition: fmt.Sprintf("%s 개발자", position),
			Education:       []string{"컴퓨터공학 학사"},
		},
		TechnicalSkills: []string{"Java", "Spring Boot", "MySQL", "Redis"},
		Projects: []string{
			"일 평균 10만 건 주문을 처리하는 커머스 백엔드 운영",
			"레거시 모놀리스의 점진적 MSA 전환",
		},
		Experiences:       []string{"스타트업 백엔드 3년"},
		Strengths:         []string{"꼼꼼한 장애 대응", "협업 커뮤니케이션"},
		Weaknesses:        []string{"완벽주의로 인한 속도 저하"},
		Motivation:        fmt.Sprintf("%s의 기술 문화에서 더 큰 규모의 문제를 풀고 싶습니다", displayOrCode(companyID)),
		CareerGoal:        "대규모 시스템 설계를 주도하는 엔지니어",
		PersonalityTraits: []string{"차분함", "성실함"},
		InterviewStyle:    "경험 기반의 구체적인 답변",
	}
}

func displayOrCode(companyID string) string {
	if companyID == "" {
		return "지원 기업"
	}
	return companyID
}

// stripMarkdownFences removes ```json fences the models like to wrap JSON in.
func stripMarkdownFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
	}
	return strings.TrimSpace(trimmed)
}
