package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCompanyNotFound is returned by Profile for unknown company codes.
// Callers are expected to degrade to GenericProfile.
var ErrCompanyNotFound = errors.New("company not found")

// CompanyProfile is the immutable per-session view of a company.
type CompanyProfile struct {
	CompanyID           string   `json:"company_id"`
	DisplayName         string   `json:"display_name"`
	TalentProfile       string   `json:"talent_profile"`
	CoreCompetencies    []string `json:"core_competencies"`
	TechFocus           []string `json:"tech_focus"`
	InterviewKeywords   []string `json:"interview_keywords"`
	CompanyCulture      string   `json:"company_culture,omitempty"`
	TechnicalChallenges []string `json:"technical_challenges,omitempty"`
}

// CompanyCatalog resolves display names to company codes and serves
// profiles. It is loaded once at startup and immutable afterwards, so reads
// need no locking.
type CompanyCatalog struct {
	byID    map[string]*CompanyProfile
	aliases map[string]string
}

func NewCompanyCatalog() *CompanyCatalog {
	c := &CompanyCatalog{
		byID:    make(map[string]*CompanyProfile),
		aliases: make(map[string]string),
	}
	c.loadDefaults()
	return c
}

// LoadFromDatabase overlays company rows on the bundled defaults. Intended
// to be called exactly once, before the catalog is shared.
func (c *CompanyCatalog) LoadFromDatabase(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, `
		SELECT company_id, name, talent_profile,
		       core_competencies, tech_focus, interview_keywords,
		       company_culture, technical_challenges
		FROM companies
		WHERE deleted_at IS NULL`)
	if err != nil {
		return fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var (
			profile                            CompanyProfile
			competencies, focus, keywords, challenges []byte
		)
		if err := rows.Scan(&profile.CompanyID, &profile.DisplayName, &profile.TalentProfile,
			&competencies, &focus, &keywords, &profile.CompanyCulture, &challenges); err != nil {
			return fmt.Errorf("failed to scan company row: %w", err)
		}
		profile.CoreCompetencies = decodeStringList(competencies)
		profile.TechFocus = decodeStringList(focus)
		profile.InterviewKeywords = decodeStringList(keywords)
		profile.TechnicalChallenges = decodeStringList(challenges)

		c.byID[profile.CompanyID] = &profile
		c.aliases[strings.ToLower(profile.DisplayName)] = profile.CompanyID
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read company rows: %w", err)
	}

	slog.Info("Company catalog loaded from database", "count", count, "total", len(c.byID))
	return nil
}

// Resolve canonicalizes a display name (Korean names included) to a stable
// company code. Unknown names map to the lowercased input.
func (c *CompanyCatalog) Resolve(name string) string {
	trimmed := strings.TrimSpace(name)
	if id, ok := c.aliases[strings.ToLower(trimmed)]; ok {
		return id
	}
	if _, ok := c.byID[strings.ToLower(trimmed)]; ok {
		return strings.ToLower(trimmed)
	}
	return strings.ToLower(trimmed)
}

// Profile returns the profile for a company code.
func (c *CompanyCatalog) Profile(companyID string) (*CompanyProfile, error) {
	if profile, ok := c.byID[companyID]; ok {
		return profile, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCompanyNotFound, companyID)
}

// GenericProfile is the fallback used when a company is unknown; persona and
// question generation still need a well-formed profile to prompt with.
func (c *CompanyCatalog) GenericProfile(companyID string) *CompanyProfile {
	display := companyID
	if display == "" {
		display = "지원 기업"
	}
	return &CompanyProfile{
		CompanyID:         companyID,
		DisplayName:       display,
		TalentProfile:     "문제 해결 능력과 협업 역량을 갖춘 인재",
		CoreCompetencies:  []string{"문제 해결", "커뮤니케이션", "성장 의지"},
		TechFocus:         []string{"백엔드", "웹 서비스"},
		InterviewKeywords: []string{"기본기", "협업", "성장 가능성"},
	}
}

// All returns every profile in the catalog, for seeding.
func (c *CompanyCatalog) All() []*CompanyProfile {
	profiles := make([]*CompanyProfile, 0, len(c.byID))
	for _, profile := range c.byID {
		profiles = append(profiles, profile)
	}
	return profiles
}

func decodeStringList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}

func (c *CompanyCatalog) loadDefaults() {
	defaults := []*CompanyProfile{
		{
			CompanyID:         "naver",
			DisplayName:       "네이버",
			TalentProfile:     "기술로 연결의 가치를 만드는 사람",
			CoreCompetencies:  []string{"대규모 트래픽 처리", "문제 해결", "자기주도적 성장"},
			TechFocus:         []string{"검색", "AI", "대규모 분산 시스템"},
			InterviewKeywords: []string{"확장성", "서비스 품질", "사용자 중심"},
			CompanyCulture:    "수평적 조직 문화와 기술 중심 의사결정",
			TechnicalChallenges: []string{
				"초당 수십만 건의 검색 요청 처리",
				"글로벌 서비스의 지연 시간 최소화",
			},
		},
		{
			CompanyID:         "kakao",
			DisplayName:       "카카오",
			TalentProfile:     "더 나은 세상을 만드는 기술과 사람",
			CoreCompetencies:  []string{"사용자 공감", "빠른 실행력", "협업"},
			TechFocus:         []string{"메시징", "플랫폼", "핀테크"},
			InterviewKeywords: []string{"수평 문화", "신뢰", "충돌 해결"},
			CompanyCulture:    "신뢰와 충돌, 헌신의 크루 문화",
		},
		{
			CompanyID:         "line",
			DisplayName:       "라인",
			TalentProfile:     "글로벌 사용자를 위한 기술",
			CoreCompetencies:  []string{"글로벌 협업", "품질에 대한 집착", "기술 깊이"},
			TechFocus:         []string{"메시징", "글로벌 인프라", "보안"},
			InterviewKeywords: []string{"WOW", "글로벌", "품질"},
		},
		{
			CompanyID:         "coupang",
			DisplayName:       "쿠팡",
			TalentProfile:     "고객 감동을 위해 끊임없이 혁신하는 인재",
			CoreCompetencies:  []string{"고객 집착", "주인 의식", "데이터 기반 의사결정"},
			TechFocus:         []string{"물류", "커머스", "대규모 데이터"},
			InterviewKeywords: []string{"고객 중심", "스케일", "실행력"},
		},
		{
			CompanyID:         "woowahan",
			DisplayName:       "우아한형제들",
			TalentProfile:     "기술로 배달 경험을 혁신하는 사람",
			CoreCompetencies:  []string{"꾸준한 학습", "코드 품질", "동료와의 성장"},
			TechFocus:         []string{"주문/배달 시스템", "MSA", "결제"},
			InterviewKeywords: []string{"기본기", "코드 리뷰", "장애 대응"},
		},
		{
			CompanyID:         "toss",
			DisplayName:       "토스",
			TalentProfile:     "금융의 모든 순간을 바꾸는 사람",
			CoreCompetencies:  []string{"오너십", "빠른 학습", "임팩트 중심 사고"},
			TechFocus:         []string{"핀테크", "결제 인프라", "보안"},
			InterviewKeywords: []string{"DRI", "속도", "사용자 경험"},
		},
	}

	for _, profile := range defaults {
		c.byID[profile.CompanyID] = profile
		c.aliases[strings.ToLower(profile.DisplayName)] = profile.CompanyID
	}
	// Common romanized aliases
	c.aliases["배달의민족"] = "woowahan"
	c.aliases["baemin"] = "woowahan"
	c.aliases["네이버웹툰"] = "naver"
}
