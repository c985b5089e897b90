package services

import (
	"context"
	"testing"
)

func TestCreatePersonaFromLLM(t *testing.T) {
	gen := &fakeGenerator{fn: func(ctx context.Context, system, prompt string) (string, error) {
		return "```json\n{\"name\":\"김가상\",\"summary\":\"4년차 백엔드\",\"background\":{\"career_years\":4,\"current_position\":\"백엔드 개발자\",\"education\":[\"학사\"]},\"technical_skills\":[\"Go\",\"PostgreSQL\"],\"projects\":[\"결제 시스템\"],\"strengths\":[\"집요함\"],\"motivation\":\"성장\",\"interview_style\":\"차분함\"}\n```", nil
	}}
	factory := NewPersonaFactory(gen, nil, NewCompanyCatalog())

	persona := factory.CreatePersona(context.Background(), "naver", "백엔드")
	if persona.Name != "김가상" {
		t.Errorf("Name = %q, want 김가상", persona.Name)
	}
	if len(persona.TechnicalSkills) != 2 {
		t.Errorf("TechnicalSkills = %v, want 2 entries", persona.TechnicalSkills)
	}
}

func TestCreatePersonaFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"llm error", failingGenerator()},
		{"invalid json", &fakeGenerator{fn: func(ctx context.Context, system, prompt string) (string, error) {
			return "JSON이 아닌 응답", nil
		}}},
		{"missing required fields", &fakeGenerator{fn: func(ctx context.Context, system, prompt string) (string, error) {
			return `{"summary":"이름 없음"}`, nil
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewPersonaFactory(tt.gen, nil, NewCompanyCatalog())
			persona := factory.CreatePersona(context.Background(), "kakao", "백엔드")
			if persona == nil {
				t.Fatal("CreatePersona must never return nil")
			}
			if persona.Name != "춘식이" {
				t.Errorf("Name = %q, want the default persona", persona.Name)
			}
			if len(persona.TechnicalSkills) == 0 {
				t.Error("default persona must carry technical skills")
			}
		})
	}
}

func TestCreatePersonaEmptySettingsUsesDefault(t *testing.T) {
	factory := NewPersonaFactory(failingGenerator(), nil, NewCompanyCatalog())
	persona := factory.CreatePersona(context.Background(), "", "")
	if persona == nil || persona.Name == "" {
		t.Fatal("empty settings must still yield a usable persona")
	}
}

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain json", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripMarkdownFences(tt.in); got != tt.want {
				t.Errorf("stripMarkdownFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
