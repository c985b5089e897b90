package services

import "testing"

func TestBothAnsweredPrevious(t *testing.T) {
	s := NewSessionState("s", 15)
	if s.BothAnsweredPrevious() {
		t.Fatal("empty history must report false")
	}

	q := QuestionRecord{ID: 1}
	s.QAHistory = append(s.QAHistory, QAEntry{Question: q, Answer: AnswerRecord{QuestionID: 1, Answerer: AnswererUser}})
	if s.BothAnsweredPrevious() {
		t.Fatal("single answer must report false")
	}

	s.QAHistory = append(s.QAHistory, QAEntry{Question: q, Answer: AnswerRecord{QuestionID: 1, Answerer: AnswererAI}})
	if !s.BothAnsweredPrevious() {
		t.Fatal("matching pair must report true")
	}

	q2 := QuestionRecord{ID: 2}
	s.QAHistory = append(s.QAHistory, QAEntry{Question: q2, Answer: AnswerRecord{QuestionID: 2, Answerer: AnswererUser}})
	if s.BothAnsweredPrevious() {
		t.Fatal("trailing unpaired answer must report false")
	}
}

func TestNextQuestionIDMonotonic(t *testing.T) {
	s := NewSessionState("s", 15)
	for want := 1; want <= 5; want++ {
		if got := s.NextQuestionID(); got != want {
			t.Fatalf("NextQuestionID = %d, want %d", got, want)
		}
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := NewSessionState("s", 15)
	s.QAHistory = append(s.QAHistory, QAEntry{
		Question: QuestionRecord{ID: 1, Content: "질문"},
		Answer:   AnswerRecord{QuestionID: 1, Answerer: AnswererUser, Content: "답변"},
	})
	s.TurnStates[RoleHR].FollowUps = 1
	s.Pending = &PendingQuestion{Common: &QuestionRecord{ID: 2}}

	snap := s.Snapshot()

	s.QAHistory[0].Answer.Content = "변조"
	s.TurnStates[RoleHR].FollowUps = 9

	if snap.QAHistory[0].Answer.Content != "답변" {
		t.Error("snapshot history shares backing storage with the live session")
	}
	if snap.TurnStates[RoleHR].FollowUps != 1 {
		t.Error("snapshot turn states share pointers with the live session")
	}
	if snap.Pending != nil {
		t.Error("snapshots must not carry the pending question")
	}
}

func TestSessionStateDefaults(t *testing.T) {
	s := NewSessionState("s", 0)
	if s.TotalQuestionLimit != 15 {
		t.Errorf("TotalQuestionLimit = %d, want the default 15", s.TotalQuestionLimit)
	}
	if s.CurrentInterviewer != RoleHR {
		t.Errorf("CurrentInterviewer = %s, want HR first", s.CurrentInterviewer)
	}
	if len(s.TurnStates) != 3 {
		t.Errorf("TurnStates = %d, want one per interviewer", len(s.TurnStates))
	}
}
