package scenario

import (
	"testing"
	"time"

	"github.com/hitoshi/protext/internal/model"
)

func float(v float64) *float64 { return &v }

func TestEvaluate_Simulation(t *testing.T) {
	s := DefaultCatalog().Find("architecture-tradeoff-briefing")
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	got := Evaluate(s, EvaluateRequest{
		ScenarioID: s.ID,
		Transcript: []model.ChatMessage{
			{Role: "user", Content: "one two three four five"},
			{Role: "assistant", Content: "a b c d e f g h i j"},
		},
		Mode: model.ModeSimulation,
	}, now)

	wantScores := map[string]int{"clarity": 71, "influence": 76, "technical": 79, "tone": 73}
	for _, m := range got.Metrics {
		if m.Score != wantScores[m.ID] {
			t.Errorf("%s = %d, want %d", m.ID, m.Score, wantScores[m.ID])
		}
	}
	if got.OverallScore != 74 || got.OverallRating != "On track" {
		t.Errorf("overall = %d (%s), want 74 (On track)", got.OverallScore, got.OverallRating)
	}
	if got.FocusMetric.ID != "clarity" {
		t.Errorf("focus = %s, want clarity", got.FocusMetric.ID)
	}
	if got.SelfRating != 3 {
		t.Errorf("SelfRating = %v, want 3", got.SelfRating)
	}
	if got.CompletedAt != "2026-03-04T05:06:07.000Z" {
		t.Errorf("CompletedAt = %s", got.CompletedAt)
	}
	if got.ShareURL != "https://protext.coach/share/architecture-tradeoff-briefing?score=74" {
		t.Errorf("ShareURL = %s", got.ShareURL)
	}
	want := "I just completed the “Align on an Architecture Trade-off with the CTO” practice scenario in simulation mode and scored 74 (On track) with steady momentum."
	if got.ShareableSummary != want {
		t.Errorf("ShareableSummary = %s", got.ShareableSummary)
	}
}

func TestEvaluate_CoachingWithSelfRating(t *testing.T) {
	s := DefaultCatalog().Find("product-strategy-story")

	got := Evaluate(s, EvaluateRequest{
		ScenarioID: s.ID,
		Transcript: []model.ChatMessage{},
		Mode:       model.ModeCoaching,
		SelfRating: float(5),
	}, time.Now())

	if got.OverallScore != 83 || got.OverallRating != "Strong" {
		t.Errorf("overall = %d (%s), want 83 (Strong)", got.OverallScore, got.OverallRating)
	}
	if got.FocusMetric.ID != "technical" || got.FocusMetric.Score != 80 {
		t.Errorf("focus = %+v", got.FocusMetric)
	}
}

func TestEvaluate_ScoresStayInRange(t *testing.T) {
	s := DefaultCatalog().Find("exec-progress-update")
	long := make([]byte, 0, 4000)
	for i := 0; i < 2000; i++ {
		long = append(long, "w "...)
	}

	for _, transcript := range [][]model.ChatMessage{
		{{Role: "user", Content: string(long)}},
		{},
	} {
		got := Evaluate(s, EvaluateRequest{ScenarioID: s.ID, Transcript: transcript, SelfRating: float(-10)}, time.Now())
		for _, m := range append(got.Metrics, got.FocusMetric) {
			if m.Score < 45 || m.Score > 100 {
				t.Errorf("%s = %d out of range", m.ID, m.Score)
			}
		}
		if got.OverallScore < 45 || got.OverallScore > 100 {
			t.Errorf("overall = %d out of range", got.OverallScore)
		}
	}
}

func TestClampScore(t *testing.T) {
	tests := map[float64]int{
		10:    45,
		44.4:  45,
		72.5:  73,
		72.49: 72,
		99.6:  100,
		250:   100,
	}
	for in, want := range tests {
		if got := ClampScore(in); got != want {
			t.Errorf("ClampScore(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestClampSelfRating(t *testing.T) {
	if got := ClampSelfRating(nil); got != 3 {
		t.Errorf("nil = %v, want 3", got)
	}
	if got := ClampSelfRating(float(0)); got != 1 {
		t.Errorf("0 = %v, want 1", got)
	}
	if got := ClampSelfRating(float(9)); got != 5 {
		t.Errorf("9 = %v, want 5", got)
	}
	if got := ClampSelfRating(float(4.5)); got != 4.5 {
		t.Errorf("4.5 = %v, want 4.5", got)
	}
}

func TestRatingForScore(t *testing.T) {
	tests := map[int]string{95: "Exceptional", 90: "Exceptional", 85: "Strong", 70: "On track", 65: "Emerging", 50: "Needs focus"}
	for score, want := range tests {
		if got := RatingForScore(score); got != want {
			t.Errorf("RatingForScore(%d) = %s, want %s", score, got, want)
		}
	}
}

func TestEvaluateRequest_Valid(t *testing.T) {
	if (&EvaluateRequest{ScenarioID: "x"}).Valid() {
		t.Error("missing transcript should be invalid")
	}
	if !(&EvaluateRequest{ScenarioID: "x", Transcript: []model.ChatMessage{}}).Valid() {
		t.Error("empty transcript should be valid")
	}
}
