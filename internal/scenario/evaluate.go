package scenario

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hitoshi/protext/internal/model"
)

// スコアの下限と上限。
const (
	minScore = 45
	maxScore = 100
)

// EvaluateRequest は /api/evaluate のリクエストボディ。
type EvaluateRequest struct {
	ScenarioID string              `json:"scenarioId"`
	Transcript []model.ChatMessage `json:"transcript"`
	Mode       model.PracticeMode  `json:"mode"`
	Difficulty model.Difficulty    `json:"difficulty"`
	SelfRating *float64            `json:"selfRating"`
}

// Valid は必須項目が揃っているかを返す。
func (r *EvaluateRequest) Valid() bool {
	return r.ScenarioID != "" && r.Transcript != nil
}

// Metric は評価項目ごとのスコア。
type Metric struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Score  int     `json:"score"`
	Weight float64 `json:"weight"`
}

// ScenarioRef は評価結果に含めるシナリオの要約。
type ScenarioRef struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Persona    model.Persona    `json:"persona"`
	Difficulty model.Difficulty `json:"difficulty"`
	Category   string           `json:"category"`
}

// Evaluation は /api/evaluate のレスポンス。
type Evaluation struct {
	Scenario          ScenarioRef `json:"scenario"`
	CompletedAt       string      `json:"completedAt"`
	OverallScore      int         `json:"overallScore"`
	OverallRating     string      `json:"overallRating"`
	Metrics           []Metric    `json:"metrics"`
	GrammarFeedback   []string    `json:"grammarFeedback"`
	SuggestedPhrasing []string    `json:"suggestedPhrasing"`
	Summary           string      `json:"summary"`
	FocusMetric       Metric      `json:"focusMetric"`
	SelfRating        float64     `json:"selfRating"`
	ShareableSummary  string      `json:"shareableSummary"`
	ShareURL          string      `json:"shareUrl"`
}

var grammarFeedback = []string{
	"Watch for long sentences. Break complex ideas into shorter statements to keep your reader with you.",
	"Double-check subject-verb agreement when you switch between singular teams and plural squads.",
	"Lean on active voice when describing ownership so stakeholders know who is accountable.",
}

var suggestedPhrasing = []string{
	"“We will cut integration time by 40% this quarter by focusing platform capacity on the developer onboarding flow.”",
	"“If we defer the migration, we forfeit $1.2M in projected savings and continue paying the coordination tax.”",
	"“The call-to-action for you is to sponsor the cross-functional sprint so we can unblock Procurement by Friday.”",
}

// Evaluate はトランスクリプトの語数とモードから簡易スコアを算出する。
// 同じ入力とnowに対して常に同じ結果を返す。
func Evaluate(s *model.Scenario, req EvaluateRequest, now time.Time) *Evaluation {
	var userWords, assistantWords int
	for _, m := range req.Transcript {
		n := len(strings.Fields(m.Content))
		if m.Role == "user" {
			userWords += n
		} else {
			assistantWords += n
		}
	}

	selfRating := ClampSelfRating(req.SelfRating)
	coaching := req.Mode == model.ModeCoaching

	base := 68 + float64(userWords)*0.6 + float64(assistantWords)*0.2 + (selfRating-3)*4
	if coaching {
		base += 6
	}
	baseScore := float64(ClampScore(base))

	metrics := []Metric{
		{ID: "clarity", Label: "Clarity & Framing", Weight: 0.35,
			Score: ClampScore(baseScore + 4 - bonus(s.Difficulty == model.DifficultyAdvanced, 6))},
		{ID: "influence", Label: "Influence & Follow-through", Weight: 0.3,
			Score: ClampScore(baseScore + bonus(req.Mode == model.ModeSimulation, 3))},
		{ID: "technical", Label: "Technical Rigor", Weight: 0.2,
			Score: ClampScore(baseScore + pick(s.HasTag("Architecture"), 6, -2))},
		{ID: "tone", Label: "Executive Presence", Weight: 0.15,
			Score: ClampScore(baseScore - bonus(coaching, 2) + bonus(s.Difficulty == model.DifficultyBeginner, 4))},
	}

	var weighted, totalWeight float64
	focus := metrics[0]
	for _, m := range metrics {
		weighted += float64(m.Score) * m.Weight
		totalWeight += m.Weight
		if m.Score < focus.Score {
			focus = m
		}
	}
	overall := ClampScore(weighted / totalWeight)
	rating := RatingForScore(overall)

	return &Evaluation{
		Scenario: ScenarioRef{
			ID:         s.ID,
			Title:      s.Title,
			Persona:    s.Persona,
			Difficulty: s.Difficulty,
			Category:   s.Category,
		},
		CompletedAt:       now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		OverallScore:      overall,
		OverallRating:     rating,
		Metrics:           metrics,
		GrammarFeedback:   grammarFeedback,
		SuggestedPhrasing: suggestedPhrasing,
		Summary:           s.Summary,
		FocusMetric:       focus,
		SelfRating:        selfRating,
		ShareableSummary: fmt.Sprintf("I just completed the “%s” practice scenario in %s mode and scored %d (%s) with %s momentum.",
			s.Title, req.Mode, overall, rating, adjectiveForScore(overall)),
		ShareURL: fmt.Sprintf("https://protext.coach/share/%s?score=%d", s.ID, overall),
	}
}

// ClampScore は四捨五入して [45, 100] に収める。
func ClampScore(score float64) int {
	rounded := int(math.Floor(score + 0.5))
	return min(maxScore, max(minScore, rounded))
}

// ClampSelfRating は自己評価を [1, 5] に収める。未指定なら3。
func ClampSelfRating(rating *float64) float64 {
	if rating == nil || math.IsNaN(*rating) || math.IsInf(*rating, 0) {
		return 3
	}
	return math.Min(5, math.Max(1, *rating))
}

// RatingForScore は総合スコアの評価ラベルを返す。
func RatingForScore(score int) string {
	switch {
	case score >= 90:
		return "Exceptional"
	case score >= 80:
		return "Strong"
	case score >= 70:
		return "On track"
	case score >= 60:
		return "Emerging"
	default:
		return "Needs focus"
	}
}

func adjectiveForScore(score int) string {
	switch {
	case score >= 90:
		return "outstanding"
	case score >= 80:
		return "strong"
	case score >= 70:
		return "steady"
	case score >= 60:
		return "developing"
	default:
		return "nascent"
	}
}

func bonus(cond bool, v float64) float64 {
	return pick(cond, v, 0)
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}
