package model

// PracticeMode は練習の進め方。
type PracticeMode string

const (
	ModeSimulation PracticeMode = "simulation"
	ModeCoaching   PracticeMode = "coaching"
)

// Difficulty はシナリオの難易度。
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "Beginner"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"
)

// Persona は会話相手となる人物。
type Persona struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	AvatarColor string `json:"avatarColor"`
}

// ScenarioAnalytics はシナリオごとの進捗表示用の値。
type ScenarioAnalytics struct {
	CompletionRate    float64 `json:"completionRate"`
	SessionsCompleted int     `json:"sessionsCompleted"`
	TargetSessions    int     `json:"targetSessions"`
	AvgScore          int     `json:"avgScore"`
	UnlockMessage     string  `json:"unlockMessage,omitempty"`
}

// Scenario は練習シナリオを表す。カタログは静的データで、実行時に変更されない。
type Scenario struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Summary         string            `json:"summary"`
	Persona         Persona           `json:"persona"`
	Category        string            `json:"category"`
	Difficulty      Difficulty        `json:"difficulty"`
	Modes           []PracticeMode    `json:"modes"`
	Tags            []string          `json:"tags"`
	Locked          bool              `json:"locked"`
	UnlockCriteria  string            `json:"unlockCriteria,omitempty"`
	Analytics       ScenarioAnalytics `json:"analytics"`
	Introduction    string            `json:"introduction"`
	ScenarioPrompts []string          `json:"scenarioPrompts"`
	CoachingTips    []string          `json:"coachingTips"`
}

// HasTag はタグが付いているかを返す。
func (s *Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ChatMessage はチャット履歴・評価用トランスクリプトの1件。
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
