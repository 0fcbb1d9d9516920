package scenario

import (
	"context"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/hitoshi/protext/internal/model"
)

// DefaultSentenceInterval は文ごとの送信間隔。
const DefaultSentenceInterval = 320 * time.Millisecond

// tipDelay と doneDelay は最後の文からの追加待ち時間。
const (
	tipDelay  = 240 * time.Millisecond
	doneDelay = 480 * time.Millisecond
)

// maxExcerptLength はユーザー発言を引用する最大文字数。
const maxExcerptLength = 220

// EventType はストリームで送るイベントの種類。
type EventType string

const (
	EventContent EventType = "content"
	EventMessage EventType = "message"
	EventTip     EventType = "tip"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// Event はNDJSONストリームの1行。
type Event struct {
	Type    EventType          `json:"type"`
	Delta   string             `json:"delta,omitempty"`
	Message *model.ChatMessage `json:"message,omitempty"`
	Tip     string             `json:"tip,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// ChatRequest は /api/chat/generate のリクエストボディ。
type ChatRequest struct {
	ScenarioID string              `json:"scenarioId"`
	Messages   []model.ChatMessage `json:"messages"`
	Mode       model.PracticeMode  `json:"mode"`
	Difficulty model.Difficulty    `json:"difficulty"`
}

// Valid は必須項目が揃っているかを返す。
func (r *ChatRequest) Valid() bool {
	return r.ScenarioID != "" && r.Messages != nil && r.Mode != "" && r.Difficulty != ""
}

// ScheduledEvent は送信予定時刻（ストリーム開始からの経過時間）付きのイベント。
type ScheduledEvent struct {
	At    time.Duration
	Event Event
}

var difficultyTone = map[model.Difficulty]string{
	model.DifficultyBeginner:     "Keep the tone approachable and scaffold the context so newcomers understand what is at stake.",
	model.DifficultyIntermediate: "Bring clarity by connecting actions to impact while keeping the momentum high.",
	model.DifficultyAdvanced:     "Assume the reader is an executive peer: get to the strategic heart quickly and quantify the payoff.",
}

var (
	sentencePattern   = regexp.MustCompile(`[^.!?]+[.!?]+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Generator はシナリオの人物になりきった定型文の応答を組み立てる。言語モデルは使わない。
type Generator struct {
	interval time.Duration
	pick     func(n int) int
}

// NewGenerator はGeneratorを生成する。intervalが0以下ならDefaultSentenceIntervalを使う。
func NewGenerator(interval time.Duration) *Generator {
	if interval <= 0 {
		interval = DefaultSentenceInterval
	}
	return &Generator{interval: interval, pick: rand.IntN}
}

// Compose は送信するイベントを送信予定時刻付きで返す。
func (g *Generator) Compose(s *model.Scenario, req ChatRequest) []ScheduledEvent {
	response := g.response(s, req)

	sentences := sentencePattern.FindAllString(response, -1)
	if len(sentences) == 0 {
		sentences = []string{response}
	}

	events := make([]ScheduledEvent, 0, len(sentences)+3)
	for i, sentence := range sentences {
		events = append(events, ScheduledEvent{
			At:    time.Duration(i) * g.interval,
			Event: Event{Type: EventContent, Delta: strings.TrimSpace(sentence) + " "},
		})
	}

	end := time.Duration(len(sentences)) * g.interval
	events = append(events, ScheduledEvent{
		At:    end,
		Event: Event{Type: EventMessage, Message: &model.ChatMessage{Role: "assistant", Content: response}},
	})

	if req.Mode == model.ModeCoaching && len(s.CoachingTips) > 0 {
		events = append(events, ScheduledEvent{
			At:    end + tipDelay,
			Event: Event{Type: EventTip, Tip: s.CoachingTips[g.pick(len(s.CoachingTips))]},
		})
	}

	return append(events, ScheduledEvent{At: end + doneDelay, Event: Event{Type: EventDone}})
}

// Stream は予定時刻に合わせてemitを呼ぶ。ctxがキャンセルされたら残りを送らずに終了する。
func (g *Generator) Stream(ctx context.Context, events []ScheduledEvent, emit func(Event) error) error {
	start := time.Now()

	for _, ev := range events {
		if wait := ev.At - time.Since(start); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := emit(ev.Event); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) response(s *model.Scenario, req ChatRequest) string {
	firstName, _, _ := strings.Cut(s.Persona.Name, " ")
	excerpt := lastUserExcerpt(req.Messages)

	opening := "Here is how " + firstName + " would build on your latest draft"
	if excerpt != "" {
		opening += `: "` + excerpt + `"`
	}
	opening += "."

	var modeIntro string
	switch req.Mode {
	case model.ModeSimulation:
		modeIntro = firstName + " responds directly to your prompt, mirroring how they would engage during a live discussion."
	case model.ModeCoaching:
		modeIntro = firstName + " offers coaching guidance alongside your message so you can sharpen your framing before sending it to stakeholders."
	}

	nudge := `Stay crisp on the "so what": the team needs to know exactly why this decision matters right now.`
	if req.Mode == model.ModeCoaching {
		nudge = "Notice where your draft already shines, then tighten the moments that feel vague or assumption-heavy."
	}

	parts := []string{
		opening,
		difficultyTone[req.Difficulty],
		modeIntro,
		"Anchor the update in the outcome the leadership team already cares deeply about, and make the next decision unavoidable.",
		nudge,
	}

	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// lastUserExcerpt は最後のユーザー発言の空白を詰めて先頭だけを返す。
func lastUserExcerpt(messages []model.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "user" {
			continue
		}
		text := whitespacePattern.ReplaceAllString(messages[i].Content, " ")
		if runes := []rune(text); len(runes) > maxExcerptLength {
			text = string(runes[:maxExcerptLength])
		}
		return text
	}
	return ""
}
