// Package scenario は練習シナリオのカタログ、定型文によるチャット応答、簡易評価を提供する。
package scenario

import "github.com/hitoshi/protext/internal/model"

// Filters はシナリオ一覧の絞り込み候補。値は初出順。
type Filters struct {
	Personas     []string             `json:"personas"`
	Categories   []string             `json:"categories"`
	Difficulties []model.Difficulty   `json:"difficulties"`
	Modes        []model.PracticeMode `json:"modes"`
}

// Catalog は静的なシナリオ一覧を保持する。
type Catalog struct {
	scenarios []model.Scenario
	byID      map[string]*model.Scenario
}

// NewCatalog は与えられたシナリオからCatalogを生成する。
func NewCatalog(scenarios []model.Scenario) *Catalog {
	c := &Catalog{
		scenarios: scenarios,
		byID:      make(map[string]*model.Scenario, len(scenarios)),
	}
	for i := range c.scenarios {
		c.byID[c.scenarios[i].ID] = &c.scenarios[i]
	}
	return c
}

// DefaultCatalog は組み込みのシナリオで構成されたCatalogを返す。
func DefaultCatalog() *Catalog {
	return NewCatalog(builtinScenarios())
}

// All は全シナリオを返す。
func (c *Catalog) All() []model.Scenario {
	return c.scenarios
}

// Find はIDでシナリオを探す。見つからない場合はnilを返す。
func (c *Catalog) Find(id string) *model.Scenario {
	return c.byID[id]
}

// Filters は一覧から重複を除いた絞り込み候補を作る。
func (c *Catalog) Filters() Filters {
	f := Filters{
		Personas:     []string{},
		Categories:   []string{},
		Difficulties: []model.Difficulty{},
		Modes:        []model.PracticeMode{},
	}
	for _, s := range c.scenarios {
		f.Personas = appendUnique(f.Personas, s.Persona.Name)
		f.Categories = appendUnique(f.Categories, s.Category)
		f.Difficulties = appendUnique(f.Difficulties, s.Difficulty)
		for _, m := range s.Modes {
			f.Modes = appendUnique(f.Modes, m)
		}
	}
	return f
}

func appendUnique[T comparable](list []T, v T) []T {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
