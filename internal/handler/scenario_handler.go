package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/protext/internal/middleware"
	"github.com/hitoshi/protext/internal/model"
	"github.com/hitoshi/protext/internal/scenario"
)

// ScenarioHandler は練習シナリオの一覧・会話生成・評価のHTTPハンドラー。
type ScenarioHandler struct {
	catalog   *scenario.Catalog
	generator *scenario.Generator
	now       func() time.Time
}

// NewScenarioHandler はScenarioHandlerを生成する。
func NewScenarioHandler(catalog *scenario.Catalog, generator *scenario.Generator) *ScenarioHandler {
	return &ScenarioHandler{
		catalog:   catalog,
		generator: generator,
		now:       time.Now,
	}
}

type scenarioListResponse struct {
	Scenarios []model.Scenario `json:"scenarios"`
	Filters   scenario.Filters `json:"filters"`
}

// List はシナリオ一覧と絞り込み候補を返す。
// GET /api/scenarios
func (h *ScenarioHandler) List(w http.ResponseWriter, r *http.Request) {
	scenarios := h.catalog.All()
	if scenarios == nil {
		scenarios = []model.Scenario{}
	}
	writeJSON(w, http.StatusOK, scenarioListResponse{
		Scenarios: scenarios,
		Filters:   h.catalog.Filters(),
	})
}

// Evaluate は会話の記録からスコアとフィードバックを算出する。
// POST /api/evaluate
func (h *ScenarioHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req scenario.EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("failed to parse evaluate request", slog.String("error", err.Error()))
		middleware.WriteAPIError(w, http.StatusBadRequest, model.NewInvalidBodyError())
		return
	}

	if !req.Valid() {
		middleware.WriteAPIError(w, http.StatusBadRequest, model.NewMissingParametersError("Missing scenario or transcript"))
		return
	}

	s := h.catalog.Find(req.ScenarioID)
	if s == nil {
		middleware.WriteAPIError(w, http.StatusNotFound, model.NewScenarioNotFoundError(req.ScenarioID))
		return
	}

	writeJSON(w, http.StatusOK, scenario.Evaluate(s, req, h.now()))
}

// Generate はシナリオの相手役の返答をNDJSONでストリーミングする。
// クライアントが切断した時点で送信を打ち切る。
// POST /api/chat/generate
func (h *ScenarioHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req scenario.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("failed to parse chat request", slog.String("error", err.Error()))
		middleware.WriteAPIError(w, http.StatusBadRequest, model.NewInvalidBodyError())
		return
	}

	if !req.Valid() {
		middleware.WriteAPIError(w, http.StatusBadRequest, model.NewMissingParametersError("Missing required parameters"))
		return
	}

	s := h.catalog.Find(req.ScenarioID)
	if s == nil {
		middleware.WriteAPIError(w, http.StatusNotFound, model.NewScenarioNotFoundError(req.ScenarioID))
		return
	}

	events := h.generator.Compose(s, req)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store, no-transform")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)

	err := h.generator.Stream(r.Context(), events, func(ev scenario.Event) error {
		// Encodeは末尾に改行を付けるので1行1イベントになる
		if err := enc.Encode(ev); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		return nil
	})
	if err != nil {
		slog.Debug("chat stream stopped", slog.String("scenario_id", s.ID), slog.String("error", err.Error()))
	}
}
