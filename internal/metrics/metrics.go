// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AuthRecorder は認証まわりの計測インターフェース。
// 検証器・ゲートキーパー・認証サービスから利用する。
type AuthRecorder interface {
	// RecordVerification はセッション検証の結果を記録する。
	// tierは "edge" または "server"、resultは "authenticated" または "denied"。
	RecordVerification(tier, result, reason string)
	// RecordKeyFetch は公開鍵セット取得の結果と所要時間を記録する。
	RecordKeyFetch(err error, duration time.Duration)
	// RecordSignIn はサインインの結果を記録する。
	RecordSignIn(outcome string)
	// RecordRevocationFailure はサインアウト時の失効処理失敗を記録する。
	RecordRevocationFailure()
	// RecordHTTPStatus はレスポンスのHTTPステータスコードを記録する。
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	verifications      *prometheus.CounterVec
	keyFetches         *prometheus.CounterVec
	keyFetchLatency    prometheus.Histogram
	signIns            *prometheus.CounterVec
	revocationFailures prometheus.Counter
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "protext_session_verifications_total",
			Help: "セッション検証の結果別件数",
		}, []string{"tier", "result", "reason"}),
		keyFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "protext_public_key_fetch_total",
			Help: "公開鍵セット取得の結果別件数",
		}, []string{"result"}),
		keyFetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "protext_public_key_fetch_duration_seconds",
			Help:    "公開鍵セット取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "protext_sign_ins_total",
			Help: "サインインの結果別件数",
		}, []string{"outcome"}),
		revocationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "protext_session_revocation_failures_total",
			Help: "サインアウト時のリフレッシュトークン失効に失敗した件数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "protext_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.verifications,
		c.keyFetches,
		c.keyFetchLatency,
		c.signIns,
		c.revocationFailures,
		c.httpStatus,
	)

	return c
}

// RecordVerification はセッション検証の結果を記録する。
func (c *Collector) RecordVerification(tier, result, reason string) {
	c.verifications.WithLabelValues(tier, result, reason).Inc()
}

// RecordKeyFetch は公開鍵セット取得の結果とレイテンシを記録する。
func (c *Collector) RecordKeyFetch(err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.keyFetches.WithLabelValues(result).Inc()
	c.keyFetchLatency.Observe(duration.Seconds())
}

// RecordSignIn はサインインの結果を記録する。
func (c *Collector) RecordSignIn(outcome string) {
	c.signIns.WithLabelValues(outcome).Inc()
}

// RecordRevocationFailure は失効処理の失敗を記録する。
func (c *Collector) RecordRevocationFailure() {
	c.revocationFailures.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないAuthRecorder。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordVerification(string, string, string) {}
func (Nop) RecordKeyFetch(error, time.Duration)       {}
func (Nop) RecordSignIn(string)                       {}
func (Nop) RecordRevocationFailure()                  {}
func (Nop) RecordHTTPStatus(int)                      {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
