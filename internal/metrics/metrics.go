// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// auth.Recorder、middleware.StatusObserver、cleanup.Recorderを満たす。
type Collector struct {
	loginAttempts        *prometheus.CounterVec
	sessionsCreated      prometheus.Counter
	sessionsRevoked      prometheus.Counter
	sessionLookupFail    prometheus.Counter
	httpStatus           *prometheus.CounterVec
	expiredSessionsPurge prometheus.Counter
	auditLogsPurged      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siteadmin_login_attempts_total",
			Help: "結果別のログイン試行数",
		}, []string{"outcome"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siteadmin_sessions_created_total",
			Help: "発行されたセッションの合計数",
		}),
		sessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siteadmin_sessions_revoked_total",
			Help: "ユーザー単位の全セッション失効の実行回数",
		}),
		sessionLookupFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siteadmin_session_lookup_failures_total",
			Help: "データストア障害によるセッション検証失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siteadmin_http_responses_total",
			Help: "メソッド・ステータスコード別のレスポンス数",
		}, []string{"method", "status_code"}),
		expiredSessionsPurge: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siteadmin_expired_sessions_purged_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
		auditLogsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siteadmin_audit_logs_purged_total",
			Help: "保持期間を過ぎて削除された監査ログの合計数",
		}),
	}

	reg.MustRegister(
		c.loginAttempts,
		c.sessionsCreated,
		c.sessionsRevoked,
		c.sessionLookupFail,
		c.httpStatus,
		c.expiredSessionsPurge,
		c.auditLogsPurged,
	)

	return c
}

// RecordLoginAttempt はログイン試行を結果ラベル付きで記録する。
func (c *Collector) RecordLoginAttempt(outcome string) {
	c.loginAttempts.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordSessionCreated() {
	c.sessionsCreated.Inc()
}

func (c *Collector) RecordSessionsRevoked() {
	c.sessionsRevoked.Inc()
}

func (c *Collector) RecordSessionLookupFailure() {
	c.sessionLookupFail.Inc()
}

// RecordHTTPStatus はHTTPレスポンスのステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(method string, statusCode int) {
	c.httpStatus.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// RecordExpiredSessionsPurged は削除された期限切れセッション数を記録する。
func (c *Collector) RecordExpiredSessionsPurged(count int64) {
	c.expiredSessionsPurge.Add(float64(count))
}

// RecordAuditLogsPurged は削除された監査ログ数を記録する。
func (c *Collector) RecordAuditLogsPurged(count int64) {
	c.auditLogsPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// workerプロセスが単独でスクレイプを受ける場合に使う。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
