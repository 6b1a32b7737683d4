// Package http contiene la infraestructura HTTP compartida: métricas
// Prometheus y construcción del servidor. Los handlers viven en
// controllers/, los middlewares en middlewares/ y el armado de rutas en
// router/.
package http

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once
	metricsErr  error

	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	// Dominio IDP
	loginsTotal      *prometheus.CounterVec // result: ok|bad_credentials
	authCodesIssued  prometheus.Counter
	tokensIssued     prometheus.Counter
	exchangeFailures *prometheus.CounterVec // reason: invalid_client|invalid_grant|...

	// Gateway
	upstreamRequests *prometheus.CounterVec // upstream: llm|rag|ocr; result: ok|error
	cacheLookups     *prometheus.CounterVec // kind: translate|rag|ocr; result: hit|miss
)

// MetricsConfig agrupa dependencias para exponer /metrics.
type MetricsConfig struct {
	Registry prometheus.Registerer
	// Pool opcional: si está, se registra un collector con el estado del
	// pool de Postgres.
	Pool func() *pgxpool.Pool
}

// RegisterMetrics inicializa las métricas y devuelve el handler de /metrics.
func RegisterMetrics(cfg MetricsConfig) (http.Handler, error) {
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		httpInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"})

		loginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idp_logins_total",
			Help: "Intentos de login por resultado",
		}, []string{"result"})

		authCodesIssued = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "idp_auth_codes_issued_total",
			Help: "Authorization codes emitidos",
		})

		tokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "idp_tokens_issued_total",
			Help: "Access tokens emitidos",
		})

		exchangeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idp_exchange_failures_total",
			Help: "Fallos del token exchange por causa",
		}, []string{"reason"})

		upstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_upstream_requests_total",
			Help: "Llamadas salientes a colaboradores por resultado",
		}, []string{"upstream", "result"})

		cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_cache_lookups_total",
			Help: "Lecturas de cache por tipo y resultado",
		}, []string{"kind", "result"})

		for _, c := range []prometheus.Collector{
			httpRequestsTotal, httpRequestDuration, httpInflight,
			loginsTotal, authCodesIssued, tokensIssued, exchangeFailures,
			upstreamRequests, cacheLookups,
		} {
			if err := registerCollector(registry, c); err != nil {
				metricsErr = err
				return
			}
		}
	})
	if metricsErr != nil {
		return nil, metricsErr
	}

	if cfg.Pool != nil {
		if err := registerCollector(registry, newDBPoolCollector(cfg.Pool)); err != nil {
			return nil, err
		}
	}

	// Gatherer global por compatibilidad: las métricas se registran allí.
	return promhttp.Handler(), nil
}

// WithMetrics instrumenta requests HTTP (contadores, latencia, inflight).
func WithMetrics(next http.Handler) http.Handler {
	if next == nil {
		return nil
	}
	if httpRequestsTotal == nil || httpRequestDuration == nil || httpInflight == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		pathLabel := normalizePath(r.URL.Path)

		httpInflight.WithLabelValues(method, pathLabel).Inc()
		start := time.Now()

		rec := &metricsRecorder{ResponseWriter: w}
		defer func() {
			httpInflight.WithLabelValues(method, pathLabel).Dec()
			httpRequestDuration.WithLabelValues(method, pathLabel).Observe(time.Since(start).Seconds())

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(method, pathLabel, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(rec, r)
	})
}

type metricsRecorder struct {
	http.ResponseWriter
	status int
}

func (m *metricsRecorder) WriteHeader(code int) {
	if m.status == 0 {
		m.status = code
	}
	m.ResponseWriter.WriteHeader(code)
}

func (m *metricsRecorder) Write(b []byte) (int, error) {
	if m.status == 0 {
		m.status = http.StatusOK
	}
	return m.ResponseWriter.Write(b)
}

// registerCollector registra ignorando duplicados.
func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// dbPoolCollector expone gauges del pool de Postgres.
type dbPoolCollector struct {
	pool func() *pgxpool.Pool

	acquiredDesc *prometheus.Desc
	idleDesc     *prometheus.Desc
	totalDesc    *prometheus.Desc
}

func newDBPoolCollector(pool func() *pgxpool.Pool) *dbPoolCollector {
	return &dbPoolCollector{
		pool:         pool,
		acquiredDesc: prometheus.NewDesc("pg_pool_acquired", "Conexiones adquiridas", nil, nil),
		idleDesc:     prometheus.NewDesc("pg_pool_idle", "Conexiones inactivas", nil, nil),
		totalDesc:    prometheus.NewDesc("pg_pool_total", "Conexiones totales", nil, nil),
	}
}

func (c *dbPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredDesc
	ch <- c.idleDesc
	ch <- c.totalDesc
}

func (c *dbPoolCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}
	pool := c.pool()
	if pool == nil {
		return
	}
	stat := pool.Stat()
	if stat == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.acquiredDesc, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idleDesc, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(stat.TotalConns()))
}

var (
	uuidSegmentRE  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F-]{4}-[0-9a-fA-F-]{4,}$`)
	hexSegmentRE   = regexp.MustCompile(`^[0-9a-fA-F]{16,}$`)
	tokenSegmentRE = regexp.MustCompile(`^[A-Za-z0-9_-]{24,}$`)
)

// normalizePath colapsa segmentos dinámicos (ids, hashes, tokens) para no
// explotar la cardinalidad de los labels.
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	clean := strings.SplitN(p, "?", 2)[0]
	if clean == "" {
		return "/"
	}
	if !strings.HasPrefix(clean, "/") {
		clean = "/" + clean
	}

	segments := strings.Split(clean, "/")
	var out []string
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if isDynamicSegment(seg) {
			out = append(out, ":param")
		} else {
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

func isDynamicSegment(seg string) bool {
	if len(seg) > 48 {
		return true
	}
	if uuidSegmentRE.MatchString(seg) {
		return true
	}
	if hexSegmentRE.MatchString(seg) {
		return true
	}
	if tokenSegmentRE.MatchString(seg) {
		return true
	}
	if _, err := strconv.Atoi(seg); err == nil {
		return true
	}
	return false
}

// Helpers de dominio: no-ops si RegisterMetrics no corrió (tests).

// RecordLogin registra un intento de login.
func RecordLogin(result string) {
	if loginsTotal != nil {
		loginsTotal.WithLabelValues(result).Inc()
	}
}

// RecordAuthCodeIssued registra un authorization code emitido.
func RecordAuthCodeIssued() {
	if authCodesIssued != nil {
		authCodesIssued.Inc()
	}
}

// RecordTokenIssued registra un access token emitido.
func RecordTokenIssued() {
	if tokensIssued != nil {
		tokensIssued.Inc()
	}
}

// RecordExchangeFailure registra un exchange fallido.
func RecordExchangeFailure(reason string) {
	if exchangeFailures != nil {
		exchangeFailures.WithLabelValues(reason).Inc()
	}
}

// RecordUpstream registra una llamada saliente a un colaborador.
func RecordUpstream(upstream, result string) {
	if upstreamRequests != nil {
		upstreamRequests.WithLabelValues(upstream, result).Inc()
	}
}

// RecordCacheLookup registra un hit/miss de cache del gateway.
func RecordCacheLookup(kind, result string) {
	if cacheLookups != nil {
		cacheLookups.WithLabelValues(kind, result).Inc()
	}
}
