package prometheus

import (
	"strconv"
	"time"
)

// ClaimMetrics holds the application metrics. A nil *ClaimMetrics is valid
// and records nothing.
type ClaimMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Claims
	ClaimsParsedTotal     CounterVec
	ClaimParseDuration    HistogramVec
	ClaimNounPhrases      HistogramVec
	ClaimFeatures         HistogramVec
	ClaimParseErrorsTotal CounterVec
	ClaimsetSize          HistogramVec

	// Sinks
	SinkFailuresTotal CounterVec

	// Infrastructure
	DBQueryDuration        HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	MessagesProcessedTotal CounterVec
	MessageProcessDuration HistogramVec
}

var (
	DefaultHTTPDurationBuckets  = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultParseDurationBuckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}
	DefaultDBDurationBuckets    = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultCountBuckets         = []float64{0, 1, 2, 4, 8, 16, 32, 64, 128}
)

// NewClaimMetrics registers every metric on collector.
func NewClaimMetrics(collector MetricsCollector) *ClaimMetrics {
	m := &ClaimMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	m.ClaimsParsedTotal = collector.RegisterCounter("claims_parsed_total", "Claims parsed", "category", "dependency_kind")
	m.ClaimParseDuration = collector.RegisterHistogram("claim_parse_duration_seconds", "Claim parse duration", DefaultParseDurationBuckets, "category")
	m.ClaimNounPhrases = collector.RegisterHistogram("claim_noun_phrases", "Distinct noun phrases per claim", DefaultCountBuckets, "category")
	m.ClaimFeatures = collector.RegisterHistogram("claim_features", "Feature segments per claim", DefaultCountBuckets, "category")
	m.ClaimParseErrorsTotal = collector.RegisterCounter("claim_parse_errors_total", "Claim parse failures", "code")
	m.ClaimsetSize = collector.RegisterHistogram("claimset_size", "Claims per annotated claimset", DefaultCountBuckets, "source")

	m.SinkFailuresTotal = collector.RegisterCounter("sink_failures_total", "Annotation sink failures", "sink")

	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "tier")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "tier")
	m.MessagesProcessedTotal = collector.RegisterCounter("messages_processed_total", "Messages processed", "topic", "status")
	m.MessageProcessDuration = collector.RegisterHistogram("message_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "topic")

	return m
}

// DependencyKind labels a dependency for the claims_parsed_total counter.
func DependencyKind(dependency int) string {
	if dependency == 0 {
		return "independent"
	}
	return "dependent"
}

func RecordHTTPRequest(m *ClaimMetrics, method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordClaimParsed records a successful parse.
func RecordClaimParsed(m *ClaimMetrics, category string, dependency, nounPhrases, features int, duration time.Duration) {
	if m == nil {
		return
	}
	m.ClaimsParsedTotal.WithLabelValues(category, DependencyKind(dependency)).Inc()
	m.ClaimParseDuration.WithLabelValues(category).Observe(duration.Seconds())
	m.ClaimNounPhrases.WithLabelValues(category).Observe(float64(nounPhrases))
	m.ClaimFeatures.WithLabelValues(category).Observe(float64(features))
}

func RecordParseError(m *ClaimMetrics, code string) {
	if m == nil {
		return
	}
	m.ClaimParseErrorsTotal.WithLabelValues(code).Inc()
}

func RecordClaimset(m *ClaimMetrics, source string, size int) {
	if m == nil {
		return
	}
	m.ClaimsetSize.WithLabelValues(source).Observe(float64(size))
}

func RecordSinkFailure(m *ClaimMetrics, sink string) {
	if m == nil {
		return
	}
	m.SinkFailuresTotal.WithLabelValues(sink).Inc()
}

func RecordDBQuery(m *ClaimMetrics, db, operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
}

// RecordCacheAccess counts a hit or miss on a cache tier ("local", "redis").
func RecordCacheAccess(m *ClaimMetrics, tier string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(tier).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(tier).Inc()
	}
}

func RecordMessage(m *ClaimMetrics, topic string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.MessagesProcessedTotal.WithLabelValues(topic, status).Inc()
	m.MessageProcessDuration.WithLabelValues(topic).Observe(duration.Seconds())
}
