package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionapi_requests_total",
		Help: "Total API requests by endpoint",
	}, []string{"endpoint"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "regionapi_request_duration_ms",
		Help:    "Request duration in milliseconds by endpoint",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"endpoint"})
	EmptyResultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionapi_empty_results_total",
		Help: "Total responses with no matching division",
	})
	RedisHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionapi_redis_hits_total",
		Help: "Total redis cache hits",
	})
	RedisMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionapi_redis_misses_total",
		Help: "Total redis cache misses",
	})
	SnapshotHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionapi_snapshot_hits_total",
		Help: "Total in-memory division snapshot hits",
	})
	SnapshotRebuildTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionapi_snapshot_rebuild_total",
		Help: "Total division snapshot rebuilds",
	})
	LocateRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionapi_locate_requests_total",
		Help: "Total locate provider queries",
	}, []string{"provider"})
	LocateSuccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionapi_locate_success_total",
		Help: "Total locate provider successes (non-empty result)",
	}, []string{"provider"})
	LocateFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionapi_locate_fail_total",
		Help: "Total locate provider failures (empty or error)",
	}, []string{"provider"})
	LocateDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "regionapi_locate_duration_ms",
		Help:    "Locate provider query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"provider"})
	LocateHeartbeatTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionapi_locate_heartbeat_total",
		Help: "Locate provider heartbeat count by status",
	}, []string{"provider", "status"})
	AMapRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionapi_amap_requests_total",
		Help: "Total amap regeo REST requests",
	})
	AMapFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionapi_amap_fail_total",
		Help: "Total amap regeo REST failures",
	})
	AMapDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "regionapi_amap_duration_ms",
		Help:    "AMap regeo REST call duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	ClientRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionapi_client_requests_total",
		Help: "Total region API client calls by endpoint",
	}, []string{"endpoint"})
	ClientFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionapi_client_fail_total",
		Help: "Total failed region API client calls by endpoint",
	}, []string{"endpoint"})
	CascaderFinalizeTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionapi_cascader_finalize_total",
		Help: "Total finalized selections in the cascader core",
	})
	CascaderCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionapi_cascader_cache_hits_total",
		Help: "Total path cache hits on open/value change",
	})
	CascaderCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionapi_cascader_cache_misses_total",
		Help: "Total path cache misses on open/value change",
	})
	CascaderFetchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "regionapi_cascader_fetch_duration_ms",
		Help:    "Child level fetch duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	CascaderSearchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "regionapi_cascader_search_duration_ms",
		Help:    "Keyword search duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	CascaderLocateTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionapi_cascader_locate_total",
		Help: "Total geolocation attempts in the cascader core",
	})
	CascaderLocateFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionapi_cascader_locate_fail_total",
		Help: "Total failed geolocation attempts in the cascader core",
	})
	CascaderLocateDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "regionapi_cascader_locate_duration_ms",
		Help:    "End-to-end geolocation resolution duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 5000, 15000},
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(EmptyResultsTotal)
	prometheus.MustRegister(RedisHitsTotal)
	prometheus.MustRegister(RedisMissesTotal)
	prometheus.MustRegister(SnapshotHitsTotal)
	prometheus.MustRegister(SnapshotRebuildTotal)
	prometheus.MustRegister(LocateRequestsTotal)
	prometheus.MustRegister(LocateSuccessTotal)
	prometheus.MustRegister(LocateFailTotal)
	prometheus.MustRegister(LocateDurationMs)
	prometheus.MustRegister(LocateHeartbeatTotal)
	prometheus.MustRegister(AMapRequestsTotal)
	prometheus.MustRegister(AMapFailTotal)
	prometheus.MustRegister(AMapDurationMs)
	prometheus.MustRegister(ClientRequestsTotal)
	prometheus.MustRegister(ClientFailTotal)
	prometheus.MustRegister(CascaderFinalizeTotal)
	prometheus.MustRegister(CascaderCacheHitsTotal)
	prometheus.MustRegister(CascaderCacheMissesTotal)
	prometheus.MustRegister(CascaderFetchDurationMs)
	prometheus.MustRegister(CascaderSearchDurationMs)
	prometheus.MustRegister(CascaderLocateTotal)
	prometheus.MustRegister(CascaderLocateFailTotal)
	prometheus.MustRegister(CascaderLocateDurationMs)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
