package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "news_crawler"

// 丢弃原因
const (
	DropDiscovery  = "discovery_error"
	DropUnresolved = "unresolved"
	DropStale      = "stale"
	DropExtract    = "extract_error"
	DropTooShort   = "too_short"
	DropEnrich     = "enrich_error"
	DropParse      = "parse_error"
)

// Registry 独立的注册表，避免和默认注册表里的其它指标混在一起
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	CyclesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_total",
		Help:      "Crawl cycles by result.",
	}, []string{"result"})

	CycleDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of a crawl cycle.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})

	URLsDiscovered = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "urls_discovered_total",
		Help:      "URLs returned by the search provider.",
	})

	ItemsDropped = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_dropped_total",
		Help:      "Keywords or URLs skipped during a cycle, by reason.",
	}, []string{"reason"})

	ArticlesStored = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "articles_stored_total",
		Help:      "Records written to the dataset, by operation.",
	}, []string{"op"})

	LLMCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_calls_total",
		Help:      "Language model requests by kind and result.",
	}, []string{"kind", "result"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler /metrics 处理器
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
