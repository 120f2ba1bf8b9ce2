// Package metrics holds the prometheus collectors describing the data pipeline.
// A nil *Pipeline is valid and records nothing, so components can be built without metrics in tests.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline groups the collectors updated by the catalog, reader and service layers.
type Pipeline struct {
	rowsScanned     prometheus.Counter
	pagesServed     *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	readerFallbacks *prometheus.CounterVec
	upstreamRetries prometheus.Counter
}

// NewPipeline creates the collectors and registers them on reg.
func NewPipeline(reg prometheus.Registerer) (*Pipeline, error) {
	p := &Pipeline{
		rowsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ear_rows_scanned_total",
			Help: "Rows read from resources while answering page queries.",
		}),
		pagesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ear_pages_served_total",
			Help: "Pages answered, by resource format.",
		}, []string{"format"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ear_catalog_cache_lookups_total",
			Help: "Catalog metadata cache lookups, by result.",
		}, []string{"result"}),
		readerFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ear_reader_fallbacks_total",
			Help: "Reader strategy fallbacks, by kind.",
		}, []string{"kind"}),
		upstreamRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ear_upstream_retries_total",
			Help: "Retried upstream HTTP attempts.",
		}),
	}

	for _, c := range []prometheus.Collector{p.rowsScanned, p.pagesServed, p.cacheLookups, p.readerFallbacks, p.upstreamRetries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// RowsScanned adds n examined rows.
func (p *Pipeline) RowsScanned(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.rowsScanned.Add(float64(n))
}

// PageServed counts one answered page for the given format.
func (p *Pipeline) PageServed(format string) {
	if p == nil {
		return
	}
	p.pagesServed.WithLabelValues(format).Inc()
}

// CacheLookup counts a catalog cache hit or miss.
func (p *Pipeline) CacheLookup(hit bool) {
	if p == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(result).Inc()
}

// ReaderFallback counts a reader strategy fallback such as "download" or "latin1".
func (p *Pipeline) ReaderFallback(kind string) {
	if p == nil {
		return
	}
	p.readerFallbacks.WithLabelValues(kind).Inc()
}

// UpstreamRetry counts one retried upstream attempt.
func (p *Pipeline) UpstreamRetry() {
	if p == nil {
		return
	}
	p.upstreamRetries.Inc()
}
