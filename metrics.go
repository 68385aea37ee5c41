package geopix

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geopix_lookups_total",
		Help: "The total number of lookups",
	})
	lookupErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geopix_lookup_errors_total",
		Help: "The total number of failed lookups by reason",
	}, []string{"reason"})
	stripBytesDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geopix_strip_bytes_decoded_total",
		Help: "The total number of strip bytes decoded",
	})
	decodeDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geopix_decode_duration_seconds",
		Help:    "The time taken to decode all strips of a raster",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})
	missingRasterCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geopix_missing_raster_cache_hits_total",
		Help: "The total number of hits on the missing raster cache",
	})
	missingRasterCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geopix_missing_raster_cache_misses_total",
		Help: "The total number of misses on the missing raster cache",
	})
	rasterCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geopix_raster_cache_hits_total",
		Help: "The total number of hits on the open raster cache",
	})
	rasterCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geopix_raster_cache_misses_total",
		Help: "The total number of misses on the open raster cache",
	})
	rasterCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geopix_raster_cache_evictions_total",
		Help: "The total number of evictions from the open raster cache",
	})
)

// errorReason returns the metric label for err.
func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrInputRange):
		return "input_range"
	case errors.Is(err, ErrOutOfBounds):
		return "out_of_bounds"
	case errors.Is(err, ErrBounds):
		return "bounds"
	case errors.Is(err, ErrUnsupportedSampleWidth):
		return "sample_width"
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, ErrFile):
		return "file"
	default:
		return "other"
	}
}
