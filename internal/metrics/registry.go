package metrics

import (
	"github.com/armon/go-metrics"
	"github.com/armon/go-metrics/prometheus"
)

var (
	BitmapCacheEntries         = []string{"bitmap_cache_entries"}
	BitmapCacheHits            = []string{"bitmap_cache_hits"}
	BitmapCacheMisses          = []string{"bitmap_cache_misses"}
	BitmapCacheEvictions       = []string{"bitmap_cache_evictions"}
	TLSHandshakes              = []string{"tls_handshakes"}
	TLSHandshakeFailures       = []string{"tls_handshake_failures"}
	CertificateStoreWrites     = []string{"certificate_store_writes"}
	CertificateTrustDecisions  = []string{"certificate_trust_decisions"}
)

var Registry metrics.MetricSink

func init() {
	sink, err := prometheus.NewPrometheusSinkFrom(prometheus.PrometheusOpts{
		GaugeDefinitions: []prometheus.GaugeDefinition{{
			Name: BitmapCacheEntries,
			Help: "The total number of bitmaps currently resident in the cache",
		}},
		CounterDefinitions: []prometheus.CounterDefinition{{
			Name: BitmapCacheHits,
			Help: "The number of bitmap cache lookups that found a bitmap",
		}, {
			Name: BitmapCacheMisses,
			Help: "The number of bitmap cache lookups for a slot that was never populated",
		}, {
			Name: BitmapCacheEvictions,
			Help: "The number of bitmaps freed because a slot was reused",
		}, {
			Name: TLSHandshakes,
			Help: "The number of completed TLS handshakes",
		}, {
			Name: TLSHandshakeFailures,
			Help: "The number of TLS handshakes that ended in a fatal error",
		}, {
			Name: CertificateStoreWrites,
			Help: "The number of certificate identities persisted to the known-hosts store",
		}, {
			Name: CertificateTrustDecisions,
			Help: "The number of trust policy decisions, whatever the outcome",
		}},
	})
	if err != nil {
		panic(err)
	}
	Registry = sink
}
