package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.runsTotal.WithLabelValues("ok").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_runs_total")
			})
		})

		Convey("When options receive empty values", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithPrometheusRegistry(registry))

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "sortie")
				So(manager.subsystem, ShouldEqual, "pipeline")
				So(manager.histogramBuckets, ShouldNotBeEmpty)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording pipeline metrics", func() {
			before := testutil.ToFloat64(globalManager.runsTotal.WithLabelValues("ok"))
			RecordRun("ok")
			RecordStageDuration("filter", 3)
			UpdateStageEvents("filter", 12)
			UpdateShortlistSize(5)
			UpdateLastRun(1700000000)
			RecordWarning("empty_result")
			ObserveCombinedScore(0.4)

			Convey("Then counters and gauges reflect the values", func() {
				So(testutil.ToFloat64(globalManager.runsTotal.WithLabelValues("ok")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.stageEvents.WithLabelValues("filter")), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.shortlistSize), ShouldEqual, 5)
				So(testutil.ToFloat64(globalManager.lastRunUnix), ShouldEqual, 1700000000)
			})
		})

		Convey("When recording filter rejections", func() {
			before := testutil.ToFloat64(globalManager.filterRejections.WithLabelValues("price"))
			RecordFilterRejections("price", 3)
			RecordFilterRejections("price", 0)
			RecordFilterRejections("price", -2)

			Convey("Then only positive counts are added", func() {
				So(testutil.ToFloat64(globalManager.filterRejections.WithLabelValues("price")), ShouldEqual, before+3)
			})
		})

		Convey("When recording embedding metrics", func() {
			hits := testutil.ToFloat64(globalManager.embeddingCacheHits)
			misses := testutil.ToFloat64(globalManager.embeddingCacheMisses)
			fails := testutil.ToFloat64(globalManager.embeddingFailures)
			RecordEmbeddingCache(4, 2)
			RecordEmbeddingBatch()
			RecordEmbeddingFailures(1)
			RecordEmbeddingFailures(0)

			Convey("Then the counters advance", func() {
				So(testutil.ToFloat64(globalManager.embeddingCacheHits), ShouldEqual, hits+4)
				So(testutil.ToFloat64(globalManager.embeddingCacheMisses), ShouldEqual, misses+2)
				So(testutil.ToFloat64(globalManager.embeddingFailures), ShouldEqual, fails+1)
			})
		})

		Convey("When recording provider and HTTP metrics", func() {
			So(func() {
				RecordProviderError("ollama")
				RecordProviderLatency("ollama", 12)
				RecordHTTPRequest("/digest", "POST", "200")
				RecordHTTPRequestDuration("/digest", "POST", "200", 40)
				RecordErrorByEndpoint("/digest", "POST", "bad_request")
			}, ShouldNotPanic)
		})

		Convey("Then the registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
