package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then the default namespace should be applied", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "sigte")
				So(manager.subsystem, ShouldEqual, "risk")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("school"),
				WithSubsystem("analytics"),
				WithHistogramBuckets([]float64{1, 2, 3}),
				WithPrometheusRegistry(registry),
			)
			manager.riskLevels.WithLabelValues("HIGH").Inc()

			Convey("Then collectors should carry the custom prefix", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "school_analytics_risk_level_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 2, 3})
			})
		})

		Convey("When empty option values are given", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "sigte")
				So(manager.subsystem, ShouldEqual, "risk")
				So(len(manager.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global recorder", t, func() {
		Convey("When recording assessment metrics", func() {
			before := testutil.ToFloat64(globalManager.assessmentsTotal.WithLabelValues("ok"))
			RecordAssessment("ok", 12)
			RecordAssessment("ok", 3)
			RecordDegradedFactor("punctuality")
			RecordRiskLevel("LOW")

			Convey("Then counters should advance", func() {
				So(testutil.ToFloat64(globalManager.assessmentsTotal.WithLabelValues("ok")), ShouldEqual, before+2)
				So(testutil.ToFloat64(globalManager.degradedFactors.WithLabelValues("punctuality")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording intervention metrics", func() {
			So(func() {
				RecordWorkflowRun("api")
				RecordInterventionCreated("family-meeting")
				RecordInterventionSkipped("pending")
				RecordPublishError()
				RecordPopulationRun(2, 40)
				RecordAnalyticsDegraded("fleet")
			}, ShouldNotPanic)
		})

		Convey("When recording pool and system metrics", func() {
			UpdateQueueCapacity(64)
			UpdateQueueSize(7)
			AddWorkerActive(2)
			AddWorkerActive(-2)
			RecordWorkerJob(1.5, true)
			UpdateSystemMemoryUsage(1 << 20)
			UpdateSystemGoroutineCount(9)

			Convey("Then gauges should hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 64)
				So(testutil.ToFloat64(globalManager.workerActive), ShouldEqual, 0)
				So(testutil.ToFloat64(globalManager.systemGoroutineCount), ShouldEqual, 9)
			})
		})
	})
}

func TestMetricsHandler(t *testing.T) {
	Convey("Given the metrics handler", t, func() {
		RecordHTTPRequest("/healthz", "GET", "200", 1)
		RecordHTTPError("/api/interventions", "bad_request")

		rec := httptest.NewRecorder()
		Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		body, _ := io.ReadAll(rec.Body)

		Convey("Then it should expose the custom registry", func() {
			So(rec.Code, ShouldEqual, 200)
			So(strings.Contains(string(body), "sigte_risk_http_requests_total"), ShouldBeTrue)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
