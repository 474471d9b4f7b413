package metrics_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/yunabot/dispatch-gateway/internal/metrics"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Metrics Suite")
}

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		log       *slog.Logger
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, nil))
		collector = metrics.NewCollector(100, log)
	})

	AfterEach(func() {
		collector.Stop()
	})

	Describe("event processing", func() {
		BeforeEach(func() {
			collector.Start(context.Background())
		})

		It("should record completions with durations", func() {
			collector.Emit(metrics.Event{
				Type:     metrics.EventJobCompleted,
				Backend:  "http://localhost:7860",
				Duration: 2 * time.Second,
			})
			collector.Emit(metrics.Event{
				Type:     metrics.EventJobCompleted,
				Backend:  "http://localhost:7860",
				Duration: 4 * time.Second,
			})

			Eventually(func() int64 {
				return collector.Snapshot("random").TotalCompleted
			}, time.Second, 10*time.Millisecond).Should(Equal(int64(2)))

			snap := collector.Snapshot("random")
			bm := snap.Backends["http://localhost:7860"]
			Expect(bm.Completed).To(Equal(int64(2)))
			Expect(bm.AvgDuration).To(Equal(3 * time.Second))
		})

		It("should count failures by kind", func() {
			collector.Emit(metrics.Event{Type: metrics.EventJobFailed, Failure: "no_backend"})
			collector.Emit(metrics.Event{Type: metrics.EventJobFailed, Failure: "no_backend"})
			collector.Emit(metrics.Event{Type: metrics.EventJobFailed, Failure: "backend_error"})

			Eventually(func() int64 {
				return collector.Snapshot("random").Failures["no_backend"]
			}, time.Second, 10*time.Millisecond).Should(Equal(int64(2)))

			Expect(collector.Snapshot("random").Failures["backend_error"]).To(Equal(int64(1)))
		})

		It("should count admission rejections", func() {
			collector.Emit(metrics.Event{Type: metrics.EventJobRejected})

			Eventually(func() int64 {
				return collector.Snapshot("random").TotalRejected
			}, time.Second, 10*time.Millisecond).Should(Equal(int64(1)))
		})

		It("should track backend liveness", func() {
			collector.Emit(metrics.Event{
				Type:    metrics.EventHealthChanged,
				Backend: "http://localhost:7860",
				Alive:   true,
			})

			Eventually(func() bool {
				return collector.Snapshot("random").Backends["http://localhost:7860"].Alive
			}, time.Second, 10*time.Millisecond).Should(BeTrue())
		})

		It("should report the strategy in the snapshot", func() {
			Expect(collector.Snapshot("round-robin").Strategy).To(Equal("round-robin"))
		})
	})

	Describe("lifecycle", func() {
		It("should keep one goroutine when started twice", func() {
			collector.Start(context.Background())
			collector.Start(context.Background())
			collector.Stop()
		})

		It("should tolerate Stop without Start", func() {
			collector.Stop()
		})

		It("should drain pending events on shutdown", func() {
			collector.Start(context.Background())
			for i := 0; i < 10; i++ {
				collector.Emit(metrics.Event{Type: metrics.EventJobRejected})
			}
			collector.Stop()

			Expect(collector.Snapshot("random").TotalRejected).To(Equal(int64(10)))
		})
	})

	Describe("Emit", func() {
		It("should be safe on a nil collector", func() {
			var nilCollector *metrics.Collector
			nilCollector.Emit(metrics.Event{Type: metrics.EventJobRejected})
		})

		It("should drop events rather than block when the buffer is full", func() {
			tiny := metrics.NewCollector(1, log)
			for i := 0; i < 50; i++ {
				tiny.Emit(metrics.Event{Type: metrics.EventJobRejected})
			}
		})
	})
})

var _ = Describe("Metrics", func() {
	It("should compute percentiles over recorded durations", func() {
		m := metrics.NewMetrics()
		for i := 1; i <= 100; i++ {
			m.RecordCompletion("b", time.Duration(i)*time.Millisecond)
		}

		snap := m.Snapshot("random")
		bm := snap.Backends["b"]
		Expect(bm.P50Duration).To(BeNumerically("~", 50*time.Millisecond, 2*time.Millisecond))
		Expect(bm.P95Duration).To(BeNumerically("~", 95*time.Millisecond, 2*time.Millisecond))
		Expect(bm.P99Duration).To(BeNumerically("~", 99*time.Millisecond, 2*time.Millisecond))
	})

	It("should produce an empty snapshot before any events", func() {
		snap := metrics.NewMetrics().Snapshot("random")
		Expect(snap.TotalCompleted).To(BeZero())
		Expect(snap.Backends).To(BeEmpty())
	})
})
