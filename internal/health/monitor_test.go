package health_test

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/yunabot/dispatch-gateway/internal/health"
	"github.com/yunabot/dispatch-gateway/internal/registry"
)

func TestHealth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Health Suite")
}

type fakeProber struct {
	mu    sync.Mutex
	down  map[string]bool
	calls int64
}

func (f *fakeProber) Ping(_ context.Context, base *url.URL) error {
	atomic.AddInt64(&f.calls, 1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down[base.String()] {
		return context.DeadlineExceeded
	}
	return nil
}

func (f *fakeProber) setDown(addr string, down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down[addr] = down
}

func (f *fakeProber) probeCount() int64 {
	return atomic.LoadInt64(&f.calls)
}

var _ = Describe("Monitor", func() {
	var (
		reg    *registry.Registry
		prober *fakeProber
		mon    *health.Monitor
		log    *slog.Logger
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, nil))
		prober = &fakeProber{down: make(map[string]bool)}

		var err error
		reg, err = registry.New([]*url.URL{
			mustParseURL("http://localhost:7860"),
			mustParseURL("http://localhost:7861"),
		})
		Expect(err).NotTo(HaveOccurred())

		mon = health.NewMonitor(reg, prober, 50*time.Millisecond, log, nil)
	})

	AfterEach(func() {
		mon.Stop()
	})

	Describe("ProbeAll", func() {
		It("should probe every endpoint and record liveness", func() {
			prober.setDown("http://localhost:7861", true)

			mon.ProbeAll(context.Background())

			endpoints := reg.Endpoints()
			Expect(endpoints[0].Alive()).To(BeTrue())
			Expect(endpoints[1].Alive()).To(BeFalse())
			Expect(endpoints[0].LastChecked().IsZero()).To(BeFalse())
			Expect(endpoints[1].LastChecked().IsZero()).To(BeFalse())
		})

		It("should mark a recovered endpoint alive again", func() {
			prober.setDown("http://localhost:7860", true)
			mon.ProbeAll(context.Background())
			Expect(reg.Endpoints()[0].Alive()).To(BeFalse())

			prober.setDown("http://localhost:7860", false)
			mon.ProbeAll(context.Background())
			Expect(reg.Endpoints()[0].Alive()).To(BeTrue())
		})
	})

	Describe("Start", func() {
		It("should probe periodically until stopped", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			prober.setDown("http://localhost:7860", true)
			mon.Start(ctx)

			Eventually(func() bool {
				return reg.Endpoints()[0].Alive()
			}, time.Second, 10*time.Millisecond).Should(BeFalse())
		})

		It("should keep a single loop when started twice", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			mon.Start(ctx)
			mon.Start(ctx)

			time.Sleep(130 * time.Millisecond)
			mon.Stop()

			// Two ticks of two endpoints each, give or take one tick;
			// a doubled loop would probe roughly twice as often.
			Expect(prober.probeCount()).To(BeNumerically("<=", 6))
		})

		It("should stop probing when the parent context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			mon.Start(ctx)

			time.Sleep(60 * time.Millisecond)
			cancel()
			time.Sleep(60 * time.Millisecond)

			before := prober.probeCount()
			time.Sleep(120 * time.Millisecond)
			Expect(prober.probeCount()).To(Equal(before))
		})
	})

	Describe("Stop", func() {
		It("should be a no-op on an unstarted monitor", func() {
			mon.Stop()
		})

		It("should tolerate being called twice", func() {
			mon.Start(context.Background())
			mon.Stop()
			mon.Stop()
		})

		It("should allow a restart after stopping", func() {
			mon.Start(context.Background())
			mon.Stop()

			before := prober.probeCount()
			mon.Start(context.Background())

			Eventually(func() int64 {
				return prober.probeCount()
			}, time.Second, 10*time.Millisecond).Should(BeNumerically(">", before))

			mon.Stop()
		})
	})
})

func mustParseURL(rawURL string) *url.URL {
	u, err := url.Parse(rawURL)
	if err != nil {
		panic(err)
	}
	return u
}
