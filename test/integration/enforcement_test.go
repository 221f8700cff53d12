//go:build integration

package integration

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/appquota/appquota/internal/daemon"
	"github.com/appquota/appquota/internal/domain"
	"github.com/appquota/appquota/internal/infra"
	"github.com/appquota/appquota/internal/usecase"
)

// scriptedProcs simulates a running target process that can be
// "killed" and "relaunched" by the test.
type scriptedProcs struct {
	mu      sync.Mutex
	running bool
	name    string
	pid     int32
	kills   int
}

func (s *scriptedProcs) Snapshot() ([]domain.ProcessInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return []domain.ProcessInfo{}, nil
	}
	return []domain.ProcessInfo{{PID: s.pid, Name: s.name}}, nil
}

func (s *scriptedProcs) Terminate(pid int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kills++
	s.running = false
	return nil
}

func (s *scriptedProcs) killCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kills
}

func (s *scriptedProcs) relaunch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
}

var _ = Describe("Enforcement lifecycle", func() {
	var (
		dataPath  string
		store     *infra.FileStore
		procs     *scriptedProcs
		events    *infra.ChannelSink
		monitor   *usecase.Monitor
		scheduler *daemon.Scheduler
		ruleID    string
	)

	BeforeEach(func() {
		dataPath = filepath.Join(GinkgoT().TempDir(), "appdata.json")
		logger := zap.NewNop()

		// Seed a document with a 1-minute budget and a 20s polling
		// interval so three cycles exhaust the budget.
		seedStore := infra.NewFileStore(dataPath, logger)
		seed := domain.NewAppData()
		seed.Settings.PollingIntervalSeconds = 20
		seed.Rules = append(seed.Rules, &domain.Rule{
			ID:                   "it-rule",
			ProcessNameOrPath:    "distractor",
			DisplayName:          "Distractor",
			DailyLimitMinutes:    1,
			WarningMinutesBefore: 0,
			IsEnabled:            true,
		})
		Expect(seedStore.Save(seed)).To(Succeed())
		ruleID = "it-rule"

		store = infra.NewFileStore(dataPath, logger)
		procs = &scriptedProcs{running: true, name: "distractor", pid: 4242}
		events = infra.NewChannelSink(64)
		monitor = usecase.NewMonitor(store, procs, events, domain.RealClock{}, logger)

		// Fast wall-clock interval; accrual still credits the
		// persisted 20s interval per cycle.
		scheduler = daemon.NewScheduler(daemon.Config{Interval: 20 * time.Millisecond}, monitor, logger)
		go scheduler.Run(context.Background())
	})

	AfterEach(func() {
		scheduler.Stop()
		Eventually(scheduler.Done()).Should(BeClosed())
	})

	It("accrues usage, warns once and kills at the limit", func() {
		Eventually(procs.killCount, "2s", "10ms").Should(BeNumerically(">=", 1))

		rec, err := monitor.TodayUsage(ruleID)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.UsedSecondsToday).To(Equal(60), "3 cycles x 20s, capped at the limit")
		Expect(rec.WarningShown).To(BeTrue())

		var types []domain.EventType
	drain:
		for {
			select {
			case ev := <-events.Events():
				types = append(types, ev.Type)
			default:
				break drain
			}
		}
		Expect(types).To(ContainElement(domain.EventWarningTriggered))
		Expect(types).To(ContainElement(domain.EventAppKilled))
		// Warning precedes the kill.
		Expect(indexOf(types, domain.EventWarningTriggered)).
			To(BeNumerically("<", indexOf(types, domain.EventAppKilled)))
	})

	It("kills a relaunched process without further accrual", func() {
		Eventually(procs.killCount, "2s", "10ms").Should(BeNumerically(">=", 1))

		procs.relaunch()
		Eventually(procs.killCount, "2s", "10ms").Should(BeNumerically(">=", 2))

		rec, err := monitor.TodayUsage(ruleID)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.UsedSecondsToday).To(Equal(60))
	})

	It("persists state across restarts", func() {
		Eventually(procs.killCount, "2s", "10ms").Should(BeNumerically(">=", 1))

		scheduler.Stop()
		Eventually(scheduler.Done()).Should(BeClosed())
		monitor.Save()

		reloaded := usecase.NewMonitor(
			infra.NewFileStore(dataPath, zap.NewNop()),
			procs, infra.NewChannelSink(1), domain.RealClock{}, zap.NewNop())

		rec, err := reloaded.TodayUsage(ruleID)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.UsedSecondsToday).To(Equal(60))
		Expect(rec.WarningShown).To(BeTrue())
	})
})

func indexOf(types []domain.EventType, t domain.EventType) int {
	for i, v := range types {
		if v == t {
			return i
		}
	}
	return -1
}
