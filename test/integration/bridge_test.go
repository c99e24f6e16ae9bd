//go:build integration

package integration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/scrolloff/internal/bridge"
	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

var _ = Describe("Bridge", func() {
	var (
		s       *stack
		client  *bridge.Client
		cancel  context.CancelFunc
		stopped chan error
		ctx     = context.Background()
	)

	BeforeEach(func() {
		s = newStack()

		var runCtx context.Context
		runCtx, cancel = context.WithCancel(context.Background())
		stopped = make(chan error, 1)
		go func() { stopped <- s.service.Run(runCtx) }()

		client = bridge.NewClient(s.socketPath)
		Eventually(func() error {
			_, err := client.BlockedApps(ctx)
			return err
		}, 2*time.Second, 20*time.Millisecond).Should(Succeed())
	})

	AfterEach(func() {
		cancel()
		Eventually(stopped, 2*time.Second).Should(Receive(BeNil()))
		Expect(s.monitor.Stop(ctx)).To(Succeed())
		s.cleanup()
	})

	subscribe := func() (<-chan bridge.Event, context.CancelFunc) {
		subCtx, stop := context.WithCancel(ctx)
		events := make(chan bridge.Event, 16)
		ready := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			_ = client.Subscribe(subCtx, func() { close(ready) }, func(ev bridge.Event) { events <- ev })
		}()
		Eventually(ready, 2*time.Second).Should(BeClosed())
		Eventually(s.hub.Subscribers, time.Second).Should(Equal(1))
		return events, stop
	}

	It("lists installable apps without system packages or the companion", func() {
		apps, err := client.ListInstallableApps(ctx)
		Expect(err).NotTo(HaveOccurred())

		var pkgs []string
		for _, a := range apps {
			pkgs = append(pkgs, a.Package)
		}
		Expect(pkgs).To(ConsistOf(instagram, tiktok, notes))
		Expect(pkgs).NotTo(ContainElement(companion))
	})

	It("edits the blocked set and pushes the change", func() {
		events, stop := subscribe()
		defer stop()

		pkgs, err := client.AddBlockedApp(ctx, tiktok)
		Expect(err).NotTo(HaveOccurred())
		Expect(pkgs).To(Equal([]string{tiktok}))

		var ev bridge.Event
		Eventually(events, 2*time.Second).Should(Receive(&ev))
		Expect(ev.Event).To(Equal(bridge.EventBlockedAppsChanged))
		Expect(string(ev.Data)).To(MatchJSON(`{"packages":["com.zhiliaoapp.musically"]}`))

		set, err := s.prefs.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(set.Contains(tiktok)).To(BeTrue())
	})

	It("pushes blocked-set edits made by another process", func() {
		events, stop := subscribe()
		defer stop()

		s.writePrefs(`{"flutter.scrolloff_blocked_apps": "[\"com.instagram.android\", \"com.example.notes\"]"}`)

		var ev bridge.Event
		Eventually(events, 3*time.Second).Should(Receive(&ev))
		Expect(ev.Event).To(Equal(bridge.EventBlockedAppsChanged))
		Expect(string(ev.Data)).To(MatchJSON(`{"packages":["com.example.notes","com.instagram.android"]}`))
	})

	It("reports false from monitoring.start without usage access", func() {
		started, err := client.StartMonitoring(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(started).To(BeFalse())

		Expect(client.RequestPermission(ctx, domain.PermissionUsageStats)).To(Succeed())
		Expect(s.device.CommandsWithPrefix("am start -a android.settings.USAGE_ACCESS_SETTINGS")).To(HaveLen(1))
	})

	It("drives monitoring end to end", func() {
		s.device.Grant("GET_USAGE_STATS")
		_, err := client.AddBlockedApp(ctx, instagram)
		Expect(err).NotTo(HaveOccurred())

		events, stop := subscribe()
		defer stop()

		started, err := client.StartMonitoring(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(started).To(BeTrue())

		s.device.Launch(instagram)

		var ev bridge.Event
		Eventually(events, 3*time.Second).Should(Receive(&ev))
		Expect(ev.Event).To(Equal(bridge.EventNavigateToBlockedScreen))

		Expect(client.StopMonitoring(ctx)).To(Succeed())
		st, err := client.MonitoringStatus(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Running).To(BeFalse())
	})

	It("runs the same reaction for an external show-blocked request", func() {
		events, stop := subscribe()
		defer stop()

		Expect(client.ShowBlockedScreen(ctx, domain.BlockedScreen{Package: tiktok})).To(Succeed())

		var ev bridge.Event
		Eventually(events, 2*time.Second).Should(Receive(&ev))
		Expect(ev.Event).To(Equal(bridge.EventNavigateToBlockedScreen))
		Expect(string(ev.Data)).To(MatchJSON(`{"appName":"com.zhiliaoapp.musically","packageName":"com.zhiliaoapp.musically"}`))
		Expect(s.device.CommandsWithPrefix("am start -n " + companion)).To(HaveLen(1))
	})
})
