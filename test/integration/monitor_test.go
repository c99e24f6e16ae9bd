//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/scrolloff/internal/bridge"
	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

var _ = Describe("Foreground monitoring", func() {
	var (
		s   *stack
		ctx context.Context
	)

	BeforeEach(func() {
		s = newStack()
		ctx = context.Background()
		Expect(s.prefs.Save(domain.NewBlockedSet(instagram, tiktok))).To(Succeed())
	})

	AfterEach(func() {
		Expect(s.monitor.Stop(ctx)).To(Succeed())
		s.cleanup()
	})

	Context("without usage access", func() {
		It("refuses to start", func() {
			err := s.monitor.Start(ctx)
			Expect(err).To(MatchError(domain.ErrPermissionDenied))
			Expect(s.monitor.IsRunning()).To(BeFalse())
		})
	})

	Context("with usage access", func() {
		BeforeEach(func() {
			s.device.Grant("GET_USAGE_STATS")
			Expect(s.monitor.Start(ctx)).To(Succeed())
		})

		It("redirects once to the companion when a blocked app opens", func() {
			events, cancel := s.hub.Subscribe()
			defer cancel()

			s.device.Launch(instagram)

			var ev bridge.Event
			Eventually(events, 3*time.Second).Should(Receive(&ev))
			Expect(ev.Event).To(Equal(bridge.EventNavigateToBlockedScreen))

			var screen domain.BlockedScreen
			Expect(json.Unmarshal(ev.Data, &screen)).To(Succeed())
			Expect(screen.Package).To(Equal(instagram))
			Expect(screen.AppName).To(Equal("Instagram"))

			// The redirect brings the companion forward, which ends the block.
			Eventually(func() domain.MonitorState {
				st, _ := s.monitor.State()
				return st
			}, 3*time.Second, 50*time.Millisecond).Should(Equal(domain.MonitorState{
				LastObservedPackage: companion,
			}))

			Consistently(events, 500*time.Millisecond).ShouldNot(Receive())
			Expect(s.device.CommandsWithPrefix("am start -n " + companion + "/.MainActivity")).To(HaveLen(1))
		})

		It("ignores apps that are not blocked", func() {
			s.device.Launch(notes)

			Eventually(func() string {
				st, _ := s.monitor.State()
				return st.LastObservedPackage
			}, 3*time.Second, 50*time.Millisecond).Should(Equal(notes))

			Consistently(func() []string {
				return s.device.CommandsWithPrefix("am start -n")
			}, 500*time.Millisecond).Should(BeEmpty())
		})

		It("falls back to the launcher intent when the activity start fails", func() {
			s.device.FailActivity = true
			s.device.Launch(tiktok)

			Eventually(func() []string {
				return s.device.CommandsWithPrefix("monkey -p " + companion)
			}, 3*time.Second, 50*time.Millisecond).ShouldNot(BeEmpty())
		})

		It("shows and then dismisses the overlay when overlay access is granted", func() {
			s.device.Grant("SYSTEM_ALERT_WINDOW")
			s.device.Launch(instagram)

			Eventually(func() []string {
				return s.device.CommandsWithPrefix("am startservice")
			}, 3*time.Second, 50*time.Millisecond).ShouldNot(BeEmpty())

			Eventually(s.device.OverlayShown, 3*time.Second, 50*time.Millisecond).Should(BeFalse())
			Expect(s.device.CommandsWithPrefix("am stopservice")).NotTo(BeEmpty())
		})

		It("picks up blocked-set edits on the next poll", func() {
			s.writePrefs(`{"flutter.scrolloff_blocked_apps": "com.example.notes"}`)
			s.device.Launch(notes)

			Eventually(func() []string {
				return s.device.CommandsWithPrefix("am start -n")
			}, 3*time.Second, 50*time.Millisecond).ShouldNot(BeEmpty())
		})

		It("stops cleanly and restarts with fresh state", func() {
			s.device.Launch(notes)
			Eventually(func() string {
				st, _ := s.monitor.State()
				return st.LastObservedPackage
			}, 3*time.Second, 50*time.Millisecond).Should(Equal(notes))

			Expect(s.monitor.Stop(ctx)).To(Succeed())
			_, running := s.monitor.State()
			Expect(running).To(BeFalse())

			Expect(s.monitor.Start(ctx)).To(Succeed())
			st, running := s.monitor.State()
			Expect(running).To(BeTrue())
			Expect(st).To(Equal(domain.MonitorState{}))
		})
	})
})
