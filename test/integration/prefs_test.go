//go:build integration

package integration

import (
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
	"github.com/eliteGoblin/focusd/scrolloff/internal/infra"
)

var _ = Describe("Blocked-set storage", func() {
	var (
		dir   string
		prefs *infra.FilePrefs
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "so-prefs")
		Expect(err).NotTo(HaveOccurred())
		prefs = infra.NewFilePrefs(filepath.Join(dir, "shared_prefs.json"))
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	write := func(doc string) {
		Expect(os.WriteFile(prefs.Location(), []byte(doc), 0600)).To(Succeed())
	}

	DescribeTable("reads every stored encoding",
		func(doc string, want []string) {
			write(doc)
			set, err := prefs.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(set.Sorted()).To(Equal(want))
		},
		Entry("native list", `{"flutter.scrolloff_blocked_apps": ["com.b", "com.a"]}`, []string{"com.a", "com.b"}),
		Entry("comma-separated string", `{"flutter.scrolloff_blocked_apps": "com.a, com.b"}`, []string{"com.a", "com.b"}),
		Entry("bracketed string", `{"flutter.scrolloff_blocked_apps": "[\"com.a\", \"com.b\"]"}`, []string{"com.a", "com.b"}),
		Entry("empty string", `{"flutter.scrolloff_blocked_apps": ""}`, []string{}),
		Entry("missing key", `{"flutter.other": true}`, []string{}),
		Entry("wrong type", `{"flutter.scrolloff_blocked_apps": 42}`, []string{}),
		Entry("corrupt document", `{not json`, []string{}),
	)

	It("rewrites legacy encodings as a native list and keeps other keys", func() {
		write(`{"flutter.scrolloff_blocked_apps": "com.a,com.b", "flutter.onboarded": true}`)

		set, err := prefs.Load()
		Expect(err).NotTo(HaveOccurred())
		set.Add("com.c")
		Expect(prefs.Save(set)).To(Succeed())

		data, err := os.ReadFile(prefs.Location())
		Expect(err).NotTo(HaveOccurred())

		var doc map[string]json.RawMessage
		Expect(json.Unmarshal(data, &doc)).To(Succeed())
		Expect(string(doc[infra.BlockedAppsKey])).To(MatchJSON(`["com.a","com.b","com.c"]`))
		Expect(string(doc["flutter.onboarded"])).To(Equal("true"))
	})

	It("round-trips through the encrypted store", func() {
		key, err := infra.LoadOrCreateKey(filepath.Join(dir, ".key"))
		Expect(err).NotTo(HaveOccurred())

		db := filepath.Join(dir, "prefs.db")
		enc, err := infra.NewEncryptedPrefs(db, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(enc.Save(domain.NewBlockedSet("com.a"))).To(Succeed())
		Expect(enc.Close()).To(Succeed())

		reopened, err := infra.NewEncryptedPrefs(db, key)
		Expect(err).NotTo(HaveOccurred())
		defer reopened.Close()

		set, err := reopened.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(set.Sorted()).To(Equal([]string{"com.a"}))
	})
})
