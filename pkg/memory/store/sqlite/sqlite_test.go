package sqlite_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/memory/store/sqlite"
)

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *sqlite.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		driver, err = sqlite.NewDriver(":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(driver.Close()).To(Succeed())
	})

	It("loads an empty store from a fresh database", func() {
		store, err := driver.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Users).To(BeEmpty())
	})

	It("round-trips buckets", func() {
		store := memory.NewStore()
		bucket := memory.NewBucket()
		bucket.Profile.Text = "profile text"
		bucket.Nodes["n1"] = &memory.Node{
			ID:      "n1",
			Content: "drinks tea",
			Vector:  []float32{0.25, 0.75},
		}
		store.Users["u1"] = bucket
		store.Users["u2"] = memory.NewBucket()

		Expect(driver.Save(ctx, store)).To(Succeed())

		loaded, err := driver.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Users).To(HaveLen(2))
		Expect(loaded.Users["u1"].Profile.Text).To(Equal("profile text"))
		Expect(loaded.Users["u1"].Nodes["n1"].Vector).To(Equal([]float32{0.25, 0.75}))
	})

	It("drops buckets removed between saves", func() {
		store := memory.NewStore()
		store.Users["u1"] = memory.NewBucket()
		store.Users["u2"] = memory.NewBucket()
		Expect(driver.Save(ctx, store)).To(Succeed())

		delete(store.Users, "u2")
		Expect(driver.Save(ctx, store)).To(Succeed())

		loaded, err := driver.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Users).To(HaveKey("u1"))
		Expect(loaded.Users).NotTo(HaveKey("u2"))
	})

	It("persists across reopen for a file-backed database", func() {
		path := filepath.Join(GinkgoT().TempDir(), "memory.db")

		fileDriver, err := sqlite.NewDriver(path)
		Expect(err).NotTo(HaveOccurred())

		store := memory.NewStore()
		store.Users["u1"] = memory.NewBucket()
		Expect(fileDriver.Save(ctx, store)).To(Succeed())
		Expect(fileDriver.Close()).To(Succeed())

		reopened, err := sqlite.NewDriver(path)
		Expect(err).NotTo(HaveOccurred())
		defer reopened.Close()

		loaded, err := reopened.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Users).To(HaveKey("u1"))
	})
})
