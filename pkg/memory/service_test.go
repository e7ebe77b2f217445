package memory_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/embeddings/hashing"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/memory"
	testutils "github.com/papercomputeco/engram/pkg/utils/test"
)

func newTestService(persister *testutils.MockPersister, publisher *testutils.MockPublisher) *memory.Service {
	GinkgoHelper()

	embedder := hashing.NewEmbedder(hashing.Config{})

	svc, err := memory.NewService(
		context.Background(),
		memory.Config{},
		embedder,
		persister,
		publisher,
		logger.Nop(),
	)
	Expect(err).NotTo(HaveOccurred())

	return svc
}

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		persister *testutils.MockPersister
		publisher *testutils.MockPublisher
		svc       *memory.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		persister = testutils.NewMockPersister()
		publisher = testutils.NewMockPublisher()
		svc = newTestService(persister, publisher)
	})

	Describe("NewService", func() {
		It("requires an embedder", func() {
			_, err := memory.NewService(ctx, memory.Config{}, nil, persister, publisher, logger.Nop())
			Expect(err).To(HaveOccurred())
		})

		It("requires a persister", func() {
			embedder := hashing.NewEmbedder(hashing.Config{})

			_, err := memory.NewService(ctx, memory.Config{}, embedder, nil, publisher, logger.Nop())
			Expect(err).To(HaveOccurred())
		})

		It("starts empty when the load fails", func() {
			persister.FailLoad = true
			svc = newTestService(persister, publisher)

			nodes, err := svc.ListNodes(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(BeEmpty())
		})

		It("works without a publisher", func() {
			embedder := hashing.NewEmbedder(hashing.Config{})

			svc, err := memory.NewService(ctx, memory.Config{}, embedder, persister, nil, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.SetProfile(ctx, "u1", memory.ProfileUpdate{})).To(Succeed())
		})
	})

	Describe("Profile", func() {
		It("returns the default profile for a new user", func() {
			profile, err := svc.Profile(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(profile.MemoryVersion).To(Equal("v4"))
			Expect(profile.Text).To(BeEmpty())
		})

		It("rejects an empty uid", func() {
			_, err := svc.Profile(ctx, "")
			Expect(err).To(MatchError(memory.ErrUIDRequired))
		})

		It("does not persist when merely reading", func() {
			_, err := svc.Profile(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(persister.SaveCount).To(BeZero())
		})
	})

	Describe("SetProfile", func() {
		It("updates the text and persists", func() {
			text := "likes espresso"
			Expect(svc.SetProfile(ctx, "u1", memory.ProfileUpdate{Text: &text})).To(Succeed())

			profile, err := svc.Profile(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(profile.Text).To(Equal("likes espresso"))
			Expect(profile.MemoryVersion).To(Equal("v4"))
			Expect(persister.SaveCount).To(Equal(1))
		})

		It("keeps existing fields when the update is partial", func() {
			version := "v9"
			Expect(svc.SetProfile(ctx, "u1", memory.ProfileUpdate{MemoryVersion: &version})).To(Succeed())

			text := "hello"
			Expect(svc.SetProfile(ctx, "u1", memory.ProfileUpdate{Text: &text})).To(Succeed())

			profile, err := svc.Profile(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(profile.MemoryVersion).To(Equal("v9"))
			Expect(profile.Text).To(Equal("hello"))
		})

		It("allows clearing the text with an empty string", func() {
			text := "something"
			Expect(svc.SetProfile(ctx, "u1", memory.ProfileUpdate{Text: &text})).To(Succeed())

			empty := ""
			Expect(svc.SetProfile(ctx, "u1", memory.ProfileUpdate{Text: &empty})).To(Succeed())

			profile, err := svc.Profile(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(profile.Text).To(BeEmpty())
		})

		It("ignores an empty memory version", func() {
			empty := ""
			Expect(svc.SetProfile(ctx, "u1", memory.ProfileUpdate{MemoryVersion: &empty})).To(Succeed())

			profile, err := svc.Profile(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(profile.MemoryVersion).To(Equal("v4"))
		})

		It("publishes a profile.set event", func() {
			text := "x"
			Expect(svc.SetProfile(ctx, "u1", memory.ProfileUpdate{Text: &text})).To(Succeed())

			events := publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Op).To(Equal("profile.set"))
			Expect(events[0].UID).To(Equal("u1"))
		})

		It("rejects an empty uid", func() {
			Expect(svc.SetProfile(ctx, "", memory.ProfileUpdate{})).To(MatchError(memory.ErrUIDRequired))
		})
	})

	Describe("UpsertNode", func() {
		It("generates an id and timestamps when absent", func() {
			node, err := svc.UpsertNode(ctx, "u1", memory.NodePatch{Content: "drinks tea"})
			Expect(err).NotTo(HaveOccurred())

			Expect(node["id"]).To(HavePrefix("mem_"))
			Expect(node["content"]).To(Equal("drinks tea"))
			Expect(node["created_at"]).NotTo(BeEmpty())
			Expect(node["updated_at"]).NotTo(BeEmpty())
		})

		It("never exposes the vector", func() {
			node, err := svc.UpsertNode(ctx, "u1", memory.NodePatch{Content: "drinks tea"})
			Expect(err).NotTo(HaveOccurred())
			Expect(node).NotTo(HaveKey("vector"))

			nodes, err := svc.ListNodes(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes[0]).NotTo(HaveKey("vector"))
		})

		It("overwrites an existing node, preserving created_at", func() {
			node, err := svc.UpsertNode(ctx, "u1", memory.NodePatch{
				ID:        "n1",
				Content:   "first",
				CreatedAt: "2024-01-01T00:00:00.000Z",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(node["created_at"]).To(Equal("2024-01-01T00:00:00.000Z"))

			node, err = svc.UpsertNode(ctx, "u1", memory.NodePatch{
				ID:        "n1",
				Content:   "second",
				CreatedAt: "2024-01-01T00:00:00.000Z",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(node["content"]).To(Equal("second"))
			Expect(node["created_at"]).To(Equal("2024-01-01T00:00:00.000Z"))

			nodes, err := svc.ListNodes(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(HaveLen(1))
		})

		It("preserves unknown fields verbatim", func() {
			node, err := svc.UpsertNode(ctx, "u1", memory.NodePatch{
				ID:      "n1",
				Content: "x",
				Extra: map[string]json.RawMessage{
					"tags":   json.RawMessage(`["a","b"]`),
					"weight": json.RawMessage(`0.5`),
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(node["tags"]).To(Equal([]any{"a", "b"}))
			Expect(node["weight"]).To(Equal(0.5))
		})

		It("persists and publishes", func() {
			_, err := svc.UpsertNode(ctx, "u1", memory.NodePatch{ID: "n1", Content: "x"})
			Expect(err).NotTo(HaveOccurred())

			Expect(persister.SaveCount).To(Equal(1))

			events := publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Op).To(Equal("node.upsert"))
			Expect(events[0].NodeID).To(Equal("n1"))
		})

		It("rejects an empty uid", func() {
			_, err := svc.UpsertNode(ctx, "", memory.NodePatch{Content: "x"})
			Expect(err).To(MatchError(memory.ErrUIDRequired))
		})

		It("surfaces embedding failures", func() {
			mockEmbedder := testutils.NewMockEmbedder()
			mockEmbedder.FailOn = "bad"

			svc, err := memory.NewService(ctx, memory.Config{}, mockEmbedder, persister, publisher, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.UpsertNode(ctx, "u1", memory.NodePatch{Content: "bad"})
			Expect(err).To(HaveOccurred())
			Expect(persister.SaveCount).To(BeZero())
		})

		It("serves reads while a publish is in flight", func() {
			publisher.Block = make(chan struct{})
			publisher.Entered = make(chan struct{})

			upserted := make(chan error, 1)
			go func() {
				_, err := svc.UpsertNode(ctx, "u1", memory.NodePatch{ID: "n1", Content: "x"})
				upserted <- err
			}()

			// Wait for the publish to be stalled inside the publisher.
			Eventually(publisher.Entered).Should(BeClosed())

			// A concurrent read must not wait for the stalled publish.
			read := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				_, err := svc.Profile(ctx, "u2")
				Expect(err).NotTo(HaveOccurred())
				close(read)
			}()
			Eventually(read).Should(BeClosed())

			close(publisher.Block)
			Eventually(upserted).Should(Receive(BeNil()))
		})

		It("succeeds even when persistence fails", func() {
			persister.FailSave = true

			_, err := svc.UpsertNode(ctx, "u1", memory.NodePatch{ID: "n1", Content: "x"})
			Expect(err).NotTo(HaveOccurred())

			nodes, err := svc.ListNodes(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(HaveLen(1))
		})
	})

	Describe("NodePatchFromRaw", func() {
		It("reads reserved string fields", func() {
			patch := memory.NodePatchFromRaw(map[string]json.RawMessage{
				"id":         json.RawMessage(`"n1"`),
				"content":    json.RawMessage(`"hello"`),
				"created_at": json.RawMessage(`"2024-01-01T00:00:00.000Z"`),
			})
			Expect(patch.ID).To(Equal("n1"))
			Expect(patch.Content).To(Equal("hello"))
			Expect(patch.CreatedAt).To(Equal("2024-01-01T00:00:00.000Z"))
			Expect(patch.Extra).To(BeEmpty())
		})

		It("treats wrong-typed reserved fields as absent", func() {
			patch := memory.NodePatchFromRaw(map[string]json.RawMessage{
				"id":      json.RawMessage(`42`),
				"content": json.RawMessage(`{"nested":true}`),
			})
			Expect(patch.ID).To(BeEmpty())
			Expect(patch.Content).To(BeEmpty())
		})

		It("routes unknown fields into Extra and drops the vector", func() {
			patch := memory.NodePatchFromRaw(map[string]json.RawMessage{
				"content": json.RawMessage(`"x"`),
				"vector":  json.RawMessage(`[1,2,3]`),
				"source":  json.RawMessage(`"chat"`),
			})
			Expect(patch.Extra).To(HaveKey("source"))
			Expect(patch.Extra).NotTo(HaveKey("vector"))
		})
	})

	Describe("DeleteNode", func() {
		It("removes an existing node", func() {
			_, err := svc.UpsertNode(ctx, "u1", memory.NodePatch{ID: "n1", Content: "x"})
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.DeleteNode(ctx, "u1", "n1")).To(Succeed())

			nodes, err := svc.ListNodes(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(BeEmpty())
		})

		It("is idempotent for absent nodes", func() {
			Expect(svc.DeleteNode(ctx, "u1", "never-existed")).To(Succeed())
			Expect(persister.SaveCount).To(Equal(1))
		})

		It("requires a node id", func() {
			Expect(svc.DeleteNode(ctx, "u1", "")).To(MatchError(memory.ErrNodeIDRequired))
		})

		It("requires a uid", func() {
			Expect(svc.DeleteNode(ctx, "", "n1")).To(MatchError(memory.ErrUIDRequired))
		})
	})

	Describe("Reset", func() {
		It("clears nodes and profile text but keeps the memory version", func() {
			version := "v9"
			text := "keep me not"
			Expect(svc.SetProfile(ctx, "u1", memory.ProfileUpdate{MemoryVersion: &version, Text: &text})).To(Succeed())

			_, err := svc.UpsertNode(ctx, "u1", memory.NodePatch{ID: "n1", Content: "x"})
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.Reset(ctx, "u1")).To(Succeed())

			profile, err := svc.Profile(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(profile.MemoryVersion).To(Equal("v9"))
			Expect(profile.Text).To(BeEmpty())

			nodes, err := svc.ListNodes(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(BeEmpty())
		})

		It("leaves other users untouched", func() {
			_, err := svc.UpsertNode(ctx, "u1", memory.NodePatch{ID: "n1", Content: "x"})
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.UpsertNode(ctx, "u2", memory.NodePatch{ID: "n2", Content: "y"})
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.Reset(ctx, "u1")).To(Succeed())

			nodes, err := svc.ListNodes(ctx, "u2")
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(HaveLen(1))
		})
	})

	Describe("Reload", func() {
		It("swaps in the freshly loaded store", func() {
			store := memory.NewStore()
			bucket := memory.NewBucket()
			bucket.Nodes["n1"] = &memory.Node{ID: "n1", Content: "loaded"}
			store.Users["u1"] = bucket
			persister.LoadStore = store

			Expect(svc.Reload(ctx)).To(Succeed())

			nodes, err := svc.ListNodes(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(HaveLen(1))
			Expect(nodes[0]["content"]).To(Equal("loaded"))
		})

		It("surfaces load errors and keeps the old store", func() {
			_, err := svc.UpsertNode(ctx, "u1", memory.NodePatch{ID: "n1", Content: "x"})
			Expect(err).NotTo(HaveOccurred())

			persister.FailLoad = true
			Expect(svc.Reload(ctx)).To(HaveOccurred())

			nodes, err := svc.ListNodes(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(HaveLen(1))
		})
	})
})
