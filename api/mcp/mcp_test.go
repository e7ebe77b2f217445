package mcp_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/api/mcp"
	"github.com/papercomputeco/engram/pkg/embeddings/hashing"
	engramlogger "github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/memory/store/inmemory"
)

func newMemoryService() *memory.Service {
	GinkgoHelper()

	embedder := hashing.NewEmbedder(hashing.Config{})

	service, err := memory.NewService(
		context.Background(),
		memory.Config{},
		embedder,
		inmemory.NewDriver(),
		nil,
		engramlogger.Nop(),
	)
	Expect(err).NotTo(HaveOccurred())

	return service
}

var _ = Describe("MCP Server", func() {
	var (
		server  *mcp.Server
		service *memory.Service
	)

	BeforeEach(func() {
		service = newMemoryService()

		var err error
		server, err = mcp.NewServer(mcp.Config{
			Service: service,
			Logger:  engramlogger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when the memory service is nil", func() {
			_, err := mcp.NewServer(mcp.Config{
				Logger: engramlogger.Nop(),
			})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("memory service is required"))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{
				Service: service,
			})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger is required"))
		})

		It("creates a server with valid config", func() {
			Expect(server).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("Noop mode", func() {
		It("creates a server with no dependencies", func() {
			noop, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(noop).NotTo(BeNil())
		})
	})
})
