// Package servecmder provides the serve command for running the memory API server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/engram/api"
	"github.com/papercomputeco/engram/api/mcp"
	"github.com/papercomputeco/engram/pkg/config"
	"github.com/papercomputeco/engram/pkg/embeddings/hashing"
	"github.com/papercomputeco/engram/pkg/eventstream"
	"github.com/papercomputeco/engram/pkg/eventstream/kafka"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/memory/store/inmemory"
	"github.com/papercomputeco/engram/pkg/memory/store/jsonfile"
	"github.com/papercomputeco/engram/pkg/memory/store/postgres"
	"github.com/papercomputeco/engram/pkg/memory/store/sqlite"
)

type serveCommander struct {
	listen        string
	storeProvider string
	storePath     string
	storeDSN      string
	storeWatch    bool
	dimensions    uint
	maxResults    uint
	eventProvider string
	eventBrokers  string
	eventTopic    string
	mcpEnabled    bool
	debug         bool

	logger *zap.Logger
}

const serveLongDesc string = `Run the engram memory API server.

The server exposes the per-user memory store over JSON HTTP: profile get/set,
node upsert/delete/list, reset, and similarity query. Memory is persisted
through the configured store provider:

  jsonfile   a single JSON document on disk (default)
  memory     process-lifetime only
  sqlite     a SQLite database
  postgres   a PostgreSQL database

Optionally publish mutation events to Kafka and expose the store as MCP tools.`

const serveShortDesc string = "Run the engram memory API server"

// serveFlags is the flag registry for the serve command. Each entry maps a
// registry key to its flag name and the viper key it binds to, so the
// flag > env > config file > default precedence chain stays in one place.
var serveFlags = config.FlagSet{
	config.FlagAPIListen:         {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	config.FlagStoreProvider:     {Name: "store-provider", ViperKey: "store.provider", Description: "Store provider (jsonfile, memory, sqlite, postgres)"},
	config.FlagStorePath:         {Name: "store-path", Shorthand: "s", ViperKey: "store.path", Description: "Path to the JSON document or SQLite database"},
	config.FlagStoreDSN:          {Name: "store-dsn", ViperKey: "store.dsn", Description: "PostgreSQL connection string"},
	config.FlagStoreWatch:        {Name: "store-watch", ViperKey: "store.watch", Description: "Reload when the JSON document changes on disk"},
	config.FlagEmbeddingDims:     {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding vector dimensions"},
	config.FlagQueryMaxResults:   {Name: "max-results", ViperKey: "query.max_results", Description: "Maximum matches returned by a query"},
	config.FlagEventStreamProv:   {Name: "event-stream-provider", ViperKey: "event_stream.provider", Description: "Mutation event publisher (none, kafka)"},
	config.FlagEventStreamBroker: {Name: "event-stream-brokers", ViperKey: "event_stream.brokers", Description: "Comma-separated Kafka broker addresses"},
	config.FlagEventStreamTopic:  {Name: "event-stream-topic", ViperKey: "event_stream.topic", Description: "Kafka topic for mutation events"},
	config.FlagMCPEnabled:        {Name: "mcp", ViperKey: "mcp.enabled", Description: "Expose the store as MCP tools at /mcp"},
}

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagStoreProvider,
	config.FlagStorePath,
	config.FlagStoreDSN,
	config.FlagStoreWatch,
	config.FlagEmbeddingDims,
	config.FlagQueryMaxResults,
	config.FlagEventStreamProv,
	config.FlagEventStreamBroker,
	config.FlagEventStreamTopic,
	config.FlagMCPEnabled,
}

func NewServeCmd() *cobra.Command {
	return newServeCmd(&serveCommander{})
}

func newServeCmd(cmder *serveCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.resolveConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagStoreProvider, &cmder.storeProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagStorePath, &cmder.storePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagStoreDSN, &cmder.storeDSN)
	config.AddBoolFlag(cmd, serveFlags, config.FlagStoreWatch, &cmder.storeWatch)
	config.AddUintFlag(cmd, serveFlags, config.FlagEmbeddingDims, &cmder.dimensions)
	config.AddUintFlag(cmd, serveFlags, config.FlagQueryMaxResults, &cmder.maxResults)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventStreamProv, &cmder.eventProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventStreamBroker, &cmder.eventBrokers)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventStreamTopic, &cmder.eventTopic)
	config.AddBoolFlag(cmd, serveFlags, config.FlagMCPEnabled, &cmder.mcpEnabled)

	return cmd
}

// resolveConfig fills the commander from the viper precedence chain:
// flag > ENGRAM_* environment > config.toml > default.
func (c *serveCommander) resolveConfig(cmd *cobra.Command) error {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)

	c.listen = v.GetString("api.listen")
	c.storeProvider = v.GetString("store.provider")
	c.storePath = v.GetString("store.path")
	c.storeDSN = v.GetString("store.dsn")
	c.storeWatch = v.GetBool("store.watch")
	c.dimensions = v.GetUint("embedding.dimensions")
	c.maxResults = v.GetUint("query.max_results")
	c.eventProvider = v.GetString("event_stream.provider")
	c.eventBrokers = v.GetString("event_stream.brokers")
	c.eventTopic = v.GetString("event_stream.topic")
	c.mcpEnabled = v.GetBool("mcp.enabled")

	return nil
}

func (c *serveCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	ctx := context.Background()

	embedder := hashing.NewEmbedder(hashing.Config{Dimensions: int(c.dimensions)})

	persister, err := c.newPersister(ctx)
	if err != nil {
		return err
	}

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}

	service, err := memory.NewService(
		ctx,
		memory.Config{MaxResults: int(c.maxResults)},
		embedder,
		persister,
		publisher,
		c.logger,
	)
	if err != nil {
		return fmt.Errorf("creating memory service: %w", err)
	}
	defer service.Close()

	server := api.NewServer(api.Config{ListenAddr: c.listen}, service, c.logger)

	if c.mcpEnabled {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Service: service,
			Logger:  c.logger,
		})
		if err != nil {
			return fmt.Errorf("creating MCP server: %w", err)
		}
		server.Mount("/mcp", mcpServer.Handler())
		c.logger.Info("MCP tools mounted", zap.String("path", "/mcp"))
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	c.startWatch(watchCtx, service, persister)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}

// newPersister builds the store driver for the configured provider.
func (c *serveCommander) newPersister(ctx context.Context) (memory.Persister, error) {
	switch strings.ToLower(c.storeProvider) {
	case "jsonfile", "":
		driver, err := jsonfile.NewDriver(c.storePath)
		if err != nil {
			return nil, fmt.Errorf("creating jsonfile store: %w", err)
		}
		c.logger.Info("using jsonfile store", zap.String("path", driver.Path()))
		return driver, nil

	case "memory":
		c.logger.Info("using in-memory store")
		return inmemory.NewDriver(), nil

	case "sqlite":
		driver, err := sqlite.NewDriver(c.storePath)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite store: %w", err)
		}
		c.logger.Info("using sqlite store", zap.String("path", c.storePath))
		return driver, nil

	case "postgres":
		driver, err := postgres.NewDriver(ctx, c.storeDSN)
		if err != nil {
			return nil, fmt.Errorf("creating postgres store: %w", err)
		}
		c.logger.Info("using postgres store")
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown store provider: %q (available: jsonfile, memory, sqlite, postgres)", c.storeProvider)
	}
}

// newPublisher builds the mutation event publisher, or nil when disabled.
func (c *serveCommander) newPublisher() (eventstream.Publisher, error) {
	switch strings.ToLower(c.eventProvider) {
	case "", "none":
		return nil, nil

	case "kafka":
		publisher, err := kafka.NewPublisher(kafka.Config{
			Brokers: c.eventBrokers,
			Topic:   c.eventTopic,
		}, c.logger)
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return publisher, nil

	default:
		return nil, fmt.Errorf("unknown event stream provider: %q (available: none, kafka)", c.eventProvider)
	}
}

// startWatch reloads the service when the jsonfile document changes on disk.
// Only applies to the jsonfile provider with watching enabled.
func (c *serveCommander) startWatch(ctx context.Context, service *memory.Service, persister memory.Persister) {
	if !c.storeWatch {
		return
	}

	driver, ok := persister.(*jsonfile.Driver)
	if !ok {
		c.logger.Warn("store watching requires the jsonfile provider, ignoring")
		return
	}

	go func() {
		err := driver.Watch(ctx, func() {
			if err := service.Reload(ctx); err != nil {
				c.logger.Error("failed to reload store", zap.Error(err))
				return
			}
			c.logger.Debug("reloaded store from disk", zap.String("path", driver.Path()))
		})
		if err != nil && ctx.Err() == nil {
			c.logger.Error("store watcher stopped", zap.Error(err))
		}
	}()
}
