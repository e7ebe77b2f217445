// Package engramcmder
package engramcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/engram/cmd/engram/config"
	querycmder "github.com/papercomputeco/engram/cmd/engram/query"
	servecmder "github.com/papercomputeco/engram/cmd/engram/serve"
	versioncmder "github.com/papercomputeco/engram/cmd/engram/version"
)

const engramLongDesc string = `Engram is a per-user memory store with similarity retrieval.

Run the server:
  engram serve         Run the memory API server

Query memories:
  engram query         Query a user's memory via the API

Manage configuration:
  engram config        Get, set, and list configuration values`

const engramShortDesc string = "Engram - per-user memory with retrieval"

func NewEngramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engram",
		Short: engramShortDesc,
		Long:  engramLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .engram/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(querycmder.NewQueryCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
