// Package querycmder provides the query command for retrieving memories from
// a running engram API server.
package querycmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/config"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/memory"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	contentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type queryCommander struct {
	uid   string
	query string
	topK  int
	quiet bool

	apiTarget string

	debug  bool
	logger *zap.Logger
}

const queryLongDesc string = `Query a user's memory via the engram API.

Ranks the user's stored memory nodes against the query text and prints the
most relevant matches. Requires a running engram API server. A user with no
stored nodes but a non-empty profile gets the profile text back as the single
match.

Use --quiet to output only node IDs, one per line, for piping.

Example:
  engram query "coffee preferences" --uid alice
  engram query "project deadlines" --uid bob --top 3
  engram query "coffee" --uid alice --api-target http://localhost:8787`

const queryShortDesc string = "Query a user's memory"

func NewQueryCmd() *cobra.Command {
	cmder := &queryCommander{}

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: queryShortDesc,
		Long:  queryLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.uid, "uid", "u", "", "User whose memory to query (required)")
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 0, "Number of results to return (0 means the server cap)")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only node IDs, one per line (for piping)")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Engram API server URL")
	_ = cmd.MarkFlagRequired("uid")

	return cmd
}

func (c *queryCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	var matches []memory.Match
	if c.quiet {
		var err error
		matches, err = QueryAPI(c.apiTarget, c.uid, c.query, c.topK)
		if err != nil {
			return err
		}
	} else {
		err := cliui.Step(os.Stderr, "Querying memory", func() error {
			var err error
			matches, err = QueryAPI(c.apiTarget, c.uid, c.query, c.topK)
			return err
		})
		if err != nil {
			return err
		}
	}

	if len(matches) == 0 {
		if !c.quiet {
			fmt.Println("No matches found.")
		}
		return nil
	}

	if c.quiet {
		for _, match := range matches {
			fmt.Println(match.ID)
		}
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		headerStyle.Render("Matches for:"),
		idStyle.Render(fmt.Sprintf("%q", c.query)),
	)

	for i, match := range matches {
		c.printMatch(i+1, match)
	}

	return nil
}

func (c *queryCommander) printMatch(rank int, match memory.Match) {
	fmt.Printf("  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", match.Score)),
		idStyle.Render(match.ID),
	)

	content := strings.ReplaceAll(match.Content, "\n", " ")
	if len(content) > 80 {
		content = content[:77] + "..."
	}
	if content == "" {
		content = "(no content)"
	}
	fmt.Printf("  %s\n", contentStyle.Render(content))

	if match.ID == memory.ProfileMatchID {
		fmt.Printf("  %s\n", dimStyle.Render("(profile text, no memory nodes stored)"))
	}

	fmt.Println()
}

// queryRequest is the body for POST /memory/query.
type queryRequest struct {
	UID   string `json:"uid"`
	Query string `json:"query"`
	TopK  int    `json:"topK,omitempty"`
}

// queryResponse is the body returned by POST /memory/query.
type queryResponse struct {
	Matches []memory.Match `json:"matches"`
	Error   string         `json:"error"`
}

// QueryAPI calls the engram query endpoint and returns the parsed matches.
func QueryAPI(apiTarget, uid, query string, topK int) ([]memory.Match, error) {
	queryURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	queryURL.Path = "/memory/query"

	payload, err := json.Marshal(queryRequest{UID: uid, Query: query, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("encoding query request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		context.Background(),
		http.MethodPost,
		queryURL.String(),
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("creating query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to engram API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var output queryResponse
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse query response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if output.Error != "" {
			return nil, fmt.Errorf("query request failed (HTTP %d): %s", resp.StatusCode, output.Error)
		}
		return nil, fmt.Errorf("query request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	return output.Matches, nil
}
