// Package kinds implements the kinds command: the launchable job kind
// catalog rendered as a table.
package kinds

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/4liaghaie/scraper-dashboard/internal/client"
	"github.com/4liaghaie/scraper-dashboard/internal/logger"
)

// Command returns the kinds command.
func Command() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "kinds",
		Short: "List launchable job kinds and their parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, serverURL)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "dashboard server URL")
	return cmd
}

func run(cmd *cobra.Command, serverURL string) error {
	c := client.New(serverURL, logger.NewNop())
	kinds, err := c.Kinds(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch kinds: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Kind", "Title", "Parameters"})

	for _, k := range kinds {
		var names []string
		for _, raw := range k.Params {
			names = append(names, paramSummary(raw))
		}
		t.AppendRow(table.Row{k.Name, k.Title, strings.Join(names, ", ")})
	}

	t.Render()
	return nil
}

// paramSummary renders one schema entry as "name (type)".
func paramSummary(raw json.RawMessage) string {
	var def struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &def); err != nil || def.Name == "" {
		return "?"
	}
	return fmt.Sprintf("%s (%s)", def.Name, def.Type)
}
