package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dshills/restack/internal/conduit"
	"github.com/dshills/restack/internal/config"
	"github.com/dshills/restack/internal/output"
	"github.com/dshills/restack/internal/stack"
	"github.com/spf13/cobra"
)

// stackReader is the part of the Conduit client the stack command needs.
type stackReader interface {
	stack.Remote
	GetRevisionsByPHID(ctx context.Context, phids []string) ([]conduit.Revision, error)
}

var stackCmd = &cobra.Command{
	Use:   "stack <D123|PHID>",
	Short: "Show the remote stack a revision belongs to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		if _, err := output.GetWriter(cfg.Format); err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		client, err := newClient(cfg, log)
		if err != nil {
			fail(err)
			return nil
		}
		if err := checkServer(cmd.Context(), client); err != nil {
			fail(err)
			return nil
		}

		sp := newSpinner(os.Stderr, cfg.Spinner, "Fetching stack")
		sp.Start()
		report, err := remoteStack(cmd.Context(), client, args[0])
		sp.Stop()
		if err != nil {
			fail(err)
			return nil
		}
		if err := output.WriteReport(report, cfg.Format, flagOut); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			exitCode = ExitRuntimeError
		}
		return nil
	},
}

// remoteStack resolves ref (a revision monogram, number or PHID) and
// reports the linear stack it is part of, head first.
func remoteStack(ctx context.Context, r stackReader, ref string) (*output.Report, error) {
	phid := ref
	if !strings.HasPrefix(ref, "PHID-") {
		id, err := conduit.ParseRevisionID(ref)
		if err != nil {
			return nil, err
		}
		phids, err := r.ResolvePHIDs(ctx, []int{id})
		if err != nil {
			return nil, fmt.Errorf("resolving D%d: %w", id, err)
		}
		var ok bool
		if phid, ok = phids[id]; !ok {
			return nil, fmt.Errorf("revision D%d not found", id)
		}
	}

	c, err := r.GetStack(ctx, []string{phid})
	if err != nil {
		return nil, fmt.Errorf("fetching remote stack: %w", err)
	}
	nodes, err := stack.Linearize(c)
	if err != nil {
		return nil, err
	}
	revs, err := r.GetRevisionsByPHID(ctx, nodes)
	if err != nil {
		return nil, fmt.Errorf("loading revisions: %w", err)
	}
	byPHID := make(map[string]conduit.Revision, len(revs))
	for _, rev := range revs {
		byPHID[rev.PHID] = rev
	}

	report := &output.Report{
		Tool:    "restack",
		Version: version,
		Status:  output.StatusStack,
	}
	for _, n := range nodes {
		node := output.Node{ID: n, Label: n}
		if rev, ok := byPHID[n]; ok {
			node.Label = rev.Name()
			node.Title = rev.Fields.Title
			node.Status = rev.Fields.Status.Value
		}
		report.Remote = append(report.Remote, node)
	}
	return report, nil
}

func init() {
	stackCmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown, yaml)")
	stackCmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	stackCmd.Flags().StringVar(&flagURL, "url", "", "Phabricator URL (overrides config and .arcconfig)")
}
