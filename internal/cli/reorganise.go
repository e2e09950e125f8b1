package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dshills/restack/internal/config"
	"github.com/dshills/restack/internal/gitctx"
	"github.com/dshills/restack/internal/output"
	"github.com/dshills/restack/internal/stack"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// Shared output flags
var (
	flagFormat string
	flagOut    string
	flagURL    string
	flagCheck  bool
)

var (
	flagYes    bool
	flagDryRun bool
)

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown, yaml)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&flagCheck, "check", false, "Exit with status 1 when the stack needs changes")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagURL != "" {
		m["url"] = flagURL
	}
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	return m
}

var reorganiseCmd = &cobra.Command{
	Use:     "reorganise [start] [end]",
	Aliases: []string{"reorg"},
	Short:   "Make the server's stack match the local commits",
	Long: "Reorganise reads the commits between start (default: the merge-base with the " +
		"upstream branch) and end (default: HEAD), fetches the stack their revisions belong " +
		"to, and edits parent/child links on the server until the two agree.",
	Args: cobra.MaximumNArgs(2),
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

		var start, end string
		if len(args) > 0 {
			start = args[0]
		}
		if len(args) > 1 {
			end = args[1]
		}
		rng, err := gitctx.StackRange(start, end)
		if err != nil {
			fail(err)
			return nil
		}
		commits, err := gitctx.ListCommits(rng)
		if err != nil {
			fail(err)
			return nil
		}
		repo := output.RepoInfo{Range: rng}
		if meta, err := gitctx.GetRepoMeta(); err == nil {
			repo.Root = meta.Root
			repo.Branch = meta.Branch
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
		log.Debug("reorganising", "range", rng, "commits", len(commits), "server", client.APIURL())

		deps := stack.Deps{Remote: client, Submitter: client, Logger: log}
		runReorganise(cmd.Context(), deps, commits, cfg, repo)
		return nil
	},
}

func runReorganise(ctx context.Context, deps stack.Deps, commits []gitctx.CommitInfo, cfg config.Config, repo output.RepoInfo) {
	sp := newSpinner(os.Stderr, cfg.Spinner, "Fetching stack")
	sp.Start()
	defer sp.Stop()

	needYes := false
	opts := stack.Options{
		DryRun: flagDryRun,
		Confirm: func(res *stack.Result) bool {
			sp.Stop()
			if flagYes {
				sp.Start()
				return true
			}
			if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
				needYes = true
				return false
			}
			ok := confirm(os.Stdin, os.Stderr, buildReport(res, repo, nil))
			if ok {
				sp.Update("Updating revisions")
				sp.Start()
			}
			return ok
		},
		Progress: func(node string, done, total int) {
			sp.Update(fmt.Sprintf("Updating revisions [%d/%d]", done, total))
		},
	}

	res, err := stack.Reorganise(ctx, deps, commits, opts)
	sp.Stop()

	if res == nil || res.Plan == nil {
		fail(err)
		return
	}

	report := buildReport(res, repo, err)
	if werr := output.WriteReport(report, cfg.Format, flagOut); werr != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", werr)
		exitCode = ExitRuntimeError
		return
	}

	switch {
	case errors.Is(err, stack.ErrNotNeeded):
	case errors.Is(err, stack.ErrCancelled):
		if needYes {
			fmt.Fprintln(os.Stderr, "Error: stdin is not a terminal; pass --yes to submit or --dry-run to only plan")
			exitCode = ExitUsageError
			return
		}
		fmt.Fprintln(os.Stderr, "Cancelled.")
	case err != nil:
		fail(err)
	case flagDryRun && flagCheck:
		exitCode = ExitChanges
	}
}

// buildReport turns a (possibly partial) result into a report. err is the
// error Reorganise returned with it.
func buildReport(res *stack.Result, repo output.RepoInfo, err error) *output.Report {
	report := &output.Report{
		Tool:    "restack",
		Version: version,
		Status:  output.StatusPlanned,
		Repo:    repo,
		Remote:  output.Nodes(res.Remote, res.Label),
		Local:   localNodes(res),
		Changes: output.Changes(res.Plan, res.Label),
	}
	for _, n := range res.Submitted {
		report.Submitted = append(report.Submitted, res.Label(n))
	}

	switch {
	case errors.Is(err, stack.ErrNotNeeded):
		report.Status = output.StatusNotNeeded
	case errors.Is(err, stack.ErrCancelled):
	case err != nil:
		report.Status = output.StatusFailed
		report.Error = err.Error()
	case len(res.Submitted) > 0:
		report.Status = output.StatusApplied
	}
	return report
}

func localNodes(res *stack.Result) []output.Node {
	out := make([]output.Node, len(res.Local))
	for i, e := range res.Local {
		out[i] = output.Node{
			ID:     e.Node,
			Label:  res.Label(e.Node),
			Title:  e.Commit.Subject,
			Commit: e.Commit.Short(),
		}
	}
	return out
}

// confirm shows the plan on out and reads a yes/no answer from in.
func confirm(in io.Reader, out io.Writer, report *output.Report) bool {
	if err := (&output.TextWriter{}).Write(out, report); err != nil {
		return false
	}
	fmt.Fprint(out, "Perform reorganisation? [y/N] ")
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func init() {
	addOutputFlags(reorganiseCmd)
	reorganiseCmd.Flags().StringVar(&flagURL, "url", "", "Phabricator URL (overrides config and .arcconfig)")
	reorganiseCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "Submit without asking for confirmation")
	reorganiseCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Show the planned edits without submitting them")
}
