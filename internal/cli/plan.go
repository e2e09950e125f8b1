package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/dshills/restack/internal/config"
	"github.com/dshills/restack/internal/output"
	"github.com/dshills/restack/internal/reorg"
	"github.com/spf13/cobra"
)

var (
	flagRemote string
	flagLocal  string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the edits that turn one stack order into another (offline)",
	Long: "Plan runs the reorganisation planner on two comma-separated node lists, bottom " +
		"of the stack first, without talking to a server. Nodes are opaque names.",
	Example: "  restack plan --remote A,B,C --local A,C,B",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		if _, err := output.GetWriter(cfg.Format); err != nil {
			return err
		}
		report, err := offlinePlan(splitComma(flagRemote), splitComma(flagLocal))
		if err != nil {
			fail(err)
			return nil
		}
		if err := output.WriteReport(report, cfg.Format, flagOut); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}
		if flagCheck && report.Status == output.StatusPlanned {
			exitCode = ExitChanges
		}
		return nil
	},
}

func offlinePlan(remote, local []string) (*output.Report, error) {
	plan, err := reorg.PrepareTransactions(remote, local)
	if err != nil {
		return nil, err
	}
	report := &output.Report{
		Tool:    "restack",
		Version: version,
		Status:  output.StatusPlanned,
		Remote:  output.Nodes(remote, nil),
		Local:   output.Nodes(local, nil),
		Changes: output.Changes(plan, nil),
	}
	if plan.Empty() {
		report.Status = output.StatusNotNeeded
	}
	return report, nil
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func init() {
	addOutputFlags(planCmd)
	planCmd.Flags().StringVar(&flagRemote, "remote", "", "Current stack order on the server (comma-separated, bottom of the stack first)")
	planCmd.Flags().StringVar(&flagLocal, "local", "", "Wanted stack order (comma-separated, bottom of the stack first)")
}
