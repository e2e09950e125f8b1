package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/restack/internal/gitctx"
	"github.com/spf13/cobra"
)

const (
	hookName        = "post-rewrite"
	hookMarkerStart = "# >>> restack post-rewrite hook >>>"
	hookMarkerEnd   = "# <<< restack post-rewrite hook <<<"
)

var (
	hookFormat  string
	hookOnAmend bool
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage the git post-rewrite hook",
	Long: "The hook runs a dry-run reorganisation after every rebase and says so when " +
		"the server's stack no longer matches the rewritten commits.",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install restack as a git post-rewrite hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		hookPath, err := gitctx.HookPath(hookName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		section := generateHookScript(hookFormat, hookOnAmend)

		existing, err := os.ReadFile(hookPath)
		if err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error reading hook file: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		var content string
		if os.IsNotExist(err) || len(existing) == 0 {
			content = "#!/bin/sh\n" + section
		} else {
			content = replaceHookSection(string(existing), section)
		}

		if err := os.MkdirAll(filepath.Dir(hookPath), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating hooks directory: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing hook file: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		fmt.Fprintf(os.Stdout, "Installed restack %s hook at %s\n", hookName, hookPath)
		return nil
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the restack post-rewrite hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		hookPath, err := gitctx.HookPath(hookName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		existing, err := os.ReadFile(hookPath)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Fprintf(os.Stdout, "No %s hook found.\n", hookName)
				return nil
			}
			fmt.Fprintf(os.Stderr, "Error reading hook file: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		content := removeHookSection(string(existing))

		// Only a shebang left: the file was ours alone
		trimmed := strings.TrimSpace(content)
		if trimmed == "" || trimmed == "#!/bin/sh" || trimmed == "#!/bin/bash" {
			if err := os.Remove(hookPath); err != nil {
				fmt.Fprintf(os.Stderr, "Error removing hook file: %v\n", err)
				exitCode = ExitRuntimeError
				return nil
			}
			fmt.Fprintf(os.Stdout, "Removed restack %s hook at %s\n", hookName, hookPath)
			return nil
		}

		if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing hook file: %v\n", err)
			exitCode = ExitRuntimeError
			return nil
		}

		fmt.Fprintf(os.Stdout, "Removed restack section from %s\n", hookPath)
		return nil
	},
}

// generateHookScript returns the marked hook section. git passes the
// rewriting command ("rebase" or "amend") as $1.
func generateHookScript(format string, onAmend bool) string {
	cond := `[ "$1" = "rebase" ]`
	if onAmend {
		cond += ` || [ "$1" = "amend" ]`
	}
	var b strings.Builder
	b.WriteString(hookMarkerStart + "\n")
	fmt.Fprintf(&b, "if %s; then\n", cond)
	fmt.Fprintf(&b, "  restack reorganise --dry-run --check --format %s\n", format)
	b.WriteString("  RESTACK_EXIT=$?\n")
	b.WriteString("  if [ $RESTACK_EXIT -eq 1 ]; then\n")
	b.WriteString("    echo \"restack: run 'restack reorganise' to update the stack on Phabricator\"\n")
	b.WriteString("  elif [ $RESTACK_EXIT -ge 2 ]; then\n")
	b.WriteString("    echo \"restack: could not compare stacks (exit $RESTACK_EXIT)\"\n")
	b.WriteString("  fi\n")
	b.WriteString("fi\n")
	b.WriteString(hookMarkerEnd + "\n")
	return b.String()
}

func replaceHookSection(existing, section string) string {
	startIdx := strings.Index(existing, hookMarkerStart)
	endIdx := strings.Index(existing, hookMarkerEnd)

	if startIdx == -1 || endIdx == -1 {
		if !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + section
	}

	before := existing[:startIdx]
	after := existing[endIdx+len(hookMarkerEnd):]
	after = strings.TrimPrefix(after, "\n")
	return before + section + after
}

func removeHookSection(existing string) string {
	startIdx := strings.Index(existing, hookMarkerStart)
	endIdx := strings.Index(existing, hookMarkerEnd)

	if startIdx == -1 || endIdx == -1 {
		return existing
	}

	before := existing[:startIdx]
	after := existing[endIdx+len(hookMarkerEnd):]
	after = strings.TrimPrefix(after, "\n")

	return before + after
}

func init() {
	hookCmd.AddCommand(hookInstallCmd)
	hookCmd.AddCommand(hookUninstallCmd)
	hookInstallCmd.Flags().StringVar(&hookFormat, "format", "text", "Output format for the hook's report (text, json, markdown, yaml)")
	hookInstallCmd.Flags().BoolVar(&hookOnAmend, "amend", false, "Also check after git commit --amend")
}
