package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/dshills/restack/internal/cache"
	"github.com/dshills/restack/internal/conduit"
	"github.com/dshills/restack/internal/config"
	"github.com/dshills/restack/internal/reorg"
	"github.com/dshills/restack/internal/stack"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitChanges      = 1
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
	ExitPrecondition = 5
)

var flagVerbose bool

var rootCmd = &cobra.Command{
	Use:   "restack",
	Short: "Keep Phabricator revision stacks in line with local commits",
	Long: "Restack compares the stack of Differential revisions on a Phabricator server " +
		"with the commits on the current branch and edits the parent/child links on the " +
		"server until both agree.",
}

// Run executes the root command and returns an exit code.
func Run() int {
	rootCmd.AddCommand(reorganiseCmd)
	rootCmd.AddCommand(stackCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}

	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print restack version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "restack version %s\n", version)
	},
}

// fail prints err and records the exit code it maps to.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	exitCode = exitCodeFor(err)
}

func exitCodeFor(err error) int {
	switch {
	case err == nil, errors.Is(err, stack.ErrNotNeeded), errors.Is(err, stack.ErrCancelled):
		return ExitSuccess
	case conduit.IsAuthError(err), errors.Is(err, conduit.ErrNoToken), errors.Is(err, config.ErrNoToken):
		return ExitAuthError
	case errors.Is(err, reorg.ErrPrecondition):
		return ExitPrecondition
	default:
		return ExitRuntimeError
	}
}

// newLogger builds the process logger. Every line carries a short session
// ID so the lines of one invocation can be grepped out of a shared log.
func newLogger(cfg config.Config) (*slog.Logger, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	if flagVerbose {
		lvl = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(h).With("session", uuid.NewString()[:8]), nil
}

// newClient connects to the configured server. A cache that cannot be
// opened is skipped rather than failing the command.
func newClient(cfg config.Config, log *slog.Logger) (*conduit.Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("no Phabricator URL configured (set url, RESTACK_URL or phabricator.uri in .arcconfig)")
	}
	token, err := config.Token(cfg.URL)
	if err != nil {
		return nil, err
	}
	c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		log.Warn("revision cache unavailable", "error", err)
		c = nil
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = -1
	}
	return conduit.NewClient(cfg.URL, token, conduit.Options{
		Logger:     log,
		Cache:      c,
		MaxRetries: retries,
		Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
	})
}

// checkServer makes one cheap call so a wrong URL or token fails before
// the stack is fetched.
func checkServer(ctx context.Context, c *conduit.Client) error {
	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("contacting %s: %w", c.APIURL(), err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log Conduit calls and stack details to stderr")
}
