package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dshills/restack/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configShowFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage restack configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(os.Stderr, "Config file already exists at %s\n", path)
			return nil
		}

		cfg := config.Default()
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Fprintf(os.Stdout, "Config file created at %s\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value in the config file. Keys: url, format, logLevel, " +
		"maxRetries, timeoutSeconds, spinner, cache.enabled, cache.dir, cache.ttlSeconds. " +
		"The API token is never stored here; it comes from RESTACK_API_TOKEN or ~/.arcrc.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile()
		if err != nil {
			return err
		}

		if err := config.SetField(&cfg, args[0], args[1]); err != nil {
			return err
		}

		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		fmt.Fprintf(os.Stdout, "Set %s = %s\n", args[0], args[1])
		return nil
	},
}

// effectiveConfig is what config show prints: the merged settings, whether
// a token could be found for the server and whose token it is.
type effectiveConfig struct {
	config.Config `yaml:",inline"`
	Token         string `json:"token" yaml:"token"`
	User          string `json:"user,omitempty" yaml:"user,omitempty"`
}

// showConfig resolves the token for cfg.URL and, when there is one, asks
// the server who it authenticates as.
func showConfig(ctx context.Context, cfg config.Config) effectiveConfig {
	show := effectiveConfig{Config: cfg, Token: "missing"}
	if cfg.URL == "" {
		return show
	}
	if _, err := config.Token(cfg.URL); err != nil {
		if !errors.Is(err, config.ErrNoToken) {
			show.Token = err.Error()
		}
		return show
	}
	show.Token = "found"

	log, err := newLogger(cfg)
	if err != nil {
		log = slog.New(slog.DiscardHandler)
	}
	client, err := newClient(cfg, log)
	if err != nil {
		show.User = "unknown: " + err.Error()
		return show
	}
	u, err := client.Whoami(ctx)
	if err != nil {
		show.User = "unknown: " + err.Error()
		return show
	}
	show.User = u.UserName
	if u.RealName != "" {
		show.User += " (" + u.RealName + ")"
	}
	return show
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configShowFormat != "json" && configShowFormat != "yaml" {
			return fmt.Errorf("unsupported format %q (want json or yaml)", configShowFormat)
		}
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		show := showConfig(cmd.Context(), cfg)

		var data []byte
		switch configShowFormat {
		case "json":
			data, err = json.MarshalIndent(show, "", "  ")
		case "yaml":
			data, err = yaml.Marshal(show)
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configShowCmd.Flags().StringVar(&configShowFormat, "format", "json", "Output format (json, yaml)")
}
