package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/seniorliving/directory-search/internal/directory"
	"github.com/seniorliving/directory-search/internal/directory/feed"
	"github.com/seniorliving/directory-search/pkg/config"
	"github.com/seniorliving/directory-search/pkg/logger"
)

var (
	cfgFile     string
	feedURI     string
	fallbackURI string
	logLevel    string
	outputJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "sitesearch",
	Short: "Search the senior-living directory from the command line",
	Long: `Search the senior-living directory from the command line.

The feed is loaded once per invocation using the same fallback chain as the
search service: the primary source first, then the fallback.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Logs go to stderr so stdout stays parseable.
		logger.SetupWriter(os.Stderr, logLevel, "text")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (defaults and SP_* overrides when empty)")
	rootCmd.PersistentFlags().StringVar(&feedURI, "feed", "", "primary feed source: path, file:// or http(s) URL")
	rootCmd.PersistentFlags().StringVar(&fallbackURI, "fallback", "", "fallback feed source")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print JSON instead of a table")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(exportIndexCmd)
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}
	if feedURI != "" {
		cfg.Feed.Primary = feedURI
		cfg.Feed.Fallback = fallbackURI
	} else if fallbackURI != "" {
		cfg.Feed.Fallback = fallbackURI
	}
	return cfg, nil
}

// loadSnapshot resolves the configured sources and loads them once. The
// postgres source is not available from the CLI.
func loadSnapshot(ctx context.Context) (*config.Config, *directory.Snapshot, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	sources, err := feed.NewSources(cfg.Feed, feed.Deps{
		HTTPClient: &http.Client{Timeout: cfg.Feed.HTTPTimeout},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("configuring feed: %w", err)
	}
	snap, err := feed.NewProvider(sources, cfg.Feed.LoadTimeout, nil).Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	return cfg, snap, nil
}
