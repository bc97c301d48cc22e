// Package cli implements the volview command-line interface.
//
// # Commands
//
//   - render: draw the four view scene and its orbit animation to PNG frames
//   - export: write a pipeline surface as STL or the cross sections as SVG
//   - histogram: plot the distance field distribution
//   - graph: print the pipeline graph as DOT or SVG
//   - cache: locate or clear the distance field cache
//
// All commands accept --config (-c) naming a TOML file decoded over the
// default configuration and --verbose (-v) for debug logging.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/soypat/volview/cache"
	"github.com/soypat/volview/pipeline"
)

const appName = "volview"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	// configPath is set by the --config flag.
	configPath string
	// out receives command output other than log messages.
	out io.Writer
}

// New creates a CLI logging to w at level. Command output goes to stdout.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level), out: os.Stdout}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "volview extracts and renders iso-surfaces of volume scans",
		Long:         `volview reads a scalar volume, extracts skin and bone iso-surfaces and renders them in four synchronized views: an overview, planar cross sections, a sphere clip and the skin to bone distance.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "TOML configuration file")
	root.SetOut(c.out)

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.histogramCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	return root
}

// loadConfig returns the configuration named by --config, or the defaults.
// A non empty volume overrides the configured one.
func (c *CLI) loadConfig(volume string) (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	if c.configPath != "" {
		var err error
		if cfg, err = pipeline.LoadConfig(c.configPath); err != nil {
			return cfg, err
		}
	}
	if volume != "" {
		cfg.Volume = volume
	}
	return cfg, nil
}

// openStore returns the artifact store configured for cfg. The returned
// function releases it.
func openStore(ctx context.Context, cfg pipeline.Config) (cache.Store, func() error, error) {
	if cfg.Cache.RedisAddr != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.Cache.RedisAddr, appName+":")
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Close, nil
	}
	dir := cfg.Cache.Dir
	if dir == "" {
		var err error
		if dir, err = cacheDir(); err != nil {
			return nil, nil, fmt.Errorf("get cache dir: %w", err)
		}
	}
	fs, err := cache.NewFileStore(dir)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() error { return nil }, nil
}

// run builds the standard pipeline for cfg and runs the stages needed for
// targets.
func (c *CLI) run(ctx context.Context, cfg pipeline.Config, targets ...string) (*pipeline.Graph, *pipeline.Results, error) {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	defer closeStore()
	dc := cache.NewDistanceCache(store, cache.Options{Logger: c.Logger.WithPrefix("cache")})
	g, err := pipeline.Build(cfg, pipeline.Env{Cache: dc, Logger: c.Logger})
	if err != nil {
		return nil, nil, err
	}
	prog := newProgress(c.Logger)
	res, err := g.Run(ctx, targets...)
	if err != nil {
		return nil, nil, err
	}
	prog.done("Pipeline finished")
	return g, res, nil
}

// cacheDir returns the cache directory using XDG standard (~/.cache/volview/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
