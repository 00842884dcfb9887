package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gadgethost/pkg/assemble"
	"github.com/matzehuels/gadgethost/pkg/buildinfo"
	"github.com/matzehuels/gadgethost/pkg/cache"
	"github.com/matzehuels/gadgethost/pkg/config"
	"github.com/matzehuels/gadgethost/pkg/feature"
	"github.com/matzehuels/gadgethost/pkg/httpfetch"
	"github.com/matzehuels/gadgethost/pkg/minify"
	"github.com/matzehuels/gadgethost/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "gadgethost"

	// configEnv names the environment variable holding a default config path.
	configEnv = "GADGETHOST_CONFIG"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	roots      []string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "gadgethost renders OpenSocial gadgets",
		Long:         `gadgethost is an OpenSocial gadget container: it fetches gadget specs, resolves their JavaScript feature dependencies and serves the rendered result.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", os.Getenv(configEnv), "path to a TOML config file")
	root.PersistentFlags().StringSliceVar(&c.roots, "features", nil, "feature roots (overrides features.roots)")

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.featuresCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Stack Factory
// =============================================================================

// loadConfig reads the config file named by --config, or the defaults, and
// applies the persistent flag overrides.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return nil, err
		}
		c.Logger.Debug("loaded config", "path", c.configPath)
	}
	if len(c.roots) > 0 {
		cfg.Features.Roots = c.roots
	}
	return cfg, cfg.Validate()
}

// stack is the wired set of components every command works on.
type stack struct {
	cfg       *config.Config
	cache     cache.Cache
	fetcher   *httpfetch.HTTPFetcher
	registry  *feature.Registry
	assembler *assemble.Assembler
	runner    *pipeline.Runner
}

func (s *stack) Close() error {
	return s.cache.Close()
}

// newStack builds the registry and the rendering pipeline over backend.
func (c *CLI) newStack(ctx context.Context, cfg *config.Config, backend cache.Cache) (*stack, error) {
	keyer := cfg.Keyer()

	fetcher, err := httpfetch.New(cfg.FetchOptions())
	if err != nil {
		return nil, err
	}

	loader := feature.NewLoader(cfg.Server.ResourceHost, cfg.Server.Secure)
	loader.Cache = backend
	loader.Keyer = keyer
	loader.Logger = c.Logger
	reg, err := feature.NewProvider(loader, cfg.Features.Roots).Registry(ctx)
	if err != nil {
		return nil, err
	}

	var minifier minify.Minifier
	if cfg.Features.Compress {
		minifier = minify.NewJS()
	}
	asm := assemble.New(reg, assemble.Options{
		Fetcher:  fetcher,
		Minifier: minifier,
		Cache:    backend,
		Keyer:    keyer,
		Logger:   c.Logger,
	})

	runner := pipeline.NewRunner(reg, asm, fetcher, c.Logger)
	if len(cfg.Blacklist) > 0 {
		bl, err := pipeline.NewPatternBlacklist(cfg.Blacklist)
		if err != nil {
			return nil, err
		}
		runner.Blacklist = bl
	}

	return &stack{
		cfg:       cfg,
		cache:     backend,
		fetcher:   fetcher,
		registry:  reg,
		assembler: asm,
		runner:    runner,
	}, nil
}

// localStack builds a stack for one-shot commands. Registry snapshots and
// assembled content go to the on-disk cache unless noCache is set.
func (c *CLI) localStack(ctx context.Context, noCache bool) (*stack, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	backend, err := newCache(noCache)
	if err != nil {
		return nil, err
	}
	st, err := c.newStack(ctx, cfg, backend)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return st, nil
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/gadgethost/).
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
