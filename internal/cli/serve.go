package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gadgethost/pkg/server"
)

// serveOpts holds flag overrides for the serve command.
type serveOpts struct {
	addr         string
	resourceHost string
	resourceDir  string
	backend      string
	compress     bool
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gadget container HTTP server",
		Long: `Run the gadget container HTTP server.

The feature registry is built once at startup. A broken manifest, an invalid
feature descriptor or a dependency cycle stops the server before it listens.`,
		Example: `  gadgethost serve --features ./features
  gadgethost serve -c gadgethost.toml --addr :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&opts.resourceHost, "resource-host", "", "host serving /gadgets/resources (overrides server.resource_host)")
	cmd.Flags().StringVar(&opts.resourceDir, "resource-dir", "", "directory served under /gadgets/resources")
	cmd.Flags().StringVar(&opts.backend, "cache", "", "cache backend: null, memory, file, redis, mongo")
	cmd.Flags().BoolVar(&opts.compress, "compress", false, "minify feature JavaScript")

	return cmd
}

func (c *CLI) runServe(cmd *cobra.Command, opts serveOpts) error {
	ctx := cmd.Context()

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.resourceHost != "" {
		cfg.Server.ResourceHost = opts.resourceHost
	}
	if opts.resourceDir != "" {
		cfg.Server.ResourceDir = opts.resourceDir
	}
	if opts.backend != "" {
		cfg.Cache.Backend = opts.backend
	}
	if cmd.Flags().Changed("compress") {
		cfg.Features.Compress = opts.compress
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	backend, err := cfg.OpenCache(ctx)
	if err != nil {
		return err
	}
	prog := newProgress(c.Logger)
	st, err := c.newStack(ctx, cfg, backend)
	if err != nil {
		_ = backend.Close()
		return fmt.Errorf("build feature registry: %w", err)
	}
	defer st.Close()
	prog.done(fmt.Sprintf("Loaded %d features", st.registry.Len()))

	srv := server.New(server.Options{
		Runner:      st.runner,
		Registry:    st.registry,
		Assembler:   st.assembler,
		ResourceDir: cfg.Server.ResourceDir,
		Logger:      c.Logger,
	})

	printInfo("Serving on %s", StyleLink.Render("http://"+displayAddr(cfg.Server.Addr)))
	printDetail("cache: %s · compress: %t", cfg.Cache.Backend, cfg.Features.Compress)

	return srv.ListenAndServe(ctx, server.ListenConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})
}

// displayAddr makes a ":port" listen address clickable.
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
