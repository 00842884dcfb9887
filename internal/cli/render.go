package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gadgethost/pkg/feature"
	"github.com/matzehuels/gadgethost/pkg/gadget"
	"github.com/matzehuels/gadgethost/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	lang      string
	country   string
	view      string
	moduleID  string
	prefs     map[string]string
	container bool   // assemble container scripts instead of gadget scripts
	output    string // write the feature payload here ("-" for stdout)
	refresh   bool   // bypass cached spec and bundle fetches
	noCache   bool   // do not use the on-disk cache at all
	timings   bool
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{}

	cmd := &cobra.Command{
		Use:   "render <gadget-url>",
		Short: "Render a gadget and report its resolved features",
		Args:  cobra.ExactArgs(1),
		Example: `  gadgethost render http://example.com/hello.xml --features ./features
  gadgethost render http://example.com/hello.xml --lang de --up name=Ada -o payload.js`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.lang, "lang", "", "language (default ALL)")
	cmd.Flags().StringVar(&opts.country, "country", "", "country (default ALL)")
	cmd.Flags().StringVar(&opts.view, "view", gadget.DefaultView, "view to render")
	cmd.Flags().StringVar(&opts.moduleID, "mid", "", "module id (generated when empty)")
	cmd.Flags().StringToStringVar(&opts.prefs, "up", nil, "user preference values (name=value)")
	cmd.Flags().BoolVar(&opts.container, "container", false, "assemble container scripts")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the feature payload to a file (- for stdout)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached fetches")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the on-disk cache")
	cmd.Flags().BoolVar(&opts.timings, "timings", false, "print per-stage timings")

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, url string, opts renderOpts) error {
	ctx := cmd.Context()

	st, err := c.localStack(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer st.Close()

	gctx := &gadget.Context{
		URL:           url,
		Locale:        gadget.NewLocale(opts.lang, opts.country),
		ModuleID:      opts.moduleID,
		View:          opts.view,
		IgnoreCache:   opts.refresh,
		UserPrefs:     opts.prefs,
		RenderContext: feature.GadgetContext,
	}
	if opts.container {
		gctx.RenderContext = feature.ContainerContext
	}

	spinner := newSpinnerWithContext(ctx, "Rendering "+url+"...")
	spinner.Start()
	g, res, err := st.runner.Execute(ctx, gctx)
	if err != nil {
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()

	printSuccess("Rendered %s", StyleHighlight.Render(displayTitle(g)))
	printKeyValue("Module", g.ModuleID)
	printKeyValue("Locale", gctx.Locale.String())
	printKeyValue("Features", strings.Join(g.Features, ", "))
	for _, name := range g.MissingOptional {
		printWarning("optional feature %s is not available", name)
	}
	for _, p := range g.PreloadResults {
		if p.Err != "" || p.StatusCode != 200 {
			printWarning("preload %s failed (%s)", p.Href, preloadStatus(p))
			continue
		}
		printDetail("preload %s: %d bytes", p.Href, len(p.Body))
	}
	printStats(res.Stats)
	if opts.timings {
		printStages(res.Stats)
	}

	return writePayload(opts.output, g.FeatureContent)
}

func displayTitle(g *gadget.Gadget) string {
	if g.Title != "" {
		return g.Title
	}
	return g.ID
}

func preloadStatus(p gadget.PreloadResult) string {
	if p.Err != "" {
		return p.Err
	}
	return fmt.Sprintf("status %d", p.StatusCode)
}

func writePayload(output string, payload []byte) error {
	switch output {
	case "":
		return nil
	case "-":
		_, err := os.Stdout.Write(payload)
		return err
	}
	if err := os.WriteFile(output, payload, 0o644); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	printFile(output)
	return nil
}

// statsLine formats render statistics for printStats.
func statsLine(s pipeline.Stats) []string {
	parts := []string{
		fmt.Sprintf("%d features", s.Features),
		fmt.Sprintf("%d bytes", s.PayloadBytes),
	}
	if s.Preloads > 0 {
		parts = append(parts, fmt.Sprintf("%d preloads", s.Preloads))
	}
	return append(parts, s.Total.Round(time.Millisecond).String())
}
