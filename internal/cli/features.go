package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gadgethost/pkg/dag"
	gerrors "github.com/matzehuels/gadgethost/pkg/errors"
	"github.com/matzehuels/gadgethost/pkg/feature"
)

const (
	graphFormatDOT = "dot"
	graphFormatSVG = "svg"
)

// featuresCommand creates the features command group.
func (c *CLI) featuresCommand() *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "features",
		Short: "Inspect the feature registry",
	}
	cmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "rebuild the registry without the on-disk snapshot")

	cmd.AddCommand(c.featuresListCommand(&noCache))
	cmd.AddCommand(c.featuresResolveCommand(&noCache))
	cmd.AddCommand(c.featuresGraphCommand(&noCache))
	cmd.AddCommand(c.featuresBrowseCommand(&noCache))

	return cmd
}

// featuresListCommand creates the "features list" subcommand.
func (c *CLI) featuresListCommand(noCache *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List features in global dependency order",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.localStack(cmd.Context(), *noCache)
			if err != nil {
				return err
			}
			defer st.Close()

			fmt.Println(featureTable(st.registry.Descriptors(), -1))
			printDetail("%d features, %d core", st.registry.Len(), len(st.registry.CoreFeatureNames()))
			return nil
		},
	}
}

// featuresResolveCommand creates the "features resolve" subcommand.
func (c *CLI) featuresResolveCommand(noCache *bool) *cobra.Command {
	var (
		container bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "resolve [feature...]",
		Short: "Resolve features and their dependencies in load order",
		Long: `Resolve features and their dependencies in load order.

Without arguments the core feature set is resolved. With --output the
assembled script payload is written as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.localStack(ctx, *noCache)
			if err != nil {
				return err
			}
			defer st.Close()

			res := st.registry.Resolve(args)
			for _, name := range res.Missing {
				printWarning("unknown feature %s", name)
			}
			if !res.OK() {
				return gerrors.New(gerrors.ErrCodeNotFound, "unknown feature(s): %s", strings.Join(res.Missing, ", "))
			}

			ordered := st.registry.SortFeatures(res.Found)
			for i, name := range ordered {
				fmt.Printf("%s %s\n", StyleDim.Render(fmt.Sprintf("%3d", i+1)), name)
			}
			if output == "" {
				printNextStep("Assemble the payload", "gadgethost features resolve "+strings.Join(args, " ")+" -o payload.js")
				return nil
			}

			rc := feature.GadgetContext
			if container {
				rc = feature.ContainerContext
			}
			payload, err := st.assembler.ContentForMany(ctx, ordered, rc)
			if err != nil {
				return err
			}
			return writePayload(output, payload)
		},
	}

	cmd.Flags().BoolVar(&container, "container", false, "assemble container scripts")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the assembled payload (- for stdout)")

	return cmd
}

// featuresGraphCommand creates the "features graph" subcommand.
func (c *CLI) featuresGraphCommand(noCache *bool) *cobra.Command {
	var (
		format    string
		output    string
		highlight []string
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the feature dependency graph as DOT or SVG",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != graphFormatDOT && format != graphFormatSVG {
				return gerrors.New(gerrors.ErrCodeInvalidInput, "unsupported graph format %q (want dot or svg)", format)
			}
			ctx := cmd.Context()
			st, err := c.localStack(ctx, *noCache)
			if err != nil {
				return err
			}
			defer st.Close()

			opts := dag.DOTOptions{Highlight: make(map[string]bool)}
			if len(highlight) > 0 {
				res := st.registry.Resolve(highlight)
				for _, name := range res.Found {
					opts.Highlight[name] = true
				}
				opts.Title = strings.Join(highlight, ", ")
			}

			var data []byte
			if format == graphFormatSVG {
				if data, err = st.registry.Graph().RenderSVG(ctx, opts); err != nil {
					return err
				}
			} else {
				data = []byte(st.registry.Graph().ToDOT(opts))
			}

			if output == "" || output == "-" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write graph: %w", err)
			}
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", graphFormatDOT, "output format: dot, svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringSliceVar(&highlight, "highlight", nil, "highlight the closure of these features")

	return cmd
}

// featuresBrowseCommand creates the "features browse" subcommand.
func (c *CLI) featuresBrowseCommand(noCache *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse features and their resolved dependencies interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.localStack(cmd.Context(), *noCache)
			if err != nil {
				return err
			}
			defer st.Close()

			_, err = tea.NewProgram(NewFeatureBrowserModel(st.registry), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
}

// featureTable renders descriptors as a table. The row at cursor is
// highlighted; pass -1 for none.
func featureTable(descs []*feature.Descriptor, cursor int) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	rows := make([][]string, 0, len(descs))
	for i, d := range descs {
		core := ""
		if d.IsCore() {
			core = "✓"
		}
		deps := strings.Join(d.Dependencies, ", ")
		if deps == "" {
			deps = "—"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			d.Name,
			core,
			strconv.Itoa(len(d.GadgetScripts)),
			strconv.Itoa(len(d.ContainerScripts)),
			deps,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("#", "Feature", "Core", "Gadget", "Container", "Depends on").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == cursor:
				return base.Foreground(colorCyan).Bold(true)
			case col == 2:
				return base.Inherit(styleCore)
			case col == 0 || col == 5:
				return base.Foreground(colorDim)
			}
			return base
		})
	return t.Render()
}
