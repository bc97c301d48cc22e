package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soypat/volview/pipeline"
)

func (c *CLI) graphCommand() *cobra.Command {
	var output string
	var svg, timed, list bool
	cmd := &cobra.Command{
		Use:   "graph [volume.slc]",
		Short: "Print the pipeline stage graph in DOT format",
		Long: `Graph prints the standard pipeline as a Graphviz DOT digraph. With --timed
the pipeline is run first and stage times are added to the labels. With --svg
the graph is laid out and rendered to SVG. With --list each stage is printed
on its own line followed by the stages it depends on.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig(firstArg(args))
			if err != nil {
				return err
			}
			var dot string
			if timed {
				g, res, err := c.run(ctx, cfg)
				if err != nil {
					return err
				}
				dot = g.DOT(res)
			} else {
				if cfg.Volume == "" {
					// The graph shape does not depend on the volume.
					cfg.Volume = "volume.slc"
				}
				g, err := pipeline.Build(cfg, pipeline.Env{Logger: c.Logger})
				if err != nil {
					return err
				}
				if list {
					var b strings.Builder
					for _, name := range g.Stages() {
						fmt.Fprintf(&b, "%s: %s\n", name, strings.Join(g.Deps(name), " "))
					}
					dot = b.String()
				} else {
					dot = g.DOT(nil)
				}
			}
			data := []byte(dot)
			if svg && !list {
				if data, err = pipeline.RenderSVG(ctx, dot); err != nil {
					return err
				}
			}
			if output == "" {
				_, err = c.out.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&svg, "svg", false, "render to SVG with Graphviz")
	cmd.Flags().BoolVar(&list, "list", false, "list stages and their dependencies instead of DOT")
	cmd.Flags().BoolVar(&timed, "timed", false, "run the pipeline and label stages with their elapsed time")
	return cmd
}
