package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soypat/volview/pipeline"
	"github.com/soypat/volview/raster"
	"github.com/soypat/volview/surfop"
)

func (c *CLI) histogramCommand() *cobra.Command {
	var output string
	var bins int
	cmd := &cobra.Command{
		Use:   "histogram [volume.slc]",
		Short: "Plot the distribution of skin to bone distances",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(firstArg(args))
			if err != nil {
				return err
			}
			_, res, err := c.run(cmd.Context(), cfg, pipeline.StageDistance)
			if err != nil {
				return err
			}
			d, err := pipeline.Get[pipeline.Distance](res, pipeline.StageDistance)
			if err != nil {
				return err
			}
			st := surfop.ScalarStats(d.Surface)
			fmt.Fprintf(c.out, "n=%d min=%.4g max=%.4g mean=%.4g std=%.4g median=%.4g p95=%.4g\n",
				st.N, st.Min, st.Max, st.Mean, st.StdDev, st.Median, st.P95)
			if output == "" {
				return nil
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			err = raster.WriteHistogram(f, d.Surface, raster.HistogramConfig{
				Title:  "Skin to bone distance",
				Bins:   bins,
				Format: strings.TrimPrefix(filepath.Ext(output), "."),
			})
			if err != nil {
				f.Close()
				return err
			}
			c.Logger.Info("Wrote histogram", "file", output)
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "plot file, format from the extension (png, svg, pdf)")
	cmd.Flags().IntVar(&bins, "bins", 32, "number of histogram bins")
	return cmd
}
