package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soypat/volview"
	"github.com/soypat/volview/pipeline"
	"github.com/soypat/volview/render"
	"github.com/soypat/volview/surfop"
)

const defaultSVGSize = 800

// surfaceStages maps exportable stage names to a function extracting the
// surface from the stage output.
var surfaceStages = map[string]func(*pipeline.Results) (*volview.Surface, error){
	pipeline.StageSkin:     stageSurface(pipeline.StageSkin),
	pipeline.StageBone:     stageSurface(pipeline.StageBone),
	pipeline.StageSections: stageSurface(pipeline.StageSections),
	pipeline.StageClipped:  stageSurface(pipeline.StageClipped),
	pipeline.StageBoundary: stageSurface(pipeline.StageBoundary),
	pipeline.StageDistance: func(res *pipeline.Results) (*volview.Surface, error) {
		d, err := pipeline.Get[pipeline.Distance](res, pipeline.StageDistance)
		return d.Surface, err
	},
}

func stageSurface(name string) func(*pipeline.Results) (*volview.Surface, error) {
	return func(res *pipeline.Results) (*volview.Surface, error) {
		return pipeline.Get[*volview.Surface](res, name)
	}
}

func exportableStages() []string {
	names := []string{pipeline.StageContours}
	for name := range surfaceStages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *CLI) exportCommand() *cobra.Command {
	var stage, output string
	var size int
	cmd := &cobra.Command{
		Use:   "export [volume.slc]",
		Short: "Write a pipeline surface as binary STL or the cross sections as SVG",
		Long: `Export runs the pipeline up to the named stage and writes its output.
Surface stages are written as binary STL. The contours stage is written as an
SVG drawing of the cross section polylines projected on the cut plane.

Stages: ` + strings.Join(exportableStages(), ", "),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			get, isSurface := surfaceStages[stage]
			if !isSurface && stage != pipeline.StageContours {
				return fmt.Errorf("cannot export stage %q, want one of %s", stage, strings.Join(exportableStages(), ", "))
			}
			if output == "" {
				output = stage + ".stl"
				if !isSurface {
					output = stage + ".svg"
				}
			}
			cfg, err := c.loadConfig(firstArg(args))
			if err != nil {
				return err
			}
			_, res, err := c.run(cmd.Context(), cfg, stage)
			if err != nil {
				return err
			}
			if !isSurface {
				return writeContours(res, output, size)
			}
			s, err := get(res)
			if err != nil {
				return err
			}
			if s.IsEmpty() {
				c.Logger.Warn("exporting empty surface", "stage", stage)
			}
			if err := render.CreateSTL(output, s); err != nil {
				return err
			}
			c.Logger.Info("Exported surface", "stage", stage, "triangles", len(s.Faces), "file", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&stage, "stage", "s", pipeline.StageSkin, "stage to export")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <stage>.stl or <stage>.svg)")
	cmd.Flags().IntVar(&size, "size", defaultSVGSize, "SVG size in pixels")
	return cmd
}

func writeContours(res *pipeline.Results, output string, size int) error {
	cs, err := pipeline.Get[pipeline.Contours](res, pipeline.StageContours)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := surfop.WriteContoursSVG(f, cs.Contours, cs.Plane, size); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
