package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soypat/volview/anim"
	"github.com/soypat/volview/pipeline"
	"github.com/soypat/volview/raster"
	"github.com/soypat/volview/scene"
)

// renderOpts holds the command-line flags for the render command. Zero values
// keep the configured setting.
type renderOpts struct {
	output string // directory receiving the frames
	frames int    // number of orbit frames
	width  int    // window width in pixels
	height int    // window height in pixels
	still  bool   // draw only the initial frame
	loop   bool   // orbit until interrupted
}

func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{output: "frames"}
	cmd := &cobra.Command{
		Use:   "render [volume.slc]",
		Short: "Render the four view scene and its orbit animation to PNG frames",
		Long: `Render draws the initial frame and then orbits the camera, writing PNG
frames. An orbit of zero frames, set by --loop or by frames = 0 in the
configuration, runs until interrupted.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(firstArg(args))
			if err != nil {
				return err
			}
			switch {
			case opts.loop && (opts.still || opts.frames > 0):
				return errors.New("--loop excludes --still and --frames")
			case opts.loop:
				cfg.Anim.Frames = 0
			case opts.frames > 0:
				cfg.Anim.Frames = opts.frames
			}
			if opts.width > 0 {
				cfg.Window.Width = opts.width
			}
			if opts.height > 0 {
				cfg.Window.Height = opts.height
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			_, res, err := c.run(ctx, cfg, pipeline.StageScene)
			if err != nil {
				return err
			}
			sc, err := pipeline.Get[*scene.Scene](res, pipeline.StageScene)
			if err != nil {
				return err
			}
			backend, err := raster.NewBackend(cfg.Window.Width, cfg.Window.Height, cfg.Window.Supersample)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(opts.output, 0o755); err != nil {
				return err
			}
			seq := &raster.Sequence{Backend: backend, Scene: sc, Dir: opts.output, Every: cfg.Anim.Every}

			prog := newProgress(c.Logger)
			if err := seq.Redraw(ctx, 0); err != nil {
				return fmt.Errorf("frame 0: %w", err)
			}
			if opts.still {
				prog.done("Rendered still frame")
				return nil
			}
			drv, err := anim.New(sc.Camera, seq, anim.Config{
				Frames: cfg.Anim.Frames,
				Step:   cfg.Anim.Step,
				Delay:  cfg.Anim.Delay.Duration,
			})
			if err != nil {
				return err
			}
			err = drv.Run(ctx)
			c.Logger.Debug("animation ended", "frame", drv.Frame(), "state", drv.State())
			if cfg.Anim.Frames == 0 && errors.Is(err, context.Canceled) {
				// Interrupting is the only way to end an unbounded orbit.
				err = nil
			}
			if err != nil && !errors.Is(err, anim.ErrStopped) {
				return err
			}
			prog.done(fmt.Sprintf("Orbit of %d frames written to %s", drv.Frame(), opts.output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "output directory for PNG frames")
	cmd.Flags().IntVar(&opts.frames, "frames", 0, "number of orbit frames (default from config)")
	cmd.Flags().IntVar(&opts.width, "width", 0, "window width in pixels (default from config)")
	cmd.Flags().IntVar(&opts.height, "height", 0, "window height in pixels (default from config)")
	cmd.Flags().BoolVar(&opts.still, "still", false, "render only the initial frame")
	cmd.Flags().BoolVar(&opts.loop, "loop", false, "orbit until interrupted")
	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
