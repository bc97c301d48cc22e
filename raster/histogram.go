package raster

import (
	"errors"
	"fmt"
	"io"

	"github.com/soypat/volview"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// HistogramConfig configures WriteHistogram.
type HistogramConfig struct {
	Title  string
	Bins   int
	Width  vg.Length
	Height vg.Length
	// Format is an image format supported by gonum/plot such as "png" or "svg".
	Format string
}

// WriteHistogram plots the distribution of the scalars of s.
func WriteHistogram(w io.Writer, s *volview.Surface, cfg HistogramConfig) error {
	if s == nil || len(s.Scalars) == 0 {
		return errors.New("surface has no scalars")
	}
	if cfg.Bins <= 0 {
		cfg.Bins = 32
	}
	if cfg.Width <= 0 {
		cfg.Width = 6 * vg.Inch
	}
	if cfg.Height <= 0 {
		cfg.Height = 4 * vg.Inch
	}
	if cfg.Format == "" {
		cfg.Format = "png"
	}
	p := plot.New()
	p.Title.Text = cfg.Title
	p.X.Label.Text = "scalar"
	p.Y.Label.Text = "vertices"
	h, err := plotter.NewHist(plotter.Values(s.Scalars), cfg.Bins)
	if err != nil {
		return err
	}
	p.Add(h)
	wt, err := p.WriterTo(cfg.Width, cfg.Height, cfg.Format)
	if err != nil {
		return fmt.Errorf("histogram format %q: %w", cfg.Format, err)
	}
	_, err = wt.WriteTo(w)
	return err
}
