package raster

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/volview/scene"
)

// Sequence renders a scene to numbered PNG files, one per animation frame.
// It implements anim.Redrawer.
type Sequence struct {
	Backend *Backend
	Scene   *scene.Scene
	// Dir receives the frames.
	Dir string
	// Pattern is a fmt pattern taking the frame number, "frame%04d.png" if empty.
	Pattern string
	// Every saves one of every Every frames. Values below 2 save all frames.
	Every int
}

// Redraw renders and saves frame.
func (s *Sequence) Redraw(ctx context.Context, frame int) error {
	if s.Backend == nil || s.Scene == nil {
		return errors.New("sequence missing backend or scene")
	}
	if s.Every > 1 && frame%s.Every != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	pattern := s.Pattern
	if pattern == "" {
		pattern = "frame%04d.png"
	}
	img := s.Backend.Render(s.Scene)
	return fauxgl.SavePNG(filepath.Join(s.Dir, fmt.Sprintf(pattern, frame)), img)
}
