// Package anim drives the camera orbit animation. Every tick rotates the shared
// camera and then requests a redraw, either single stepped by a host frame
// clock through Tick or self timed through Run.
package anim

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by Tick once the driver has stopped.
var ErrStopped = errors.New("animation stopped")

// State is the lifecycle state of a Driver.
type State int

const (
	Running State = iota
	// Stopped is terminal.
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Orbiter is the camera motion a Driver applies each frame.
// It is implemented by *scene.Camera.
type Orbiter interface {
	Azimuth(deg float64)
}

// Redrawer renders frame after the camera has been moved for it.
type Redrawer interface {
	Redraw(ctx context.Context, frame int) error
}

// RedrawFunc adapts a function to the Redrawer interface.
type RedrawFunc func(ctx context.Context, frame int) error

// Redraw calls f(ctx, frame).
func (f RedrawFunc) Redraw(ctx context.Context, frame int) error { return f(ctx, frame) }

// Config configures a Driver.
type Config struct {
	// Frames is the number of frames to draw. Zero means unbounded.
	Frames int
	// Step is the azimuth increment per frame in degrees.
	Step float64
	// Delay between frames when driven by Run. Zero runs frames back to back.
	Delay time.Duration
}

// Driver rotates a camera and redraws once per frame.
type Driver struct {
	cam Orbiter
	r   Redrawer
	cfg Config

	mu    sync.Mutex
	frame int
	state State
	stop  chan struct{}
}

// New returns a running driver.
func New(cam Orbiter, r Redrawer, cfg Config) (*Driver, error) {
	switch {
	case cam == nil:
		return nil, errors.New("nil camera")
	case r == nil:
		return nil, errors.New("nil redrawer")
	case cfg.Frames < 0:
		return nil, errors.New("negative frame count")
	case cfg.Delay < 0:
		return nil, errors.New("negative frame delay")
	}
	return &Driver{cam: cam, r: r, cfg: cfg, stop: make(chan struct{})}, nil
}

// Tick advances one frame: the camera is rotated by the configured step and
// then redrawn. A redraw error stops the driver and is returned. Once the frame
// budget is spent the driver stops.
func (d *Driver) Tick(ctx context.Context) error {
	d.mu.Lock()
	if d.state == Stopped {
		d.mu.Unlock()
		return ErrStopped
	}
	d.cam.Azimuth(d.cfg.Step)
	d.frame++
	frame := d.frame
	d.mu.Unlock()

	err := d.r.Redraw(ctx, frame)
	if err != nil || (d.cfg.Frames > 0 && frame >= d.cfg.Frames) {
		d.Stop()
	}
	return err
}

// Run ticks until the frame budget is spent, Stop is called, a redraw fails or
// ctx is canceled. Reaching the budget or being stopped returns nil.
func (d *Driver) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if d.cfg.Delay > 0 {
		ticker := time.NewTicker(d.cfg.Delay)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-d.stop:
				return nil
			case <-tick:
			}
			// A tick may win the race against cancellation.
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		err := d.Tick(ctx)
		if errors.Is(err, ErrStopped) {
			return nil
		} else if err != nil {
			return err
		}
		if d.State() == Stopped {
			return nil
		}
	}
}

// Stop transitions the driver to Stopped regardless of remaining frames.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Stopped {
		d.state = Stopped
		close(d.stop)
	}
}

// Frame returns the number of frames drawn so far.
func (d *Driver) Frame() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frame
}

// State returns the current state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
