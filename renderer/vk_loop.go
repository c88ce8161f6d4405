package renderer

import (
	"context"
	"time"

	"github.com/veandco/go-sdl2/sdl"
)

// FrameHandler is called after every update with the frame number.
type FrameHandler func(frame int, r *Raytracer) error

// RunFrames updates the scene n times with the configured frame delta. It stops early when ctx is done or fh
// fails; fh may be nil.
func (r *Raytracer) RunFrames(ctx context.Context, n int, fh FrameHandler) (stats FrameStats, err error) {
	t0 := time.Now()
	defer func() {
		stats.Duration = time.Since(t0)
		stats.Elapsed = r.Elapsed()
	}()
	for stats.Frames < n {
		if err = ctx.Err(); err != nil {
			return stats, err
		}
		if err = r.frame(stats.Frames, fh); err != nil {
			return stats, err
		}
		stats.Frames++
	}
	return stats, nil
}

func (r *Raytracer) frame(i int, fh FrameHandler) error {
	if err := r.Update(r.cfg.FrameDelta); err != nil {
		return err
	}
	if fh != nil {
		return fh(i, r)
	}
	return nil
}

// minimizedPoll is how long the loop sleeps between event polls while the window is minimized.
const minimizedPoll = 50

// Events is the part of a window the loop reads. *common.Window implements it.
type Events interface {
	PumpEvents()
	State() (closed bool, minimized bool)
}

// Loop is the event loop for a window: it updates the scene every iteration until the window is closed (close
// button or ESC) or maxFrames frames ran. maxFrames <= 0 means no limit. Nothing is updated while the window is
// minimized. Like RunFrames it returns ctx.Err() when ctx is done first.
func (r *Raytracer) Loop(ctx context.Context, win Events, maxFrames int, fh FrameHandler) (stats FrameStats, err error) {
	t0 := time.Now()
	defer func() {
		stats.Duration = time.Since(t0)
		stats.Elapsed = r.Elapsed()
		logger.Noticef("elapsed: %v, rough avg fps: %.1f fps", stats.Duration, stats.FPS())
	}()
	for maxFrames <= 0 || stats.Frames < maxFrames {
		if err = ctx.Err(); err != nil {
			return stats, err
		}
		win.PumpEvents()
		closed, minimized := win.State()
		if closed {
			return stats, nil
		}
		if minimized {
			sdl.Delay(minimizedPoll)
			continue
		}
		if err = r.frame(stats.Frames, fh); err != nil {
			return stats, err
		}
		stats.Frames++
	}
	return stats, nil
}
