// Package capture produces encoded still frames from a camera on demand.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	skerrors "github.com/AltairaLabs/SightKit/errors"
	"github.com/AltairaLabs/SightKit/media"
)

const component = "capture"

var (
	// ErrCameraUnavailable is returned when there is no usable camera.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrCameraBusy is returned when the camera is still serving a capture.
	ErrCameraBusy = errors.New("camera busy")
)

// PictureOptions are passed to the camera on every capture.
type PictureOptions struct {
	// Quality is the compression ratio in (0, 1].
	Quality      float64
	ShutterSound bool
}

// Camera is the platform capture primitive. Each call triggers the physical
// shutter and returns one encoded image.
type Camera interface {
	TakePicture(ctx context.Context, opts PictureOptions) ([]byte, error)
}

// CameraFunc adapts a function to Camera.
type CameraFunc func(ctx context.Context, opts PictureOptions) ([]byte, error)

// TakePicture calls f.
func (f CameraFunc) TakePicture(ctx context.Context, opts PictureOptions) ([]byte, error) {
	return f(ctx, opts)
}

// Options configure a Source. They are fixed at construction.
type Options struct {
	Quality         float64
	SuppressShutter bool
	MaxWidth        int
	MaxHeight       int
}

// Frame is one captured, encoded still. Frames are never modified.
type Frame struct {
	Seq        uint64
	CapturedAt time.Time
	Width      int
	Height     int
	Data       []byte
}

// Base64 returns the frame payload as standard base64 text.
func (f Frame) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

// Source wraps a Camera and hands out one frame per Capture call. It keeps
// no buffer.
type Source struct {
	mu     sync.Mutex
	camera Camera
	opts   Options
	busy   atomic.Bool
	seq    atomic.Uint64
	now    func() time.Time
}

// NewSource creates a Source. A nil camera yields a Source whose captures
// fail with ErrCameraUnavailable.
func NewSource(camera Camera, opts Options) *Source {
	if opts.Quality <= 0 || opts.Quality > 1 {
		opts.Quality = 0.5
	}
	return &Source{camera: camera, opts: opts, now: time.Now}
}

// Options returns the construction options.
func (s *Source) Options() Options {
	return s.opts
}

// Release drops the camera handle. Later captures fail with
// ErrCameraUnavailable.
func (s *Source) Release() {
	s.mu.Lock()
	s.camera = nil
	s.mu.Unlock()
}

// Capture takes one picture. It fails with a capture error when the camera is
// unavailable or when a previous capture on this source is still running.
func (s *Source) Capture(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	cam := s.camera
	s.mu.Unlock()
	if cam == nil {
		return Frame{}, skerrors.Capture(component, "Capture", ErrCameraUnavailable)
	}
	if !s.busy.CompareAndSwap(false, true) {
		return Frame{}, skerrors.Capture(component, "Capture", ErrCameraBusy)
	}
	defer s.busy.Store(false)

	data, err := cam.TakePicture(ctx, PictureOptions{
		Quality:      s.opts.Quality,
		ShutterSound: !s.opts.SuppressShutter,
	})
	if err != nil {
		return Frame{}, skerrors.Capture(component, "TakePicture", err)
	}

	bounded, err := media.BoundImage(data, media.Bounds{
		MaxWidth:  s.opts.MaxWidth,
		MaxHeight: s.opts.MaxHeight,
		Quality:   media.QualityPercent(s.opts.Quality),
	})
	if err != nil {
		return Frame{}, skerrors.Capture(component, "BoundImage", err)
	}

	return Frame{
		Seq:        s.seq.Add(1),
		CapturedAt: s.now(),
		Width:      bounded.Width,
		Height:     bounded.Height,
		Data:       bounded.Data,
	}, nil
}
