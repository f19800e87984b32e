package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skerrors "github.com/AltairaLabs/SightKit/errors"
)

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 200, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

func TestSource_Capture(t *testing.T) {
	pic := testJPEG(t, 64, 48)
	var got PictureOptions
	cam := CameraFunc(func(_ context.Context, opts PictureOptions) ([]byte, error) {
		got = opts
		return pic, nil
	})

	src := NewSource(cam, Options{Quality: 0.5, SuppressShutter: true})
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return fixed }

	f1, err := src.Capture(context.Background())
	require.NoError(t, err)
	f2, err := src.Capture(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PictureOptions{Quality: 0.5, ShutterSound: false}, got)
	assert.Equal(t, uint64(1), f1.Seq)
	assert.Equal(t, uint64(2), f2.Seq)
	assert.Equal(t, fixed, f1.CapturedAt)
	assert.Equal(t, 64, f1.Width)
	assert.Equal(t, 48, f1.Height)
	assert.Equal(t, pic, f1.Data)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pic), f1.Base64())
}

func TestSource_CaptureDownscales(t *testing.T) {
	pic := testJPEG(t, 200, 100)
	cam := CameraFunc(func(context.Context, PictureOptions) ([]byte, error) { return pic, nil })

	src := NewSource(cam, Options{Quality: 0.5, MaxWidth: 100})
	f, err := src.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, f.Width)
	assert.Equal(t, 50, f.Height)
}

func TestSource_DefaultQuality(t *testing.T) {
	src := NewSource(nil, Options{Quality: 3})
	assert.InDelta(t, 0.5, src.Options().Quality, 1e-9)
}

func TestSource_Unavailable(t *testing.T) {
	src := NewSource(nil, Options{})
	_, err := src.Capture(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCameraUnavailable)
	assert.True(t, skerrors.IsKind(err, skerrors.KindCapture))

	pic := testJPEG(t, 8, 8)
	src = NewSource(CameraFunc(func(context.Context, PictureOptions) ([]byte, error) { return pic, nil }), Options{})
	_, err = src.Capture(context.Background())
	require.NoError(t, err)

	src.Release()
	_, err = src.Capture(context.Background())
	assert.ErrorIs(t, err, ErrCameraUnavailable)
}

func TestSource_Busy(t *testing.T) {
	pic := testJPEG(t, 8, 8)
	entered := make(chan struct{})
	release := make(chan struct{})
	cam := CameraFunc(func(context.Context, PictureOptions) ([]byte, error) {
		close(entered)
		<-release
		return pic, nil
	})
	src := NewSource(cam, Options{})

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = src.Capture(context.Background())
	}()

	<-entered
	_, err := src.Capture(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCameraBusy)
	assert.True(t, skerrors.IsKind(err, skerrors.KindCapture))

	close(release)
	wg.Wait()
	assert.NoError(t, firstErr)
}

func TestSource_CameraError(t *testing.T) {
	boom := errors.New("hardware fault")
	src := NewSource(CameraFunc(func(context.Context, PictureOptions) ([]byte, error) { return nil, boom }), Options{})

	_, err := src.Capture(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, skerrors.IsKind(err, skerrors.KindCapture))
}

func TestSource_UndecodablePicture(t *testing.T) {
	src := NewSource(CameraFunc(func(context.Context, PictureOptions) ([]byte, error) {
		return []byte("garbage"), nil
	}), Options{})

	_, err := src.Capture(context.Background())
	require.Error(t, err)
	assert.True(t, skerrors.IsKind(err, skerrors.KindCapture))
}

func TestDirCamera(t *testing.T) {
	dir := t.TempDir()
	a := testJPEG(t, 4, 4)
	b := testJPEG(t, 6, 6)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.jpg"), b, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.JPG"), a, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o700))

	cam, err := NewDirCamera(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cam.Len())

	ctx := context.Background()
	for _, want := range [][]byte{a, b, a} {
		got, err := cam.TakePicture(ctx, PictureOptions{})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = cam.TakePicture(cancelled, PictureOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirCamera_Empty(t *testing.T) {
	_, err := NewDirCamera(t.TempDir())
	assert.ErrorIs(t, err, ErrCameraUnavailable)

	_, err = NewDirCamera(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
