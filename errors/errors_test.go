package errors_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skerrors "github.com/AltairaLabs/SightKit/errors"
)

func TestNew(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := skerrors.New(skerrors.KindTransport, "streaming", "Dial", cause)

	assert.Equal(t, skerrors.KindTransport, err.Kind)
	assert.Equal(t, "streaming", err.Component)
	assert.Equal(t, "Dial", err.Operation)
	assert.Equal(t, 0, err.StatusCode)
	assert.Nil(t, err.Details)
	assert.Equal(t, cause, err.Cause)
}

func TestError_Message(t *testing.T) {
	err := skerrors.Capture("capture", "TakePicture", fmt.Errorf("camera busy"))
	assert.Equal(t, "[capture] TakePicture capture: camera busy", err.Error())
}

func TestError_NoCause(t *testing.T) {
	err := skerrors.Protocol("detection", "Parse", nil)
	assert.Equal(t, "[detection] Parse protocol", err.Error())
}

func TestError_WithStatusCode(t *testing.T) {
	err := skerrors.Service("translate", "Translate", fmt.Errorf("bad gateway")).WithStatusCode(502)
	assert.Equal(t, "[translate] Translate service (status 502): bad gateway", err.Error())
}

func TestWithDetails(t *testing.T) {
	details := map[string]any{"attempt": 3}
	err := skerrors.Transport("streaming", "Send", io.EOF)
	result := err.WithDetails(details)

	assert.Same(t, err, result)
	assert.Equal(t, details, err.Details)
}

func TestUnwrap_ErrorsIs(t *testing.T) {
	err := skerrors.Transport("streaming", "Receive", io.ErrUnexpectedEOF)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))

	wrapped := fmt.Errorf("receive loop: %w", err)
	var ce *skerrors.ContextualError
	require.True(t, errors.As(wrapped, &ce))
	assert.Equal(t, "Receive", ce.Operation)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, skerrors.KindProtocol, skerrors.KindOf(skerrors.Protocol("detection", "Parse", nil)))
	assert.Equal(t, skerrors.Kind(""), skerrors.KindOf(io.EOF))
	assert.Equal(t, skerrors.Kind(""), skerrors.KindOf(nil))
}

func TestIsKind_Nested(t *testing.T) {
	inner := skerrors.Capture("capture", "TakePicture", io.EOF)
	outer := skerrors.Transport("streaming", "Stream", inner)

	assert.True(t, skerrors.IsKind(outer, skerrors.KindTransport))
	assert.True(t, skerrors.IsKind(outer, skerrors.KindCapture))
	assert.False(t, skerrors.IsKind(outer, skerrors.KindService))
	assert.False(t, skerrors.IsKind(io.EOF, skerrors.KindCapture))
}
