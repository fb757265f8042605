package qr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionURL(t *testing.T) {
	assert.Equal(t, "https://clawnema.example/session/abc", SessionURL("https://clawnema.example/", "abc"))
}

func TestEncodeSession_ReturnsPNG(t *testing.T) {
	png, err := EncodeSession("http://localhost:3000", "5f0c6c3e-8a39-4d0e-9c43-9b8f0c1d2e3f", 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))
}
