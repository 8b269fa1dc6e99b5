package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sourcer/config"
)

func TestRotatingWriter_RotatesPastLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	rw, err := NewRotatingWriter(path, 16)
	require.NoError(t, err)
	defer rw.Close()

	_, err = rw.Write([]byte("0123456789"))
	require.NoError(t, err)
	_, err = rw.Write([]byte("abcdefghij"))
	require.NoError(t, err)

	backup, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdefghij", string(backup))

	_, err = rw.Write([]byte("next"))
	require.NoError(t, err)
	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "next", string(current))
}

func TestRotatingWriter_TruncatesOversizedOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 64)), 0644))

	rw, err := NewRotatingWriter(path, 32)
	require.NoError(t, err)
	defer rw.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestSetup_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sourcer.log")
	rw, err := Setup(config.LogConfig{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)
	require.NotNil(t, rw)
	defer func() {
		zap.ReplaceGlobals(zap.NewNop())
		rw.Close()
	}()

	zap.L().Info("hello", zap.String("component", "test"))
	_ = zap.L().Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestSetup_BadLevel(t *testing.T) {
	_, err := Setup(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
