package logging

import (
	"os"
	"path/filepath"
	"testing"

	"slotnik/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	logger, closer, err := New(config.LoggingConfig{}, config.AppConfig{Name: "slotnik"})
	assert.NoError(t, err)
	assert.Nil(t, closer)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestNew_Level(t *testing.T) {
	logger, _, err := New(config.LoggingConfig{Level: "debug"}, config.AppConfig{})
	assert.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, closer, err := New(config.LoggingConfig{Output: "file", FilePath: path}, config.AppConfig{Name: "slotnik"})
	assert.NoError(t, err)
	assert.NotNil(t, closer)
	defer closer.Close()

	logger.Info().Str("component", "test").Msg("hello")

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestNew_FileOutputRequiresPath(t *testing.T) {
	_, _, err := New(config.LoggingConfig{Output: "file"}, config.AppConfig{})
	assert.Error(t, err)
}
