package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerLevelAndFormat(t *testing.T) {
	require.NoError(t, InitLogger("debug", "text", "stdout"))
	assert.Equal(t, logrus.DebugLevel, Logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, Logger.Formatter)

	require.NoError(t, InitLogger("bogus", "json", "stderr"))
	assert.Equal(t, logrus.InfoLevel, Logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, Logger.Formatter)
}

func TestInitLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	require.NoError(t, InitLogger("info", "json", path))
	Logger.Info("hello")
	assert.FileExists(t, path)
}

func TestMaskUsername(t *testing.T) {
	assert.Equal(t, "", MaskUsername(""))
	assert.Equal(t, "**", MaskUsername("ab"))
	assert.Equal(t, "dr****", MaskUsername("driver"))
	assert.Equal(t, "jo**@example.com", MaskUsername("john@example.com"))
	assert.Equal(t, "司机**", MaskUsername("司机老王"))
}

func TestAttachRunID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, InitLogger("info", "json", path))
	AttachRunID("run-42")

	Logger.Info("stamped")
	WithField("run_id", "explicit").Info("kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id":"run-42"`)
	assert.Contains(t, string(data), `"run_id":"explicit"`)
}
