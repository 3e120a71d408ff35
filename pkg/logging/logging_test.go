package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestFileLogger_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sync.log")

	f, logger, err := FileLogger(logrus.InfoLevel, path)
	require.NoError(t, err)
	require.NotNil(t, f)
	t.Cleanup(func() { _ = f.Close() })

	logger.WithField("run_id", "r1").Info("hello")
	logger.Debug("dropped")

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(b, &line))
	require.Equal(t, "hello", line["msg"])
	require.Equal(t, "r1", line["run_id"])
}

func TestFileLogger_NoPath(t *testing.T) {
	f, logger, err := FileLogger(logrus.WarnLevel, "")
	require.NoError(t, err)
	require.Nil(t, f)
	require.Equal(t, logrus.WarnLevel, logger.GetLevel())
}

func TestNop(t *testing.T) {
	require.False(t, Nop().Logger.IsLevelEnabled(logrus.ErrorLevel))
}
