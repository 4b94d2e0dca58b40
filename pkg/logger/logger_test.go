package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestInitLevelParsing(t *testing.T) {
	require.NoError(t, Init(Config{Level: "debug"}))
	require.Equal(t, logrus.DebugLevel, logrus.StandardLogger().GetLevel())

	// An unknown level falls back to info rather than failing startup.
	require.NoError(t, Init(Config{Level: "shouting"}))
	require.Equal(t, logrus.InfoLevel, logrus.StandardLogger().GetLevel())
}

func TestInitCreatesLogDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "poolbot.log")
	require.NoError(t, Init(Config{Level: "warn", OutputFile: path, MaxSize: 1}))

	logrus.Warn("rotation smoke line")

	// lumberjack creates the file lazily on first write.
	_, err := os.Stat(path)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "rotation smoke line")
}
