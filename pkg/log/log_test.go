package log

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	originalLogger := logger
	defer func() {
		logger = originalLogger
	}()

	t.Run("text format", func(t *testing.T) {
		err := Init(Config{Level: "warn", Format: "text", Output: "stdout"})
		require.NoError(t, err)

		assert.Equal(t, logrus.WarnLevel, logger.Level)
		_, ok := logger.Formatter.(*logrus.TextFormatter)
		assert.True(t, ok)
	})

	t.Run("json format", func(t *testing.T) {
		err := Init(Config{Level: "debug", Format: "json", Output: "stdout"})
		require.NoError(t, err)

		assert.Equal(t, logrus.DebugLevel, logger.Level)
		_, ok := logger.Formatter.(*logrus.JSONFormatter)
		assert.True(t, ok)
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		err := Init(Config{Level: "loud", Format: "json"})
		require.NoError(t, err)
		assert.Equal(t, logrus.InfoLevel, logger.Level)
	})

	t.Run("file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "nested", "storefront.log")

		err := Init(Config{
			Level:      "info",
			Format:     "json",
			Output:     "file",
			Filename:   logFile,
			MaxSize:    1,
			MaxAge:     1,
			MaxBackups: 1,
		})
		require.NoError(t, err)

		Info("written to file")

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "written to file")
	})
}

func TestFields(t *testing.T) {
	originalLogger := logger
	defer func() {
		logger = originalLogger
	}()

	require.NoError(t, Init(Config{Level: "info", Format: "json"}))
	var buf bytes.Buffer
	SetOutput(&buf)

	WithFields(logrus.Fields{"order_id": "ord_1", "lines": 2}).Info("order committed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "order committed", entry["msg"])
	assert.Equal(t, "ord_1", entry["order_id"])
	assert.Equal(t, float64(2), entry["lines"])
}

func TestContextFields(t *testing.T) {
	originalLogger := logger
	defer func() {
		logger = originalLogger
	}()

	require.NoError(t, Init(Config{Level: "info", Format: "json"}))
	var buf bytes.Buffer
	SetOutput(&buf)

	ctx := NewContext(context.Background(), logrus.Fields{"request_id": "r-1"})
	ctx = NewContext(ctx, logrus.Fields{"user_id": "u_9999999999"})
	FromContext(ctx).Info("with context")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "r-1", entry["request_id"])
	assert.Equal(t, "u_9999999999", entry["user_id"])

	buf.Reset()
	FromContext(context.Background()).Info("bare")
	entry = map[string]interface{}{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, has := entry["request_id"]
	assert.False(t, has)
}

func TestLevelFiltering(t *testing.T) {
	originalLogger := logger
	defer func() {
		logger = originalLogger
	}()

	require.NoError(t, Init(Config{Level: "error", Format: "text"}))
	var buf bytes.Buffer
	SetOutput(&buf)

	Info("hidden")
	Warn("hidden too")
	Error("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
