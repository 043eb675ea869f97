package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-sync-service/internal/logging"
	"github-sync-service/internal/model"
)

type credentials struct {
	User     string
	Password string `masq:"secret"`
}

func TestNew(t *testing.T) {
	t.Run("json masks tagged fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := logging.New(&buf, "json", "info")
		require.NoError(t, err)

		logger.Info("connecting", "creds", credentials{User: "app", Password: "hunter2"})

		assert.Contains(t, buf.String(), "app")
		assert.NotContains(t, buf.String(), "hunter2")
	})

	t.Run("access tokens never render", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := logging.New(&buf, "json", "debug")
		require.NoError(t, err)

		logger.Debug("calling github", "token", model.AccessToken("ghp_abcdef"))

		assert.NotContains(t, buf.String(), "ghp_abcdef")
	})

	t.Run("text format respects the level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := logging.New(&buf, "text", "warn")
		require.NoError(t, err)

		logger.Info("hidden")
		logger.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("invalid format returns error", func(t *testing.T) {
		_, err := logging.New(&bytes.Buffer{}, "xml", "info")
		assert.Error(t, err)
	})

	t.Run("invalid level returns error", func(t *testing.T) {
		_, err := logging.New(&bytes.Buffer{}, "json", "verbose")
		assert.Error(t, err)
	})
}

func TestFrom(t *testing.T) {
	assert.Equal(t, slog.Default(), logging.From(context.Background()))

	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	ctx := logging.With(context.Background(), logger)
	assert.Same(t, logger, logging.From(ctx))
}
