package cmd_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripline/dripline/pkg/cmd"
	"github.com/dripline/dripline/pkg/persistence/file"
)

func TestNewPersistence_FilePaths(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	for _, url := range []string{t.TempDir(), "file://" + t.TempDir()} {
		p := cmd.NewPersistence(ctx, logger, url)
		require.NotNil(t, p)
		assert.IsType(t, &file.Persistence{}, p)
		assert.NoError(t, p.HealthCheck(ctx))
		assert.NoError(t, p.Close(ctx))
	}
}
