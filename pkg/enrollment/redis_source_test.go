package enrollment_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripline/dripline/pkg/enrollment"
	"github.com/dripline/dripline/pkg/models"
)

func setupRedisSource(t *testing.T) (*redis.Client, *enrollment.RedisSource) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	return client, enrollment.NewRedisSource(client)
}

func TestRedisSource_Counts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, source := setupRedisSource(t)

	require.NoError(t, client.Set(ctx, "dripline:automation:auto-1:total_active", "10", 0).Err())
	require.NoError(t, client.HSet(ctx, "dripline:automation:auto-1:step_counts", "1", "7", "2", "2").Err())
	require.NoError(t, client.HSet(ctx, "dripline:automation:auto-1:steps", "2", "followup", "1", "welcome").Err())
	require.NoError(t, client.RPush(ctx, "dripline:automation:auto-1:step:1:contacts",
		`{"email":"a@example.com","name":"Ada","type":"customer"}`,
		`{"email":"b@example.com"}`,
	).Err())

	counts, err := source.Counts(ctx, "auto-1")
	require.NoError(t, err)

	assert.Equal(t, 10, counts.TotalActive)

	require.Len(t, counts.StepCounts, 2)
	assert.Equal(t, 7, counts.StepCounts[1].Count)
	assert.Equal(t, 2, counts.StepCounts[2].Count)

	require.Len(t, counts.StepCounts[1].Contacts, 2)
	assert.Equal(t, "a@example.com", counts.StepCounts[1].Contacts[0].Email)
	assert.Equal(t, "Ada", counts.StepCounts[1].Contacts[0].Name)

	// Step summaries come back ordered regardless of hash field order.
	require.Len(t, counts.Steps, 2)
	assert.Equal(t, models.StepSummary{StepOrder: 1, TemplateSlug: "welcome"}, counts.Steps[0])
	assert.Equal(t, models.StepSummary{StepOrder: 2, TemplateSlug: "followup"}, counts.Steps[1])
}

func TestRedisSource_MissingKeysYieldEmptySnapshot(t *testing.T) {
	t.Parallel()

	_, source := setupRedisSource(t)

	counts, err := source.Counts(context.Background(), "unknown")
	require.NoError(t, err)

	assert.Zero(t, counts.TotalActive)
	assert.Empty(t, counts.StepCounts)
	assert.Empty(t, counts.Steps)
}

func TestRedisSource_ContactSampleLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, source := setupRedisSource(t)

	require.NoError(t, client.HSet(ctx, "dripline:automation:auto-1:step_counts", "1", "25").Err())

	for i := 0; i < 25; i++ {
		require.NoError(t, client.RPush(ctx, "dripline:automation:auto-1:step:1:contacts", `{"email":"x@example.com"}`).Err())
	}

	counts, err := source.Counts(ctx, "auto-1")
	require.NoError(t, err)

	assert.Equal(t, 25, counts.StepCounts[1].Count)
	assert.Len(t, counts.StepCounts[1].Contacts, 10)
}

func TestRedisSource_MalformedData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, source := setupRedisSource(t)

	require.NoError(t, client.Set(ctx, "dripline:automation:auto-1:total_active", "lots", 0).Err())

	_, err := source.Counts(ctx, "auto-1")
	assert.ErrorContains(t, err, "malformed active total")

	require.NoError(t, client.Set(ctx, "dripline:automation:auto-1:total_active", "10", 0).Err())
	require.NoError(t, client.HSet(ctx, "dripline:automation:auto-1:step_counts", "1", "7").Err())
	require.NoError(t, client.RPush(ctx, "dripline:automation:auto-1:step:1:contacts", "not json").Err())

	_, err = source.Counts(ctx, "auto-1")
	assert.ErrorContains(t, err, "malformed contact sample")
}
