package file_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence"
	"github.com/dripline/dripline/pkg/persistence/file"
)

func testAutomation(id, slug string) *models.Automation {
	return &models.Automation{
		ID:          id,
		Name:        "Onboarding",
		Slug:        slug,
		TriggerType: models.TriggerTypeContactCreated,
		FlowDefinition: models.FlowDefinition{
			Nodes: []*models.Node{
				{
					ID:   "trigger",
					Type: models.NodeTypeTrigger,
					Data: map[string]any{"trigger_type": "contact.created"},
				},
			},
			Edges: []*models.Edge{},
		},
		Steps: []*models.Step{
			{Order: 1, Type: models.StepTypeEmail, TemplateSlug: "welcome", WaitSeconds: 3600},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())

	automation := testAutomation("auto-1", "onboarding")
	require.NoError(t, store.SaveAutomation(ctx, automation))

	loaded, err := store.AutomationByID(ctx, "auto-1")
	require.NoError(t, err)

	assert.Equal(t, automation.Name, loaded.Name)
	assert.Equal(t, automation.Slug, loaded.Slug)
	assert.Equal(t, automation.TriggerType, loaded.TriggerType)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, "welcome", loaded.Steps[0].TemplateSlug)
	assert.Equal(t, int64(3600), loaded.Steps[0].WaitSeconds)
	require.Len(t, loaded.FlowDefinition.Nodes, 1)
	assert.Equal(t, models.NodeTypeTrigger, loaded.FlowDefinition.Nodes[0].Type)
}

func TestFileURLPrefix(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	store := file.NewPersistence("file://" + dir)

	require.NoError(t, store.SaveAutomation(ctx, testAutomation("auto-1", "onboarding")))
	require.NoError(t, store.HealthCheck(ctx))

	_, err := store.AutomationByID(ctx, "auto-1")
	assert.NoError(t, err)
}

func TestAutomations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())

	// Empty store lists cleanly before any save created the directory.
	automations, err := store.Automations(ctx)
	require.NoError(t, err)
	assert.Empty(t, automations)

	require.NoError(t, store.SaveAutomation(ctx, testAutomation("auto-1", "onboarding")))
	require.NoError(t, store.SaveAutomation(ctx, testAutomation("auto-2", "winback")))

	automations, err = store.Automations(ctx)
	require.NoError(t, err)
	assert.Len(t, automations, 2)
}

func TestAutomationBySlug(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())

	require.NoError(t, store.SaveAutomation(ctx, testAutomation("auto-1", "onboarding")))

	found, err := store.AutomationBySlug(ctx, "onboarding")
	require.NoError(t, err)
	assert.Equal(t, "auto-1", found.ID)

	_, err = store.AutomationBySlug(ctx, "missing")
	assert.True(t, persistence.IsAutomationNotFound(err))
}

func TestSlugUniqueness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())

	require.NoError(t, store.SaveAutomation(ctx, testAutomation("auto-1", "onboarding")))

	// Another automation cannot claim the slug.
	err := store.SaveAutomation(ctx, testAutomation("auto-2", "onboarding"))
	assert.True(t, persistence.IsSlugTaken(err))

	// The owner can re-save under its own slug.
	assert.NoError(t, store.SaveAutomation(ctx, testAutomation("auto-1", "onboarding")))
}

func TestDeleteAutomation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())

	require.NoError(t, store.SaveAutomation(ctx, testAutomation("auto-1", "onboarding")))
	require.NoError(t, store.DeleteAutomation(ctx, "auto-1"))

	_, err := store.AutomationByID(ctx, "auto-1")
	assert.True(t, persistence.IsAutomationNotFound(err))

	err = store.DeleteAutomation(ctx, "auto-1")
	assert.True(t, persistence.IsAutomationNotFound(err))
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	assert.NoError(t, file.NewPersistence(t.TempDir()).HealthCheck(context.Background()))
	assert.Error(t, file.NewPersistence("/nonexistent/dripline").HealthCheck(context.Background()))
}
