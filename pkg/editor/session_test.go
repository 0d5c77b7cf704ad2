package editor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripline/dripline/pkg/compiler"
	"github.com/dripline/dripline/pkg/editor"
	"github.com/dripline/dripline/pkg/enrollment"
	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence/file"
	"github.com/dripline/dripline/pkg/services"
	"github.com/dripline/dripline/pkg/templates"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testService(t *testing.T) *services.Automation {
	t.Helper()

	return services.NewAutomation(file.NewPersistence(t.TempDir()), nil, testLogger())
}

func buildValidFlow(t *testing.T, session *editor.Session) string {
	t.Helper()

	trigger := session.TriggerNode()

	require.NoError(t, session.UpdateNodeData(trigger.ID, map[string]any{
		"trigger_type": "contact.created",
	}))

	email, err := session.AddNode(models.NodeTypeEmail, models.Position{Y: 160}, map[string]any{
		"template_slug": "welcome",
	})
	require.NoError(t, err)

	_, err = session.Connect(trigger.ID, email.ID, "", "")
	require.NoError(t, err)

	return email.ID
}

func TestSession_SaveNewAutomation(t *testing.T) {
	t.Parallel()

	session := editor.NewSession(testService(t), nil, nil, testLogger())
	buildValidFlow(t, session)
	session.UpdateSettings(compiler.Settings{Name: "Onboarding", Slug: "onboarding"})

	automation, err := session.Save(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, automation.ID)

	// The session adopts the assigned ID so the next save is an update.
	assert.Equal(t, automation.ID, session.Settings().ID)

	updated, err := session.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, automation.ID, updated.ID)
}

func TestSession_SaveWithoutSlugReopensSettings(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	service := services.NewAutomation(store, nil, testLogger())
	session := editor.NewSession(service, nil, nil, testLogger())
	buildValidFlow(t, session)

	session.UpdateSettings(compiler.Settings{Name: "Onboarding"})
	session.CloseSettings()

	_, err := session.Save(context.Background())
	assert.ErrorIs(t, err, services.ErrSlugRequired)

	// The settings panel is back and nothing reached the store.
	assert.True(t, session.SettingsOpen())

	stored, listErr := store.Automations(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, stored)

	// The graph survives the rejected save for a retry.
	assert.Len(t, session.Definition().Nodes, 2)

	session.UpdateSettings(compiler.Settings{Name: "Onboarding", Slug: "onboarding"})

	_, err = session.Save(context.Background())
	assert.NoError(t, err)
}

func TestSession_ValidationFailureKeepsSettingsClosed(t *testing.T) {
	t.Parallel()

	session := editor.NewSession(testService(t), nil, nil, testLogger())
	buildValidFlow(t, session)

	// Orphan email breaks strict validation for an active save.
	_, err := session.AddNode(models.NodeTypeEmail, models.Position{Y: 320}, nil)
	require.NoError(t, err)

	session.UpdateSettings(compiler.Settings{Name: "Onboarding", Slug: "onboarding", IsActive: true})

	_, err = session.Save(context.Background())

	var flowErr *services.FlowValidationError

	require.ErrorAs(t, err, &flowErr)
	assert.False(t, session.SettingsOpen())
}

// blockingPersistence parks SaveAutomation until released, so a test can hold
// a save in flight.
type blockingPersistence struct {
	*file.Persistence

	release chan struct{}
	entered chan struct{}
}

func (p *blockingPersistence) SaveAutomation(ctx context.Context, automation *models.Automation) error {
	close(p.entered)
	<-p.release

	return p.Persistence.SaveAutomation(ctx, automation)
}

func TestSession_ConcurrentSaveIgnored(t *testing.T) {
	t.Parallel()

	store := &blockingPersistence{
		Persistence: file.NewPersistence(t.TempDir()),
		release:     make(chan struct{}),
		entered:     make(chan struct{}),
	}
	service := services.NewAutomation(store, nil, testLogger())
	session := editor.NewSession(service, nil, nil, testLogger())
	buildValidFlow(t, session)
	session.UpdateSettings(compiler.Settings{Name: "Onboarding", Slug: "onboarding"})

	first := make(chan error, 1)

	go func() {
		_, err := session.Save(context.Background())
		first <- err
	}()

	select {
	case <-store.entered:
	case <-time.After(time.Second):
		t.Fatal("first save never reached persistence")
	}

	assert.True(t, session.Saving())

	_, err := session.Save(context.Background())
	assert.ErrorIs(t, err, editor.ErrSaveInFlight)

	close(store.release)
	require.NoError(t, <-first)
	assert.False(t, session.Saving())
}

func TestOpen_PrefersPersistedLayout(t *testing.T) {
	t.Parallel()

	automation := &models.Automation{
		ID:   "auto-1",
		Name: "Onboarding",
		Slug: "onboarding",
		FlowDefinition: models.FlowDefinition{
			Nodes: []*models.Node{
				{ID: "trigger", Type: models.NodeTypeTrigger, Data: map[string]any{}},
				{ID: "custom", Type: models.NodeTypeEmail, Position: models.Position{X: 42, Y: 7}, Data: map[string]any{}},
			},
			Edges: []*models.Edge{
				{ID: "e1", Source: "trigger", Target: "custom"},
			},
		},
	}

	session := editor.Open(automation, testService(t), nil, nil, testLogger())

	custom := session.NodeByID("custom")
	require.NotNil(t, custom)
	assert.InDelta(t, 42.0, custom.Position.X, 0.001)

	settings := session.Settings()
	assert.Equal(t, "auto-1", settings.ID)
	assert.Equal(t, "onboarding", settings.Slug)
}

func TestOpen_FallsBackToLinearLayout(t *testing.T) {
	t.Parallel()

	automation := &models.Automation{
		ID:          "auto-1",
		Name:        "Imported",
		Slug:        "imported",
		TriggerType: models.TriggerTypeContactCreated,
		Steps: []*models.Step{
			{Order: 1, Type: models.StepTypeEmail, TemplateSlug: "welcome"},
			{Order: 2, Type: models.StepTypeEmail, TemplateSlug: "followup", WaitSeconds: 3600},
		},
	}

	session := editor.Open(automation, testService(t), nil, nil, testLogger())

	require.NotNil(t, session.TriggerNode())
	assert.NotNil(t, session.NodeByID("email-1"))
	assert.NotNil(t, session.NodeByID("delay-2"))
	assert.NotNil(t, session.NodeByID("email-2"))
}

// gatedCounts serves one snapshot, then signals and parks until cancelled.
// Once the signal fires the single overlay apply has already completed, so
// the test can inspect node data without racing the poller.
type gatedCounts struct {
	counts      *models.EnrollmentCounts
	firstServed bool
	secondCall  chan struct{}
}

func (s *gatedCounts) Counts(ctx context.Context, _ string) (*models.EnrollmentCounts, error) {
	if !s.firstServed {
		s.firstServed = true

		return s.counts, nil
	}

	close(s.secondCall)
	<-ctx.Done()

	return nil, ctx.Err()
}

func TestSession_TrackingAttachesCounts(t *testing.T) {
	t.Parallel()

	source := &gatedCounts{
		counts: &models.EnrollmentCounts{
			TotalActive: 5,
			StepCounts:  map[int]models.StepCount{1: {Count: 3}},
		},
		secondCall: make(chan struct{}),
	}
	tracker := enrollment.NewTracker(source, 5*time.Millisecond, testLogger())

	service := testService(t)
	session := editor.NewSession(service, tracker, nil, testLogger())
	buildValidFlow(t, session)
	session.UpdateSettings(compiler.Settings{Name: "Onboarding", Slug: "onboarding"})

	_, err := session.Save(context.Background())
	require.NoError(t, err)

	session.StartTracking(context.Background())

	select {
	case <-source.secondCall:
	case <-time.After(time.Second):
		t.Fatal("tracker never polled")
	}

	session.StopTracking()

	trigger := session.TriggerNode()
	assert.Equal(t, 5, trigger.Data["total_active"])
}

// staticCounts serves the same snapshot on every poll.
type staticCounts struct {
	counts *models.EnrollmentCounts
}

func (s staticCounts) Counts(_ context.Context, _ string) (*models.EnrollmentCounts, error) {
	return s.counts, nil
}

func TestSession_EditDuringTracking(t *testing.T) {
	t.Parallel()

	tracker := enrollment.NewTracker(staticCounts{
		counts: &models.EnrollmentCounts{
			TotalActive: 5,
			StepCounts:  map[int]models.StepCount{1: {Count: 3}},
		},
	}, time.Millisecond, testLogger())

	session := editor.NewSession(testService(t), tracker, nil, testLogger())
	emailID := buildValidFlow(t, session)
	session.UpdateSettings(compiler.Settings{Name: "Onboarding", Slug: "onboarding"})

	_, err := session.Save(context.Background())
	require.NoError(t, err)

	session.StartTracking(context.Background())

	// Canvas edits land while the poller is attaching counts to the same
	// nodes; both sides serialize on the session.
	for i := 0; i < 200; i++ {
		require.NoError(t, session.UpdateNodeData(emailID, map[string]any{
			"revision": i,
		}))
		require.NoError(t, session.MoveNode(emailID, models.Position{Y: float64(160 + i)}))
	}

	session.StopTracking()

	email := session.NodeByID(emailID)
	require.NotNil(t, email)
	assert.Equal(t, 199, email.Data["revision"])
	assert.InDelta(t, 359.0, email.Position.Y, 0.001)
}

func TestSession_TrackingIsNoOpForDrafts(t *testing.T) {
	t.Parallel()

	tracker := enrollment.NewTracker(staticCounts{
		counts: &models.EnrollmentCounts{TotalActive: 9, StepCounts: map[int]models.StepCount{}},
	}, time.Hour, testLogger())

	session := editor.NewSession(testService(t), tracker, nil, testLogger())

	session.StartTracking(context.Background())
	defer session.StopTracking()

	time.Sleep(20 * time.Millisecond)

	assert.NotContains(t, session.TriggerNode().Data, "total_active")
}

type staticResolver struct {
	list []templates.Template
	err  error
}

func (r staticResolver) List(_ context.Context) ([]templates.Template, error) {
	return r.list, r.err
}

func TestSession_Templates(t *testing.T) {
	t.Parallel()

	session := editor.NewSession(testService(t), nil, staticResolver{
		list: []templates.Template{{Slug: "welcome", Name: "Welcome"}},
	}, testLogger())

	list := session.Templates(context.Background())
	require.Len(t, list, 1)
	assert.Equal(t, "welcome", list[0].Slug)

	failing := editor.NewSession(testService(t), nil, staticResolver{
		err: errors.New("template store down"),
	}, testLogger())

	assert.Nil(t, failing.Templates(context.Background()))
}
