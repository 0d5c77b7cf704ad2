package enrollment_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripline/dripline/pkg/enrollment"
	"github.com/dripline/dripline/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSource struct {
	counts *models.EnrollmentCounts
	err    error
	calls  atomic.Int64
}

func (s *stubSource) Counts(_ context.Context, _ string) (*models.EnrollmentCounts, error) {
	s.calls.Add(1)

	if s.err != nil {
		return nil, s.err
	}

	return s.counts, nil
}

func node(id string, nodeType models.NodeType, y float64, data map[string]any) *models.Node {
	if data == nil {
		data = map[string]any{}
	}

	return &models.Node{
		ID:       id,
		Type:     nodeType,
		Position: models.Position{Y: y},
		Data:     data,
	}
}

func edge(source, target string) *models.Edge {
	return &models.Edge{ID: source + "-" + target, Source: source, Target: target}
}

func TestTracker_RunAppliesImmediatelyAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	source := &stubSource{
		counts: &models.EnrollmentCounts{TotalActive: 3, StepCounts: map[int]models.StepCount{}},
	}
	tracker := enrollment.NewTracker(source, 5*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())

	applied := make(chan *models.EnrollmentCounts, 16)
	done := make(chan struct{})

	go func() {
		tracker.Run(ctx, "auto-1", func(c *models.EnrollmentCounts) {
			applied <- c
		})
		close(done)
	}()

	// The first snapshot arrives before any ticker fires.
	select {
	case got := <-applied:
		assert.Equal(t, 3, got.TotalActive)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first snapshot")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tracker did not stop on cancel")
	}
}

func TestTracker_FetchFailureDegradesToEmpty(t *testing.T) {
	t.Parallel()

	source := &stubSource{err: errors.New("runtime unavailable")}
	tracker := enrollment.NewTracker(source, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	applied := make(chan *models.EnrollmentCounts, 1)

	go tracker.Run(ctx, "auto-1", func(c *models.EnrollmentCounts) {
		applied <- c
		cancel()
	})

	select {
	case got := <-applied:
		require.NotNil(t, got)
		assert.Zero(t, got.TotalActive)
		assert.Empty(t, got.StepCounts)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for degraded snapshot")
	}
}

func TestAttach(t *testing.T) {
	t.Parallel()

	// trigger -> email1 -> delay -> email2 -> email3. Ten contacts are
	// active overall: seven finished step 1 and are pending step 2, two are
	// pending step 3, one is pending nothing yet (still at step 1).
	nodes := []*models.Node{
		node("trigger", models.NodeTypeTrigger, 0, nil),
		node("email1", models.NodeTypeEmail, 100, nil),
		node("wait", models.NodeTypeDelay, 200, nil),
		node("email2", models.NodeTypeEmail, 300, nil),
		node("email3", models.NodeTypeEmail, 400, nil),
	}
	edges := []*models.Edge{
		edge("trigger", "email1"),
		edge("email1", "wait"),
		edge("wait", "email2"),
		edge("email2", "email3"),
	}

	counts := &models.EnrollmentCounts{
		TotalActive: 10,
		StepCounts: map[int]models.StepCount{
			1: {Count: 7, Contacts: []models.ContactSample{{Email: "a@example.com"}}},
			2: {Count: 2},
			3: {Count: 1},
		},
	}

	enrollment.Attach(counts, nodes, edges)

	assert.Equal(t, 10, nodes[0].Data["total_active"])

	// email1 is step 1; nobody has finished a step before it.
	assert.Equal(t, 0, nodes[1].Data["waiting_count"])

	// email2 is step 2 and shows the contacts who finished step 1; the
	// delay in front of it shows the same count.
	assert.Equal(t, 7, nodes[3].Data["waiting_count"])
	assert.Equal(t, 7, nodes[2].Data["waiting_count"])

	samples, ok := nodes[3].Data["waiting_contacts"].([]models.ContactSample)
	require.True(t, ok)
	require.Len(t, samples, 1)
	assert.Equal(t, "a@example.com", samples[0].Email)

	// email3 is step 3 and shows the contacts who finished step 2.
	assert.Equal(t, 2, nodes[4].Data["waiting_count"])
}

func TestAttach_DelayWithoutDownstreamEmail(t *testing.T) {
	t.Parallel()

	nodes := []*models.Node{
		node("trigger", models.NodeTypeTrigger, 0, nil),
		node("email1", models.NodeTypeEmail, 100, nil),
		node("tail-wait", models.NodeTypeDelay, 200, nil),
	}
	edges := []*models.Edge{
		edge("trigger", "email1"),
		edge("email1", "tail-wait"),
	}

	counts := &models.EnrollmentCounts{
		TotalActive: 5,
		StepCounts:  map[int]models.StepCount{1: {Count: 5}},
	}

	enrollment.Attach(counts, nodes, edges)

	// A trailing delay with no email after it gets no count.
	assert.NotContains(t, nodes[2].Data, "waiting_count")
}

func TestAttach_UsesSameOrderingAsCompiler(t *testing.T) {
	t.Parallel()

	// Branching layout: counts must land on the node the compiler assigns
	// that step order to, whatever the traversal order is.
	nodes := []*models.Node{
		node("trigger", models.NodeTypeTrigger, 0, nil),
		node("south", models.NodeTypeEmail, 300, nil),
		node("north", models.NodeTypeEmail, 100, nil),
	}
	edges := []*models.Edge{
		edge("trigger", "south"),
		edge("trigger", "north"),
	}

	counts := &models.EnrollmentCounts{
		TotalActive: 4,
		StepCounts: map[int]models.StepCount{
			1: {Count: 4},
		},
	}

	enrollment.Attach(counts, nodes, edges)

	// north is step 1 (higher on the canvas), south is step 2: step 2
	// shows the step-1 backlog, step 1 shows nothing.
	assert.Equal(t, 0, nodes[2].Data["waiting_count"])
	assert.Equal(t, 4, nodes[1].Data["waiting_count"])
}
