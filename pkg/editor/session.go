// Package editor ties one open automation editor together: the flow graph
// being edited, the settings panel, the save gateway and the live enrollment
// overlay.
package editor

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dripline/dripline/pkg/compiler"
	"github.com/dripline/dripline/pkg/enrollment"
	"github.com/dripline/dripline/pkg/flow"
	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/services"
	"github.com/dripline/dripline/pkg/templates"
)

// ErrSaveInFlight is returned when Save is called while a previous save is
// still outstanding. The caller treats it as "ignored": exactly one save is
// in flight at a time, last writer wins.
var ErrSaveInFlight = errors.New("a save is already in progress")

// Session is the state of one open editor. Canvas commands are session
// methods and run synchronously under the session mutex; the enrollment
// tracker is the only background activity and its overlay writes go through
// the same mutex, so edits and overlay updates never interleave.
type Session struct {
	mu sync.Mutex

	automationID string
	graph        *flow.Graph
	settings     compiler.Settings
	settingsOpen bool
	saving       bool

	service  *services.Automation
	tracker  *enrollment.Tracker
	resolver templates.Resolver
	logger   *slog.Logger

	stopTracking context.CancelFunc
}

// NewSession opens an editor on a fresh, trigger-only flow.
func NewSession(service *services.Automation, tracker *enrollment.Tracker, resolver templates.Resolver, logger *slog.Logger) *Session {
	return &Session{
		graph:    flow.NewGraph(),
		service:  service,
		tracker:  tracker,
		resolver: resolver,
		logger:   logger,
	}
}

// Open loads an existing automation into the editor. The persisted
// flow_definition is the primary layout; when a definition was created
// outside the editor and carries no layout, the lossy linear reconstruction
// is used as a fallback.
func Open(automation *models.Automation, service *services.Automation, tracker *enrollment.Tracker, resolver templates.Resolver, logger *slog.Logger) *Session {
	session := NewSession(service, tracker, resolver, logger)
	session.automationID = automation.ID
	session.settings = compiler.Settings{
		ID:             automation.ID,
		Name:           automation.Name,
		Slug:           automation.Slug,
		Description:    automation.Description,
		StopConditions: automation.StopConditions,
		SendWindow:     automation.SendWindow,
		SendOnWeekends: automation.SendOnWeekends,
		IsActive:       automation.IsActive,
	}

	if len(automation.FlowDefinition.Nodes) > 0 {
		session.graph = flow.FromDefinition(automation.FlowDefinition)
	} else {
		session.graph = flow.FromDefinition(compiler.AutomationToFlow(automation))
	}

	return session
}

// Definition snapshots the current canvas layout. The copy is deep, so the
// caller can read it without racing the enrollment overlay.
func (s *Session) Definition() models.FlowDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.graph.Definition()
}

// TriggerNode returns a copy of the flow's trigger node.
func (s *Session) TriggerNode() *models.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	return copyNode(s.graph.TriggerNode())
}

// NodeByID returns a copy of a node, or nil when it is not on the canvas.
func (s *Session) NodeByID(id string) *models.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	return copyNode(s.graph.NodeByID(id))
}

// AddNode places a new node on the canvas and returns a copy of it.
func (s *Session) AddNode(nodeType models.NodeType, position models.Position, data map[string]any) (*models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.graph.AddNode(nodeType, position, data)
	if err != nil {
		return nil, err
	}

	return copyNode(node), nil
}

// Connect draws an edge between two nodes.
func (s *Session) Connect(source, target, sourceHandle, targetHandle string) (*models.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, err := s.graph.Connect(source, target, sourceHandle, targetHandle)
	if err != nil {
		return nil, err
	}

	copied := *edge

	return &copied, nil
}

// MoveNode updates a node's canvas position.
func (s *Session) MoveNode(id string, position models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.graph.MoveNode(id, position)
}

// UpdateNodeData merges the given fields into a node's payload.
func (s *Session) UpdateNodeData(id string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.graph.UpdateNodeData(id, data)
}

// RemoveEdge deletes a single edge from the canvas.
func (s *Session) RemoveEdge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.graph.RemoveEdge(id)
}

// DeleteNode removes a node, reconnecting every path that ran through it.
func (s *Session) DeleteNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.graph.DeleteNode(id)
}

// SelectNode marks a node as the current selection.
func (s *Session) SelectNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.graph.Select(id)
}

// Selected returns the ID of the currently selected node, or "".
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.graph.Selected()
}

// ClearSelection drops the current selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.graph.ClearSelection()
}

func copyNode(n *models.Node) *models.Node {
	if n == nil {
		return nil
	}

	node := *n
	if n.Data != nil {
		node.Data = make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			node.Data[k] = v
		}
	}

	return &node
}

// Settings returns the current settings panel content.
func (s *Session) Settings() compiler.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.settings
}

// UpdateSettings replaces the settings panel content.
func (s *Session) UpdateSettings(settings compiler.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = settings
}

// SettingsOpen reports whether the settings panel is showing.
func (s *Session) SettingsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.settingsOpen
}

// OpenSettings shows the settings panel.
func (s *Session) OpenSettings() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settingsOpen = true
}

// CloseSettings hides the settings panel.
func (s *Session) CloseSettings() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settingsOpen = false
}

// Save submits the current graph and settings through the persistence
// gateway. Only one save may be outstanding; re-entrant calls get
// ErrSaveInFlight. When required metadata is missing the settings panel is
// reopened and nothing is submitted. On failure the in-memory graph is left
// untouched so the operator can retry without re-editing.
func (s *Session) Save(ctx context.Context) (*models.Automation, error) {
	s.mu.Lock()

	if s.saving {
		s.mu.Unlock()

		return nil, ErrSaveInFlight
	}

	s.saving = true
	req := services.SaveRequest{
		ID:       s.automationID,
		Settings: s.settings,
		Flow:     s.graph.Definition(),
	}
	s.mu.Unlock()

	automation, err := s.service.Save(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.saving = false

	if err != nil {
		if services.IsSettingsError(err) {
			s.settingsOpen = true
		}

		return nil, err
	}

	s.automationID = automation.ID
	s.settings.ID = automation.ID

	return automation, nil
}

// Saving reports whether a save is outstanding.
func (s *Session) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saving
}

// StartTracking begins polling enrollment counts for the open automation and
// attaching them to graph nodes. It is a no-op for never-saved drafts. The
// poller stops when ctx is cancelled or StopTracking is called.
func (s *Session) StartTracking(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tracker == nil || s.automationID == "" || s.stopTracking != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.stopTracking = cancel

	go s.tracker.Run(ctx, s.automationID, s.applyCounts)
}

// StopTracking cancels the enrollment poller. Deterministic teardown: after
// it returns no further overlay writes happen once the in-flight tick ends.
func (s *Session) StopTracking() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopTracking != nil {
		s.stopTracking()
		s.stopTracking = nil
	}
}

func (s *Session) applyCounts(counts *models.EnrollmentCounts) {
	s.mu.Lock()
	defer s.mu.Unlock()

	enrollment.Attach(counts, s.graph.Nodes(), s.graph.Edges())
}

// Templates lists the template references selectable on email nodes. A fetch
// failure is non-fatal: the list degrades to empty and is only logged, since
// the picker is a convenience, not a requirement for saving.
func (s *Session) Templates(ctx context.Context) []templates.Template {
	if s.resolver == nil {
		return nil
	}

	list, err := s.resolver.List(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to fetch templates", "error", err)

		return nil
	}

	return list
}
