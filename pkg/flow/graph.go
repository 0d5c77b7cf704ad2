// Package flow holds the in-memory graph edited on the automation canvas.
// All mutations go through named commands so editor interactions stay
// synchronous, testable and replayable.
package flow

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dripline/dripline/pkg/models"
)

var (
	// ErrNodeNotFound indicates a command referenced a node ID that is not
	// on the canvas.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound indicates a command referenced an unknown edge ID.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrTriggerDelete indicates an attempt to delete the trigger node. The
	// graph must always retain exactly one trigger, so the command is a
	// guarded no-op.
	ErrTriggerDelete = errors.New("trigger node cannot be deleted")

	// ErrTriggerExists indicates an attempt to add a second trigger node.
	ErrTriggerExists = errors.New("flow already has a trigger node")

	// ErrSelfConnection indicates an attempt to connect a node to itself.
	ErrSelfConnection = errors.New("node cannot connect to itself")
)

// Graph is the mutable node/edge state owned by a single editing session.
type Graph struct {
	nodes    []*models.Node
	edges    []*models.Edge
	selected string
}

// NewGraph creates an empty flow containing only a trigger node.
func NewGraph() *Graph {
	return &Graph{
		nodes: []*models.Node{
			{
				ID:       uuid.NewString(),
				Type:     models.NodeTypeTrigger,
				Position: models.Position{X: 0, Y: 0},
				Data:     map[string]any{},
			},
		},
		edges: make([]*models.Edge, 0),
	}
}

// FromDefinition loads a graph from a persisted canvas layout. Nodes and
// edges are copied so later edits never mutate the loaded definition.
func FromDefinition(def models.FlowDefinition) *Graph {
	g := &Graph{
		nodes: make([]*models.Node, 0, len(def.Nodes)),
		edges: make([]*models.Edge, 0, len(def.Edges)),
	}

	for _, n := range def.Nodes {
		node := *n
		if n.Data != nil {
			node.Data = make(map[string]any, len(n.Data))
			for k, v := range n.Data {
				node.Data[k] = v
			}
		}

		g.nodes = append(g.nodes, &node)
	}

	for _, e := range def.Edges {
		edge := *e
		g.edges = append(g.edges, &edge)
	}

	return g
}

// Nodes returns the current node list. Callers must not mutate it.
func (g *Graph) Nodes() []*models.Node {
	return g.nodes
}

// Edges returns the current edge list. Callers must not mutate it.
func (g *Graph) Edges() []*models.Edge {
	return g.edges
}

// NodeByID finds a node by its ID.
func (g *Graph) NodeByID(id string) *models.Node {
	for _, n := range g.nodes {
		if n.ID == id {
			return n
		}
	}

	return nil
}

// TriggerNode returns the flow's trigger node, or nil on a malformed graph.
func (g *Graph) TriggerNode() *models.Node {
	for _, n := range g.nodes {
		if n.IsTrigger() {
			return n
		}
	}

	return nil
}

// Selected returns the ID of the currently selected node, or "".
func (g *Graph) Selected() string {
	return g.selected
}

// Select marks a node as the current selection.
func (g *Graph) Select(id string) error {
	if g.NodeByID(id) == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	g.selected = id

	return nil
}

// ClearSelection drops the current selection.
func (g *Graph) ClearSelection() {
	g.selected = ""
}

// AddNode places a new node on the canvas and returns it. Only one trigger
// node may exist at a time.
func (g *Graph) AddNode(nodeType models.NodeType, position models.Position, data map[string]any) (*models.Node, error) {
	if !nodeType.IsValid() {
		return nil, fmt.Errorf("invalid node type: %s", nodeType)
	}

	if nodeType == models.NodeTypeTrigger && g.TriggerNode() != nil {
		return nil, ErrTriggerExists
	}

	if data == nil {
		data = map[string]any{}
	}

	node := &models.Node{
		ID:       uuid.NewString(),
		Type:     nodeType,
		Position: position,
		Data:     data,
	}
	g.nodes = append(g.nodes, node)

	return node, nil
}

// Connect draws an edge between two nodes, preserving the handle identifiers
// supplied by the canvas.
func (g *Graph) Connect(source, target, sourceHandle, targetHandle string) (*models.Edge, error) {
	if source == target {
		return nil, ErrSelfConnection
	}

	if g.NodeByID(source) == nil {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, source)
	}

	if g.NodeByID(target) == nil {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, target)
	}

	edge := &models.Edge{
		ID:           uuid.NewString(),
		Source:       source,
		Target:       target,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
	}
	g.edges = append(g.edges, edge)

	return edge, nil
}

// MoveNode updates a node's canvas position.
func (g *Graph) MoveNode(id string, position models.Position) error {
	node := g.NodeByID(id)
	if node == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	node.Position = position

	return nil
}

// UpdateNodeData merges the given fields into a node's payload.
func (g *Graph) UpdateNodeData(id string, data map[string]any) error {
	node := g.NodeByID(id)
	if node == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	if node.Data == nil {
		node.Data = map[string]any{}
	}

	for k, v := range data {
		node.Data[k] = v
	}

	return nil
}

// RemoveEdge deletes a single edge from the canvas.
func (g *Graph) RemoveEdge(id string) error {
	for i, e := range g.edges {
		if e.ID == id {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)

			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
}

// DeleteNode removes a node while preserving every path that ran through it.
// For each pair of incoming edge i and outgoing edge o, a new edge
// i.source -> o.target is synthesized with the original handles. This is a
// full cross-product, not a 1:1 splice: a node with 2 inputs and 3 outputs
// yields 6 reconnection edges.
//
// Deleting the trigger node is rejected with no state change.
func (g *Graph) DeleteNode(id string) error {
	node := g.NodeByID(id)
	if node == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	if node.IsTrigger() {
		return ErrTriggerDelete
	}

	incoming := make([]*models.Edge, 0)
	outgoing := make([]*models.Edge, 0)
	remaining := make([]*models.Edge, 0, len(g.edges))

	for _, e := range g.edges {
		switch {
		case e.Source == id && e.Target == id:
			// Self-loops cannot be drawn but can be loaded; they vanish
			// with the node instead of joining the cross-product.
		case e.Target == id:
			incoming = append(incoming, e)
		case e.Source == id:
			outgoing = append(outgoing, e)
		default:
			remaining = append(remaining, e)
		}
	}

	for _, in := range incoming {
		for _, out := range outgoing {
			remaining = append(remaining, &models.Edge{
				ID:           uuid.NewString(),
				Source:       in.Source,
				Target:       out.Target,
				SourceHandle: in.SourceHandle,
				TargetHandle: out.TargetHandle,
			})
		}
	}

	g.edges = remaining

	for i, n := range g.nodes {
		if n.ID == id {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)

			break
		}
	}

	if g.selected == id {
		g.selected = ""
	}

	return nil
}

// Definition snapshots the graph as a persistable canvas layout. The copy is
// deep enough that further edits do not leak into the snapshot.
func (g *Graph) Definition() models.FlowDefinition {
	def := models.FlowDefinition{
		Nodes: make([]*models.Node, 0, len(g.nodes)),
		Edges: make([]*models.Edge, 0, len(g.edges)),
	}

	for _, n := range g.nodes {
		node := *n
		if n.Data != nil {
			node.Data = make(map[string]any, len(n.Data))
			for k, v := range n.Data {
				node.Data[k] = v
			}
		}

		def.Nodes = append(def.Nodes, &node)
	}

	for _, e := range g.edges {
		edge := *e
		def.Edges = append(def.Edges, &edge)
	}

	return def
}
