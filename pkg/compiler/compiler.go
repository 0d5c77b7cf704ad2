package compiler

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dripline/dripline/pkg/models"
)

// ErrNoTriggerNode indicates the graph has no trigger to compile from.
var ErrNoTriggerNode = errors.New("flow has no trigger node")

// Settings carries the automation fields that do not derive from the graph:
// identity, the global stop conditions and the send window. Stop conditions
// are evaluated by the runtime against every enrolled contact on every tick,
// orthogonal to step order, and are never flattened into the step list.
type Settings struct {
	ID             string
	Name           string
	Slug           string
	Description    string
	StopConditions models.StopConditions
	SendWindow     models.SendWindow
	SendOnWeekends bool
	IsActive       bool
}

// transientDataKeys are editor-only node annotations (the live enrollment
// overlay) that must not leak into the persisted layout.
var transientDataKeys = []string{"waiting_count", "total_active", "waiting_contacts"}

// FlowToAutomation compiles a canvas layout into a persisted automation:
// trigger fields come from the trigger node's payload, email nodes become
// ordered email steps, a delay node immediately preceding an email folds into
// that step's wait, and condition nodes become predicate steps referencing
// the email steps reachable on each outgoing branch. The verbatim layout is
// stored alongside the compiled steps, with editor-only annotations stripped.
func FlowToAutomation(def models.FlowDefinition, settings Settings) (*models.Automation, error) {
	var trigger *models.Node

	for _, n := range def.Nodes {
		if n.IsTrigger() {
			trigger = n

			break
		}
	}

	if trigger == nil {
		return nil, ErrNoTriggerNode
	}

	triggerType, _ := trigger.Data["trigger_type"].(string)
	conditions, _ := trigger.Data["conditions"].(map[string]any)

	orders := StepOrders(def.Nodes, def.Edges)
	incoming := incomingIndex(def.Edges)
	outgoing := outgoingEdgeIndex(def.Edges)
	byID := nodeIndex(def.Nodes)

	steps := make([]*models.Step, 0, len(orders))

	for _, n := range def.Nodes {
		order, ok := orders[n.ID]
		if !ok {
			continue
		}

		steps = append(steps, &models.Step{
			Order:        order,
			Type:         models.StepTypeEmail,
			TemplateSlug: n.TemplateSlug(),
			WaitSeconds:  int64(waitBefore(n.ID, incoming, byID).Seconds()),
		})
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	// Condition nodes are not linearized: branching is per-contact state, so
	// each compiles to a predicate step pointing at the email steps its
	// branches lead to.
	for _, n := range def.Nodes {
		if n.Type != models.NodeTypeCondition {
			continue
		}

		predicate, _ := n.Data["predicate"].(map[string]any)

		nextOrders := make([]int, 0, len(outgoing[n.ID]))

		for _, e := range outgoing[n.ID] {
			if order, ok := firstEmailDownstream(e.Target, outgoing, byID, orders); ok {
				nextOrders = append(nextOrders, order)
			}
		}

		sort.Ints(nextOrders)

		steps = append(steps, &models.Step{
			Order:          0,
			Type:           models.StepTypeCondition,
			Predicate:      predicate,
			NextStepOrders: nextOrders,
		})
	}

	return &models.Automation{
		ID:                settings.ID,
		Name:              settings.Name,
		Slug:              settings.Slug,
		Description:       settings.Description,
		TriggerType:       models.TriggerType(triggerType),
		TriggerConditions: conditions,
		StopConditions:    settings.StopConditions,
		SendWindow:        settings.SendWindow,
		SendOnWeekends:    settings.SendOnWeekends,
		IsActive:          settings.IsActive,
		FlowDefinition:    StripTransient(def),
		Steps:             steps,
	}, nil
}

// AutomationToFlow reconstructs a canvas layout from a flat step list. It is
// the fallback for definitions created outside the editor, where no layout
// was persisted: the trigger is laid out first, followed by one node per step
// in sequence, joined by straight-line edges (a delay node is re-emitted in
// front of any step with a wait).
//
// The reconstruction is lossy for branching topologies. A flat step list
// cannot recover branch structure, so only linear chains reproduce
// faithfully. The persisted flow_definition is always the primary round trip.
func AutomationToFlow(a *models.Automation) models.FlowDefinition {
	const (
		columnX = 0.0
		rowGap  = 160.0
	)

	def := models.FlowDefinition{
		Nodes: make([]*models.Node, 0, len(a.Steps)+1),
		Edges: make([]*models.Edge, 0, len(a.Steps)),
	}

	trigger := &models.Node{
		ID:       "trigger",
		Type:     models.NodeTypeTrigger,
		Position: models.Position{X: columnX, Y: 0},
		Data: map[string]any{
			"trigger_type": string(a.TriggerType),
			"conditions":   a.TriggerConditions,
		},
	}
	def.Nodes = append(def.Nodes, trigger)

	steps := make([]*models.Step, 0, len(a.Steps))

	for _, s := range a.Steps {
		if s.Type == models.StepTypeEmail {
			steps = append(steps, s)
		}
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	previous := trigger
	row := 1

	for _, s := range steps {
		if s.WaitSeconds > 0 {
			delay := &models.Node{
				ID:       fmt.Sprintf("delay-%d", s.Order),
				Type:     models.NodeTypeDelay,
				Position: models.Position{X: columnX, Y: float64(row) * rowGap},
				Data: map[string]any{
					"duration": float64(s.WaitSeconds) / 3600,
					"unit":     "hours",
				},
			}
			def.Nodes = append(def.Nodes, delay)
			def.Edges = append(def.Edges, straightEdge(previous.ID, delay.ID))
			previous = delay
			row++
		}

		email := &models.Node{
			ID:       fmt.Sprintf("email-%d", s.Order),
			Type:     models.NodeTypeEmail,
			Position: models.Position{X: columnX, Y: float64(row) * rowGap},
			Data: map[string]any{
				"template_slug": s.TemplateSlug,
			},
		}
		def.Nodes = append(def.Nodes, email)
		def.Edges = append(def.Edges, straightEdge(previous.ID, email.ID))
		previous = email
		row++
	}

	return def
}

// StripTransient returns a copy of the layout without the editor-only node
// annotations attached by the enrollment overlay.
func StripTransient(def models.FlowDefinition) models.FlowDefinition {
	stripped := models.FlowDefinition{
		Nodes: make([]*models.Node, 0, len(def.Nodes)),
		Edges: make([]*models.Edge, 0, len(def.Edges)),
	}

	for _, n := range def.Nodes {
		node := *n
		if n.Data != nil {
			node.Data = make(map[string]any, len(n.Data))
			for k, v := range n.Data {
				node.Data[k] = v
			}

			for _, key := range transientDataKeys {
				delete(node.Data, key)
			}
		}

		stripped.Nodes = append(stripped.Nodes, &node)
	}

	for _, e := range def.Edges {
		edge := *e
		stripped.Edges = append(stripped.Edges, &edge)
	}

	return stripped
}

// waitBefore returns the delay carried by a delay node immediately preceding
// the given email node. Multiple delay parents are resolved deterministically
// by taking the first in (Y, ID) order.
func waitBefore(emailID string, incoming map[string][]*models.Edge, byID map[string]*models.Node) time.Duration {
	parents := make([]*models.Node, 0)

	for _, e := range incoming[emailID] {
		if parent, ok := byID[e.Source]; ok && parent.Type == models.NodeTypeDelay {
			parents = append(parents, parent)
		}
	}

	if len(parents) == 0 {
		return 0
	}

	sort.Slice(parents, func(i, j int) bool {
		if parents[i].Position.Y != parents[j].Position.Y {
			return parents[i].Position.Y < parents[j].Position.Y
		}

		return parents[i].ID < parents[j].ID
	})

	return delayDuration(parents[0])
}

// delayDuration reads {duration, unit} from a delay node's payload.
func delayDuration(n *models.Node) time.Duration {
	if n.Data == nil {
		return 0
	}

	amount, ok := n.Data["duration"].(float64)
	if !ok {
		if i, isInt := n.Data["duration"].(int); isInt {
			amount = float64(i)
		}
	}

	unit, _ := n.Data["unit"].(string)

	switch unit {
	case "minutes":
		return time.Duration(amount * float64(time.Minute))
	case "hours":
		return time.Duration(amount * float64(time.Hour))
	default:
		return time.Duration(amount * float64(24*time.Hour))
	}
}

// firstEmailDownstream follows edges from start until it reaches an ordered
// email node, skipping over delay and condition nodes.
func firstEmailDownstream(start string, outgoing map[string][]*models.Edge, byID map[string]*models.Node, orders map[string]int) (int, bool) {
	seen := map[string]bool{}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if seen[current] {
			continue
		}

		seen[current] = true

		if order, ok := orders[current]; ok {
			return order, true
		}

		for _, e := range outgoing[current] {
			queue = append(queue, e.Target)
		}
	}

	return 0, false
}

func straightEdge(source, target string) *models.Edge {
	return &models.Edge{
		ID:     fmt.Sprintf("%s-%s", source, target),
		Source: source,
		Target: target,
	}
}

func nodeIndex(nodes []*models.Node) map[string]*models.Node {
	byID := make(map[string]*models.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	return byID
}

func incomingIndex(edges []*models.Edge) map[string][]*models.Edge {
	in := make(map[string][]*models.Edge, len(edges))
	for _, e := range edges {
		in[e.Target] = append(in[e.Target], e)
	}

	return in
}

func outgoingEdgeIndex(edges []*models.Edge) map[string][]*models.Edge {
	out := make(map[string][]*models.Edge, len(edges))
	for _, e := range edges {
		out[e.Source] = append(out[e.Source], e)
	}

	return out
}
