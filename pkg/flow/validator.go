package flow

import (
	"fmt"
	"sort"

	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/triggers"
)

// Validate runs the structural rules over a node/edge set and returns every
// violation as a human-readable message. An empty slice means the flow is
// valid. Validation never mutates the graph.
//
// Always enforced: exactly one trigger node, no incoming edges into the
// trigger, and an acyclic graph (a cycle would re-enroll contacts without
// bound at runtime). With strict enabled, the rules an automation must meet
// before going live are added: every node reachable from the trigger, email
// nodes carrying a concrete template reference, and the trigger conditions
// matching the vocabulary for their trigger type. In draft mode unreachable
// or half-configured nodes are tolerated.
func Validate(nodes []*models.Node, edges []*models.Edge, strict bool) []string {
	errs := make([]string, 0)

	var trigger *models.Node

	triggerCount := 0

	for _, n := range nodes {
		if n.IsTrigger() {
			triggerCount++

			trigger = n
		}
	}

	if triggerCount != 1 {
		errs = append(errs, fmt.Sprintf("flow must have exactly one trigger node, found %d", triggerCount))
	}

	if trigger != nil {
		for _, e := range edges {
			if e.Target == trigger.ID {
				errs = append(errs, "trigger node cannot have incoming connections")

				break
			}
		}
	}

	if cycleNode := findCycle(nodes, edges); cycleNode != "" {
		errs = append(errs, fmt.Sprintf("flow contains a cycle through node %s", cycleNode))
	}

	if !strict {
		return errs
	}

	if trigger != nil {
		unreachable := unreachableFrom(trigger.ID, nodes, edges)
		for _, id := range unreachable {
			errs = append(errs, fmt.Sprintf("node %s is not connected to the trigger", id))
		}

		errs = append(errs, validateTriggerConfig(trigger)...)
	}

	for _, n := range nodes {
		if n.Type == models.NodeTypeEmail && n.TemplateSlug() == "" {
			errs = append(errs, fmt.Sprintf("email node %s has no template selected", n.ID))
		}
	}

	return errs
}

func validateTriggerConfig(trigger *models.Node) []string {
	triggerType, _ := trigger.Data["trigger_type"].(string)
	if triggerType == "" {
		return []string{"trigger node has no trigger type configured"}
	}

	conditions, _ := trigger.Data["conditions"].(map[string]any)

	err := triggers.ValidateConditions(models.TriggerType(triggerType), conditions)
	if err != nil {
		return []string{err.Error()}
	}

	return nil
}

// findCycle returns the ID of a node on a cycle, or "" when the graph is
// acyclic. Standard three-color depth-first search.
func findCycle(nodes []*models.Node, edges []*models.Edge) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int, len(nodes))
	out := outgoingIndex(edges)

	var visit func(id string) string

	visit = func(id string) string {
		color[id] = gray

		for _, next := range out[id] {
			switch color[next] {
			case gray:
				return next
			case white:
				if found := visit(next); found != "" {
					return found
				}
			}
		}

		color[id] = black

		return ""
	}

	// Iterate in declaration order so the reported node is deterministic.
	for _, n := range nodes {
		if color[n.ID] == white {
			if found := visit(n.ID); found != "" {
				return found
			}
		}
	}

	return ""
}

// unreachableFrom returns the IDs of nodes with no path from start, sorted
// for stable error messages.
func unreachableFrom(start string, nodes []*models.Node, edges []*models.Edge) []string {
	out := outgoingIndex(edges)
	seen := map[string]bool{start: true}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range out[current] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}

	unreachable := make([]string, 0)

	for _, n := range nodes {
		if !seen[n.ID] {
			unreachable = append(unreachable, n.ID)
		}
	}

	sort.Strings(unreachable)

	return unreachable
}

func outgoingIndex(edges []*models.Edge) map[string][]string {
	out := make(map[string][]string, len(edges))
	for _, e := range edges {
		out[e.Source] = append(out[e.Source], e.Target)
	}

	return out
}
