// Package compiler transforms the editable flow graph into the ordered
// automation definition consumed by the delivery runtime, and back.
package compiler

import (
	"sort"

	"github.com/dripline/dripline/pkg/models"
)

// StepOrders walks the graph outward from the trigger and assigns an
// increasing 1-based order index to each email node in traversal order,
// breaking ties by vertical position and then node ID. The result maps node
// ID to step order.
//
// This is the single source of step ordering. The enrollment tracker maps
// aggregate counts onto nodes through this same function; if the traversal
// here changes, the count attachment changes with it, which keeps counts from
// silently landing on the wrong node.
func StepOrders(nodes []*models.Node, edges []*models.Edge) map[string]int {
	orders := make(map[string]int)

	var trigger *models.Node

	for _, n := range nodes {
		if n.IsTrigger() {
			trigger = n

			break
		}
	}

	if trigger == nil {
		return orders
	}

	byID := make(map[string]*models.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	out := make(map[string][]string, len(edges))
	for _, e := range edges {
		out[e.Source] = append(out[e.Source], e.Target)
	}

	visited := map[string]bool{trigger.ID: true}
	queue := []string{trigger.ID}
	next := 0

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := byID[current]
		if node != nil && node.Type == models.NodeTypeEmail {
			next++
			orders[current] = next
		}

		targets := make([]*models.Node, 0, len(out[current]))

		for _, id := range out[current] {
			if target, ok := byID[id]; ok && !visited[id] {
				visited[id] = true

				targets = append(targets, target)
			}
		}

		sort.Slice(targets, func(i, j int) bool {
			if targets[i].Position.Y != targets[j].Position.Y {
				return targets[i].Position.Y < targets[j].Position.Y
			}

			return targets[i].ID < targets[j].ID
		})

		for _, target := range targets {
			queue = append(queue, target.ID)
		}
	}

	return orders
}
