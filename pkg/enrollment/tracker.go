// Package enrollment polls the delivery runtime's aggregate enrollment state
// and maps it onto flow graph nodes for display in the editor.
package enrollment

import (
	"context"
	"log/slog"
	"time"

	"github.com/dripline/dripline/pkg/compiler"
	"github.com/dripline/dripline/pkg/models"
)

// DefaultInterval is the polling period used while an editor is open.
// Staleness up to one interval is acceptable for a dashboard overlay.
const DefaultInterval = 10 * time.Second

// CountsSource reads the aggregate enrollment counts for an automation from
// the delivery runtime.
type CountsSource interface {
	Counts(ctx context.Context, automationID string) (*models.EnrollmentCounts, error)
}

// Tracker periodically fetches enrollment counts for one automation and
// hands each snapshot to the editor. A fetch failure is non-fatal: the
// overlay degrades to empty counts and the editor stays usable.
type Tracker struct {
	source   CountsSource
	interval time.Duration
	logger   *slog.Logger
}

// NewTracker creates a tracker polling the given source. A non-positive
// interval falls back to DefaultInterval.
func NewTracker(source CountsSource, interval time.Duration, logger *slog.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Tracker{
		source:   source,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled, invoking apply with each snapshot. The
// fetch for a tick completes before the next one starts, so requests never
// overlap. The first fetch happens immediately.
func (t *Tracker) Run(ctx context.Context, automationID string, apply func(*models.EnrollmentCounts)) {
	t.poll(ctx, automationID, apply)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.poll(ctx, automationID, apply)
		}
	}
}

func (t *Tracker) poll(ctx context.Context, automationID string, apply func(*models.EnrollmentCounts)) {
	counts, err := t.source.Counts(ctx, automationID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}

		t.logger.WarnContext(ctx, "Failed to fetch enrollment counts",
			"automation_id", automationID, "error", err)

		counts = &models.EnrollmentCounts{StepCounts: map[int]models.StepCount{}}
	}

	apply(counts)
}

// Attach writes the snapshot onto the graph's nodes:
//
//   - the trigger node shows the global active total;
//   - an email node at step order k shows the count for step k-1, the
//     contacts who finished the previous step and are pending this one;
//   - a delay node shows the same count as the email node it leads into,
//     since the same contacts are waiting out the delay.
//
// Node-to-order mapping is re-derived through compiler.StepOrders, the same
// routine the compiler itself uses, so the two sides cannot drift apart.
func Attach(counts *models.EnrollmentCounts, nodes []*models.Node, edges []*models.Edge) {
	orders := compiler.StepOrders(nodes, edges)
	downstream := downstreamEmailOrders(nodes, edges, orders)

	for _, n := range nodes {
		if n.Data == nil {
			n.Data = map[string]any{}
		}

		switch n.Type {
		case models.NodeTypeTrigger:
			n.Data["total_active"] = counts.TotalActive
		case models.NodeTypeEmail:
			step := counts.StepCounts[orders[n.ID]-1]
			n.Data["waiting_count"] = step.Count
			n.Data["waiting_contacts"] = step.Contacts
		case models.NodeTypeDelay:
			if order, ok := downstream[n.ID]; ok {
				n.Data["waiting_count"] = counts.StepCounts[order-1].Count
			}
		}
	}
}

// downstreamEmailOrders maps each delay node to the step order of the first
// email node reachable from it.
func downstreamEmailOrders(nodes []*models.Node, edges []*models.Edge, orders map[string]int) map[string]int {
	out := make(map[string][]string, len(edges))
	for _, e := range edges {
		out[e.Source] = append(out[e.Source], e.Target)
	}

	result := make(map[string]int)

	for _, n := range nodes {
		if n.Type != models.NodeTypeDelay {
			continue
		}

		seen := map[string]bool{}
		queue := append([]string{}, out[n.ID]...)

		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]

			if seen[current] {
				continue
			}

			seen[current] = true

			if order, ok := orders[current]; ok {
				result[n.ID] = order

				break
			}

			queue = append(queue, out[current]...)
		}
	}

	return result
}
