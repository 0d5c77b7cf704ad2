// Package models defines the core domain models for the automation flow editor.
package models

// NodeType represents the kind of node placed on the flow canvas.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"   // Entry point, enrolls contacts
	NodeTypeEmail     NodeType = "email"     // Sends a template to the contact
	NodeTypeDelay     NodeType = "delay"     // Waits before the next email
	NodeTypeCondition NodeType = "condition" // Predicate branch, per-contact
)

// IsValid checks if the node type is one the editor knows how to render.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeTrigger, NodeTypeEmail, NodeTypeDelay, NodeTypeCondition:
		return true
	default:
		return false
	}
}

// Position is the visual location of a node on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node represents a node instance in the flow graph.
type Node struct {
	ID       string         `json:"id"       validate:"required"`
	Type     NodeType       `json:"type"     validate:"required"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data"`
}

// IsTrigger reports whether the node is the flow entry point.
func (n *Node) IsTrigger() bool {
	return n.Type == NodeTypeTrigger
}

// TemplateSlug returns the template reference carried by an email node,
// or the empty string when none is set.
func (n *Node) TemplateSlug() string {
	if n.Data == nil {
		return ""
	}

	slug, _ := n.Data["template_slug"].(string)

	return slug
}

// Edge connects two nodes on the canvas. Handle identifiers are optional and
// preserved verbatim so the canvas can reattach edges to the right anchors.
type Edge struct {
	ID           string `json:"id"                     validate:"required"`
	Source       string `json:"source"                 validate:"required"`
	Target       string `json:"target"                 validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
	Type         string `json:"type,omitempty"`
	Animated     bool   `json:"animated,omitempty"`
}

// FlowDefinition is the verbatim persisted canvas layout. It is stored next
// to the compiled step list so that reloading a flow never loses node
// positions or branch topology.
type FlowDefinition struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}
