package model

import (
	"sort"
	"time"
)

// NodeExport is the node shape consumed by export collaborators
type NodeExport struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Type      string `json:"type"`
	ColorHint string `json:"color_hint"`
}

// EdgeExport is the edge shape consumed by export collaborators
type EdgeExport struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
	Type   string `json:"type"`
}

// nodeColors maps entity types to display color hints
var nodeColors = map[MentionType]string{
	MentionOrganization: "#ff7675",
	MentionPerson:       "#74b9ff",
	MentionProduct:      "#55efc4",
	MentionLocation:     "#fdcb6e",
	MentionTime:         "#a29bfe",
	MentionAmount:       "#ffeaa7",
}

const defaultNodeColor = "#95a5a6"
const eventNodeColor = "#dfe6e9"

// Snapshot is an immutable point-in-time copy of the graph. Live entities are
// the nodes; relations are edges; events are reified as nodes with one
// role-labeled edge per filled role.
type Snapshot struct {
	TakenAt   time.Time   `json:"taken_at"`
	Entities  []*Entity   `json:"entities"`
	Relations []*Relation `json:"relations"`
	Events    []*Event    `json:"events"`
}

// Nodes returns the deterministic node list for export collaborators.
// Entities come first ordered by id, then event nodes ordered by id.
func (s *Snapshot) Nodes() []NodeExport {
	nodes := make([]NodeExport, 0, len(s.Entities)+len(s.Events))
	for _, entity := range s.Entities {
		color, ok := nodeColors[entity.Type]
		if !ok {
			color = defaultNodeColor
		}
		nodes = append(nodes, NodeExport{
			ID:        entity.ID.String(),
			Label:     entity.Name,
			Type:      string(entity.Type),
			ColorHint: color,
		})
	}
	for _, event := range s.Events {
		nodes = append(nodes, NodeExport{
			ID:        event.ID.String(),
			Label:     string(event.Type),
			Type:      "event",
			ColorHint: eventNodeColor,
		})
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Type == "event" != (nodes[j].Type == "event") {
			return nodes[j].Type == "event"
		}
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}

// Edges returns the deterministic edge list for export collaborators.
// Relation edges are ordered by (source, target, label); event role edges
// follow, ordered by (event id, role order).
func (s *Snapshot) Edges() []EdgeExport {
	edges := make([]EdgeExport, 0, len(s.Relations))
	for _, relation := range s.Relations {
		edges = append(edges, EdgeExport{
			Source: relation.SubjectID.String(),
			Target: relation.ObjectID.String(),
			Label:  string(relation.Predicate),
			Type:   "relation",
		})
	}
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Label < edges[j].Label
	})

	for _, event := range s.Events {
		for _, role := range event.Roles {
			if role.EntityID == nil {
				continue
			}
			edges = append(edges, EdgeExport{
				Source: event.ID.String(),
				Target: role.EntityID.String(),
				Label:  role.Name,
				Type:   "event_role",
			})
		}
	}
	return edges
}
