package export

import (
	"encoding/json"
	"html/template"
	"io"
	"os"

	"github.com/fingraph/fingraph/helper"
	"github.com/fingraph/fingraph/model"
)

// visTemplate renders an interactive vis-network page. Nodes and edges are
// injected as JSON, so the page works standalone without a server.
var visTemplate = template.Must(template.New("graph").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://unpkg.com/vis-network/standalone/umd/vis-network.min.js"></script>
<style>
  body { margin: 0; font-family: sans-serif; }
  #graph { width: 100vw; height: 100vh; }
  #legend { position: absolute; top: 10px; left: 10px; background: rgba(255,255,255,0.9); padding: 8px 12px; border-radius: 4px; font-size: 12px; }
  .swatch { display: inline-block; width: 10px; height: 10px; border-radius: 50%; margin-right: 4px; }
</style>
</head>
<body>
<div id="legend">
{{- range .Legend}}
  <div><span class="swatch" style="background: {{.Color}}"></span>{{.Label}}</div>
{{- end}}
</div>
<div id="graph"></div>
<script>
  const nodes = new vis.DataSet({{.Nodes}});
  const edges = new vis.DataSet({{.Edges}});
  const container = document.getElementById("graph");
  const options = {
    nodes: { shape: "dot", size: 16, font: { size: 14 } },
    edges: { arrows: "to", font: { size: 11, align: "middle" } },
    physics: { solver: "forceAtlas2Based", stabilization: { iterations: 200 } }
  };
  new vis.Network(container, { nodes: nodes, edges: edges }, options);
</script>
</body>
</html>
`))

type visNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Title string `json:"title"`
	Color string `json:"color"`
}

type visEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

type legendEntry struct {
	Label string
	Color string
}

type htmlPage struct {
	Title  string
	Nodes  template.JS
	Edges  template.JS
	Legend []legendEntry
}

// WriteHTML renders the snapshot as an interactive HTML page
func WriteHTML(w io.Writer, title string, snapshot *model.Snapshot) error {
	nodes := []visNode{}
	legendSeen := map[string]bool{}
	legend := []legendEntry{}
	for _, node := range snapshot.Nodes() {
		nodes = append(nodes, visNode{
			ID:    node.ID,
			Label: node.Label,
			Title: node.Type,
			Color: node.ColorHint,
		})
		if !legendSeen[node.Type] {
			legendSeen[node.Type] = true
			legend = append(legend, legendEntry{Label: node.Type, Color: node.ColorHint})
		}
	}

	edges := []visEdge{}
	for _, edge := range snapshot.Edges() {
		edges = append(edges, visEdge{
			From:  edge.Source,
			To:    edge.Target,
			Label: edge.Label,
		})
	}

	nodesJSON, err := json.Marshal(nodes)
	if err != nil {
		return helper.NewError("marshal nodes", err)
	}
	edgesJSON, err := json.Marshal(edges)
	if err != nil {
		return helper.NewError("marshal edges", err)
	}

	err = visTemplate.Execute(w, htmlPage{
		Title:  title,
		Nodes:  template.JS(nodesJSON),
		Edges:  template.JS(edgesJSON),
		Legend: legend,
	})
	if err != nil {
		return helper.NewError("execute template", err)
	}

	return nil
}

// WriteHTMLFile renders the snapshot to a file path
func WriteHTMLFile(path string, title string, snapshot *model.Snapshot) error {
	file, err := os.Create(path)
	if err != nil {
		return helper.NewError("create file", err)
	}
	defer file.Close()

	return WriteHTML(file, title, snapshot)
}
