package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// GraphFixture is the YAML graph format used for fixtures and the CLI
// import command:
//
//	nodes:
//	  - id: a
//	    labels: [Person]
//	    properties: {name: Alice, age: 35}
//	edges:
//	  - from: a
//	    to: b
//	    type: KNOWS
//	    properties: {weight: 1}
//
// Edges are created in file order, so parallel edges receive keys 0, 1, ...
type GraphFixture struct {
	Nodes []*Node `yaml:"nodes"`
	Edges []*Edge `yaml:"edges"`
}

// Neo4jExport is the combined Neo4j JSON export format.
type Neo4jExport struct {
	Nodes         []Neo4jNode         `json:"nodes"`
	Relationships []Neo4jRelationship `json:"relationships"`
}

// Neo4jNode is one node of a Neo4j export.
type Neo4jNode struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// Neo4jNodeRef is a node reference in the APOC relationship format.
type Neo4jNodeRef struct {
	ID string `json:"id"`
}

// Neo4jRelationship supports both flat (startNode/endNode) and APOC
// (start/end objects) layouts.
type Neo4jRelationship struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`

	StartNode string       `json:"startNode,omitempty"`
	EndNode   string       `json:"endNode,omitempty"`
	Start     Neo4jNodeRef `json:"start,omitempty"`
	End       Neo4jNodeRef `json:"end,omitempty"`
}

func (r Neo4jRelationship) startID() string {
	if r.StartNode != "" {
		return r.StartNode
	}
	return r.Start.ID
}

func (r Neo4jRelationship) endID() string {
	if r.EndNode != "" {
		return r.EndNode
	}
	return r.End.ID
}

// LoadGraphYAML decodes a GraphFixture from r and writes it into engine.
func LoadGraphYAML(r io.Reader, engine Engine) error {
	var fixture GraphFixture
	if err := yaml.NewDecoder(r).Decode(&fixture); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding YAML: %w", err)
	}
	return fixture.Apply(engine)
}

// Apply creates the fixture's nodes, then its edges, stopping at the first
// failure.
func (f *GraphFixture) Apply(engine Engine) error {
	for i, n := range f.Nodes {
		if n == nil {
			return fmt.Errorf("node %d: %w", i, ErrInvalidData)
		}
		if err := engine.CreateNode(n); err != nil {
			return fmt.Errorf("creating node %q: %w", n.ID, err)
		}
	}
	for i, e := range f.Edges {
		if e == nil {
			return fmt.Errorf("edge %d: %w", i, ErrInvalidData)
		}
		if err := engine.CreateEdge(e); err != nil {
			return fmt.Errorf("creating edge %s->%s: %w", e.StartNode, e.EndNode, err)
		}
	}
	return nil
}

// LoadFromNeo4jExport reads a combined Neo4j JSON export from path.
func LoadFromNeo4jExport(engine Engine, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	var export Neo4jExport
	if err := json.NewDecoder(file).Decode(&export); err != nil {
		return fmt.Errorf("decoding JSON: %w", err)
	}

	fixture := &GraphFixture{}
	for _, n := range export.Nodes {
		fixture.Nodes = append(fixture.Nodes, &Node{
			ID:         NodeID(n.ID),
			Labels:     n.Labels,
			Properties: n.Properties,
		})
	}
	for _, r := range export.Relationships {
		fixture.Edges = append(fixture.Edges, &Edge{
			ID:         EdgeID(r.ID),
			StartNode:  NodeID(r.startID()),
			EndNode:    NodeID(r.endID()),
			Type:       r.Type,
			Properties: r.Properties,
		})
	}
	return fixture.Apply(engine)
}

// LoadGraphFile loads path into engine, picking the format by extension:
// .json is a Neo4j export, anything else is a YAML fixture.
func LoadGraphFile(engine Engine, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadFromNeo4jExport(engine, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()
	return LoadGraphYAML(file, engine)
}
