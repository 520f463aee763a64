package graph

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
)

// GraphMLDocument is the root element of a GraphML export.
type GraphMLDocument struct {
	XMLName xml.Name     `xml:"graphml"`
	XMLNS   string       `xml:"xmlns,attr"`
	Keys    []GraphMLKey `xml:"key"`
	Graph   GraphMLGraph `xml:"graph"`
}

// GraphMLKey declares one attribute type carried by nodes or edges.
type GraphMLKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

// GraphMLGraph holds the exported nodes and edges.
type GraphMLGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []GraphMLNode `xml:"node"`
	Edges       []GraphMLEdge `xml:"edge"`
}

// GraphMLNode is one exported entity.
type GraphMLNode struct {
	ID   string        `xml:"id,attr"`
	Data []GraphMLData `xml:"data"`
}

// GraphMLEdge is one exported triple.
type GraphMLEdge struct {
	ID     string        `xml:"id,attr"`
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []GraphMLData `xml:"data"`
}

// GraphMLData is a single key/value attribute on a node or edge.
type GraphMLData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// ExportGraphML writes a tenant's graph to GraphML.
func (g *GraphStore) ExportGraphML(ctx context.Context, tenantID string, writer io.Writer) error {
	entities, err := g.GetAllEntities(ctx, tenantID, nil)
	if err != nil {
		return fmt.Errorf("failed to get entities: %w", err)
	}

	allTriples, err := g.allTriples(ctx, tenantID, entities)
	if err != nil {
		return err
	}

	doc := GraphMLDocument{
		XMLNS: "http://graphml.graphdrawing.org/xmlns",
		Keys: []GraphMLKey{
			{ID: "d0", For: "node", AttrName: "name", AttrType: "string"},
			{ID: "d1", For: "node", AttrName: "type", AttrType: "string"},
			{ID: "d2", For: "node", AttrName: "importance", AttrType: "double"},
			{ID: "d3", For: "edge", AttrName: "predicate", AttrType: "string"},
			{ID: "d4", For: "edge", AttrName: "confidence", AttrType: "double"},
		},
		Graph: GraphMLGraph{
			ID:          "G",
			EdgeDefault: "directed",
			Nodes:       make([]GraphMLNode, 0, len(entities)),
			Edges:       make([]GraphMLEdge, 0, len(allTriples)),
		},
	}

	for _, e := range entities {
		doc.Graph.Nodes = append(doc.Graph.Nodes, GraphMLNode{
			ID: e.ID,
			Data: []GraphMLData{
				{Key: "d0", Value: e.Name},
				{Key: "d1", Value: e.Type},
				{Key: "d2", Value: fmt.Sprintf("%f", e.Importance)},
			},
		})
	}

	for _, tr := range allTriples {
		doc.Graph.Edges = append(doc.Graph.Edges, GraphMLEdge{
			ID:     tr.ID,
			Source: tr.Subject,
			Target: tr.Object,
			Data: []GraphMLData{
				{Key: "d3", Value: tr.Predicate},
				{Key: "d4", Value: fmt.Sprintf("%f", tr.Confidence)},
			},
		})
	}

	encoder := xml.NewEncoder(writer)
	encoder.Indent("", "  ")
	if _, err := writer.Write([]byte(xml.Header)); err != nil {
		return err
	}
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode GraphML: %w", err)
	}
	return nil
}

// allTriples collects the deduplicated out-edges of every given entity.
func (g *GraphStore) allTriples(ctx context.Context, tenantID string, entities []*Entity) ([]*GraphTriple, error) {
	var all []*GraphTriple
	seen := map[string]bool{}
	for _, e := range entities {
		triples, err := g.GetTriples(ctx, tenantID, e.ID, "out")
		if err != nil {
			continue
		}
		for _, tr := range triples {
			if !seen[tr.ID] {
				seen[tr.ID] = true
				all = append(all, tr)
			}
		}
	}
	return all, nil
}

// ExportFormat names a supported export encoding.
type ExportFormat string

const (
	FormatGraphML ExportFormat = "graphml"
	FormatJSON    ExportFormat = "json"
)

// ExportJSON writes a tenant's graph as JSON: entities, triples, and counts.
func (g *GraphStore) ExportJSON(ctx context.Context, tenantID string, writer io.Writer) error {
	entities, err := g.GetAllEntities(ctx, tenantID, nil)
	if err != nil {
		return fmt.Errorf("failed to get entities: %w", err)
	}

	allTriples, err := g.allTriples(ctx, tenantID, entities)
	if err != nil {
		return err
	}

	graphData := map[string]interface{}{
		"entities": entities,
		"triples":  allTriples,
		"metadata": map[string]interface{}{
			"entity_count": len(entities),
			"triple_count": len(allTriples),
			"format":       "rae-graph-v1",
		},
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(graphData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ImportJSON loads entities and triples previously written by ExportJSON,
// scoping everything to tenantID regardless of what the payload claims.
func (g *GraphStore) ImportJSON(ctx context.Context, tenantID string, reader io.Reader) error {
	var graphData struct {
		Entities []*Entity      `json:"entities"`
		Triples  []*GraphTriple `json:"triples"`
	}

	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(&graphData); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, e := range graphData.Entities {
		e.TenantID = tenantID
	}
	for _, tr := range graphData.Triples {
		tr.TenantID = tenantID
	}

	if len(graphData.Entities) > 0 {
		if _, err := g.UpsertEntitiesBatch(ctx, tenantID, graphData.Entities); err != nil {
			return fmt.Errorf("failed to import entities: %w", err)
		}
	}
	if len(graphData.Triples) > 0 {
		if _, err := g.UpsertTriplesBatch(ctx, tenantID, graphData.Triples); err != nil {
			return fmt.Errorf("failed to import triples: %w", err)
		}
	}

	return nil
}

// Export writes a tenant's graph in the requested format.
func (g *GraphStore) Export(ctx context.Context, tenantID string, writer io.Writer, format ExportFormat) error {
	switch format {
	case FormatGraphML:
		return g.ExportGraphML(ctx, tenantID, writer)
	case FormatJSON:
		return g.ExportJSON(ctx, tenantID, writer)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

// Import reads a tenant's graph from the requested format.
func (g *GraphStore) Import(ctx context.Context, tenantID string, reader io.Reader, format ExportFormat) error {
	switch format {
	case FormatJSON:
		return g.ImportJSON(ctx, tenantID, reader)
	default:
		return fmt.Errorf("unsupported import format: %s", format)
	}
}
