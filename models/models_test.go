package models

import (
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/outpace-bio/torchdrug/graphs"

	_ "github.com/gomlx/gomlx/backends/default"
)

// testEncoder is a deterministic Encoder with no learned variables: node
// features pass through unchanged and graph features are their per-graph
// sums. Requires the input feature dimension to equal dim.
type testEncoder struct {
	dim int
}

func (e testEncoder) OutputDim() int { return e.dim }

func (e testEncoder) BuildGraph(ctx *context.Context, batch *graphs.BatchNodes) EncoderOutput {
	pooled := graph.Scatter(graph.InsertAxes(batch.NodeToGraph, -1), batch.Input,
		shapes.Make(dtypes.Float32, batch.NumGraphs(), batch.FeatureDim()))
	return EncoderOutput{NodeFeature: batch.Input, GraphFeature: pooled}
}

// testBatch builds 3 graphs with 3+2+2=7 nodes and feature dimension 4.
func testBatch() (*graphs.Batch, [][]float32) {
	batch := graphs.Pack(
		&graphs.Graph{NumNodes: 3, Edges: [][2]int32{{0, 1}, {1, 2}, {2, 0}}},
		&graphs.Graph{NumNodes: 2, Edges: [][2]int32{{0, 1}, {1, 0}}},
		&graphs.Graph{NumNodes: 2, Edges: [][2]int32{{0, 1}}},
	)
	input := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
		{1, 1, 0, 0},
		{0, 0, 1, 1},
		{1, 0, 1, 0},
	}
	return batch, input
}
