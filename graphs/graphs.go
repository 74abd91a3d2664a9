// Package graphs implements the packed batch abstraction consumed by the
// self-supervised models: a set of graphs concatenated into flat node and edge
// arrays, with a node-to-graph assignment array mapping every node to the
// graph that contains it.
//
// A Batch lives on the host side. Batch.Inputs materializes it as tensors in
// a fixed layout, and BatchNodes is the corresponding view from inside a
// computation graph (see FromInputs).
package graphs

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Graph is a single graph: a node count and a list of directed edges given as
// (source, target) pairs of local node indices.
type Graph struct {
	NumNodes int
	Edges    [][2]int32
}

// Batch packs a set of graphs into flat arrays.
//
// Nodes of all graphs are concatenated, and edge endpoints are rewritten to
// global node indices. Input features are optional and attached with
// WithInput; a Batch is never mutated in place, only copied.
type Batch struct {
	// NodeToGraph maps each node index to the index of its graph. Length is
	// the total node count.
	NodeToGraph []int32

	// NodeCounts has the number of nodes of each graph. Length is the number
	// of graphs in the batch.
	NodeCounts []int32

	// EdgeSource and EdgeTarget are the packed edge endpoints, as global node
	// indices.
	EdgeSource, EdgeTarget []int32

	// Input holds per-node input features, one row per node. It is nil until
	// attached with WithInput.
	Input [][]float32
}

// Pack concatenates the given graphs into a Batch.
//
// It panics if an edge refers to a node outside its graph.
func Pack(gs ...*Graph) *Batch {
	b := &Batch{NodeCounts: make([]int32, len(gs))}
	var offset int32
	for graphIdx, g := range gs {
		b.NodeCounts[graphIdx] = int32(g.NumNodes)
		for range g.NumNodes {
			b.NodeToGraph = append(b.NodeToGraph, int32(graphIdx))
		}
		for _, edge := range g.Edges {
			if edge[0] < 0 || edge[0] >= int32(g.NumNodes) || edge[1] < 0 || edge[1] >= int32(g.NumNodes) {
				exceptions.Panicf("graphs.Pack: graph #%d with %d nodes has out-of-range edge (%d, %d)",
					graphIdx, g.NumNodes, edge[0], edge[1])
			}
			b.EdgeSource = append(b.EdgeSource, offset+edge[0])
			b.EdgeTarget = append(b.EdgeTarget, offset+edge[1])
		}
		offset += int32(g.NumNodes)
	}
	return b
}

// NumGraphs returns the number of graphs packed in the batch.
func (b *Batch) NumGraphs() int { return len(b.NodeCounts) }

// NumNodes returns the total node count across all graphs of the batch.
func (b *Batch) NumNodes() int { return len(b.NodeToGraph) }

// NumEdges returns the total edge count across all graphs of the batch.
func (b *Batch) NumEdges() int { return len(b.EdgeSource) }

// WithInput returns a shallow copy of the batch with the given input features
// attached. The structural arrays are shared with the receiver.
func (b *Batch) WithInput(input [][]float32) *Batch {
	newBatch := *b
	newBatch.Input = input
	return &newBatch
}

// NumInputs is the number of tensors created by Batch.Inputs, and expected
// back by FromInputs.
const NumInputs = 5

// Inputs materializes the batch as tensors, in the layout:
//
//	[input [V, d] float32, nodeToGraph [V] int32, edgeSource [E] int32,
//	 edgeTarget [E] int32, nodeCounts [n] int32]
//
// It requires input features to have been attached, with one row per node and
// all rows of the same length.
func (b *Batch) Inputs() ([]*tensors.Tensor, error) {
	if b.Input == nil {
		return nil, errors.New("batch has no input features attached, see Batch.WithInput")
	}
	numNodes := b.NumNodes()
	if len(b.Input) != numNodes {
		return nil, errors.Errorf("batch has %d nodes, but input features have %d rows", numNodes, len(b.Input))
	}
	featureDim := 0
	if numNodes > 0 {
		featureDim = len(b.Input[0])
	}

	input := tensors.FromShape(shapes.Make(dtypes.Float32, numNodes, featureDim))
	tensors.MutableFlatData(input, func(flat []float32) {
		for nodeIdx, row := range b.Input {
			copy(flat[nodeIdx*featureDim:(nodeIdx+1)*featureDim], row)
		}
	})
	nodeToGraph := tensors.FromShape(shapes.Make(dtypes.Int32, numNodes))
	tensors.MutableFlatData(nodeToGraph, func(flat []int32) {
		copy(flat, b.NodeToGraph)
	})
	edgeSource := tensors.FromShape(shapes.Make(dtypes.Int32, b.NumEdges()))
	tensors.MutableFlatData(edgeSource, func(flat []int32) {
		copy(flat, b.EdgeSource)
	})
	edgeTarget := tensors.FromShape(shapes.Make(dtypes.Int32, b.NumEdges()))
	tensors.MutableFlatData(edgeTarget, func(flat []int32) {
		copy(flat, b.EdgeTarget)
	})
	nodeCounts := tensors.FromShape(shapes.Make(dtypes.Int32, b.NumGraphs()))
	tensors.MutableFlatData(nodeCounts, func(flat []int32) {
		copy(flat, b.NodeCounts)
	})
	return []*tensors.Tensor{input, nodeToGraph, edgeSource, edgeTarget, nodeCounts}, nil
}
