package graphs

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/graph"
)

// BatchNodes is the view of a packed batch from inside a computation graph:
// the tensors created by Batch.Inputs, fed as graph nodes.
type BatchNodes struct {
	// Input are the per-node input features, shaped [numNodes, featureDim].
	Input *graph.Node

	// NodeToGraph maps each node to its graph index, shaped [numNodes].
	NodeToGraph *graph.Node

	// EdgeSource and EdgeTarget are the packed edge endpoints (global node
	// indices), each shaped [numEdges].
	EdgeSource, EdgeTarget *graph.Node

	// NodeCounts has the per-graph node counts, shaped [numGraphs].
	NodeCounts *graph.Node
}

// FromInputs splits the graph nodes corresponding to the tensors created by
// Batch.Inputs back into a BatchNodes. It panics if the number of inputs
// doesn't match NumInputs.
func FromInputs(inputs []*graph.Node) *BatchNodes {
	if len(inputs) != NumInputs {
		exceptions.Panicf("graphs.FromInputs: expected %d inputs (see Batch.Inputs layout), got %d",
			NumInputs, len(inputs))
	}
	return &BatchNodes{
		Input:       inputs[0],
		NodeToGraph: inputs[1],
		EdgeSource:  inputs[2],
		EdgeTarget:  inputs[3],
		NodeCounts:  inputs[4],
	}
}

// NumNodes returns the static total node count of the batch.
func (b *BatchNodes) NumNodes() int { return b.Input.Shape().Dim(0) }

// NumGraphs returns the static number of graphs in the batch.
func (b *BatchNodes) NumGraphs() int { return b.NodeCounts.Shape().Dim(0) }

// FeatureDim returns the static input feature dimension.
func (b *BatchNodes) FeatureDim() int { return b.Input.Shape().Dim(1) }
