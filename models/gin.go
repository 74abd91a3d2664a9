package models

import (
	"fmt"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/layers/fnn"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/outpace-bio/torchdrug/graphs"
)

// ReadoutType selects how node states are pooled into a graph embedding.
type ReadoutType int

const (
	ReadoutSum ReadoutType = iota
	ReadoutMean
)

//go:generate go tool enumer -type=ReadoutType -trimprefix=Readout -transform=snake -values -text -json -yaml gin.go

const (
	// ParamGINNumLayers is the context hyperparameter with the number of
	// message-passing layers of the GIN encoder. Defaults to 3.
	ParamGINNumLayers = "gin_num_layers"

	// ParamGINReadout is the context hyperparameter with name of the
	// ReadoutType used to pool node states into graph embeddings ("sum" or
	// "mean"). Defaults to "sum".
	ParamGINReadout = "gin_readout"
)

// GIN is a Graph Isomorphism Network-style message-passing encoder: at each
// layer every node sums the states of its in-neighbors (following the packed
// edge arrays), adds its own state and passes the result through an MLP
// block. The graph embedding is a per-graph readout of the final node states.
//
// It is the reference Encoder of this repository -- the objectives accept any
// Encoder implementation.
type GIN struct {
	outputDim int
}

// Compile-time assert that GIN implements Encoder.
var _ Encoder = (*GIN)(nil)

// NewGIN creates a GIN encoder producing embeddings of the given dimension.
// Layer count and readout are read from the context at graph-building time,
// see ParamGINNumLayers and ParamGINReadout.
func NewGIN(outputDim int) *GIN {
	return &GIN{outputDim: outputDim}
}

// OutputDim implements Encoder.
func (e *GIN) OutputDim() int { return e.outputDim }

// BuildGraph implements Encoder.
func (e *GIN) BuildGraph(ctx *context.Context, batch *graphs.BatchNodes) EncoderOutput {
	numLayers := context.GetParamOr(ctx, ParamGINNumLayers, 3)
	activation := context.GetParamOr(ctx, activations.ParamActivation, "relu")
	readoutName := context.GetParamOr(ctx, ParamGINReadout, ReadoutSum.String())
	readout, err := ReadoutTypeString(readoutName)
	if err != nil {
		exceptions.Panicf("GIN: invalid %q hyperparameter value %q, valid values are %v",
			ParamGINReadout, readoutName, ReadoutTypeStrings())
	}

	numNodes := batch.NumNodes()
	hidden := batch.Input
	for layerIdx := range numLayers {
		// Sum the states of each node's in-neighbors.
		messages := Gather(hidden, InsertAxes(batch.EdgeSource, -1))
		aggregated := Scatter(InsertAxes(batch.EdgeTarget, -1), messages,
			shapes.Make(dtypes.Float32, numNodes, hidden.Shape().Dim(1)))
		hidden = fnn.New(ctx.In(fmt.Sprintf("layer_%d", layerIdx)), Add(hidden, aggregated), e.outputDim).
			NumHiddenLayers(1, e.outputDim).
			Activation(activations.FromName(activation)).Done()
	}
	hidden.AssertDims(numNodes, e.outputDim)

	numGraphs := batch.NumGraphs()
	graphFeature := Scatter(InsertAxes(batch.NodeToGraph, -1), hidden,
		shapes.Make(dtypes.Float32, numGraphs, e.outputDim))
	if readout == ReadoutMean {
		counts := ConvertDType(batch.NodeCounts, dtypes.Float32)
		graphFeature = Div(graphFeature, InsertAxes(counts, -1))
	}
	graphFeature.AssertDims(numGraphs, e.outputDim)

	return EncoderOutput{NodeFeature: hidden, GraphFeature: graphFeature}
}
