package models

import (
	"testing"

	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/require"

	"github.com/outpace-bio/torchdrug/graphs"
	"github.com/outpace-bio/torchdrug/internal/generics"
	"github.com/outpace-bio/torchdrug/internal/parameters"
)

func TestGIN_Embed(t *testing.T) {
	batch, input := testBatch()
	model := NewInfoGraph(NewGIN(8))
	evaluator, err := NewEvaluator(model, parameters.Params{})
	require.NoError(t, err)

	outputs, err := evaluator.Embed(batch, input)
	require.NoError(t, err)
	outputs[OutputNodeFeature].Shape().AssertDims(7, 8)
	outputs[OutputGraphFeature].Shape().AssertDims(3, 8)
}

// Two graphs with identical structure and features must get identical
// embeddings: the layers are shared across the whole batch.
func TestGIN_DuplicateGraphs(t *testing.T) {
	triangle := &graphs.Graph{NumNodes: 3, Edges: [][2]int32{{0, 1}, {1, 2}, {2, 0}}}
	batch := graphs.Pack(triangle, triangle)
	input := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
	model := NewInfoGraph(NewGIN(8))
	evaluator, err := NewEvaluator(model, parameters.Params{})
	require.NoError(t, err)

	outputs, err := evaluator.Embed(batch, input)
	require.NoError(t, err)
	graphFeature := tensors.CopyFlatData[float32](outputs[OutputGraphFeature])
	require.Len(t, graphFeature, 16)
	require.InDeltaSlice(t, graphFeature[:8], graphFeature[8:], 1e-5)
}

// With zero message-passing layers the encoder has no variables, so readouts
// are exactly the per-graph sums (and means) of the input features.
func TestGIN_Readout(t *testing.T) {
	batch, input := testBatch()
	inputsT, err := batch.WithInput(input).Inputs()
	require.NoError(t, err)
	inputsAny := generics.SliceMap(inputsT, func(t *tensors.Tensor) any { return t })

	ctx := context.New().Checked(false)
	ctx.RngStateFromSeed(42)
	ctx.SetParam(ParamGINNumLayers, 0)
	backend := graphtest.BuildTestBackend()
	outputs := context.ExecOnceN(backend, ctx, func(ctx *context.Context, inputs []*graph.Node) []*graph.Node {
		batch := graphs.FromInputs(inputs)
		ctxMean := ctx.In("mean")
		ctxMean.SetParam(ParamGINReadout, ReadoutMean.String())
		sum := NewGIN(4).BuildGraph(ctx.In("sum"), batch)
		mean := NewGIN(4).BuildGraph(ctxMean, batch)
		return []*graph.Node{sum.GraphFeature, mean.GraphFeature}
	}, inputsAny...)

	wantSum := []float32{
		1, 1, 1, 0,
		1, 1, 0, 1,
		1, 0, 2, 1,
	}
	wantMean := []float32{
		1. / 3, 1. / 3, 1. / 3, 0,
		0.5, 0.5, 0, 0.5,
		0.5, 0, 1, 0.5,
	}
	require.InDeltaSlice(t, wantSum, tensors.CopyFlatData[float32](outputs[0]), 1e-6)
	require.InDeltaSlice(t, wantMean, tensors.CopyFlatData[float32](outputs[1]), 1e-6)
}

func TestGIN_InvalidReadout(t *testing.T) {
	batch, input := testBatch()
	inputsT, err := batch.WithInput(input).Inputs()
	require.NoError(t, err)
	inputsAny := generics.SliceMap(inputsT, func(t *tensors.Tensor) any { return t })

	ctx := context.New().Checked(false)
	ctx.RngStateFromSeed(42)
	ctx.SetParam(ParamGINReadout, "median")
	backend := graphtest.BuildTestBackend()
	require.Panics(t, func() {
		context.ExecOnce(backend, ctx, func(ctx *context.Context, inputs []*graph.Node) *graph.Node {
			return NewGIN(4).BuildGraph(ctx, graphs.FromInputs(inputs)).GraphFeature
		}, inputsAny...)
	})
}
