package models

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outpace-bio/torchdrug/graphs"
	"github.com/outpace-bio/torchdrug/internal/parameters"
)

func identityTransforms() []graphs.Transform {
	return []graphs.Transform{graphs.Identity{}}
}

func TestMultiviewContrast_SampleViews(t *testing.T) {
	batch, input := testBatch()
	rng := rand.New(rand.NewSource(42))

	model := NewMultiviewContrast(testEncoder{dim: 4}, nil, identityTransforms()).WithRand(rng)
	_, err := model.CreateInputs(batch, input)
	require.ErrorContains(t, err, "crop function of view 1")

	model = NewMultiviewContrast(testEncoder{dim: 4}, identityTransforms(), nil).WithRand(rng)
	_, err = model.CreateInputs(batch, input)
	require.ErrorContains(t, err, "noise function of view 1")

	model = NewMultiviewContrast(testEncoder{dim: 4}, identityTransforms(), identityTransforms()).WithRand(rng)
	view1, view2, err := model.SampleViews(batch.WithInput(input))
	require.NoError(t, err)
	require.Equal(t, batch.NumGraphs(), view1.NumGraphs())
	require.Equal(t, batch.NumGraphs(), view2.NumGraphs())
}

func TestMultiviewContrast_CreateInputs(t *testing.T) {
	batch, input := testBatch()
	model := NewMultiviewContrast(testEncoder{dim: 4}, identityTransforms(), identityTransforms()).
		WithRand(rand.New(rand.NewSource(42)))
	inputs, err := model.CreateInputs(batch, input)
	require.NoError(t, err)
	require.Len(t, inputs, 2*graphs.NumInputs)
	inputs[0].Shape().AssertDims(7, 4)
	inputs[graphs.NumInputs].Shape().AssertDims(7, 4)
}

func TestMultiviewContrast_Evaluate(t *testing.T) {
	batch, input := testBatch()
	model := NewMultiviewContrast(testEncoder{dim: 4}, identityTransforms(), identityTransforms()).
		WithRand(rand.New(rand.NewSource(42)))
	evaluator, err := NewEvaluator(model, parameters.Params{})
	require.NoError(t, err)

	outputs, loss, metrics, err := evaluator.Evaluate(batch, input)
	require.NoError(t, err)
	require.Len(t, outputs, 4)
	outputs[OutputNodeFeature1].Shape().AssertDims(7, 4)
	outputs[OutputGraphFeature1].Shape().AssertDims(3, 4)
	outputs[OutputNodeFeature2].Shape().AssertDims(7, 4)
	outputs[OutputGraphFeature2].Shape().AssertDims(3, 4)

	// The loss is the negated InfoNCE bound, which lives in [-log(n), 0] for
	// a batch of n graphs.
	require.Contains(t, metrics, MetricMultiviewMI)
	require.InDelta(t, -metrics[MetricMultiviewMI], loss, 1e-6)
	require.GreaterOrEqual(t, float64(loss), -1e-5)
	require.LessOrEqual(t, float64(loss), math.Log(3)+1e-5)
}

func TestMultiviewContrast_Tau(t *testing.T) {
	batch, input := testBatch()
	model := NewMultiviewContrast(testEncoder{dim: 4}, identityTransforms(), identityTransforms()).
		WithRand(rand.New(rand.NewSource(42)))
	evaluator, err := NewEvaluator(model, parameters.NewFromConfigString("contrast_tau=1000000"))
	require.NoError(t, err)

	// With a huge temperature all scores collapse to ~0, so the bound
	// degenerates to -log(n) and the loss to log(n).
	_, loss, _, err := evaluator.Evaluate(batch, input)
	require.NoError(t, err)
	require.InDelta(t, math.Log(3), float64(loss), 1e-3)
}
