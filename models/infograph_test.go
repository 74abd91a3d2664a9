package models

import (
	"testing"

	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/require"

	"github.com/outpace-bio/torchdrug/internal/parameters"
)

func TestInfoGraph_Embed(t *testing.T) {
	batch, input := testBatch()
	model := NewInfoGraph(testEncoder{dim: 4})
	evaluator, err := NewEvaluator(model, parameters.Params{})
	require.NoError(t, err)

	outputs, err := evaluator.Embed(batch, input)
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	outputs[OutputNodeFeature].Shape().AssertDims(7, 4)
	outputs[OutputGraphFeature].Shape().AssertDims(3, 4)

	// The test encoder pools by summing: graph 0 sums input rows 0..2.
	graphFeature := tensors.CopyFlatData[float32](outputs[OutputGraphFeature])
	require.Equal(t, []float32{1, 1, 1, 0}, graphFeature[:4])
	require.Equal(t, []float32{1, 1, 0, 1}, graphFeature[4:8])
	require.Equal(t, []float32{1, 0, 2, 1}, graphFeature[8:])
}

func TestInfoGraph_Evaluate(t *testing.T) {
	batch, input := testBatch()
	model := NewInfoGraph(testEncoder{dim: 4})
	evaluator, err := NewEvaluator(model, parameters.Params{})
	require.NoError(t, err)

	outputs, loss, metrics, err := evaluator.Evaluate(batch, input)
	require.NoError(t, err)
	outputs[OutputNodeFeature].Shape().AssertDims(7, 4)
	outputs[OutputGraphFeature].Shape().AssertDims(3, 4)

	// Default: only the graph-node term, weighted by 1.
	require.Len(t, metrics, 1)
	require.Contains(t, metrics, MetricGraphNodeMI)
	require.InDelta(t, -metrics[MetricGraphNodeMI], loss, 1e-5)
}

func TestInfoGraph_LossWeight(t *testing.T) {
	batch, input := testBatch()
	model := NewInfoGraph(testEncoder{dim: 4})
	evaluator, err := NewEvaluator(model, parameters.NewFromConfigString("infograph_loss_weight=0"))
	require.NoError(t, err)

	// With weight 0 the term is still estimated as a metric, but the loss
	// stays empty.
	_, loss, metrics, err := evaluator.Evaluate(batch, input)
	require.NoError(t, err)
	require.Contains(t, metrics, MetricGraphNodeMI)
	require.Zero(t, loss)
}

func TestInfoGraph_SeparateEncoder(t *testing.T) {
	batch, input := testBatch()
	model := NewInfoGraph(testEncoder{dim: 4})
	params := parameters.NewFromConfigString("infograph_separate_encoder,infograph_loss_weight=0.5")
	evaluator, err := NewEvaluator(model, params)
	require.NoError(t, err)

	_, loss, metrics, err := evaluator.Evaluate(batch, input)
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	require.Contains(t, metrics, MetricDistillationMI)
	require.Contains(t, metrics, MetricGraphNodeMI)
	require.InDelta(t, -0.5*(metrics[MetricDistillationMI]+metrics[MetricGraphNodeMI]), loss, 1e-5)
}

func TestInfoGraph_UnknownParams(t *testing.T) {
	model := NewInfoGraph(testEncoder{dim: 4})
	_, err := NewEvaluator(model, parameters.NewFromConfigString("no_such_parameter=3"))
	require.ErrorContains(t, err, "unknown configuration parameters")
}
