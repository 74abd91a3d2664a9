package models

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/outpace-bio/torchdrug/graphs"
	"github.com/outpace-bio/torchdrug/layers"
)

const (
	// ParamLossWeight is the context hyperparameter with the weight applied
	// to InfoGraph's mutual information loss terms. When <= 0 the terms are
	// still estimated and recorded as metrics, but don't contribute to the
	// loss. Defaults to 1.0.
	ParamLossWeight = "infograph_loss_weight"

	// ParamSeparateEncoder is the context hyperparameter selecting whether
	// the unsupervised branch runs on a separate copy of the encoder, tied to
	// the primary one by a transfer mutual information term. Defaults to
	// false.
	ParamSeparateEncoder = "infograph_separate_encoder"
)

// Metric names recorded by InfoGraph.
const (
	MetricDistillationMI = "distillation mutual information"
	MetricGraphNodeMI    = "graph-node mutual information"
)

// InfoGraph maximizes the mutual information between graph-level and
// node-level representations of the same graph, as proposed in
// "InfoGraph: Unsupervised and Semi-supervised Graph-Level Representation
// Learning via Mutual Information Maximization"
// (https://arxiv.org/pdf/1908.01000.pdf).
//
// It wraps an encoder: the forward pass returns the encoder output unchanged,
// and, when given an Accumulator, estimates the graph-node mutual information
// (and optionally a transfer term between two encoder copies, see
// ParamSeparateEncoder) and subtracts the weighted estimates from the loss.
//
// Hyperparameters are read from the model context: ParamLossWeight,
// ParamSeparateEncoder, layers.ParamNumMLPLayers and the activation.
type InfoGraph struct {
	ctx     *context.Context
	encoder Encoder
}

// Compile-time assert that InfoGraph implements Model.
var _ Model = (*InfoGraph)(nil)

// NewInfoGraph creates an InfoGraph objective over the given encoder, with a
// fresh context initialized with the default hyperparameters.
func NewInfoGraph(encoder Encoder) *InfoGraph {
	m := &InfoGraph{ctx: context.New(), encoder: encoder}
	m.ctx.RngStateReset()
	m.ctx.SetParams(map[string]any{
		activations.ParamActivation: "relu",
		layers.ParamNumMLPLayers:    2,
		ParamLossWeight:             1.0,
		ParamSeparateEncoder:        false,
	})
	m.ctx = m.ctx.Checked(false)
	return m
}

// Context implements Model.
func (m *InfoGraph) Context() *context.Context { return m.ctx }

// CreateInputs implements Model: it attaches the input features to a shallow
// copy of the batch and materializes the tensors.
func (m *InfoGraph) CreateInputs(batch *graphs.Batch, input [][]float32) ([]*tensors.Tensor, error) {
	return batch.WithInput(input).Inputs()
}

// BuildGraph implements Model.
//
// It returns the primary encoder's node and graph features. With a non-nil
// acc, it additionally estimates the mutual information terms: each estimate
// is always recorded as a metric, and subtracted from the loss (scaled by
// ParamLossWeight) only when the weight is positive.
func (m *InfoGraph) BuildGraph(ctx *context.Context, inputs []*Node, acc *Accumulator) map[string]*Node {
	batch := graphs.FromInputs(inputs)
	output := m.encoder.BuildGraph(ctx.In("encoder"), batch)

	if acc != nil {
		g := batch.Input.Graph()
		lossWeight := context.GetParamOr(ctx, ParamLossWeight, 1.0)
		numMLPLayers := context.GetParamOr(ctx, layers.ParamNumMLPLayers, 2)
		activation := context.GetParamOr(ctx, activations.ParamActivation, "relu")

		unsupervised := output
		if context.GetParamOr(ctx, ParamSeparateEncoder, false) {
			// Independent encoder copy: same builder, different variable scope.
			unsupervised = m.encoder.BuildGraph(ctx.In("unsupervised"), batch)
			mutualInfo := layers.MutualInformation(ctx.In("transfer_mi"),
				output.GraphFeature, unsupervised.GraphFeature).
				NumMLPLayers(numMLPLayers).Activation(activation).Done()
			acc.SetMetric(MetricDistillationMI, mutualInfo)
			if lossWeight > 0 {
				acc.AddLoss(Neg(MulScalar(mutualInfo, lossWeight)))
			}
		}

		// Positive pairs: each node with the graph that contains it.
		nodeOrdinals := IotaFull(g, shapes.Make(dtypes.Int32, batch.NumNodes()))
		pairIndex := Stack([]*Node{batch.NodeToGraph, nodeOrdinals}, -1)
		mutualInfo := layers.MutualInformation(ctx.In("unsupervised_mi"),
			unsupervised.GraphFeature, unsupervised.NodeFeature).
			PairIndex(pairIndex).
			NumMLPLayers(numMLPLayers).Activation(activation).Done()
		acc.SetMetric(MetricGraphNodeMI, mutualInfo)
		if lossWeight > 0 {
			acc.AddLoss(Neg(MulScalar(mutualInfo, lossWeight)))
		}
	}

	return map[string]*Node{
		OutputNodeFeature:  output.NodeFeature,
		OutputGraphFeature: output.GraphFeature,
	}
}
