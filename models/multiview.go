package models

import (
	"math/rand"
	"sync"
	"time"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/layers/fnn"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"

	"github.com/outpace-bio/torchdrug/graphs"
	"github.com/outpace-bio/torchdrug/layers"
)

const (
	// ParamTau is the context hyperparameter with the temperature of the
	// InfoNCE loss: similarity scores are divided by it before the softmax
	// normalization. Defaults to 0.07.
	ParamTau = "contrast_tau"

	// ParamProjectionLayers is the context hyperparameter with the number of
	// layers of the shared projection head applied to the graph embeddings
	// before scoring. Defaults to 2.
	ParamProjectionLayers = "contrast_num_mlp_layers"
)

// MetricMultiviewMI is the metric name recorded by MultiviewContrast.
const MetricMultiviewMI = "multiview mutual information"

// MultiviewContrast contrasts two randomly augmented views of the same
// graphs, as proposed in "Protein Representation Learning by Geometric
// Structure Pretraining" (https://arxiv.org/pdf/2203.06125.pdf).
//
// Each view picks one cropping and one noise transform uniformly at random,
// applies crop then noise, and runs the shared encoder. The loss is an
// InfoNCE objective over the pairwise cosine similarities of the two views'
// projected graph embeddings: same-index pairs are the positives.
//
// Hyperparameters are read from the model context: ParamTau,
// ParamProjectionLayers and the activation.
type MultiviewContrast struct {
	ctx                   *context.Context
	encoder               Encoder
	cropFuncs, noiseFuncs []graphs.Transform

	// muRng guards rng, so views can be sampled from concurrent goroutines.
	muRng sync.Mutex
	rng   *rand.Rand
}

// Compile-time assert that MultiviewContrast implements Model.
var _ Model = (*MultiviewContrast)(nil)

// NewMultiviewContrast creates a MultiviewContrast objective over the given
// shared encoder and augmentation function lists, with a fresh context
// initialized with the default hyperparameters.
//
// Both lists must be non-empty by the time views are sampled -- sampling from
// an empty list fails before any encoder work. The randomness source defaults
// to a time-seeded one; inject a fixed seed with WithRand for reproducible
// sampling.
func NewMultiviewContrast(encoder Encoder, cropFuncs, noiseFuncs []graphs.Transform) *MultiviewContrast {
	m := &MultiviewContrast{
		ctx:        context.New(),
		encoder:    encoder,
		cropFuncs:  cropFuncs,
		noiseFuncs: noiseFuncs,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	m.ctx.RngStateReset()
	m.ctx.SetParams(map[string]any{
		activations.ParamActivation: "relu",
		ParamProjectionLayers:       2,
		ParamTau:                    0.07,
	})
	m.ctx = m.ctx.Checked(false)
	return m
}

// WithRand sets the randomness source used to sample the augmentation
// functions, and returns the model for chaining.
func (m *MultiviewContrast) WithRand(rng *rand.Rand) *MultiviewContrast {
	m.rng = rng
	return m
}

// Context implements Model.
func (m *MultiviewContrast) Context() *context.Context { return m.ctx }

// SampleViews creates the two augmented views of the batch: independently for
// each view it samples one crop and one noise transform uniformly at random
// and applies crop then noise.
//
// The batch must have input features attached. It fails if either function
// list is empty.
func (m *MultiviewContrast) SampleViews(batch *graphs.Batch) (view1, view2 *graphs.Batch, err error) {
	views := make([]*graphs.Batch, 2)
	for viewIdx := range views {
		m.muRng.Lock()
		cropFn, err := graphs.Sample(m.rng, m.cropFuncs)
		if err != nil {
			m.muRng.Unlock()
			return nil, nil, errors.WithMessagef(err, "sampling the crop function of view %d", viewIdx+1)
		}
		noiseFn, err := graphs.Sample(m.rng, m.noiseFuncs)
		m.muRng.Unlock()
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "sampling the noise function of view %d", viewIdx+1)
		}
		views[viewIdx] = noiseFn.Transform(cropFn.Transform(batch))
	}
	return views[0], views[1], nil
}

// CreateInputs implements Model: it attaches the input features to a shallow
// copy of the batch, samples the two augmented views, and materializes the
// tensors of both, view 1 first.
func (m *MultiviewContrast) CreateInputs(batch *graphs.Batch, input [][]float32) ([]*tensors.Tensor, error) {
	view1, view2, err := m.SampleViews(batch.WithInput(input))
	if err != nil {
		return nil, err
	}
	inputs, err := view1.Inputs()
	if err != nil {
		return nil, errors.WithMessage(err, "materializing view 1")
	}
	inputs2, err := view2.Inputs()
	if err != nil {
		return nil, errors.WithMessage(err, "materializing view 2")
	}
	return append(inputs, inputs2...), nil
}

// BuildGraph implements Model.
//
// It runs the shared encoder over both views and returns their node and graph
// features under the "...1"/"...2" output names. With a non-nil acc it also
// projects both views' graph embeddings through a shared head, scores every
// cross-view pair by cosine similarity scaled by 1/tau, and subtracts the
// InfoNCE estimate -- mean over samples of the positive score minus the
// log-sum-exp of its row -- from the loss, unconditionally.
func (m *MultiviewContrast) BuildGraph(ctx *context.Context, inputs []*Node, acc *Accumulator) map[string]*Node {
	if len(inputs) != 2*graphs.NumInputs {
		exceptions.Panicf("MultiviewContrast.BuildGraph: expected %d inputs (two views), got %d",
			2*graphs.NumInputs, len(inputs))
	}
	view1 := graphs.FromInputs(inputs[:graphs.NumInputs])
	view2 := graphs.FromInputs(inputs[graphs.NumInputs:])
	numGraphs := view1.NumGraphs()
	if view2.NumGraphs() != numGraphs {
		exceptions.Panicf("MultiviewContrast.BuildGraph: views have different graph counts (%d vs %d), "+
			"augmentations must preserve the batch's graph count", numGraphs, view2.NumGraphs())
	}

	// Shared encoder: both passes build under the same scope.
	output1 := m.encoder.BuildGraph(ctx.In("encoder"), view1)
	output2 := m.encoder.BuildGraph(ctx.In("encoder"), view2)

	if acc != nil {
		tau := context.GetParamOr(ctx, ParamTau, 0.07)
		numMLPLayers := context.GetParamOr(ctx, ParamProjectionLayers, 2)
		activation := context.GetParamOr(ctx, activations.ParamActivation, "relu")
		dim := m.encoder.OutputDim()

		// Shared projection head.
		project := func(feature *Node) *Node {
			return fnn.New(ctx.In("projection"), feature, dim).
				NumHiddenLayers(max(numMLPLayers-1, 0), dim).
				Activation(activations.FromName(activation)).Done()
		}
		x := project(output1.GraphFeature)
		y := project(output2.GraphFeature)

		// Pairwise cosine similarity of every view-1 embedding against every
		// view-2 embedding, scaled by the inverse temperature. Same-index
		// pairs are the positives.
		score := layers.CosineScores(x, y, tau)
		score.AssertDims(numGraphs, numGraphs)
		mutualInfo := layers.InfoNCE(score)
		acc.SetMetric(MetricMultiviewMI, mutualInfo)
		acc.AddLoss(Neg(mutualInfo))
	}

	return map[string]*Node{
		OutputNodeFeature1:  output1.NodeFeature,
		OutputGraphFeature1: output1.GraphFeature,
		OutputNodeFeature2:  output2.NodeFeature,
		OutputGraphFeature2: output2.GraphFeature,
	}
}
