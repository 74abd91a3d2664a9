// Package layers implements the learned scoring layers used by the
// self-supervised models in this repository.
package layers

import (
	"math"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/layers/fnn"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
)

// ParamNumMLPLayers is the context hyperparameter with the default number of
// MLP layers of each projection head of the mutual information estimator.
// Defaults to 2.
const ParamNumMLPLayers = "mi_num_mlp_layers"

// MutualInformation estimates a Jensen-Shannon lower bound of the mutual
// information between the two embedding sets x, shaped [numX, dim], and y,
// shaped [numY, dim].
//
// Both sides are projected through separate MLP heads (variables created in
// the scopes "x_mlp" and "y_mlp" of ctx), and every (x row, y row)
// combination is scored with a dot product. Positive pairs -- the diagonal by
// default, or the ones given with PairIndex -- are pulled up, and everything
// else is pushed down:
//
//	mi = -mean(softplus'(-score[positive])) - mean(softplus'(score[negative]))
//
// where softplus' is the softplus shifted to be 0 at 0.
//
// The returned configuration can be further customized, and the estimate is
// built by calling Done.
func MutualInformation(ctx *context.Context, x, y *Node) *MutualInformationConfig {
	return &MutualInformationConfig{
		ctx:          ctx,
		x:            x,
		y:            y,
		numMLPLayers: context.GetParamOr(ctx, ParamNumMLPLayers, 2),
	}
}

// MutualInformationConfig is created with MutualInformation, configured with
// its methods, and finalized with Done.
type MutualInformationConfig struct {
	ctx          *context.Context
	x, y         *Node
	pairIndex    *Node
	numMLPLayers int
	activation   string
}

// NumMLPLayers sets the number of layers of each MLP projection head.
// It defaults to the ParamNumMLPLayers context hyperparameter.
func (c *MutualInformationConfig) NumMLPLayers(numLayers int) *MutualInformationConfig {
	c.numMLPLayers = numLayers
	return c
}

// Activation sets the activation of the MLP projection heads by name
// (e.g. "relu"). If unset, the heads use the context's default activation.
func (c *MutualInformationConfig) Activation(activation string) *MutualInformationConfig {
	c.activation = activation
	return c
}

// PairIndex sets the positive pairs of the estimate: an int32 node shaped
// [numPairs, 2], each row an (x row, y row) pair. All other combinations are
// treated as negatives.
//
// Without it, positives default to the diagonal, which requires x and y to
// have the same number of rows.
func (c *MutualInformationConfig) PairIndex(pairs *Node) *MutualInformationConfig {
	c.pairIndex = pairs
	return c
}

// Done builds the estimate and returns it as a scalar node.
func (c *MutualInformationConfig) Done() *Node {
	x, y := c.x, c.y
	g := x.Graph()
	if x.Rank() != 2 || y.Rank() != 2 {
		exceptions.Panicf("layers.MutualInformation: x and y must be rank-2, got shapes %s and %s",
			x.Shape(), y.Shape())
	}
	if x.Shape().Dim(1) != y.Shape().Dim(1) {
		exceptions.Panicf("layers.MutualInformation: x and y must have the same embedding dimension, got shapes %s and %s",
			x.Shape(), y.Shape())
	}
	numX, numY := x.Shape().Dim(0), y.Shape().Dim(0)
	dim := x.Shape().Dim(1)

	numHidden := max(c.numMLPLayers-1, 0)
	xHead := fnn.New(c.ctx.In("x_mlp"), x, dim).NumHiddenLayers(numHidden, dim)
	yHead := fnn.New(c.ctx.In("y_mlp"), y, dim).NumHiddenLayers(numHidden, dim)
	if c.activation != "" {
		xHead = xHead.Activation(activations.FromName(c.activation))
		yHead = yHead.Activation(activations.FromName(c.activation))
	}
	x, y = xHead.Done(), yHead.Done()

	score := MatMul(x, Transpose(y, 0, 1))
	score.AssertDims(numX, numY)

	var positive *Node
	if c.pairIndex == nil {
		if numX != numY {
			exceptions.Panicf("layers.MutualInformation: without PairIndex the diagonal is used as positives, "+
				"which requires x and y to have the same number of rows, got %d and %d", numX, numY)
		}
		positive = Diagonal(g, numX)
	} else {
		numPairs := c.pairIndex.Shape().Dim(0)
		counts := Scatter(c.pairIndex,
			Ones(g, shapes.Make(dtypes.Int32, numPairs)),
			shapes.Make(dtypes.Int32, numX, numY))
		positive = GreaterThan(counts, ScalarZero(g, dtypes.Int32))
	}
	negative := LogicalNot(positive)

	return Sub(
		Neg(MaskedReduceMean(shiftedSoftplus(Neg(score)), positive)),
		MaskedReduceMean(shiftedSoftplus(score), negative))
}

// shiftedSoftplus is softplus(x) - softplus(0), so it is zero at the origin.
func shiftedSoftplus(x *Node) *Node {
	return AddScalar(Softplus(x), -math.Ln2)
}
