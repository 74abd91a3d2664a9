package layers

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
)

// cosineEpsilon protects the cosine similarity normalization against
// zero-length embeddings.
const cosineEpsilon = 1e-10

// CosineScores computes the matrix of cosine similarities between every row
// of x, shaped [numX, dim], and every row of y, shaped [numY, dim], scaled by
// the inverse temperature: scores[i,j] = cos(x[i], y[j]) / tau.
func CosineScores(x, y *Node, tau float64) *Node {
	if x.Rank() != 2 || y.Rank() != 2 || x.Shape().Dim(1) != y.Shape().Dim(1) {
		exceptions.Panicf("layers.CosineScores: x and y must be rank-2 with the same embedding dimension, "+
			"got shapes %s and %s", x.Shape(), y.Shape())
	}
	x = L2NormalizeWithEpsilon(x, cosineEpsilon, -1)
	y = L2NormalizeWithEpsilon(y, cosineEpsilon, -1)
	return DivScalar(MatMul(x, Transpose(y, 0, 1)), tau)
}

// InfoNCE returns the InfoNCE mutual information lower bound for a square
// score matrix whose diagonal entries are the positive pairs:
//
//	mean_i(scores[i,i] - logsumexp(scores[i,:]))
//
// The contrastive loss is the negation of the returned scalar.
func InfoNCE(scores *Node) *Node {
	g := scores.Graph()
	if scores.Rank() != 2 || scores.Shape().Dim(0) != scores.Shape().Dim(1) {
		exceptions.Panicf("layers.InfoNCE: scores must be a square matrix, got shape %s", scores.Shape())
	}
	numSamples := scores.Shape().Dim(0)
	// LogSoftmax(scores)[i,j] = scores[i,j] - logsumexp(scores[i,:]).
	logProb := LogSoftmax(scores, -1)
	return ReduceAllMean(MaskedReduceSum(logProb, Diagonal(g, numSamples), -1))
}
