// Package models implements the self-supervised graph representation-learning
// objectives InfoGraph and MultiviewContrast, built on top of an injected
// graph Encoder, plus a reference GIN encoder and the Evaluator that runs the
// models on batches.
package models

import (
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"

	"github.com/outpace-bio/torchdrug/graphs"
)

// EncoderOutput are the embeddings produced by one encoder pass over a batch:
// node representations shaped [numNodes, dim] and graph representations shaped
// [numGraphs, dim].
type EncoderOutput struct {
	NodeFeature, GraphFeature *graph.Node
}

// Encoder computes node- and graph-level embeddings for a packed batch.
//
// BuildGraph is a graph-building function: its learned variables live in the
// scope of the ctx it is given, so building the same encoder under two
// different scopes creates two independent copies of its weights, while
// building it twice under the same scope shares them.
type Encoder interface {
	// OutputDim is the embedding dimension of both output features.
	OutputDim() int

	// BuildGraph adds the encoder forward computation for the batch.
	BuildGraph(ctx *context.Context, batch *graphs.BatchNodes) EncoderOutput
}

// Model is a self-supervised objective over graph batches, the contract
// consumed by the Evaluator (or by a caller's own training loop).
type Model interface {
	// Context with the model hyperparameters and, after the first graph
	// build, its weights.
	Context() *context.Context

	// CreateInputs converts a batch and its per-node input features into the
	// tensors fed to BuildGraph. Any host-side randomness (e.g. view
	// augmentation) happens here.
	CreateInputs(batch *graphs.Batch, input [][]float32) ([]*tensors.Tensor, error)

	// BuildGraph adds the model forward computation over the inputs created
	// by CreateInputs, returning its named output features.
	//
	// With a non-nil acc it also computes the model's unsupervised loss terms
	// and metrics into it; with a nil acc only the forward outputs are built.
	BuildGraph(ctx *context.Context, inputs []*graph.Node, acc *Accumulator) map[string]*graph.Node
}

// Names of the output features returned by Model.BuildGraph (and, on the host
// side, by Evaluator).
const (
	OutputNodeFeature  = "node_feature"
	OutputGraphFeature = "graph_feature"

	// Two-view variants, returned by MultiviewContrast.
	OutputNodeFeature1  = "node_feature1"
	OutputGraphFeature1 = "graph_feature1"
	OutputNodeFeature2  = "node_feature2"
	OutputGraphFeature2 = "graph_feature2"
)
