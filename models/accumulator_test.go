package models

import (
	"testing"

	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/require"
)

func TestAccumulator(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	results := context.ExecOnceN(backend, ctx, func(ctx *context.Context, g *graph.Graph) []*graph.Node {
		empty := NewAccumulator()
		require.Equal(t, 0, empty.NumLossTerms())
		require.Nil(t, empty.Metric("missing"))

		acc := NewAccumulator()
		acc.AddLoss(graph.Const(g, float32(1.5)))
		acc.SetMetric("a", graph.Const(g, float32(-1)))

		other := NewAccumulator()
		other.AddLoss(graph.Const(g, float32(2)))
		other.SetMetric("a", graph.Const(g, float32(3)))
		other.SetMetric("b", graph.Const(g, float32(4)))
		acc.Merge(other)
		require.Equal(t, 2, acc.NumLossTerms())
		require.Len(t, acc.Metrics(), 2)

		return []*graph.Node{empty.Loss(g), acc.Loss(g), acc.Metric("a"), acc.Metric("b")}
	})
	require.Equal(t, float32(0), tensors.ToScalar[float32](results[0]))
	require.Equal(t, float32(3.5), tensors.ToScalar[float32](results[1]))
	require.Equal(t, float32(3), tensors.ToScalar[float32](results[2]))
	require.Equal(t, float32(4), tensors.ToScalar[float32](results[3]))
}
