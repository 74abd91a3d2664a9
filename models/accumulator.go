package models

import (
	"maps"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gopjrt/dtypes"
)

// Accumulator collects the loss terms and named scalar metrics produced while
// building a model's forward graph.
//
// It replaces threading mutable loss/metric collections through the call: the
// models only append to it, and the caller reduces it with Loss -- typically
// feeding the result to an optimizer -- and reads the metrics back by name.
type Accumulator struct {
	lossTerms []*Node
	metrics   map[string]*Node
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{metrics: make(map[string]*Node)}
}

// AddLoss adds one term to the accumulated loss.
func (a *Accumulator) AddLoss(term *Node) {
	a.lossTerms = append(a.lossTerms, term)
}

// SetMetric records a named scalar metric, overwriting any previous value
// under the same name.
func (a *Accumulator) SetMetric(name string, value *Node) {
	a.metrics[name] = value
}

// Metric returns the recorded metric with the given name, or nil if it was
// never set.
func (a *Accumulator) Metric(name string) *Node {
	return a.metrics[name]
}

// Metrics returns a copy of the recorded metrics, keyed by name.
func (a *Accumulator) Metrics() map[string]*Node {
	return maps.Clone(a.metrics)
}

// NumLossTerms returns how many loss terms were added.
func (a *Accumulator) NumLossTerms() int { return len(a.lossTerms) }

// Loss returns the sum of the accumulated loss terms, or a zero scalar if no
// term was added.
func (a *Accumulator) Loss(g *Graph) *Node {
	if len(a.lossTerms) == 0 {
		return ScalarZero(g, dtypes.Float32)
	}
	loss := a.lossTerms[0]
	for _, term := range a.lossTerms[1:] {
		loss = Add(loss, term)
	}
	return loss
}

// Merge adds the other accumulator into a: loss terms are concatenated, and
// the other's metrics overwrite same-named ones.
func (a *Accumulator) Merge(other *Accumulator) {
	a.lossTerms = append(a.lossTerms, other.lossTerms...)
	maps.Copy(a.metrics, other.metrics)
}
