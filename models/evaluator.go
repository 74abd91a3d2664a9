package models

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/outpace-bio/torchdrug/graphs"
	"github.com/outpace-bio/torchdrug/internal/generics"
	"github.com/outpace-bio/torchdrug/internal/parameters"
)

// Backend is a singleton, shared by all evaluators.
var backend = sync.OnceValue(func() backends.Backend { return backends.New() })

// Evaluator runs a Model on host-side batches: it owns the compiled
// executors for the model's forward and forward-with-loss graphs, and
// converts between batches/tensors on the way in and out.
//
// It covers inference and loss/metric inspection only -- optimization and
// training loops stay with the caller.
type Evaluator struct {
	model Model

	embedExec, evalExec *context.Exec

	// Output/metric name order of the executor results, captured when the
	// graphs are built.
	muNames     sync.Mutex
	outputNames []string
	metrics     []string
}

// NewEvaluator wraps the model with compiled executors.
//
// The given params overwrite same-named hyperparameters of the model context
// (see parameters.NewFromConfigString); unknown keys are reported as an
// error.
func NewEvaluator(model Model, params parameters.Params) (*Evaluator, error) {
	ctx := model.Context()
	if err := extractParams(fmt.Sprintf("%T", model), params, ctx); err != nil {
		return nil, err
	}
	if len(params) > 0 {
		keys := slices.Collect(generics.SortedKeys(params))
		return nil, errors.Errorf("unknown configuration parameters %q for model %T", keys, model)
	}

	e := &Evaluator{model: model}
	e.embedExec = context.NewExec(backend(), ctx,
		func(ctx *context.Context, inputs []*graph.Node) []*graph.Node {
			ctx = ctx.Checked(false)
			outputs := e.model.BuildGraph(ctx, inputs, nil)
			return e.flattenOutputs(outputs, nil)
		})
	e.evalExec = context.NewExec(backend(), ctx,
		func(ctx *context.Context, inputs []*graph.Node) []*graph.Node {
			ctx = ctx.Checked(false)
			g := inputs[0].Graph()
			acc := NewAccumulator()
			outputs := e.model.BuildGraph(ctx, inputs, acc)
			results := e.flattenOutputs(outputs, acc)
			return append(results, acc.Loss(g))
		})
	klog.V(1).Infof("Created evaluator for %T", model)
	return e, nil
}

// flattenOutputs fixes an order for the named outputs (and, when given an
// accumulator, its metrics), recording the names for unflattening the
// executor results later.
func (e *Evaluator) flattenOutputs(outputs map[string]*graph.Node, acc *Accumulator) []*graph.Node {
	outputNames := slices.Collect(generics.SortedKeys(outputs))
	var metricNames []string
	results := generics.SliceMap(outputNames, func(name string) *graph.Node { return outputs[name] })
	if acc != nil {
		for name, value := range generics.SortedKeysAndValues(acc.Metrics()) {
			metricNames = append(metricNames, name)
			results = append(results, value)
		}
	}
	e.muNames.Lock()
	defer e.muNames.Unlock()
	e.outputNames = outputNames
	if acc != nil {
		e.metrics = metricNames
	}
	return results
}

// Embed runs the model forward pass only (no loss, no metrics) and returns
// the named output feature tensors.
func (e *Evaluator) Embed(batch *graphs.Batch, input [][]float32) (map[string]*tensors.Tensor, error) {
	results, err := e.call(e.embedExec, batch, input)
	if err != nil {
		return nil, err
	}
	e.muNames.Lock()
	outputNames := e.outputNames
	e.muNames.Unlock()
	outputs := make(map[string]*tensors.Tensor, len(outputNames))
	for idx, name := range outputNames {
		outputs[name] = results[idx]
	}
	return outputs, nil
}

// Evaluate runs the model forward pass with loss accumulation: it returns the
// named output feature tensors, the accumulated loss, and the recorded
// metrics by name.
func (e *Evaluator) Evaluate(batch *graphs.Batch, input [][]float32) (outputs map[string]*tensors.Tensor, loss float32, metrics map[string]float32, err error) {
	results, err := e.call(e.evalExec, batch, input)
	if err != nil {
		return nil, 0, nil, err
	}
	e.muNames.Lock()
	outputNames, metricNames := e.outputNames, e.metrics
	e.muNames.Unlock()

	outputs = make(map[string]*tensors.Tensor, len(outputNames))
	for idx, name := range outputNames {
		outputs[name] = results[idx]
	}
	metrics = make(map[string]float32, len(metricNames))
	for idx, name := range metricNames {
		metrics[name] = tensors.ToScalar[float32](results[len(outputNames)+idx])
	}
	loss = tensors.ToScalar[float32](results[len(results)-1])
	return
}

func (e *Evaluator) call(exec *context.Exec, batch *graphs.Batch, input [][]float32) (results []*tensors.Tensor, err error) {
	var inputs []*tensors.Tensor
	inputs, err = e.model.CreateInputs(batch, input)
	if err != nil {
		return nil, err
	}
	donated := generics.SliceMap(inputs, func(t *tensors.Tensor) any {
		return graph.DonateTensorBuffer(t, backend())
	})
	err = exceptions.TryCatch[error](func() { results = exec.Call(donated...) })
	if err != nil {
		return nil, errors.WithMessagef(err, "evaluating model %T", e.model)
	}
	return results, nil
}

// extractParams overwrites context hyperparameters from the given params,
// consuming the matching keys.
func extractParams(modelName string, params parameters.Params, ctx *context.Context) error {
	var err error
	ctx.EnumerateParams(func(scope, key string, valueAny any) {
		if err != nil {
			// If error happened skip the rest.
			return
		}
		if scope != context.RootScope {
			return
		}
		switch defaultValue := valueAny.(type) {
		case string:
			value, _ := parameters.PopParamOr(params, key, defaultValue)
			ctx.SetParam(key, value)
		case int:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (int) for model %s", key, modelName)
				return
			}
			ctx.SetParam(key, value)
		case float64:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (float64) for model %s", key, modelName)
				return
			}
			ctx.SetParam(key, value)
		case float32:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (float32) for model %s", key, modelName)
				return
			}
			ctx.SetParam(key, value)
		case bool:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (bool) for model %s", key, modelName)
				return
			}
			ctx.SetParam(key, value)
		default:
			err = errors.Errorf("model %s parameter %q is of unknown type %T", modelName, key, defaultValue)
		}
	})
	return err
}
