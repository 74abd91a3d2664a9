// sslgraph runs a self-supervised graph representation-learning objective
// over batches of synthetic random graphs and reports the losses and mutual
// information metrics.
//
// Example:
//
//	sslgraph -model infograph,infograph_separate_encoder
//	sslgraph -model multiview,contrast_tau=0.2 -num_batches 8
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/chewxy/math32"
	"github.com/janpfeifer/must"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/outpace-bio/torchdrug/graphs"
	"github.com/outpace-bio/torchdrug/internal/generics"
	"github.com/outpace-bio/torchdrug/internal/parameters"
	"github.com/outpace-bio/torchdrug/internal/profilers"
	"github.com/outpace-bio/torchdrug/models"

	_ "github.com/gomlx/gomlx/backends/default"
)

var (
	flagModelConfig = flag.String("model", "infograph",
		"Model configuration: the model name (\"infograph\" or \"multiview\") optionally "+
			"followed by comma-separated hyperparameter overrides, e.g. "+
			"\"multiview,contrast_tau=0.2,gin_num_layers=2\".")
	flagNumBatches   = flag.Int("num_batches", 4, "Number of batches to evaluate.")
	flagNumGraphs    = flag.Int("num_graphs", 16, "Graphs per batch.")
	flagMaxNodes     = flag.Int("max_nodes", 12, "Max nodes per graph (min is 2).")
	flagEdgeProb     = flag.Float64("edge_prob", 0.3, "Probability of each directed edge.")
	flagFeatureDim   = flag.Int("feature_dim", 16, "Input feature dimension.")
	flagEmbeddingDim = flag.Int("embedding_dim", 32, "Encoder embedding dimension.")
	flagNoiseScale   = flag.Float64("noise_scale", 0.1,
		"Scale of the feature jitter augmentation of the multiview model.")
	flagParallelism = flag.Int("parallelism", 2, "Batches evaluated simultaneously.")
	flagSeed        = flag.Int64("seed", 42, "Seed of the synthetic graph generator.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	profilers.Setup(ctx)
	defer profilers.OnQuit()

	evaluator := must.M1(newEvaluator())
	must.M(runBatches(evaluator))
}

// newEvaluator builds the model selected by -model, over a GIN encoder, and
// wraps it with an Evaluator. The config string's leading element is the
// model name, the rest are hyperparameter overrides.
func newEvaluator() (*models.Evaluator, error) {
	name, rest, _ := strings.Cut(*flagModelConfig, ",")
	params := parameters.Params{}
	if rest != "" {
		params = parameters.NewFromConfigString(rest)
	}
	encoder := models.NewGIN(*flagEmbeddingDim)

	var model models.Model
	switch name {
	case "infograph":
		model = models.NewInfoGraph(encoder)
	case "multiview":
		crops := []graphs.Transform{graphs.Identity{}}
		noises := []graphs.Transform{
			graphs.Identity{},
			&featureJitter{scale: float32(*flagNoiseScale), rng: rand.New(rand.NewSource(*flagSeed))},
		}
		model = models.NewMultiviewContrast(encoder, crops, noises).
			WithRand(rand.New(rand.NewSource(*flagSeed)))
	default:
		return nil, fmt.Errorf("unknown model %q, valid models are \"infograph\" and \"multiview\"", name)
	}
	klog.V(1).Infof("Model %q with overrides %v", name, params)
	return models.NewEvaluator(model, params)
}

type batchResult struct {
	loss    float32
	metrics map[string]float32
}

func runBatches(evaluator *models.Evaluator) error {
	rng := rand.New(rand.NewSource(*flagSeed))
	results := make([]batchResult, *flagNumBatches)
	var wg errgroup.Group
	wg.SetLimit(max(*flagParallelism, 1))
	var muRng sync.Mutex
	for batchIdx := range results {
		wg.Go(func() error {
			muRng.Lock()
			batch, input := randomBatch(rng)
			muRng.Unlock()
			_, loss, metrics, err := evaluator.Evaluate(batch, input)
			if err != nil {
				return err
			}
			results[batchIdx] = batchResult{loss: loss, metrics: metrics}
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return err
	}
	printResults(results)
	return nil
}

// randomBatch samples an Erdos-Renyi style batch: uniform node counts and
// independent directed edges, with standard gaussian input features.
func randomBatch(rng *rand.Rand) (*graphs.Batch, [][]float32) {
	gs := make([]*graphs.Graph, *flagNumGraphs)
	for graphIdx := range gs {
		numNodes := 2 + rng.Intn(max(*flagMaxNodes-1, 1))
		g := &graphs.Graph{NumNodes: numNodes}
		for source := range int32(numNodes) {
			for target := range int32(numNodes) {
				if source != target && rng.Float64() < *flagEdgeProb {
					g.Edges = append(g.Edges, [2]int32{source, target})
				}
			}
		}
		gs[graphIdx] = g
	}
	batch := graphs.Pack(gs...)
	input := make([][]float32, batch.NumNodes())
	for nodeIdx := range input {
		row := make([]float32, *flagFeatureDim)
		for featureIdx := range row {
			row[featureIdx] = float32(rng.NormFloat64())
		}
		input[nodeIdx] = row
	}
	return batch, input
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	metricStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func printResults(results []batchResult) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("Model %q over %d batches of %d graphs:",
		*flagModelConfig, len(results), *flagNumGraphs)))
	for batchIdx, result := range results {
		fmt.Printf("  batch #%d: loss=%.4f (perplexity %.2f)\n",
			batchIdx, result.loss, math32.Exp(result.loss))
		for name := range generics.SortedKeys(result.metrics) {
			fmt.Printf("    %s\n", metricStyle.Render(fmt.Sprintf("%s: %.4f", name, result.metrics[name])))
		}
	}
}

// featureJitter perturbs the input features with gaussian noise. Structure is
// left untouched.
type featureJitter struct {
	scale float32

	mu  sync.Mutex
	rng *rand.Rand
}

// Transform implements graphs.Transform.
func (j *featureJitter) Transform(batch *graphs.Batch) *graphs.Batch {
	j.mu.Lock()
	defer j.mu.Unlock()
	input := make([][]float32, len(batch.Input))
	for nodeIdx, row := range batch.Input {
		newRow := make([]float32, len(row))
		for featureIdx, value := range row {
			newRow[featureIdx] = value + j.scale*float32(j.rng.NormFloat64())
		}
		input[nodeIdx] = newRow
	}
	return batch.WithInput(input)
}
