package graphs

import (
	"math/rand"

	"github.com/pkg/errors"
)

// Transform produces an augmented view of a batch: a structural subsampling
// ("crop") or a feature perturbation ("noise").
//
// Implementations must not mutate the given batch -- they return a new one,
// possibly sharing the unchanged arrays -- and must preserve its graph count.
type Transform interface {
	Transform(batch *Batch) *Batch
}

// Identity is the no-op Transform.
type Identity struct{}

// Transform implements Transform, returning the batch unchanged.
func (Identity) Transform(batch *Batch) *Batch { return batch }

// Sample picks one transform uniformly at random from funcs, using the given
// randomness source. It fails if funcs is empty.
func Sample(rng *rand.Rand, funcs []Transform) (Transform, error) {
	if len(funcs) == 0 {
		return nil, errors.New("cannot sample a transform from an empty list")
	}
	return funcs[rng.Intn(len(funcs))], nil
}
