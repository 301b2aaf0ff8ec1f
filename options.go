package xodus

import (
	"math/rand"

	"github.com/qwwdfsad/xodus/pq"
)

type options struct {
	logger  *Logger
	trainer pq.KMeansTrainer
	rand    *rand.Rand
}

// Option configures non-required Index collaborators: logging, the PQ
// k-means trainer, and the build/search RNG source. None of these change
// required behavior, only injectable collaborators and observability.
type Option func(*options)

// WithLogger configures structured logging for build and search operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithKMeansTrainer swaps the Lloyd's-algorithm default used to fit PQ
// codebooks for a caller-supplied implementation of KMeansTrainer.
func WithKMeansTrainer(trainer pq.KMeansTrainer) Option {
	return func(o *options) {
		o.trainer = trainer
	}
}

// WithRandSource fixes the RNG used for the random initial-edge permutation
// and the merger's Fisher-Yates capping, for reproducible builds.
func WithRandSource(r *rand.Rand) Option {
	return func(o *options) {
		o.rand = r
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger: NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
