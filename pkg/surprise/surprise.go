// Package surprise scores the novelty of a candidate fact against the
// existing memories nearest to it. Low surprise means the fact is already
// known and should reinforce its best match instead of creating a duplicate.
package surprise

import (
	"errors"
	"fmt"
)

// Default thresholds. Flashbulb is the stricter, rarer condition.
const (
	DefaultSurpriseThreshold  = 0.92
	DefaultFlashbulbThreshold = 0.60
)

// ErrInvalidThresholds indicates a misconfigured evaluator.
var ErrInvalidThresholds = errors.New("invalid surprise thresholds")

// ErrInvalidNearby indicates malformed nearby input.
var ErrInvalidNearby = errors.New("invalid nearby record")

// Nearby is an existing memory with its similarity to the candidate.
type Nearby struct {
	ID    string
	Score float64
}

// Assessment is the novelty verdict for one candidate fact.
type Assessment struct {
	IsSurprising  bool
	IsFlashbulb   bool
	BestMatchID   string
	MaxSimilarity float64
}

// Evaluator scores candidates against configured thresholds.
type Evaluator struct {
	surpriseThreshold  float64
	flashbulbThreshold float64
}

// NewEvaluator creates an evaluator. Zero thresholds use the defaults.
// The flashbulb threshold must stay strictly below the surprise threshold.
func NewEvaluator(surpriseThreshold, flashbulbThreshold float64) (*Evaluator, error) {
	if surpriseThreshold == 0 {
		surpriseThreshold = DefaultSurpriseThreshold
	}
	if flashbulbThreshold == 0 {
		flashbulbThreshold = DefaultFlashbulbThreshold
	}

	if surpriseThreshold < 0 || surpriseThreshold > 1 {
		return nil, fmt.Errorf("%w: surprise threshold %v outside [0,1]", ErrInvalidThresholds, surpriseThreshold)
	}
	if flashbulbThreshold < 0 || flashbulbThreshold > 1 {
		return nil, fmt.Errorf("%w: flashbulb threshold %v outside [0,1]", ErrInvalidThresholds, flashbulbThreshold)
	}
	if flashbulbThreshold >= surpriseThreshold {
		return nil, fmt.Errorf("%w: flashbulb threshold %v must be below surprise threshold %v",
			ErrInvalidThresholds, flashbulbThreshold, surpriseThreshold)
	}

	return &Evaluator{
		surpriseThreshold:  surpriseThreshold,
		flashbulbThreshold: flashbulbThreshold,
	}, nil
}

// Evaluate scores one candidate against its nearest existing memories.
// An empty nearby list means nothing resembles the candidate: maximal
// novelty on both axes.
func (e *Evaluator) Evaluate(nearby []Nearby) (Assessment, error) {
	if len(nearby) == 0 {
		return Assessment{
			IsSurprising:  true,
			IsFlashbulb:   true,
			MaxSimilarity: 0.0,
		}, nil
	}

	best := nearby[0]
	for _, n := range nearby {
		if n.ID == "" {
			return Assessment{}, fmt.Errorf("%w: empty id", ErrInvalidNearby)
		}
		if n.Score < 0 || n.Score > 1 {
			return Assessment{}, fmt.Errorf("%w: score %v outside [0,1] for %s", ErrInvalidNearby, n.Score, n.ID)
		}
		// Strict comparison keeps the first id on ties.
		if n.Score > best.Score {
			best = n
		}
	}

	return Assessment{
		IsSurprising:  best.Score < e.surpriseThreshold,
		IsFlashbulb:   best.Score < e.flashbulbThreshold,
		BestMatchID:   best.ID,
		MaxSimilarity: best.Score,
	}, nil
}
