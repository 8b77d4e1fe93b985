// Package recollect turns raw retrieval hits into a ranked, graph-expanded
// recall result. Ranking blends similarity, importance and recency into one
// score; expansion follows graph associations out from the top results.
package recollect

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Default blend weights. They must sum to 1.0.
const (
	DefaultSimilarityWeight = 0.5
	DefaultImportanceWeight = 0.3
	DefaultRecencyWeight    = 0.2
)

// Fallbacks for candidates missing a signal.
const (
	defaultSimilarity = 0.5
	defaultImportance = 1.0
	defaultRecency    = 0.5
)

// recencyHalfLifeDays is the age at which recency decays to 0.5.
const recencyHalfLifeDays = 30.0

// Weights configures the ranking blend.
type Weights struct {
	Similarity float64
	Importance float64
	Recency    float64
}

// DefaultWeights returns the standard blend.
func DefaultWeights() Weights {
	return Weights{
		Similarity: DefaultSimilarityWeight,
		Importance: DefaultImportanceWeight,
		Recency:    DefaultRecencyWeight,
	}
}

// Validate checks that the weights sum to 1.0.
func (w Weights) Validate() error {
	sum := w.Similarity + w.Importance + w.Recency
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("recall weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// Candidate is one retrieval hit entering the ranker. Optional signals are
// pointers so absence is distinguishable from zero.
type Candidate struct {
	ID         string
	Text       string
	Similarity *float64
	Importance *float64
	CreatedAt  string
}

// Ranked is a candidate with its blend inputs resolved and scored.
type Ranked struct {
	ID         string  `json:"id"`
	Text       string  `json:"memory"`
	Similarity float64 `json:"similarity"`
	Importance float64 `json:"importance"`
	Recency    float64 `json:"recency"`
	Score      float64 `json:"score"`
}

// Ranker orders candidates by the blended score.
type Ranker struct {
	weights Weights
	logger  *zap.Logger
	now     func() time.Time
}

// NewRanker creates a ranker, validating the weights at construction.
func NewRanker(weights Weights, logger *zap.Logger) (*Ranker, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	return &Ranker{
		weights: weights,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Rank scores and orders candidates, truncating to limit. The sort is
// stable: ties keep their input order. A non-positive limit keeps all.
func (r *Ranker) Rank(candidates []Candidate, limit int) []Ranked {
	ranked := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		similarity := defaultSimilarity
		if c.Similarity != nil {
			similarity = *c.Similarity
		}

		importance := defaultImportance
		if c.Importance != nil {
			importance = *c.Importance
		}

		recency := r.recency(c)

		score := r.weights.Similarity*similarity +
			r.weights.Importance*importance +
			r.weights.Recency*recency

		ranked = append(ranked, Ranked{
			ID:         c.ID,
			Text:       c.Text,
			Similarity: similarity,
			Importance: importance,
			Recency:    recency,
			Score:      round4(score),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return ranked
}

// recency decays with age: 1 at zero days, 0.5 at the half-life.
func (r *Ranker) recency(c Candidate) float64 {
	if c.CreatedAt == "" {
		return defaultRecency
	}

	created, err := time.Parse(time.RFC3339, c.CreatedAt)
	if err != nil {
		r.logger.Debug("unparseable created_at, using default recency",
			zap.String("id", c.ID),
			zap.String("created_at", c.CreatedAt),
		)
		return defaultRecency
	}

	days := r.now().Sub(created).Hours() / 24
	if days < 0 {
		days = 0
	}

	return 1 / (1 + days/recencyHalfLifeDays)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
