package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gdmt-engine/internal/domain"
)

// RecommendationEngine fans one patient's input out to the per-class recommenders and
// concatenates their results in a fixed order: beta blockers, RASI, MRA, SGLT2i, diuretics.
// Display layers group by that order, so it must not change.
type RecommendationEngine struct {
	logger       *logrus.Logger
	checker      domain.ContraindicationChecker
	catalog      domain.MedicationCatalog
	thresholds   domain.Thresholds
	clock        func() time.Time
	recommenders []recommender
}

// Option configures a RecommendationEngine.
type Option func(*RecommendationEngine)

// WithClock sets the clock used when an input carries no evaluation date.
func WithClock(clock func() time.Time) Option {
	return func(e *RecommendationEngine) {
		e.clock = clock
	}
}

// WithThresholds replaces the default safety limits.
func WithThresholds(thresholds domain.Thresholds) Option {
	return func(e *RecommendationEngine) {
		e.thresholds = thresholds
	}
}

// NewRecommendationEngine creates a new recommendation engine
func NewRecommendationEngine(checker domain.ContraindicationChecker, catalog domain.MedicationCatalog, logger *logrus.Logger, opts ...Option) *RecommendationEngine {
	engine := &RecommendationEngine{
		logger:     logger,
		checker:    checker,
		catalog:    catalog,
		thresholds: domain.DefaultThresholds(),
		clock:      time.Now,
		recommenders: []recommender{
			betaBlockerRecommender{},
			rasiRecommender{},
			mraRecommender{},
			sglt2Recommender{},
			diureticRecommender{},
		},
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Thresholds returns the safety limits in use.
func (e *RecommendationEngine) Thresholds() domain.Thresholds {
	return e.thresholds
}

// Compute returns the recommendations for input. The result is never nil.
func (e *RecommendationEngine) Compute(input domain.RecommendationInput) []domain.RecommendationOutput {
	now := input.Date
	if now.IsZero() {
		now = e.clock()
	}

	eval := &evaluation{
		input:      input,
		now:        now,
		thresholds: e.thresholds,
		catalog:    e.catalog,
		checker:    e.checker,
	}

	results := make([]domain.RecommendationOutput, 0, len(e.recommenders))
	for _, r := range e.recommenders {
		outputs := r.compute(eval)
		e.logger.WithFields(logrus.Fields{
			"recommender": r.name(),
			"emitted":     len(outputs),
		}).Debug("Evaluated recommender")
		results = append(results, outputs...)
	}

	e.logger.WithFields(logrus.Fields{
		"requests":        len(input.Requests),
		"recommendations": len(results),
	}).Info("Computed GDMT recommendations")

	return results
}

// ComputeRecommendations implements domain.RecommendationService.
func (e *RecommendationEngine) ComputeRecommendations(ctx context.Context, input domain.RecommendationInput) ([]domain.RecommendationOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("computing recommendations: %w", err)
	}
	return e.Compute(input), nil
}
