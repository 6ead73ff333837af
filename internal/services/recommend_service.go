package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/baodantech/design-review-backend/internal/apperr"
	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/repos"
	"github.com/baodantech/design-review-backend/internal/review"
	"github.com/baodantech/design-review-backend/internal/types"
	"github.com/baodantech/design-review-backend/internal/utils"
)

// RecommendOutcome is either a resolved recommendation or a regenerate
// signal, never both.
type RecommendOutcome struct {
	NeedRegenerate   bool                  `json:"need_regenerate"`
	Recommendation   *types.Recommendation `json:"recommendation,omitempty"`
	PromptSuggestion string                `json:"prompt_suggestion,omitempty"`
	Scores           []review.ScoreEntry   `json:"scores"`
}

type RecommendService interface {
	Recommend(ctx context.Context, id uuid.UUID) (*RecommendOutcome, error)
}

type recommendService struct {
	log       *logger.Logger
	repo      repos.DesignReviewRepo
	vision    VisionClient
	threshold float64
}

func NewRecommendService(log *logger.Logger, repo repos.DesignReviewRepo, vision VisionClient) RecommendService {
	return &recommendService{
		log:       log.With("service", "RecommendService"),
		repo:      repo,
		vision:    vision,
		threshold: utils.GetEnvAsFloat("REVIEW_SCORE_THRESHOLD", 0.6, log),
	}
}

// Recommend scores the usable image set and persists either the resolved
// recommendation or the regenerate suggestion. A scorer failure leaves the
// record untouched.
func (s *recommendService) Recommend(ctx context.Context, id uuid.UUID) (*RecommendOutcome, error) {
	record, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("record %s: %w", id, apperr.ErrNotFound)
	}
	if record.Status == types.StatusCompleted {
		return nil, fmt.Errorf("record %s is completed: %w", id, apperr.ErrConflict)
	}

	sub, err := review.BuildSubmission(
		record.RefImages(),
		record.ExcludedRefs(),
		record.Candidates(),
		record.ExcludedCandidates(),
		record.Checks(),
		record.Overrides(),
	)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperr.ErrInvalidArgument)
	}

	prompt := review.RenderPrompt(len(sub.References), len(sub.Candidates))
	reply, err := s.vision.ScoreImages(ctx, sub.ImageURLs(), prompt)
	if err != nil {
		return nil, err
	}
	outcome, err := review.ParseScorerOutcome(reply)
	if err != nil {
		return nil, fmt.Errorf("scorer reply unparsable: %v: %w", err, apperr.ErrUnavailable)
	}
	review.ApplyThreshold(outcome, s.threshold)

	if outcome.NeedRegenerate {
		err = s.repo.UpdateFieldsWhereStatus(ctx, nil, id, types.NonTerminalStatuses, map[string]interface{}{
			"recommended_index": nil,
			"recommend_reason":  "",
			"prompt_suggestion": outcome.PromptSuggestion,
		})
		if err != nil {
			return nil, err
		}
		s.log.Info("Recommendation advised regeneration", "record_id", id, "max_score", review.MaxScore(outcome.Scores))
		return &RecommendOutcome{
			NeedRegenerate:   true,
			PromptSuggestion: outcome.PromptSuggestion,
			Scores:           outcome.Scores,
		}, nil
	}

	best := review.ResolveBest(sub, outcome.BestIndex)
	err = s.repo.UpdateFieldsWhereStatus(ctx, nil, id, types.NonTerminalStatuses, map[string]interface{}{
		"recommended_index": best.Position,
		"recommend_reason":  outcome.OverallReason,
		"prompt_suggestion": "",
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Recommendation resolved", "record_id", id, "index", best.Position)
	return &RecommendOutcome{
		Recommendation: &types.Recommendation{Index: best.Position, Reason: outcome.OverallReason},
		Scores:         outcome.Scores,
	}, nil
}
