package services

import (
	"context"
	"strings"

	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/repos"
	"github.com/baodantech/design-review-backend/internal/types"
	"github.com/baodantech/design-review-backend/internal/utils"
)

const defaultSpecImageURL = "https://img.kwcdn.com/product/20195053a14/c2ddafb8-2eee-497c-9c81-c45254e903bf_800x800.png"

// ResolvedCategory is the spec-image placement decision for one listing.
// Fallback is set when no configured rule matched and the default rule was
// applied instead.
type ResolvedCategory struct {
	Key            string `json:"key"`
	DisplayName    string `json:"display_name"`
	SpecImageIndex int    `json:"spec_image_index"`
	SpecImageURL   string `json:"spec_image_url"`
	Fallback       bool   `json:"fallback"`
}

// CategoryService maps a listing's raw category label to a spec-image rule.
// Rules are ordered; the first rule with a keyword contained in the raw
// label wins.
type CategoryService interface {
	Resolve(ctx context.Context, rawLabel string) (ResolvedCategory, error)
	ListRules(ctx context.Context) ([]*types.CategoryRule, error)
	CreateRules(ctx context.Context, rules []*types.CategoryRule) ([]*types.CategoryRule, error)
}

type categoryService struct {
	log         *logger.Logger
	repo        repos.CategoryRuleRepo
	defaultRule ResolvedCategory
}

func NewCategoryService(log *logger.Logger, repo repos.CategoryRuleRepo) CategoryService {
	return &categoryService{
		log:  log.With("service", "CategoryService"),
		repo: repo,
		defaultRule: ResolvedCategory{
			Key:            "default",
			DisplayName:    "default",
			SpecImageIndex: 2,
			SpecImageURL:   utils.GetEnv("DEFAULT_SPEC_IMAGE_URL", defaultSpecImageURL, log),
			Fallback:       true,
		},
	}
}

// MatchRule returns the first rule whose keyword appears in the raw label.
// Matching is case-insensitive substring containment, which handles both
// CJK labels and latin ones.
func MatchRule(rules []*types.CategoryRule, rawLabel string) *types.CategoryRule {
	label := strings.ToLower(strings.TrimSpace(rawLabel))
	if label == "" {
		return nil
	}
	for _, rule := range rules {
		for _, kw := range rule.KeywordList() {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if strings.Contains(label, kw) {
				return rule
			}
		}
	}
	return nil
}

func (s *categoryService) Resolve(ctx context.Context, rawLabel string) (ResolvedCategory, error) {
	rules, err := s.repo.ListOrdered(ctx, nil)
	if err != nil {
		return ResolvedCategory{}, err
	}
	rule := MatchRule(rules, rawLabel)
	if rule == nil {
		return s.defaultRule, nil
	}
	resolved := ResolvedCategory{
		Key:            rule.Key,
		DisplayName:    rule.DisplayName,
		SpecImageIndex: rule.SpecImageIndex,
		SpecImageURL:   rule.SpecImageURL,
	}
	if resolved.SpecImageURL == "" {
		resolved.SpecImageURL = s.defaultRule.SpecImageURL
	}
	return resolved, nil
}

func (s *categoryService) ListRules(ctx context.Context) ([]*types.CategoryRule, error) {
	return s.repo.ListOrdered(ctx, nil)
}

func (s *categoryService) CreateRules(ctx context.Context, rules []*types.CategoryRule) ([]*types.CategoryRule, error) {
	return s.repo.Create(ctx, nil, rules)
}
