package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/baodantech/design-review-backend/internal/apperr"
	"github.com/baodantech/design-review-backend/internal/imageid"
	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/repos"
	"github.com/baodantech/design-review-backend/internal/review"
	"github.com/baodantech/design-review-backend/internal/types"
	"github.com/baodantech/design-review-backend/internal/utils"
)

// RegisterSessionInput binds a generation tab to a listing. Callers on the
// legacy schema send ReferableIndices; the canonical excluded representation
// is derived once here and the legacy form is never stored.
type RegisterSessionInput struct {
	SessionID                string                  `json:"session_id"`
	ListingID                int64                   `json:"listing_id"`
	ReferenceImages          []string                `json:"reference_images"`
	ExcludedReferenceIndices []int                   `json:"excluded_reference_indices"`
	ReferableIndices         []int                   `json:"referable_indices"`
	DesignCandidates         []types.DesignCandidate `json:"design_candidates"`
}

// ReviewService owns every mutation of a DesignReviewRecord. All writes go
// through status-guarded conditional updates; a completed record rejects
// everything.
type ReviewService interface {
	RegisterSession(ctx context.Context, in RegisterSessionInput) (*types.DesignReviewRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.DesignReviewRecord, error)
	GetBySession(ctx context.Context, sessionID string) (*types.DesignReviewRecord, error)
	ListByStatus(ctx context.Context, statuses []string, page, pageSize int) ([]*types.DesignReviewRecord, int64, error)

	MergeCandidates(ctx context.Context, id uuid.UUID, candidates []types.DesignCandidate) (*types.DesignReviewRecord, error)
	SetExcludedReferences(ctx context.Context, id uuid.UUID, indices []int) (*types.DesignReviewRecord, error)
	SetExcludedCandidates(ctx context.Context, id uuid.UUID, indices []int) (*types.DesignReviewRecord, error)
	RecordCheckResults(ctx context.Context, id uuid.UUID, results []review.CheckInput, overrides map[int]string) (*types.DesignReviewRecord, error)
	ResetChecks(ctx context.Context, id uuid.UUID) (*types.DesignReviewRecord, error)
	AddReferenceImages(ctx context.Context, id uuid.UUID, urls []string) (*types.DesignReviewRecord, error)
	AddDesignCandidates(ctx context.Context, id uuid.UUID, candidates []types.DesignCandidate) (*types.DesignReviewRecord, error)

	MarkDetected(ctx context.Context, id uuid.UUID, status string) error
	Approve(ctx context.Context, id uuid.UUID, selectedIndex int) (*types.DesignReviewRecord, error)
	Fail(ctx context.Context, id uuid.UUID) error
	SwitchTab(ctx context.Context, id uuid.UUID, newSessionID string) error
	Complete(ctx context.Context, id uuid.UUID) error
}

type reviewService struct {
	log        *logger.Logger
	repo       repos.DesignReviewRepo
	publicHost string
}

func NewReviewService(log *logger.Logger, repo repos.DesignReviewRepo) ReviewService {
	publicHost := ""
	if base := utils.GetEnv("PUBLIC_BASE_URL", "", log); base != "" {
		if u, err := url.Parse(base); err == nil {
			publicHost = u.Host
		}
	}
	return &reviewService{
		log:        log.With("service", "ReviewService"),
		repo:       repo,
		publicHost: publicHost,
	}
}

func (s *reviewService) RegisterSession(ctx context.Context, in RegisterSessionInput) (*types.DesignReviewRecord, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return nil, fmt.Errorf("session_id is required: %w", apperr.ErrInvalidArgument)
	}
	if in.ListingID <= 0 {
		return nil, fmt.Errorf("listing_id is required: %w", apperr.ErrInvalidArgument)
	}

	var excludedRefs []int
	if len(in.ReferableIndices) > 0 {
		excludedRefs = review.ExcludedFromReferable(in.ReferableIndices, len(in.ReferenceImages))
	} else {
		excludedRefs = review.SanitizeIndices(in.ExcludedReferenceIndices, len(in.ReferenceImages))
	}

	existing, err := s.repo.GetBySessionID(ctx, nil, in.SessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != types.StatusCompleted {
		merged := mergeCandidateSets(existing.Candidates(), in.DesignCandidates)
		updates := map[string]interface{}{
			"listing_id":                 in.ListingID,
			"reference_images":           types.EncodeStringSlice(in.ReferenceImages),
			"excluded_reference_indices": types.EncodeIntSlice(excludedRefs),
			"design_candidates":          types.EncodeCandidates(merged),
		}
		if err := s.repo.UpdateFieldsWhereStatus(ctx, nil, existing.ID, types.NonTerminalStatuses, updates); err != nil {
			return nil, err
		}
		return s.mustGet(ctx, existing.ID)
	}

	record := &types.DesignReviewRecord{
		SessionID:                in.SessionID,
		ListingID:                in.ListingID,
		Status:                   types.StatusGenerating,
		ReferenceImages:          types.EncodeStringSlice(in.ReferenceImages),
		ExcludedReferenceIndices: types.EncodeIntSlice(excludedRefs),
		DesignCandidates:         types.EncodeCandidates(in.DesignCandidates),
		ExcludedCandidateIndices: types.EncodeIntSlice(nil),
		CheckResults:             types.EncodeChecks(nil),
		UploadedURLOverrides:     types.EncodeOverrides(nil),
	}
	created, err := s.repo.Create(ctx, nil, []*types.DesignReviewRecord{record})
	if err != nil {
		return nil, err
	}
	s.log.Info("Registered review session", "session_id", in.SessionID, "listing_id", in.ListingID, "record_id", created[0].ID)
	return created[0], nil
}

func (s *reviewService) GetByID(ctx context.Context, id uuid.UUID) (*types.DesignReviewRecord, error) {
	return s.mustGet(ctx, id)
}

func (s *reviewService) GetBySession(ctx context.Context, sessionID string) (*types.DesignReviewRecord, error) {
	record, err := s.repo.GetBySessionID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, apperr.ErrNotFound)
	}
	return record, nil
}

func (s *reviewService) ListByStatus(ctx context.Context, statuses []string, page, pageSize int) ([]*types.DesignReviewRecord, int64, error) {
	return s.repo.ListByStatus(ctx, nil, statuses, page, pageSize)
}

// mergeCandidateSets appends incoming candidates the record has not seen
// yet, compared by image identity so re-sent generation batches stay
// idempotent.
func mergeCandidateSets(current, incoming []types.DesignCandidate) []types.DesignCandidate {
	known := make(map[string]bool, len(current))
	for _, c := range current {
		if h := imageid.Hash(c.URL); h != "" {
			known[h] = true
		}
	}
	for _, c := range incoming {
		h := imageid.Hash(c.URL)
		if h == "" || known[h] {
			continue
		}
		known[h] = true
		current = append(current, c)
	}
	return current
}

func (s *reviewService) MergeCandidates(ctx context.Context, id uuid.UUID, candidates []types.DesignCandidate) (*types.DesignReviewRecord, error) {
	record, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.applyUpdates(ctx, record, map[string]interface{}{
		"design_candidates": types.EncodeCandidates(mergeCandidateSets(record.Candidates(), candidates)),
	})
}

func (s *reviewService) SetExcludedReferences(ctx context.Context, id uuid.UUID, indices []int) (*types.DesignReviewRecord, error) {
	record, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	sanitized := review.SanitizeIndices(indices, len(record.RefImages()))
	return s.applyUpdates(ctx, record, map[string]interface{}{
		"excluded_reference_indices": types.EncodeIntSlice(sanitized),
	})
}

func (s *reviewService) SetExcludedCandidates(ctx context.Context, id uuid.UUID, indices []int) (*types.DesignReviewRecord, error) {
	record, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	sanitized := review.SanitizeIndices(indices, len(record.Candidates()))
	return s.applyUpdates(ctx, record, map[string]interface{}{
		"excluded_candidate_indices": types.EncodeIntSlice(sanitized),
	})
}

// RecordCheckResults merges this round's results over the stored set and
// unions the round's discard list into the excluded candidates. Additive
// only; see review.ApplyCheckRound.
func (s *reviewService) RecordCheckResults(ctx context.Context, id uuid.UUID, results []review.CheckInput, overrides map[int]string) (*types.DesignReviewRecord, error) {
	record, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	candidateCount := len(record.Candidates())
	incoming := review.NormalizeChecks(results)
	merged := review.MergeChecks(record.Checks(), incoming)
	excluded := review.ApplyCheckRound(record.ExcludedCandidates(), incoming, candidateCount)

	mergedOverrides := record.Overrides()
	if mergedOverrides == nil {
		mergedOverrides = make(map[int]string)
	}
	for pos, u := range overrides {
		if pos < 1 || pos > candidateCount || strings.TrimSpace(u) == "" {
			continue
		}
		mergedOverrides[pos] = u
	}

	return s.applyUpdates(ctx, record, map[string]interface{}{
		"check_results":              types.EncodeChecks(merged),
		"excluded_candidate_indices": types.EncodeIntSlice(excluded),
		"uploaded_url_overrides":     types.EncodeOverrides(mergedOverrides),
	})
}

// ResetChecks clears check results and uploaded overrides, and removes from
// the excluded set exactly the indices the cleared checks had discarded.
// Human-excluded indices survive the reset.
func (s *reviewService) ResetChecks(ctx context.Context, id uuid.UUID) (*types.DesignReviewRecord, error) {
	record, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	excluded := review.ExcludedAfterReset(record.ExcludedCandidates(), record.Checks())
	return s.applyUpdates(ctx, record, map[string]interface{}{
		"check_results":              types.EncodeChecks(nil),
		"uploaded_url_overrides":     types.EncodeOverrides(nil),
		"excluded_candidate_indices": types.EncodeIntSlice(excluded),
	})
}

func (s *reviewService) AddReferenceImages(ctx context.Context, id uuid.UUID, urls []string) (*types.DesignReviewRecord, error) {
	record, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	refs := record.RefImages()
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			continue
		}
		refs = append(refs, u)
	}
	return s.applyUpdates(ctx, record, map[string]interface{}{
		"reference_images": types.EncodeStringSlice(refs),
	})
}

// AddDesignCandidates appends candidates; locally hosted URLs are also
// registered as uploaded overrides at their new 1-based position so the
// scorer gets a server-reachable address.
func (s *reviewService) AddDesignCandidates(ctx context.Context, id uuid.UUID, candidates []types.DesignCandidate) (*types.DesignReviewRecord, error) {
	record, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	current := record.Candidates()
	overrides := record.Overrides()
	if overrides == nil {
		overrides = make(map[int]string)
	}
	for _, c := range candidates {
		if strings.TrimSpace(c.URL) == "" {
			continue
		}
		current = append(current, c)
		if s.isSameOrigin(c.URL) {
			overrides[len(current)] = c.URL
		}
	}
	return s.applyUpdates(ctx, record, map[string]interface{}{
		"design_candidates":      types.EncodeCandidates(current),
		"uploaded_url_overrides": types.EncodeOverrides(overrides),
	})
}

func (s *reviewService) isSameOrigin(rawURL string) bool {
	if s.publicHost == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Host == s.publicHost
}

// MarkDetected records the external detector's observation that a session
// finished generating or its tab was closed.
func (s *reviewService) MarkDetected(ctx context.Context, id uuid.UUID, status string) error {
	if status != types.StatusAISelected && status != types.StatusTabClosed {
		return fmt.Errorf("status %q is not a detector status: %w", status, apperr.ErrInvalidArgument)
	}
	return s.repo.UpdateFieldsWhereStatus(ctx, nil, id, types.PreApprovalStatuses, map[string]interface{}{
		"status": status,
	})
}

func (s *reviewService) Approve(ctx context.Context, id uuid.UUID, selectedIndex int) (*types.DesignReviewRecord, error) {
	record, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	candidates := record.Candidates()
	if selectedIndex < 0 || selectedIndex >= len(candidates) {
		return nil, fmt.Errorf("selected index %d out of range: %w", selectedIndex, apperr.ErrInvalidArgument)
	}
	selectedURL := candidates[selectedIndex].URL
	if override, ok := record.Overrides()[selectedIndex+1]; ok {
		selectedURL = override
	}
	now := time.Now()
	err = s.repo.UpdateFieldsWhereStatus(ctx, nil, id, types.PreApprovalStatuses, map[string]interface{}{
		"status":         types.StatusApproved,
		"selected_index": selectedIndex,
		"selected_url":   selectedURL,
		"approved_at":    now,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Approved review record", "record_id", id, "selected_index", selectedIndex)
	return s.mustGet(ctx, id)
}

func (s *reviewService) Fail(ctx context.Context, id uuid.UUID) error {
	return s.repo.UpdateFieldsWhereStatus(ctx, nil, id, types.PreApprovalStatuses, map[string]interface{}{
		"status": types.StatusFailed,
	})
}

func (s *reviewService) SwitchTab(ctx context.Context, id uuid.UUID, newSessionID string) error {
	if strings.TrimSpace(newSessionID) == "" {
		return fmt.Errorf("session_id is required: %w", apperr.ErrInvalidArgument)
	}
	return s.repo.UpdateFieldsWhereStatus(ctx, nil, id, types.SwitchTabStatuses, map[string]interface{}{
		"status":     types.StatusGenerating,
		"session_id": newSessionID,
	})
}

func (s *reviewService) Complete(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return s.repo.UpdateFieldsWhereStatus(ctx, nil, id, types.NonTerminalStatuses, map[string]interface{}{
		"status":       types.StatusCompleted,
		"completed_at": now,
	})
}

func (s *reviewService) mustGet(ctx context.Context, id uuid.UUID) (*types.DesignReviewRecord, error) {
	record, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("record %s: %w", id, apperr.ErrNotFound)
	}
	return record, nil
}

// applyUpdates writes curator mutations behind the non-terminal guard, so a
// completed record can never be touched again.
func (s *reviewService) applyUpdates(ctx context.Context, record *types.DesignReviewRecord, updates map[string]interface{}) (*types.DesignReviewRecord, error) {
	if err := s.repo.UpdateFieldsWhereStatus(ctx, nil, record.ID, types.NonTerminalStatuses, updates); err != nil {
		return nil, err
	}
	return s.mustGet(ctx, record.ID)
}
