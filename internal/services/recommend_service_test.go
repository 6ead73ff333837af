package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/baodantech/design-review-backend/internal/apperr"
	"github.com/baodantech/design-review-backend/internal/repos"
	"github.com/baodantech/design-review-backend/internal/types"
)

type fakeVision struct {
	reply string
	err   error
	calls int
}

func (f *fakeVision) ScoreImages(context.Context, []string, string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func seedRecommendRecord(t *testing.T, svc ReviewService) *types.DesignReviewRecord {
	t.Helper()
	return registerSession(t, svc, RegisterSessionInput{
		SessionID:       "tab-reco",
		ListingID:       7,
		ReferenceImages: []string{"https://c.example.com/r0.png"},
		DesignCandidates: []types.DesignCandidate{
			{URL: "https://c.example.com/d0.png"},
			{URL: "https://c.example.com/d1.png"},
		},
	})
}

func assertRecommendationUntouched(t *testing.T, db *gorm.DB, record *types.DesignReviewRecord) {
	t.Helper()
	log := testLogger(t)
	after, err := repos.NewDesignReviewRepo(db, log).GetByID(context.Background(), nil, record.ID)
	if err != nil || after == nil {
		t.Fatalf("reload record: %v", err)
	}
	if after.RecommendedIndex != nil || after.RecommendReason != "" || after.PromptSuggestion != "" {
		t.Fatalf("record must stay untouched after scorer failure: %+v", after)
	}
}

func TestRecommendScorerFailureLeavesRecordUnchanged(t *testing.T) {
	db := openReviewDB(t)
	svc := newReviewService(t, db)
	record := seedRecommendRecord(t, svc)

	log := testLogger(t)
	vision := &fakeVision{err: fmt.Errorf("vision api http 500: %w", apperr.ErrUnavailable)}
	reco := NewRecommendService(log, repos.NewDesignReviewRepo(db, log), vision)

	_, err := reco.Recommend(context.Background(), record.ID)
	if !errors.Is(err, apperr.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if vision.calls != 1 {
		t.Fatalf("expected one scorer call, got %d", vision.calls)
	}
	assertRecommendationUntouched(t, db, record)
}

func TestRecommendUnparsableReplyLeavesRecordUnchanged(t *testing.T) {
	db := openReviewDB(t)
	svc := newReviewService(t, db)
	record := seedRecommendRecord(t, svc)

	log := testLogger(t)
	vision := &fakeVision{reply: "sorry, not json"}
	reco := NewRecommendService(log, repos.NewDesignReviewRepo(db, log), vision)

	_, err := reco.Recommend(context.Background(), record.ID)
	if !errors.Is(err, apperr.ErrUnavailable) {
		t.Fatalf("expected unavailable for unparsable reply, got %v", err)
	}
	assertRecommendationUntouched(t, db, record)
}
