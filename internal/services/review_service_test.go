package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/baodantech/design-review-backend/internal/apperr"
	"github.com/baodantech/design-review-backend/internal/repos"
	"github.com/baodantech/design-review-backend/internal/review"
	"github.com/baodantech/design-review-backend/internal/types"
)

func openReviewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := openTestDB(t)
	err := db.Exec(`CREATE TABLE design_review_record (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		listing_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'generating',
		reference_images TEXT,
		excluded_reference_indices TEXT,
		design_candidates TEXT,
		excluded_candidate_indices TEXT,
		check_results TEXT,
		uploaded_url_overrides TEXT,
		recommended_index INTEGER,
		recommend_reason TEXT DEFAULT '',
		prompt_suggestion TEXT DEFAULT '',
		selected_index INTEGER,
		selected_url TEXT DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME,
		approved_at DATETIME,
		completed_at DATETIME
	)`).Error
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func newReviewService(t *testing.T, db *gorm.DB) ReviewService {
	t.Helper()
	log := testLogger(t)
	return NewReviewService(log, repos.NewDesignReviewRepo(db, log))
}

func registerSession(t *testing.T, svc ReviewService, in RegisterSessionInput) *types.DesignReviewRecord {
	t.Helper()
	record, err := svc.RegisterSession(context.Background(), in)
	if err != nil {
		t.Fatalf("register session: %v", err)
	}
	return record
}

func TestRegisterSessionValidation(t *testing.T) {
	svc := newReviewService(t, openReviewDB(t))
	_, err := svc.RegisterSession(context.Background(), RegisterSessionInput{ListingID: 1})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for missing session, got %v", err)
	}
	_, err = svc.RegisterSession(context.Background(), RegisterSessionInput{SessionID: "tab-1"})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for missing listing, got %v", err)
	}
}

func TestRegisterSessionConvertsReferable(t *testing.T) {
	svc := newReviewService(t, openReviewDB(t))
	record := registerSession(t, svc, RegisterSessionInput{
		SessionID:        "tab-legacy",
		ListingID:        7,
		ReferenceImages:  []string{"https://c.example.com/r0.png", "https://c.example.com/r1.png", "https://c.example.com/r2.png"},
		ReferableIndices: []int{0, 2},
	})
	got := record.ExcludedRefs()
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected excluded [1], got %v", got)
	}
}

func TestMergeCandidatesDedupesByIdentity(t *testing.T) {
	svc := newReviewService(t, openReviewDB(t))
	record := registerSession(t, svc, RegisterSessionInput{
		SessionID:       "tab-merge",
		ListingID:       7,
		ReferenceImages: []string{"https://c.example.com/r0.png"},
		DesignCandidates: []types.DesignCandidate{
			{URL: "https://c.example.com/d0.png", Title: "v1"},
		},
	})

	// The same image under a different query string is not a new candidate.
	updated, err := svc.MergeCandidates(context.Background(), record.ID, []types.DesignCandidate{
		{URL: "https://c.example.com/d0.png?cache=2", Title: "v1 again"},
		{URL: "https://c.example.com/d1.png", Title: "v2"},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	candidates := updated.Candidates()
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %v", candidates)
	}
	if candidates[0].Title != "v1" || candidates[1].Title != "v2" {
		t.Fatalf("unexpected candidates: %v", candidates)
	}
}

func TestRegisterSessionMergesCandidatesOnReRegister(t *testing.T) {
	svc := newReviewService(t, openReviewDB(t))
	first := registerSession(t, svc, RegisterSessionInput{
		SessionID:       "tab-rereg",
		ListingID:       7,
		ReferenceImages: []string{"https://c.example.com/r0.png"},
		DesignCandidates: []types.DesignCandidate{
			{URL: "https://c.example.com/d0.png", Title: "v1"},
		},
	})

	// Re-registering the same open session keeps old candidates and
	// merges the new batch by identity.
	second := registerSession(t, svc, RegisterSessionInput{
		SessionID:       "tab-rereg",
		ListingID:       7,
		ReferenceImages: []string{"https://c.example.com/r0.png"},
		DesignCandidates: []types.DesignCandidate{
			{URL: "https://c.example.com/d0.png?cache=2", Title: "v1 again"},
			{URL: "https://c.example.com/d1.png", Title: "v2"},
		},
	})
	if second.ID != first.ID {
		t.Fatalf("expected the open session record to be reused, got %s and %s", first.ID, second.ID)
	}
	candidates := second.Candidates()
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates after re-register, got %v", candidates)
	}
	if candidates[0].Title != "v1" || candidates[1].Title != "v2" {
		t.Fatalf("unexpected candidates: %v", candidates)
	}
}

func TestCheckRoundThenReset(t *testing.T) {
	svc := newReviewService(t, openReviewDB(t))
	record := registerSession(t, svc, RegisterSessionInput{
		SessionID:       "tab-checks",
		ListingID:       7,
		ReferenceImages: []string{"https://c.example.com/r0.png"},
		DesignCandidates: []types.DesignCandidate{
			{URL: "https://c.example.com/d0.png"},
			{URL: "https://c.example.com/d1.png"},
			{URL: "https://c.example.com/d2.png"},
		},
	})

	// Human excludes index 0, then a check round fails index 2.
	if _, err := svc.SetExcludedCandidates(context.Background(), record.ID, []int{0}); err != nil {
		t.Fatalf("set excluded: %v", err)
	}
	updated, err := svc.RecordCheckResults(context.Background(), record.ID, []review.CheckInput{
		{Index: 1, Pass: true},
		{Index: 2, Pass: false, Reason: "pattern mismatch"},
	}, map[int]string{2: "https://local.example.com/up2.png"})
	if err != nil {
		t.Fatalf("record checks: %v", err)
	}
	if got := updated.ExcludedCandidates(); len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("expected excluded [0 2], got %v", got)
	}
	if updated.Checks()[2].Reason != "pattern mismatch" {
		t.Fatalf("check result not stored: %v", updated.Checks())
	}
	if updated.Overrides()[2] == "" {
		t.Fatalf("override not stored: %v", updated.Overrides())
	}

	// Reset removes only the check-caused exclusion; the human one stays.
	reset, err := svc.ResetChecks(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := reset.ExcludedCandidates(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("expected excluded [0] after reset, got %v", got)
	}
	if len(reset.Checks()) != 0 {
		t.Fatalf("expected cleared checks, got %v", reset.Checks())
	}
	if len(reset.Overrides()) != 0 {
		t.Fatalf("expected cleared overrides, got %v", reset.Overrides())
	}
}

func TestApproveLifecycle(t *testing.T) {
	svc := newReviewService(t, openReviewDB(t))
	record := registerSession(t, svc, RegisterSessionInput{
		SessionID:       "tab-approve",
		ListingID:       7,
		ReferenceImages: []string{"https://c.example.com/r0.png"},
		DesignCandidates: []types.DesignCandidate{
			{URL: "https://c.example.com/d0.png"},
			{URL: "https://c.example.com/d1.png"},
		},
	})

	approved, err := svc.Approve(context.Background(), record.ID, 1)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != types.StatusApproved {
		t.Fatalf("expected approved, got %q", approved.Status)
	}
	if approved.SelectedIndex == nil || *approved.SelectedIndex != 1 {
		t.Fatalf("expected selected index 1, got %v", approved.SelectedIndex)
	}
	if approved.SelectedURL != "https://c.example.com/d1.png" {
		t.Fatalf("unexpected selected url %q", approved.SelectedURL)
	}
	if approved.ApprovedAt == nil {
		t.Fatal("expected approved_at set")
	}

	// Re-approval is rejected once approved.
	if _, err := svc.Approve(context.Background(), record.ID, 0); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict on re-approve, got %v", err)
	}

	// Finalize from approved; the record then rejects all mutation.
	if err := svc.Complete(context.Background(), record.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.SetExcludedCandidates(context.Background(), record.ID, []int{0}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict mutating completed record, got %v", err)
	}
	if err := svc.Complete(context.Background(), record.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict completing twice, got %v", err)
	}
}

func TestApproveIndexOutOfRange(t *testing.T) {
	svc := newReviewService(t, openReviewDB(t))
	record := registerSession(t, svc, RegisterSessionInput{
		SessionID:        "tab-range",
		ListingID:        7,
		ReferenceImages:  []string{"https://c.example.com/r0.png"},
		DesignCandidates: []types.DesignCandidate{{URL: "https://c.example.com/d0.png"}},
	})
	if _, err := svc.Approve(context.Background(), record.ID, 3); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestSwitchTabFromFailed(t *testing.T) {
	svc := newReviewService(t, openReviewDB(t))
	record := registerSession(t, svc, RegisterSessionInput{
		SessionID:       "tab-a",
		ListingID:       7,
		ReferenceImages: []string{"https://c.example.com/r0.png"},
	})
	if err := svc.Fail(context.Background(), record.ID); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := svc.SwitchTab(context.Background(), record.ID, "tab-b"); err != nil {
		t.Fatalf("switch tab: %v", err)
	}
	updated, err := svc.GetByID(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.Status != types.StatusGenerating || updated.SessionID != "tab-b" {
		t.Fatalf("expected regenerating under tab-b, got %q %q", updated.Status, updated.SessionID)
	}
}

func TestMarkDetectedRejectsArbitraryStatus(t *testing.T) {
	svc := newReviewService(t, openReviewDB(t))
	record := registerSession(t, svc, RegisterSessionInput{
		SessionID:       "tab-detect",
		ListingID:       7,
		ReferenceImages: []string{"https://c.example.com/r0.png"},
	})
	if err := svc.MarkDetected(context.Background(), record.ID, types.StatusCompleted); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if err := svc.MarkDetected(context.Background(), record.ID, types.StatusAISelected); err != nil {
		t.Fatalf("mark detected: %v", err)
	}
	updated, _ := svc.GetByID(context.Background(), record.ID)
	if updated.Status != types.StatusAISelected {
		t.Fatalf("expected ai_selected, got %q", updated.Status)
	}
}
