package repos

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/baodantech/design-review-backend/internal/apperr"
	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/types"
)

// openTestDB builds an in-memory sqlite database with hand-written
// schemas: the production tags carry postgres defaults (uuid_generate_v4,
// now()) that sqlite cannot evaluate.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	stmts := []string{
		`DROP TABLE IF EXISTS design_review_record`,
		`DROP TABLE IF EXISTS goods_image_link`,
		`CREATE TABLE design_review_record (
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
		)`,
		`CREATE TABLE goods_image_link (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			hash TEXT NOT NULL,
			listing_id INTEGER NOT NULL,
			url TEXT NOT NULL,
			created_at DATETIME,
			UNIQUE (hash, listing_id)
		)`,
	}
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func seedRecord(t *testing.T, repo DesignReviewRepo, status string) *types.DesignReviewRecord {
	t.Helper()
	rec := &types.DesignReviewRecord{
		ID:                       uuid.New(),
		SessionID:                "tab-" + uuid.NewString()[:8],
		ListingID:                42,
		Status:                   status,
		ReferenceImages:          types.EncodeStringSlice([]string{"https://cdn.example.com/r0.png"}),
		ExcludedReferenceIndices: types.EncodeIntSlice(nil),
		DesignCandidates:         types.EncodeCandidates([]types.DesignCandidate{{URL: "https://cdn.example.com/c0.png"}}),
		ExcludedCandidateIndices: types.EncodeIntSlice(nil),
	}
	if _, err := repo.Create(context.Background(), nil, []*types.DesignReviewRecord{rec}); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return rec
}

func TestUpdateFieldsWhereStatusGuards(t *testing.T) {
	db := openTestDB(t)
	repo := NewDesignReviewRepo(db, testLogger(t))
	ctx := context.Background()

	rec := seedRecord(t, repo, types.StatusGenerating)

	err := repo.UpdateFieldsWhereStatus(ctx, nil, rec.ID, types.PreApprovalStatuses, map[string]interface{}{
		"status": types.StatusApproved,
	})
	if err != nil {
		t.Fatalf("allowed transition failed: %v", err)
	}

	// A second approval attempt must see zero rows and leave the record as
	// it is.
	err = repo.UpdateFieldsWhereStatus(ctx, nil, rec.ID, types.PreApprovalStatuses, map[string]interface{}{
		"status": types.StatusFailed,
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	got, err := repo.GetByID(ctx, nil, rec.ID)
	if err != nil || got == nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != types.StatusApproved {
		t.Fatalf("status mutated by losing transition: %q", got.Status)
	}
}

func TestUpdateFieldsWhereStatusUnknownID(t *testing.T) {
	db := openTestDB(t)
	repo := NewDesignReviewRepo(db, testLogger(t))
	err := repo.UpdateFieldsWhereStatus(context.Background(), nil, uuid.New(), types.PreApprovalStatuses, map[string]interface{}{
		"status": types.StatusApproved,
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("unknown id must conflict, got %v", err)
	}
}

func TestGetBySessionIDReturnsNewest(t *testing.T) {
	db := openTestDB(t)
	repo := NewDesignReviewRepo(db, testLogger(t))
	ctx := context.Background()

	missing, err := repo.GetBySessionID(ctx, nil, "nope")
	if err != nil || missing != nil {
		t.Fatalf("missing session: got %v, %v", missing, err)
	}

	rec := seedRecord(t, repo, types.StatusGenerating)
	got, err := repo.GetBySessionID(ctx, nil, rec.SessionID)
	if err != nil {
		t.Fatalf("GetBySessionID: %v", err)
	}
	if got == nil || got.ID != rec.ID {
		t.Fatalf("got %+v, want record %s", got, rec.ID)
	}
}

func TestReplaceForListingIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewGoodsImageLinkRepo(db, testLogger(t))
	ctx := context.Background()

	links := func() []*types.GoodsImageLink {
		return []*types.GoodsImageLink{
			{Hash: "aaa", ListingID: 7, URL: "https://cdn.example.com/a.png"},
			{Hash: "bbb", ListingID: 7, URL: "https://cdn.example.com/b.png"},
		}
	}
	if err := repo.ReplaceForListing(ctx, nil, 7, links()); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if err := repo.ReplaceForListing(ctx, nil, 7, links()); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	got, err := repo.ListByListing(ctx, nil, 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d links, want 2", len(got))
	}

	// A smaller carousel replaces the whole set.
	if err := repo.ReplaceForListing(ctx, nil, 7, links()[:1]); err != nil {
		t.Fatalf("shrink sync: %v", err)
	}
	got, err = repo.ListByListing(ctx, nil, 7)
	if err != nil || len(got) != 1 || got[0].Hash != "aaa" {
		t.Fatalf("after shrink: %v, %v", got, err)
	}
}
