package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/baodantech/design-review-backend/internal/apperr"
	"github.com/baodantech/design-review-backend/internal/clients/labelstore"
	"github.com/baodantech/design-review-backend/internal/imageid"
	"github.com/baodantech/design-review-backend/internal/repos"
	"github.com/baodantech/design-review-backend/internal/types"
)

func openLabelDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := openTestDB(t)
	err := db.Exec(`CREATE TABLE image_label (
		hash TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		labels TEXT,
		source TEXT DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME
	)`).Error
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

// fakeLabelStore serves entries keyed by image identity and records the
// batches it was asked for.
type fakeLabelStore struct {
	entries  map[string]labelstore.Entry
	fetchErr error
	writeErr error
	batches  [][]string
	writes   []string
}

func (f *fakeLabelStore) FetchByURLs(_ context.Context, urls []string) (map[string]labelstore.Entry, error) {
	f.batches = append(f.batches, urls)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make(map[string]labelstore.Entry)
	for _, u := range urls {
		if e, ok := f.entries[imageid.Hash(u)]; ok {
			out[imageid.Hash(u)] = e
		}
	}
	return out, nil
}

func (f *fakeLabelStore) Write(_ context.Context, url string, _ json.RawMessage, _ string) error {
	f.writes = append(f.writes, url)
	return f.writeErr
}

type labelFixture struct {
	svc   LabelService
	repo  repos.ImageLabelRepo
	store *fakeLabelStore
}

func newLabelFixture(t *testing.T, db *gorm.DB, cache *redis.Client) *labelFixture {
	t.Helper()
	log := testLogger(t)
	repo := repos.NewImageLabelRepo(db, log)
	store := &fakeLabelStore{entries: map[string]labelstore.Entry{}}
	return &labelFixture{
		svc:   NewLabelService(log, store, repo, cache),
		repo:  repo,
		store: store,
	}
}

func TestFetchLabelsStoreUnavailableFallsBackLocal(t *testing.T) {
	db := openLabelDB(t)
	fx := newLabelFixture(t, db, nil)
	known := "https://cdn.example.com/img/a.jpg"
	unknown := "https://cdn.example.com/img/b.jpg"
	err := fx.repo.Upsert(context.Background(), nil, []*types.ImageLabel{{
		Hash:   imageid.Hash(known),
		URL:    known,
		Labels: datatypes.JSON(`{"category":"毛毯"}`),
		Source: "local",
	}})
	if err != nil {
		t.Fatalf("seed label: %v", err)
	}
	fx.store.fetchErr = fmt.Errorf("label store http 503: %w", apperr.ErrUnavailable)

	results, degraded, err := fx.svc.FetchLabels(context.Background(), []string{known, unknown})
	if err != nil {
		t.Fatalf("fetch must not fail when the store is down: %v", err)
	}
	if !degraded {
		t.Fatal("store fallback must be reported as degraded")
	}
	got, ok := results[imageid.Hash(known)]
	if !ok || got.Source != "local" {
		t.Fatalf("expected local row for known image, got %+v", results)
	}
	if _, ok := results[imageid.Hash(unknown)]; ok {
		t.Fatal("unknown image must stay absent, not fabricated")
	}
}

func TestFetchLabelsDedupesQueryVariants(t *testing.T) {
	db := openLabelDB(t)
	fx := newLabelFixture(t, db, nil)
	base := "https://cdn.example.com/img/a.jpg"
	hash := imageid.Hash(base)
	fx.store.entries[hash] = labelstore.Entry{URL: base, Labels: json.RawMessage(`{"category":"毛毯"}`)}

	results, degraded, err := fx.svc.FetchLabels(context.Background(), []string{base, base + "?w=800"})
	if err != nil || degraded {
		t.Fatalf("fetch: err=%v degraded=%v", err, degraded)
	}
	if len(results) != 1 {
		t.Fatalf("query-string variants must collapse to one result, got %v", results)
	}
	if len(fx.store.batches) != 1 || len(fx.store.batches[0]) != 1 {
		t.Fatalf("expected a single one-URL store lookup, got %v", fx.store.batches)
	}

	// Store hits are persisted locally for the degraded path.
	rows, err := fx.repo.GetByHashes(context.Background(), nil, []string{hash})
	if err != nil || len(rows) != 1 || rows[0].Source != "store" {
		t.Fatalf("fetched label not persisted locally: rows=%v err=%v", rows, err)
	}
}

func TestFetchLabelsCacheDownIsNotFatal(t *testing.T) {
	db := openLabelDB(t)
	// Port 1 is never listening; every cache call fails fast.
	cache := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { cache.Close() })
	fx := newLabelFixture(t, db, cache)
	url := "https://cdn.example.com/img/a.jpg"
	hash := imageid.Hash(url)
	fx.store.entries[hash] = labelstore.Entry{URL: url, Labels: json.RawMessage(`{"category":"毛毯"}`)}

	results, degraded, err := fx.svc.FetchLabels(context.Background(), []string{url})
	if err != nil {
		t.Fatalf("cache being down must not fail the fetch: %v", err)
	}
	if degraded {
		t.Fatal("a cache miss path with a healthy store is not degraded")
	}
	if _, ok := results[hash]; !ok {
		t.Fatalf("expected store result despite dead cache, got %v", results)
	}
}

func TestWriteLabelKeepsLocalCopyOnStoreFailure(t *testing.T) {
	db := openLabelDB(t)
	fx := newLabelFixture(t, db, nil)
	fx.store.writeErr = fmt.Errorf("label store write http 502: %w", apperr.ErrUnavailable)
	url := "https://cdn.example.com/img/a.jpg"

	if err := fx.svc.WriteLabel(context.Background(), url, json.RawMessage(`{"category":"毛毯"}`), "human"); err != nil {
		t.Fatalf("store write failure must not fail the operation: %v", err)
	}
	rows, err := fx.repo.GetByHashes(context.Background(), nil, []string{imageid.Hash(url)})
	if err != nil || len(rows) != 1 || rows[0].Source != "human" {
		t.Fatalf("local copy missing after store failure: rows=%v err=%v", rows, err)
	}
	if len(fx.store.writes) != 1 {
		t.Fatalf("store write should have been attempted once, got %d", len(fx.store.writes))
	}
}
