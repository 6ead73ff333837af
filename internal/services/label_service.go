package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"

	"github.com/baodantech/design-review-backend/internal/apperr"
	"github.com/baodantech/design-review-backend/internal/clients/labelstore"
	"github.com/baodantech/design-review-backend/internal/imageid"
	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/repos"
	"github.com/baodantech/design-review-backend/internal/types"
	"github.com/baodantech/design-review-backend/internal/utils"
)

// LabelResult is one resolved label, keyed by image identity hash.
type LabelResult struct {
	Hash   string          `json:"hash"`
	URL    string          `json:"url"`
	Labels json.RawMessage `json:"labels"`
	Source string          `json:"source"`
}

// LabelService resolves image labels through a read-through cache: redis
// first, then the label store, then the local image_label table when the
// store is unreachable. Degraded reads are reported, not hidden.
type LabelService interface {
	FetchLabels(ctx context.Context, urls []string) (map[string]LabelResult, bool, error)
	WriteLabel(ctx context.Context, url string, labels json.RawMessage, source string) error
}

type labelService struct {
	log      *logger.Logger
	store    labelstore.Client
	repo     repos.ImageLabelRepo
	cache    *redis.Client
	cacheTTL time.Duration
}

func NewLabelService(log *logger.Logger, store labelstore.Client, repo repos.ImageLabelRepo, cache *redis.Client) LabelService {
	ttlSec := utils.GetEnvAsInt("LABEL_CACHE_TTL_SECONDS", 3600, log)
	return &labelService{
		log:      log.With("service", "LabelService"),
		store:    store,
		repo:     repo,
		cache:    cache,
		cacheTTL: time.Duration(ttlSec) * time.Second,
	}
}

func labelCacheKey(hash string) string { return "label:" + hash }

func (s *labelService) FetchLabels(ctx context.Context, urls []string) (map[string]LabelResult, bool, error) {
	// Dedupe by identity so query-string variants of the same image
	// resolve to a single lookup.
	byHash := make(map[string]string, len(urls))
	order := make([]string, 0, len(urls))
	for _, u := range urls {
		h := imageid.Hash(u)
		if h == "" {
			continue
		}
		if _, seen := byHash[h]; !seen {
			byHash[h] = u
			order = append(order, h)
		}
	}
	results := make(map[string]LabelResult, len(order))
	if len(order) == 0 {
		return results, false, nil
	}

	missing := s.readCache(ctx, order, results)
	if len(missing) == 0 {
		return results, false, nil
	}

	missingURLs := make([]string, 0, len(missing))
	for _, h := range missing {
		missingURLs = append(missingURLs, byHash[h])
	}
	fetched, err := s.store.FetchByURLs(ctx, missingURLs)
	if err != nil {
		if !errors.Is(err, apperr.ErrUnavailable) {
			return nil, false, err
		}
		s.log.Warn("Label store unavailable, falling back to local table", "error", err)
		if err := s.readLocal(ctx, missing, results); err != nil {
			return nil, true, err
		}
		return results, true, nil
	}

	rows := make([]*types.ImageLabel, 0, len(fetched))
	for hash, entry := range fetched {
		res := LabelResult{Hash: hash, URL: entry.URL, Labels: entry.Labels, Source: "store"}
		results[hash] = res
		s.writeCache(ctx, res)
		rows = append(rows, &types.ImageLabel{
			Hash:   hash,
			URL:    entry.URL,
			Labels: datatypes.JSON(entry.Labels),
			Source: "store",
		})
	}
	if len(rows) > 0 {
		if err := s.repo.Upsert(ctx, nil, rows); err != nil {
			s.log.Warn("Failed to persist fetched labels locally", "error", err)
		}
	}
	return results, false, nil
}

// readCache fills results from redis and returns the hashes still missing.
func (s *labelService) readCache(ctx context.Context, hashes []string, results map[string]LabelResult) []string {
	if s.cache == nil {
		return hashes
	}
	keys := make([]string, len(hashes))
	for i, h := range hashes {
		keys[i] = labelCacheKey(h)
	}
	vals, err := s.cache.MGet(ctx, keys...).Result()
	if err != nil {
		s.log.Warn("Label cache read failed", "error", err)
		return hashes
	}
	var missing []string
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok || raw == "" {
			missing = append(missing, hashes[i])
			continue
		}
		var res LabelResult
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			missing = append(missing, hashes[i])
			continue
		}
		results[hashes[i]] = res
	}
	return missing
}

func (s *labelService) writeCache(ctx context.Context, res LabelResult) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, labelCacheKey(res.Hash), b, s.cacheTTL).Err(); err != nil {
		s.log.Warn("Label cache write failed", "hash", res.Hash, "error", err)
	}
}

func (s *labelService) readLocal(ctx context.Context, hashes []string, results map[string]LabelResult) error {
	rows, err := s.repo.GetByHashes(ctx, nil, hashes)
	if err != nil {
		return err
	}
	for _, row := range rows {
		results[row.Hash] = LabelResult{
			Hash:   row.Hash,
			URL:    row.URL,
			Labels: json.RawMessage(row.Labels),
			Source: row.Source,
		}
	}
	return nil
}

func (s *labelService) WriteLabel(ctx context.Context, url string, labels json.RawMessage, source string) error {
	hash := imageid.Hash(url)
	if hash == "" {
		return apperr.ErrInvalidArgument
	}
	row := &types.ImageLabel{Hash: hash, URL: url, Labels: datatypes.JSON(labels), Source: source}
	if err := s.repo.Upsert(ctx, nil, []*types.ImageLabel{row}); err != nil {
		return err
	}
	s.writeCache(ctx, LabelResult{Hash: hash, URL: url, Labels: labels, Source: source})
	if err := s.store.Write(ctx, url, labels, source); err != nil {
		s.log.Warn("Label store write failed, local copy kept", "hash", hash, "error", err)
	}
	return nil
}
